package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func logFlagsCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "x"}
	cmd.Flags().String("log-level", "", "")
	cmd.Flags().String("log-format", "", "")
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"run", "serve", "runs", "migrate"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "address-scraper", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("log-level"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("log-format"))
}

func TestSetup_LogFlagsOverrideConfig(t *testing.T) {
	require.NoError(t, setup(logFlagsCmd(t, "--log-level", "debug", "--log-format", "console")))
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestSetup_BadLogLevel(t *testing.T) {
	cfg = nil

	err := setup(logFlagsCmd(t, "--log-level", "loud"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "init logger")
	assert.Nil(t, cfg, "config is only published once the logger is ready")
}

func TestRunCommand_Flags(t *testing.T) {
	for _, name := range []string{"query", "url", "pages", "follow", "location", "keyword", "format", "out"} {
		assert.NotNil(t, runCmd.Flags().Lookup(name), "run should have --%s flag", name)
	}
	assert.Equal(t, "json", runCmd.Flags().Lookup("format").DefValue)
	assert.Equal(t, "1", runCmd.Flags().Lookup("pages").DefValue)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestRunsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range runsCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["list"])
	assert.True(t, names["show"])

	limit := runsListCmd.Flags().Lookup("limit")
	require.NotNil(t, limit)
	assert.Equal(t, "50", limit.DefValue)
	assert.NotNil(t, runsListCmd.Flags().Lookup("status"))
	assert.NotNil(t, runsListCmd.Flags().Lookup("offset"))
}

func TestRunsShow_RequiresID(t *testing.T) {
	assert.Error(t, runsShowCmd.Args(runsShowCmd, nil))
	assert.NoError(t, runsShowCmd.Args(runsShowCmd, []string{"abc"}))
}
