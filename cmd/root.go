package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/address-scraper/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "address-scraper",
	Short: "Scrape, normalize and geocode postal addresses",
	Long:  "Fetches web pages and map listings through a scraping API, extracts postal addresses, normalizes them with libpostal, merges duplicates and optionally geocodes the result.",
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return setup(cmd)
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("log-level", "", "override log.level (debug, info, warn, error)")
	pf.String("log-format", "", "override log.format (json or console)")
}

// setup loads configuration, applies the logging flag overrides and
// installs the global logger.
func setup(cmd *cobra.Command) error {
	c, err := config.Load()
	if err != nil {
		return eris.Wrap(err, "load config")
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		c.Log.Level = v
	}
	if v, _ := cmd.Flags().GetString("log-format"); v != "" {
		c.Log.Format = v
	}
	if err := config.InitLogger(c.Log); err != nil {
		return eris.Wrap(err, "init logger")
	}
	cfg = c
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
