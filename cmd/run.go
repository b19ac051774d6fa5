package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/address-scraper/internal/export"
	"github.com/sells-group/address-scraper/internal/model"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one query and print the address report",
	Example: `  address-scraper run --query "cafes in kuala lumpur" --pages 2
  address-scraper run --url https://example.com/contact --format yaml
  address-scraper run --query "dentists in leeds" --follow --format xlsx --out dentists.xlsx`,
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := queryFromFlags(cmd)
		if err != nil {
			return err
		}
		format, _ := cmd.Flags().GetString("format")
		f, err := export.ParseFormat(format)
		if err != nil {
			return err
		}
		out, _ := cmd.Flags().GetString("out")

		env, err := initPipeline(cmd.Context(), "pipeline")
		if err != nil {
			return err
		}
		defer env.Close()

		report, err := env.Pipeline.Run(cmd.Context(), q)
		if err != nil {
			return eris.Wrap(err, "run pipeline")
		}

		if err := writeReport(cmd.OutOrStdout(), out, f, report); err != nil {
			return err
		}

		zap.L().Info("run finished",
			zap.String("run_id", report.RunID),
			zap.Int("addresses", report.Counts.Addresses),
			zap.Int("rejected", report.Counts.Rejected),
			zap.Int("failed_sources", report.Counts.Failed),
		)
		return nil
	},
}

func init() {
	addRunFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

func addRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("query", "", "search term for the maps listing search")
	f.StringSlice("url", nil, "page URL to scrape (repeatable)")
	f.Int("pages", 1, "number of maps result pages")
	f.Bool("follow", false, "also scrape websites linked from maps listings")
	f.String("location", "", "place used to center the maps search")
	f.StringSlice("keyword", nil, "word an organic result must mention to be followed (repeatable)")
	f.String("format", "json", "output format: json, yaml, xlsx or geojson")
	f.String("out", "", "output file (default stdout)")
}

func queryFromFlags(cmd *cobra.Command) (model.Query, error) {
	f := cmd.Flags()
	term, _ := f.GetString("query")
	urls, _ := f.GetStringSlice("url")
	pages, _ := f.GetInt("pages")
	follow, _ := f.GetBool("follow")
	location, _ := f.GetString("location")
	keywords, _ := f.GetStringSlice("keyword")

	q := model.Query{
		Term:           term,
		URLs:           urls,
		Pages:          pages,
		FollowWebsites: follow,
		Location:       location,
		Keywords:       keywords,
	}
	if q.Empty() {
		return q, eris.New("either --query or --url is required")
	}
	if pages < 0 {
		return q, eris.New("--pages must not be negative")
	}
	return q, nil
}

// writeReport renders report to path, or to stdout when path is empty.
func writeReport(stdout io.Writer, path string, f export.Format, report *model.PipelineReport) error {
	if path == "" {
		return export.Write(stdout, f, report)
	}

	file, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}
	if err := export.Write(file, f, report); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return eris.Wrapf(err, "close %s", path)
	}
	_, _ = fmt.Fprintf(os.Stderr, "wrote %d addresses to %s\n", report.Counts.Addresses, path)
	return nil
}
