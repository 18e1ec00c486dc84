// Package scrape implements the scrape command, which drives a catalog
// adapter's category listing and detail flow into the staging buffer.
package scrape

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scottaicode/seoul-sister/cmd/common"
	"github.com/scottaicode/seoul-sister/internal/logger"
	"github.com/scottaicode/seoul-sister/internal/processor"
)

// Command returns the scrape command.
func Command() *cobra.Command {
	var (
		source   string
		category string
		pages    int
	)

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Scrape a retailer category into staging",
		Long: `Lists the given category pages on a catalog source and stages each
product's detail record for later processing. Intake is idempotent:
records already staged for the same source are skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := common.Build()
			if err != nil {
				return err
			}
			defer deps.Close()

			adapter, err := deps.Registry.Get(source)
			if err != nil {
				return err
			}

			scraper := processor.NewScraper(deps.Staging, deps.Runs, deps.Logger)

			result, err := scraper.Scrape(cmd.Context(), adapter, category, pages)
			if err != nil {
				return fmt.Errorf("scrape failed: %w", err)
			}

			deps.Logger.Info("scrape complete",
				logger.String("run_id", result.RunID),
				logger.Int("listed", result.Listed),
				logger.Int("staged", result.Staged),
				logger.Int("skipped", result.Skipped),
				logger.Int("failed", result.Failed),
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", "oliveyoung", "catalog source to scrape")
	cmd.Flags().StringVar(&category, "category", "", "retailer category id")
	cmd.Flags().IntVar(&pages, "pages", 1, "number of listing pages to crawl")
	_ = cmd.MarkFlagRequired("category")

	return cmd
}
