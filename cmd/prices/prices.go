// Package prices implements the prices command, which searches a price
// source for catalog products and reconciles the results.
package prices

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scottaicode/seoul-sister/cmd/common"
	"github.com/scottaicode/seoul-sister/internal/logger"
	"github.com/scottaicode/seoul-sister/internal/price"
)

// Command returns the prices command.
func Command() *cobra.Command {
	var (
		retailer string
		ids      []int64
		brand    string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "prices",
		Short: "Refresh prices from a retailer",
		Long: `Searches a price source for a batch of catalog products and records
matched prices with history snapshots. Products are selected by explicit
ids, by brand, or by staleness of their last check for the retailer.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := common.Build()
			if err != nil {
				return err
			}
			defer deps.Close()

			adapter, err := deps.Registry.Get(retailer)
			if err != nil {
				return err
			}

			upserter := price.NewUpserter(deps.Prices, deps.Logger)
			pipeline := price.NewPipeline(
				deps.Products,
				deps.Retailers,
				upserter,
				deps.Runs,
				deps.Config.Prices.MinConfidence,
				deps.Config.Prices.Staleness,
				deps.Logger,
			)

			if limit <= 0 {
				limit = deps.Config.Prices.BatchSize
			}

			result, err := pipeline.Run(cmd.Context(), adapter, price.Options{
				IDs:   ids,
				Brand: brand,
				Limit: limit,
			})
			if err != nil {
				return fmt.Errorf("pricing failed: %w", err)
			}

			deps.Logger.Info("pricing complete",
				logger.String("run_id", result.RunID),
				logger.String("retailer", retailer),
				logger.Int("searched", result.Searched),
				logger.Int("priced", result.Priced),
				logger.Int("missed", result.Missed),
				logger.Int("failed", result.Failed),
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&retailer, "retailer", "yesstyle", "price source to search")
	cmd.Flags().Int64SliceVar(&ids, "ids", nil, "explicit product ids to refresh")
	cmd.Flags().StringVar(&brand, "brand", "", "refresh all products of one brand")
	cmd.Flags().IntVar(&limit, "limit", 0, "max products to refresh (default from config)")

	return cmd
}
