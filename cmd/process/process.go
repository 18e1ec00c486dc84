// Package process implements the process command, which runs one batch
// cycle over the staging buffer.
package process

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scottaicode/seoul-sister/cmd/common"
	"github.com/scottaicode/seoul-sister/internal/extract"
	"github.com/scottaicode/seoul-sister/internal/logger"
	"github.com/scottaicode/seoul-sister/internal/processor"
)

// Command returns the process command.
func Command() *cobra.Command {
	var (
		source    string
		reprocess bool
	)

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Run one batch cycle over staged records",
		Long: `Claims a batch of pending staged records, normalizes each through the
extraction model, deduplicates against the catalog, and inserts new
products. With --reprocess, failed records are first reset to pending.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := common.Build()
			if err != nil {
				return err
			}
			defer deps.Close()

			llm, err := extract.NewAnthropicClient(deps.Config.Anthropic)
			if err != nil {
				return err
			}
			extractor := extract.NewExtractor(llm, deps.Logger)

			batch := processor.NewBatchProcessor(
				deps.Staging,
				deps.Products,
				extractor,
				deps.Runs,
				deps.Config.Pipeline.BatchSize,
				deps.Config.Pipeline.ChunkConcurrency,
				deps.Logger,
			)

			tracker := extract.NewCostTracker()

			var result *processor.BatchResult
			if reprocess {
				result, err = batch.Reprocess(cmd.Context(), source, tracker)
			} else {
				result, err = batch.ProcessBatch(cmd.Context(), source, tracker)
			}
			if err != nil {
				return fmt.Errorf("processing failed: %w", err)
			}

			deps.Logger.Info("processing complete",
				logger.String("run_id", result.RunID),
				logger.Int("claimed", result.Claimed),
				logger.Int("processed", result.Processed),
				logger.Int("duplicates", result.Duplicates),
				logger.Int("failed", result.Failed),
				logger.Float64("estimated_cost_usd", result.Cost.EstimatedCostUSD),
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "restrict to one source (default all)")
	cmd.Flags().BoolVar(&reprocess, "reprocess", false, "reset failed records to pending first")

	return cmd
}
