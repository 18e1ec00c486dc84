// Package link implements the link command, which parses and links INCI
// ingredients for unlinked catalog products.
package link

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scottaicode/seoul-sister/cmd/common"
	"github.com/scottaicode/seoul-sister/internal/extract"
	"github.com/scottaicode/seoul-sister/internal/ingredient"
	"github.com/scottaicode/seoul-sister/internal/logger"
)

// Command returns the link command.
func Command() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "link",
		Short: "Link ingredients for unlinked products",
		Long: `Parses the raw INCI string of catalog products without ingredient
links, resolves each token to a canonical ingredient (creating new ones
with model enrichment), and writes position-ordered links. Safe to
re-run; already-linked products are skipped.`,
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

			tracker := extract.NewCostTracker()
			matcher := ingredient.NewMatcher(
				deps.Ingredients,
				extract.NewEnricher(llm),
				tracker,
				deps.Logger,
			)
			linker := ingredient.NewLinker(deps.Products, deps.Links, matcher, deps.Runs, deps.Logger)

			if limit <= 0 {
				limit = deps.Config.Pipeline.LinkBatchSize
			}

			result, err := linker.LinkBatch(cmd.Context(), limit, tracker)
			if err != nil {
				return fmt.Errorf("linking failed: %w", err)
			}

			deps.Logger.Info("linking complete",
				logger.String("run_id", result.RunID),
				logger.Int("linked", result.Linked),
				logger.Int("skipped", result.Skipped),
				logger.Int("failed", result.Failed),
				logger.Int("created", result.Created),
				logger.Int("matched", result.Matched),
				logger.Int("remaining", result.Remaining),
				logger.Float64("estimated_cost_usd", result.Cost.EstimatedCostUSD),
			)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "max products to link (default from config)")

	return cmd
}
