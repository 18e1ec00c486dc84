// Package runs implements the runs command, which displays recent
// pipeline runs in a formatted table.
package runs

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/scottaicode/seoul-sister/cmd/common"
	"github.com/scottaicode/seoul-sister/internal/domain"
)

// Command returns the runs command.
func Command() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent pipeline runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := common.Build()
			if err != nil {
				return err
			}
			defer deps.Close()

			runs, err := deps.Runs.List(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}

			if len(runs) == 0 {
				fmt.Println("No pipeline runs recorded")
				return nil
			}

			renderTable(runs)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "max runs to show")

	return cmd
}

// renderTable formats and displays the runs in a table.
func renderTable(runs []*domain.PipelineRun) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{
		"ID", "Source", "Type", "Status",
		"Scraped", "Processed", "Dup", "Failed", "Cost USD", "Started", "Duration",
	})

	for _, run := range runs {
		t.AppendRow(table.Row{
			shortID(run.ID),
			run.Source,
			run.RunType,
			run.Status,
			run.ScrapedCount,
			run.ProcessedCount,
			run.DuplicateCount,
			run.FailedCount,
			fmt.Sprintf("%.4f", run.EstimatedCostUSD),
			run.StartedAt.Format(time.RFC3339),
			duration(run),
		})
	}

	t.Render()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func duration(run *domain.PipelineRun) string {
	if run.FinishedAt == nil {
		return "-"
	}
	return run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String()
}
