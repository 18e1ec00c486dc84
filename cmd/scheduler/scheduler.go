// Package scheduler implements the scheduler command, which runs the
// scraping, processing, linking, and pricing cycles on cron schedules.
package scheduler

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/scottaicode/seoul-sister/cmd/common"
	"github.com/scottaicode/seoul-sister/internal/extract"
	"github.com/scottaicode/seoul-sister/internal/ingredient"
	"github.com/scottaicode/seoul-sister/internal/logger"
	"github.com/scottaicode/seoul-sister/internal/price"
	"github.com/scottaicode/seoul-sister/internal/processor"
	"github.com/scottaicode/seoul-sister/internal/sources"
)

// Default schedules. Scraping runs nightly; processing runs often since
// batches are bounded; linking follows so new products pick up their
// ingredients; pricing runs after the catalog has settled.
const (
	defaultScrapeSchedule  = "0 2 * * *"
	defaultProcessSchedule = "*/15 * * * *"
	defaultLinkSchedule    = "5 * * * *"
	defaultPricesSchedule  = "30 3 * * *"
)

// Command returns the scheduler command.
func Command() *cobra.Command {
	var (
		scrapeSchedule  string
		scrapeSource    string
		scrapeCategory  string
		scrapePages     int
		processSchedule string
		linkSchedule    string
		pricesSchedule  string
		pricesRetailer  string
	)

	cmd := &cobra.Command{
		Use:   "scheduler",
		Short: "Run the pipeline cycles on a schedule",
		Long: `Runs the scraper, batch processor, ingredient linker, and price
pipeline periodically until interrupted. The scrape job requires
--scrape-category and is skipped without it. Schedules use standard
cron syntax.`,
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

			priceAdapter, err := deps.Registry.Get(pricesRetailer)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c := cron.New()

			if scrapeCategory != "" {
				scrapeAdapter, adapterErr := deps.Registry.Get(scrapeSource)
				if adapterErr != nil {
					return adapterErr
				}
				scraper := processor.NewScraper(deps.Staging, deps.Runs, deps.Logger)
				_, err = c.AddFunc(scrapeSchedule, func() {
					runScrape(ctx, deps, scraper, scrapeAdapter, scrapeCategory, scrapePages)
				})
				if err != nil {
					return err
				}
			} else {
				deps.Logger.Info("no scrape category configured, scrape job disabled")
			}

			_, err = c.AddFunc(processSchedule, func() {
				tracker := extract.NewCostTracker()
				if _, runErr := batch.ProcessBatch(ctx, "", tracker); runErr != nil {
					deps.Logger.Error("scheduled processing failed", logger.Error(runErr))
				}
			})
			if err != nil {
				return err
			}

			_, err = c.AddFunc(linkSchedule, func() {
				runLink(ctx, deps, llm)
			})
			if err != nil {
				return err
			}

			_, err = c.AddFunc(pricesSchedule, func() {
				runPrices(ctx, deps, priceAdapter)
			})
			if err != nil {
				return err
			}

			c.Start()
			deps.Logger.Info("scheduler started",
				logger.String("scrape_schedule", scrapeSchedule),
				logger.String("process_schedule", processSchedule),
				logger.String("link_schedule", linkSchedule),
				logger.String("prices_schedule", pricesSchedule),
			)

			<-ctx.Done()
			deps.Logger.Info("scheduler stopping")
			<-c.Stop().Done()
			return nil
		},
	}

	cmd.Flags().StringVar(&scrapeSchedule, "scrape-schedule", defaultScrapeSchedule, "cron schedule for catalog scraping")
	cmd.Flags().StringVar(&scrapeSource, "scrape-source", "oliveyoung", "catalog source for the scrape job")
	cmd.Flags().StringVar(&scrapeCategory, "scrape-category", "", "retailer category id for the scrape job")
	cmd.Flags().IntVar(&scrapePages, "scrape-pages", 3, "listing pages per scheduled scrape")
	cmd.Flags().StringVar(&processSchedule, "process-schedule", defaultProcessSchedule, "cron schedule for batch processing")
	cmd.Flags().StringVar(&linkSchedule, "link-schedule", defaultLinkSchedule, "cron schedule for ingredient linking")
	cmd.Flags().StringVar(&pricesSchedule, "prices-schedule", defaultPricesSchedule, "cron schedule for price refresh")
	cmd.Flags().StringVar(&pricesRetailer, "prices-retailer", "yesstyle", "price source for the prices job")

	return cmd
}

// runScrape runs one scheduled scrape over the configured category.
func runScrape(ctx context.Context, deps *common.Deps, scraper *processor.Scraper, adapter sources.SourceAdapter, category string, pages int) {
	if _, err := scraper.Scrape(ctx, adapter, category, pages); err != nil {
		deps.Logger.Error("scheduled scrape failed", logger.Error(err))
	}
}

// runLink runs one linker batch with a fresh per-run matcher cache.
func runLink(ctx context.Context, deps *common.Deps, llm extract.Client) {
	tracker := extract.NewCostTracker()
	matcher := ingredient.NewMatcher(
		deps.Ingredients,
		extract.NewEnricher(llm),
		tracker,
		deps.Logger,
	)
	linker := ingredient.NewLinker(deps.Products, deps.Links, matcher, deps.Runs, deps.Logger)

	if _, err := linker.LinkBatch(ctx, deps.Config.Pipeline.LinkBatchSize, tracker); err != nil {
		deps.Logger.Error("scheduled linking failed", logger.Error(err))
	}
}

// runPrices runs one price refresh against the configured retailer.
func runPrices(ctx context.Context, deps *common.Deps, adapter sources.SourceAdapter) {
	pipeline := price.NewPipeline(
		deps.Products,
		deps.Retailers,
		price.NewUpserter(deps.Prices, deps.Logger),
		deps.Runs,
		deps.Config.Prices.MinConfidence,
		deps.Config.Prices.Staleness,
		deps.Logger,
	)

	if _, err := pipeline.Run(ctx, adapter, price.Options{Limit: deps.Config.Prices.BatchSize}); err != nil {
		deps.Logger.Error("scheduled pricing failed", logger.Error(err))
	}
}
