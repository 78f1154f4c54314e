package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lorwen/vegepredict/internal/catalog"
	"github.com/lorwen/vegepredict/internal/features"
	"github.com/lorwen/vegepredict/internal/forecast"
	"github.com/lorwen/vegepredict/internal/marketdata"
	"github.com/lorwen/vegepredict/pkg/config"
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Walk-forward price forecasting",
	Long: `Forecast 7 days of prices per item with the pretrained
per-class models. Each horizon day's features are built on the previous
day's own prediction; forecasts are upserted by (item, target date) so
re-runs overwrite cleanly.

Commands:
  run         run the forecast for a date or date range
  list-items  show the item catalogue`,
}

var (
	// run flags
	predictItems       string
	predictFrom        string
	predictTo          string
	predictHistoryDays int
	predictWorkers     int
	predictSequential  bool
)

var predictRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the forecast",
	Long: `Forecast every selected item for every predict date in the
range. Defaults to today and the full catalogue.

Example:
  go run ./cmd/vegepredict predict run
  go run ./cmd/vegepredict predict run --items 23,35 --from 2025-08-01 --to 2025-08-10
  go run ./cmd/vegepredict predict run --sequential`,
	RunE: runPredict,
}

var predictListItemsCmd = &cobra.Command{
	Use:   "list-items",
	Short: "Show the item catalogue",
	RunE:  runListItems,
}

func init() {
	rootCmd.AddCommand(predictCmd)
	predictCmd.AddCommand(predictRunCmd)
	predictCmd.AddCommand(predictListItemsCmd)

	predictRunCmd.Flags().StringVar(&predictItems, "items", "", "comma-separated item IDs (default: all)")
	predictRunCmd.Flags().StringVar(&predictFrom, "from", "", "first predict date (YYYY-MM-DD, default: today)")
	predictRunCmd.Flags().StringVar(&predictTo, "to", "", "last predict date (YYYY-MM-DD, default: today)")
	predictRunCmd.Flags().IntVar(&predictHistoryDays, "history-days", 0, "history window in recent valid records (default: config)")
	predictRunCmd.Flags().IntVar(&predictWorkers, "workers", 0, "concurrent workers (default: config)")
	predictRunCmd.Flags().BoolVar(&predictSequential, "sequential", false, "force single-threaded execution")
}

func runPredict(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	items, err := selectItems(predictItems)
	if err != nil {
		return err
	}

	from, to, err := parseDateRange(predictFrom, predictTo)
	if err != nil {
		return err
	}
	dates := forecast.DateRange(from, to)

	cfg, log, db, err := initDeps()
	if err != nil {
		return err
	}
	defer db.Close()

	registries, err := loadRegistries(cfg)
	if err != nil {
		return err
	}

	runCfg := forecast.Config{
		Workers:     cfg.Predict.Workers,
		HistoryDays: cfg.Predict.HistoryDays,
	}
	if predictWorkers > 0 {
		runCfg.Workers = predictWorkers
	}
	if predictSequential {
		runCfg.Workers = 1
	}
	if predictHistoryDays > 0 {
		runCfg.HistoryDays = predictHistoryDays
	}

	zlog := log.Zerolog()
	source := marketdata.NewRepository(db.Pool, zlog)
	sink := forecast.NewStore(db.Pool)
	walker := forecast.NewWalker(features.NewBuilder(zlog), cfg.Predict.MinHistoryDays, zlog)
	coordinator := forecast.NewCoordinator(source, sink, forecast.RegistryLookup(registries), walker, runCfg, zlog)

	fmt.Printf("Forecasting %d items, %s ~ %s (%d workers)\n",
		len(items), from.Format("2006-01-02"), to.Format("2006-01-02"), runCfg.Workers)

	summary, err := coordinator.Run(ctx, dates, items)
	if err != nil {
		return fmt.Errorf("forecast run: %w", err)
	}

	fmt.Printf("\nDates:     %d completed, %d failed\n", summary.DatesCompleted, summary.DatesFailed)
	fmt.Printf("Items:     %d succeeded, %d failed\n", summary.ItemsSucceeded, summary.ItemsFailed)
	fmt.Printf("Skipped:   %d thin history, %d no model\n",
		summary.SkippedInsufficientHistory, summary.SkippedMissingModel)
	fmt.Printf("Rows:      %d written\n", summary.RowsWritten)

	if summary.DatesFailed > 0 || summary.ItemsFailed > 0 {
		return fmt.Errorf("forecast run finished with failures")
	}
	return nil
}

func runListItems(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	registries, err := loadRegistries(cfg)
	if err != nil {
		return err
	}

	withModel := 0
	fmt.Printf("%-5s %-8s %-6s %-6s %s\n", "ID", "CODE", "CLASS", "MODEL", "NAME")
	for _, item := range catalog.Items() {
		mark := "-"
		if _, ok := registries[item.Class].Model(item.ID); ok {
			mark = "yes"
			withModel++
		}
		fmt.Printf("%-5d %-8s %-6s %-6s %s\n", item.ID, item.MarketCode, item.Class, mark, item.Name)
	}
	fmt.Printf("\n%d items, %d with a trained model\n", len(catalog.Items()), withModel)
	return nil
}
