package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lorwen/vegepredict/internal/forecast"
	"github.com/lorwen/vegepredict/internal/marketdata"
)

var (
	reconcileDate   string
	reconcileFrom   string
	reconcileTo     string
	reconcileDryRun bool
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Backfill realized prices into matured forecasts",
	Long: `For each predict date in the range, check forecasts whose
target date fell in the trailing lookback window and whose actual price
is still unset. Found realized prices are written back with the error
metric; unrealized rows are retried on the next run.

Example:
  go run ./cmd/vegepredict reconcile
  go run ./cmd/vegepredict reconcile --date 2025-08-20
  go run ./cmd/vegepredict reconcile --from 2025-08-01 --to 2025-08-20
  go run ./cmd/vegepredict reconcile --dry-run`,
	RunE: runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	reconcileCmd.Flags().StringVar(&reconcileDate, "date", "", "single predict date (YYYY-MM-DD)")
	reconcileCmd.Flags().StringVar(&reconcileFrom, "from", "", "first predict date (YYYY-MM-DD, default: today)")
	reconcileCmd.Flags().StringVar(&reconcileTo, "to", "", "last predict date (YYYY-MM-DD, default: today)")
	reconcileCmd.Flags().BoolVar(&reconcileDryRun, "dry-run", false, "compute updates without persisting")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if reconcileDate != "" {
		reconcileFrom, reconcileTo = reconcileDate, reconcileDate
	}
	from, to, err := parseDateRange(reconcileFrom, reconcileTo)
	if err != nil {
		return err
	}
	dates := forecast.DateRange(from, to)

	cfg, log, db, err := initDeps()
	if err != nil {
		return err
	}
	defer db.Close()

	zlog := log.Zerolog()
	store := forecast.NewStore(db.Pool)
	realized := marketdata.NewRepository(db.Pool, zlog)
	tracker := forecast.NewTracker(store, realized, cfg.Predict.LookbackDays, zlog)

	updated, err := tracker.Reconcile(ctx, dates, reconcileDryRun)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}

	if reconcileDryRun {
		fmt.Printf("Dry run: %d rows would be updated\n", updated)
	} else {
		fmt.Printf("Updated %d rows\n", updated)
	}
	return nil
}
