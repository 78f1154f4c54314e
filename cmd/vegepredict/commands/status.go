package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lorwen/vegepredict/internal/forecast"
	"github.com/lorwen/vegepredict/internal/marketdata"
	"github.com/lorwen/vegepredict/internal/status"
	"github.com/lorwen/vegepredict/pkg/redis"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Per-item price status table",
}

var statusDryRun bool

var statusUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Refresh the status table",
	Long: `Update each item's latest confirmed price and the predicted
change toward the next day. Rows are updated in place, never inserted.

Example:
  go run ./cmd/vegepredict status update
  go run ./cmd/vegepredict status update --dry-run`,
	RunE: runStatusUpdate,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.AddCommand(statusUpdateCmd)

	statusUpdateCmd.Flags().BoolVar(&statusDryRun, "dry-run", false, "compute updates without persisting")
}

func runStatusUpdate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, log, db, err := initDeps()
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient, err := redis.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()

	zlog := log.Zerolog()
	market := marketdata.NewRepository(db.Pool, zlog)
	predictions := forecast.NewStore(db.Pool)
	cache := redis.NewCache(redisClient, "vegepredict")

	updater := status.NewUpdater(status.NewRepository(db.Pool), market, predictions, cache, zlog)

	updated, err := updater.Run(ctx, statusDryRun)
	if err != nil {
		return fmt.Errorf("status update: %w", err)
	}

	if statusDryRun {
		fmt.Printf("Dry run: %d rows would be updated\n", updated)
	} else {
		fmt.Printf("Updated %d rows\n", updated)
	}
	return nil
}
