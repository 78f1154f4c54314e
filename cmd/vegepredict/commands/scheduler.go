package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lorwen/vegepredict/internal/catalog"
	"github.com/lorwen/vegepredict/internal/features"
	"github.com/lorwen/vegepredict/internal/forecast"
	"github.com/lorwen/vegepredict/internal/marketdata"
	"github.com/lorwen/vegepredict/internal/merge"
	"github.com/lorwen/vegepredict/internal/scheduler"
	"github.com/lorwen/vegepredict/internal/scheduler/jobs"
	"github.com/lorwen/vegepredict/internal/status"
	"github.com/lorwen/vegepredict/pkg/redis"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Daily pipeline scheduler",
	Long: `Run the daily pipeline on the configured cron cadence.

Registered jobs:
- merge_features:     rebuild yesterday's and today's merged rows
- predict_prices:     forecast 7 days ahead for every item
- reconcile_accuracy: backfill realized prices into matured forecasts
- update_status:      refresh the per-item status table

Subcommands:
  start   - start the scheduler daemon
  list    - list registered jobs
  run     - run one job immediately
  status  - show job run statistics

Example:
  go run ./cmd/vegepredict scheduler start
  go run ./cmd/vegepredict scheduler run predict_prices`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the scheduler",
		Long: `Start the scheduler and register all pipeline jobs. The
cron expressions come from SCHEDULE_* config. Stop with Ctrl+C.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "List registered jobs",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "Run one job immediately",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}

	schedulerStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show job run statistics",
		RunE:  showJobStats,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
	schedulerCmd.AddCommand(schedulerStatusCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	sched, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	sched.Start()

	fmt.Println("Scheduler started")
	fmt.Println("\nRegistered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		fmt.Printf("  - %s\n", jobName)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	fmt.Println("Scheduler stopped")

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	sched, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	fmt.Println("Registered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		fmt.Printf("  - %s\n", jobName)
	}

	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	fmt.Printf("Running job: %s\n", jobName)

	sched, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	if err := sched.RunJob(jobName); err != nil {
		return fmt.Errorf("run job: %w", err)
	}

	fmt.Println("Job started (running in background)")
	return nil
}

func showJobStats(cmd *cobra.Command, args []string) error {
	sched, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	stats := sched.GetJobStats()

	fmt.Println("Job Statistics:")
	fmt.Println()

	for jobName, stat := range stats {
		fmt.Printf("%s\n", jobName)
		fmt.Printf("   Schedule: %s\n", stat.Schedule)
		fmt.Printf("   Total Runs: %d\n", stat.TotalRuns)
		fmt.Printf("   Success: %d (%.1f%%)\n", stat.SuccessCount, stat.SuccessRate*100)
		fmt.Printf("   Failures: %d\n", stat.FailureCount)

		if stat.LastRun != nil {
			fmt.Printf("   Last Run: %s\n", stat.LastRun.Format("2006-01-02 15:04:05"))
		}

		fmt.Println()
	}

	return nil
}

func initScheduler() (*scheduler.Scheduler, error) {
	// 1. Load config, logger, database
	cfg, log, db, err := initDeps()
	if err != nil {
		return nil, err
	}

	// 2. Connect to Redis (optional, for the status cache)
	redisClient, err := redis.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	// 3. Load model artifacts
	registries, err := loadRegistries(cfg)
	if err != nil {
		return nil, err
	}

	zlog := log.Zerolog()
	items := catalog.Items()

	// 4. Shared repositories
	market := marketdata.NewRepository(db.Pool, zlog)
	store := forecast.NewStore(db.Pool)

	// 5. Pipeline stages
	mergeBuilder := merge.NewBuilder(market, merge.NewRepository(db.Pool), 4, zlog)

	walker := forecast.NewWalker(features.NewBuilder(zlog), cfg.Predict.MinHistoryDays, zlog)
	runCfg := forecast.Config{
		Workers:     cfg.Predict.Workers,
		HistoryDays: cfg.Predict.HistoryDays,
	}
	coordinator := forecast.NewCoordinator(market, store, forecast.RegistryLookup(registries), walker, runCfg, zlog)

	tracker := forecast.NewTracker(store, market, cfg.Predict.LookbackDays, zlog)

	cache := redis.NewCache(redisClient, "vegepredict")
	updater := status.NewUpdater(status.NewRepository(db.Pool), market, store, cache, zlog)

	// 6. Create scheduler and register jobs in pipeline order
	sched := scheduler.New(log)

	if err := sched.AddJob(jobs.NewMergeJob(mergeBuilder, items, cfg.Predict.WeightsYear, cfg.Schedule.Merge, log)); err != nil {
		return nil, err
	}
	if err := sched.AddJob(jobs.NewPredictJob(coordinator, items, cfg.Schedule.Predict, log)); err != nil {
		return nil, err
	}
	if err := sched.AddJob(jobs.NewReconcileJob(tracker, cfg.Schedule.Reconcile, log)); err != nil {
		return nil, err
	}
	if err := sched.AddJob(jobs.NewStatusJob(updater, cfg.Schedule.Status, log)); err != nil {
		return nil, err
	}

	return sched, nil
}
