// Package jobs defines the daily pipeline jobs: merge the feature
// tables, forecast, reconcile accuracy, then refresh the status table.
// The cron expressions come from config so deployments can stagger the
// stages around their market data feed.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/lorwen/vegepredict/internal/contracts"
	"github.com/lorwen/vegepredict/internal/forecast"
	"github.com/lorwen/vegepredict/internal/merge"
	"github.com/lorwen/vegepredict/internal/status"
	"github.com/lorwen/vegepredict/pkg/logger"
)

// today truncates to the calendar day in the local timezone, matching
// how obs_date is stored.
func today() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

// MergeJob rebuilds yesterday's and today's merged feature rows, so a
// late price feed still lands before the forecast runs.
type MergeJob struct {
	builder     *merge.Builder
	items       []contracts.Item
	weightsYear int
	schedule    string
	logger      *logger.Logger
}

// NewMergeJob creates the merge job. weightsYear 0 selects the previous
// calendar year at run time.
func NewMergeJob(builder *merge.Builder, items []contracts.Item, weightsYear int, schedule string, log *logger.Logger) *MergeJob {
	return &MergeJob{
		builder:     builder,
		items:       items,
		weightsYear: weightsYear,
		schedule:    schedule,
		logger:      log,
	}
}

func (j *MergeJob) Name() string     { return "merge_features" }
func (j *MergeJob) Schedule() string { return j.schedule }

// Run executes the merge stage
func (j *MergeJob) Run(ctx context.Context) error {
	day := today()
	year := j.weightsYear
	if year == 0 {
		year = day.Year() - 1
	}

	summary, err := j.builder.Run(ctx, day.AddDate(0, 0, -1), day, year, j.items)
	if err != nil {
		return fmt.Errorf("merge run: %w", err)
	}
	if summary.DatesFailed > 0 {
		return fmt.Errorf("merge run: %d of %d days failed", summary.DatesFailed, summary.Dates)
	}

	j.logger.WithFields(map[string]interface{}{
		"rows": summary.RowsWritten,
	}).Info("Scheduled merge completed")
	return nil
}

// PredictJob runs the walk-forward forecast for today.
type PredictJob struct {
	coordinator *forecast.Coordinator
	items       []contracts.Item
	schedule    string
	logger      *logger.Logger
}

// NewPredictJob creates the forecast job
func NewPredictJob(coordinator *forecast.Coordinator, items []contracts.Item, schedule string, log *logger.Logger) *PredictJob {
	return &PredictJob{
		coordinator: coordinator,
		items:       items,
		schedule:    schedule,
		logger:      log,
	}
}

func (j *PredictJob) Name() string     { return "predict_prices" }
func (j *PredictJob) Schedule() string { return j.schedule }

// Run executes the forecast stage
func (j *PredictJob) Run(ctx context.Context) error {
	summary, err := j.coordinator.Run(ctx, []time.Time{today()}, j.items)
	if err != nil {
		return fmt.Errorf("forecast run: %w", err)
	}
	if summary.ItemsFailed > 0 {
		return fmt.Errorf("forecast run: %d of %d items failed", summary.ItemsFailed, summary.ItemsAttempted)
	}

	j.logger.WithFields(map[string]interface{}{
		"items": summary.ItemsSucceeded,
		"rows":  summary.RowsWritten,
	}).Info("Scheduled forecast completed")
	return nil
}

// ReconcileJob backfills realized prices into maturing forecasts.
type ReconcileJob struct {
	tracker  *forecast.Tracker
	schedule string
	logger   *logger.Logger
}

// NewReconcileJob creates the accuracy reconciliation job
func NewReconcileJob(tracker *forecast.Tracker, schedule string, log *logger.Logger) *ReconcileJob {
	return &ReconcileJob{
		tracker:  tracker,
		schedule: schedule,
		logger:   log,
	}
}

func (j *ReconcileJob) Name() string     { return "reconcile_accuracy" }
func (j *ReconcileJob) Schedule() string { return j.schedule }

// Run executes the reconciliation stage
func (j *ReconcileJob) Run(ctx context.Context) error {
	updated, err := j.tracker.Reconcile(ctx, []time.Time{today()}, false)
	if err != nil {
		return fmt.Errorf("reconcile run: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"updated": updated,
	}).Info("Scheduled reconciliation completed")
	return nil
}

// StatusJob refreshes the per-item price status table.
type StatusJob struct {
	updater  *status.Updater
	schedule string
	logger   *logger.Logger
}

// NewStatusJob creates the status update job
func NewStatusJob(updater *status.Updater, schedule string, log *logger.Logger) *StatusJob {
	return &StatusJob{
		updater:  updater,
		schedule: schedule,
		logger:   log,
	}
}

func (j *StatusJob) Name() string     { return "update_status" }
func (j *StatusJob) Schedule() string { return j.schedule }

// Run executes the status stage
func (j *StatusJob) Run(ctx context.Context) error {
	updated, err := j.updater.Run(ctx, false)
	if err != nil {
		return fmt.Errorf("status run: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"updated": updated,
	}).Info("Scheduled status update completed")
	return nil
}
