package forecast

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/lorwen/vegepredict/internal/contracts"
)

// DefaultLookbackDays is the trailing window, relative to each predict
// date, over which maturing forecasts are checked against realized
// prices.
const DefaultLookbackDays = 3

// PendingStore is the prediction-store surface the tracker needs.
type PendingStore interface {
	PendingInWindow(ctx context.Context, from, to time.Time) ([]contracts.Prediction, error)
	SetActual(ctx context.Context, id int64, actual, mape float64) error
}

// RealizedSource looks up realized daily prices in the external
// observation store.
type RealizedSource interface {
	RealizedPrice(ctx context.Context, itemID int, date time.Time) (float64, bool, error)
}

// Tracker backfills realized prices into matured forecasts and computes
// the per-row error metric. Rows with no realized price yet are left
// untouched and picked up again on the next run.
type Tracker struct {
	store        PendingStore
	realized     RealizedSource
	lookbackDays int
	log          zerolog.Logger
}

// NewTracker creates an accuracy tracker. lookbackDays is the trailing
// window size in days; values below 1 fall back to DefaultLookbackDays.
func NewTracker(store PendingStore, realized RealizedSource, lookbackDays int, log zerolog.Logger) *Tracker {
	if lookbackDays < 1 {
		lookbackDays = DefaultLookbackDays
	}
	return &Tracker{
		store:        store,
		realized:     realized,
		lookbackDays: lookbackDays,
		log:          log.With().Str("component", "forecast.tracker").Logger(),
	}
}

// Reconcile checks, for every distinct predict date given, the rows whose
// target date falls in [date-lookback, date-1] and whose actual price is
// unset. Found realized prices are written back with the error metric
// |predicted-actual|/actual*100; in dry-run mode updates are computed and
// logged but not persisted. Returns the number of rows updated (or that
// would have been updated).
func (t *Tracker) Reconcile(ctx context.Context, predictDates []time.Time, dryRun bool) (int, error) {
	updated := 0

	for _, date := range uniqueDates(predictDates) {
		from := date.AddDate(0, 0, -t.lookbackDays)
		to := date.AddDate(0, 0, -1)

		pending, err := t.store.PendingInWindow(ctx, from, to)
		if err != nil {
			return updated, err
		}
		if len(pending) == 0 {
			t.log.Debug().Time("predict_date", date).Msg("no pending rows in lookback window")
			continue
		}

		for _, row := range pending {
			actual, ok, err := t.realized.RealizedPrice(ctx, row.ItemID, row.TargetDate)
			if err != nil {
				return updated, err
			}
			if !ok || actual == 0 {
				continue
			}

			mape := round2(math.Abs(row.PredictPrice-actual) / actual * 100)

			if dryRun {
				t.log.Info().
					Int("item_id", row.ItemID).
					Time("target_date", row.TargetDate).
					Float64("actual_price", actual).
					Float64("mape", mape).
					Msg("dry-run: would backfill actual price")
				updated++
				continue
			}

			if err := t.store.SetActual(ctx, row.ID, round2(actual), mape); err != nil {
				return updated, err
			}
			updated++

			t.log.Info().
				Int("item_id", row.ItemID).
				Time("target_date", row.TargetDate).
				Float64("actual_price", actual).
				Float64("mape", mape).
				Msg("actual price backfilled")
		}
	}

	t.log.Info().Int("updated", updated).Bool("dry_run", dryRun).Msg("accuracy reconciliation completed")
	return updated, nil
}

// uniqueDates deduplicates by calendar day and sorts ascending.
func uniqueDates(dates []time.Time) []time.Time {
	seen := make(map[string]time.Time, len(dates))
	for _, d := range dates {
		day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
		seen[day.Format("2006-01-02")] = day
	}
	out := make([]time.Time, 0, len(seen))
	for _, d := range seen {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
