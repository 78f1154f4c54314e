// Package status maintains the per-item price status table: each item's
// latest confirmed price and the predicted change toward the next day,
// refreshed in place after every forecast run.
package status

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/lorwen/vegepredict/internal/marketdata"
)

// cacheTTL bounds how stale a cached status row may get between runs.
const cacheTTL = 24 * time.Hour

// Store is the status-table surface. Rows are only ever updated: the set
// of items is seeded upstream and never grows here.
type Store interface {
	ItemIDs(ctx context.Context) ([]int, error)
	UpdateRow(ctx context.Context, row Row) error
}

// ActualSource reports each item's newest confirmed price.
type ActualSource interface {
	LatestActuals(ctx context.Context) (map[int]marketdata.LatestActual, error)
}

// PredictionSource looks up the freshest forecast for a target date.
type PredictionSource interface {
	LatestPredictionForTarget(ctx context.Context, itemID int, target time.Time) (float64, bool, error)
}

// Cache is the write-through cache surface for status rows.
type Cache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Row is one item's status.
type Row struct {
	ItemID int `json:"item_id"`
	// LatestPrice is the newest confirmed daily average price.
	LatestPrice float64 `json:"latest_price"`
	// PriceChange is the predicted percent change from LatestPrice to the
	// forecast for the following day. 0 when no forecast exists yet.
	PriceChange float64   `json:"price_change"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Updater recomputes the status table.
type Updater struct {
	store       Store
	actuals     ActualSource
	predictions PredictionSource
	cache       Cache
	now         func() time.Time
	log         zerolog.Logger
}

// NewUpdater wires a status updater. cache may be nil when caching is
// disabled.
func NewUpdater(store Store, actuals ActualSource, predictions PredictionSource, cache Cache, log zerolog.Logger) *Updater {
	return &Updater{
		store:       store,
		actuals:     actuals,
		predictions: predictions,
		cache:       cache,
		now:         time.Now,
		log:         log.With().Str("component", "status").Logger(),
	}
}

// Run refreshes every status row. Items with no confirmed price yet are
// left untouched; items with no next-day forecast get a zero change. In
// dry-run mode the rows are computed and logged but nothing is written.
// Returns the number of rows updated (or that would have been).
func (u *Updater) Run(ctx context.Context, dryRun bool) (int, error) {
	ids, err := u.store.ItemIDs(ctx)
	if err != nil {
		return 0, err
	}

	actuals, err := u.actuals.LatestActuals(ctx)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return updated, err
		}

		latest, ok := actuals[id]
		if !ok || latest.Price <= 0 {
			u.log.Debug().Int("item_id", id).Msg("no confirmed price, leaving status row as is")
			continue
		}

		row, err := u.compute(ctx, id, latest)
		if err != nil {
			return updated, err
		}

		if dryRun {
			u.log.Info().
				Int("item_id", row.ItemID).
				Float64("latest_price", row.LatestPrice).
				Float64("price_change", row.PriceChange).
				Msg("dry-run: would update status row")
			updated++
			continue
		}

		if err := u.store.UpdateRow(ctx, row); err != nil {
			return updated, err
		}
		u.cacheRow(ctx, row)
		updated++
	}

	u.log.Info().Int("updated", updated).Bool("dry_run", dryRun).Msg("status update completed")
	return updated, nil
}

// compute builds one status row: the predicted change compares the
// freshest forecast for the day after the latest confirmed price against
// that price.
func (u *Updater) compute(ctx context.Context, id int, latest marketdata.LatestActual) (Row, error) {
	row := Row{
		ItemID:      id,
		LatestPrice: round2(latest.Price),
		UpdatedAt:   u.now(),
	}

	next := latest.Date.AddDate(0, 0, 1)
	predicted, ok, err := u.predictions.LatestPredictionForTarget(ctx, id, next)
	if err != nil {
		return row, err
	}
	if ok {
		row.PriceChange = round2((predicted - latest.Price) / latest.Price * 100)
	}
	return row, nil
}

// cacheRow is best effort: a cache failure never fails the run.
func (u *Updater) cacheRow(ctx context.Context, row Row) {
	if u.cache == nil {
		return
	}
	if err := u.cache.Set(ctx, CacheKey(row.ItemID), row, cacheTTL); err != nil {
		u.log.Warn().Err(err).Int("item_id", row.ItemID).Msg("status cache write failed")
	}
}

// CacheKey names an item's cached status row.
func CacheKey(itemID int) string {
	return "status:item:" + strconv.Itoa(itemID)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
