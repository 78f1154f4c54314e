// Package merge assembles the per-class feature tables: for every
// catalogue item and day it joins the confirmed daily average price with
// a weather sample blended across growing regions by normalized yield
// weights.
package merge

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lorwen/vegepredict/internal/contracts"
)

// Source reads the raw observation tables for one day.
type Source interface {
	DayPrices(ctx context.Context, date time.Time) (map[int]float64, error)
	DayWeather(ctx context.Context, date time.Time) (map[int]map[string]float64, error)
	YieldWeights(ctx context.Context, year int) (map[int]map[int]float64, error)
}

// Sink persists merged rows into the per-class feature tables.
type Sink interface {
	UpsertMerged(ctx context.Context, rows []Row) (int, error)
}

// Row is one merged observation, ready for the feature tables. A nil
// Price marks a day the market did not trade the item; the row is still
// written so the weather series stays dense.
type Row struct {
	Item    contracts.Item
	Date    time.Time
	Price   *float64
	Weather map[string]float64
}

// Summary reports one merge run.
type Summary struct {
	Dates       int
	DatesFailed int
	RowsWritten int
}

// Builder runs the merge stage.
type Builder struct {
	source  Source
	sink    Sink
	workers int
	log     zerolog.Logger
}

// NewBuilder wires a merge builder. workers bounds concurrent dates.
func NewBuilder(source Source, sink Sink, workers int, log zerolog.Logger) *Builder {
	if workers < 1 {
		workers = 1
	}
	return &Builder{
		source:  source,
		sink:    sink,
		workers: workers,
		log:     log.With().Str("component", "merge").Logger(),
	}
}

// Run merges every day in the closed range for the given items, using
// the yield weights of one production year. A failing day is logged and
// counted but does not abort the rest of the range.
func (b *Builder) Run(ctx context.Context, from, to time.Time, year int, items []contracts.Item) (*Summary, error) {
	weights, err := b.source.YieldWeights(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("load yield weights: %w", err)
	}
	if len(weights) == 0 {
		return nil, fmt.Errorf("no yield weights for year %d", year)
	}

	type dayResult struct {
		date    time.Time
		written int
		err     error
	}

	var dates []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}

	results := make(chan dayResult, len(dates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for _, date := range dates {
		date := date // per-iteration copy; module is compiled with a pre-1.22 toolchain
		g.Go(func() error {
			written, err := b.mergeDay(gctx, date, weights, items)
			results <- dayResult{date: date, written: written, err: err}
			return nil
		})
	}
	_ = g.Wait()
	close(results)

	summary := &Summary{Dates: len(dates)}
	for res := range results {
		if res.err != nil {
			summary.DatesFailed++
			b.log.Error().Err(res.err).Time("date", res.date).Msg("merge day failed")
			continue
		}
		summary.RowsWritten += res.written
	}

	b.log.Info().
		Int("dates", summary.Dates).
		Int("dates_failed", summary.DatesFailed).
		Int("rows_written", summary.RowsWritten).
		Msg("merge run completed")
	return summary, ctx.Err()
}

func (b *Builder) mergeDay(ctx context.Context, date time.Time, weights map[int]map[int]float64, items []contracts.Item) (int, error) {
	rows, err := b.BuildDay(ctx, date, weights, items)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	written, err := b.sink.UpsertMerged(ctx, rows)
	if err != nil {
		return 0, fmt.Errorf("upsert merged rows: %w", err)
	}
	return written, nil
}

// BuildDay produces the merged rows for one day. Items with no yield
// weights are skipped; items whose regions all lack weather that day get
// a row with an empty weather sample.
func (b *Builder) BuildDay(ctx context.Context, date time.Time, weights map[int]map[int]float64, items []contracts.Item) ([]Row, error) {
	prices, err := b.source.DayPrices(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("day prices: %w", err)
	}
	weather, err := b.source.DayWeather(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("day weather: %w", err)
	}

	rows := make([]Row, 0, len(items))
	for _, item := range items {
		w, ok := weights[item.ID]
		if !ok {
			b.log.Debug().Int("item_id", item.ID).Msg("no yield weights, skipping item")
			continue
		}

		row := Row{
			Item:    item,
			Date:    date,
			Weather: weightedWeather(w, weather),
		}
		if p, ok := prices[item.ID]; ok && p > 0 {
			price := p
			row.Price = &price
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// weightedWeather blends per-city samples into one per field. Cities
// missing a field drop out of that field's average, and the remaining
// weights are re-normalized so partial coverage does not shrink values.
func weightedWeather(weights map[int]float64, cities map[int]map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(contracts.WeatherFields))

	for _, field := range contracts.WeatherFields {
		var sum, wsum float64
		for cityID, weight := range weights {
			sample, ok := cities[cityID]
			if !ok {
				continue
			}
			v, ok := sample[field]
			if !ok {
				continue
			}
			sum += weight * v
			wsum += weight
		}
		if wsum > 0 {
			out[field] = sum / wsum
		}
	}
	return out
}
