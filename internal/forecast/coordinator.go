package forecast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lorwen/vegepredict/internal/contracts"
	"github.com/lorwen/vegepredict/internal/model"
)

// HistorySession is a per-worker view of the external observation store.
// Each worker acquires its own session at the start of its partition and
// releases it unconditionally at the end.
type HistorySession interface {
	// History returns the item's most recent valid records strictly
	// before cutoff, ascending by date, at most limit rows.
	History(ctx context.Context, itemID int, class contracts.VolatilityClass, cutoff time.Time, limit int) ([]contracts.DailyRecord, error)
	Release()
}

// HistorySource hands out history sessions.
type HistorySource interface {
	Session(ctx context.Context) (HistorySession, error)
}

// Sink persists forecast rows.
type Sink interface {
	SavePredictions(ctx context.Context, rows []contracts.Prediction) (int, error)
}

// ModelLookup resolves the pretrained model for an item's volatility
// class. An absent artifact is reported through ErrMissingModel. The
// coordinator never chooses a model beyond this fixed mapping.
type ModelLookup func(item contracts.Item) (model.Model, error)

// RegistryLookup builds a ModelLookup over the per-class registries
// loaded at startup.
func RegistryLookup(registries map[contracts.VolatilityClass]*model.Registry) ModelLookup {
	return func(item contracts.Item) (model.Model, error) {
		reg, ok := registries[item.Class]
		if !ok {
			return nil, fmt.Errorf("class %s: %w", item.Class, ErrMissingModel)
		}
		mdl, ok := reg.Model(item.ID)
		if !ok {
			return nil, fmt.Errorf("item %d: %w", item.ID, ErrMissingModel)
		}
		return mdl, nil
	}
}

// Config bounds a batch run.
type Config struct {
	// Workers caps concurrent date partitions. 1 forces strictly
	// sequential processing.
	Workers int
	// HistoryDays is the historical window, counted as most recent valid
	// records rather than calendar days.
	HistoryDays int
}

// DefaultConfig mirrors the production defaults.
func DefaultConfig() Config {
	return Config{Workers: 10, HistoryDays: 180}
}

// Coordinator partitions a predict-date range across bounded concurrent
// workers. Work is partitioned by date: one worker owns all items of its
// date, processed sequentially for predictable ordering and failure
// attribution. A single-date request instead fans out by item, the only
// other partition that preserves the same isolation guarantees.
type Coordinator struct {
	source HistorySource
	sink   Sink
	lookup ModelLookup
	walker *Walker
	cfg    Config
	log    zerolog.Logger
}

// NewCoordinator wires a batch coordinator.
func NewCoordinator(source HistorySource, sink Sink, lookup ModelLookup, walker *Walker, cfg Config, log zerolog.Logger) *Coordinator {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.HistoryDays < 1 {
		cfg.HistoryDays = DefaultConfig().HistoryDays
	}
	return &Coordinator{
		source: source,
		sink:   sink,
		lookup: lookup,
		walker: walker,
		cfg:    cfg,
		log:    log.With().Str("component", "forecast.coordinator").Logger(),
	}
}

// dateResult is the outcome of one date partition, reported back to the
// coordinator over a channel.
type dateResult struct {
	date    time.Time
	summary contracts.RunSummary
	err     error
}

// Run produces and persists all prediction rows for every (item, date)
// pair in the closed date range. Failures are isolated: a failing item
// does not abort its date, and a failing date does not abort other
// dates. Only the summary reports them.
func (c *Coordinator) Run(ctx context.Context, dates []time.Time, items []contracts.Item) (*contracts.RunSummary, error) {
	if len(dates) == 0 || len(items) == 0 {
		return &contracts.RunSummary{}, nil
	}

	c.log.Info().
		Int("dates", len(dates)).
		Int("items", len(items)).
		Int("workers", c.cfg.Workers).
		Msg("starting batch run")

	if len(dates) == 1 && c.cfg.Workers > 1 {
		return c.runSingleDateFanOut(ctx, dates[0], items)
	}

	results := make(chan dateResult, len(dates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Workers)
	for _, date := range dates {
		date := date // per-iteration copy; module is compiled with a pre-1.22 toolchain
		g.Go(func() error {
			results <- c.processDate(gctx, date, items)
			return nil
		})
	}
	// Workers never return errors; failures travel in results.
	_ = g.Wait()
	close(results)

	summary := &contracts.RunSummary{}
	for res := range results {
		summary.Add(res.summary)
		if res.err != nil {
			c.log.Error().Err(res.err).Time("predict_date", res.date).Msg("date partition failed")
		}
	}

	c.logSummary(summary)
	return summary, ctx.Err()
}

// processDate forecasts every item for one predict date inside one
// worker, with its own store session.
func (c *Coordinator) processDate(ctx context.Context, date time.Time, items []contracts.Item) dateResult {
	res := dateResult{date: date, summary: contracts.RunSummary{Dates: 1}}

	session, err := c.source.Session(ctx)
	if err != nil {
		res.summary.DatesFailed = 1
		res.summary.ItemsFailed = len(items)
		res.err = &StoreError{Op: "acquire session", Err: err}
		return res
	}
	defer session.Release()

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			res.err = err
			break
		}
		c.processItem(ctx, session, item, date, &res.summary)
	}

	if res.err == nil {
		res.summary.DatesCompleted = 1
		c.log.Info().
			Time("predict_date", date).
			Int("succeeded", res.summary.ItemsSucceeded).
			Int("failed", res.summary.ItemsFailed).
			Int("rows", res.summary.RowsWritten).
			Msg("date partition completed")
	} else {
		res.summary.DatesFailed = 1
	}
	return res
}

// runSingleDateFanOut partitions a single date's work by item instead.
func (c *Coordinator) runSingleDateFanOut(ctx context.Context, date time.Time, items []contracts.Item) (*contracts.RunSummary, error) {
	c.log.Info().Time("predict_date", date).Msg("single date, fanning out by item")

	results := make(chan dateResult, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Workers)
	for _, item := range items {
		item := item // per-iteration copy; module is compiled with a pre-1.22 toolchain
		g.Go(func() error {
			var res dateResult
			session, err := c.source.Session(gctx)
			if err != nil {
				res.summary.ItemsFailed = 1
				res.err = &StoreError{Op: "acquire session", Err: err}
				results <- res
				return nil
			}
			defer session.Release()

			c.processItem(gctx, session, item, date, &res.summary)
			results <- res
			return nil
		})
	}
	_ = g.Wait()
	close(results)

	summary := &contracts.RunSummary{Dates: 1, DatesCompleted: 1}
	for res := range results {
		summary.Add(res.summary)
		if res.err != nil {
			c.log.Error().Err(res.err).Time("predict_date", date).Msg("item worker failed")
		}
	}

	c.logSummary(summary)
	return summary, ctx.Err()
}

// processItem runs one item's walk-forward forecast and persists the
// rows, folding the outcome into the summary.
func (c *Coordinator) processItem(ctx context.Context, session HistorySession, item contracts.Item, date time.Time, summary *contracts.RunSummary) {
	summary.ItemsAttempted++

	mdl, err := c.lookup(item)
	switch {
	case errors.Is(err, ErrMissingModel):
		summary.SkippedMissingModel++
		c.log.Warn().Err(err).
			Int("item_id", item.ID).
			Str("class", string(item.Class)).
			Msg("no model artifact, skipping item")
		return
	case err != nil:
		summary.ItemsFailed++
		c.log.Error().Err(err).
			Int("item_id", item.ID).
			Msg("model lookup failed")
		return
	}

	// History is cut off at the predict date: the base date (predict
	// date - 1) is the last day with confirmed observations.
	history, err := session.History(ctx, item.ID, item.Class, date, c.cfg.HistoryDays)
	if err != nil {
		summary.ItemsFailed++
		c.log.Error().Err(err).
			Int("item_id", item.ID).
			Time("predict_date", date).
			Msg("history read failed")
		return
	}

	rows, err := c.walker.Forecast(ctx, item.ID, mdl, history, date)
	switch {
	case errors.Is(err, ErrInsufficientHistory):
		summary.SkippedInsufficientHistory++
		c.log.Debug().
			Int("item_id", item.ID).
			Int("records", len(history)).
			Msg("insufficient history, skipping item")
		return
	case err != nil:
		summary.ItemsFailed++
		c.log.Error().Err(err).
			Int("item_id", item.ID).
			Time("predict_date", date).
			Msg("forecast failed")
		return
	}

	written, err := c.sink.SavePredictions(ctx, rows)
	if err != nil {
		summary.ItemsFailed++
		c.log.Error().Err(err).
			Int("item_id", item.ID).
			Time("predict_date", date).
			Msg("persist failed")
		return
	}

	summary.ItemsSucceeded++
	summary.RowsWritten += written
}

func (c *Coordinator) logSummary(s *contracts.RunSummary) {
	c.log.Info().
		Int("dates", s.Dates).
		Int("dates_completed", s.DatesCompleted).
		Int("dates_failed", s.DatesFailed).
		Int("items_attempted", s.ItemsAttempted).
		Int("items_succeeded", s.ItemsSucceeded).
		Int("items_failed", s.ItemsFailed).
		Int("skipped_insufficient_history", s.SkippedInsufficientHistory).
		Int("skipped_missing_model", s.SkippedMissingModel).
		Int("rows_written", s.RowsWritten).
		Msg("batch run summary")
}

// DateRange expands a closed interval into its calendar days.
func DateRange(from, to time.Time) []time.Time {
	var out []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}
