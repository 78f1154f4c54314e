package forecast

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorwen/vegepredict/internal/contracts"
	"github.com/lorwen/vegepredict/internal/model"
)

type fakeSession struct {
	src *fakeSource
}

func (s *fakeSession) History(_ context.Context, itemID int, _ contracts.VolatilityClass, cutoff time.Time, limit int) ([]contracts.DailyRecord, error) {
	if s.src.failItems[itemID] {
		return nil, errors.New("simulated read failure")
	}
	n := s.src.records[itemID]
	if n > limit {
		n = limit
	}
	recs := make([]contracts.DailyRecord, n)
	for i := 0; i < n; i++ {
		offset := n - i
		recs[i] = contracts.DailyRecord{
			ItemID:   itemID,
			Date:     cutoff.AddDate(0, 0, -offset),
			Price:    50 + float64(i),
			HasPrice: true,
			Weather:  map[string]float64{contracts.WeatherTemperature: 25},
		}
	}
	return recs, nil
}

func (s *fakeSession) Release() {
	s.src.mu.Lock()
	s.src.released++
	s.src.mu.Unlock()
}

type fakeSource struct {
	mu        sync.Mutex
	records   map[int]int  // itemID -> history rows available
	failItems map[int]bool // itemID -> history read fails
	failAll   bool

	acquired int
	released int
}

func (s *fakeSource) Session(context.Context) (HistorySession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return nil, errors.New("pool exhausted")
	}
	s.acquired++
	return &fakeSession{src: s}, nil
}

type fakeSink struct {
	mu   sync.Mutex
	rows []contracts.Prediction
	fail bool
}

func (s *fakeSink) SavePredictions(_ context.Context, rows []contracts.Prediction) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return 0, errors.New("simulated write failure")
	}
	s.rows = append(s.rows, rows...)
	return len(rows), nil
}

func constLookup(m model.Model) ModelLookup {
	return func(contracts.Item) (model.Model, error) { return m, nil }
}

func testItems(n int) []contracts.Item {
	items := make([]contracts.Item, n)
	for i := range items {
		items[i] = contracts.Item{ID: i + 1, Name: fmt.Sprintf("item-%d", i+1), Class: contracts.VolatilityHigh}
	}
	return items
}

func newTestCoordinator(src *fakeSource, sink *fakeSink, lookup ModelLookup, workers int) *Coordinator {
	walker := newTestWalker()
	cfg := Config{Workers: workers, HistoryDays: 180}
	return NewCoordinator(src, sink, lookup, walker, cfg, zerolog.Nop())
}

func TestCoordinator_MultiDateRun(t *testing.T) {
	src := &fakeSource{records: map[int]int{1: 40, 2: 40, 3: 40}}
	sink := &fakeSink{}
	c := newTestCoordinator(src, sink, constLookup(lagPlusOne()), 3)

	dates := DateRange(
		time.Date(2025, 8, 18, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 8, 20, 0, 0, 0, 0, time.UTC),
	)
	require.Len(t, dates, 3)

	summary, err := c.Run(context.Background(), dates, testItems(3))
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Dates)
	assert.Equal(t, 3, summary.DatesCompleted)
	assert.Zero(t, summary.DatesFailed)
	assert.Equal(t, 9, summary.ItemsAttempted)
	assert.Equal(t, 9, summary.ItemsSucceeded)
	assert.Equal(t, 9*7, summary.RowsWritten)
	assert.Len(t, sink.rows, 9*7)
}

func TestCoordinator_NoDuplicateKeys(t *testing.T) {
	src := &fakeSource{records: map[int]int{1: 40, 2: 40}}
	sink := &fakeSink{}
	c := newTestCoordinator(src, sink, constLookup(lagPlusOne()), 4)

	dates := DateRange(
		time.Date(2025, 8, 18, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 8, 21, 0, 0, 0, 0, time.UTC),
	)

	_, err := c.Run(context.Background(), dates, testItems(2))
	require.NoError(t, err)

	seen := make(map[string]int)
	for _, row := range sink.rows {
		key := fmt.Sprintf("%d/%s/%s", row.ItemID, row.PredictDate.Format("2006-01-02"), row.TargetDate.Format("2006-01-02"))
		seen[key]++
	}
	for key, n := range seen {
		assert.Equal(t, 1, n, "duplicate forecast row for %s", key)
	}
}

func TestCoordinator_FailingItemIsolated(t *testing.T) {
	src := &fakeSource{
		records:   map[int]int{1: 40, 2: 40, 3: 40},
		failItems: map[int]bool{2: true},
	}
	sink := &fakeSink{}
	c := newTestCoordinator(src, sink, constLookup(lagPlusOne()), 2)

	dates := DateRange(
		time.Date(2025, 8, 19, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 8, 20, 0, 0, 0, 0, time.UTC),
	)

	summary, err := c.Run(context.Background(), dates, testItems(3))
	require.NoError(t, err)

	assert.Equal(t, 2, summary.ItemsFailed)
	assert.Equal(t, 4, summary.ItemsSucceeded)
	assert.Equal(t, 4*7, summary.RowsWritten, "healthy items must still be persisted")
	assert.Equal(t, 2, summary.DatesCompleted, "an item failure does not fail its date")
}

func TestCoordinator_InsufficientHistoryCounted(t *testing.T) {
	src := &fakeSource{records: map[int]int{1: 40, 2: 10}}
	sink := &fakeSink{}
	c := newTestCoordinator(src, sink, constLookup(lagPlusOne()), 1)

	dates := []time.Time{time.Date(2025, 8, 20, 0, 0, 0, 0, time.UTC)}

	summary, err := c.Run(context.Background(), dates, testItems(2))
	require.NoError(t, err)

	assert.Equal(t, 1, summary.SkippedInsufficientHistory)
	assert.Equal(t, 1, summary.ItemsSucceeded)
	assert.Zero(t, summary.ItemsFailed, "too little history is a skip, not a failure")
	assert.Len(t, sink.rows, 7)
}

func TestCoordinator_MissingModelCounted(t *testing.T) {
	src := &fakeSource{records: map[int]int{1: 40}}
	sink := &fakeSink{}
	lookup := func(item contracts.Item) (model.Model, error) {
		return nil, fmt.Errorf("item %d: %w", item.ID, ErrMissingModel)
	}
	c := newTestCoordinator(src, sink, lookup, 1)

	dates := []time.Time{time.Date(2025, 8, 20, 0, 0, 0, 0, time.UTC)}

	summary, err := c.Run(context.Background(), dates, testItems(1))
	require.NoError(t, err)

	assert.Equal(t, 1, summary.SkippedMissingModel)
	assert.Zero(t, summary.ItemsFailed, "a missing artifact is a skip, not a failure")
	assert.Zero(t, summary.RowsWritten)
	assert.Empty(t, sink.rows)
}

func TestRegistryLookup_MissingArtifact(t *testing.T) {
	lookup := RegistryLookup(map[contracts.VolatilityClass]*model.Registry{})

	_, err := lookup(contracts.Item{ID: 23, Class: contracts.VolatilityHigh})
	assert.ErrorIs(t, err, ErrMissingModel)
}

func TestCoordinator_SessionFailureFailsDate(t *testing.T) {
	src := &fakeSource{failAll: true}
	sink := &fakeSink{}
	c := newTestCoordinator(src, sink, constLookup(lagPlusOne()), 1)

	dates := DateRange(
		time.Date(2025, 8, 19, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 8, 20, 0, 0, 0, 0, time.UTC),
	)

	summary, err := c.Run(context.Background(), dates, testItems(3))
	require.NoError(t, err, "partition failures are reported in the summary, not as a run error")

	assert.Equal(t, 2, summary.DatesFailed)
	assert.Equal(t, 6, summary.ItemsFailed)
	assert.Empty(t, sink.rows)
}

func TestCoordinator_SessionsReleased(t *testing.T) {
	src := &fakeSource{records: map[int]int{1: 40}}
	sink := &fakeSink{}
	c := newTestCoordinator(src, sink, constLookup(lagPlusOne()), 2)

	dates := DateRange(
		time.Date(2025, 8, 18, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 8, 20, 0, 0, 0, 0, time.UTC),
	)

	_, err := c.Run(context.Background(), dates, testItems(1))
	require.NoError(t, err)

	assert.Equal(t, src.acquired, src.released, "every acquired session must be released")
	assert.Equal(t, 3, src.acquired, "one session per date partition")
}

func TestCoordinator_SingleDateFansOutByItem(t *testing.T) {
	src := &fakeSource{records: map[int]int{1: 40, 2: 40, 3: 40, 4: 40}}
	sink := &fakeSink{}
	c := newTestCoordinator(src, sink, constLookup(lagPlusOne()), 4)

	dates := []time.Time{time.Date(2025, 8, 20, 0, 0, 0, 0, time.UTC)}

	summary, err := c.Run(context.Background(), dates, testItems(4))
	require.NoError(t, err)

	assert.Equal(t, 4, src.acquired, "single-date runs take one session per item")
	assert.Equal(t, 4, summary.ItemsSucceeded)
	assert.Len(t, sink.rows, 4*7)
}

func TestCoordinator_EmptyInputs(t *testing.T) {
	c := newTestCoordinator(&fakeSource{}, &fakeSink{}, constLookup(lagPlusOne()), 1)

	summary, err := c.Run(context.Background(), nil, testItems(1))
	require.NoError(t, err)
	assert.Equal(t, &contracts.RunSummary{}, summary)

	summary, err = c.Run(context.Background(), []time.Time{time.Now()}, nil)
	require.NoError(t, err)
	assert.Equal(t, &contracts.RunSummary{}, summary)
}

func TestDateRange(t *testing.T) {
	from := time.Date(2025, 8, 18, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 8, 21, 0, 0, 0, 0, time.UTC)

	dates := DateRange(from, to)
	require.Len(t, dates, 4)
	assert.Equal(t, from, dates[0])
	assert.Equal(t, to, dates[3])

	assert.Len(t, DateRange(from, from), 1)
	assert.Empty(t, DateRange(to, from))
}

// The walker must be safe to share: it carries no per-forecast state.
func TestCoordinator_SharedWalker(t *testing.T) {
	src := &fakeSource{records: map[int]int{}}
	for i := 1; i <= 8; i++ {
		src.records[i] = 40
	}
	sink := &fakeSink{}
	c := newTestCoordinator(src, sink, constLookup(lagPlusOne()), 8)

	dates := []time.Time{time.Date(2025, 8, 20, 0, 0, 0, 0, time.UTC)}
	summary, err := c.Run(context.Background(), dates, testItems(8))
	require.NoError(t, err)
	assert.Equal(t, 8*7, summary.RowsWritten)
}

func TestCoordinator_SinkFailureCountsItem(t *testing.T) {
	src := &fakeSource{records: map[int]int{1: 40}}
	sink := &fakeSink{fail: true}
	c := newTestCoordinator(src, sink, constLookup(lagPlusOne()), 1)

	dates := []time.Time{time.Date(2025, 8, 20, 0, 0, 0, 0, time.UTC)}
	summary, err := c.Run(context.Background(), dates, testItems(1))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ItemsFailed)
	assert.Zero(t, summary.RowsWritten)
}
