package features

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorwen/vegepredict/internal/contracts"
)

func day(n int) time.Time {
	return time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

// histWithPrices builds a history ending with an unpriced target row.
func histWithPrices(prices []float64) []contracts.DailyRecord {
	recs := make([]contracts.DailyRecord, 0, len(prices)+1)
	for i, p := range prices {
		recs = append(recs, contracts.DailyRecord{
			ItemID:   1,
			Date:     day(i),
			Price:    p,
			HasPrice: true,
			Weather:  map[string]float64{contracts.WeatherTemperature: 25.0 + float64(i)},
		})
	}
	recs = append(recs, contracts.DailyRecord{
		ItemID:  1,
		Date:    day(len(prices)),
		Weather: map[string]float64{contracts.WeatherTemperature: 25.0 + float64(len(prices))},
	})
	return recs
}

func TestBuild_LagFeatures(t *testing.T) {
	b := NewBuilder(zerolog.Nop())
	fv := b.Build(histWithPrices([]float64{10, 11, 12, 13, 14, 15, 16}))

	assert.InDelta(t, 16, fv["y_lag_1"], 1e-9)
	assert.InDelta(t, 14, fv["y_lag_3"], 1e-9)
	assert.InDelta(t, 10, fv["y_lag_7"], 1e-9)
	// Lags past the start of history fall back to the neutral default.
	assert.InDelta(t, 0, fv["y_lag_14"], 1e-9)
	assert.InDelta(t, 0, fv["y_lag_30"], 1e-9)
}

func TestBuild_RollingExcludesTargetDay(t *testing.T) {
	b := NewBuilder(zerolog.Nop())
	fv := b.Build(histWithPrices([]float64{10, 20, 30, 40, 50, 60, 70}))

	// The 7-day moving average covers the seven priced days, never the
	// unpriced target row.
	assert.InDelta(t, 40, fv["y_ma_7"], 1e-9)
	assert.InDelta(t, 70-60, fv["y_change_1"], 1e-9)
}

func TestBuild_AboveMAIsZeroWhenPriceUnknown(t *testing.T) {
	b := NewBuilder(zerolog.Nop())
	fv := b.Build(histWithPrices([]float64{10, 20, 30, 40, 50, 60, 70}))

	// The target day has no price, so a comparison has no signal.
	assert.Zero(t, fv["y_above_ma7"])
	assert.Zero(t, fv["y_above_ma30"])
}

func TestBuild_CalendarFeatures(t *testing.T) {
	b := NewBuilder(zerolog.Nop())
	// 2025-08-04 is a Monday, day 216 of the year.
	hist := []contracts.DailyRecord{{
		ItemID: 1,
		Date:   time.Date(2025, 8, 4, 0, 0, 0, 0, time.UTC),
	}}
	fv := b.Build(hist)

	assert.InDelta(t, 0, fv["dayofweek"], 1e-9)
	assert.InDelta(t, 216, fv["dayofyear"], 1e-9)
	assert.InDelta(t, -0.545227, fv["day_sin"], 1e-4)
}

func TestBuild_WeatherImputedAndRolled(t *testing.T) {
	b := NewBuilder(zerolog.Nop())
	recs := []contracts.DailyRecord{
		{Date: day(0), Price: 10, HasPrice: true, Weather: map[string]float64{contracts.WeatherTemperature: 25.0}},
		{Date: day(1), Price: 11, HasPrice: true, Weather: map[string]float64{}},
		{Date: day(2), Price: 12, HasPrice: true, Weather: map[string]float64{contracts.WeatherTemperature: 31.0}},
		{Date: day(3), Weather: map[string]float64{contracts.WeatherTemperature: 31.0}},
	}
	fv := b.Build(recs)

	// Gap on day 1 forward-fills from day 0: prior series is 25, 25, 31.
	assert.InDelta(t, 27.0, fv["temperature_ma_3"], 1e-9)
	assert.InDelta(t, 31.0, fv["temperature"], 1e-9)
	assert.InDelta(t, 31.0-25.0, fv["temperature_delta1"], 1e-9)
}

func TestBuild_NoNaNLeaks(t *testing.T) {
	b := NewBuilder(zerolog.Nop())
	fv := b.Build(histWithPrices([]float64{10, 11}))

	for name, v := range fv {
		assert.False(t, v != v, "feature %s is NaN", name)
	}
}

func TestDegenerateAndSelect(t *testing.T) {
	fv := contracts.FeatureVector{"a": 0, "b": 1.5}

	assert.True(t, Degenerate(fv, []string{"a", "missing"}))
	assert.False(t, Degenerate(fv, []string{"a", "b"}))

	x := Select(fv, []string{"b", "missing", "a"})
	require.Len(t, x, 3)
	assert.Equal(t, []float64{1.5, 0, 0}, x)
}
