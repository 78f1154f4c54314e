// Package features derives the model input vector for one item on one
// day from its observation history.
package features

import (
	"math"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/lorwen/vegepredict/internal/contracts"
	"github.com/lorwen/vegepredict/internal/timeseries"
)

var (
	priceLags      = []int{1, 3, 7, 14, 30}
	priceWindows   = []int{7, 14, 30}
	weatherWindows = []int{3, 7, 14, 30}
)

// Builder derives feature vectors. It is stateless and safe for
// concurrent use.
type Builder struct {
	log zerolog.Logger
}

// NewBuilder creates a feature builder.
func NewBuilder(log zerolog.Logger) *Builder {
	return &Builder{log: log.With().Str("component", "features.builder").Logger()}
}

// Build produces the feature vector for the LAST record of history. The
// records must be in ascending date order; the last record is the day
// being featurized and may carry no price (its price is what the model
// will predict). Lag and rolling positions are counted over records, not
// calendar days, so market closures shrink samples instead of producing
// fabricated prices.
//
// Every feature that cannot be computed is emitted as 0, a deliberate
// bias toward "no signal" rather than propagating missingness.
func (b *Builder) Build(history []contracts.DailyRecord) contracts.FeatureVector {
	fv := make(contracts.FeatureVector)
	if len(history) == 0 {
		return fv
	}
	last := len(history) - 1

	b.addCalendarFeatures(fv, history[last].Date)
	b.addPriceFeatures(fv, history)
	b.addWeatherFeatures(fv, history)

	// Neutral default for anything that stayed undefined.
	for name, v := range fv {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			fv[name] = 0
		}
	}
	return fv
}

// addCalendarFeatures adds deterministic functions of the base date.
// Day-of-week is Monday-based to match the merged feature tables.
func (b *Builder) addCalendarFeatures(fv contracts.FeatureVector, date time.Time) {
	fv["dayofweek"] = float64((int(date.Weekday()) + 6) % 7)
	doy := float64(date.YearDay())
	fv["dayofyear"] = doy
	fv["day_sin"] = math.Sin(2 * math.Pi * doy / 365.0)
	fv["day_cos"] = math.Cos(2 * math.Pi * doy / 365.0)
}

func (b *Builder) addPriceFeatures(fv contracts.FeatureVector, history []contracts.DailyRecord) {
	prices := priceSeries(history)
	last := len(prices) - 1
	// prior excludes the featurized day itself: rolling statistics must
	// only see confirmed (or earlier-horizon predicted) prices.
	prior := prices[:last]

	for _, lag := range priceLags {
		fv[lagName(lag)] = timeseries.At(prices, lag)
	}

	for _, w := range priceWindows {
		fv[maName(w)] = timeseries.RollingMean(prior, w, timeseries.RelaxedMinPeriods(w))
	}

	fv["y_change_1"] = timeseries.At(prices, 1) - timeseries.At(prices, 2)

	fv["y_volatility_7"] = timeseries.RollingStd(prior, 7, 3)
	fv["y_volatility_14"] = timeseries.RollingStd(prior, 14, 5)

	// Comparison features collapse to 0 (no signal) whenever either side
	// is unknown, which is always the case on the day being forecast.
	fv["y_above_ma7"] = aboveFlag(prices[last], fv[maName(7)])
	fv["y_above_ma30"] = aboveFlag(prices[last], fv[maName(30)])
}

func (b *Builder) addWeatherFeatures(fv contracts.FeatureVector, history []contracts.DailyRecord) {
	for _, field := range contracts.WeatherFields {
		raw := weatherSeries(history, field)
		filled := timeseries.Impute(raw)
		last := len(filled) - 1
		prior := filled[:last]

		fv[field] = filled[last]

		for _, w := range weatherWindows {
			mp := timeseries.RelaxedMinPeriods(w)
			fv[rollName(field, "ma", w)] = timeseries.RollingMean(prior, w, mp)
			fv[rollName(field, "std", w)] = timeseries.RollingStd(prior, w, mp)
		}

		fv[field+"_delta1"] = timeseries.At(filled, 1) - timeseries.At(filled, 2)

		// z-score of yesterday's value against its trailing 30-day
		// distribution; zero when the deviation is undefined or flat.
		mean30 := timeseries.RollingMean(prior, 30, 5)
		std30 := timeseries.RollingStd(prior, 30, 5)
		z := (timeseries.At(filled, 1) - mean30) / std30
		if math.IsNaN(z) || math.IsInf(z, 0) || std30 == 0 {
			z = 0
		}
		fv[field+"_z30"] = z
	}
}

// Degenerate reports whether the vector carries no usable signal for the
// given feature names: every selected feature missing or zero.
func Degenerate(fv contracts.FeatureVector, names []string) bool {
	for _, name := range names {
		if v, ok := fv[name]; ok && v != 0 && !math.IsNaN(v) {
			return false
		}
	}
	return true
}

// Select maps the vector onto the model's feature order, substituting 0
// for anything absent.
func Select(fv contracts.FeatureVector, names []string) []float64 {
	out := make([]float64, len(names))
	for i, name := range names {
		if v, ok := fv[name]; ok && !math.IsNaN(v) {
			out[i] = v
		}
	}
	return out
}

func priceSeries(history []contracts.DailyRecord) []float64 {
	v := make([]float64, len(history))
	for i, r := range history {
		if r.HasPrice {
			v[i] = r.Price
		} else {
			v[i] = timeseries.Missing()
		}
	}
	return v
}

func weatherSeries(history []contracts.DailyRecord, field string) []float64 {
	v := make([]float64, len(history))
	for i, r := range history {
		if x, ok := r.Weather[field]; ok {
			v[i] = x
		} else {
			v[i] = timeseries.Missing()
		}
	}
	return v
}

func aboveFlag(price, ma float64) float64 {
	if math.IsNaN(price) || math.IsNaN(ma) {
		return 0
	}
	if price > ma {
		return 1
	}
	return 0
}

func lagName(lag int) string { return "y_lag_" + strconv.Itoa(lag) }
func maName(w int) string    { return "y_ma_" + strconv.Itoa(w) }

func rollName(field, stat string, w int) string {
	return field + "_" + stat + "_" + strconv.Itoa(w)
}
