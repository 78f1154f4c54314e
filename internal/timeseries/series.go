// Package timeseries provides gap filling and rolling statistics over
// daily observation series. Missing values are represented as NaN.
//
// Weather-like series are gap-filled with forward fill then backward
// fill. Price series are never filled that way: rolling statistics over
// prices instead relax their minimum sample size so short market-closure
// gaps shrink the sample rather than fabricate values.
package timeseries

import "math"

// Missing is the sentinel for an absent value.
func Missing() float64 { return math.NaN() }

// IsMissing reports whether v is the missing sentinel.
func IsMissing(v float64) bool { return math.IsNaN(v) }

// ForwardFill propagates the last valid value over subsequent gaps.
// Leading gaps are left untouched.
func ForwardFill(v []float64) []float64 {
	out := make([]float64, len(v))
	last := math.NaN()
	for i, x := range v {
		if !math.IsNaN(x) {
			last = x
		}
		out[i] = last
	}
	return out
}

// BackwardFill propagates the next valid value over preceding gaps.
// Trailing gaps are left untouched.
func BackwardFill(v []float64) []float64 {
	out := make([]float64, len(v))
	next := math.NaN()
	for i := len(v) - 1; i >= 0; i-- {
		if !math.IsNaN(v[i]) {
			next = v[i]
		}
		out[i] = next
	}
	return out
}

// Impute forward-fills then backward-fills, so interior and trailing gaps
// take the last valid value and leading gaps take the first valid value.
// A series with no valid value at all comes back unchanged.
func Impute(v []float64) []float64 {
	return BackwardFill(ForwardFill(v))
}

// RelaxedMinPeriods is the minimum sample size used for a rolling window
// of size w: one third of the window, floored at 1.
func RelaxedMinPeriods(w int) int {
	mp := w / 3
	if mp < 1 {
		mp = 1
	}
	return mp
}

// window returns the valid values among the last w elements of v.
func window(v []float64, w int) []float64 {
	start := len(v) - w
	if start < 0 {
		start = 0
	}
	var valid []float64
	for _, x := range v[start:] {
		if !math.IsNaN(x) {
			valid = append(valid, x)
		}
	}
	return valid
}

// RollingMean returns the mean of the valid values among the last w
// elements of v, or NaN when fewer than minPeriods are valid.
func RollingMean(v []float64, w, minPeriods int) float64 {
	valid := window(v, w)
	if len(valid) < minPeriods {
		return math.NaN()
	}
	var sum float64
	for _, x := range valid {
		sum += x
	}
	return sum / float64(len(valid))
}

// RollingStd returns the sample standard deviation of the valid values
// among the last w elements of v, or NaN when fewer than minPeriods are
// valid. At least two samples are required for a defined deviation.
func RollingStd(v []float64, w, minPeriods int) float64 {
	valid := window(v, w)
	if len(valid) < minPeriods || len(valid) < 2 {
		return math.NaN()
	}
	var sum float64
	for _, x := range valid {
		sum += x
	}
	mean := sum / float64(len(valid))
	var ss float64
	for _, x := range valid {
		d := x - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(valid)-1))
}

// At returns the element k positions before the end of v, or NaN when the
// series is too short.
func At(v []float64, k int) float64 {
	i := len(v) - 1 - k
	if i < 0 {
		return math.NaN()
	}
	return v[i]
}
