package forecast

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/lorwen/vegepredict/internal/contracts"
	"github.com/lorwen/vegepredict/internal/features"
	"github.com/lorwen/vegepredict/internal/model"
)

const (
	// DefaultHorizon is the number of days forecast ahead of the base date.
	DefaultHorizon = 7
	// DefaultMinHistory is the eligibility threshold: items with fewer
	// valid price records are skipped for the run. Kept low because
	// market closures thin out the series.
	DefaultMinHistory = 20
	// priceFloor clamps model output; a forecast price can never be
	// zero or negative.
	priceFloor = 0.01
)

// Walker drives a pretrained model recursively across the forecast
// horizon. Each horizon step's feature vector is built on the previous
// step's own prediction: true future observations do not exist at
// forecast time, so the steps of one item's forecast are inherently
// sequential and later horizons are strictly more uncertain. The walker
// never reaches for realized data past the predict date.
type Walker struct {
	builder    *features.Builder
	horizon    int
	minHistory int
	log        zerolog.Logger
}

// NewWalker creates a walker with the default horizon. minHistory is
// the eligibility threshold in valid price records; values below 1 fall
// back to DefaultMinHistory.
func NewWalker(builder *features.Builder, minHistory int, log zerolog.Logger) *Walker {
	if minHistory < 1 {
		minHistory = DefaultMinHistory
	}
	return &Walker{
		builder:    builder,
		horizon:    DefaultHorizon,
		minHistory: minHistory,
		log:        log.With().Str("component", "forecast.walker").Logger(),
	}
}

// step is the per-horizon forecasting state. Each transition derives a
// new value instead of mutating shared history, keeping the dependency
// chain between horizon steps explicit.
type step struct {
	history []contracts.DailyRecord
	horizon int
}

// advance appends the synthetic row and returns the next step state.
// The input step is left untouched.
func (s step) advance(row contracts.DailyRecord) step {
	next := make([]contracts.DailyRecord, len(s.history), len(s.history)+1)
	copy(next, s.history)
	return step{history: append(next, row), horizon: s.horizon + 1}
}

// Forecast produces up to horizon prediction rows for one item on one
// predict date. history must be the item's confirmed observations in
// ascending date order, ending no later than the day before predictDate
// (the base date). Returns ErrInsufficientHistory when the item is not
// eligible; individual degenerate days are skipped without aborting the
// remaining horizon.
func (w *Walker) Forecast(
	ctx context.Context,
	itemID int,
	mdl model.Model,
	history []contracts.DailyRecord,
	predictDate time.Time,
) ([]contracts.Prediction, error) {
	if validPriceCount(history) < w.minHistory {
		return nil, ErrInsufficientHistory
	}

	lastWeather := latestWeather(history)

	st := step{history: history}
	var rows []contracts.Prediction

	for st.horizon < w.horizon {
		if err := ctx.Err(); err != nil {
			return rows, err
		}

		targetDate := predictDate.AddDate(0, 0, st.horizon+1)

		// Weather beyond the base date is unknown; carry the most recent
		// observed sample forward for the whole horizon.
		synthetic := contracts.DailyRecord{
			ItemID:    itemID,
			Date:      targetDate,
			Weather:   lastWeather,
			Predicted: true,
		}

		next := st.advance(synthetic)
		fv := w.builder.Build(next.history)

		if features.Degenerate(fv, mdl.Features()) {
			w.log.Warn().
				Int("item_id", itemID).
				Time("target_date", targetDate).
				Int("horizon", st.horizon+1).
				Msg("degenerate feature vector, skipping day")
			st = next
			continue
		}

		price := mdl.Predict(fv)
		if math.IsNaN(price) || price < priceFloor {
			price = priceFloor
		}

		// The unrounded prediction feeds the next step's lag and rolling
		// features through the synthetic row.
		last := len(next.history) - 1
		next.history[last].Price = price
		next.history[last].HasPrice = true

		rows = append(rows, contracts.Prediction{
			ItemID:       itemID,
			PredictDate:  predictDate,
			TargetDate:   targetDate,
			PredictPrice: round2(price),
		})
		st = next
	}

	w.log.Debug().
		Int("item_id", itemID).
		Time("predict_date", predictDate).
		Int("rows", len(rows)).
		Msg("walk-forward forecast completed")

	return rows, nil
}

func validPriceCount(history []contracts.DailyRecord) int {
	n := 0
	for _, r := range history {
		if r.HasPrice && !r.Predicted {
			n++
		}
	}
	return n
}

// latestWeather returns the most recent non-empty weather sample.
func latestWeather(history []contracts.DailyRecord) map[string]float64 {
	for i := len(history) - 1; i >= 0; i-- {
		if len(history[i].Weather) > 0 {
			return history[i].Weather
		}
	}
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
