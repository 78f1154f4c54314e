package contracts

import "time"

// Prediction is one forecast row, unique per (item, target date).
// ActualPrice and MAPE stay nil until the target date matures and the
// accuracy tracker reconciles the row against the realized price.
type Prediction struct {
	ID           int64     `json:"id"`
	ItemID       int       `json:"item_id"`
	PredictDate  time.Time `json:"predict_date"`
	TargetDate   time.Time `json:"target_date"`
	PredictPrice float64   `json:"predict_price"`
	ActualPrice  *float64  `json:"actual_price,omitempty"`
	MAPE         *float64  `json:"mape,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Horizon returns the day offset of the target from the predict date.
func (p Prediction) Horizon() int {
	return int(p.TargetDate.Sub(p.PredictDate).Hours() / 24)
}
