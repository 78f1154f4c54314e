package forecast

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lorwen/vegepredict/internal/contracts"
)

// Store persists prediction rows. Rows are globally unique per
// (item_id, target_date): re-forecasting the same key overwrites the
// predicted price and predict date, but never touches actual_price or
// mape already backfilled by the accuracy tracker.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a prediction store over the shared pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const upsertPredictionSQL = `
	INSERT INTO price_predictions (item_id, predict_date, target_date, predict_price, actual_price, mape)
	VALUES ($1, $2, $3, $4, NULL, NULL)
	ON CONFLICT (item_id, target_date)
	DO UPDATE SET
		predict_date  = EXCLUDED.predict_date,
		predict_price = EXCLUDED.predict_price`

// SavePredictions upserts a batch of rows and returns the number written.
func (s *Store) SavePredictions(ctx context.Context, rows []contracts.Prediction) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(upsertPredictionSQL,
			row.ItemID, row.PredictDate, row.TargetDate, row.PredictPrice)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range rows {
		if _, err := br.Exec(); err != nil {
			return 0, &StoreError{Op: "save predictions", Err: err}
		}
	}

	return len(rows), nil
}

// PendingInWindow returns rows whose target date falls in [from, to] and
// whose actual price is still unset.
func (s *Store) PendingInWindow(ctx context.Context, from, to time.Time) ([]contracts.Prediction, error) {
	query := `
		SELECT id, item_id, predict_date, target_date, predict_price
		FROM price_predictions
		WHERE target_date >= $1
		  AND target_date <= $2
		  AND actual_price IS NULL
		ORDER BY target_date, item_id`

	pgRows, err := s.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, &StoreError{Op: "query pending", Err: err}
	}
	defer pgRows.Close()

	var out []contracts.Prediction
	for pgRows.Next() {
		var p contracts.Prediction
		if err := pgRows.Scan(&p.ID, &p.ItemID, &p.PredictDate, &p.TargetDate, &p.PredictPrice); err != nil {
			return nil, &StoreError{Op: "scan pending", Err: err}
		}
		out = append(out, p)
	}
	if err := pgRows.Err(); err != nil {
		return nil, &StoreError{Op: "iterate pending", Err: err}
	}

	return out, nil
}

// SetActual fills the realized price and error metric on one row.
func (s *Store) SetActual(ctx context.Context, id int64, actual, mape float64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE price_predictions
		SET actual_price = $1, mape = $2
		WHERE id = $3`,
		actual, mape, id)
	if err != nil {
		return &StoreError{Op: "set actual", Err: err}
	}
	return nil
}

// LatestPredictionForTarget returns the predicted price for an item on a
// target date, preferring the most recently produced forecast when the
// key was re-forecast across predict dates.
func (s *Store) LatestPredictionForTarget(ctx context.Context, itemID int, target time.Time) (float64, bool, error) {
	var price float64
	err := s.pool.QueryRow(ctx, `
		SELECT predict_price
		FROM price_predictions
		WHERE item_id = $1
		  AND target_date = $2
		  AND predict_price IS NOT NULL
		ORDER BY predict_date DESC
		LIMIT 1`,
		itemID, target).Scan(&price)
	if err == pgx.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, &StoreError{Op: "query latest prediction", Err: err}
	}
	return price, true, nil
}
