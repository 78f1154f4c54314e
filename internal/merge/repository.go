package merge

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lorwen/vegepredict/internal/contracts"
)

// Repository writes merged rows into the per-class feature tables.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a merge repository over the shared pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const upsertMergedSQL = `
	INSERT INTO %s (item_id, obs_date, avg_price_per_kg,
	                station_pressure, temperature, humidity, wind_speed, precipitation, typhoon)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (item_id, obs_date)
	DO UPDATE SET
		avg_price_per_kg = EXCLUDED.avg_price_per_kg,
		station_pressure = EXCLUDED.station_pressure,
		temperature      = EXCLUDED.temperature,
		humidity         = EXCLUDED.humidity,
		wind_speed       = EXCLUDED.wind_speed,
		precipitation    = EXCLUDED.precipitation,
		typhoon          = EXCLUDED.typhoon`

// UpsertMerged writes a batch of merged rows, routing each to its
// class's table, and returns the number written.
func (r *Repository) UpsertMerged(ctx context.Context, rows []Row) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, row := range rows {
		table, err := tableFor(row.Item.Class)
		if err != nil {
			return 0, err
		}
		batch.Queue(fmt.Sprintf(upsertMergedSQL, table),
			row.Item.ID, row.Date, row.Price,
			weatherArg(row.Weather, contracts.WeatherPressure),
			weatherArg(row.Weather, contracts.WeatherTemperature),
			weatherArg(row.Weather, contracts.WeatherHumidity),
			weatherArg(row.Weather, contracts.WeatherWindSpeed),
			weatherArg(row.Weather, contracts.WeatherPrecip),
			weatherArg(row.Weather, contracts.WeatherTyphoon),
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range rows {
		if _, err := br.Exec(); err != nil {
			return 0, fmt.Errorf("upsert merged row: %w", err)
		}
	}
	return len(rows), nil
}

func tableFor(class contracts.VolatilityClass) (string, error) {
	switch class {
	case contracts.VolatilityHigh:
		return "high_volatility_merged", nil
	case contracts.VolatilityLow:
		return "low_volatility_merged", nil
	default:
		return "", fmt.Errorf("unknown volatility class %q", class)
	}
}

// weatherArg turns an absent field into a SQL NULL.
func weatherArg(sample map[string]float64, field string) *float64 {
	v, ok := sample[field]
	if !ok {
		return nil
	}
	return &v
}
