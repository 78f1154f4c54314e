// Package marketdata reads the external observation store: merged
// per-class feature tables, raw daily prices and weather, and the
// regional yield weights used to blend weather across growing regions.
package marketdata

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/lorwen/vegepredict/internal/contracts"
	"github.com/lorwen/vegepredict/internal/forecast"
)

const (
	// minUsableHistory is the row count below which a history read is
	// retried with the extended limit. Sparse items often trade far less
	// often than the calendar suggests.
	minUsableHistory = 60
	extendedLimit    = 500
)

// Repository is the read side over the merged feature tables and the raw
// observation tables.
type Repository struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewRepository creates a market data repository over the shared pool.
func NewRepository(pool *pgxpool.Pool, log zerolog.Logger) *Repository {
	return &Repository{
		pool: pool,
		log:  log.With().Str("component", "marketdata").Logger(),
	}
}

// mergedTable maps a volatility class to its feature table.
func mergedTable(class contracts.VolatilityClass) (string, error) {
	switch class {
	case contracts.VolatilityHigh:
		return "high_volatility_merged", nil
	case contracts.VolatilityLow:
		return "low_volatility_merged", nil
	default:
		return "", fmt.Errorf("unknown volatility class %q", class)
	}
}

// Session pins one pooled connection for a worker's lifetime.
type Session struct {
	conn *pgxpool.Conn
	log  zerolog.Logger
}

// Session acquires a dedicated connection from the pool, satisfying
// forecast.HistorySource.
func (r *Repository) Session(ctx context.Context) (forecast.HistorySession, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	return &Session{conn: conn, log: r.log}, nil
}

// Release returns the connection to the pool.
func (s *Session) Release() {
	s.conn.Release()
}

// History returns the item's most recent records strictly before cutoff,
// ascending by date, at most limit rows. When the initial window holds
// too few priced rows the read is retried with the extended limit, so
// thinly traded items still reach the eligibility threshold.
func (s *Session) History(ctx context.Context, itemID int, class contracts.VolatilityClass, cutoff time.Time, limit int) ([]contracts.DailyRecord, error) {
	table, err := mergedTable(class)
	if err != nil {
		return nil, err
	}

	records, err := s.fetchHistory(ctx, table, itemID, cutoff, limit)
	if err != nil {
		return nil, err
	}

	if priced(records) < minUsableHistory && limit < extendedLimit {
		s.log.Debug().
			Int("item_id", itemID).
			Int("priced", priced(records)).
			Msg("thin history, retrying with extended window")
		records, err = s.fetchHistory(ctx, table, itemID, cutoff, extendedLimit)
		if err != nil {
			return nil, err
		}
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Date.Before(records[j].Date) })
	return records, nil
}

func (s *Session) fetchHistory(ctx context.Context, table string, itemID int, cutoff time.Time, limit int) ([]contracts.DailyRecord, error) {
	query := fmt.Sprintf(`
		SELECT obs_date, avg_price_per_kg,
		       station_pressure, temperature, humidity, wind_speed, precipitation, typhoon
		FROM %s
		WHERE item_id = $1
		  AND obs_date < $2
		ORDER BY obs_date DESC
		LIMIT $3`, table)

	rows, err := s.conn.Query(ctx, query, itemID, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []contracts.DailyRecord
	for rows.Next() {
		rec, err := scanRecord(rows, itemID)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return out, nil
}

// scanRecord maps one merged-table row. Price and every weather column
// are nullable: an absent price marks a non-trading day, absent weather
// is imputed downstream.
func scanRecord(rows pgx.Rows, itemID int) (contracts.DailyRecord, error) {
	var (
		rec      contracts.DailyRecord
		price    *float64
		pressure *float64
		temp     *float64
		humidity *float64
		wind     *float64
		precip   *float64
		typhoon  *float64
	)

	if err := rows.Scan(&rec.Date, &price, &pressure, &temp, &humidity, &wind, &precip, &typhoon); err != nil {
		return rec, fmt.Errorf("scan history row: %w", err)
	}

	rec.ItemID = itemID
	if price != nil && *price > 0 {
		rec.Price = *price
		rec.HasPrice = true
	}

	rec.Weather = make(map[string]float64, len(contracts.WeatherFields))
	setWeather(rec.Weather, contracts.WeatherPressure, pressure)
	setWeather(rec.Weather, contracts.WeatherTemperature, temp)
	setWeather(rec.Weather, contracts.WeatherHumidity, humidity)
	setWeather(rec.Weather, contracts.WeatherWindSpeed, wind)
	setWeather(rec.Weather, contracts.WeatherPrecip, precip)
	setWeather(rec.Weather, contracts.WeatherTyphoon, typhoon)

	return rec, nil
}

func setWeather(m map[string]float64, field string, v *float64) {
	if v != nil {
		m[field] = *v
	}
}

func priced(records []contracts.DailyRecord) int {
	n := 0
	for _, r := range records {
		if r.HasPrice {
			n++
		}
	}
	return n
}

// RealizedPrice returns the confirmed daily average price for one
// (item, date), satisfying forecast.RealizedSource. Days the market
// never traded report ok=false.
func (r *Repository) RealizedPrice(ctx context.Context, itemID int, date time.Time) (float64, bool, error) {
	var price float64
	err := r.pool.QueryRow(ctx, `
		SELECT avg_price_per_kg
		FROM daily_avg_price
		WHERE item_id = $1
		  AND obs_date = $2
		  AND avg_price_per_kg IS NOT NULL`,
		itemID, date).Scan(&price)
	if err == pgx.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("query realized price: %w", err)
	}
	return price, true, nil
}

// LatestActual is an item's most recent confirmed price.
type LatestActual struct {
	ItemID int
	Date   time.Time
	Price  float64
}

// LatestActuals returns, per item, the newest confirmed daily price.
func (r *Repository) LatestActuals(ctx context.Context) (map[int]LatestActual, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT ON (item_id) item_id, obs_date, avg_price_per_kg
		FROM daily_avg_price
		WHERE avg_price_per_kg IS NOT NULL
		ORDER BY item_id, obs_date DESC`)
	if err != nil {
		return nil, fmt.Errorf("query latest actuals: %w", err)
	}
	defer rows.Close()

	out := make(map[int]LatestActual)
	for rows.Next() {
		var la LatestActual
		if err := rows.Scan(&la.ItemID, &la.Date, &la.Price); err != nil {
			return nil, fmt.Errorf("scan latest actual: %w", err)
		}
		out[la.ItemID] = la
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate latest actuals: %w", err)
	}
	return out, nil
}

// DayPrices returns every item's confirmed average price for one day.
func (r *Repository) DayPrices(ctx context.Context, date time.Time) (map[int]float64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT item_id, avg_price_per_kg
		FROM daily_avg_price
		WHERE obs_date = $1
		  AND avg_price_per_kg IS NOT NULL`,
		date)
	if err != nil {
		return nil, fmt.Errorf("query day prices: %w", err)
	}
	defer rows.Close()

	out := make(map[int]float64)
	for rows.Next() {
		var (
			itemID int
			price  float64
		)
		if err := rows.Scan(&itemID, &price); err != nil {
			return nil, fmt.Errorf("scan day price: %w", err)
		}
		out[itemID] = price
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate day prices: %w", err)
	}
	return out, nil
}

// DayWeather returns the raw per-city weather samples for one day, keyed
// by city then field name. Nullable columns are simply absent from the
// inner map.
func (r *Repository) DayWeather(ctx context.Context, date time.Time) (map[int]map[string]float64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT city_id, station_pressure, temperature, humidity, wind_speed, precipitation, typhoon
		FROM weather_data
		WHERE obs_date = $1`,
		date)
	if err != nil {
		return nil, fmt.Errorf("query day weather: %w", err)
	}
	defer rows.Close()

	out := make(map[int]map[string]float64)
	for rows.Next() {
		var (
			cityID   int
			pressure *float64
			temp     *float64
			humidity *float64
			wind     *float64
			precip   *float64
			typhoon  *float64
		)
		if err := rows.Scan(&cityID, &pressure, &temp, &humidity, &wind, &precip, &typhoon); err != nil {
			return nil, fmt.Errorf("scan day weather: %w", err)
		}
		sample := make(map[string]float64, len(contracts.WeatherFields))
		setWeather(sample, contracts.WeatherPressure, pressure)
		setWeather(sample, contracts.WeatherTemperature, temp)
		setWeather(sample, contracts.WeatherHumidity, humidity)
		setWeather(sample, contracts.WeatherWindSpeed, wind)
		setWeather(sample, contracts.WeatherPrecip, precip)
		setWeather(sample, contracts.WeatherTyphoon, typhoon)
		out[cityID] = sample
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate day weather: %w", err)
	}
	return out, nil
}

// YieldWeights returns the normalized regional yield weights for one
// production year, keyed by item then city. Weights for an item sum to 1
// upstream.
func (r *Repository) YieldWeights(ctx context.Context, year int) (map[int]map[int]float64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT item_id, city_id, normalized_yield
		FROM regional_yield_weights
		WHERE year = $1`,
		year)
	if err != nil {
		return nil, fmt.Errorf("query yield weights: %w", err)
	}
	defer rows.Close()

	out := make(map[int]map[int]float64)
	for rows.Next() {
		var (
			itemID, cityID int
			weight         float64
		)
		if err := rows.Scan(&itemID, &cityID, &weight); err != nil {
			return nil, fmt.Errorf("scan yield weight: %w", err)
		}
		if out[itemID] == nil {
			out[itemID] = make(map[int]float64)
		}
		out[itemID][cityID] = weight
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate yield weights: %w", err)
	}
	return out, nil
}
