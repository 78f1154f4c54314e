package contracts

import "time"

// Weather field names as they appear in the merged feature tables and in
// derived feature names (e.g. "temperature_ma_30").
const (
	WeatherPressure    = "pressure"
	WeatherTemperature = "temperature"
	WeatherHumidity    = "humidity"
	WeatherWindSpeed   = "wind_speed"
	WeatherPrecip      = "precip"
	WeatherTyphoon     = "typhoon"
)

// WeatherFields lists every weather field in a fixed order.
var WeatherFields = []string{
	WeatherPressure,
	WeatherTemperature,
	WeatherHumidity,
	WeatherWindSpeed,
	WeatherPrecip,
	WeatherTyphoon,
}

// DailyRecord is one dated observation for one item: the day's average
// price (when the market traded) and the yield-weighted weather sample.
// At most one record exists per (item, date).
type DailyRecord struct {
	ItemID   int       `json:"item_id"`
	Date     time.Time `json:"date"`
	Price    float64   `json:"price"`
	HasPrice bool      `json:"has_price"`
	// Weather maps WeatherFields names to values. A missing key means the
	// field was not observed that day.
	Weather map[string]float64 `json:"weather"`
	// Predicted marks synthetic rows appended during walk-forward
	// forecasting. Their Price is a model output, not an observation.
	Predicted bool `json:"predicted"`
}

// FeatureVector is the fixed-schema model input derived for one (item,
// date) pair. Features that cannot be computed are set to 0.
type FeatureVector map[string]float64
