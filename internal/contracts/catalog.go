package contracts

// VolatilityClass partitions catalogue items into high and low price
// variability groups. Each class has its own pretrained model and its own
// merged feature table. The assignment is fixed upstream.
type VolatilityClass string

const (
	VolatilityHigh VolatilityClass = "H"
	VolatilityLow  VolatilityClass = "L"
)

// Valid reports whether the class is one of the two known values.
func (c VolatilityClass) Valid() bool {
	return c == VolatilityHigh || c == VolatilityLow
}

// Item is one catalogue entry.
type Item struct {
	ID         int             `json:"id"`
	Name       string          `json:"name"`
	MarketCode string          `json:"market_code"`
	Class      VolatilityClass `json:"class"`
}
