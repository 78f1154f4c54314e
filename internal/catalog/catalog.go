// Package catalog holds the fixed 48-item vegetable catalogue. The
// volatility class assignment comes from the upstream clustering run and
// is static here, an input rather than something this system derives.
package catalog

import (
	"sort"

	"github.com/lorwen/vegepredict/internal/contracts"
)

var items = []contracts.Item{
	{ID: 1, Name: "spinach", MarketCode: "LH1", Class: contracts.VolatilityHigh},
	{ID: 2, Name: "water spinach", MarketCode: "LF1", Class: contracts.VolatilityLow},
	{ID: 3, Name: "cabbage", MarketCode: "LA1", Class: contracts.VolatilityLow},
	{ID: 4, Name: "amaranth", MarketCode: "LM1", Class: contracts.VolatilityLow},
	{ID: 6, Name: "chinese kale", MarketCode: "LK3", Class: contracts.VolatilityLow},
	{ID: 7, Name: "bok choy", MarketCode: "LB1", Class: contracts.VolatilityLow},
	{ID: 8, Name: "shanghai bok choy", MarketCode: "LD1", Class: contracts.VolatilityLow},
	{ID: 9, Name: "napa cabbage", MarketCode: "LC1", Class: contracts.VolatilityLow},
	{ID: 10, Name: "rape greens", MarketCode: "LN1", Class: contracts.VolatilityLow},
	{ID: 11, Name: "leaf lettuce", MarketCode: "LI1", Class: contracts.VolatilityHigh},
	{ID: 13, Name: "okinawan spinach", MarketCode: "LQ1", Class: contracts.VolatilityLow},
	{ID: 14, Name: "sweet potato leaves", MarketCode: "LO1", Class: contracts.VolatilityLow},
	{ID: 15, Name: "water dropwort", MarketCode: "LT3", Class: contracts.VolatilityHigh},
	{ID: 16, Name: "iceberg lettuce", MarketCode: "LI5", Class: contracts.VolatilityLow},
	{ID: 18, Name: "cilantro", MarketCode: "LP1", Class: contracts.VolatilityHigh},
	{ID: 19, Name: "romaine", MarketCode: "LI6", Class: contracts.VolatilityHigh},
	{ID: 20, Name: "basil", MarketCode: "LP2", Class: contracts.VolatilityHigh},
	{ID: 23, Name: "green onion", MarketCode: "SE1", Class: contracts.VolatilityHigh},
	{ID: 24, Name: "birds nest fern", MarketCode: "LX2", Class: contracts.VolatilityHigh},
	{ID: 25, Name: "water bamboo", MarketCode: "SQ1", Class: contracts.VolatilityHigh},
	{ID: 26, Name: "green bamboo shoot", MarketCode: "SH2", Class: contracts.VolatilityHigh},
	{ID: 27, Name: "baby corn", MarketCode: "FY4", Class: contracts.VolatilityLow},
	{ID: 28, Name: "asparagus", MarketCode: "SV2", Class: contracts.VolatilityHigh},
	{ID: 29, Name: "celery", MarketCode: "LG1", Class: contracts.VolatilityLow},
	{ID: 31, Name: "carrot", MarketCode: "SB2", Class: contracts.VolatilityLow},
	{ID: 32, Name: "sweet potato", MarketCode: "SO1", Class: contracts.VolatilityLow},
	{ID: 33, Name: "potato", MarketCode: "SC1", Class: contracts.VolatilityLow},
	{ID: 34, Name: "ginger", MarketCode: "SP1", Class: contracts.VolatilityLow},
	{ID: 35, Name: "garlic", MarketCode: "SG5", Class: contracts.VolatilityHigh},
	{ID: 36, Name: "onion", MarketCode: "SD1", Class: contracts.VolatilityLow},
	{ID: 37, Name: "taro", MarketCode: "SJ1", Class: contracts.VolatilityLow},
	{ID: 38, Name: "yam", MarketCode: "SU1", Class: contracts.VolatilityHigh},
	{ID: 39, Name: "lotus root", MarketCode: "SN1", Class: contracts.VolatilityLow},
	{ID: 40, Name: "shallot", MarketCode: "SE5", Class: contracts.VolatilityHigh},
	{ID: 41, Name: "eggplant", MarketCode: "FI1", Class: contracts.VolatilityLow},
	{ID: 42, Name: "loofah", MarketCode: "FF1", Class: contracts.VolatilityLow},
	{ID: 43, Name: "pumpkin", MarketCode: "FT1", Class: contracts.VolatilityLow},
	{ID: 44, Name: "zucchini", MarketCode: "FF2", Class: contracts.VolatilityHigh},
	{ID: 45, Name: "winter melon", MarketCode: "FE1", Class: contracts.VolatilityLow},
	{ID: 46, Name: "bitter gourd", MarketCode: "FG1", Class: contracts.VolatilityLow},
	{ID: 47, Name: "cucumber", MarketCode: "FC1", Class: contracts.VolatilityLow},
	{ID: 49, Name: "okra", MarketCode: "FA1", Class: contracts.VolatilityHigh},
	{ID: 50, Name: "beefsteak tomato", MarketCode: "FJ3", Class: contracts.VolatilityLow},
	{ID: 51, Name: "broccoli", MarketCode: "FR1", Class: contracts.VolatilityLow},
	{ID: 52, Name: "cauliflower", MarketCode: "FB1", Class: contracts.VolatilityLow},
	{ID: 55, Name: "chili pepper", MarketCode: "FV1", Class: contracts.VolatilityHigh},
	{ID: 59, Name: "sugar snap pea", MarketCode: "FL6", Class: contracts.VolatilityHigh},
	{ID: 60, Name: "green bean", MarketCode: "FN1", Class: contracts.VolatilityHigh},
}

var byID = func() map[int]contracts.Item {
	m := make(map[int]contracts.Item, len(items))
	for _, it := range items {
		m[it.ID] = it
	}
	return m
}()

// Items returns the full catalogue, ordered by item ID.
func Items() []contracts.Item {
	out := make([]contracts.Item, len(items))
	copy(out, items)
	return out
}

// ByClass returns all items in the given volatility class, ordered by ID.
func ByClass(class contracts.VolatilityClass) []contracts.Item {
	var out []contracts.Item
	for _, it := range items {
		if it.Class == class {
			out = append(out, it)
		}
	}
	return out
}

// Lookup returns the item with the given ID.
func Lookup(id int) (contracts.Item, bool) {
	it, ok := byID[id]
	return it, ok
}

// Filter returns the catalogue items whose IDs appear in ids, ordered by
// ID. Unknown IDs are dropped.
func Filter(ids []int) []contracts.Item {
	var out []contracts.Item
	for _, id := range ids {
		if it, ok := byID[id]; ok {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
