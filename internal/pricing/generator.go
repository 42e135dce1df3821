package pricing

import (
	"math/rand"
	"sync"

	"github.com/shopspring/decimal"
)

// PriceRange is a half-open [Min, Max) price interval in whole cents.
type PriceRange struct {
	MinCents int64
	MaxCents int64
}

// Min returns the lower bound as a decimal.
func (r PriceRange) Min() decimal.Decimal { return decimal.New(r.MinCents, -2) }

// Max returns the exclusive upper bound as a decimal.
func (r PriceRange) Max() decimal.Decimal { return decimal.New(r.MaxCents, -2) }

// Price ranges by category, in EUR cents
var categoryRanges = map[string]PriceRange{
	"Vegetables": {200, 800},
	"Fruits":     {300, 1000},
	"Dairy":      {100, 500},
	"Meat":       {800, 2500},
	"Bakery":     {200, 600},
	"Seafood":    {1000, 3000},
	"Beverages":  {150, 800},
	"Grains":     {150, 600},
	"Snacks":     {200, 800},
	"Condiments": {150, 700},
}

// DefaultRange applies to unknown or empty categories.
var DefaultRange = PriceRange{MinCents: 200, MaxCents: 1000}

// Range returns the price range used for a category.
func Range(category string) PriceRange {
	if r, ok := categoryRanges[category]; ok {
		return r
	}
	return DefaultRange
}

// Generator assigns random unit prices by category
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator creates a generator drawing from rng.
func NewGenerator(rng *rand.Rand) *Generator {
	return &Generator{rng: rng}
}

// NewSeededGenerator creates a generator with a deterministic source.
func NewSeededGenerator(seed int64) *Generator {
	return NewGenerator(rand.New(rand.NewSource(seed)))
}

// Generate draws a uniform price in the category's range. The result always
// carries two fractional digits.
func (g *Generator) Generate(category string) decimal.Decimal {
	r := Range(category)

	g.mu.Lock()
	cents := r.MinCents + g.rng.Int63n(r.MaxCents-r.MinCents)
	g.mu.Unlock()

	return decimal.New(cents, -2)
}
