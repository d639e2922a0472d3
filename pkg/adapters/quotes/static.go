package quotes

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/aretw0/stategraph/pkg/domain"
	"github.com/aretw0/stategraph/pkg/ports"
)

// DefaultPrices is the fixed USD price table of the demo tool.
var DefaultPrices = map[string]float64{
	"META":  200.3,
	"TSLA":  100.4,
	"NFLX":  150.0,
	"GOOGL": 87.6,
}

// Static serves quotes from a fixed table. Symbols are case-insensitive.
type Static struct {
	prices   map[string]float64
	currency string
}

// NewStatic creates a static source; a nil table uses DefaultPrices.
func NewStatic(prices map[string]float64) *Static {
	if prices == nil {
		prices = DefaultPrices
	}
	table := make(map[string]float64, len(prices))
	for k, v := range prices {
		table[strings.ToUpper(k)] = v
	}
	return &Static{prices: table, currency: "USD"}
}

// Fetch implements ports.QuoteSource.
func (s *Static) Fetch(_ context.Context, symbol string) (domain.Quote, error) {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	price, ok := s.prices[sym]
	if !ok {
		return domain.Quote{}, fmt.Errorf("%w: %s", ports.ErrUnknownSymbol, sym)
	}
	return domain.Quote{Symbol: sym, Price: price, Currency: s.currency}, nil
}

// Symbols lists the known symbols.
func (s *Static) Symbols() []string {
	return slices.Sorted(maps.Keys(s.prices))
}
