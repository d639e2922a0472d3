package ports

import (
	"context"
	"errors"

	"github.com/aretw0/stategraph/pkg/domain"
)

// ErrUnknownSymbol is returned by a QuoteSource that has no data for a symbol.
var ErrUnknownSymbol = errors.New("unknown symbol")

// QuoteSource fetches the latest quote of a ticker symbol.
type QuoteSource interface {
	Fetch(ctx context.Context, symbol string) (domain.Quote, error)
}
