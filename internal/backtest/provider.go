package backtest

import (
	"context"

	"optionforge/internal/domain"
)

// ChainProvider supplies historical option chains.
// Implemented by storage.OptionQuoteStore.
type ChainProvider interface {
	// FetchChain returns all quotes for ticker with start <= date <= end,
	// ordered by date, expiration, strike, type. Empty result is not an error.
	FetchChain(ctx context.Context, ticker string, start, end domain.Date) ([]*domain.OptionQuote, error)
}

// UnderlyingProvider supplies observed closes of the underlying.
// Days missing from the result fall back to put-call parity.
type UnderlyingProvider interface {
	FetchCloses(ctx context.Context, ticker string, start, end domain.Date) (map[domain.Date]float64, error)
}

// ChainProviderFunc adapts a function to ChainProvider.
type ChainProviderFunc func(ctx context.Context, ticker string, start, end domain.Date) ([]*domain.OptionQuote, error)

// FetchChain calls f.
func (f ChainProviderFunc) FetchChain(ctx context.Context, ticker string, start, end domain.Date) ([]*domain.OptionQuote, error) {
	return f(ctx, ticker, start, end)
}
