// Package marketdata provides quote clients for the US (Finnhub) and IN
// (StockGro) markets, a market router, and a TTL quote cache.
package marketdata

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"tradesphere/internal/models"
)

// PriceSource resolves a current price for a symbol on a market.
type PriceSource interface {
	GetPrice(ctx context.Context, symbol string, market models.Market) (decimal.Decimal, error)
}

// SymbolLister enumerates the tradable symbols of one market.
type SymbolLister interface {
	ListSymbols(ctx context.Context) ([]string, error)
}

// QuoteClient is one market's quote provider.
type QuoteClient interface {
	SymbolLister
	GetQuote(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// Router dispatches price lookups to the per-market clients.
type Router struct {
	us QuoteClient
	in QuoteClient
}

// NewRouter creates a Router over the given market clients.
func NewRouter(us, in QuoteClient) *Router {
	return &Router{us: us, in: in}
}

// GetPrice implements PriceSource.
func (r *Router) GetPrice(ctx context.Context, symbol string, market models.Market) (decimal.Decimal, error) {
	switch market {
	case models.MarketUS:
		return r.us.GetQuote(ctx, symbol)
	case models.MarketIN:
		return r.in.GetQuote(ctx, symbol)
	}
	return decimal.Zero, fmt.Errorf("no quote client for market %q", market)
}

// Client returns the underlying quote client for a market.
func (r *Router) Client(market models.Market) (QuoteClient, error) {
	switch market {
	case models.MarketUS:
		return r.us, nil
	case models.MarketIN:
		return r.in, nil
	}
	return nil, fmt.Errorf("no quote client for market %q", market)
}
