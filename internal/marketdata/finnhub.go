package marketdata

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"tradesphere/internal/config"
)

const finnhubBaseURL = "https://finnhub.io/api/v1"

// FinnhubClient serves US-market quotes and symbol listings.
type FinnhubClient struct {
	client  *resty.Client
	apiKey  string
	logger  *zap.Logger
	limiter *rate.Limiter
}

var _ QuoteClient = (*FinnhubClient)(nil)

// NewFinnhubClient creates a Finnhub REST client with client-side rate
// limiting.
func NewFinnhubClient(cfg *config.MarketData, logger *zap.Logger) *FinnhubClient {
	return &FinnhubClient{
		client:  resty.New().SetBaseURL(finnhubBaseURL),
		apiKey:  cfg.FinnhubAPIKey,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst),
	}
}

// doRequest executes a request with rate limiting and retry. Rate-limit and
// server-side errors are retried with exponential backoff, honoring any
// Retry-After header.
func (c *FinnhubClient) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error
	const maxRetries = 3

	for i := 0; i < maxRetries; i++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+url))
		resp, err = req.SetContext(ctx).Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil
		}
		if err == nil {
			// Keep the status failure so the post-loop wrap never wraps a
			// nil error.
			err = fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
		}

		shouldRetry := false
		var retryAfter time.Duration

		if resp != nil {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests {
				shouldRetry = true
				if seconds, err := strconv.Atoi(resp.Header().Get("Retry-After")); err == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 {
				shouldRetry = true
			}
		} else {
			shouldRetry = true
		}

		if !shouldRetry {
			return nil, err
		}

		if retryAfter == 0 {
			retryAfter = time.Duration(math.Pow(2, float64(i))) * time.Second
		}

		c.logger.Warn("request failed, retrying",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}

// quoteResponse is the Finnhub /quote payload. "c" is the current price.
type quoteResponse struct {
	Current       float64 `json:"c"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
	Open          float64 `json:"o"`
	PreviousClose float64 `json:"pc"`
}

// GetQuote fetches the current price for a US symbol.
func (c *FinnhubClient) GetQuote(ctx context.Context, symbol string) (decimal.Decimal, error) {
	req := c.client.R().
		SetResult(&quoteResponse{}).
		SetQueryParams(map[string]string{
			"symbol": symbol,
			"token":  c.apiKey,
		})

	resp, err := c.doRequest(ctx, "GET", "/quote", req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get quote for %s: %w", symbol, err)
	}

	result := resp.Result().(*quoteResponse)
	if result.Current <= 0 {
		return decimal.Zero, fmt.Errorf("no current price for %s", symbol)
	}
	return decimal.NewFromFloat(result.Current), nil
}

// symbolEntry is one entry of the Finnhub /stock/symbol listing.
type symbolEntry struct {
	Symbol      string `json:"symbol"`
	Description string `json:"description"`
	Type        string `json:"type"`
}

// ListSymbols fetches the tradable US symbol universe.
func (c *FinnhubClient) ListSymbols(ctx context.Context) ([]string, error) {
	var entries []symbolEntry

	req := c.client.R().
		SetResult(&entries).
		SetQueryParams(map[string]string{
			"exchange": "US",
			"token":    c.apiKey,
		})

	resp, err := c.doRequest(ctx, "GET", "/stock/symbol", req)
	if err != nil {
		return nil, fmt.Errorf("failed to list US symbols: %w", err)
	}

	result := resp.Result().(*[]symbolEntry)
	symbols := make([]string, 0, len(*result))
	for _, e := range *result {
		if e.Symbol != "" {
			symbols = append(symbols, e.Symbol)
		}
	}
	return symbols, nil
}
