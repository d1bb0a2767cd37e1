package marketdata

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradesphere/internal/config"
)

const stockgroBaseURL = "https://prod.stockgro.com/public/api/v1"

// StockGroClient serves IN-market quotes and symbol listings. Requests are
// authenticated with HMAC-SHA256 signed headers over client id and a nonce.
type StockGroClient struct {
	client       *resty.Client
	clientID     string
	clientSecret string
	logger       *zap.Logger

	mu        sync.Mutex
	symbolIDs map[string]string
}

var _ QuoteClient = (*StockGroClient)(nil)

// NewStockGroClient creates a StockGro REST client.
func NewStockGroClient(cfg *config.MarketData, logger *zap.Logger) *StockGroClient {
	return &StockGroClient{
		client:       resty.New().SetBaseURL(stockgroBaseURL),
		clientID:     cfg.StockGroClientID,
		clientSecret: cfg.StockGroClientSecret,
		logger:       logger,
		symbolIDs:    make(map[string]string),
	}
}

// sign creates the HMAC-SHA256 signature over "clientID:nonce".
func (c *StockGroClient) sign(nonce string) string {
	h := hmac.New(sha256.New, []byte(c.clientSecret))
	h.Write([]byte(c.clientID + ":" + nonce))
	return hex.EncodeToString(h.Sum(nil))
}

// signedRequest prepares a request carrying the signed auth headers.
func (c *StockGroClient) signedRequest(ctx context.Context) *resty.Request {
	nonce := fmt.Sprintf("%d", time.Now().UnixMilli())
	return c.client.R().
		SetContext(ctx).
		SetHeader("X-Client-Id", c.clientID).
		SetHeader("X-Signature", c.sign(nonce)).
		SetHeader("X-Nonce", nonce)
}

// stockEntry is one listing entry from /stocks.
type stockEntry struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
}

// ListSymbols fetches the IN symbol universe, refreshing the symbol-to-id
// mapping used for quote lookups.
func (c *StockGroClient) ListSymbols(ctx context.Context) ([]string, error) {
	var entries []stockEntry

	resp, err := c.signedRequest(ctx).
		SetResult(&entries).
		Get("/stocks")
	if err != nil {
		return nil, fmt.Errorf("failed to list IN symbols: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("failed to list IN symbols: status %s", resp.Status())
	}

	result := resp.Result().(*[]stockEntry)
	symbols := make([]string, 0, len(*result))

	c.mu.Lock()
	for _, e := range *result {
		if e.Symbol == "" || e.ID == "" {
			continue
		}
		c.symbolIDs[e.Symbol] = e.ID
		symbols = append(symbols, e.Symbol)
	}
	c.mu.Unlock()

	return symbols, nil
}

// lookupID resolves a symbol to its StockGro stock id, refreshing the listing
// once on a miss.
func (c *StockGroClient) lookupID(ctx context.Context, symbol string) (string, error) {
	c.mu.Lock()
	id, ok := c.symbolIDs[symbol]
	c.mu.Unlock()
	if ok {
		return id, nil
	}

	if _, err := c.ListSymbols(ctx); err != nil {
		return "", err
	}

	c.mu.Lock()
	id, ok = c.symbolIDs[symbol]
	c.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("symbol %s not found in StockGro universe", symbol)
	}
	return id, nil
}

// stockDetails is the subset of the stock-details payload we read.
type stockDetails struct {
	StockInfo struct {
		LastPrice float64 `json:"last_price"`
	} `json:"stock_info"`
}

// GetQuote fetches the last traded price for an IN symbol.
func (c *StockGroClient) GetQuote(ctx context.Context, symbol string) (decimal.Decimal, error) {
	id, err := c.lookupID(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}

	var details stockDetails
	resp, err := c.signedRequest(ctx).
		SetResult(&details).
		SetBody(map[string]interface{}{
			"stock_id": id,
			"sections": []string{"stock_info"},
		}).
		Post("/stock/details/" + id)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get quote for %s: %w", symbol, err)
	}
	if resp.IsError() {
		return decimal.Zero, fmt.Errorf("failed to get quote for %s: status %s", symbol, resp.Status())
	}

	result := resp.Result().(*stockDetails)
	if result.StockInfo.LastPrice <= 0 {
		return decimal.Zero, fmt.Errorf("no last price for %s", symbol)
	}
	return decimal.NewFromFloat(result.StockInfo.LastPrice), nil
}
