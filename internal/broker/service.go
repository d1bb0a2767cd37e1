// Package broker orchestrates trade execution: it reads account and position
// state, prices the order against live quotes, runs the ledger accounting
// rules, and commits the outcome through the store.
package broker

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradesphere/internal/config"
	"tradesphere/internal/ledger"
	"tradesphere/internal/marketdata"
	"tradesphere/internal/models"
	"tradesphere/internal/store"
)

// Service is the trading service. One trade operation is a single
// read-modify-write against one account; atomicity of the commit is the
// store's concern.
type Service struct {
	logger *zap.Logger
	store  *store.Store
	prices marketdata.PriceSource
	router *marketdata.Router

	initialMarginMult decimal.Decimal
	maintenanceRate   decimal.Decimal
	interestDayCount  int64

	shortableMin   decimal.Decimal
	shortableMax   decimal.Decimal
	selectionCount int

	mu  sync.Mutex
	rng *rand.Rand
}

// NewService creates the trading service. rng drives the shortable-universe
// selection; pass a seeded source in tests for determinism.
func NewService(logger *zap.Logger, cfg *config.Config, st *store.Store, prices marketdata.PriceSource, router *marketdata.Router, rng *rand.Rand) *Service {
	return &Service{
		logger:            logger,
		store:             st,
		prices:            prices,
		router:            router,
		initialMarginMult: decimal.NewFromFloat(cfg.Margin.InitialShortMultiplier),
		maintenanceRate:   decimal.NewFromFloat(cfg.Margin.MaintenanceRate),
		interestDayCount:  int64(cfg.Margin.InterestDayCount),
		shortableMin:      decimal.NewFromFloat(cfg.Shortable.MinRate),
		shortableMax:      decimal.NewFromFloat(cfg.Shortable.MaxRate),
		selectionCount:    cfg.Shortable.SelectionCount,
		rng:               rng,
	}
}

// TradeResponse reports an accepted trade back to the caller.
type TradeResponse struct {
	Status           string          `json:"status"`
	Symbol           string          `json:"symbol"`
	Qty              decimal.Decimal `json:"qty"`
	Price            decimal.Decimal `json:"price"`
	BorrowRateAnnual decimal.Decimal `json:"borrow_rate_annual,omitempty"`
}

// Buy executes a buy order for the user.
func (s *Service) Buy(ctx context.Context, userID uint, symbol string, market models.Market, qty decimal.Decimal) (*TradeResponse, error) {
	return s.trade(ctx, userID, symbol, market, qty, models.TxBuy)
}

// Sell executes a sell order against an existing long position.
func (s *Service) Sell(ctx context.Context, userID uint, symbol string, market models.Market, qty decimal.Decimal) (*TradeResponse, error) {
	return s.trade(ctx, userID, symbol, market, qty, models.TxSell)
}

// Short opens or extends a short position. Requires the symbol to be in the
// shortable universe and the account to hold the initial margin.
func (s *Service) Short(ctx context.Context, userID uint, symbol string, market models.Market, qty decimal.Decimal) (*TradeResponse, error) {
	return s.trade(ctx, userID, symbol, market, qty, models.TxShort)
}

// Cover buys back part or all of an existing short position.
func (s *Service) Cover(ctx context.Context, userID uint, symbol string, market models.Market, qty decimal.Decimal) (*TradeResponse, error) {
	return s.trade(ctx, userID, symbol, market, qty, models.TxCover)
}

func (s *Service) trade(ctx context.Context, userID uint, symbol string, market models.Market, qty decimal.Decimal, txType models.TransactionType) (*TradeResponse, error) {
	// Validation failure, checked before any state or quote is read.
	if !qty.IsPositive() {
		return nil, ledger.ErrInvalidQuantity
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %d not found", userID)
	}

	if txType == models.TxShort || txType == models.TxCover {
		if !user.Tier.AtLeast(models.TierIntermediate) {
			return nil, ledger.ErrTierTooLow
		}
	}

	price, err := s.prices.GetPrice(ctx, symbol, market)
	if err != nil {
		// A trade cannot be priced without a quote; abort with no side
		// effect.
		return nil, fmt.Errorf("%w: %s on %s: %v", ledger.ErrPriceUnavailable, symbol, market, err)
	}

	var shortable *models.ShortableStock
	if txType == models.TxShort {
		entry, err := s.store.GetShortable(ctx, symbol)
		if err != nil {
			return nil, err
		}
		if entry != nil && entry.Market == market {
			shortable = entry
		}
	}

	pos, err := s.store.GetPosition(ctx, userID, symbol, market)
	if err != nil {
		return nil, err
	}
	var posState *ledger.PositionState
	if pos != nil {
		posState = &ledger.PositionState{
			Shares:           pos.Shares,
			AvgPrice:         pos.AvgPrice,
			BorrowRateAnnual: pos.BorrowRateAnnual,
		}
	}

	res, err := ledger.ApplyTrade(user.CashBalance, posState, ledger.Trade{
		Symbol:   symbol,
		Market:   market,
		Type:     txType,
		Quantity: qty,
		Price:    price,
		Fees:     decimal.Zero,
	}, ledger.TradeOptions{
		Shortable:               shortable,
		InitialMarginMultiplier: s.initialMarginMult,
	})
	if err != nil {
		return nil, err
	}

	if err := s.store.ExecuteTrade(ctx, userID, pos, res); err != nil {
		return nil, err
	}

	s.logger.Info("trade executed",
		zap.Uint("user_id", userID),
		zap.String("symbol", symbol),
		zap.String("market", string(market)),
		zap.String("type", string(txType)),
		zap.String("qty", qty.String()),
		zap.String("price", price.String()),
	)

	resp := &TradeResponse{Status: "ok", Symbol: symbol, Qty: qty, Price: price}
	if txType == models.TxShort {
		resp.BorrowRateAnnual = res.Position.BorrowRateAnnual
	}
	return resp, nil
}

// PortfolioSummary computes the live valuation of a user's portfolio.
func (s *Service) PortfolioSummary(ctx context.Context, userID uint) (*ledger.Summary, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %d not found", userID)
	}

	positions, err := s.store.ListPositions(ctx, userID)
	if err != nil {
		return nil, err
	}

	summary := ledger.ValuePortfolio(ctx, user.CashBalance, positions, s.prices.GetPrice, s.maintenanceRate, s.logger)
	return &summary, nil
}

// SnapshotEquity records the user's current equity and maintenance
// requirement for audit history.
func (s *Service) SnapshotEquity(ctx context.Context, userID uint) (*models.EquitySnapshot, error) {
	summary, err := s.PortfolioSummary(ctx, userID)
	if err != nil {
		return nil, err
	}
	snap := &models.EquitySnapshot{
		UserID:              userID,
		TotalEquity:         summary.Equity,
		MaintenanceRequired: summary.MaintenanceRequired,
	}
	if err := s.store.AppendEquitySnapshot(ctx, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// Transactions lists a user's trade history, most recent first.
func (s *Service) Transactions(ctx context.Context, userID uint, limit, offset int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.ListTransactions(ctx, userID, limit, offset)
}

// ListShortable returns the current shortable universe, optionally filtered
// by market.
func (s *Service) ListShortable(ctx context.Context, market *models.Market) ([]models.ShortableStock, error) {
	return s.store.ListShortable(ctx, market)
}

// RefreshShortable resamples the shortable universe for both markets,
// splitting the configured selection count between them. Entries for symbols
// that are not reselected are left in place.
func (s *Service) RefreshShortable(ctx context.Context) (map[string]int, error) {
	counts := map[string]int{"us": 0, "in": 0}

	for _, market := range []models.Market{models.MarketUS, models.MarketIN} {
		client, err := s.router.Client(market)
		if err != nil {
			return nil, err
		}

		symbols, err := client.ListSymbols(ctx)
		if err != nil {
			s.logger.Warn("failed to list symbols for shortable refresh",
				zap.String("market", string(market)),
				zap.Error(err),
			)
			continue
		}

		s.mu.Lock()
		picks := ledger.SelectShortable(s.rng, symbols, s.selectionCount/2, s.shortableMin, s.shortableMax)
		s.mu.Unlock()

		for _, pick := range picks {
			entry := models.ShortableStock{
				Symbol:           pick.Symbol,
				Market:           market,
				BorrowRateAnnual: pick.BorrowRateAnnual,
				Available:        true,
			}
			if err := s.store.UpsertShortable(ctx, entry); err != nil {
				return nil, err
			}
		}

		key := "us"
		if market == models.MarketIN {
			key = "in"
		}
		counts[key] = len(picks)
	}

	return counts, nil
}

// SimulateDailyInterest applies one day's borrow interest to every open short
// position. Charges settle independently: a failure on one position is logged
// and does not roll back charges already applied.
func (s *Service) SimulateDailyInterest(ctx context.Context) ([]ledger.InterestCharge, error) {
	positions, err := s.store.ListShortPositions(ctx)
	if err != nil {
		return nil, err
	}

	day := ledger.DayKey(time.Now())
	charges := ledger.AccrueDailyInterest(ctx, positions, s.prices.GetPrice, s.interestDayCount, day, s.logger)

	applied := make([]ledger.InterestCharge, 0, len(charges))
	for _, charge := range charges {
		if err := s.store.ApplyInterestCharge(ctx, charge, day); err != nil {
			s.logger.Error("failed to apply interest charge",
				zap.Uint("user_id", charge.UserID),
				zap.String("symbol", charge.Symbol),
				zap.Error(err),
			)
			continue
		}
		applied = append(applied, charge)
	}

	return applied, nil
}
