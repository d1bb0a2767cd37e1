package broker

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"tradesphere/internal/config"
	"tradesphere/internal/database"
	"tradesphere/internal/ledger"
	"tradesphere/internal/marketdata"
	"tradesphere/internal/models"
	"tradesphere/internal/store"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

// stubClient is a scripted in-memory quote provider.
type stubClient struct {
	prices  map[string]decimal.Decimal
	symbols []string
	err     error
}

func (c *stubClient) GetQuote(_ context.Context, symbol string) (decimal.Decimal, error) {
	if c.err != nil {
		return decimal.Zero, c.err
	}
	price, ok := c.prices[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("no quote for %s", symbol)
	}
	return price, nil
}

func (c *stubClient) ListSymbols(_ context.Context) ([]string, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.symbols, nil
}

type fixture struct {
	svc   *Service
	store *store.Store
	us    *stubClient
	in    *stubClient
}

var testDBCounter int

func newFixture(t *testing.T) *fixture {
	t.Helper()
	testDBCounter++
	dsn := fmt.Sprintf("file:brokertest%d?mode=memory&cache=shared", testDBCounter)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	st := store.NewStore(db, false)

	us := &stubClient{prices: map[string]decimal.Decimal{}}
	in := &stubClient{prices: map[string]decimal.Decimal{}}
	router := marketdata.NewRouter(us, in)

	cfg := &config.Config{
		Margin: config.Margin{
			InitialShortMultiplier: 1.5,
			MaintenanceRate:        0.3,
			InterestDayCount:       365,
		},
		Shortable: config.Shortable{
			MinRate:        0.02,
			MaxRate:        0.18,
			SelectionCount: 10,
		},
	}

	svc := NewService(zap.NewNop(), cfg, st, router, router, rand.New(rand.NewSource(42)))
	return &fixture{svc: svc, store: st, us: us, in: in}
}

func (f *fixture) createUser(t *testing.T, tier models.Tier, cash string) *models.User {
	t.Helper()
	user := &models.User{
		Username:     fmt.Sprintf("user%d", testDBCounter),
		Email:        fmt.Sprintf("user%d@example.com", testDBCounter),
		PasswordHash: "x",
		Tier:         tier,
		CashBalance:  d(cash),
	}
	require.NoError(t, f.store.CreateUser(context.Background(), user))
	return user
}

func (f *fixture) cashOf(t *testing.T, userID uint) decimal.Decimal {
	t.Helper()
	user, err := f.store.GetUser(context.Background(), userID)
	require.NoError(t, err)
	return user.CashBalance
}

func TestBuyThenSell(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.createUser(t, models.TierBeginner, "100000")

	f.us.prices["AAPL"] = d("50")
	resp, err := f.svc.Buy(ctx, user.ID, "AAPL", models.MarketUS, d("100"))
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Price.Equal(d("50")))
	assert.True(t, f.cashOf(t, user.ID).Equal(d("95000")))

	f.us.prices["AAPL"] = d("60")
	_, err = f.svc.Sell(ctx, user.ID, "AAPL", models.MarketUS, d("40"))
	require.NoError(t, err)
	assert.True(t, f.cashOf(t, user.ID).Equal(d("97400")))

	pos, err := f.store.GetPosition(ctx, user.ID, "AAPL", models.MarketUS)
	require.NoError(t, err)
	assert.True(t, pos.Shares.Equal(d("60")))
	assert.True(t, pos.AvgPrice.Equal(d("50")), "cost basis unchanged by a partial sell")

	txs, err := f.svc.Transactions(ctx, user.ID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, txs, 2)
}

func TestShortRequiresIntermediateTier(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.createUser(t, models.TierBeginner, "100000")

	f.us.prices["TSLA"] = d("200")
	_, err := f.svc.Short(ctx, user.ID, "TSLA", models.MarketUS, d("1"))
	assert.ErrorIs(t, err, ledger.ErrTierTooLow)

	_, err = f.svc.Cover(ctx, user.ID, "TSLA", models.MarketUS, d("1"))
	assert.ErrorIs(t, err, ledger.ErrTierTooLow)
}

func TestShortAndCoverFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.createUser(t, models.TierIntermediate, "100000")

	require.NoError(t, f.store.UpsertShortable(ctx, models.ShortableStock{
		Symbol: "TSLA", Market: models.MarketUS, BorrowRateAnnual: d("0.08"), Available: true,
	}))

	f.us.prices["TSLA"] = d("200")
	resp, err := f.svc.Short(ctx, user.ID, "TSLA", models.MarketUS, d("10"))
	require.NoError(t, err)
	assert.True(t, resp.BorrowRateAnnual.Equal(d("0.08")))
	assert.True(t, f.cashOf(t, user.ID).Equal(d("102000")), "short proceeds credited")

	pos, err := f.store.GetPosition(ctx, user.ID, "TSLA", models.MarketUS)
	require.NoError(t, err)
	assert.True(t, pos.Shares.Equal(d("-10")))
	assert.True(t, pos.AvgPrice.Equal(d("200")))
	assert.True(t, pos.BorrowRateAnnual.Equal(d("0.08")))

	f.us.prices["TSLA"] = d("180")
	_, err = f.svc.Cover(ctx, user.ID, "TSLA", models.MarketUS, d("10"))
	require.NoError(t, err)
	assert.True(t, f.cashOf(t, user.ID).Equal(d("100200")), "covered below entry for a gain")

	pos, err = f.store.GetPosition(ctx, user.ID, "TSLA", models.MarketUS)
	require.NoError(t, err)
	assert.True(t, pos.Shares.IsZero())
}

func TestShortRejectedWhenNotShortable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.createUser(t, models.TierIntermediate, "1000000")

	f.us.prices["TSLA"] = d("200")
	_, err := f.svc.Short(ctx, user.ID, "TSLA", models.MarketUS, d("1"))
	assert.ErrorIs(t, err, ledger.ErrNotShortable)

	// Shortable on a different market does not count.
	require.NoError(t, f.store.UpsertShortable(ctx, models.ShortableStock{
		Symbol: "TSLA", Market: models.MarketIN, BorrowRateAnnual: d("0.08"), Available: true,
	}))
	_, err = f.svc.Short(ctx, user.ID, "TSLA", models.MarketUS, d("1"))
	assert.ErrorIs(t, err, ledger.ErrNotShortable)
}

func TestTradeAbortsWithoutQuote(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.createUser(t, models.TierBeginner, "100000")

	f.us.err = errors.New("provider down")
	_, err := f.svc.Buy(ctx, user.ID, "AAPL", models.MarketUS, d("10"))
	assert.ErrorIs(t, err, ledger.ErrPriceUnavailable)

	// No side effect on the account.
	assert.True(t, f.cashOf(t, user.ID).Equal(d("100000")))
	pos, err := f.store.GetPosition(ctx, user.ID, "AAPL", models.MarketUS)
	require.NoError(t, err)
	assert.Nil(t, pos)
}

func TestInvalidQuantityRejectedBeforeQuote(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.createUser(t, models.TierBeginner, "100000")

	// Even with the provider down, a bad quantity fails as validation.
	f.us.err = errors.New("provider down")
	_, err := f.svc.Buy(ctx, user.ID, "AAPL", models.MarketUS, d("0"))
	assert.ErrorIs(t, err, ledger.ErrInvalidQuantity)
}

func TestPortfolioSummary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.createUser(t, models.TierIntermediate, "100000")

	f.us.prices["AAPL"] = d("100")
	_, err := f.svc.Buy(ctx, user.ID, "AAPL", models.MarketUS, d("10"))
	require.NoError(t, err)

	f.us.prices["AAPL"] = d("120")
	summary, err := f.svc.PortfolioSummary(ctx, user.ID)
	require.NoError(t, err)

	// Cash 99000, long value 1200.
	assert.True(t, summary.CashBalance.Equal(d("99000")))
	assert.True(t, summary.Equity.Equal(d("100200")), "equity %s", summary.Equity)
	assert.True(t, summary.MaintenanceRequired.IsZero())
	assert.False(t, summary.InMarginCall)
	require.Len(t, summary.Positions, 1)
	assert.True(t, summary.Positions[0].UnrealizedPnL.Equal(d("200")))
}

func TestSimulateDailyInterestIsIdempotentPerDay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.createUser(t, models.TierIntermediate, "100000")

	require.NoError(t, f.store.UpsertShortable(ctx, models.ShortableStock{
		Symbol: "TSLA", Market: models.MarketUS, BorrowRateAnnual: d("0.10"), Available: true,
	}))
	f.us.prices["TSLA"] = d("100")
	_, err := f.svc.Short(ctx, user.ID, "TSLA", models.MarketUS, d("100"))
	require.NoError(t, err)

	cashBefore := f.cashOf(t, user.ID)

	applied, err := f.svc.SimulateDailyInterest(ctx)
	require.NoError(t, err)
	require.Len(t, applied, 1)

	// Notional 10000 at 10%: one day's interest ≈ 2.7397.
	expected := cashBefore.Sub(d("10000").Mul(d("0.10")).Div(d("365")))
	assert.True(t, f.cashOf(t, user.ID).Equal(expected), "cash %s", f.cashOf(t, user.ID))

	// Re-running within the same day charges nothing further.
	applied, err = f.svc.SimulateDailyInterest(ctx)
	require.NoError(t, err)
	assert.Empty(t, applied)
	assert.True(t, f.cashOf(t, user.ID).Equal(expected))
}

func TestSimulateDailyInterestSkipsFailedQuotes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.createUser(t, models.TierIntermediate, "100000")

	for _, sym := range []string{"TSLA", "NVDA"} {
		require.NoError(t, f.store.UpsertShortable(ctx, models.ShortableStock{
			Symbol: sym, Market: models.MarketUS, BorrowRateAnnual: d("0.10"), Available: true,
		}))
	}
	f.us.prices["TSLA"] = d("100")
	f.us.prices["NVDA"] = d("500")
	_, err := f.svc.Short(ctx, user.ID, "TSLA", models.MarketUS, d("10"))
	require.NoError(t, err)
	_, err = f.svc.Short(ctx, user.ID, "NVDA", models.MarketUS, d("10"))
	require.NoError(t, err)

	// NVDA's quote disappears; TSLA still accrues.
	delete(f.us.prices, "NVDA")
	applied, err := f.svc.SimulateDailyInterest(ctx)
	require.NoError(t, err)
	require.Len(t, applied, 1)
	assert.Equal(t, "TSLA", applied[0].Symbol)
}

func TestRefreshShortable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.us.symbols = []string{"AAPL", "MSFT", "TSLA", "NVDA", "AMZN", "GOOG", "META"}
	f.in.symbols = []string{"INFY", "TCS", "RELIANCE"}

	counts, err := f.svc.RefreshShortable(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, counts["us"], "half the selection count per market")
	assert.Equal(t, 3, counts["in"], "clamped to the universe size")

	entries, err := f.svc.ListShortable(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, entries, 8)
	for _, e := range entries {
		assert.True(t, e.Available)
		assert.True(t, e.BorrowRateAnnual.GreaterThanOrEqual(d("0.02")))
		assert.True(t, e.BorrowRateAnnual.LessThanOrEqual(d("0.18")))
	}
}

func TestRefreshShortableContinuesPastFailedMarket(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.us.err = errors.New("provider down")
	f.in.symbols = []string{"INFY", "TCS"}

	counts, err := f.svc.RefreshShortable(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, counts["us"])
	assert.Equal(t, 2, counts["in"])
}

func TestSnapshotEquity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.createUser(t, models.TierBeginner, "50000")

	snap, err := f.svc.SnapshotEquity(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, snap.UserID)
	assert.True(t, snap.TotalEquity.Equal(d("50000")))
	assert.NotZero(t, snap.ID, "snapshot persisted")
}
