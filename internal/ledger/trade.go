// Package ledger implements the position and margin accounting core: the
// rules that keep cash balances, share holdings, average cost basis and
// short-margin exposure consistent as trades and interest accrual are applied.
//
// Everything in this package is pure computation over decimals. Persistence
// and quote fetching are collaborators supplied by the caller.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"tradesphere/internal/models"
)

// PositionState is the slice of a position the accounting rules operate on.
// Shares are signed: positive long, negative short.
type PositionState struct {
	Shares           decimal.Decimal
	AvgPrice         decimal.Decimal
	BorrowRateAnnual decimal.Decimal
}

// Trade describes one order to apply against a position. Quantity is always
// positive; Type carries the direction.
type Trade struct {
	Symbol   string
	Market   models.Market
	Type     models.TransactionType
	Quantity decimal.Decimal
	Price    decimal.Decimal
	Fees     decimal.Decimal
}

// TradeOptions carries the collaborating state a trade check needs beyond the
// position itself.
type TradeOptions struct {
	// Shortable is the shortable-universe entry for the traded symbol, nil
	// if the symbol is not in the universe. Only consulted for SHORT.
	Shortable *models.ShortableStock
	// InitialMarginMultiplier is the initial short margin requirement as a
	// multiple of notional (1.5 by default).
	InitialMarginMultiplier decimal.Decimal
}

// TradeResult is the outcome of a successfully applied trade: the new
// position state, the signed cash delta to settle against the account, and
// the transaction record to append to the log.
type TradeResult struct {
	Position    PositionState
	CashDelta   decimal.Decimal
	Transaction models.Transaction
}

// ApplyTrade runs one buy/sell/short/cover against the current cash balance
// and position, returning the new position state and cash delta. pos is nil
// when no position exists yet for the (user, symbol, market) tuple.
//
// A rejected trade returns a zero TradeResult and one of the sentinel errors
// from this package; nothing is mutated on rejection.
func ApplyTrade(cash decimal.Decimal, pos *PositionState, t Trade, opts TradeOptions) (TradeResult, error) {
	if !t.Quantity.IsPositive() {
		return TradeResult{}, ErrInvalidQuantity
	}

	notional := t.Quantity.Mul(t.Price)

	var existing PositionState
	if pos != nil {
		existing = *pos
	}

	var (
		delta      decimal.Decimal
		cashDelta  decimal.Decimal
		borrowRate decimal.Decimal
	)

	switch t.Type {
	case models.TxBuy:
		if cash.LessThan(notional.Add(t.Fees)) {
			return TradeResult{}, ErrInsufficientCash
		}
		delta = t.Quantity
		cashDelta = notional.Add(t.Fees).Neg()
		borrowRate = existing.BorrowRateAnnual

	case models.TxSell:
		if pos == nil || !existing.Shares.IsPositive() {
			return TradeResult{}, ErrNoPosition
		}
		if existing.Shares.LessThan(t.Quantity) {
			return TradeResult{}, ErrInsufficientShares
		}
		delta = t.Quantity.Neg()
		cashDelta = notional.Sub(t.Fees)
		borrowRate = existing.BorrowRateAnnual

	case models.TxShort:
		if opts.Shortable == nil || !opts.Shortable.Available {
			return TradeResult{}, ErrNotShortable
		}
		if cash.LessThan(InitialShortMargin(notional, opts.InitialMarginMultiplier)) {
			return TradeResult{}, ErrInsufficientCash
		}
		delta = t.Quantity.Neg()
		// Short-sale proceeds are credited immediately; the initial margin
		// is a requirement check, not a reserved balance.
		cashDelta = notional.Sub(t.Fees)
		borrowRate = opts.Shortable.BorrowRateAnnual

	case models.TxCover:
		if pos == nil || !existing.Shares.IsNegative() {
			return TradeResult{}, ErrNoPosition
		}
		if existing.Shares.Neg().LessThan(t.Quantity) {
			return TradeResult{}, ErrInsufficientShares
		}
		if cash.LessThan(notional) {
			return TradeResult{}, ErrInsufficientCash
		}
		delta = t.Quantity
		cashDelta = notional.Add(t.Fees).Neg()
		borrowRate = existing.BorrowRateAnnual

	default:
		return TradeResult{}, ErrInvalidQuantity
	}

	// Only a SELL keeps the old cost basis; a SHORT placed against a long
	// resets it like any other short entry.
	newPos := updatePosition(existing, delta, t.Price, t.Type == models.TxSell)
	newPos.BorrowRateAnnual = borrowRate

	return TradeResult{
		Position:  newPos,
		CashDelta: cashDelta,
		Transaction: models.Transaction{
			Symbol:      t.Symbol,
			Market:      t.Market,
			Type:        t.Type,
			Quantity:    t.Quantity,
			Price:       t.Price,
			Fees:        t.Fees,
			TotalAmount: notional,
			Timestamp:   time.Now().UTC(),
		},
	}, nil
}

// updatePosition applies a signed share delta to a position. The average
// price is blended as a weighted mean only when extending a non-negative
// position upward (delta > 0 and existing shares >= 0); in every other case
// the average price is replaced with the trade price. In particular a flip
// from long to short (or back) never blends across the sign change.
//
// retainBasis marks a long-reducing SELL, which keeps the old cost basis
// instead of taking the trade price.
func updatePosition(existing PositionState, delta, price decimal.Decimal, retainBasis bool) PositionState {
	newShares := existing.Shares.Add(delta)

	if delta.IsPositive() && !existing.Shares.IsNegative() {
		blended := existing.AvgPrice.Mul(existing.Shares).
			Add(price.Mul(delta)).
			Div(newShares)
		return PositionState{Shares: newShares, AvgPrice: blended}
	}

	// Selling down a long keeps its cost basis; a SELL is capped at the
	// long quantity, so shares can never cross zero on this path with the
	// average price of the old side.
	if retainBasis && existing.Shares.IsPositive() && !newShares.IsNegative() {
		return PositionState{Shares: newShares, AvgPrice: existing.AvgPrice}
	}

	return PositionState{Shares: newShares, AvgPrice: price}
}
