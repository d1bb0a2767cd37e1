package ledger

import "errors"

// Trade rejection reasons. The API layer maps these onto response codes, so
// callers can tell an input problem from a business-rule failure.
var (
	// ErrInvalidQuantity is a validation failure: quantity must be > 0.
	// It is checked before any state is read.
	ErrInvalidQuantity = errors.New("quantity must be greater than zero")

	ErrInsufficientCash   = errors.New("insufficient cash")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrNoPosition         = errors.New("no open position")
	ErrNotShortable       = errors.New("symbol not shortable")
	ErrTierTooLow         = errors.New("account tier does not permit this operation")

	// ErrPriceUnavailable means a quote could not be obtained for a trade.
	// Trades cannot be priced without a quote, so this aborts the trade
	// before any mutation.
	ErrPriceUnavailable = errors.New("price unavailable")
)
