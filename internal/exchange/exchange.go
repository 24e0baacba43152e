// Package exchange abstracts the spot exchange behind a small interface so
// the executor and the decision loop can be tested against fakes. The only
// real implementation talks to Binance.
package exchange

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/vcampos/spotkit/internal/types"
)

// Balance is one asset's free and locked amounts.
type Balance struct {
	Asset  string
	Free   decimal.Decimal
	Locked decimal.Decimal
}

// Total returns free plus locked.
func (b Balance) Total() decimal.Decimal {
	return b.Free.Add(b.Locked)
}

// Exchange is the surface the execution layer depends on. Every call takes a
// context because each one is a network round trip on the real
// implementation.
type Exchange interface {
	// GetBalance returns the balance for one asset. An asset the account
	// has never held comes back as a zero balance, not an error.
	GetBalance(ctx context.Context, asset string) (Balance, error)

	// GetPrice returns the current price for a symbol.
	GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error)

	// GetSymbolFilters fetches and validates the symbol's quantization
	// rules. A symbol missing any required filter is not tradable and the
	// call fails with a coded error.
	GetSymbolFilters(ctx context.Context, symbol string) (types.SymbolFilters, error)

	// PlaceOrder submits a normalized order. Limit orders take their price
	// from the order's LimitPrice; submitting a limit order without one is
	// an error, not a silent market order.
	PlaceOrder(ctx context.Context, order types.NormalizedOrder, orderType types.OrderType) (types.OrderHandle, error)

	// GetOrderStatus reports the current status of a resting order.
	GetOrderStatus(ctx context.Context, handle types.OrderHandle) (types.OrderStatus, error)

	// CancelOrder cancels a resting order. Failure leaves the order in an
	// unknown state; callers must not follow up with another order until
	// the state is resolved.
	CancelOrder(ctx context.Context, handle types.OrderHandle) error
}
