package sizing

import (
	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
	"github.com/vcampos/spotkit/internal/types"
	"github.com/vcampos/spotkit/pkg/errors"
)

// NormalizeInput is one quantization request.
type NormalizeInput struct {
	Side types.PurchaseType
	// Requested is a quote-currency notional for buys and a base-currency
	// quantity for sells.
	Requested decimal.Decimal
	// Price is the reference price at decision time.
	Price decimal.Decimal
	// Available is the free quote balance for buys and the free base
	// quantity for sells. The normalized order never exceeds it.
	Available decimal.Decimal
	Filters   types.SymbolFilters
}

// Normalize fits a requested amount onto the exchange grid. The rounding
// direction is load-bearing: quantities floor toward affordability and only
// ceil to satisfy the exchange minimum, never the reverse. Running Normalize
// on its own output returns the same quantity.
func Normalize(in NormalizeInput) (types.NormalizedOrder, error) {
	if in.Price.Sign() <= 0 {
		return types.NormalizedOrder{}, errors.Newf(errors.ErrCodeInvalidParameter,
			"reference price must be positive, got %s", in.Price)
	}

	step := in.Filters.StepSize

	// Step 1: requested notional to raw quantity (buy), or clamp the
	// requested quantity to what is actually held (sell).
	var raw decimal.Decimal

	switch in.Side {
	case types.PurchaseTypeBuy:
		raw = in.Requested.Div(in.Price)
	case types.PurchaseTypeSell:
		raw = decimal.Min(in.Requested, in.Available)
	default:
		return types.NormalizedOrder{}, errors.Newf(errors.ErrCodeInvalidParameter,
			"unsupported side: %s", in.Side)
	}

	// Step 2: floor to the step grid; a floor to zero substitutes exactly
	// one step unit. Sells can only do that when one step is actually held.
	qty := in.Filters.FloorToStep(raw)
	if qty.Sign() <= 0 {
		if in.Side == types.PurchaseTypeSell && in.Available.LessThan(step) {
			return types.NormalizedOrder{}, errors.Newf(errors.ErrCodeNothingToSell,
				"available %s %s is below one step %s", in.Available, in.Filters.Symbol, step)
		}

		qty = step
	}

	// Step 3: raise to the exchange minimum notional by ceiling division in
	// steps.
	notional := qty.Mul(in.Price)
	if notional.LessThan(in.Filters.MinNotional) {
		qty = in.Filters.CeilToStep(in.Filters.MinNotional.Div(in.Price))
		notional = qty.Mul(in.Price)
	}

	// Step 4: the raise may have priced the order beyond the balance; floor
	// back down to the maximum affordable quantity in step multiples.
	switch in.Side {
	case types.PurchaseTypeBuy:
		if notional.GreaterThan(in.Available) {
			qty = in.Filters.FloorToStep(in.Available.Div(in.Price))
		}
	case types.PurchaseTypeSell:
		if qty.GreaterThan(in.Available) {
			qty = in.Filters.FloorToStep(in.Available)
		}
	}

	if qty.Sign() <= 0 {
		return types.NormalizedOrder{}, errors.Newf(errors.ErrCodeStepUnaffordable,
			"available %s cannot afford one step of %s at price %s",
			in.Available, step, in.Price)
	}

	notional = qty.Mul(in.Price)
	if notional.LessThan(in.Filters.MinNotional) {
		// The exchange minimum and the balance cannot both be satisfied.
		return types.NormalizedOrder{}, errors.Newf(errors.ErrCodeQuantizeInfeasible,
			"notional %s below exchange minimum %s after balance clamp",
			notional, in.Filters.MinNotional)
	}

	return types.NormalizedOrder{
		Symbol:     in.Filters.Symbol,
		Side:       in.Side,
		Quantity:   qty,
		Notional:   notional,
		LimitPrice: optional.None[decimal.Decimal](),
	}, nil
}

// MakerLimitPrice derives the passive limit price for a maker order: offset
// from the reference price by the configured fraction, then floored to the
// tick grid for buys and raised for sells so the order rests better than
// market in both directions.
func MakerLimitPrice(side types.PurchaseType, price decimal.Decimal, offset decimal.Decimal, filters types.SymbolFilters) decimal.Decimal {
	one := decimal.NewFromInt(1)

	switch side {
	case types.PurchaseTypeSell:
		return filters.CeilToTick(price.Mul(one.Add(offset)))
	default:
		return filters.FloorToTick(price.Mul(one.Sub(offset)))
	}
}
