package types

import (
	"github.com/shopspring/decimal"
	"github.com/vcampos/spotkit/pkg/errors"
)

// SymbolFilters holds the per-symbol quantization rules imposed by the
// exchange: the smallest tradable quantity increment, the smallest price
// increment, and the minimum trade value in quote currency. Immutable once
// constructed; fetched and validated once per symbol.
type SymbolFilters struct {
	Symbol      string          `yaml:"symbol" json:"symbol"`
	StepSize    decimal.Decimal `yaml:"step_size" json:"step_size"`
	TickSize    decimal.Decimal `yaml:"tick_size" json:"tick_size"`
	MinNotional decimal.Decimal `yaml:"min_notional" json:"min_notional"`
}

// NewSymbolFilters constructs validated symbol filters. All three values must
// be positive; a zero value means the exchange response was missing an
// expected filter and the caller must not trade the symbol.
func NewSymbolFilters(symbol string, stepSize, tickSize, minNotional decimal.Decimal) (SymbolFilters, error) {
	if symbol == "" {
		return SymbolFilters{}, errors.New(errors.ErrCodeInvalidFilter, "symbol is required")
	}

	if stepSize.Sign() <= 0 {
		return SymbolFilters{}, errors.Newf(errors.ErrCodeInvalidFilter,
			"step size must be positive for %s, got %s", symbol, stepSize)
	}

	if tickSize.Sign() <= 0 {
		return SymbolFilters{}, errors.Newf(errors.ErrCodeInvalidFilter,
			"tick size must be positive for %s, got %s", symbol, tickSize)
	}

	if minNotional.Sign() <= 0 {
		return SymbolFilters{}, errors.Newf(errors.ErrCodeInvalidFilter,
			"min notional must be positive for %s, got %s", symbol, minNotional)
	}

	return SymbolFilters{
		Symbol:      symbol,
		StepSize:    stepSize,
		TickSize:    tickSize,
		MinNotional: minNotional,
	}, nil
}

// FloorToStep rounds a quantity down to the nearest multiple of the step size.
func (f SymbolFilters) FloorToStep(qty decimal.Decimal) decimal.Decimal {
	return qty.Div(f.StepSize).Floor().Mul(f.StepSize)
}

// CeilToStep rounds a quantity up to the nearest multiple of the step size.
func (f SymbolFilters) CeilToStep(qty decimal.Decimal) decimal.Decimal {
	return qty.Div(f.StepSize).Ceil().Mul(f.StepSize)
}

// FloorToTick rounds a price down to the nearest multiple of the tick size.
func (f SymbolFilters) FloorToTick(price decimal.Decimal) decimal.Decimal {
	return price.Div(f.TickSize).Floor().Mul(f.TickSize)
}

// CeilToTick rounds a price up to the nearest multiple of the tick size.
func (f SymbolFilters) CeilToTick(price decimal.Decimal) decimal.Decimal {
	return price.Div(f.TickSize).Ceil().Mul(f.TickSize)
}
