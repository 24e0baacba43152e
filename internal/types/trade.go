package types

import (
	"time"

	"github.com/moznion/go-optional"
)

// Trade is one entry in the append-only trade ledger. A record is created at
// each successful buy or sell and never mutated afterwards. PnL fields are
// populated for sells only, relative to the stored entry price.
type Trade struct {
	Timestamp time.Time    `yaml:"timestamp" json:"timestamp" csv:"timestamp"`
	Symbol    string       `yaml:"symbol" json:"symbol" csv:"symbol"`
	Side      PurchaseType `yaml:"side" json:"side" csv:"side"`
	Price     float64      `yaml:"price" json:"price" csv:"price"`
	Quantity  float64      `yaml:"quantity" json:"quantity" csv:"quantity"`
	Notional  float64      `yaml:"notional" json:"notional" csv:"notional"`
	Fee       float64      `yaml:"fee" json:"fee" csv:"fee"`
	Reason    Reason       `yaml:"reason" json:"reason" csv:"reason"`
	// EntryPrice is the remembered entry of the position this sell is
	// closing. None for buys.
	EntryPrice optional.Option[float64] `yaml:"entry_price" json:"entry_price" csv:"entry_price"`
	// PnL is the realized profit and loss for a sell, net of the sell fee.
	PnL optional.Option[float64] `yaml:"pnl" json:"pnl" csv:"pnl"`
	// PnLPct is the percentage move of the sell price relative to the entry
	// price, gross of fees.
	PnLPct optional.Option[float64] `yaml:"pnl_pct" json:"pnl_pct" csv:"pnl_pct"`
}

// IsWinner reports whether this trade is a completed sell with positive PnL.
func (t Trade) IsWinner() bool {
	return t.Side == PurchaseTypeSell && t.PnL.IsSome() && t.PnL.Unwrap() > 0
}

// IsLoser reports whether this trade is a completed sell with negative PnL.
func (t Trade) IsLoser() bool {
	return t.Side == PurchaseTypeSell && t.PnL.IsSome() && t.PnL.Unwrap() < 0
}

// EquitySample is one point on the equity curve: total equity is cash plus
// position valued at the sample price. One sample per processed time step,
// owned exclusively by the ledger that produced it.
type EquitySample struct {
	Timestamp time.Time `yaml:"timestamp" json:"timestamp" csv:"timestamp"`
	Price     float64   `yaml:"price" json:"price" csv:"price"`
	Equity    float64   `yaml:"equity" json:"equity" csv:"equity"`
	Cash      float64   `yaml:"cash" json:"cash" csv:"cash"`
	Position  float64   `yaml:"position" json:"position" csv:"position"`
}
