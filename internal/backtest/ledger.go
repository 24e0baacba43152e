// Package backtest replays a price and signal history through the same
// accounting rules the live engine uses and grades the result. The paper
// ledger also backs the simulated dry-run mode of the live engine.
package backtest

import (
	"time"

	"github.com/moznion/go-optional"
	"github.com/vcampos/spotkit/internal/types"
)

// Ledger is a single-position paper account. Fees are charged on every
// fill at the configured rate. Not safe for concurrent use.
type Ledger struct {
	cash       float64
	position   float64
	entryPrice float64
	feeRate    float64
	totalFees  float64

	trades []types.Trade
	equity []types.EquitySample
}

// NewLedger starts a paper account with the given cash and fee rate.
func NewLedger(initialCash, feeRate float64) *Ledger {
	return &Ledger{
		cash:    initialCash,
		feeRate: feeRate,
	}
}

// Holding reports whether the account currently holds a position.
func (l *Ledger) Holding() bool {
	return l.position > 0
}

// Cash returns the free quote balance.
func (l *Ledger) Cash() float64 {
	return l.cash
}

// Position returns the held base quantity.
func (l *Ledger) Position() float64 {
	return l.position
}

// EntryPrice returns the price the open position was bought at. Zero when
// flat.
func (l *Ledger) EntryPrice() float64 {
	if !l.Holding() {
		return 0
	}

	return l.entryPrice
}

// TotalFees returns the cumulative fees charged.
func (l *Ledger) TotalFees() float64 {
	return l.totalFees
}

// Trades returns the append-only trade ledger.
func (l *Ledger) Trades() []types.Trade {
	return l.trades
}

// EquityCurve returns the recorded equity samples.
func (l *Ledger) EquityCurve() []types.EquitySample {
	return l.equity
}

// Equity values the account at the given price.
func (l *Ledger) Equity(price float64) float64 {
	return l.cash + l.position*price
}

// Buy spends notional quote currency at the given price. The fee comes out
// of the spent amount, so the acquired quantity is notional*(1-fee)/price.
// Returns false without mutating when already holding, the notional is not
// positive, or the cash cannot cover it.
func (l *Ledger) Buy(ts time.Time, symbol string, price, notional float64, reason types.Reason) (types.Trade, bool) {
	if l.Holding() || notional <= 0 || price <= 0 || notional > l.cash {
		return types.Trade{}, false
	}

	fee := notional * l.feeRate
	qty := (notional - fee) / price

	l.cash -= notional
	l.position = qty
	l.entryPrice = price
	l.totalFees += fee

	trade := types.Trade{
		Timestamp:  ts,
		Symbol:     symbol,
		Side:       types.PurchaseTypeBuy,
		Price:      price,
		Quantity:   qty,
		Notional:   notional,
		Fee:        fee,
		Reason:     reason,
		EntryPrice: optional.None[float64](),
		PnL:        optional.None[float64](),
		PnLPct:     optional.None[float64](),
	}
	l.trades = append(l.trades, trade)

	return trade, true
}

// Sell closes the whole position at the given price. The fee comes off the
// gross proceeds. Returns false without mutating when flat.
func (l *Ledger) Sell(ts time.Time, symbol string, price float64, reason types.Reason) (types.Trade, bool) {
	if !l.Holding() || price <= 0 {
		return types.Trade{}, false
	}

	gross := l.position * price
	fee := gross * l.feeRate
	gain := gross - fee
	cost := l.position * l.entryPrice
	pnl := gain - cost
	pnlPct := (price - l.entryPrice) / l.entryPrice * 100

	trade := types.Trade{
		Timestamp:  ts,
		Symbol:     symbol,
		Side:       types.PurchaseTypeSell,
		Price:      price,
		Quantity:   l.position,
		Notional:   gross,
		Fee:        fee,
		Reason:     reason,
		EntryPrice: optional.Some(l.entryPrice),
		PnL:        optional.Some(pnl),
		PnLPct:     optional.Some(pnlPct),
	}
	l.trades = append(l.trades, trade)

	l.cash += gain
	l.position = 0
	l.entryPrice = 0
	l.totalFees += fee

	return trade, true
}

// Sample records one equity curve point at the given price.
func (l *Ledger) Sample(ts time.Time, price float64) {
	l.equity = append(l.equity, types.EquitySample{
		Timestamp: ts,
		Price:     price,
		Equity:    l.Equity(price),
		Cash:      l.cash,
		Position:  l.position,
	})
}
