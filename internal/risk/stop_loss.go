// Package risk holds the protective checks that run before any signal is
// considered. Today that is the stop-loss guard; the decision loop consults
// it first on every cycle and a triggered exit preempts the cycle's signal.
package risk

import (
	"sync"

	"github.com/shopspring/decimal"
	"github.com/vcampos/spotkit/internal/logger"
	"go.uber.org/zap"
)

// DefaultLossFraction is substituted when the configured fraction is not a
// valid proportion.
const DefaultLossFraction = 0.01

// StopLossGuard tracks entry prices per symbol and answers whether the
// current price has fallen to or past the configured loss threshold.
// Safe for concurrent use; the balance monitor may read while the decision
// loop writes.
type StopLossGuard struct {
	mu           sync.RWMutex
	lossFraction decimal.Decimal
	entries      map[string]decimal.Decimal
}

// NewStopLossGuard builds a guard with the given loss fraction. A fraction
// outside (0, 1) is replaced with DefaultLossFraction and logged as a
// warning rather than rejected, so a misconfigured deployment still trades
// with protection.
func NewStopLossGuard(lossFraction float64, log *logger.Logger) *StopLossGuard {
	if lossFraction <= 0 || lossFraction >= 1 {
		if log != nil {
			log.Warn("invalid stop loss fraction, using default",
				zap.Float64("configured", lossFraction),
				zap.Float64("default", DefaultLossFraction))
		}
		lossFraction = DefaultLossFraction
	}

	return &StopLossGuard{
		lossFraction: decimal.NewFromFloat(lossFraction),
		entries:      make(map[string]decimal.Decimal),
	}
}

// SetEntry records the entry price after a confirmed buy. It overwrites any
// previous entry for the symbol.
func (g *StopLossGuard) SetEntry(symbol string, price decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entries[symbol] = price
}

// ClearEntry forgets the entry after a confirmed exit. Clearing a symbol
// with no entry is a no-op.
func (g *StopLossGuard) ClearEntry(symbol string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.entries, symbol)
}

// Entry returns the recorded entry price for the symbol, if any.
func (g *StopLossGuard) Entry(symbol string) (decimal.Decimal, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	price, ok := g.entries[symbol]
	return price, ok
}

// ShouldExit reports whether the price has reached the stop level
// entry * (1 - lossFraction). A symbol with no recorded entry never exits.
// The comparison is inclusive: landing exactly on the stop level triggers.
func (g *StopLossGuard) ShouldExit(symbol string, price decimal.Decimal) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	entry, ok := g.entries[symbol]
	if !ok {
		return false
	}

	stop := entry.Mul(decimal.NewFromInt(1).Sub(g.lossFraction))
	return price.LessThanOrEqual(stop)
}

// LossFraction returns the effective fraction after any default substitution.
func (g *StopLossGuard) LossFraction() decimal.Decimal {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.lossFraction
}
