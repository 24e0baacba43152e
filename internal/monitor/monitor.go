// Package monitor runs the periodic balance reporter. It only reads from
// the exchange and never places orders, so it can run alongside the
// decision loop without coordination.
package monitor

import (
	"context"
	"time"

	"github.com/vcampos/spotkit/internal/exchange"
	"github.com/vcampos/spotkit/internal/logger"
	"go.uber.org/zap"
)

// BalanceMonitor logs the base and quote balances at a fixed interval until
// its context is cancelled. Fetch failures are logged and the next tick
// tries again.
type BalanceMonitor struct {
	ex         exchange.Exchange
	baseAsset  string
	quoteAsset string
	interval   time.Duration
	log        *logger.Logger
}

// NewBalanceMonitor builds a monitor for one asset pair.
func NewBalanceMonitor(ex exchange.Exchange, baseAsset, quoteAsset string, interval time.Duration, log *logger.Logger) *BalanceMonitor {
	return &BalanceMonitor{
		ex:         ex,
		baseAsset:  baseAsset,
		quoteAsset: quoteAsset,
		interval:   interval,
		log:        log,
	}
}

// Run blocks until ctx is cancelled. Call it in its own goroutine.
func (m *BalanceMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.report(ctx)
		}
	}
}

func (m *BalanceMonitor) report(ctx context.Context) {
	base, err := m.ex.GetBalance(ctx, m.baseAsset)
	if err != nil {
		m.log.Error("balance monitor fetch failed", zap.String("asset", m.baseAsset), zap.Error(err))

		return
	}

	quote, err := m.ex.GetBalance(ctx, m.quoteAsset)
	if err != nil {
		m.log.Error("balance monitor fetch failed", zap.String("asset", m.quoteAsset), zap.Error(err))

		return
	}

	m.log.Info("balances",
		zap.String(m.baseAsset, base.Free.String()),
		zap.String(m.quoteAsset, quote.Free.String()),
		zap.String("source", "periodic_monitor"))
}
