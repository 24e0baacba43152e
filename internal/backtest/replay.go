package backtest

import (
	"time"

	"github.com/google/uuid"
	"github.com/vcampos/spotkit/internal/config"
	"github.com/vcampos/spotkit/internal/logger"
	"github.com/vcampos/spotkit/internal/types"
	"github.com/vcampos/spotkit/pkg/errors"
	"go.uber.org/zap"
)

// ReplayInput is one historical run: a price series and the signal decided
// at each step. Timestamps are optional; synthetic daily stamps are
// generated when absent.
type ReplayInput struct {
	Symbol     string
	Prices     []float64
	Signals    []types.Signal
	Timestamps []time.Time
}

// ReplayResult bundles the graded stats with the raw trade ledger and
// equity curve for export.
type ReplayResult struct {
	Stats  types.BacktestStats
	Trades []types.Trade
	Equity []types.EquitySample
}

// ReplayAccountant replays a signal history against a paper ledger. Buys
// only open from flat and sells only close an open position; every other
// signal is a no-op for the account. A still-open position is force-closed
// at the final price so the run always ends in cash.
type ReplayAccountant struct {
	cfg config.BacktestConfig
	log *logger.Logger
}

// NewReplayAccountant builds an accountant from a validated config.
func NewReplayAccountant(cfg config.BacktestConfig, log *logger.Logger) *ReplayAccountant {
	return &ReplayAccountant{
		cfg: cfg,
		log: log,
	}
}

// Run replays the input and grades the result.
func (a *ReplayAccountant) Run(input ReplayInput) (*ReplayResult, error) {
	if len(input.Prices) == 0 {
		return nil, errors.New(errors.ErrCodeBacktestEmptyInput, "price series is empty")
	}

	if len(input.Prices) != len(input.Signals) {
		return nil, errors.Newf(errors.ErrCodeBacktestLengthSkew,
			"%d prices but %d signals", len(input.Prices), len(input.Signals))
	}

	if len(input.Timestamps) > 0 && len(input.Timestamps) != len(input.Prices) {
		return nil, errors.Newf(errors.ErrCodeBacktestLengthSkew,
			"%d prices but %d timestamps", len(input.Prices), len(input.Timestamps))
	}

	symbol := input.Symbol
	if symbol == "" {
		symbol = a.cfg.Symbol
	}

	ledger := NewLedger(a.cfg.InitialCapital, a.cfg.FeeRate)

	for i, price := range input.Prices {
		ts := a.timestampAt(input, i)

		switch input.Signals[i] {
		case types.SignalBuy:
			if !ledger.Holding() {
				notional := ledger.Cash() * a.cfg.TradeFraction
				if notional >= a.cfg.MinNotional {
					ledger.Buy(ts, symbol, price, notional, types.Reason{Reason: types.OrderReasonSignal})
				}
			}

		case types.SignalSell:
			ledger.Sell(ts, symbol, price, types.Reason{Reason: types.OrderReasonSignal})
		}

		ledger.Sample(ts, price)
	}

	// Close out whatever is still held so the final capital is comparable
	// across runs.
	if ledger.Holding() {
		last := len(input.Prices) - 1
		ledger.Sell(a.timestampAt(input, last), symbol, input.Prices[last],
			types.Reason{Reason: types.OrderReasonForcedExit, Message: "position open at end of data"})
	}

	stats := gradeRun(symbol, a.cfg.InitialCapital, ledger)

	if a.log != nil {
		a.log.Info("replay complete",
			zap.String("symbol", symbol),
			zap.Int("steps", len(input.Prices)),
			zap.Int("trades", stats.TradeResult.NumberOfTrades),
			zap.Float64("total_return_pct", stats.TotalReturnPct))
	}

	return &ReplayResult{
		Stats:  stats,
		Trades: ledger.Trades(),
		Equity: ledger.EquityCurve(),
	}, nil
}

func (a *ReplayAccountant) timestampAt(input ReplayInput, i int) time.Time {
	if len(input.Timestamps) > 0 {
		return input.Timestamps[i]
	}

	return time.Unix(0, 0).UTC().Add(time.Duration(i) * 24 * time.Hour)
}

// gradeRun derives the summary stats from a finished ledger.
func gradeRun(symbol string, initialCapital float64, ledger *Ledger) types.BacktestStats {
	finalCapital := ledger.Cash()

	stats := types.BacktestStats{
		ID:             uuid.New().String(),
		Timestamp:      time.Now(),
		Symbol:         symbol,
		InitialCapital: initialCapital,
		FinalCapital:   finalCapital,
		TotalReturnPct: (finalCapital - initialCapital) / initialCapital * 100,
		TotalFees:      ledger.TotalFees(),
		TradeResult:    summarizeTrades(ledger.Trades()),
		Metrics:        computeMetrics(ledger.Trades(), ledger.EquityCurve()),
	}

	stats.NoTrades = stats.TradeResult.NumberOfSells == 0

	if stats.NoTrades {
		stats.Metrics = types.PerformanceMetrics{
			AvgWinPct:      0,
			AvgLossPct:     0,
			BestTradePct:   0,
			WorstTradePct:  0,
			ProfitFactor:   0,
			MaxDrawdownPct: stats.Metrics.MaxDrawdownPct,
			SharpeRatio:    stats.Metrics.SharpeRatio,
		}
	}

	return stats
}
