// Package engine runs the live decision loops. A single goroutine owns all
// trading decisions and account mutations; the only concurrent companion is
// the read-only balance monitor. Signal generation is supplied by the
// caller and never computed here.
package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vcampos/spotkit/internal/backtest"
	"github.com/vcampos/spotkit/internal/config"
	"github.com/vcampos/spotkit/internal/exchange"
	"github.com/vcampos/spotkit/internal/executor"
	"github.com/vcampos/spotkit/internal/logger"
	"github.com/vcampos/spotkit/internal/monitor"
	"github.com/vcampos/spotkit/internal/risk"
	"github.com/vcampos/spotkit/internal/sizing"
	"github.com/vcampos/spotkit/internal/types"
	"github.com/vcampos/spotkit/pkg/errors"
	"go.uber.org/zap"
)

// simStartingCash seeds the paper ledger in simulated dry-run mode.
const simStartingCash = 1000.0

// SignalSource supplies the per-cycle market state and trade decision. The
// engine consumes signals and never computes them.
type SignalSource interface {
	Next(ctx context.Context) (types.MarketState, types.Signal, error)
}

// TradeRecorder receives every confirmed fill. Recording failures are
// logged, never fatal.
type TradeRecorder interface {
	Record(trade types.Trade) error
}

// Engine is the live signal-driven trading loop.
type Engine struct {
	cfg      config.TradingConfig
	ex       exchange.Exchange
	source   SignalSource
	recorder TradeRecorder
	log      *logger.Logger

	guard *risk.StopLossGuard
	exec  *executor.Executor
	sim   *backtest.Ledger

	baseAsset  string
	quoteAsset string
}

// NewEngine wires an engine from a validated config. The recorder may be
// nil.
func NewEngine(cfg config.TradingConfig, ex exchange.Exchange, source SignalSource, recorder TradeRecorder, log *logger.Logger) *Engine {
	base, quote := types.SplitSymbol(cfg.Symbol)

	e := &Engine{
		cfg:        cfg,
		ex:         ex,
		source:     source,
		recorder:   recorder,
		log:        log,
		guard:      risk.NewStopLossGuard(cfg.StopLossFraction, log),
		baseAsset:  base,
		quoteAsset: quote,
	}

	if cfg.DryRun == config.DryRunSim {
		e.sim = backtest.NewLedger(simStartingCash, cfg.FeeRate)
	}

	return e
}

// Run blocks until ctx is cancelled. Startup failures, fetching the symbol
// filters above all, are fatal; anything that goes wrong inside a cycle is
// logged and the loop continues on the next tick.
func (e *Engine) Run(ctx context.Context) error {
	filters, err := e.ex.GetSymbolFilters(ctx, e.cfg.Symbol)
	if err != nil {
		return err
	}

	e.exec = executor.NewExecutor(e.ex, filters, e.guard, executor.Config{
		Symbol:           e.cfg.Symbol,
		BaseAsset:        e.baseAsset,
		QuoteAsset:       e.quoteAsset,
		Sizer:            e.sizerParams(),
		SafetyMargin:     e.cfg.SafetyMargin,
		FeeRate:          e.cfg.FeeRate,
		UseMakerOrders:   e.cfg.UseMakerOrders,
		MakerWait:        e.cfg.MakerWait,
		MakerPriceOffset: e.cfg.MakerPriceOffset,
	}, e.log)

	e.log.Info("engine started",
		zap.String("symbol", e.cfg.Symbol),
		zap.String("dry_run", string(e.cfg.DryRun)),
		zap.Bool("testnet", e.cfg.Testnet),
		zap.String("step_size", filters.StepSize.String()),
		zap.String("min_notional", filters.MinNotional.String()))

	monCtx, cancelMonitor := context.WithCancel(ctx)
	defer cancelMonitor()

	mon := monitor.NewBalanceMonitor(e.ex, e.baseAsset, e.quoteAsset, e.cfg.MonitorInterval, e.log)
	go mon.Run(monCtx)

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		e.runCycle(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (e *Engine) sizerParams() sizing.SizerParams {
	return sizing.SizerParams{
		TradeFraction:    e.cfg.TradeFraction,
		FeeRate:          e.cfg.FeeRate,
		MinBase:          e.cfg.MinBase,
		MinMargin:        e.cfg.MinMargin,
		FallbackNotional: e.cfg.FallbackNotional,
	}
}

// runCycle executes one decision cycle. The stop-loss check runs before the
// signal is considered, and a triggered exit preempts the whole cycle.
func (e *Engine) runCycle(ctx context.Context) {
	state, signal, err := e.source.Next(ctx)
	if err != nil {
		e.log.Warn("signal source unavailable", zap.Error(err))

		return
	}

	price := state.Price
	if price <= 0 {
		e.log.Warn("skipping cycle on non-positive price", zap.Float64("price", price))

		return
	}

	if e.checkStopLoss(ctx, price) {
		return
	}

	if signal != types.SignalHold {
		e.log.Info("signal",
			zap.String("symbol", e.cfg.Symbol),
			zap.String("signal", signal.String()),
			zap.Float64("price", price),
			zap.Any("indicators", state.Indicators))
	}

	switch e.cfg.DryRun {
	case config.DryRunLog:
		if signal != types.SignalHold {
			e.log.Info("dry-run: signal not executed",
				zap.String("signal", signal.String()),
				zap.Float64("price", price))
		}

	case config.DryRunSim:
		e.simCycle(price, signal)

	default:
		e.liveCycle(ctx, signal)
	}
}

// checkStopLoss reports true when a protective exit ran (or failed) and the
// cycle must not continue to the signal.
func (e *Engine) checkStopLoss(ctx context.Context, price float64) bool {
	switch e.cfg.DryRun {
	case config.DryRunLog:
		return false

	case config.DryRunSim:
		if !e.sim.Holding() || !e.guard.ShouldExit(e.cfg.Symbol, decimal.NewFromFloat(price)) {
			return false
		}

		e.log.Info("stop loss triggered",
			zap.String("symbol", e.cfg.Symbol),
			zap.Float64("price", price),
			zap.Float64("entry", e.sim.EntryPrice()))

		trade, ok := e.sim.Sell(time.Now(), e.cfg.Symbol, price,
			types.Reason{Reason: types.OrderReasonStopLoss, Message: "simulated protective exit"})
		if ok {
			e.guard.ClearEntry(e.cfg.Symbol)
			e.record(trade)
		}

		return true

	default:
		balance, err := e.ex.GetBalance(ctx, e.baseAsset)
		if err != nil {
			e.log.Error("stop loss balance check failed", zap.Error(err))

			return true
		}

		if balance.Free.Sign() <= 0 || !e.guard.ShouldExit(e.cfg.Symbol, decimal.NewFromFloat(price)) {
			return false
		}

		e.log.Info("stop loss triggered",
			zap.String("symbol", e.cfg.Symbol),
			zap.Float64("price", price))

		trade, err := e.exec.Sell(ctx, decimal.Zero, types.Reason{Reason: types.OrderReasonStopLoss, Message: "protective exit"})
		if err != nil {
			e.logExecutionError("stop loss sell", err)

			return true
		}

		e.record(*trade)

		return true
	}
}

func (e *Engine) simCycle(price float64, signal types.Signal) {
	now := time.Now()

	switch signal {
	case types.SignalBuy:
		if e.sim.Holding() {
			return
		}

		notional, err := sizing.Size(e.sim.Cash(), e.sizerParams())
		if err != nil {
			e.log.Info("buy skipped", zap.Error(err))

			return
		}

		trade, ok := e.sim.Buy(now, e.cfg.Symbol, price, notional,
			types.Reason{Reason: types.OrderReasonSignal, Message: "simulated"})
		if ok {
			e.guard.SetEntry(e.cfg.Symbol, decimal.NewFromFloat(price))
			e.record(trade)
		}

	case types.SignalSell:
		trade, ok := e.sim.Sell(now, e.cfg.Symbol, price,
			types.Reason{Reason: types.OrderReasonSignal, Message: "simulated"})
		if ok {
			e.guard.ClearEntry(e.cfg.Symbol)
			e.record(trade)
		}
	}
}

func (e *Engine) liveCycle(ctx context.Context, signal types.Signal) {
	switch signal {
	case types.SignalBuy:
		trade, err := e.exec.Buy(ctx, types.Reason{Reason: types.OrderReasonSignal, Message: ""})
		if err != nil {
			e.logExecutionError("buy", err)

			return
		}

		e.record(*trade)

	case types.SignalSell:
		trade, err := e.exec.Sell(ctx, decimal.Zero, types.Reason{Reason: types.OrderReasonSignal, Message: ""})
		if err != nil {
			e.logExecutionError("sell", err)

			return
		}

		e.record(*trade)
	}
}

// logExecutionError classifies an execution failure: rejections are routine
// skips, everything else is a real error. Either way the loop continues.
func (e *Engine) logExecutionError(operation string, err error) {
	if errors.IsRejection(err) {
		e.log.Info(operation+" skipped", zap.Error(err))

		return
	}

	e.log.Error(operation+" failed", zap.Error(err))
}

func (e *Engine) record(trade types.Trade) {
	if e.recorder == nil {
		return
	}

	if err := e.recorder.Record(trade); err != nil {
		e.log.Error("trade recording failed", zap.Error(err))
	}
}
