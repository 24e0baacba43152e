package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vcampos/spotkit/internal/config"
	"github.com/vcampos/spotkit/internal/exchange"
	"github.com/vcampos/spotkit/internal/executor"
	"github.com/vcampos/spotkit/internal/grid"
	"github.com/vcampos/spotkit/internal/logger"
	"github.com/vcampos/spotkit/internal/monitor"
	"github.com/vcampos/spotkit/internal/risk"
	"github.com/vcampos/spotkit/internal/types"
	"github.com/vcampos/spotkit/pkg/errors"
	"go.uber.org/zap"
)

// GridEngine runs the grid ladder against live prices. The ladder is
// anchored once, at the first observed price, and never rebalanced.
type GridEngine struct {
	tradingCfg config.TradingConfig
	gridCfg    config.GridConfig
	ex         exchange.Exchange
	recorder   TradeRecorder
	log        *logger.Logger

	exec *executor.Executor
	grid *grid.Grid

	baseAsset  string
	quoteAsset string

	// sim-mode paper state
	simCash     float64
	simPosition float64
}

// NewGridEngine wires a grid engine. Execution settings (maker protocol,
// fees, dry-run mode) come from the trading config; the ladder shape comes
// from the grid config.
func NewGridEngine(tradingCfg config.TradingConfig, gridCfg config.GridConfig, ex exchange.Exchange, recorder TradeRecorder, log *logger.Logger) *GridEngine {
	base, quote := types.SplitSymbol(gridCfg.Symbol)

	return &GridEngine{
		tradingCfg: tradingCfg,
		gridCfg:    gridCfg,
		ex:         ex,
		recorder:   recorder,
		log:        log,
		baseAsset:  base,
		quoteAsset: quote,
		simCash:    simStartingCash,
	}
}

// Run blocks until ctx is cancelled. Fetching the anchor price and the
// symbol filters is fatal; per-tick failures are logged and retried on the
// next tick.
func (e *GridEngine) Run(ctx context.Context) error {
	anchor, err := e.ex.GetPrice(ctx, e.gridCfg.Symbol)
	if err != nil {
		return err
	}

	ladder, err := grid.NewGridAroundPrice(e.gridCfg.Symbol, anchor.InexactFloat64(), e.gridCfg.RangePct, e.gridCfg.Levels)
	if err != nil {
		return err
	}

	e.grid = ladder

	filters, err := e.ex.GetSymbolFilters(ctx, e.gridCfg.Symbol)
	if err != nil {
		return err
	}

	// Grid orders carry their own fixed notional, so the signal sizer is
	// bypassed and the stop-loss guard stays unarmed.
	guard := risk.NewStopLossGuard(e.tradingCfg.StopLossFraction, e.log)

	e.exec = executor.NewExecutor(e.ex, filters, guard, executor.Config{
		Symbol:           e.gridCfg.Symbol,
		BaseAsset:        e.baseAsset,
		QuoteAsset:       e.quoteAsset,
		SafetyMargin:     e.tradingCfg.SafetyMargin,
		FeeRate:          e.tradingCfg.FeeRate,
		UseMakerOrders:   e.tradingCfg.UseMakerOrders,
		MakerWait:        e.tradingCfg.MakerWait,
		MakerPriceOffset: e.tradingCfg.MakerPriceOffset,
	}, e.log)

	e.log.Info("grid engine started",
		zap.String("symbol", e.gridCfg.Symbol),
		zap.Float64("anchor", anchor.InexactFloat64()),
		zap.Float64("lower", ladder.Lower()),
		zap.Float64("upper", ladder.Upper()),
		zap.Int("levels", e.gridCfg.Levels),
		zap.String("dry_run", string(e.tradingCfg.DryRun)))

	monCtx, cancelMonitor := context.WithCancel(ctx)
	defer cancelMonitor()

	mon := monitor.NewBalanceMonitor(e.ex, e.baseAsset, e.quoteAsset, e.tradingCfg.MonitorInterval, e.log)
	go mon.Run(monCtx)

	ticker := time.NewTicker(e.gridCfg.PollInterval)
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

func (e *GridEngine) runCycle(ctx context.Context) {
	price, err := e.ex.GetPrice(ctx, e.gridCfg.Symbol)
	if err != nil {
		e.log.Error("price fetch failed", zap.Error(err))

		return
	}

	p := price.InexactFloat64()

	decision := e.grid.Decide(p)
	if decision.Action == grid.ActionHold {
		return
	}

	e.log.Info("grid decision",
		zap.String("action", decision.Action.String()),
		zap.Float64("price", p),
		zap.Int("level", decision.LevelIndex),
		zap.Float64("level_price", decision.LevelPrice),
		zap.String("reason", decision.Reason))

	switch e.tradingCfg.DryRun {
	case config.DryRunLog:
		e.log.Info("dry-run: grid decision not executed")

	case config.DryRunSim:
		e.simStep(p, decision)

	default:
		e.liveStep(ctx, p, decision)
	}

	status := e.grid.Snapshot()
	e.log.Info("grid status",
		zap.Int("active_positions", status.ActivePositions),
		zap.Int("levels", status.TotalLevels))
}

func (e *GridEngine) simStep(price float64, decision grid.Decision) {
	switch decision.Action {
	case grid.ActionBuy:
		if e.simCash < e.gridCfg.InvestmentPerLevel {
			e.log.Info("buy skipped", zap.Float64("cash", e.simCash))

			return
		}

		fee := e.gridCfg.InvestmentPerLevel * e.tradingCfg.FeeRate
		quantity := (e.gridCfg.InvestmentPerLevel - fee) / price
		e.simCash -= e.gridCfg.InvestmentPerLevel
		e.simPosition += quantity

		if err := e.grid.MarkBought(decision.LevelIndex, quantity); err != nil {
			e.log.Error("grid state update failed", zap.Error(err))
		}

	case grid.ActionSell:
		active := e.grid.ActivePositions()
		if active == 0 || e.simPosition <= 0 {
			return
		}

		quantity := e.simPosition / float64(active)
		gross := quantity * price
		fee := gross * e.tradingCfg.FeeRate
		e.simCash += gross - fee
		e.simPosition -= quantity

		if err := e.grid.MarkSold(decision.LevelIndex); err != nil {
			e.log.Error("grid state update failed", zap.Error(err))
		}
	}
}

func (e *GridEngine) liveStep(ctx context.Context, price float64, decision grid.Decision) {
	reason := types.Reason{Reason: types.OrderReasonGridLevel, Message: decision.Reason}

	switch decision.Action {
	case grid.ActionBuy:
		trade, err := e.exec.BuyNotional(ctx, decimal.NewFromFloat(e.gridCfg.InvestmentPerLevel), reason)
		if err != nil {
			e.logGridError("grid buy", err)

			return
		}

		if err := e.grid.MarkBought(decision.LevelIndex, trade.Quantity); err != nil {
			e.log.Error("grid state update failed", zap.Error(err))
		}

		e.record(*trade)

	case grid.ActionSell:
		quantity, err := e.sellQuantity(ctx)
		if err != nil {
			e.log.Error("grid sell sizing failed", zap.Error(err))

			return
		}

		if quantity.Sign() <= 0 {
			return
		}

		trade, err := e.exec.Sell(ctx, quantity, reason)
		if err != nil {
			e.logGridError("grid sell", err)

			return
		}

		if err := e.grid.MarkSold(decision.LevelIndex); err != nil {
			e.log.Error("grid state update failed", zap.Error(err))
		}

		e.record(*trade)
	}
}

// sellQuantity spreads the base holdings evenly across the occupied rungs.
func (e *GridEngine) sellQuantity(ctx context.Context) (decimal.Decimal, error) {
	active := e.grid.ActivePositions()
	if active == 0 {
		return decimal.Zero, nil
	}

	balance, err := e.ex.GetBalance(ctx, e.baseAsset)
	if err != nil {
		return decimal.Zero, err
	}

	return balance.Free.Div(decimal.NewFromInt(int64(active))), nil
}

func (e *GridEngine) logGridError(operation string, err error) {
	if errors.IsRejection(err) {
		e.log.Info(operation+" skipped", zap.Error(err))

		return
	}

	e.log.Error(operation+" failed", zap.Error(err))
}

func (e *GridEngine) record(trade types.Trade) {
	if e.recorder == nil {
		return
	}

	if err := e.recorder.Record(trade); err != nil {
		e.log.Error("trade recording failed", zap.Error(err))
	}
}
