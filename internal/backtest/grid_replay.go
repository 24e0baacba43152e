package backtest

import (
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/vcampos/spotkit/internal/config"
	"github.com/vcampos/spotkit/internal/grid"
	"github.com/vcampos/spotkit/internal/logger"
	"github.com/vcampos/spotkit/internal/types"
	"github.com/vcampos/spotkit/pkg/errors"
	"go.uber.org/zap"
)

// GridReplayStats is the summary of one ladder replay.
type GridReplayStats struct {
	ID             string    `yaml:"id"`
	Timestamp      time.Time `yaml:"timestamp"`
	Symbol         string    `yaml:"symbol"`
	InitialCapital float64   `yaml:"initial_capital"`
	FinalEquity    float64   `yaml:"final_equity"`
	FinalCash      float64   `yaml:"final_cash"`
	FinalPosition  float64   `yaml:"final_position"`
	TotalReturnPct float64   `yaml:"total_return_pct"`

	TotalOrders     int `yaml:"total_orders"`
	BuyOrders       int `yaml:"buy_orders"`
	SellOrders      int `yaml:"sell_orders"`
	CompletedCycles int `yaml:"completed_cycles"`

	AvgProfitPerCyclePct float64 `yaml:"avg_profit_per_cycle_pct"`
	MaxDrawdownPct       float64 `yaml:"max_drawdown_pct"`
	SharpeRatio          float64 `yaml:"sharpe_ratio"`
	TotalFees            float64 `yaml:"total_fees"`
}

// GridReplayResult bundles the stats with the raw ledger and curve.
type GridReplayResult struct {
	Stats  GridReplayStats
	Trades []types.Trade
	Equity []types.EquitySample
}

// GridReplay replays a price series through a ladder anchored at the first
// price. Buys commit a fixed investment per rung; sells liquidate a
// proportional share of the whole holding, one rung's worth, so partial
// fills of past lots average out.
type GridReplay struct {
	capital float64
	feeRate float64
	cfg     config.GridConfig
	log     *logger.Logger
}

// NewGridReplay builds a ladder replay from a validated config.
func NewGridReplay(initialCapital, feeRate float64, cfg config.GridConfig, log *logger.Logger) *GridReplay {
	return &GridReplay{
		capital: initialCapital,
		feeRate: feeRate,
		cfg:     cfg,
		log:     log,
	}
}

// Run replays the prices and grades the ladder.
func (r *GridReplay) Run(prices []float64, timestamps []time.Time) (*GridReplayResult, error) {
	if len(prices) == 0 {
		return nil, errors.New(errors.ErrCodeBacktestEmptyInput, "price series is empty")
	}

	if len(timestamps) > 0 && len(timestamps) != len(prices) {
		return nil, errors.Newf(errors.ErrCodeBacktestLengthSkew,
			"%d prices but %d timestamps", len(prices), len(timestamps))
	}

	ladder, err := grid.NewGridAroundPrice(r.cfg.Symbol, prices[0], r.cfg.RangePct, r.cfg.Levels)
	if err != nil {
		return nil, err
	}

	if r.log != nil {
		snap := ladder.Snapshot()
		r.log.Info("grid configured",
			zap.String("symbol", snap.Symbol),
			zap.Float64("lower", snap.Lower),
			zap.Float64("upper", snap.Upper),
			zap.Float64("step", snap.Step),
			zap.Int("levels", snap.TotalLevels))
	}

	var (
		cash      = r.capital
		position  = 0.0
		totalFees = 0.0
		trades    []types.Trade
		equity    []types.EquitySample
		// Last buy notional per rung, for cycle profit grading.
		lastBuyNotional = make(map[int]float64)
		cycleProfitPcts []float64
	)

	stampAt := func(i int) time.Time {
		if len(timestamps) > 0 {
			return timestamps[i]
		}

		return time.Unix(0, 0).UTC().Add(time.Duration(i) * 24 * time.Hour)
	}

	for i, price := range prices {
		ts := stampAt(i)
		decision := ladder.Decide(price)

		switch decision.Action {
		case grid.ActionBuy:
			if cash >= r.cfg.InvestmentPerLevel {
				fee := r.cfg.InvestmentPerLevel * r.feeRate
				qty := (r.cfg.InvestmentPerLevel - fee) / price

				cash -= r.cfg.InvestmentPerLevel
				position += qty
				totalFees += fee
				lastBuyNotional[decision.LevelIndex] = r.cfg.InvestmentPerLevel

				if err := ladder.MarkBought(decision.LevelIndex, qty); err != nil {
					return nil, err
				}

				trades = append(trades, types.Trade{
					Timestamp:  ts,
					Symbol:     r.cfg.Symbol,
					Side:       types.PurchaseTypeBuy,
					Price:      price,
					Quantity:   qty,
					Notional:   r.cfg.InvestmentPerLevel,
					Fee:        fee,
					Reason:     types.Reason{Reason: types.OrderReasonGridLevel, Message: decision.Reason},
					EntryPrice: optional.None[float64](),
					PnL:        optional.None[float64](),
					PnLPct:     optional.None[float64](),
				})
			}

		case grid.ActionSell:
			active := ladder.ActivePositions()
			if active > 0 && position > 0 {
				qty := position / float64(active)
				gross := qty * price
				fee := gross * r.feeRate
				gain := gross - fee

				cash += gain
				position -= qty
				totalFees += fee

				if err := ladder.MarkSold(decision.LevelIndex); err != nil {
					return nil, err
				}

				trade := types.Trade{
					Timestamp:  ts,
					Symbol:     r.cfg.Symbol,
					Side:       types.PurchaseTypeSell,
					Price:      price,
					Quantity:   qty,
					Notional:   gross,
					Fee:        fee,
					Reason:     types.Reason{Reason: types.OrderReasonGridLevel, Message: decision.Reason},
					EntryPrice: optional.Some(decision.LevelPrice),
					PnL:        optional.None[float64](),
					PnLPct:     optional.None[float64](),
				}

				if notional, ok := lastBuyNotional[decision.LevelIndex]; ok && notional > 0 {
					profit := gain - notional
					profitPct := profit / notional * 100
					cycleProfitPcts = append(cycleProfitPcts, profitPct)
					trade.PnL = optional.Some(profit)
					trade.PnLPct = optional.Some(profitPct)
				}

				trades = append(trades, trade)
			}
		}

		equity = append(equity, types.EquitySample{
			Timestamp: ts,
			Price:     price,
			Equity:    cash + position*price,
			Cash:      cash,
			Position:  position,
		})
	}

	lastPrice := prices[len(prices)-1]

	stats := GridReplayStats{
		ID:             uuid.New().String(),
		Timestamp:      time.Now(),
		Symbol:         r.cfg.Symbol,
		InitialCapital: r.capital,
		FinalEquity:    cash + position*lastPrice,
		FinalCash:      cash,
		FinalPosition:  position,
		TotalFees:      totalFees,
		MaxDrawdownPct: maxDrawdownPct(equity),
		SharpeRatio:    sharpeRatio(equity),
	}
	stats.TotalReturnPct = (stats.FinalEquity - r.capital) / r.capital * 100
	stats.CompletedCycles = len(cycleProfitPcts)
	stats.AvgProfitPerCyclePct = mean(cycleProfitPcts)

	for _, trade := range trades {
		stats.TotalOrders++

		switch trade.Side {
		case types.PurchaseTypeBuy:
			stats.BuyOrders++
		case types.PurchaseTypeSell:
			stats.SellOrders++
		}
	}

	return &GridReplayResult{
		Stats:  stats,
		Trades: trades,
		Equity: equity,
	}, nil
}
