package backtest

import (
	"math"

	"github.com/vcampos/spotkit/internal/types"
)

// tradingDaysPerYear annualizes the Sharpe ratio over daily steps.
const tradingDaysPerYear = 252

func summarizeTrades(trades []types.Trade) types.TradeResult {
	result := types.TradeResult{
		NumberOfTrades:        len(trades),
		NumberOfBuys:          0,
		NumberOfSells:         0,
		NumberOfWinningTrades: 0,
		NumberOfLosingTrades:  0,
		WinRate:               0,
	}

	for _, trade := range trades {
		switch trade.Side {
		case types.PurchaseTypeBuy:
			result.NumberOfBuys++
		case types.PurchaseTypeSell:
			result.NumberOfSells++
		}

		if trade.IsWinner() {
			result.NumberOfWinningTrades++
		}

		if trade.IsLoser() {
			result.NumberOfLosingTrades++
		}
	}

	if result.NumberOfSells > 0 {
		result.WinRate = float64(result.NumberOfWinningTrades) / float64(result.NumberOfSells) * 100
	}

	return result
}

func computeMetrics(trades []types.Trade, equity []types.EquitySample) types.PerformanceMetrics {
	metrics := types.PerformanceMetrics{
		AvgWinPct:      0,
		AvgLossPct:     0,
		BestTradePct:   0,
		WorstTradePct:  0,
		ProfitFactor:   0,
		MaxDrawdownPct: maxDrawdownPct(equity),
		SharpeRatio:    sharpeRatio(equity),
	}

	var (
		winPcts, lossPcts      []float64
		grossProfit, grossLoss float64
		first                  = true
	)

	for _, trade := range trades {
		if trade.Side != types.PurchaseTypeSell || trade.PnL.IsNone() {
			continue
		}

		pnl := trade.PnL.Unwrap()
		pct := trade.PnLPct.Unwrap()

		if first || pct > metrics.BestTradePct {
			metrics.BestTradePct = pct
		}

		if first || pct < metrics.WorstTradePct {
			metrics.WorstTradePct = pct
		}

		first = false

		switch {
		case pnl > 0:
			winPcts = append(winPcts, pct)
			grossProfit += pnl
		case pnl < 0:
			lossPcts = append(lossPcts, pct)
			grossLoss += -pnl
		}
	}

	metrics.AvgWinPct = mean(winPcts)
	metrics.AvgLossPct = mean(lossPcts)

	// By convention a run with realized profit and no realized losses
	// reports a profit factor of zero rather than infinity.
	if grossLoss > 0 {
		metrics.ProfitFactor = grossProfit / grossLoss
	}

	return metrics
}

// maxDrawdownPct returns the most negative percentage decline of equity from
// its running peak. Zero or negative.
func maxDrawdownPct(equity []types.EquitySample) float64 {
	if len(equity) == 0 {
		return 0
	}

	peak := equity[0].Equity
	maxDD := 0.0

	for _, sample := range equity {
		if sample.Equity > peak {
			peak = sample.Equity
		}

		if peak > 0 {
			dd := (sample.Equity - peak) / peak * 100
			if dd < maxDD {
				maxDD = dd
			}
		}
	}

	return maxDD
}

// sharpeRatio computes mean(returns)/std(returns) * sqrt(252) over per-step
// equity returns, using the sample standard deviation (n-1). Zero when fewer
// than two returns exist or the returns have no variance.
func sharpeRatio(equity []types.EquitySample) float64 {
	if len(equity) < 3 {
		return 0
	}

	returns := make([]float64, 0, len(equity)-1)

	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Equity
		if prev == 0 {
			return 0
		}

		returns = append(returns, equity[i].Equity/prev-1)
	}

	avg := mean(returns)

	variance := 0.0
	for _, r := range returns {
		variance += (r - avg) * (r - avg)
	}

	variance /= float64(len(returns) - 1)

	if variance == 0 {
		return 0
	}

	return avg / math.Sqrt(variance) * math.Sqrt(tradingDaysPerYear)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}

	return sum / float64(len(values))
}
