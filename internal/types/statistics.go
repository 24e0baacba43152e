package types

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// TradeResult summarizes completed round-trips.
type TradeResult struct {
	// Count of all recorded trades, buys and sells.
	NumberOfTrades int `yaml:"number_of_trades"`
	// Count of buy trades.
	NumberOfBuys int `yaml:"number_of_buys"`
	// Count of completed round-trips (sells).
	NumberOfSells int `yaml:"number_of_sells"`
	// Count of winning sells with positive pnl.
	NumberOfWinningTrades int `yaml:"number_of_winning_trades"`
	// Count of losing sells with negative pnl.
	NumberOfLosingTrades int `yaml:"number_of_losing_trades"`
	// Winning sells / completed sells, as a percentage.
	WinRate float64 `yaml:"win_rate"`
}

// PerformanceMetrics holds the ratio metrics derived from the trade and
// equity sequences.
type PerformanceMetrics struct {
	// Average pnl percentage across winning sells.
	AvgWinPct float64 `yaml:"avg_win_pct"`
	// Average pnl percentage across losing sells.
	AvgLossPct float64 `yaml:"avg_loss_pct"`
	// Best and worst sell by pnl percentage.
	BestTradePct  float64 `yaml:"best_trade_pct"`
	WorstTradePct float64 `yaml:"worst_trade_pct"`
	// Gross profit / gross loss. Zero when there are no realized losses.
	ProfitFactor float64 `yaml:"profit_factor"`
	// Most negative percentage decline of equity from its running peak.
	MaxDrawdownPct float64 `yaml:"max_drawdown_pct"`
	// Simplified annualized Sharpe ratio over step returns. Zero when the
	// return series has zero variance.
	SharpeRatio float64 `yaml:"sharpe_ratio"`
}

// BacktestStats is the flat metrics summary record produced by a replay run.
type BacktestStats struct {
	// ID is the unique identifier for this run.
	ID string `yaml:"id" json:"id"`
	// Timestamp is when this run was executed.
	Timestamp time.Time `yaml:"timestamp" json:"timestamp"`
	// Symbol of the trading pair.
	Symbol string `yaml:"symbol"`
	// NoTrades is true when the run completed zero round-trips; the ratio
	// metrics are meaningless in that case and left at zero.
	NoTrades bool `yaml:"no_trades"`

	InitialCapital float64 `yaml:"initial_capital"`
	FinalCapital   float64 `yaml:"final_capital"`
	TotalReturnPct float64 `yaml:"total_return_pct"`
	TotalFees      float64 `yaml:"total_fees"`

	TradeResult TradeResult        `yaml:"trade_result"`
	Metrics     PerformanceMetrics `yaml:"metrics"`

	// Paths to the exported tabular artifacts, empty when export was not
	// requested.
	TradesFilePath string `yaml:"trades_file_path" json:"trades_file_path"`
	EquityFilePath string `yaml:"equity_file_path" json:"equity_file_path"`
}

// WriteBacktestStats writes the metrics summary to a YAML file.
func WriteBacktestStats(path string, stats BacktestStats) error {
	data, err := yaml.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal backtest stats to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write backtest stats to file: %w", err)
	}

	return nil
}

// ReadBacktestStats reads a metrics summary from a YAML file.
func ReadBacktestStats(path string) (BacktestStats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return BacktestStats{}, fmt.Errorf("failed to read backtest stats file: %w", err)
	}

	var stats BacktestStats
	if err := yaml.Unmarshal(data, &stats); err != nil {
		return BacktestStats{}, fmt.Errorf("failed to unmarshal backtest stats: %w", err)
	}

	return stats, nil
}
