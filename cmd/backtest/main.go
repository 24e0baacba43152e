package main

import (
	"context"
	"log"
	"os"

	"github.com/urfave/cli/v3"
	"github.com/vcampos/spotkit/internal/backtest"
	"github.com/vcampos/spotkit/internal/config"
	"github.com/vcampos/spotkit/internal/export"
	"github.com/vcampos/spotkit/internal/logger"
	"go.uber.org/zap"
)

func backtestAction(_ context.Context, cmd *cli.Command) error {
	cfg, err := config.LoadBacktestConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	if data := cmd.String("data"); data != "" {
		cfg.DataPath = data
	}

	if symbol := cmd.String("symbol"); symbol != "" {
		cfg.Symbol = symbol
	}

	if out := cmd.String("output"); out != "" {
		cfg.ResultsFolder = out
	}

	lg, err := logger.NewLogger()
	if err != nil {
		return err
	}
	defer func() { _ = lg.Sync() }()

	input, err := backtest.LoadReplayCSV(cfg.DataPath, cfg.Symbol)
	if err != nil {
		return err
	}

	result, err := backtest.NewReplayAccountant(cfg, lg).Run(input)
	if err != nil {
		return err
	}

	format := export.Format(cmd.String("format"))

	stats, err := export.WriteReplayArtifacts(cfg.ResultsFolder, result, format)
	if err != nil {
		return err
	}

	lg.Info("backtest complete",
		zap.String("id", stats.ID),
		zap.String("symbol", stats.Symbol),
		zap.Bool("no_trades", stats.NoTrades),
		zap.Float64("total_return_pct", stats.TotalReturnPct),
		zap.Int("total_trades", stats.TradeResult.NumberOfTrades),
		zap.Float64("win_rate", stats.TradeResult.WinRate),
		zap.Float64("max_drawdown_pct", stats.Metrics.MaxDrawdownPct),
		zap.Float64("sharpe_ratio", stats.Metrics.SharpeRatio),
		zap.String("trades_file", stats.TradesFilePath),
		zap.String("equity_file", stats.EquityFilePath))

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:  "backtest",
		Usage: "Replay a signal history against the paper ledger",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the backtest YAML config",
			},
			&cli.StringFlag{
				Name:    "data",
				Aliases: []string{"d"},
				Usage:   "Path to the kline CSV (open_time, ohlcv, signal columns)",
			},
			&cli.StringFlag{
				Name:  "symbol",
				Usage: "Trading pair symbol",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Results folder",
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Artifact format: parquet or csv",
				Value: string(export.FormatParquet),
			},
		},
		Action: backtestAction,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
