package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
	"github.com/vcampos/spotkit/internal/backtest"
	"github.com/vcampos/spotkit/internal/config"
	"github.com/vcampos/spotkit/internal/engine"
	"github.com/vcampos/spotkit/internal/exchange"
	"github.com/vcampos/spotkit/internal/logger"
	"go.uber.org/zap"
)

func runAction(ctx context.Context, cmd *cli.Command) error {
	config.LoadEnvFile(cmd.String("env"))

	tradingCfg, err := config.LoadTradingConfig(cmd.String("trading-config"))
	if err != nil {
		return err
	}

	gridCfg, err := config.LoadGridConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	if dry := cmd.String("dry"); dry != "" {
		tradingCfg.DryRun = config.DryRunMode(dry)
	}

	if mode := cmd.String("mode"); mode != "" {
		tradingCfg.Testnet = mode != "prod"
	}

	if err := tradingCfg.Validate(); err != nil {
		return err
	}

	lg, err := newLogger(tradingCfg.DryRun)
	if err != nil {
		return err
	}
	defer func() { _ = lg.Sync() }()

	ex, err := exchange.NewBinanceExchange(tradingCfg.APIKey, tradingCfg.SecretKey, tradingCfg.Testnet)
	if err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return engine.NewGridEngine(tradingCfg, gridCfg, ex, nil, lg).Run(runCtx)
}

func replayAction(_ context.Context, cmd *cli.Command) error {
	gridCfg, err := config.LoadGridConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	lg, err := logger.NewLogger()
	if err != nil {
		return err
	}
	defer func() { _ = lg.Sync() }()

	input, err := backtest.LoadReplayCSV(cmd.String("data"), gridCfg.Symbol)
	if err != nil {
		return err
	}

	replay := backtest.NewGridReplay(cmd.Float("capital"), cmd.Float("fee"), gridCfg, lg)

	result, err := replay.Run(input.Prices, input.Timestamps)
	if err != nil {
		return err
	}

	lg.Info("grid replay complete",
		zap.String("id", result.Stats.ID),
		zap.String("symbol", result.Stats.Symbol),
		zap.Float64("total_return_pct", result.Stats.TotalReturnPct),
		zap.Int("total_orders", result.Stats.TotalOrders),
		zap.Int("completed_cycles", result.Stats.CompletedCycles),
		zap.Float64("avg_profit_per_cycle_pct", result.Stats.AvgProfitPerCyclePct),
		zap.Float64("max_drawdown_pct", result.Stats.MaxDrawdownPct),
		zap.Float64("total_fees", result.Stats.TotalFees))

	return nil
}

func newLogger(mode config.DryRunMode) (*logger.Logger, error) {
	if mode == config.DryRunOff {
		return logger.NewLogger()
	}

	return logger.NewDevelopmentLogger()
}

func main() {
	configFlag := &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to the grid YAML config",
	}

	cmd := &cli.Command{
		Name:  "grid",
		Usage: "Grid trading: live ladder execution and offline replay",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run the live grid ladder",
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{
						Name:  "trading-config",
						Usage: "Path to the trading YAML config (execution settings)",
					},
					&cli.StringFlag{
						Name:  "env",
						Usage: "Path to the .env credentials file",
						Value: ".env",
					},
					&cli.StringFlag{
						Name:  "dry",
						Usage: "Dry-run mode: none=real orders, log=log only, sim=paper account",
					},
					&cli.StringFlag{
						Name:  "mode",
						Usage: "Environment: prod=mainnet, anything else=testnet",
					},
				},
				Action: runAction,
			},
			{
				Name:  "replay",
				Usage: "Replay the ladder against a historical price series",
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "Path to the kline CSV",
						Required: true,
					},
					&cli.FloatFlag{
						Name:  "capital",
						Usage: "Initial quote capital",
						Value: 1000,
					},
					&cli.FloatFlag{
						Name:  "fee",
						Usage: "Commission rate per fill",
						Value: 0.001,
					},
				},
				Action: replayAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
