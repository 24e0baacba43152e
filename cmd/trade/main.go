package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
	"github.com/vcampos/spotkit/internal/config"
	"github.com/vcampos/spotkit/internal/engine"
	"github.com/vcampos/spotkit/internal/exchange"
	"github.com/vcampos/spotkit/internal/logger"
)

func tradeAction(ctx context.Context, cmd *cli.Command) error {
	config.LoadEnvFile(cmd.String("env"))

	cfg, err := config.LoadTradingConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	if dry := cmd.String("dry"); dry != "" {
		cfg.DryRun = config.DryRunMode(dry)
	}

	if mode := cmd.String("mode"); mode != "" {
		cfg.Testnet = mode != "prod"
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	lg, err := newLogger(cfg.DryRun)
	if err != nil {
		return err
	}
	defer func() { _ = lg.Sync() }()

	ex, err := exchange.NewBinanceExchange(cfg.APIKey, cfg.SecretKey, cfg.Testnet)
	if err != nil {
		return err
	}

	source := newCrossoverSource(ex, cfg.Symbol,
		int(cmd.Int("fast-window")), int(cmd.Int("slow-window")))

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return engine.NewEngine(cfg, ex, source, nil, lg).Run(runCtx)
}

func newLogger(mode config.DryRunMode) (*logger.Logger, error) {
	if mode == config.DryRunOff {
		return logger.NewLogger()
	}

	return logger.NewDevelopmentLogger()
}

func main() {
	cmd := &cli.Command{
		Name:  "trade",
		Usage: "Run the live spot trading loop",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the trading YAML config",
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
			&cli.IntFlag{
				Name:  "fast-window",
				Usage: "Fast moving average window of the built-in crossover source",
				Value: 7,
			},
			&cli.IntFlag{
				Name:  "slow-window",
				Usage: "Slow moving average window of the built-in crossover source",
				Value: 25,
			},
		},
		Action: tradeAction,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
