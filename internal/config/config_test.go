package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/vcampos/spotkit/pkg/errors"
)

type ConfigTestSuite struct {
	suite.Suite
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (suite *ConfigTestSuite) SetupTest() {
	for _, key := range []string{
		"SYMBOL", "TRADE_PERCENT", "TRADE_FEE_RATE", "MIN_BASE_USDT",
		"MIN_MARGIN_USDT", "FALLBACK_USDT", "SAFETY_MARGIN", "MAKER_PRICE_OFFSET",
		"STOP_LOSS_PERCENT", "USE_MAKER_ORDERS", "MAKER_WAIT_SECONDS", "MODE",
	} {
		os.Unsetenv(key)
	}
}

func (suite *ConfigTestSuite) TestDefaults() {
	cfg, err := LoadTradingConfig("")
	suite.NoError(err)
	suite.Equal("BTCUSDT", cfg.Symbol)
	suite.Equal(0.01, cfg.TradeFraction)
	suite.Equal(5*time.Second, cfg.MakerWait)
	suite.True(cfg.UseMakerOrders)
	suite.True(cfg.Testnet)
}

func (suite *ConfigTestSuite) TestYAMLOverridesDefaults() {
	path := filepath.Join(suite.T().TempDir(), "trading.yaml")
	yamlData := `
symbol: ETHUSDT
trade_fraction: 0.02
fee_rate: 0.0004
use_maker_orders: false
dry_run: sim
`
	suite.Require().NoError(os.WriteFile(path, []byte(yamlData), 0644))

	cfg, err := LoadTradingConfig(path)
	suite.NoError(err)
	suite.Equal("ETHUSDT", cfg.Symbol)
	suite.Equal(0.02, cfg.TradeFraction)
	suite.Equal(0.0004, cfg.FeeRate)
	suite.False(cfg.UseMakerOrders)
	suite.Equal(DryRunSim, cfg.DryRun)
	// Untouched keys keep their defaults.
	suite.Equal(7.0, cfg.FallbackNotional)
}

func (suite *ConfigTestSuite) TestEnvOverridesYAML() {
	suite.T().Setenv("TRADE_PERCENT", "0.05")
	suite.T().Setenv("MAKER_WAIT_SECONDS", "2.5")
	suite.T().Setenv("MODE", "prod")

	cfg, err := LoadTradingConfig("")
	suite.NoError(err)
	suite.Equal(0.05, cfg.TradeFraction)
	suite.Equal(2500*time.Millisecond, cfg.MakerWait)
	suite.False(cfg.Testnet)
}

func (suite *ConfigTestSuite) TestInvalidTradeFractionRejected() {
	suite.T().Setenv("TRADE_PERCENT", "1.5")

	_, err := LoadTradingConfig("")
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *ConfigTestSuite) TestBacktestConfigValidation() {
	cfg := DefaultBacktestConfig()
	suite.NoError(cfg.Validate())

	cfg.InitialCapital = 0
	suite.Error(cfg.Validate())
}

func (suite *ConfigTestSuite) TestGridConfigValidation() {
	cfg := DefaultGridConfig()
	suite.NoError(cfg.Validate())

	cfg.Levels = 1
	suite.Error(cfg.Validate())
}
