package config

import (
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/vcampos/spotkit/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DryRunMode controls whether decisions reach the real exchange.
type DryRunMode string

const (
	// DryRunOff sends real orders.
	DryRunOff DryRunMode = "none"
	// DryRunLog logs the decision and executes nothing.
	DryRunLog DryRunMode = "log"
	// DryRunSim routes orders into the in-memory paper ledger.
	DryRunSim DryRunMode = "sim"
)

// TradingConfig carries the sizing, execution, and loop parameters for a live
// session. Values load from YAML and can be overridden per-key through the
// environment, matching the original deployment surface.
type TradingConfig struct {
	Symbol string `yaml:"symbol" validate:"required"`

	// TradeFraction is the share of the quote balance committed per trade.
	TradeFraction float64 `yaml:"trade_fraction" validate:"gt=0,lte=1"`
	// FeeRate is the expected commission rate used by the sizing threshold.
	FeeRate float64 `yaml:"fee_rate" validate:"gte=0,lt=1"`
	// MinBase and MinMargin build the sizing threshold together with the
	// estimated commission.
	MinBase   float64 `yaml:"min_base" validate:"gte=0"`
	MinMargin float64 `yaml:"min_margin" validate:"gte=0"`
	// FallbackNotional is the fixed amount tried when the fraction-based
	// candidate is below the threshold.
	FallbackNotional float64 `yaml:"fallback_notional" validate:"gte=0"`
	// SafetyMargin is applied to the buy notional before quantization to
	// absorb slippage, clamped to the real balance.
	SafetyMargin float64 `yaml:"safety_margin" validate:"gte=1"`

	// UseMakerOrders enables the limit-then-market protocol. When false the
	// executor collapses to immediate market execution.
	UseMakerOrders bool `yaml:"use_maker_orders"`
	// MakerWait is how long a resting limit order may wait before being
	// cancelled and replaced with a market order.
	MakerWait time.Duration `yaml:"maker_wait"`
	// MakerPriceOffset is the fraction by which the limit price improves on
	// the observed price (0.0005 = 0.05%).
	MakerPriceOffset float64 `yaml:"maker_price_offset" validate:"gte=0,lt=1"`

	// StopLossFraction is validated by the stop-loss guard; invalid values
	// fall back to the guard's safe default with a warning.
	StopLossFraction float64 `yaml:"stop_loss_fraction"`

	PollInterval    time.Duration `yaml:"poll_interval"`
	MonitorInterval time.Duration `yaml:"monitor_interval"`

	DryRun  DryRunMode `yaml:"dry_run" validate:"oneof=none log sim"`
	Testnet bool       `yaml:"testnet"`

	// Credentials come from the environment only, never from YAML.
	APIKey    string `yaml:"-"`
	SecretKey string `yaml:"-"`
}

// GridConfig carries the grid strategy parameters.
type GridConfig struct {
	Symbol string `yaml:"symbol" validate:"required"`
	// RangePct is the half-width of the band around the observed price
	// (0.05 = ±5%).
	RangePct float64 `yaml:"range_pct" validate:"gt=0,lt=1"`
	// Levels is the number of equally spaced price levels.
	Levels int `yaml:"levels" validate:"gte=2"`
	// InvestmentPerLevel is the quote amount committed at each level.
	InvestmentPerLevel float64 `yaml:"investment_per_level" validate:"gt=0"`
	PollInterval       time.Duration `yaml:"poll_interval"`
}

// BacktestConfig carries the replay parameters.
type BacktestConfig struct {
	Symbol         string  `yaml:"symbol" validate:"required"`
	InitialCapital float64 `yaml:"initial_capital" validate:"gt=0"`
	FeeRate        float64 `yaml:"fee_rate" validate:"gte=0,lt=1"`
	TradeFraction  float64 `yaml:"trade_fraction" validate:"gt=0,lte=1"`
	// MinNotional mirrors the live sizing floor; buys below it are skipped.
	MinNotional   float64 `yaml:"min_notional" validate:"gte=0"`
	DataPath      string  `yaml:"data_path"`
	ResultsFolder string  `yaml:"results_folder"`
}

// DefaultTradingConfig returns the configuration the original deployment
// shipped with.
func DefaultTradingConfig() TradingConfig {
	return TradingConfig{
		Symbol:           "BTCUSDT",
		TradeFraction:    0.01,
		FeeRate:          0.001,
		MinBase:          5.0,
		MinMargin:        1.0,
		FallbackNotional: 7.0,
		SafetyMargin:     1.02,
		UseMakerOrders:   true,
		MakerWait:        5 * time.Second,
		MakerPriceOffset: 0.0005,
		StopLossFraction: 0.01,
		PollInterval:     60 * time.Second,
		MonitorInterval:  60 * time.Second,
		DryRun:           DryRunLog,
		Testnet:          true,
		APIKey:           "",
		SecretKey:        "",
	}
}

// DefaultBacktestConfig returns the replay defaults.
func DefaultBacktestConfig() BacktestConfig {
	return BacktestConfig{
		Symbol:         "BTCUSDT",
		InitialCapital: 1000.0,
		FeeRate:        0.0004,
		TradeFraction:  0.01,
		MinNotional:    5.0,
		DataPath:       "",
		ResultsFolder:  "results",
	}
}

// DefaultGridConfig returns the grid strategy defaults.
func DefaultGridConfig() GridConfig {
	return GridConfig{
		Symbol:             "BTCUSDT",
		RangePct:           0.05,
		Levels:             10,
		InvestmentPerLevel: 10.0,
		PollInterval:       5 * time.Second,
	}
}

// LoadTradingConfig reads a YAML trading configuration, applies environment
// overrides, and validates the result. An empty path loads defaults plus the
// environment.
func LoadTradingConfig(path string) (TradingConfig, error) {
	cfg := DefaultTradingConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return TradingConfig{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to read trading config", err)
		}

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return TradingConfig{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse trading config", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return TradingConfig{}, err
	}

	return cfg, nil
}

// LoadGridConfig reads a YAML grid configuration and validates it. An empty
// path loads defaults.
func LoadGridConfig(path string) (GridConfig, error) {
	cfg := DefaultGridConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return GridConfig{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to read grid config", err)
		}

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return GridConfig{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse grid config", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return GridConfig{}, err
	}

	return cfg, nil
}

// LoadBacktestConfig reads a YAML backtest configuration and validates it. An
// empty path loads defaults.
func LoadBacktestConfig(path string) (BacktestConfig, error) {
	cfg := DefaultBacktestConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return BacktestConfig{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to read backtest config", err)
		}

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return BacktestConfig{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse backtest config", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return BacktestConfig{}, err
	}

	return cfg, nil
}

// LoadEnvFile loads a .env file into the process environment. A missing file
// is not an error; credentials may already be exported.
func LoadEnvFile(path string) {
	if path == "" {
		path = ".env"
	}

	_ = godotenv.Load(path)
}

// Validate validates the TradingConfig struct.
func (c *TradingConfig) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid trading config", err)
	}

	return nil
}

// Validate validates the GridConfig struct.
func (c *GridConfig) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid grid config", err)
	}

	return nil
}

// Validate validates the BacktestConfig struct.
func (c *BacktestConfig) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid backtest config", err)
	}

	return nil
}

// applyEnv overlays the environment variables the original deployment used.
func (c *TradingConfig) applyEnv() {
	if v := os.Getenv("SYMBOL"); v != "" {
		c.Symbol = v
	}

	overrideFloat("TRADE_PERCENT", &c.TradeFraction)
	overrideFloat("TRADE_FEE_RATE", &c.FeeRate)
	overrideFloat("MIN_BASE_USDT", &c.MinBase)
	overrideFloat("MIN_MARGIN_USDT", &c.MinMargin)
	overrideFloat("FALLBACK_USDT", &c.FallbackNotional)
	overrideFloat("SAFETY_MARGIN", &c.SafetyMargin)
	overrideFloat("MAKER_PRICE_OFFSET", &c.MakerPriceOffset)
	overrideFloat("STOP_LOSS_PERCENT", &c.StopLossFraction)

	if v := os.Getenv("USE_MAKER_ORDERS"); v != "" {
		c.UseMakerOrders = v == "true" || v == "1"
	}

	if v := os.Getenv("MAKER_WAIT_SECONDS"); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs > 0 {
			c.MakerWait = time.Duration(secs * float64(time.Second))
		}
	}

	if v := os.Getenv("MODE"); v != "" {
		c.Testnet = v != "prod"
	}

	if c.Testnet {
		c.APIKey = os.Getenv("BINANCE_API_KEY_DEV")
		c.SecretKey = os.Getenv("BINANCE_API_SECRET_DEV")
	} else {
		c.APIKey = os.Getenv("BINANCE_API_KEY")
		c.SecretKey = os.Getenv("BINANCE_API_SECRET")
	}
}

// applyEnv overlays the GRID_* environment variables.
func (c *GridConfig) applyEnv() {
	if v := os.Getenv("GRID_SYMBOL"); v != "" {
		c.Symbol = v
	}

	overrideFloat("GRID_RANGE_PERCENT", &c.RangePct)
	overrideFloat("GRID_INVESTMENT_PER_LEVEL", &c.InvestmentPerLevel)

	if v := os.Getenv("GRID_LEVELS"); v != "" {
		if levels, err := strconv.Atoi(v); err == nil && levels >= 2 {
			c.Levels = levels
		}
	}
}

func overrideFloat(key string, target *float64) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			*target = parsed
		}
	}
}
