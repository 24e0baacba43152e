package engine

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"github.com/vcampos/spotkit/internal/config"
	"github.com/vcampos/spotkit/internal/executor"
	"github.com/vcampos/spotkit/internal/grid"
	"github.com/vcampos/spotkit/internal/risk"
)

type GridEngineTestSuite struct {
	suite.Suite

	tradingCfg config.TradingConfig
	gridCfg    config.GridConfig
	ex         *fakeExchange
	recorder   *capturingRecorder
}

func TestGridEngineTestSuite(t *testing.T) {
	suite.Run(t, new(GridEngineTestSuite))
}

func (s *GridEngineTestSuite) SetupTest() {
	s.tradingCfg = config.DefaultTradingConfig()
	s.tradingCfg.Symbol = "BTCUSDT"
	s.tradingCfg.UseMakerOrders = false
	s.tradingCfg.DryRun = config.DryRunSim

	s.gridCfg = config.DefaultGridConfig()
	s.gridCfg.InvestmentPerLevel = 50

	s.ex = newFakeExchange()
	s.recorder = &capturingRecorder{}
}

// newGridEngine builds an engine with its ladder already anchored, the way
// Run does at startup, so tests can drive cycles directly.
func (s *GridEngineTestSuite) newGridEngine(levels []float64) *GridEngine {
	e := NewGridEngine(s.tradingCfg, s.gridCfg, s.ex, s.recorder, newTestLogger())

	ladder, err := grid.NewGrid(s.gridCfg.Symbol, levels[0], levels[len(levels)-1], len(levels))
	s.Require().NoError(err)

	e.grid = ladder

	filters, err := s.ex.GetSymbolFilters(context.Background(), s.gridCfg.Symbol)
	s.Require().NoError(err)

	guard := risk.NewStopLossGuard(s.tradingCfg.StopLossFraction, newTestLogger())
	e.exec = executor.NewExecutor(s.ex, filters, guard, executor.Config{
		Symbol:       s.gridCfg.Symbol,
		BaseAsset:    e.baseAsset,
		QuoteAsset:   e.quoteAsset,
		SafetyMargin: s.tradingCfg.SafetyMargin,
		FeeRate:      s.tradingCfg.FeeRate,
	}, newTestLogger())

	return e
}

func (s *GridEngineTestSuite) TestSimBuyAtLevelMarksRung() {
	e := s.newGridEngine([]float64{90, 95, 100, 105, 110})

	s.ex.price = decimal.RequireFromString("100.02")
	e.runCycle(context.Background())

	s.Equal(1, e.grid.ActivePositions())
	s.True(e.grid.Levels()[2].HasPosition)
	s.InDelta(simStartingCash-50, e.simCash, 1e-9)
	s.InDelta((50-50*s.tradingCfg.FeeRate)/100.02, e.simPosition, 1e-9)
}

func (s *GridEngineTestSuite) TestSimSellAtNextLevelReleasesRung() {
	e := s.newGridEngine([]float64{90, 95, 100, 105, 110})

	ctx := context.Background()
	s.ex.price = decimal.RequireFromString("100.0")
	e.runCycle(ctx)

	s.ex.price = decimal.RequireFromString("105.0")
	e.runCycle(ctx)

	s.Equal(0, e.grid.ActivePositions())
	s.False(e.grid.Levels()[2].HasPosition)
	s.InDelta(0, e.simPosition, 1e-9)
	// Bought at 100, sold at 105: the round trip ends ahead even after
	// fees on both legs.
	s.Greater(e.simCash, simStartingCash)
}

func (s *GridEngineTestSuite) TestSimBuySkippedWhenCashExhausted() {
	e := s.newGridEngine([]float64{90, 95, 100, 105, 110})
	e.simCash = 10

	s.ex.price = decimal.RequireFromString("100.0")
	e.runCycle(context.Background())

	s.Equal(0, e.grid.ActivePositions())
	s.InDelta(10, e.simCash, 1e-9)
}

func (s *GridEngineTestSuite) TestLogModeLeavesLadderUntouched() {
	s.tradingCfg.DryRun = config.DryRunLog
	e := s.newGridEngine([]float64{90, 95, 100, 105, 110})

	s.ex.price = decimal.RequireFromString("100.0")
	e.runCycle(context.Background())

	s.Equal(0, e.grid.ActivePositions())
	s.Empty(s.ex.placed)
}

func (s *GridEngineTestSuite) TestBetweenLevelsDoesNothing() {
	e := s.newGridEngine([]float64{90, 95, 100, 105, 110})

	s.ex.price = decimal.RequireFromString("102.5")
	e.runCycle(context.Background())

	s.Equal(0, e.grid.ActivePositions())
	s.Empty(s.recorder.trades)
}

func (s *GridEngineTestSuite) TestLiveBuyUsesFixedNotional() {
	s.tradingCfg.DryRun = config.DryRunOff
	s.ex.balances["USDT"] = decimal.NewFromInt(1000)

	e := s.newGridEngine([]float64{90, 95, 100, 105, 110})

	s.ex.price = decimal.RequireFromString("100.0")
	e.runCycle(context.Background())

	s.Require().Len(s.ex.placed, 1)
	s.True(s.ex.placed[0].Notional.LessThanOrEqual(decimal.NewFromInt(50)))
	s.Equal(1, e.grid.ActivePositions())
	s.Require().Len(s.recorder.trades, 1)
	s.InDelta(s.ex.placed[0].Quantity.InexactFloat64(), e.grid.Levels()[2].Quantity, 1e-9)
}

func (s *GridEngineTestSuite) TestLiveSellSplitsHoldingsAcrossRungs() {
	s.tradingCfg.DryRun = config.DryRunOff
	s.ex.balances["USDT"] = decimal.NewFromInt(1000)

	e := s.newGridEngine([]float64{90, 95, 100, 105, 110})

	// Buy at 100, then the price falls and a second rung fills at 95.
	ctx := context.Background()
	s.ex.price = decimal.RequireFromString("100.0")
	e.runCycle(ctx)

	s.ex.price = decimal.RequireFromString("95.0")
	e.runCycle(ctx)

	s.Require().Equal(2, e.grid.ActivePositions())
	held := s.ex.balances["BTC"]

	// Back at 100 the rung below (95) is occupied, so this touch sells.
	s.ex.price = decimal.RequireFromString("100.0")
	e.runCycle(ctx)

	s.Require().Len(s.ex.placed, 3)
	sell := s.ex.placed[2]
	s.Equal("SELL", string(sell.Side))
	// Half of the combined holdings, floored to the lot step.
	s.True(sell.Quantity.LessThanOrEqual(held.Div(decimal.NewFromInt(2))))
	s.True(sell.Quantity.GreaterThan(decimal.Zero))
	s.Equal(1, e.grid.ActivePositions())
	s.False(e.grid.Levels()[1].HasPosition)
	s.True(e.grid.Levels()[2].HasPosition)
}

func (s *GridEngineTestSuite) TestLiveRejectionLeavesRungEmpty() {
	s.tradingCfg.DryRun = config.DryRunOff
	s.ex.balances["USDT"] = decimal.NewFromInt(3)

	e := s.newGridEngine([]float64{90, 95, 100, 105, 110})

	s.ex.price = decimal.RequireFromString("100.0")
	e.runCycle(context.Background())

	s.Empty(s.ex.placed)
	s.Equal(0, e.grid.ActivePositions())
}

func (s *GridEngineTestSuite) TestRunStopsOnContextCancel() {
	s.gridCfg.PollInterval = time.Millisecond
	s.tradingCfg.MonitorInterval = time.Hour
	s.ex.price = decimal.RequireFromString("100.0")

	e := NewGridEngine(s.tradingCfg, s.gridCfg, s.ex, s.recorder, newTestLogger())

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		s.NoError(err)
	case <-time.After(time.Second):
		s.Fail("grid engine did not stop on cancellation")
	}
}
