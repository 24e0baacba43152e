package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/vcampos/spotkit/internal/config"
	"github.com/vcampos/spotkit/internal/types"
	"github.com/vcampos/spotkit/pkg/errors"
)

type ReplayTestSuite struct {
	suite.Suite
	cfg config.BacktestConfig
}

func (s *ReplayTestSuite) SetupTest() {
	s.cfg = config.BacktestConfig{
		Symbol:         "BTCUSDT",
		InitialCapital: 1000,
		FeeRate:        0,
		TradeFraction:  0.1,
		MinNotional:    0,
		DataPath:       "",
		ResultsFolder:  "",
	}
}

func (s *ReplayTestSuite) run(cfg config.BacktestConfig, prices []float64, signals []types.Signal) *ReplayResult {
	result, err := NewReplayAccountant(cfg, nil).Run(ReplayInput{
		Symbol:     "BTCUSDT",
		Prices:     prices,
		Signals:    signals,
		Timestamps: nil,
	})
	s.Require().NoError(err)

	return result
}

func (s *ReplayTestSuite) TestFlatRoundTripFeeFree() {
	result := s.run(s.cfg,
		[]float64{100, 100, 100},
		[]types.Signal{types.SignalBuy, types.SignalHold, types.SignalSell})

	s.Equal(1, result.Stats.TradeResult.NumberOfSells)
	s.False(result.Stats.NoTrades)

	sell := result.Trades[1]
	s.Equal(types.PurchaseTypeSell, sell.Side)
	s.InDelta(0, sell.PnL.Unwrap(), 1e-9)

	s.InDelta(1000, result.Stats.FinalCapital, 1e-9)
	s.InDelta(0, result.Stats.TotalReturnPct, 1e-9)

	for _, sample := range result.Equity {
		s.InDelta(1000, sample.Equity, 1e-9)
	}
}

func (s *ReplayTestSuite) TestFeeChargedOnBothLegs() {
	cfg := s.cfg
	cfg.FeeRate = 0.001
	cfg.TradeFraction = 1.0

	result := s.run(cfg,
		[]float64{100, 110},
		[]types.Signal{types.SignalBuy, types.SignalSell})

	buy := result.Trades[0]
	s.InDelta(1, buy.Fee, 1e-9)
	s.InDelta(9.99, buy.Quantity, 1e-9)

	sell := result.Trades[1]
	s.InDelta(9.99*110*0.001, sell.Fee, 1e-9)

	// gain 9.99*110*0.999 minus cost 9.99*100.
	wantPnL := 9.99*110*0.999 - 999
	s.InDelta(wantPnL, sell.PnL.Unwrap(), 1e-9)
	s.InDelta(1098.9*0.999, result.Stats.FinalCapital, 1e-9)
	s.InDelta(1+9.99*110*0.001, result.Stats.TotalFees, 1e-9)
}

func (s *ReplayTestSuite) TestBuyIgnoredWhileHolding() {
	result := s.run(s.cfg,
		[]float64{100, 105, 110},
		[]types.Signal{types.SignalBuy, types.SignalBuy, types.SignalSell})

	s.Equal(1, result.Stats.TradeResult.NumberOfBuys)
	s.Equal(1, result.Stats.TradeResult.NumberOfSells)
}

func (s *ReplayTestSuite) TestSellIgnoredWhileFlat() {
	result := s.run(s.cfg,
		[]float64{100, 105},
		[]types.Signal{types.SignalSell, types.SignalSell})

	s.True(result.Stats.NoTrades)
	s.Empty(result.Trades)
}

func (s *ReplayTestSuite) TestOpenPositionForceClosedAtEnd() {
	result := s.run(s.cfg,
		[]float64{100, 105, 110},
		[]types.Signal{types.SignalBuy, types.SignalHold, types.SignalHold})

	s.Require().Len(result.Trades, 2)

	last := result.Trades[1]
	s.Equal(types.PurchaseTypeSell, last.Side)
	s.Equal(types.OrderReasonForcedExit, last.Reason.Reason)
	s.InDelta(110, last.Price, 1e-9)
	s.False(result.Stats.NoTrades)
}

func (s *ReplayTestSuite) TestNoTradesRun() {
	result := s.run(s.cfg,
		[]float64{100, 105, 110},
		[]types.Signal{types.SignalHold, types.SignalHold, types.SignalHold})

	s.True(result.Stats.NoTrades)
	s.Equal(0, result.Stats.TradeResult.NumberOfTrades)
	s.InDelta(1000, result.Stats.FinalCapital, 1e-9)
	s.Zero(result.Stats.Metrics.ProfitFactor)
	s.Zero(result.Stats.Metrics.SharpeRatio)
}

func (s *ReplayTestSuite) TestProfitFactorZeroWithoutLosses() {
	result := s.run(s.cfg,
		[]float64{100, 120},
		[]types.Signal{types.SignalBuy, types.SignalSell})

	s.Equal(1, result.Stats.TradeResult.NumberOfWinningTrades)
	s.Equal(0, result.Stats.TradeResult.NumberOfLosingTrades)
	s.InDelta(100, result.Stats.TradeResult.WinRate, 1e-9)
	s.Zero(result.Stats.Metrics.ProfitFactor)
}

func (s *ReplayTestSuite) TestProfitFactorWithMixedTrades() {
	// Two round trips: +10% then -5% on the invested fraction.
	result := s.run(s.cfg,
		[]float64{100, 110, 100, 95},
		[]types.Signal{types.SignalBuy, types.SignalSell, types.SignalBuy, types.SignalSell})

	s.Equal(1, result.Stats.TradeResult.NumberOfWinningTrades)
	s.Equal(1, result.Stats.TradeResult.NumberOfLosingTrades)
	s.InDelta(50, result.Stats.TradeResult.WinRate, 1e-9)
	s.Greater(result.Stats.Metrics.ProfitFactor, 0.0)
	s.InDelta(10, result.Stats.Metrics.AvgWinPct, 1e-9)
	s.InDelta(-5, result.Stats.Metrics.AvgLossPct, 1e-9)
	s.InDelta(10, result.Stats.Metrics.BestTradePct, 1e-9)
	s.InDelta(-5, result.Stats.Metrics.WorstTradePct, 1e-9)
}

func (s *ReplayTestSuite) TestInputValidation() {
	accountant := NewReplayAccountant(s.cfg, nil)

	_, err := accountant.Run(ReplayInput{
		Symbol:     "BTCUSDT",
		Prices:     nil,
		Signals:    nil,
		Timestamps: nil,
	})
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeBacktestEmptyInput))

	_, err = accountant.Run(ReplayInput{
		Symbol:     "BTCUSDT",
		Prices:     []float64{100, 101},
		Signals:    []types.Signal{types.SignalHold},
		Timestamps: nil,
	})
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeBacktestLengthSkew))

	_, err = accountant.Run(ReplayInput{
		Symbol:     "BTCUSDT",
		Prices:     []float64{100, 101},
		Signals:    []types.Signal{types.SignalHold, types.SignalHold},
		Timestamps: []time.Time{time.Now()},
	})
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeBacktestLengthSkew))
}

func TestReplayTestSuite(t *testing.T) {
	suite.Run(t, new(ReplayTestSuite))
}
