package risk

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type StopLossGuardTestSuite struct {
	suite.Suite
}

func (s *StopLossGuardTestSuite) TestTriggerBoundary() {
	guard := NewStopLossGuard(0.01, nil)
	guard.SetEntry("BTCUSDT", decimal.RequireFromString("30000"))

	// Stop level is 30000 * 0.99 = 29700.
	s.True(guard.ShouldExit("BTCUSDT", decimal.RequireFromString("29699.9")))
	s.True(guard.ShouldExit("BTCUSDT", decimal.RequireFromString("29700")))
	s.False(guard.ShouldExit("BTCUSDT", decimal.RequireFromString("29700.1")))
}

func (s *StopLossGuardTestSuite) TestNoEntryNeverExits() {
	guard := NewStopLossGuard(0.01, nil)
	s.False(guard.ShouldExit("BTCUSDT", decimal.RequireFromString("1")))
}

func (s *StopLossGuardTestSuite) TestClearEntryDisarmsGuard() {
	guard := NewStopLossGuard(0.01, nil)
	guard.SetEntry("BTCUSDT", decimal.RequireFromString("30000"))
	guard.ClearEntry("BTCUSDT")
	s.False(guard.ShouldExit("BTCUSDT", decimal.RequireFromString("100")))

	// Clearing an absent symbol is harmless.
	guard.ClearEntry("ETHUSDT")
}

func (s *StopLossGuardTestSuite) TestEntryOverwrite() {
	guard := NewStopLossGuard(0.05, nil)
	guard.SetEntry("ETHUSDT", decimal.RequireFromString("2000"))
	guard.SetEntry("ETHUSDT", decimal.RequireFromString("1000"))

	entry, ok := guard.Entry("ETHUSDT")
	s.Require().True(ok)
	s.True(entry.Equal(decimal.RequireFromString("1000")))

	// Stop level follows the latest entry: 1000 * 0.95 = 950.
	s.False(guard.ShouldExit("ETHUSDT", decimal.RequireFromString("960")))
	s.True(guard.ShouldExit("ETHUSDT", decimal.RequireFromString("950")))
}

func (s *StopLossGuardTestSuite) TestInvalidFractionFallsBackToDefault() {
	tests := []struct {
		name     string
		fraction float64
	}{
		{name: "zero", fraction: 0},
		{name: "negative", fraction: -0.2},
		{name: "one", fraction: 1},
		{name: "above one", fraction: 1.5},
	}

	for _, tc := range tests {
		s.Run(tc.name, func() {
			guard := NewStopLossGuard(tc.fraction, nil)
			s.True(guard.LossFraction().Equal(decimal.NewFromFloat(DefaultLossFraction)))

			guard.SetEntry("BTCUSDT", decimal.RequireFromString("30000"))
			s.True(guard.ShouldExit("BTCUSDT", decimal.RequireFromString("29699.9")))
			s.False(guard.ShouldExit("BTCUSDT", decimal.RequireFromString("29700.1")))
		})
	}
}

func TestStopLossGuardTestSuite(t *testing.T) {
	suite.Run(t, new(StopLossGuardTestSuite))
}
