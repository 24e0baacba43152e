package export

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"
	"github.com/vcampos/spotkit/internal/types"
)

type WritersTestSuite struct {
	suite.Suite
	dir string
}

func (s *WritersTestSuite) SetupTest() {
	s.dir = s.T().TempDir()
}

func (s *WritersTestSuite) sampleTrades() []types.Trade {
	buy := types.Trade{
		Timestamp:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Symbol:     "BTCUSDT",
		Side:       types.PurchaseTypeBuy,
		Price:      30000,
		Quantity:   0.003,
		Notional:   90,
		Fee:        0.09,
		Reason:     types.Reason{Reason: types.OrderReasonSignal, Message: ""},
		EntryPrice: optional.None[float64](),
		PnL:        optional.None[float64](),
		PnLPct:     optional.None[float64](),
	}

	sell := types.Trade{
		Timestamp:  time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Symbol:     "BTCUSDT",
		Side:       types.PurchaseTypeSell,
		Price:      31000,
		Quantity:   0.003,
		Notional:   93,
		Fee:        0.093,
		Reason:     types.Reason{Reason: types.OrderReasonSignal, Message: ""},
		EntryPrice: optional.Some(30000.0),
		PnL:        optional.Some(2.817),
		PnLPct:     optional.Some(10.0 / 3.0),
	}

	return []types.Trade{buy, sell}
}

func (s *WritersTestSuite) TestTradesWriterParquet() {
	path := filepath.Join(s.dir, "trades.parquet")
	w := NewTradesWriter(path, FormatParquet)
	s.Require().NoError(w.Initialize())

	defer w.Close()

	s.Require().NoError(w.WriteAll(s.sampleTrades()))

	count, err := w.Count()
	s.Require().NoError(err)
	s.Equal(2, count)

	pnl, err := w.TotalPnL()
	s.Require().NoError(err)
	s.InDelta(2.817, pnl, 1e-9)

	info, err := os.Stat(path)
	s.Require().NoError(err)
	s.Greater(info.Size(), int64(0))
}

func (s *WritersTestSuite) TestTradesWriterCSV() {
	path := filepath.Join(s.dir, "trades.csv")
	w := NewTradesWriter(path, FormatCSV)
	s.Require().NoError(w.Initialize())

	defer w.Close()

	for _, trade := range s.sampleTrades() {
		s.Require().NoError(w.Write(trade))
	}

	data, err := os.ReadFile(path)
	s.Require().NoError(err)
	s.Contains(string(data), "BTCUSDT")
}

func (s *WritersTestSuite) TestWriteBeforeInitialize() {
	w := NewTradesWriter(filepath.Join(s.dir, "t.parquet"), FormatParquet)
	s.Error(w.Write(types.Trade{}))
}

func (s *WritersTestSuite) TestEquityWriter() {
	path := filepath.Join(s.dir, "equity.parquet")
	w := NewEquityWriter(path, FormatParquet)
	s.Require().NoError(w.Initialize())

	defer w.Close()

	samples := []types.EquitySample{
		{Timestamp: time.Unix(0, 0), Price: 100, Equity: 1000, Cash: 1000, Position: 0},
		{Timestamp: time.Unix(86400, 0), Price: 105, Equity: 1010, Cash: 900, Position: 1.05},
	}
	s.Require().NoError(w.WriteAll(samples))

	count, err := w.Count()
	s.Require().NoError(err)
	s.Equal(2, count)

	_, err = os.Stat(path)
	s.Require().NoError(err)
}

func TestWritersTestSuite(t *testing.T) {
	suite.Run(t, new(WritersTestSuite))
}
