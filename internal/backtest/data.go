package backtest

import (
	"os"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/vcampos/spotkit/internal/types"
	"github.com/vcampos/spotkit/pkg/errors"
)

// replayRow is one CSV kline row. open_time is epoch milliseconds, the
// Binance kline convention. The signal column is the externally computed
// decision for that step; empty parses as hold.
type replayRow struct {
	OpenTime int64   `csv:"open_time"`
	Open     float64 `csv:"open"`
	High     float64 `csv:"high"`
	Low      float64 `csv:"low"`
	Close    float64 `csv:"close"`
	Volume   float64 `csv:"volume"`
	Signal   string  `csv:"signal"`
}

// LoadReplayCSV reads a kline CSV into a replay input. Decisions replay
// against the close of each kline.
func LoadReplayCSV(path, symbol string) (ReplayInput, error) {
	file, err := os.Open(path)
	if err != nil {
		return ReplayInput{}, errors.Wrap(errors.ErrCodeBacktestDataLoadFailed, "failed to open data file", err)
	}
	defer file.Close()

	var rows []replayRow
	if err := gocsv.UnmarshalFile(file, &rows); err != nil {
		return ReplayInput{}, errors.Wrap(errors.ErrCodeBacktestDataLoadFailed, "failed to parse data file", err)
	}

	input := ReplayInput{
		Symbol:     symbol,
		Prices:     make([]float64, len(rows)),
		Signals:    make([]types.Signal, len(rows)),
		Timestamps: make([]time.Time, len(rows)),
	}

	for i, row := range rows {
		input.Prices[i] = row.Close
		input.Signals[i] = types.ParseSignal(row.Signal)
		input.Timestamps[i] = time.UnixMilli(row.OpenTime)
	}

	return input, nil
}
