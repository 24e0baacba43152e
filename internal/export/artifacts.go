package export

import (
	"fmt"
	"path/filepath"

	"github.com/vcampos/spotkit/internal/backtest"
	"github.com/vcampos/spotkit/internal/types"
	"github.com/vcampos/spotkit/pkg/errors"
)

// WriteReplayArtifacts writes one replay run to resultsFolder: the trade
// ledger and equity curve in the chosen tabular format plus a YAML stats
// summary. The stats file records the paths of the other two artifacts, and
// the returned stats carry them too.
func WriteReplayArtifacts(resultsFolder string, result *backtest.ReplayResult, format Format) (types.BacktestStats, error) {
	stats := result.Stats

	runDir := filepath.Join(resultsFolder, stats.ID)

	tradesPath := filepath.Join(runDir, fmt.Sprintf("trades.%s", format))
	equityPath := filepath.Join(runDir, fmt.Sprintf("equity.%s", format))
	statsPath := filepath.Join(runDir, "stats.yaml")

	tradesWriter := NewTradesWriter(tradesPath, format)
	if err := tradesWriter.Initialize(); err != nil {
		return stats, err
	}
	defer tradesWriter.Close()

	if err := tradesWriter.WriteAll(result.Trades); err != nil {
		return stats, err
	}

	equityWriter := NewEquityWriter(equityPath, format)
	if err := equityWriter.Initialize(); err != nil {
		return stats, err
	}
	defer equityWriter.Close()

	if err := equityWriter.WriteAll(result.Equity); err != nil {
		return stats, err
	}

	stats.TradesFilePath = tradesPath
	stats.EquityFilePath = equityPath

	if err := types.WriteBacktestStats(statsPath, stats); err != nil {
		return stats, errors.Wrap(errors.ErrCodeExportWriteFailed, "failed to write stats summary", err)
	}

	return stats, nil
}
