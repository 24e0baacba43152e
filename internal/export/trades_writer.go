// Package export persists trade ledgers, equity curves and run summaries as
// tabular artifacts. Rows accumulate in an in-memory DuckDB table and are
// re-exported to the output file on every write, so a crash loses at most
// the in-flight row.
package export

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/vcampos/spotkit/internal/types"
	"github.com/vcampos/spotkit/pkg/errors"
)

// Format selects the on-disk file format.
type Format string

const (
	FormatParquet Format = "parquet"
	FormatCSV     Format = "csv"
)

func (f Format) copyOptions() string {
	if f == FormatCSV {
		return "FORMAT CSV, HEADER"
	}

	return "FORMAT PARQUET"
}

// TradesWriter writes the trade ledger to a parquet or csv file.
type TradesWriter struct {
	db         *sql.DB
	sq         squirrel.StatementBuilderType
	outputPath string
	format     Format
	mu         sync.Mutex
}

// NewTradesWriter creates a writer targeting outputPath.
func NewTradesWriter(outputPath string, format Format) *TradesWriter {
	return &TradesWriter{
		db:         nil,
		sq:         squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
		outputPath: outputPath,
		format:     format,
		mu:         sync.Mutex{},
	}
}

// Initialize opens the in-memory database and creates the trades table.
func (w *TradesWriter) Initialize() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	dir := filepath.Dir(w.outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(errors.ErrCodeExportWriteFailed, "failed to create output directory", err)
	}

	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return errors.Wrap(errors.ErrCodeExportWriteFailed, "failed to open DuckDB connection", err)
	}

	w.db = db

	_, err = w.db.Exec(`
		CREATE TABLE IF NOT EXISTS trades (
			timestamp TIMESTAMP,
			symbol TEXT,
			side TEXT,
			price DOUBLE,
			quantity DOUBLE,
			notional DOUBLE,
			fee DOUBLE,
			reason TEXT,
			message TEXT,
			entry_price DOUBLE,
			pnl DOUBLE,
			pnl_pct DOUBLE
		)
	`)
	if err != nil {
		w.db.Close()

		return errors.Wrap(errors.ErrCodeExportWriteFailed, "failed to create trades table", err)
	}

	return nil
}

// Write persists one trade and re-exports the file.
func (w *TradesWriter) Write(trade types.Trade) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.db == nil {
		return errors.New(errors.ErrCodeExportWriteFailed, "trades writer not initialized")
	}

	query, args, err := w.sq.
		Insert("trades").
		Columns("timestamp", "symbol", "side", "price", "quantity", "notional",
			"fee", "reason", "message", "entry_price", "pnl", "pnl_pct").
		Values(trade.Timestamp, trade.Symbol, string(trade.Side), trade.Price,
			trade.Quantity, trade.Notional, trade.Fee,
			trade.Reason.Reason, trade.Reason.Message,
			nullableFloat(trade.EntryPrice.TakeOr(0), trade.EntryPrice.IsSome()),
			nullableFloat(trade.PnL.TakeOr(0), trade.PnL.IsSome()),
			nullableFloat(trade.PnLPct.TakeOr(0), trade.PnLPct.IsSome())).
		ToSql()
	if err != nil {
		return errors.Wrap(errors.ErrCodeExportWriteFailed, "failed to build trade insert", err)
	}

	if _, err := w.db.Exec(query, args...); err != nil {
		return errors.Wrap(errors.ErrCodeExportWriteFailed, "failed to insert trade", err)
	}

	return w.export()
}

// WriteAll persists a whole ledger and exports once at the end.
func (w *TradesWriter) WriteAll(trades []types.Trade) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.db == nil {
		return errors.New(errors.ErrCodeExportWriteFailed, "trades writer not initialized")
	}

	for _, trade := range trades {
		query, args, err := w.sq.
			Insert("trades").
			Columns("timestamp", "symbol", "side", "price", "quantity", "notional",
				"fee", "reason", "message", "entry_price", "pnl", "pnl_pct").
			Values(trade.Timestamp, trade.Symbol, string(trade.Side), trade.Price,
				trade.Quantity, trade.Notional, trade.Fee,
				trade.Reason.Reason, trade.Reason.Message,
				nullableFloat(trade.EntryPrice.TakeOr(0), trade.EntryPrice.IsSome()),
				nullableFloat(trade.PnL.TakeOr(0), trade.PnL.IsSome()),
				nullableFloat(trade.PnLPct.TakeOr(0), trade.PnLPct.IsSome())).
			ToSql()
		if err != nil {
			return errors.Wrap(errors.ErrCodeExportWriteFailed, "failed to build trade insert", err)
		}

		if _, err := w.db.Exec(query, args...); err != nil {
			return errors.Wrap(errors.ErrCodeExportWriteFailed, "failed to insert trade", err)
		}
	}

	return w.export()
}

// Count returns the number of stored trades.
func (w *TradesWriter) Count() (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.db == nil {
		return 0, errors.New(errors.ErrCodeExportWriteFailed, "trades writer not initialized")
	}

	var count int
	if err := w.db.QueryRow("SELECT COUNT(*) FROM trades").Scan(&count); err != nil {
		return 0, errors.Wrap(errors.ErrCodeExportWriteFailed, "failed to count trades", err)
	}

	return count, nil
}

// TotalPnL returns the sum of realized pnl across stored trades.
func (w *TradesWriter) TotalPnL() (float64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.db == nil {
		return 0, errors.New(errors.ErrCodeExportWriteFailed, "trades writer not initialized")
	}

	var total sql.NullFloat64
	if err := w.db.QueryRow("SELECT SUM(pnl) FROM trades").Scan(&total); err != nil {
		return 0, errors.Wrap(errors.ErrCodeExportWriteFailed, "failed to sum pnl", err)
	}

	if !total.Valid {
		return 0, nil
	}

	return total.Float64, nil
}

// OutputPath returns the target file path.
func (w *TradesWriter) OutputPath() string {
	return w.outputPath
}

// Flush forces an export.
func (w *TradesWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.db == nil {
		return errors.New(errors.ErrCodeExportWriteFailed, "trades writer not initialized")
	}

	return w.export()
}

// Close releases database resources.
func (w *TradesWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.db != nil {
		if err := w.db.Close(); err != nil {
			return errors.Wrap(errors.ErrCodeExportWriteFailed, "failed to close database", err)
		}

		w.db = nil
	}

	return nil
}

func (w *TradesWriter) export() error {
	_, err := w.db.Exec(fmt.Sprintf(`
		COPY (SELECT * FROM trades ORDER BY timestamp ASC)
		TO '%s' (%s)
	`, w.outputPath, w.format.copyOptions()))
	if err != nil {
		return errors.Wrap(errors.ErrCodeExportWriteFailed, "failed to export trades", err)
	}

	return nil
}

func nullableFloat(v float64, ok bool) interface{} {
	if !ok {
		return nil
	}

	return v
}
