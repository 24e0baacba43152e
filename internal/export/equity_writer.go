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

// EquityWriter writes the equity curve to a parquet or csv file.
type EquityWriter struct {
	db         *sql.DB
	sq         squirrel.StatementBuilderType
	outputPath string
	format     Format
	mu         sync.Mutex
}

// NewEquityWriter creates a writer targeting outputPath.
func NewEquityWriter(outputPath string, format Format) *EquityWriter {
	return &EquityWriter{
		db:         nil,
		sq:         squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
		outputPath: outputPath,
		format:     format,
		mu:         sync.Mutex{},
	}
}

// Initialize opens the in-memory database and creates the equity table.
func (w *EquityWriter) Initialize() error {
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
		CREATE TABLE IF NOT EXISTS equity (
			timestamp TIMESTAMP,
			price DOUBLE,
			equity DOUBLE,
			cash DOUBLE,
			position DOUBLE
		)
	`)
	if err != nil {
		w.db.Close()

		return errors.Wrap(errors.ErrCodeExportWriteFailed, "failed to create equity table", err)
	}

	return nil
}

// WriteAll persists a whole curve and exports once at the end.
func (w *EquityWriter) WriteAll(samples []types.EquitySample) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.db == nil {
		return errors.New(errors.ErrCodeExportWriteFailed, "equity writer not initialized")
	}

	for _, sample := range samples {
		query, args, err := w.sq.
			Insert("equity").
			Columns("timestamp", "price", "equity", "cash", "position").
			Values(sample.Timestamp, sample.Price, sample.Equity, sample.Cash, sample.Position).
			ToSql()
		if err != nil {
			return errors.Wrap(errors.ErrCodeExportWriteFailed, "failed to build equity insert", err)
		}

		if _, err := w.db.Exec(query, args...); err != nil {
			return errors.Wrap(errors.ErrCodeExportWriteFailed, "failed to insert equity sample", err)
		}
	}

	return w.export()
}

// Count returns the number of stored samples.
func (w *EquityWriter) Count() (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.db == nil {
		return 0, errors.New(errors.ErrCodeExportWriteFailed, "equity writer not initialized")
	}

	var count int
	if err := w.db.QueryRow("SELECT COUNT(*) FROM equity").Scan(&count); err != nil {
		return 0, errors.Wrap(errors.ErrCodeExportWriteFailed, "failed to count equity samples", err)
	}

	return count, nil
}

// OutputPath returns the target file path.
func (w *EquityWriter) OutputPath() string {
	return w.outputPath
}

// Close releases database resources.
func (w *EquityWriter) Close() error {
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

func (w *EquityWriter) export() error {
	_, err := w.db.Exec(fmt.Sprintf(`
		COPY (SELECT * FROM equity ORDER BY timestamp ASC)
		TO '%s' (%s)
	`, w.outputPath, w.format.copyOptions()))
	if err != nil {
		return errors.Wrap(errors.ErrCodeExportWriteFailed, "failed to export equity curve", err)
	}

	return nil
}
