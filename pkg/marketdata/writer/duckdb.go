package writer

import (
	"database/sql"
	"fmt"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/idxquant/swingbt/internal/types"
	"github.com/idxquant/swingbt/pkg/errors"
)

// DuckDBWriter buffers bars in an in-memory DuckDB table and exports them to
// a Parquet file on Finalize.
type DuckDBWriter struct {
	db         *sql.DB
	tx         *sql.Tx
	stmt       *sql.Stmt
	outputPath string
}

// NewDuckDBWriter creates a writer that will save the final Parquet file at
// outputPath.
func NewDuckDBWriter(outputPath string) BarWriter {
	return &DuckDBWriter{outputPath: outputPath}
}

func (w *DuckDBWriter) Initialize() (err error) {
	w.db, err = sql.Open("duckdb", "")
	if err != nil {
		return errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to open duckdb connection", err)
	}

	_, err = w.db.Exec(`
		CREATE TABLE IF NOT EXISTS bars (
			ticker VARCHAR,
			time TIMESTAMP,
			open DOUBLE,
			high DOUBLE,
			low DOUBLE,
			close DOUBLE,
			volume DOUBLE
		)
	`)
	if err != nil {
		w.db.Close()

		return errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to create bars table", err)
	}

	w.tx, err = w.db.Begin()
	if err != nil {
		w.db.Close()

		return errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to begin transaction", err)
	}

	w.stmt, err = w.tx.Prepare(`
		INSERT INTO bars (ticker, time, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		w.tx.Rollback()
		w.db.Close()

		return errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to prepare insert statement", err)
	}

	return nil
}

func (w *DuckDBWriter) Write(bar types.Bar) error {
	if w.stmt == nil {
		return errors.New(errors.ErrCodeMarketDataWriteFailed, "writer not initialized")
	}

	_, err := w.stmt.Exec(
		bar.Ticker,
		bar.Time,
		bar.Open,
		bar.High,
		bar.Low,
		bar.Close,
		bar.Volume,
	)
	if err != nil {
		return errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to insert bar", err)
	}

	return nil
}

// Finalize commits the transaction and exports the buffered bars to Parquet.
func (w *DuckDBWriter) Finalize() (outputPath string, err error) {
	if w.tx == nil {
		return "", errors.New(errors.ErrCodeMarketDataWriteFailed, "writer not initialized")
	}

	if err = w.tx.Commit(); err != nil {
		w.tx.Rollback()

		return "", errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to commit transaction", err)
	}

	w.tx = nil

	_, err = w.db.Exec(fmt.Sprintf(`COPY bars TO '%s' (FORMAT PARQUET)`, w.outputPath))
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to export to parquet", err)
	}

	return w.outputPath, nil
}

func (w *DuckDBWriter) Close() error {
	var firstErr error

	if w.stmt != nil {
		if err := w.stmt.Close(); err != nil && firstErr == nil {
			firstErr = err
		}

		w.stmt = nil
	}

	if w.tx != nil {
		// Finalize was never reached; discard the pending rows.
		if err := w.tx.Rollback(); err != nil && firstErr == nil {
			firstErr = err
		}

		w.tx = nil
	}

	if w.db != nil {
		if err := w.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}

		w.db = nil
	}

	if firstErr != nil {
		return errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to close writer", firstErr)
	}

	return nil
}

func (w *DuckDBWriter) OutputPath() string {
	return w.outputPath
}
