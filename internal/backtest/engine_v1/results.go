package engine

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"

	"github.com/idxquant/swingbt/internal/logger"
	"github.com/idxquant/swingbt/internal/types"
	"github.com/idxquant/swingbt/pkg/errors"
)

// ResultsWriter persists a finished run: trades and equity curve as Parquet
// files, statistics as YAML. Rows are staged in an in-memory DuckDB instance
// and exported with COPY so downstream analysis can read them directly.
type ResultsWriter struct {
	log *logger.Logger
}

// NewResultsWriter creates a results writer.
func NewResultsWriter(log *logger.Logger) *ResultsWriter {
	return &ResultsWriter{log: log}
}

// Write saves trades.parquet, equity.parquet and stats.yaml under folder,
// creating the folder if needed.
func (w *ResultsWriter) Write(folder string, stats types.BacktestStats, trades []types.TradeRecord, curve []types.EquityPoint) error {
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return errors.Wrapf(errors.ErrCodeResultsWriteFailed, err, "failed to create results folder %s", folder)
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return errors.Wrap(errors.ErrCodeResultsWriteFailed, "failed to open staging database", err)
	}
	defer db.Close()

	if err := w.writeTrades(db, filepath.Join(folder, "trades.parquet"), trades); err != nil {
		return err
	}

	if err := w.writeEquity(db, filepath.Join(folder, "equity.parquet"), curve); err != nil {
		return err
	}

	statsPath := filepath.Join(folder, "stats.yaml")
	if err := types.WriteStats(statsPath, stats); err != nil {
		return errors.Wrap(errors.ErrCodeResultsWriteFailed, "failed to write stats", err)
	}

	w.log.Info("results written",
		zap.String("folder", folder),
		zap.Int("trades", len(trades)),
		zap.Int("equity_points", len(curve)),
	)

	return nil
}

func (w *ResultsWriter) writeTrades(db *sql.DB, path string, trades []types.TradeRecord) error {
	_, err := db.Exec(`
		CREATE TABLE trades (
			id VARCHAR,
			ticker VARCHAR,
			entry_time TIMESTAMP,
			exit_time TIMESTAMP,
			entry_price DOUBLE,
			exit_price DOUBLE,
			quantity BIGINT,
			pnl DOUBLE,
			return_pct DOUBLE,
			exit_reason VARCHAR,
			holding_days INTEGER,
			fees DOUBLE
		);
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeResultsWriteFailed, "failed to create trades table", err)
	}

	sq := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	for _, trade := range trades {
		query, args, err := sq.
			Insert("trades").
			Columns("id", "ticker", "entry_time", "exit_time", "entry_price", "exit_price",
				"quantity", "pnl", "return_pct", "exit_reason", "holding_days", "fees").
			Values(trade.ID, trade.Ticker, trade.EntryTime, trade.ExitTime, trade.EntryPrice, trade.ExitPrice,
				trade.Quantity, trade.PnL, trade.ReturnPct, string(trade.ExitReason), trade.HoldingDays, trade.Fees).
			ToSql()
		if err != nil {
			return errors.Wrap(errors.ErrCodeResultsWriteFailed, "failed to build trade insert", err)
		}

		if _, err := db.Exec(query, args...); err != nil {
			return errors.Wrapf(errors.ErrCodeResultsWriteFailed, err, "failed to stage trade %s", trade.ID)
		}
	}

	return copyTo(db, "trades", path)
}

func (w *ResultsWriter) writeEquity(db *sql.DB, path string, curve []types.EquityPoint) error {
	_, err := db.Exec(`
		CREATE TABLE equity (
			time TIMESTAMP,
			equity DOUBLE,
			cash DOUBLE,
			open_positions INTEGER,
			drawdown_pct DOUBLE
		);
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeResultsWriteFailed, "failed to create equity table", err)
	}

	sq := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	for _, point := range curve {
		query, args, err := sq.
			Insert("equity").
			Columns("time", "equity", "cash", "open_positions", "drawdown_pct").
			Values(point.Time, point.Equity, point.Cash, point.OpenPositions, point.DrawdownPct).
			ToSql()
		if err != nil {
			return errors.Wrap(errors.ErrCodeResultsWriteFailed, "failed to build equity insert", err)
		}

		if _, err := db.Exec(query, args...); err != nil {
			return errors.Wrap(errors.ErrCodeResultsWriteFailed, "failed to stage equity point", err)
		}
	}

	return copyTo(db, "equity", path)
}

func copyTo(db *sql.DB, table, path string) error {
	_, err := db.Exec(fmt.Sprintf(`COPY %s TO '%s' (FORMAT PARQUET)`, table, path))
	if err != nil {
		return errors.Wrapf(errors.ErrCodeResultsWriteFailed, err, "failed to export %s to %s", table, path)
	}

	return nil
}
