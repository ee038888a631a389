package datasource

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/idxquant/swingbt/internal/logger"
	"github.com/idxquant/swingbt/internal/types"
	"github.com/idxquant/swingbt/pkg/errors"
)

// DuckDBDataSource reads daily bars from CSV or Parquet files through an
// embedded DuckDB instance. Files are exposed as a `bars` view so queries
// never copy the data into the database.
type DuckDBDataSource struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

// NewDuckDBDataSource opens a DuckDB database at path. Use ":memory:" (or an
// empty path) for a throwaway in-memory instance.
func NewDuckDBDataSource(path string, logger *logger.Logger) (*DuckDBDataSource, error) {
	if path == ":memory:" {
		path = ""
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to open duckdb", err)
	}

	return &DuckDBDataSource{
		db:     db,
		logger: logger,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}, nil
}

// Initialize implements DataSource. The path's extension selects the reader:
// read_csv_auto for .csv, read_parquet for .parquet. Globs are passed through
// to DuckDB, so "data/*.parquet" loads a whole directory.
func (d *DuckDBDataSource) Initialize(path string) error {
	d.logger.Debug("initializing duckdb data source", zap.String("path", path))

	reader, err := readerFor(path)
	if err != nil {
		return err
	}

	if _, err := d.db.Exec(`DROP VIEW IF EXISTS bars;`); err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to drop existing bars view", err)
	}

	// CREATE VIEW is not expressible with squirrel, so raw SQL here. The
	// path is quoted for DuckDB's string literal syntax.
	query := fmt.Sprintf(`
		CREATE VIEW bars AS
		SELECT
			ticker,
			CAST(time AS TIMESTAMP) AS time,
			CAST(open AS DOUBLE) AS open,
			CAST(high AS DOUBLE) AS high,
			CAST(low AS DOUBLE) AS low,
			CAST(close AS DOUBLE) AS close,
			CAST(volume AS DOUBLE) AS volume
		FROM %s('%s');
	`, reader, strings.ReplaceAll(path, "'", "''"))

	if _, err := d.db.Exec(query); err != nil {
		return errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to create bars view for %s", path)
	}

	return nil
}

func readerFor(path string) (string, error) {
	switch {
	case strings.HasSuffix(path, ".csv"):
		return "read_csv_auto", nil
	case strings.HasSuffix(path, ".parquet"):
		return "read_parquet", nil
	default:
		return "", errors.Newf(errors.ErrCodeInvalidParameter, "unsupported data file extension in %q (want .csv or .parquet)", path)
	}
}

// Tickers implements DataSource.
func (d *DuckDBDataSource) Tickers() ([]string, error) {
	rows, err := d.db.Query(`SELECT DISTINCT ticker FROM bars ORDER BY ticker`)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query tickers", err)
	}
	defer rows.Close()

	var tickers []string

	for rows.Next() {
		var ticker string
		if err := rows.Scan(&ticker); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan ticker", err)
		}

		tickers = append(tickers, ticker)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "error iterating tickers", err)
	}

	return tickers, nil
}

// GetBars implements DataSource.
func (d *DuckDBDataSource) GetBars(ticker string, start optional.Option[time.Time], end optional.Option[time.Time]) ([]types.Bar, error) {
	builder := d.sq.
		Select("ticker", "time", "open", "high", "low", "close", "volume").
		From("bars").
		Where(squirrel.Eq{"ticker": ticker}).
		OrderBy("time ASC")

	if start.IsSome() {
		builder = builder.Where(squirrel.GtOrEq{"time": start.Unwrap()})
	}

	if end.IsSome() {
		builder = builder.Where(squirrel.LtOrEq{"time": end.Unwrap()})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build bars query", err)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to query bars for %s", ticker)
	}
	defer rows.Close()

	var bars []types.Bar

	for rows.Next() {
		var bar types.Bar
		if err := rows.Scan(&bar.Ticker, &bar.Time, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan bar", err)
		}

		bars = append(bars, bar)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "error iterating bars", err)
	}

	return bars, nil
}

// Count implements DataSource.
func (d *DuckDBDataSource) Count(start optional.Option[time.Time], end optional.Option[time.Time]) (int, error) {
	builder := d.sq.Select("COUNT(*)").From("bars")

	if start.IsSome() {
		builder = builder.Where(squirrel.GtOrEq{"time": start.Unwrap()})
	}

	if end.IsSome() {
		builder = builder.Where(squirrel.LtOrEq{"time": end.Unwrap()})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build count query", err)
	}

	var count int
	if err := d.db.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to count bars", err)
	}

	return count, nil
}

// Close implements DataSource.
func (d *DuckDBDataSource) Close() error {
	if d.db != nil {
		return d.db.Close()
	}

	return nil
}
