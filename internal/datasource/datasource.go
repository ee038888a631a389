// Package datasource supplies historical daily bars to the backtest engine.
package datasource

import (
	"time"

	"github.com/moznion/go-optional"

	"github.com/idxquant/swingbt/internal/types"
)

// DataSource is a read-only supplier of historical bars. Implementations are
// gap-tolerant: a ticker's series may have missing trading days and callers
// get whatever bars exist in the requested range.
type DataSource interface {
	// Initialize loads bar data from the given path. The path may be a glob
	// covering multiple CSV or Parquet files.
	Initialize(path string) error

	// Tickers returns the distinct tickers present in the loaded data,
	// sorted ascending.
	Tickers() ([]string, error)

	// GetBars returns the bars for ticker within [start, end], ascending by
	// time. Unbounded sides are expressed with None.
	GetBars(ticker string, start optional.Option[time.Time], end optional.Option[time.Time]) ([]types.Bar, error)

	// Count returns the number of bars within [start, end] across all
	// tickers.
	Count(start optional.Option[time.Time], end optional.Option[time.Time]) (int, error)

	// Close releases the underlying resources.
	Close() error
}
