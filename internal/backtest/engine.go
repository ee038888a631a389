// Package backtest defines the simulation engine contract.
package backtest

import (
	"context"

	"github.com/idxquant/swingbt/internal/datasource"
	"github.com/idxquant/swingbt/internal/strategy"
	"github.com/idxquant/swingbt/internal/types"
)

// Lifecycle callback types for backtest phases.
// Callbacks returning an error abort the run.

// OnRunStartCallback is called once before the first simulated day. runID is
// the unique identifier generated for this run, tickers the simulatable
// universe and totalDays the number of days in the union calendar.
type OnRunStartCallback func(runID string, tickers []string, totalDays int) error

// OnProcessDayCallback is called after each simulated day.
type OnProcessDayCallback func(current int, total int) error

// OnRunEndCallback is called after the run finished and results were written.
type OnRunEndCallback func(runID string, stats types.BacktestStats)

// LifecycleCallbacks holds the callback functions for the backtest engine.
// All fields are pointers - nil means no callback will be invoked.
type LifecycleCallbacks struct {
	OnRunStart   *OnRunStartCallback
	OnProcessDay *OnProcessDayCallback
	OnRunEnd     *OnRunEndCallback
}

// Engine runs a strategy over historical bars and produces a trade ledger,
// an equity curve and summary statistics.
type Engine interface {
	// Initialize parses and validates the YAML engine configuration.
	Initialize(config string) error
	// SetDataSource sets the bar supplier for the run.
	SetDataSource(source datasource.DataSource) error
	// SetStrategy sets the strategy oracle consulted each ticker-day.
	SetStrategy(s strategy.Strategy) error
	// SetResultsFolder sets the output directory for trades, equity curve and
	// stats. An empty folder disables result writing.
	SetResultsFolder(folder string) error
	// Run executes the simulation. The context cancels between simulated
	// days.
	Run(ctx context.Context, callbacks LifecycleCallbacks) error
	// GetConfigSchema returns the JSON schema of the engine configuration.
	GetConfigSchema() (string, error)
}
