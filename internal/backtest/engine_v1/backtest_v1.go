// Package engine implements the day-synchronized backtest engine.
package engine

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/idxquant/swingbt/internal/backtest"
	"github.com/idxquant/swingbt/internal/datasource"
	"github.com/idxquant/swingbt/internal/logger"
	"github.com/idxquant/swingbt/internal/strategy"
	"github.com/idxquant/swingbt/internal/types"
	"github.com/idxquant/swingbt/pkg/errors"
)

// BacktestEngineV1 simulates a swing strategy over daily bars. All tickers
// advance together along the union calendar of their bar dates; each day
// processes exits before entries and ends with a single mark-to-market.
type BacktestEngineV1 struct {
	config        Config
	log           *logger.Logger
	strategy      strategy.Strategy
	source        datasource.DataSource
	resultsFolder string
}

// NewBacktestEngineV1 creates an uninitialized engine.
func NewBacktestEngineV1() backtest.Engine {
	return &BacktestEngineV1{config: DefaultConfig()}
}

// Initialize implements backtest.Engine.
func (b *BacktestEngineV1) Initialize(config string) error {
	cfg, err := ParseConfig(config)
	if err != nil {
		return err
	}

	b.config = cfg

	if b.log == nil {
		log, err := logger.NewLogger()
		if err != nil {
			return err
		}

		b.log = log
	}

	b.log.Debug("backtest engine initialized",
		zap.Float64("initial_capital", cfg.InitialCapital),
		zap.Float64("risk_per_trade", cfg.RiskPerTrade),
	)

	return nil
}

// SetLogger overrides the engine logger. Useful for silencing tests.
func (b *BacktestEngineV1) SetLogger(log *logger.Logger) {
	b.log = log
}

// SetDataSource implements backtest.Engine.
func (b *BacktestEngineV1) SetDataSource(source datasource.DataSource) error {
	if source == nil {
		return errors.New(errors.ErrCodeInvalidParameter, "data source cannot be nil")
	}

	b.source = source

	return nil
}

// SetStrategy implements backtest.Engine.
func (b *BacktestEngineV1) SetStrategy(s strategy.Strategy) error {
	if s == nil {
		return errors.New(errors.ErrCodeInvalidParameter, "strategy cannot be nil")
	}

	b.strategy = s

	return nil
}

// SetResultsFolder implements backtest.Engine.
func (b *BacktestEngineV1) SetResultsFolder(folder string) error {
	b.resultsFolder = folder

	return nil
}

// GetConfigSchema implements backtest.Engine.
func (b *BacktestEngineV1) GetConfigSchema() (string, error) {
	return ConfigSchema()
}

// tickerSeries walks one ticker's bars along the union calendar.
type tickerSeries struct {
	ticker string
	bars   []types.Bar
	next   int
}

// barOn consumes and returns the ticker's bar for day, if it has one.
func (s *tickerSeries) barOn(day time.Time) (types.Bar, bool) {
	if s.next < len(s.bars) && s.bars[s.next].Time.Equal(day) {
		s.next++

		return s.bars[s.next-1], true
	}

	return types.Bar{}, false
}

// window returns all bars up to and including the last consumed one. This is
// the only view the strategy ever sees, which enforces temporal causality.
func (s *tickerSeries) window() []types.Bar {
	return s.bars[:s.next]
}

// exhausted reports whether the last bar has been consumed.
func (s *tickerSeries) exhausted() bool {
	return s.next == len(s.bars)
}

// entryCandidate is a buy recommendation deferred to the entry phase of the
// day.
type entryCandidate struct {
	ticker       string
	advice       types.Advice
	riskFraction float64
}

// Run implements backtest.Engine.
func (b *BacktestEngineV1) Run(ctx context.Context, callbacks backtest.LifecycleCallbacks) error {
	if b.log == nil {
		return errors.New(errors.ErrCodeBacktestConfigError, "engine is not initialized")
	}

	if b.source == nil {
		return errors.New(errors.ErrCodeBacktestConfigError, "no data source configured")
	}

	if b.strategy == nil {
		return errors.New(errors.ErrCodeBacktestConfigError, "no strategy configured")
	}

	series, skipped, err := b.loadSeries()
	if err != nil {
		return err
	}

	if len(series) == 0 {
		return errors.New(errors.ErrCodeNothingToBacktest, "no ticker has enough history to simulate")
	}

	calendar := unionCalendar(series)
	runID := uuid.New().String()

	tickers := make([]string, len(series))
	for i, s := range series {
		tickers[i] = s.ticker
	}

	if callbacks.OnRunStart != nil {
		if err := (*callbacks.OnRunStart)(runID, tickers, len(calendar)); err != nil {
			return err
		}
	}

	portfolio := NewPortfolio(b.config.InitialCapital, b.config.CommissionRate, b.config.SlippageRate, b.log)
	sizer := PositionSizer{
		LotSize:             b.config.LotSize,
		MaxPositionExposure: b.config.MaxPositionExposure,
		MaxTotalExposure:    b.config.MaxTotalExposure,
	}

	oracleFailures := 0
	lastCloses := make(map[string]float64)

	for dayIndex, day := range calendar {
		select {
		case <-ctx.Done():
			return errors.Wrap(errors.ErrCodeBacktestCancelled, "backtest cancelled", ctx.Err())
		default:
		}

		var entries []entryCandidate

		// Exit phase: stops, targets, signal exits and end-of-series force
		// closes. Entries wait so that cash freed today is available today.
		for _, ts := range series {
			bar, ok := ts.barOn(day)
			if !ok {
				continue
			}

			lastCloses[ts.ticker] = bar.Close

			if _, err := b.processExits(portfolio, ts, bar, &oracleFailures, &entries); err != nil {
				return err
			}

			// Whatever survives the ticker's last bar is force-closed at its
			// final close.
			if ts.exhausted() {
				if _, open := portfolio.Position(ts.ticker); open {
					if _, err := portfolio.ClosePosition(ts.ticker, bar.Time, bar.Close, types.ExitReasonEndOfPeriod); err != nil {
						return err
					}
				}
			}
		}

		// Entry phase. Marks are refreshed first so the sizer's equity and
		// exposure figures use today's closes, not yesterday's.
		portfolio.UpdateMarks(lastCloses)

		for _, candidate := range entries {
			if portfolio.OpenPositionCount() >= b.config.MaxOpenPositions {
				break
			}

			if _, open := portfolio.Position(candidate.ticker); open {
				continue
			}

			equity := portfolio.Equity()

			quantity, ok := sizer.Size(SizeRequest{
				Equity:       equity,
				RiskFraction: candidate.riskFraction,
				EntryPrice:   candidate.advice.Close,
				StopDistance: candidate.advice.StopDistance,
				OpenExposure: portfolio.OpenExposure(),
			})
			if !ok {
				b.log.Debug("entry rejected by sizer",
					zap.String("ticker", candidate.ticker),
					zap.Time("day", day),
				)

				continue
			}

			if !portfolio.CanAfford(candidate.advice.Close, quantity) {
				b.log.Debug("entry skipped, insufficient cash",
					zap.String("ticker", candidate.ticker),
					zap.Time("day", day),
					zap.Int64("quantity", quantity),
				)

				continue
			}

			stopPrice := candidate.advice.Close - candidate.advice.StopDistance

			err := portfolio.OpenPosition(candidate.ticker, day, candidate.advice.Close, quantity,
				stopPrice, candidate.advice.TakeProfit, equity*candidate.riskFraction)
			if err != nil {
				return err
			}
		}

		portfolio.MarkToMarket(day, lastCloses)

		if callbacks.OnProcessDay != nil {
			if err := (*callbacks.OnProcessDay)(dayIndex+1, len(calendar)); err != nil {
				return err
			}
		}
	}

	stats := buildStats(runID, b.strategy.Name(), portfolio.Trades(), portfolio.EquityCurve(),
		b.config.InitialCapital, oracleFailures, skipped)

	if b.resultsFolder != "" {
		writer := NewResultsWriter(b.log)
		if err := writer.Write(b.resultsFolder, stats, portfolio.Trades(), portfolio.EquityCurve()); err != nil {
			return err
		}
	}

	if callbacks.OnRunEnd != nil {
		(*callbacks.OnRunEnd)(runID, stats)
	}

	return nil
}

// processExits handles one ticker-day up to (but excluding) new entries.
// Returns true when the position was closed or reduced this bar.
//
// Exit precedence within a bar: stop loss, then take profit, then signal
// exits. A bar touching both stop and target counts as a stop-out.
func (b *BacktestEngineV1) processExits(portfolio *Portfolio, ts *tickerSeries, bar types.Bar, oracleFailures *int, entries *[]entryCandidate) (bool, error) {
	if pos, open := portfolio.Position(ts.ticker); open {
		if bar.Low <= pos.StopPrice {
			if _, err := portfolio.ClosePosition(ts.ticker, bar.Time, pos.StopPrice, types.ExitReasonStopLoss); err != nil {
				return false, err
			}

			return true, nil
		}

		if pos.TakeProfit.IsSome() && bar.High >= pos.TakeProfit.Unwrap().Lower {
			target := pos.TakeProfit.Unwrap().Lower
			if _, err := portfolio.ClosePosition(ts.ticker, bar.Time, target, types.ExitReasonTakeProfit); err != nil {
				return false, err
			}

			return true, nil
		}
	}

	advice, err := b.strategy.Evaluate(ts.ticker, ts.window())
	if err != nil {
		// A failing oracle is treated as WAIT for this ticker-day.
		*oracleFailures++

		b.log.Warn("strategy evaluation failed",
			zap.String("ticker", ts.ticker),
			zap.Time("day", bar.Time),
			zap.Error(err),
		)

		return false, nil
	}

	pos, open := portfolio.Position(ts.ticker)

	switch advice.Signal {
	case types.SignalSellAll:
		if open {
			if _, err := portfolio.ClosePosition(ts.ticker, bar.Time, bar.Close, types.ExitReasonSignalExit); err != nil {
				return false, err
			}

			return true, nil
		}
	case types.SignalSellPartial:
		if open {
			return true, b.reduceByHalf(portfolio, pos, bar)
		}
	case types.SignalBuyStrong, types.SignalBuyWeak:
		if !open && !ts.exhausted() {
			risk := b.config.RiskPerTrade
			if advice.Signal == types.SignalBuyWeak {
				risk /= 2
			}

			*entries = append(*entries, entryCandidate{ticker: ts.ticker, advice: advice, riskFraction: risk})
		}
	case types.SignalHold, types.SignalWait:
	default:
		return false, errors.Newf(errors.ErrCodeInvalidSignal, "strategy %s returned unknown signal %q for %s",
			b.strategy.Name(), advice.Signal, ts.ticker)
	}

	return false, nil
}

// reduceByHalf sells half the position rounded down to lots. When the half
// is zero or would empty the position anyway, the whole position is closed.
func (b *BacktestEngineV1) reduceByHalf(portfolio *Portfolio, pos types.Position, bar types.Bar) error {
	half := pos.Quantity / 2
	if b.config.LotSize > 1 {
		half = half / b.config.LotSize * b.config.LotSize
	}

	var err error
	if half <= 0 || half >= pos.Quantity {
		_, err = portfolio.ClosePosition(pos.Ticker, bar.Time, bar.Close, types.ExitReasonSignalExit)
	} else {
		_, err = portfolio.ReducePosition(pos.Ticker, bar.Time, bar.Close, half, types.ExitReasonSignalExit)
	}

	return err
}

// loadSeries fetches bars for the configured universe and drops tickers with
// less history than the strategy needs.
func (b *BacktestEngineV1) loadSeries() ([]*tickerSeries, []string, error) {
	universe := b.config.Tickers

	if len(universe) == 0 {
		all, err := b.source.Tickers()
		if err != nil {
			return nil, nil, err
		}

		universe = all
	}

	start := optional.FromNillable(b.config.StartTime)
	end := optional.FromNillable(b.config.EndTime)

	var (
		series  []*tickerSeries
		skipped []string
	)

	for _, ticker := range universe {
		bars, err := b.source.GetBars(ticker, start, end)
		if err != nil {
			return nil, nil, err
		}

		// The SQL source orders by time, but nothing forces a custom
		// DataSource to. The calendar walk silently drops bars otherwise.
		for i := 1; i < len(bars); i++ {
			if !bars[i].Time.After(bars[i-1].Time) {
				return nil, nil, errors.Newf(errors.ErrCodeDataNotSorted,
					"bars for %s are not strictly ascending at index %d", ticker, i)
			}
		}

		if len(bars) < b.strategy.MinBars() {
			skipped = append(skipped, ticker)

			b.log.Warn("skipping ticker with insufficient history",
				zap.String("ticker", ticker),
				zap.Int("bars", len(bars)),
				zap.Int("required", b.strategy.MinBars()),
			)

			continue
		}

		series = append(series, &tickerSeries{ticker: ticker, bars: bars})
	}

	return series, skipped, nil
}

// unionCalendar returns the sorted distinct bar dates across all series.
func unionCalendar(series []*tickerSeries) []time.Time {
	seen := make(map[int64]time.Time)

	for _, s := range series {
		for _, bar := range s.bars {
			seen[bar.Time.UnixNano()] = bar.Time
		}
	}

	calendar := make([]time.Time, 0, len(seen))
	for _, t := range seen {
		calendar = append(calendar, t)
	}

	sort.Slice(calendar, func(i, j int) bool { return calendar[i].Before(calendar[j]) })

	return calendar
}
