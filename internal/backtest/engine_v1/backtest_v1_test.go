package engine

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

	"github.com/idxquant/swingbt/internal/backtest"
	"github.com/idxquant/swingbt/internal/logger"
	"github.com/idxquant/swingbt/internal/types"
	"github.com/idxquant/swingbt/pkg/errors"
)

// memoryDataSource serves bars from memory, standing in for the DuckDB
// implementation.
type memoryDataSource struct {
	bars map[string][]types.Bar
}

func (m *memoryDataSource) Initialize(string) error { return nil }

func (m *memoryDataSource) Tickers() ([]string, error) {
	tickers := make([]string, 0, len(m.bars))
	for ticker := range m.bars {
		tickers = append(tickers, ticker)
	}

	sort.Strings(tickers)

	return tickers, nil
}

func (m *memoryDataSource) GetBars(ticker string, start optional.Option[time.Time], end optional.Option[time.Time]) ([]types.Bar, error) {
	var out []types.Bar

	for _, bar := range m.bars[ticker] {
		if start.IsSome() && bar.Time.Before(start.Unwrap()) {
			continue
		}

		if end.IsSome() && bar.Time.After(end.Unwrap()) {
			continue
		}

		out = append(out, bar)
	}

	return out, nil
}

func (m *memoryDataSource) Count(optional.Option[time.Time], optional.Option[time.Time]) (int, error) {
	total := 0
	for _, bars := range m.bars {
		total += len(bars)
	}

	return total, nil
}

func (m *memoryDataSource) Close() error { return nil }

// scriptedStrategy replays canned advice keyed by ticker and bar index.
// Unscripted ticker-days yield HOLD.
type scriptedStrategy struct {
	minBars int
	// script[ticker][barIndex]
	script map[string]map[int]types.Advice
	// failAt[ticker][barIndex] triggers an evaluation error
	failAt map[string]map[int]bool

	windows map[string][]int
}

func newScriptedStrategy() *scriptedStrategy {
	return &scriptedStrategy{
		minBars: 1,
		script:  make(map[string]map[int]types.Advice),
		failAt:  make(map[string]map[int]bool),
		windows: make(map[string][]int),
	}
}

func (s *scriptedStrategy) on(ticker string, barIndex int, advice types.Advice) {
	if s.script[ticker] == nil {
		s.script[ticker] = make(map[int]types.Advice)
	}

	s.script[ticker][barIndex] = advice
}

func (s *scriptedStrategy) Name() string { return "scripted" }

func (s *scriptedStrategy) MinBars() int { return s.minBars }

func (s *scriptedStrategy) Evaluate(ticker string, bars []types.Bar) (types.Advice, error) {
	index := len(bars) - 1
	s.windows[ticker] = append(s.windows[ticker], len(bars))

	if s.failAt[ticker][index] {
		return types.Advice{}, errors.New(errors.ErrCodeStrategyEvaluation, "scripted failure")
	}

	last := bars[index]

	if advice, ok := s.script[ticker][index]; ok {
		advice.Ticker = ticker
		advice.Time = last.Time
		advice.Close = last.Close

		return advice, nil
	}

	return types.Advice{Ticker: ticker, Time: last.Time, Signal: types.SignalHold, Close: last.Close}, nil
}

func buy(stopDistance float64, band types.PriceBand) types.Advice {
	return types.Advice{
		Signal:       types.SignalBuyStrong,
		StopDistance: stopDistance,
		TakeProfit:   optional.Some(band),
	}
}

type BacktestEngineV1TestSuite struct {
	suite.Suite

	strategy *scriptedStrategy
	source   *memoryDataSource
}

func TestBacktestEngineV1TestSuite(t *testing.T) {
	suite.Run(t, new(BacktestEngineV1TestSuite))
}

func (s *BacktestEngineV1TestSuite) SetupTest() {
	s.strategy = newScriptedStrategy()
	s.source = &memoryDataSource{bars: make(map[string][]types.Bar)}
}

// flatBars builds n daily bars at the given close with 1% high/low range.
func (s *BacktestEngineV1TestSuite) flatBars(ticker string, n int, close float64) []types.Bar {
	bars := make([]types.Bar, n)
	day := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

	for i := range bars {
		bars[i] = types.Bar{
			Ticker: ticker,
			Time:   day.AddDate(0, 0, i),
			Open:   close,
			High:   close * 1.01,
			Low:    close * 0.99,
			Close:  close,
			Volume: 1_000_000,
		}
	}

	return bars
}

func (s *BacktestEngineV1TestSuite) newEngine(configYAML string) backtest.Engine {
	e := NewBacktestEngineV1()

	v1, ok := e.(*BacktestEngineV1)
	s.Require().True(ok)
	v1.SetLogger(logger.NewNopLogger())

	s.Require().NoError(e.Initialize(configYAML))
	s.Require().NoError(e.SetDataSource(s.source))
	s.Require().NoError(e.SetStrategy(s.strategy))

	return e
}

const testConfig = `
initial_capital: 1000000
risk_per_trade: 0.01
max_position_exposure: 0.2
max_total_exposure: 0.6
max_open_positions: 5
lot_size: 100
commission_rate: 0
slippage_rate: 0
`

func (s *BacktestEngineV1TestSuite) run(e backtest.Engine) types.BacktestStats {
	var stats types.BacktestStats

	onEnd := backtest.OnRunEndCallback(func(_ string, result types.BacktestStats) {
		stats = result
	})

	err := e.Run(context.Background(), backtest.LifecycleCallbacks{OnRunEnd: &onEnd})
	s.Require().NoError(err)

	return stats
}

func (s *BacktestEngineV1TestSuite) TestRunRequiresConfiguration() {
	e := NewBacktestEngineV1()

	v1 := e.(*BacktestEngineV1)
	v1.SetLogger(logger.NewNopLogger())

	err := e.Run(context.Background(), backtest.LifecycleCallbacks{})
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeBacktestConfigError))
}

func (s *BacktestEngineV1TestSuite) TestNothingToBacktest() {
	s.strategy.minBars = 10
	s.source.bars["BBCA"] = s.flatBars("BBCA", 3, 100)

	e := s.newEngine(testConfig)

	err := e.Run(context.Background(), backtest.LifecycleCallbacks{})
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeNothingToBacktest))
}

func (s *BacktestEngineV1TestSuite) TestEntryAndEndOfPeriodForceClose() {
	bars := s.flatBars("BBCA", 5, 100)
	bars[4].Close = 104
	bars[4].High = 105
	bars[4].Low = 103
	s.source.bars["BBCA"] = bars

	// buy on the first bar; stop far below so it never triggers
	s.strategy.on("BBCA", 0, buy(10, types.PriceBand{Lower: 200, Upper: 220}))

	stats := s.run(s.newEngine(testConfig))

	s.Require().Equal(1, stats.TradeResult.NumberOfTrades)

	// risk 10_000 / stop distance 10 = 1000 shares at 100
	s.InDelta(1_004_000, stats.FinalEquity, 1e-6)
	s.InDelta(0.4, stats.TotalReturnPct, 1e-6)
}

func (s *BacktestEngineV1TestSuite) TestPerTickerStatsPopulated() {
	s.source.bars["BBCA"] = s.flatBars("BBCA", 5, 100)
	s.strategy.on("BBCA", 0, buy(10, types.PriceBand{Lower: 200, Upper: 220}))

	stats := s.run(s.newEngine(testConfig))

	s.Require().Len(stats.Tickers, 1)
	s.Equal("BBCA", stats.Tickers[0].Ticker)
	s.Equal(1, stats.Tickers[0].TradeResult.NumberOfTrades)
}

func (s *BacktestEngineV1TestSuite) TestStopLossWinsSameBarTie() {
	bars := s.flatBars("BBCA", 4, 100)
	// second bar touches both the stop (95) and the target (103)
	bars[1].Low = 94
	bars[1].High = 105
	s.source.bars["BBCA"] = bars

	s.strategy.on("BBCA", 0, buy(5, types.PriceBand{Lower: 103, Upper: 110}))

	stats := s.run(s.newEngine(testConfig))

	s.Require().Equal(1, stats.TradeResult.NumberOfTrades)
	s.Equal(1, stats.TradeResult.NumberOfLosingTrades, "tie resolves to the stop")

	// 2000 shares, entry 100, stop fill at 95
	s.InDelta(-10_000, stats.TradePnL.TotalPnL, 1e-6)
}

func (s *BacktestEngineV1TestSuite) TestTakeProfitExitAtBandLower() {
	bars := s.flatBars("BBCA", 4, 100)
	bars[2].High = 104
	s.source.bars["BBCA"] = bars

	s.strategy.on("BBCA", 0, buy(5, types.PriceBand{Lower: 103, Upper: 110}))

	stats := s.run(s.newEngine(testConfig))

	s.Require().Equal(1, stats.TradeResult.NumberOfTrades)
	s.Equal(1, stats.TradeResult.NumberOfWinningTrades)

	// 2000 shares filled at the band lower bound: (103-100)*2000
	s.InDelta(6_000, stats.TradePnL.TotalPnL, 1e-6)
}

func (s *BacktestEngineV1TestSuite) TestSellAllSignalExit() {
	bars := s.flatBars("BBCA", 5, 100)
	bars[2].Close = 102
	s.source.bars["BBCA"] = bars

	s.strategy.on("BBCA", 0, buy(10, types.PriceBand{Lower: 200, Upper: 220}))
	s.strategy.on("BBCA", 2, types.Advice{Signal: types.SignalSellAll})

	stats := s.run(s.newEngine(testConfig))

	s.Require().Equal(1, stats.TradeResult.NumberOfTrades)
	// 1000 shares sold at 102
	s.InDelta(2_000, stats.TradePnL.TotalPnL, 1e-6)
}

func (s *BacktestEngineV1TestSuite) TestSellPartialHalvesThenForceCloses() {
	bars := s.flatBars("BBCA", 5, 100)
	s.source.bars["BBCA"] = bars

	s.strategy.on("BBCA", 0, buy(10, types.PriceBand{Lower: 200, Upper: 220}))
	s.strategy.on("BBCA", 2, types.Advice{Signal: types.SignalSellPartial})

	stats := s.run(s.newEngine(testConfig))

	// one record for the half exit, one for the end-of-period close
	s.Equal(2, stats.TradeResult.NumberOfTrades)
}

func (s *BacktestEngineV1TestSuite) TestOracleFailureIsNonFatal() {
	s.source.bars["BBCA"] = s.flatBars("BBCA", 5, 100)
	s.strategy.failAt["BBCA"] = map[int]bool{2: true}

	stats := s.run(s.newEngine(testConfig))

	s.Equal(1, stats.OracleFailures)
	s.Zero(stats.TradeResult.NumberOfTrades)
}

func (s *BacktestEngineV1TestSuite) TestShortTickersAreSkippedNotFatal() {
	s.strategy.minBars = 4
	s.source.bars["BBCA"] = s.flatBars("BBCA", 5, 100)
	s.source.bars["GOTO"] = s.flatBars("GOTO", 2, 50)

	stats := s.run(s.newEngine(testConfig))

	s.Equal([]string{"GOTO"}, stats.SkippedTickers)
}

func (s *BacktestEngineV1TestSuite) TestNoEntryOnFinalBar() {
	s.source.bars["BBCA"] = s.flatBars("BBCA", 3, 100)
	s.strategy.on("BBCA", 2, buy(10, types.PriceBand{Lower: 200, Upper: 220}))

	stats := s.run(s.newEngine(testConfig))

	s.Zero(stats.TradeResult.NumberOfTrades, "a position opened on the last bar could never be closed")
}

func (s *BacktestEngineV1TestSuite) TestCancellation() {
	s.source.bars["BBCA"] = s.flatBars("BBCA", 5, 100)

	e := s.newEngine(testConfig)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := e.Run(ctx, backtest.LifecycleCallbacks{})
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeBacktestCancelled))
}

func (s *BacktestEngineV1TestSuite) TestStrategySeesOnlyGrowingWindows() {
	s.source.bars["BBCA"] = s.flatBars("BBCA", 6, 100)

	s.run(s.newEngine(testConfig))

	windows := s.strategy.windows["BBCA"]
	s.Require().Len(windows, 6)

	for i, length := range windows {
		s.Equal(i+1, length, "the oracle must only ever see bars up to the current day")
	}
}

func (s *BacktestEngineV1TestSuite) TestDeterministicAcrossRuns() {
	bars := s.flatBars("BBCA", 6, 100)
	bars[3].Low = 90
	s.source.bars["BBCA"] = bars
	s.source.bars["TLKM"] = s.flatBars("TLKM", 6, 50)

	s.strategy.on("BBCA", 0, buy(5, types.PriceBand{Lower: 103, Upper: 110}))
	s.strategy.on("TLKM", 1, buy(2, types.PriceBand{Lower: 51.5, Upper: 55}))

	first := s.run(s.newEngine(testConfig))

	// fresh strategy bookkeeping, same script
	s.strategy.windows = make(map[string][]int)
	second := s.run(s.newEngine(testConfig))

	s.Equal(first.FinalEquity, second.FinalEquity)
	s.Equal(first.TradeResult, second.TradeResult)
	s.Equal(first.TradePnL, second.TradePnL)
}

func (s *BacktestEngineV1TestSuite) TestEntrySizingUsesSameDayMarks() {
	bbca := s.flatBars("BBCA", 3, 100)
	// BBCA triples on day 1 and holds, lifting equity before TLKM's entry
	bbca[1].Close = 300
	bbca[1].High = 305
	bbca[1].Low = 295
	bbca[2].Close = 300
	bbca[2].High = 303
	bbca[2].Low = 297
	s.source.bars["BBCA"] = bbca

	tlkm := s.flatBars("TLKM", 3, 100)
	tlkm[2].Close = 110
	tlkm[2].High = 111
	tlkm[2].Low = 109
	s.source.bars["TLKM"] = tlkm

	band := types.PriceBand{Lower: 1000, Upper: 1100}
	s.strategy.on("BBCA", 0, buy(10, band))
	s.strategy.on("TLKM", 1, buy(10, band))

	stats := s.run(s.newEngine(testConfig))

	s.Require().Len(stats.Tickers, 2)
	s.Equal("BBCA", stats.Tickers[0].Ticker)
	s.InDelta(200_000, stats.Tickers[0].TradePnL.TotalPnL, 1e-6)

	// TLKM enters on day 1 with BBCA marked at 300: equity 1.2M, so the 1%
	// risk budget buys 1200 shares, not the 1000 a stale mark would give.
	s.Equal("TLKM", stats.Tickers[1].Ticker)
	s.InDelta(12_000, stats.Tickers[1].TradePnL.TotalPnL, 1e-6)
}

func (s *BacktestEngineV1TestSuite) TestUnaffordableEntryIsSkippedNotFatal() {
	// 2% commission so the risk budget can outrun free cash while both
	// exposure caps still pass
	cfg := `
initial_capital: 1000000
risk_per_trade: 0.01
max_position_exposure: 0.5
max_total_exposure: 1.0
max_open_positions: 5
lot_size: 100
commission_rate: 0.02
slippage_rate: 0
`

	s.source.bars["AAAA"] = s.flatBars("AAAA", 4, 100)
	s.source.bars["BBBB"] = s.flatBars("BBBB", 4, 100)

	band := types.PriceBand{Lower: 200, Upper: 220}
	s.strategy.on("AAAA", 0, buy(2, band))
	// AAAA's fill leaves 490_000 cash; BBBB's 4900 shares would cost 499_800
	s.strategy.on("BBBB", 1, buy(2, band))

	stats := s.run(s.newEngine(cfg))

	s.Require().Equal(1, stats.TradeResult.NumberOfTrades)
	s.Require().Len(stats.Tickers, 1)
	s.Equal("AAAA", stats.Tickers[0].Ticker, "the unaffordable entry is skipped, not fatal")
}

func (s *BacktestEngineV1TestSuite) TestUnknownSignalIsFatal() {
	s.source.bars["BBCA"] = s.flatBars("BBCA", 3, 100)
	s.strategy.on("BBCA", 1, types.Advice{Signal: types.Signal("SHORT")})

	e := s.newEngine(testConfig)

	err := e.Run(context.Background(), backtest.LifecycleCallbacks{})
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeInvalidSignal))
}

func (s *BacktestEngineV1TestSuite) TestUnsortedBarsAreRejected() {
	bars := s.flatBars("BBCA", 4, 100)
	bars[1], bars[2] = bars[2], bars[1]
	s.source.bars["BBCA"] = bars

	e := s.newEngine(testConfig)

	err := e.Run(context.Background(), backtest.LifecycleCallbacks{})
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeDataNotSorted))
}

func (s *BacktestEngineV1TestSuite) TestMaxOpenPositionsRespected() {
	cfg := `
initial_capital: 1000000
risk_per_trade: 0.01
max_position_exposure: 0.2
max_total_exposure: 0.6
max_open_positions: 1
lot_size: 100
commission_rate: 0
slippage_rate: 0
`

	s.source.bars["AAAA"] = s.flatBars("AAAA", 5, 100)
	s.source.bars["BBBB"] = s.flatBars("BBBB", 5, 100)

	band := types.PriceBand{Lower: 200, Upper: 220}
	s.strategy.on("AAAA", 0, buy(10, band))
	s.strategy.on("BBBB", 0, buy(10, band))

	stats := s.run(s.newEngine(cfg))

	// only the first candidate fits under max_open_positions
	s.Equal(1, stats.TradeResult.NumberOfTrades)
}
