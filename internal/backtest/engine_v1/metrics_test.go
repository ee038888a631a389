package engine

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idxquant/swingbt/internal/types"
)

// tenTrades builds 6 winners of +500 and 4 losers of -300.
func tenTrades() []types.TradeRecord {
	day := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	trades := make([]types.TradeRecord, 0, 10)

	for i := 0; i < 10; i++ {
		pnl := 500.0
		if i >= 6 {
			pnl = -300.0
		}

		trades = append(trades, types.TradeRecord{
			Ticker:      "BBCA",
			EntryTime:   day,
			ExitTime:    day.AddDate(0, 0, 4),
			EntryPrice:  100,
			ExitPrice:   100 + pnl/100,
			Quantity:    100,
			PnL:         pnl,
			ExitReason:  types.ExitReasonSignalExit,
			HoldingDays: 4,
			Fees:        10,
		})
	}

	return trades
}

func TestTradeResultTenTrades(t *testing.T) {
	t.Parallel()

	result := computeTradeResult(tenTrades())

	assert.Equal(t, 10, result.NumberOfTrades)
	assert.Equal(t, 6, result.NumberOfWinningTrades)
	assert.Equal(t, 4, result.NumberOfLosingTrades)
	assert.InDelta(t, 0.6, result.WinRate, 1e-9)
	assert.InDelta(t, 3000.0, result.GrossProfit, 1e-9)
	assert.InDelta(t, 1200.0, result.GrossLoss, 1e-9)
	assert.InDelta(t, 2.5, result.ProfitFactor, 1e-9)
	assert.False(t, result.GrossLossZero)
}

func TestTradePnLDistribution(t *testing.T) {
	t.Parallel()

	trades := tenTrades()
	result := computeTradeResult(trades)
	pnl := computeTradePnL(trades, result.WinRate)

	assert.InDelta(t, 1800.0, pnl.TotalPnL, 1e-9)
	assert.InDelta(t, 500.0, pnl.AverageWin, 1e-9)
	assert.InDelta(t, -300.0, pnl.AverageLoss, 1e-9)
	assert.InDelta(t, 500.0, pnl.LargestWin, 1e-9)
	assert.InDelta(t, -300.0, pnl.LargestLoss, 1e-9)
	// 500*0.6 - 300*0.4
	assert.InDelta(t, 180.0, pnl.Expectancy, 1e-9)
}

func TestZeroTradeSentinels(t *testing.T) {
	t.Parallel()

	result := computeTradeResult(nil)

	assert.Zero(t, result.NumberOfTrades)
	assert.Zero(t, result.WinRate)
	assert.Zero(t, result.ProfitFactor)
	assert.True(t, result.GrossLossZero, "profit factor is undefined without losses")

	pnl := computeTradePnL(nil, 0)
	assert.Zero(t, pnl.TotalPnL)
	assert.Zero(t, pnl.Expectancy)

	assert.Zero(t, avgHoldingDays(nil))
}

func TestAllWinnersMarksGrossLossZero(t *testing.T) {
	t.Parallel()

	trades := []types.TradeRecord{{PnL: 100}, {PnL: 50}}
	result := computeTradeResult(trades)

	assert.True(t, result.GrossLossZero)
	assert.InDelta(t, 150.0, result.GrossProfit, 1e-9)
}

func curveFrom(equities ...float64) []types.EquityPoint {
	day := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	curve := make([]types.EquityPoint, len(equities))

	for i, e := range equities {
		curve[i] = types.EquityPoint{Time: day.AddDate(0, 0, i), Equity: e}
	}

	return curve
}

func TestSharpeRatio(t *testing.T) {
	t.Parallel()

	// returns 0.1 and 0.3: mean 0.2, sample stdev 0.1*sqrt(2)
	curve := curveFrom(100, 110, 143)
	expected := math.Sqrt(2) * math.Sqrt(252)

	assert.InDelta(t, expected, sharpeRatio(curve), 1e-9)
}

func TestSharpeRatioDegenerateCurves(t *testing.T) {
	t.Parallel()

	assert.Zero(t, sharpeRatio(nil))
	assert.Zero(t, sharpeRatio(curveFrom(100)))
	assert.Zero(t, sharpeRatio(curveFrom(100, 100, 100)), "no variance yields 0")
}

func TestMonthlyReturns(t *testing.T) {
	t.Parallel()

	curve := []types.EquityPoint{
		{Time: time.Date(2023, 1, 10, 0, 0, 0, 0, time.UTC), Equity: 102},
		{Time: time.Date(2023, 1, 31, 0, 0, 0, 0, time.UTC), Equity: 100},
		{Time: time.Date(2023, 2, 15, 0, 0, 0, 0, time.UTC), Equity: 105},
		{Time: time.Date(2023, 2, 28, 0, 0, 0, 0, time.UTC), Equity: 110},
		{Time: time.Date(2023, 3, 31, 0, 0, 0, 0, time.UTC), Equity: 99},
	}

	// month-end equities 100, 110, 99: +10% then -10%
	monthly := monthlyReturns(curve)

	assert.InDelta(t, 0.0, monthly.AvgMonthlyReturnPct, 1e-9)
	assert.InDelta(t, 10.0, monthly.BestMonthPct, 1e-9)
	assert.InDelta(t, -10.0, monthly.WorstMonthPct, 1e-9)
}

func TestMonthlyReturnsDegenerateCurves(t *testing.T) {
	t.Parallel()

	assert.Zero(t, monthlyReturns(nil))

	// a single sampled month has no month-over-month change
	assert.Zero(t, monthlyReturns(curveFrom(100, 110, 120)))
}

func TestRiskOfRuin(t *testing.T) {
	t.Parallel()

	// winRate 0.6 > 0.5
	assert.Zero(t, riskOfRuin(tenTrades(), 1_000_000))

	// below the minimum sample size
	assert.Zero(t, riskOfRuin(tenTrades()[:5], 1_000_000))

	// 4 winners, 6 losers: winRate 0.4, ruin base (0.6/0.4) > 1 saturates the cap
	trades := tenTrades()
	for i := range trades {
		trades[i].PnL = 500.0
		if i >= 4 {
			trades[i].PnL = -300.0
		}
	}

	assert.InDelta(t, 1.0, riskOfRuin(trades, 1_000_000), 1e-9)
}

func TestRiskOfRuinNoLosers(t *testing.T) {
	t.Parallel()

	trades := tenTrades()
	for i := range trades {
		trades[i].PnL = 500.0
	}

	assert.Zero(t, riskOfRuin(trades, 1_000_000))
}

func TestMaxDrawdownPct(t *testing.T) {
	t.Parallel()

	curve := curveFrom(100, 120, 90, 130, 104)

	// 120 -> 90 is the deepest decline: 25%
	assert.InDelta(t, 25.0, maxDrawdownPct(curve), 1e-9)
	assert.Zero(t, maxDrawdownPct(curveFrom(100, 110, 120)), "monotonic curve has no drawdown")
}

func TestBuildStatsAggregatesAndPerTicker(t *testing.T) {
	t.Parallel()

	trades := tenTrades()
	trades[0].Ticker = "TLKM"

	curve := curveFrom(1_000_000, 1_001_800)

	stats := buildStats("run-1", "swing_crossover", trades, curve, 1_000_000, 2, []string{"GOTO"})

	require.Equal(t, "run-1", stats.ID)
	assert.Equal(t, "swing_crossover", stats.StrategyName)
	assert.InDelta(t, 1_001_800, stats.FinalEquity, 1e-9)
	assert.InDelta(t, 0.18, stats.TotalReturnPct, 1e-9)
	assert.Equal(t, 10, stats.TradeResult.NumberOfTrades)
	assert.Equal(t, 2, stats.OracleFailures)
	assert.Zero(t, stats.RiskOfRuin, "win rate above one half")
	assert.Zero(t, stats.MonthlyReturns, "curve spans a single month")
	assert.Equal(t, []string{"GOTO"}, stats.SkippedTickers)
	assert.Equal(t, curve[0].Time, stats.StartTime)
	assert.Equal(t, curve[1].Time, stats.EndTime)

	require.Len(t, stats.Tickers, 2)
	assert.Equal(t, "BBCA", stats.Tickers[0].Ticker)
	assert.Equal(t, 9, stats.Tickers[0].TradeResult.NumberOfTrades)
	assert.Equal(t, "TLKM", stats.Tickers[1].Ticker)
	assert.Equal(t, 1, stats.Tickers[1].TradeResult.NumberOfTrades)
}

func TestBuildStatsEmptyRun(t *testing.T) {
	t.Parallel()

	stats := buildStats("run-2", "swing_crossover", nil, nil, 1_000_000, 0, nil)

	assert.InDelta(t, 1_000_000, stats.FinalEquity, 1e-9, "no equity points falls back to initial capital")
	assert.Zero(t, stats.TotalReturnPct)
	assert.Zero(t, stats.SharpeRatio)
	assert.Empty(t, stats.Tickers)
}
