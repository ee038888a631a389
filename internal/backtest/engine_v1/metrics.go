package engine

import (
	"math"
	"sort"
	"time"

	"github.com/idxquant/swingbt/internal/types"
)

// tradingDaysPerYear annualizes daily return statistics.
const tradingDaysPerYear = 252

// minTradesForRuin is the smallest sample the risk-of-ruin estimate accepts.
const minTradesForRuin = 10

// computeTradeResult aggregates win/loss counts and the profit factor over
// closed trades. With no losing trades the profit factor is undefined; the
// GrossLossZero flag marks that instead of storing an infinity.
func computeTradeResult(trades []types.TradeRecord) types.TradeResult {
	result := types.TradeResult{NumberOfTrades: len(trades)}

	for _, trade := range trades {
		switch {
		case trade.PnL > 0:
			result.NumberOfWinningTrades++
			result.GrossProfit += trade.PnL
		case trade.PnL < 0:
			result.NumberOfLosingTrades++
			result.GrossLoss += -trade.PnL
		}
	}

	if result.NumberOfTrades > 0 {
		result.WinRate = float64(result.NumberOfWinningTrades) / float64(result.NumberOfTrades)
	}

	if result.GrossLoss == 0 {
		result.GrossLossZero = true
	} else {
		result.ProfitFactor = result.GrossProfit / result.GrossLoss
	}

	return result
}

// computeTradePnL summarizes the realized pnl distribution.
func computeTradePnL(trades []types.TradeRecord, winRate float64) types.TradePnL {
	pnl := types.TradePnL{}

	var (
		winSum, lossSum float64
		winners, losers int
	)

	for _, trade := range trades {
		pnl.TotalPnL += trade.PnL

		switch {
		case trade.PnL > 0:
			winners++
			winSum += trade.PnL

			if trade.PnL > pnl.LargestWin {
				pnl.LargestWin = trade.PnL
			}
		case trade.PnL < 0:
			losers++
			lossSum += trade.PnL

			if trade.PnL < pnl.LargestLoss {
				pnl.LargestLoss = trade.PnL
			}
		}
	}

	if winners > 0 {
		pnl.AverageWin = winSum / float64(winners)
	}

	if losers > 0 {
		pnl.AverageLoss = lossSum / float64(losers)
	}

	pnl.Expectancy = pnl.AverageWin*winRate + pnl.AverageLoss*(1-winRate)

	return pnl
}

// sharpeRatio computes the annualized Sharpe ratio of the daily equity
// returns: mean / sample stdev, scaled by sqrt(252). Curves too short or
// without variance yield 0.
func sharpeRatio(curve []types.EquityPoint) float64 {
	if len(curve) < 2 {
		return 0
	}

	returns := make([]float64, 0, len(curve)-1)

	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			continue
		}

		returns = append(returns, curve[i].Equity/prev-1)
	}

	if len(returns) < 2 {
		return 0
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}

	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}

	variance /= float64(len(returns) - 1)

	stdev := math.Sqrt(variance)
	if stdev == 0 {
		return 0
	}

	return mean / stdev * math.Sqrt(tradingDaysPerYear)
}

// monthlyReturns resamples the equity curve by calendar month and summarizes
// the percent change between consecutive month-end equities. Fewer than two
// sampled months yield zeros.
func monthlyReturns(curve []types.EquityPoint) types.MonthlyReturns {
	// last equity per (year, month), in curve order
	var (
		monthEnds []float64
		lastKey   int
	)

	for _, point := range curve {
		key := point.Time.Year()*12 + int(point.Time.Month())
		if len(monthEnds) > 0 && key == lastKey {
			monthEnds[len(monthEnds)-1] = point.Equity
		} else {
			monthEnds = append(monthEnds, point.Equity)
			lastKey = key
		}
	}

	if len(monthEnds) < 2 {
		return types.MonthlyReturns{}
	}

	result := types.MonthlyReturns{
		BestMonthPct:  math.Inf(-1),
		WorstMonthPct: math.Inf(1),
	}

	sum := 0.0
	count := 0

	for i := 1; i < len(monthEnds); i++ {
		prev := monthEnds[i-1]
		if prev == 0 {
			continue
		}

		ret := (monthEnds[i]/prev - 1) * 100
		sum += ret
		count++

		result.BestMonthPct = math.Max(result.BestMonthPct, ret)
		result.WorstMonthPct = math.Min(result.WorstMonthPct, ret)
	}

	if count == 0 {
		return types.MonthlyReturns{}
	}

	result.AvgMonthlyReturnPct = sum / float64(count)

	return result
}

// riskOfRuin estimates the probability of losing half the initial capital.
// With the win rate above one half the estimate is 0; at or below one half
// the gambler's-ruin base (1-w)/w is at least 1 and the capped probability
// saturates at 1. Fewer than minTradesForRuin trades, or no losing trades,
// yield 0.
func riskOfRuin(trades []types.TradeRecord, initialCapital float64) float64 {
	if len(trades) < minTradesForRuin {
		return 0
	}

	var (
		winners int
		losers  int
		lossSum float64
	)

	for _, trade := range trades {
		switch {
		case trade.PnL > 0:
			winners++
		case trade.PnL < 0:
			losers++
			lossSum += -trade.PnL
		}
	}

	if losers == 0 {
		return 0
	}

	winRate := float64(winners) / float64(len(trades))
	if winRate > 0.5 {
		return 0
	}

	avgLoss := lossSum / float64(losers)
	tradesToRuin := initialCapital * 0.5 / avgLoss

	return math.Min(math.Pow((1-winRate)/winRate, tradesToRuin), 1)
}

// maxDrawdownPct returns the largest peak-to-trough equity decline in
// percent, in a single forward pass.
func maxDrawdownPct(curve []types.EquityPoint) float64 {
	peak := math.Inf(-1)
	maxDD := 0.0

	for _, point := range curve {
		if point.Equity > peak {
			peak = point.Equity
		}

		if peak > 0 {
			if dd := (peak - point.Equity) / peak * 100; dd > maxDD {
				maxDD = dd
			}
		}
	}

	return maxDD
}

func avgHoldingDays(trades []types.TradeRecord) float64 {
	if len(trades) == 0 {
		return 0
	}

	total := 0
	for _, trade := range trades {
		total += trade.HoldingDays
	}

	return float64(total) / float64(len(trades))
}

func sumFees(trades []types.TradeRecord) float64 {
	total := 0.0
	for _, trade := range trades {
		total += trade.Fees
	}

	return total
}

// computeTickerStats groups trades by ticker and summarizes each group,
// ordered by ticker.
func computeTickerStats(trades []types.TradeRecord) []types.TickerStats {
	byTicker := make(map[string][]types.TradeRecord)
	for _, trade := range trades {
		byTicker[trade.Ticker] = append(byTicker[trade.Ticker], trade)
	}

	tickers := make([]string, 0, len(byTicker))
	for ticker := range byTicker {
		tickers = append(tickers, ticker)
	}

	sort.Strings(tickers)

	stats := make([]types.TickerStats, 0, len(tickers))

	for _, ticker := range tickers {
		group := byTicker[ticker]
		result := computeTradeResult(group)

		stats = append(stats, types.TickerStats{
			Ticker:         ticker,
			TradeResult:    result,
			TradePnL:       computeTradePnL(group, result.WinRate),
			AvgHoldingDays: avgHoldingDays(group),
			TotalFees:      sumFees(group),
		})
	}

	return stats
}

// buildStats assembles the complete run statistics from the ledger and the
// equity curve.
func buildStats(runID, strategyName string, trades []types.TradeRecord, curve []types.EquityPoint, initialCapital float64, oracleFailures int, skippedTickers []string) types.BacktestStats {
	finalEquity := initialCapital

	var startTime, endTime time.Time

	if len(curve) > 0 {
		startTime = curve[0].Time
		endTime = curve[len(curve)-1].Time
		finalEquity = curve[len(curve)-1].Equity
	}

	totalReturnPct := 0.0
	if initialCapital > 0 {
		totalReturnPct = (finalEquity - initialCapital) / initialCapital * 100
	}

	result := computeTradeResult(trades)

	return types.BacktestStats{
		ID:             runID,
		Timestamp:      time.Now().UTC(),
		StrategyName:   strategyName,
		StartTime:      startTime,
		EndTime:        endTime,
		InitialCapital: initialCapital,
		FinalEquity:    finalEquity,
		TotalReturnPct: totalReturnPct,
		SharpeRatio:    sharpeRatio(curve),
		MaxDrawdownPct: maxDrawdownPct(curve),
		MonthlyReturns: monthlyReturns(curve),
		RiskOfRuin:     riskOfRuin(trades, initialCapital),
		TradeResult:    result,
		TradePnL:       computeTradePnL(trades, result.WinRate),
		AvgHoldingDays: avgHoldingDays(trades),
		TotalFees:      sumFees(trades),
		OracleFailures: oracleFailures,
		SkippedTickers: skippedTickers,
		Tickers:        computeTickerStats(trades),
	}
}
