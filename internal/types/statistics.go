package types

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EquityPoint is one sample of the portfolio equity curve, taken once per
// simulated calendar day after all fills for that day.
type EquityPoint struct {
	Time time.Time `csv:"time" yaml:"time"`
	// Equity is cash plus the mark-to-market value of all open positions.
	Equity float64 `csv:"equity" yaml:"equity"`
	Cash   float64 `csv:"cash" yaml:"cash"`
	// OpenPositions is the number of open positions at the sample time.
	OpenPositions int `csv:"open_positions" yaml:"open_positions"`
	// DrawdownPct is the decline from the running equity peak, in percent.
	DrawdownPct float64 `csv:"drawdown_pct" yaml:"drawdown_pct"`
}

// TradeResult aggregates outcome counts and ratios over a set of closed
// trades.
type TradeResult struct {
	// Count of all closed trade records.
	NumberOfTrades int `yaml:"number_of_trades"`
	// Count of trades with positive pnl.
	NumberOfWinningTrades int `yaml:"number_of_winning_trades"`
	// Count of trades with negative pnl.
	NumberOfLosingTrades int `yaml:"number_of_losing_trades"`
	// WinRate is winning / total, 0 when there are no trades.
	WinRate float64 `yaml:"win_rate"`
	// ProfitFactor is gross profit / |gross loss|. Meaningless when
	// GrossLossZero is set.
	ProfitFactor float64 `yaml:"profit_factor"`
	// GrossLossZero marks a profit factor that would divide by zero; the
	// ratio is undefined (effectively infinite when gross profit > 0).
	GrossLossZero bool    `yaml:"gross_loss_zero"`
	GrossProfit   float64 `yaml:"gross_profit"`
	GrossLoss     float64 `yaml:"gross_loss"`
}

// TradePnL summarizes realized profit-and-loss distribution over closed
// trades.
type TradePnL struct {
	TotalPnL float64 `yaml:"total_pnl"`
	// AverageWin is the mean pnl of winning trades, 0 with no winners.
	AverageWin float64 `yaml:"average_win"`
	// AverageLoss is the mean pnl of losing trades, 0 with no losers.
	AverageLoss float64 `yaml:"average_loss"`
	LargestWin  float64 `yaml:"largest_win"`
	LargestLoss float64 `yaml:"largest_loss"`
	// Expectancy is the expected pnl per trade: avgWin*winRate - |avgLoss|*(1-winRate).
	Expectancy float64 `yaml:"expectancy"`
}

// MonthlyReturns summarizes the equity curve resampled by calendar month:
// the percent change between consecutive month-end equities.
type MonthlyReturns struct {
	// AvgMonthlyReturnPct is the mean month-over-month return in percent.
	AvgMonthlyReturnPct float64 `yaml:"avg_monthly_return_pct"`
	// BestMonthPct is the largest month-over-month return in percent.
	BestMonthPct float64 `yaml:"best_month_pct"`
	// WorstMonthPct is the smallest month-over-month return in percent.
	WorstMonthPct float64 `yaml:"worst_month_pct"`
}

// TickerStats holds the per-ticker slice of the backtest statistics.
type TickerStats struct {
	Ticker      string      `yaml:"ticker"`
	TradeResult TradeResult `yaml:"trade_result"`
	TradePnL    TradePnL    `yaml:"trade_pnl"`
	// AvgHoldingDays is the mean holding period of closed trades in days.
	AvgHoldingDays float64 `yaml:"avg_holding_days"`
	// TotalFees is the commission and slippage paid across all trades.
	TotalFees float64 `yaml:"total_fees"`
}

// BacktestStats is the complete plain-data result of a run, consumed by the
// report builder. No formatting is applied here.
type BacktestStats struct {
	// ID is the unique identifier for this backtest run.
	ID string `yaml:"id"`
	// Timestamp is when this backtest run was executed.
	Timestamp time.Time `yaml:"timestamp"`
	// StrategyName is the name of the evaluated strategy.
	StrategyName string    `yaml:"strategy_name"`
	StartTime    time.Time `yaml:"start_time"`
	EndTime      time.Time `yaml:"end_time"`

	InitialCapital float64 `yaml:"initial_capital"`
	FinalEquity    float64 `yaml:"final_equity"`
	// TotalReturnPct is (final - initial) / initial in percent.
	TotalReturnPct float64 `yaml:"total_return_pct"`
	// SharpeRatio is the annualized ratio of mean to stdev of daily equity
	// returns; 0 when returns have no variance.
	SharpeRatio float64 `yaml:"sharpe_ratio"`
	// MaxDrawdownPct is the largest peak-to-trough equity decline in percent.
	MaxDrawdownPct float64 `yaml:"max_drawdown_pct"`

	MonthlyReturns MonthlyReturns `yaml:"monthly_returns"`
	// RiskOfRuin is the probability of losing half the initial capital,
	// estimated from the realized win rate and average loss. 0 when there are
	// too few trades to estimate.
	RiskOfRuin float64 `yaml:"risk_of_ruin"`

	TradeResult TradeResult `yaml:"trade_result"`
	TradePnL    TradePnL    `yaml:"trade_pnl"`
	// AvgHoldingDays is the mean holding period over all closed trades.
	AvgHoldingDays float64 `yaml:"avg_holding_days"`
	// TotalFees is the total commission and slippage paid.
	TotalFees float64 `yaml:"total_fees"`

	// OracleFailures counts ticker-days where strategy evaluation failed and
	// was treated as WAIT.
	OracleFailures int `yaml:"oracle_failures"`
	// SkippedTickers lists tickers excluded for insufficient history.
	SkippedTickers []string `yaml:"skipped_tickers,omitempty"`

	// Tickers holds the per-ticker breakdown, ordered by ticker.
	Tickers []TickerStats `yaml:"tickers"`
}

// WriteStats serializes the backtest statistics to a YAML file.
func WriteStats(path string, stats BacktestStats) error {
	data, err := yaml.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal backtest stats to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write backtest stats to file: %w", err)
	}

	return nil
}
