package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"

	"github.com/idxquant/swingbt/internal/backtest"
	engine "github.com/idxquant/swingbt/internal/backtest/engine_v1"
	"github.com/idxquant/swingbt/internal/datasource"
	"github.com/idxquant/swingbt/internal/logger"
	"github.com/idxquant/swingbt/internal/strategy"
	"github.com/idxquant/swingbt/internal/types"
)

// backtestAction wires the datasource, strategy and engine together and runs
// a full simulation.
func backtestAction(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	dataPath := cmd.String("data")
	resultsFolder := cmd.String("results")
	strategyConfigPath := cmd.String("strategy-config")

	appLog, err := logger.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer appLog.Sync()

	configBytes, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	strategyConfig := strategy.DefaultConfig()
	if strategyConfigPath != "" {
		strategyConfig, err = strategy.LoadConfig(strategyConfigPath)
		if err != nil {
			return fmt.Errorf("failed to load strategy config: %w", err)
		}
	}

	swing, err := strategy.NewSwingStrategy(strategyConfig)
	if err != nil {
		return fmt.Errorf("failed to create strategy: %w", err)
	}

	source, err := datasource.NewDuckDBDataSource(":memory:", appLog)
	if err != nil {
		return fmt.Errorf("failed to create datasource: %w", err)
	}
	defer source.Close()

	if err := source.Initialize(dataPath); err != nil {
		return fmt.Errorf("failed to initialize datasource: %w", err)
	}

	backtester := engine.NewBacktestEngineV1()

	if err := backtester.Initialize(string(configBytes)); err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}

	if err := backtester.SetDataSource(source); err != nil {
		return err
	}

	if err := backtester.SetStrategy(swing); err != nil {
		return err
	}

	if err := backtester.SetResultsFolder(resultsFolder); err != nil {
		return err
	}

	var bar *progressbar.ProgressBar

	onStart := backtest.OnRunStartCallback(func(runID string, tickers []string, totalDays int) error {
		fmt.Printf("Run %s: %d tickers over %d trading days\n", runID, len(tickers), totalDays)
		bar = progressbar.NewOptions(totalDays,
			progressbar.OptionSetDescription("Backtesting"),
			progressbar.OptionShowCount())

		return nil
	})

	onDay := backtest.OnProcessDayCallback(func(current, total int) error {
		if bar != nil {
			return bar.Set(current)
		}

		return nil
	})

	onEnd := backtest.OnRunEndCallback(func(runID string, stats types.BacktestStats) {
		if bar != nil {
			bar.Finish()
		}

		printSummary(stats)
	})

	return backtester.Run(ctx, backtest.LifecycleCallbacks{
		OnRunStart:   &onStart,
		OnProcessDay: &onDay,
		OnRunEnd:     &onEnd,
	})
}

func printSummary(stats types.BacktestStats) {
	fmt.Println()
	fmt.Printf("Strategy:       %s\n", stats.StrategyName)
	fmt.Printf("Period:         %s to %s\n", stats.StartTime.Format("2006-01-02"), stats.EndTime.Format("2006-01-02"))
	fmt.Printf("Final equity:   %.2f (%.2f%% return)\n", stats.FinalEquity, stats.TotalReturnPct)
	fmt.Printf("Sharpe ratio:   %.2f\n", stats.SharpeRatio)
	fmt.Printf("Max drawdown:   %.2f%%\n", stats.MaxDrawdownPct)
	fmt.Printf("Trades:         %d (win rate %.1f%%)\n", stats.TradeResult.NumberOfTrades, stats.TradeResult.WinRate*100)
	fmt.Printf("Total fees:     %.2f\n", stats.TotalFees)

	if len(stats.SkippedTickers) > 0 {
		fmt.Printf("Skipped:        %v (insufficient history)\n", stats.SkippedTickers)
	}
}

func main() {
	cmd := &cli.Command{
		Name:  "backtest",
		Usage: "Run a swing trading backtest over historical daily bars",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "Path to the backtest YAML config",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "data",
				Aliases:  []string{"d"},
				Usage:    "Path to the bar data file (CSV or Parquet)",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "results",
				Aliases: []string{"r"},
				Usage:   "Directory for results output (trades, equity curve, stats)",
				Value:   "results",
			},
			&cli.StringFlag{
				Name:    "strategy-config",
				Aliases: []string{"s"},
				Usage:   "Path to the strategy YAML config (defaults apply when omitted)",
			},
		},
		Action: backtestAction,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
