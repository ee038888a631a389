package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"

	"github.com/idxquant/swingbt/internal/logger"
	"github.com/idxquant/swingbt/pkg/marketdata"
)

// downloadAction fetches daily bars for a ticker and writes them as a Parquet
// file the backtester can read.
func downloadAction(ctx context.Context, cmd *cli.Command) error {
	ticker := cmd.String("ticker")
	startDate := cmd.Timestamp("start")
	endDate := cmd.Timestamp("end")
	timespan := marketdata.Timespan(cmd.String("timespan"))
	dataPath := cmd.String("data")

	appLog, err := logger.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer appLog.Sync()

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(fmt.Sprintf("Downloading %s", ticker)),
		progressbar.OptionShowCount())

	onProgress := func(written int, message string) {
		bar.Add(1)
	}

	client, err := marketdata.NewClient(marketdata.ClientConfig{
		ProviderType:  marketdata.ProviderPolygon,
		WriterType:    marketdata.WriterDuckDB,
		DataPath:      dataPath,
		PolygonAPIKey: os.Getenv("POLYGON_API_KEY"),
	}, appLog, onProgress)
	if err != nil {
		return fmt.Errorf("failed to create market data client: %w", err)
	}

	path, err := client.Download(ctx, marketdata.DownloadParams{
		Ticker:    ticker,
		StartDate: startDate,
		EndDate:   endDate,
		Timespan:  timespan,
	})
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}

	bar.Finish()
	fmt.Printf("\nDownloaded bars to %s\n", path)

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:  "download",
		Usage: "Download historical daily bars",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "ticker",
				Aliases:  []string{"t"},
				Usage:    "Ticker symbol",
				Required: true,
			},
			&cli.TimestampFlag{
				Name:     "start",
				Aliases:  []string{"s"},
				Usage:    "Start date in `YYYY-MM-DD` format",
				Required: true,
				Config: cli.TimestampConfig{
					Layouts: []string{"2006-01-02"},
				},
			},
			&cli.TimestampFlag{
				Name:    "end",
				Aliases: []string{"e"},
				Usage:   "End date in `YYYY-MM-DD` format. Defaults to today.",
				Value:   time.Now(),
				Config: cli.TimestampConfig{
					Layouts: []string{"2006-01-02"},
				},
			},
			&cli.StringFlag{
				Name:  "timespan",
				Usage: fmt.Sprintf("Bar resolution (%s, %s, %s)", marketdata.TimespanOneDay, marketdata.TimespanOneWeek, marketdata.TimespanOneMonth),
				Value: string(marketdata.TimespanOneDay),
			},
			&cli.StringFlag{
				Name:    "data",
				Aliases: []string{"d"},
				Usage:   "Path to the data output directory",
				Value:   "data",
			},
		},
		Action: downloadAction,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
