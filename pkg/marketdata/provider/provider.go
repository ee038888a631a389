package provider

import (
	"context"
	"time"

	"github.com/polygon-io/client-go/rest/models"

	"github.com/idxquant/swingbt/pkg/marketdata/writer"
)

// OnDownloadProgress is invoked as bars are fetched, with the number of bars
// written so far.
type OnDownloadProgress = func(written int, message string)

// Provider downloads historical bars from a market data vendor and hands them
// to a configured writer.
type Provider interface {
	// ConfigWriter sets the destination for downloaded bars. Must be called
	// before Download.
	ConfigWriter(w writer.BarWriter)
	// Download fetches bars for the ticker and date range and writes them via
	// the configured writer. Cancel the context to abort the download.
	Download(ctx context.Context, ticker string, startDate time.Time, endDate time.Time, multiplier int, timespan models.Timespan, onProgress OnDownloadProgress) (path string, err error)
}
