package provider

import (
	"context"
	"fmt"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
	"go.uber.org/zap"

	"github.com/idxquant/swingbt/internal/logger"
	"github.com/idxquant/swingbt/internal/types"
	"github.com/idxquant/swingbt/pkg/errors"
	"github.com/idxquant/swingbt/pkg/marketdata/writer"
)

type PolygonClient struct {
	client *polygon.Client
	writer writer.BarWriter
	log    *logger.Logger
}

func NewPolygonClient(apiKey string, log *logger.Logger) (Provider, error) {
	if apiKey == "" {
		return nil, errors.New(errors.ErrCodeInvalidProvider, "polygon api key is required")
	}

	return &PolygonClient{
		client: polygon.New(apiKey),
		log:    log,
	}, nil
}

func (c *PolygonClient) ConfigWriter(w writer.BarWriter) {
	c.writer = w
}

func (c *PolygonClient) Download(ctx context.Context, ticker string, startDate time.Time, endDate time.Time, multiplier int, timespan models.Timespan, onProgress OnDownloadProgress) (path string, err error) {
	if c.writer == nil {
		return "", errors.New(errors.ErrCodeInvalidProvider, "no writer configured, call ConfigWriter first")
	}

	if err = c.writer.Initialize(); err != nil {
		return "", errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to initialize writer", err)
	}

	defer func() {
		if cerr := c.writer.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	//nolint:exhaustruct // third-party struct with many optional fields
	params := models.ListAggsParams{
		Ticker:     ticker,
		Multiplier: multiplier,
		Timespan:   timespan,
		From:       models.Millis(startDate),
		To:         models.Millis(endDate),
	}.WithLimit(50000)

	iter := c.client.ListAggs(ctx, params)

	written := 0

	for iter.Next() {
		agg := iter.Item()

		bar := types.Bar{
			Ticker: ticker,
			Time:   time.Time(agg.Timestamp),
			Open:   agg.Open,
			High:   agg.High,
			Low:    agg.Low,
			Close:  agg.Close,
			Volume: agg.Volume,
		}

		if err = c.writer.Write(bar); err != nil {
			return "", errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to write bar", err)
		}

		written++

		if onProgress != nil {
			onProgress(written, fmt.Sprintf("downloading %s", ticker))
		}
	}

	if iter.Err() != nil {
		return "", errors.Wrap(errors.ErrCodeMarketDataFetchFailed, "error iterating polygon aggregates", iter.Err())
	}

	c.log.Info("download complete", zap.String("ticker", ticker), zap.Int("bars", written))

	outputPath, err := c.writer.Finalize()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to finalize writer", err)
	}

	return outputPath, nil
}
