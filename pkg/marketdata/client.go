// Package marketdata downloads historical bars from a vendor and stores them
// as Parquet files that the backtester's data source can read directly.
package marketdata

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/idxquant/swingbt/internal/logger"
	"github.com/idxquant/swingbt/pkg/errors"
	"github.com/idxquant/swingbt/pkg/marketdata/provider"
	"github.com/idxquant/swingbt/pkg/marketdata/writer"
)

// ProviderType defines the type of market data provider.
type ProviderType string

const (
	ProviderPolygon ProviderType = "polygon"
)

// WriterType defines the type of market data writer.
type WriterType string

const (
	WriterDuckDB WriterType = "duckdb"
)

// ClientConfig holds the configuration for the market data client.
type ClientConfig struct {
	ProviderType  ProviderType `validate:"required,oneof=polygon"`
	WriterType    WriterType   `validate:"required,oneof=duckdb"`
	DataPath      string       `validate:"required"`
	PolygonAPIKey string       `validate:"required_if=ProviderType polygon"`
}

// DownloadParams holds the parameters for a single download request.
type DownloadParams struct {
	Ticker    string    `validate:"required"`
	StartDate time.Time `validate:"required"`
	EndDate   time.Time `validate:"required,gtfield=StartDate"`
	Timespan  Timespan  `validate:"required"`
}

// Client downloads bars from a provider and stores them using a writer.
type Client struct {
	provider   provider.Provider
	config     ClientConfig
	validate   *validator.Validate
	onProgress provider.OnDownloadProgress
	log        *logger.Logger
}

// NewClient creates a market data client with the given configuration.
func NewClient(config ClientConfig, log *logger.Logger, onProgress provider.OnDownloadProgress) (*Client, error) {
	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid client configuration", err)
	}

	var marketProvider provider.Provider

	var err error

	switch config.ProviderType {
	case ProviderPolygon:
		marketProvider, err = provider.NewPolygonClient(config.PolygonAPIKey, log)
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidProvider, "unsupported provider type: %s", config.ProviderType)
	}

	return &Client{
		provider:   marketProvider,
		config:     config,
		validate:   validate,
		onProgress: onProgress,
		log:        log,
	}, nil
}

// Download fetches bars per params and writes them under the configured data
// path. Returns the path of the written file.
func (c *Client) Download(ctx context.Context, params DownloadParams) (string, error) {
	if err := c.validate.Struct(params); err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidParameter, "invalid download parameters", err)
	}

	if err := params.Timespan.Validate(); err != nil {
		return "", err
	}

	barWriter, err := c.setupWriter(params)
	if err != nil {
		return "", err
	}

	c.provider.ConfigWriter(barWriter)

	path, err := c.provider.Download(
		ctx,
		params.Ticker,
		params.StartDate,
		params.EndDate,
		params.Timespan.Multiplier(),
		params.Timespan.Timespan(),
		c.onProgress,
	)
	if err != nil {
		return "", err
	}

	return path, nil
}

// OutputPath returns the file path a download with the given parameters will
// produce.
func (c *Client) OutputPath(params DownloadParams) string {
	fileName := fmt.Sprintf("%s_%s_%s_%s.parquet",
		params.Ticker,
		params.StartDate.Format("2006-01-02"),
		params.EndDate.Format("2006-01-02"),
		params.Timespan)

	return filepath.Join(c.config.DataPath, fileName)
}

func (c *Client) setupWriter(params DownloadParams) (writer.BarWriter, error) {
	switch c.config.WriterType {
	case WriterDuckDB:
		if _, err := os.Stat(c.config.DataPath); os.IsNotExist(err) {
			if err := os.MkdirAll(c.config.DataPath, 0o755); err != nil {
				return nil, errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to create data directory", err)
			}
		}

		return writer.NewDuckDBWriter(c.OutputPath(params)), nil
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "unsupported writer type: %s", c.config.WriterType)
	}
}
