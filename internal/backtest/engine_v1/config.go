package engine

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"

	"github.com/idxquant/swingbt/pkg/errors"
)

// Config is the engine configuration. Defaults model a retail IDX account:
// lots of 100 shares, 0.15% commission and 0.2% slippage per fill.
type Config struct {
	// Tickers restricts the simulated universe. Empty means every ticker the
	// datasource has.
	Tickers []string `yaml:"tickers" json:"tickers,omitempty"`

	// StartTime and EndTime bound the simulated period. Nil means unbounded.
	StartTime *time.Time `yaml:"start_time" json:"start_time,omitempty"`
	EndTime   *time.Time `yaml:"end_time" json:"end_time,omitempty"`

	InitialCapital float64 `yaml:"initial_capital" json:"initial_capital" validate:"required,gt=0"`

	// RiskPerTrade is the fraction of equity risked between entry and stop on
	// a full-size entry.
	RiskPerTrade float64 `yaml:"risk_per_trade" json:"risk_per_trade" validate:"required,gt=0,lte=1"`

	// MaxPositionExposure caps a single position's notional as a fraction of
	// equity. Oversized entries are rejected, not clamped.
	MaxPositionExposure float64 `yaml:"max_position_exposure" json:"max_position_exposure" validate:"required,gt=0,lte=1"`

	// MaxTotalExposure caps the summed notional of all open positions as a
	// fraction of equity.
	MaxTotalExposure float64 `yaml:"max_total_exposure" json:"max_total_exposure" validate:"required,gt=0,lte=1"`

	// MaxOpenPositions caps the number of simultaneously open positions.
	MaxOpenPositions int `yaml:"max_open_positions" json:"max_open_positions" validate:"required,gt=0"`

	// LotSize rounds entry quantities down to exchange lots. 1 disables lot
	// rounding.
	LotSize int64 `yaml:"lot_size" json:"lot_size" validate:"required,gt=0"`

	CommissionRate float64 `yaml:"commission_rate" json:"commission_rate" validate:"gte=0,lt=1"`
	SlippageRate   float64 `yaml:"slippage_rate" json:"slippage_rate" validate:"gte=0,lt=1"`
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		InitialCapital:      100_000_000,
		RiskPerTrade:        0.01,
		MaxPositionExposure: 0.20,
		MaxTotalExposure:    0.60,
		MaxOpenPositions:    5,
		LotSize:             100,
		CommissionRate:      0.0015,
		SlippageRate:        0.002,
	}
}

// ParseConfig decodes YAML content into a Config layered over the defaults.
func ParseConfig(content string) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(content), &cfg); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeBacktestConfigError, "failed to parse engine config", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the config against its struct constraints.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeBacktestConfigError, "invalid engine config", err)
	}

	if c.StartTime != nil && c.EndTime != nil && c.EndTime.Before(*c.StartTime) {
		return errors.Newf(errors.ErrCodeBacktestConfigError,
			"end time %s precedes start time %s", c.EndTime.Format(time.RFC3339), c.StartTime.Format(time.RFC3339))
	}

	return nil
}

// ConfigSchema returns the JSON schema for Config as an indented JSON string.
func ConfigSchema() (string, error) {
	schema := jsonschema.Reflect(&Config{})

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeBacktestConfigError, "failed to marshal config schema", err)
	}

	return string(data), nil
}
