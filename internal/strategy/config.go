package strategy

import (
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"

	"github.com/idxquant/swingbt/pkg/errors"
)

// Config holds every tunable of the swing strategy. It is a value object:
// construct it once, validate it, and pass it by value so a running backtest
// can never observe a mutated parameter.
type Config struct {
	// Trend detection.
	FastEMA int `yaml:"fast_ema" json:"fast_ema" validate:"required,gt=0"`
	SlowEMA int `yaml:"slow_ema" json:"slow_ema" validate:"required,gtfield=FastEMA"`

	// Momentum filter.
	RSIPeriod     int     `yaml:"rsi_period" json:"rsi_period" validate:"required,gt=0"`
	RSIOverbought float64 `yaml:"rsi_overbought" json:"rsi_overbought" validate:"required,gt=0,lte=100"`
	RSIWeak       float64 `yaml:"rsi_weak" json:"rsi_weak" validate:"gte=0,ltfield=RSIOverbought"`

	// MACD confirmation.
	MACDFast   int `yaml:"macd_fast" json:"macd_fast" validate:"required,gt=0"`
	MACDSlow   int `yaml:"macd_slow" json:"macd_slow" validate:"required,gtfield=MACDFast"`
	MACDSignal int `yaml:"macd_signal" json:"macd_signal" validate:"required,gt=0"`

	// Stop placement.
	ATRPeriod     int     `yaml:"atr_period" json:"atr_period" validate:"required,gt=0"`
	ATRMultiplier float64 `yaml:"atr_multiplier" json:"atr_multiplier" validate:"required,gt=0"`
	StopLossPct   float64 `yaml:"stop_loss_pct" json:"stop_loss_pct" validate:"required,gt=0,lt=1"`

	// Profit targets.
	TargetProfitMin float64 `yaml:"target_profit_min" json:"target_profit_min" validate:"required,gt=0,lt=1"`
	TargetProfitMax float64 `yaml:"target_profit_max" json:"target_profit_max" validate:"required,gtfield=TargetProfitMin,lt=1"`

	// Volume confirmation.
	VolAvgPeriod       int     `yaml:"vol_avg_period" json:"vol_avg_period" validate:"required,gt=0"`
	VolRatioMin        float64 `yaml:"vol_ratio_min" json:"vol_ratio_min" validate:"required,gt=0"`
	VolumeStrictFilter bool    `yaml:"volume_strict_filter" json:"volume_strict_filter"`

	// Support/resistance scoring.
	SwingLookback int `yaml:"swing_lookback" json:"swing_lookback" validate:"required,gt=1"`

	// Multi-timeframe alignment against weekly candles.
	EnableMTF         bool `yaml:"enable_mtf" json:"enable_mtf"`
	WeeklyFastEMA     int  `yaml:"weekly_fast_ema" json:"weekly_fast_ema" validate:"required,gt=0"`
	WeeklySlowEMA     int  `yaml:"weekly_slow_ema" json:"weekly_slow_ema" validate:"required,gtfield=WeeklyFastEMA"`
	MTFRequiredForBuy bool `yaml:"mtf_required_for_buy" json:"mtf_required_for_buy"`
}

// DefaultConfig returns the parameter set tuned for 3-10 day swings on
// liquid IDX names.
func DefaultConfig() Config {
	return Config{
		FastEMA:            13,
		SlowEMA:            34,
		RSIPeriod:          14,
		RSIOverbought:      75,
		RSIWeak:            40,
		MACDFast:           12,
		MACDSlow:           26,
		MACDSignal:         9,
		ATRPeriod:          14,
		ATRMultiplier:      1.5,
		StopLossPct:        0.03,
		TargetProfitMin:    0.03,
		TargetProfitMax:    0.10,
		VolAvgPeriod:       20,
		VolRatioMin:        1.2,
		VolumeStrictFilter: true,
		SwingLookback:      20,
		EnableMTF:          true,
		WeeklyFastEMA:      10,
		WeeklySlowEMA:      30,
		MTFRequiredForBuy:  true,
	}
}

// Validate checks the config against its struct constraints.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeStrategyConfigError, "invalid strategy config", err)
	}

	return nil
}

// LoadConfig reads a YAML strategy config from path, layered over the
// defaults so partial files only override what they name.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(errors.ErrCodeStrategyConfigError, err, "failed to read strategy config %s", path)
	}

	return ParseConfig(data)
}

// ParseConfig decodes YAML bytes into a Config layered over the defaults.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeStrategyConfigError, "failed to parse strategy config", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Schema returns the JSON schema for Config, used by editor tooling to
// validate config files.
func Schema() *jsonschema.Schema {
	return jsonschema.Reflect(&Config{})
}
