package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"

	"github.com/idxquant/swingbt/pkg/errors"
)

// ExitReason identifies why a position (or part of one) was closed.
type ExitReason string

const (
	ExitReasonStopLoss    ExitReason = "STOP_LOSS"
	ExitReasonTakeProfit  ExitReason = "TAKE_PROFIT"
	ExitReasonSignalExit  ExitReason = "SIGNAL_EXIT"
	ExitReasonEndOfPeriod ExitReason = "END_OF_PERIOD"
)

// Position represents an open holding for one ticker. Positions are owned
// exclusively by the Portfolio while open and are mutated only through
// Portfolio methods.
type Position struct {
	Ticker string `csv:"ticker" yaml:"ticker"`
	// EntryTime is the time of the first fill for this position.
	EntryTime time.Time `csv:"entry_time" yaml:"entry_time"`
	// AvgEntryPrice is the weighted-average fill price per share, excluding
	// commission and slippage. It stays consistent across partial reductions.
	AvgEntryPrice float64 `csv:"avg_entry_price" yaml:"avg_entry_price"`
	// Quantity is the number of shares currently held. Always > 0 for an
	// open position; fractional shares are not modeled.
	Quantity int64 `csv:"quantity" yaml:"quantity"`
	// StopPrice is the stop-loss trigger price.
	StopPrice float64 `csv:"stop_price" yaml:"stop_price"`
	// TakeProfit is the take-profit band, when the entry setup produced one.
	TakeProfit optional.Option[PriceBand] `csv:"-" yaml:"take_profit"`
	// RiskAmount is the currency amount committed as risk at entry.
	RiskAmount float64 `csv:"risk_amount" yaml:"risk_amount"`
	// EntryCost is the total cash deducted for the currently held quantity,
	// including commission and slippage.
	EntryCost float64 `csv:"entry_cost" yaml:"entry_cost"`
}

// MarketValue returns the mark-to-market value of the position at the given
// price.
func (p *Position) MarketValue(price float64) float64 {
	return float64(p.Quantity) * price
}

// TradeRecord is the immutable closed-position projection appended to the
// trade ledger. A partial exit produces its own record for the sold slice.
type TradeRecord struct {
	ID         string     `csv:"id" yaml:"id" validate:"required,uuid"`
	Ticker     string     `csv:"ticker" yaml:"ticker" validate:"required"`
	EntryTime  time.Time  `csv:"entry_time" yaml:"entry_time" validate:"required"`
	ExitTime   time.Time  `csv:"exit_time" yaml:"exit_time" validate:"required"`
	EntryPrice float64    `csv:"entry_price" yaml:"entry_price" validate:"required,gt=0"`
	ExitPrice  float64    `csv:"exit_price" yaml:"exit_price" validate:"required,gt=0"`
	Quantity   int64      `csv:"quantity" yaml:"quantity" validate:"required,gt=0"`
	PnL        float64    `csv:"pnl" yaml:"pnl"`
	ReturnPct  float64    `csv:"return_pct" yaml:"return_pct"`
	ExitReason ExitReason `csv:"exit_reason" yaml:"exit_reason" validate:"required,oneof=STOP_LOSS TAKE_PROFIT SIGNAL_EXIT END_OF_PERIOD"`
	// HoldingDays is the holding period in calendar days.
	HoldingDays int `csv:"holding_days" yaml:"holding_days" validate:"gte=0"`
	// Fees is the total commission and slippage charged on both legs of this
	// record's quantity.
	Fees float64 `csv:"fees" yaml:"fees" validate:"gte=0"`
}

// Validate checks the trade record invariants.
func (t *TradeRecord) Validate() error {
	validate := validator.New()
	if err := validate.Struct(t); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidTradeRecord, "invalid trade record", err)
	}

	if t.ExitTime.Before(t.EntryTime) {
		return errors.Newf(errors.ErrCodeInvalidTradeRecord,
			"exit time %s precedes entry time %s", t.ExitTime, t.EntryTime)
	}

	return nil
}
