package engine

import (
	"math"
)

// PositionSizer converts a risk budget into a whole-share order quantity and
// enforces the exposure caps. Every cap is a hard reject: a request that does
// not fit is dropped entirely rather than scaled down. Affordability against
// free cash is the Portfolio's check, not the sizer's, so the fee arithmetic
// has exactly one home.
type PositionSizer struct {
	// LotSize rounds quantities down to exchange lots; 1 disables rounding.
	LotSize int64
	// MaxPositionExposure caps one position's notional as a fraction of equity.
	MaxPositionExposure float64
	// MaxTotalExposure caps the total open notional as a fraction of equity.
	MaxTotalExposure float64
}

// SizeRequest carries the portfolio context for one sizing decision.
type SizeRequest struct {
	// Equity is current portfolio equity (cash + open positions at mark).
	Equity float64
	// RiskFraction is the fraction of equity to risk between entry and stop.
	RiskFraction float64
	// EntryPrice is the intended fill price.
	EntryPrice float64
	// StopDistance is the distance between entry and stop price.
	StopDistance float64
	// OpenExposure is the mark-to-market notional of all open positions.
	OpenExposure float64
}

// Size returns the quantity for the request and whether the entry is viable.
// A false return means the entry is skipped; it is a normal decision, not an
// error.
func (s PositionSizer) Size(req SizeRequest) (int64, bool) {
	if req.Equity <= 0 || req.EntryPrice <= 0 || req.RiskFraction <= 0 {
		return 0, false
	}

	// A stop at or below zero cannot bound the loss.
	if req.StopDistance <= 0 || req.StopDistance >= req.EntryPrice {
		return 0, false
	}

	riskAmount := req.Equity * req.RiskFraction
	quantity := int64(math.Floor(riskAmount / req.StopDistance))

	if s.LotSize > 1 {
		quantity = quantity / s.LotSize * s.LotSize
	}

	if quantity <= 0 {
		return 0, false
	}

	notional := float64(quantity) * req.EntryPrice

	if notional > req.Equity*s.MaxPositionExposure {
		return 0, false
	}

	if (req.OpenExposure+notional)/req.Equity > s.MaxTotalExposure {
		return 0, false
	}

	return quantity, true
}
