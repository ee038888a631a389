package engine

import (
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/idxquant/swingbt/internal/logger"
	"github.com/idxquant/swingbt/internal/types"
	"github.com/idxquant/swingbt/pkg/errors"
)

// Portfolio tracks cash, open positions and the equity curve for one run.
// Cash accounting runs on decimals so that repeated fills cannot accumulate
// float drift; negative cash is an invariant violation, not a margin loan.
//
// At most one position per ticker can be open at a time. The portfolio owns
// the trade ledger: every (partial) close appends exactly one record.
type Portfolio struct {
	initialCapital decimal.Decimal
	cash           decimal.Decimal
	feeRate        decimal.Decimal
	totalFees      decimal.Decimal

	positions map[string]types.Position
	lastMark  map[string]float64

	ledger *Ledger
	curve  []types.EquityPoint
	peak   float64

	log *logger.Logger
}

// NewPortfolio creates a portfolio with the given starting cash. Commission
// and slippage are charged on both legs of every fill.
func NewPortfolio(initialCapital, commissionRate, slippageRate float64, log *logger.Logger) *Portfolio {
	capital := decimal.NewFromFloat(initialCapital)

	return &Portfolio{
		initialCapital: capital,
		cash:           capital,
		feeRate:        decimal.NewFromFloat(commissionRate).Add(decimal.NewFromFloat(slippageRate)),
		totalFees:      decimal.Zero,
		positions:      make(map[string]types.Position),
		lastMark:       make(map[string]float64),
		ledger:         NewLedger(),
		curve:          nil,
		peak:           initialCapital,
		log:            log,
	}
}

// Cash returns the free cash.
func (p *Portfolio) Cash() float64 {
	return p.cash.InexactFloat64()
}

// InitialCapital returns the starting cash.
func (p *Portfolio) InitialCapital() float64 {
	return p.initialCapital.InexactFloat64()
}

// Position returns the open position for ticker, if any.
func (p *Portfolio) Position(ticker string) (types.Position, bool) {
	pos, ok := p.positions[ticker]

	return pos, ok
}

// OpenPositionCount returns the number of open positions.
func (p *Portfolio) OpenPositionCount() int {
	return len(p.positions)
}

// OpenExposure returns the summed mark-to-market notional of all open
// positions, using the most recent close seen for each ticker.
func (p *Portfolio) OpenExposure() float64 {
	total := 0.0
	for ticker, pos := range p.positions {
		total += pos.MarketValue(p.markPrice(ticker, pos))
	}

	return total
}

// Equity returns current equity: cash plus open exposure.
func (p *Portfolio) Equity() float64 {
	return p.Cash() + p.OpenExposure()
}

// TotalFees returns the cumulative commission and slippage charged.
func (p *Portfolio) TotalFees() float64 {
	return p.totalFees.InexactFloat64()
}

// Trades returns a copy of the closed trade records in close order.
func (p *Portfolio) Trades() []types.TradeRecord {
	return p.ledger.Records()
}

// EquityCurve returns a copy of the recorded equity points.
func (p *Portfolio) EquityCurve() []types.EquityPoint {
	out := make([]types.EquityPoint, len(p.curve))
	copy(out, p.curve)

	return out
}

// entryCost returns the cash needed to buy quantity shares at price,
// including commission and slippage. This is the single arithmetic both
// CanAfford and OpenPosition use, so the two can never disagree.
func (p *Portfolio) entryCost(price float64, quantity int64) decimal.Decimal {
	notional := decimal.NewFromFloat(price).Mul(decimal.NewFromInt(quantity))

	return notional.Add(notional.Mul(p.feeRate))
}

// CanAfford reports whether the free cash covers buying quantity shares at
// price, fees included.
func (p *Portfolio) CanAfford(price float64, quantity int64) bool {
	return !p.entryCost(price, quantity).GreaterThan(p.cash)
}

// OpenPosition buys quantity shares of ticker at price, deducting the fill
// cost including commission and slippage. A second open for the same ticker
// is rejected without touching any state.
func (p *Portfolio) OpenPosition(ticker string, t time.Time, price float64, quantity int64, stopPrice float64, takeProfit optional.Option[types.PriceBand], riskAmount float64) error {
	if quantity <= 0 {
		return errors.Newf(errors.ErrCodeInvalidQuantity, "cannot open %s with quantity %d", ticker, quantity)
	}

	if price <= 0 {
		return errors.Newf(errors.ErrCodeInvalidPrice, "cannot open %s at price %.4f", ticker, price)
	}

	if _, exists := p.positions[ticker]; exists {
		return errors.Newf(errors.ErrCodeDuplicatePosition, "position for %s is already open", ticker)
	}

	notional := decimal.NewFromFloat(price).Mul(decimal.NewFromInt(quantity))
	cost := p.entryCost(price, quantity)
	fees := cost.Sub(notional)

	if cost.GreaterThan(p.cash) {
		return errors.Newf(errors.ErrCodeNegativeCash,
			"opening %s costs %s but only %s cash is available", ticker, cost.StringFixed(2), p.cash.StringFixed(2))
	}

	p.cash = p.cash.Sub(cost)
	p.totalFees = p.totalFees.Add(fees)

	p.positions[ticker] = types.Position{
		Ticker:        ticker,
		EntryTime:     t,
		AvgEntryPrice: price,
		Quantity:      quantity,
		StopPrice:     stopPrice,
		TakeProfit:    takeProfit,
		RiskAmount:    riskAmount,
		EntryCost:     cost.InexactFloat64(),
	}
	p.lastMark[ticker] = price

	p.log.Debug("opened position",
		zap.String("ticker", ticker),
		zap.Time("time", t),
		zap.Float64("price", price),
		zap.Int64("quantity", quantity),
		zap.Float64("stop", stopPrice),
	)

	return nil
}

// ReducePosition sells quantity shares of the open position at price and
// appends a trade record for the sold slice. Selling the full quantity
// closes the position.
func (p *Portfolio) ReducePosition(ticker string, t time.Time, price float64, quantity int64, reason types.ExitReason) (types.TradeRecord, error) {
	pos, exists := p.positions[ticker]
	if !exists {
		return types.TradeRecord{}, errors.Newf(errors.ErrCodePositionNotFound, "no open position for %s", ticker)
	}

	if quantity <= 0 || quantity > pos.Quantity {
		return types.TradeRecord{}, errors.Newf(errors.ErrCodeInvalidQuantity,
			"cannot sell %d of %d %s shares", quantity, pos.Quantity, ticker)
	}

	if price <= 0 {
		return types.TradeRecord{}, errors.Newf(errors.ErrCodeInvalidPrice, "cannot close %s at price %.4f", ticker, price)
	}

	gross := decimal.NewFromFloat(price).Mul(decimal.NewFromInt(quantity))
	exitFees := gross.Mul(p.feeRate)
	proceeds := gross.Sub(exitFees)

	// Allocate the entry cost of the sold slice proportionally, so partial
	// exits keep the remaining cost basis exact.
	entryCost := decimal.NewFromFloat(pos.EntryCost)
	allocCost := entryCost.Mul(decimal.NewFromInt(quantity)).Div(decimal.NewFromInt(pos.Quantity))

	pnl := proceeds.Sub(allocCost)

	returnPct := 0.0
	if !allocCost.IsZero() {
		returnPct = pnl.Div(allocCost).InexactFloat64() * 100
	}

	entryNotional := decimal.NewFromFloat(pos.AvgEntryPrice).Mul(decimal.NewFromInt(quantity))
	entryFeesAlloc := entryNotional.Mul(p.feeRate)

	record := types.TradeRecord{
		ID:          uuid.New().String(),
		Ticker:      ticker,
		EntryTime:   pos.EntryTime,
		ExitTime:    t,
		EntryPrice:  pos.AvgEntryPrice,
		ExitPrice:   price,
		Quantity:    quantity,
		PnL:         pnl.InexactFloat64(),
		ReturnPct:   returnPct,
		ExitReason:  reason,
		HoldingDays: int(t.Sub(pos.EntryTime).Hours() / 24),
		Fees:        exitFees.Add(entryFeesAlloc).InexactFloat64(),
	}

	if err := p.ledger.Append(record); err != nil {
		return types.TradeRecord{}, err
	}

	p.cash = p.cash.Add(proceeds)
	p.totalFees = p.totalFees.Add(exitFees)

	if quantity == pos.Quantity {
		delete(p.positions, ticker)
	} else {
		pos.Quantity -= quantity
		pos.EntryCost = entryCost.Sub(allocCost).InexactFloat64()
		p.positions[ticker] = pos
	}

	p.log.Debug("closed position slice",
		zap.String("ticker", ticker),
		zap.Time("time", t),
		zap.Float64("price", price),
		zap.Int64("quantity", quantity),
		zap.String("reason", string(reason)),
		zap.Float64("pnl", record.PnL),
	)

	return record, nil
}

// ClosePosition sells the entire open position at price.
func (p *Portfolio) ClosePosition(ticker string, t time.Time, price float64, reason types.ExitReason) (types.TradeRecord, error) {
	pos, exists := p.positions[ticker]
	if !exists {
		return types.TradeRecord{}, errors.Newf(errors.ErrCodePositionNotFound, "no open position for %s", ticker)
	}

	return p.ReducePosition(ticker, t, price, pos.Quantity, reason)
}

// UpdateMarks refreshes the per-ticker mark prices used by OpenExposure and
// Equity. closes carries the most recent close for every ticker seen so far;
// positions without an entry keep their last known price.
func (p *Portfolio) UpdateMarks(closes map[string]float64) {
	for ticker, close := range closes {
		p.lastMark[ticker] = close
	}
}

// MarkToMarket records one equity point for day t at the given closes.
func (p *Portfolio) MarkToMarket(t time.Time, closes map[string]float64) {
	p.UpdateMarks(closes)

	equity := p.Equity()
	if equity > p.peak {
		p.peak = equity
	}

	drawdownPct := 0.0
	if p.peak > 0 {
		drawdownPct = (p.peak - equity) / p.peak * 100
	}

	p.curve = append(p.curve, types.EquityPoint{
		Time:          t,
		Equity:        equity,
		Cash:          p.Cash(),
		OpenPositions: len(p.positions),
		DrawdownPct:   drawdownPct,
	})
}

func (p *Portfolio) markPrice(ticker string, pos types.Position) float64 {
	if mark, ok := p.lastMark[ticker]; ok {
		return mark
	}

	return pos.AvgEntryPrice
}
