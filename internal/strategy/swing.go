package strategy

import (
	"fmt"
	"math"

	"github.com/moznion/go-optional"

	"github.com/idxquant/swingbt/internal/indicator"
	"github.com/idxquant/swingbt/internal/types"
	"github.com/idxquant/swingbt/pkg/errors"
)

// baseTrend classifies the daily setup before multi-timeframe context is
// applied.
type baseTrend int

const (
	trendBuySetup baseTrend = iota
	trendFilteredSetup
	trendUptrend
	trendDowntrend
)

// SwingStrategy is an EMA golden-cross swing strategy with RSI, MACD and
// volume confirmation, ATR-based stops and weekly trend alignment. It scores
// each ticker-day and maps the score onto the signal set.
type SwingStrategy struct {
	cfg Config

	emaFast    *indicator.EMA
	emaSlow    *indicator.EMA
	rsi        *indicator.RSI
	macd       *indicator.MACD
	atr        *indicator.ATR
	volAvg     *indicator.SMA
	weeklyFast *indicator.EMA
	weeklySlow *indicator.EMA
}

// NewSwingStrategy builds a swing strategy from a validated config.
func NewSwingStrategy(cfg Config) (*SwingStrategy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	emaFast, err := indicator.NewEMA(cfg.FastEMA)
	if err != nil {
		return nil, err
	}

	emaSlow, err := indicator.NewEMA(cfg.SlowEMA)
	if err != nil {
		return nil, err
	}

	rsi, err := indicator.NewRSI(cfg.RSIPeriod)
	if err != nil {
		return nil, err
	}

	macd, err := indicator.NewMACD(cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal)
	if err != nil {
		return nil, err
	}

	atr, err := indicator.NewATR(cfg.ATRPeriod)
	if err != nil {
		return nil, err
	}

	volAvg, err := indicator.NewSMA(cfg.VolAvgPeriod)
	if err != nil {
		return nil, err
	}

	weeklyFast, err := indicator.NewEMA(cfg.WeeklyFastEMA)
	if err != nil {
		return nil, err
	}

	weeklySlow, err := indicator.NewEMA(cfg.WeeklySlowEMA)
	if err != nil {
		return nil, err
	}

	return &SwingStrategy{
		cfg:        cfg,
		emaFast:    emaFast,
		emaSlow:    emaSlow,
		rsi:        rsi,
		macd:       macd,
		atr:        atr,
		volAvg:     volAvg,
		weeklyFast: weeklyFast,
		weeklySlow: weeklySlow,
	}, nil
}

// Name implements Strategy.
func (s *SwingStrategy) Name() string {
	return "swing_crossover"
}

// MinBars implements Strategy. The binding warm-ups are the slow EMA, the
// MACD signal line and the ATR window.
func (s *SwingStrategy) MinBars() int {
	minBars := s.cfg.SlowEMA
	if v := s.cfg.MACDSlow + s.cfg.MACDSignal; v > minBars {
		minBars = v
	}

	if s.cfg.ATRPeriod > minBars {
		minBars = s.cfg.ATRPeriod
	}

	return minBars
}

// Evaluate implements Strategy. It only reads the bars it is given, so the
// advice for day t can never depend on data after t.
func (s *SwingStrategy) Evaluate(ticker string, bars []types.Bar) (types.Advice, error) {
	if len(bars) < s.MinBars() || len(bars) < 2 {
		return types.Advice{Ticker: ticker, Signal: types.SignalWait}, nil
	}

	last := len(bars) - 1
	prev := last - 1

	price := bars[last].Close
	if price <= 0 {
		return types.Advice{}, errors.Newf(errors.ErrCodeStrategyEvaluation,
			"non-positive close %.4f for %s at %s", price, ticker, bars[last].Time.Format("2006-01-02"))
	}

	closes := make([]float64, len(bars))
	volumes := make([]float64, len(bars))

	for i, bar := range bars {
		closes[i] = bar.Close
		volumes[i] = bar.Volume
	}

	emaFast := s.emaFast.Compute(closes)
	emaSlow := s.emaSlow.Compute(closes)
	rsi := s.rsi.Compute(closes)
	macd := s.macd.Compute(closes)
	atr := s.atr.Compute(bars)
	volAvg := s.volAvg.Compute(volumes)

	volRatio := 0.0
	if indicator.IsWarm(volAvg, last) && volAvg[last] > 0 {
		volRatio = volumes[last] / volAvg[last]
	}

	crossover := emaFast[last] > emaSlow[last] && emaFast[prev] <= emaSlow[prev]

	var (
		trend   baseTrend
		reasons []string
	)

	switch {
	case crossover:
		trend = trendBuySetup

		if rsi[last] > s.cfg.RSIOverbought {
			trend = trendFilteredSetup

			reasons = append(reasons, "overbought RSI")
		} else if rsi[last] < s.cfg.RSIWeak {
			trend = trendFilteredSetup

			reasons = append(reasons, "weak RSI")
		}

		if macd.MACD[last] < macd.Signal[last] {
			trend = trendFilteredSetup

			reasons = append(reasons, "bearish MACD")
		}

		if s.cfg.VolumeStrictFilter && volRatio < s.cfg.VolRatioMin {
			trend = trendFilteredSetup

			reasons = append(reasons, fmt.Sprintf("low volume (%.1fx)", volRatio))
		}
	case emaFast[last] > emaSlow[last]:
		trend = trendUptrend
	default:
		trend = trendDowntrend
	}

	weeklyAligned := s.weeklyAligned(bars)

	buyable := trend == trendBuySetup
	if buyable && s.cfg.EnableMTF && s.cfg.MTFRequiredForBuy && !weeklyAligned {
		buyable = false

		reasons = append(reasons, "weekly trend misaligned")
	}

	score := s.score(trend, buyable, weeklyAligned, rsi[last], volRatio, priceVsEMAPct(price, emaSlow[last]), s.srScore(bars, price))

	advice := types.Advice{
		Ticker:  ticker,
		Time:    bars[last].Time,
		Signal:  signalForScore(score),
		Score:   float64(score),
		Close:   price,
		Reasons: reasons,
	}

	if trend != trendDowntrend {
		stop, band := s.riskLevels(price, atr[last])
		advice.StopDistance = price - stop
		advice.TakeProfit = optional.Some(band)
	}

	return advice, nil
}

// riskLevels derives the stop price and take-profit band for an entry at
// price. The ATR stop falls back to a fixed percentage when the ATR is not
// usable.
func (s *SwingStrategy) riskLevels(price, atrValue float64) (float64, types.PriceBand) {
	stop := price - atrValue*s.cfg.ATRMultiplier
	if math.IsNaN(stop) || stop >= price {
		stop = price * (1 - s.cfg.StopLossPct)
	}

	band := types.PriceBand{
		Lower: price * (1 + s.cfg.TargetProfitMin),
		Upper: price * (1 + s.cfg.TargetProfitMax),
	}

	return stop, band
}

// weeklyAligned reports whether the weekly fast EMA sits above the weekly
// slow EMA. Too little weekly history counts as aligned so that young
// listings are not permanently blocked.
func (s *SwingStrategy) weeklyAligned(bars []types.Bar) bool {
	if !s.cfg.EnableMTF {
		return true
	}

	weekly := resampleWeekly(bars)
	if len(weekly) < s.cfg.WeeklySlowEMA+5 {
		return true
	}

	closes := make([]float64, len(weekly))
	for i, bar := range weekly {
		closes[i] = bar.Close
	}

	fast := s.weeklyFast.Compute(closes)
	slow := s.weeklySlow.Compute(closes)
	last := len(weekly) - 1

	return fast[last] > slow[last]
}

// score combines the daily setup, weekly alignment, momentum, volume and
// support/resistance context into a single conviction score.
func (s *SwingStrategy) score(trend baseTrend, buyable, weeklyAligned bool, rsiValue, volRatio, priceVsEMA float64, srScore int) int {
	score := 0

	switch {
	case buyable:
		score += 3
		if weeklyAligned {
			// fully confirmed setup
			score += 2
		} else {
			score--
		}
	case trend == trendUptrend:
		score++
	case trend == trendDowntrend:
		score -= 2
	}

	if weeklyAligned {
		score++
	} else {
		score--
	}

	// Market regime filter is scored as permanently risk-on: the engine has
	// no index series to derive a regime from.
	score++

	switch {
	case rsiValue < 30:
		score += 2
	case rsiValue < 40:
		score++
	case rsiValue > 80:
		score -= 2
	case rsiValue > 70:
		score--
	}

	switch {
	case volRatio > 1.5:
		score++
	case volRatio < 0.5:
		score--
	}

	switch {
	case priceVsEMA < -5:
		score++
	case priceVsEMA > 10:
		score--
	}

	return score + srScore
}

// srScore scores the current price against pivot-point and swing
// support/resistance levels.
func (s *SwingStrategy) srScore(bars []types.Bar, price float64) int {
	last := len(bars) - 1
	if last < 1 {
		return 0
	}

	pivots := indicator.PivotPoints(bars[last-1])

	swing, ok := indicator.Swing(bars, last, s.cfg.SwingLookback)
	if !ok {
		return 0
	}

	supports := []float64{pivots.S1, pivots.S2, swing.Low}
	resistances := []float64{pivots.R1, pivots.R2, swing.High}

	nearestSupport := nearestBelow(supports, price)
	nearestResistance := nearestAbove(resistances, price)

	supportDistPct := (price - nearestSupport) / price * 100
	resistanceDistPct := (nearestResistance - price) / price * 100

	score := 0

	switch {
	case supportDistPct < 2:
		score += 2
	case supportDistPct < 5:
		score++
	case resistanceDistPct < 2:
		score -= 2
	case resistanceDistPct < 5:
		score--
	}

	riskReward := 0.0
	if supportDistPct > 0 {
		riskReward = resistanceDistPct / supportDistPct
	}

	switch {
	case riskReward > 2:
		score++
	case riskReward < 0.5:
		score--
	}

	return score
}

// nearestBelow returns the highest level under price, or the lowest level
// overall when price sits below all of them.
func nearestBelow(levels []float64, price float64) float64 {
	best := math.Inf(1)
	lowest := math.Inf(1)

	found := false

	for _, level := range levels {
		lowest = math.Min(lowest, level)

		if level < price {
			if !found || level > best {
				best = level
				found = true
			}
		}
	}

	if !found {
		return lowest
	}

	return best
}

// nearestAbove returns the lowest level over price, or the highest level
// overall when price sits above all of them.
func nearestAbove(levels []float64, price float64) float64 {
	best := math.Inf(-1)
	highest := math.Inf(-1)

	found := false

	for _, level := range levels {
		highest = math.Max(highest, level)

		if level > price {
			if !found || level < best {
				best = level
				found = true
			}
		}
	}

	if !found {
		return highest
	}

	return best
}

func priceVsEMAPct(price, ema float64) float64 {
	if ema <= 0 {
		return 0
	}

	return (price - ema) / ema * 100
}

func signalForScore(score int) types.Signal {
	switch {
	case score >= 5:
		return types.SignalBuyStrong
	case score >= 3:
		return types.SignalBuyWeak
	case score >= 0:
		return types.SignalHold
	case score >= -2:
		return types.SignalSellPartial
	default:
		return types.SignalSellAll
	}
}
