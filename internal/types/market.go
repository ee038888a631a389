package types

import "time"

// Bar is a single daily OHLCV sample for one ticker. Bars for a ticker are
// ordered by Time ascending with no duplicate timestamps; missing trading
// days are simply absent.
type Bar struct {
	Ticker string    `csv:"ticker" yaml:"ticker"`
	Time   time.Time `csv:"time" yaml:"time"`
	Open   float64   `csv:"open" yaml:"open"`
	High   float64   `csv:"high" yaml:"high"`
	Low    float64   `csv:"low" yaml:"low"`
	Close  float64   `csv:"close" yaml:"close"`
	Volume float64   `csv:"volume" yaml:"volume"`
}

// PriceBand is an inclusive price range, used for take-profit targets where
// the strategy produces a minimum and a stretch target.
type PriceBand struct {
	Lower float64 `yaml:"lower"`
	Upper float64 `yaml:"upper"`
}
