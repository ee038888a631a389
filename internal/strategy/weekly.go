package strategy

import (
	"time"

	"github.com/idxquant/swingbt/internal/types"
)

// weekEnd returns the Friday that closes the trading week containing t.
// Saturday and Sunday bars roll forward into the next week.
func weekEnd(t time.Time) time.Time {
	days := (int(time.Friday) - int(t.Weekday()) + 7) % 7

	end := t.AddDate(0, 0, days)

	return time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
}

// resampleWeekly aggregates ascending daily bars into weekly candles ending
// on Friday: first open, max high, min low, last close, summed volume.
func resampleWeekly(daily []types.Bar) []types.Bar {
	if len(daily) == 0 {
		return nil
	}

	var weekly []types.Bar

	for _, bar := range daily {
		end := weekEnd(bar.Time)

		if len(weekly) == 0 || !weekly[len(weekly)-1].Time.Equal(end) {
			weekly = append(weekly, types.Bar{
				Ticker: bar.Ticker,
				Time:   end,
				Open:   bar.Open,
				High:   bar.High,
				Low:    bar.Low,
				Close:  bar.Close,
				Volume: bar.Volume,
			})

			continue
		}

		current := &weekly[len(weekly)-1]
		if bar.High > current.High {
			current.High = bar.High
		}

		if bar.Low < current.Low {
			current.Low = bar.Low
		}

		current.Close = bar.Close
		current.Volume += bar.Volume
	}

	return weekly
}
