package marketdata

import (
	"github.com/polygon-io/client-go/rest/models"

	"github.com/idxquant/swingbt/pkg/errors"
)

// Timespan is the bar resolution requested for a download. The backtester
// consumes daily bars; coarser resolutions are supported for ad hoc use.
type Timespan string

const (
	TimespanOneDay   Timespan = "1d"
	TimespanOneWeek  Timespan = "1w"
	TimespanOneMonth Timespan = "1M"
)

func (t Timespan) Validate() error {
	switch t {
	case TimespanOneDay, TimespanOneWeek, TimespanOneMonth:
		return nil
	default:
		return errors.Newf(errors.ErrCodeInvalidTimespan, "unsupported timespan: %s", t)
	}
}

func (t Timespan) Multiplier() int {
	return 1
}

func (t Timespan) Timespan() models.Timespan {
	switch t {
	case TimespanOneWeek:
		return models.Week
	case TimespanOneMonth:
		return models.Month
	default:
		return models.Day
	}
}
