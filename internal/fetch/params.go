package fetch

import (
	"errors"
	"fmt"
	"time"

	"StockScreener/internal/model"
)

// Params describes one logical fetch: period granularity and date range.
type Params struct {
	Period model.Period
	Start  time.Time
	End    time.Time
}

// Validate rejects bad input before any network call is made.
func (p Params) Validate(symbol string) error {
	if symbol == "" {
		return model.NewError(model.ErrInvalidParameter, "", errors.New("empty symbol"))
	}
	switch p.Period {
	case model.PeriodDaily, model.PeriodWeekly, model.PeriodMonthly:
	default:
		return model.NewError(model.ErrInvalidParameter, "", fmt.Errorf("unknown period %q", p.Period))
	}
	if !p.Start.IsZero() && !p.End.IsZero() && p.End.Before(p.Start) {
		return model.NewError(model.ErrInvalidParameter, "",
			fmt.Errorf("date range reversed: %s after %s", p.Start.Format("2006-01-02"), p.End.Format("2006-01-02")))
	}
	return nil
}
