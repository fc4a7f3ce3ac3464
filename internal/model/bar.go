package model

import (
	"fmt"
	"sort"
	"time"
)

// Period is the bar granularity of a price series.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

// ParsePeriod validates a period name from configuration.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case PeriodDaily, PeriodWeekly, PeriodMonthly:
		return Period(s), nil
	}
	return "", fmt.Errorf("unknown period %q", s)
}

// PriceBar represents a single candlestick bar. Numeric fields that could
// not be parsed from the provider response hold NaN, never a fabricated zero.
type PriceBar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// PriceSeries holds the ordered price history of one symbol at one period
// granularity. Bars are sorted by ascending date with no duplicates once
// Normalize has run; the series is treated as immutable afterwards.
type PriceSeries struct {
	Symbol    string
	Period    Period
	Bars      []PriceBar
	FetchedAt time.Time
}

// Len returns the number of bars.
func (s *PriceSeries) Len() int { return len(s.Bars) }

// Closes extracts the close column.
func (s *PriceSeries) Closes() []float64 {
	closes := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		closes[i] = b.Close
	}
	return closes
}

// Normalize sorts bars by date and drops duplicate dates, keeping the last
// occurrence. Providers call this before handing a series to the caller.
func (s *PriceSeries) Normalize() {
	sort.SliceStable(s.Bars, func(i, j int) bool { return s.Bars[i].Date.Before(s.Bars[j].Date) })
	deduped := s.Bars[:0]
	for _, b := range s.Bars {
		if n := len(deduped); n > 0 && deduped[n-1].Date.Equal(b.Date) {
			deduped[n-1] = b
			continue
		}
		deduped = append(deduped, b)
	}
	s.Bars = deduped
}

// Validate checks the series invariant: strictly increasing dates.
func (s *PriceSeries) Validate() error {
	for i := 1; i < len(s.Bars); i++ {
		if !s.Bars[i-1].Date.Before(s.Bars[i].Date) {
			return fmt.Errorf("series %s: bars not strictly increasing at index %d", s.Symbol, i)
		}
	}
	return nil
}
