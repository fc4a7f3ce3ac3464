package fetch

import (
	"context"
	"time"

	"StockScreener/internal/model"
)

// MockProvider returns controllable fixed data for development and tests.
type MockProvider struct {
	// Series overrides the generated bars per symbol.
	Series map[string]*model.PriceSeries
	// Err, when set, is returned for every fetch.
	Err error
	// BasePrice seeds the generated series when no override exists.
	BasePrice float64
	// BarCount is the generated series length (default 120).
	BarCount int
}

// NewMockProvider creates a mock with a mildly trending synthetic series.
func NewMockProvider() *MockProvider {
	return &MockProvider{BasePrice: 50, BarCount: 120}
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) Fetch(_ context.Context, symbol string, p Params) (*model.PriceSeries, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if s, ok := m.Series[symbol]; ok {
		return s, nil
	}
	return GenerateSeries(symbol, p.Period, m.BasePrice, m.BarCount), nil
}

// GenerateSeries builds a deterministic synthetic series: a gentle ramp
// around the base price, one bar per period step.
func GenerateSeries(symbol string, period model.Period, basePrice float64, count int) *model.PriceSeries {
	if count <= 0 {
		count = 120
	}
	step := 7 * 24 * time.Hour
	switch period {
	case model.PeriodDaily:
		step = 24 * time.Hour
	case model.PeriodMonthly:
		step = 30 * 24 * time.Hour
	}

	origin := time.Date(2020, 1, 3, 0, 0, 0, 0, time.UTC)
	series := &model.PriceSeries{Symbol: symbol, Period: period, FetchedAt: origin}
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001)
		series.Bars = append(series.Bars, model.PriceBar{
			Date:   origin.Add(time.Duration(i) * step),
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1_000_000,
		})
	}
	return series
}
