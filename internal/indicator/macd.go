package indicator

import (
	"errors"
	"fmt"
	"math"

	"StockScreener/internal/model"
)

// Config holds the indicator periods. Zero values fall back to the
// conventional defaults via Default.
type Config struct {
	MACDFast   int `yaml:"macd_fast"`
	MACDSlow   int `yaml:"macd_slow"`
	MACDSignal int `yaml:"macd_signal"`
	MAShort    int `yaml:"ma_short"`
	MALong     int `yaml:"ma_long"`
}

// Default returns the standard parameter set: MACD(12,26,9), MA20, MA55.
func Default() Config {
	return Config{MACDFast: 12, MACDSlow: 26, MACDSignal: 9, MAShort: 20, MALong: 55}
}

// WarmUp returns the minimum series length needed before the last bar of
// the frame is fully defined.
func (c Config) WarmUp() int {
	macd := c.MACDSlow + c.MACDSignal - 1
	if c.MALong > macd {
		return c.MALong
	}
	return macd
}

func (c Config) validate() error {
	if c.MACDFast <= 0 || c.MACDSlow <= 0 || c.MACDSignal <= 0 || c.MAShort <= 0 || c.MALong <= 0 {
		return errors.New("indicator periods must be positive")
	}
	if c.MACDFast >= c.MACDSlow {
		return errors.New("macd fast period must be shorter than slow period")
	}
	return nil
}

// Compute derives the full indicator frame for a price series. It is pure
// and deterministic. Fails with an invalid_parameter error when the series
// is shorter than the longest warm-up window, so callers never see a
// misleadingly stable curve computed on insufficient history.
func Compute(series *model.PriceSeries, cfg Config) (*model.IndicatorFrame, error) {
	if err := cfg.validate(); err != nil {
		return nil, model.NewError(model.ErrInvalidParameter, "", err)
	}
	if series.Len() < cfg.WarmUp() {
		return nil, model.NewError(model.ErrInvalidParameter, "",
			fmt.Errorf("series %s has %d bars, need at least %d", series.Symbol, series.Len(), cfg.WarmUp()))
	}

	closes := series.Closes()
	emaFast := EMA(closes, cfg.MACDFast)
	emaSlow := EMA(closes, cfg.MACDSlow)

	n := len(closes)
	dif := make([]float64, n)
	for i := 0; i < n; i++ {
		dif[i] = emaFast[i] - emaSlow[i] // NaN propagates through the warm-up
	}
	dea := EMA(dif, cfg.MACDSignal)

	bar := make([]float64, n)
	for i := 0; i < n; i++ {
		bar[i] = 2 * (dif[i] - dea[i])
	}

	frame := &model.IndicatorFrame{
		Symbol:  series.Symbol,
		Close:   closes,
		DIF:     dif,
		DEA:     dea,
		MACDBar: bar,
		MA20:    SMA(closes, cfg.MAShort),
		MA55:    SMA(closes, cfg.MALong),
	}

	if last := frame.Len() - 1; !frame.DefinedAt(last) && !hasNaN(closes) {
		// Should be unreachable given the length check above.
		return nil, model.NewError(model.ErrInvalidParameter, "",
			fmt.Errorf("series %s: last bar undefined after warm-up", series.Symbol))
	}
	return frame, nil
}

func hasNaN(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
