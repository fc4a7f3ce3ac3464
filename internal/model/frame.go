package model

import "math"

// IndicatorFrame holds derived indicator columns aligned index-for-index
// with the source PriceSeries. Positions before an indicator's warm-up
// window hold NaN. The frame is read-only after computation.
type IndicatorFrame struct {
	Symbol  string
	Close   []float64
	DIF     []float64
	DEA     []float64
	MACDBar []float64
	MA20    []float64
	MA55    []float64
}

// Len returns the number of rows in the frame.
func (f *IndicatorFrame) Len() int { return len(f.Close) }

// DefinedAt reports whether every indicator column has a value at index i.
func (f *IndicatorFrame) DefinedAt(i int) bool {
	if i < 0 || i >= f.Len() {
		return false
	}
	return !math.IsNaN(f.Close[i]) && !math.IsNaN(f.DIF[i]) && !math.IsNaN(f.DEA[i]) &&
		!math.IsNaN(f.MACDBar[i]) && !math.IsNaN(f.MA20[i]) && !math.IsNaN(f.MA55[i])
}
