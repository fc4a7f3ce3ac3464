package filter

import (
	"math"

	"StockScreener/internal/model"
)

// Rejection reasons, in predicate evaluation order. The first failing
// predicate becomes the reason, so identical inputs always reject for the
// same cause.
const (
	ReasonWarmup      = "indicator_warmup"
	ReasonMADeviation = "ma_deviation"
	ReasonDEAPeak     = "dea_peak"
	ReasonPullback    = "dea_pullback"
	ReasonDEAZeroBand = "dea_zero_band"
	ReasonMACDCross   = "macd_cross"
)

// Signal labels attached to the snapshot.
const (
	SignalGoldenCross  = "golden_cross"
	SignalBarShrinking = "bar_shrinking"
	SignalPendingCross = "pending_cross"
)

// Evaluation is the outcome of running the predicates over one frame.
type Evaluation struct {
	Verdict  model.Verdict
	Reason   string // empty when accepted
	Snapshot model.Snapshot
}

// Engine evaluates the pullback-then-breakout predicates against an
// indicator frame. Stateless; safe for concurrent use.
type Engine struct {
	Profile Profile
	// GoldenOnly requires DIF to already sit above DEA at the evaluation
	// bar; otherwise a shrinking MACD bar also satisfies the reversal
	// predicate.
	GoldenOnly bool
}

// Evaluate runs the predicates at the most recent fully-computed bar.
// Deterministic: the same frame and profile always yield the same verdict
// and reason.
func (e Engine) Evaluate(frame *model.IndicatorFrame) Evaluation {
	last := frame.Len() - 1
	if !frame.DefinedAt(last) {
		return Evaluation{Verdict: model.VerdictRejected, Reason: ReasonWarmup}
	}

	price := frame.Close[last]
	ma55 := frame.MA55[last]
	dif := frame.DIF[last]
	dea := frame.DEA[last]
	bar := frame.MACDBar[last]
	peak := peakDEA(frame.DEA, last, e.Profile.LookbackBars)

	snap := model.Snapshot{
		Close:     price,
		MA55:      ma55,
		Deviation: (price - ma55) / ma55,
		DIF:       dif,
		DEA:       dea,
		MACDBar:   bar,
		PeakDEA:   peak,
		Signal:    e.signal(frame, last),
	}
	reject := func(reason string) Evaluation {
		return Evaluation{Verdict: model.VerdictRejected, Reason: reason, Snapshot: snap}
	}

	// 1. Price sits near its MA55 support.
	if !e.Profile.MADeviation.Contains(snap.Deviation) {
		return reject(ReasonMADeviation)
	}

	// 2. Evidence of a prior strong uptrend: historical DEA peak.
	if peak <= e.Profile.DEAPeakThreshold {
		return reject(ReasonDEAPeak)
	}

	// 3. Sufficient pullback from that peak.
	if dea >= e.Profile.PullbackRatio*peak {
		return reject(ReasonPullback)
	}

	// 4. Stabilization near the zero axis.
	if !e.Profile.DEAZero.Contains(dea) {
		return reject(ReasonDEAZeroBand)
	}

	// 5. Early reversal: a recent DIF/DEA cross, or the bar shrinking.
	if !e.reversal(frame, last) {
		return reject(ReasonMACDCross)
	}

	return Evaluation{Verdict: model.VerdictAccepted, Snapshot: snap}
}

// reversal implements the final predicate: DIF crossed above DEA within
// the cross tolerance, or the MACD bar's magnitude shrank over the last
// two bars. With GoldenOnly set, only a completed cross counts.
func (e Engine) reversal(frame *model.IndicatorFrame, last int) bool {
	if e.GoldenOnly {
		return frame.DIF[last] > frame.DEA[last]
	}
	if e.crossedWithin(frame, last, e.Profile.CrossTolerance) {
		return true
	}
	return barShrinking(frame, last)
}

func (e Engine) crossedWithin(frame *model.IndicatorFrame, last, tolerance int) bool {
	for i := last; i > last-tolerance && i > 0; i-- {
		if !frame.DefinedAt(i) || !frame.DefinedAt(i-1) {
			break
		}
		if frame.DIF[i] > frame.DEA[i] && frame.DIF[i-1] <= frame.DEA[i-1] {
			return true
		}
	}
	return false
}

func barShrinking(frame *model.IndicatorFrame, last int) bool {
	if last < 1 || math.IsNaN(frame.MACDBar[last-1]) {
		return false
	}
	return math.Abs(frame.MACDBar[last]) < math.Abs(frame.MACDBar[last-1])
}

func (e Engine) signal(frame *model.IndicatorFrame, last int) string {
	switch {
	case frame.DIF[last] > frame.DEA[last]:
		return SignalGoldenCross
	case barShrinking(frame, last) && frame.MACDBar[last] < 0:
		return SignalBarShrinking
	default:
		return SignalPendingCross
	}
}

// peakDEA returns the maximum defined DEA over the trailing window ending
// at last (inclusive).
func peakDEA(dea []float64, last, window int) float64 {
	start := last - window + 1
	if start < 0 {
		start = 0
	}
	peak := math.Inf(-1)
	for i := start; i <= last; i++ {
		if math.IsNaN(dea[i]) {
			continue
		}
		if dea[i] > peak {
			peak = dea[i]
		}
	}
	return peak
}
