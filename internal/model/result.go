package model

// Symbol identifies one instrument in the scan universe.
type Symbol struct {
	Code string
	Name string
}

// Verdict is the outcome of screening one symbol.
type Verdict string

const (
	VerdictAccepted Verdict = "accepted"
	VerdictRejected Verdict = "rejected"
)

// Snapshot captures the key indicator values at the evaluation bar, so a
// result can be inspected without re-fetching the series.
type Snapshot struct {
	Close     float64
	MA55      float64
	Deviation float64 // (close - MA55) / MA55
	DIF       float64
	DEA       float64
	MACDBar   float64
	PeakDEA   float64 // max DEA over the lookback window
	Signal    string  // "golden_cross", "bar_shrinking" or "pending_cross"
}

// ScreenResult is the per-symbol outcome of a scan. Created once, never
// mutated afterwards. DataFailure distinguishes "rejected because the
// filter said no" from "rejected because the data could not be fetched".
type ScreenResult struct {
	Symbol      string
	Name        string
	Verdict     Verdict
	Reason      string
	DataFailure bool
	Snapshot    Snapshot
}
