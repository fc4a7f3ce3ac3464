package filter

import "fmt"

// Band is a half-open numeric interval [Min, Max).
type Band struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Contains reports whether v is inside the band.
func (b Band) Contains(v float64) bool { return v >= b.Min && v < b.Max }

// Profile is a named set of filter thresholds. Profiles only change the
// numbers; the predicate logic is identical across strict/default/loose,
// which keeps the three modes comparably shaped and testable.
type Profile struct {
	Name             string  `yaml:"name"`
	MADeviation      Band    `yaml:"ma_deviation_band"`  // close deviation from MA55, relative
	DEAPeakThreshold float64 `yaml:"dea_peak_threshold"` // required historical DEA high
	PullbackRatio    float64 `yaml:"pullback_ratio"`     // current DEA must be below ratio × peak
	DEAZero          Band    `yaml:"dea_zero_band"`      // stabilization band around the zero axis
	CrossTolerance   int     `yaml:"cross_tolerance"`    // bars within which a DIF/DEA cross counts
	LookbackBars     int     `yaml:"lookback_bars"`      // window for the historical DEA peak
}

// Built-in profile names.
const (
	ProfileStrict  = "strict"
	ProfileDefault = "default"
	ProfileLoose   = "loose"
)

// Profiles returns the built-in threshold sets.
func Profiles() map[string]Profile {
	return map[string]Profile{
		ProfileStrict: {
			Name:             ProfileStrict,
			MADeviation:      Band{Min: 0, Max: 0.08},
			DEAPeakThreshold: 0.3,
			PullbackRatio:    0.3,
			DEAZero:          Band{Min: 0, Max: 0.5},
			CrossTolerance:   3,
			LookbackBars:     100,
		},
		ProfileDefault: {
			Name:             ProfileDefault,
			MADeviation:      Band{Min: -0.05, Max: 0.10},
			DEAPeakThreshold: 0.1,
			PullbackRatio:    0.5,
			DEAZero:          Band{Min: 0, Max: 1.0},
			CrossTolerance:   3,
			LookbackBars:     100,
		},
		ProfileLoose: {
			Name:             ProfileLoose,
			MADeviation:      Band{Min: -0.10, Max: 0.20},
			DEAPeakThreshold: 0.05,
			PullbackRatio:    0.7,
			DEAZero:          Band{Min: -0.2, Max: 1.5},
			CrossTolerance:   3,
			LookbackBars:     100,
		},
	}
}

// ByName resolves a profile by its name.
func ByName(name string) (Profile, error) {
	if p, ok := Profiles()[name]; ok {
		return p, nil
	}
	return Profile{}, fmt.Errorf("unknown filter profile %q", name)
}
