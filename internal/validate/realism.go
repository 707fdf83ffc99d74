package validate

import (
	"fmt"
	"math"
)

// Realism band constants. The band is a plausibility heuristic fitted to
// the training distribution; it is deliberately independent of the
// decision cascade's thresholds.
const (
	dropCeiling    = 4.5
	wearExponent   = 1.5
	upperBuffer    = 1.5
	lowerBuffer    = 0.5
	dropFloor      = 0.1
	lowWarnMinWear = 30.0
)

// RealismBand returns the expected performance-drop range for a given
// tire wear percentage.
func RealismBand(wear float64) (lo, hi float64) {
	expected := dropCeiling * math.Pow(wear/100, wearExponent)
	lo = expected - lowerBuffer
	if lo < dropFloor {
		lo = dropFloor
	}
	return lo, expected + upperBuffer
}

// Realism flags statistically implausible wear/drop combinations. The
// returned warnings accompany a successful prediction; they never fail
// the request. Values exactly on a band boundary produce no warning.
func Realism(wear, drop float64) []string {
	lo, hi := RealismBand(wear)

	var warnings []string
	switch {
	case drop > hi:
		warnings = append(warnings, fmt.Sprintf(
			"performance drop (%.2fs) seems unusually high for %.1f%% tire wear; expected range %.2fs - %.2fs, prediction may be unreliable",
			drop, wear, lo, hi))
	case drop < lo && wear > lowWarnMinWear:
		warnings = append(warnings, fmt.Sprintf(
			"performance drop (%.2fs) seems unusually low for %.1f%% tire wear; expected range %.2fs - %.2fs, prediction may be unreliable",
			drop, wear, lo, hi))
	}
	return warnings
}
