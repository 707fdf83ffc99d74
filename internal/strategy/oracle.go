// Package strategy defines the pit-stop decision domain: race scenarios,
// the two possible decisions, and the rule cascade that acts as ground
// truth for training-data labeling and scenario tests.
package strategy

// Decision is the pit-wall call for a single car at a single instant.
type Decision string

const (
	PitNow  Decision = "PIT NOW"
	StayOut Decision = "STAY OUT"
)

// Incident is the current track status.
type Incident string

const (
	IncidentNone       Incident = "None"
	IncidentYellowFlag Incident = "Yellow Flag"
	IncidentSafetyCar  Incident = "Safety Car"
	IncidentVSC        Incident = "VSC"
)

// Incidents lists every known track status, in documentation order.
var Incidents = []Incident{IncidentNone, IncidentYellowFlag, IncidentSafetyCar, IncidentVSC}

// Valid reports whether i is one of the known track statuses.
func (i Incident) Valid() bool {
	switch i {
	case IncidentNone, IncidentYellowFlag, IncidentSafetyCar, IncidentVSC:
		return true
	}
	return false
}

// Scenario is the unit of both training and inference: a snapshot of one
// car's telemetry-derived features.
type Scenario struct {
	UndercutOpportunity int      `json:"undercut_overcut_opportunity"` // 0 or 1
	TireWearPct         float64  `json:"tire_wear_percentage"`         // [0,100]
	PerfDropSeconds     float64  `json:"performance_drop_seconds"`     // >= 0
	TrackPosition       int      `json:"track_position"`               // 1 = leader
	RaceIncident        Incident `json:"race_incident"`
	LapsSincePit        int      `json:"laps_since_pit"` // stint age
}

// Thresholds used by the decision cascade. A pit stop costs 20-25s, so
// staying out is the default unless one of these trips.
const (
	CriticalWearPct    = 85.0
	CriticalDropSec    = 3.5
	UndercutMinWearPct = 40.0
	UndercutMaxPos     = 8
	HighDropSec        = 2.5
	HighDropWearPct    = 65.0
	ModerateDropSec    = 2.0
	ModerateWearPct    = 75.0
)

// Decide maps a scenario to the ground-truth decision. The rules are an
// ordered cascade; the first match wins. Incident rules dominate wear and
// performance rules. Deterministic, no side effects.
func Decide(s Scenario) Decision {
	switch {
	case s.RaceIncident == IncidentSafetyCar || s.RaceIncident == IncidentVSC:
		// Near-free pit window while the field is bunched and slowed.
		return PitNow
	case s.TireWearPct > CriticalWearPct:
		// Degradation past the safe limit.
		return PitNow
	case s.PerfDropSeconds > CriticalDropSec:
		// Losing too much time per lap to stay out.
		return PitNow
	case s.UndercutOpportunity == 1 && s.TireWearPct > UndercutMinWearPct && s.TrackPosition <= UndercutMaxPos:
		// Strategic undercut, only worthwhile fighting near the front on worn tires.
		return PitNow
	case s.PerfDropSeconds > HighDropSec && s.TireWearPct > HighDropWearPct:
		return PitNow
	case s.PerfDropSeconds > ModerateDropSec && s.TireWearPct > ModerateWearPct:
		return PitNow
	default:
		return StayOut
	}
}
