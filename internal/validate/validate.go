// Package validate screens raw prediction requests before they reach the
// model. Validation is a pure function returning a structured result;
// malformed types never panic. The realism check is advisory only: it
// annotates a successful prediction, it never rejects one.
package validate

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"pitwall/internal/strategy"
)

// Result is the outcome of input validation. Reason names the first
// offending field when OK is false.
type Result struct {
	OK     bool
	Reason string
}

func valid() Result                { return Result{OK: true} }
func invalid(reason string) Result { return Result{Reason: reason} }

// requiredFields in check order. laps_since_pit is optional (extended
// schema) and validated only when present.
var requiredFields = []string{
	"undercut_overcut_opportunity",
	"tire_wear_percentage",
	"performance_drop_seconds",
	"track_position",
	"race_incident",
}

// Scenario validates a raw decoded JSON object and, when valid, returns
// the normalized scenario. Checks run in order and short-circuit on the
// first failure.
func Scenario(raw map[string]any) (strategy.Scenario, Result) {
	var s strategy.Scenario

	var missing []string
	for _, f := range requiredFields {
		if _, ok := raw[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return s, invalid("missing required fields: " + strings.Join(missing, ", "))
	}

	undercut, ok := asBinary(raw["undercut_overcut_opportunity"])
	if !ok {
		return s, invalid("undercut_overcut_opportunity must be 0 or 1")
	}

	wear, ok := asFloat(raw["tire_wear_percentage"])
	if !ok {
		return s, invalid("tire_wear_percentage must be a number")
	}
	if wear < 0 || wear > 100 {
		return s, invalid("tire_wear_percentage must be between 0 and 100")
	}

	drop, ok := asFloat(raw["performance_drop_seconds"])
	if !ok {
		return s, invalid("performance_drop_seconds must be a number")
	}
	if drop < 0 {
		return s, invalid("performance_drop_seconds must be non-negative")
	}

	pos, ok := asInt(raw["track_position"])
	if !ok {
		return s, invalid("track_position must be an integer")
	}
	if pos < 1 || pos > 20 {
		return s, invalid("track_position must be between 1 and 20")
	}

	incidentStr, ok := raw["race_incident"].(string)
	incident := strategy.Incident(incidentStr)
	if !ok || !incident.Valid() {
		return s, invalid(fmt.Sprintf("race_incident must be one of: %s", incidentList()))
	}

	laps := 0
	if v, present := raw["laps_since_pit"]; present {
		laps, ok = asInt(v)
		if !ok {
			return s, invalid("laps_since_pit must be an integer")
		}
		if laps < 0 {
			return s, invalid("laps_since_pit must be non-negative")
		}
	}

	s = strategy.Scenario{
		UndercutOpportunity: undercut,
		TireWearPct:         wear,
		PerfDropSeconds:     drop,
		TrackPosition:       pos,
		RaceIncident:        incident,
		LapsSincePit:        laps,
	}
	return s, valid()
}

func incidentList() string {
	names := make([]string, len(strategy.Incidents))
	for i, inc := range strategy.Incidents {
		names[i] = string(inc)
	}
	return strings.Join(names, ", ")
}

// asBinary accepts 0/1 in any JSON numeric form and bools, matching the
// telemetry producers in the wild.
func asBinary(v any) (int, bool) {
	switch x := v.(type) {
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	default:
		f, ok := asFloat(v)
		if !ok || (f != 0 && f != 1) {
			return 0, false
		}
		return int(f), true
	}
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, false
		}
		return x, true
	case int:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func asInt(v any) (int, bool) {
	f, ok := asFloat(v)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}
