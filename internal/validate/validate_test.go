package validate

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"pitwall/internal/strategy"
)

func validPayload() map[string]any {
	return map[string]any{
		"undercut_overcut_opportunity": float64(1),
		"tire_wear_percentage":         float64(45),
		"performance_drop_seconds":     float64(1.2),
		"track_position":               float64(4),
		"race_incident":                "None",
	}
}

func TestScenario_Valid(t *testing.T) {
	t.Parallel()

	s, res := Scenario(validPayload())
	if !res.OK {
		t.Fatalf("valid payload rejected: %s", res.Reason)
	}
	want := strategy.Scenario{
		UndercutOpportunity: 1,
		TireWearPct:         45,
		PerfDropSeconds:     1.2,
		TrackPosition:       4,
		RaceIncident:        strategy.IncidentNone,
	}
	if s != want {
		t.Errorf("normalized scenario %+v, want %+v", s, want)
	}
}

func TestScenario_MissingFieldsNamed(t *testing.T) {
	t.Parallel()

	raw := validPayload()
	delete(raw, "tire_wear_percentage")
	delete(raw, "race_incident")

	_, res := Scenario(raw)
	if res.OK {
		t.Fatal("payload with missing fields accepted")
	}
	if !strings.HasPrefix(res.Reason, "missing required fields:") {
		t.Errorf("reason %q should name missing fields", res.Reason)
	}
	if !strings.Contains(res.Reason, "tire_wear_percentage") || !strings.Contains(res.Reason, "race_incident") {
		t.Errorf("reason %q should list both missing fields", res.Reason)
	}
}

func TestScenario_FieldFailures(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		field  string
		value  any
		reason string
	}{
		{"undercut not binary", "undercut_overcut_opportunity", float64(2), "undercut_overcut_opportunity must be 0 or 1"},
		{"undercut wrong type", "undercut_overcut_opportunity", "yes", "undercut_overcut_opportunity must be 0 or 1"},
		{"wear not a number", "tire_wear_percentage", "high", "tire_wear_percentage must be a number"},
		{"wear below range", "tire_wear_percentage", float64(-1), "tire_wear_percentage must be between 0 and 100"},
		{"wear above range", "tire_wear_percentage", float64(101), "tire_wear_percentage must be between 0 and 100"},
		{"drop not a number", "performance_drop_seconds", []any{}, "performance_drop_seconds must be a number"},
		{"drop negative", "performance_drop_seconds", float64(-0.1), "performance_drop_seconds must be non-negative"},
		{"position fractional", "track_position", float64(4.5), "track_position must be an integer"},
		{"position below range", "track_position", float64(0), "track_position must be between 1 and 20"},
		{"position above range", "track_position", float64(21), "track_position must be between 1 and 20"},
		{"incident unknown", "race_incident", "Red Flag", "race_incident must be one of: None, Yellow Flag, Safety Car, VSC"},
		{"incident wrong type", "race_incident", float64(1), "race_incident must be one of: None, Yellow Flag, Safety Car, VSC"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			raw := validPayload()
			raw[tc.field] = tc.value
			_, res := Scenario(raw)
			if res.OK {
				t.Fatal("invalid payload accepted")
			}
			if res.Reason != tc.reason {
				t.Errorf("reason %q, want %q", res.Reason, tc.reason)
			}
		})
	}
}

func TestScenario_BoundaryValuesAccepted(t *testing.T) {
	t.Parallel()

	raw := validPayload()
	raw["tire_wear_percentage"] = float64(0)
	raw["performance_drop_seconds"] = float64(0)
	raw["track_position"] = float64(1)
	if _, res := Scenario(raw); !res.OK {
		t.Errorf("lower boundary values rejected: %s", res.Reason)
	}

	raw["tire_wear_percentage"] = float64(100)
	raw["track_position"] = float64(20)
	if _, res := Scenario(raw); !res.OK {
		t.Errorf("upper boundary values rejected: %s", res.Reason)
	}
}

func TestScenario_UndercutAcceptsBooleans(t *testing.T) {
	t.Parallel()

	raw := validPayload()
	raw["undercut_overcut_opportunity"] = true
	s, res := Scenario(raw)
	if !res.OK {
		t.Fatalf("boolean undercut flag rejected: %s", res.Reason)
	}
	if s.UndercutOpportunity != 1 {
		t.Errorf("true should normalize to 1, got %d", s.UndercutOpportunity)
	}

	raw["undercut_overcut_opportunity"] = false
	s, res = Scenario(raw)
	if !res.OK {
		t.Fatalf("boolean undercut flag rejected: %s", res.Reason)
	}
	if s.UndercutOpportunity != 0 {
		t.Errorf("false should normalize to 0, got %d", s.UndercutOpportunity)
	}
}

func TestScenario_AcceptsJSONNumber(t *testing.T) {
	t.Parallel()

	raw := validPayload()
	raw["tire_wear_percentage"] = json.Number("62.5")
	raw["track_position"] = json.Number("7")
	s, res := Scenario(raw)
	if !res.OK {
		t.Fatalf("json.Number values rejected: %s", res.Reason)
	}
	if s.TireWearPct != 62.5 || s.TrackPosition != 7 {
		t.Errorf("json.Number mis-parsed: %+v", s)
	}
}

func TestScenario_LapsSincePitOptional(t *testing.T) {
	t.Parallel()

	s, res := Scenario(validPayload())
	if !res.OK {
		t.Fatalf("payload without stint age rejected: %s", res.Reason)
	}
	if s.LapsSincePit != 0 {
		t.Errorf("absent stint age should default to 0, got %d", s.LapsSincePit)
	}

	raw := validPayload()
	raw["laps_since_pit"] = float64(14)
	s, res = Scenario(raw)
	if !res.OK {
		t.Fatalf("payload with stint age rejected: %s", res.Reason)
	}
	if s.LapsSincePit != 14 {
		t.Errorf("stint age %d, want 14", s.LapsSincePit)
	}

	raw["laps_since_pit"] = float64(-1)
	if _, res := Scenario(raw); res.OK {
		t.Error("negative stint age accepted")
	}
	raw["laps_since_pit"] = "twelve"
	if _, res := Scenario(raw); res.OK {
		t.Error("non-numeric stint age accepted")
	}
}

func TestScenario_RejectsNaNAndInf(t *testing.T) {
	t.Parallel()

	// JSON cannot carry these, but in-process callers can.
	for _, v := range []float64{math.NaN(), math.Inf(1)} {
		raw := validPayload()
		raw["tire_wear_percentage"] = v
		if _, res := Scenario(raw); res.OK {
			t.Errorf("non-finite wear %f accepted", v)
		}
	}
}
