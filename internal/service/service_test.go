package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pitwall/internal/preprocess"
	"pitwall/internal/strategy"
	"pitwall/internal/synth"
	"pitwall/internal/tree"
)

// mockMetrics records every call the service makes.
type mockMetrics struct {
	predictions        int
	lastDecision       string
	lastConfidence     float64
	validationFailures int
	realismWarnings    int
	inferenceErrors    int
}

func (m *mockMetrics) PredictionObserved(decision string, confidence, latencySeconds float64) {
	m.predictions++
	m.lastDecision = decision
	m.lastConfidence = confidence
}
func (m *mockMetrics) ValidationFailureInc()       { m.validationFailures++ }
func (m *mockMetrics) RealismWarningsAdd(n int)    { m.realismWarnings += n }
func (m *mockMetrics) InferenceErrorInc()          { m.inferenceErrors++ }
func (m *mockMetrics) ModelAgeSet(seconds float64) {}

// newTestService trains a small model so tests run the real pipeline.
func newTestService(t *testing.T, m MetricsInterface) *Service {
	t.Helper()

	dataset := synth.New(42).Dataset(synth.Config{Samples: 1500})
	scenarios := make([]strategy.Scenario, len(dataset))
	y := make([]string, len(dataset))
	for i, s := range dataset {
		scenarios[i] = s.Scenario
		y[i] = string(s.Label)
	}

	pre, err := preprocess.Fit(scenarios)
	require.NoError(t, err)
	X, err := pre.TransformAll(scenarios)
	require.NoError(t, err)
	model, err := tree.Train(X, y, tree.Params{MaxDepth: 7, MinSamplesSplit: 10, MinSamplesLeaf: 5, Balanced: true})
	require.NoError(t, err)

	svc, err := New(pre, model, m)
	require.NoError(t, err)
	return svc
}

func TestNew_RejectsMismatchedArtifacts(t *testing.T) {
	t.Parallel()

	pre, err := preprocess.Fit([]strategy.Scenario{
		{TireWearPct: 20, PerfDropSeconds: 0.5, TrackPosition: 3, RaceIncident: strategy.IncidentNone},
		{TireWearPct: 80, PerfDropSeconds: 3.0, TrackPosition: 9, RaceIncident: strategy.IncidentSafetyCar},
	})
	require.NoError(t, err)

	model, err := tree.Train([][]float64{{0, 1}, {1, 0}}, []string{"PIT NOW", "STAY OUT"}, tree.Params{})
	require.NoError(t, err)

	_, err = New(pre, model, nil)
	assert.Error(t, err, "dimensionality mismatch must be rejected at startup")

	_, err = New(nil, model, nil)
	assert.Error(t, err)
	_, err = New(pre, nil, nil)
	assert.Error(t, err)
}

func TestPredict_SafetyCarScenario(t *testing.T) {
	t.Parallel()

	m := &mockMetrics{}
	svc := newTestService(t, m)

	prediction, err := svc.Predict(map[string]any{
		"undercut_overcut_opportunity": float64(0),
		"tire_wear_percentage":         float64(30),
		"performance_drop_seconds":     float64(0.5),
		"track_position":               float64(8),
		"race_incident":                "Safety Car",
	})
	require.NoError(t, err)

	assert.Equal(t, strategy.PitNow, prediction.Decision)
	assert.Greater(t, prediction.Confidence, 0.5)
	assert.LessOrEqual(t, prediction.Confidence, 1.0)
	assert.Equal(t, strategy.IncidentSafetyCar, prediction.InputEcho.RaceIncident)
	assert.Equal(t, 1, m.predictions)
	assert.Equal(t, string(strategy.PitNow), m.lastDecision)
}

func TestPredict_FreshTiresScenario(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, nil)

	prediction, err := svc.Predict(map[string]any{
		"undercut_overcut_opportunity": float64(0),
		"tire_wear_percentage":         float64(15),
		"performance_drop_seconds":     float64(0.3),
		"track_position":               float64(5),
		"race_incident":                "None",
	})
	require.NoError(t, err)

	assert.Equal(t, strategy.StayOut, prediction.Decision)
	assert.Empty(t, prediction.Warnings)
}

func TestPredict_ValidationErrorPath(t *testing.T) {
	t.Parallel()

	m := &mockMetrics{}
	svc := newTestService(t, m)

	_, err := svc.Predict(map[string]any{"tire_wear_percentage": float64(50)})
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "missing required fields")
	assert.Equal(t, 1, m.validationFailures)
	assert.Equal(t, 0, m.predictions, "rejected requests must not reach the model")
}

func TestPredict_RealismWarningAttached(t *testing.T) {
	t.Parallel()

	m := &mockMetrics{}
	svc := newTestService(t, m)

	// 90% wear with a 0.2s drop is statistically implausible but must
	// still produce a decision.
	prediction, err := svc.Predict(map[string]any{
		"undercut_overcut_opportunity": float64(0),
		"tire_wear_percentage":         float64(90),
		"performance_drop_seconds":     float64(0.2),
		"track_position":               float64(10),
		"race_incident":                "None",
	})
	require.NoError(t, err)

	require.Len(t, prediction.Warnings, 1)
	assert.Contains(t, prediction.Warnings[0], "unusually low")
	assert.Equal(t, 1, m.realismWarnings)
	assert.Equal(t, strategy.PitNow, prediction.Decision, "90 percent wear is past the critical threshold")
}

func TestPredict_AgreesWithDecisionRules(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, nil)

	// The classifier should reproduce the labeling rules on clear-cut
	// scenarios well inside each rule's region.
	cases := []struct {
		scenario strategy.Scenario
		want     strategy.Decision
	}{
		{strategy.Scenario{TireWearPct: 92, PerfDropSeconds: 3.9, TrackPosition: 7, RaceIncident: strategy.IncidentNone, LapsSincePit: 27}, strategy.PitNow},
		{strategy.Scenario{TireWearPct: 20, PerfDropSeconds: 0.3, TrackPosition: 12, RaceIncident: strategy.IncidentNone, LapsSincePit: 6}, strategy.StayOut},
		{strategy.Scenario{TireWearPct: 50, PerfDropSeconds: 1.4, TrackPosition: 14, RaceIncident: strategy.IncidentVSC, LapsSincePit: 15}, strategy.PitNow},
	}
	for _, tc := range cases {
		decision, confidence, err := svc.PredictScenario(tc.scenario)
		require.NoError(t, err)
		assert.Equal(t, tc.want, decision, "scenario %+v", tc.scenario)
		assert.Greater(t, confidence, 0.5)
	}
}

func TestFeatureImportances_CoverAllFeatures(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, nil)

	importances := svc.FeatureImportances()
	assert.Len(t, importances, svc.pre.Dim())
	for name, imp := range importances {
		assert.GreaterOrEqual(t, imp, 0.0, "feature %s", name)
	}
	// Tire wear drives most rules, so it must carry some importance.
	assert.Greater(t, importances["tire_wear_percentage"], 0.0)
}
