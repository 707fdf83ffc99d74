// Package preprocess converts raw race scenarios into the numeric feature
// matrix the classifier consumes. Fitting happens once over the training
// set; the fitted state is then read-only and applied identically at train
// and inference time.
package preprocess

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"pitwall/internal/strategy"
)

// ErrNotFitted is returned by Transform when the preprocessor has no
// fitted state. Callers treat it as a programming error, not bad input.
var ErrNotFitted = errors.New("preprocess: transform called before fit")

// numericNames is the passthrough column order following the one-hot
// block. This order is part of the artifact contract: changing it
// invalidates every trained model.
var numericNames = []string{
	"undercut_overcut_opportunity",
	"tire_wear_percentage",
	"performance_drop_seconds",
	"track_position",
	"laps_since_pit",
}

// Preprocessor holds the fitted encoding table and scaling statistics.
// All fields are exported so the artifact round-trips through JSON.
type Preprocessor struct {
	// Categories is the one-hot column order for race_incident, fixed at
	// fit time. An incident outside this list encodes as an all-zero
	// block rather than an error.
	Categories []strategy.Incident `json:"categories"`
	// Means and Scales are per-numeric-feature z-score statistics
	// computed from training data only.
	Means  []float64 `json:"means"`
	Scales []float64 `json:"scales"`
}

// Fit computes the categorical encoding table and numeric statistics from
// the training scenarios. Categories are sorted for a stable column order
// regardless of generation order.
func Fit(scenarios []strategy.Scenario) (*Preprocessor, error) {
	if len(scenarios) == 0 {
		return nil, fmt.Errorf("preprocess: fit requires at least one scenario")
	}

	seen := make(map[strategy.Incident]struct{})
	for _, s := range scenarios {
		seen[s.RaceIncident] = struct{}{}
	}
	categories := make([]strategy.Incident, 0, len(seen))
	for c := range seen {
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })

	means := make([]float64, len(numericNames))
	scales := make([]float64, len(numericNames))
	n := float64(len(scenarios))

	for _, s := range scenarios {
		for i, v := range numerics(s) {
			means[i] += v
		}
	}
	for i := range means {
		means[i] /= n
	}
	for _, s := range scenarios {
		for i, v := range numerics(s) {
			d := v - means[i]
			scales[i] += d * d
		}
	}
	for i := range scales {
		scales[i] = math.Sqrt(scales[i] / n)
		if scales[i] == 0 {
			// Constant feature; leave it centered instead of dividing by zero.
			scales[i] = 1
		}
	}

	return &Preprocessor{Categories: categories, Means: means, Scales: scales}, nil
}

// Dim is the fixed output dimensionality: one-hot block plus scaled
// numerics. Identical for every Transform call after Fit.
func (p *Preprocessor) Dim() int {
	return len(p.Categories) + len(numericNames)
}

// FeatureNames returns the output column names in transform order.
func (p *Preprocessor) FeatureNames() []string {
	names := make([]string, 0, p.Dim())
	for _, c := range p.Categories {
		names = append(names, "race_incident="+string(c))
	}
	return append(names, numericNames...)
}

// Transform encodes one scenario into a feature vector using the fitted
// state. Pure: repeated calls with the same input yield identical output.
func (p *Preprocessor) Transform(s strategy.Scenario) ([]float64, error) {
	if p == nil || len(p.Categories) == 0 || len(p.Means) != len(numericNames) {
		return nil, ErrNotFitted
	}

	out := make([]float64, p.Dim())
	for i, c := range p.Categories {
		if s.RaceIncident == c {
			out[i] = 1
			break
		}
	}
	offset := len(p.Categories)
	for i, v := range numerics(s) {
		out[offset+i] = (v - p.Means[i]) / p.Scales[i]
	}
	return out, nil
}

// TransformAll encodes a training set into a feature matrix.
func (p *Preprocessor) TransformAll(scenarios []strategy.Scenario) ([][]float64, error) {
	rows := make([][]float64, len(scenarios))
	for i, s := range scenarios {
		row, err := p.Transform(s)
		if err != nil {
			return nil, err
		}
		rows[i] = row
	}
	return rows, nil
}

func numerics(s strategy.Scenario) [5]float64 {
	return [5]float64{
		float64(s.UndercutOpportunity),
		s.TireWearPct,
		s.PerfDropSeconds,
		float64(s.TrackPosition),
		float64(s.LapsSincePit),
	}
}
