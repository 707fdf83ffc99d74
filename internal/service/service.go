// Package service orchestrates a prediction: validate, realism-check,
// preprocess, classify, respond. A Service owns one fitted preprocessor
// and one fitted classifier for the process lifetime; both are loaded
// once at startup and only ever read afterwards, so concurrent requests
// need no locking.
package service

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"pitwall/internal/preprocess"
	"pitwall/internal/strategy"
	"pitwall/internal/tree"
	"pitwall/internal/validate"
)

// MetricsInterface defines the metrics methods the service reports to.
// Kept as an interface so tests can pass mocks.
type MetricsInterface interface {
	PredictionObserved(decision string, confidence, latencySeconds float64)
	ValidationFailureInc()
	RealismWarningsAdd(n int)
	InferenceErrorInc()
	ModelAgeSet(seconds float64)
}

// ValidationError marks a request rejected before touching the model.
// Transports map it to a client error.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// Prediction is the fully assembled response for a valid request.
type Prediction struct {
	Decision   strategy.Decision `json:"decision"`
	Confidence float64           `json:"confidence"`
	Warnings   []string          `json:"warnings,omitempty"`
	InputEcho  strategy.Scenario `json:"input_echo"`
}

// Service holds the immutable fitted artifacts.
type Service struct {
	pre      *preprocess.Preprocessor
	model    *tree.Classifier
	metrics  MetricsInterface
	loadedAt time.Time
}

// New constructs a service around already-loaded artifacts. metrics may
// be nil.
func New(pre *preprocess.Preprocessor, model *tree.Classifier, metrics MetricsInterface) (*Service, error) {
	if pre == nil || model == nil {
		return nil, fmt.Errorf("service: both preprocessor and model are required")
	}
	if pre.Dim() != model.FeatureSize {
		return nil, fmt.Errorf("service: preprocessor emits %d features but model expects %d", pre.Dim(), model.FeatureSize)
	}
	return &Service{pre: pre, model: model, metrics: metrics, loadedAt: time.Now()}, nil
}

// Predict runs the full pipeline over a raw decoded JSON payload.
// A *ValidationError return means the request never reached the model;
// any other error is an internal inference failure.
func (s *Service) Predict(raw map[string]any) (*Prediction, error) {
	start := time.Now()

	scenario, result := validate.Scenario(raw)
	if !result.OK {
		if s.metrics != nil {
			s.metrics.ValidationFailureInc()
		}
		return nil, &ValidationError{Reason: result.Reason}
	}

	warnings := validate.Realism(scenario.TireWearPct, scenario.PerfDropSeconds)
	if len(warnings) > 0 {
		log.Debug().
			Float64("tire_wear", scenario.TireWearPct).
			Float64("perf_drop", scenario.PerfDropSeconds).
			Strs("warnings", warnings).
			Msg("implausible input combination")
		if s.metrics != nil {
			s.metrics.RealismWarningsAdd(len(warnings))
		}
	}

	features, err := s.pre.Transform(scenario)
	if err != nil {
		if s.metrics != nil {
			s.metrics.InferenceErrorInc()
		}
		return nil, fmt.Errorf("preprocess input: %w", err)
	}

	label, confidence, err := s.model.PredictProba(features)
	if err != nil {
		if s.metrics != nil {
			s.metrics.InferenceErrorInc()
		}
		return nil, fmt.Errorf("classify input: %w", err)
	}

	decision := strategy.Decision(label)
	if s.metrics != nil {
		s.metrics.PredictionObserved(label, confidence, time.Since(start).Seconds())
	}

	return &Prediction{
		Decision:   decision,
		Confidence: confidence,
		Warnings:   warnings,
		InputEcho:  scenario,
	}, nil
}

// PredictScenario is Predict for callers that already hold a validated
// scenario, e.g. the training evaluator.
func (s *Service) PredictScenario(scenario strategy.Scenario) (strategy.Decision, float64, error) {
	features, err := s.pre.Transform(scenario)
	if err != nil {
		return "", 0, fmt.Errorf("preprocess input: %w", err)
	}
	label, confidence, err := s.model.PredictProba(features)
	if err != nil {
		return "", 0, fmt.Errorf("classify input: %w", err)
	}
	return strategy.Decision(label), confidence, nil
}

// ModelDepth exposes the loaded tree's depth for the info endpoint.
func (s *Service) ModelDepth() int { return s.model.Depth }

// ModelClasses exposes the loaded tree's class labels.
func (s *Service) ModelClasses() []string { return s.model.Classes }

// FeatureImportances pairs transform-order feature names with the
// model's impurity-decrease importances.
func (s *Service) FeatureImportances() map[string]float64 {
	names := s.pre.FeatureNames()
	out := make(map[string]float64, len(names))
	for i, name := range names {
		if i < len(s.model.Importances) {
			out[name] = s.model.Importances[i]
		}
	}
	return out
}
