// Package metrics provides Prometheus metrics for the pit-strategy
// service: prediction volume and latency, validation and realism
// outcomes, live-feed health, and model freshness. Everything is exposed
// on the /metrics endpoint for monitoring and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Prediction metrics
	PredictionsTotal   prometheus.Counter   // Total predictions served
	PitDecisions       prometheus.Counter   // Predictions that recommended pitting
	StayOutDecisions   prometheus.Counter   // Predictions that recommended staying out
	ValidationFailures prometheus.Counter   // Requests rejected by input validation
	RealismWarnings    prometheus.Counter   // Advisory realism warnings attached to responses
	InferenceErrors    prometheus.Counter   // Unexpected failures inside preprocessing/prediction
	PredictionLatency  prometheus.Histogram // End-to-end prediction latency in seconds
	ConfidenceScores   prometheus.Histogram // Distribution of prediction confidence
	ModelAge           prometheus.Gauge     // Age of the loaded model artifact in seconds

	// Telemetry feed metrics
	FeedMessages   prometheus.Counter // Telemetry messages received
	FeedDuplicates prometheus.Counter // Messages skipped by id dedup
	FeedReconnects prometheus.Counter // Feed reconnection attempts
	FeedPublishes  prometheus.Counter // Decisions published upstream

	// System metrics
	StorageErrors prometheus.Counter // Failed audit-log writes
	ErrorsTotal   prometheus.Counter // Total errors encountered
}

// New creates and registers all metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry, which keeps
// tests isolated from the global Prometheus state.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		PredictionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "predictions_total",
			Help: "Total number of pit-strategy predictions served",
		}),
		PitDecisions: factory.NewCounter(prometheus.CounterOpts{
			Name: "decisions_pit_now_total",
			Help: "Total predictions recommending PIT NOW",
		}),
		StayOutDecisions: factory.NewCounter(prometheus.CounterOpts{
			Name: "decisions_stay_out_total",
			Help: "Total predictions recommending STAY OUT",
		}),
		ValidationFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "validation_failures_total",
			Help: "Total requests rejected by input validation",
		}),
		RealismWarnings: factory.NewCounter(prometheus.CounterOpts{
			Name: "realism_warnings_total",
			Help: "Total advisory realism warnings emitted",
		}),
		InferenceErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "inference_errors_total",
			Help: "Total unexpected failures during preprocessing or prediction",
		}),
		PredictionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "prediction_latency_seconds",
			Help:    "End-to-end prediction latency in seconds",
			Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		}),
		ConfidenceScores: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "prediction_confidence",
			Help:    "Distribution of prediction confidence scores",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		ModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "model_age_seconds",
			Help: "Age of the loaded model artifact in seconds",
		}),
		FeedMessages: factory.NewCounter(prometheus.CounterOpts{
			Name: "feed_messages_total",
			Help: "Total telemetry messages received from the live feed",
		}),
		FeedDuplicates: factory.NewCounter(prometheus.CounterOpts{
			Name: "feed_duplicates_total",
			Help: "Total telemetry messages skipped by message-id dedup",
		}),
		FeedReconnects: factory.NewCounter(prometheus.CounterOpts{
			Name: "feed_reconnects_total",
			Help: "Total telemetry feed reconnection attempts",
		}),
		FeedPublishes: factory.NewCounter(prometheus.CounterOpts{
			Name: "feed_publishes_total",
			Help: "Total decisions published to the upstream strategy endpoint",
		}),
		StorageErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "storage_errors_total",
			Help: "Total failed prediction audit-log writes",
		}),
		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors encountered",
		}),
	}
}

// PredictionObserved records one served prediction: the decision taken,
// its confidence, and the end-to-end latency in seconds.
func (m *Metrics) PredictionObserved(decision string, confidence, latencySeconds float64) {
	m.PredictionsTotal.Inc()
	m.ConfidenceScores.Observe(confidence)
	m.PredictionLatency.Observe(latencySeconds)
	switch decision {
	case "PIT NOW":
		m.PitDecisions.Inc()
	case "STAY OUT":
		m.StayOutDecisions.Inc()
	}
}

// ValidationFailureInc records one rejected request.
func (m *Metrics) ValidationFailureInc() { m.ValidationFailures.Inc() }

// RealismWarningsAdd records n advisory warnings.
func (m *Metrics) RealismWarningsAdd(n int) {
	for i := 0; i < n; i++ {
		m.RealismWarnings.Inc()
	}
}

// InferenceErrorInc records one unexpected inference failure.
func (m *Metrics) InferenceErrorInc() {
	m.InferenceErrors.Inc()
	m.ErrorsTotal.Inc()
}

// ModelAgeSet records the age of the loaded artifact in seconds.
func (m *Metrics) ModelAgeSet(seconds float64) { m.ModelAge.Set(seconds) }

// FeedMessageInc records one received telemetry message.
func (m *Metrics) FeedMessageInc() { m.FeedMessages.Inc() }

// FeedDuplicateInc records one message skipped by dedup.
func (m *Metrics) FeedDuplicateInc() { m.FeedDuplicates.Inc() }

// FeedReconnectInc records one feed reconnection attempt.
func (m *Metrics) FeedReconnectInc() {
	m.FeedReconnects.Inc()
	m.ErrorsTotal.Inc()
}

// FeedPublishInc records one decision published upstream.
func (m *Metrics) FeedPublishInc() { m.FeedPublishes.Inc() }

// StorageErrorInc records one failed audit-log write.
func (m *Metrics) StorageErrorInc() {
	m.StorageErrors.Inc()
	m.ErrorsTotal.Inc()
}
