package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"pitwall/internal/strategy"
)

// Server exposes the prediction service over HTTP.
type Server struct {
	svc    *Service
	server *http.Server
}

// HealthResponse reports whether the fitted artifacts are loaded.
type HealthResponse struct {
	Status             string `json:"status"`
	ModelLoaded        bool   `json:"model_loaded"`
	PreprocessorLoaded bool   `json:"preprocessor_loaded"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewServer creates the HTTP API server on the given port.
func NewServer(svc *Service, port int) *Server {
	s := &Server{svc: svc}

	mux := http.NewServeMux()
	mux.HandleFunc("/predict", s.handlePredict)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/model-info", s.handleModelInfo)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      allowCORS(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("starting prediction server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// allowCORS lets the pit-wall dashboard call the API from the browser.
func allowCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON payload"})
		return
	}
	if len(raw) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "no JSON data provided"})
		return
	}

	prediction, err := s.svc.Predict(raw)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Reason})
			return
		}
		log.Error().Err(err).Msg("prediction failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: fmt.Sprintf("prediction failed: %v", err)})
		return
	}

	writeJSON(w, http.StatusOK, prediction)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:             "healthy",
		ModelLoaded:        s.svc != nil && s.svc.model != nil,
		PreprocessorLoaded: s.svc != nil && s.svc.pre != nil,
	})
}

func (s *Server) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	incidents := make([]string, len(strategy.Incidents))
	for i, inc := range strategy.Incidents {
		incidents[i] = string(inc)
	}

	info := map[string]any{
		"model_type": "DecisionTreeClassifier",
		"features": []string{
			"undercut_overcut_opportunity",
			"tire_wear_percentage",
			"performance_drop_seconds",
			"track_position",
			"race_incident",
			"laps_since_pit",
		},
		"possible_decisions":    []string{string(strategy.PitNow), string(strategy.StayOut)},
		"race_incident_options": incidents,
		"strategy_notes": map[string]any{
			"pit_stop_cost": "20-25 seconds lost on average",
			"critical_thresholds": map[string]string{
				"tire_wear":        "> 85% (unsafe)",
				"performance_drop": "> 3.5s per lap",
				"strategic_window": "Undercut opportunity + 40%+ wear + Top 8 position",
			},
			"safety_car_advantage": "Near-free pit stop during Safety Car/VSC",
		},
		"max_depth":           s.svc.ModelDepth(),
		"n_classes":           len(s.svc.ModelClasses()),
		"feature_importances": s.svc.FeatureImportances(),
	}
	writeJSON(w, http.StatusOK, info)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
