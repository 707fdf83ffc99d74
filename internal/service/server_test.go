package service

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	svc := newTestService(t, nil)
	server := NewServer(svc, 0)
	return server.server.Handler
}

func postPredict(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandlePredict_ValidRequest(t *testing.T) {
	t.Parallel()

	handler := newTestHandler(t)
	rec := postPredict(t, handler, `{
		"undercut_overcut_opportunity": 0,
		"tire_wear_percentage": 30,
		"performance_drop_seconds": 0.5,
		"track_position": 8,
		"race_incident": "Safety Car"
	}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp struct {
		Decision   string         `json:"decision"`
		Confidence float64        `json:"confidence"`
		InputEcho  map[string]any `json:"input_echo"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if resp.Decision != "PIT NOW" {
		t.Errorf("decision %q, want PIT NOW", resp.Decision)
	}
	if resp.Confidence <= 0 || resp.Confidence > 1 {
		t.Errorf("confidence %f outside (0,1]", resp.Confidence)
	}
	if resp.InputEcho["race_incident"] != "Safety Car" {
		t.Errorf("input echo missing incident: %v", resp.InputEcho)
	}
}

func TestHandlePredict_ValidationFailureIs400(t *testing.T) {
	t.Parallel()

	handler := newTestHandler(t)
	rec := postPredict(t, handler, `{
		"undercut_overcut_opportunity": 0,
		"tire_wear_percentage": 150,
		"performance_drop_seconds": 0.5,
		"track_position": 8,
		"race_incident": "None"
	}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want %d", rec.Code, http.StatusBadRequest)
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid error JSON: %v", err)
	}
	if resp.Error != "tire_wear_percentage must be between 0 and 100" {
		t.Errorf("error %q names wrong reason", resp.Error)
	}
}

func TestHandlePredict_MalformedJSON(t *testing.T) {
	t.Parallel()

	handler := newTestHandler(t)
	if rec := postPredict(t, handler, `{not json`); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed JSON: status %d, want 400", rec.Code)
	}
	if rec := postPredict(t, handler, `{}`); rec.Code != http.StatusBadRequest {
		t.Errorf("empty object: status %d, want 400", rec.Code)
	}
}

func TestHandlePredict_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	handler := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/predict", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}

func TestHandleHealth(t *testing.T) {
	t.Parallel()

	handler := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid health JSON: %v", err)
	}
	if resp.Status != "healthy" || !resp.ModelLoaded || !resp.PreprocessorLoaded {
		t.Errorf("unexpected health response: %+v", resp)
	}
}

func TestHandleModelInfo(t *testing.T) {
	t.Parallel()

	handler := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/model-info", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
	var info map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("invalid info JSON: %v", err)
	}

	if info["model_type"] != "DecisionTreeClassifier" {
		t.Errorf("model_type %v", info["model_type"])
	}
	features, ok := info["features"].([]any)
	if !ok || len(features) != 6 {
		t.Errorf("features %v, want 6 entries", info["features"])
	}
	if _, ok := info["strategy_notes"]; !ok {
		t.Error("strategy_notes missing")
	}
	if _, ok := info["feature_importances"]; !ok {
		t.Error("feature_importances missing")
	}
}

func TestAllowCORS(t *testing.T) {
	t.Parallel()

	handler := newTestHandler(t)

	req := httptest.NewRequest(http.MethodOptions, "/predict", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS origin header on preflight")
	}

	rec = postPredict(t, handler, `{}`)
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS origin header on POST")
	}
}

func TestWriteJSON_SetsContentType(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusTeapot, map[string]string{"k": "v"})
	if rec.Code != http.StatusTeapot {
		t.Errorf("status %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type %q", ct)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte(`"k":"v"`)) {
		t.Errorf("body %q", rec.Body.String())
	}
}
