package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/citymesh/ecoroute/pkg/config"
	"github.com/citymesh/ecoroute/pkg/core"
)

// newTestServer builds a server with no provider keys configured, so every
// provider serves its deterministic fallback payload.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{}
	cfg.SetDefaults()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := New(cfg, logger)
	t.Cleanup(s.limiter.Stop)
	return s
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, w.Body.String())
	}
	return out
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)
	w := doJSON(t, s, http.MethodGet, "/health", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := decodeBody(t, w)
	if body["status"] != "healthy" {
		t.Errorf("status = %v, want healthy", body["status"])
	}
	if body["version"] != ServerVersion {
		t.Errorf("version = %v, want %s", body["version"], ServerVersion)
	}
	services, ok := body["services"].(map[string]any)
	if !ok {
		t.Fatalf("services missing from %v", body)
	}
	if services["real_data"] != true {
		t.Errorf("real_data = %v, want true", services["real_data"])
	}
	if services["google_maps"] != false {
		t.Errorf("google_maps = %v, want false without a key", services["google_maps"])
	}
	if services["eco_chatbot"] != false {
		t.Errorf("eco_chatbot = %v, want false without a key", services["eco_chatbot"])
	}
}

func TestConfigEndpoint(t *testing.T) {
	s := newTestServer(t)
	w := doJSON(t, s, http.MethodGet, "/api/config", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := decodeBody(t, w)
	if body["app_name"] != "EcoRoute" {
		t.Errorf("app_name = %v", body["app_name"])
	}
	features, ok := body["features"].(map[string]any)
	if !ok {
		t.Fatalf("features missing from %v", body)
	}
	for _, name := range []string{"real_weather", "real_traffic", "real_transit", "eco_routes", "ai_assistant"} {
		if features[name] != true {
			t.Errorf("feature %s = %v, want true", name, features[name])
		}
	}
	if features["google_maps"] != false {
		t.Errorf("google_maps = %v, want false without a key", features["google_maps"])
	}
}

func TestRouteEndpointMock(t *testing.T) {
	s := newTestServer(t)
	w := doJSON(t, s, http.MethodPost, "/api/route", map[string]any{
		"source":      "Hitech City",
		"destination": "Charminar",
		"route_type":  "fastest",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["status"] != "OK_MOCK" {
		t.Errorf("status = %v, want OK_MOCK without a key", body["status"])
	}
	routes, ok := body["routes"].([]any)
	if !ok || len(routes) != 1 {
		t.Fatalf("routes = %v, want one mock route", body["routes"])
	}
	route := routes[0].(map[string]any)
	if route["eco_score"] != float64(75) {
		t.Errorf("eco_score = %v, want 75", route["eco_score"])
	}
	if route["carbon_estimate_kg"] != 1.94 {
		t.Errorf("carbon_estimate_kg = %v, want 1.94", route["carbon_estimate_kg"])
	}
}

func TestRouteEndpointEcoRescore(t *testing.T) {
	s := newTestServer(t)
	w := doJSON(t, s, http.MethodPost, "/api/route", map[string]any{
		"source":      "Hitech City",
		"destination": "Charminar",
		"route_type":  "eco_friendly",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	routes := body["routes"].([]any)
	route := routes[0].(map[string]any)

	// The mock route is 9.7 km in 15 mins. Under neutral environmental
	// context the eco_friendly assessment yields 9.7*0.21 = 2.037 kg CO2
	// and a score of 71.
	if route["carbon_estimate_kg"] != 2.037 {
		t.Errorf("carbon_estimate_kg = %v, want 2.037", route["carbon_estimate_kg"])
	}
	if route["eco_score"] != float64(71) {
		t.Errorf("eco_score = %v, want 71", route["eco_score"])
	}
}

func TestRouteEndpointValidation(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/route", map[string]any{"source": "Hitech City"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing destination: status = %d, want 400", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/route", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body: status = %d, want 400", rec.Code)
	}
}

func TestWeatherEndpointFallback(t *testing.T) {
	s := newTestServer(t)
	w := doJSON(t, s, http.MethodGet, "/api/weather?city=Hyderabad", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := decodeBody(t, w)
	if body["source"] != "fallback_data" {
		t.Errorf("source = %v, want fallback_data without a key", body["source"])
	}
	if _, ok := body["traffic_impact"].(map[string]any); !ok {
		t.Errorf("traffic_impact missing from fallback payload")
	}
}

func TestTrafficEndpointFallback(t *testing.T) {
	s := newTestServer(t)
	w := doJSON(t, s, http.MethodGet, "/api/traffic", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := decodeBody(t, w)
	if body["traffic_score"] != float64(80) {
		t.Errorf("traffic_score = %v, want 80", body["traffic_score"])
	}
	if body["source"] != "fallback_data" {
		t.Errorf("source = %v, want fallback_data", body["source"])
	}
}

func TestAirQualityEndpointFallback(t *testing.T) {
	s := newTestServer(t)
	w := doJSON(t, s, http.MethodGet, "/api/air_quality", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := decodeBody(t, w)
	if body["aqi"] != float64(2) {
		t.Errorf("aqi = %v, want 2", body["aqi"])
	}
	if body["category"] != "Fair" {
		t.Errorf("category = %v, want Fair", body["category"])
	}
}

func TestTransitEndpointFallback(t *testing.T) {
	s := newTestServer(t)
	w := doJSON(t, s, http.MethodGet, "/api/transit?radius=500", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := decodeBody(t, w)
	if body["source"] != "fallback_data" {
		t.Errorf("source = %v, want fallback_data", body["source"])
	}
	if _, ok := body["stops"].([]any); !ok {
		t.Errorf("stops = %v, want an empty array rather than null", body["stops"])
	}
}

func TestCoordinateValidation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		path     string
		wantCode string
	}{
		{"/api/weather?lat=91", "INVALID_LATITUDE"},
		{"/api/traffic?lon=-200", "INVALID_LONGITUDE"},
		{"/api/air_quality?lat=100&lon=0", "INVALID_LATITUDE"},
		{"/api/transit?radius=-5", "INVALID_RADIUS"},
	}
	for _, tt := range tests {
		w := doJSON(t, s, http.MethodGet, tt.path, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", tt.path, w.Code)
		}
		body := decodeBody(t, w)
		if body["code"] != tt.wantCode {
			t.Errorf("%s: code = %v, want %s", tt.path, body["code"], tt.wantCode)
		}
		if body["detail"] == "" {
			t.Errorf("%s: detail missing from error payload", tt.path)
		}
	}
}

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"no results", core.NewError(core.ErrNoResults, "No routes found"), http.StatusNotFound, "NO_RESULTS"},
		{"missing parameter", core.NewError(core.ErrMissingParameter, "Source and destination are required"), http.StatusBadRequest, "MISSING_PARAMETER"},
		{"untyped error", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	gin.SetMode(gin.TestMode)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)
			abortWithError(c, tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			body := decodeBody(t, rec)
			if body["code"] != tt.wantCode {
				t.Errorf("code = %v, want %s", body["code"], tt.wantCode)
			}
		})
	}
}

func TestEmissionsEndpoint(t *testing.T) {
	s := newTestServer(t)
	w := doJSON(t, s, http.MethodPost, "/api/emissions", map[string]any{
		"distance_km":      10.0,
		"duration_minutes": 20,
		"vehicle_type":     "car",
		"route_type":       "eco_friendly",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	// Neutral context: only the eco_friendly route factor (0.85) applies to
	// the score, emissions stay at the base car rate.
	if body["co2_kg"] != 2.1 {
		t.Errorf("co2_kg = %v, want 2.1", body["co2_kg"])
	}
	if body["nox_kg"] != 0.315 {
		t.Errorf("nox_kg = %v, want 0.315", body["nox_kg"])
	}
	if body["pm_kg"] != 0.105 {
		t.Errorf("pm_kg = %v, want 0.105", body["pm_kg"])
	}
	if body["eco_score"] != float64(70) {
		t.Errorf("eco_score = %v, want 70", body["eco_score"])
	}
	if body["source"] != "real_time_environmental_calculation" {
		t.Errorf("source = %v", body["source"])
	}
}

func TestEcoChatEndpoint(t *testing.T) {
	s := newTestServer(t)
	w := doJSON(t, s, http.MethodPost, "/api/eco_chat", map[string]any{
		"message": "How can I reduce my commute emissions?",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := decodeBody(t, w)
	if body["success"] != true {
		t.Errorf("success = %v, want true", body["success"])
	}
	if resp, _ := body["response"].(string); resp == "" {
		t.Errorf("response is empty, want a fallback reply")
	}
}

func TestEcoChatEndpointValidation(t *testing.T) {
	s := newTestServer(t)
	w := doJSON(t, s, http.MethodPost, "/api/eco_chat", map[string]any{"context": map[string]any{}})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for missing message", w.Code)
	}
}

func TestEcoTipsEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodGet, "/api/eco_tips", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := decodeBody(t, w)
	if body["success"] != true {
		t.Errorf("success = %v, want true", body["success"])
	}
	if body["personalized"] != false {
		t.Errorf("personalized = %v, want false with no context", body["personalized"])
	}
	tips, ok := body["tips"].([]any)
	if !ok || len(tips) != 5 {
		t.Fatalf("tips = %v, want the five fallback tips", body["tips"])
	}

	w = doJSON(t, s, http.MethodGet, "/api/eco_tips?location=Hyderabad&commute_distance=12", nil)
	body = decodeBody(t, w)
	if body["personalized"] != true {
		t.Errorf("personalized = %v, want true with query context", body["personalized"])
	}
}

func TestSecurityAndCORSHeaders(t *testing.T) {
	s := newTestServer(t)
	w := doJSON(t, s, http.MethodGet, "/health", nil)

	headers := map[string]string{
		"X-Content-Type-Options":      "nosniff",
		"X-Frame-Options":             "DENY",
		"Access-Control-Allow-Origin": "*",
	}
	for name, want := range headers {
		if got := w.Header().Get(name); got != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Errorf("X-Request-ID header not set")
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)
	w := doJSON(t, s, http.MethodOptions, "/api/weather", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204 for preflight", w.Code)
	}
}

func TestRequestIDEchoed(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-abc-123")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "req-abc-123" {
		t.Errorf("X-Request-ID = %q, want the caller's value echoed", got)
	}
}

func TestUnknownRouteNotFound(t *testing.T) {
	s := newTestServer(t)
	w := doJSON(t, s, http.MethodGet, "/api/unknown", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
