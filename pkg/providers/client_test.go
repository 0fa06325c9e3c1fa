package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/citymesh/ecoroute/pkg/tracing"
)

func TestUserAgentManagement(t *testing.T) {
	original := GetUserAgent()
	defer SetUserAgent(original)

	if original != DefaultUserAgent {
		t.Errorf("default user agent = %q, want %q", original, DefaultUserAgent)
	}

	SetUserAgent("ecoroute-test/2.0")
	if got := GetUserAgent(); got != "ecoroute-test/2.0" {
		t.Errorf("user agent = %q, want ecoroute-test/2.0", got)
	}
}

func TestDoRequestSetsUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	req, err := NewRequest(context.Background(), http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}

	resp, err := DoRequest(context.Background(), tracing.ServiceWeather, "test", req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if gotUA != GetUserAgent() {
		t.Errorf("user agent = %q, want %q", gotUA, GetUserAgent())
	}
}

func TestUpdateRateLimit(t *testing.T) {
	defer UpdateRateLimit(tracing.ServiceTransit, 5, 5)

	UpdateRateLimit(tracing.ServiceTransit, 1, 2)
	l := limiterFor(tracing.ServiceTransit)
	if l == nil {
		t.Fatal("limiter missing after update")
	}
	if l.Burst() != 2 {
		t.Errorf("burst = %d, want 2", l.Burst())
	}
}

func TestLimiterForUnknownService(t *testing.T) {
	if l := limiterFor("no-such-service"); l != nil {
		t.Errorf("limiter = %v, want nil", l)
	}
}

func TestCheckEndpointTreatsClientErrorsAsHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	if err := checkEndpoint(tracing.ServiceWeather, "health", srv.URL); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCheckEndpointReportsServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if err := checkEndpoint(tracing.ServiceWeather, "health", srv.URL); err == nil {
		t.Error("expected error for 502 response")
	}
}
