// Package providers implements clients for the external data services the
// eco-routing backend aggregates: weather, traffic, air quality, transit,
// directions and the conversational assistant.
//
// Every client degrades to a deterministic fallback payload instead of
// surfacing provider failures; callers always get a usable response.
package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/citymesh/ecoroute/pkg/core"
	"github.com/citymesh/ecoroute/pkg/monitoring"
	"github.com/citymesh/ecoroute/pkg/tracing"
)

const (
	// DefaultUserAgent is the default User-Agent string
	DefaultUserAgent = "ecoroute/1.0"

	// Default provider base URLs
	WeatherAPIBaseURL  = "https://api.weatherapi.com/v1"
	TomTomBaseURL      = "https://api.tomtom.com"
	OpenWeatherBaseURL = "https://api.openweathermap.org/data/2.5"
	TransitlandBaseURL = "https://transit.land/api/v2"
	DirectionsBaseURL  = "https://maps.googleapis.com/maps/api/directions"
	AssistantBaseURL   = "https://generativelanguage.googleapis.com/v1beta"
)

var (
	// Global HTTP client with connection pooling
	httpClient *http.Client

	// Rate limiters keyed by provider name
	limitersMu sync.RWMutex
	limiters   map[string]*rate.Limiter

	// User agent string
	userAgent     string
	userAgentLock sync.RWMutex
)

func init() {
	httpClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
		Timeout: 30 * time.Second,
	}

	initRateLimiters()
	SetUserAgent(DefaultUserAgent)
}

// initRateLimiters initializes the per-provider rate limiters with defaults
func initRateLimiters() {
	limitersMu.Lock()
	defer limitersMu.Unlock()

	limiters = make(map[string]*rate.Limiter)
	for _, service := range []string{
		tracing.ServiceWeather,
		tracing.ServiceTraffic,
		tracing.ServiceAirQuality,
		tracing.ServiceTransit,
		tracing.ServiceDirections,
		tracing.ServiceAssistant,
	} {
		// Default to 5 requests per second with a burst of 5
		limiters[service] = rate.NewLimiter(rate.Limit(5), 5)
	}
}

// UpdateRateLimit updates the rate limiter for a provider
func UpdateRateLimit(service string, rps float64, burst int) {
	limitersMu.Lock()
	defer limitersMu.Unlock()
	limiters[service] = rate.NewLimiter(rate.Limit(rps), burst)
}

func limiterFor(service string) *rate.Limiter {
	limitersMu.RLock()
	defer limitersMu.RUnlock()
	return limiters[service]
}

// SetUserAgent sets the User-Agent string
func SetUserAgent(ua string) {
	userAgentLock.Lock()
	defer userAgentLock.Unlock()
	userAgent = ua
}

// GetUserAgent returns the current User-Agent string
func GetUserAgent() string {
	userAgentLock.RLock()
	defer userAgentLock.RUnlock()
	return userAgent
}

// waitForRateLimit waits on the provider's rate limiter before a request
func waitForRateLimit(ctx context.Context, service string) error {
	limiter := limiterFor(service)
	if limiter == nil {
		return nil
	}

	if !limiter.Allow() {
		startWait := time.Now()

		tracing.AddEvent(ctx, "rate_limit_wait",
			trace.WithAttributes(
				attribute.String(tracing.AttrRateLimitService, service),
			),
		)
		monitoring.RecordRateLimitExceeded(service)

		err := limiter.Wait(ctx)

		waitDuration := time.Since(startWait)
		monitoring.RecordRateLimitWait(service, waitDuration)
		tracing.SetAttributes(ctx,
			attribute.String(tracing.AttrRateLimitService, service),
			attribute.Int64(tracing.AttrRateLimitWaitMs, waitDuration.Milliseconds()),
		)

		if err != nil {
			return err
		}
	}

	return nil
}

// DoRequest performs an HTTP request with rate limiting, User-Agent and
// per-provider request metrics.
func DoRequest(ctx context.Context, service, operation string, req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", GetUserAgent())

	if err := waitForRateLimit(ctx, service); err != nil {
		return nil, err
	}

	_, span := tracing.StartSpan(ctx, "provider."+service+"."+operation)
	defer span.End()

	start := time.Now()
	resp, err := httpClient.Do(req)
	success := err == nil && resp.StatusCode == http.StatusOK
	monitoring.RecordExternalServiceRequest(service, operation, time.Since(start), success)

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	// Query strings carry API keys; record only host and path.
	span.SetAttributes(tracing.ServiceAttributes(service, operation, req.URL.Host+req.URL.Path, status)...)
	span.SetAttributes(tracing.ErrorAttributes(err)...)

	return resp, err
}

// NewRequest creates a new HTTP request with the configured User-Agent
func NewRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", GetUserAgent())
	return req, nil
}

// recordCacheHit notes a cache hit on both metrics and the active span.
func recordCacheHit(ctx context.Context, cacheType, key string) {
	monitoring.RecordCacheHit(cacheType)
	tracing.AddEvent(ctx, "cache_hit",
		trace.WithAttributes(tracing.CacheAttributes(cacheType, true, key)...))
}

// checkEndpoint is the common probe used by the provider health checks
func checkEndpoint(service, operation, url string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create %s health check request: %w", service, err)
	}

	resp, err := DoRequest(ctx, service, operation, req)
	if err != nil {
		return fmt.Errorf("%s health check failed: %w", service, err)
	}
	defer resp.Body.Close()

	// Providers answer key-less probes with 4xx; only server errors count
	// as unavailable.
	if resp.StatusCode >= 500 {
		return core.ServiceError(service, resp.StatusCode,
			fmt.Sprintf("health check returned status %d", resp.StatusCode))
	}

	return nil
}

// CheckWeatherHealth checks if the weather provider is reachable
func CheckWeatherHealth() error {
	return checkEndpoint(tracing.ServiceWeather, "health", WeatherAPIBaseURL+"/current.json")
}

// CheckTrafficHealth checks if the traffic provider is reachable
func CheckTrafficHealth() error {
	return checkEndpoint(tracing.ServiceTraffic, "health", TomTomBaseURL+"/traffic/services/4/flowSegmentData/absolute/10/json")
}

// CheckAirQualityHealth checks if the air quality provider is reachable
func CheckAirQualityHealth() error {
	return checkEndpoint(tracing.ServiceAirQuality, "health", OpenWeatherBaseURL+"/air_pollution")
}

// CheckTransitHealth checks if the transit provider is reachable
func CheckTransitHealth() error {
	return checkEndpoint(tracing.ServiceTransit, "health", TransitlandBaseURL+"/stops")
}
