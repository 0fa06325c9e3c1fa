package tracing

import "go.opentelemetry.io/otel/attribute"

// Attribute keys for eco-routing operations
const (
	// API request attributes
	AttrAPIEndpoint = "api.endpoint"
	AttrAPIStatus   = "api.status"
	AttrAPIDuration = "api.duration_ms"
	AttrAPISize     = "api.response_size"

	// External provider attributes
	AttrServiceName      = "eco.provider.name"
	AttrServiceOperation = "eco.provider.operation"
	AttrServiceURL       = "eco.provider.url"
	AttrServiceStatus    = "eco.provider.status"

	// Cache attributes
	AttrCacheType = "eco.cache.type"
	AttrCacheHit  = "eco.cache.hit"
	AttrCacheKey  = "eco.cache.key"

	// Rate limiting attributes
	AttrRateLimitService = "eco.ratelimit.service"
	AttrRateLimitWaitMs  = "eco.ratelimit.wait_ms"

	// HTTP transport attributes
	AttrHTTPMethod     = "http.method"
	AttrHTTPStatusCode = "http.status_code"
	AttrHTTPPath       = "http.path"
	AttrHTTPRequestID  = "http.request_id"

	// Error attributes
	AttrErrorType    = "error.type"
	AttrErrorMessage = "error.message"
)

// Status values
const (
	StatusSuccess     = "success"
	StatusError       = "error"
	StatusTimeout     = "timeout"
	StatusRateLimited = "rate_limited"
)

// Provider names
const (
	ServiceWeather    = "weatherapi"
	ServiceTraffic    = "tomtom"
	ServiceAirQuality = "openweather"
	ServiceTransit    = "transitland"
	ServiceDirections = "directions"
	ServiceAssistant  = "assistant"
)

// Cache types
const (
	CacheTypeProvider   = "provider"
	CacheTypeDirections = "directions"
)

// Helper functions for common attributes

// APIRequestAttributes returns attributes for API endpoint execution
func APIRequestAttributes(endpoint string, status string, durationMs int64, resultSize int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrAPIEndpoint, endpoint),
		attribute.String(AttrAPIStatus, status),
		attribute.Int64(AttrAPIDuration, durationMs),
		attribute.Int(AttrAPISize, resultSize),
	}
}

// ServiceAttributes returns attributes for external provider calls
func ServiceAttributes(service, operation, url string, status int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrServiceName, service),
		attribute.String(AttrServiceOperation, operation),
		attribute.String(AttrServiceURL, url),
		attribute.Int(AttrServiceStatus, status),
	}
}

// CacheAttributes returns attributes for cache operations
func CacheAttributes(cacheType string, hit bool, key string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrCacheType, cacheType),
		attribute.Bool(AttrCacheHit, hit),
		attribute.String(AttrCacheKey, key),
	}
}

// ErrorAttributes returns attributes for errors
func ErrorAttributes(err error) []attribute.KeyValue {
	if err == nil {
		return nil
	}
	return []attribute.KeyValue{
		attribute.String(AttrErrorType, "error"),
		attribute.String(AttrErrorMessage, err.Error()),
	}
}
