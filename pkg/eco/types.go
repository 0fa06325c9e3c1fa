// Package eco implements the emissions and eco-scoring pipeline.
//
// The pipeline turns raw provider data (route metrics, traffic congestion,
// weather impact) into adjustment factors, pollutant estimates and a bounded
// 0-100 eco score. Every stage is a pure function over value types; nothing
// here performs I/O or keeps state between calls, so the pipeline is safe to
// invoke from any number of request handlers concurrently.
package eco

import "context"

// RouteType selects which variant of the scoring formulas applies.
type RouteType string

const (
	RouteFastest     RouteType = "fastest"
	RouteShortest    RouteType = "shortest"
	RouteEcoFriendly RouteType = "eco_friendly"
)

// ParseRouteType maps a request string to a RouteType, defaulting to fastest.
func ParseRouteType(s string) RouteType {
	switch RouteType(s) {
	case RouteShortest:
		return RouteShortest
	case RouteEcoFriendly:
		return RouteEcoFriendly
	default:
		return RouteFastest
	}
}

// WeatherImpact is the qualitative impact level weather has on driving.
type WeatherImpact string

const (
	ImpactLow    WeatherImpact = "low"
	ImpactMedium WeatherImpact = "medium"
	ImpactHigh   WeatherImpact = "high"
)

// EnvironmentalSnapshot aggregates the live context the environmental score
// needs for a coordinate at request time. It is consumed, never stored.
type EnvironmentalSnapshot struct {
	// TrafficScore is 0-100, higher meaning freer-flowing traffic.
	TrafficScore int
	// WeatherImpact is the qualitative driving-impact level.
	WeatherImpact WeatherImpact
	// AirQualityIndex is the US EPA index (1-6) when known.
	AirQualityIndex int
}

// NeutralSnapshot is the contractual fallback when live environmental data
// is unavailable: light traffic, no weather impact.
func NeutralSnapshot() EnvironmentalSnapshot {
	return EnvironmentalSnapshot{
		TrafficScore:    80,
		WeatherImpact:   ImpactLow,
		AirQualityIndex: 2,
	}
}

// SnapshotProvider supplies live environmental context for a coordinate.
// Implementations must degrade to NeutralSnapshot values rather than fail
// the pipeline.
type SnapshotProvider interface {
	Snapshot(ctx context.Context, lat, lon float64) (EnvironmentalSnapshot, error)
}

// Factors are the multiplicative adjustments applied to baseline emission
// and score estimates. Each factor is centered at 1.0. They compose
// multiplicatively, never additively.
type Factors struct {
	Traffic    float64 `json:"traffic_factor"`
	Weather    float64 `json:"weather_factor"`
	Route      float64 `json:"route_factor"`
	Efficiency float64 `json:"efficiency_factor"`
}

// NeutralFactors returns factors that leave the baseline unchanged.
func NeutralFactors() Factors {
	return Factors{Traffic: 1.0, Weather: 1.0, Route: 1.0, Efficiency: 1.0}
}

// Estimate is the pipeline's final output for a trip.
type Estimate struct {
	CO2Kg    float64 `json:"co2_kg"`
	NOxKg    float64 `json:"nox_kg"`
	PMKg     float64 `json:"pm_kg"`
	EcoScore int     `json:"eco_score"`
}
