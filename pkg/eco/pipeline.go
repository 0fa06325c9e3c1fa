package eco

import (
	"context"
	"log/slog"
	"time"
)

// AssessmentInput is the standalone emissions request: trip metrics plus
// the coordinate for which live environmental context should be fetched.
type AssessmentInput struct {
	DistanceKm      float64 `json:"distance_km"`
	DurationMinutes int     `json:"duration_minutes"`
	VehicleType     string  `json:"vehicle_type"`
	RouteType       string  `json:"route_type"`
	Lat             float64 `json:"lat"`
	Lon             float64 `json:"lon"`
}

// EnvironmentalContext echoes the live conditions the assessment used.
type EnvironmentalContext struct {
	TrafficLevel  int           `json:"traffic_level"`
	WeatherImpact WeatherImpact `json:"weather_impact"`
	AirQuality    int           `json:"air_quality"`
}

// Assessment is the full standalone emissions response.
type Assessment struct {
	CO2Kg                  float64              `json:"co2_kg"`
	NOxKg                  float64              `json:"nox_kg"`
	PMKg                   float64              `json:"pm_kg"`
	DistanceKm             float64              `json:"distance_km"`
	DurationMinutes        int                  `json:"duration_minutes"`
	VehicleType            string               `json:"vehicle_type"`
	RouteType              string               `json:"route_type"`
	BaseEmissionFactor     float64              `json:"base_emission_factor"`
	AdjustedEmissionFactor float64              `json:"adjusted_emission_factor"`
	EnvironmentalFactors   Factors              `json:"environmental_factors"`
	EcoScore               int                  `json:"eco_score"`
	EnvironmentalContext   EnvironmentalContext `json:"environmental_context"`
	Recommendations        []string             `json:"recommendations"`
	Timestamp              time.Time            `json:"timestamp"`
	Source                 string               `json:"source"`
}

// Pipeline runs the emissions assessment against a live environmental
// context provider. The provider is the pipeline's only collaborator and
// is injected explicitly; all other stages are pure functions.
type Pipeline struct {
	snapshots SnapshotProvider
	logger    *slog.Logger
}

// NewPipeline creates a Pipeline backed by the given snapshot provider.
func NewPipeline(snapshots SnapshotProvider) *Pipeline {
	return &Pipeline{
		snapshots: snapshots,
		logger:    slog.Default().With("component", "eco"),
	}
}

// SetLogger overrides the pipeline's logger.
func (p *Pipeline) SetLogger(logger *slog.Logger) {
	p.logger = logger.With("component", "eco")
}

// Assess runs the full pipeline for a trip: fetch environmental context,
// derive adjustment factors, estimate pollutants, score and recommend.
// A failing snapshot provider degrades to neutral context; Assess itself
// never returns an error.
func (p *Pipeline) Assess(ctx context.Context, in AssessmentInput) Assessment {
	vehicleType := in.VehicleType
	if vehicleType == "" {
		vehicleType = "car"
	}
	routeType := ParseRouteType(in.RouteType)

	snap, err := p.snapshots.Snapshot(ctx, in.Lat, in.Lon)
	if err != nil {
		p.logger.Warn("environmental snapshot unavailable, using neutral context",
			"lat", in.Lat, "lon", in.Lon, "error", err)
		snap = NeutralSnapshot()
	}

	factors := ComputeAdjustmentFactors(snap.TrafficScore, snap.WeatherImpact, routeType, in.DurationMinutes, in.DistanceKm)
	co2, nox, pm := EstimateEmissions(in.DistanceKm, vehicleType, factors)
	score := EnvironmentalScore(co2, vehicleType, factors, in.DistanceKm, in.DurationMinutes)

	return Assessment{
		CO2Kg:                  co2,
		NOxKg:                  nox,
		PMKg:                   pm,
		DistanceKm:             in.DistanceKm,
		DurationMinutes:        in.DurationMinutes,
		VehicleType:            vehicleType,
		RouteType:              string(routeType),
		BaseEmissionFactor:     BaseEmissionFactor(vehicleType),
		AdjustedEmissionFactor: AdjustedEmissionFactor(vehicleType, factors),
		EnvironmentalFactors:   factors,
		EcoScore:               score,
		EnvironmentalContext: EnvironmentalContext{
			TrafficLevel:  snap.TrafficScore,
			WeatherImpact: snap.WeatherImpact,
			AirQuality:    snap.AirQualityIndex,
		},
		Recommendations: GenerateRecommendations(score, factors, vehicleType),
		Timestamp:       time.Now().UTC(),
		Source:          "real_time_environmental_calculation",
	}
}
