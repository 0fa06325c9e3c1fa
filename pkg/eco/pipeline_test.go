package eco

import (
	"context"
	"errors"
	"testing"
)

type stubSnapshots struct {
	snap EnvironmentalSnapshot
	err  error
}

func (s *stubSnapshots) Snapshot(ctx context.Context, lat, lon float64) (EnvironmentalSnapshot, error) {
	return s.snap, s.err
}

func TestPipelineAssess(t *testing.T) {
	p := NewPipeline(&stubSnapshots{
		snap: EnvironmentalSnapshot{TrafficScore: 25, WeatherImpact: ImpactLow, AirQualityIndex: 3},
	})

	got := p.Assess(context.Background(), AssessmentInput{
		DistanceKm:      10.5,
		DurationMinutes: 25,
		VehicleType:     "car",
		RouteType:       "eco_friendly",
		Lat:             17.3850,
		Lon:             78.4867,
	})

	if got.CO2Kg != 3.087 {
		t.Errorf("CO2Kg = %v, want 3.087", got.CO2Kg)
	}
	if got.NOxKg != 0.648 {
		t.Errorf("NOxKg = %v, want 0.648", got.NOxKg)
	}
	if got.PMKg != 0.154 {
		t.Errorf("PMKg = %v, want 0.154", got.PMKg)
	}
	if got.BaseEmissionFactor != 0.21 {
		t.Errorf("BaseEmissionFactor = %v, want 0.21", got.BaseEmissionFactor)
	}
	if got.AdjustedEmissionFactor != 0.294 {
		t.Errorf("AdjustedEmissionFactor = %v, want 0.294", got.AdjustedEmissionFactor)
	}

	wantFactors := Factors{Traffic: 1.4, Weather: 1.0, Route: 0.85, Efficiency: 1.0}
	if got.EnvironmentalFactors != wantFactors {
		t.Errorf("factors = %+v, want %+v", got.EnvironmentalFactors, wantFactors)
	}

	if got.EnvironmentalContext.TrafficLevel != 25 {
		t.Errorf("TrafficLevel = %d, want 25", got.EnvironmentalContext.TrafficLevel)
	}
	if got.EnvironmentalContext.AirQuality != 3 {
		t.Errorf("AirQuality = %d, want 3", got.EnvironmentalContext.AirQuality)
	}

	if got.EcoScore < 0 || got.EcoScore > 100 {
		t.Errorf("EcoScore = %d, out of [0,100]", got.EcoScore)
	}
	if got.Source != "real_time_environmental_calculation" {
		t.Errorf("Source = %q", got.Source)
	}
	if got.Timestamp.IsZero() {
		t.Error("Timestamp not set")
	}
	if got.Recommendations == nil {
		t.Error("Recommendations must never be nil")
	}
}

func TestPipelineAssessDefaults(t *testing.T) {
	p := NewPipeline(&stubSnapshots{snap: NeutralSnapshot()})

	got := p.Assess(context.Background(), AssessmentInput{
		DistanceKm:      5,
		DurationMinutes: 15,
	})

	if got.VehicleType != "car" {
		t.Errorf("VehicleType = %q, want car", got.VehicleType)
	}
	if got.RouteType != "fastest" {
		t.Errorf("RouteType = %q, want fastest", got.RouteType)
	}
}

func TestPipelineAssessSnapshotFailure(t *testing.T) {
	p := NewPipeline(&stubSnapshots{err: errors.New("upstream down")})

	got := p.Assess(context.Background(), AssessmentInput{
		DistanceKm:      8,
		DurationMinutes: 20,
		VehicleType:     "car",
	})

	// Failed snapshots degrade to the neutral context.
	neutral := NeutralSnapshot()
	if got.EnvironmentalContext.TrafficLevel != neutral.TrafficScore {
		t.Errorf("TrafficLevel = %d, want %d", got.EnvironmentalContext.TrafficLevel, neutral.TrafficScore)
	}
	if got.EnvironmentalContext.WeatherImpact != neutral.WeatherImpact {
		t.Errorf("WeatherImpact = %q, want %q", got.EnvironmentalContext.WeatherImpact, neutral.WeatherImpact)
	}
	if got.EnvironmentalFactors != NeutralFactors() {
		t.Errorf("factors = %+v, want neutral", got.EnvironmentalFactors)
	}
	if got.CO2Kg != 1.68 {
		t.Errorf("CO2Kg = %v, want 1.68", got.CO2Kg)
	}
}
