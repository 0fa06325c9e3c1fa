package eco

import "testing"

func TestComputeAdjustmentFactorsTraffic(t *testing.T) {
	tests := []struct {
		score int
		want  float64
	}{
		{0, 1.4},
		{29, 1.4},
		{30, 1.2},
		{59, 1.2},
		{60, 1.0},
		{80, 1.0},
		{81, 0.9},
		{100, 0.9},
	}

	for _, tt := range tests {
		f := ComputeAdjustmentFactors(tt.score, ImpactLow, RouteFastest, 30, 10)
		if f.Traffic != tt.want {
			t.Errorf("traffic score %d: got factor %v, want %v", tt.score, f.Traffic, tt.want)
		}
	}
}

func TestComputeAdjustmentFactorsWeather(t *testing.T) {
	tests := []struct {
		impact WeatherImpact
		want   float64
	}{
		{ImpactLow, 1.0},
		{ImpactMedium, 1.15},
		{ImpactHigh, 1.3},
		{WeatherImpact("unknown"), 1.0},
	}

	for _, tt := range tests {
		f := ComputeAdjustmentFactors(70, tt.impact, RouteFastest, 30, 10)
		if f.Weather != tt.want {
			t.Errorf("impact %q: got factor %v, want %v", tt.impact, f.Weather, tt.want)
		}
	}
}

func TestComputeAdjustmentFactorsRoute(t *testing.T) {
	tests := []struct {
		routeType RouteType
		want      float64
	}{
		{RouteFastest, 1.0},
		{RouteShortest, 0.95},
		{RouteEcoFriendly, 0.85},
	}

	for _, tt := range tests {
		f := ComputeAdjustmentFactors(70, ImpactLow, tt.routeType, 30, 10)
		if f.Route != tt.want {
			t.Errorf("route type %q: got factor %v, want %v", tt.routeType, f.Route, tt.want)
		}
	}
}

func TestComputeAdjustmentFactorsEfficiency(t *testing.T) {
	tests := []struct {
		name       string
		distanceKm float64
		minutes    int
		want       float64
	}{
		{"city crawl", 5, 30, 1.3},          // 10 km/h
		{"urban", 15, 30, 1.0},              // 30 km/h
		{"highway sweet spot", 30, 30, 0.9}, // 60 km/h
		{"upper band edge", 40, 30, 0.9},    // 80 km/h
		{"fast but fine", 45, 30, 1.0},      // 90 km/h
		{"speeding", 55, 30, 1.2},           // 110 km/h
		{"zero duration", 10, 0, 1.0},
		{"zero distance", 0, 30, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := ComputeAdjustmentFactors(70, ImpactLow, RouteFastest, tt.minutes, tt.distanceKm)
			if f.Efficiency != tt.want {
				t.Errorf("got factor %v, want %v", f.Efficiency, tt.want)
			}
		})
	}
}

// The factor calculation is a pure function of its inputs: recomputing for
// the same conditions must reproduce the same factors exactly.
func TestComputeAdjustmentFactorsIdempotent(t *testing.T) {
	impacts := []WeatherImpact{ImpactLow, ImpactMedium, ImpactHigh}
	routeTypes := []RouteType{RouteFastest, RouteShortest, RouteEcoFriendly}

	for _, score := range []int{0, 25, 45, 60, 75, 85, 100} {
		for _, impact := range impacts {
			for _, rt := range routeTypes {
				for _, trip := range []struct {
					km      float64
					minutes int
				}{{0, 0}, {5, 30}, {60, 45}, {120, 60}} {
					first := ComputeAdjustmentFactors(score, impact, rt, trip.minutes, trip.km)
					second := ComputeAdjustmentFactors(score, impact, rt, trip.minutes, trip.km)
					if first != second {
						t.Fatalf("ComputeAdjustmentFactors(%d, %v, %v, %d, %v) not stable: %+v vs %+v",
							score, impact, rt, trip.minutes, trip.km, first, second)
					}
				}
			}
		}
	}
}

func TestComputeAdjustmentFactorsNeutralBaseline(t *testing.T) {
	snap := NeutralSnapshot()
	f := ComputeAdjustmentFactors(snap.TrafficScore, snap.WeatherImpact, RouteFastest, 0, 0)
	if f != NeutralFactors() {
		t.Errorf("neutral snapshot must yield neutral factors, got %+v", f)
	}
}
