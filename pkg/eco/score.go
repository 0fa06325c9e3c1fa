package eco

import "math"

// Two scoring families coexist deliberately. RouteScore is the simple
// per-route-type formula used when enriching a list of provider routes,
// where only the route's own metrics are known. EnvironmentalScore is the
// richer formula used when full environmental context is available. Their
// bonus tables and penalty weights differ in non-parametric ways, so they
// are kept as two named operations rather than merged.

// Vehicle bonuses for the environmental-context score.
var vehicleScoreBonuses = map[string]int{
	"bicycle":      30,
	"walking":      35,
	"electric_car": 25,
	"hybrid_car":   15,
	"train":        20,
	"bus":          10,
	"motorcycle":   -5,
	"car":          0,
}

// VehicleScoreBonus returns the eco-score bonus (or penalty) for a vehicle
// type; unknown types score as a car.
func VehicleScoreBonus(vehicleType string) int {
	if b, ok := vehicleScoreBonuses[vehicleType]; ok {
		return b
	}
	return 0
}

// RouteScore computes the simple per-route-type eco score from a route's
// own metrics. trafficDelayMinutes is the extra in-traffic time, or 0 when
// unknown. The result is truncated toward zero; each variant's own max()
// guards keep it within [0, 100].
func RouteScore(routeType RouteType, distanceKm float64, durationMinutes, trafficDelayMinutes int) int {
	switch routeType {
	case RouteEcoFriendly:
		score := math.Max(0, 100-distanceKm*2)
		if trafficDelayMinutes > 0 {
			score = math.Max(0, score-float64(trafficDelayMinutes)*5)
		}
		return int(score)
	case RouteShortest:
		return int(math.Max(20, 100-distanceKm*1.5))
	default:
		timeEfficiency := math.Max(0, 100-float64(durationMinutes)*0.5)
		distanceComponent := math.Max(0, 100-distanceKm*2)
		return int((timeEfficiency + distanceComponent) / 2)
	}
}

// EnvironmentalScore computes the environmental-context eco score from the
// adjusted CO2 total, vehicle type, adjustment factors and trip metrics.
// The result is clamped to [0, 100] and truncated toward zero.
func EnvironmentalScore(co2Kg float64, vehicleType string, f Factors, distanceKm float64, durationMinutes int) int {
	score := 100.0

	score -= math.Min(co2Kg*15, 60)
	score += float64(VehicleScoreBonus(vehicleType))

	// Adverse conditions penalize, efficient choices reward.
	score -= (f.Traffic - 1.0) * 25
	score -= (f.Weather - 1.0) * 20
	score += (1.0 - f.Route) * 15
	score += (1.0 - f.Efficiency) * 10

	if distanceKm < 5 {
		score += 10
	} else if distanceKm > 50 {
		score -= 10
	}

	return int(clamp(score, 0, 100))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
