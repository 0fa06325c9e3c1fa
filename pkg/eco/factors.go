package eco

// ComputeAdjustmentFactors derives the four multiplicative factors from the
// live environmental context and the route's own metrics. Each factor is
// computed independently and defaults to 1.0.
//
// The traffic bands are half-open: a score of exactly 30 falls into the
// moderate band, a score of exactly 80 into the neutral band.
func ComputeAdjustmentFactors(trafficScore int, impact WeatherImpact, routeType RouteType, durationMinutes int, distanceKm float64) Factors {
	f := NeutralFactors()

	// Congestion increases stop-and-go emissions; free flow reduces them.
	switch {
	case trafficScore < 30:
		f.Traffic = 1.4
	case trafficScore < 60:
		f.Traffic = 1.2
	case trafficScore > 80:
		f.Traffic = 0.9
	}

	switch impact {
	case ImpactHigh:
		f.Weather = 1.3
	case ImpactMedium:
		f.Weather = 1.15
	}

	switch routeType {
	case RouteEcoFriendly:
		f.Route = 0.85
	case RouteShortest:
		f.Route = 0.95
	}

	// Average-speed efficiency. Zero duration or distance means the metrics
	// are unknown, so the factor stays neutral (and we never divide by zero).
	if durationMinutes > 0 && distanceKm > 0 {
		speed := distanceKm / float64(durationMinutes) * 60
		switch {
		case speed >= 50 && speed <= 80:
			f.Efficiency = 0.9
		case speed < 20:
			f.Efficiency = 1.3
		case speed > 100:
			f.Efficiency = 1.2
		}
	}

	return f
}
