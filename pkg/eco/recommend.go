package eco

// Advisory texts returned by GenerateRecommendations.
const (
	adviceHighEmissions   = "High emissions detected. Consider alternative transportation."
	adviceOffPeak         = "Heavy traffic increases emissions by 20-40%. Try traveling during off-peak hours."
	adviceWeatherCaution  = "Weather conditions are affecting fuel efficiency. Drive more cautiously."
	adviceCarAlternatives = "Consider public transport, cycling, or walking for eco-friendly alternatives."
	advicePositive        = "Great eco-friendly choice! You're helping reduce environmental impact."
)

// GenerateRecommendations maps a score and its factors to advisory strings.
// The rules are evaluated independently in a fixed order; every matching
// rule contributes, so the list can hold zero to five entries.
func GenerateRecommendations(ecoScore int, f Factors, vehicleType string) []string {
	recs := []string{}

	if ecoScore < 40 {
		recs = append(recs, adviceHighEmissions)
	}
	if f.Traffic > 1.2 {
		recs = append(recs, adviceOffPeak)
	}
	if f.Weather > 1.1 {
		recs = append(recs, adviceWeatherCaution)
	}
	if vehicleType == "car" {
		recs = append(recs, adviceCarAlternatives)
	}
	if ecoScore > 70 {
		recs = append(recs, advicePositive)
	}

	return recs
}
