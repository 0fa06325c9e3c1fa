package eco

import "math"

// Base emission factors in kg CO2 per km by vehicle type. Unknown vehicle
// types fall back to the average car.
const (
	CarCO2PerKm         = 0.21
	BusCO2PerKm         = 0.089
	TrainCO2PerKm       = 0.041
	BicycleCO2PerKm     = 0.0
	WalkingCO2PerKm     = 0.0
	ElectricCarCO2PerKm = 0.05
	HybridCarCO2PerKm   = 0.12
	MotorcycleCO2PerKm  = 0.15
)

var baseEmissionFactors = map[string]float64{
	"car":          CarCO2PerKm,
	"bus":          BusCO2PerKm,
	"train":        TrainCO2PerKm,
	"bicycle":      BicycleCO2PerKm,
	"walking":      WalkingCO2PerKm,
	"electric_car": ElectricCarCO2PerKm,
	"hybrid_car":   HybridCarCO2PerKm,
	"motorcycle":   MotorcycleCO2PerKm,
}

// BaseEmissionFactor returns the kg CO2 per km baseline for a vehicle type,
// defaulting to the car factor for unknown types.
func BaseEmissionFactor(vehicleType string) float64 {
	if f, ok := baseEmissionFactors[vehicleType]; ok {
		return f
	}
	return CarCO2PerKm
}

// EstimateEmissions computes the adjusted CO2, NOx and PM totals for a trip.
//
// Only the traffic and weather factors enter the emission totals; the route
// and efficiency factors adjust the eco score alone. NOx scales again with
// traffic (idling engines), PM with weather (dispersion).
func EstimateEmissions(distanceKm float64, vehicleType string, f Factors) (co2Kg, noxKg, pmKg float64) {
	adjustedPerKm := BaseEmissionFactor(vehicleType) * f.Traffic * f.Weather
	co2Kg = Round3(distanceKm * adjustedPerKm)
	noxKg = Round3(co2Kg * 0.15 * f.Traffic)
	pmKg = Round3(co2Kg * 0.05 * f.Weather)
	return co2Kg, noxKg, pmKg
}

// AdjustedEmissionFactor returns the per-km CO2 rate after traffic and
// weather adjustment, rounded to 4 decimals for reporting.
func AdjustedEmissionFactor(vehicleType string, f Factors) float64 {
	return math.Round(BaseEmissionFactor(vehicleType)*f.Traffic*f.Weather*1e4) / 1e4
}

// Round3 rounds to 3 decimal places, the precision used for all reported
// emission masses.
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
