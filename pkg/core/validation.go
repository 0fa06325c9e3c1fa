// Package core provides shared utilities for the eco-routing services.
package core

import (
	"fmt"
	"net/url"
	"strconv"
)

// ValidateCoords checks if latitude and longitude are within valid ranges
func ValidateCoords(lat, lon float64) error {
	if lat < -90 || lat > 90 {
		return NewError(ErrInvalidLatitude,
			fmt.Sprintf("Latitude must be between -90 and 90, got %f", lat)).
			WithGuidance("Ensure latitude is in decimal degrees")
	}
	if lon < -180 || lon > 180 {
		return NewError(ErrInvalidLongitude,
			fmt.Sprintf("Longitude must be between -180 and 180, got %f", lon)).
			WithGuidance("Ensure longitude is in decimal degrees")
	}
	return nil
}

// ValidateRadius checks if a radius is within the valid range
func ValidateRadius(radius, maxRadius float64) error {
	if radius <= 0 {
		return NewError(ErrInvalidRadius,
			fmt.Sprintf("Radius must be greater than 0, got %f", radius)).
			WithGuidance("Specify a positive radius value")
	}
	if maxRadius > 0 && radius > maxRadius {
		return NewError(ErrRadiusTooLarge,
			fmt.Sprintf("Radius must be less than or equal to %f, got %f", maxRadius, radius)).
			WithGuidance(fmt.Sprintf("Specify a radius less than %f", maxRadius))
	}
	return nil
}

// ParseFloat extracts a float parameter from query values, falling back to
// a default when the parameter is absent or unparseable.
func ParseFloat(values url.Values, key string, def float64) float64 {
	raw := values.Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return v
}

// ParseCoords extracts and validates latitude and longitude from query values.
// It allows specifying alternative key names for latitude and longitude.
func ParseCoords(values url.Values, latKey, lonKey string, defLat, defLon float64) (float64, float64, error) {
	if latKey == "" {
		latKey = "lat"
	}
	if lonKey == "" {
		lonKey = "lon"
	}

	lat := ParseFloat(values, latKey, defLat)
	lon := ParseFloat(values, lonKey, defLon)

	if err := ValidateCoords(lat, lon); err != nil {
		return 0, 0, err
	}

	return lat, lon, nil
}

// ParseRadius extracts and validates a radius from query values
func ParseRadius(values url.Values, key string, defaultRadius, maxRadius float64) (float64, error) {
	if key == "" {
		key = "radius"
	}

	radius := ParseFloat(values, key, defaultRadius)

	if err := ValidateRadius(radius, maxRadius); err != nil {
		return 0, err
	}

	return radius, nil
}
