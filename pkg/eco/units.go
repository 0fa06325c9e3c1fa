package eco

import (
	"strconv"
	"strings"
)

// MilesToKm is the conversion factor between statute miles and kilometers.
const MilesToKm = 1.60934

// ParseDistanceKm converts a human-readable distance string such as
// "10.7 km", "1,024 km" or "3.2 mi" into kilometers. Unparseable input
// yields 0.0, never an error; downstream stages treat zero distance as
// "unknown" and degrade accordingly.
func ParseDistanceKm(text string) float64 {
	switch {
	case strings.Contains(text, "km"):
		v, err := parseNumber(strings.Replace(text, "km", "", 1))
		if err != nil {
			return 0.0
		}
		return v
	case strings.Contains(text, "mi"):
		v, err := parseNumber(strings.Replace(text, "mi", "", 1))
		if err != nil {
			return 0.0
		}
		return v * MilesToKm
	default:
		return 0.0
	}
}

func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	return strconv.ParseFloat(s, 64)
}

// ParseDurationMinutes converts a human-readable duration string such as
// "15 mins", "1 hour 30 mins" or "2 hours 15 mins" into total minutes.
// Unparseable input yields 0.
func ParseDurationMinutes(text string) int {
	lower := strings.ToLower(text)

	// Hours component first; minutes may follow in the remainder.
	if idx := strings.Index(lower, "hour"); idx >= 0 {
		hours, err := parseInt(lower[:idx])
		if err != nil {
			return 0
		}
		total := hours * 60

		remainder := lower[idx:]
		remainder = strings.TrimPrefix(remainder, "hours")
		remainder = strings.TrimPrefix(remainder, "hour")
		if minIdx := strings.Index(remainder, "min"); minIdx >= 0 {
			if mins, err := parseInt(remainder[:minIdx]); err == nil {
				total += mins
			}
		}
		return total
	}

	if idx := strings.Index(lower, "min"); idx >= 0 {
		mins, err := parseInt(lower[:idx])
		if err != nil {
			return 0
		}
		return mins
	}

	return 0
}

func parseInt(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}

// TrafficDelayMinutes derives the congestion delay from a route's normal
// and in-traffic duration strings. Negative deltas clamp to zero.
func TrafficDelayMinutes(normal, inTraffic string) int {
	delay := ParseDurationMinutes(inTraffic) - ParseDurationMinutes(normal)
	if delay < 0 {
		return 0
	}
	return delay
}

// FormatDuration renders a duration in seconds in the same human-readable
// form the directions provider uses ("1 hour 5 mins", "15 mins").
func FormatDuration(seconds int) string {
	minutes := seconds / 60
	hours := minutes / 60
	rem := minutes % 60

	var b strings.Builder
	if hours > 0 {
		b.WriteString(strconv.Itoa(hours))
		if hours > 1 {
			b.WriteString(" hours ")
		} else {
			b.WriteString(" hour ")
		}
		b.WriteString(strconv.Itoa(rem))
		if rem == 1 {
			b.WriteString(" min")
		} else {
			b.WriteString(" mins")
		}
		return b.String()
	}

	b.WriteString(strconv.Itoa(minutes))
	if minutes == 1 {
		b.WriteString(" min")
	} else {
		b.WriteString(" mins")
	}
	return b.String()
}
