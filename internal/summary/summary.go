// Package summary renders the weather block appended to activity descriptions.
package summary

import (
	"fmt"
	"math"
	"strings"

	"example.com/stravaweather/internal/domain"
)

// Marker is present in every rendered block; its presence in a description means the
// activity has already been annotated.
const Marker = "🌡️"

const (
	separator   = " | "
	unavailable = "n/a"
	unknown     = "Unknown"
)

// Format renders the fixed weather template. It never fails: missing readings fall back
// to placeholders and a missing humidity reading drops that segment.
func Format(s domain.WeatherSample) string {
	condition := strings.TrimSpace(s.ConditionText)
	if condition == "" {
		condition = unknown
	}

	parts := []string{
		"🌤️ " + condition,
		fmt.Sprintf("%s %s°C (feels like %s°C)", Marker, round(s.TemperatureC), round(s.FeelsLikeC)),
		fmt.Sprintf("💨 %s km/h", round(s.WindKph)),
	}
	if !math.IsNaN(s.HumidityPct) && !math.IsInf(s.HumidityPct, 0) {
		parts = append(parts, fmt.Sprintf("💧 %s%%", round(s.HumidityPct)))
	}
	return strings.Join(parts, separator)
}

// HasBlock reports whether description already carries a weather block.
func HasBlock(description string) bool {
	return strings.Contains(description, Marker)
}

// Append places block after the existing description, separated by a blank line.
func Append(description, block string) string {
	description = strings.TrimRight(description, " \t\r\n")
	if description == "" {
		return block
	}
	return description + "\n\n" + block
}

func round(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return unavailable
	}
	// int conversion avoids rendering "-0" for small negative readings.
	return fmt.Sprintf("%d", int(math.Round(v)))
}
