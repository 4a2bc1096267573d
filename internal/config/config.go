// Package config centralises configuration parsing for the weather annotation job.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"example.com/stravaweather/internal/domain"
	"example.com/stravaweather/internal/strava"
	"example.com/stravaweather/internal/weather"
)

// ErrMissingConfig is returned by Validate when required variables are unset.
var ErrMissingConfig = errors.New("missing required configuration")

// Config captures runtime configuration values for the job.
type Config struct {
	StravaClientID     string
	StravaClientSecret string
	StravaRefreshToken string
	StravaBaseURL      string
	WeatherAPIKey      string // Optional; the public archive endpoint needs none.
	WeatherBaseURL     string
	ActivityCount      int
	ActivityLookback   time.Duration // Zero means no time bound on the listing.
	HTTPTimeout        time.Duration
	DryRun             bool
	KafkaBrokers       []string // Empty disables event publishing.
	KafkaTopic         string
	PushgatewayURL     string
}

// Load reads environment variables into Config, applying defaults. Values from .env
// files never override variables already present in the environment.
func Load() Config {
	LoadDotEnv(".env.local", ".env")

	return Config{
		StravaClientID:     getEnv("STRAVA_CLIENT_ID", ""),
		StravaClientSecret: getEnv("STRAVA_CLIENT_SECRET", ""),
		StravaRefreshToken: getEnv("STRAVA_REFRESH_TOKEN", ""),
		StravaBaseURL:      getEnv("STRAVA_BASE_URL", strava.DefaultBaseURL),
		WeatherAPIKey:      getEnv("WEATHER_API_KEY", ""),
		WeatherBaseURL:     getEnv("WEATHER_BASE_URL", weather.DefaultBaseURL),
		ActivityCount:      getIntEnv("ACTIVITY_COUNT", 5),
		ActivityLookback:   getDurationEnv("ACTIVITY_LOOKBACK", 0),
		HTTPTimeout:        getDurationEnv("HTTP_TIMEOUT", 30*time.Second),
		DryRun:             getBoolEnv("DRY_RUN", false),
		KafkaBrokers:       splitAndTrim(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:         getEnv("KAFKA_TOPIC", "activity_weather_events"),
		PushgatewayURL:     getEnv("PUSHGATEWAY_URL", ""),
	}
}

// Validate reports every required variable that is missing.
func (c Config) Validate() error {
	var missing []string
	if c.StravaClientID == "" {
		missing = append(missing, "STRAVA_CLIENT_ID")
	}
	if c.StravaClientSecret == "" {
		missing = append(missing, "STRAVA_CLIENT_SECRET")
	}
	if c.StravaRefreshToken == "" {
		missing = append(missing, "STRAVA_REFRESH_TOKEN")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingConfig, strings.Join(missing, ", "))
	}
	if c.ActivityCount <= 0 || c.ActivityCount > strava.MaxPerPage {
		return fmt.Errorf("ACTIVITY_COUNT must be between 1 and %d, got %d", strava.MaxPerPage, c.ActivityCount)
	}
	return nil
}

// Credential returns the fitness API secrets.
func (c Config) Credential() domain.Credential {
	return domain.Credential{
		ClientID:     c.StravaClientID,
		ClientSecret: c.StravaClientSecret,
		RefreshToken: c.StravaRefreshToken,
	}
}

// LoadDotEnv loads the given files when present. Setting DOTENV=off skips loading.
func LoadDotEnv(paths ...string) {
	if dotEnvDisabled() {
		return
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			log.Printf("config: failed to load %s: %v", p, err)
			continue
		}
		log.Printf("config: loaded env from %s", p)
	}
}

func dotEnvDisabled() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DOTENV"))) {
	case "0", "false", "off", "no":
		return true
	default:
		return false
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
