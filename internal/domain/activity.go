// Package domain defines the types shared by the weather annotation job.
package domain

import (
	"math"
	"time"
)

// Credential holds the long-lived secrets used to mint access tokens.
type Credential struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// Token is the short-lived bearer credential. It lives only for the process lifetime
// and is passed explicitly to every call that needs it.
type Token struct {
	AccessToken string
	// RefreshToken is the refresh token returned with the access token; the provider may
	// rotate it.
	RefreshToken string
	ExpiresAt    time.Time
}

// Rotated reports whether the token endpoint handed back a refresh token different from
// the one in cred.
func (t Token) Rotated(cred Credential) bool {
	return t.RefreshToken != "" && t.RefreshToken != cred.RefreshToken
}

// LatLng is a geographic coordinate. It must never appear in log output.
type LatLng struct {
	Lat float64
	Lng float64
}

// Activity represents a recorded exercise session owned by the remote service.
type Activity struct {
	ID          int64
	Name        string
	SportType   string
	StartDate   time.Time
	StartLatLng *LatLng
	Description string
}

// HasLocation reports whether the activity carries a GPS start point.
func (a Activity) HasLocation() bool {
	return a.StartLatLng != nil
}

// WeatherSample captures conditions for a single hour. Missing numeric readings are NaN.
type WeatherSample struct {
	TemperatureC  float64
	FeelsLikeC    float64
	WindKph       float64
	HumidityPct   float64
	WeatherCode   int
	ConditionText string
}

// NewWeatherSample returns a sample with every numeric reading marked missing.
func NewWeatherSample() WeatherSample {
	nan := math.NaN()
	return WeatherSample{
		TemperatureC: nan,
		FeelsLikeC:   nan,
		WindKph:      nan,
		HumidityPct:  nan,
		WeatherCode:  -1,
	}
}

// ListOptions bounds an activity listing by count and, optionally, by start time.
type ListOptions struct {
	PerPage int
	After   time.Time
}
