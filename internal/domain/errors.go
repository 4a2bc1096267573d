package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrAuth indicates the fitness API rejected the refresh credential. It aborts the run.
	ErrAuth = errors.New("authentication rejected")
	// ErrNoWeatherData is returned when the provider has no sample for the requested hour.
	ErrNoWeatherData = errors.New("no weather data for time and place")
	// ErrMalformedResponse is returned when a response body does not match the expected shape.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrNoLocation is returned for activities recorded without a GPS start point.
	ErrNoLocation = errors.New("activity has no start location")
)

// APIError represents a non-successful response from a remote API.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s failed with status %d %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// IsAPIError reports whether err wraps an *APIError and returns it.
func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// Malformed wraps a parse failure so callers can match ErrMalformedResponse.
func Malformed(op string, err error) error {
	if err == nil {
		return fmt.Errorf("%s: %w", op, ErrMalformedResponse)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrMalformedResponse, err)
}
