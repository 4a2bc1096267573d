// Package events publishes notifications about annotated activities for downstream consumers.
package events

import (
	"context"
	"time"
)

// TypeWeatherAppended is the event_type header value for WeatherAppended.
const TypeWeatherAppended = "activity.weather_appended"

// WeatherAppended is emitted after an activity description gained a weather block. It
// deliberately carries no coordinates and no activity name.
type WeatherAppended struct {
	EventID      string    `json:"event_id"`
	RunID        string    `json:"run_id"`
	ActivityID   int64     `json:"activity_id"`
	SportType    string    `json:"sport_type,omitempty"`
	Condition    string    `json:"condition"`
	TemperatureC float64   `json:"temperature_c"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Publisher delivers events.
type Publisher interface {
	PublishWeatherAppended(ctx context.Context, evt WeatherAppended) error
	Close() error
}

// NopPublisher discards every event. It is used when no broker is configured.
type NopPublisher struct{}

// PublishWeatherAppended does nothing.
func (NopPublisher) PublishWeatherAppended(context.Context, WeatherAppended) error { return nil }

// Close does nothing.
func (NopPublisher) Close() error { return nil }
