package events

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(context.Context, ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a single topic.
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaPublisher creates a synchronous writer for topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			RequiredAcks:           kafka.RequireAll,
			Compression:            kafka.Snappy,
			BatchTimeout:           10 * time.Millisecond,
			AllowAutoTopicCreation: true,
			Async:                  false,
		},
	}
}

// PublishWeatherAppended writes evt keyed by activity id.
func (p *KafkaPublisher) PublishWeatherAppended(ctx context.Context, evt WeatherAppended) error {
	if math.IsNaN(evt.TemperatureC) || math.IsInf(evt.TemperatureC, 0) {
		// JSON has no NaN.
		evt.TemperatureC = 0
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(evt.ActivityID, 10)),
		Value: payload,
		Time:  evt.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(TypeWeatherAppended)},
			{Key: "run_id", Value: []byte(evt.RunID)},
		},
	})
}

// Close flushes and releases the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
