package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"example.com/stravaweather/internal/config"
	"example.com/stravaweather/internal/enrich"
	"example.com/stravaweather/internal/events"
	"example.com/stravaweather/internal/observability"
	"example.com/stravaweather/internal/strava"
	"example.com/stravaweather/internal/weather"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Printf("invalid configuration: %v", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stravaClient := strava.NewClient(cfg.StravaBaseURL, cfg.HTTPTimeout)
	weatherClient := weather.NewClient(cfg.WeatherBaseURL, cfg.WeatherAPIKey, cfg.HTTPTimeout)

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Printf("closing event publisher: %v", err)
		}
	}()

	runner := enrich.NewRunner(stravaClient, stravaClient, weatherClient,
		enrich.WithPublisher(publisher),
		enrich.WithListing(cfg.ActivityCount, cfg.ActivityLookback),
		enrich.WithDryRun(cfg.DryRun),
	)

	_, runErr := runner.Run(ctx, cfg.Credential())

	// Push even after a failed run so the failure is visible on the gateway.
	pushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := observability.Push(pushCtx, cfg.PushgatewayURL); err != nil {
		log.Printf("pushing metrics failed: %v", err)
	}

	if runErr != nil {
		return 1
	}
	return 0
}
