package observability

import (
	"context"
	"strings"

	"github.com/prometheus/client_golang/prometheus/push"
)

const jobName = "stravaweather"

// Push sends the job metrics to a Pushgateway. An empty URL disables pushing.
func Push(ctx context.Context, gatewayURL string) error {
	gatewayURL = strings.TrimSpace(gatewayURL)
	if gatewayURL == "" {
		return nil
	}
	return push.New(gatewayURL, jobName).
		Gatherer(Registry).
		PushContext(ctx)
}
