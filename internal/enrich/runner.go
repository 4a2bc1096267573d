// Package enrich sequences one annotation run: authenticate, list recent activities and
// append a weather block to each activity that lacks one.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"example.com/stravaweather/internal/domain"
	"example.com/stravaweather/internal/events"
	"example.com/stravaweather/internal/observability"
	"example.com/stravaweather/internal/summary"
)

// TokenSource exchanges the refresh credential for an access token.
type TokenSource interface {
	Refresh(ctx context.Context, cred domain.Credential) (domain.Token, error)
}

// ActivityClient lists, reads and updates activities on the fitness API.
type ActivityClient interface {
	ListRecent(ctx context.Context, tok domain.Token, opts domain.ListOptions) ([]domain.Activity, error)
	GetActivity(ctx context.Context, tok domain.Token, id int64) (domain.Activity, error)
	AppendDescription(ctx context.Context, tok domain.Token, activity domain.Activity, block string) (bool, error)
}

// WeatherClient returns historical conditions for a coordinate and time.
type WeatherClient interface {
	Fetch(ctx context.Context, loc domain.LatLng, at time.Time) (domain.WeatherSample, error)
}

// Option configures optional behaviour for the Runner.
type Option func(*Runner)

// WithLogger overrides the logger used to report progress.
func WithLogger(logger *log.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithPublisher sets the publisher notified after each successful update.
func WithPublisher(publisher events.Publisher) Option {
	return func(r *Runner) {
		r.publisher = publisher
	}
}

// WithListing bounds the listing by count and by a lookback window (zero disables it).
func WithListing(perPage int, lookback time.Duration) Option {
	return func(r *Runner) {
		r.perPage = perPage
		r.lookback = lookback
	}
}

// WithDryRun formats weather blocks without updating any activity.
func WithDryRun(dryRun bool) Option {
	return func(r *Runner) {
		r.dryRun = dryRun
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

// Runner performs a single sequential annotation run.
type Runner struct {
	tokens     TokenSource
	activities ActivityClient
	weather    WeatherClient
	publisher  events.Publisher
	logger     *log.Logger
	perPage    int
	lookback   time.Duration
	dryRun     bool
	now        func() time.Time
}

// NewRunner constructs a Runner with the provided clients.
func NewRunner(tokens TokenSource, activities ActivityClient, weather WeatherClient, opts ...Option) *Runner {
	r := &Runner{
		tokens:     tokens,
		activities: activities,
		weather:    weather,
		publisher:  events.NopPublisher{},
		logger:     log.New(log.Writer(), "[enrich] ", log.LstdFlags),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the job once. A non-nil error means the run ended in the failed state:
// the credential was rejected or the activity listing could not be fetched. Per-activity
// failures are logged, counted in the report and never abort the run.
func (r *Runner) Run(ctx context.Context, cred domain.Credential) (*Report, error) {
	report := newReport(uuid.NewString(), r.now())
	r.logger.Printf("run %s: starting", report.RunID)

	tok, err := r.tokens.Refresh(ctx, cred)
	if err != nil {
		return r.fail(report, fmt.Errorf("authenticate: %w", err))
	}
	report.transition(domain.RunStateAuthenticated)
	if tok.Rotated(cred) {
		r.logger.Printf("run %s: refresh token was rotated by the provider; update STRAVA_REFRESH_TOKEN", report.RunID)
	}

	report.transition(domain.RunStateListing)
	opts := domain.ListOptions{PerPage: r.perPage}
	if r.lookback > 0 {
		opts.After = report.StartedAt.Add(-r.lookback)
	}
	activities, err := r.activities.ListRecent(ctx, tok, opts)
	if err != nil {
		return r.fail(report, fmt.Errorf("list activities: %w", err))
	}
	report.Listed = len(activities)
	r.logger.Printf("run %s: found %d recent activities", report.RunID, len(activities))

	report.transition(domain.RunStatePerActivity)
	for _, activity := range activities {
		if err := ctx.Err(); err != nil {
			return r.fail(report, err)
		}
		outcome := r.process(ctx, tok, report.RunID, activity)
		report.record(outcome)
		observability.RecordOutcome(outcome)
	}

	report.transition(domain.RunStateDone)
	report.FinishedAt = r.now()
	observability.RecordRun(report.State, report.StartedAt, report.FinishedAt)
	r.logger.Printf("run %s: done (%s)", report.RunID, report.Summary())
	return report, nil
}

func (r *Runner) fail(report *Report, err error) (*Report, error) {
	report.transition(domain.RunStateFailed)
	report.FinishedAt = r.now()
	observability.RecordRun(report.State, report.StartedAt, report.FinishedAt)
	r.logger.Printf("run %s: failed: %v", report.RunID, err)
	return report, err
}

// process handles one activity. Log lines carry the activity id and outcome only: never
// the activity name nor its coordinates.
func (r *Runner) process(ctx context.Context, tok domain.Token, runID string, listed domain.Activity) domain.Outcome {
	activity, err := r.activities.GetActivity(ctx, tok, listed.ID)
	if err != nil {
		r.logger.Printf("activity %d: fetching details failed, skipping: %s", listed.ID, reason(err))
		return domain.OutcomeDetailsFailed
	}

	if summary.HasBlock(activity.Description) {
		r.logger.Printf("activity %d: already has weather info, skipping", activity.ID)
		return domain.OutcomeAlreadyTagged
	}
	if !activity.HasLocation() {
		r.logger.Printf("activity %d: no GPS data, skipping", activity.ID)
		return domain.OutcomeNoLocation
	}

	sample, err := r.weather.Fetch(ctx, *activity.StartLatLng, activity.StartDate)
	if err != nil {
		r.logger.Printf("activity %d: weather unavailable, skipping: %s", activity.ID, reason(err))
		return domain.OutcomeWeatherFailed
	}
	block := summary.Format(sample)

	if r.dryRun {
		r.logger.Printf("activity %d: dry run, would append %q", activity.ID, block)
		return domain.OutcomeDryRun
	}

	updated, err := r.activities.AppendDescription(ctx, tok, activity, block)
	if err != nil {
		r.logger.Printf("activity %d: update failed, skipping: %s", activity.ID, reason(err))
		return domain.OutcomeUpdateFailed
	}
	if !updated {
		return domain.OutcomeAlreadyTagged
	}
	r.logger.Printf("activity %d: appended weather block", activity.ID)

	evt := events.WeatherAppended{
		EventID:      uuid.NewString(),
		RunID:        runID,
		ActivityID:   activity.ID,
		SportType:    activity.SportType,
		Condition:    sample.ConditionText,
		TemperatureC: sample.TemperatureC,
		OccurredAt:   r.now(),
	}
	if err := r.publisher.PublishWeatherAppended(ctx, evt); err != nil {
		r.logger.Printf("activity %d: publish event failed: %v", activity.ID, err)
		observability.RecordPublishError()
	}
	return domain.OutcomeUpdated
}

// reason renders err without response bodies or URLs, either of which may echo
// coordinates back.
func reason(err error) string {
	switch {
	case errors.Is(err, domain.ErrNoWeatherData):
		return "no data for that hour"
	case errors.Is(err, domain.ErrMalformedResponse):
		return "malformed response"
	case errors.Is(err, context.DeadlineExceeded):
		return "timed out"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	}
	if apiErr, ok := domain.IsAPIError(err); ok {
		return fmt.Sprintf("%s returned status %d", apiErr.Op, apiErr.StatusCode)
	}
	return "request failed"
}
