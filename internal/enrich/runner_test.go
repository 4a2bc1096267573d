package enrich

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/stravaweather/internal/domain"
	"example.com/stravaweather/internal/events"
	"example.com/stravaweather/internal/summary"
)

var (
	testCred = domain.Credential{ClientID: "1", ClientSecret: "s", RefreshToken: "r"}
	fixedNow = time.Date(2025, time.May, 4, 7, 0, 0, 0, time.UTC)
)

func TestRunAppendsWeatherToEveryActivity(t *testing.T) {
	strava := newFakeStrava(
		activity(1, "Morning Run", "", 51.5074, -0.1278),
		activity(2, "Commute", "to work", 48.8566, 2.3522),
		activity(3, "Hills", "legs hurt", 40.4168, -3.7038),
	)
	runner := newTestRunner(t, &fakeTokens{}, strava, &fakeWeather{})

	report, err := runner.Run(context.Background(), testCred)
	require.NoError(t, err)
	require.Equal(t, domain.RunStateDone, report.State)
	require.Equal(t, []domain.RunState{
		domain.RunStateInit,
		domain.RunStateAuthenticated,
		domain.RunStateListing,
		domain.RunStatePerActivity,
		domain.RunStateDone,
	}, report.History)
	require.Equal(t, 3, report.Listed)
	require.Equal(t, 3, report.Updated())
	require.Equal(t, 3, strava.updateCalls)

	for _, id := range []int64{1, 2, 3} {
		require.Equal(t, 1, strings.Count(strava.byID[id].Description, summary.Marker), "activity %d", id)
	}
	require.True(t, strings.HasPrefix(strava.byID[2].Description, "to work\n\n🌤️ Partly cloudy"))
}

func TestRunIsIdempotent(t *testing.T) {
	strava := newFakeStrava(
		activity(1, "Morning Run", "", 51.5074, -0.1278),
		activity(2, "Commute", "to work", 48.8566, 2.3522),
	)
	weather := &fakeWeather{}
	runner := newTestRunner(t, &fakeTokens{}, strava, weather)

	_, err := runner.Run(context.Background(), testCred)
	require.NoError(t, err)
	first := map[int64]string{1: strava.byID[1].Description, 2: strava.byID[2].Description}
	updatesAfterFirst := strava.updateCalls
	weatherAfterFirst := weather.calls

	report, err := runner.Run(context.Background(), testCred)
	require.NoError(t, err)
	require.Equal(t, updatesAfterFirst, strava.updateCalls)
	require.Equal(t, weatherAfterFirst, weather.calls)
	require.Equal(t, 2, report.Outcomes[domain.OutcomeAlreadyTagged])
	require.Equal(t, first[1], strava.byID[1].Description)
	require.Equal(t, first[2], strava.byID[2].Description)
}

func TestRunAuthFailureAbortsBeforeListing(t *testing.T) {
	strava := newFakeStrava(activity(1, "Run", "", 1, 1))
	tokens := &fakeTokens{err: errors.Join(domain.ErrAuth, errors.New("status 400"))}
	runner := newTestRunner(t, tokens, strava, &fakeWeather{})

	report, err := runner.Run(context.Background(), testCred)
	require.ErrorIs(t, err, domain.ErrAuth)
	require.Equal(t, domain.RunStateFailed, report.State)
	require.Equal(t, []domain.RunState{domain.RunStateInit, domain.RunStateFailed}, report.History)
	require.Zero(t, strava.listCalls)
	require.Zero(t, strava.updateCalls)
}

func TestRunListingFailureIsFatal(t *testing.T) {
	strava := newFakeStrava()
	strava.listErr = &domain.APIError{Op: "list activities", StatusCode: 500}
	runner := newTestRunner(t, &fakeTokens{}, strava, &fakeWeather{})

	report, err := runner.Run(context.Background(), testCred)
	_, isAPI := domain.IsAPIError(err)
	require.True(t, isAPI)
	require.Equal(t, domain.RunStateFailed, report.State)
	require.Zero(t, strava.updateCalls)
}

func TestRunSkipsActivityWhenWeatherFails(t *testing.T) {
	strava := newFakeStrava(
		activity(1, "One", "", 10, 10),
		activity(2, "Two", "", 20, 20),
		activity(3, "Three", "", 30, 30),
	)
	weather := &fakeWeather{errs: map[float64]error{20: domain.ErrNoWeatherData}}
	runner := newTestRunner(t, &fakeTokens{}, strava, weather)

	report, err := runner.Run(context.Background(), testCred)
	require.NoError(t, err)
	require.Equal(t, domain.RunStateDone, report.State)
	require.Equal(t, 2, report.Updated())
	require.Equal(t, 1, report.Outcomes[domain.OutcomeWeatherFailed])
	require.True(t, summary.HasBlock(strava.byID[1].Description))
	require.False(t, summary.HasBlock(strava.byID[2].Description))
	require.True(t, summary.HasBlock(strava.byID[3].Description))
}

func TestRunContinuesAfterPerActivityFailures(t *testing.T) {
	noGPS := activity(2, "Treadmill", "", 0, 0)
	noGPS.StartLatLng = nil
	strava := newFakeStrava(
		activity(1, "Details broken", "", 10, 10),
		noGPS,
		activity(3, "Update rejected", "", 30, 30),
		activity(4, "Fine", "", 40, 40),
	)
	strava.detailErrs = map[int64]error{1: &domain.APIError{Op: "get activity", StatusCode: 404}}
	strava.updateErrs = map[int64]error{3: &domain.APIError{Op: "update activity", StatusCode: 403}}
	runner := newTestRunner(t, &fakeTokens{}, strava, &fakeWeather{})

	report, err := runner.Run(context.Background(), testCred)
	require.NoError(t, err)
	require.Equal(t, 1, report.Outcomes[domain.OutcomeDetailsFailed])
	require.Equal(t, 1, report.Outcomes[domain.OutcomeNoLocation])
	require.Equal(t, 1, report.Outcomes[domain.OutcomeUpdateFailed])
	require.Equal(t, 1, report.Updated())
	require.Equal(t, 2, report.Failed())
}

func TestRunNeverLogsNamesOrCoordinates(t *testing.T) {
	strava := newFakeStrava(
		activity(1, "Secret Garden Loop", "", 51.5074, -0.1278),
		activity(2, "Home Stretch", "", 48.8566, 2.3522),
		activity(3, "Office Commute", "", 40.4168, -3.7038),
	)
	strava.updateErrs = map[int64]error{3: &domain.APIError{Op: "update activity", StatusCode: 400, Body: `{"lat":40.4168}`}}
	weather := &fakeWeather{errs: map[float64]error{48.8566: &domain.APIError{Op: "fetch weather", StatusCode: 400, Body: "Latitude 48.8566 out of range"}}}

	var buf bytes.Buffer
	runner := NewRunner(&fakeTokens{}, strava, weather, WithLogger(log.New(&buf, "", 0)), WithClock(func() time.Time { return fixedNow }))

	_, err := runner.Run(context.Background(), testCred)
	require.NoError(t, err)

	out := buf.String()
	require.NotEmpty(t, out)
	for _, forbidden := range []string{"Secret Garden", "Home Stretch", "Office Commute", "51.5", "0.127", "48.85", "2.35", "40.41", "3.70"} {
		require.NotContains(t, out, forbidden)
	}
}

func TestRunDryRunPerformsNoUpdates(t *testing.T) {
	strava := newFakeStrava(activity(1, "Run", "", 1, 1))
	runner := newTestRunner(t, &fakeTokens{}, strava, &fakeWeather{}, WithDryRun(true))

	report, err := runner.Run(context.Background(), testCred)
	require.NoError(t, err)
	require.Zero(t, strava.updateCalls)
	require.Equal(t, 1, report.Outcomes[domain.OutcomeDryRun])
	require.Empty(t, strava.byID[1].Description)
}

func TestRunPassesListingBounds(t *testing.T) {
	strava := newFakeStrava()
	runner := newTestRunner(t, &fakeTokens{}, strava, &fakeWeather{}, WithListing(7, 48*time.Hour))

	_, err := runner.Run(context.Background(), testCred)
	require.NoError(t, err)
	require.Equal(t, 7, strava.lastList.PerPage)
	require.Equal(t, fixedNow.Add(-48*time.Hour), strava.lastList.After)
}

func TestRunPublishesEventsAndToleratesPublishErrors(t *testing.T) {
	ride := activity(1, "One", "", 10, 10)
	ride.SportType = "Ride"
	strava := newFakeStrava(
		ride,
		activity(2, "Two", "", 20, 20),
	)
	publisher := &fakePublisher{failFor: map[int64]bool{2: true}}
	runner := newTestRunner(t, &fakeTokens{}, strava, &fakeWeather{}, WithPublisher(publisher))

	report, err := runner.Run(context.Background(), testCred)
	require.NoError(t, err)
	require.Equal(t, 2, report.Updated())
	require.Len(t, publisher.published, 1)

	evt := publisher.published[0]
	require.Equal(t, int64(1), evt.ActivityID)
	require.Equal(t, "Ride", evt.SportType)
	require.Equal(t, report.RunID, evt.RunID)
	require.Equal(t, "Partly cloudy", evt.Condition)
	require.NotEmpty(t, evt.EventID)
}

func TestRunCancelledContextFails(t *testing.T) {
	strava := newFakeStrava(activity(1, "Run", "", 1, 1))
	runner := newTestRunner(t, &fakeTokens{}, strava, &fakeWeather{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := runner.Run(ctx, testCred)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, domain.RunStateFailed, report.State)
	require.Zero(t, strava.updateCalls)
}

func newTestRunner(t *testing.T, tokens TokenSource, strava ActivityClient, weather WeatherClient, opts ...Option) *Runner {
	t.Helper()
	base := []Option{
		WithLogger(log.New(testWriter{t}, "", 0)),
		WithClock(func() time.Time { return fixedNow }),
	}
	return NewRunner(tokens, strava, weather, append(base, opts...)...)
}

func activity(id int64, name, description string, lat, lng float64) domain.Activity {
	return domain.Activity{
		ID:          id,
		Name:        name,
		StartDate:   fixedNow.Add(-time.Duration(id) * time.Hour),
		StartLatLng: &domain.LatLng{Lat: lat, Lng: lng},
		Description: description,
	}
}

type fakeTokens struct {
	err   error
	calls int
}

func (f *fakeTokens) Refresh(context.Context, domain.Credential) (domain.Token, error) {
	f.calls++
	if f.err != nil {
		return domain.Token{}, f.err
	}
	return domain.Token{AccessToken: "access", ExpiresAt: fixedNow.Add(6 * time.Hour)}, nil
}

type fakeStrava struct {
	order       []int64
	byID        map[int64]*domain.Activity
	listErr     error
	detailErrs  map[int64]error
	updateErrs  map[int64]error
	listCalls   int
	updateCalls int
	lastList    domain.ListOptions
}

func newFakeStrava(activities ...domain.Activity) *fakeStrava {
	f := &fakeStrava{byID: make(map[int64]*domain.Activity)}
	for _, a := range activities {
		f.order = append(f.order, a.ID)
		a := a
		f.byID[a.ID] = &a
	}
	return f
}

func (f *fakeStrava) ListRecent(_ context.Context, _ domain.Token, opts domain.ListOptions) ([]domain.Activity, error) {
	f.listCalls++
	f.lastList = opts
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]domain.Activity, 0, len(f.order))
	for _, id := range f.order {
		summaryView := *f.byID[id]
		summaryView.Description = ""
		out = append(out, summaryView)
	}
	return out, nil
}

func (f *fakeStrava) GetActivity(_ context.Context, _ domain.Token, id int64) (domain.Activity, error) {
	if err := f.detailErrs[id]; err != nil {
		return domain.Activity{}, err
	}
	return *f.byID[id], nil
}

func (f *fakeStrava) AppendDescription(_ context.Context, _ domain.Token, a domain.Activity, block string) (bool, error) {
	if summary.HasBlock(a.Description) {
		return false, nil
	}
	f.updateCalls++
	if err := f.updateErrs[a.ID]; err != nil {
		return false, err
	}
	f.byID[a.ID].Description = summary.Append(a.Description, block)
	return true, nil
}

type fakeWeather struct {
	errs  map[float64]error
	calls int
}

func (f *fakeWeather) Fetch(_ context.Context, loc domain.LatLng, _ time.Time) (domain.WeatherSample, error) {
	f.calls++
	if err := f.errs[loc.Lat]; err != nil {
		return domain.WeatherSample{}, err
	}
	sample := domain.NewWeatherSample()
	sample.TemperatureC = 14.2
	sample.FeelsLikeC = 12.4
	sample.WindKph = 8.7
	sample.WeatherCode = 2
	sample.ConditionText = "Partly cloudy"
	return sample, nil
}

type fakePublisher struct {
	failFor   map[int64]bool
	published []events.WeatherAppended
}

func (f *fakePublisher) PublishWeatherAppended(_ context.Context, evt events.WeatherAppended) error {
	if f.failFor[evt.ActivityID] {
		return errors.New("broker unavailable")
	}
	f.published = append(f.published, evt)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

type testWriter struct {
	t *testing.T
}

func (tw testWriter) Write(p []byte) (int, error) {
	tw.t.Log(string(p))
	return len(p), nil
}
