package strava

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"time"

	"example.com/stravaweather/internal/domain"
	"example.com/stravaweather/internal/summary"
)

const (
	activitiesPath = "/api/v3/athlete/activities"
	activityPath   = "/api/v3/activities/"

	// DefaultPerPage matches the number of recent activities inspected per run.
	DefaultPerPage = 5
	// MaxPerPage is the largest page the listing endpoint serves.
	MaxPerPage = 200
)

type activityPayload struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	SportType   string    `json:"sport_type"`
	StartDate   string    `json:"start_date"`
	StartLatLng []float64 `json:"start_latlng"`
	Description *string   `json:"description"`
}

func (p activityPayload) toDomain() (domain.Activity, error) {
	if p.ID <= 0 {
		return domain.Activity{}, fmt.Errorf("missing activity id")
	}
	started, err := time.Parse(time.RFC3339, p.StartDate)
	if err != nil {
		return domain.Activity{}, fmt.Errorf("activity %d: invalid start_date: %w", p.ID, err)
	}

	activity := domain.Activity{
		ID:        p.ID,
		Name:      p.Name,
		SportType: p.SportType,
		StartDate: started.UTC(),
	}
	switch len(p.StartLatLng) {
	case 0:
	case 2:
		activity.StartLatLng = &domain.LatLng{Lat: p.StartLatLng[0], Lng: p.StartLatLng[1]}
	default:
		return domain.Activity{}, fmt.Errorf("activity %d: start_latlng has %d elements", p.ID, len(p.StartLatLng))
	}
	if p.Description != nil {
		activity.Description = *p.Description
	}
	return activity, nil
}

// ListRecent returns up to opts.PerPage of the athlete's most recent activities, newest
// first. A non-zero opts.After drops activities that started at or before it. The endpoint
// orders results oldest first when given its own after parameter, so the bound is applied
// locally.
func (c *Client) ListRecent(ctx context.Context, tok domain.Token, opts domain.ListOptions) ([]domain.Activity, error) {
	const op = "list activities"

	perPage := opts.PerPage
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}

	query := url.Values{}
	query.Set("per_page", strconv.Itoa(perPage))

	req, err := c.newRequest(ctx, http.MethodGet, activitiesPath+"?"+query.Encode(), tok, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req, op)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload []activityPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, domain.Malformed(op, err)
	}

	activities := make([]domain.Activity, 0, len(payload))
	for _, p := range payload {
		activity, err := p.toDomain()
		if err != nil {
			return nil, domain.Malformed(op, err)
		}
		if !opts.After.IsZero() && !activity.StartDate.After(opts.After) {
			continue
		}
		activities = append(activities, activity)
	}
	slices.SortStableFunc(activities, func(a, b domain.Activity) int {
		return b.StartDate.Compare(a.StartDate)
	})
	return activities, nil
}

// GetActivity fetches the detailed representation, which carries the description that
// the summary listing omits.
func (c *Client) GetActivity(ctx context.Context, tok domain.Token, id int64) (domain.Activity, error) {
	const op = "get activity"

	req, err := c.newRequest(ctx, http.MethodGet, activityPath+strconv.FormatInt(id, 10), tok, nil)
	if err != nil {
		return domain.Activity{}, err
	}
	resp, err := c.do(req, op)
	if err != nil {
		return domain.Activity{}, err
	}
	defer resp.Body.Close()

	var payload activityPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return domain.Activity{}, domain.Malformed(op, err)
	}
	activity, err := payload.toDomain()
	if err != nil {
		return domain.Activity{}, domain.Malformed(op, err)
	}
	if activity.ID != id {
		return domain.Activity{}, domain.Malformed(op, fmt.Errorf("requested activity %d, got %d", id, activity.ID))
	}
	return activity, nil
}

// AppendDescription appends block to the activity description. When the description
// already carries a weather block it returns false without touching the network.
func (c *Client) AppendDescription(ctx context.Context, tok domain.Token, activity domain.Activity, block string) (bool, error) {
	const op = "update activity"

	if summary.HasBlock(activity.Description) {
		return false, nil
	}

	body, err := json.Marshal(map[string]string{
		"description": summary.Append(activity.Description, block),
	})
	if err != nil {
		return false, err
	}

	req, err := c.newRequest(ctx, http.MethodPut, activityPath+strconv.FormatInt(activity.ID, 10), tok, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req, op)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return true, nil
}
