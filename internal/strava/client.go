// Package strava talks to the fitness-tracking API: token refresh, activity listing and
// description updates.
package strava

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"example.com/stravaweather/internal/domain"
)

// DefaultBaseURL is the production API host.
const DefaultBaseURL = "https://www.strava.com"

const maxErrorBody = 512

// Client provides minimal interactions with the Strava REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures optional behaviour for the Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for every request.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient constructs a client with sane defaults.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) newRequest(ctx context.Context, method, path string, tok domain.Token, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, op string) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, readAPIError(op, resp)
	}
	return resp, nil
}

func readAPIError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &domain.APIError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}
