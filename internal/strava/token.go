package strava

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"

	"example.com/stravaweather/internal/domain"
)

const tokenPath = "/oauth/token"

// Refresh exchanges the refresh credential for a short-lived access token. A 4xx answer
// from the token endpoint means the credential was rejected and maps to domain.ErrAuth.
func (c *Client) Refresh(ctx context.Context, cred domain.Credential) (domain.Token, error) {
	conf := &oauth2.Config{
		ClientID:     cred.ClientID,
		ClientSecret: cred.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  c.baseURL + tokenPath,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	tok, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken}).Token()
	if err != nil {
		return domain.Token{}, classifyTokenError(err)
	}

	return domain.Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}, nil
}

func classifyTokenError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		status := retrieveErr.Response.StatusCode
		if status >= http.StatusBadRequest && status < http.StatusInternalServerError {
			return fmt.Errorf("token refresh: %w (status %d)", domain.ErrAuth, status)
		}
		return &domain.APIError{Op: "token refresh", StatusCode: status, Body: string(retrieveErr.Body)}
	}
	return fmt.Errorf("token refresh: %w", err)
}
