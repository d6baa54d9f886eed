// Package oauth exchanges a long-lived refresh token for the short-lived
// access token used for the rest of a sync run.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// Token is the access credential returned by a refresh exchange.
type Token struct {
	AccessToken string
	Expiry      time.Time
}

// TokenSource returns a valid token.
// It is safe for concurrent use by multiple goroutines.
type TokenSource interface {
	Token(ctx context.Context) (*Token, error)
}

// AuthError reports a rejected credential: either the refresh exchange
// failed or the access token was refused upstream. It is fatal to the run;
// a stale credential will not become valid by retrying.
type AuthError struct {
	StatusCode int
	Body       string
}

func (e *AuthError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("authentication rejected (status %d): %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("authentication rejected (status %d)", e.StatusCode)
}

// RefreshTokenSource performs the form-encoded refresh-token exchange
// against the provider's token endpoint and caches the result for the
// lifetime of the process. One exchange per run is the expected shape.
type RefreshTokenSource struct {
	conf         *oauth2.Config
	refreshToken string

	// httpClient overrides the exchange transport; used by tests.
	httpClient *http.Client

	mu  sync.Mutex
	tok *oauth2.Token
}

// NewRefreshTokenSource builds a source for the given client credentials
// and provider endpoint (e.g. endpoints.Strava).
func NewRefreshTokenSource(clientID, clientSecret, refreshToken string, endpoint oauth2.Endpoint) *RefreshTokenSource {
	return &RefreshTokenSource{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     endpoint,
		},
		refreshToken: refreshToken,
	}
}

// Token returns the cached access token, performing the refresh exchange on
// first use. A non-2xx exchange response surfaces as *AuthError and is
// never retried.
func (s *RefreshTokenSource) Token(ctx context.Context) (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tok != nil && s.tok.Valid() {
		return &Token{AccessToken: s.tok.AccessToken, Expiry: s.tok.Expiry}, nil
	}

	if s.refreshToken == "" {
		return nil, fmt.Errorf("missing refresh token")
	}

	if s.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	}

	tok, err := s.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: s.refreshToken}).Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			status := 0
			if retrieveErr.Response != nil {
				status = retrieveErr.Response.StatusCode
			}
			return nil, &AuthError{StatusCode: status, Body: string(retrieveErr.Body)}
		}
		return nil, fmt.Errorf("token exchange: %w", err)
	}

	s.tok = tok
	// Providers may rotate the refresh token on exchange; keep the latest
	// in case the access token expires mid-process.
	if tok.RefreshToken != "" {
		s.refreshToken = tok.RefreshToken
	}

	return &Token{AccessToken: tok.AccessToken, Expiry: tok.Expiry}, nil
}

// Static is a TokenSource that always returns the same access token.
// Used in tests.
type Static string

func (s Static) Token(context.Context) (*Token, error) {
	return &Token{AccessToken: string(s)}, nil
}
