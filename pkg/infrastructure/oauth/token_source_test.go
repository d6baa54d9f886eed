package oauth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/oauth2"
)

func testEndpoint(serverURL string) oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:   serverURL + "/oauth/authorize",
		TokenURL:  serverURL + "/oauth/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
}

func TestRefreshTokenSource_Exchange(t *testing.T) {
	exchanges := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		exchanges++
		if r.Method != http.MethodPost {
			t.Errorf("token endpoint called with %s, want POST", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm: %v", err)
		}
		if got := r.Form.Get("grant_type"); got != "refresh_token" {
			t.Errorf("grant_type = %q, want refresh_token", got)
		}
		if got := r.Form.Get("refresh_token"); got != "refresh-abc" {
			t.Errorf("refresh_token = %q, want refresh-abc", got)
		}
		if got := r.Form.Get("client_id"); got != "client-1" {
			t.Errorf("client_id = %q, want client-1", got)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"access-xyz","refresh_token":"refresh-rotated","expires_in":21600,"token_type":"Bearer"}`))
	}))
	defer srv.Close()

	src := NewRefreshTokenSource("client-1", "secret-1", "refresh-abc", testEndpoint(srv.URL))
	src.httpClient = srv.Client()

	tok, err := src.Token(context.Background())
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if tok.AccessToken != "access-xyz" {
		t.Errorf("AccessToken = %q, want access-xyz", tok.AccessToken)
	}
	if tok.Expiry.IsZero() {
		t.Error("Expiry not set from expires_in")
	}

	// Second call should reuse the cached token, not exchange again
	if _, err := src.Token(context.Background()); err != nil {
		t.Fatalf("second Token: %v", err)
	}
	if exchanges != 1 {
		t.Errorf("token endpoint hit %d times, want 1", exchanges)
	}
}

func TestRefreshTokenSource_RejectedExchange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Bad Request","errors":[{"resource":"RefreshToken","code":"invalid"}]}`))
	}))
	defer srv.Close()

	src := NewRefreshTokenSource("client-1", "secret-1", "stale-token", testEndpoint(srv.URL))
	src.httpClient = srv.Client()

	_, err := src.Token(context.Background())
	if err == nil {
		t.Fatal("expected error for rejected exchange")
	}

	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected *AuthError, got %T: %v", err, err)
	}
	if authErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401", authErr.StatusCode)
	}
}

func TestRefreshTokenSource_MissingRefreshToken(t *testing.T) {
	src := NewRefreshTokenSource("client-1", "secret-1", "", oauth2.Endpoint{})
	if _, err := src.Token(context.Background()); err == nil {
		t.Fatal("expected error for missing refresh token")
	}
}

func TestTransport_SetsBearerHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := NewHTTPClient(Static("access-123"))
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()

	if gotAuth != "Bearer access-123" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer access-123")
	}
}

func TestTransport_DoesNotRetryOn401(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewHTTPClient(Static("stale"))
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
	if calls != 1 {
		t.Errorf("upstream hit %d times, want 1 (no retry on 401)", calls)
	}
}
