// Package strava is the source session for club activity data: one token
// exchange per run, paginated club listings, and per-activity detail
// backfill for summaries missing required fields.
package strava

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	httputil "github.com/clubboard/server/pkg/infrastructure/http"
	"github.com/clubboard/server/pkg/infrastructure/oauth"
	"github.com/clubboard/server/pkg/infrastructure/ratelimit"
)

const (
	defaultBaseURL = "https://www.strava.com/api/v3"

	// listPageSize is the club listing page size; pagination advances until
	// a page comes back empty, since club volume is unbounded.
	listPageSize = 200

	// pageDelay and detailDelay are the fixed inter-request delays the
	// Strava API expects from polite clients.
	pageDelay   = 500 * time.Millisecond
	detailDelay = 200 * time.Millisecond
)

// Session is an authenticated Strava API session for a single sync run.
type Session struct {
	tokens        oauth.TokenSource
	httpClient    *http.Client
	pageLimiter   ratelimit.Limiter
	detailLimiter ratelimit.Limiter
	baseURL       string
	logger        *slog.Logger
}

// NewSession creates a session. The access token is not fetched until
// Authenticate is called.
func NewSession(tokens oauth.TokenSource, logger *slog.Logger) *Session {
	return &Session{
		tokens:        tokens,
		httpClient:    oauth.NewHTTPClient(tokens),
		pageLimiter:   ratelimit.NewFixedDelay(pageDelay),
		detailLimiter: ratelimit.NewFixedDelay(detailDelay),
		baseURL:       defaultBaseURL,
		logger:        logger,
	}
}

// newSession builds a session against a fake server with no inter-request
// delays. Tests only.
func newSession(baseURL string, tokens oauth.TokenSource, logger *slog.Logger) *Session {
	s := NewSession(tokens, logger)
	s.baseURL = baseURL
	s.pageLimiter = ratelimit.None{}
	s.detailLimiter = ratelimit.None{}
	return s
}

// Authenticate exchanges the refresh token for this run's access token.
// Fatal on failure: the pipeline never proceeds with a rejected credential.
func (s *Session) Authenticate(ctx context.Context) error {
	tok, err := s.tokens.Token(ctx)
	if err != nil {
		return err
	}
	s.logger.Info("Strava session authenticated", "token_expiry", tok.Expiry)
	return nil
}

// FetchClubRuns pages through the club's activity listing and returns all
// Run-typed entries in page order. An empty page terminates pagination.
func (s *Session) FetchClubRuns(ctx context.Context, clubID string) ([]Activity, error) {
	var runs []Activity
	total := 0

	for page := 1; ; page++ {
		// The first wait never blocks but anchors the limiter, so every
		// page boundary gets the full delay.
		if err := s.pageLimiter.Wait(ctx); err != nil {
			return nil, err
		}

		batch, err := s.listClubActivities(ctx, clubID, page)
		if err != nil {
			return nil, fmt.Errorf("list club activities page %d: %w", page, err)
		}
		if len(batch) == 0 {
			break
		}

		total += len(batch)
		for _, a := range batch {
			if a.Type == ActivityTypeRun {
				runs = append(runs, a)
			}
		}
	}

	s.logger.Info("Fetched club activities", "club_id", clubID, "activities", total, "runs", len(runs))
	return runs, nil
}

// BackfillDetails repairs activities missing a local start time or athlete
// ID via per-activity detail fetches. Complete summaries pass through
// untouched. A 404 drops the activity and the run continues; any other
// failure is fatal.
func (s *Session) BackfillDetails(ctx context.Context, activities []Activity) ([]Activity, error) {
	out := make([]Activity, 0, len(activities))
	fetched, dropped := 0, 0

	for _, a := range activities {
		if !a.needsDetail() {
			out = append(out, a)
			continue
		}

		if a.ID == 0 {
			// Club summaries without an activity ID cannot be looked up;
			// the aggregator will count them as skipped if the missing
			// fields turn out to matter.
			out = append(out, a)
			continue
		}

		if err := s.detailLimiter.Wait(ctx); err != nil {
			return nil, err
		}

		detail, err := s.getActivity(ctx, a.ID)
		if err != nil {
			if httputil.IsNotFound(err) {
				s.logger.Warn("Activity detail not found, dropping", "activity_id", a.ID, "name", a.Name)
				dropped++
				continue
			}
			return nil, fmt.Errorf("backfill activity %d: %w", a.ID, err)
		}

		fetched++
		out = append(out, mergeDetail(a, *detail))
	}

	if fetched > 0 || dropped > 0 {
		s.logger.Info("Backfilled activity details", "fetched", fetched, "dropped", dropped)
	}
	return out, nil
}

// mergeDetail fills the summary's missing fields from the detail record,
// preferring summary values where present.
func mergeDetail(summary, detail Activity) Activity {
	if summary.StartDateLocal == "" {
		summary.StartDateLocal = detail.StartDateLocal
	}
	if summary.Athlete.ID == 0 {
		summary.Athlete.ID = detail.Athlete.ID
	}
	if summary.Athlete.FirstName == "" {
		summary.Athlete.FirstName = detail.Athlete.FirstName
	}
	if summary.Athlete.LastName == "" {
		summary.Athlete.LastName = detail.Athlete.LastName
	}
	return summary
}

func (s *Session) listClubActivities(ctx context.Context, clubID string, page int) ([]Activity, error) {
	params := url.Values{}
	params.Set("page", fmt.Sprintf("%d", page))
	params.Set("per_page", fmt.Sprintf("%d", listPageSize))

	u := fmt.Sprintf("%s/clubs/%s/activities?%s", s.baseURL, url.PathEscape(clubID), params.Encode())

	var batch []Activity
	if err := s.getJSON(ctx, u, &batch); err != nil {
		return nil, err
	}
	return batch, nil
}

func (s *Session) getActivity(ctx context.Context, activityID int64) (*Activity, error) {
	u := fmt.Sprintf("%s/activities/%d", s.baseURL, activityID)

	var detail Activity
	if err := s.getJSON(ctx, u, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

func (s *Session) getJSON(ctx context.Context, url string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if err := httputil.ParseErrorResponse(resp); err != nil {
		if httputil.IsUnauthorized(err) {
			// Distinct from other transport failures: the credential is
			// dead for the rest of the run, so the caller aborts instead
			// of paging on.
			var httpErr *httputil.HTTPError
			errors.As(err, &httpErr)
			return &oauth.AuthError{StatusCode: http.StatusUnauthorized, Body: httpErr.Body}
		}
		if httputil.IsRateLimited(err) {
			s.logger.Warn("Strava rate limit exceeded", "url", url)
		}
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
