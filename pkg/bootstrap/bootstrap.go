// Package bootstrap loads configuration from the environment and wires the
// concrete source and store clients into a ready-to-run service.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2/endpoints"

	"github.com/clubboard/server/pkg/infrastructure/oauth"
	"github.com/clubboard/server/pkg/integrations/notion"
	"github.com/clubboard/server/pkg/integrations/strava"
	"github.com/clubboard/server/pkg/pipeline"
)

const defaultTimezone = "America/Los_Angeles"

// Config holds standard configuration for all entrypoints
type Config struct {
	StravaClientID     string
	StravaClientSecret string
	StravaRefreshToken string
	StravaClubID       string

	NotionToken         string
	NotionParentPageID  string
	NotionLeaderboardDB string
	NotionAuditDB       string

	ClubTimezone string
	SentryDSN    string
	Environment  string
}

// LoadConfig reads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		StravaClientID:      os.Getenv("STRAVA_CLIENT_ID"),
		StravaClientSecret:  os.Getenv("STRAVA_CLIENT_SECRET"),
		StravaRefreshToken:  os.Getenv("STRAVA_REFRESH_TOKEN"),
		StravaClubID:        os.Getenv("STRAVA_CLUB_ID"),
		NotionToken:         os.Getenv("NOTION_TOKEN"),
		NotionParentPageID:  os.Getenv("NOTION_PARENT_PAGE_ID"),
		NotionLeaderboardDB: os.Getenv("NOTION_LEADERBOARD_DB_ID"),
		NotionAuditDB:       os.Getenv("NOTION_AUDIT_DB_ID"),
		ClubTimezone:        os.Getenv("CLUB_TIMEZONE"),
		SentryDSN:           os.Getenv("SENTRY_DSN"),
		Environment:         os.Getenv("ENVIRONMENT"),
	}
	if cfg.ClubTimezone == "" {
		cfg.ClubTimezone = defaultTimezone
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	var missing []string
	for _, v := range []struct {
		name, value string
	}{
		{"STRAVA_CLIENT_ID", cfg.StravaClientID},
		{"STRAVA_CLIENT_SECRET", cfg.StravaClientSecret},
		{"STRAVA_REFRESH_TOKEN", cfg.StravaRefreshToken},
		{"STRAVA_CLUB_ID", cfg.StravaClubID},
		{"NOTION_TOKEN", cfg.NotionToken},
	} {
		if v.value == "" {
			missing = append(missing, v.name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return cfg, nil
}

// Location resolves the configured club time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.ClubTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid CLUB_TIMEZONE %q: %w", c.ClubTimezone, err)
	}
	return loc, nil
}

// GetSlogHandlerOptions returns standard handler options with message and
// severity keys
func GetSlogHandlerOptions(level slog.Level) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.MessageKey {
				return slog.Attr{Key: "message", Value: a.Value}
			}
			if a.Key == slog.LevelKey {
				return slog.Attr{Key: "severity", Value: a.Value}
			}
			return a
		},
	}
}

// ComponentHandler wraps a slog.Handler to prepend [component] to the message
type ComponentHandler struct {
	slog.Handler
	component string
}

// WithGroup implements slog.Handler
func (h *ComponentHandler) WithGroup(name string) slog.Handler {
	return &ComponentHandler{
		Handler:   h.Handler.WithGroup(name),
		component: h.component,
	}
}

// WithAttrs implements slog.Handler
func (h *ComponentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newComp := h.component
	for _, a := range attrs {
		if a.Key == "component" {
			newComp = a.Value.String()
		}
	}
	return &ComponentHandler{
		Handler:   h.Handler.WithAttrs(attrs),
		component: newComp,
	}
}

// Handle implements slog.Handler
func (h *ComponentHandler) Handle(ctx context.Context, r slog.Record) error {
	comp := h.component

	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "component" {
			comp = a.Value.String()
			return false
		}
		return true
	})

	if comp != "" {
		newMsg := fmt.Sprintf("[%s] %s", comp, r.Message)
		newRecord := slog.NewRecord(r.Time, r.Level, newMsg, r.PC)
		// The component attribute stays in the structured payload as well.
		r.Attrs(func(a slog.Attr) bool {
			newRecord.AddAttrs(a)
			return true
		})
		r = newRecord
	}

	return h.Handler.Handle(ctx, r)
}

// NewLogger creates a configured logger instance
func NewLogger(serviceName string) *slog.Logger {
	logLevelStr := os.Getenv("LOG_LEVEL")
	var level slog.Level
	switch strings.ToLower(logLevelStr) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := GetSlogHandlerOptions(level)
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(&ComponentHandler{Handler: handler}).With("service", serviceName)
}

// Service holds initialized dependencies
type Service struct {
	Source       *strava.Session
	Store        *notion.Client
	Orchestrator *pipeline.Orchestrator
	Config       *Config
	Logger       *slog.Logger
}

// NewService initializes all standard dependencies
func NewService(serviceName string) (*Service, error) {
	logger := NewLogger(serviceName)

	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	tokens := oauth.NewRefreshTokenSource(
		cfg.StravaClientID,
		cfg.StravaClientSecret,
		cfg.StravaRefreshToken,
		endpoints.Strava,
	)
	source := strava.NewSession(tokens, logger.With("component", "strava"))
	store := notion.NewClient(cfg.NotionToken)

	orch := pipeline.New(source, store, pipeline.Config{
		ClubID:          cfg.StravaClubID,
		ParentPageID:    cfg.NotionParentPageID,
		LeaderboardDBID: cfg.NotionLeaderboardDB,
		AuditDBID:       cfg.NotionAuditDB,
		Zone:            loc,
	}, logger.With("component", "pipeline"))

	logger.Info("Service initialized", "club_id", cfg.StravaClubID, "timezone", cfg.ClubTimezone)

	return &Service{
		Source:       source,
		Store:        store,
		Orchestrator: orch,
		Config:       cfg,
		Logger:       logger,
	}, nil
}
