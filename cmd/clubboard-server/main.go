// Command clubboard-server exposes the sync pipeline over HTTP so runs can be
// triggered by a scheduler or a webhook instead of the CLI.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/clubboard/server/pkg/bootstrap"
	"github.com/clubboard/server/pkg/infrastructure/sentry"
	"github.com/clubboard/server/pkg/pipeline"
)

const syncTimeout = 10 * time.Minute

type server struct {
	svc *bootstrap.Service
}

func main() {
	_ = godotenv.Load()

	svc, err := bootstrap.NewService("clubboard-server")
	if err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger := svc.Logger

	if err := sentry.Init(sentry.Config{
		DSN:         svc.Config.SentryDSN,
		Environment: svc.Config.Environment,
		ServerName:  "clubboard-server",
	}, logger); err != nil {
		logger.Warn("Sentry init failed, continuing without it", "error", err)
	}
	defer sentry.Flush(2 * time.Second)

	s := &server{svc: svc}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Post("/v1/sync/leaderboard", s.handleSyncLeaderboard)
	r.Post("/v1/sync/event", s.handleSyncEvent)
	r.Get("/v1/events", s.handleListEvents)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: syncTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("Listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	<-shutdownCh
	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleSyncLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), syncTimeout)
	defer cancel()

	report, err := s.svc.Orchestrator.SyncLeaderboard(ctx)
	if err != nil {
		s.captureError(r, err)
	}
	s.writeReport(w, report, err)
}

func (s *server) handleSyncEvent(w http.ResponseWriter, r *http.Request) {
	date, ok := s.parseDateParam(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), syncTimeout)
	defer cancel()

	report, err := s.svc.Orchestrator.SyncEvent(ctx, date, r.URL.Query().Get("activity"))
	if err != nil {
		s.captureError(r, err)
	}
	s.writeReport(w, report, err)
}

func (s *server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	date, ok := s.parseDateParam(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), syncTimeout)
	defer cancel()

	names, err := s.svc.Orchestrator.DiscoverEventNames(ctx, date)
	if err != nil {
		s.captureError(r, err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"date": date.Format("2006-01-02"), "events": names})
}

func (s *server) parseDateParam(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	dateStr := r.URL.Query().Get("date")
	if dateStr == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date query parameter is required"})
		return time.Time{}, false
	}
	loc, err := s.svc.Config.Location()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return time.Time{}, false
	}
	date, err := time.ParseInLocation("2006-01-02", dateStr, loc)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date must be YYYY-MM-DD"})
		return time.Time{}, false
	}
	return date, true
}

func (s *server) writeReport(w http.ResponseWriter, report *pipeline.RunReport, err error) {
	status := http.StatusOK
	body := map[string]interface{}{}
	if report != nil {
		body["run_id"] = report.RunID
		body["stage"] = report.Stage
		body["runs"] = report.Runs
		body["skipped"] = report.Skipped
		body["tables"] = tableSummaries(report)
	}
	if err != nil {
		status = http.StatusBadGateway
		body["error"] = err.Error()
	}
	writeJSON(w, status, body)
}

func tableSummaries(report *pipeline.RunReport) []map[string]interface{} {
	summaries := make([]map[string]interface{}, 0, len(report.Tables))
	for _, tbl := range report.Tables {
		entry := map[string]interface{}{
			"title":       tbl.Title,
			"database_id": tbl.DatabaseID,
			"archived":    tbl.Archived,
			"written":     tbl.Written,
		}
		if tbl.Err != nil {
			entry["error"] = tbl.Err.Error()
		}
		summaries = append(summaries, entry)
	}
	return summaries
}

func (s *server) captureError(r *http.Request, err error) {
	sentry.CaptureException(err, map[string]interface{}{"path": r.URL.Path}, s.svc.Logger)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
