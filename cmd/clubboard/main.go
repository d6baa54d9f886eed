// Command clubboard runs one sync against the club's destination tables.
//
// Modes:
//
//	-mode leaderboard              rebuild the standing mileage leaderboard
//	-mode event -date 2026-08-22   build fresh result tables for that day
//	-mode events -date 2026-08-22  list the named runs on that day
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/clubboard/server/pkg/bootstrap"
	"github.com/clubboard/server/pkg/infrastructure/sentry"
	"github.com/clubboard/server/pkg/pipeline"
)

func main() {
	mode := flag.String("mode", "leaderboard", "sync mode: leaderboard, event, or events")
	dateStr := flag.String("date", "", "event day as YYYY-MM-DD (event and events modes)")
	activity := flag.String("activity", "", "restrict event mode to one activity name")
	timeout := flag.Duration("timeout", 10*time.Minute, "overall run timeout")
	flag.Parse()

	// Missing .env is fine; deployed environments set real variables.
	_ = godotenv.Load()

	svc, err := bootstrap.NewService("clubboard")
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	logger := svc.Logger

	if err := sentry.Init(sentry.Config{
		DSN:         svc.Config.SentryDSN,
		Environment: svc.Config.Environment,
		ServerName:  "clubboard",
	}, logger); err != nil {
		logger.Warn("Sentry init failed, continuing without it", "error", err)
	}
	defer sentry.Flush(2 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx, svc, *mode, *dateStr, *activity); err != nil {
		sentry.CaptureException(err, map[string]interface{}{"mode": *mode}, logger)
		logger.Error("Sync failed", "mode", *mode, "error", err)
		sentry.Flush(2 * time.Second)
		os.Exit(1)
	}
}

func run(ctx context.Context, svc *bootstrap.Service, mode, dateStr, activity string) error {
	switch mode {
	case "leaderboard":
		report, err := svc.Orchestrator.SyncLeaderboard(ctx)
		printReport(report)
		return err

	case "event":
		date, err := parseDate(svc, dateStr)
		if err != nil {
			return err
		}
		report, err := svc.Orchestrator.SyncEvent(ctx, date, activity)
		printReport(report)
		return err

	case "events":
		date, err := parseDate(svc, dateStr)
		if err != nil {
			return err
		}
		names, err := svc.Orchestrator.DiscoverEventNames(ctx, date)
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Println("No named runs found on", dateStr)
			return nil
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil

	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
}

func parseDate(svc *bootstrap.Service, dateStr string) (time.Time, error) {
	if dateStr == "" {
		return time.Time{}, fmt.Errorf("-date is required for this mode")
	}
	loc, err := svc.Config.Location()
	if err != nil {
		return time.Time{}, err
	}
	date, err := time.ParseInLocation("2006-01-02", dateStr, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid -date %q: %w", dateStr, err)
	}
	return date, nil
}

func printReport(report *pipeline.RunReport) {
	if report == nil {
		return
	}
	fmt.Printf("run %s: stage=%s runs=%d skipped=%d\n", report.RunID, report.Stage, report.Runs, report.Skipped)
	for _, tbl := range report.Tables {
		status := "ok"
		if tbl.Err != nil {
			status = "FAILED: " + tbl.Err.Error()
		}
		fmt.Printf("  %-40s archived=%d written=%d %s\n", tbl.Title, tbl.Archived, tbl.Written, status)
	}
}
