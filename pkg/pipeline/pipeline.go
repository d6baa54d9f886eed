// Package pipeline drives a full sync run: authenticate, fetch the club's
// runs, backfill missing details, aggregate, and reconcile the standings into
// the destination tables.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	shared "github.com/clubboard/server/pkg"
	"github.com/clubboard/server/pkg/aggregate"
	"github.com/clubboard/server/pkg/integrations/notion"
	"github.com/clubboard/server/pkg/reconcile"
)

// Stage marks how far a run progressed. Reports carry the last stage reached
// so a failed run can be placed precisely.
type Stage string

const (
	StageStart         Stage = "START"
	StageAuthenticated Stage = "AUTHENTICATED"
	StageRunsFetched   Stage = "RUNS_FETCHED"
	StageRunsDetailed  Stage = "RUNS_DETAILED"
	StageGrouped       Stage = "GROUPED"
	StageTableReady    Stage = "TABLE_READY"
	StageRowsArchived  Stage = "ROWS_ARCHIVED"
	StageRowsWritten   Stage = "ROWS_WRITTEN"
	StageDone          Stage = "DONE"

	// StageNoMatch is a terminal success: the run produced zero groups, so
	// no table was created or touched.
	StageNoMatch Stage = "NO_MATCH"
)

// Config carries the destination wiring for a sync run.
type Config struct {
	ClubID string

	// ParentPageID is where fresh per-event tables are created.
	ParentPageID string

	// LeaderboardDBID is the standing leaderboard table, reused and
	// archived across runs.
	LeaderboardDBID string

	// AuditDBID, when set, receives one log entry per leaderboard sync.
	AuditDBID string

	// Zone anchors event-day windows and audit timestamps.
	Zone *time.Location
}

// TableOutcome records what happened to one destination table.
type TableOutcome struct {
	Title      string
	DatabaseID string
	Archived   int
	Written    int
	Err        error
}

// RunReport summarizes a sync run.
type RunReport struct {
	RunID   string
	Stage   Stage
	Runs    int
	Skipped int
	Tables  []TableOutcome
}

// Orchestrator wires a source and a store through one sync run at a time.
type Orchestrator struct {
	source shared.ActivitySource
	store  shared.ResultStore
	rec    *reconcile.Reconciler
	cfg    Config
	logger *slog.Logger

	// now is swapped in tests.
	now func() time.Time
}

func New(source shared.ActivitySource, store shared.ResultStore, cfg Config, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		source: source,
		store:  store,
		rec:    reconcile.New(store, logger),
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// SyncLeaderboard rebuilds the standing leaderboard from every run currently
// visible in the club feed. The existing table is archived and rewritten; an
// empty feed short-circuits without touching it.
func (o *Orchestrator) SyncLeaderboard(ctx context.Context) (*RunReport, error) {
	report := &RunReport{RunID: uuid.NewString(), Stage: StageStart}
	logger := o.logger.With("run_id", report.RunID, "mode", "leaderboard")

	if o.cfg.AuditDBID != "" {
		if err := o.writeAuditEntry(ctx); err != nil {
			return report, fmt.Errorf("audit entry failed: %w", err)
		}
	}

	result, err := o.collect(ctx, report, logger, aggregate.Options{GroupBy: aggregate.ByAthlete})
	if err != nil {
		return report, err
	}
	if len(result.Groups) == 0 {
		report.Stage = StageNoMatch
		logger.Info("No runs matched, leaderboard untouched")
		return report, nil
	}

	outcome := TableOutcome{Title: "Leaderboard", DatabaseID: o.cfg.LeaderboardDBID}
	report.Stage = StageTableReady

	outcome.Archived, err = o.rec.ArchiveExisting(ctx, o.cfg.LeaderboardDBID)
	if err != nil {
		outcome.Err = err
		report.Tables = append(report.Tables, outcome)
		return report, fmt.Errorf("leaderboard archive failed: %w", err)
	}
	report.Stage = StageRowsArchived

	outcome.Written, err = o.rec.WriteStandings(ctx, o.cfg.LeaderboardDBID, result.Groups, reconcile.Leaderboard)
	if err != nil {
		outcome.Err = err
		report.Tables = append(report.Tables, outcome)
		return report, fmt.Errorf("leaderboard write failed: %w", err)
	}
	report.Stage = StageRowsWritten
	report.Tables = append(report.Tables, outcome)

	report.Stage = StageDone
	logger.Info("Leaderboard sync complete", "athletes", len(result.Groups), "written", outcome.Written)
	return report, nil
}

// SyncEvent builds fresh result tables for the given day. With activityName
// set, only that event is built; otherwise one table per distinct activity
// name found that day. Existing tables are never archived in this mode, and a
// failure on one event's table does not stop the others.
func (o *Orchestrator) SyncEvent(ctx context.Context, date time.Time, activityName string) (*RunReport, error) {
	report := &RunReport{RunID: uuid.NewString(), Stage: StageStart}
	logger := o.logger.With("run_id", report.RunID, "mode", "event", "date", date.Format("2006-01-02"))

	window := aggregate.DayWindow(date, o.cfg.Zone)
	result, err := o.collect(ctx, report, logger, aggregate.Options{
		GroupBy:      aggregate.ByActivityAndAthlete,
		Window:       &window,
		Zone:         o.cfg.Zone,
		ActivityName: activityName,
	})
	if err != nil {
		return report, err
	}

	names := result.EventNames()
	if len(names) == 0 {
		report.Stage = StageNoMatch
		logger.Info("No runs matched, no tables created")
		return report, nil
	}

	var firstErr error
	for _, name := range names {
		outcome := o.buildEventTable(ctx, logger, name, date, result.ForEvent(name))
		report.Tables = append(report.Tables, outcome)
		if outcome.Err != nil && firstErr == nil {
			firstErr = outcome.Err
		}
	}
	if firstErr != nil {
		return report, fmt.Errorf("one or more event tables failed: %w", firstErr)
	}

	report.Stage = StageDone
	logger.Info("Event sync complete", "tables", len(report.Tables))
	return report, nil
}

// DiscoverEventNames lists the distinct named runs on a given day, without
// writing anything.
func (o *Orchestrator) DiscoverEventNames(ctx context.Context, date time.Time) ([]string, error) {
	report := &RunReport{RunID: uuid.NewString(), Stage: StageStart}
	logger := o.logger.With("run_id", report.RunID, "mode", "discover")

	window := aggregate.DayWindow(date, o.cfg.Zone)
	result, err := o.collect(ctx, report, logger, aggregate.Options{
		GroupBy: aggregate.ByActivityAndAthlete,
		Window:  &window,
		Zone:    o.cfg.Zone,
	})
	if err != nil {
		return nil, err
	}
	return result.EventNames(), nil
}

// collect runs the shared front half of every mode: authenticate, fetch,
// backfill, aggregate. It advances report.Stage as it goes.
func (o *Orchestrator) collect(ctx context.Context, report *RunReport, logger *slog.Logger, opts aggregate.Options) (*aggregate.Result, error) {
	if err := o.source.Authenticate(ctx); err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}
	report.Stage = StageAuthenticated

	activities, err := o.source.FetchClubRuns(ctx, o.cfg.ClubID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch club runs: %w", err)
	}
	report.Stage = StageRunsFetched
	report.Runs = len(activities)

	activities, err = o.source.BackfillDetails(ctx, activities)
	if err != nil {
		return nil, fmt.Errorf("failed to backfill run details: %w", err)
	}
	report.Stage = StageRunsDetailed

	result := aggregate.Aggregate(activities, opts)
	report.Stage = StageGrouped
	report.Skipped = result.Skipped
	if result.Skipped > 0 {
		logger.Warn("Skipped runs without a resolvable athlete", "skipped", result.Skipped)
	}
	return result, nil
}

func (o *Orchestrator) buildEventTable(ctx context.Context, logger *slog.Logger, name string, date time.Time, groups []aggregate.Totals) TableOutcome {
	outcome := TableOutcome{Title: eventTableTitle(name, date)}

	id, err := o.rec.CreateTable(ctx, o.cfg.ParentPageID, outcome.Title)
	if err != nil {
		outcome.Err = err
		logger.Error("Event table creation failed", "title", outcome.Title, "error", err)
		return outcome
	}
	outcome.DatabaseID = id

	outcome.Written, err = o.rec.WriteStandings(ctx, id, groups, reconcile.EventResults)
	if err != nil {
		outcome.Err = err
		logger.Error("Event table write failed", "title", outcome.Title, "error", err)
	}
	return outcome
}

// writeAuditEntry drops a timestamped log row into the audit table before the
// leaderboard is touched, so every invocation leaves a trace even if the sync
// later fails.
func (o *Orchestrator) writeAuditEntry(ctx context.Context) error {
	now := o.now().In(o.cfg.Zone)
	title := fmt.Sprintf("Activity (Called %02d:%02d:%02d – %d/%d/%d)",
		now.Hour(), now.Minute(), now.Second(),
		int(now.Month()), now.Day(), now.Year())
	props := map[string]interface{}{
		"Name": notion.TitleProperty(title),
	}
	return o.store.CreatePage(ctx, o.cfg.AuditDBID, props)
}

func eventTableTitle(name string, date time.Time) string {
	return fmt.Sprintf("%s Results – %d/%d/%d", name, int(date.Month()), date.Day(), date.Year())
}
