// Package reconcile replaces the contents of a destination result table:
// existing rows are archived, then the fresh standings are written in rank
// order. Archival before insert keeps reruns idempotent.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	shared "github.com/clubboard/server/pkg"
	"github.com/clubboard/server/pkg/aggregate"
	"github.com/clubboard/server/pkg/integrations/notion"
	"github.com/clubboard/server/pkg/units"
)

// archivePageSize is the query page size used while draining existing rows.
const archivePageSize = 100

// Variant selects the row layout for a table.
type Variant int

const (
	// EventResults tables carry distance plus both time columns.
	EventResults Variant = iota
	// Leaderboard tables carry a single formatted mileage column.
	Leaderboard
)

// Reconciler owns the archive-then-insert cycle against one destination
// store.
type Reconciler struct {
	store  shared.ResultStore
	logger *slog.Logger
}

func New(store shared.ResultStore, logger *slog.Logger) *Reconciler {
	return &Reconciler{store: store, logger: logger}
}

// CreateTable makes a fresh result database under the given parent page and
// returns its ID.
func (r *Reconciler) CreateTable(ctx context.Context, parentPageID, title string) (string, error) {
	id, err := r.store.CreateDatabase(ctx, parentPageID, title, notion.ResultsSchema())
	if err != nil {
		return "", fmt.Errorf("failed to create result table %q: %w", title, err)
	}
	r.logger.Info("Created result table", "title", title, "database_id", id)
	return id, nil
}

// ArchiveExisting archives every live row in the database and returns the
// number archived. All cursor pages are drained before any row is touched, so
// archival never races its own pagination.
func (r *Reconciler) ArchiveExisting(ctx context.Context, databaseID string) (int, error) {
	var pages []notion.Page
	cursor := ""
	for {
		result, err := r.store.QueryDatabase(ctx, databaseID, cursor, archivePageSize)
		if err != nil {
			return 0, fmt.Errorf("failed to list rows for archival: %w", err)
		}
		pages = append(pages, result.Results...)
		if !result.HasMore {
			break
		}
		cursor = result.NextCursor
	}

	for i, p := range pages {
		if err := r.store.ArchivePage(ctx, p.ID); err != nil {
			return i, fmt.Errorf("failed to archive row %s: %w", p.ID, err)
		}
	}
	r.logger.Info("Archived existing rows", "database_id", databaseID, "archived", len(pages))
	return len(pages), nil
}

// WriteStandings inserts one row per group, in the order given, then a totals
// row under the Leaderboard variant. Writes are sequential and stop at the
// first failure; the count of rows already written is always returned so a
// partial run is visible to the caller.
func (r *Reconciler) WriteStandings(ctx context.Context, databaseID string, groups []aggregate.Totals, variant Variant) (int, error) {
	written := 0
	totalMeters := 0.0
	for _, g := range groups {
		if err := r.store.CreatePage(ctx, databaseID, rowProperties(g, variant)); err != nil {
			return written, fmt.Errorf("failed to write row for %q: %w", g.DisplayName, err)
		}
		written++
		totalMeters += g.Meters
	}

	if variant == Leaderboard && written > 0 {
		props := map[string]interface{}{
			notion.ColumnAthlete:    notion.TitleProperty("Totals"),
			notion.ColumnMilesTotal: notion.RichTextProperty(units.FormatMiles(units.MetersToMiles(totalMeters))),
		}
		if err := r.store.CreatePage(ctx, databaseID, props); err != nil {
			return written, fmt.Errorf("failed to write totals row: %w", err)
		}
		written++
	}

	r.logger.Info("Wrote standings", "database_id", databaseID, "rows", written,
		"total_miles", units.FormatMilesGrouped(units.MetersToMiles(totalMeters)))
	return written, nil
}

func rowProperties(g aggregate.Totals, variant Variant) map[string]interface{} {
	miles := units.MetersToMiles(g.Meters)
	if variant == Leaderboard {
		return map[string]interface{}{
			notion.ColumnAthlete:  notion.TitleProperty(g.DisplayName),
			notion.ColumnMilesRan: notion.RichTextProperty(units.FormatMiles(miles)),
		}
	}
	return map[string]interface{}{
		notion.ColumnAthlete:     notion.TitleProperty(g.DisplayName),
		notion.ColumnDistance:    notion.NumberProperty(math.Round(miles*100) / 100),
		notion.ColumnMovingTime:  notion.RichTextProperty(units.FormatHMS(g.MovingSec)),
		notion.ColumnElapsedTime: notion.RichTextProperty(units.FormatHMS(g.ElapsedSec)),
	}
}
