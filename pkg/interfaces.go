package shared

import (
	"context"

	"github.com/clubboard/server/pkg/integrations/notion"
	"github.com/clubboard/server/pkg/integrations/strava"
)

// --- Source Interfaces ---

// ActivitySource is the read-only view of the fitness service the pipeline
// consumes. Implemented by strava.Session.
type ActivitySource interface {
	Authenticate(ctx context.Context) error
	FetchClubRuns(ctx context.Context, clubID string) ([]strava.Activity, error)
	BackfillDetails(ctx context.Context, activities []strava.Activity) ([]strava.Activity, error)
}

// --- Destination Interfaces ---

// ResultStore is the destination surface the reconciler writes through.
// Implemented by notion.Client.
type ResultStore interface {
	CreateDatabase(ctx context.Context, parentPageID, title string, schema map[string]interface{}) (string, error)
	QueryDatabase(ctx context.Context, databaseID, startCursor string, pageSize int) (*notion.QueryResult, error)
	CreatePage(ctx context.Context, databaseID string, properties map[string]interface{}) error
	ArchivePage(ctx context.Context, pageID string) error
}
