package notion

// Page is a row in a Notion database. Only the ID is needed for archival.
type Page struct {
	ID string `json:"id"`
}

// QueryResult is one page of a cursor-paginated database query.
type QueryResult struct {
	Results    []Page `json:"results"`
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor"`
}

// Column names shared by every result table the pipeline writes.
const (
	ColumnAthlete     = "Athlete"
	ColumnDistance    = "Distance (mi)"
	ColumnMovingTime  = "Moving Time"
	ColumnElapsedTime = "Elapsed Time"
	ColumnMilesRan    = "Miles Ran"
	ColumnMilesTotal  = "Miles Ran (Total)"
)

// ResultsSchema is the column schema for per-event result tables.
func ResultsSchema() map[string]interface{} {
	return map[string]interface{}{
		ColumnAthlete:     map[string]interface{}{"title": map[string]interface{}{}},
		ColumnDistance:    map[string]interface{}{"number": map[string]interface{}{"format": "number"}},
		ColumnMovingTime:  map[string]interface{}{"rich_text": map[string]interface{}{}},
		ColumnElapsedTime: map[string]interface{}{"rich_text": map[string]interface{}{}},
	}
}

// TitleProperty builds a title column value.
func TitleProperty(content string) map[string]interface{} {
	return map[string]interface{}{
		"title": []interface{}{
			map[string]interface{}{"text": map[string]interface{}{"content": content}},
		},
	}
}

// RichTextProperty builds a rich_text column value.
func RichTextProperty(content string) map[string]interface{} {
	return map[string]interface{}{
		"rich_text": []interface{}{
			map[string]interface{}{"text": map[string]interface{}{"content": content}},
		},
	}
}

// NumberProperty builds a number column value.
func NumberProperty(value float64) map[string]interface{} {
	return map[string]interface{}{"number": value}
}
