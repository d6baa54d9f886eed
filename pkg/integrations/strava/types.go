package strava

import (
	"strings"
	"time"
)

// ActivityTypeRun is the only activity type the pipeline considers.
const ActivityTypeRun = "Run"

// Athlete is the summary athlete attached to a club activity.
type Athlete struct {
	ID        int64  `json:"id,omitempty"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
}

// DisplayName joins the athlete's first and last names. Strava truncates
// last names to an initial on club listings, so the result may be "Jane D.".
func (a Athlete) DisplayName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// Activity is a club activity summary. Club listings omit some fields
// (notably the activity ID, local start time, and athlete ID); when those
// are needed they are resolved through a per-activity detail fetch.
type Activity struct {
	ID             int64   `json:"id,omitempty"`
	Type           string  `json:"type"`
	Name           string  `json:"name"`
	Distance       float64 `json:"distance"`     // meters
	MovingTime     int     `json:"moving_time"`  // seconds
	ElapsedTime    int     `json:"elapsed_time"` // seconds
	StartDateLocal string  `json:"start_date_local,omitempty"`
	Athlete        Athlete `json:"athlete"`
}

// StartTimeIn parses the activity's local start timestamp and normalizes it
// to the given zone. Returns the zero time when the field is absent or
// unparseable.
func (a Activity) StartTimeIn(loc *time.Location) time.Time {
	if a.StartDateLocal == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, a.StartDateLocal)
	if err != nil {
		return time.Time{}
	}
	return t.In(loc)
}

// needsDetail reports whether the summary is missing a field the pipeline
// requires and must be repaired via a detail fetch.
func (a Activity) needsDetail() bool {
	return a.StartDateLocal == "" || a.Athlete.ID == 0
}
