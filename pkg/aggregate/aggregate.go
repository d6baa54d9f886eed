// Package aggregate buckets club runs by athlete (optionally per activity
// name) and sums their raw distance and time totals. Unit conversion and
// formatting happen later, at presentation time, so repeated aggregation
// never compounds rounding error.
package aggregate

import (
	"sort"
	"time"

	"github.com/clubboard/server/pkg/integrations/strava"
)

// GroupBy selects the grouping key.
type GroupBy int

const (
	// ByAthlete buckets every matching run under its athlete: one global
	// leaderboard.
	ByAthlete GroupBy = iota

	// ByActivityAndAthlete buckets runs under (activity name, athlete):
	// one result table per distinct activity name.
	ByActivityAndAthlete
)

// Window is a half-open time interval [Start, End): an activity starting
// exactly at Start is included, one starting exactly at End is not.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// DayWindow is the window covering one calendar day in loc.
func DayWindow(date time.Time, loc *time.Location) Window {
	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)
	return Window{Start: start, End: start.AddDate(0, 0, 1)}
}

// Options control a single aggregation pass.
type Options struct {
	GroupBy GroupBy

	// Window, when non-nil, excludes activities whose local start time
	// falls outside it. Timestamps are normalized to Zone before the
	// comparison; they carry their own offsets and must never be compared
	// as strings.
	Window *Window

	// Zone is the reference time zone for window comparisons. Required
	// when Window is set.
	Zone *time.Location

	// ActivityName, when non-empty, keeps only runs with this exact name.
	ActivityName string
}

// Key identifies one output group. ActivityName is empty under ByAthlete.
type Key struct {
	ActivityName string
	AthleteID    int64
}

// Totals is the accumulated result for one group. All sums are raw source
// units; an athlete's totals always reflect every matching run.
type Totals struct {
	Key         Key
	DisplayName string
	Meters      float64
	MovingSec   int
	ElapsedSec  int
}

// Result is the outcome of one aggregation pass.
type Result struct {
	// Groups is sorted by Meters descending; ties keep first-seen order.
	Groups []Totals

	// Skipped counts activities excluded for lacking a resolvable athlete
	// ID. Window and name exclusions are not failures and are not counted.
	Skipped int
}

// Aggregate folds the given activities into per-group totals.
func Aggregate(activities []strava.Activity, opts Options) *Result {
	totals := make(map[Key]*Totals)
	var order []Key
	skipped := 0

	for _, a := range activities {
		if a.Type != strava.ActivityTypeRun {
			continue
		}
		if opts.ActivityName != "" && a.Name != opts.ActivityName {
			continue
		}
		if opts.Window != nil && !opts.Window.Contains(a.StartTimeIn(opts.Zone)) {
			continue
		}
		if a.Athlete.ID == 0 {
			skipped++
			continue
		}

		key := Key{AthleteID: a.Athlete.ID}
		if opts.GroupBy == ByActivityAndAthlete {
			key.ActivityName = a.Name
		}

		rec, ok := totals[key]
		if !ok {
			rec = &Totals{Key: key, DisplayName: a.Athlete.DisplayName()}
			totals[key] = rec
			order = append(order, key)
		}
		rec.Meters += a.Distance
		rec.MovingSec += a.MovingTime
		rec.ElapsedSec += a.ElapsedTime
	}

	groups := make([]Totals, 0, len(order))
	for _, key := range order {
		groups = append(groups, *totals[key])
	}

	// Stable keeps first-seen order for equal distances.
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Meters > groups[j].Meters
	})

	return &Result{Groups: groups, Skipped: skipped}
}

// EventNames returns the sorted distinct activity names present in groups.
func (r *Result) EventNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, g := range r.Groups {
		if g.Key.ActivityName != "" && !seen[g.Key.ActivityName] {
			seen[g.Key.ActivityName] = true
			names = append(names, g.Key.ActivityName)
		}
	}
	sort.Strings(names)
	return names
}

// ForEvent returns the groups belonging to one activity name, preserving
// their ranked order.
func (r *Result) ForEvent(name string) []Totals {
	var groups []Totals
	for _, g := range r.Groups {
		if g.Key.ActivityName == name {
			groups = append(groups, g)
		}
	}
	return groups
}
