package aggregate

import (
	"testing"
	"time"

	"github.com/clubboard/server/pkg/integrations/strava"
)

func mustLoadPacific(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Fatalf("load zone: %v", err)
	}
	return loc
}

func runActivity(athleteID int64, name string, meters float64, movingSec, elapsedSec int, start string) strava.Activity {
	return strava.Activity{
		Type:           strava.ActivityTypeRun,
		Name:           name,
		Distance:       meters,
		MovingTime:     movingSec,
		ElapsedTime:    elapsedSec,
		StartDateLocal: start,
		Athlete:        strava.Athlete{ID: athleteID, FirstName: "Athlete", LastName: "A."},
	}
}

func TestAggregate_SumsAllMatchingRunsPerAthlete(t *testing.T) {
	// Two runs for the same athlete: 1 mile + 2 miles, 10 + 20 minutes
	activities := []strava.Activity{
		runActivity(1, "Morning Run", 1609.344, 600, 620, "2026-08-22T08:00:00Z"),
		runActivity(1, "Evening Run", 3218.688, 1200, 1250, "2026-08-22T18:00:00Z"),
	}

	result := Aggregate(activities, Options{GroupBy: ByAthlete})

	if len(result.Groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(result.Groups))
	}
	g := result.Groups[0]
	if g.Meters != 4828.032 {
		t.Errorf("Meters = %f, want 4828.032", g.Meters)
	}
	if g.MovingSec != 1800 {
		t.Errorf("MovingSec = %d, want 1800", g.MovingSec)
	}
	if g.ElapsedSec != 1870 {
		t.Errorf("ElapsedSec = %d, want 1870", g.ElapsedSec)
	}
	if g.DisplayName != "Athlete A." {
		t.Errorf("DisplayName = %q", g.DisplayName)
	}
}

func TestAggregate_SortsDescendingByDistanceStable(t *testing.T) {
	activities := []strava.Activity{
		runActivity(1, "Run", 5000, 1500, 1500, ""),
		runActivity(2, "Run", 8000, 2400, 2400, ""),
		runActivity(3, "Run", 5000, 1400, 1400, ""), // ties athlete 1, seen later
	}

	result := Aggregate(activities, Options{GroupBy: ByAthlete})

	wantOrder := []int64{2, 1, 3}
	if len(result.Groups) != len(wantOrder) {
		t.Fatalf("got %d groups, want %d", len(result.Groups), len(wantOrder))
	}
	for i, want := range wantOrder {
		if result.Groups[i].Key.AthleteID != want {
			t.Errorf("Groups[%d].AthleteID = %d, want %d", i, result.Groups[i].Key.AthleteID, want)
		}
	}
}

func TestAggregate_SkipsUnresolvableAthletes(t *testing.T) {
	activities := []strava.Activity{
		runActivity(1, "Run", 5000, 1500, 1500, ""),
		runActivity(0, "Run", 3000, 900, 900, ""), // no athlete ID
	}

	result := Aggregate(activities, Options{GroupBy: ByAthlete})

	if len(result.Groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(result.Groups))
	}
	if result.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", result.Skipped)
	}
}

func TestAggregate_IgnoresNonRuns(t *testing.T) {
	activities := []strava.Activity{
		{Type: "Ride", Name: "Commute", Distance: 10000, Athlete: strava.Athlete{ID: 1}},
	}

	result := Aggregate(activities, Options{GroupBy: ByAthlete})
	if len(result.Groups) != 0 {
		t.Errorf("got %d groups, want 0", len(result.Groups))
	}
	if result.Skipped != 0 {
		t.Errorf("Skipped = %d, want 0 (non-runs are not skipped activities)", result.Skipped)
	}
}

func TestAggregate_WindowBoundariesAreHalfOpen(t *testing.T) {
	loc := mustLoadPacific(t)
	window := DayWindow(time.Date(2026, 8, 22, 0, 0, 0, 0, loc), loc)

	activities := []strava.Activity{
		// Exactly at window start: included
		runActivity(1, "Run", 1000, 300, 300, "2026-08-22T00:00:00-07:00"),
		// Exactly at window end: excluded
		runActivity(2, "Run", 2000, 600, 600, "2026-08-23T00:00:00-07:00"),
		// Carries a different offset; 23:30 PT on the 22nd once normalized
		runActivity(3, "Run", 3000, 900, 900, "2026-08-23T02:30:00-04:00"),
		// Day before: excluded
		runActivity(4, "Run", 4000, 1200, 1200, "2026-08-21T23:59:59-07:00"),
	}

	result := Aggregate(activities, Options{
		GroupBy: ByAthlete,
		Window:  &window,
		Zone:    loc,
	})

	got := make(map[int64]bool)
	for _, g := range result.Groups {
		got[g.Key.AthleteID] = true
	}
	if !got[1] {
		t.Error("activity at window start excluded, want included")
	}
	if got[2] {
		t.Error("activity at window end included, want excluded")
	}
	if !got[3] {
		t.Error("offset-carrying activity inside window excluded, want included")
	}
	if got[4] {
		t.Error("previous-day activity included, want excluded")
	}
}

func TestAggregate_MissingStartTimeFallsOutsideWindow(t *testing.T) {
	loc := mustLoadPacific(t)
	window := DayWindow(time.Date(2026, 8, 22, 0, 0, 0, 0, loc), loc)

	activities := []strava.Activity{
		runActivity(1, "Run", 1000, 300, 300, ""),
	}

	result := Aggregate(activities, Options{GroupBy: ByAthlete, Window: &window, Zone: loc})
	if len(result.Groups) != 0 {
		t.Errorf("activity without start time matched a window, want excluded")
	}
}

func TestAggregate_ByActivityAndAthlete(t *testing.T) {
	activities := []strava.Activity{
		runActivity(1, "Track Tuesday", 5000, 1500, 1500, ""),
		runActivity(2, "Track Tuesday", 4000, 1300, 1300, ""),
		runActivity(1, "Saturday Long Run", 16000, 5400, 5500, ""),
	}

	result := Aggregate(activities, Options{GroupBy: ByActivityAndAthlete})

	if len(result.Groups) != 3 {
		t.Fatalf("got %d groups, want 3", len(result.Groups))
	}

	names := result.EventNames()
	if len(names) != 2 || names[0] != "Saturday Long Run" || names[1] != "Track Tuesday" {
		t.Errorf("EventNames() = %v", names)
	}

	tuesday := result.ForEvent("Track Tuesday")
	if len(tuesday) != 2 {
		t.Fatalf("ForEvent returned %d groups, want 2", len(tuesday))
	}
	if tuesday[0].Key.AthleteID != 1 || tuesday[1].Key.AthleteID != 2 {
		t.Errorf("event ranking order wrong: %+v", tuesday)
	}
}

func TestAggregate_ActivityNameFilter(t *testing.T) {
	activities := []strava.Activity{
		runActivity(1, "Track Tuesday", 5000, 1500, 1500, ""),
		runActivity(1, "Recovery Jog", 3000, 1200, 1200, ""),
	}

	result := Aggregate(activities, Options{GroupBy: ByActivityAndAthlete, ActivityName: "Track Tuesday"})

	if len(result.Groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(result.Groups))
	}
	if result.Groups[0].Meters != 5000 {
		t.Errorf("Meters = %f, want 5000 (filter leaked other runs in)", result.Groups[0].Meters)
	}
}
