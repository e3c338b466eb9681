// Package derive computes fields that are never stored or never accepted
// from clients: visit status, member age and goal state/progress. All
// functions are pure and take the current time as an argument.
package derive

import (
	"math"
	"time"

	"visitas/internal/models"
)

// daysPerYear is the average year length used to age approximate ages
const daysPerYear = 365.25

// civilDay drops the time of day, keeping the calendar date as written in t's location
func civilDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// VisitStatus derives a visit's status from its type, date and activities.
// A visit that could not be done is cancelled whatever else it says. Future
// visits are scheduled. Visits dated today or earlier are completed once at
// least one activity was recorded and stay scheduled (overdue) otherwise.
func VisitStatus(t models.VisitType, date time.Time, hasActivity bool, now time.Time) models.VisitStatus {
	if t == models.VisitTypeCouldNotBeDone {
		return models.VisitStatusCancelled
	}
	if civilDay(date).After(civilDay(now)) {
		return models.VisitStatusScheduled
	}
	if hasActivity {
		return models.VisitStatusCompleted
	}
	return models.VisitStatusScheduled
}

// MemberAge returns the age of a member on now's date, or nil when neither a
// birth date nor an approximate age is known. A birth date always wins.
func MemberAge(birth *time.Time, approx *int, approxAt *time.Time, now time.Time) *int {
	if birth != nil {
		age := calendarAge(*birth, now)
		return &age
	}
	if approx == nil {
		return nil
	}
	age := *approx
	if approxAt != nil {
		elapsed := now.Sub(*approxAt).Hours() / 24 / daysPerYear
		if elapsed > 0 {
			age += int(math.Floor(elapsed))
		}
	}
	return &age
}

func calendarAge(birth, now time.Time) int {
	by, bm, bd := birth.Date()
	ny, nm, nd := now.Date()
	age := ny - by
	if nm < bm || (nm == bm && nd < bd) {
		age--
	}
	return age
}

// GoalState places now relative to the goal window, comparing calendar days
func GoalState(start, end, now time.Time) models.GoalState {
	today := civilDay(now)
	switch {
	case today.Before(civilDay(start)):
		return models.GoalStateFuture
	case today.After(civilDay(end)):
		return models.GoalStateCompleted
	}
	return models.GoalStateActive
}

// GoalCounts are the live figures a goal is measured against
type GoalCounts struct {
	ActiveNucleos      int
	CompletedVisits    int
	DistinctVisitors   int
	DevotionalMeetings int
}

// GoalTargets mirrors the four targets stored on a goal
type GoalTargets struct {
	Nucleos     int
	Visits      int
	Visitors    int
	Devotionals int
}

// TargetsOf extracts the targets of a goal
func TargetsOf(g *models.Goal) GoalTargets {
	return GoalTargets{
		Nucleos:     g.NucleosTarget,
		Visits:      g.VisitsTarget,
		Visitors:    g.VisitorsTarget,
		Devotionals: g.DevotionalsTarget,
	}
}

// GoalProgress turns counts into percentages of their targets, rounded to
// two decimals. A zero target yields 0.
func GoalProgress(counts GoalCounts, targets GoalTargets) models.GoalProgress {
	return models.GoalProgress{
		Nucleos:     percent(counts.ActiveNucleos, targets.Nucleos),
		Visits:      percent(counts.CompletedVisits, targets.Visits),
		Visitors:    percent(counts.DistinctVisitors, targets.Visitors),
		Devotionals: percent(counts.DevotionalMeetings, targets.Devotionals),
	}
}

func percent(count, target int) float64 {
	if target == 0 {
		return 0
	}
	return math.Round(float64(count)/float64(target)*100*100) / 100
}
