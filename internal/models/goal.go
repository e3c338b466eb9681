package models

import "time"

// GoalState is derived from the goal's window and the current date
type GoalState string

const (
	GoalStateFuture    GoalState = "future"
	GoalStateActive    GoalState = "active"
	GoalStateCompleted GoalState = "completed"
)

// GoalProgress holds the four percentages of an active goal
type GoalProgress struct {
	Nucleos     float64 `json:"nucleos"`
	Visits      float64 `json:"visits"`
	Visitors    float64 `json:"visitors"`
	Devotionals float64 `json:"devotionals"`
}

// Goal is a quarterly target for the community
type Goal struct {
	ID                int64     `json:"id"`
	CommunityID       int64     `json:"communityId"`
	Name              string    `json:"name"`
	StartDate         time.Time `json:"startDate"`
	EndDate           time.Time `json:"endDate"`
	NucleosTarget     int       `json:"nucleosTarget"`
	VisitsTarget      int       `json:"visitsTarget"`
	VisitorsTarget    int       `json:"visitorsTarget"`
	DevotionalsTarget int       `json:"devotionalsTarget"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`

	State    GoalState     `json:"state"`
	Progress *GoalProgress `json:"progress"`
}
