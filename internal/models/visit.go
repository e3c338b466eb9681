package models

import "time"

// VisitType is what the visitor reports about the visit
type VisitType string

const (
	VisitTypeFirst          VisitType = "first_visit"
	VisitTypeFollowUp       VisitType = "follow_up"
	VisitTypeCouldNotBeDone VisitType = "could_not_be_done"
)

// Valid reports whether t is a known visit type
func (t VisitType) Valid() bool {
	switch t {
	case VisitTypeFirst, VisitTypeFollowUp, VisitTypeCouldNotBeDone:
		return true
	}
	return false
}

// VisitStatus is computed by the server and never accepted from clients
type VisitStatus string

const (
	VisitStatusScheduled VisitStatus = "scheduled"
	VisitStatusCompleted VisitStatus = "completed"
	VisitStatusCancelled VisitStatus = "cancelled"
)

// VisitActivities records what happened during a visit
type VisitActivities struct {
	Conversation         bool   `json:"conversation"`
	Prayer               bool   `json:"prayer"`
	Reading              bool   `json:"reading"`
	DevotionalInvitation bool   `json:"devotionalInvitation"`
	ChildrenActivity     bool   `json:"childrenActivity"`
	Other                string `json:"other,omitempty"`
}

// Any reports whether at least one activity flag is set
func (a VisitActivities) Any() bool {
	return a.Conversation || a.Prayer || a.Reading || a.DevotionalInvitation || a.ChildrenActivity
}

// VisitMaterials records what was left with the family
type VisitMaterials struct {
	Booklets int    `json:"booklets"`
	Prayers  int    `json:"prayers"`
	Flyers   int    `json:"flyers"`
	Other    string `json:"other,omitempty"`
}

// Visit is a home visit to a family
type Visit struct {
	ID            int64           `json:"id"`
	CommunityID   int64           `json:"communityId"`
	FamilyID      int64           `json:"familyId"`
	AuthorID      int64           `json:"authorId"`
	VisitDate     time.Time       `json:"visitDate"`
	VisitTime     string          `json:"visitTime"`
	Type          VisitType       `json:"type"`
	Status        VisitStatus     `json:"status"`
	VisitorIDs    []int64         `json:"visitorIds"`
	Activities    VisitActivities `json:"activities"`
	Materials     VisitMaterials  `json:"materials"`
	FollowUpDate  *time.Time      `json:"followUpDate,omitempty"`
	FollowUpNotes string          `json:"followUpNotes"`
	Notes         string          `json:"notes"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`

	Family   *Family `json:"family,omitempty"`
	Author   *User   `json:"author,omitempty"`
	Visitors []User  `json:"visitors,omitempty"`
}
