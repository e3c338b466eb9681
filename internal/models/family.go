package models

import "time"

// Barrio is a neighborhood within a community
type Barrio struct {
	ID          int64     `json:"id"`
	CommunityID int64     `json:"communityId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Nucleo is a sub-group of a barrio and the scoping unit for collaborators
type Nucleo struct {
	ID          int64     `json:"id"`
	CommunityID int64     `json:"communityId"`
	BarrioID    int64     `json:"barrioId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	Barrio *Barrio `json:"barrio,omitempty"`
}

// Family is a household that receives visits
type Family struct {
	ID          int64     `json:"id"`
	CommunityID int64     `json:"communityId"`
	BarrioID    *int64    `json:"barrioId,omitempty"`
	NucleoID    *int64    `json:"nucleoId,omitempty"`
	Name        string    `json:"name"`
	Address     string    `json:"address"`
	Phone       string    `json:"phone"`
	Notes       string    `json:"notes"`
	MemberCount int       `json:"memberCount"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	Barrio  *Barrio  `json:"barrio,omitempty"`
	Nucleo  *Nucleo  `json:"nucleo,omitempty"`
	Members []Member `json:"members,omitempty"`
}

// Member is a person, optionally part of a family and optionally linked to a user.
// Age is never stored: it comes from BirthDate, or from ApproxAge aged by the
// time elapsed since ApproxAgeUpdatedAt.
type Member struct {
	ID                   int64      `json:"id"`
	CommunityID          int64      `json:"communityId"`
	FamilyID             *int64     `json:"familyId,omitempty"`
	UserID               *int64     `json:"userId,omitempty"`
	FirstName            string     `json:"firstName"`
	LastName             string     `json:"lastName"`
	Phone                string     `json:"phone"`
	Email                string     `json:"email"`
	BirthDate            *time.Time `json:"birthDate,omitempty"`
	ApproxAge            *int       `json:"approxAge,omitempty"`
	ApproxAgeUpdatedAt   *time.Time `json:"approxAgeUpdatedAt,omitempty"`
	HasDevotionalMeeting bool       `json:"hasDevotionalMeeting"`
	Active               bool       `json:"active"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`

	Age    *int    `json:"age"`
	Family *Family `json:"family,omitempty"`
}

// FullName joins first and last name
func (m *Member) FullName() string {
	if m.LastName == "" {
		return m.FirstName
	}
	return m.FirstName + " " + m.LastName
}
