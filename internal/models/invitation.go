package models

import "time"

// Invitation lets a member create a user account
type Invitation struct {
	ID          int64      `json:"id"`
	CommunityID int64      `json:"communityId"`
	Code        string     `json:"code"`
	Email       string     `json:"email"`
	MemberID    int64      `json:"memberId"`
	Role        Role       `json:"role"`
	NucleoID    *int64     `json:"nucleoId,omitempty"`
	InvitedBy   int64      `json:"invitedBy"`
	CreatedAt   time.Time  `json:"createdAt"`
	ExpiresAt   time.Time  `json:"expiresAt"`
	UsedAt      *time.Time `json:"usedAt,omitempty"`
	UsedBy      *int64     `json:"usedBy,omitempty"`
}

func (i *Invitation) IsExpired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

func (i *Invitation) IsUsed() bool {
	return i.UsedAt != nil
}

func (i *Invitation) IsValid(now time.Time) bool {
	return !i.IsExpired(now) && !i.IsUsed()
}
