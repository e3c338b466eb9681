package models

import "time"

// Role names a user's permission tier
type Role string

const (
	RoleSuperAdmin   Role = "superadmin"
	RoleAdmin        Role = "admin"
	RoleCoordinator  Role = "coordinator"
	RoleCollaborator Role = "collaborator"
	RoleVisitor      Role = "visitor"
)

// IsAdminTier reports whether the role has unrestricted access
func (r Role) IsAdminTier() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleCoordinator:
		return true
	}
	return false
}

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r.IsAdminTier() || r == RoleCollaborator || r == RoleVisitor
}

// Community is the tenant boundary every other entity belongs to
type Community struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// User is an account that can sign in and act on the community's records
type User struct {
	ID           int64     `json:"id"`
	CommunityID  int64     `json:"communityId"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	MemberID     *int64    `json:"memberId,omitempty"`
	NucleoID     *int64    `json:"nucleoId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`

	Member *Member `json:"member,omitempty"`
	Nucleo *Nucleo `json:"nucleo,omitempty"`
}

// Session is a signed-in bearer token. Deleting it revokes the token.
type Session struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}
