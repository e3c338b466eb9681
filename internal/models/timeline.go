package models

import "time"

// AuditAction is the kind of action recorded in the timeline
type AuditAction string

const (
	ActionLogin  AuditAction = "login"
	ActionLogout AuditAction = "logout"
	ActionCreate AuditAction = "create"
	ActionUpdate AuditAction = "update"
	ActionDelete AuditAction = "delete"
	ActionImport AuditAction = "import"
	ActionExport AuditAction = "export"
)

// EntityType names the kind of record an event or permission refers to
type EntityType string

const (
	EntityBarrio     EntityType = "barrio"
	EntityNucleo     EntityType = "nucleo"
	EntityFamily     EntityType = "family"
	EntityMember     EntityType = "member"
	EntityVisit      EntityType = "visit"
	EntityGoal       EntityType = "goal"
	EntityUser       EntityType = "user"
	EntityInvitation EntityType = "invitation"
	EntityTimeline   EntityType = "timeline"
	EntityCommunity  EntityType = "community"
)

// TimelineEvent is an append-only audit record
type TimelineEvent struct {
	ID          int64          `json:"id"`
	CommunityID int64          `json:"communityId"`
	ActorID     *int64         `json:"actorId,omitempty"`
	Action      AuditAction    `json:"action"`
	EntityType  EntityType     `json:"entityType"`
	EntityID    *int64         `json:"entityId,omitempty"`
	Summary     string         `json:"summary"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	BarrioID    *int64         `json:"barrioId,omitempty"`
	NucleoID    *int64         `json:"nucleoId,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}
