// Package permissions decides what an actor may read, create or modify.
//
// The rules live in a single table keyed by role class, action and entity.
// Evaluate answers questions about one target record; ReadFilter turns the
// same rules into a database filter for list queries.
package permissions

import (
	"visitas/internal/apperr"
	"visitas/internal/models"
)

// Action is what the actor wants to do with a record
type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	// ActionModify covers both updates and deletes
	ActionModify Action = "modify"
)

// Profile is the actor's identity as seen by the policy
type Profile struct {
	UserID      int64
	CommunityID int64
	Role        models.Role
	NucleoID    *int64
}

// Authenticated reports whether the profile belongs to a signed-in user
func (p Profile) Authenticated() bool {
	return p.UserID != 0 && p.CommunityID != 0
}

// Scope locates a target record for scoped roles
type Scope struct {
	NucleoID *int64
}

// InNucleo builds a scope for a record in the given nucleo (nil when unassigned)
func InNucleo(id *int64) Scope {
	return Scope{NucleoID: id}
}

// DecisionKind is the outcome of an evaluation
type DecisionKind int

const (
	Deny DecisionKind = iota
	AllowAll
	AllowScoped
)

func (k DecisionKind) String() string {
	switch k {
	case AllowAll:
		return "allow-all"
	case AllowScoped:
		return "allow-scoped"
	default:
		return "deny"
	}
}

// Decision is the result of evaluating a request. NucleoID is set for
// AllowScoped and names the only nucleo the actor may touch.
type Decision struct {
	Kind     DecisionKind
	NucleoID int64
}

// Allowed reports whether the decision permits anything at all
func (d Decision) Allowed() bool {
	return d.Kind != Deny
}

type rule int

const (
	ruleDeny rule = iota
	ruleAll
	ruleScoped
)

type roleClass int

const (
	classNone roleClass = iota
	classAdmin
	classCollaborator
	classVisitor
)

func classOf(role models.Role) roleClass {
	switch {
	case role.IsAdminTier():
		return classAdmin
	case role == models.RoleCollaborator:
		return classCollaborator
	case role == models.RoleVisitor:
		return classVisitor
	}
	return classNone
}

type policyKey struct {
	class  roleClass
	action Action
	entity models.EntityType
}

// policy lists every grant below the admin tier. Missing keys deny.
var policy = map[policyKey]rule{
	{classCollaborator, ActionRead, models.EntityBarrio}:   ruleScoped,
	{classCollaborator, ActionRead, models.EntityNucleo}:   ruleScoped,
	{classCollaborator, ActionRead, models.EntityFamily}:   ruleScoped,
	{classCollaborator, ActionRead, models.EntityMember}:   ruleScoped,
	{classCollaborator, ActionRead, models.EntityVisit}:    ruleScoped,
	{classCollaborator, ActionRead, models.EntityTimeline}: ruleScoped,
	{classCollaborator, ActionRead, models.EntityUser}:     ruleScoped,
	{classCollaborator, ActionRead, models.EntityGoal}:     ruleAll,

	{classCollaborator, ActionCreate, models.EntityFamily}: ruleScoped,
	{classCollaborator, ActionCreate, models.EntityMember}: ruleScoped,
	{classCollaborator, ActionCreate, models.EntityVisit}:  ruleScoped,

	{classCollaborator, ActionModify, models.EntityFamily}: ruleScoped,
	{classCollaborator, ActionModify, models.EntityMember}: ruleScoped,
	{classCollaborator, ActionModify, models.EntityVisit}:  ruleScoped,

	{classVisitor, ActionRead, models.EntityVisit}:   ruleAll,
	{classVisitor, ActionCreate, models.EntityVisit}: ruleAll,
}

func lookup(p Profile, action Action, entity models.EntityType) rule {
	class := classOf(p.Role)
	if class == classAdmin {
		return ruleAll
	}
	// a collaborator without a nucleo is granted nothing, community-wide reads included
	if class == classCollaborator && p.NucleoID == nil {
		return ruleDeny
	}
	return policy[policyKey{class, action, entity}]
}

// Evaluate decides whether the actor may perform action on a record of
// entity located at target. Scoped roles need an assigned nucleo, and the
// target must sit in that same nucleo.
func Evaluate(p Profile, action Action, entity models.EntityType, target Scope) Decision {
	if !p.Authenticated() {
		return Decision{Kind: Deny}
	}
	switch lookup(p, action, entity) {
	case ruleAll:
		return Decision{Kind: AllowAll}
	case ruleScoped:
		if p.NucleoID == nil {
			return Decision{Kind: Deny}
		}
		if target.NucleoID == nil || *target.NucleoID != *p.NucleoID {
			return Decision{Kind: Deny}
		}
		return Decision{Kind: AllowScoped, NucleoID: *p.NucleoID}
	}
	return Decision{Kind: Deny}
}

// Authorize is Evaluate reported as an error
func Authorize(p Profile, action Action, entity models.EntityType, target Scope) error {
	if !p.Authenticated() {
		return apperr.Unauthenticated("authentication required")
	}
	d := Evaluate(p, action, entity, target)
	if !d.Allowed() {
		return Denied(action, entity)
	}
	return nil
}

// Denied is the FORBIDDEN error reported for action on entity
func Denied(action Action, entity models.EntityType) error {
	return apperr.Forbidden("you are not allowed to " + string(action) + " this " + string(entity))
}

// CanAttempt reports whether the actor could perform action on some record
// of entity, ignoring where a particular record lives.
func CanAttempt(p Profile, action Action, entity models.EntityType) bool {
	if !p.Authenticated() {
		return false
	}
	switch lookup(p, action, entity) {
	case ruleAll:
		return true
	case ruleScoped:
		return p.NucleoID != nil
	}
	return false
}

// RequireScope checks a target nucleo against an earlier decision
func RequireScope(d Decision, targetNucleo *int64) error {
	switch d.Kind {
	case AllowAll:
		return nil
	case AllowScoped:
		if targetNucleo != nil && *targetNucleo == d.NucleoID {
			return nil
		}
		return apperr.Forbidden("record is outside your nucleo")
	}
	return apperr.Forbidden("not allowed")
}
