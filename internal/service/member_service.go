package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"visitas/internal/apperr"
	"visitas/internal/database"
	"visitas/internal/derive"
	"visitas/internal/models"
	"visitas/internal/validation"
)

// MemberInput creates or updates a member. Nil fields are left unchanged on update.
type MemberInput struct {
	FamilyID             *int64  `json:"familyId"`
	FirstName            *string `json:"firstName"`
	LastName             *string `json:"lastName"`
	Phone                *string `json:"phone"`
	Email                *string `json:"email"`
	BirthDate            *Date   `json:"birthDate"`
	ApproxAge            *int    `json:"approxAge"`
	HasDevotionalMeeting *bool   `json:"hasDevotionalMeeting"`
	LastUpdatedAt        *string `json:"lastUpdatedAt"`
}

// familyPlacement places a record through the family it belongs to
func familyPlacement(ctx context.Context, st *stores, familyID *int64) (placement, error) {
	if familyID == nil {
		return placement{}, nil
	}
	f, err := st.families.GetByID(ctx, *familyID)
	if err != nil {
		return placement{}, err
	}
	if f == nil {
		return placement{}, nil
	}
	return placement{BarrioID: f.BarrioID, NucleoID: f.NucleoID}, nil
}

var memberKind = kind[models.Member]{
	entity: models.EntityMember,
	load: func(ctx context.Context, st *stores, id int64) (*models.Member, error) {
		return st.members.GetByID(ctx, id)
	},
	id:        func(m *models.Member) int64 { return m.ID },
	community: func(m *models.Member) int64 { return m.CommunityID },
	version:   func(m *models.Member) time.Time { return m.UpdatedAt },
	stamp:     func(m *models.Member, t time.Time) { m.UpdatedAt = t },
	label:     func(m *models.Member) string { return m.FullName() },
	locate: func(ctx context.Context, st *stores, m *models.Member) (placement, error) {
		return familyPlacement(ctx, st, m.FamilyID)
	},
}

// MemberService manages family members
type MemberService struct {
	p       *Pipeline
	loaders *Loaders
}

// MemberQuery narrows a member list
type MemberQuery struct {
	FamilyID        *int64
	IncludeInactive bool
	Sort            database.Sort
}

func withAge(m *models.Member, now time.Time) {
	m.Age = derive.MemberAge(m.BirthDate, m.ApproxAge, m.ApproxAgeUpdatedAt, now)
}

// List returns the members the actor may see, with derived ages
func (s *MemberService) List(ctx context.Context, actor *models.User, q MemberQuery) ([]models.Member, error) {
	var terms []database.Filter
	if !q.IncludeInactive {
		terms = append(terms, database.Eq("active", true))
	}
	if q.FamilyID != nil {
		terms = append(terms, database.Eq("family_id", *q.FamilyID))
	}
	members, err := visible(actor, models.EntityMember, database.And(terms...), func(f database.Filter) ([]models.Member, error) {
		return s.p.pool.members.List(ctx, f, q.Sort)
	})
	if err != nil {
		return nil, err
	}
	now := s.p.clock()
	for i := range members {
		withAge(&members[i], now)
	}
	return members, nil
}

// Get returns one member with its derived age and family
func (s *MemberService) Get(ctx context.Context, actor *models.User, id int64) (*models.Member, error) {
	m, err := visibleOne(actor, models.EntityMember, id, func(f database.Filter) ([]models.Member, error) {
		return s.p.pool.members.List(ctx, f, database.Sort{})
	})
	if err != nil {
		return nil, err
	}
	withAge(m, s.p.clock())
	if m.Family, err = s.loaders.HouseholdOf(ctx, actor, m); err != nil {
		return nil, err
	}
	return m, nil
}

// familyInCommunity resolves a referenced family or reports BAD_REQUEST
func familyInCommunity(ctx context.Context, st *stores, communityID, id int64) (*models.Family, error) {
	f, err := st.families.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if f == nil || f.CommunityID != communityID || !f.Active {
		return nil, apperr.BadRequestf("family %d does not exist", id)
	}
	return f, nil
}

// recount refreshes a family's member count. Failures are logged apart
// from audit failures and abort the surrounding transaction.
func (s *MemberService) recount(ctx context.Context, st *stores, familyID *int64) error {
	if familyID == nil {
		return nil
	}
	if _, err := st.families.RecountMembers(ctx, *familyID); err != nil {
		s.p.logger.Error("Failed to update family member count",
			zap.String("component", "member_count"),
			zap.Int64("family_id", *familyID),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func validateMemberFields(in MemberInput, now time.Time) error {
	err := validation.First(
		validation.ValidateOptionalEmail(deref(in.Email)),
		validation.ValidateBirthDate(in.BirthDate.timePtr(), now),
		validation.ValidateApproxAge(in.ApproxAge),
	)
	if err != nil {
		return badRequest(err)
	}
	return nil
}

// Create adds a member, optionally to a family whose count is refreshed in
// the same transaction
func (s *MemberService) Create(ctx context.Context, actor *models.User, in MemberInput) (*models.Member, error) {
	return runCreate(ctx, s.p, actor, memberKind, createStep[models.Member]{
		build: func(ctx context.Context, st *stores, now time.Time) (*models.Member, error) {
			firstName := strings.TrimSpace(deref(in.FirstName))
			if err := validation.ValidateRequired("firstName", firstName); err != nil {
				return nil, badRequest(err)
			}
			if err := validateMemberFields(in, now); err != nil {
				return nil, err
			}
			if in.FamilyID != nil {
				if _, err := familyInCommunity(ctx, st, actor.CommunityID, *in.FamilyID); err != nil {
					return nil, err
				}
			}
			return &models.Member{
				CommunityID:          actor.CommunityID,
				FamilyID:             in.FamilyID,
				FirstName:            firstName,
				LastName:             strings.TrimSpace(deref(in.LastName)),
				Phone:                strings.TrimSpace(deref(in.Phone)),
				Email:                strings.TrimSpace(deref(in.Email)),
				BirthDate:            in.BirthDate.timePtr(),
				ApproxAge:            in.ApproxAge,
				HasDevotionalMeeting: deref(in.HasDevotionalMeeting),
				Active:               true,
				CreatedAt:            now,
				UpdatedAt:            now,
			}, nil
		},
		derive: func(m *models.Member, now time.Time) {
			if m.ApproxAge != nil {
				m.ApproxAgeUpdatedAt = ptr(now)
			}
			withAge(m, s.p.clock())
		},
		persist: func(ctx context.Context, st *stores, m *models.Member) error {
			if err := st.members.Create(ctx, m); err != nil {
				return err
			}
			return s.recount(ctx, st, m.FamilyID)
		},
	})
}

// Update changes a member. A birth date cannot change once set; a new
// approximate age restarts its aging clock.
func (s *MemberService) Update(ctx context.Context, actor *models.User, id int64, in MemberInput) (*models.Member, error) {
	return runUpdate(ctx, s.p, actor, memberKind, updateStep[models.Member]{
		id:    id,
		token: in.LastUpdatedAt,
		apply: func(ctx context.Context, st *stores, m *models.Member, now time.Time) error {
			if err := validateMemberFields(in, now); err != nil {
				return err
			}
			if in.FirstName != nil {
				firstName := strings.TrimSpace(*in.FirstName)
				if err := validation.ValidateRequired("firstName", firstName); err != nil {
					return badRequest(err)
				}
				m.FirstName = firstName
			}
			if in.LastName != nil {
				m.LastName = strings.TrimSpace(*in.LastName)
			}
			if in.Phone != nil {
				m.Phone = strings.TrimSpace(*in.Phone)
			}
			if in.Email != nil {
				m.Email = strings.TrimSpace(*in.Email)
			}
			if in.BirthDate != nil {
				if m.BirthDate != nil && !m.BirthDate.Equal(in.BirthDate.Time) {
					return apperr.BadRequest("birth date cannot be changed once set")
				}
				m.BirthDate = in.BirthDate.timePtr()
			}
			if in.ApproxAge != nil {
				m.ApproxAge = ptr(*in.ApproxAge)
			}
			if in.HasDevotionalMeeting != nil {
				m.HasDevotionalMeeting = *in.HasDevotionalMeeting
			}
			if in.FamilyID != nil && !sameID(in.FamilyID, m.FamilyID) {
				if _, err := familyInCommunity(ctx, st, actor.CommunityID, *in.FamilyID); err != nil {
					return err
				}
				m.FamilyID = ptr(*in.FamilyID)
			}
			return nil
		},
		derive: func(before, after *models.Member, now time.Time) {
			if after.ApproxAge != nil && (before.ApproxAge == nil || *before.ApproxAge != *after.ApproxAge) {
				after.ApproxAgeUpdatedAt = ptr(now)
			}
			withAge(after, s.p.clock())
		},
		enrich: func(_ context.Context, m *models.Member) error {
			withAge(m, s.p.clock())
			return nil
		},
		persist: func(ctx context.Context, st *stores, before, after *models.Member) error {
			if err := st.members.Update(ctx, after); err != nil {
				return err
			}
			if !sameID(before.FamilyID, after.FamilyID) {
				if err := s.recount(ctx, st, before.FamilyID); err != nil {
					return err
				}
			}
			return s.recount(ctx, st, after.FamilyID)
		},
	})
}

// Delete deactivates a member. Members linked to a user account must be
// unlinked first.
func (s *MemberService) Delete(ctx context.Context, actor *models.User, id int64) error {
	return runDelete(ctx, s.p, actor, memberKind, deleteStep[models.Member]{
		id: id,
		guard: func(m *models.Member) error {
			if m.UserID != nil {
				return apperr.BadRequest("member is linked to a user account; unlink it first")
			}
			return nil
		},
		remove: func(ctx context.Context, st *stores, m *models.Member, now time.Time) error {
			if err := st.members.SoftDelete(ctx, m.ID, now); err != nil {
				return err
			}
			return s.recount(ctx, st, m.FamilyID)
		},
	})
}

// UnlinkUser detaches a member from its user account. The account itself is kept.
func (s *MemberService) UnlinkUser(ctx context.Context, actor *models.User, id int64) (*models.Member, error) {
	return runUpdate(ctx, s.p, actor, memberKind, updateStep[models.Member]{
		id: id,
		apply: func(_ context.Context, _ *stores, m *models.Member, _ time.Time) error {
			if m.UserID == nil {
				return apperr.BadRequest("member is not linked to a user account")
			}
			m.UserID = nil
			return nil
		},
		derive: func(_, after *models.Member, _ time.Time) {
			withAge(after, s.p.clock())
		},
		persist: func(ctx context.Context, st *stores, before, after *models.Member) error {
			if err := st.members.Update(ctx, after); err != nil {
				return err
			}
			return st.users.SetMember(ctx, *before.UserID, nil, after.UpdatedAt)
		},
	})
}
