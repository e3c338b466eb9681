package service

import (
	"context"
	"strings"
	"time"

	"visitas/internal/apperr"
	"visitas/internal/database"
	"visitas/internal/derive"
	"visitas/internal/models"
	"visitas/internal/validation"
)

// VisitInput creates or updates a visit. Status is never accepted: it is
// derived from type, date and activities. Nil fields are left unchanged on update.
type VisitInput struct {
	FamilyID      *int64                  `json:"familyId"`
	VisitDate     *Date                   `json:"visitDate"`
	VisitTime     *string                 `json:"visitTime"`
	Type          *models.VisitType       `json:"type"`
	VisitorIDs    []int64                 `json:"visitorIds"`
	Activities    *models.VisitActivities `json:"activities"`
	Materials     *models.VisitMaterials  `json:"materials"`
	FollowUpDate  *Date                   `json:"followUpDate"`
	FollowUpNotes *string                 `json:"followUpNotes"`
	Notes         *string                 `json:"notes"`
	LastUpdatedAt *string                 `json:"lastUpdatedAt"`
}

var visitKind = kind[models.Visit]{
	entity: models.EntityVisit,
	load: func(ctx context.Context, st *stores, id int64) (*models.Visit, error) {
		return st.visits.GetByID(ctx, id)
	},
	id:        func(v *models.Visit) int64 { return v.ID },
	community: func(v *models.Visit) int64 { return v.CommunityID },
	version:   func(v *models.Visit) time.Time { return v.UpdatedAt },
	stamp:     func(v *models.Visit, t time.Time) { v.UpdatedAt = t },
	label:     func(v *models.Visit) string { return v.VisitDate.Format(DateLayout) },
	locate: func(ctx context.Context, st *stores, v *models.Visit) (placement, error) {
		return familyPlacement(ctx, st, &v.FamilyID)
	},
}

// VisitService manages home visits
type VisitService struct {
	p       *Pipeline
	loaders *Loaders
}

// VisitQuery narrows a visit list
type VisitQuery struct {
	FamilyID *int64
	Status   *models.VisitStatus
	From     *Date
	To       *Date
	Sort     database.Sort
}

// List returns the visits the actor may see
func (s *VisitService) List(ctx context.Context, actor *models.User, q VisitQuery) ([]models.Visit, error) {
	var terms []database.Filter
	if q.FamilyID != nil {
		terms = append(terms, database.Eq("family_id", *q.FamilyID))
	}
	if q.Status != nil {
		terms = append(terms, database.Eq("status", string(*q.Status)))
	}
	if q.From != nil {
		terms = append(terms, database.Gte("visit_date", q.From.Time))
	}
	if q.To != nil {
		terms = append(terms, database.Lte("visit_date", q.To.Time))
	}
	return visible(actor, models.EntityVisit, database.And(terms...), func(f database.Filter) ([]models.Visit, error) {
		return s.p.pool.visits.List(ctx, f, q.Sort)
	})
}

// Get returns one visit with its family, author and visitors
func (s *VisitService) Get(ctx context.Context, actor *models.User, id int64) (*models.Visit, error) {
	v, err := visibleOne(actor, models.EntityVisit, id, func(f database.Filter) ([]models.Visit, error) {
		return s.p.pool.visits.List(ctx, f, database.Sort{})
	})
	if err != nil {
		return nil, err
	}
	if v.Family, err = s.loaders.FamilyOf(ctx, actor, v); err != nil {
		return nil, err
	}
	if v.Author, err = s.loaders.AuthorOf(ctx, actor, v); err != nil {
		return nil, err
	}
	if v.Visitors, err = s.loaders.VisitorsOf(ctx, actor, v); err != nil {
		return nil, err
	}
	return v, nil
}

// checkVisitors requires every visitor to be a user of the community
func checkVisitors(ctx context.Context, st *stores, communityID int64, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	users, err := st.users.List(ctx, database.And(
		database.Eq("community_id", communityID),
		database.In("id", ids...),
	), database.Sort{})
	if err != nil {
		return err
	}
	known := make(map[int64]bool, len(users))
	for _, u := range users {
		known[u.ID] = true
	}
	for _, id := range ids {
		if !known[id] {
			return apperr.BadRequestf("visitor %d does not exist", id)
		}
	}
	return nil
}

func validateVisitType(t *models.VisitType) error {
	if t != nil && !t.Valid() {
		return apperr.BadRequestf("unknown visit type %q", *t)
	}
	return nil
}

func (s *VisitService) deriveStatus(v *models.Visit) {
	v.Status = derive.VisitStatus(v.Type, v.VisitDate, v.Activities.Any(), s.p.clock())
}

// Create records a visit authored by the actor. With no visitors given, the
// author is the only visitor.
func (s *VisitService) Create(ctx context.Context, actor *models.User, in VisitInput) (*models.Visit, error) {
	return runCreate(ctx, s.p, actor, visitKind, createStep[models.Visit]{
		build: func(ctx context.Context, st *stores, now time.Time) (*models.Visit, error) {
			if in.FamilyID == nil {
				return nil, apperr.BadRequest("family is required")
			}
			if in.VisitDate == nil || in.VisitDate.IsZero() {
				return nil, apperr.BadRequest("visit date is required")
			}
			if in.Type == nil {
				return nil, apperr.BadRequest("visit type is required")
			}
			if err := validateVisitType(in.Type); err != nil {
				return nil, err
			}
			if err := validation.ValidateVisitTime(deref(in.VisitTime)); err != nil {
				return nil, badRequest(err)
			}
			if _, err := familyInCommunity(ctx, st, actor.CommunityID, *in.FamilyID); err != nil {
				return nil, err
			}
			visitors := in.VisitorIDs
			if len(visitors) == 0 {
				visitors = []int64{actor.ID}
			}
			if err := checkVisitors(ctx, st, actor.CommunityID, visitors); err != nil {
				return nil, err
			}
			return &models.Visit{
				CommunityID:   actor.CommunityID,
				FamilyID:      *in.FamilyID,
				AuthorID:      actor.ID,
				VisitDate:     in.VisitDate.Time,
				VisitTime:     deref(in.VisitTime),
				Type:          *in.Type,
				VisitorIDs:    visitors,
				Activities:    deref(in.Activities),
				Materials:     deref(in.Materials),
				FollowUpDate:  in.FollowUpDate.timePtr(),
				FollowUpNotes: strings.TrimSpace(deref(in.FollowUpNotes)),
				Notes:         deref(in.Notes),
				CreatedAt:     now,
				UpdatedAt:     now,
			}, nil
		},
		derive: func(v *models.Visit, _ time.Time) {
			s.deriveStatus(v)
		},
		persist: func(ctx context.Context, st *stores, v *models.Visit) error {
			return st.visits.Create(ctx, v)
		},
	})
}

// Update changes a visit. The status is derived again whenever the type,
// date or activities change, using the resulting values.
func (s *VisitService) Update(ctx context.Context, actor *models.User, id int64, in VisitInput) (*models.Visit, error) {
	return runUpdate(ctx, s.p, actor, visitKind, updateStep[models.Visit]{
		id:    id,
		token: in.LastUpdatedAt,
		apply: func(ctx context.Context, st *stores, v *models.Visit, _ time.Time) error {
			if err := validateVisitType(in.Type); err != nil {
				return err
			}
			if in.Type != nil {
				v.Type = *in.Type
			}
			if in.VisitDate != nil {
				if in.VisitDate.IsZero() {
					return apperr.BadRequest("visit date is required")
				}
				v.VisitDate = in.VisitDate.Time
			}
			if in.VisitTime != nil {
				if err := validation.ValidateVisitTime(*in.VisitTime); err != nil {
					return badRequest(err)
				}
				v.VisitTime = *in.VisitTime
			}
			if in.FamilyID != nil && *in.FamilyID != v.FamilyID {
				if _, err := familyInCommunity(ctx, st, actor.CommunityID, *in.FamilyID); err != nil {
					return err
				}
				v.FamilyID = *in.FamilyID
			}
			if in.VisitorIDs != nil {
				if err := checkVisitors(ctx, st, actor.CommunityID, in.VisitorIDs); err != nil {
					return err
				}
				v.VisitorIDs = append([]int64(nil), in.VisitorIDs...)
			}
			if in.Activities != nil {
				v.Activities = *in.Activities
			}
			if in.Materials != nil {
				v.Materials = *in.Materials
			}
			if in.FollowUpDate != nil {
				v.FollowUpDate = in.FollowUpDate.timePtr()
			}
			if in.FollowUpNotes != nil {
				v.FollowUpNotes = strings.TrimSpace(*in.FollowUpNotes)
			}
			if in.Notes != nil {
				v.Notes = *in.Notes
			}
			return nil
		},
		derive: func(before, after *models.Visit, _ time.Time) {
			if before.Type != after.Type || !before.VisitDate.Equal(after.VisitDate) || before.Activities != after.Activities {
				s.deriveStatus(after)
			}
		},
		persist: func(ctx context.Context, st *stores, _, v *models.Visit) error {
			return st.visits.Update(ctx, v)
		},
	})
}

// Delete removes a visit for good
func (s *VisitService) Delete(ctx context.Context, actor *models.User, id int64) error {
	return runDelete(ctx, s.p, actor, visitKind, deleteStep[models.Visit]{
		id: id,
		remove: func(ctx context.Context, st *stores, v *models.Visit, _ time.Time) error {
			return st.visits.Delete(ctx, v.ID)
		},
	})
}
