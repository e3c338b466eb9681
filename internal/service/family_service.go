package service

import (
	"context"
	"strings"
	"time"

	"visitas/internal/apperr"
	"visitas/internal/database"
	"visitas/internal/models"
	"visitas/internal/validation"
)

// FamilyInput creates or updates a family. Nil fields are left unchanged on update.
type FamilyInput struct {
	Name          *string `json:"name"`
	Address       *string `json:"address"`
	Phone         *string `json:"phone"`
	Notes         *string `json:"notes"`
	BarrioID      *int64  `json:"barrioId"`
	NucleoID      *int64  `json:"nucleoId"`
	LastUpdatedAt *string `json:"lastUpdatedAt"`
}

var familyKind = kind[models.Family]{
	entity: models.EntityFamily,
	load: func(ctx context.Context, st *stores, id int64) (*models.Family, error) {
		return st.families.GetByID(ctx, id)
	},
	id:        func(f *models.Family) int64 { return f.ID },
	community: func(f *models.Family) int64 { return f.CommunityID },
	version:   func(f *models.Family) time.Time { return f.UpdatedAt },
	stamp:     func(f *models.Family, t time.Time) { f.UpdatedAt = t },
	label:     func(f *models.Family) string { return f.Name },
	locate: func(_ context.Context, _ *stores, f *models.Family) (placement, error) {
		return placement{BarrioID: f.BarrioID, NucleoID: f.NucleoID}, nil
	},
}

// FamilyService manages families
type FamilyService struct {
	p       *Pipeline
	loaders *Loaders
}

// FamilyQuery narrows a family list
type FamilyQuery struct {
	BarrioID        *int64
	NucleoID        *int64
	IncludeInactive bool
	Sort            database.Sort
}

// List returns the families the actor may see
func (s *FamilyService) List(ctx context.Context, actor *models.User, q FamilyQuery) ([]models.Family, error) {
	var terms []database.Filter
	if !q.IncludeInactive {
		terms = append(terms, database.Eq("active", true))
	}
	if q.BarrioID != nil {
		terms = append(terms, database.Eq("barrio_id", *q.BarrioID))
	}
	if q.NucleoID != nil {
		terms = append(terms, database.Eq("nucleo_id", *q.NucleoID))
	}
	return visible(actor, models.EntityFamily, database.And(terms...), func(f database.Filter) ([]models.Family, error) {
		return s.p.pool.families.List(ctx, f, q.Sort)
	})
}

// Get returns one family with its barrio, nucleo and active members
func (s *FamilyService) Get(ctx context.Context, actor *models.User, id int64) (*models.Family, error) {
	f, err := visibleOne(actor, models.EntityFamily, id, func(filter database.Filter) ([]models.Family, error) {
		return s.p.pool.families.List(ctx, filter, database.Sort{})
	})
	if err != nil {
		return nil, err
	}
	if f.Barrio, err = s.loaders.BarrioOfFamily(ctx, actor, f); err != nil {
		return nil, err
	}
	if f.Nucleo, err = s.loaders.NucleoOf(ctx, actor, f); err != nil {
		return nil, err
	}
	if f.Members, err = s.loaders.MembersOf(ctx, actor, f); err != nil {
		return nil, err
	}
	return f, nil
}

// resolvePlacement checks a family's barrio and nucleo references. A nucleo
// determines the barrio; a conflicting barrio is rejected.
func resolvePlacement(ctx context.Context, st *stores, communityID int64, barrioID, nucleoID *int64) (*int64, *int64, error) {
	if nucleoID == nil {
		if barrioID != nil {
			if _, err := barrioInCommunity(ctx, st, communityID, *barrioID); err != nil {
				return nil, nil, err
			}
		}
		return barrioID, nil, nil
	}

	n, err := st.nucleos.GetByID(ctx, *nucleoID)
	if err != nil {
		return nil, nil, err
	}
	if n == nil || n.CommunityID != communityID || !n.Active {
		return nil, nil, apperr.BadRequestf("nucleo %d does not exist", *nucleoID)
	}
	if barrioID != nil && *barrioID != n.BarrioID {
		return nil, nil, apperr.BadRequestf("nucleo %d does not belong to barrio %d", n.ID, *barrioID)
	}
	return ptr(n.BarrioID), ptr(n.ID), nil
}

// Create adds a family. Collaborators create families in their own nucleo
// unless they name it explicitly.
func (s *FamilyService) Create(ctx context.Context, actor *models.User, in FamilyInput) (*models.Family, error) {
	return runCreate(ctx, s.p, actor, familyKind, createStep[models.Family]{
		build: func(ctx context.Context, st *stores, now time.Time) (*models.Family, error) {
			name := strings.TrimSpace(deref(in.Name))
			if err := validation.ValidateRequired("name", name); err != nil {
				return nil, badRequest(err)
			}
			nucleoID := in.NucleoID
			if nucleoID == nil && actor.Role == models.RoleCollaborator {
				nucleoID = actor.NucleoID
			}
			barrioID, nucleoID, err := resolvePlacement(ctx, st, actor.CommunityID, in.BarrioID, nucleoID)
			if err != nil {
				return nil, err
			}
			return &models.Family{
				CommunityID: actor.CommunityID,
				BarrioID:    barrioID,
				NucleoID:    nucleoID,
				Name:        name,
				Address:     strings.TrimSpace(deref(in.Address)),
				Phone:       strings.TrimSpace(deref(in.Phone)),
				Notes:       deref(in.Notes),
				Active:      true,
				CreatedAt:   now,
				UpdatedAt:   now,
			}, nil
		},
		persist: func(ctx context.Context, st *stores, f *models.Family) error {
			return st.families.Create(ctx, f)
		},
	})
}

// Update changes a family. A stale lastUpdatedAt is rejected with EDIT_CONFLICT.
func (s *FamilyService) Update(ctx context.Context, actor *models.User, id int64, in FamilyInput) (*models.Family, error) {
	return runUpdate(ctx, s.p, actor, familyKind, updateStep[models.Family]{
		id:    id,
		token: in.LastUpdatedAt,
		apply: func(ctx context.Context, st *stores, f *models.Family, _ time.Time) error {
			if in.Name != nil {
				name := strings.TrimSpace(*in.Name)
				if err := validation.ValidateRequired("name", name); err != nil {
					return badRequest(err)
				}
				f.Name = name
			}
			if in.Address != nil {
				f.Address = strings.TrimSpace(*in.Address)
			}
			if in.Phone != nil {
				f.Phone = strings.TrimSpace(*in.Phone)
			}
			if in.Notes != nil {
				f.Notes = *in.Notes
			}

			if in.BarrioID == nil && in.NucleoID == nil {
				return nil
			}
			barrioID, nucleoID := f.BarrioID, f.NucleoID
			if in.NucleoID != nil {
				// a nil barrio lets the new nucleo decide it
				barrioID, nucleoID = in.BarrioID, in.NucleoID
			} else {
				barrioID = in.BarrioID
			}
			var err error
			f.BarrioID, f.NucleoID, err = resolvePlacement(ctx, st, actor.CommunityID, barrioID, nucleoID)
			return err
		},
		persist: func(ctx context.Context, st *stores, _, f *models.Family) error {
			return st.families.Update(ctx, f)
		},
	})
}

// Delete deactivates a family
func (s *FamilyService) Delete(ctx context.Context, actor *models.User, id int64) error {
	return runDelete(ctx, s.p, actor, familyKind, deleteStep[models.Family]{
		id: id,
		remove: func(ctx context.Context, st *stores, f *models.Family, now time.Time) error {
			return st.families.SoftDelete(ctx, f.ID, now)
		},
	})
}
