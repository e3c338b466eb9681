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

// NucleoInput creates or updates a nucleo. Nil fields are left unchanged on update.
type NucleoInput struct {
	BarrioID      *int64  `json:"barrioId"`
	Name          *string `json:"name"`
	Description   *string `json:"description"`
	LastUpdatedAt *string `json:"lastUpdatedAt"`
}

var nucleoKind = kind[models.Nucleo]{
	entity: models.EntityNucleo,
	load: func(ctx context.Context, st *stores, id int64) (*models.Nucleo, error) {
		return st.nucleos.GetByID(ctx, id)
	},
	id:        func(n *models.Nucleo) int64 { return n.ID },
	community: func(n *models.Nucleo) int64 { return n.CommunityID },
	version:   func(n *models.Nucleo) time.Time { return n.UpdatedAt },
	stamp:     func(n *models.Nucleo, t time.Time) { n.UpdatedAt = t },
	label:     func(n *models.Nucleo) string { return n.Name },
	locate: func(_ context.Context, _ *stores, n *models.Nucleo) (placement, error) {
		id, barrioID := n.ID, n.BarrioID
		return placement{BarrioID: &barrioID, NucleoID: &id}, nil
	},
}

// NucleoService manages nucleos
type NucleoService struct {
	p       *Pipeline
	loaders *Loaders
}

// NucleoQuery narrows a nucleo list
type NucleoQuery struct {
	BarrioID *int64
	Sort     database.Sort
}

// List returns the active nucleos the actor may see
func (s *NucleoService) List(ctx context.Context, actor *models.User, q NucleoQuery) ([]models.Nucleo, error) {
	filter := database.Eq("active", true)
	if q.BarrioID != nil {
		filter = database.And(filter, database.Eq("barrio_id", *q.BarrioID))
	}
	return visible(actor, models.EntityNucleo, filter, func(f database.Filter) ([]models.Nucleo, error) {
		return s.p.pool.nucleos.List(ctx, f, q.Sort)
	})
}

// Get returns one nucleo with its barrio
func (s *NucleoService) Get(ctx context.Context, actor *models.User, id int64) (*models.Nucleo, error) {
	n, err := visibleOne(actor, models.EntityNucleo, id, func(f database.Filter) ([]models.Nucleo, error) {
		return s.p.pool.nucleos.List(ctx, f, database.Sort{})
	})
	if err != nil {
		return nil, err
	}
	if n.Barrio, err = s.loaders.BarrioOf(ctx, actor, n); err != nil {
		return nil, err
	}
	return n, nil
}

// barrioInCommunity resolves a referenced barrio or reports BAD_REQUEST
func barrioInCommunity(ctx context.Context, st *stores, communityID, id int64) (*models.Barrio, error) {
	b, err := st.barrios.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b == nil || b.CommunityID != communityID || !b.Active {
		return nil, apperr.BadRequestf("barrio %d does not exist", id)
	}
	return b, nil
}

// Create adds a nucleo to an existing barrio
func (s *NucleoService) Create(ctx context.Context, actor *models.User, in NucleoInput) (*models.Nucleo, error) {
	return runCreate(ctx, s.p, actor, nucleoKind, createStep[models.Nucleo]{
		build: func(ctx context.Context, st *stores, now time.Time) (*models.Nucleo, error) {
			name := strings.TrimSpace(deref(in.Name))
			if err := validation.ValidateRequired("name", name); err != nil {
				return nil, badRequest(err)
			}
			if in.BarrioID == nil {
				return nil, apperr.BadRequest("barrio is required")
			}
			if _, err := barrioInCommunity(ctx, st, actor.CommunityID, *in.BarrioID); err != nil {
				return nil, err
			}
			return &models.Nucleo{
				CommunityID: actor.CommunityID,
				BarrioID:    *in.BarrioID,
				Name:        name,
				Description: strings.TrimSpace(deref(in.Description)),
				Active:      true,
				CreatedAt:   now,
				UpdatedAt:   now,
			}, nil
		},
		persist: func(ctx context.Context, st *stores, n *models.Nucleo) error {
			return st.nucleos.Create(ctx, n)
		},
	})
}

// Update renames a nucleo or moves it to another barrio
func (s *NucleoService) Update(ctx context.Context, actor *models.User, id int64, in NucleoInput) (*models.Nucleo, error) {
	return runUpdate(ctx, s.p, actor, nucleoKind, updateStep[models.Nucleo]{
		id:    id,
		token: in.LastUpdatedAt,
		apply: func(ctx context.Context, st *stores, n *models.Nucleo, _ time.Time) error {
			if in.Name != nil {
				name := strings.TrimSpace(*in.Name)
				if err := validation.ValidateRequired("name", name); err != nil {
					return badRequest(err)
				}
				n.Name = name
			}
			if in.Description != nil {
				n.Description = strings.TrimSpace(*in.Description)
			}
			if in.BarrioID != nil && *in.BarrioID != n.BarrioID {
				if _, err := barrioInCommunity(ctx, st, actor.CommunityID, *in.BarrioID); err != nil {
					return err
				}
				n.BarrioID = *in.BarrioID
			}
			return nil
		},
		persist: func(ctx context.Context, st *stores, _, n *models.Nucleo) error {
			return st.nucleos.Update(ctx, n)
		},
	})
}

// Delete deactivates a nucleo
func (s *NucleoService) Delete(ctx context.Context, actor *models.User, id int64) error {
	return runDelete(ctx, s.p, actor, nucleoKind, deleteStep[models.Nucleo]{
		id: id,
		remove: func(ctx context.Context, st *stores, n *models.Nucleo, now time.Time) error {
			return st.nucleos.SoftDelete(ctx, n.ID, now)
		},
	})
}
