package service

import (
	"context"
	"strings"
	"time"

	"visitas/internal/database"
	"visitas/internal/models"
	"visitas/internal/validation"
)

// BarrioInput creates or updates a barrio. Nil fields are left unchanged on update.
type BarrioInput struct {
	Name          *string `json:"name"`
	Description   *string `json:"description"`
	LastUpdatedAt *string `json:"lastUpdatedAt"`
}

var barrioKind = kind[models.Barrio]{
	entity: models.EntityBarrio,
	load: func(ctx context.Context, st *stores, id int64) (*models.Barrio, error) {
		return st.barrios.GetByID(ctx, id)
	},
	id:        func(b *models.Barrio) int64 { return b.ID },
	community: func(b *models.Barrio) int64 { return b.CommunityID },
	version:   func(b *models.Barrio) time.Time { return b.UpdatedAt },
	stamp:     func(b *models.Barrio, t time.Time) { b.UpdatedAt = t },
	label:     func(b *models.Barrio) string { return b.Name },
	locate: func(_ context.Context, _ *stores, b *models.Barrio) (placement, error) {
		id := b.ID
		return placement{BarrioID: &id}, nil
	},
}

// BarrioService manages barrios
type BarrioService struct {
	p *Pipeline
}

// List returns the active barrios the actor may see
func (s *BarrioService) List(ctx context.Context, actor *models.User, sort database.Sort) ([]models.Barrio, error) {
	return visible(actor, models.EntityBarrio, database.Eq("active", true), func(f database.Filter) ([]models.Barrio, error) {
		return s.p.pool.barrios.List(ctx, f, sort)
	})
}

// Get returns one barrio
func (s *BarrioService) Get(ctx context.Context, actor *models.User, id int64) (*models.Barrio, error) {
	return visibleOne(actor, models.EntityBarrio, id, func(f database.Filter) ([]models.Barrio, error) {
		return s.p.pool.barrios.List(ctx, f, database.Sort{})
	})
}

// Create adds a barrio to the actor's community
func (s *BarrioService) Create(ctx context.Context, actor *models.User, in BarrioInput) (*models.Barrio, error) {
	return runCreate(ctx, s.p, actor, barrioKind, createStep[models.Barrio]{
		build: func(_ context.Context, _ *stores, now time.Time) (*models.Barrio, error) {
			name := strings.TrimSpace(deref(in.Name))
			if err := validation.ValidateRequired("name", name); err != nil {
				return nil, badRequest(err)
			}
			return &models.Barrio{
				CommunityID: actor.CommunityID,
				Name:        name,
				Description: strings.TrimSpace(deref(in.Description)),
				Active:      true,
				CreatedAt:   now,
				UpdatedAt:   now,
			}, nil
		},
		persist: func(ctx context.Context, st *stores, b *models.Barrio) error {
			return st.barrios.Create(ctx, b)
		},
	})
}

// Update changes a barrio's name or description
func (s *BarrioService) Update(ctx context.Context, actor *models.User, id int64, in BarrioInput) (*models.Barrio, error) {
	return runUpdate(ctx, s.p, actor, barrioKind, updateStep[models.Barrio]{
		id:    id,
		token: in.LastUpdatedAt,
		apply: func(_ context.Context, _ *stores, b *models.Barrio, _ time.Time) error {
			if in.Name != nil {
				name := strings.TrimSpace(*in.Name)
				if err := validation.ValidateRequired("name", name); err != nil {
					return badRequest(err)
				}
				b.Name = name
			}
			if in.Description != nil {
				b.Description = strings.TrimSpace(*in.Description)
			}
			return nil
		},
		persist: func(ctx context.Context, st *stores, _, b *models.Barrio) error {
			return st.barrios.Update(ctx, b)
		},
	})
}

// Delete deactivates a barrio
func (s *BarrioService) Delete(ctx context.Context, actor *models.User, id int64) error {
	return runDelete(ctx, s.p, actor, barrioKind, deleteStep[models.Barrio]{
		id: id,
		remove: func(ctx context.Context, st *stores, b *models.Barrio, now time.Time) error {
			return st.barrios.SoftDelete(ctx, b.ID, now)
		},
	})
}
