package service

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"visitas/internal/database"
	"visitas/internal/derive"
	"visitas/internal/models"
	"visitas/internal/validation"
)

// GoalInput creates or updates a goal. Nil fields are left unchanged on update.
type GoalInput struct {
	Name              *string `json:"name"`
	StartDate         *Date   `json:"startDate"`
	EndDate           *Date   `json:"endDate"`
	NucleosTarget     *int    `json:"nucleosTarget"`
	VisitsTarget      *int    `json:"visitsTarget"`
	VisitorsTarget    *int    `json:"visitorsTarget"`
	DevotionalsTarget *int    `json:"devotionalsTarget"`
	LastUpdatedAt     *string `json:"lastUpdatedAt"`
}

var goalKind = kind[models.Goal]{
	entity: models.EntityGoal,
	load: func(ctx context.Context, st *stores, id int64) (*models.Goal, error) {
		return st.goals.GetByID(ctx, id)
	},
	id:        func(g *models.Goal) int64 { return g.ID },
	community: func(g *models.Goal) int64 { return g.CommunityID },
	version:   func(g *models.Goal) time.Time { return g.UpdatedAt },
	stamp:     func(g *models.Goal, t time.Time) { g.UpdatedAt = t },
	label:     func(g *models.Goal) string { return g.Name },
	locate: func(context.Context, *stores, *models.Goal) (placement, error) {
		return placement{}, nil
	},
}

// GoalService manages quarterly goals. State and progress are computed on
// every read and never stored.
type GoalService struct {
	p *Pipeline
}

// List returns the community's goals with their state and progress
func (s *GoalService) List(ctx context.Context, actor *models.User, sort database.Sort) ([]models.Goal, error) {
	goals, err := visible(actor, models.EntityGoal, nil, func(f database.Filter) ([]models.Goal, error) {
		return s.p.pool.goals.List(ctx, f, sort)
	})
	if err != nil {
		return nil, err
	}
	for i := range goals {
		if err := s.evaluate(ctx, &goals[i]); err != nil {
			return nil, err
		}
	}
	return goals, nil
}

// Get returns one goal with its state and progress
func (s *GoalService) Get(ctx context.Context, actor *models.User, id int64) (*models.Goal, error) {
	g, err := visibleOne(actor, models.EntityGoal, id, func(f database.Filter) ([]models.Goal, error) {
		return s.p.pool.goals.List(ctx, f, database.Sort{})
	})
	if err != nil {
		return nil, err
	}
	if err := s.evaluate(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

// evaluate fills in state, and progress for active goals only
func (s *GoalService) evaluate(ctx context.Context, g *models.Goal) error {
	g.State = derive.GoalState(g.StartDate, g.EndDate, s.p.clock())
	g.Progress = nil
	if g.State != models.GoalStateActive {
		return nil
	}
	counts, err := s.counts(ctx, g)
	if err != nil {
		return err
	}
	progress := derive.GoalProgress(counts, derive.TargetsOf(g))
	g.Progress = &progress
	return nil
}

// counts gathers the live figures of a goal. They cover the whole
// community, not the reader's nucleo.
func (s *GoalService) counts(ctx context.Context, g *models.Goal) (derive.GoalCounts, error) {
	st := s.p.pool
	community := database.Eq("community_id", g.CommunityID)
	completed := database.And(
		community,
		database.Eq("status", string(models.VisitStatusCompleted)),
		database.Between("visit_date", g.StartDate, g.EndDate),
	)

	var c derive.GoalCounts
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		n, err := st.nucleos.Count(ctx, database.And(community, database.Eq("active", true)))
		c.ActiveNucleos = n
		return err
	})
	eg.Go(func() error {
		n, err := st.visits.Count(ctx, completed)
		c.CompletedVisits = n
		return err
	})
	eg.Go(func() error {
		n, err := st.visits.CountDistinctVisitors(ctx, completed)
		c.DistinctVisitors = n
		return err
	})
	eg.Go(func() error {
		n, err := st.members.Count(ctx, database.And(
			community,
			database.Eq("active", true),
			database.Eq("has_devotional_meeting", true),
		))
		c.DevotionalMeetings = n
		return err
	})
	if err := eg.Wait(); err != nil {
		return derive.GoalCounts{}, err
	}
	return c, nil
}

func validateTargets(in GoalInput) error {
	err := validation.First(
		validation.ValidateNonNegative("nucleosTarget", deref(in.NucleosTarget)),
		validation.ValidateNonNegative("visitsTarget", deref(in.VisitsTarget)),
		validation.ValidateNonNegative("visitorsTarget", deref(in.VisitorsTarget)),
		validation.ValidateNonNegative("devotionalsTarget", deref(in.DevotionalsTarget)),
	)
	if err != nil {
		return badRequest(err)
	}
	return nil
}

// Create adds a goal
func (s *GoalService) Create(ctx context.Context, actor *models.User, in GoalInput) (*models.Goal, error) {
	g, err := runCreate(ctx, s.p, actor, goalKind, createStep[models.Goal]{
		build: func(_ context.Context, _ *stores, now time.Time) (*models.Goal, error) {
			name := strings.TrimSpace(deref(in.Name))
			if err := validation.ValidateRequired("name", name); err != nil {
				return nil, badRequest(err)
			}
			g := &models.Goal{
				CommunityID:       actor.CommunityID,
				Name:              name,
				NucleosTarget:     deref(in.NucleosTarget),
				VisitsTarget:      deref(in.VisitsTarget),
				VisitorsTarget:    deref(in.VisitorsTarget),
				DevotionalsTarget: deref(in.DevotionalsTarget),
				CreatedAt:         now,
				UpdatedAt:         now,
			}
			if in.StartDate != nil {
				g.StartDate = in.StartDate.Time
			}
			if in.EndDate != nil {
				g.EndDate = in.EndDate.Time
			}
			if err := validation.ValidateDateRange(g.StartDate, g.EndDate); err != nil {
				return nil, badRequest(err)
			}
			if err := validateTargets(in); err != nil {
				return nil, err
			}
			return g, nil
		},
		persist: func(ctx context.Context, st *stores, g *models.Goal) error {
			return st.goals.Create(ctx, g)
		},
	})
	if err != nil {
		return nil, err
	}
	if err := s.evaluate(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

// Update changes a goal's window or targets
func (s *GoalService) Update(ctx context.Context, actor *models.User, id int64, in GoalInput) (*models.Goal, error) {
	g, err := runUpdate(ctx, s.p, actor, goalKind, updateStep[models.Goal]{
		id:    id,
		token: in.LastUpdatedAt,
		apply: func(_ context.Context, _ *stores, g *models.Goal, _ time.Time) error {
			if in.Name != nil {
				name := strings.TrimSpace(*in.Name)
				if err := validation.ValidateRequired("name", name); err != nil {
					return badRequest(err)
				}
				g.Name = name
			}
			if in.StartDate != nil {
				g.StartDate = in.StartDate.Time
			}
			if in.EndDate != nil {
				g.EndDate = in.EndDate.Time
			}
			if err := validation.ValidateDateRange(g.StartDate, g.EndDate); err != nil {
				return badRequest(err)
			}
			if err := validateTargets(in); err != nil {
				return err
			}
			if in.NucleosTarget != nil {
				g.NucleosTarget = *in.NucleosTarget
			}
			if in.VisitsTarget != nil {
				g.VisitsTarget = *in.VisitsTarget
			}
			if in.VisitorsTarget != nil {
				g.VisitorsTarget = *in.VisitorsTarget
			}
			if in.DevotionalsTarget != nil {
				g.DevotionalsTarget = *in.DevotionalsTarget
			}
			return nil
		},
		persist: func(ctx context.Context, st *stores, _, g *models.Goal) error {
			return st.goals.Update(ctx, g)
		},
		enrich: s.evaluate,
	})
	if err != nil {
		return nil, err
	}
	if err := s.evaluate(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

// Delete removes a goal for good
func (s *GoalService) Delete(ctx context.Context, actor *models.User, id int64) error {
	return runDelete(ctx, s.p, actor, goalKind, deleteStep[models.Goal]{
		id: id,
		remove: func(ctx context.Context, st *stores, g *models.Goal, _ time.Time) error {
			return st.goals.Delete(ctx, g.ID)
		},
	})
}
