package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"visitas/internal/database"
	"visitas/internal/models"
)

const goalColumns = "id, community_id, name, start_date, end_date, nucleos_target, visits_target, " +
	"visitors_target, devotionals_target, created_at, updated_at"

var goalSorts = map[string]string{
	"name":      "name",
	"startDate": "start_date",
	"endDate":   "end_date",
	"createdAt": "created_at",
}

// GoalRepository handles database operations for goals
type GoalRepository struct {
	db database.DBTX
}

// NewGoalRepository creates a new goal repository
func NewGoalRepository(db database.DBTX) *GoalRepository {
	return &GoalRepository{db: db}
}

func scanGoal(s scanner) (*models.Goal, error) {
	g := &models.Goal{}
	err := s.Scan(
		&g.ID,
		&g.CommunityID,
		&g.Name,
		&g.StartDate,
		&g.EndDate,
		&g.NucleosTarget,
		&g.VisitsTarget,
		&g.VisitorsTarget,
		&g.DevotionalsTarget,
		&g.CreatedAt,
		&g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	g.StartDate = dateOnly(g.StartDate.UTC())
	g.EndDate = dateOnly(g.EndDate.UTC())
	g.CreatedAt = g.CreatedAt.UTC()
	g.UpdatedAt = g.UpdatedAt.UTC()
	return g, nil
}

// GetByID retrieves a goal by ID
func (r *GoalRepository) GetByID(ctx context.Context, id int64) (*models.Goal, error) {
	query := "SELECT " + goalColumns + " FROM goals WHERE id = ?"
	g, err := scanGoal(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get goal: %w", err)
	}
	return g, nil
}

// List returns the goals matching filter
func (r *GoalRepository) List(ctx context.Context, filter database.Filter, sort database.Sort) ([]models.Goal, error) {
	query, args := selectWhere(goalColumns, "goals", filter, sort.OrderBy(goalSorts, "start_date DESC"))
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query goals: %w", err)
	}
	defer rows.Close()

	goals := []models.Goal{}
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan goal: %w", err)
		}
		goals = append(goals, *g)
	}
	return goals, rows.Err()
}

// Create inserts a goal and sets its ID
func (r *GoalRepository) Create(ctx context.Context, g *models.Goal) error {
	query := `
		INSERT INTO goals (community_id, name, start_date, end_date, nucleos_target, visits_target,
			visitors_target, devotionals_target, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(ctx, query,
		g.CommunityID, g.Name, dateOnly(g.StartDate), dateOnly(g.EndDate),
		g.NucleosTarget, g.VisitsTarget, g.VisitorsTarget, g.DevotionalsTarget,
		g.CreatedAt, g.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create goal: %w", err)
	}
	g.ID = id
	return nil
}

// Update writes every mutable column of g
func (r *GoalRepository) Update(ctx context.Context, g *models.Goal) error {
	query := `
		UPDATE goals
		SET name = ?, start_date = ?, end_date = ?, nucleos_target = ?, visits_target = ?,
			visitors_target = ?, devotionals_target = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query,
		g.Name, dateOnly(g.StartDate), dateOnly(g.EndDate),
		g.NucleosTarget, g.VisitsTarget, g.VisitorsTarget, g.DevotionalsTarget,
		g.UpdatedAt, g.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update goal: %w", err)
	}
	return nil
}

// Delete removes a goal
func (r *GoalRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM goals WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete goal: %w", err)
	}
	return nil
}
