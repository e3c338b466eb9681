package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"visitas/internal/database"
	"visitas/internal/models"
)

const barrioColumns = "id, community_id, name, description, active, created_at, updated_at"

var barrioSorts = map[string]string{
	"name":      "name",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
}

// BarrioRepository handles database operations for barrios
type BarrioRepository struct {
	db database.DBTX
}

// NewBarrioRepository creates a new barrio repository
func NewBarrioRepository(db database.DBTX) *BarrioRepository {
	return &BarrioRepository{db: db}
}

func scanBarrio(s scanner) (*models.Barrio, error) {
	b := &models.Barrio{}
	if err := s.Scan(&b.ID, &b.CommunityID, &b.Name, &b.Description, &b.Active, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	return b, nil
}

// GetByID retrieves a barrio by ID, active or not
func (r *BarrioRepository) GetByID(ctx context.Context, id int64) (*models.Barrio, error) {
	query := "SELECT " + barrioColumns + " FROM barrios WHERE id = ?"
	b, err := scanBarrio(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get barrio: %w", err)
	}
	return b, nil
}

// List returns the barrios matching filter
func (r *BarrioRepository) List(ctx context.Context, filter database.Filter, sort database.Sort) ([]models.Barrio, error) {
	query, args := selectWhere(barrioColumns, "barrios", filter, sort.OrderBy(barrioSorts, "name ASC"))
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query barrios: %w", err)
	}
	defer rows.Close()

	barrios := []models.Barrio{}
	for rows.Next() {
		b, err := scanBarrio(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan barrio: %w", err)
		}
		barrios = append(barrios, *b)
	}
	return barrios, rows.Err()
}

// Count returns the number of barrios matching filter
func (r *BarrioRepository) Count(ctx context.Context, filter database.Filter) (int, error) {
	return countWhere(ctx, r.db, "barrios", filter)
}

// Create inserts a barrio and sets its ID
func (r *BarrioRepository) Create(ctx context.Context, b *models.Barrio) error {
	query := `
		INSERT INTO barrios (community_id, name, description, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(ctx, query, b.CommunityID, b.Name, b.Description, b.Active, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create barrio: %w", err)
	}
	b.ID = id
	return nil
}

// Update writes every mutable column of b
func (r *BarrioRepository) Update(ctx context.Context, b *models.Barrio) error {
	query := `
		UPDATE barrios
		SET name = ?, description = ?, active = ?, updated_at = ?
		WHERE id = ?
	`
	if _, err := r.db.ExecContext(ctx, query, b.Name, b.Description, b.Active, b.UpdatedAt, b.ID); err != nil {
		return fmt.Errorf("failed to update barrio: %w", err)
	}
	return nil
}

// SoftDelete marks a barrio inactive
func (r *BarrioRepository) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	if _, err := r.db.ExecContext(ctx, "UPDATE barrios SET active = ?, updated_at = ? WHERE id = ?", false, at, id); err != nil {
		return fmt.Errorf("failed to delete barrio: %w", err)
	}
	return nil
}
