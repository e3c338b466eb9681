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

const nucleoColumns = "id, community_id, barrio_id, name, description, active, created_at, updated_at"

var nucleoSorts = map[string]string{
	"name":      "name",
	"barrioId":  "barrio_id",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
}

// NucleoRepository handles database operations for nucleos
type NucleoRepository struct {
	db database.DBTX
}

// NewNucleoRepository creates a new nucleo repository
func NewNucleoRepository(db database.DBTX) *NucleoRepository {
	return &NucleoRepository{db: db}
}

func scanNucleo(s scanner) (*models.Nucleo, error) {
	n := &models.Nucleo{}
	if err := s.Scan(&n.ID, &n.CommunityID, &n.BarrioID, &n.Name, &n.Description, &n.Active, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	n.CreatedAt = n.CreatedAt.UTC()
	n.UpdatedAt = n.UpdatedAt.UTC()
	return n, nil
}

// GetByID retrieves a nucleo by ID, active or not
func (r *NucleoRepository) GetByID(ctx context.Context, id int64) (*models.Nucleo, error) {
	query := "SELECT " + nucleoColumns + " FROM nucleos WHERE id = ?"
	n, err := scanNucleo(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get nucleo: %w", err)
	}
	return n, nil
}

// List returns the nucleos matching filter
func (r *NucleoRepository) List(ctx context.Context, filter database.Filter, sort database.Sort) ([]models.Nucleo, error) {
	query, args := selectWhere(nucleoColumns, "nucleos", filter, sort.OrderBy(nucleoSorts, "name ASC"))
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query nucleos: %w", err)
	}
	defer rows.Close()

	nucleos := []models.Nucleo{}
	for rows.Next() {
		n, err := scanNucleo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan nucleo: %w", err)
		}
		nucleos = append(nucleos, *n)
	}
	return nucleos, rows.Err()
}

// Count returns the number of nucleos matching filter
func (r *NucleoRepository) Count(ctx context.Context, filter database.Filter) (int, error) {
	return countWhere(ctx, r.db, "nucleos", filter)
}

// Create inserts a nucleo and sets its ID
func (r *NucleoRepository) Create(ctx context.Context, n *models.Nucleo) error {
	query := `
		INSERT INTO nucleos (community_id, barrio_id, name, description, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(ctx, query, n.CommunityID, n.BarrioID, n.Name, n.Description, n.Active, n.CreatedAt, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create nucleo: %w", err)
	}
	n.ID = id
	return nil
}

// Update writes every mutable column of n
func (r *NucleoRepository) Update(ctx context.Context, n *models.Nucleo) error {
	query := `
		UPDATE nucleos
		SET barrio_id = ?, name = ?, description = ?, active = ?, updated_at = ?
		WHERE id = ?
	`
	if _, err := r.db.ExecContext(ctx, query, n.BarrioID, n.Name, n.Description, n.Active, n.UpdatedAt, n.ID); err != nil {
		return fmt.Errorf("failed to update nucleo: %w", err)
	}
	return nil
}

// SoftDelete marks a nucleo inactive
func (r *NucleoRepository) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	if _, err := r.db.ExecContext(ctx, "UPDATE nucleos SET active = ?, updated_at = ? WHERE id = ?", false, at, id); err != nil {
		return fmt.Errorf("failed to delete nucleo: %w", err)
	}
	return nil
}
