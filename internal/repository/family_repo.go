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

const familyColumns = "id, community_id, barrio_id, nucleo_id, name, address, phone, notes, member_count, active, created_at, updated_at"

var familySorts = map[string]string{
	"name":        "name",
	"memberCount": "member_count",
	"createdAt":   "created_at",
	"updatedAt":   "updated_at",
}

// FamilyRepository handles database operations for families
type FamilyRepository struct {
	db database.DBTX
}

// NewFamilyRepository creates a new family repository
func NewFamilyRepository(db database.DBTX) *FamilyRepository {
	return &FamilyRepository{db: db}
}

func scanFamily(s scanner) (*models.Family, error) {
	f := &models.Family{}
	var barrioID, nucleoID sql.NullInt64
	err := s.Scan(
		&f.ID,
		&f.CommunityID,
		&barrioID,
		&nucleoID,
		&f.Name,
		&f.Address,
		&f.Phone,
		&f.Notes,
		&f.MemberCount,
		&f.Active,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	f.BarrioID = int64Ptr(barrioID)
	f.NucleoID = int64Ptr(nucleoID)
	f.CreatedAt = f.CreatedAt.UTC()
	f.UpdatedAt = f.UpdatedAt.UTC()
	return f, nil
}

// GetByID retrieves a family by ID, active or not
func (r *FamilyRepository) GetByID(ctx context.Context, id int64) (*models.Family, error) {
	query := "SELECT " + familyColumns + " FROM families WHERE id = ?"
	f, err := scanFamily(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get family: %w", err)
	}
	return f, nil
}

// List returns the families matching filter
func (r *FamilyRepository) List(ctx context.Context, filter database.Filter, sort database.Sort) ([]models.Family, error) {
	query, args := selectWhere(familyColumns, "families", filter, sort.OrderBy(familySorts, "name ASC"))
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query families: %w", err)
	}
	defer rows.Close()

	families := []models.Family{}
	for rows.Next() {
		f, err := scanFamily(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan family: %w", err)
		}
		families = append(families, *f)
	}
	return families, rows.Err()
}

// Count returns the number of families matching filter
func (r *FamilyRepository) Count(ctx context.Context, filter database.Filter) (int, error) {
	return countWhere(ctx, r.db, "families", filter)
}

// Create inserts a family and sets its ID
func (r *FamilyRepository) Create(ctx context.Context, f *models.Family) error {
	query := `
		INSERT INTO families (community_id, barrio_id, nucleo_id, name, address, phone, notes, member_count, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(ctx, query,
		f.CommunityID, nullInt64(f.BarrioID), nullInt64(f.NucleoID),
		f.Name, f.Address, f.Phone, f.Notes, f.MemberCount, f.Active,
		f.CreatedAt, f.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create family: %w", err)
	}
	f.ID = id
	return nil
}

// Update writes every mutable column of f. member_count is left alone; it
// only changes through RecountMembers.
func (r *FamilyRepository) Update(ctx context.Context, f *models.Family) error {
	query := `
		UPDATE families
		SET barrio_id = ?, nucleo_id = ?, name = ?, address = ?, phone = ?, notes = ?, active = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query,
		nullInt64(f.BarrioID), nullInt64(f.NucleoID),
		f.Name, f.Address, f.Phone, f.Notes, f.Active, f.UpdatedAt, f.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update family: %w", err)
	}
	return nil
}

// SoftDelete marks a family inactive
func (r *FamilyRepository) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	if _, err := r.db.ExecContext(ctx, "UPDATE families SET active = ?, updated_at = ? WHERE id = ?", false, at, id); err != nil {
		return fmt.Errorf("failed to delete family: %w", err)
	}
	return nil
}

// RecountMembers sets member_count to the number of active members of the
// family and returns the new count. updated_at is not touched, so clients
// holding a version token are not invalidated by roster changes.
func (r *FamilyRepository) RecountMembers(ctx context.Context, familyID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM members WHERE family_id = ? AND active = ?", familyID, true,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count family members: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, "UPDATE families SET member_count = ? WHERE id = ?", count, familyID); err != nil {
		return 0, fmt.Errorf("failed to update member count: %w", err)
	}
	return count, nil
}
