package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"visitas/internal/database"
	"visitas/internal/models"
)

const visitColumns = "id, community_id, family_id, author_id, visit_date, visit_time, type, status, " +
	"activities, materials, follow_up_date, follow_up_notes, notes, created_at, updated_at"

var visitSorts = map[string]string{
	"visitDate": "visit_date",
	"status":    "status",
	"type":      "type",
	"familyId":  "family_id",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
}

// VisitRepository handles database operations for visits and their visitors
type VisitRepository struct {
	db database.DBTX
}

// NewVisitRepository creates a new visit repository
func NewVisitRepository(db database.DBTX) *VisitRepository {
	return &VisitRepository{db: db}
}

func scanVisit(s scanner) (*models.Visit, error) {
	v := &models.Visit{}
	var activities, materials string
	var followUp sql.NullTime
	err := s.Scan(
		&v.ID,
		&v.CommunityID,
		&v.FamilyID,
		&v.AuthorID,
		&v.VisitDate,
		&v.VisitTime,
		&v.Type,
		&v.Status,
		&activities,
		&materials,
		&followUp,
		&v.FollowUpNotes,
		&v.Notes,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := decodeJSON(activities, &v.Activities); err != nil {
		return nil, fmt.Errorf("invalid activities on visit %d: %w", v.ID, err)
	}
	if err := decodeJSON(materials, &v.Materials); err != nil {
		return nil, fmt.Errorf("invalid materials on visit %d: %w", v.ID, err)
	}
	v.VisitDate = dateOnly(v.VisitDate.UTC())
	v.FollowUpDate = timePtr(followUp)
	v.CreatedAt = v.CreatedAt.UTC()
	v.UpdatedAt = v.UpdatedAt.UTC()
	v.VisitorIDs = []int64{}
	return v, nil
}

// GetByID retrieves a visit with its visitor ids
func (r *VisitRepository) GetByID(ctx context.Context, id int64) (*models.Visit, error) {
	query := "SELECT " + visitColumns + " FROM visits WHERE id = ?"
	v, err := scanVisit(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get visit: %w", err)
	}

	visitors, err := r.visitorIDs(ctx, []int64{v.ID})
	if err != nil {
		return nil, err
	}
	if ids, ok := visitors[v.ID]; ok {
		v.VisitorIDs = ids
	}
	return v, nil
}

// List returns the visits matching filter with their visitor ids
func (r *VisitRepository) List(ctx context.Context, filter database.Filter, sort database.Sort) ([]models.Visit, error) {
	query, args := selectWhere(visitColumns, "visits", filter, sort.OrderBy(visitSorts, "visit_date DESC, id DESC"))
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query visits: %w", err)
	}
	defer rows.Close()

	visits := []models.Visit{}
	var ids []int64
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan visit: %w", err)
		}
		visits = append(visits, *v)
		ids = append(ids, v.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read visits: %w", err)
	}
	rows.Close()

	if len(ids) == 0 {
		return visits, nil
	}
	visitors, err := r.visitorIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range visits {
		if vids, ok := visitors[visits[i].ID]; ok {
			visits[i].VisitorIDs = vids
		}
	}
	return visits, nil
}

func (r *VisitRepository) visitorIDs(ctx context.Context, visitIDs []int64) (map[int64][]int64, error) {
	where, args := database.Where(database.In("visit_id", visitIDs...))
	rows, err := r.db.QueryContext(ctx,
		"SELECT visit_id, user_id FROM visit_visitors WHERE "+where+" ORDER BY visit_id, user_id", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query visit visitors: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]int64, len(visitIDs))
	for rows.Next() {
		var visitID, userID int64
		if err := rows.Scan(&visitID, &userID); err != nil {
			return nil, fmt.Errorf("failed to scan visit visitor: %w", err)
		}
		out[visitID] = append(out[visitID], userID)
	}
	return out, rows.Err()
}

// Count returns the number of visits matching filter
func (r *VisitRepository) Count(ctx context.Context, filter database.Filter) (int, error) {
	return countWhere(ctx, r.db, "visits", filter)
}

// CountDistinctVisitors counts the distinct users who took part in any visit matching filter
func (r *VisitRepository) CountDistinctVisitors(ctx context.Context, filter database.Filter) (int, error) {
	where, args := database.Where(database.Related("visit_id", "visits", "id", filter))
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(DISTINCT user_id) FROM visit_visitors WHERE "+where, args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count visitors: %w", err)
	}
	return n, nil
}

// Create inserts a visit and its visitors. Callers run it inside a
// transaction so the two inserts land together.
func (r *VisitRepository) Create(ctx context.Context, v *models.Visit) error {
	activities, err := encodeJSON(v.Activities)
	if err != nil {
		return fmt.Errorf("failed to encode activities: %w", err)
	}
	materials, err := encodeJSON(v.Materials)
	if err != nil {
		return fmt.Errorf("failed to encode materials: %w", err)
	}

	query := `
		INSERT INTO visits (community_id, family_id, author_id, visit_date, visit_time, type, status,
			activities, materials, follow_up_date, follow_up_notes, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(ctx, query,
		v.CommunityID, v.FamilyID, v.AuthorID, dateOnly(v.VisitDate), v.VisitTime, v.Type, v.Status,
		activities, materials, nullTime(dateOnlyPtr(v.FollowUpDate)), v.FollowUpNotes, v.Notes,
		v.CreatedAt, v.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create visit: %w", err)
	}
	v.ID = id
	return r.ReplaceVisitors(ctx, v.ID, v.VisitorIDs)
}

// Update writes every mutable column of v and replaces its visitors
func (r *VisitRepository) Update(ctx context.Context, v *models.Visit) error {
	activities, err := encodeJSON(v.Activities)
	if err != nil {
		return fmt.Errorf("failed to encode activities: %w", err)
	}
	materials, err := encodeJSON(v.Materials)
	if err != nil {
		return fmt.Errorf("failed to encode materials: %w", err)
	}

	query := `
		UPDATE visits
		SET family_id = ?, visit_date = ?, visit_time = ?, type = ?, status = ?, activities = ?, materials = ?,
			follow_up_date = ?, follow_up_notes = ?, notes = ?, updated_at = ?
		WHERE id = ?
	`
	_, err = r.db.ExecContext(ctx, query,
		v.FamilyID, dateOnly(v.VisitDate), v.VisitTime, v.Type, v.Status, activities, materials,
		nullTime(dateOnlyPtr(v.FollowUpDate)), v.FollowUpNotes, v.Notes, v.UpdatedAt, v.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update visit: %w", err)
	}
	return r.ReplaceVisitors(ctx, v.ID, v.VisitorIDs)
}

// ReplaceVisitors sets the visitor list of a visit
func (r *VisitRepository) ReplaceVisitors(ctx context.Context, visitID int64, userIDs []int64) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM visit_visitors WHERE visit_id = ?", visitID); err != nil {
		return fmt.Errorf("failed to clear visit visitors: %w", err)
	}
	seen := make(map[int64]bool, len(userIDs))
	for _, userID := range userIDs {
		if seen[userID] {
			continue
		}
		seen[userID] = true
		if _, err := r.db.ExecContext(ctx, "INSERT INTO visit_visitors (visit_id, user_id) VALUES (?, ?)", visitID, userID); err != nil {
			return fmt.Errorf("failed to add visit visitor: %w", err)
		}
	}
	return nil
}

// Delete removes a visit and its visitor rows
func (r *VisitRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM visit_visitors WHERE visit_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete visit visitors: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, "DELETE FROM visits WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete visit: %w", err)
	}
	return nil
}
