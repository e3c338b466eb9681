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

const memberColumns = "id, community_id, family_id, user_id, first_name, last_name, phone, email, " +
	"birth_date, approx_age, approx_age_updated_at, has_devotional_meeting, active, created_at, updated_at"

var memberSorts = map[string]string{
	"firstName": "first_name",
	"lastName":  "last_name",
	"familyId":  "family_id",
	"birthDate": "birth_date",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
}

// MemberRepository handles database operations for members
type MemberRepository struct {
	db database.DBTX
}

// NewMemberRepository creates a new member repository
func NewMemberRepository(db database.DBTX) *MemberRepository {
	return &MemberRepository{db: db}
}

func scanMember(s scanner) (*models.Member, error) {
	m := &models.Member{}
	var familyID, userID, approxAge sql.NullInt64
	var birthDate, approxAt sql.NullTime
	err := s.Scan(
		&m.ID,
		&m.CommunityID,
		&familyID,
		&userID,
		&m.FirstName,
		&m.LastName,
		&m.Phone,
		&m.Email,
		&birthDate,
		&approxAge,
		&approxAt,
		&m.HasDevotionalMeeting,
		&m.Active,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.FamilyID = int64Ptr(familyID)
	m.UserID = int64Ptr(userID)
	m.BirthDate = timePtr(birthDate)
	m.ApproxAge = intPtr(approxAge)
	m.ApproxAgeUpdatedAt = timePtr(approxAt)
	m.CreatedAt = m.CreatedAt.UTC()
	m.UpdatedAt = m.UpdatedAt.UTC()
	return m, nil
}

// GetByID retrieves a member by ID, active or not
func (r *MemberRepository) GetByID(ctx context.Context, id int64) (*models.Member, error) {
	query := "SELECT " + memberColumns + " FROM members WHERE id = ?"
	m, err := scanMember(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return m, nil
}

// List returns the members matching filter
func (r *MemberRepository) List(ctx context.Context, filter database.Filter, sort database.Sort) ([]models.Member, error) {
	query, args := selectWhere(memberColumns, "members", filter, sort.OrderBy(memberSorts, "first_name ASC, last_name ASC"))
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer rows.Close()

	members := []models.Member{}
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

// Count returns the number of members matching filter
func (r *MemberRepository) Count(ctx context.Context, filter database.Filter) (int, error) {
	return countWhere(ctx, r.db, "members", filter)
}

// Create inserts a member and sets its ID
func (r *MemberRepository) Create(ctx context.Context, m *models.Member) error {
	query := `
		INSERT INTO members (community_id, family_id, user_id, first_name, last_name, phone, email,
			birth_date, approx_age, approx_age_updated_at, has_devotional_meeting, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(ctx, query,
		m.CommunityID, nullInt64(m.FamilyID), nullInt64(m.UserID),
		m.FirstName, m.LastName, m.Phone, m.Email,
		nullTime(dateOnlyPtr(m.BirthDate)), nullInt(m.ApproxAge), nullTime(m.ApproxAgeUpdatedAt),
		m.HasDevotionalMeeting, m.Active, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create member: %w", err)
	}
	m.ID = id
	return nil
}

// Update writes every mutable column of m
func (r *MemberRepository) Update(ctx context.Context, m *models.Member) error {
	query := `
		UPDATE members
		SET family_id = ?, user_id = ?, first_name = ?, last_name = ?, phone = ?, email = ?,
			birth_date = ?, approx_age = ?, approx_age_updated_at = ?, has_devotional_meeting = ?,
			active = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query,
		nullInt64(m.FamilyID), nullInt64(m.UserID),
		m.FirstName, m.LastName, m.Phone, m.Email,
		nullTime(dateOnlyPtr(m.BirthDate)), nullInt(m.ApproxAge), nullTime(m.ApproxAgeUpdatedAt),
		m.HasDevotionalMeeting, m.Active, m.UpdatedAt, m.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update member: %w", err)
	}
	return nil
}

// SoftDelete marks a member inactive
func (r *MemberRepository) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	if _, err := r.db.ExecContext(ctx, "UPDATE members SET active = ?, updated_at = ? WHERE id = ?", false, at, id); err != nil {
		return fmt.Errorf("failed to delete member: %w", err)
	}
	return nil
}

// SetUser links or unlinks (nil) the member's user account
func (r *MemberRepository) SetUser(ctx context.Context, id int64, userID *int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, "UPDATE members SET user_id = ?, updated_at = ? WHERE id = ?", nullInt64(userID), at, id)
	if err != nil {
		return fmt.Errorf("failed to set member user: %w", err)
	}
	return nil
}
