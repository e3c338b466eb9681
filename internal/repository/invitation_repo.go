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

const invitationColumns = "id, community_id, code, email, member_id, role, nucleo_id, invited_by, created_at, expires_at, used_at, used_by"

// InvitationRepository handles database operations for invitations
type InvitationRepository struct {
	db database.DBTX
}

// NewInvitationRepository creates a new invitation repository
func NewInvitationRepository(db database.DBTX) *InvitationRepository {
	return &InvitationRepository{db: db}
}

func scanInvitation(s scanner) (*models.Invitation, error) {
	inv := &models.Invitation{}
	var nucleoID, usedBy sql.NullInt64
	var usedAt sql.NullTime
	err := s.Scan(
		&inv.ID,
		&inv.CommunityID,
		&inv.Code,
		&inv.Email,
		&inv.MemberID,
		&inv.Role,
		&nucleoID,
		&inv.InvitedBy,
		&inv.CreatedAt,
		&inv.ExpiresAt,
		&usedAt,
		&usedBy,
	)
	if err != nil {
		return nil, err
	}
	inv.NucleoID = int64Ptr(nucleoID)
	inv.UsedAt = timePtr(usedAt)
	inv.UsedBy = int64Ptr(usedBy)
	inv.CreatedAt = inv.CreatedAt.UTC()
	inv.ExpiresAt = inv.ExpiresAt.UTC()
	return inv, nil
}

// Create inserts an invitation and sets its ID
func (r *InvitationRepository) Create(ctx context.Context, inv *models.Invitation) error {
	query := `
		INSERT INTO invitations (community_id, code, email, member_id, role, nucleo_id, invited_by, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(ctx, query,
		inv.CommunityID, inv.Code, inv.Email, inv.MemberID, inv.Role,
		nullInt64(inv.NucleoID), inv.InvitedBy, inv.CreatedAt, inv.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create invitation: %w", err)
	}
	inv.ID = id
	return nil
}

// GetByCode retrieves an invitation by its code
func (r *InvitationRepository) GetByCode(ctx context.Context, code string) (*models.Invitation, error) {
	query := "SELECT " + invitationColumns + " FROM invitations WHERE code = ?"
	inv, err := scanInvitation(r.db.QueryRowContext(ctx, query, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}
	return inv, nil
}

// ListPending returns unused, unexpired invitations matching filter
func (r *InvitationRepository) ListPending(ctx context.Context, filter database.Filter, now time.Time) ([]models.Invitation, error) {
	f := database.And(filter, database.IsNull("used_at"), database.Gte("expires_at", now))
	query, args := selectWhere(invitationColumns, "invitations", f, " ORDER BY created_at DESC")
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query invitations: %w", err)
	}
	defer rows.Close()

	invitations := []models.Invitation{}
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		invitations = append(invitations, *inv)
	}
	return invitations, rows.Err()
}

// MarkUsed records that an invitation was accepted. It fails when the
// invitation was already used.
func (r *InvitationRepository) MarkUsed(ctx context.Context, id, userID int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE invitations SET used_at = ?, used_by = ? WHERE id = ? AND used_at IS NULL", at, userID, id)
	if err != nil {
		return fmt.Errorf("failed to mark invitation used: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to mark invitation used: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("invitation %d already used", id)
	}
	return nil
}
