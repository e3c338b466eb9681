package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"visitas/internal/database"
	"visitas/internal/models"
)

// CommunityRepository handles database operations for communities
type CommunityRepository struct {
	db database.DBTX
}

// NewCommunityRepository creates a new community repository
func NewCommunityRepository(db database.DBTX) *CommunityRepository {
	return &CommunityRepository{db: db}
}

// Create inserts a community and sets its ID
func (r *CommunityRepository) Create(ctx context.Context, c *models.Community) error {
	id, err := r.db.ExecReturningID(ctx, "INSERT INTO communities (name, created_at) VALUES (?, ?)", c.Name, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create community: %w", err)
	}
	c.ID = id
	return nil
}

// GetByID retrieves a community by ID
func (r *CommunityRepository) GetByID(ctx context.Context, id int64) (*models.Community, error) {
	c := &models.Community{}
	err := r.db.QueryRowContext(ctx, "SELECT id, name, created_at FROM communities WHERE id = ?", id).
		Scan(&c.ID, &c.Name, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get community: %w", err)
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return c, nil
}
