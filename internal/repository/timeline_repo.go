package repository

import (
	"context"
	"database/sql"
	"fmt"

	"visitas/internal/database"
	"visitas/internal/models"
)

const timelineColumns = "id, community_id, actor_id, action, entity_type, entity_id, summary, metadata, barrio_id, nucleo_id, created_at"

// TimelineRepository appends and reads timeline events. Events are never updated.
type TimelineRepository struct {
	db database.DBTX
}

// NewTimelineRepository creates a new timeline repository
func NewTimelineRepository(db database.DBTX) *TimelineRepository {
	return &TimelineRepository{db: db}
}

// Create appends an event and sets its ID
func (r *TimelineRepository) Create(ctx context.Context, e *models.TimelineEvent) error {
	metadata, err := encodeJSON(e.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	query := `
		INSERT INTO timeline_events (community_id, actor_id, action, entity_type, entity_id, summary, metadata, barrio_id, nucleo_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(ctx, query,
		e.CommunityID, nullInt64(e.ActorID), e.Action, e.EntityType, nullInt64(e.EntityID),
		e.Summary, metadata, nullInt64(e.BarrioID), nullInt64(e.NucleoID), e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create timeline event: %w", err)
	}
	e.ID = id
	return nil
}

// List returns the newest events matching filter, at most limit of them
func (r *TimelineRepository) List(ctx context.Context, filter database.Filter, limit int) ([]models.TimelineEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	query, args := selectWhere(timelineColumns, "timeline_events", filter, " ORDER BY created_at DESC, id DESC")
	query += fmt.Sprintf(" LIMIT %d", limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query timeline: %w", err)
	}
	defer rows.Close()

	events := []models.TimelineEvent{}
	for rows.Next() {
		var e models.TimelineEvent
		var actorID, entityID, barrioID, nucleoID sql.NullInt64
		var metadata string
		if err := rows.Scan(
			&e.ID, &e.CommunityID, &actorID, &e.Action, &e.EntityType, &entityID,
			&e.Summary, &metadata, &barrioID, &nucleoID, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan timeline event: %w", err)
		}
		if err := decodeJSON(metadata, &e.Metadata); err != nil {
			return nil, fmt.Errorf("invalid metadata on timeline event %d: %w", e.ID, err)
		}
		e.ActorID = int64Ptr(actorID)
		e.EntityID = int64Ptr(entityID)
		e.BarrioID = int64Ptr(barrioID)
		e.NucleoID = int64Ptr(nucleoID)
		e.CreatedAt = e.CreatedAt.UTC()
		events = append(events, e)
	}
	return events, rows.Err()
}
