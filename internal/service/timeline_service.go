package service

import (
	"context"

	"visitas/internal/database"
	"visitas/internal/models"
)

// MaxTimelineLimit caps how many events one request may read
const MaxTimelineLimit = 200

// TimelineQuery narrows the timeline
type TimelineQuery struct {
	EntityType *models.EntityType
	EntityID   *int64
	Limit      int
}

// TimelineService reads the audit timeline
type TimelineService struct {
	p *Pipeline
}

// List returns the newest events the actor may see
func (s *TimelineService) List(ctx context.Context, actor *models.User, q TimelineQuery) ([]models.TimelineEvent, error) {
	var terms []database.Filter
	if q.EntityType != nil {
		terms = append(terms, database.Eq("entity_type", string(*q.EntityType)))
	}
	if q.EntityID != nil {
		terms = append(terms, database.Eq("entity_id", *q.EntityID))
	}
	limit := q.Limit
	if limit > MaxTimelineLimit {
		limit = MaxTimelineLimit
	}
	return visible(actor, models.EntityTimeline, database.And(terms...), func(f database.Filter) ([]models.TimelineEvent, error) {
		return s.p.pool.timeline.List(ctx, f, limit)
	})
}
