// Package audit records user-visible actions in the community timeline.
//
// Recording is best-effort: a failing sink is logged and counted but never
// reported to the caller, and never undoes the write being audited.
package audit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"visitas/internal/metrics"
	"visitas/internal/models"
)

// Event describes an action to record
type Event struct {
	CommunityID int64
	ActorID     *int64
	ActorName   string
	Action      models.AuditAction
	EntityType  models.EntityType
	EntityID    *int64
	// EntityLabel is a human-readable name for the record, used in the summary
	EntityLabel string
	Metadata    map[string]any
	BarrioID    *int64
	NucleoID    *int64
}

// Sink persists or forwards timeline events
type Sink interface {
	Write(ctx context.Context, event *models.TimelineEvent) error
}

// Emitter builds timeline events and hands them to a sink
type Emitter struct {
	sink    Sink
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewEmitter creates an emitter. metrics may be nil.
func NewEmitter(sink Sink, logger *zap.Logger, m *metrics.Metrics) *Emitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Emitter{sink: sink, logger: logger, metrics: m, now: time.Now}
}

// Record writes the event. It never fails.
func (e *Emitter) Record(ctx context.Context, ev Event) {
	if e == nil || e.sink == nil {
		return
	}
	event := &models.TimelineEvent{
		CommunityID: ev.CommunityID,
		ActorID:     ev.ActorID,
		Action:      ev.Action,
		EntityType:  ev.EntityType,
		EntityID:    ev.EntityID,
		Summary:     Summarize(ev),
		Metadata:    ev.Metadata,
		BarrioID:    ev.BarrioID,
		NucleoID:    ev.NucleoID,
		CreatedAt:   e.now().UTC().Truncate(time.Millisecond),
	}
	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if err := e.sink.Write(ctx, event); err != nil {
		e.metrics.AuditFailed()
		e.logger.Warn("Warning: failed to record timeline event",
			zap.String("component", "audit"),
			zap.String("action", string(ev.Action)),
			zap.String("entity", string(ev.EntityType)),
			zap.Error(err),
		)
	}
}
