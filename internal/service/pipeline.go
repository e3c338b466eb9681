package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"visitas/internal/apperr"
	"visitas/internal/audit"
	"visitas/internal/concurrency"
	"visitas/internal/database"
	"visitas/internal/metrics"
	"visitas/internal/models"
	"visitas/internal/permissions"
)

// Pipeline stages, in the order a mutation reaches them
const (
	stageAuthenticated      = "authenticated"
	stageAuthorized         = "authorized"
	stageConcurrencyChecked = "concurrency_checked"
	stageDerived            = "derived"
	stagePersisted          = "persisted"
	stageAudited            = "audited"
)

// Pipeline carries the dependencies every mutation needs
type Pipeline struct {
	db      *database.DB
	pool    *stores
	emitter *audit.Emitter
	metrics *metrics.Metrics
	logger  *zap.Logger
	clock   func() time.Time
}

// NewPipeline creates a pipeline over db. emitter, m and logger may be nil.
func NewPipeline(db *database.DB, emitter *audit.Emitter, m *metrics.Metrics, logger *zap.Logger, clock func() time.Time) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = time.Now
	}
	return &Pipeline{
		db:      db,
		pool:    newStores(db),
		emitter: emitter,
		metrics: m,
		logger:  logger,
		clock:   clock,
	}
}

// now is the write timestamp, truncated so it round-trips as a version token
func (p *Pipeline) now() time.Time {
	return concurrency.Stamp(p.clock())
}

// inTx runs fn with repositories bound to a single transaction
func (p *Pipeline) inTx(ctx context.Context, fn func(st *stores) error) error {
	return p.db.RunInTx(ctx, func(tx *database.Tx) error {
		return fn(newStores(tx))
	})
}

// placement locates a record in the barrio/nucleo hierarchy
type placement struct {
	BarrioID *int64
	NucleoID *int64
}

func (pl placement) scope() permissions.Scope {
	return permissions.InNucleo(pl.NucleoID)
}

// kind describes how the pipeline handles one entity type
type kind[T any] struct {
	entity    models.EntityType
	load      func(ctx context.Context, st *stores, id int64) (*T, error)
	id        func(*T) int64
	community func(*T) int64
	version   func(*T) time.Time
	stamp     func(*T, time.Time)
	label     func(*T) string
	locate    func(ctx context.Context, st *stores, rec *T) (placement, error)
}

type createStep[T any] struct {
	// build validates the input and resolves references into a new record
	build   func(ctx context.Context, st *stores, now time.Time) (*T, error)
	derive  func(rec *T, now time.Time)
	persist func(ctx context.Context, st *stores, rec *T) error
}

type updateStep[T any] struct {
	id    int64
	token *string
	// apply merges the input into a copy of the stored record
	apply   func(ctx context.Context, st *stores, rec *T, now time.Time) error
	derive  func(before, after *T, now time.Time)
	persist func(ctx context.Context, st *stores, before, after *T) error
	// enrich fills in the read-side fields of the stored record reported in a conflict
	enrich func(ctx context.Context, rec *T) error
}

type deleteStep[T any] struct {
	id     int64
	guard  func(rec *T) error
	remove func(ctx context.Context, st *stores, rec *T, now time.Time) error
}

type tracker struct {
	p      *Pipeline
	entity models.EntityType
	op     string
}

func (t tracker) reached(stage string) {
	t.p.metrics.StageReached(string(t.entity), t.op, stage)
}

func (t tracker) fail(err error) error {
	code := apperr.KindOf(err)
	t.p.metrics.MutationFailed(string(t.entity), t.op, string(code))
	if code == apperr.KindInternal {
		t.p.logger.Error("Mutation failed",
			zap.String("entity", string(t.entity)),
			zap.String("operation", t.op),
			zap.Error(err),
		)
	}
	return err
}

func profileOf(actor *models.User) permissions.Profile {
	if actor == nil {
		return permissions.Profile{}
	}
	return permissions.Profile{
		UserID:      actor.ID,
		CommunityID: actor.CommunityID,
		Role:        actor.Role,
		NucleoID:    actor.NucleoID,
	}
}

func authenticate(actor *models.User) error {
	if !profileOf(actor).Authenticated() {
		return apperr.Unauthenticated("authentication required")
	}
	return nil
}

// find loads a record of the actor's community. Records of other
// communities are reported as missing.
func find[T any](ctx context.Context, st *stores, k kind[T], actor *models.User, id int64) (*T, error) {
	rec, err := k.load(ctx, st, id)
	if err != nil {
		return nil, err
	}
	if rec == nil || k.community(rec) != actor.CommunityID {
		return nil, apperr.NotFound(string(k.entity), id)
	}
	return rec, nil
}

func runCreate[T any](ctx context.Context, p *Pipeline, actor *models.User, k kind[T], step createStep[T]) (*T, error) {
	t := tracker{p: p, entity: k.entity, op: "create"}
	if err := authenticate(actor); err != nil {
		return nil, t.fail(err)
	}
	t.reached(stageAuthenticated)

	profile := profileOf(actor)
	if !permissions.CanAttempt(profile, permissions.ActionCreate, k.entity) {
		return nil, t.fail(permissions.Denied(permissions.ActionCreate, k.entity))
	}

	now := p.now()
	rec, err := step.build(ctx, p.pool, now)
	if err != nil {
		return nil, t.fail(err)
	}
	where, err := k.locate(ctx, p.pool, rec)
	if err != nil {
		return nil, t.fail(err)
	}
	if err := permissions.Authorize(profile, permissions.ActionCreate, k.entity, where.scope()); err != nil {
		return nil, t.fail(err)
	}
	t.reached(stageAuthorized)

	if step.derive != nil {
		step.derive(rec, now)
	}
	t.reached(stageDerived)

	if err := p.inTx(ctx, func(st *stores) error { return step.persist(ctx, st, rec) }); err != nil {
		return nil, t.fail(err)
	}
	t.reached(stagePersisted)

	p.record(ctx, actor, models.ActionCreate, k.entity, k.id(rec), k.label(rec), where, nil)
	t.reached(stageAudited)
	return rec, nil
}

func runUpdate[T any](ctx context.Context, p *Pipeline, actor *models.User, k kind[T], step updateStep[T]) (*T, error) {
	t := tracker{p: p, entity: k.entity, op: "update"}
	if err := authenticate(actor); err != nil {
		return nil, t.fail(err)
	}
	t.reached(stageAuthenticated)

	current, err := find(ctx, p.pool, k, actor, step.id)
	if err != nil {
		return nil, t.fail(err)
	}
	where, err := k.locate(ctx, p.pool, current)
	if err != nil {
		return nil, t.fail(err)
	}
	decision := permissions.Evaluate(profileOf(actor), permissions.ActionModify, k.entity, where.scope())
	if !decision.Allowed() {
		return nil, t.fail(permissions.Denied(permissions.ActionModify, k.entity))
	}
	t.reached(stageAuthorized)

	if err := concurrency.Check(k.version(current), step.token, current); err != nil {
		// the conflict carries current as its snapshot
		if step.enrich != nil {
			if err := step.enrich(ctx, current); err != nil {
				return nil, t.fail(err)
			}
		}
		return nil, t.fail(err)
	}
	t.reached(stageConcurrencyChecked)

	now := nextVersion(p.now(), k.version(current))
	next := *current
	if err := step.apply(ctx, p.pool, &next, now); err != nil {
		return nil, t.fail(err)
	}
	moved, err := k.locate(ctx, p.pool, &next)
	if err != nil {
		return nil, t.fail(err)
	}
	if err := permissions.RequireScope(decision, moved.NucleoID); err != nil {
		return nil, t.fail(err)
	}
	if step.derive != nil {
		step.derive(current, &next, now)
	}
	k.stamp(&next, now)
	t.reached(stageDerived)

	if err := p.inTx(ctx, func(st *stores) error { return step.persist(ctx, st, current, &next) }); err != nil {
		return nil, t.fail(err)
	}
	t.reached(stagePersisted)

	p.record(ctx, actor, models.ActionUpdate, k.entity, k.id(&next), k.label(&next), moved, nil)
	t.reached(stageAudited)
	return &next, nil
}

func runDelete[T any](ctx context.Context, p *Pipeline, actor *models.User, k kind[T], step deleteStep[T]) error {
	t := tracker{p: p, entity: k.entity, op: "delete"}
	if err := authenticate(actor); err != nil {
		return t.fail(err)
	}
	t.reached(stageAuthenticated)

	current, err := find(ctx, p.pool, k, actor, step.id)
	if err != nil {
		return t.fail(err)
	}
	where, err := k.locate(ctx, p.pool, current)
	if err != nil {
		return t.fail(err)
	}
	if err := permissions.Authorize(profileOf(actor), permissions.ActionModify, k.entity, where.scope()); err != nil {
		return t.fail(err)
	}
	t.reached(stageAuthorized)

	if step.guard != nil {
		if err := step.guard(current); err != nil {
			return t.fail(err)
		}
	}

	now := nextVersion(p.now(), k.version(current))
	if err := p.inTx(ctx, func(st *stores) error { return step.remove(ctx, st, current, now) }); err != nil {
		return t.fail(err)
	}
	t.reached(stagePersisted)

	p.record(ctx, actor, models.ActionDelete, k.entity, k.id(current), k.label(current), where, nil)
	t.reached(stageAudited)
	return nil
}

// nextVersion keeps versions strictly increasing when two writes land in
// the same millisecond
func nextVersion(now, current time.Time) time.Time {
	if now.After(current) {
		return now
	}
	return current.Add(time.Millisecond)
}

// record emits an audit event. It never fails.
func (p *Pipeline) record(ctx context.Context, actor *models.User, action models.AuditAction, entity models.EntityType,
	id int64, label string, where placement, metadata map[string]any) {
	actorID := actor.ID
	var entityID *int64
	if id != 0 {
		entityID = &id
	}
	p.emitter.Record(ctx, audit.Event{
		CommunityID: actor.CommunityID,
		ActorID:     &actorID,
		ActorName:   actor.Name,
		Action:      action,
		EntityType:  entity,
		EntityID:    entityID,
		EntityLabel: label,
		Metadata:    metadata,
		BarrioID:    where.BarrioID,
		NucleoID:    where.NucleoID,
	})
}

// visible returns the records of entity the actor may read, narrowed by extra
func visible[T any](actor *models.User, entity models.EntityType, extra database.Filter, list func(database.Filter) ([]T, error)) ([]T, error) {
	if err := authenticate(actor); err != nil {
		return nil, err
	}
	return list(database.And(permissions.ReadFilter(profileOf(actor), entity), extra))
}

// visibleOne reads a single record through the actor's read filter. A record
// the actor may not see is reported as missing.
func visibleOne[T any](actor *models.User, entity models.EntityType, id int64, list func(database.Filter) ([]T, error)) (*T, error) {
	rows, err := visible(actor, entity, database.Eq("id", id), list)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperr.NotFound(string(entity), id)
	}
	return &rows[0], nil
}
