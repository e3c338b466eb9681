// Package service holds the business logic behind every API operation.
//
// Mutations run through a Pipeline: authenticate, authorize, check the
// client's version token, derive computed fields, persist, audit. Reads
// apply the actor's permission filter inside the query.
package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"visitas/internal/apperr"
	"visitas/internal/audit"
	"visitas/internal/database"
	"visitas/internal/email"
	"visitas/internal/metrics"
	"visitas/internal/models"
	"visitas/internal/repository"
	"visitas/internal/security"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrRateLimited        = errors.New("too many login attempts, try again later")
	ErrInvalidSession     = errors.New("session is invalid or has expired")
)

// stores groups the repositories bound to one connection or transaction
type stores struct {
	communities *repository.CommunityRepository
	barrios     *repository.BarrioRepository
	nucleos     *repository.NucleoRepository
	families    *repository.FamilyRepository
	members     *repository.MemberRepository
	visits      *repository.VisitRepository
	goals       *repository.GoalRepository
	users       *repository.UserRepository
	invitations *repository.InvitationRepository
	timeline    *repository.TimelineRepository
}

func newStores(db database.DBTX) *stores {
	return &stores{
		communities: repository.NewCommunityRepository(db),
		barrios:     repository.NewBarrioRepository(db),
		nucleos:     repository.NewNucleoRepository(db),
		families:    repository.NewFamilyRepository(db),
		members:     repository.NewMemberRepository(db),
		visits:      repository.NewVisitRepository(db),
		goals:       repository.NewGoalRepository(db),
		users:       repository.NewUserRepository(db),
		invitations: repository.NewInvitationRepository(db),
		timeline:    repository.NewTimelineRepository(db),
	}
}

// Mailer delivers invitation emails. *email.Service implements it.
type Mailer interface {
	SendInvitationEmail(ctx context.Context, inv email.Invitation) error
}

// Deps are the collaborators shared by all services
type Deps struct {
	Emitter       *audit.Emitter
	Metrics       *metrics.Metrics
	Logger        *zap.Logger
	Tokens        *security.TokenIssuer
	Mailer        Mailer
	LoginLimiter  *security.RateLimiter
	InvitationTTL time.Duration
	// Clock defaults to time.Now
	Clock func() time.Time
}

// Services is the full set of application services
type Services struct {
	Barrios     *BarrioService
	Nucleos     *NucleoService
	Families    *FamilyService
	Members     *MemberService
	Visits      *VisitService
	Goals       *GoalService
	Timeline    *TimelineService
	Auth        *AuthService
	Invitations *InvitationService
	Backup      *BackupService
	Loaders     *Loaders
}

// New wires every service to db
func New(db *database.DB, deps Deps) *Services {
	p := NewPipeline(db, deps.Emitter, deps.Metrics, deps.Logger, deps.Clock)
	loaders := &Loaders{st: p.pool, now: p.now}
	ttl := deps.InvitationTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Services{
		Barrios:     &BarrioService{p: p},
		Nucleos:     &NucleoService{p: p, loaders: loaders},
		Families:    &FamilyService{p: p, loaders: loaders},
		Members:     &MemberService{p: p, loaders: loaders},
		Visits:      &VisitService{p: p, loaders: loaders},
		Goals:       &GoalService{p: p},
		Timeline:    &TimelineService{p: p},
		Auth:        &AuthService{p: p, tokens: deps.Tokens, limiter: deps.LoginLimiter},
		Invitations: &InvitationService{p: p, mailer: deps.Mailer, ttl: ttl},
		Backup:      &BackupService{p: p},
		Loaders:     loaders,
	}
}

// notFoundIfNil turns a missing referenced record into NOT_FOUND
func notFoundIfNil[T any](rec *T, err error, entity models.EntityType, id int64) (*T, error) {
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, apperr.NotFound(string(entity), id)
	}
	return rec, nil
}
