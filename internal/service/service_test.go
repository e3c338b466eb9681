package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"visitas/internal/audit"
	"visitas/internal/database"
	"visitas/internal/database/dbtest"
	"visitas/internal/email"
	"visitas/internal/metrics"
	"visitas/internal/models"
	"visitas/internal/repository"
	"visitas/internal/security"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"))
}

const testPassword = "correct horse"

// clock is a settable time source
type clock struct {
	t time.Time
}

func (c *clock) Now() time.Time { return c.t }

func (c *clock) Set(t time.Time) { c.t = t }

func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type fakeMailer struct {
	sent []email.Invitation
	err  error
}

func (m *fakeMailer) SendInvitationEmail(_ context.Context, inv email.Invitation) error {
	m.sent = append(m.sent, inv)
	return m.err
}

type env struct {
	db      *database.DB
	svc     *Services
	clock   *clock
	metrics *metrics.Metrics
	mailer  *fakeMailer

	community int64
	barrio    *models.Barrio
	nucleoA   *models.Nucleo
	nucleoB   *models.Nucleo

	admin        *models.User
	collaborator *models.User
	visitor      *models.User
}

func setup(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	db := dbtest.Open(t)
	logger := zaptest.NewLogger(t)

	e := &env{
		db:      db,
		clock:   &clock{t: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)},
		metrics: metrics.New(),
		mailer:  &fakeMailer{},
	}
	emitter := audit.NewEmitter(audit.NewSQLSink(repository.NewTimelineRepository(db)), logger, e.metrics)
	e.svc = New(db, Deps{
		Emitter: emitter,
		Metrics: e.metrics,
		Logger:  logger,
		Tokens:  security.NewTokenIssuer("test-secret", time.Hour),
		Mailer:  e.mailer,
		Clock:   e.clock.Now,
	})

	community := &models.Community{Name: "San José", CreatedAt: e.clock.Now()}
	require.NoError(t, repository.NewCommunityRepository(db).Create(ctx, community))
	e.community = community.ID

	e.admin = e.user(t, "admin@example.com", models.RoleAdmin, nil)

	var err error
	e.barrio, err = e.svc.Barrios.Create(ctx, e.admin, BarrioInput{Name: ptr("Centro")})
	require.NoError(t, err)
	e.nucleoA, err = e.svc.Nucleos.Create(ctx, e.admin, NucleoInput{BarrioID: &e.barrio.ID, Name: ptr("Norte")})
	require.NoError(t, err)
	e.nucleoB, err = e.svc.Nucleos.Create(ctx, e.admin, NucleoInput{BarrioID: &e.barrio.ID, Name: ptr("Sur")})
	require.NoError(t, err)

	e.collaborator = e.user(t, "colab@example.com", models.RoleCollaborator, &e.nucleoA.ID)
	e.visitor = e.user(t, "visitor@example.com", models.RoleVisitor, nil)
	return e
}

// user inserts a user directly, bypassing invitations
func (e *env) user(t *testing.T, addr string, role models.Role, nucleoID *int64) *models.User {
	t.Helper()
	hash, err := security.HashPassword(testPassword)
	require.NoError(t, err)
	u := &models.User{
		CommunityID:  e.community,
		Email:        addr,
		PasswordHash: hash,
		Name:         string(role) + " user",
		Role:         role,
		NucleoID:     nucleoID,
		CreatedAt:    e.clock.Now(),
		UpdatedAt:    e.clock.Now(),
	}
	require.NoError(t, repository.NewUserRepository(e.db).Create(context.Background(), u))
	return u
}

func (e *env) family(t *testing.T, name string, nucleoID *int64) *models.Family {
	t.Helper()
	f, err := e.svc.Families.Create(context.Background(), e.admin, FamilyInput{Name: ptr(name), NucleoID: nucleoID})
	require.NoError(t, err)
	return f
}

func (e *env) member(t *testing.T, familyID *int64, firstName string) *models.Member {
	t.Helper()
	m, err := e.svc.Members.Create(context.Background(), e.admin, MemberInput{FamilyID: familyID, FirstName: ptr(firstName)})
	require.NoError(t, err)
	return m
}

// timeline returns the community's audit events, newest first
func (e *env) timeline(t *testing.T) []models.TimelineEvent {
	t.Helper()
	events, err := repository.NewTimelineRepository(e.db).List(context.Background(), database.Eq("community_id", e.community), 100)
	require.NoError(t, err)
	return events
}
