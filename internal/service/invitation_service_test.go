package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visitas/internal/apperr"
	"visitas/internal/models"
	"visitas/internal/repository"
)

func TestInviteAndAccept(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	f := e.family(t, "Gómez", &e.nucleoA.ID)
	m := e.member(t, &f.ID, "Luis")

	inv, err := e.svc.Invitations.Create(ctx, e.admin, InvitationInput{
		MemberID: m.ID, Email: "Luis@Example.com", Role: models.RoleCollaborator, NucleoID: &e.nucleoA.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "luis@example.com", inv.Email)
	assert.True(t, inv.ExpiresAt.After(e.clock.Now()))

	require.Len(t, e.mailer.sent, 1)
	assert.Equal(t, inv.Code, e.mailer.sent[0].Code)
	assert.Equal(t, "San José", e.mailer.sent[0].Community)

	pending, err := e.svc.Invitations.Pending(ctx, e.admin)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	user, err := e.svc.Invitations.Accept(ctx, AcceptInput{Code: inv.Code, Name: "Luis Gómez", Password: testPassword})
	require.NoError(t, err)
	assert.Equal(t, models.RoleCollaborator, user.Role)
	require.NotNil(t, user.NucleoID)
	assert.Equal(t, e.nucleoA.ID, *user.NucleoID)
	require.NotNil(t, user.MemberID)
	assert.Equal(t, m.ID, *user.MemberID)

	linked, err := repository.NewMemberRepository(e.db).GetByID(ctx, m.ID)
	require.NoError(t, err)
	require.NotNil(t, linked.UserID)
	assert.Equal(t, user.ID, *linked.UserID)

	_, err = e.svc.Auth.Login(ctx, "luis@example.com", testPassword, "127.0.0.1")
	assert.NoError(t, err)

	_, err = e.svc.Invitations.Accept(ctx, AcceptInput{Code: inv.Code, Name: "Luis Gómez", Password: testPassword})
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))

	pending, err = e.svc.Invitations.Pending(ctx, e.admin)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestInvitationErrors(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	m := e.member(t, nil, "Luis")
	linked := e.member(t, nil, "Ana")
	require.NoError(t, repository.NewMemberRepository(e.db).SetUser(ctx, linked.ID, &e.visitor.ID, e.clock.Now()))

	tests := []struct {
		name  string
		actor *models.User
		in    InvitationInput
		want  apperr.Kind
	}{
		{"collaborator invites", e.collaborator, InvitationInput{MemberID: m.ID, Email: "a@example.com", Role: models.RoleVisitor}, apperr.KindForbidden},
		{"admin invites superadmin", e.admin, InvitationInput{MemberID: m.ID, Email: "a@example.com", Role: models.RoleSuperAdmin}, apperr.KindForbidden},
		{"unknown role", e.admin, InvitationInput{MemberID: m.ID, Email: "a@example.com", Role: "owner"}, apperr.KindBadRequest},
		{"collaborator without nucleo", e.admin, InvitationInput{MemberID: m.ID, Email: "a@example.com", Role: models.RoleCollaborator}, apperr.KindBadRequest},
		{"bad email", e.admin, InvitationInput{MemberID: m.ID, Email: "nope", Role: models.RoleVisitor}, apperr.KindBadRequest},
		{"email taken", e.admin, InvitationInput{MemberID: m.ID, Email: "colab@example.com", Role: models.RoleVisitor}, apperr.KindBadRequest},
		{"unknown member", e.admin, InvitationInput{MemberID: 9999, Email: "a@example.com", Role: models.RoleVisitor}, apperr.KindBadRequest},
		{"member already linked", e.admin, InvitationInput{MemberID: linked.ID, Email: "a@example.com", Role: models.RoleVisitor}, apperr.KindBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.Invitations.Create(ctx, tt.actor, tt.in)
			assert.Equal(t, tt.want, apperr.KindOf(err))
		})
	}
	assert.Empty(t, e.mailer.sent)
}

func TestInvitationSurvivesMailFailure(t *testing.T) {
	e := setup(t)
	e.mailer.err = errors.New("ses down")
	m := e.member(t, nil, "Luis")

	inv, err := e.svc.Invitations.Create(context.Background(), e.admin, InvitationInput{
		MemberID: m.ID, Email: "luis@example.com", Role: models.RoleVisitor,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, inv.Code)
	assert.Len(t, e.mailer.sent, 1)
}

func TestAcceptRejectsBadCodes(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	m := e.member(t, nil, "Luis")
	inv, err := e.svc.Invitations.Create(ctx, e.admin, InvitationInput{MemberID: m.ID, Email: "luis@example.com", Role: models.RoleVisitor})
	require.NoError(t, err)

	_, err = e.svc.Invitations.Accept(ctx, AcceptInput{Code: "missing", Name: "Luis", Password: testPassword})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = e.svc.Invitations.Accept(ctx, AcceptInput{Code: inv.Code, Name: "Luis", Password: "short"})
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))

	e.clock.Advance(8 * 24 * time.Hour)
	_, err = e.svc.Invitations.Accept(ctx, AcceptInput{Code: inv.Code, Name: "Luis", Password: testPassword})
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
}
