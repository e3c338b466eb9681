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
	"visitas/internal/security"
)

func TestLoginAndLogout(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	res, err := e.svc.Auth.Login(ctx, "Admin@Example.com", testPassword, "127.0.0.1")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, e.admin.ID, res.User.ID)

	user, sessionID, err := e.svc.Auth.Authenticate(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, e.admin.ID, user.ID)
	assert.NotEmpty(t, sessionID)

	require.NoError(t, e.svc.Auth.Logout(ctx, user, sessionID))
	_, _, err = e.svc.Auth.Authenticate(ctx, res.Token)
	assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))
	assert.True(t, errors.Is(err, ErrInvalidSession))

	events := e.timeline(t)
	require.GreaterOrEqual(t, len(events), 2)
	assert.Equal(t, models.ActionLogout, events[0].Action)
	assert.Equal(t, models.ActionLogin, events[1].Action)
}

func TestLoginFailures(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"wrong password", "admin@example.com", "wrong password"},
		{"unknown email", "nobody@example.com", testPassword},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.Auth.Login(ctx, tt.email, tt.password, "127.0.0.1")
			assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))
			assert.True(t, errors.Is(err, ErrInvalidCredentials))
		})
	}
}

func TestLoginIsRateLimited(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	limiter := security.NewRateLimiter(2, time.Minute)
	t.Cleanup(limiter.Stop)
	e.svc.Auth.limiter = limiter

	for range 2 {
		_, err := e.svc.Auth.Login(ctx, "admin@example.com", "wrong password", "10.0.0.1")
		require.True(t, errors.Is(err, ErrInvalidCredentials))
	}
	_, err := e.svc.Auth.Login(ctx, "admin@example.com", testPassword, "10.0.0.1")
	assert.True(t, errors.Is(err, ErrRateLimited))

	_, err = e.svc.Auth.Login(ctx, "admin@example.com", testPassword, "10.0.0.2")
	assert.NoError(t, err)
}

func TestAuthenticateRejectsGarbage(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	for _, token := range []string{"", "not-a-token"} {
		_, _, err := e.svc.Auth.Authenticate(ctx, token)
		assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err), token)
	}

	other := security.NewTokenIssuer("other-secret", time.Hour)
	forged, _, err := other.Issue(e.admin.ID, e.community)
	require.NoError(t, err)
	_, _, err = e.svc.Auth.Authenticate(ctx, forged)
	assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))
}

func TestAuthenticateRejectsExpiredSession(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	res, err := e.svc.Auth.Login(ctx, "admin@example.com", testPassword, "127.0.0.1")
	require.NoError(t, err)

	e.clock.Set(res.ExpiresAt.Add(time.Second))
	_, _, err = e.svc.Auth.Authenticate(ctx, res.Token)
	assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))

	pruned, err := e.svc.Auth.PruneSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)
}

func TestChangePassword(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	err := e.svc.Auth.ChangePassword(ctx, e.collaborator, "wrong password", "brand new secret")
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))

	err = e.svc.Auth.ChangePassword(ctx, e.collaborator, testPassword, "short")
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))

	require.NoError(t, e.svc.Auth.ChangePassword(ctx, e.collaborator, testPassword, "brand new secret"))

	_, err = e.svc.Auth.Login(ctx, "colab@example.com", testPassword, "127.0.0.1")
	assert.True(t, errors.Is(err, ErrInvalidCredentials))
	_, err = e.svc.Auth.Login(ctx, "colab@example.com", "brand new secret", "127.0.0.1")
	assert.NoError(t, err)
}

func TestBootstrap(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	u, err := e.svc.Auth.Bootstrap(ctx, BootstrapInput{
		Community: "Villa Nueva", Name: "Marisol", Email: "marisol@example.com", Password: testPassword,
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleSuperAdmin, u.Role)
	assert.NotEqual(t, e.community, u.CommunityID)

	_, err = e.svc.Auth.Bootstrap(ctx, BootstrapInput{
		Community: "Otra", Name: "Marisol", Email: "MARISOL@example.com", Password: testPassword,
	})
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))

	_, err = e.svc.Auth.Bootstrap(ctx, BootstrapInput{Community: "", Name: "X", Email: "x@example.com", Password: testPassword})
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
}
