package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"visitas/internal/apperr"
	"visitas/internal/models"
	"visitas/internal/security"
	"visitas/internal/validation"
)

// AuthService signs users in and out and manages passwords
type AuthService struct {
	p       *Pipeline
	tokens  *security.TokenIssuer
	limiter *security.RateLimiter
}

// LoginResult is returned by a successful login
type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
}

// Login checks the credentials and issues a bearer token backed by a
// session. clientKey identifies the caller for rate limiting.
func (s *AuthService) Login(ctx context.Context, email, password, clientKey string) (*LoginResult, error) {
	if s.limiter != nil && !s.limiter.Allow(clientKey) {
		return nil, apperr.Wrap(apperr.KindUnauthenticated, ErrRateLimited.Error(), ErrRateLimited)
	}

	user, err := s.p.pool.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || !security.CheckPassword(user.PasswordHash, password) {
		return nil, apperr.Wrap(apperr.KindUnauthenticated, ErrInvalidCredentials.Error(), ErrInvalidCredentials)
	}

	token, claims, err := s.tokens.Issue(user.ID, user.CommunityID)
	if err != nil {
		return nil, err
	}
	session := &models.Session{
		ID:        claims.ID,
		UserID:    user.ID,
		CreatedAt: s.p.now(),
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	}
	if err := s.p.pool.users.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	s.p.record(ctx, user, models.ActionLogin, models.EntityUser, user.ID, user.Name, placement{NucleoID: user.NucleoID}, nil)
	return &LoginResult{Token: token, ExpiresAt: session.ExpiresAt, User: user}, nil
}

// Authenticate resolves a bearer token to its user and session id. Tokens
// whose session was revoked or expired are rejected.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, string, error) {
	unauthenticated := apperr.Wrap(apperr.KindUnauthenticated, ErrInvalidSession.Error(), ErrInvalidSession)
	if token == "" {
		return nil, "", apperr.Unauthenticated("authentication required")
	}

	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, "", unauthenticated
	}
	session, err := s.p.pool.users.GetSession(ctx, claims.ID)
	if err != nil {
		return nil, "", err
	}
	if session == nil || s.p.clock().After(session.ExpiresAt) {
		return nil, "", unauthenticated
	}

	user, err := s.p.pool.users.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, "", err
	}
	if user == nil {
		return nil, "", unauthenticated
	}
	return user, session.ID, nil
}

// Logout revokes the session behind the actor's token
func (s *AuthService) Logout(ctx context.Context, actor *models.User, sessionID string) error {
	if err := authenticate(actor); err != nil {
		return err
	}
	if err := s.p.pool.users.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}
	s.p.record(ctx, actor, models.ActionLogout, models.EntityUser, actor.ID, actor.Name, placement{NucleoID: actor.NucleoID}, nil)
	return nil
}

// ChangePassword replaces the actor's password after checking the current one
func (s *AuthService) ChangePassword(ctx context.Context, actor *models.User, current, next string) error {
	if err := authenticate(actor); err != nil {
		return err
	}
	u, err := s.p.pool.users.GetByID(ctx, actor.ID)
	user, err := notFoundIfNil(u, err, models.EntityUser, actor.ID)
	if err != nil {
		return err
	}
	if !security.CheckPassword(user.PasswordHash, current) {
		return apperr.BadRequest("current password is incorrect")
	}
	if err := validation.ValidatePassword(next); err != nil {
		return badRequest(err)
	}

	hash, err := security.HashPassword(next)
	if err != nil {
		return err
	}
	if err := s.p.pool.users.UpdatePassword(ctx, user.ID, hash, s.p.now()); err != nil {
		return err
	}
	s.p.record(ctx, actor, models.ActionUpdate, models.EntityUser, actor.ID, actor.Name,
		placement{NucleoID: actor.NucleoID}, map[string]any{"field": "password"})
	return nil
}

// PruneSessions deletes expired sessions and reports how many were removed
func (s *AuthService) PruneSessions(ctx context.Context) (int64, error) {
	return s.p.pool.users.DeleteExpiredSessions(ctx, s.p.now())
}

// BootstrapInput describes the first community and its superadmin
type BootstrapInput struct {
	Community string
	Name      string
	Email     string
	Password  string
}

// Bootstrap creates a community with its first superadmin. It is how an
// installation gets its first user; everyone else joins by invitation.
func (s *AuthService) Bootstrap(ctx context.Context, in BootstrapInput) (*models.User, error) {
	err := validation.First(
		validation.ValidateRequired("community", in.Community),
		validation.ValidateName(in.Name),
		validation.ValidateEmail(in.Email),
		validation.ValidatePassword(in.Password),
	)
	if err != nil {
		return nil, badRequest(err)
	}

	existing, err := s.p.pool.users.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.BadRequest("email already taken")
	}
	hash, err := security.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	now := s.p.now()
	community := &models.Community{Name: strings.TrimSpace(in.Community), CreatedAt: now}
	user := &models.User{
		Email:        in.Email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(in.Name),
		Role:         models.RoleSuperAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err = s.p.inTx(ctx, func(st *stores) error {
		if err := st.communities.Create(ctx, community); err != nil {
			return err
		}
		user.CommunityID = community.ID
		return st.users.Create(ctx, user)
	})
	if err != nil {
		return nil, err
	}

	s.p.record(ctx, user, models.ActionCreate, models.EntityCommunity, community.ID, community.Name, placement{}, nil)
	return user, nil
}
