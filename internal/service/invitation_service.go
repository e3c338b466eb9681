package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"visitas/internal/apperr"
	"visitas/internal/database"
	"visitas/internal/email"
	"visitas/internal/models"
	"visitas/internal/permissions"
	"visitas/internal/security"
	"visitas/internal/validation"
)

// InvitationInput asks for a member to be invited as a user
type InvitationInput struct {
	MemberID int64       `json:"memberId"`
	Email    string      `json:"email"`
	Role     models.Role `json:"role"`
	NucleoID *int64      `json:"nucleoId"`
}

// AcceptInput completes an invitation
type AcceptInput struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// InvitationService turns members into users
type InvitationService struct {
	p      *Pipeline
	mailer Mailer
	ttl    time.Duration
}

// Create issues an invitation code for an unlinked member and emails it.
// A failed email is logged; the invitation stands and its code can be shared by hand.
func (s *InvitationService) Create(ctx context.Context, actor *models.User, in InvitationInput) (*models.Invitation, error) {
	if err := authenticate(actor); err != nil {
		return nil, err
	}
	profile := profileOf(actor)
	if err := permissions.Authorize(profile, permissions.ActionCreate, models.EntityInvitation, permissions.InNucleo(in.NucleoID)); err != nil {
		return nil, err
	}

	addr := strings.ToLower(strings.TrimSpace(in.Email))
	if err := validation.ValidateEmail(addr); err != nil {
		return nil, badRequest(err)
	}
	if !in.Role.Valid() {
		return nil, apperr.BadRequestf("unknown role %q", in.Role)
	}
	if in.Role == models.RoleSuperAdmin && actor.Role != models.RoleSuperAdmin {
		return nil, apperr.Forbidden("only a superadmin can invite a superadmin")
	}
	if in.Role == models.RoleCollaborator && in.NucleoID == nil {
		return nil, apperr.BadRequest("collaborators must be assigned a nucleo")
	}

	st := s.p.pool
	member, err := st.members.GetByID(ctx, in.MemberID)
	if err != nil {
		return nil, err
	}
	if member == nil || member.CommunityID != actor.CommunityID || !member.Active {
		return nil, apperr.BadRequestf("member %d does not exist", in.MemberID)
	}
	if member.UserID != nil {
		return nil, apperr.BadRequest("member already has a user account")
	}
	if in.NucleoID != nil {
		n, err := st.nucleos.GetByID(ctx, *in.NucleoID)
		if err != nil {
			return nil, err
		}
		if n == nil || n.CommunityID != actor.CommunityID || !n.Active {
			return nil, apperr.BadRequestf("nucleo %d does not exist", *in.NucleoID)
		}
	}
	taken, err := st.users.GetByEmail(ctx, addr)
	if err != nil {
		return nil, err
	}
	if taken != nil {
		return nil, apperr.BadRequest("email already taken")
	}

	now := s.p.now()
	inv := &models.Invitation{
		CommunityID: actor.CommunityID,
		Code:        security.NewInvitationCode(),
		Email:       addr,
		MemberID:    member.ID,
		Role:        in.Role,
		NucleoID:    in.NucleoID,
		InvitedBy:   actor.ID,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
	}
	if err := st.invitations.Create(ctx, inv); err != nil {
		return nil, err
	}

	s.send(ctx, actor, member, inv)
	s.p.record(ctx, actor, models.ActionCreate, models.EntityInvitation, inv.ID, inv.Email,
		placement{NucleoID: inv.NucleoID}, map[string]any{"role": string(inv.Role), "memberId": member.ID})
	return inv, nil
}

func (s *InvitationService) send(ctx context.Context, actor *models.User, member *models.Member, inv *models.Invitation) {
	if s.mailer == nil {
		return
	}
	community := ""
	if c, err := s.p.pool.communities.GetByID(ctx, actor.CommunityID); err == nil && c != nil {
		community = c.Name
	}
	err := s.mailer.SendInvitationEmail(ctx, email.Invitation{
		ToEmail:   inv.Email,
		ToName:    member.FullName(),
		Inviter:   actor.Name,
		Community: community,
		Code:      inv.Code,
		Expires:   inv.ExpiresAt.Format("January 2, 2006"),
	})
	if err != nil {
		s.p.logger.Warn("Failed to send invitation email",
			zap.Int64("invitation_id", inv.ID),
			zap.String("email", inv.Email),
			zap.Error(err),
		)
	}
}

// Pending lists the invitations that can still be accepted
func (s *InvitationService) Pending(ctx context.Context, actor *models.User) ([]models.Invitation, error) {
	return visible(actor, models.EntityInvitation, nil, func(f database.Filter) ([]models.Invitation, error) {
		return s.p.pool.invitations.ListPending(ctx, f, s.p.now())
	})
}

// Accept creates the invited user, links it to its member and consumes the
// code in one transaction. It needs no signed-in actor.
func (s *InvitationService) Accept(ctx context.Context, in AcceptInput) (*models.User, error) {
	inv, err := s.p.pool.invitations.GetByCode(ctx, strings.TrimSpace(in.Code))
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, &apperr.Error{Kind: apperr.KindNotFound, Message: "invitation not found"}
	}
	now := s.p.now()
	if !inv.IsValid(now) {
		return nil, apperr.BadRequest("invitation has expired or was already used")
	}

	name := strings.TrimSpace(in.Name)
	if err := validation.First(validation.ValidateName(name), validation.ValidatePassword(in.Password)); err != nil {
		return nil, badRequest(err)
	}
	hash, err := security.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	memberID := inv.MemberID
	user := &models.User{
		CommunityID:  inv.CommunityID,
		Email:        inv.Email,
		PasswordHash: hash,
		Name:         name,
		Role:         inv.Role,
		MemberID:     &memberID,
		NucleoID:     inv.NucleoID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err = s.p.inTx(ctx, func(st *stores) error {
		taken, err := st.users.GetByEmail(ctx, inv.Email)
		if err != nil {
			return err
		}
		if taken != nil {
			return apperr.BadRequest("email already taken")
		}
		member, err := st.members.GetByID(ctx, memberID)
		if err != nil {
			return err
		}
		if member == nil || !member.Active || member.UserID != nil {
			return apperr.BadRequest("invited member is no longer available")
		}
		if err := st.users.Create(ctx, user); err != nil {
			return err
		}
		if err := st.members.SetUser(ctx, memberID, &user.ID, nextVersion(now, member.UpdatedAt)); err != nil {
			return err
		}
		return st.invitations.MarkUsed(ctx, inv.ID, user.ID, now)
	})
	if err != nil {
		return nil, err
	}

	s.p.record(ctx, user, models.ActionCreate, models.EntityUser, user.ID, user.Name,
		placement{NucleoID: user.NucleoID}, map[string]any{"invitationId": inv.ID})
	return user, nil
}
