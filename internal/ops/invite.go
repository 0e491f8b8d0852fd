package ops

import (
	"context"

	"github.com/ethsafari/opshub-go/internal/identity"
	"github.com/ethsafari/opshub-go/internal/store"
	"github.com/ethsafari/opshub-go/internal/workflow"
)

// CreateInviteInput is the payload for the create_onboarding_invite action.
type CreateInviteInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// InviteResult is returned on successful invite creation. The token is
// the single-use onboarding credential.
type InviteResult struct {
	Invite   *store.OnboardingInvite `json:"invite"`
	Anchored bool                    `json:"anchored"`
}

func (in *CreateInviteInput) validate() error {
	if in.Name == "" {
		return Validationf("invalid_input", "name is required")
	}
	if !validEmail(in.Email) {
		return Validationf("invalid_input", "email is invalid")
	}
	if in.Role == "" {
		return Validationf("invalid_input", "role is required")
	}
	return nil
}

// CreateInvite creates a pending onboarding invite with a fresh token.
func (s *Service) CreateInvite(ctx context.Context, op *identity.Operator, in CreateInviteInput) (*InviteResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := s.now().Unix()
	invite := &store.OnboardingInvite{
		ID:        s.newID(),
		Name:      in.Name,
		Email:     in.Email,
		Role:      in.Role,
		Token:     s.newID(),
		Status:    workflow.InvitePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateInvite(ctx, invite); err != nil {
		return nil, Internalf("store_failure", err, "invite creation failed")
	}

	result := s.attestor.Attest(ctx, "invite", map[string]any{
		"invite_id": invite.ID,
		"email":     invite.Email,
		"role":      invite.Role,
		"operator":  operatorID(op),
	})
	if result != nil {
		invite.AnchorHash = result.Hash
		invite.UpdatedAt = s.now().Unix()
		if err := s.store.UpdateInvite(ctx, invite); err != nil {
			s.logger.Warn("anchor attach failed", "invite_id", invite.ID, "error", err)
			invite.AnchorHash = ""
			result = nil
		}
	}

	s.appendActivity(ctx, "invite", "", "Onboarding invite created for "+invite.Email, map[string]any{
		"invite_id": invite.ID,
		"email":     invite.Email,
		"role":      invite.Role,
		"operator":  operatorID(op),
	}, result != nil)

	return &InviteResult{Invite: invite, Anchored: result != nil}, nil
}
