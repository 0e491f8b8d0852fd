package ops

import (
	"context"
	"errors"

	"github.com/ethsafari/opshub-go/internal/identity"
	"github.com/ethsafari/opshub-go/internal/qr"
	"github.com/ethsafari/opshub-go/internal/store"
	"github.com/ethsafari/opshub-go/internal/workflow"
)

// SubmitOnboardingInput is the payload for the submit_onboarding action.
// The token is the invite's single-use credential.
type SubmitOnboardingInput struct {
	Token         string         `json:"token"`
	Itinerary     string         `json:"itinerary"`
	StipendAmount float64        `json:"stipend_amount,omitempty"`
	SponsorNotes  string         `json:"sponsor_notes,omitempty"`
	FormData      map[string]any `json:"form_data,omitempty"`

	// Attestation is an optional proof the submitter computed locally.
	// It is stored as-is alongside the server-side anchor.
	Attestation *store.ClientProof `json:"attestation,omitempty"`
}

// OnboardingResult is returned on successful invite submission. QR carries
// the check-in payload for the freshly created approval.
type OnboardingResult struct {
	Invite      *store.OnboardingInvite `json:"invite"`
	Participant *store.Participant      `json:"participant"`
	Approval    *store.TravelApproval   `json:"approval"`
	QR          qr.Payload              `json:"qr"`
	Anchored    bool                    `json:"anchored"`
}

func (in *SubmitOnboardingInput) validate() error {
	if in.Token == "" {
		return Validationf("invalid_input", "invite token is required")
	}
	if in.Itinerary == "" {
		return Validationf("invalid_input", "itinerary is required")
	}
	if in.StipendAmount < 0 {
		return Validationf("invalid_input", "stipend amount must be non-negative")
	}
	if in.Attestation != nil && in.Attestation.Hash == "" {
		return Validationf("invalid_input", "client attestation requires a hash")
	}
	return nil
}

// SubmitOnboarding consumes a pending invite: it resolves or creates the
// participant from the invite's captured identity, creates a pending
// travel approval, and links both back to the invite.
func (s *Service) SubmitOnboarding(ctx context.Context, op *identity.Operator, in SubmitOnboardingInput) (*OnboardingResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	invite, err := s.store.GetInviteByToken(ctx, in.Token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, Conflictf("unknown_invite", err, "no invite matches the token")
		}
		return nil, Internalf("store_failure", err, "invite lookup failed")
	}

	if err := s.rules.CanSubmitInvite(invite.Status); err != nil {
		switch {
		case errors.Is(err, workflow.ErrInviteNotUsable):
			return nil, Conflictf("invite_not_usable", err, "invite already used or cancelled")
		default:
			return nil, Conflictf("bad_status", err, "invite is in an unknown status")
		}
	}

	participant, err := s.ensureParticipant(ctx, "", invite.Name, invite.Email, invite.Role, "")
	if err != nil {
		return nil, err
	}

	now := s.now().Unix()
	approval := &store.TravelApproval{
		ID:            s.newID(),
		ParticipantID: participant.ID,
		Itinerary:     in.Itinerary,
		StipendAmount: in.StipendAmount,
		SponsorNotes:  in.SponsorNotes,
		Status:        workflow.ApprovalPending,
		QRToken:       s.newID(),
		CreatedAt:     now,
	}
	if err := s.store.CreateApproval(ctx, approval); err != nil {
		return nil, Internalf("store_failure", err, "approval creation failed")
	}

	invite.Status = workflow.InviteSubmitted
	invite.ParticipantID = participant.ID
	invite.TravelApprovalID = approval.ID
	invite.FormData = in.FormData
	invite.ClientProof = in.Attestation
	invite.UpdatedAt = now
	if err := s.store.UpdateInvite(ctx, invite); err != nil {
		return nil, Internalf("store_failure", err, "invite update failed")
	}

	result := s.attestor.Attest(ctx, "onboarding", map[string]any{
		"invite_id":      invite.ID,
		"participant_id": participant.ID,
		"approval_id":    approval.ID,
		"operator":       operatorID(op),
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

	metadata := map[string]any{
		"invite_id":      invite.ID,
		"participant_id": participant.ID,
		"approval_id":    approval.ID,
		"operator":       operatorID(op),
	}
	if in.Attestation != nil {
		metadata["client_proof_hash"] = in.Attestation.Hash
	}
	s.appendActivity(ctx, "onboarding", participant.ID, "Onboarding submitted for "+invite.Email, metadata, result != nil)

	return &OnboardingResult{
		Invite:      invite,
		Participant: participant,
		Approval:    approval,
		QR:          qr.NewPayload(approval.ID, approval.QRToken),
		Anchored:    result != nil,
	}, nil
}
