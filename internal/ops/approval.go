package ops

import (
	"context"

	"github.com/ethsafari/opshub-go/internal/identity"
	"github.com/ethsafari/opshub-go/internal/qr"
	"github.com/ethsafari/opshub-go/internal/store"
	"github.com/ethsafari/opshub-go/internal/workflow"
)

// ParticipantInput identifies or describes the participant an action
// applies to. When ID is empty, lookup-or-insert by email applies.
type ParticipantInput struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	PhotoURL string `json:"photo_url,omitempty"`
}

// IssueApprovalInput is the payload for the issue_travel_approval action.
type IssueApprovalInput struct {
	Participant   ParticipantInput `json:"participant"`
	Itinerary     string           `json:"itinerary"`
	StipendAmount float64          `json:"stipend_amount"`
	SponsorNotes  string           `json:"sponsor_notes,omitempty"`
	Status        string           `json:"status,omitempty"` // defaults to approved
}

// ApprovalResult is returned on successful approval issuance. QR is the
// payload callers embed in the printable check-in code.
type ApprovalResult struct {
	Approval    *store.TravelApproval `json:"approval"`
	Participant *store.Participant    `json:"participant"`
	QR          qr.Payload            `json:"qr"`
	Anchored    bool                  `json:"anchored"`
}

func (in *IssueApprovalInput) validate() error {
	if in.Participant.ID == "" {
		if in.Participant.Name == "" {
			return Validationf("invalid_input", "participant name is required")
		}
		if !validEmail(in.Participant.Email) {
			return Validationf("invalid_input", "participant email is invalid")
		}
		if in.Participant.Role == "" {
			return Validationf("invalid_input", "participant role is required")
		}
	}
	if in.Itinerary == "" {
		return Validationf("invalid_input", "itinerary is required")
	}
	if in.StipendAmount < 0 {
		return Validationf("invalid_input", "stipend amount must be non-negative")
	}
	if in.Status == "" {
		in.Status = workflow.ApprovalApproved
	}
	if !workflow.ValidApprovalStatus(in.Status) {
		return Validationf("invalid_input", "unknown approval status %q", in.Status)
	}
	return nil
}

// IssueApproval creates a travel approval with a fresh check-in token,
// creating the participant on first sight of the email.
func (s *Service) IssueApproval(ctx context.Context, op *identity.Operator, in IssueApprovalInput) (*ApprovalResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	participant, err := s.ensureParticipant(ctx,
		in.Participant.ID, in.Participant.Name, in.Participant.Email,
		in.Participant.Role, in.Participant.PhotoURL)
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
		Status:        in.Status,
		QRToken:       s.newID(),
		CreatedAt:     now,
	}
	if in.Status == workflow.ApprovalApproved {
		approval.ApprovedBy = operatorID(op)
		approval.ApprovedAt = now
	}

	if err := s.store.CreateApproval(ctx, approval); err != nil {
		return nil, Internalf("store_failure", err, "approval creation failed")
	}

	result := s.attestor.Attest(ctx, "travel_approval", map[string]any{
		"approval_id":    approval.ID,
		"participant_id": participant.ID,
		"itinerary":      approval.Itinerary,
		"stipend_amount": approval.StipendAmount,
		"status":         approval.Status,
		"operator":       operatorID(op),
	})
	if result != nil {
		approval.AnchorHash = result.Hash
		if err := s.store.UpdateApproval(ctx, approval); err != nil {
			s.logger.Warn("anchor attach failed", "approval_id", approval.ID, "error", err)
			approval.AnchorHash = ""
			result = nil
		}
	}

	s.appendActivity(ctx, "approval", participant.ID, "Travel approval issued", map[string]any{
		"approval_id":    approval.ID,
		"stipend_amount": approval.StipendAmount,
		"status":         approval.Status,
		"operator":       operatorID(op),
	}, result != nil)

	return &ApprovalResult{
		Approval:    approval,
		Participant: participant,
		QR:          qr.NewPayload(approval.ID, approval.QRToken),
		Anchored:    result != nil,
	}, nil
}
