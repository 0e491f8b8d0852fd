package ops

import (
	"context"
	"errors"

	"github.com/ethsafari/opshub-go/internal/identity"
	"github.com/ethsafari/opshub-go/internal/qr"
	"github.com/ethsafari/opshub-go/internal/store"
	"github.com/ethsafari/opshub-go/internal/workflow"
)

// RecordCheckInInput is the payload for the record_check_in action.
// The token is the sole capability credential; no approval id is accepted.
// QRData carries a raw scanned QR document and is decoded into the token
// when Token itself is empty.
type RecordCheckInInput struct {
	Token    string `json:"token,omitempty"`
	QRData   string `json:"qr_data,omitempty"`
	Location string `json:"location"`
}

// CheckInResult is returned on successful check-in.
type CheckInResult struct {
	CheckIn  *store.CheckIn `json:"check_in"`
	Anchored bool           `json:"anchored"`
}

func (in *RecordCheckInInput) validate() error {
	if in.Token == "" && in.QRData != "" {
		payload, err := qr.Decode([]byte(in.QRData))
		if err != nil {
			return Validationf("invalid_qr", "scanned QR payload is invalid: %v", err)
		}
		in.Token = payload.Token
	}
	if in.Token == "" {
		return Validationf("invalid_input", "check-in token is required")
	}
	if in.Location == "" {
		return Validationf("invalid_input", "location is required")
	}
	return nil
}

// RecordCheckIn inserts a check-in against the approval matching the token.
func (s *Service) RecordCheckIn(ctx context.Context, op *identity.Operator, in RecordCheckInInput) (*CheckInResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	approval, err := s.store.GetApprovalByToken(ctx, in.Token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, Conflictf("unknown_token", err, "no approval matches the check-in token")
		}
		return nil, Internalf("store_failure", err, "approval lookup failed")
	}

	prior, err := s.store.ListCheckInsByApproval(ctx, approval.ID)
	if err != nil {
		return nil, Internalf("store_failure", err, "check-in lookup failed")
	}

	if err := s.rules.CanCheckIn(approval.Status, len(prior)); err != nil {
		switch {
		case errors.Is(err, workflow.ErrApprovalNotApproved):
			return nil, Conflictf("not_approved", err, "approval is not in approved status")
		case errors.Is(err, workflow.ErrAlreadyCheckedIn):
			return nil, Conflictf("already_checked_in", err, "a check-in already exists for this approval")
		default:
			return nil, Conflictf("bad_status", err, "approval is in an unknown status")
		}
	}

	now := s.now().Unix()
	checkIn := &store.CheckIn{
		ID:               s.newID(),
		TravelApprovalID: approval.ID,
		Location:         in.Location,
		Timestamp:        now,
		ScannedBy:        operatorID(op),
		CreatedAt:        now,
	}
	if err := s.store.CreateCheckIn(ctx, checkIn); err != nil {
		return nil, Internalf("store_failure", err, "check-in creation failed")
	}

	result := s.attestor.Attest(ctx, "check_in", map[string]any{
		"check_in_id":    checkIn.ID,
		"approval_id":    approval.ID,
		"participant_id": approval.ParticipantID,
		"location":       checkIn.Location,
		"operator":       operatorID(op),
	})
	if result != nil {
		checkIn.AnchorHash = result.Hash
		if err := s.store.UpdateCheckIn(ctx, checkIn); err != nil {
			s.logger.Warn("anchor attach failed", "check_in_id", checkIn.ID, "error", err)
			checkIn.AnchorHash = ""
			result = nil
		}
	}

	s.appendActivity(ctx, "check_in", approval.ParticipantID, "Checked in at "+in.Location, map[string]any{
		"check_in_id": checkIn.ID,
		"approval_id": approval.ID,
		"location":    checkIn.Location,
		"operator":    operatorID(op),
	}, result != nil)

	return &CheckInResult{CheckIn: checkIn, Anchored: result != nil}, nil
}
