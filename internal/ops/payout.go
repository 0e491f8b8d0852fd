package ops

import (
	"context"
	"errors"

	"github.com/ethsafari/opshub-go/internal/identity"
	"github.com/ethsafari/opshub-go/internal/store"
	"github.com/ethsafari/opshub-go/internal/workflow"
)

// Proof types accepted for completed payouts.
var validProofTypes = map[string]bool{
	"receipt":       true,
	"tx_hash":       true,
	"bank_transfer": true,
}

// CompletePayoutInput is the payload for the complete_payout action.
// Either PayoutID references an existing payout, or ApprovalID requests
// creation of a fresh pending payout that is transitioned in the same
// action. Proof fields are required when the target status is completed.
type CompletePayoutInput struct {
	PayoutID   string  `json:"payout_id,omitempty"`
	ApprovalID string  `json:"approval_id,omitempty"`
	Amount     float64 `json:"amount,omitempty"`
	Status     string  `json:"status"` // processing, completed, failed
	ProofType  string  `json:"proof_type,omitempty"`
	ProofData  string  `json:"proof_data,omitempty"`
}

// PayoutResult is returned on successful payout transition.
type PayoutResult struct {
	Payout   *store.Payout `json:"payout"`
	Anchored bool          `json:"anchored"`
}

func (in *CompletePayoutInput) validate() error {
	if in.PayoutID == "" && in.ApprovalID == "" {
		return Validationf("invalid_input", "payout_id or approval_id is required")
	}
	if !workflow.ValidPayoutTarget(in.Status) {
		return Validationf("invalid_input", "unknown payout target status %q", in.Status)
	}
	if in.Amount < 0 {
		return Validationf("invalid_input", "amount must be non-negative")
	}
	if in.ProofType != "" && !validProofTypes[in.ProofType] {
		return Validationf("invalid_input", "unknown proof type %q", in.ProofType)
	}
	if in.Status == workflow.PayoutCompleted {
		if in.ProofType == "" || in.ProofData == "" {
			return Validationf("proof_required", "completed payouts require proof_type and proof_data")
		}
	}
	return nil
}

// resolvePayout fetches the referenced payout, or creates a pending one
// for the approval when only approval_id was supplied.
func (s *Service) resolvePayout(ctx context.Context, in *CompletePayoutInput) (*store.Payout, error) {
	if in.PayoutID != "" {
		p, err := s.store.GetPayout(ctx, in.PayoutID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, Conflictf("unknown_payout", err, "no payout with id %s", in.PayoutID)
			}
			return nil, Internalf("store_failure", err, "payout lookup failed")
		}
		return p, nil
	}

	approval, err := s.store.GetApproval(ctx, in.ApprovalID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, Conflictf("unknown_approval", err, "no approval with id %s", in.ApprovalID)
		}
		return nil, Internalf("store_failure", err, "approval lookup failed")
	}

	amount := in.Amount
	if amount == 0 {
		amount = approval.StipendAmount
	}

	payout := &store.Payout{
		ID:               s.newID(),
		TravelApprovalID: approval.ID,
		Amount:           amount,
		Status:           workflow.PayoutPending,
		CreatedAt:        s.now().Unix(),
	}
	if err := s.store.CreatePayout(ctx, payout); err != nil {
		return nil, Internalf("store_failure", err, "payout creation failed")
	}
	return payout, nil
}

// CompletePayout transitions a payout toward a terminal status.
func (s *Service) CompletePayout(ctx context.Context, op *identity.Operator, in CompletePayoutInput) (*PayoutResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	payout, err := s.resolvePayout(ctx, &in)
	if err != nil {
		return nil, err
	}

	if err := s.rules.PayoutTransition(payout.Status, in.Status); err != nil {
		switch {
		case errors.Is(err, workflow.ErrPayoutNotPending):
			return nil, Conflictf("payout_not_pending", err, "payout already left pending status")
		default:
			return nil, Conflictf("bad_status", err, "illegal payout transition")
		}
	}

	payout.Status = in.Status
	payout.ProofType = in.ProofType
	payout.ProofData = in.ProofData
	payout.ProcessedBy = operatorID(op)
	if in.Status == workflow.PayoutCompleted {
		payout.ProcessedAt = s.now().Unix()
	}
	if err := s.store.UpdatePayout(ctx, payout); err != nil {
		return nil, Internalf("store_failure", err, "payout update failed")
	}

	result := s.attestor.Attest(ctx, "payout", map[string]any{
		"payout_id":   payout.ID,
		"approval_id": payout.TravelApprovalID,
		"amount":      payout.Amount,
		"status":      payout.Status,
		"proof_type":  payout.ProofType,
		"operator":    operatorID(op),
	})
	if result != nil {
		payout.AnchorHash = result.Hash
		if err := s.store.UpdatePayout(ctx, payout); err != nil {
			s.logger.Warn("anchor attach failed", "payout_id", payout.ID, "error", err)
			payout.AnchorHash = ""
			result = nil
		}
	}

	// participant attribution is best-effort: the approval may be gone
	participantID := ""
	if approval, err := s.store.GetApproval(ctx, payout.TravelApprovalID); err == nil {
		participantID = approval.ParticipantID
	}

	s.appendActivity(ctx, "payout", participantID, "Payout "+payout.Status, map[string]any{
		"payout_id":   payout.ID,
		"approval_id": payout.TravelApprovalID,
		"amount":      payout.Amount,
		"status":      payout.Status,
		"operator":    operatorID(op),
	}, result != nil)

	return &PayoutResult{Payout: payout, Anchored: result != nil}, nil
}
