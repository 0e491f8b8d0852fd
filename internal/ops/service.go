// Package ops orchestrates the mutating actions: input validation,
// participant resolution, state predicates, the primary store write, the
// awaited best-effort attestation, anchor attachment, and the audit trail.
package ops

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"time"

	"github.com/google/uuid"

	"github.com/ethsafari/opshub-go/internal/attest"
	"github.com/ethsafari/opshub-go/internal/identity"
	"github.com/ethsafari/opshub-go/internal/logutil"
	"github.com/ethsafari/opshub-go/internal/store"
	"github.com/ethsafari/opshub-go/internal/workflow"
)

// Store is the persistence surface the orchestrator needs.
type Store interface {
	store.ParticipantStore
	store.ApprovalStore
	store.CheckInStore
	store.PayoutStore
	store.InviteStore
	store.ActivityStore
}

// Attestor submits attestations; a nil result means "not anchored".
type Attestor interface {
	Attest(ctx context.Context, kind string, payload map[string]any) *attest.Result
	Enabled() bool
}

// Deps holds the orchestrator's dependencies.
type Deps struct {
	Store      Store
	Attestor   Attestor
	Rules      workflow.Rules
	DriverName string
	Logger     *slog.Logger
}

// Service executes the mutating actions.
type Service struct {
	store      Store
	attestor   Attestor
	rules      workflow.Rules
	driverName string
	logger     *slog.Logger
	now        func() time.Time
	newID      func() string
}

// NewService creates the orchestrator.
func NewService(d Deps) *Service {
	return &Service{
		store:      d.Store,
		attestor:   d.Attestor,
		rules:      d.Rules,
		driverName: d.DriverName,
		logger:     logutil.NoopIfNil(d.Logger),
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// validEmail reports whether addr is a plausible email address.
func validEmail(addr string) bool {
	if addr == "" {
		return false
	}
	parsed, err := mail.ParseAddress(addr)
	return err == nil && parsed.Address == addr
}

// ensureParticipant resolves the participant for an action: by id when
// given, otherwise lookup-or-insert by email. A race between two
// concurrent creations with the same email surfaces as a store conflict.
func (s *Service) ensureParticipant(ctx context.Context, id, name, email, role, photoURL string) (*store.Participant, error) {
	if id != "" {
		p, err := s.store.GetParticipant(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, Validationf("unknown_participant", "no participant with id %s", id)
			}
			return nil, Internalf("store_failure", err, "participant lookup failed")
		}
		return p, nil
	}

	p, err := s.store.GetParticipantByEmail(ctx, email)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, Internalf("store_failure", err, "participant lookup failed")
	}

	p = &store.Participant{
		ID:        s.newID(),
		Name:      name,
		Email:     email,
		Role:      role,
		PhotoURL:  photoURL,
		CreatedAt: s.now().Unix(),
	}
	if err := s.store.CreateParticipant(ctx, p); err != nil {
		return nil, Internalf("store_failure", err, "participant creation failed")
	}
	return p, nil
}

// appendActivity writes the audit row for a completed action. Audit
// failures are absorbed: the primary mutation already committed.
func (s *Service) appendActivity(ctx context.Context, eventType, participantID, description string, metadata map[string]any, anchored bool) {
	entry := &store.ActivityLog{
		ID:            s.newID(),
		EventType:     eventType,
		ParticipantID: participantID,
		Description:   description,
		Metadata:      metadata,
		AquaVerified:  anchored,
		CreatedAt:     s.now().Unix(),
	}
	if err := s.store.AppendActivity(ctx, entry); err != nil {
		s.logger.Error("audit trail write failed", "event_type", eventType, "error", err)
	}
}

// HealthResult is the liveness summary.
type HealthResult struct {
	Status             string `json:"status"`
	Service            string `json:"service"`
	StoreDriver        string `json:"store_driver,omitempty"`
	AttestationEnabled bool   `json:"attestation_enabled"`
}

// Health reports service liveness.
func (s *Service) Health(ctx context.Context) *HealthResult {
	return &HealthResult{
		Status:             "ok",
		Service:            "opshub",
		StoreDriver:        s.driverName,
		AttestationEnabled: s.attestor != nil && s.attestor.Enabled(),
	}
}

// operatorID extracts the audit attribution id.
func operatorID(op *identity.Operator) string {
	if op == nil {
		return ""
	}
	return op.ID
}
