// Package store provides persistence primitives and driver abstractions.
package store

import (
	"context"
	"errors"
)

// Common errors for store operations.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrClosed        = errors.New("store closed")
)

// Driver defines the interface for a persistence backend.
// Implementations must be safe for concurrent use.
type Driver interface {
	// Init initializes the driver (create tables, load data, etc).
	Init(ctx context.Context) error

	// Close releases resources held by the driver.
	Close() error

	// Name returns the driver name (memory, sqlite).
	Name() string
}

// ParticipantStore defines operations for participant persistence.
type ParticipantStore interface {
	CreateParticipant(ctx context.Context, p *Participant) error
	GetParticipant(ctx context.Context, id string) (*Participant, error)
	GetParticipantByEmail(ctx context.Context, email string) (*Participant, error)
	ListParticipants(ctx context.Context) ([]*Participant, error)
}

// ApprovalStore defines operations for travel approval persistence.
type ApprovalStore interface {
	CreateApproval(ctx context.Context, a *TravelApproval) error
	GetApproval(ctx context.Context, id string) (*TravelApproval, error)

	// GetApprovalByToken looks up an approval by its check-in token.
	// The token is the sole capability credential for check-in.
	GetApprovalByToken(ctx context.Context, token string) (*TravelApproval, error)

	UpdateApproval(ctx context.Context, a *TravelApproval) error
	ListApprovalsByParticipant(ctx context.Context, participantID string) ([]*TravelApproval, error)
}

// CheckInStore defines operations for check-in persistence.
type CheckInStore interface {
	CreateCheckIn(ctx context.Context, c *CheckIn) error
	GetCheckIn(ctx context.Context, id string) (*CheckIn, error)
	UpdateCheckIn(ctx context.Context, c *CheckIn) error
	ListCheckInsByApproval(ctx context.Context, approvalID string) ([]*CheckIn, error)
}

// PayoutStore defines operations for payout persistence.
type PayoutStore interface {
	CreatePayout(ctx context.Context, p *Payout) error
	GetPayout(ctx context.Context, id string) (*Payout, error)
	UpdatePayout(ctx context.Context, p *Payout) error
	ListPayoutsByApproval(ctx context.Context, approvalID string) ([]*Payout, error)
}

// InviteStore defines operations for onboarding invite persistence.
type InviteStore interface {
	CreateInvite(ctx context.Context, inv *OnboardingInvite) error
	GetInvite(ctx context.Context, id string) (*OnboardingInvite, error)
	GetInviteByToken(ctx context.Context, token string) (*OnboardingInvite, error)
	UpdateInvite(ctx context.Context, inv *OnboardingInvite) error
	ListInvites(ctx context.Context) ([]*OnboardingInvite, error)
}

// ActivityStore defines operations for the audit trail.
type ActivityStore interface {
	AppendActivity(ctx context.Context, entry *ActivityLog) error
	ListActivity(ctx context.Context, limit int) ([]*ActivityLog, error)
}

// Store combines the driver lifecycle with all entity stores.
type Store interface {
	Driver
	ParticipantStore
	ApprovalStore
	CheckInStore
	PayoutStore
	InviteStore
	ActivityStore
}
