// Package workflow holds the entity status vocabulary and the pure
// transition predicates the mutation handlers consult before writing.
package workflow

import (
	"errors"
	"fmt"
)

// Travel approval statuses.
const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

// Payout statuses.
const (
	PayoutPending    = "pending"
	PayoutProcessing = "processing"
	PayoutCompleted  = "completed"
	PayoutFailed     = "failed"
)

// Onboarding invite statuses.
const (
	InvitePending   = "pending"
	InviteSubmitted = "submitted"
	InviteApproved  = "approved"
	InviteCancelled = "cancelled"
)

var (
	ErrApprovalNotApproved = errors.New("approval is not in approved status")
	ErrPayoutNotPending    = errors.New("payout already processed")
	ErrInviteNotUsable     = errors.New("invite already used or cancelled")
	ErrAlreadyCheckedIn    = errors.New("already checked in")
	ErrBadStatus           = errors.New("unknown status")
)

// ValidApprovalStatus reports whether s is a known approval status.
func ValidApprovalStatus(s string) bool {
	switch s {
	case ApprovalPending, ApprovalApproved, ApprovalRejected:
		return true
	}
	return false
}

// ValidPayoutStatus reports whether s is a known payout status.
func ValidPayoutStatus(s string) bool {
	switch s {
	case PayoutPending, PayoutProcessing, PayoutCompleted, PayoutFailed:
		return true
	}
	return false
}

// ValidPayoutTarget reports whether s is a status a payout can be moved to.
func ValidPayoutTarget(s string) bool {
	switch s {
	case PayoutProcessing, PayoutCompleted, PayoutFailed:
		return true
	}
	return false
}

// ValidInviteStatus reports whether s is a known invite status.
func ValidInviteStatus(s string) bool {
	switch s {
	case InvitePending, InviteSubmitted, InviteApproved, InviteCancelled:
		return true
	}
	return false
}

// Rules holds the configurable transition allowances.
type Rules struct {
	// AllowRepeatCheckIn permits multiple check-ins against one approval.
	AllowRepeatCheckIn bool

	// AllowPayoutRetransition permits moving a payout that already left
	// pending status.
	AllowPayoutRetransition bool
}

// DefaultRules returns the production transition policy.
func DefaultRules() Rules {
	return Rules{
		AllowRepeatCheckIn:      true,
		AllowPayoutRetransition: false,
	}
}

// CanCheckIn decides whether a check-in against an approval in the given
// status with priorCheckIns existing check-ins may proceed.
func (r Rules) CanCheckIn(approvalStatus string, priorCheckIns int) error {
	if !ValidApprovalStatus(approvalStatus) {
		return fmt.Errorf("%w: %q", ErrBadStatus, approvalStatus)
	}
	if approvalStatus != ApprovalApproved {
		return ErrApprovalNotApproved
	}
	if priorCheckIns > 0 && !r.AllowRepeatCheckIn {
		return ErrAlreadyCheckedIn
	}
	return nil
}

// PayoutTransition decides whether a payout may move from current to target.
func (r Rules) PayoutTransition(current, target string) error {
	if !ValidPayoutStatus(current) {
		return fmt.Errorf("%w: %q", ErrBadStatus, current)
	}
	if !ValidPayoutTarget(target) {
		return fmt.Errorf("%w: %q", ErrBadStatus, target)
	}
	if current != PayoutPending && !r.AllowPayoutRetransition {
		return ErrPayoutNotPending
	}
	return nil
}

// CanSubmitInvite decides whether an invite in the given status may be
// submitted. Submission is single-use: only pending invites qualify.
func (r Rules) CanSubmitInvite(status string) error {
	if !ValidInviteStatus(status) {
		return fmt.Errorf("%w: %q", ErrBadStatus, status)
	}
	if status != InvitePending {
		return ErrInviteNotUsable
	}
	return nil
}
