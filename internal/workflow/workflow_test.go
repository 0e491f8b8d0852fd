package workflow

import (
	"errors"
	"testing"
)

func TestCanCheckIn(t *testing.T) {
	rules := DefaultRules()

	tests := []struct {
		name           string
		status         string
		priorCheckIns  int
		allowRepeat    bool
		wantErr        error
		wantBadStatus  bool
	}{
		{name: "approved first check-in", status: ApprovalApproved, allowRepeat: true},
		{name: "approved repeat allowed", status: ApprovalApproved, priorCheckIns: 2, allowRepeat: true},
		{name: "approved repeat blocked", status: ApprovalApproved, priorCheckIns: 1, allowRepeat: false, wantErr: ErrAlreadyCheckedIn},
		{name: "pending", status: ApprovalPending, allowRepeat: true, wantErr: ErrApprovalNotApproved},
		{name: "rejected", status: ApprovalRejected, allowRepeat: true, wantErr: ErrApprovalNotApproved},
		{name: "unknown status", status: "bogus", allowRepeat: true, wantBadStatus: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules.AllowRepeatCheckIn = tt.allowRepeat
			err := rules.CanCheckIn(tt.status, tt.priorCheckIns)
			if tt.wantBadStatus {
				if !errors.Is(err, ErrBadStatus) {
					t.Errorf("expected ErrBadStatus, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("CanCheckIn(%q, %d) = %v, want %v", tt.status, tt.priorCheckIns, err, tt.wantErr)
			}
		})
	}
}

func TestPayoutTransition(t *testing.T) {
	rules := DefaultRules()

	tests := []struct {
		name          string
		current       string
		target        string
		allowRetrans  bool
		wantErr       error
		wantBadStatus bool
	}{
		{name: "pending to processing", current: PayoutPending, target: PayoutProcessing},
		{name: "pending to completed", current: PayoutPending, target: PayoutCompleted},
		{name: "pending to failed", current: PayoutPending, target: PayoutFailed},
		{name: "completed retransition blocked", current: PayoutCompleted, target: PayoutFailed, wantErr: ErrPayoutNotPending},
		{name: "processing retransition blocked", current: PayoutProcessing, target: PayoutCompleted, wantErr: ErrPayoutNotPending},
		{name: "retransition allowed by policy", current: PayoutProcessing, target: PayoutCompleted, allowRetrans: true},
		{name: "target pending invalid", current: PayoutPending, target: PayoutPending, wantBadStatus: true},
		{name: "unknown current", current: "bogus", target: PayoutCompleted, wantBadStatus: true},
		{name: "unknown target", current: PayoutPending, target: "bogus", wantBadStatus: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules.AllowPayoutRetransition = tt.allowRetrans
			err := rules.PayoutTransition(tt.current, tt.target)
			if tt.wantBadStatus {
				if !errors.Is(err, ErrBadStatus) {
					t.Errorf("expected ErrBadStatus, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("PayoutTransition(%q, %q) = %v, want %v", tt.current, tt.target, err, tt.wantErr)
			}
		})
	}
}

func TestCanSubmitInvite(t *testing.T) {
	rules := DefaultRules()

	if err := rules.CanSubmitInvite(InvitePending); err != nil {
		t.Errorf("pending invite should be usable, got %v", err)
	}

	for _, status := range []string{InviteSubmitted, InviteApproved, InviteCancelled} {
		if err := rules.CanSubmitInvite(status); !errors.Is(err, ErrInviteNotUsable) {
			t.Errorf("CanSubmitInvite(%q) = %v, want ErrInviteNotUsable", status, err)
		}
	}

	if err := rules.CanSubmitInvite("bogus"); !errors.Is(err, ErrBadStatus) {
		t.Errorf("expected ErrBadStatus, got %v", err)
	}
}
