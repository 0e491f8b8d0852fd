package ops

import (
	"context"
	"errors"
	"testing"

	"github.com/ethsafari/opshub-go/internal/attest"
	"github.com/ethsafari/opshub-go/internal/identity"
	"github.com/ethsafari/opshub-go/internal/store"
	"github.com/ethsafari/opshub-go/internal/store/memory"
	"github.com/ethsafari/opshub-go/internal/workflow"
)

type attestCall struct {
	kind    string
	payload map[string]any
}

type fakeAttestor struct {
	fail  bool
	calls []attestCall
}

func (f *fakeAttestor) Attest(ctx context.Context, kind string, payload map[string]any) *attest.Result {
	f.calls = append(f.calls, attestCall{kind: kind, payload: payload})
	if f.fail {
		return nil
	}
	return &attest.Result{Hash: "hash-" + kind, Digest: "digest-" + kind}
}

func (f *fakeAttestor) Enabled() bool { return !f.fail }

func newTestService(t *testing.T, rules workflow.Rules) (*Service, store.Store, *fakeAttestor) {
	t.Helper()
	st, err := memory.NewDriver(&store.DriverConfig{Driver: "memory"})
	if err != nil {
		t.Fatalf("memory driver: %v", err)
	}
	if err := st.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	att := &fakeAttestor{}
	svc := NewService(Deps{Store: st, Attestor: att, Rules: rules, DriverName: "memory"})
	return svc, st, att
}

func testOperator() *identity.Operator {
	return &identity.Operator{ID: "op-1", Email: "ops@example.com"}
}

func assertErrKind(t *testing.T, err error, kind, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s/%s error, got nil", kind, code)
	}
	if got := KindOf(err); got != kind {
		t.Errorf("kind = %q, want %q (err: %v)", got, kind, err)
	}
	if got := CodeOf(err); got != code {
		t.Errorf("code = %q, want %q (err: %v)", got, code, err)
	}
}

func TestIssueApproval(t *testing.T) {
	svc, st, att := newTestService(t, workflow.DefaultRules())
	ctx := context.Background()

	res, err := svc.IssueApproval(ctx, testOperator(), IssueApprovalInput{
		Participant:   ParticipantInput{Name: "Ada", Email: "a@x.com", Role: "speaker"},
		Itinerary:     "NBO-JNB",
		StipendAmount: 100.00,
	})
	if err != nil {
		t.Fatalf("IssueApproval: %v", err)
	}
	if res.Approval.Status != workflow.ApprovalApproved {
		t.Errorf("status = %q, want approved", res.Approval.Status)
	}
	if res.Approval.QRToken == "" {
		t.Error("expected a fresh check-in token")
	}
	if res.Approval.ApprovedBy != "op-1" || res.Approval.ApprovedAt == 0 {
		t.Errorf("approval attribution = %q/%d", res.Approval.ApprovedBy, res.Approval.ApprovedAt)
	}
	if res.Participant.Email != "a@x.com" {
		t.Errorf("participant email = %q", res.Participant.Email)
	}
	if !res.Anchored || res.Approval.AnchorHash != "hash-travel_approval" {
		t.Errorf("anchored = %v, hash = %q", res.Anchored, res.Approval.AnchorHash)
	}
	if res.QR.Token != res.Approval.QRToken || res.QR.ApprovalID != res.Approval.ID {
		t.Errorf("qr payload = %+v", res.QR)
	}
	if len(att.calls) != 1 || att.calls[0].kind != "travel_approval" {
		t.Fatalf("attest calls = %+v", att.calls)
	}

	stored, err := st.GetApproval(ctx, res.Approval.ID)
	if err != nil {
		t.Fatalf("GetApproval: %v", err)
	}
	if stored.AnchorHash != "hash-travel_approval" {
		t.Errorf("stored anchor hash = %q", stored.AnchorHash)
	}

	activity, err := st.ListActivity(ctx, 10)
	if err != nil {
		t.Fatalf("ListActivity: %v", err)
	}
	if len(activity) != 1 {
		t.Fatalf("activity rows = %d, want 1", len(activity))
	}
	if activity[0].EventType != "approval" || !activity[0].AquaVerified {
		t.Errorf("activity = %+v", activity[0])
	}
	if activity[0].Metadata["operator"] != "op-1" {
		t.Errorf("activity operator = %v", activity[0].Metadata["operator"])
	}
}

func TestIssueApprovalReusesParticipant(t *testing.T) {
	svc, st, _ := newTestService(t, workflow.DefaultRules())
	ctx := context.Background()

	in := IssueApprovalInput{
		Participant: ParticipantInput{Name: "Ada", Email: "a@x.com", Role: "speaker"},
		Itinerary:   "NBO-JNB",
	}
	first, err := svc.IssueApproval(ctx, testOperator(), in)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := svc.IssueApproval(ctx, testOperator(), in)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if first.Participant.ID != second.Participant.ID {
		t.Errorf("participant ids differ: %s vs %s", first.Participant.ID, second.Participant.ID)
	}
	all, err := st.ListParticipants(ctx)
	if err != nil {
		t.Fatalf("ListParticipants: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("participants = %d, want 1", len(all))
	}
}

func TestIssueApprovalValidation(t *testing.T) {
	svc, st, att := newTestService(t, workflow.DefaultRules())
	ctx := context.Background()

	cases := []struct {
		name string
		in   IssueApprovalInput
	}{
		{"missing name", IssueApprovalInput{
			Participant: ParticipantInput{Email: "a@x.com", Role: "speaker"},
			Itinerary:   "NBO-JNB",
		}},
		{"bad email", IssueApprovalInput{
			Participant: ParticipantInput{Name: "Ada", Email: "not-an-email", Role: "speaker"},
			Itinerary:   "NBO-JNB",
		}},
		{"missing role", IssueApprovalInput{
			Participant: ParticipantInput{Name: "Ada", Email: "a@x.com"},
			Itinerary:   "NBO-JNB",
		}},
		{"missing itinerary", IssueApprovalInput{
			Participant: ParticipantInput{Name: "Ada", Email: "a@x.com", Role: "speaker"},
		}},
		{"negative stipend", IssueApprovalInput{
			Participant:   ParticipantInput{Name: "Ada", Email: "a@x.com", Role: "speaker"},
			Itinerary:     "NBO-JNB",
			StipendAmount: -1,
		}},
		{"unknown status", IssueApprovalInput{
			Participant: ParticipantInput{Name: "Ada", Email: "a@x.com", Role: "speaker"},
			Itinerary:   "NBO-JNB",
			Status:      "maybe",
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.IssueApproval(ctx, testOperator(), tc.in)
			assertErrKind(t, err, KindValidation, "invalid_input")
		})
	}

	all, err := st.ListParticipants(ctx)
	if err != nil {
		t.Fatalf("ListParticipants: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("validation failures reached the store: %d participants", len(all))
	}
	if len(att.calls) != 0 {
		t.Errorf("validation failures reached the attestor: %d calls", len(att.calls))
	}
}

func TestIssueApprovalUnknownParticipantID(t *testing.T) {
	svc, _, _ := newTestService(t, workflow.DefaultRules())
	_, err := svc.IssueApproval(context.Background(), testOperator(), IssueApprovalInput{
		Participant: ParticipantInput{ID: "ghost"},
		Itinerary:   "NBO-JNB",
	})
	assertErrKind(t, err, KindValidation, "unknown_participant")
}

func TestIssueApprovalAttestationFailure(t *testing.T) {
	svc, st, att := newTestService(t, workflow.DefaultRules())
	att.fail = true
	ctx := context.Background()

	res, err := svc.IssueApproval(ctx, testOperator(), IssueApprovalInput{
		Participant: ParticipantInput{Name: "Ada", Email: "a@x.com", Role: "speaker"},
		Itinerary:   "NBO-JNB",
	})
	if err != nil {
		t.Fatalf("attestation failure must not fail the action: %v", err)
	}
	if res.Anchored || res.Approval.AnchorHash != "" {
		t.Errorf("anchored = %v, hash = %q, want unanchored", res.Anchored, res.Approval.AnchorHash)
	}

	stored, err := st.GetApproval(ctx, res.Approval.ID)
	if err != nil {
		t.Fatalf("approval not persisted: %v", err)
	}
	if stored.AnchorHash != "" {
		t.Errorf("stored anchor hash = %q, want empty", stored.AnchorHash)
	}

	activity, err := st.ListActivity(ctx, 10)
	if err != nil {
		t.Fatalf("ListActivity: %v", err)
	}
	if len(activity) != 1 || activity[0].AquaVerified {
		t.Errorf("activity = %+v, want one unverified row", activity)
	}
}

func issueApproved(t *testing.T, svc *Service) *ApprovalResult {
	t.Helper()
	res, err := svc.IssueApproval(context.Background(), testOperator(), IssueApprovalInput{
		Participant:   ParticipantInput{Name: "Ada", Email: "a@x.com", Role: "speaker"},
		Itinerary:     "NBO-JNB",
		StipendAmount: 100.00,
	})
	if err != nil {
		t.Fatalf("IssueApproval: %v", err)
	}
	return res
}

func TestRecordCheckIn(t *testing.T) {
	svc, st, _ := newTestService(t, workflow.DefaultRules())
	ctx := context.Background()
	approval := issueApproved(t, svc)

	res, err := svc.RecordCheckIn(ctx, testOperator(), RecordCheckInInput{
		Token:    approval.Approval.QRToken,
		Location: "Venue",
	})
	if err != nil {
		t.Fatalf("RecordCheckIn: %v", err)
	}
	if res.CheckIn.TravelApprovalID != approval.Approval.ID {
		t.Errorf("approval link = %q", res.CheckIn.TravelApprovalID)
	}
	if res.CheckIn.ScannedBy != "op-1" || res.CheckIn.Timestamp == 0 {
		t.Errorf("check-in attribution = %q/%d", res.CheckIn.ScannedBy, res.CheckIn.Timestamp)
	}

	// the default policy accepts repeat scans
	if _, err := svc.RecordCheckIn(ctx, testOperator(), RecordCheckInInput{
		Token:    approval.Approval.QRToken,
		Location: "Venue",
	}); err != nil {
		t.Fatalf("repeat check-in: %v", err)
	}

	checkIns, err := st.ListCheckInsByApproval(ctx, approval.Approval.ID)
	if err != nil {
		t.Fatalf("ListCheckInsByApproval: %v", err)
	}
	if len(checkIns) != 2 {
		t.Errorf("check-ins = %d, want 2", len(checkIns))
	}
}

func TestRecordCheckInSingleUsePolicy(t *testing.T) {
	rules := workflow.DefaultRules()
	rules.AllowRepeatCheckIn = false
	svc, _, _ := newTestService(t, rules)
	ctx := context.Background()
	approval := issueApproved(t, svc)

	in := RecordCheckInInput{Token: approval.Approval.QRToken, Location: "Venue"}
	if _, err := svc.RecordCheckIn(ctx, testOperator(), in); err != nil {
		t.Fatalf("first check-in: %v", err)
	}
	_, err := svc.RecordCheckIn(ctx, testOperator(), in)
	assertErrKind(t, err, KindConflict, "already_checked_in")
}

func TestRecordCheckInFromScannedQR(t *testing.T) {
	svc, _, _ := newTestService(t, workflow.DefaultRules())
	ctx := context.Background()
	approval := issueApproved(t, svc)

	raw, err := approval.QR.Encode()
	if err != nil {
		t.Fatalf("encode qr: %v", err)
	}

	res, err := svc.RecordCheckIn(ctx, testOperator(), RecordCheckInInput{
		QRData:   string(raw),
		Location: "Venue",
	})
	if err != nil {
		t.Fatalf("RecordCheckIn: %v", err)
	}
	if res.CheckIn.TravelApprovalID != approval.Approval.ID {
		t.Errorf("approval link = %q", res.CheckIn.TravelApprovalID)
	}

	_, err = svc.RecordCheckIn(ctx, testOperator(), RecordCheckInInput{
		QRData:   `{"type":"boarding_pass","token":"x"}`,
		Location: "Venue",
	})
	assertErrKind(t, err, KindValidation, "invalid_qr")
}

func TestRecordCheckInUnknownToken(t *testing.T) {
	svc, _, _ := newTestService(t, workflow.DefaultRules())
	_, err := svc.RecordCheckIn(context.Background(), testOperator(), RecordCheckInInput{
		Token:    "no-such-token",
		Location: "Venue",
	})
	assertErrKind(t, err, KindConflict, "unknown_token")
}

func TestRecordCheckInNotApproved(t *testing.T) {
	svc, _, _ := newTestService(t, workflow.DefaultRules())
	ctx := context.Background()

	res, err := svc.IssueApproval(ctx, testOperator(), IssueApprovalInput{
		Participant: ParticipantInput{Name: "Ada", Email: "a@x.com", Role: "speaker"},
		Itinerary:   "NBO-JNB",
		Status:      workflow.ApprovalPending,
	})
	if err != nil {
		t.Fatalf("IssueApproval: %v", err)
	}
	if res.Approval.ApprovedBy != "" || res.Approval.ApprovedAt != 0 {
		t.Errorf("pending approval carries attribution: %+v", res.Approval)
	}

	_, err = svc.RecordCheckIn(ctx, testOperator(), RecordCheckInInput{
		Token:    res.Approval.QRToken,
		Location: "Venue",
	})
	assertErrKind(t, err, KindConflict, "not_approved")
}

func TestCompletePayout(t *testing.T) {
	svc, st, _ := newTestService(t, workflow.DefaultRules())
	ctx := context.Background()
	approval := issueApproved(t, svc)

	res, err := svc.CompletePayout(ctx, testOperator(), CompletePayoutInput{
		ApprovalID: approval.Approval.ID,
		Status:     workflow.PayoutCompleted,
		ProofType:  "tx_hash",
		ProofData:  "0xdeadbeef",
	})
	if err != nil {
		t.Fatalf("CompletePayout: %v", err)
	}
	if res.Payout.Amount != 100.00 {
		t.Errorf("amount = %v, want the approval stipend", res.Payout.Amount)
	}
	if res.Payout.Status != workflow.PayoutCompleted {
		t.Errorf("status = %q", res.Payout.Status)
	}
	if res.Payout.ProofType != "tx_hash" || res.Payout.ProofData != "0xdeadbeef" {
		t.Errorf("proof = %q/%q", res.Payout.ProofType, res.Payout.ProofData)
	}
	if res.Payout.ProcessedBy != "op-1" || res.Payout.ProcessedAt == 0 {
		t.Errorf("processing attribution = %q/%d", res.Payout.ProcessedBy, res.Payout.ProcessedAt)
	}

	// completed payouts stay completed under the default policy
	_, err = svc.CompletePayout(ctx, testOperator(), CompletePayoutInput{
		PayoutID:  res.Payout.ID,
		Status:    workflow.PayoutFailed,
	})
	assertErrKind(t, err, KindConflict, "payout_not_pending")

	stored, err := st.GetPayout(ctx, res.Payout.ID)
	if err != nil {
		t.Fatalf("GetPayout: %v", err)
	}
	if stored.Status != workflow.PayoutCompleted {
		t.Errorf("stored status = %q after rejected retransition", stored.Status)
	}
}

func TestCompletePayoutRetransitionPolicy(t *testing.T) {
	rules := workflow.DefaultRules()
	rules.AllowPayoutRetransition = true
	svc, _, _ := newTestService(t, rules)
	ctx := context.Background()
	approval := issueApproved(t, svc)

	first, err := svc.CompletePayout(ctx, testOperator(), CompletePayoutInput{
		ApprovalID: approval.Approval.ID,
		Status:     workflow.PayoutProcessing,
	})
	if err != nil {
		t.Fatalf("processing transition: %v", err)
	}

	second, err := svc.CompletePayout(ctx, testOperator(), CompletePayoutInput{
		PayoutID:  first.Payout.ID,
		Status:    workflow.PayoutCompleted,
		ProofType: "receipt",
		ProofData: "receipt-42",
	})
	if err != nil {
		t.Fatalf("completion after processing: %v", err)
	}
	if second.Payout.Status != workflow.PayoutCompleted {
		t.Errorf("status = %q", second.Payout.Status)
	}
}

func TestCompletePayoutValidation(t *testing.T) {
	svc, _, _ := newTestService(t, workflow.DefaultRules())
	ctx := context.Background()

	_, err := svc.CompletePayout(ctx, testOperator(), CompletePayoutInput{
		PayoutID: "p-1",
		Status:   workflow.PayoutCompleted,
	})
	assertErrKind(t, err, KindValidation, "proof_required")

	_, err = svc.CompletePayout(ctx, testOperator(), CompletePayoutInput{
		Status: workflow.PayoutCompleted,
	})
	assertErrKind(t, err, KindValidation, "invalid_input")

	_, err = svc.CompletePayout(ctx, testOperator(), CompletePayoutInput{
		PayoutID:  "p-1",
		Status:    workflow.PayoutCompleted,
		ProofType: "iou",
		ProofData: "trust me",
	})
	assertErrKind(t, err, KindValidation, "invalid_input")

	_, err = svc.CompletePayout(ctx, testOperator(), CompletePayoutInput{
		PayoutID: "p-1",
		Status:   workflow.PayoutPending,
	})
	assertErrKind(t, err, KindValidation, "invalid_input")
}

func TestCompletePayoutUnknownIDs(t *testing.T) {
	svc, _, _ := newTestService(t, workflow.DefaultRules())
	ctx := context.Background()

	_, err := svc.CompletePayout(ctx, testOperator(), CompletePayoutInput{
		PayoutID: "ghost",
		Status:   workflow.PayoutFailed,
	})
	assertErrKind(t, err, KindConflict, "unknown_payout")

	_, err = svc.CompletePayout(ctx, testOperator(), CompletePayoutInput{
		ApprovalID: "ghost",
		Status:     workflow.PayoutFailed,
	})
	assertErrKind(t, err, KindConflict, "unknown_approval")
}

func TestInviteLifecycle(t *testing.T) {
	svc, st, att := newTestService(t, workflow.DefaultRules())
	ctx := context.Background()

	created, err := svc.CreateInvite(ctx, testOperator(), CreateInviteInput{
		Name:  "Bea",
		Email: "b@x.com",
		Role:  "volunteer",
	})
	if err != nil {
		t.Fatalf("CreateInvite: %v", err)
	}
	if created.Invite.Token == "" || created.Invite.Status != workflow.InvitePending {
		t.Fatalf("invite = %+v", created.Invite)
	}

	submitted, err := svc.SubmitOnboarding(ctx, testOperator(), SubmitOnboardingInput{
		Token:         created.Invite.Token,
		Itinerary:     "NBO-MBA",
		StipendAmount: 50,
		FormData:      map[string]any{"dietary": "vegetarian"},
	})
	if err != nil {
		t.Fatalf("SubmitOnboarding: %v", err)
	}
	if submitted.Invite.Status != workflow.InviteSubmitted {
		t.Errorf("invite status = %q", submitted.Invite.Status)
	}
	if submitted.Participant.Email != "b@x.com" || submitted.Participant.Role != "volunteer" {
		t.Errorf("participant = %+v", submitted.Participant)
	}
	if submitted.Approval.Status != workflow.ApprovalPending {
		t.Errorf("approval status = %q, want pending", submitted.Approval.Status)
	}
	if submitted.Approval.QRToken == "" || submitted.Approval.QRToken == created.Invite.Token {
		t.Errorf("approval token = %q, want a fresh token", submitted.Approval.QRToken)
	}
	if submitted.Invite.ParticipantID != submitted.Participant.ID ||
		submitted.Invite.TravelApprovalID != submitted.Approval.ID {
		t.Errorf("invite links = %q/%q", submitted.Invite.ParticipantID, submitted.Invite.TravelApprovalID)
	}

	stored, err := st.GetInvite(ctx, created.Invite.ID)
	if err != nil {
		t.Fatalf("GetInvite: %v", err)
	}
	if stored.FormData["dietary"] != "vegetarian" {
		t.Errorf("form data = %+v", stored.FormData)
	}

	// the token is single-use
	_, err = svc.SubmitOnboarding(ctx, testOperator(), SubmitOnboardingInput{
		Token:     created.Invite.Token,
		Itinerary: "NBO-MBA",
	})
	assertErrKind(t, err, KindConflict, "invite_not_usable")

	kinds := make([]string, 0, len(att.calls))
	for _, c := range att.calls {
		kinds = append(kinds, c.kind)
	}
	if len(kinds) != 2 || kinds[0] != "invite" || kinds[1] != "onboarding" {
		t.Errorf("attest kinds = %v", kinds)
	}
}

func TestSubmitOnboardingClientProof(t *testing.T) {
	svc, st, _ := newTestService(t, workflow.DefaultRules())
	ctx := context.Background()

	created, err := svc.CreateInvite(ctx, testOperator(), CreateInviteInput{
		Name:  "Cal",
		Email: "c@x.com",
		Role:  "speaker",
	})
	if err != nil {
		t.Fatalf("CreateInvite: %v", err)
	}

	proof := &store.ClientProof{
		Hash:      "0xabc",
		Digest:    "deadbeef",
		Signer:    "0xwallet",
		Signature: "0xsig",
	}
	res, err := svc.SubmitOnboarding(ctx, testOperator(), SubmitOnboardingInput{
		Token:       created.Invite.Token,
		Itinerary:   "NBO-KIS",
		Attestation: proof,
	})
	if err != nil {
		t.Fatalf("SubmitOnboarding: %v", err)
	}
	if res.Invite.ClientProof == nil || res.Invite.ClientProof.Hash != "0xabc" {
		t.Errorf("client proof not recorded: %+v", res.Invite.ClientProof)
	}

	stored, err := st.GetInviteByToken(ctx, created.Invite.Token)
	if err != nil {
		t.Fatalf("GetInviteByToken: %v", err)
	}
	if stored.ClientProof == nil || stored.ClientProof.Signer != "0xwallet" {
		t.Errorf("stored proof = %+v", stored.ClientProof)
	}

	// a proof without a hash is rejected before any write
	_, err = svc.SubmitOnboarding(ctx, testOperator(), SubmitOnboardingInput{
		Token:       "whatever",
		Itinerary:   "NBO-KIS",
		Attestation: &store.ClientProof{Signer: "0xwallet"},
	})
	assertErrKind(t, err, KindValidation, "invalid_input")
}

func TestSubmitOnboardingUnknownToken(t *testing.T) {
	svc, _, _ := newTestService(t, workflow.DefaultRules())
	_, err := svc.SubmitOnboarding(context.Background(), testOperator(), SubmitOnboardingInput{
		Token:     "no-such-invite",
		Itinerary: "NBO-MBA",
	})
	assertErrKind(t, err, KindConflict, "unknown_invite")
}

func TestCreateInviteValidation(t *testing.T) {
	svc, _, _ := newTestService(t, workflow.DefaultRules())
	ctx := context.Background()

	cases := []CreateInviteInput{
		{Email: "b@x.com", Role: "volunteer"},
		{Name: "Bea", Email: "nope", Role: "volunteer"},
		{Name: "Bea", Email: "b@x.com"},
	}
	for _, in := range cases {
		_, err := svc.CreateInvite(ctx, testOperator(), in)
		assertErrKind(t, err, KindValidation, "invalid_input")
	}
}

func TestHealth(t *testing.T) {
	svc, _, _ := newTestService(t, workflow.DefaultRules())
	h := svc.Health(context.Background())
	if h.Status != "ok" || h.Service != "opshub" {
		t.Errorf("health = %+v", h)
	}
	if h.StoreDriver != "memory" {
		t.Errorf("store driver = %q", h.StoreDriver)
	}
	if !h.AttestationEnabled {
		t.Error("attestation reported disabled")
	}
}

func TestErrorClassification(t *testing.T) {
	plain := errors.New("boom")
	if KindOf(plain) != KindInternal || CodeOf(plain) != "internal_error" {
		t.Errorf("unclassified error mapped to %s/%s", KindOf(plain), CodeOf(plain))
	}
	wrapped := Internalf("store_failure", plain, "write failed")
	if !errors.Is(wrapped, plain) {
		t.Error("Internalf does not wrap the cause")
	}
}
