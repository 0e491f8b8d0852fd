// Package memory implements an in-memory persistence driver for
// development and tests. Data does not survive a restart.
package memory

import (
	"context"
	"sync"

	"github.com/ethsafari/opshub-go/internal/store"
)

func init() {
	store.Register("memory", NewDriver)
}

// Driver implements the store.Store interface with in-memory maps.
type Driver struct {
	mu     sync.RWMutex
	closed bool

	participants map[string]*store.Participant
	approvals    map[string]*store.TravelApproval
	checkIns     map[string]*store.CheckIn
	payouts      map[string]*store.Payout
	invites      map[string]*store.OnboardingInvite
	activity     []*store.ActivityLog

	// insertion order for deterministic listings
	participantOrder []string
	approvalOrder    []string
	checkInOrder     []string
	payoutOrder      []string
	inviteOrder      []string
}

// NewDriver creates a new in-memory driver instance.
func NewDriver(cfg *store.DriverConfig) (store.Store, error) {
	return &Driver{
		participants: make(map[string]*store.Participant),
		approvals:    make(map[string]*store.TravelApproval),
		checkIns:     make(map[string]*store.CheckIn),
		payouts:      make(map[string]*store.Payout),
		invites:      make(map[string]*store.OnboardingInvite),
	}, nil
}

// Name returns the driver name.
func (d *Driver) Name() string {
	return "memory"
}

// Init is a no-op for the memory driver.
func (d *Driver) Init(ctx context.Context) error {
	return nil
}

// Close marks the store closed.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *Driver) checkClosed() error {
	if d.closed {
		return store.ErrClosed
	}
	return nil
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyParticipant(p *store.Participant) *store.Participant {
	cp := *p
	return &cp
}

func copyApproval(a *store.TravelApproval) *store.TravelApproval {
	cp := *a
	return &cp
}

func copyCheckIn(c *store.CheckIn) *store.CheckIn {
	cp := *c
	return &cp
}

func copyPayout(p *store.Payout) *store.Payout {
	cp := *p
	return &cp
}

func copyInvite(inv *store.OnboardingInvite) *store.OnboardingInvite {
	cp := *inv
	cp.FormData = copyMap(inv.FormData)
	return &cp
}

func copyActivity(entry *store.ActivityLog) *store.ActivityLog {
	cp := *entry
	cp.Metadata = copyMap(entry.Metadata)
	return &cp
}

// ParticipantStore implementation

func (d *Driver) CreateParticipant(ctx context.Context, p *store.Participant) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkClosed(); err != nil {
		return err
	}
	if _, ok := d.participants[p.ID]; ok {
		return store.ErrAlreadyExists
	}
	for _, existing := range d.participants {
		if existing.Email == p.Email {
			return store.ErrAlreadyExists
		}
	}
	d.participants[p.ID] = copyParticipant(p)
	d.participantOrder = append(d.participantOrder, p.ID)
	return nil
}

func (d *Driver) GetParticipant(ctx context.Context, id string) (*store.Participant, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.checkClosed(); err != nil {
		return nil, err
	}
	p, ok := d.participants[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyParticipant(p), nil
}

func (d *Driver) GetParticipantByEmail(ctx context.Context, email string) (*store.Participant, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.checkClosed(); err != nil {
		return nil, err
	}
	for _, p := range d.participants {
		if p.Email == email {
			return copyParticipant(p), nil
		}
	}
	return nil, store.ErrNotFound
}

func (d *Driver) ListParticipants(ctx context.Context) ([]*store.Participant, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.checkClosed(); err != nil {
		return nil, err
	}
	out := make([]*store.Participant, 0, len(d.participantOrder))
	for _, id := range d.participantOrder {
		out = append(out, copyParticipant(d.participants[id]))
	}
	return out, nil
}

// ApprovalStore implementation

func (d *Driver) CreateApproval(ctx context.Context, a *store.TravelApproval) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkClosed(); err != nil {
		return err
	}
	if _, ok := d.approvals[a.ID]; ok {
		return store.ErrAlreadyExists
	}
	for _, existing := range d.approvals {
		if existing.QRToken == a.QRToken {
			return store.ErrAlreadyExists
		}
	}
	d.approvals[a.ID] = copyApproval(a)
	d.approvalOrder = append(d.approvalOrder, a.ID)
	return nil
}

func (d *Driver) GetApproval(ctx context.Context, id string) (*store.TravelApproval, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.checkClosed(); err != nil {
		return nil, err
	}
	a, ok := d.approvals[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyApproval(a), nil
}

func (d *Driver) GetApprovalByToken(ctx context.Context, token string) (*store.TravelApproval, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.checkClosed(); err != nil {
		return nil, err
	}
	for _, a := range d.approvals {
		if a.QRToken == token {
			return copyApproval(a), nil
		}
	}
	return nil, store.ErrNotFound
}

func (d *Driver) UpdateApproval(ctx context.Context, a *store.TravelApproval) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkClosed(); err != nil {
		return err
	}
	if _, ok := d.approvals[a.ID]; !ok {
		return store.ErrNotFound
	}
	d.approvals[a.ID] = copyApproval(a)
	return nil
}

func (d *Driver) ListApprovalsByParticipant(ctx context.Context, participantID string) ([]*store.TravelApproval, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.checkClosed(); err != nil {
		return nil, err
	}
	var out []*store.TravelApproval
	for _, id := range d.approvalOrder {
		if a := d.approvals[id]; a.ParticipantID == participantID {
			out = append(out, copyApproval(a))
		}
	}
	return out, nil
}

// CheckInStore implementation

func (d *Driver) CreateCheckIn(ctx context.Context, c *store.CheckIn) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkClosed(); err != nil {
		return err
	}
	if _, ok := d.checkIns[c.ID]; ok {
		return store.ErrAlreadyExists
	}
	d.checkIns[c.ID] = copyCheckIn(c)
	d.checkInOrder = append(d.checkInOrder, c.ID)
	return nil
}

func (d *Driver) GetCheckIn(ctx context.Context, id string) (*store.CheckIn, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.checkClosed(); err != nil {
		return nil, err
	}
	c, ok := d.checkIns[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyCheckIn(c), nil
}

func (d *Driver) UpdateCheckIn(ctx context.Context, c *store.CheckIn) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkClosed(); err != nil {
		return err
	}
	if _, ok := d.checkIns[c.ID]; !ok {
		return store.ErrNotFound
	}
	d.checkIns[c.ID] = copyCheckIn(c)
	return nil
}

func (d *Driver) ListCheckInsByApproval(ctx context.Context, approvalID string) ([]*store.CheckIn, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.checkClosed(); err != nil {
		return nil, err
	}
	var out []*store.CheckIn
	for _, id := range d.checkInOrder {
		if c := d.checkIns[id]; c.TravelApprovalID == approvalID {
			out = append(out, copyCheckIn(c))
		}
	}
	return out, nil
}

// PayoutStore implementation

func (d *Driver) CreatePayout(ctx context.Context, p *store.Payout) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkClosed(); err != nil {
		return err
	}
	if _, ok := d.payouts[p.ID]; ok {
		return store.ErrAlreadyExists
	}
	d.payouts[p.ID] = copyPayout(p)
	d.payoutOrder = append(d.payoutOrder, p.ID)
	return nil
}

func (d *Driver) GetPayout(ctx context.Context, id string) (*store.Payout, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.checkClosed(); err != nil {
		return nil, err
	}
	p, ok := d.payouts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyPayout(p), nil
}

func (d *Driver) UpdatePayout(ctx context.Context, p *store.Payout) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkClosed(); err != nil {
		return err
	}
	if _, ok := d.payouts[p.ID]; !ok {
		return store.ErrNotFound
	}
	d.payouts[p.ID] = copyPayout(p)
	return nil
}

func (d *Driver) ListPayoutsByApproval(ctx context.Context, approvalID string) ([]*store.Payout, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.checkClosed(); err != nil {
		return nil, err
	}
	var out []*store.Payout
	for _, id := range d.payoutOrder {
		if p := d.payouts[id]; p.TravelApprovalID == approvalID {
			out = append(out, copyPayout(p))
		}
	}
	return out, nil
}

// InviteStore implementation

func (d *Driver) CreateInvite(ctx context.Context, inv *store.OnboardingInvite) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkClosed(); err != nil {
		return err
	}
	if _, ok := d.invites[inv.ID]; ok {
		return store.ErrAlreadyExists
	}
	for _, existing := range d.invites {
		if existing.Token == inv.Token {
			return store.ErrAlreadyExists
		}
	}
	d.invites[inv.ID] = copyInvite(inv)
	d.inviteOrder = append(d.inviteOrder, inv.ID)
	return nil
}

func (d *Driver) GetInvite(ctx context.Context, id string) (*store.OnboardingInvite, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.checkClosed(); err != nil {
		return nil, err
	}
	inv, ok := d.invites[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyInvite(inv), nil
}

func (d *Driver) GetInviteByToken(ctx context.Context, token string) (*store.OnboardingInvite, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.checkClosed(); err != nil {
		return nil, err
	}
	for _, inv := range d.invites {
		if inv.Token == token {
			return copyInvite(inv), nil
		}
	}
	return nil, store.ErrNotFound
}

func (d *Driver) UpdateInvite(ctx context.Context, inv *store.OnboardingInvite) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkClosed(); err != nil {
		return err
	}
	if _, ok := d.invites[inv.ID]; !ok {
		return store.ErrNotFound
	}
	d.invites[inv.ID] = copyInvite(inv)
	return nil
}

func (d *Driver) ListInvites(ctx context.Context) ([]*store.OnboardingInvite, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.checkClosed(); err != nil {
		return nil, err
	}
	out := make([]*store.OnboardingInvite, 0, len(d.inviteOrder))
	for _, id := range d.inviteOrder {
		out = append(out, copyInvite(d.invites[id]))
	}
	return out, nil
}

// ActivityStore implementation

func (d *Driver) AppendActivity(ctx context.Context, entry *store.ActivityLog) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkClosed(); err != nil {
		return err
	}
	d.activity = append(d.activity, copyActivity(entry))
	return nil
}

func (d *Driver) ListActivity(ctx context.Context, limit int) ([]*store.ActivityLog, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.checkClosed(); err != nil {
		return nil, err
	}
	// newest first
	out := make([]*store.ActivityLog, 0, len(d.activity))
	for i := len(d.activity) - 1; i >= 0; i-- {
		out = append(out, copyActivity(d.activity[i]))
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Compile-time interface check
var _ store.Store = (*Driver)(nil)
