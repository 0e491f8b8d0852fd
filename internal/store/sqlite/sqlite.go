// Package sqlite implements a SQLite-based persistence driver using GORM.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ethsafari/opshub-go/internal/store"
)

func init() {
	store.Register("sqlite", NewDriver)
}

// Driver implements the store.Store interface using SQLite via GORM.
type Driver struct {
	dataDir string
	db      *gorm.DB
}

// NewDriver creates a new SQLite driver instance.
func NewDriver(cfg *store.DriverConfig) (store.Store, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data_dir is required for sqlite driver")
	}

	return &Driver{
		dataDir: cfg.DataDir,
	}, nil
}

// Name returns the driver name.
func (d *Driver) Name() string {
	return "sqlite"
}

// Init initializes the SQLite database and runs AutoMigrate.
func (d *Driver) Init(ctx context.Context) error {
	dbPath := filepath.Join(d.dataDir, "opshub.db")

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	d.db = db

	// AutoMigrate creates/updates tables based on model structs
	if err := db.AutoMigrate(
		&store.Participant{},
		&store.TravelApproval{},
		&store.CheckIn{},
		&store.Payout{},
		&store.OnboardingInvite{},
		&store.ActivityLog{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (d *Driver) Close() error {
	if d.db == nil {
		return nil
	}
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// translate maps GORM errors to store sentinel errors.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return store.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return store.ErrAlreadyExists
	default:
		return err
	}
}

// ParticipantStore implementation

func (d *Driver) CreateParticipant(ctx context.Context, p *store.Participant) error {
	return translate(d.db.WithContext(ctx).Create(p).Error)
}

func (d *Driver) GetParticipant(ctx context.Context, id string) (*store.Participant, error) {
	var p store.Participant
	if err := d.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (d *Driver) GetParticipantByEmail(ctx context.Context, email string) (*store.Participant, error) {
	var p store.Participant
	if err := d.db.WithContext(ctx).First(&p, "email = ?", email).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (d *Driver) ListParticipants(ctx context.Context) ([]*store.Participant, error) {
	var out []*store.Participant
	if err := d.db.WithContext(ctx).Order("created_at").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ApprovalStore implementation

func (d *Driver) CreateApproval(ctx context.Context, a *store.TravelApproval) error {
	return translate(d.db.WithContext(ctx).Create(a).Error)
}

func (d *Driver) GetApproval(ctx context.Context, id string) (*store.TravelApproval, error) {
	var a store.TravelApproval
	if err := d.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (d *Driver) GetApprovalByToken(ctx context.Context, token string) (*store.TravelApproval, error) {
	var a store.TravelApproval
	if err := d.db.WithContext(ctx).First(&a, "qr_token = ?", token).Error; err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (d *Driver) UpdateApproval(ctx context.Context, a *store.TravelApproval) error {
	return translate(d.db.WithContext(ctx).Save(a).Error)
}

func (d *Driver) ListApprovalsByParticipant(ctx context.Context, participantID string) ([]*store.TravelApproval, error) {
	var out []*store.TravelApproval
	if err := d.db.WithContext(ctx).Where("participant_id = ?", participantID).Order("created_at").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// CheckInStore implementation

func (d *Driver) CreateCheckIn(ctx context.Context, c *store.CheckIn) error {
	return translate(d.db.WithContext(ctx).Create(c).Error)
}

func (d *Driver) GetCheckIn(ctx context.Context, id string) (*store.CheckIn, error) {
	var c store.CheckIn
	if err := d.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (d *Driver) UpdateCheckIn(ctx context.Context, c *store.CheckIn) error {
	return translate(d.db.WithContext(ctx).Save(c).Error)
}

func (d *Driver) ListCheckInsByApproval(ctx context.Context, approvalID string) ([]*store.CheckIn, error) {
	var out []*store.CheckIn
	if err := d.db.WithContext(ctx).Where("travel_approval_id = ?", approvalID).Order("created_at").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// PayoutStore implementation

func (d *Driver) CreatePayout(ctx context.Context, p *store.Payout) error {
	return translate(d.db.WithContext(ctx).Create(p).Error)
}

func (d *Driver) GetPayout(ctx context.Context, id string) (*store.Payout, error) {
	var p store.Payout
	if err := d.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (d *Driver) UpdatePayout(ctx context.Context, p *store.Payout) error {
	return translate(d.db.WithContext(ctx).Save(p).Error)
}

func (d *Driver) ListPayoutsByApproval(ctx context.Context, approvalID string) ([]*store.Payout, error) {
	var out []*store.Payout
	if err := d.db.WithContext(ctx).Where("travel_approval_id = ?", approvalID).Order("created_at").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// InviteStore implementation

func (d *Driver) CreateInvite(ctx context.Context, inv *store.OnboardingInvite) error {
	return translate(d.db.WithContext(ctx).Create(inv).Error)
}

func (d *Driver) GetInvite(ctx context.Context, id string) (*store.OnboardingInvite, error) {
	var inv store.OnboardingInvite
	if err := d.db.WithContext(ctx).First(&inv, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &inv, nil
}

func (d *Driver) GetInviteByToken(ctx context.Context, token string) (*store.OnboardingInvite, error) {
	var inv store.OnboardingInvite
	if err := d.db.WithContext(ctx).First(&inv, "token = ?", token).Error; err != nil {
		return nil, translate(err)
	}
	return &inv, nil
}

func (d *Driver) UpdateInvite(ctx context.Context, inv *store.OnboardingInvite) error {
	return translate(d.db.WithContext(ctx).Save(inv).Error)
}

func (d *Driver) ListInvites(ctx context.Context) ([]*store.OnboardingInvite, error) {
	var out []*store.OnboardingInvite
	if err := d.db.WithContext(ctx).Order("created_at").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ActivityStore implementation

func (d *Driver) AppendActivity(ctx context.Context, entry *store.ActivityLog) error {
	return translate(d.db.WithContext(ctx).Create(entry).Error)
}

func (d *Driver) ListActivity(ctx context.Context, limit int) ([]*store.ActivityLog, error) {
	var out []*store.ActivityLog
	query := d.db.WithContext(ctx).Order("created_at desc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Compile-time interface check
var _ store.Store = (*Driver)(nil)
