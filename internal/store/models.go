package store

// Participant is an identity record, keyed by email for idempotent lookup.
// Participants are never deleted.
type Participant struct {
	ID        string `json:"id" gorm:"primaryKey"`
	Name      string `json:"name"`
	Email     string `json:"email" gorm:"uniqueIndex"`
	Role      string `json:"role"`
	PhotoURL  string `json:"photo_url,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

// TravelApproval is one itinerary plus stipend request for a participant.
// The check-in token is generated at creation and never changes.
type TravelApproval struct {
	ID            string  `json:"id" gorm:"primaryKey"`
	ParticipantID string  `json:"participant_id" gorm:"index"`
	Itinerary     string  `json:"itinerary"`
	StipendAmount float64 `json:"stipend_amount"`
	SponsorNotes  string  `json:"sponsor_notes,omitempty"`
	Status        string  `json:"status"` // pending, approved, rejected
	QRToken       string  `json:"qr_token" gorm:"uniqueIndex"`
	AnchorHash    string  `json:"anchor_hash,omitempty"`
	ApprovedBy    string  `json:"approved_by,omitempty"`
	ApprovedAt    int64   `json:"approved_at,omitempty"` // set only on entering approved
	CreatedAt     int64   `json:"created_at"`
}

// CheckIn is an append-only record tied to one approved TravelApproval.
// Only the anchor hash is ever attached after creation.
type CheckIn struct {
	ID               string `json:"id" gorm:"primaryKey"`
	TravelApprovalID string `json:"travel_approval_id" gorm:"index"`
	Location         string `json:"location"`
	Timestamp        int64  `json:"timestamp"`
	ScannedBy        string `json:"scanned_by,omitempty"`
	AnchorHash       string `json:"anchor_hash,omitempty"`
	CreatedAt        int64  `json:"created_at"`
}

// Payout tracks a stipend disbursement for a TravelApproval.
type Payout struct {
	ID               string  `json:"id" gorm:"primaryKey"`
	TravelApprovalID string  `json:"travel_approval_id" gorm:"index"`
	Amount           float64 `json:"amount"`
	Status           string  `json:"status"`               // pending, processing, completed, failed
	ProofType        string  `json:"proof_type,omitempty"` // receipt, tx_hash, bank_transfer
	ProofData        string  `json:"proof_data,omitempty"`
	AnchorHash       string  `json:"anchor_hash,omitempty"`
	ProcessedBy      string  `json:"processed_by,omitempty"`
	ProcessedAt      int64   `json:"processed_at,omitempty"` // set only on entering completed
	CreatedAt        int64   `json:"created_at"`
}

// ClientProof is an attestation computed on the submitter's device,
// recorded verbatim next to the server-side anchor. It is never verified
// here.
type ClientProof struct {
	Hash      string `json:"hash"`
	Digest    string `json:"digest,omitempty"`
	Signer    string `json:"signer,omitempty"`
	Signature string `json:"signature,omitempty"`
}

// OnboardingInvite is a single-use credential for self-service onboarding.
// Submission links the invite to the Participant and TravelApproval it
// created.
type OnboardingInvite struct {
	ID               string         `json:"id" gorm:"primaryKey"`
	Name             string         `json:"name"`
	Email            string         `json:"email"`
	Role             string         `json:"role"`
	Token            string         `json:"token" gorm:"uniqueIndex"`
	Status           string         `json:"status"` // pending, submitted, approved, cancelled
	FormData         map[string]any `json:"form_data,omitempty" gorm:"serializer:json"`
	ClientProof      *ClientProof   `json:"client_proof,omitempty" gorm:"serializer:json"`
	ParticipantID    string         `json:"participant_id,omitempty"`
	TravelApprovalID string         `json:"travel_approval_id,omitempty"`
	AnchorHash       string         `json:"anchor_hash,omitempty"`
	CreatedAt        int64          `json:"created_at"`
	UpdatedAt        int64          `json:"updated_at"`
}

// ActivityLog is the append-only audit trail. Every mutation writes
// exactly one row after the primary write succeeds.
type ActivityLog struct {
	ID            string         `json:"id" gorm:"primaryKey"`
	EventType     string         `json:"event_type" gorm:"index"` // approval, check_in, payout, invite, onboarding
	ParticipantID string         `json:"participant_id,omitempty" gorm:"index"`
	Description   string         `json:"description"`
	Metadata      map[string]any `json:"metadata,omitempty" gorm:"serializer:json"`
	AquaVerified  bool           `json:"aqua_verified"`
	CreatedAt     int64          `json:"created_at"`
}
