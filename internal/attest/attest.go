// Package attest builds signed attestation documents over canonical JSON
// payloads and submits them best-effort to an anchoring provider. A failed
// or disabled attestation never produces an error, only a nil result.
package attest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ethsafari/opshub-go/internal/digest"
	"github.com/ethsafari/opshub-go/internal/logutil"
)

// AnchorClient submits a named document to an anchoring provider and
// returns the anchor hash.
type AnchorClient interface {
	Anchor(ctx context.Context, fileName string, content []byte, path string) (string, error)
}

// Signer adds an identity signature over the attestation message.
type Signer interface {
	// Sign returns the hex-encoded signature over the message.
	Sign(message []byte) (string, error)

	// Address identifies the signer.
	Address() string
}

// Result carries the proof of a successful attestation.
type Result struct {
	Hash      string `json:"hash"`
	Digest    string `json:"digest"`
	Signature string `json:"signature,omitempty"`
	Signer    string `json:"signer,omitempty"`
}

// Service submits attestations for state-changing operations.
type Service struct {
	client  AnchorClient
	signer  Signer
	enabled bool
	timeout time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// NewService creates an attestation service. A nil client or disabled
// service makes every Attest call return nil without contacting the
// provider. A nil signer produces unsigned documents.
func NewService(client AnchorClient, signer Signer, enabled bool, timeout time.Duration, logger *slog.Logger) *Service {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Service{
		client:  client,
		signer:  signer,
		enabled: enabled && client != nil,
		timeout: timeout,
		now:     time.Now,
		logger:  logutil.NoopIfNil(logger),
	}
}

// Enabled reports whether attestations are being submitted.
func (s *Service) Enabled() bool {
	return s.enabled
}

// Attest builds the attestation document for the payload and submits it.
// Returns nil when attestation is disabled or anything fails; callers
// treat a nil result as "not anchored" and proceed.
func (s *Service) Attest(ctx context.Context, kind string, payload map[string]any) *Result {
	if !s.enabled {
		return nil
	}

	dig, err := digest.Sum(payload)
	if err != nil {
		s.logger.Warn("attestation digest failed", "kind", kind, "error", err)
		return nil
	}

	timestamp := s.now().UTC().Format(time.RFC3339)

	var signature, signer any
	if s.signer != nil {
		message := fmt.Sprintf("ETH Safari Ops Hub Attestation\nKind: %s\nDigest: %s\nTimestamp: %s",
			kind, dig, timestamp)
		sig, err := s.signer.Sign([]byte(message))
		if err != nil {
			s.logger.Warn("attestation signing failed", "kind", kind, "error", err)
			return nil
		}
		signature = sig
		signer = s.signer.Address()
	}

	document := map[string]any{
		"kind":      kind,
		"payload":   payload,
		"digest":    dig,
		"signature": signature,
		"signer":    signer,
		"timestamp": timestamp,
	}

	content, err := json.Marshal(document)
	if err != nil {
		s.logger.Warn("attestation document encode failed", "kind", kind, "error", err)
		return nil
	}

	fileName := fmt.Sprintf("%s-%s.json", kind, uuid.NewString())
	path := "/attestations/" + kind

	anchorCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	hash, err := s.client.Anchor(anchorCtx, fileName, content, path)
	if err != nil {
		s.logger.Warn("attestation anchoring failed", "kind", kind, "error", err)
		return nil
	}

	result := &Result{Hash: hash, Digest: dig}
	if signature != nil {
		result.Signature = signature.(string)
		result.Signer = signer.(string)
	}
	return result
}
