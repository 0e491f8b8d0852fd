// Package qr encodes and decodes the JSON payload embedded in check-in QR
// artifacts. Rendering the payload as an image is the caller's concern.
package qr

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// PayloadType tags every check-in QR payload.
const PayloadType = "travel_approval"

var (
	ErrWrongType  = errors.New("qr: unexpected payload type")
	ErrEmptyToken = errors.New("qr: payload has no token")
)

// Payload is the document embedded in a check-in QR code. The token is the
// capability credential that authorizes a check-in against one approval.
type Payload struct {
	Type       string `json:"type"`
	ApprovalID string `json:"approval_id,omitempty"`
	Token      string `json:"token"`
	Timestamp  string `json:"timestamp"`
}

// NewPayload builds a payload for the given approval and token.
func NewPayload(approvalID, token string) Payload {
	return Payload{
		Type:       PayloadType,
		ApprovalID: approvalID,
		Token:      token,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
}

// Encode serializes the payload to its JSON wire form.
func (p Payload) Encode() ([]byte, error) {
	return json.Marshal(p)
}

// Decode parses a scanned QR payload, rejecting documents of the wrong type
// or with a missing token.
func Decode(data []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("qr: invalid payload: %w", err)
	}
	if p.Type != PayloadType {
		return nil, fmt.Errorf("%w: %q", ErrWrongType, p.Type)
	}
	if p.Token == "" {
		return nil, ErrEmptyToken
	}
	return &p, nil
}
