// Package digest computes content digests over canonical JSON documents.
//
// Canonicalization follows RFC 8785 (JSON Canonicalization Scheme), so two
// logically equal payloads always serialize to the same byte string no
// matter how their keys were ordered at construction time.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// Canonical returns the RFC 8785 canonical JSON encoding of v.
func Canonical(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("digest: marshal failed: %w", err)
	}

	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("digest: canonicalization failed: %w", err)
	}

	return canonical, nil
}

// Sum returns the lowercase hex SHA-256 digest of the canonical encoding of v.
func Sum(v any) (string, error) {
	canonical, err := Canonical(v)
	if err != nil {
		return "", err
	}
	return SumBytes(canonical), nil
}

// SumBytes returns the lowercase hex SHA-256 digest of raw bytes.
func SumBytes(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
