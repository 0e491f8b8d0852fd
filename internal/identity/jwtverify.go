package identity

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// JWTVerifier verifies tokens locally against the identity provider's
// published public key. Supports Ed25519 (EdDSA) and ECDSA keys.
type JWTVerifier struct {
	key     any
	methods []string
}

// NewJWTVerifier parses the PEM-encoded public key and builds a verifier
// restricted to the signing methods the key supports.
func NewJWTVerifier(publicKeyPEM string) (*JWTVerifier, error) {
	block, _ := pem.Decode([]byte(publicKeyPEM))
	if block == nil {
		return nil, errors.New("no PEM block found in verification key")
	}

	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse verification key: %w", err)
	}

	var methods []string
	switch key.(type) {
	case ed25519.PublicKey:
		methods = []string{"EdDSA"}
	case *ecdsa.PublicKey:
		methods = []string{"ES256", "ES384", "ES512"}
	default:
		return nil, fmt.Errorf("unsupported verification key type %T", key)
	}

	return &JWTVerifier{key: key, methods: methods}, nil
}

// Verify parses and validates the token. The subject claim is the
// operator id. Every failure mode collapses to ErrUnauthorized.
func (v *JWTVerifier) Verify(ctx context.Context, token string) (*Operator, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods(v.methods),
		jwt.WithExpirationRequired(),
	)

	claims := jwt.MapClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return v.key, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrUnauthorized
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, ErrUnauthorized
	}

	email, _ := claims["email"].(string)
	return &Operator{ID: sub, Email: email}, nil
}

var _ Verifier = (*JWTVerifier)(nil)
