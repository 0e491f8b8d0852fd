// Package identity verifies bearer tokens issued by the external identity
// provider and resolves them to operators. Operator identity is used for
// audit attribution only.
package identity

import (
	"context"
	"errors"
)

// ErrUnauthorized is returned for every verification failure. Callers
// must not distinguish failure modes to the client.
var ErrUnauthorized = errors.New("unauthorized")

// Operator is the authenticated actor behind a mutation.
type Operator struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// Verifier checks a bearer token and resolves the operator behind it.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Operator, error)
}
