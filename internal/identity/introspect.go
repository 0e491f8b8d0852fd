package identity

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/ethsafari/opshub-go/internal/httpclient"
	"github.com/ethsafari/opshub-go/internal/logutil"
)

// IntrospectionVerifier verifies tokens by posting them to the identity
// provider's verification endpoint.
type IntrospectionVerifier struct {
	http         *httpclient.Client
	endpoint     string
	serviceToken string
	logger       *slog.Logger
}

// NewIntrospectionVerifier creates a verifier calling the given endpoint.
// The service token authenticates this service to the provider.
func NewIntrospectionVerifier(hc *httpclient.Client, endpoint, serviceToken string, logger *slog.Logger) *IntrospectionVerifier {
	return &IntrospectionVerifier{
		http:         hc,
		endpoint:     endpoint,
		serviceToken: serviceToken,
		logger:       logutil.NoopIfNil(logger),
	}
}

type introspectionResponse struct {
	Active bool   `json:"active"`
	Sub    string `json:"sub"`
	Email  string `json:"email"`
}

// Verify posts the token to the provider. Every failure mode collapses to
// ErrUnauthorized; details are only logged.
func (v *IntrospectionVerifier) Verify(ctx context.Context, token string) (*Operator, error) {
	reqBody, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return nil, ErrUnauthorized
	}

	body, resp, err := v.http.PostJSON(ctx, v.endpoint, reqBody, v.serviceToken)
	if err != nil {
		v.logger.Warn("token introspection request failed", "error", err)
		return nil, ErrUnauthorized
	}
	if resp.StatusCode != 200 {
		v.logger.Warn("token introspection rejected", "status", resp.StatusCode)
		return nil, ErrUnauthorized
	}

	var result introspectionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		v.logger.Warn("token introspection response malformed", "error", err)
		return nil, ErrUnauthorized
	}

	if !result.Active || result.Sub == "" {
		return nil, ErrUnauthorized
	}

	return &Operator{ID: result.Sub, Email: result.Email}, nil
}

var _ Verifier = (*IntrospectionVerifier)(nil)
