package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/ethsafari/opshub-go/internal/cache"
	"github.com/ethsafari/opshub-go/internal/logutil"
)

// Gate authenticates bearer tokens, caching successful verifications to
// bound round trips to the identity provider. Cache keys are derived from
// a token digest so raw tokens never land in the cache.
type Gate struct {
	verifier Verifier
	cache    cache.Cache
	ttl      time.Duration
	logger   *slog.Logger
}

// NewGate creates an authentication gate. A nil cache disables caching.
func NewGate(verifier Verifier, c cache.Cache, ttl time.Duration, logger *slog.Logger) *Gate {
	if ttl <= 0 {
		ttl = cache.TTLIdentity
	}
	return &Gate{
		verifier: verifier,
		cache:    c,
		ttl:      ttl,
		logger:   logutil.NoopIfNil(logger),
	}
}

func cacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "identity:" + hex.EncodeToString(sum[:])
}

// Authenticate resolves the bearer token to an operator.
func (g *Gate) Authenticate(ctx context.Context, token string) (*Operator, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}

	key := cacheKey(token)
	if g.cache != nil {
		if data, err := g.cache.Get(ctx, key); err == nil {
			var op Operator
			if err := json.Unmarshal(data, &op); err == nil && op.ID != "" {
				return &op, nil
			}
		}
	}

	op, err := g.verifier.Verify(ctx, token)
	if err != nil {
		return nil, ErrUnauthorized
	}

	if g.cache != nil {
		if data, err := json.Marshal(op); err == nil {
			if err := g.cache.Set(ctx, key, data, g.ttl); err != nil {
				g.logger.Warn("failed to cache verified token", "error", err)
			}
		}
	}

	return op, nil
}
