package identity_test

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	cachememory "github.com/ethsafari/opshub-go/internal/cache/memory"
	"github.com/ethsafari/opshub-go/internal/config"
	"github.com/ethsafari/opshub-go/internal/httpclient"
	"github.com/ethsafari/opshub-go/internal/identity"
)

func newHTTPClient() *httpclient.Client {
	return httpclient.New(&config.OutboundHTTPConfig{
		SSRFMode:         "off",
		TimeoutMS:        5000,
		ConnectTimeoutMS: 1000,
		MaxRedirects:     1,
		MaxResponseBytes: 1 << 20,
	})
}

func TestIntrospection_Success(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"active":true,"sub":"op-1","email":"ops@example.com"}`))
	}))
	defer srv.Close()

	v := identity.NewIntrospectionVerifier(newHTTPClient(), srv.URL, "svc-token", nil)
	op, err := v.Verify(context.Background(), "bearer-token")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if op.ID != "op-1" || op.Email != "ops@example.com" {
		t.Errorf("operator = %+v", op)
	}
	if gotAuth != "Bearer svc-token" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestIntrospection_UniformFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"inactive", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"active":false}`))
		}},
		{"empty subject", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"active":true,"sub":""}`))
		}},
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"unauthorized", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}},
		{"malformed body", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`not json`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			v := identity.NewIntrospectionVerifier(newHTTPClient(), srv.URL, "svc", nil)
			_, err := v.Verify(context.Background(), "token")
			if !errors.Is(err, identity.ErrUnauthorized) {
				t.Errorf("expected ErrUnauthorized, got %v", err)
			}
		})
	}
}

func TestIntrospection_ProviderUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // immediately unreachable

	v := identity.NewIntrospectionVerifier(newHTTPClient(), srv.URL, "svc", nil)
	_, err := v.Verify(context.Background(), "token")
	if !errors.Is(err, identity.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func ed25519KeyPair(t *testing.T) (ed25519.PrivateKey, string) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	pkix, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		t.Fatalf("MarshalPKIXPublicKey failed: %v", err)
	}
	pemData := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pkix})
	return priv, string(pemData)
}

func signToken(t *testing.T, priv ed25519.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	signed, err := token.SignedString(priv)
	if err != nil {
		t.Fatalf("SignedString failed: %v", err)
	}
	return signed
}

func TestJWT_Success(t *testing.T) {
	priv, pubPEM := ed25519KeyPair(t)
	v, err := identity.NewJWTVerifier(pubPEM)
	if err != nil {
		t.Fatalf("NewJWTVerifier failed: %v", err)
	}

	token := signToken(t, priv, jwt.MapClaims{
		"sub":   "op-7",
		"email": "ops@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	op, err := v.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if op.ID != "op-7" || op.Email != "ops@example.com" {
		t.Errorf("operator = %+v", op)
	}
}

func TestJWT_Failures(t *testing.T) {
	priv, pubPEM := ed25519KeyPair(t)
	otherPriv, _ := ed25519KeyPair(t)

	v, err := identity.NewJWTVerifier(pubPEM)
	if err != nil {
		t.Fatalf("NewJWTVerifier failed: %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"expired", signToken(t, priv, jwt.MapClaims{
			"sub": "op-7",
			"exp": time.Now().Add(-time.Hour).Unix(),
		})},
		{"missing expiry", signToken(t, priv, jwt.MapClaims{
			"sub": "op-7",
		})},
		{"missing subject", signToken(t, priv, jwt.MapClaims{
			"exp": time.Now().Add(time.Hour).Unix(),
		})},
		{"wrong key", signToken(t, otherPriv, jwt.MapClaims{
			"sub": "op-7",
			"exp": time.Now().Add(time.Hour).Unix(),
		})},
		{"garbage", "not-a-token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := v.Verify(context.Background(), tt.token); !errors.Is(err, identity.ErrUnauthorized) {
				t.Errorf("expected ErrUnauthorized, got %v", err)
			}
		})
	}
}

func TestJWT_BadKey(t *testing.T) {
	if _, err := identity.NewJWTVerifier("not a pem"); err == nil {
		t.Error("expected error for invalid key material")
	}
}

type countingVerifier struct {
	calls int
	op    *identity.Operator
	err   error
}

func (c *countingVerifier) Verify(ctx context.Context, token string) (*identity.Operator, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.op, nil
}

func TestGate_CachesSuccess(t *testing.T) {
	verifier := &countingVerifier{op: &identity.Operator{ID: "op-1"}}
	c := cachememory.New(time.Minute, 0)
	defer c.Close()

	gate := identity.NewGate(verifier, c, time.Minute, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		op, err := gate.Authenticate(ctx, "token-a")
		if err != nil {
			t.Fatalf("Authenticate failed: %v", err)
		}
		if op.ID != "op-1" {
			t.Errorf("operator = %+v", op)
		}
	}

	if verifier.calls != 1 {
		t.Errorf("expected 1 provider round trip, got %d", verifier.calls)
	}
}

func TestGate_DoesNotCacheFailure(t *testing.T) {
	verifier := &countingVerifier{err: identity.ErrUnauthorized}
	c := cachememory.New(time.Minute, 0)
	defer c.Close()

	gate := identity.NewGate(verifier, c, time.Minute, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := gate.Authenticate(ctx, "bad-token"); !errors.Is(err, identity.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	}

	if verifier.calls != 2 {
		t.Errorf("failures must not be cached, got %d calls", verifier.calls)
	}
}

func TestGate_EmptyToken(t *testing.T) {
	verifier := &countingVerifier{op: &identity.Operator{ID: "op-1"}}
	gate := identity.NewGate(verifier, nil, time.Minute, nil)

	if _, err := gate.Authenticate(context.Background(), ""); !errors.Is(err, identity.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized for empty token, got %v", err)
	}
	if verifier.calls != 0 {
		t.Errorf("empty token must not reach the verifier, got %d calls", verifier.calls)
	}
}

func TestGate_DistinctTokensDistinctEntries(t *testing.T) {
	verifier := &countingVerifier{op: &identity.Operator{ID: "op-1"}}
	c := cachememory.New(time.Minute, 0)
	defer c.Close()

	gate := identity.NewGate(verifier, c, time.Minute, nil)
	ctx := context.Background()

	gate.Authenticate(ctx, "token-a")
	gate.Authenticate(ctx, "token-b")

	if verifier.calls != 2 {
		t.Errorf("expected 2 provider round trips, got %d", verifier.calls)
	}
}
