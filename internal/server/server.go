// Package server provides HTTP server wiring and lifecycle management.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethsafari/opshub-go/internal/api"
	"github.com/ethsafari/opshub-go/internal/config"
	"github.com/ethsafari/opshub-go/internal/identity"
	"github.com/ethsafari/opshub-go/internal/ops"
	"github.com/ethsafari/opshub-go/internal/ratelimit"
	"github.com/ethsafari/opshub-go/internal/tlsutil"
)

var ErrMissingDep = errors.New("missing required dependency")

// Deps holds the server's dependencies.
type Deps struct {
	// Required: the action orchestrator.
	Ops *ops.Service

	// Required: the bearer token gate for the ops endpoint.
	Gate *identity.Gate

	// Optional: rate limiter for the ops endpoint (nil disables limiting).
	Limiter *ratelimit.Limiter

	// Optional: ACME manager, required only for tls.mode=acme.
	ACME *tlsutil.ACMEManager
}

// Server wraps the HTTP server and its dependencies.
type Server struct {
	cfg            *config.Config
	httpServer     *http.Server
	logger         *slog.Logger
	deps           *Deps
	trustedProxies *TrustedProxies
	opsHandler     *api.OpsHandler
}

// New creates a Server. It fails fast on missing required dependencies.
func New(cfg *config.Config, logger *slog.Logger, deps *Deps) (*Server, error) {
	if err := validateDeps(cfg, deps); err != nil {
		return nil, err
	}

	s := &Server{
		cfg:            cfg,
		logger:         logger,
		deps:           deps,
		trustedProxies: NewTrustedProxies(cfg.Server.TrustedProxies),
		opsHandler:     api.NewOpsHandler(deps.Ops, logger),
	}

	router := s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Start starts the HTTP server. It blocks until the server is shut down.
func (s *Server) Start() error {
	s.logger.Info("starting server",
		"addr", s.cfg.ListenAddr,
		"external_origin", s.cfg.ExternalOrigin,
		"external_base_path", s.cfg.ExternalBasePath,
		"tls_mode", s.cfg.TLS.Mode,
	)

	switch s.cfg.TLS.Mode {
	case "off":
		return s.httpServer.ListenAndServe()

	case "acme":
		s.httpServer.TLSConfig = s.deps.ACME.Config()
		s.logger.Info("starting server with TLS", "mode", "acme")
		return s.httpServer.ListenAndServeTLS("", "")

	case "static", "selfsigned":
		manager := tlsutil.NewManager(&s.cfg.TLS, s.logger)
		tlsConfig, err := manager.Config(extractHostname(s.cfg.ExternalOrigin))
		if err != nil {
			return fmt.Errorf("failed to configure TLS: %w", err)
		}
		s.httpServer.TLSConfig = tlsConfig
		s.logger.Info("starting server with TLS", "mode", s.cfg.TLS.Mode)
		return s.httpServer.ListenAndServeTLS("", "")

	default:
		return fmt.Errorf("%w: %s", tlsutil.ErrInvalidMode, s.cfg.TLS.Mode)
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the configured router for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func validateDeps(cfg *config.Config, deps *Deps) error {
	if deps == nil {
		return errors.New("deps is nil")
	}
	if deps.Ops == nil {
		return fmt.Errorf("%w: Ops", ErrMissingDep)
	}
	if deps.Gate == nil {
		return fmt.Errorf("%w: Gate", ErrMissingDep)
	}
	if cfg.TLS.Mode == "acme" && deps.ACME == nil {
		return fmt.Errorf("%w: ACME manager for tls.mode=acme", ErrMissingDep)
	}
	return nil
}

// extractHostname extracts the hostname from an external origin URL.
// TLS certificate generation needs the hostname without scheme or port.
func extractHostname(externalOrigin string) string {
	host := externalOrigin
	for _, scheme := range []string{"https://", "http://"} {
		if len(host) > len(scheme) && host[:len(scheme)] == scheme {
			host = host[len(scheme):]
			break
		}
	}
	if len(host) > 0 && host[len(host)-1] == '/' {
		host = host[:len(host)-1]
	}
	for i := len(host) - 1; i >= 0; i-- {
		if host[i] == ':' {
			return host[:i]
		}
		if host[i] == ']' {
			// IPv6 address like [::1]:8080
			break
		}
	}
	return host
}
