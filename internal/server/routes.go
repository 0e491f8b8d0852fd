package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ethsafari/opshub-go/internal/api"
)

// setupRoutes creates the chi router.
//
// Order matters in the global stack: RequestID must come first so GetReqID
// works in the access log, and the logging wrapper sits outside Recoverer
// so panics are logged with the status the recoverer wrote.
func (s *Server) setupRoutes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// ACME challenges must be served at host root regardless of base path.
	if s.deps.ACME != nil {
		r.Handle("/.well-known/acme-challenge/*", s.deps.ACME.ChallengeHandler())
	}

	if s.cfg.ExternalBasePath != "" {
		r.Route(s.cfg.ExternalBasePath, func(r chi.Router) {
			s.mountAppEndpoints(r)
		})
	} else {
		s.mountAppEndpoints(r)
	}

	return r
}

// mountAppEndpoints mounts app endpoints (may be under base path).
func (s *Server) mountAppEndpoints(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		// Liveness is public; everything useful it reports is non-secret.
		r.Get("/healthz", api.HealthHandler(s.deps.Ops))

		r.Route("/ops", func(r chi.Router) {
			if s.deps.Limiter != nil {
				r.Use(s.deps.Limiter.Middleware(func(req *http.Request) string {
					return s.trustedProxies.GetClientIPString(req)
				}))
			}
			// GET is a liveness probe and stays public; only actions
			// require a bearer token.
			r.Get("/", s.opsHandler.ServeHTTP)
			r.Group(func(r chi.Router) {
				r.Use(s.authMiddleware)
				r.Post("/", s.opsHandler.ServeHTTP)
			})
		})
	})
}
