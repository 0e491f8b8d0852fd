package api

import (
	"net/http"

	"github.com/ethsafari/opshub-go/internal/ops"
)

// HealthHandler serves the public liveness endpoint.
func HealthHandler(svc *ops.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, svc.Health(r.Context()))
	}
}
