package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/ethsafari/opshub-go/internal/logutil"
	"github.com/ethsafari/opshub-go/internal/ops"
)

// maxRequestBytes bounds the action request body.
const maxRequestBytes = 1 << 20

// Action names accepted by the dispatcher.
const (
	ActionIssueApproval    = "issue_travel_approval"
	ActionRecordCheckIn    = "record_check_in"
	ActionCompletePayout   = "complete_payout"
	ActionCreateInvite     = "create_onboarding_invite"
	ActionSubmitOnboarding = "submit_onboarding"
	ActionHealth           = "health"
)

// ActionRequest is the envelope every ops request arrives in.
type ActionRequest struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

// OpsHandler dispatches action requests to the orchestrator.
type OpsHandler struct {
	svc    *ops.Service
	logger *slog.Logger
}

// NewOpsHandler creates the action dispatcher.
func NewOpsHandler(svc *ops.Service, logger *slog.Logger) *OpsHandler {
	return &OpsHandler{svc: svc, logger: logutil.NoopIfNil(logger)}
}

// ServeHTTP handles POST action dispatch. GET returns the health summary
// so scanners and dashboards can probe the endpoint without a body.
func (h *OpsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		WriteJSON(w, http.StatusOK, h.svc.Health(r.Context()))
		return
	case http.MethodPost:
		h.dispatch(w, r)
		return
	default:
		w.Header().Set("Allow", "GET, POST")
		WriteError(w, http.StatusMethodNotAllowed, ReasonBadRequest, "method not allowed")
	}
}

func (h *OpsHandler) dispatch(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes+1))
	if err != nil {
		WriteBadRequest(w, ReasonBadRequest, "failed to read request body")
		return
	}
	if len(body) > maxRequestBytes {
		WriteError(w, http.StatusRequestEntityTooLarge, ReasonBadRequest, "request body too large")
		return
	}

	var req ActionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		WriteBadRequest(w, ReasonBadRequest, "malformed JSON request")
		return
	}
	if req.Action == "" {
		WriteBadRequest(w, ReasonBadRequest, "action is required")
		return
	}

	ctx := r.Context()
	op := OperatorFromContext(ctx)

	var (
		result any
		opErr  error
	)

	switch req.Action {
	case ActionHealth:
		WriteJSON(w, http.StatusOK, h.svc.Health(ctx))
		return

	case ActionIssueApproval:
		var in ops.IssueApprovalInput
		if err := json.Unmarshal(req.Payload, &in); err != nil {
			WriteBadRequest(w, ReasonBadRequest, "malformed payload")
			return
		}
		result, opErr = h.svc.IssueApproval(ctx, op, in)

	case ActionRecordCheckIn:
		var in ops.RecordCheckInInput
		if err := json.Unmarshal(req.Payload, &in); err != nil {
			WriteBadRequest(w, ReasonBadRequest, "malformed payload")
			return
		}
		result, opErr = h.svc.RecordCheckIn(ctx, op, in)

	case ActionCompletePayout:
		var in ops.CompletePayoutInput
		if err := json.Unmarshal(req.Payload, &in); err != nil {
			WriteBadRequest(w, ReasonBadRequest, "malformed payload")
			return
		}
		result, opErr = h.svc.CompletePayout(ctx, op, in)

	case ActionCreateInvite:
		var in ops.CreateInviteInput
		if err := json.Unmarshal(req.Payload, &in); err != nil {
			WriteBadRequest(w, ReasonBadRequest, "malformed payload")
			return
		}
		result, opErr = h.svc.CreateInvite(ctx, op, in)

	case ActionSubmitOnboarding:
		var in ops.SubmitOnboardingInput
		if err := json.Unmarshal(req.Payload, &in); err != nil {
			WriteBadRequest(w, ReasonBadRequest, "malformed payload")
			return
		}
		result, opErr = h.svc.SubmitOnboarding(ctx, op, in)

	default:
		WriteBadRequest(w, ReasonBadRequest, "unknown action "+req.Action)
		return
	}

	if opErr != nil {
		h.writeOpsError(w, req.Action, opErr)
		return
	}

	WriteJSON(w, http.StatusOK, result)
}

// writeOpsError maps the orchestrator's error taxonomy to HTTP statuses.
// Internal error details stay in the log, not the response.
func (h *OpsHandler) writeOpsError(w http.ResponseWriter, action string, err error) {
	var opsErr *ops.Error
	if !errors.As(err, &opsErr) {
		h.logger.Error("action failed", "action", action, "error", err)
		WriteInternalError(w, "action failed")
		return
	}

	switch opsErr.Kind {
	case ops.KindValidation:
		WriteBadRequest(w, opsErr.Code, opsErr.Message)
	case ops.KindConflict:
		WriteError(w, http.StatusConflict, opsErr.Code, opsErr.Message)
	default:
		h.logger.Error("action failed", "action", action, "code", opsErr.Code, "error", err)
		WriteError(w, http.StatusInternalServerError, opsErr.Code, opsErr.Message)
	}
}
