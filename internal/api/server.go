// internal/api/server.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	commonerrors "restaurant-onboarding/internal/common/errors"
	"restaurant-onboarding/internal/common/logger"
	"restaurant-onboarding/internal/models"
	"restaurant-onboarding/internal/wizard"
)

// WizardService is the slice of the wizard controller the HTTP surface uses.
type WizardService interface {
	Advance(ctx context.Context, sessionKey string, opts wizard.Options, stepID string, fields map[string]string) (*wizard.StepOutcome, error)
	Retreat(ctx context.Context, sessionKey string, opts wizard.Options) (*wizard.StepOutcome, error)
	SaveDraft(ctx context.Context, sessionKey, stepID string, fields map[string]string) error
	Abandon(ctx context.Context, sessionKey string) error
	Finalize(ctx context.Context, sessionKey, ownerID string, opts wizard.Options) (*models.RestaurantApplication, error)
}

// ApprovalService is the slice of the workflow engine managers drive.
type ApprovalService interface {
	Approve(ctx context.Context, id, actor string) error
	Reject(ctx context.Context, id, actor, reason string) error
}

// Handler exposes the wizard and manager-review actions over HTTP. The
// wizard accepts step-scoped form submissions with an action of
// next|back|save_draft|abandon|submit; the review surface accepts manager
// approve/reject with an optional free-text reason.
type Handler struct {
	wizard    WizardService
	approvals ApprovalService
	log       logger.Logger
}

func NewHandler(wizardSvc WizardService, approvals ApprovalService, log logger.Logger) *Handler {
	return &Handler{wizard: wizardSvc, approvals: approvals, log: log}
}

// Register mounts the handler's routes on the given mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /wizard/{session}", h.handleWizardAction)
	mux.HandleFunc("POST /applications/{id}/approve", h.handleApprove)
	mux.HandleFunc("POST /applications/{id}/reject", h.handleReject)
}

// controlFields are form keys that steer the request rather than carry step
// data.
var controlFields = map[string]bool{
	"action":        true,
	"step":          true,
	"owner_id":      true,
	"authenticated": true,
}

func (h *Handler) handleWizardAction(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "malformed form data"})
		return
	}

	session := r.PathValue("session")
	action := r.PostFormValue("action")
	stepID := r.PostFormValue("step")
	opts := wizard.Options{
		Authenticated: r.PostFormValue("authenticated") == "true",
		OwnerID:       r.PostFormValue("owner_id"),
	}
	fields := stepFields(r.PostForm)

	switch action {
	case "next":
		outcome, err := h.wizard.Advance(r.Context(), session, opts, stepID, fields)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, stepResponse(outcome))
	case "back":
		outcome, err := h.wizard.Retreat(r.Context(), session, opts)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, stepResponse(outcome))
	case "save_draft":
		if err := h.wizard.SaveDraft(r.Context(), session, stepID, fields); err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, http.StatusAccepted, map[string]interface{}{"status": "draft_saved"})
	case "abandon":
		if err := h.wizard.Abandon(r.Context(), session); err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, map[string]interface{}{"status": "abandoned"})
	case "submit":
		app, err := h.wizard.Finalize(r.Context(), session, opts.OwnerID, opts)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, http.StatusCreated, map[string]interface{}{
			"application_id":  app.ID,
			"approval_status": string(app.ApprovalStatus),
		})
	default:
		h.writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "unknown action: " + action})
	}
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.reviewer(w, r)
	if !ok {
		return
	}
	if err := h.approvals.Approve(r.Context(), r.PathValue("id"), actor); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"status": "approved"})
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.reviewer(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "malformed form data"})
		return
	}
	if err := h.approvals.Reject(r.Context(), r.PathValue("id"), actor, r.PostFormValue("reason")); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"status": "rejected"})
}

// reviewer reads the identity headers set by the authenticating gateway. The
// role is computed once per request and checked here, not re-derived
// downstream.
func (h *Handler) reviewer(w http.ResponseWriter, r *http.Request) (string, bool) {
	actor := r.Header.Get("X-Actor")
	role := models.Role(r.Header.Get("X-Role"))
	if actor == "" || !role.CanReview() {
		h.writeJSON(w, http.StatusForbidden, map[string]interface{}{"error": "reviewer role required"})
		return "", false
	}
	return actor, true
}

func stepFields(form url.Values) map[string]string {
	fields := make(map[string]string)
	for key, values := range form {
		if controlFields[key] || len(values) == 0 {
			continue
		}
		fields[key] = values[0]
	}
	return fields
}

func stepResponse(outcome *wizard.StepOutcome) map[string]interface{} {
	resp := map[string]interface{}{
		"current_step":    outcome.CurrentStep,
		"completed_steps": outcome.CompletedSteps,
		"finished":        outcome.Finished,
	}
	if outcome.Application != nil {
		resp["application_id"] = outcome.Application.ID
		resp["approval_status"] = string(outcome.Application.ApprovalStatus)
	}
	return resp
}

// writeError maps the error taxonomy onto HTTP statuses so the presentation
// layer can render field-specific or status-specific messages.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var (
		validationErr *commonerrors.ValidationError
		incompleteErr *commonerrors.IncompleteApplicationError
		transitionErr *commonerrors.InvalidTransitionError
		stdErr        *commonerrors.StandardError
	)

	switch {
	case errors.Is(err, wizard.ErrNoDraft):
		h.writeJSON(w, http.StatusNotFound, map[string]interface{}{"error": err.Error()})
	case errors.As(err, &validationErr):
		h.writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":  err.Error(),
			"fields": validationErr.Fields,
		})
	case errors.As(err, &incompleteErr):
		h.writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":   err.Error(),
			"missing": incompleteErr.Missing,
		})
	case errors.As(err, &transitionErr):
		h.writeJSON(w, http.StatusConflict, map[string]interface{}{
			"error":          err.Error(),
			"current_status": transitionErr.From,
		})
	case errors.As(err, &stdErr):
		status := http.StatusInternalServerError
		if stdErr.Code == commonerrors.ErrCodeApplicationNotFound {
			status = http.StatusNotFound
		} else if commonerrors.IsRetryableErrorCode(stdErr.Code) {
			status = http.StatusServiceUnavailable
		}
		h.writeJSON(w, status, map[string]interface{}{
			"error":     stdErr.Message,
			"category":  commonerrors.GetErrorCategory(stdErr.Code),
			"retryable": commonerrors.IsRetryableErrorCode(stdErr.Code),
		})
	default:
		h.log.WithError(err).Error("Request failed", nil)
		h.writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": "internal error"})
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.WithError(err).Warn("Failed to encode response", nil)
	}
}
