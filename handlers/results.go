// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/danielhkuo/tallyhall/apperrors"
	"github.com/danielhkuo/tallyhall/auth"
	"github.com/danielhkuo/tallyhall/middleware"
	"github.com/danielhkuo/tallyhall/session"
)

// ResultsHandler serves what participants may read about sessions, filtered
// by transparency and status.
type ResultsHandler struct {
	mgr *session.Manager
}

func NewResultsHandler(mgr *session.Manager) *ResultsHandler {
	return &ResultsHandler{mgr: mgr}
}

// GetSession handles GET /sessions/{id}
// Returns the participant view for the token's voter.
func (h *ResultsHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	claims, _ := middleware.ClaimsFromContext(r.Context())
	_, found, err := participantSession(r.Context(), h.mgr, claims, id)
	if err != nil {
		middleware.AppError(w, err)
		return
	}
	if !found {
		middleware.AppError(w, sessionNotFound(id))
		return
	}

	view, err := h.mgr.ParticipantView(r.Context(), id, claims.Subject)
	if err != nil {
		middleware.AppError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, view)
}

// ListSessions handles GET /runs/{run}/sessions
// Participants may only list their own run.
func (h *ResultsHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("run")
	if runID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, apperrors.CodeInvalidArgument, "run id is required")
		return
	}

	claims, _ := middleware.ClaimsFromContext(r.Context())
	if claims.Role == auth.RoleParticipant && claims.RunID != runID {
		middleware.ErrorResponse(w, http.StatusForbidden, apperrors.CodeUnauthorized, "token is not valid for this run")
		return
	}

	sessions, err := h.mgr.ListSessions(r.Context(), runID)
	if err != nil {
		middleware.AppError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, sessions)
}
