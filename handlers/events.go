// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/danielhkuo/tallyhall/apperrors"
	"github.com/danielhkuo/tallyhall/auth"
	"github.com/danielhkuo/tallyhall/middleware"
	"github.com/danielhkuo/tallyhall/notify"
	"github.com/danielhkuo/tallyhall/session"
)

// EventsHandler upgrades to a websocket that streams change notifications.
// Events carry no state; clients re-fetch on receipt.
type EventsHandler struct {
	mgr    *session.Manager
	stream *notify.StreamHandler
}

func NewEventsHandler(mgr *session.Manager, stream *notify.StreamHandler) *EventsHandler {
	return &EventsHandler{mgr: mgr, stream: stream}
}

// SessionEvents handles GET /sessions/{id}/events
func (h *EventsHandler) SessionEvents(w http.ResponseWriter, r *http.Request) {
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

	h.stream.Serve(w, r, notify.Filter{SessionID: id})
}

// RunEvents handles GET /runs/{run}/events
func (h *EventsHandler) RunEvents(w http.ResponseWriter, r *http.Request) {
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

	h.stream.Serve(w, r, notify.Filter{RunID: runID})
}
