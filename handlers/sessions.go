// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/danielhkuo/tallyhall/apperrors"
	"github.com/danielhkuo/tallyhall/middleware"
	"github.com/danielhkuo/tallyhall/models"
	"github.com/danielhkuo/tallyhall/session"
)

// SessionHandler serves the operator side of the session lifecycle. Every
// route is wrapped in RequireRole(operator) by the router.
type SessionHandler struct {
	mgr *session.Manager
}

func NewSessionHandler(mgr *session.Manager) *SessionHandler {
	return &SessionHandler{mgr: mgr}
}

// sessionID reads the {id} path value, writing a 400 when it is missing.
func sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if id == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, apperrors.CodeInvalidArgument, "session id is required")
		return "", false
	}
	return id, true
}

// actor returns the subject of the verified token.
func actor(r *http.Request) string {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	return claims.Subject
}

// CreateSession handles POST /sessions
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSessionRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.AppError(w, err)
		return
	}

	vs, err := h.mgr.CreateSession(r.Context(), req, actor(r))
	if err != nil {
		middleware.AppError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, models.CreateSessionResponse{
		SessionID: vs.ID,
	})
}

// StartVoting handles POST /sessions/{id}/start
func (h *SessionHandler) StartVoting(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	vs, err := h.mgr.StartVoting(r.Context(), id)
	if err != nil {
		middleware.AppError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, vs)
}

// CloseSession handles POST /sessions/{id}/close
// Closing also tallies; a tally failure still reports the close.
func (h *SessionHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	vs, result, err := h.mgr.CloseSession(r.Context(), id)
	if err != nil {
		middleware.AppError(w, err)
		return
	}

	slog.Info("session closed via API", "session_id", id, "actor_id", actor(r), "tallied", result != nil)

	middleware.JSONResponse(w, http.StatusOK, models.CloseSessionResponse{
		Session: vs,
		Result:  result,
	})
}

// CalculateResult handles POST /sessions/{id}/tally
func (h *SessionHandler) CalculateResult(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	result, err := h.mgr.CalculateResult(r.Context(), id)
	if err != nil {
		middleware.AppError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, result)
}

// AnnounceResult handles POST /sessions/{id}/announce
func (h *SessionHandler) AnnounceResult(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	vs, err := h.mgr.AnnounceResult(r.Context(), id)
	if err != nil {
		middleware.AppError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, vs)
}

// OverrideWinner handles POST /sessions/{id}/override
func (h *SessionHandler) OverrideWinner(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	var req models.OverrideWinnerRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.AppError(w, err)
		return
	}

	result, err := h.mgr.OverrideWinner(r.Context(), id, req.WinnerID, req.Reason, actor(r))
	if err != nil {
		middleware.AppError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, result)
}

// VoteOnBehalf handles POST /sessions/{id}/votes/on-behalf
func (h *SessionHandler) VoteOnBehalf(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	var req models.VoteOnBehalfRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.AppError(w, err)
		return
	}

	vote, err := h.mgr.VoteOnBehalf(r.Context(), id, req.VoterID, "", req.Choice, actor(r), req.Reason)
	if err != nil {
		middleware.AppError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, models.CastVoteResponse{
		VoteID:  vote.ID,
		Message: "Vote recorded on behalf of " + vote.VoterID,
	})
}

// CreateRunoff handles POST /sessions/{id}/runoff
func (h *SessionHandler) CreateRunoff(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	child, err := h.mgr.CreateRunoff(r.Context(), id, actor(r))
	if err != nil {
		middleware.AppError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, models.CreateRunoffResponse{
		SessionID:  child.ID,
		Candidates: child.EligibleCandidates,
	})
}

// ListAudit handles GET /sessions/{id}/audit
func (h *SessionHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	entries, err := h.mgr.ListAudit(r.Context(), id)
	if err != nil {
		middleware.AppError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, entries)
}

// GetAdminView handles GET /sessions/{id}/admin
func (h *SessionHandler) GetAdminView(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	view, err := h.mgr.AdminView(r.Context(), id)
	if err != nil {
		middleware.AppError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, view)
}

// ListAcknowledgements handles GET /sessions/{id}/acks
func (h *SessionHandler) ListAcknowledgements(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	acks, err := h.mgr.ListAcknowledgements(r.Context(), id)
	if err != nil {
		middleware.AppError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, acks)
}
