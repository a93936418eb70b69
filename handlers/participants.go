// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/danielhkuo/tallyhall/apperrors"
	"github.com/danielhkuo/tallyhall/auth"
	"github.com/danielhkuo/tallyhall/middleware"
	"github.com/danielhkuo/tallyhall/models"
	"github.com/danielhkuo/tallyhall/session"
)

// ParticipantHandler registers run participants and hands out their tokens.
type ParticipantHandler struct {
	mgr    *session.Manager
	issuer *auth.Issuer
}

func NewParticipantHandler(mgr *session.Manager, issuer *auth.Issuer) *ParticipantHandler {
	return &ParticipantHandler{mgr: mgr, issuer: issuer}
}

// Register handles POST /runs/{run}/participants
// Registers (or re-registers) a voter and returns a participant token.
func (h *ParticipantHandler) Register(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("run")
	if runID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, apperrors.CodeInvalidArgument, "run id is required")
		return
	}

	var req models.RegisterParticipantRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.AppError(w, err)
		return
	}

	p, err := h.mgr.RegisterParticipant(r.Context(), models.Participant{
		RunID:       runID,
		VoterID:     req.VoterID,
		ClanID:      req.ClanID,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		middleware.AppError(w, err)
		return
	}

	token, err := h.issuer.IssueParticipantToken(p)
	if err != nil {
		slog.Error("failed to issue participant token", "run_id", runID, "voter_id", p.VoterID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, apperrors.CodeUnknown, "Failed to issue token")
		return
	}

	slog.Info("participant registered", "run_id", runID, "voter_id", p.VoterID, "actor_id", actor(r))

	middleware.JSONResponse(w, http.StatusCreated, models.RegisterParticipantResponse{
		Participant: p,
		Token:       token,
	})
}
