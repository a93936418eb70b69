// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielhkuo/tallyhall/apperrors"
	"github.com/danielhkuo/tallyhall/auth"
	"github.com/danielhkuo/tallyhall/middleware"
	"github.com/danielhkuo/tallyhall/models"
	"github.com/danielhkuo/tallyhall/session"
)

// VotingHandler serves ballot submission and reveal acknowledgement for
// participant tokens.
type VotingHandler struct {
	mgr *session.Manager
}

func NewVotingHandler(mgr *session.Manager) *VotingHandler {
	return &VotingHandler{mgr: mgr}
}

// participantSession loads a session and hides it from participants of
// other runs. found is false when the caller may not see the session.
func participantSession(ctx context.Context, mgr *session.Manager, claims auth.Claims, id string) (vs models.VoteSession, found bool, err error) {
	vs, err = mgr.GetSession(ctx, id)
	if errors.Is(err, apperrors.ErrSessionNotFound) {
		return models.VoteSession{}, false, nil
	}
	if err != nil {
		return models.VoteSession{}, false, err
	}
	if claims.Role == auth.RoleParticipant && vs.RunID != claims.RunID {
		return models.VoteSession{}, false, nil
	}
	return vs, true, nil
}

func sessionNotFound(id string) error {
	return apperrors.WithMetadata(apperrors.CodeSessionNotFound, "session not found", map[string]string{"session_id": id})
}

// CastVote handles POST /sessions/{id}/votes
// The voter and clan come from the token, never from the body.
func (h *VotingHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	claims, _ := middleware.ClaimsFromContext(r.Context())
	vs, found, err := participantSession(r.Context(), h.mgr, claims, id)
	if err != nil {
		middleware.AppError(w, err)
		return
	}
	// A foreign session is indistinguishable from one that never opened.
	// Checked before the body so a closed session wins over a bad payload.
	if !found || !vs.AcceptingVotes() {
		middleware.ErrorResponse(w, http.StatusConflict, apperrors.CodeSessionNotAcceptingVotes, "session is not accepting votes")
		return
	}

	var req models.CastVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.AppError(w, err)
		return
	}

	vote, err := h.mgr.CastVote(r.Context(), id, claims.Subject, claims.ClanID, req.Choice)
	if err != nil {
		middleware.AppError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, models.CastVoteResponse{
		VoteID:  vote.ID,
		Message: "Vote recorded",
	})
}

// Acknowledge handles POST /sessions/{id}/ack
func (h *VotingHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
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

	ack, err := h.mgr.AcknowledgeReveal(r.Context(), id, claims.Subject)
	if err != nil {
		middleware.AppError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, ack)
}
