// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"

	"github.com/danielhkuo/tallyhall/auth"
	"github.com/danielhkuo/tallyhall/handlers"
	"github.com/danielhkuo/tallyhall/middleware"
	"github.com/danielhkuo/tallyhall/notify"
	"github.com/danielhkuo/tallyhall/session"
)

func NewRouter(mgr *session.Manager, issuer *auth.Issuer, hub *notify.Hub) *http.ServeMux {
	mux := http.NewServeMux()

	// Initialize handlers
	sessionHandler := handlers.NewSessionHandler(mgr)
	votingHandler := handlers.NewVotingHandler(mgr)
	resultsHandler := handlers.NewResultsHandler(mgr)
	participantHandler := handlers.NewParticipantHandler(mgr, issuer)
	eventsHandler := handlers.NewEventsHandler(mgr, notify.NewStreamHandler(hub))

	operator := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.WithLogging(middleware.RequireRole(issuer, h, auth.RoleOperator))
	}
	participant := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.WithLogging(middleware.RequireRole(issuer, h, auth.RoleParticipant))
	}
	anyone := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.WithLogging(middleware.RequireRole(issuer, h, auth.RoleOperator, auth.RoleParticipant))
	}

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Run setup (operator)
	mux.HandleFunc("POST /runs/{run}/participants", operator(participantHandler.Register))

	// Session lifecycle (operator)
	mux.HandleFunc("POST /sessions", operator(sessionHandler.CreateSession))
	mux.HandleFunc("POST /sessions/{id}/start", operator(sessionHandler.StartVoting))
	mux.HandleFunc("POST /sessions/{id}/close", operator(sessionHandler.CloseSession))
	mux.HandleFunc("POST /sessions/{id}/tally", operator(sessionHandler.CalculateResult))
	mux.HandleFunc("POST /sessions/{id}/announce", operator(sessionHandler.AnnounceResult))
	mux.HandleFunc("POST /sessions/{id}/override", operator(sessionHandler.OverrideWinner))
	mux.HandleFunc("POST /sessions/{id}/votes/on-behalf", operator(sessionHandler.VoteOnBehalf))
	mux.HandleFunc("POST /sessions/{id}/runoff", operator(sessionHandler.CreateRunoff))
	mux.HandleFunc("GET /sessions/{id}/audit", operator(sessionHandler.ListAudit))
	mux.HandleFunc("GET /sessions/{id}/admin", operator(sessionHandler.GetAdminView))
	mux.HandleFunc("GET /sessions/{id}/acks", operator(sessionHandler.ListAcknowledgements))

	// Voting (participant)
	mux.HandleFunc("POST /sessions/{id}/votes", participant(votingHandler.CastVote))
	mux.HandleFunc("POST /sessions/{id}/ack", participant(votingHandler.Acknowledge))
	mux.HandleFunc("GET /sessions/{id}", participant(resultsHandler.GetSession))

	// Reads and change notifications (either role)
	mux.HandleFunc("GET /runs/{run}/sessions", anyone(resultsHandler.ListSessions))
	mux.HandleFunc("GET /sessions/{id}/events", anyone(eventsHandler.SessionEvents))
	mux.HandleFunc("GET /runs/{run}/events", anyone(eventsHandler.RunEvents))

	// Root endpoint
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("tallyhall API v1"))
	})

	return mux
}
