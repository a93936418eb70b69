// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the Tallyhall API.

# Handler Types

Each handler is a struct around a *session.Manager:

  - SessionHandler: operator lifecycle (create, start, close, tally, announce, override, runoff)
  - VotingHandler: participant ballot casting and result acknowledgement
  - ResultsHandler: participant session view and run session listing
  - ParticipantHandler: registry upserts that return a participant token
  - EventsHandler: websocket event streams per session or per run

	sessionHandler := handlers.NewSessionHandler(mgr)

Handlers never touch the database; every rule lives in the session package.
Errors are returned through middleware.AppError so the apperrors code maps
to a status and a stable JSON body.

# Session Lifecycle

	POST /sessions                → CreateSession
	POST /sessions/{id}/start     → StartVoting
	POST /sessions/{id}/close     → CloseSession (tallies when possible)
	POST /sessions/{id}/tally     → CalculateResult
	POST /sessions/{id}/announce  → AnnounceResult
	POST /sessions/{id}/override  → OverrideWinner
	POST /sessions/{id}/runoff    → CreateRunoff

Operator routes require a bearer token with the operator role.

# Voting Flow

	POST /sessions/{id}/votes → CastVote
	POST /sessions/{id}/ack   → Acknowledge
	GET /sessions/{id}        → GetSession

The voter id, run and clan come from the participant token, never from the
request body. A participant cannot see sessions of another run.
*/
package handlers
