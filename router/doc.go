// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the tallyhall API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(mgr, issuer, hub)

Every route except /health and / requires an Authorization: Bearer token.
Websocket routes also accept the token as ?access_token=.

# Endpoints

Health:

	GET /health

Run setup (operator):

	POST /runs/{run}/participants - Register voter, returns participant token

Session lifecycle (operator):

	POST /sessions                       - Create session
	POST /sessions/{id}/start            - Start voting
	POST /sessions/{id}/close            - Close and tally
	POST /sessions/{id}/tally            - Recompute result
	POST /sessions/{id}/announce         - Reveal result
	POST /sessions/{id}/override         - Override winner (audited)
	POST /sessions/{id}/votes/on-behalf  - Cast for a voter (audited)
	POST /sessions/{id}/runoff           - Create runoff session
	GET  /sessions/{id}/audit            - Audit log
	GET  /sessions/{id}/admin            - Full view including ballots
	GET  /sessions/{id}/acks             - Reveal acknowledgements

Voting (participant):

	POST /sessions/{id}/votes - Cast ballot
	POST /sessions/{id}/ack   - Acknowledge announced result
	GET  /sessions/{id}       - Transparency-filtered view

Either role:

	GET /runs/{run}/sessions  - List sessions of a run
	GET /sessions/{id}/events - Websocket change notifications
	GET /runs/{run}/events    - Websocket change notifications for a run
*/
package router
