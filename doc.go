// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the Tallyhall API server.

Tallyhall runs elections inside a live game: an operator opens voting
sessions (chief, trial, vote-off) for a run, participants cast one ballot
each, and the operator closes, tallies, announces or overrides the result.

# Starting the Server

The server reads environment variables (and an optional .env file) or CLI
flags:

	DATABASE_URL=file:tallyhall.db TOKEN_SECRET=... go run .

Or with flags:

	go run . -p 3318 -t postgres -d "postgres://..." --seed seed.yaml

Print an operator token and exit:

	DATABASE_URL=file:tallyhall.db TOKEN_SECRET=... go run . --issue-operator-token alice

# Configuration

Required settings:

  - DATABASE_URL (-d): SQLite DSN or PostgreSQL connection string
  - TOKEN_SECRET (--token-secret): HMAC secret for operator and participant tokens

Optional settings:

  - PORT (-p): Server port (default: 3318)
  - DATABASE_TYPE (-t): sqlite or postgres (default: sqlite)
  - TOKEN_TTL: token lifetime (default: 12h)
  - SEED_FILE (--seed): YAML file with runs, participants and sessions
  - TALLYHALL_OTEL_ENDPOINT: OTLP/HTTP collector; tracing is off when empty

# Architecture

  - session: lifecycle, ballot acceptance, tally, runoff and overrides
  - tally, eligibility: pure counting and voter/candidate rules
  - store, db: persistence behind a Store interface, schema creation
  - notify: in-process event hub and websocket streams
  - handlers, router, middleware: HTTP surface
  - auth, cliparse, seed, telemetry: tokens, configuration, seeding, tracing

See package documentation for each component.
*/
package main
