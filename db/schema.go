// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
)

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Tables lists every table in dependency order, children first.
var Tables = []string{
	"reveal_ack",
	"audit_entry",
	"vote_result",
	"vote",
	"vote_session",
	"run_participant",
}

const schema = `
-- Run participants
CREATE TABLE IF NOT EXISTS run_participant (
    run_id TEXT NOT NULL,
    voter_id TEXT NOT NULL,
    clan_id TEXT,
    display_name TEXT,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (run_id, voter_id)
);

CREATE INDEX IF NOT EXISTS idx_run_participant_clan ON run_participant(run_id, clan_id);

-- Vote sessions
CREATE TABLE IF NOT EXISTS vote_session (
    id TEXT PRIMARY KEY,
    run_id TEXT NOT NULL,
    phase_id TEXT NOT NULL,
    title TEXT,
    format TEXT NOT NULL CHECK (format IN ('choose_person', 'yes_no')),
    mode TEXT NOT NULL DEFAULT 'election' CHECK (mode IN ('election', 'clan_nomination')),
    scope TEXT NOT NULL CHECK (scope IN ('all', 'clan_only')),
    scope_clan_id TEXT,
    transparency TEXT NOT NULL DEFAULT 'open' CHECK (transparency IN ('open', 'anonymous', 'secret')),
    eligible_candidates TEXT,
    threshold_kind TEXT CHECK (threshold_kind IN ('count', 'fraction')),
    threshold_value DOUBLE PRECISION,
    voter_base INTEGER,
    parent_session_id TEXT,
    status TEXT NOT NULL DEFAULT 'open' CHECK (status IN ('open', 'closed', 'announced')),
    started_at TIMESTAMP,
    closed_at TIMESTAMP,
    announced_at TIMESTAMP,
    created_by TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    CHECK ((scope = 'clan_only') = (scope_clan_id IS NOT NULL)),
    CHECK ((format = 'choose_person') = (eligible_candidates IS NOT NULL))
);

CREATE INDEX IF NOT EXISTS idx_vote_session_run ON vote_session(run_id, phase_id);
CREATE INDEX IF NOT EXISTS idx_vote_session_status ON vote_session(status);
-- A session has at most one runoff
CREATE UNIQUE INDEX IF NOT EXISTS idx_vote_session_parent ON vote_session(parent_session_id);

-- Votes
CREATE TABLE IF NOT EXISTS vote (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL REFERENCES vote_session(id) ON DELETE CASCADE,
    voter_id TEXT NOT NULL,
    voter_clan_id TEXT,
    candidate_id TEXT,
    answer TEXT CHECK (answer IN ('yes', 'no', 'abstain')),
    cast_by TEXT,
    cast_at TIMESTAMP NOT NULL,
    UNIQUE (session_id, voter_id),
    CHECK ((candidate_id IS NULL) <> (answer IS NULL))
);

CREATE INDEX IF NOT EXISTS idx_vote_session_id ON vote(session_id);

-- Results
CREATE TABLE IF NOT EXISTS vote_result (
    session_id TEXT PRIMARY KEY REFERENCES vote_session(id) ON DELETE CASCADE,
    payload TEXT NOT NULL,
    inputs_hash TEXT NOT NULL,
    computed_at TIMESTAMP NOT NULL,
    override_winner_id TEXT,
    override_reason TEXT,
    override_actor_id TEXT,
    overridden_at TIMESTAMP
);

-- Audit log (append-only)
CREATE TABLE IF NOT EXISTS audit_entry (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL REFERENCES vote_session(id) ON DELETE CASCADE,
    actor_id TEXT NOT NULL,
    action TEXT NOT NULL,
    target_id TEXT NOT NULL,
    payload TEXT,
    reason TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_entry_session ON audit_entry(session_id, created_at);

-- Reveal acknowledgements
CREATE TABLE IF NOT EXISTS reveal_ack (
    session_id TEXT NOT NULL REFERENCES vote_session(id) ON DELETE CASCADE,
    voter_id TEXT NOT NULL,
    acknowledged_at TIMESTAMP NOT NULL,
    PRIMARY KEY (session_id, voter_id)
);
`
