// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db handles database schema creation.

# Schema Creation

CreateSchema initializes all required tables:

	if err := db.CreateSchema(conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.
The DDL sticks to types both PostgreSQL and SQLite accept, so one schema
serves either DATABASE_TYPE.

# Tables

  - run_participant: recognized voters of a run and their clan
  - vote_session: session config and lifecycle state
  - vote: one ballot per voter per session
  - vote_result: computed tally plus override columns
  - audit_entry: append-only operator actions
  - reveal_ack: per-(session, voter) reveal acknowledgements

# Relationships

	vote_session 1──* vote
	vote_session 1──1 vote_result
	vote_session 1──* audit_entry
	vote_session 1──* reveal_ack

All foreign keys use ON DELETE CASCADE.

# Constraints

  - vote (session_id, voter_id) is UNIQUE, so concurrent duplicate ballots
    fail atomically at insert time
  - vote carries exactly one of candidate_id / answer
  - vote_session.scope_clan_id is set iff scope = 'clan_only'
  - vote_session.eligible_candidates is set iff format = 'choose_person'
*/
package db
