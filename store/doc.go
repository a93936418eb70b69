// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package store is the persistence layer for sessions, ballots, results, audit
entries, participants and reveal acknowledgements.

Store is the interface the session manager consumes; SQLStore implements it
over database/sql for both PostgreSQL (lib/pq) and SQLite (modernc.org/sqlite):

	st := store.NewSQLStore(conn)
	err := st.WithTx(ctx, func(tx store.Store) error {
		if err := tx.PutVote(ctx, vote); err != nil {
			return err
		}
		return tx.AppendAuditEntry(ctx, entry)
	})

# Atomicity

  - PutVote relies on the UNIQUE (session_id, voter_id) constraint; a
    violation becomes DUPLICATE_VOTE
  - TransitionStatus is a single conditional UPDATE; zero affected rows
    becomes INVALID_TRANSITION
  - PutResult upserts tally columns only and never touches override columns

# Errors

Driver failures are wrapped as STORAGE_UNAVAILABLE. Missing rows become
SESSION_NOT_FOUND or RESULT_NOT_YET_COMPUTED.
*/
package store
