// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package session orchestrates the vote session lifecycle.

A session moves open → closed → announced and never backward:

	vs, err := mgr.CreateSession(ctx, cfg, operatorID)   // open, not started
	vs, err = mgr.StartVoting(ctx, vs.ID)                // ballots accepted
	vote, err := mgr.CastVote(ctx, vs.ID, voterID, clanID, choice)
	vs, result, err := mgr.CloseSession(ctx, vs.ID)      // CAS, then tally
	vs, err = mgr.AnnounceResult(ctx, vs.ID)             // terminal

# Ballots

CastVote and VoteOnBehalf check, in order: the session accepts votes, the
voter is eligible, the payload matches the format (including candidate
membership), and the voter has not voted. Uniqueness comes from the store's
(session, voter) constraint, so concurrent duplicates cannot both succeed.

# Results

CalculateResult is safe to call repeatedly while a session is closed. It
hashes the vote ids and leaves the stored result alone when they are
unchanged, so retries produce identical results. OverrideWinner records an
operator's winner beside the computed tally and appends an audit entry in
the same transaction.

# Notifications

Every state change publishes a notify.Event. Events are hints; consumers
re-read state through GetSession, ParticipantView or AdminView.
*/
package session
