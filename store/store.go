// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"errors"
	"time"

	"github.com/danielhkuo/tallyhall/models"
)

// ErrRunoffExists is returned by PutSession when the parent session already
// has a runoff.
var ErrRunoffExists = errors.New("store: session already has a runoff")

// Store is the persistence interface consumed by the session manager.
type Store interface {
	PutSession(ctx context.Context, s models.VoteSession) error
	GetSession(ctx context.Context, id string) (models.VoteSession, error)
	ListSessionsForRun(ctx context.Context, runID string) ([]models.VoteSession, error)
	// MarkStarted sets the start marker on an open, unstarted session and
	// reports whether this call set it.
	MarkStarted(ctx context.Context, id string, at time.Time) (bool, error)
	// TransitionStatus moves a session from one status to the next in a
	// single compare-and-swap.
	TransitionStatus(ctx context.Context, id string, from, to models.Status, at time.Time) error
	// LockAccepting row-locks the session for the rest of the transaction and
	// reports whether it is open and started. Ballot writes take it so they
	// serialize with the close transition.
	LockAccepting(ctx context.Context, id string) (bool, error)
	// LockStatus row-locks the session and reports whether it is in status.
	LockStatus(ctx context.Context, id string, status models.Status) (bool, error)

	PutVote(ctx context.Context, v models.Vote) error
	GetVotesForSession(ctx context.Context, sessionID string) ([]models.Vote, error)
	GetVote(ctx context.Context, sessionID, voterID string) (models.Vote, bool, error)
	CountVotes(ctx context.Context, sessionID string) (int, error)

	PutResult(ctx context.Context, r models.VoteResult) error
	GetResult(ctx context.Context, sessionID string) (models.VoteResult, error)
	PutOverride(ctx context.Context, sessionID string, o models.Override) error

	AppendAuditEntry(ctx context.Context, e models.AuditEntry) error
	ListAuditEntries(ctx context.Context, sessionID string) ([]models.AuditEntry, error)

	PutParticipant(ctx context.Context, p models.Participant) error
	GetParticipant(ctx context.Context, runID, voterID string) (models.Participant, bool, error)

	PutAcknowledgement(ctx context.Context, a models.RevealAck) error
	GetAcknowledgement(ctx context.Context, sessionID, voterID string) (models.RevealAck, bool, error)
	ListAcknowledgements(ctx context.Context, sessionID string) ([]models.RevealAck, error)

	// WithTx runs fn inside a transaction. fn must only use the Store it is
	// given.
	WithTx(ctx context.Context, fn func(Store) error) error
}
