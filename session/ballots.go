// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/danielhkuo/tallyhall/apperrors"
	"github.com/danielhkuo/tallyhall/eligibility"
	"github.com/danielhkuo/tallyhall/models"
	"github.com/danielhkuo/tallyhall/notify"
	"github.com/danielhkuo/tallyhall/store"
)

// ballot is a vote request after the caller has been identified.
type ballot struct {
	sessionID string
	voterID   string
	groupID   string
	choice    models.Choice
	// actorID and reason are set when an operator votes on behalf of a voter.
	actorID string
	reason  string
}

func notAccepting(sessionID, reason string) error {
	return apperrors.WithMetadata(apperrors.CodeSessionNotAcceptingVotes,
		reason, map[string]string{"session_id": sessionID})
}

// CastVote records a voter's ballot. Checks run in a fixed order so callers
// can branch on the first failure: not accepting, ineligible, malformed,
// duplicate.
func (m *Manager) CastVote(ctx context.Context, sessionID, voterID, voterGroupID string, choice models.Choice) (v models.Vote, err error) {
	ctx, span := m.startSpan(ctx, "CastVote", sessionID)
	defer func() { endSpan(span, err) }()

	return m.accept(ctx, ballot{
		sessionID: sessionID,
		voterID:   strings.TrimSpace(voterID),
		groupID:   strings.TrimSpace(voterGroupID),
		choice:    choice,
	})
}

// VoteOnBehalf casts a ballot for a voter as an operator. The same checks as
// CastVote apply, and the vote and its audit entry commit together.
func (m *Manager) VoteOnBehalf(ctx context.Context, sessionID, voterID, voterGroupID string, choice models.Choice, actorID, reason string) (v models.Vote, err error) {
	ctx, span := m.startSpan(ctx, "VoteOnBehalf", sessionID)
	defer func() { endSpan(span, err) }()

	b := ballot{
		sessionID: sessionID,
		voterID:   strings.TrimSpace(voterID),
		groupID:   strings.TrimSpace(voterGroupID),
		choice:    choice,
		actorID:   strings.TrimSpace(actorID),
		reason:    strings.TrimSpace(reason),
	}
	if b.actorID == "" {
		return models.Vote{}, invalidArgument("actor_id", "actor id is required")
	}
	if b.reason == "" {
		return models.Vote{}, invalidArgument("reason", "a reason is required when voting on behalf of a participant")
	}
	return m.accept(ctx, b)
}

func (m *Manager) accept(ctx context.Context, b ballot) (models.Vote, error) {
	// 1. session exists, is open and started
	vs, err := m.store.GetSession(ctx, b.sessionID)
	if errors.Is(err, apperrors.ErrSessionNotFound) {
		return models.Vote{}, notAccepting(b.sessionID, "session does not exist")
	}
	if err != nil {
		return models.Vote{}, err
	}
	if !vs.AcceptingVotes() {
		if vs.Status != models.StatusOpen {
			return models.Vote{}, notAccepting(vs.ID, "session is "+string(vs.Status))
		}
		return models.Vote{}, notAccepting(vs.ID, "voting has not started")
	}

	// 2. eligibility
	voter, err := m.resolveVoter(ctx, vs.RunID, b.voterID, b.groupID)
	if err != nil {
		return models.Vote{}, err
	}
	if err := eligibility.CheckVoter(vs, voter); err != nil {
		return models.Vote{}, err
	}

	// 3. payload shape, then candidate membership
	if err := models.ValidateChoice(vs.Format, b.choice); err != nil {
		return models.Vote{}, err
	}
	if err := eligibility.CheckCandidate(vs, b.choice); err != nil {
		return models.Vote{}, err
	}

	vote := models.Vote{
		ID:          uuid.NewString(),
		SessionID:   vs.ID,
		VoterID:     voter.ID,
		VoterClanID: voter.GroupID,
		Choice:      b.choice,
		CastBy:      b.actorID,
		CastAt:      m.clock(),
	}

	// 4. uniqueness is enforced by the store's constraint
	err = m.store.WithTx(ctx, func(tx store.Store) error {
		open, err := tx.LockAccepting(ctx, vs.ID)
		if err != nil {
			return err
		}
		if !open {
			return notAccepting(vs.ID, "session closed while voting")
		}
		if err := tx.PutVote(ctx, vote); err != nil {
			return err
		}
		if b.actorID == "" {
			return nil
		}
		payload, err := json.Marshal(vote.Choice)
		if err != nil {
			return fmt.Errorf("encode audit payload: %w", err)
		}
		return tx.AppendAuditEntry(ctx, m.auditEntry(vs.ID, b.actorID, models.AuditVoteOnBehalf, vote.VoterID, payload, b.reason))
	})
	if err != nil {
		return models.Vote{}, err
	}

	if b.actorID != "" {
		slog.Info("vote cast on behalf", "session_id", vs.ID, "voter_id", vote.VoterID, "actor_id", b.actorID)
	} else {
		slog.Info("vote cast", "session_id", vs.ID, "voter_id", vote.VoterID)
	}
	// Ballot events would reveal the count of a secret session.
	if vs.Transparency != models.TransparencySecret {
		m.publish(notify.EventBallotCast, vs)
	}
	return vote, nil
}

// resolveVoter looks the voter up in the run registry. The registry's clan
// is authoritative; the caller's group is only used for unregistered voters.
func (m *Manager) resolveVoter(ctx context.Context, runID, voterID, groupID string) (eligibility.Voter, error) {
	if voterID == "" {
		return eligibility.Voter{}, invalidArgument("voter_id", "voter id is required")
	}
	p, ok, err := m.store.GetParticipant(ctx, runID, voterID)
	if err != nil {
		return eligibility.Voter{}, err
	}
	if ok {
		return eligibility.Voter{ID: voterID, GroupID: p.ClanID, Registered: true}, nil
	}
	return eligibility.Voter{ID: voterID, GroupID: groupID}, nil
}

func (m *Manager) auditEntry(sessionID, actorID string, action models.AuditAction, target string, payload json.RawMessage, reason string) models.AuditEntry {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return models.AuditEntry{
		ID:        id.String(),
		SessionID: sessionID,
		ActorID:   actorID,
		Action:    action,
		TargetID:  target,
		Payload:   payload,
		Reason:    reason,
		CreatedAt: m.clock(),
	}
}
