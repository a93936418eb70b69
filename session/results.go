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
	"github.com/danielhkuo/tallyhall/models"
	"github.com/danielhkuo/tallyhall/notify"
	"github.com/danielhkuo/tallyhall/store"
	"github.com/danielhkuo/tallyhall/tally"
)

// CalculateResult tallies a closed session and stores the result. It may run
// any number of times while closed: an unchanged vote set returns the stored
// result untouched. Once announced the stored result is returned as is.
func (m *Manager) CalculateResult(ctx context.Context, sessionID string) (r models.VoteResult, err error) {
	ctx, span := m.startSpan(ctx, "CalculateResult", sessionID)
	defer func() { endSpan(span, err) }()

	vs, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return models.VoteResult{}, err
	}
	switch vs.Status {
	case models.StatusOpen:
		return models.VoteResult{}, apperrors.WithMetadata(apperrors.CodeInvalidTransition,
			"session must be closed before it is tallied", map[string]string{"session_id": sessionID})
	case models.StatusAnnounced:
		return m.store.GetResult(ctx, sessionID)
	}

	// Concurrent requests for one session share a single computation
	v, err, _ := m.results.Do(sessionID, func() (any, error) {
		return m.computeResult(ctx, vs)
	})
	if err != nil {
		return models.VoteResult{}, err
	}
	return v.(models.VoteResult), nil
}

func (m *Manager) computeResult(ctx context.Context, vs models.VoteSession) (models.VoteResult, error) {
	var (
		result  models.VoteResult
		written bool
	)
	err := m.store.WithTx(ctx, func(tx store.Store) error {
		closed, err := tx.LockStatus(ctx, vs.ID, models.StatusClosed)
		if err != nil {
			return err
		}
		if !closed {
			return apperrors.WithMetadata(apperrors.CodeInvalidTransition,
				"session is no longer closed", map[string]string{"session_id": vs.ID})
		}

		votes, err := tx.GetVotesForSession(ctx, vs.ID)
		if err != nil {
			return err
		}
		hash := tally.InputsHash(votes)

		existing, err := tx.GetResult(ctx, vs.ID)
		switch {
		case err == nil && existing.InputsHash == hash:
			result = existing
			return nil
		case err != nil && !errors.Is(err, apperrors.ErrResultNotYetComputed):
			return err
		}

		t, err := tally.Compute(vs, votes)
		if err != nil {
			return err
		}
		result = models.VoteResult{
			SessionID:  vs.ID,
			Tally:      t,
			InputsHash: hash,
			ComputedAt: m.clock(),
		}
		if err := tx.PutResult(ctx, result); err != nil {
			return err
		}
		written = true
		return nil
	})
	if err != nil {
		return models.VoteResult{}, err
	}

	if written {
		winner, _ := result.Tally.Winner()
		slog.Info("result calculated",
			"session_id", vs.ID,
			"total_cast", result.Tally.TotalCast,
			"outcome", result.Tally.Outcome.Kind(),
			"winner", winner,
		)
		m.publish(notify.EventResultCalculated, vs)
	}
	return result, nil
}

// GetResult returns the stored result, or RESULT_NOT_YET_COMPUTED.
func (m *Manager) GetResult(ctx context.Context, sessionID string) (models.VoteResult, error) {
	if _, err := m.store.GetSession(ctx, sessionID); err != nil {
		return models.VoteResult{}, err
	}
	return m.store.GetResult(ctx, sessionID)
}

// AnnounceResult moves closed to announced. It requires a stored result and
// is terminal.
func (m *Manager) AnnounceResult(ctx context.Context, sessionID string) (vs models.VoteSession, err error) {
	ctx, span := m.startSpan(ctx, "AnnounceResult", sessionID)
	defer func() { endSpan(span, err) }()

	vs, err = m.store.GetSession(ctx, sessionID)
	if err != nil {
		return models.VoteSession{}, err
	}
	if vs.Status != models.StatusClosed {
		return models.VoteSession{}, apperrors.WithMetadata(apperrors.CodeInvalidTransition,
			"only closed sessions can be announced", map[string]string{"status": string(vs.Status)})
	}

	err = m.store.WithTx(ctx, func(tx store.Store) error {
		if _, err := tx.GetResult(ctx, sessionID); err != nil {
			return err
		}
		return tx.TransitionStatus(ctx, sessionID, models.StatusClosed, models.StatusAnnounced, m.clock())
	})
	if err != nil {
		return models.VoteSession{}, err
	}

	vs, err = m.store.GetSession(ctx, sessionID)
	if err != nil {
		return models.VoteSession{}, err
	}
	slog.Info("result announced", "session_id", sessionID)
	m.publish(notify.EventResultAnnounced, vs)
	return vs, nil
}

// overridePayload is the audit payload for an override.
type overridePayload struct {
	PreviousWinner string `json:"previous_winner,omitempty"`
	WinnerID       string `json:"winner_id"`
}

// OverrideWinner records an operator-chosen winner on an announced result.
// The computed tally is left untouched; a later override replaces an
// earlier one, and each is audited.
func (m *Manager) OverrideWinner(ctx context.Context, sessionID, winnerID, reason, actorID string) (r models.VoteResult, err error) {
	ctx, span := m.startSpan(ctx, "OverrideWinner", sessionID)
	defer func() { endSpan(span, err) }()

	winnerID = strings.TrimSpace(winnerID)
	reason = strings.TrimSpace(reason)
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return models.VoteResult{}, invalidArgument("actor_id", "actor id is required")
	}
	if reason == "" {
		return models.VoteResult{}, invalidArgument("reason", "an override requires a reason")
	}

	vs, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return models.VoteResult{}, err
	}
	if vs.Status != models.StatusAnnounced {
		return models.VoteResult{}, apperrors.WithMetadata(apperrors.CodeInvalidTransition,
			"results can only be overridden after they are announced", map[string]string{"status": string(vs.Status)})
	}
	if err := validWinner(vs, winnerID); err != nil {
		return models.VoteResult{}, err
	}

	current, err := m.store.GetResult(ctx, sessionID)
	if err != nil {
		return models.VoteResult{}, err
	}
	previous, _ := current.EffectiveWinner()

	payload, err := json.Marshal(overridePayload{PreviousWinner: previous, WinnerID: winnerID})
	if err != nil {
		return models.VoteResult{}, fmt.Errorf("encode audit payload: %w", err)
	}

	override := models.Override{WinnerID: winnerID, Reason: reason, ActorID: actorID, OverriddenAt: m.clock()}
	err = m.store.WithTx(ctx, func(tx store.Store) error {
		if err := tx.PutOverride(ctx, sessionID, override); err != nil {
			return err
		}
		return tx.AppendAuditEntry(ctx, m.auditEntry(sessionID, actorID, models.AuditOverrideWinner, winnerID, payload, reason))
	})
	if err != nil {
		return models.VoteResult{}, err
	}

	slog.Info("winner overridden",
		"session_id", sessionID,
		"previous_winner", previous,
		"winner_id", winnerID,
		"actor_id", actorID,
	)
	m.publish(notify.EventResultOverridden, vs)
	return m.store.GetResult(ctx, sessionID)
}

func validWinner(vs models.VoteSession, winnerID string) error {
	switch vs.Format {
	case models.FormatChoosePerson:
		if vs.HasCandidate(winnerID) {
			return nil
		}
		return invalidArgument("winner_id", "winner must be one of the eligible candidates")
	case models.FormatYesNo:
		if winnerID == string(models.AnswerYes) || winnerID == string(models.AnswerNo) {
			return nil
		}
		return invalidArgument("winner_id", "winner of a yes_no session must be yes or no")
	}
	return invalidArgument("winner_id", "session format has no winner")
}

// runoffCandidates returns who advances from a result, or nil when the
// result decided a winner.
func runoffCandidates(t models.Tally) []string {
	switch o := t.Outcome.(type) {
	case models.Runoff:
		return o.CandidateIDs
	case models.Tie:
		return o.CandidateIDs
	}
	return nil
}

// findRunoff returns the runoff already created from parent, if any.
func (m *Manager) findRunoff(ctx context.Context, parent models.VoteSession) (models.VoteSession, bool, error) {
	siblings, err := m.store.ListSessionsForRun(ctx, parent.RunID)
	if err != nil {
		return models.VoteSession{}, false, err
	}
	for _, s := range siblings {
		if s.ParentSessionID == parent.ID {
			return s, true, nil
		}
	}
	return models.VoteSession{}, false, nil
}

// CreateRunoff opens a follow-up session among the advancing candidates of
// an announced election. Calling it again returns the existing runoff.
func (m *Manager) CreateRunoff(ctx context.Context, parentID, actorID string) (child models.VoteSession, err error) {
	ctx, span := m.startSpan(ctx, "CreateRunoff", parentID)
	defer func() { endSpan(span, err) }()

	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return models.VoteSession{}, invalidArgument("actor_id", "actor id is required")
	}

	parent, err := m.store.GetSession(ctx, parentID)
	if err != nil {
		return models.VoteSession{}, err
	}
	if parent.Status != models.StatusAnnounced {
		return models.VoteSession{}, apperrors.WithMetadata(apperrors.CodeInvalidTransition,
			"a runoff needs an announced result", map[string]string{"status": string(parent.Status)})
	}
	if parent.Format != models.FormatChoosePerson || parent.Mode != models.ModeElection {
		return models.VoteSession{}, invalidArgument("session_id", "runoffs only follow choose_person elections")
	}

	result, err := m.store.GetResult(ctx, parentID)
	if err != nil {
		return models.VoteSession{}, err
	}
	if result.Override != nil {
		return models.VoteSession{}, invalidArgument("session_id", "the result was overridden with a winner")
	}
	candidates := runoffCandidates(result.Tally)
	if len(candidates) == 0 {
		return models.VoteSession{}, invalidArgument("session_id", "the result does not call for a runoff")
	}

	if existing, ok, err := m.findRunoff(ctx, parent); err != nil || ok {
		return existing, err
	}

	cfg := parent.SessionConfig
	cfg.EligibleCandidates = append([]string(nil), candidates...)
	cfg.ParentSessionID = parent.ID
	if cfg.Title != "" {
		cfg.Title += " (runoff)"
	}
	if err := cfg.Validate(); err != nil {
		return models.VoteSession{}, err
	}

	child = models.VoteSession{
		ID:            uuid.NewString(),
		SessionConfig: cfg,
		Status:        models.StatusOpen,
		CreatedBy:     actorID,
		CreatedAt:     m.clock(),
	}
	payload, err := json.Marshal(map[string][]string{"candidates": candidates})
	if err != nil {
		return models.VoteSession{}, fmt.Errorf("encode audit payload: %w", err)
	}

	err = m.store.WithTx(ctx, func(tx store.Store) error {
		if err := tx.PutSession(ctx, child); err != nil {
			return err
		}
		return tx.AppendAuditEntry(ctx, m.auditEntry(parent.ID, actorID, models.AuditCreateRunoff, child.ID, payload, "runoff among "+strings.Join(candidates, ", ")))
	})
	if errors.Is(err, store.ErrRunoffExists) {
		// A concurrent call created it first.
		existing, ok, ferr := m.findRunoff(ctx, parent)
		if ferr != nil {
			return models.VoteSession{}, ferr
		}
		if ok {
			return existing, nil
		}
	}
	if err != nil {
		return models.VoteSession{}, err
	}

	slog.Info("runoff created", "session_id", child.ID, "parent_session_id", parent.ID, "candidates", candidates)
	m.publish(notify.EventRunoffCreated, child)
	return child, nil
}
