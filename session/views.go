// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package session

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"github.com/danielhkuo/tallyhall/apperrors"
	"github.com/danielhkuo/tallyhall/eligibility"
	"github.com/danielhkuo/tallyhall/models"
)

// storedResult returns the result or nil when none has been computed yet.
func (m *Manager) storedResult(ctx context.Context, sessionID string) (*models.VoteResult, error) {
	r, err := m.store.GetResult(ctx, sessionID)
	if errors.Is(err, apperrors.ErrResultNotYetComputed) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// AdminView returns everything about a session, including every ballot.
func (m *Manager) AdminView(ctx context.Context, sessionID string) (models.SessionAdminView, error) {
	vs, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return models.SessionAdminView{}, err
	}
	votes, err := m.store.GetVotesForSession(ctx, sessionID)
	if err != nil {
		return models.SessionAdminView{}, err
	}
	result, err := m.storedResult(ctx, sessionID)
	if err != nil {
		return models.SessionAdminView{}, err
	}
	return models.SessionAdminView{Session: vs, Votes: votes, Result: result}, nil
}

// ParticipantView returns what voterID may see of a session. Transparency
// only changes what is exposed, never what is computed:
//   - results are hidden from everyone until announced
//   - secret sessions also hide the ballot count until announced
//   - open sessions list who voted for what once announced
func (m *Manager) ParticipantView(ctx context.Context, sessionID, voterID string) (view models.SessionParticipantView, err error) {
	ctx, span := m.startSpan(ctx, "ParticipantView", sessionID)
	defer func() { endSpan(span, err) }()

	vs, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return models.SessionParticipantView{}, err
	}
	view.Session = vs

	p, registered, err := m.store.GetParticipant(ctx, vs.RunID, voterID)
	if err != nil {
		return models.SessionParticipantView{}, err
	}
	view.Eligible = eligibility.IsEligible(vs, eligibility.Voter{ID: voterID, GroupID: p.ClanID, Registered: registered})

	_, view.HasVoted, err = m.store.GetVote(ctx, sessionID, voterID)
	if err != nil {
		return models.SessionParticipantView{}, err
	}

	announced := vs.Status == models.StatusAnnounced
	if announced || vs.Transparency != models.TransparencySecret {
		count, err := m.store.CountVotes(ctx, sessionID)
		if err != nil {
			return models.SessionParticipantView{}, err
		}
		view.BallotCount = &count
	}
	if !announced {
		return view, nil
	}

	if view.Result, err = m.storedResult(ctx, sessionID); err != nil {
		return models.SessionParticipantView{}, err
	}
	_, view.Acknowledged, err = m.store.GetAcknowledgement(ctx, sessionID, voterID)
	if err != nil {
		return models.SessionParticipantView{}, err
	}

	if vs.Transparency == models.TransparencyOpen {
		votes, err := m.store.GetVotesForSession(ctx, sessionID)
		if err != nil {
			return models.SessionParticipantView{}, err
		}
		view.VoterChoices = make([]models.VoterChoice, 0, len(votes))
		for _, v := range votes {
			view.VoterChoices = append(view.VoterChoices, models.VoterChoice{VoterID: v.VoterID, Choice: v.Choice})
		}
		sort.Slice(view.VoterChoices, func(i, j int) bool {
			return view.VoterChoices[i].VoterID < view.VoterChoices[j].VoterID
		})
	}
	return view, nil
}

// AcknowledgeReveal records that a voter has seen the announced result.
// Repeat calls keep the first acknowledgement time.
func (m *Manager) AcknowledgeReveal(ctx context.Context, sessionID, voterID string) (ack models.RevealAck, err error) {
	ctx, span := m.startSpan(ctx, "AcknowledgeReveal", sessionID)
	defer func() { endSpan(span, err) }()

	voterID = strings.TrimSpace(voterID)
	if voterID == "" {
		return models.RevealAck{}, invalidArgument("voter_id", "voter id is required")
	}

	vs, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return models.RevealAck{}, err
	}
	if vs.Status != models.StatusAnnounced {
		return models.RevealAck{}, apperrors.WithMetadata(apperrors.CodeInvalidTransition,
			"only announced results can be acknowledged", map[string]string{"status": string(vs.Status)})
	}
	_, registered, err := m.store.GetParticipant(ctx, vs.RunID, voterID)
	if err != nil {
		return models.RevealAck{}, err
	}
	if !registered {
		return models.RevealAck{}, apperrors.WithMetadata(apperrors.CodeVoterIneligible,
			"voter is not a participant of run "+vs.RunID, map[string]string{"voter_id": voterID})
	}

	err = m.store.PutAcknowledgement(ctx, models.RevealAck{SessionID: sessionID, VoterID: voterID, AcknowledgedAt: m.clock()})
	if err != nil {
		return models.RevealAck{}, err
	}
	ack, ok, err := m.store.GetAcknowledgement(ctx, sessionID, voterID)
	if err != nil {
		return models.RevealAck{}, err
	}
	if !ok {
		return models.RevealAck{}, apperrors.New(apperrors.CodeStorageUnavailable, "acknowledgement missing after write")
	}
	slog.Debug("reveal acknowledged", "session_id", sessionID, "voter_id", voterID)
	return ack, nil
}

func (m *Manager) ListAcknowledgements(ctx context.Context, sessionID string) ([]models.RevealAck, error) {
	if _, err := m.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return m.store.ListAcknowledgements(ctx, sessionID)
}
