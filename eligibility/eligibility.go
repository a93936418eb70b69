// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package eligibility decides whether a voter may vote in a session and
// whether a chosen candidate is on the ballot. It performs no I/O; callers
// resolve run membership first and pass it in.
package eligibility

import (
	"github.com/danielhkuo/tallyhall/apperrors"
	"github.com/danielhkuo/tallyhall/models"
)

// Voter identifies who is casting a ballot.
type Voter struct {
	ID      string
	GroupID string
	// Registered is true when ID is a recognized participant of the session's run.
	Registered bool
}

// IsEligible reports whether voter falls inside the session scope.
func IsEligible(session models.VoteSession, voter Voter) bool {
	if voter.ID == "" {
		return false
	}
	switch session.Scope {
	case models.ScopeAll:
		return voter.Registered
	case models.ScopeClanOnly:
		return voter.GroupID != "" && voter.GroupID == session.ScopeClanID
	}
	return false
}

// CandidateAllowed reports whether a choice only names candidates on the
// ballot. Abstentions and yes/no answers name no candidate.
func CandidateAllowed(session models.VoteSession, choice models.Choice) bool {
	if choice.CandidateID == "" {
		return true
	}
	return session.Format == models.FormatChoosePerson && session.HasCandidate(choice.CandidateID)
}

// CheckVoter returns VOTER_INELIGIBLE when IsEligible is false.
func CheckVoter(session models.VoteSession, voter Voter) error {
	if IsEligible(session, voter) {
		return nil
	}
	meta := map[string]string{"voter_id": voter.ID, "scope": string(session.Scope)}
	if session.Scope == models.ScopeClanOnly {
		return apperrors.WithMetadata(apperrors.CodeVoterIneligible, "voter is not in clan "+session.ScopeClanID, meta)
	}
	return apperrors.WithMetadata(apperrors.CodeVoterIneligible, "voter is not a participant of run "+session.RunID, meta)
}

// CheckCandidate returns MALFORMED_BALLOT when the choice names a candidate
// outside the eligible set.
func CheckCandidate(session models.VoteSession, choice models.Choice) error {
	if CandidateAllowed(session, choice) {
		return nil
	}
	return apperrors.WithMetadata(apperrors.CodeMalformedBallot,
		"candidate "+choice.CandidateID+" is not eligible in this session",
		map[string]string{"candidate_id": choice.CandidateID})
}
