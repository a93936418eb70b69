// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

// Request types

type CreateSessionRequest = SessionConfig

type CastVoteRequest struct {
	Choice
}

type VoteOnBehalfRequest struct {
	VoterID string `json:"voter_id"`
	Choice  Choice `json:"choice"`
	Reason  string `json:"reason"`
}

type OverrideWinnerRequest struct {
	WinnerID string `json:"winner_id"`
	Reason   string `json:"reason"`
}

type RegisterParticipantRequest struct {
	VoterID     string `json:"voter_id"`
	ClanID      string `json:"clan_id"`
	DisplayName string `json:"display_name"`
}

// Response types

type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
}

type CastVoteResponse struct {
	VoteID  string `json:"vote_id"`
	Message string `json:"message"`
}

type RegisterParticipantResponse struct {
	Participant Participant `json:"participant"`
	Token       string      `json:"token"`
}

type CloseSessionResponse struct {
	Session VoteSession `json:"session"`
	Result  *VoteResult `json:"result,omitempty"`
}

type CreateRunoffResponse struct {
	SessionID  string   `json:"session_id"`
	Candidates []string `json:"candidates"`
}

// SessionAdminView is the operator view: everything, including ballots.
type SessionAdminView struct {
	Session VoteSession `json:"session"`
	Votes   []Vote      `json:"votes"`
	Result  *VoteResult `json:"result,omitempty"`
}

// VoterChoice is a voter's ballot as exposed by open-transparency sessions.
type VoterChoice struct {
	VoterID string `json:"voter_id"`
	Choice  Choice `json:"choice"`
}

// SessionParticipantView is what a voter may see, filtered by transparency
// and lifecycle status.
type SessionParticipantView struct {
	Session      VoteSession   `json:"session"`
	Eligible     bool          `json:"eligible"`
	HasVoted     bool          `json:"has_voted"`
	BallotCount  *int          `json:"ballot_count,omitempty"`
	Result       *VoteResult   `json:"result,omitempty"`
	VoterChoices []VoterChoice `json:"voter_choices,omitempty"`
	Acknowledged bool          `json:"acknowledged"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}
