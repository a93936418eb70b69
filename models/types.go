// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import (
	"encoding/json"
	"time"
)

// Status is a session lifecycle state.
type Status string

// Session status constants
const (
	StatusOpen      Status = "open"
	StatusClosed    Status = "closed"
	StatusAnnounced Status = "announced"
)

// rank orders statuses; transitions may only increase it.
func (s Status) rank() int {
	switch s {
	case StatusOpen:
		return 1
	case StatusClosed:
		return 2
	case StatusAnnounced:
		return 3
	}
	return 0
}

func (s Status) Valid() bool { return s.rank() > 0 }

// CanTransitionTo reports whether next is exactly one step forward from s.
func (s Status) CanTransitionTo(next Status) bool {
	return s.Valid() && next.rank() == s.rank()+1
}

type Format string

const (
	FormatChoosePerson Format = "choose_person"
	FormatYesNo        Format = "yes_no"
)

func (f Format) Valid() bool { return f == FormatChoosePerson || f == FormatYesNo }

type Scope string

const (
	ScopeAll      Scope = "all"
	ScopeClanOnly Scope = "clan_only"
)

func (s Scope) Valid() bool { return s == ScopeAll || s == ScopeClanOnly }

// Transparency controls what participants can see. It never changes what is
// computed.
type Transparency string

const (
	TransparencyOpen      Transparency = "open"
	TransparencyAnonymous Transparency = "anonymous"
	TransparencySecret    Transparency = "secret"
)

func (t Transparency) Valid() bool {
	return t == TransparencyOpen || t == TransparencyAnonymous || t == TransparencySecret
}

// Mode distinguishes a regular election from a clan nomination, which always
// names a nominee and has no threshold or runoff.
type Mode string

const (
	ModeElection       Mode = "election"
	ModeClanNomination Mode = "clan_nomination"
)

func (m Mode) Valid() bool { return m == ModeElection || m == ModeClanNomination }

type Answer string

const (
	AnswerYes     Answer = "yes"
	AnswerNo      Answer = "no"
	AnswerAbstain Answer = "abstain"
)

func (a Answer) Valid() bool { return a == AnswerYes || a == AnswerNo || a == AnswerAbstain }

type ThresholdKind string

const (
	ThresholdCount    ThresholdKind = "count"
	ThresholdFraction ThresholdKind = "fraction"
)

// Threshold is the minimum support a choose_person candidate needs to win
// outright. Fraction thresholds are resolved against the session voter base.
type Threshold struct {
	Kind  ThresholdKind `json:"kind" yaml:"kind"`
	Value float64       `json:"value" yaml:"value"`
}

// SessionConfig is everything an operator supplies when creating a session.
type SessionConfig struct {
	RunID              string       `json:"run_id" yaml:"run_id"`
	PhaseID            string       `json:"phase_id" yaml:"phase_id"`
	Title              string       `json:"title,omitempty" yaml:"title"`
	Format             Format       `json:"format" yaml:"format"`
	Mode               Mode         `json:"mode,omitempty" yaml:"mode"`
	Scope              Scope        `json:"scope" yaml:"scope"`
	ScopeClanID        string       `json:"scope_clan_id,omitempty" yaml:"scope_clan_id"`
	Transparency       Transparency `json:"transparency,omitempty" yaml:"transparency"`
	EligibleCandidates []string     `json:"eligible_candidates,omitempty" yaml:"eligible_candidates"`
	Threshold          *Threshold   `json:"threshold,omitempty" yaml:"threshold"`
	VoterBase          *int         `json:"voter_base,omitempty" yaml:"voter_base"`
	ParentSessionID    string       `json:"parent_session_id,omitempty" yaml:"-"`
}

// VoteSession is one instance of a vote being collected and resolved.
type VoteSession struct {
	ID string `json:"id"`
	SessionConfig
	Status      Status     `json:"status"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
	AnnouncedAt *time.Time `json:"announced_at,omitempty"`
	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Started reports whether the operator has started voting.
func (s VoteSession) Started() bool { return s.StartedAt != nil }

// AcceptingVotes reports whether ballots may be cast right now.
func (s VoteSession) AcceptingVotes() bool {
	return s.Status == StatusOpen && s.Started()
}

// HasCandidate reports whether id is in the eligible candidate set.
func (s VoteSession) HasCandidate(id string) bool {
	for _, c := range s.EligibleCandidates {
		if c == id {
			return true
		}
	}
	return false
}

// Choice is a ballot payload. choose_person ballots carry a CandidateID, or
// an abstain Answer; yes_no ballots carry an Answer only.
type Choice struct {
	CandidateID string `json:"candidate_id,omitempty"`
	Answer      Answer `json:"answer,omitempty"`
}

// Vote is a single cast ballot.
type Vote struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	VoterID     string    `json:"voter_id"`
	VoterClanID string    `json:"voter_clan_id,omitempty"`
	Choice      Choice    `json:"choice"`
	CastBy      string    `json:"cast_by,omitempty"` // operator id when cast on behalf
	CastAt      time.Time `json:"cast_at"`
}

// Override is an operator-asserted replacement of the computed winner.
type Override struct {
	WinnerID     string    `json:"winner_id"`
	Reason       string    `json:"reason"`
	ActorID      string    `json:"actor_id"`
	OverriddenAt time.Time `json:"overridden_at"`
}

// VoteResult is the persisted outcome of a session. Tally is only ever
// produced by package tally; Override sits alongside it.
type VoteResult struct {
	SessionID  string    `json:"session_id"`
	Tally      Tally     `json:"tally"`
	InputsHash string    `json:"inputs_hash"` // Hash of all vote IDs for verification
	ComputedAt time.Time `json:"computed_at"`
	Override   *Override `json:"override,omitempty"`
}

// EffectiveWinner returns the override winner when present, else the
// computed one.
func (r VoteResult) EffectiveWinner() (string, bool) {
	if r.Override != nil {
		return r.Override.WinnerID, true
	}
	return r.Tally.Winner()
}

type AuditAction string

const (
	AuditOverrideWinner AuditAction = "override_winner"
	AuditVoteOnBehalf   AuditAction = "vote_on_behalf"
	AuditCreateRunoff   AuditAction = "create_runoff"
)

// AuditEntry is one append-only record of an operator action.
type AuditEntry struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	Seq       int64           `json:"seq"`
	ActorID   string          `json:"actor_id"`
	Action    AuditAction     `json:"action"`
	TargetID  string          `json:"target_id"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Reason    string          `json:"reason"`
	CreatedAt time.Time       `json:"created_at"`
}

// Participant is a recognized voter of a run.
type Participant struct {
	RunID       string    `json:"run_id" yaml:"-"`
	VoterID     string    `json:"voter_id" yaml:"voter_id"`
	ClanID      string    `json:"clan_id,omitempty" yaml:"clan_id"`
	DisplayName string    `json:"display_name,omitempty" yaml:"display_name"`
	CreatedAt   time.Time `json:"created_at" yaml:"-"`
}

// RevealAck records that a voter has seen an announced result.
type RevealAck struct {
	SessionID      string    `json:"session_id"`
	VoterID        string    `json:"voter_id"`
	AcknowledgedAt time.Time `json:"acknowledged_at"`
}
