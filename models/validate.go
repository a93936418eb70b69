// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import (
	"math"
	"strings"

	"github.com/danielhkuo/tallyhall/apperrors"
)

// Normalize trims ids and fills defaults for optional fields.
func (c *SessionConfig) Normalize() {
	c.RunID = strings.TrimSpace(c.RunID)
	c.PhaseID = strings.TrimSpace(c.PhaseID)
	c.ScopeClanID = strings.TrimSpace(c.ScopeClanID)
	if c.Mode == "" {
		c.Mode = ModeElection
	}
	if c.Transparency == "" {
		c.Transparency = TransparencyOpen
	}
	for i, id := range c.EligibleCandidates {
		c.EligibleCandidates[i] = strings.TrimSpace(id)
	}
}

func misconfigured(field, message string) error {
	return apperrors.WithMetadata(apperrors.CodeMisconfiguredSession, message, map[string]string{"field": field})
}

// Validate checks the format, scope and candidate invariants of a session
// config. Every failure is MISCONFIGURED_SESSION.
func (c SessionConfig) Validate() error {
	if c.RunID == "" {
		return misconfigured("run_id", "run_id is required")
	}
	if c.PhaseID == "" {
		return misconfigured("phase_id", "phase_id is required")
	}
	if !c.Format.Valid() {
		return misconfigured("format", "format must be one of: choose_person, yes_no")
	}
	if !c.Scope.Valid() {
		return misconfigured("scope", "scope must be one of: all, clan_only")
	}
	if !c.Transparency.Valid() {
		return misconfigured("transparency", "transparency must be one of: open, anonymous, secret")
	}
	if !c.Mode.Valid() {
		return misconfigured("mode", "mode must be one of: election, clan_nomination")
	}

	// scope_clan_id present iff clan_only
	if c.Scope == ScopeClanOnly && c.ScopeClanID == "" {
		return misconfigured("scope_clan_id", "scope_clan_id is required for clan_only sessions")
	}
	if c.Scope != ScopeClanOnly && c.ScopeClanID != "" {
		return misconfigured("scope_clan_id", "scope_clan_id is only allowed for clan_only sessions")
	}

	// eligible_candidates present iff choose_person
	if c.Format == FormatChoosePerson {
		if len(c.EligibleCandidates) == 0 {
			return misconfigured("eligible_candidates", "eligible_candidates must not be empty for choose_person sessions")
		}
		seen := make(map[string]bool, len(c.EligibleCandidates))
		for _, id := range c.EligibleCandidates {
			if id == "" {
				return misconfigured("eligible_candidates", "candidate ids must not be empty")
			}
			if seen[id] {
				return misconfigured("eligible_candidates", "duplicate candidate id "+id)
			}
			seen[id] = true
		}
	} else if len(c.EligibleCandidates) > 0 {
		return misconfigured("eligible_candidates", "eligible_candidates is only allowed for choose_person sessions")
	}

	if c.Mode == ModeClanNomination {
		if c.Format != FormatChoosePerson || c.Scope != ScopeClanOnly {
			return misconfigured("mode", "clan_nomination requires choose_person format and clan_only scope")
		}
		if c.Threshold != nil {
			return misconfigured("threshold", "clan_nomination does not use a threshold")
		}
	}

	if c.VoterBase != nil && *c.VoterBase <= 0 {
		return misconfigured("voter_base", "voter_base must be positive")
	}
	if c.Threshold != nil {
		if c.Format != FormatChoosePerson {
			return misconfigured("threshold", "threshold is only allowed for choose_person sessions")
		}
		if _, err := c.Threshold.Required(c.VoterBase); err != nil {
			return err
		}
	}
	return nil
}

// Required resolves the threshold to a minimum vote count.
func (t Threshold) Required(voterBase *int) (int, error) {
	switch t.Kind {
	case ThresholdCount:
		if t.Value <= 0 || t.Value != math.Trunc(t.Value) {
			return 0, misconfigured("threshold", "count threshold must be a positive whole number")
		}
		return int(t.Value), nil
	case ThresholdFraction:
		if t.Value <= 0 || t.Value > 1 {
			return 0, misconfigured("threshold", "fraction threshold must be in (0, 1]")
		}
		if voterBase == nil || *voterBase <= 0 {
			return 0, misconfigured("voter_base", "fraction threshold requires a numeric voter_base")
		}
		// epsilon keeps 0.6*10 from rounding up to 7
		return int(math.Ceil(t.Value*float64(*voterBase) - 1e-9)), nil
	}
	return 0, misconfigured("threshold", "threshold kind must be one of: count, fraction")
}

func malformed(message string) error {
	return apperrors.New(apperrors.CodeMalformedBallot, message)
}

// ValidateChoice checks that a payload matches the session format exactly.
// Candidate membership is checked separately by the eligibility resolver.
func ValidateChoice(format Format, c Choice) error {
	switch format {
	case FormatChoosePerson:
		hasCandidate := c.CandidateID != ""
		hasAnswer := c.Answer != ""
		if hasCandidate == hasAnswer {
			return malformed("choose_person ballots carry exactly one of candidate_id or answer=abstain")
		}
		if hasAnswer && c.Answer != AnswerAbstain {
			return malformed("choose_person ballots only accept answer=abstain")
		}
		return nil
	case FormatYesNo:
		if c.CandidateID != "" {
			return malformed("yes_no ballots must not carry candidate_id")
		}
		if !c.Answer.Valid() {
			return malformed("answer must be one of: yes, no, abstain")
		}
		return nil
	}
	return malformed("unknown session format")
}
