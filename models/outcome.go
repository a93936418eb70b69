// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import (
	"encoding/json"
	"fmt"
)

type OutcomeKind string

const (
	OutcomeWinner    OutcomeKind = "winner"
	OutcomePlurality OutcomeKind = "plurality"
	OutcomeTie       OutcomeKind = "tie"
	OutcomeRunoff    OutcomeKind = "runoff"
	OutcomeNominee   OutcomeKind = "nominee"
	OutcomeMotion    OutcomeKind = "motion"
)

// Outcome is the decision part of a tally. The variants below are the only
// implementations.
type Outcome interface {
	Kind() OutcomeKind
	isOutcome()
}

// Winner is a single candidate whose count reached the threshold.
type Winner struct {
	CandidateID string `json:"candidate_id"`
}

// Plurality is a single leader in a session configured without a threshold.
type Plurality struct {
	CandidateID string `json:"candidate_id"`
}

// Tie means the top candidates are level and no runoff applies.
type Tie struct {
	CandidateIDs []string `json:"candidate_ids"`
	ThresholdMet bool     `json:"threshold_met"`
}

// Runoff means no candidate met the threshold. CandidateIDs holds every
// candidate in the two highest count bands.
type Runoff struct {
	CandidateIDs []string `json:"candidate_ids"`
	Tie          bool     `json:"tie"`
}

// Nominee is the outcome of a clan nomination. A nominee is always named;
// TiedWith lists the other candidates sharing the top count.
type Nominee struct {
	CandidateID string   `json:"candidate_id"`
	Tie         bool     `json:"tie"`
	TiedWith    []string `json:"tied_with,omitempty"`
}

// Motion is a yes/no result.
type Motion struct {
	Passed bool `json:"passed"`
}

func (Winner) Kind() OutcomeKind    { return OutcomeWinner }
func (Plurality) Kind() OutcomeKind { return OutcomePlurality }
func (Tie) Kind() OutcomeKind       { return OutcomeTie }
func (Runoff) Kind() OutcomeKind    { return OutcomeRunoff }
func (Nominee) Kind() OutcomeKind   { return OutcomeNominee }
func (Motion) Kind() OutcomeKind    { return OutcomeMotion }

func (Winner) isOutcome()    {}
func (Plurality) isOutcome() {}
func (Tie) isOutcome()       {}
func (Runoff) isOutcome()    {}
func (Nominee) isOutcome()   {}
func (Motion) isOutcome()    {}

// CandidateCount is one row of the per-candidate (or per-answer) breakdown.
type CandidateCount struct {
	CandidateID string  `json:"candidate_id"`
	Count       int     `json:"count"`
	Percent     float64 `json:"percent"`
}

// Tally is the pure output of the tally engine.
//
// For every tally: sum(Counts) + Abstentions + Spoiled == TotalCast, where
// Counts holds candidates for choose_person and yes/no for yes_no.
type Tally struct {
	Format            Format           `json:"format"`
	TotalCast         int              `json:"total_cast"`
	Counts            []CandidateCount `json:"counts"`
	Abstentions       int              `json:"abstentions"`
	Spoiled           int              `json:"spoiled,omitempty"`
	RequiredThreshold *int             `json:"required_threshold,omitempty"`
	Outcome           Outcome          `json:"-"`
}

// Winner returns the decided candidate (or "yes"/"no" for a motion).
func (t Tally) Winner() (string, bool) {
	switch o := t.Outcome.(type) {
	case Winner:
		return o.CandidateID, true
	case Plurality:
		return o.CandidateID, true
	case Nominee:
		return o.CandidateID, true
	case Motion:
		if o.Passed {
			return string(AnswerYes), true
		}
		return string(AnswerNo), true
	}
	return "", false
}

// IsTie reports whether the top two candidates have equal counts.
func (t Tally) IsTie() bool {
	switch o := t.Outcome.(type) {
	case Tie:
		return true
	case Runoff:
		return o.Tie
	case Nominee:
		return o.Tie
	}
	return false
}

// ThresholdMet reports whether the leading count reached the threshold.
func (t Tally) ThresholdMet() bool {
	switch o := t.Outcome.(type) {
	case Winner:
		return true
	case Tie:
		return o.ThresholdMet
	}
	return false
}

// RunoffCandidates returns the advancing candidates, or nil.
func (t Tally) RunoffCandidates() []string {
	if o, ok := t.Outcome.(Runoff); ok {
		return o.CandidateIDs
	}
	return nil
}

// outcomeJSON is the wire envelope for Outcome.
type outcomeJSON struct {
	Kind         OutcomeKind `json:"kind"`
	CandidateID  string      `json:"candidate_id,omitempty"`
	CandidateIDs []string    `json:"candidate_ids,omitempty"`
	TiedWith     []string    `json:"tied_with,omitempty"`
	ThresholdMet bool        `json:"threshold_met,omitempty"`
	Tie          bool        `json:"tie,omitempty"`
	Passed       bool        `json:"passed,omitempty"`
}

type tallyAlias Tally

type tallyJSON struct {
	tallyAlias
	Outcome *outcomeJSON `json:"outcome,omitempty"`
}

// MarshalJSON writes the outcome as a tagged variant.
func (t Tally) MarshalJSON() ([]byte, error) {
	out := tallyJSON{tallyAlias: tallyAlias(t)}
	switch o := t.Outcome.(type) {
	case nil:
	case Winner:
		out.Outcome = &outcomeJSON{Kind: OutcomeWinner, CandidateID: o.CandidateID, ThresholdMet: true}
	case Plurality:
		out.Outcome = &outcomeJSON{Kind: OutcomePlurality, CandidateID: o.CandidateID}
	case Tie:
		out.Outcome = &outcomeJSON{Kind: OutcomeTie, CandidateIDs: o.CandidateIDs, ThresholdMet: o.ThresholdMet}
	case Runoff:
		out.Outcome = &outcomeJSON{Kind: OutcomeRunoff, CandidateIDs: o.CandidateIDs, Tie: o.Tie}
	case Nominee:
		out.Outcome = &outcomeJSON{Kind: OutcomeNominee, CandidateID: o.CandidateID, Tie: o.Tie, TiedWith: o.TiedWith}
	case Motion:
		out.Outcome = &outcomeJSON{Kind: OutcomeMotion, Passed: o.Passed}
	default:
		return nil, fmt.Errorf("unknown outcome type %T", o)
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores the tagged outcome variant.
func (t *Tally) UnmarshalJSON(data []byte) error {
	var in tallyJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*t = Tally(in.tallyAlias)
	if in.Outcome == nil {
		t.Outcome = nil
		return nil
	}
	o := in.Outcome
	switch o.Kind {
	case OutcomeWinner:
		t.Outcome = Winner{CandidateID: o.CandidateID}
	case OutcomePlurality:
		t.Outcome = Plurality{CandidateID: o.CandidateID}
	case OutcomeTie:
		t.Outcome = Tie{CandidateIDs: o.CandidateIDs, ThresholdMet: o.ThresholdMet}
	case OutcomeRunoff:
		t.Outcome = Runoff{CandidateIDs: o.CandidateIDs, Tie: o.Tie}
	case OutcomeNominee:
		t.Outcome = Nominee{CandidateID: o.CandidateID, Tie: o.Tie, TiedWith: o.TiedWith}
	case OutcomeMotion:
		t.Outcome = Motion{Passed: o.Passed}
	default:
		return fmt.Errorf("unknown outcome kind %q", o.Kind)
	}
	return nil
}
