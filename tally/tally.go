// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tally

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"sort"

	"github.com/danielhkuo/tallyhall/apperrors"
	"github.com/danielhkuo/tallyhall/models"
)

// Compute tallies votes for a session.
func Compute(session models.VoteSession, votes []models.Vote) (models.Tally, error) {
	switch session.Format {
	case models.FormatChoosePerson:
		return computeChoosePerson(session, votes)
	case models.FormatYesNo:
		return computeYesNo(votes), nil
	}
	return models.Tally{}, apperrors.New(apperrors.CodeMisconfiguredSession, "unknown session format "+string(session.Format))
}

func computeChoosePerson(session models.VoteSession, votes []models.Vote) (models.Tally, error) {
	if len(session.EligibleCandidates) == 0 {
		return models.Tally{}, apperrors.New(apperrors.CodeMisconfiguredSession, "eligible_candidates is empty")
	}

	var required *int
	if session.Threshold != nil && session.Mode != models.ModeClanNomination {
		n, err := session.Threshold.Required(session.VoterBase)
		if err != nil {
			return models.Tally{}, err
		}
		required = &n
	}

	counts := make(map[string]int, len(session.EligibleCandidates))
	for _, id := range session.EligibleCandidates {
		counts[id] = 0
	}

	t := models.Tally{
		Format:            models.FormatChoosePerson,
		TotalCast:         len(votes),
		RequiredThreshold: required,
	}
	for _, v := range votes {
		if v.Choice.CandidateID == "" {
			t.Abstentions++
			continue
		}
		if _, ok := counts[v.Choice.CandidateID]; !ok {
			// Only reachable when ballots bypass the resolver.
			t.Spoiled++
			continue
		}
		counts[v.Choice.CandidateID]++
	}

	t.Counts = rankCounts(counts, t.TotalCast)

	if session.Mode == models.ModeClanNomination {
		t.Outcome = nominate(t.Counts)
	} else {
		t.Outcome = decide(t.Counts, required)
	}
	return t, nil
}

// rankCounts orders candidates by count descending, then id ascending.
func rankCounts(counts map[string]int, total int) []models.CandidateCount {
	ranked := make([]models.CandidateCount, 0, len(counts))
	for id, n := range counts {
		ranked = append(ranked, models.CandidateCount{
			CandidateID: id,
			Count:       n,
			Percent:     percent(n, total),
		})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].CandidateID < ranked[j].CandidateID
	})
	return ranked
}

// decide resolves an election from ranked counts.
func decide(ranked []models.CandidateCount, required *int) models.Outcome {
	leaders := band(ranked, ranked[0].Count)
	tie := len(leaders) > 1

	if required == nil {
		if tie {
			return models.Tie{CandidateIDs: leaders}
		}
		return models.Plurality{CandidateID: leaders[0]}
	}

	if ranked[0].Count >= *required {
		if tie {
			return models.Tie{CandidateIDs: leaders, ThresholdMet: true}
		}
		return models.Winner{CandidateID: leaders[0]}
	}

	// Everyone in the top two distinct count bands advances. Candidates
	// nobody voted for never join the leaders.
	advancing := append([]string{}, leaders...)
	for _, c := range ranked {
		if c.Count < ranked[0].Count {
			if c.Count > 0 {
				advancing = append(advancing, band(ranked, c.Count)...)
			}
			break
		}
	}
	return models.Runoff{CandidateIDs: advancing, Tie: tie}
}

// nominate always names a candidate; ties resolve to the lowest id.
func nominate(ranked []models.CandidateCount) models.Outcome {
	leaders := band(ranked, ranked[0].Count)
	n := models.Nominee{CandidateID: leaders[0], Tie: len(leaders) > 1}
	if n.Tie {
		n.TiedWith = leaders[1:]
	}
	return n
}

// band returns the ids of all ranked candidates with exactly count votes, in
// ranked order.
func band(ranked []models.CandidateCount, count int) []string {
	var ids []string
	for _, c := range ranked {
		if c.Count == count {
			ids = append(ids, c.CandidateID)
		}
	}
	return ids
}

func computeYesNo(votes []models.Vote) models.Tally {
	var yes, no, abstain, spoiled int
	for _, v := range votes {
		switch v.Choice.Answer {
		case models.AnswerYes:
			yes++
		case models.AnswerNo:
			no++
		case models.AnswerAbstain:
			abstain++
		default:
			spoiled++
		}
	}
	total := len(votes)
	return models.Tally{
		Format:    models.FormatYesNo,
		TotalCast: total,
		Counts: []models.CandidateCount{
			{CandidateID: string(models.AnswerYes), Count: yes, Percent: percent(yes, total)},
			{CandidateID: string(models.AnswerNo), Count: no, Percent: percent(no, total)},
		},
		Abstentions: abstain,
		Spoiled:     spoiled,
		Outcome:     models.Motion{Passed: yes > no},
	}
}

// percent of total, rounded to two decimals.
func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(n)*10000/float64(total)) / 100
}

// InputsHash fingerprints a vote set independent of its order.
func InputsHash(votes []models.Vote) string {
	ids := make([]string, len(votes))
	for i, v := range votes {
		ids[i] = v.ID
	}
	sort.Strings(ids)

	h := sha256.New()
	for _, id := range ids {
		h.Write([]byte(id))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
