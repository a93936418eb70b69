// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/danielhkuo/tallyhall/apperrors"
	"github.com/danielhkuo/tallyhall/models"
	"github.com/danielhkuo/tallyhall/notify"
	"github.com/danielhkuo/tallyhall/store"
	"github.com/danielhkuo/tallyhall/testutil"
)

const testRun = "run-1"

type recorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recorder) Publish(e notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) count(kind notify.EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type harness struct {
	mgr    *Manager
	store  *store.SQLStore
	events *recorder
	clock  *fakeClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:  testutil.NewTestStore(t),
		events: &recorder{},
		clock:  &fakeClock{t: time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)},
	}
	h.mgr = NewManager(h.store, WithNotifier(h.events), WithClock(h.clock.Now))
	return h
}

// register adds voters to the run, all in clan.
func (h *harness) register(t *testing.T, clan string, voterIDs ...string) {
	t.Helper()
	for _, id := range voterIDs {
		testutil.CreateTestParticipant(t, h.store, testRun, id, clan)
	}
}

// open creates and starts a session.
func (h *harness) open(t *testing.T, cfg models.SessionConfig) models.VoteSession {
	t.Helper()
	ctx := context.Background()
	vs, err := h.mgr.CreateSession(ctx, cfg, "op-1")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	vs, err = h.mgr.StartVoting(ctx, vs.ID)
	if err != nil {
		t.Fatalf("StartVoting() error = %v", err)
	}
	return vs
}

// castCounts registers fresh voters and casts the given number of ballots
// for each candidate.
func (h *harness) castCounts(t *testing.T, sessionID string, counts map[string]int) {
	t.Helper()
	ctx := context.Background()
	for candidate, n := range counts {
		for i := 0; i < n; i++ {
			voter := fmt.Sprintf("voter-%s-%d", candidate, i)
			h.register(t, "", voter)
			if _, err := h.mgr.CastVote(ctx, sessionID, voter, "", models.Choice{CandidateID: candidate}); err != nil {
				t.Fatalf("CastVote(%s) error = %v", voter, err)
			}
		}
	}
}

func assertCode(t *testing.T, err error, want apperrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil", want)
	}
	if got := apperrors.CodeOf(err); got != want {
		t.Fatalf("expected %s, got %s (%v)", want, got, err)
	}
}

func countThreshold(n float64) *models.Threshold {
	return &models.Threshold{Kind: models.ThresholdCount, Value: n}
}

func TestCreateSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	base := testutil.YesNo(testRun)

	tests := []struct {
		name    string
		cfg     func() models.SessionConfig
		wantErr apperrors.Code
	}{
		{"valid yes_no", func() models.SessionConfig { return base }, ""},
		{"valid choose_person", func() models.SessionConfig { return testutil.ChoosePerson(testRun, "A", "B") }, ""},
		{"choose_person without candidates", func() models.SessionConfig {
			return testutil.ChoosePerson(testRun)
		}, apperrors.CodeMisconfiguredSession},
		{"clan_only without clan", func() models.SessionConfig {
			c := base
			c.Scope = models.ScopeClanOnly
			return c
		}, apperrors.CodeMisconfiguredSession},
		{"fraction threshold without voter base", func() models.SessionConfig {
			c := testutil.ChoosePerson(testRun, "A", "B")
			c.Threshold = &models.Threshold{Kind: models.ThresholdFraction, Value: 0.5}
			return c
		}, apperrors.CodeMisconfiguredSession},
		{"candidates on yes_no", func() models.SessionConfig {
			c := base
			c.EligibleCandidates = []string{"A"}
			return c
		}, apperrors.CodeMisconfiguredSession},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vs, err := h.mgr.CreateSession(ctx, tt.cfg(), "op-1")
			if tt.wantErr != "" {
				assertCode(t, err, tt.wantErr)
				return
			}
			if err != nil {
				t.Fatalf("CreateSession() error = %v", err)
			}
			if vs.Status != models.StatusOpen || vs.Started() {
				t.Errorf("expected open unstarted session, got status=%s started=%v", vs.Status, vs.Started())
			}
			if vs.Mode != models.ModeElection || vs.Transparency != models.TransparencyOpen {
				t.Errorf("expected defaults, got mode=%s transparency=%s", vs.Mode, vs.Transparency)
			}
			stored, err := h.mgr.GetSession(ctx, vs.ID)
			if err != nil {
				t.Fatalf("GetSession() error = %v", err)
			}
			if diff := cmp.Diff(vs.SessionConfig, stored.SessionConfig); diff != "" {
				t.Errorf("stored config mismatch (-want +got):\n%s", diff)
			}
		})
	}

	if _, err := h.mgr.CreateSession(ctx, base, " "); err == nil {
		t.Error("expected error without actor")
	}
	if got := h.events.count(notify.EventSessionCreated); got != 2 {
		t.Errorf("expected 2 session_created events, got %d", got)
	}
}

func TestStartVotingIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	vs := h.open(t, testutil.YesNo(testRun))
	first := *vs.StartedAt

	h.clock.Advance(time.Minute)
	again, err := h.mgr.StartVoting(ctx, vs.ID)
	if err != nil {
		t.Fatalf("second StartVoting() error = %v", err)
	}
	if !again.StartedAt.Equal(first) {
		t.Errorf("start marker moved from %s to %s", first, again.StartedAt)
	}
	if got := h.events.count(notify.EventVotingStarted); got != 1 {
		t.Errorf("expected 1 voting_started event, got %d", got)
	}

	if _, _, err := h.mgr.CloseSession(ctx, vs.ID); err != nil {
		t.Fatal(err)
	}
	_, err = h.mgr.StartVoting(ctx, vs.ID)
	assertCode(t, err, apperrors.CodeInvalidTransition)

	_, err = h.mgr.StartVoting(ctx, "missing")
	assertCode(t, err, apperrors.CodeSessionNotFound)
}

func TestCastVotePrecedence(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.register(t, "wolves", "alice", "bob")
	h.register(t, "owls", "carol")

	election := h.open(t, testutil.ChoosePerson(testRun, "A", "B"))

	unstarted, err := h.mgr.CreateSession(ctx, testutil.YesNo(testRun), "op-1")
	if err != nil {
		t.Fatal(err)
	}

	closed := h.open(t, testutil.YesNo(testRun))
	if _, _, err := h.mgr.CloseSession(ctx, closed.ID); err != nil {
		t.Fatal(err)
	}

	clanCfg := testutil.YesNo(testRun)
	clanCfg.Scope = models.ScopeClanOnly
	clanCfg.ScopeClanID = "wolves"
	clan := h.open(t, clanCfg)

	if _, err := h.mgr.CastVote(ctx, election.ID, "bob", "", models.Choice{CandidateID: "A"}); err != nil {
		t.Fatalf("setup vote failed: %v", err)
	}

	yes := models.Choice{Answer: models.AnswerYes}

	tests := []struct {
		name      string
		sessionID string
		voterID   string
		groupID   string
		choice    models.Choice
		want      apperrors.Code
	}{
		{"missing session", "nope", "alice", "", yes, apperrors.CodeSessionNotAcceptingVotes},
		{"not started", unstarted.ID, "alice", "", yes, apperrors.CodeSessionNotAcceptingVotes},
		{"closed", closed.ID, "alice", "", yes, apperrors.CodeSessionNotAcceptingVotes},
		{"not started beats ineligible", unstarted.ID, "stranger", "", models.Choice{}, apperrors.CodeSessionNotAcceptingVotes},
		{"unregistered voter", election.ID, "stranger", "", models.Choice{CandidateID: "A"}, apperrors.CodeVoterIneligible},
		{"ineligible beats malformed", clan.ID, "carol", "", models.Choice{}, apperrors.CodeVoterIneligible},
		{"both fields", election.ID, "alice", "", models.Choice{CandidateID: "A", Answer: models.AnswerYes}, apperrors.CodeMalformedBallot},
		{"empty choice", election.ID, "alice", "", models.Choice{}, apperrors.CodeMalformedBallot},
		{"candidate on yes_no", clan.ID, "alice", "", models.Choice{CandidateID: "A"}, apperrors.CodeMalformedBallot},
		{"non-member candidate", election.ID, "alice", "", models.Choice{CandidateID: "Z"}, apperrors.CodeMalformedBallot},
		{"malformed beats duplicate", election.ID, "bob", "", models.Choice{CandidateID: "Z"}, apperrors.CodeMalformedBallot},
		{"duplicate", election.ID, "bob", "", models.Choice{CandidateID: "B"}, apperrors.CodeDuplicateVote},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.mgr.CastVote(ctx, tt.sessionID, tt.voterID, tt.groupID, tt.choice)
			assertCode(t, err, tt.want)
		})
	}

	// The duplicate attempt must not have replaced bob's ballot
	v, ok, err := h.store.GetVote(ctx, election.ID, "bob")
	if err != nil || !ok {
		t.Fatalf("GetVote() = %v, %v", ok, err)
	}
	if v.Choice.CandidateID != "A" {
		t.Errorf("ballot was overwritten: %+v", v.Choice)
	}
}

func TestScopeEnforcement(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.register(t, "wolves", "alice")
	h.register(t, "owls", "carol")

	clanCfg := testutil.YesNo(testRun)
	clanCfg.Scope = models.ScopeClanOnly
	clanCfg.ScopeClanID = "wolves"
	clan := h.open(t, clanCfg)
	all := h.open(t, testutil.YesNo(testRun))

	yes := models.Choice{Answer: models.AnswerYes}

	_, err := h.mgr.CastVote(ctx, clan.ID, "carol", "owls", yes)
	assertCode(t, err, apperrors.CodeVoterIneligible)

	if _, err := h.mgr.CastVote(ctx, all.ID, "carol", "owls", yes); err != nil {
		t.Errorf("scope=all should accept carol: %v", err)
	}
	if _, err := h.mgr.CastVote(ctx, clan.ID, "alice", "wolves", yes); err != nil {
		t.Errorf("clan member should be accepted: %v", err)
	}

	// The registry is authoritative for registered voters
	_, err = h.mgr.CastVote(ctx, clan.ID, "carol", "wolves", yes)
	assertCode(t, err, apperrors.CodeVoterIneligible)

	// Unregistered voters are judged on the group they present
	if _, err := h.mgr.CastVote(ctx, clan.ID, "guest", "wolves", yes); err != nil {
		t.Errorf("clan_only should accept an unregistered wolves voter: %v", err)
	}

	v, ok, err := h.store.GetVote(ctx, clan.ID, "alice")
	if err != nil || !ok {
		t.Fatalf("GetVote() = %v, %v", ok, err)
	}
	if v.VoterClanID != "wolves" {
		t.Errorf("expected voter clan recorded, got %q", v.VoterClanID)
	}
}

func TestLifecycleMonotonicity(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.register(t, "", "alice", "bob")

	vs := h.open(t, testutil.YesNo(testRun))
	if _, err := h.mgr.CastVote(ctx, vs.ID, "alice", "", models.Choice{Answer: models.AnswerYes}); err != nil {
		t.Fatal(err)
	}

	if _, err := h.mgr.AnnounceResult(ctx, vs.ID); apperrors.CodeOf(err) != apperrors.CodeInvalidTransition {
		t.Errorf("announce while open: expected INVALID_TRANSITION, got %v", err)
	}

	closed, result, err := h.mgr.CloseSession(ctx, vs.ID)
	if err != nil {
		t.Fatalf("CloseSession() error = %v", err)
	}
	if closed.Status != models.StatusClosed || closed.ClosedAt == nil {
		t.Errorf("expected closed session with marker, got %+v", closed)
	}
	if result == nil {
		t.Fatal("expected close to tally")
	}

	// castVote on a closed session mutates nothing
	_, err = h.mgr.CastVote(ctx, vs.ID, "bob", "", models.Choice{Answer: models.AnswerNo})
	assertCode(t, err, apperrors.CodeSessionNotAcceptingVotes)
	if n, _ := h.store.CountVotes(ctx, vs.ID); n != 1 {
		t.Errorf("expected 1 vote, got %d", n)
	}

	_, _, err = h.mgr.CloseSession(ctx, vs.ID)
	assertCode(t, err, apperrors.CodeInvalidTransition)

	if _, err := h.mgr.AnnounceResult(ctx, vs.ID); err != nil {
		t.Fatalf("AnnounceResult() error = %v", err)
	}
	before, err := h.mgr.GetSession(ctx, vs.ID)
	if err != nil {
		t.Fatal(err)
	}

	// closeSession on an announced session mutates nothing
	_, _, err = h.mgr.CloseSession(ctx, vs.ID)
	assertCode(t, err, apperrors.CodeInvalidTransition)
	_, err = h.mgr.AnnounceResult(ctx, vs.ID)
	assertCode(t, err, apperrors.CodeInvalidTransition)

	after, err := h.mgr.GetSession(ctx, vs.ID)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("announced session changed (-before +after):\n%s", diff)
	}
}

func TestAnnounceRequiresResult(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// Closed without ever being tallied
	vs := testutil.CreateTestSession(t, h.store, testutil.YesNo(testRun), models.StatusClosed, true)

	_, err := h.mgr.AnnounceResult(ctx, vs.ID)
	assertCode(t, err, apperrors.CodeResultNotYetComputed)

	stored, err := h.mgr.GetSession(ctx, vs.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != models.StatusClosed {
		t.Errorf("failed announce changed status to %s", stored.Status)
	}

	if _, err := h.mgr.CalculateResult(ctx, vs.ID); err != nil {
		t.Fatalf("CalculateResult() error = %v", err)
	}
	announced, err := h.mgr.AnnounceResult(ctx, vs.ID)
	if err != nil {
		t.Fatalf("AnnounceResult() error = %v", err)
	}
	if announced.Status != models.StatusAnnounced || announced.AnnouncedAt == nil {
		t.Errorf("expected announced session, got %+v", announced)
	}
	if got := h.events.count(notify.EventResultAnnounced); got != 1 {
		t.Errorf("expected 1 result_announced event, got %d", got)
	}
}

func TestCalculateResult(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	cfg := testutil.ChoosePerson(testRun, "A", "B")
	cfg.Threshold = countThreshold(6)
	vs := h.open(t, cfg)
	h.castCounts(t, vs.ID, map[string]int{"A": 7, "B": 3})

	_, err := h.mgr.CalculateResult(ctx, vs.ID)
	assertCode(t, err, apperrors.CodeInvalidTransition)

	_, _, err = h.mgr.CloseSession(ctx, vs.ID)
	if err != nil {
		t.Fatal(err)
	}

	first, err := h.mgr.CalculateResult(ctx, vs.ID)
	if err != nil {
		t.Fatalf("CalculateResult() error = %v", err)
	}
	winner, ok := first.Tally.Winner()
	if !ok || winner != "A" || !first.Tally.ThresholdMet() {
		t.Errorf("expected A to win with threshold met, got %+v", first.Tally.Outcome)
	}
	if first.Tally.TotalCast != 10 {
		t.Errorf("expected 10 ballots, got %d", first.Tally.TotalCast)
	}

	h.clock.Advance(time.Hour)
	second, err := h.mgr.CalculateResult(ctx, vs.ID)
	if err != nil {
		t.Fatalf("second CalculateResult() error = %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("recalculation drifted (-first +second):\n%s", diff)
	}
	if got := h.events.count(notify.EventResultCalculated); got != 1 {
		t.Errorf("expected one result_calculated event, got %d", got)
	}

	_, err = h.mgr.CalculateResult(ctx, "missing")
	assertCode(t, err, apperrors.CodeSessionNotFound)
}

func TestGetResultBeforeTally(t *testing.T) {
	h := newHarness(t)
	vs := h.open(t, testutil.YesNo(testRun))

	_, err := h.mgr.GetResult(context.Background(), vs.ID)
	assertCode(t, err, apperrors.CodeResultNotYetComputed)
}

func TestCloseSessionReportsTieAndRunoff(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	cfg := testutil.ChoosePerson(testRun, "A", "B")
	cfg.Threshold = countThreshold(6)
	vs := h.open(t, cfg)
	h.castCounts(t, vs.ID, map[string]int{"A": 5, "B": 5})

	_, result, err := h.mgr.CloseSession(ctx, vs.ID)
	if err != nil {
		t.Fatal(err)
	}
	if result == nil {
		t.Fatal("expected result")
	}
	if result.Tally.ThresholdMet() || !result.Tally.IsTie() {
		t.Errorf("expected tie without threshold, got %+v", result.Tally.Outcome)
	}
	if diff := cmp.Diff([]string{"A", "B"}, result.Tally.RunoffCandidates()); diff != "" {
		t.Errorf("runoff set mismatch (-want +got):\n%s", diff)
	}
}

func TestOverrideWinnerIsNonDestructive(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	vs := h.open(t, testutil.ChoosePerson(testRun, "A", "B", "C"))
	h.castCounts(t, vs.ID, map[string]int{"A": 3, "B": 1})

	if _, _, err := h.mgr.CloseSession(ctx, vs.ID); err != nil {
		t.Fatal(err)
	}

	_, err := h.mgr.OverrideWinner(ctx, vs.ID, "B", "judge ruling", "op-1")
	assertCode(t, err, apperrors.CodeInvalidTransition)

	if _, err := h.mgr.AnnounceResult(ctx, vs.ID); err != nil {
		t.Fatal(err)
	}
	original, err := h.mgr.GetResult(ctx, vs.ID)
	if err != nil {
		t.Fatal(err)
	}

	invalid := []struct {
		name   string
		winner string
		reason string
		actor  string
	}{
		{"no reason", "B", " ", "op-1"},
		{"no actor", "B", "why", ""},
		{"not a candidate", "Z", "why", "op-1"},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.mgr.OverrideWinner(ctx, vs.ID, tt.winner, tt.reason, tt.actor)
			assertCode(t, err, apperrors.CodeInvalidArgument)
		})
	}

	h.clock.Advance(time.Minute)
	overridden, err := h.mgr.OverrideWinner(ctx, vs.ID, "C", "A was disqualified", "op-1")
	if err != nil {
		t.Fatalf("OverrideWinner() error = %v", err)
	}

	if diff := cmp.Diff(original.Tally, overridden.Tally); diff != "" {
		t.Errorf("computed tally changed (-original +overridden):\n%s", diff)
	}
	if original.InputsHash != overridden.InputsHash || !original.ComputedAt.Equal(overridden.ComputedAt) {
		t.Error("computed fields changed after override")
	}
	if overridden.Override == nil || overridden.Override.WinnerID != "C" || overridden.Override.ActorID != "op-1" {
		t.Fatalf("unexpected override %+v", overridden.Override)
	}
	if winner, _ := overridden.EffectiveWinner(); winner != "C" {
		t.Errorf("expected effective winner C, got %s", winner)
	}
	if winner, _ := overridden.Tally.Winner(); winner != "A" {
		t.Errorf("expected computed winner A to remain, got %s", winner)
	}

	// A second override replaces the first and is audited separately
	if _, err := h.mgr.OverrideWinner(ctx, vs.ID, "B", "appeal upheld", "op-2"); err != nil {
		t.Fatal(err)
	}

	entries, err := h.mgr.ListAudit(ctx, vs.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 audit entries, got %d", len(entries))
	}
	if entries[0].TargetID != "C" || entries[1].TargetID != "B" || entries[1].ActorID != "op-2" {
		t.Errorf("audit entries out of order: %+v", entries)
	}
	if entries[0].Seq != 1 || entries[1].Seq != 2 {
		t.Errorf("expected sequence numbers 1, 2, got %d, %d", entries[0].Seq, entries[1].Seq)
	}
	if entries[0].Action != models.AuditOverrideWinner || entries[0].Reason != "A was disqualified" {
		t.Errorf("unexpected audit entry %+v", entries[0])
	}

	votes, err := h.store.GetVotesForSession(ctx, vs.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(votes) != 4 {
		t.Errorf("override touched ballots: %d votes", len(votes))
	}
}

func TestOverrideYesNo(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.register(t, "", "alice")

	vs := h.open(t, testutil.YesNo(testRun))
	if _, err := h.mgr.CastVote(ctx, vs.ID, "alice", "", models.Choice{Answer: models.AnswerYes}); err != nil {
		t.Fatal(err)
	}
	if _, _, err := h.mgr.CloseSession(ctx, vs.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := h.mgr.AnnounceResult(ctx, vs.ID); err != nil {
		t.Fatal(err)
	}

	_, err := h.mgr.OverrideWinner(ctx, vs.ID, "maybe", "why", "op-1")
	assertCode(t, err, apperrors.CodeInvalidArgument)

	r, err := h.mgr.OverrideWinner(ctx, vs.ID, "no", "quorum challenge", "op-1")
	if err != nil {
		t.Fatal(err)
	}
	if winner, _ := r.EffectiveWinner(); winner != "no" {
		t.Errorf("expected effective winner no, got %s", winner)
	}
}

func TestVoteOnBehalf(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.register(t, "wolves", "alice")

	vs := h.open(t, testutil.ChoosePerson(testRun, "A", "B"))

	_, err := h.mgr.VoteOnBehalf(ctx, vs.ID, "alice", "", models.Choice{CandidateID: "A"}, "op-1", "")
	assertCode(t, err, apperrors.CodeInvalidArgument)

	_, err = h.mgr.VoteOnBehalf(ctx, vs.ID, "stranger", "", models.Choice{CandidateID: "A"}, "op-1", "offline")
	assertCode(t, err, apperrors.CodeVoterIneligible)

	v, err := h.mgr.VoteOnBehalf(ctx, vs.ID, "alice", "", models.Choice{CandidateID: "A"}, "op-1", "voter lost connection")
	if err != nil {
		t.Fatalf("VoteOnBehalf() error = %v", err)
	}
	if v.CastBy != "op-1" || v.VoterID != "alice" {
		t.Errorf("unexpected vote %+v", v)
	}

	_, err = h.mgr.CastVote(ctx, vs.ID, "alice", "", models.Choice{CandidateID: "B"})
	assertCode(t, err, apperrors.CodeDuplicateVote)

	entries, err := h.mgr.ListAudit(ctx, vs.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Action != models.AuditVoteOnBehalf || e.TargetID != "alice" || e.ActorID != "op-1" {
		t.Errorf("unexpected audit entry %+v", e)
	}
	if string(e.Payload) != `{"candidate_id":"A"}` {
		t.Errorf("unexpected audit payload %s", e.Payload)
	}

	// A rejected on-behalf vote leaves no audit residue
	_, err = h.mgr.VoteOnBehalf(ctx, vs.ID, "alice", "", models.Choice{CandidateID: "B"}, "op-1", "retry")
	assertCode(t, err, apperrors.CodeDuplicateVote)
	if entries, _ := h.mgr.ListAudit(ctx, vs.ID); len(entries) != 1 {
		t.Errorf("expected audit log unchanged, got %d entries", len(entries))
	}
}

func TestCreateRunoff(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	cfg := testutil.ChoosePerson(testRun, "A", "B", "C", "D")
	cfg.Title = "Chief"
	cfg.Threshold = countThreshold(6)
	cfg.Transparency = models.TransparencySecret
	vs := h.open(t, cfg)
	h.castCounts(t, vs.ID, map[string]int{"A": 5, "B": 3, "C": 3, "D": 1})

	if _, _, err := h.mgr.CloseSession(ctx, vs.ID); err != nil {
		t.Fatal(err)
	}

	_, err := h.mgr.CreateRunoff(ctx, vs.ID, "op-1")
	assertCode(t, err, apperrors.CodeInvalidTransition)

	if _, err := h.mgr.AnnounceResult(ctx, vs.ID); err != nil {
		t.Fatal(err)
	}

	child, err := h.mgr.CreateRunoff(ctx, vs.ID, "op-1")
	if err != nil {
		t.Fatalf("CreateRunoff() error = %v", err)
	}
	if diff := cmp.Diff([]string{"A", "B", "C"}, child.EligibleCandidates); diff != "" {
		t.Errorf("runoff candidates (-want +got):\n%s", diff)
	}
	if child.ParentSessionID != vs.ID || child.Title != "Chief (runoff)" {
		t.Errorf("unexpected runoff session %+v", child)
	}
	if child.Transparency != models.TransparencySecret || child.Threshold == nil || child.Threshold.Value != 6 {
		t.Errorf("runoff did not inherit settings: %+v", child.SessionConfig)
	}
	if child.Status != models.StatusOpen || child.Started() {
		t.Errorf("runoff should start open and unstarted")
	}

	again, err := h.mgr.CreateRunoff(ctx, vs.ID, "op-1")
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != child.ID {
		t.Errorf("expected existing runoff %s, got %s", child.ID, again.ID)
	}

	entries, err := h.mgr.ListAudit(ctx, vs.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Action != models.AuditCreateRunoff || entries[0].TargetID != child.ID {
		t.Errorf("unexpected audit entries %+v", entries)
	}
	if got := h.events.count(notify.EventRunoffCreated); got != 1 {
		t.Errorf("expected 1 runoff_created event, got %d", got)
	}
}

func TestCreateRunoffRequiresUndecidedResult(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	vs := h.open(t, testutil.ChoosePerson(testRun, "A", "B"))
	h.castCounts(t, vs.ID, map[string]int{"A": 2, "B": 1})
	if _, _, err := h.mgr.CloseSession(ctx, vs.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := h.mgr.AnnounceResult(ctx, vs.ID); err != nil {
		t.Fatal(err)
	}

	_, err := h.mgr.CreateRunoff(ctx, vs.ID, "op-1")
	assertCode(t, err, apperrors.CodeInvalidArgument)
}

func TestRegisterParticipant(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	p, err := h.mgr.RegisterParticipant(ctx, models.Participant{RunID: testRun, VoterID: " alice ", ClanID: "wolves"})
	if err != nil {
		t.Fatalf("RegisterParticipant() error = %v", err)
	}
	if p.VoterID != "alice" || p.ClanID != "wolves" {
		t.Errorf("unexpected participant %+v", p)
	}

	// Re-registering moves the voter to a new clan
	p, err = h.mgr.RegisterParticipant(ctx, models.Participant{RunID: testRun, VoterID: "alice", ClanID: "owls"})
	if err != nil {
		t.Fatal(err)
	}
	if p.ClanID != "owls" {
		t.Errorf("expected clan update, got %+v", p)
	}

	_, err = h.mgr.RegisterParticipant(ctx, models.Participant{RunID: testRun})
	assertCode(t, err, apperrors.CodeInvalidArgument)
}

func TestListSessions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first := h.open(t, testutil.YesNo(testRun))
	h.clock.Advance(time.Second)
	second := h.open(t, testutil.YesNo(testRun))
	other := testutil.YesNo("run-2")
	if _, err := h.mgr.CreateSession(ctx, other, "op-1"); err != nil {
		t.Fatal(err)
	}

	sessions, err := h.mgr.ListSessions(ctx, testRun)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 2 || sessions[0].ID != first.ID || sessions[1].ID != second.ID {
		t.Errorf("unexpected sessions %+v", sessions)
	}

	_, err = h.mgr.ListSessions(ctx, "")
	assertCode(t, err, apperrors.CodeInvalidArgument)
}

func TestErrorsAreNotStorageErrors(t *testing.T) {
	h := newHarness(t)
	_, err := h.mgr.GetSession(context.Background(), "missing")
	if errors.Is(err, apperrors.ErrStorageUnavailable) || apperrors.CodeOf(err).Retryable() {
		t.Errorf("business errors must not be retryable: %v", err)
	}
}
