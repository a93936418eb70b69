// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package session

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/danielhkuo/tallyhall/apperrors"
	"github.com/danielhkuo/tallyhall/models"
	"github.com/danielhkuo/tallyhall/notify"
	"github.com/danielhkuo/tallyhall/store"
)

const tracerName = "github.com/danielhkuo/tallyhall/session"

// Manager owns session lifecycle transitions and result persistence.
type Manager struct {
	store    store.Store
	notifier notify.Notifier
	now      func() time.Time
	tracer   trace.Tracer

	// results coalesces concurrent tally requests per session.
	results singleflight.Group
}

type Option func(*Manager)

// WithNotifier sets where change events are published.
func WithNotifier(n notify.Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(st store.Store, opts ...Option) *Manager {
	m := &Manager{
		store:    st,
		notifier: notify.Nop{},
		now:      time.Now,
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) clock() time.Time { return m.now().UTC() }

// startSpan opens a span for one public operation. Pair with endSpan.
func (m *Manager) startSpan(ctx context.Context, op, sessionID string) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, "session."+op, trace.WithAttributes(attribute.String("session.id", sessionID)))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperrors.CodeOf(err)))
	}
	span.End()
}

func (m *Manager) publish(kind notify.EventKind, s models.VoteSession) {
	m.notifier.Publish(notify.Event{Kind: kind, SessionID: s.ID, RunID: s.RunID, At: m.clock()})
}

func invalidArgument(field, message string) error {
	return apperrors.WithMetadata(apperrors.CodeInvalidArgument, message, map[string]string{"field": field})
}

// CreateSession validates cfg and persists a new open, unstarted session.
func (m *Manager) CreateSession(ctx context.Context, cfg models.SessionConfig, actorID string) (vs models.VoteSession, err error) {
	ctx, span := m.startSpan(ctx, "CreateSession", "")
	defer func() { endSpan(span, err) }()

	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return models.VoteSession{}, invalidArgument("actor_id", "actor id is required")
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return models.VoteSession{}, err
	}

	vs = models.VoteSession{
		ID:            uuid.NewString(),
		SessionConfig: cfg,
		Status:        models.StatusOpen,
		CreatedBy:     actorID,
		CreatedAt:     m.clock(),
	}
	span.SetAttributes(attribute.String("session.id", vs.ID))

	if err := m.store.PutSession(ctx, vs); err != nil {
		return models.VoteSession{}, err
	}

	slog.Info("session created",
		"session_id", vs.ID,
		"run_id", vs.RunID,
		"format", vs.Format,
		"scope", vs.Scope,
		"actor_id", actorID,
	)
	m.publish(notify.EventSessionCreated, vs)
	return vs, nil
}

// StartVoting sets the start marker. Starting an already started session is
// a no-op; starting a closed or announced one is INVALID_TRANSITION.
func (m *Manager) StartVoting(ctx context.Context, sessionID string) (vs models.VoteSession, err error) {
	ctx, span := m.startSpan(ctx, "StartVoting", sessionID)
	defer func() { endSpan(span, err) }()

	vs, err = m.store.GetSession(ctx, sessionID)
	if err != nil {
		return models.VoteSession{}, err
	}
	if vs.Status != models.StatusOpen {
		return models.VoteSession{}, apperrors.WithMetadata(apperrors.CodeInvalidTransition,
			"only open sessions can be started", map[string]string{"status": string(vs.Status)})
	}
	if vs.Started() {
		return vs, nil
	}

	set, err := m.store.MarkStarted(ctx, sessionID, m.clock())
	if err != nil {
		return models.VoteSession{}, err
	}

	vs, err = m.store.GetSession(ctx, sessionID)
	if err != nil {
		return models.VoteSession{}, err
	}
	if set {
		slog.Info("voting started", "session_id", sessionID)
		m.publish(notify.EventVotingStarted, vs)
	} else if !vs.Started() {
		// Closed between our read and the update
		return models.VoteSession{}, apperrors.WithMetadata(apperrors.CodeInvalidTransition,
			"only open sessions can be started", map[string]string{"status": string(vs.Status)})
	}
	return vs, nil
}

// CloseSession atomically moves open to closed and then tallies. A tally
// failure does not undo the close; the result is nil and the operator can
// retry CalculateResult.
func (m *Manager) CloseSession(ctx context.Context, sessionID string) (vs models.VoteSession, result *models.VoteResult, err error) {
	ctx, span := m.startSpan(ctx, "CloseSession", sessionID)
	defer func() { endSpan(span, err) }()

	vs, err = m.store.GetSession(ctx, sessionID)
	if err != nil {
		return models.VoteSession{}, nil, err
	}
	if vs.Status != models.StatusOpen {
		return models.VoteSession{}, nil, apperrors.WithMetadata(apperrors.CodeInvalidTransition,
			"session is already "+string(vs.Status), map[string]string{"status": string(vs.Status)})
	}

	// Only one concurrent close wins the compare-and-swap
	if err := m.store.TransitionStatus(ctx, sessionID, models.StatusOpen, models.StatusClosed, m.clock()); err != nil {
		return models.VoteSession{}, nil, err
	}

	vs, err = m.store.GetSession(ctx, sessionID)
	if err != nil {
		return models.VoteSession{}, nil, err
	}
	slog.Info("session closed", "session_id", sessionID)
	m.publish(notify.EventSessionClosed, vs)

	r, tallyErr := m.CalculateResult(ctx, sessionID)
	if tallyErr != nil {
		slog.Warn("tally after close failed", "session_id", sessionID, "error", tallyErr)
		return vs, nil, nil
	}
	return vs, &r, nil
}

func (m *Manager) GetSession(ctx context.Context, sessionID string) (models.VoteSession, error) {
	return m.store.GetSession(ctx, sessionID)
}

func (m *Manager) ListSessions(ctx context.Context, runID string) ([]models.VoteSession, error) {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return nil, invalidArgument("run_id", "run id is required")
	}
	return m.store.ListSessionsForRun(ctx, runID)
}

// ListAudit returns the session's audit trail oldest first.
func (m *Manager) ListAudit(ctx context.Context, sessionID string) ([]models.AuditEntry, error) {
	if _, err := m.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return m.store.ListAuditEntries(ctx, sessionID)
}

// RegisterParticipant records a voter as a recognized participant of a run.
// Re-registering updates the clan and display name.
func (m *Manager) RegisterParticipant(ctx context.Context, p models.Participant) (models.Participant, error) {
	p.RunID = strings.TrimSpace(p.RunID)
	p.VoterID = strings.TrimSpace(p.VoterID)
	p.ClanID = strings.TrimSpace(p.ClanID)
	if p.RunID == "" {
		return models.Participant{}, invalidArgument("run_id", "run id is required")
	}
	if p.VoterID == "" {
		return models.Participant{}, invalidArgument("voter_id", "voter id is required")
	}
	p.CreatedAt = m.clock()

	if err := m.store.PutParticipant(ctx, p); err != nil {
		return models.Participant{}, err
	}
	stored, ok, err := m.store.GetParticipant(ctx, p.RunID, p.VoterID)
	if err != nil {
		return models.Participant{}, err
	}
	if !ok {
		return models.Participant{}, apperrors.New(apperrors.CodeStorageUnavailable, "participant missing after write")
	}
	slog.Info("participant registered", "run_id", p.RunID, "voter_id", p.VoterID, "clan_id", p.ClanID)
	return stored, nil
}
