// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/danielhkuo/tallyhall/apperrors"
	"github.com/danielhkuo/tallyhall/models"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore implements Store on database/sql.
type SQLStore struct {
	db *sql.DB
	q  querier
}

var _ Store = (*SQLStore)(nil)

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, q: db}
}

// WithTx runs fn in a transaction, committing when fn returns nil.
func (s *SQLStore) WithTx(ctx context.Context, fn func(Store) error) error {
	if _, nested := s.q.(*sql.Tx); nested {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Storage("begin transaction", err)
	}
	defer tx.Rollback()

	if err := fn(&SQLStore{db: s.db, q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperrors.Storage("commit transaction", err)
	}
	return nil
}

// isUniqueViolation recognizes unique/primary key violations from either driver.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}

// nullString maps "" to NULL.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func utc(t time.Time) time.Time { return t.UTC() }

// Sessions

const sessionColumns = `
	id, run_id, phase_id, title, format, mode, scope, scope_clan_id, transparency,
	eligible_candidates, threshold_kind, threshold_value, voter_base, parent_session_id,
	status, started_at, closed_at, announced_at, created_by, created_at`

func (s *SQLStore) PutSession(ctx context.Context, vs models.VoteSession) error {
	var candidates any
	if vs.Format == models.FormatChoosePerson {
		raw, err := json.Marshal(vs.EligibleCandidates)
		if err != nil {
			return fmt.Errorf("encode candidates: %w", err)
		}
		candidates = string(raw)
	}

	var thresholdKind, thresholdValue any
	if vs.Threshold != nil {
		thresholdKind = string(vs.Threshold.Kind)
		thresholdValue = vs.Threshold.Value
	}

	var voterBase any
	if vs.VoterBase != nil {
		voterBase = *vs.VoterBase
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO vote_session (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`,
		vs.ID, vs.RunID, vs.PhaseID, nullString(vs.Title), string(vs.Format), string(vs.Mode),
		string(vs.Scope), nullString(vs.ScopeClanID), string(vs.Transparency),
		candidates, thresholdKind, thresholdValue, voterBase, nullString(vs.ParentSessionID),
		string(vs.Status), vs.StartedAt, vs.ClosedAt, vs.AnnouncedAt, vs.CreatedBy, utc(vs.CreatedAt),
	)
	if err != nil {
		if vs.ParentSessionID != "" && isUniqueViolation(err) {
			return ErrRunoffExists
		}
		return apperrors.Storage("insert session", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (models.VoteSession, error) {
	var (
		vs                                    models.VoteSession
		title, clanID, candidates, parentID   sql.NullString
		thresholdKind                         sql.NullString
		thresholdValue                        sql.NullFloat64
		voterBase                             sql.NullInt64
		format, mode, scope, transparency, st string
	)
	err := row.Scan(
		&vs.ID, &vs.RunID, &vs.PhaseID, &title, &format, &mode, &scope, &clanID, &transparency,
		&candidates, &thresholdKind, &thresholdValue, &voterBase, &parentID,
		&st, &vs.StartedAt, &vs.ClosedAt, &vs.AnnouncedAt, &vs.CreatedBy, &vs.CreatedAt,
	)
	if err != nil {
		return models.VoteSession{}, err
	}

	vs.Title = title.String
	vs.Format = models.Format(format)
	vs.Mode = models.Mode(mode)
	vs.Scope = models.Scope(scope)
	vs.ScopeClanID = clanID.String
	vs.Transparency = models.Transparency(transparency)
	vs.ParentSessionID = parentID.String
	vs.Status = models.Status(st)

	if candidates.Valid {
		if err := json.Unmarshal([]byte(candidates.String), &vs.EligibleCandidates); err != nil {
			return models.VoteSession{}, fmt.Errorf("decode candidates: %w", err)
		}
	}
	if thresholdKind.Valid {
		vs.Threshold = &models.Threshold{Kind: models.ThresholdKind(thresholdKind.String), Value: thresholdValue.Float64}
	}
	if voterBase.Valid {
		n := int(voterBase.Int64)
		vs.VoterBase = &n
	}
	return vs, nil
}

func (s *SQLStore) GetSession(ctx context.Context, id string) (models.VoteSession, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM vote_session WHERE id = $1`, id)
	vs, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.VoteSession{}, apperrors.WithMetadata(apperrors.CodeSessionNotFound,
			"session not found", map[string]string{"session_id": id})
	}
	if err != nil {
		return models.VoteSession{}, apperrors.Storage("query session", err)
	}
	return vs, nil
}

func (s *SQLStore) ListSessionsForRun(ctx context.Context, runID string) ([]models.VoteSession, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+sessionColumns+`
		FROM vote_session
		WHERE run_id = $1
		ORDER BY created_at, id
	`, runID)
	if err != nil {
		return nil, apperrors.Storage("query sessions", err)
	}
	defer rows.Close()

	sessions := []models.VoteSession{}
	for rows.Next() {
		vs, err := scanSession(rows)
		if err != nil {
			return nil, apperrors.Storage("scan session", err)
		}
		sessions = append(sessions, vs)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Storage("iterate sessions", err)
	}
	return sessions, nil
}

func (s *SQLStore) MarkStarted(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE vote_session
		SET started_at = $1
		WHERE id = $2 AND status = $3 AND started_at IS NULL
	`, utc(at), id, string(models.StatusOpen))
	if err != nil {
		return false, apperrors.Storage("start session", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperrors.Storage("start session", err)
	}
	return n == 1, nil
}

func (s *SQLStore) TransitionStatus(ctx context.Context, id string, from, to models.Status, at time.Time) error {
	if !from.CanTransitionTo(to) {
		return apperrors.New(apperrors.CodeInvalidTransition,
			fmt.Sprintf("cannot move session from %s to %s", from, to))
	}

	column := "closed_at"
	if to == models.StatusAnnounced {
		column = "announced_at"
	}

	res, err := s.q.ExecContext(ctx, `
		UPDATE vote_session
		SET status = $1, `+column+` = $2
		WHERE id = $3 AND status = $4
	`, string(to), utc(at), id, string(from))
	if err != nil {
		return apperrors.Storage("transition session", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.Storage("transition session", err)
	}
	if n == 0 {
		return apperrors.WithMetadata(apperrors.CodeInvalidTransition,
			fmt.Sprintf("session is no longer %s", from),
			map[string]string{"session_id": id, "from": string(from), "to": string(to)})
	}
	return nil
}

// A self-assignment is the portable way to take the row lock: Postgres
// holds it until commit and SQLite already serializes writers.
func (s *SQLStore) LockAccepting(ctx context.Context, id string) (bool, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE vote_session
		SET status = status
		WHERE id = $1 AND status = $2 AND started_at IS NOT NULL
	`, id, string(models.StatusOpen))
	if err != nil {
		return false, apperrors.Storage("lock session", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperrors.Storage("lock session", err)
	}
	return n == 1, nil
}

func (s *SQLStore) LockStatus(ctx context.Context, id string, status models.Status) (bool, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE vote_session
		SET status = status
		WHERE id = $1 AND status = $2
	`, id, string(status))
	if err != nil {
		return false, apperrors.Storage("lock session", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperrors.Storage("lock session", err)
	}
	return n == 1, nil
}

// Votes

func (s *SQLStore) PutVote(ctx context.Context, v models.Vote) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO vote (id, session_id, voter_id, voter_clan_id, candidate_id, answer, cast_by, cast_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, v.ID, v.SessionID, v.VoterID, nullString(v.VoterClanID),
		nullString(v.Choice.CandidateID), nullString(string(v.Choice.Answer)),
		nullString(v.CastBy), utc(v.CastAt))
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.WithMetadata(apperrors.CodeDuplicateVote,
				"voter has already voted in this session",
				map[string]string{"session_id": v.SessionID, "voter_id": v.VoterID})
		}
		return apperrors.Storage("insert vote", err)
	}
	return nil
}

const voteColumns = `id, session_id, voter_id, voter_clan_id, candidate_id, answer, cast_by, cast_at`

func scanVote(row rowScanner) (models.Vote, error) {
	var (
		v                                   models.Vote
		clanID, candidateID, answer, castBy sql.NullString
	)
	if err := row.Scan(&v.ID, &v.SessionID, &v.VoterID, &clanID, &candidateID, &answer, &castBy, &v.CastAt); err != nil {
		return models.Vote{}, err
	}
	v.VoterClanID = clanID.String
	v.Choice = models.Choice{CandidateID: candidateID.String, Answer: models.Answer(answer.String)}
	v.CastBy = castBy.String
	return v, nil
}

func (s *SQLStore) GetVotesForSession(ctx context.Context, sessionID string) ([]models.Vote, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+voteColumns+`
		FROM vote
		WHERE session_id = $1
		ORDER BY cast_at, id
	`, sessionID)
	if err != nil {
		return nil, apperrors.Storage("query votes", err)
	}
	defer rows.Close()

	votes := []models.Vote{}
	for rows.Next() {
		v, err := scanVote(rows)
		if err != nil {
			return nil, apperrors.Storage("scan vote", err)
		}
		votes = append(votes, v)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Storage("iterate votes", err)
	}
	return votes, nil
}

func (s *SQLStore) GetVote(ctx context.Context, sessionID, voterID string) (models.Vote, bool, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+voteColumns+` FROM vote WHERE session_id = $1 AND voter_id = $2
	`, sessionID, voterID)
	v, err := scanVote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Vote{}, false, nil
	}
	if err != nil {
		return models.Vote{}, false, apperrors.Storage("query vote", err)
	}
	return v, true, nil
}

func (s *SQLStore) CountVotes(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM vote WHERE session_id = $1`, sessionID).Scan(&count)
	if err != nil {
		return 0, apperrors.Storage("count votes", err)
	}
	return count, nil
}

// Results

func (s *SQLStore) PutResult(ctx context.Context, r models.VoteResult) error {
	payload, err := json.Marshal(r.Tally)
	if err != nil {
		return fmt.Errorf("encode tally: %w", err)
	}

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO vote_result (session_id, payload, inputs_hash, computed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id) DO UPDATE
		SET payload = excluded.payload, inputs_hash = excluded.inputs_hash, computed_at = excluded.computed_at
	`, r.SessionID, string(payload), r.InputsHash, utc(r.ComputedAt))
	if err != nil {
		return apperrors.Storage("upsert result", err)
	}
	return nil
}

func (s *SQLStore) GetResult(ctx context.Context, sessionID string) (models.VoteResult, error) {
	var (
		r                         models.VoteResult
		payload                   string
		winnerID, reason, actorID sql.NullString
		overriddenAt              *time.Time
	)
	err := s.q.QueryRowContext(ctx, `
		SELECT session_id, payload, inputs_hash, computed_at,
		       override_winner_id, override_reason, override_actor_id, overridden_at
		FROM vote_result
		WHERE session_id = $1
	`, sessionID).Scan(&r.SessionID, &payload, &r.InputsHash, &r.ComputedAt,
		&winnerID, &reason, &actorID, &overriddenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.VoteResult{}, apperrors.WithMetadata(apperrors.CodeResultNotYetComputed,
			"result has not been computed", map[string]string{"session_id": sessionID})
	}
	if err != nil {
		return models.VoteResult{}, apperrors.Storage("query result", err)
	}

	if err := json.Unmarshal([]byte(payload), &r.Tally); err != nil {
		return models.VoteResult{}, fmt.Errorf("decode tally: %w", err)
	}
	if winnerID.Valid && overriddenAt != nil {
		r.Override = &models.Override{
			WinnerID:     winnerID.String,
			Reason:       reason.String,
			ActorID:      actorID.String,
			OverriddenAt: *overriddenAt,
		}
	}
	return r, nil
}

func (s *SQLStore) PutOverride(ctx context.Context, sessionID string, o models.Override) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE vote_result
		SET override_winner_id = $1, override_reason = $2, override_actor_id = $3, overridden_at = $4
		WHERE session_id = $5
	`, o.WinnerID, o.Reason, o.ActorID, utc(o.OverriddenAt), sessionID)
	if err != nil {
		return apperrors.Storage("update override", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.Storage("update override", err)
	}
	if n == 0 {
		return apperrors.WithMetadata(apperrors.CodeResultNotYetComputed,
			"result has not been computed", map[string]string{"session_id": sessionID})
	}
	return nil
}

// Audit

func (s *SQLStore) AppendAuditEntry(ctx context.Context, e models.AuditEntry) error {
	var payload any
	if len(e.Payload) > 0 {
		payload = string(e.Payload)
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO audit_entry (id, session_id, actor_id, action, target_id, payload, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, e.ID, e.SessionID, e.ActorID, string(e.Action), e.TargetID, payload, e.Reason, utc(e.CreatedAt))
	if err != nil {
		return apperrors.Storage("insert audit entry", err)
	}
	return nil
}

// ListAuditEntries returns entries oldest first. Ids are time-ordered, so
// they break ties between equal timestamps.
func (s *SQLStore) ListAuditEntries(ctx context.Context, sessionID string) ([]models.AuditEntry, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, session_id, actor_id, action, target_id, payload, reason, created_at
		FROM audit_entry
		WHERE session_id = $1
		ORDER BY created_at, id
	`, sessionID)
	if err != nil {
		return nil, apperrors.Storage("query audit entries", err)
	}
	defer rows.Close()

	entries := []models.AuditEntry{}
	for rows.Next() {
		var (
			e       models.AuditEntry
			action  string
			payload sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.ActorID, &action, &e.TargetID, &payload, &e.Reason, &e.CreatedAt); err != nil {
			return nil, apperrors.Storage("scan audit entry", err)
		}
		e.Action = models.AuditAction(action)
		if payload.Valid {
			e.Payload = json.RawMessage(payload.String)
		}
		e.Seq = int64(len(entries) + 1)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Storage("iterate audit entries", err)
	}
	return entries, nil
}

// Participants

func (s *SQLStore) PutParticipant(ctx context.Context, p models.Participant) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO run_participant (run_id, voter_id, clan_id, display_name, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (run_id, voter_id) DO UPDATE
		SET clan_id = excluded.clan_id, display_name = excluded.display_name
	`, p.RunID, p.VoterID, nullString(p.ClanID), nullString(p.DisplayName), utc(p.CreatedAt))
	if err != nil {
		return apperrors.Storage("upsert participant", err)
	}
	return nil
}

func (s *SQLStore) GetParticipant(ctx context.Context, runID, voterID string) (models.Participant, bool, error) {
	var (
		p                   models.Participant
		clanID, displayName sql.NullString
	)
	err := s.q.QueryRowContext(ctx, `
		SELECT run_id, voter_id, clan_id, display_name, created_at
		FROM run_participant
		WHERE run_id = $1 AND voter_id = $2
	`, runID, voterID).Scan(&p.RunID, &p.VoterID, &clanID, &displayName, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Participant{}, false, nil
	}
	if err != nil {
		return models.Participant{}, false, apperrors.Storage("query participant", err)
	}
	p.ClanID = clanID.String
	p.DisplayName = displayName.String
	return p, true, nil
}

// Acknowledgements

func (s *SQLStore) PutAcknowledgement(ctx context.Context, a models.RevealAck) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO reveal_ack (session_id, voter_id, acknowledged_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_id, voter_id) DO NOTHING
	`, a.SessionID, a.VoterID, utc(a.AcknowledgedAt))
	if err != nil {
		return apperrors.Storage("insert acknowledgement", err)
	}
	return nil
}

func (s *SQLStore) GetAcknowledgement(ctx context.Context, sessionID, voterID string) (models.RevealAck, bool, error) {
	var a models.RevealAck
	err := s.q.QueryRowContext(ctx, `
		SELECT session_id, voter_id, acknowledged_at
		FROM reveal_ack
		WHERE session_id = $1 AND voter_id = $2
	`, sessionID, voterID).Scan(&a.SessionID, &a.VoterID, &a.AcknowledgedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.RevealAck{}, false, nil
	}
	if err != nil {
		return models.RevealAck{}, false, apperrors.Storage("query acknowledgement", err)
	}
	return a, true, nil
}

func (s *SQLStore) ListAcknowledgements(ctx context.Context, sessionID string) ([]models.RevealAck, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT session_id, voter_id, acknowledged_at
		FROM reveal_ack
		WHERE session_id = $1
		ORDER BY acknowledged_at, voter_id
	`, sessionID)
	if err != nil {
		return nil, apperrors.Storage("query acknowledgements", err)
	}
	defer rows.Close()

	acks := []models.RevealAck{}
	for rows.Next() {
		var a models.RevealAck
		if err := rows.Scan(&a.SessionID, &a.VoterID, &a.AcknowledgedAt); err != nil {
			return nil, apperrors.Storage("scan acknowledgement", err)
		}
		acks = append(acks, a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Storage("iterate acknowledgements", err)
	}
	return acks, nil
}
