// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/danielhkuo/tallyhall/auth"
	"github.com/danielhkuo/tallyhall/cliparse"
	"github.com/danielhkuo/tallyhall/db"
	"github.com/danielhkuo/tallyhall/models"
	"github.com/danielhkuo/tallyhall/store"
)

// TestTokenSecret signs every token issued in tests
const TestTokenSecret = "test-token-secret"

var dbSeq atomic.Int64

// SetupTestDB opens a private in-memory SQLite database with the full schema.
// A single connection keeps the database alive and serializes writers.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:tallyhall_test_%d?mode=memory&cache=shared", dbSeq.Add(1))
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateSchema(conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	return conn
}

// NewTestStore returns a SQLStore over a fresh test database
func NewTestStore(t *testing.T) *store.SQLStore {
	t.Helper()
	return store.NewSQLStore(SetupTestDB(t))
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:         3318,
		DatabaseURL:  "file::memory:",
		DatabaseType: "sqlite",
		TokenSecret:  TestTokenSecret,
		TokenTTL:     time.Hour,
	}
}

// TestIssuer returns a token issuer matching GetTestConfig
func TestIssuer() *auth.Issuer {
	cfg := GetTestConfig()
	return auth.NewIssuer(cfg.TokenSecret, cfg.TokenTTL)
}

// OperatorHeaders returns an Authorization header for an operator token
func OperatorHeaders(t *testing.T, actorID string) map[string]string {
	t.Helper()
	token, err := TestIssuer().IssueOperatorToken(actorID)
	if err != nil {
		t.Fatalf("Failed to issue operator token: %v", err)
	}
	return map[string]string{"Authorization": "Bearer " + token}
}

// ParticipantHeaders returns an Authorization header for a participant token
func ParticipantHeaders(t *testing.T, p models.Participant) map[string]string {
	t.Helper()
	token, err := TestIssuer().IssueParticipantToken(p)
	if err != nil {
		t.Fatalf("Failed to issue participant token: %v", err)
	}
	return map[string]string{"Authorization": "Bearer " + token}
}

// CreateTestParticipant registers a voter in a run
func CreateTestParticipant(t *testing.T, st store.Store, runID, voterID, clanID string) models.Participant {
	t.Helper()

	p := models.Participant{RunID: runID, VoterID: voterID, ClanID: clanID, CreatedAt: time.Now().UTC()}
	if err := st.PutParticipant(t.Context(), p); err != nil {
		t.Fatalf("Failed to create test participant: %v", err)
	}
	return p
}

// CreateTestSession persists a session directly, bypassing the manager.
// status should be "open", "closed", or "announced"
func CreateTestSession(t *testing.T, st store.Store, cfg models.SessionConfig, status models.Status, started bool) models.VoteSession {
	t.Helper()

	cfg.Normalize()
	now := time.Now().UTC()
	vs := models.VoteSession{
		ID:            uuid.NewString(),
		SessionConfig: cfg,
		Status:        status,
		CreatedBy:     "test-operator",
		CreatedAt:     now,
	}
	if started {
		vs.StartedAt = &now
	}
	if status == models.StatusClosed || status == models.StatusAnnounced {
		vs.ClosedAt = &now
	}
	if status == models.StatusAnnounced {
		vs.AnnouncedAt = &now
	}

	if err := st.PutSession(t.Context(), vs); err != nil {
		t.Fatalf("Failed to create test session: %v", err)
	}
	return vs
}

// ChoosePerson returns a minimal valid choose_person config
func ChoosePerson(runID string, candidates ...string) models.SessionConfig {
	return models.SessionConfig{
		RunID:              runID,
		PhaseID:            "phase-1",
		Format:             models.FormatChoosePerson,
		Scope:              models.ScopeAll,
		EligibleCandidates: candidates,
	}
}

// YesNo returns a minimal valid yes_no config
func YesNo(runID string) models.SessionConfig {
	return models.SessionConfig{
		RunID:   runID,
		PhaseID: "phase-1",
		Format:  models.FormatYesNo,
		Scope:   models.ScopeAll,
	}
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}

// AssertErrorCode decodes an error response and checks its code
func AssertErrorCode(t *testing.T, w *httptest.ResponseRecorder, expected string) {
	t.Helper()
	var resp models.ErrorResponse
	AssertJSON(t, w, &resp)
	if resp.Code != expected {
		t.Errorf("Expected error code %s, got %s (%s)", expected, resp.Code, resp.Message)
	}
}
