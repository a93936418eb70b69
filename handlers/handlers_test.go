// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danielhkuo/tallyhall/auth"
	"github.com/danielhkuo/tallyhall/middleware"
	"github.com/danielhkuo/tallyhall/models"
	"github.com/danielhkuo/tallyhall/session"
	"github.com/danielhkuo/tallyhall/store"
	"github.com/danielhkuo/tallyhall/testutil"
)

const testRun = "run-1"

type testEnv struct {
	store  *store.SQLStore
	mgr    *session.Manager
	issuer *auth.Issuer

	sessions     *SessionHandler
	voting       *VotingHandler
	results      *ResultsHandler
	participants *ParticipantHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := testutil.NewTestStore(t)
	mgr := session.NewManager(st)
	issuer := testutil.TestIssuer()
	return &testEnv{
		store:        st,
		mgr:          mgr,
		issuer:       issuer,
		sessions:     NewSessionHandler(mgr),
		voting:       NewVotingHandler(mgr),
		results:      NewResultsHandler(mgr),
		participants: NewParticipantHandler(mgr, issuer),
	}
}

// operator runs h behind the operator role check.
func (e *testEnv) operator(h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	middleware.RequireRole(e.issuer, h, auth.RoleOperator)(w, req)
	return w
}

// participant runs h behind the participant role check.
func (e *testEnv) participant(h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	middleware.RequireRole(e.issuer, h, auth.RoleParticipant)(w, req)
	return w
}

// request builds a request with the {id} path value set.
func request(method, path, id string, body interface{}, headers map[string]string) *http.Request {
	req := testutil.MakeRequest(method, path, body, headers)
	if id != "" {
		req.SetPathValue("id", id)
	}
	return req
}

// openSession creates and starts a session through the manager.
func (e *testEnv) openSession(t *testing.T, cfg models.SessionConfig) models.VoteSession {
	t.Helper()
	vs, err := e.mgr.CreateSession(t.Context(), cfg, "op-1")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	vs, err = e.mgr.StartVoting(t.Context(), vs.ID)
	if err != nil {
		t.Fatalf("StartVoting() error = %v", err)
	}
	return vs
}

// operatorOrParticipant runs h behind a check that admits either role.
func (e *testEnv) operatorOrParticipant(h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	middleware.RequireRole(e.issuer, h, auth.RoleOperator, auth.RoleParticipant)(w, req)
	return w
}
