// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danielhkuo/tallyhall/models"
	"github.com/danielhkuo/tallyhall/notify"
	"github.com/danielhkuo/tallyhall/session"
	"github.com/danielhkuo/tallyhall/testutil"
)

func newTestRouter(t *testing.T) (*http.ServeMux, *session.Manager) {
	t.Helper()
	hub := notify.NewHub(8)
	t.Cleanup(hub.Close)
	mgr := session.NewManager(testutil.NewTestStore(t), session.WithNotifier(hub))
	return NewRouter(mgr, testutil.TestIssuer(), hub), mgr
}

func TestHealthEndpoint(t *testing.T) {
	mux, _ := newTestRouter(t)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	if w.Body.String() != "OK" {
		t.Errorf("Expected body 'OK', got '%s'", w.Body.String())
	}
}

func TestRootEndpoint(t *testing.T) {
	mux, _ := newTestRouter(t)

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	expected := "tallyhall API v1"
	if w.Body.String() != expected {
		t.Errorf("Expected body '%s', got '%s'", expected, w.Body.String())
	}

	req = httptest.NewRequest("GET", "/nope", nil)
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown path, got %d", w.Code)
	}
}

func TestRoutesRequireToken(t *testing.T) {
	mux, _ := newTestRouter(t)

	testCases := []struct {
		method string
		path   string
	}{
		{"POST", "/runs/r1/participants"},
		{"POST", "/sessions"},
		{"POST", "/sessions/s1/start"},
		{"POST", "/sessions/s1/close"},
		{"POST", "/sessions/s1/tally"},
		{"POST", "/sessions/s1/announce"},
		{"POST", "/sessions/s1/override"},
		{"POST", "/sessions/s1/votes/on-behalf"},
		{"POST", "/sessions/s1/runoff"},
		{"GET", "/sessions/s1/audit"},
		{"GET", "/sessions/s1/admin"},
		{"GET", "/sessions/s1/acks"},
		{"POST", "/sessions/s1/votes"},
		{"POST", "/sessions/s1/ack"},
		{"GET", "/sessions/s1"},
		{"GET", "/runs/r1/sessions"},
		{"GET", "/sessions/s1/events"},
		{"GET", "/runs/r1/events"},
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("Route %s %s returned %d, expected 401 without a token", tc.method, tc.path, w.Code)
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	mux, _ := newTestRouter(t)

	testCases := []struct {
		method string
		path   string
	}{
		{"POST", "/health"},              // Only GET is defined
		{"DELETE", "/sessions/s1/admin"}, // Only GET is defined
		{"PUT", "/sessions/s1/close"},    // Only POST is defined
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			if w.Code != http.StatusMethodNotAllowed {
				t.Errorf("Expected 405 for %s %s, got %d", tc.method, tc.path, w.Code)
			}
		})
	}
}

func TestPathParameterExtraction(t *testing.T) {
	mux, mgr := newTestRouter(t)

	vs, err := mgr.CreateSession(t.Context(), testutil.YesNo("run-1"), "op-1")
	if err != nil {
		t.Fatal(err)
	}

	req := testutil.MakeRequest("POST", "/sessions/"+vs.ID+"/start", nil, testutil.OperatorHeaders(t, "op-1"))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	testutil.AssertStatus(t, w, http.StatusOK)
	var started models.VoteSession
	testutil.AssertJSON(t, w, &started)
	if started.ID != vs.ID || !started.Started() {
		t.Errorf("Expected session %s started, got %+v", vs.ID, started)
	}
}

func TestRoleSeparation(t *testing.T) {
	mux, mgr := newTestRouter(t)

	alice, err := mgr.RegisterParticipant(t.Context(), models.Participant{RunID: "run-1", VoterID: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	participant := testutil.ParticipantHeaders(t, alice)
	operator := testutil.OperatorHeaders(t, "op-1")

	testCases := []struct {
		name           string
		method         string
		path           string
		headers        map[string]string
		expectedStatus int
	}{
		{"participant cannot create", "POST", "/sessions", participant, http.StatusForbidden},
		{"participant cannot read admin", "GET", "/sessions/s1/admin", participant, http.StatusForbidden},
		{"operator cannot cast", "POST", "/sessions/s1/votes", operator, http.StatusForbidden},
		{"participant lists own run", "GET", "/runs/run-1/sessions", participant, http.StatusOK},
		{"operator lists any run", "GET", "/runs/run-9/sessions", operator, http.StatusOK},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := testutil.MakeRequest(tc.method, tc.path, nil, tc.headers)
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			testutil.AssertStatus(t, w, tc.expectedStatus)
		})
	}
}
