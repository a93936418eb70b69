// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package notify

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func assertEmpty(t *testing.T, ch <-chan Event) {
	t.Helper()
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %+v", ev)
	default:
	}
}

func TestHubFilters(t *testing.T) {
	hub := NewHub(4)

	all, cancelAll := hub.Subscribe(Filter{})
	defer cancelAll()
	run, cancelRun := hub.Subscribe(Filter{RunID: "run-1"})
	defer cancelRun()
	session, cancelSession := hub.Subscribe(Filter{SessionID: "s2"})
	defer cancelSession()

	hub.Publish(Event{Kind: EventSessionCreated, SessionID: "s1", RunID: "run-1"})
	hub.Publish(Event{Kind: EventSessionCreated, SessionID: "s2", RunID: "run-2"})

	if ev := receive(t, all); ev.SessionID != "s1" {
		t.Errorf("expected s1 first, got %s", ev.SessionID)
	}
	if ev := receive(t, all); ev.SessionID != "s2" {
		t.Errorf("expected s2 second, got %s", ev.SessionID)
	}

	if ev := receive(t, run); ev.SessionID != "s1" {
		t.Errorf("run filter got %s", ev.SessionID)
	}
	assertEmpty(t, run)

	if ev := receive(t, session); ev.RunID != "run-2" {
		t.Errorf("session filter got %+v", ev)
	}
	assertEmpty(t, session)
}

func TestHubDropsWhenFull(t *testing.T) {
	hub := NewHub(1)
	ch, cancel := hub.Subscribe(Filter{})
	defer cancel()

	hub.Publish(Event{Kind: EventBallotCast, SessionID: "s1"})
	hub.Publish(Event{Kind: EventBallotCast, SessionID: "s1"})
	hub.Publish(Event{Kind: EventSessionClosed, SessionID: "s1"})

	if got := hub.Dropped(); got != 2 {
		t.Errorf("expected 2 drops, got %d", got)
	}
	if ev := receive(t, ch); ev.Kind != EventBallotCast {
		t.Errorf("expected the first event to survive, got %s", ev.Kind)
	}
	if ev := receive(t, ch); ev.At.IsZero() {
		t.Error("expected Publish to stamp the event time")
	}
}

func TestHubCancelAndClose(t *testing.T) {
	hub := NewHub(1)

	ch, cancel := hub.Subscribe(Filter{})
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Error("expected cancelled channel to be closed")
	}
	if hub.Subscribers() != 0 {
		t.Errorf("expected no subscribers, got %d", hub.Subscribers())
	}

	other, cancelOther := hub.Subscribe(Filter{})
	hub.Close()
	if _, ok := <-other; ok {
		t.Error("expected Close to close subscriber channels")
	}
	cancelOther()

	late, _ := hub.Subscribe(Filter{})
	if _, ok := <-late; ok {
		t.Error("expected subscriptions after Close to start closed")
	}

	// Publishing after close is a no-op
	hub.Publish(Event{Kind: EventBallotCast})
}

func TestStreamHandler(t *testing.T) {
	hub := NewHub(8)
	stream := NewStreamHandler(hub)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stream.Serve(w, r, Filter{SessionID: "s1"})
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Wait for the handler to subscribe before publishing
	deadline := time.Now().Add(time.Second)
	for hub.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("handler never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.Publish(Event{Kind: EventBallotCast, SessionID: "other", RunID: "run-1"})
	hub.Publish(Event{Kind: EventSessionClosed, SessionID: "s1", RunID: "run-1"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read: %v", err)
	}
	if ev.Kind != EventSessionClosed || ev.SessionID != "s1" {
		t.Errorf("unexpected event %+v", ev)
	}

	hub.Close()
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Errorf("expected going-away close, got %v", err)
	}
}

func TestStreamHandlerRejectsPlainHTTP(t *testing.T) {
	stream := NewStreamHandler(NewHub(1))
	req := httptest.NewRequest("GET", "/sessions/s1/events", nil)
	w := httptest.NewRecorder()

	stream.Serve(w, req, Filter{SessionID: "s1"})

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for non-upgrade request, got %d", w.Code)
	}
}
