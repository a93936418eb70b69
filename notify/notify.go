// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package notify

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

type EventKind string

const (
	EventSessionCreated   EventKind = "session_created"
	EventVotingStarted    EventKind = "voting_started"
	EventBallotCast       EventKind = "ballot_cast"
	EventSessionClosed    EventKind = "session_closed"
	EventResultCalculated EventKind = "result_calculated"
	EventResultAnnounced  EventKind = "result_announced"
	EventResultOverridden EventKind = "result_overridden"
	EventRunoffCreated    EventKind = "runoff_created"
)

type Event struct {
	Kind      EventKind `json:"kind"`
	SessionID string    `json:"session_id"`
	RunID     string    `json:"run_id"`
	At        time.Time `json:"at"`
}

// Notifier receives events from the session manager. Publish must not block.
type Notifier interface {
	Publish(e Event)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(Event) {}

// Filter selects events by run and/or session. Empty fields match anything.
type Filter struct {
	RunID     string
	SessionID string
}

func (f Filter) matches(e Event) bool {
	if f.RunID != "" && f.RunID != e.RunID {
		return false
	}
	if f.SessionID != "" && f.SessionID != e.SessionID {
		return false
	}
	return true
}

type subscriber struct {
	ch     chan Event
	filter Filter
}

// Hub is an in-process Notifier with buffered per-subscriber channels.
type Hub struct {
	mu      sync.Mutex
	subs    map[*subscriber]struct{}
	buffer  int
	closed  bool
	dropped atomic.Uint64
}

var _ Notifier = (*Hub)(nil)

func NewHub(buffer int) *Hub {
	if buffer < 1 {
		buffer = 1
	}
	return &Hub{subs: make(map[*subscriber]struct{}), buffer: buffer}
}

// Subscribe registers a subscriber. The returned channel is closed by cancel
// or by Close. cancel is safe to call more than once.
func (h *Hub) Subscribe(f Filter) (<-chan Event, func()) {
	sub := &subscriber{ch: make(chan Event, h.buffer), filter: f}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[sub]; ok {
				delete(h.subs, sub)
				close(sub.ch)
			}
		})
	}
	return sub.ch, cancel
}

// Publish delivers e to every matching subscriber without blocking.
func (h *Hub) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs {
		if !sub.filter.matches(e) {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			h.dropped.Add(1)
			slog.Debug("notification dropped", "kind", e.Kind, "session_id", e.SessionID)
		}
	}
}

// Dropped reports how many deliveries were skipped because a buffer was full.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Subscribers reports the current subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close closes every subscriber channel. Later subscriptions start closed.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for sub := range h.subs {
		close(sub.ch)
		delete(h.subs, sub)
	}
}
