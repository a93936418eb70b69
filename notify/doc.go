// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package notify fans session change events out to interested clients.

Events are hints. They carry only the kind, the session and the run, never
ballots or results, so a client that receives one re-fetches whatever view
it is allowed to see. Delivery is at-most-once: a subscriber whose buffer is
full misses the event and the hub counts the drop.

# Hub

	hub := notify.NewHub(32)
	events, cancel := hub.Subscribe(notify.Filter{RunID: "run-1"})
	defer cancel()

	hub.Publish(notify.Event{Kind: notify.EventSessionClosed, SessionID: id, RunID: "run-1"})

# Websocket Stream

StreamHandler upgrades an HTTP request and writes each matching event as a
JSON text frame, pinging idle connections so dead peers are noticed.

	stream := notify.NewStreamHandler(hub)
	stream.Serve(w, r, notify.Filter{SessionID: r.PathValue("id")})
*/
package notify
