// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package telemetry wires OpenTelemetry tracing. Tracing is opt-in through
// TALLYHALL_OTEL_ENDPOINT; the returned shutdown flushes pending spans and
// should be deferred by main.
package telemetry
