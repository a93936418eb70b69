// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines the domain, request, and response types for the vote
session service.

# Domain Types

  - VoteSession: one vote being collected and resolved (config + lifecycle)
  - Vote: one voter's ballot in a session, immutable once cast
  - Choice: ballot payload, a candidate id or a yes/no/abstain answer
  - Tally: counts and a tagged Outcome computed by package tally
  - VoteResult: persisted tally plus an optional operator Override
  - AuditEntry: append-only record of operator actions
  - Participant: a recognized voter of a run and their clan
  - RevealAck: a voter's acknowledgement of an announced result

# Outcomes

Outcome is a closed set of variants so an invalid combination (a winner
with an unmet threshold) cannot be represented:

	Winner     single candidate reached the threshold
	Plurality  single leader of a session without a threshold
	Tie        top candidates level, no runoff needed
	Runoff     threshold missed, advancing candidates listed
	Nominee    clan nomination, always names one candidate
	Motion     yes/no result

# Constants

Status values, monotonic:

	StatusOpen      = "open"
	StatusClosed    = "closed"
	StatusAnnounced = "announced"

Formats, scopes, transparency levels and modes are string types with
Valid methods.
*/
package models
