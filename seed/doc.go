// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package seed loads a YAML description of runs, their participants and
// pre-staged sessions, and applies it through the session manager at
// startup.
//
// A seed file looks like:
//
//	runs:
//	  - id: spring-2025
//	    participants:
//	      - {voter_id: alice, clan_id: wolves}
//	      - {voter_id: bob, clan_id: owls}
//	    sessions:
//	      - phase_id: round-1
//	        title: Chief
//	        format: choose_person
//	        scope: all
//	        eligible_candidates: [alice, bob]
//	        start: true
//
// Applying the same file twice is safe: participants are upserted and a
// session is skipped when the run already has one with the same phase and
// title.
package seed
