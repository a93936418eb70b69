// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package tally computes session results from ballots.

Compute is a pure function of a session config and its votes; it never reads
or writes storage:

	t, err := tally.Compute(session, votes)

# choose_person

Votes are counted per eligible candidate. Abstentions count toward the total
but not toward any candidate. Candidates are ranked by count descending, then
candidate id ascending, so results never depend on vote or map order.

  - threshold set and met by a single leader: Winner
  - threshold set and met by several tied leaders: Tie
  - threshold set and missed: Runoff over the two highest count bands
  - no threshold: Plurality for a single leader, or Tie when the top is level

A runoff never admits candidates without votes unless nobody received any.

# clan_nomination

The highest count wins. A tie is flagged but the lowest candidate id among
the leaders is still named, so a clan nomination always decides.

# yes_no

Passed when yes > no. Abstentions count toward the total only.

# Hashing

InputsHash fingerprints the set of vote ids so a persisted result can be
checked against the ballots it was computed from.
*/
package tally
