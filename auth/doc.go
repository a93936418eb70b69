// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth issues and verifies bearer tokens.

# Tokens

Tokens are HS256 JWTs signed with the configured TOKEN_SECRET:

	iss := auth.NewIssuer(cfg.TokenSecret, cfg.TokenTTL)
	token, err := iss.IssueOperatorToken("host-1")
	claims, err := iss.Parse(token)

Operator tokens carry role=operator and the acting operator as the subject.
Participant tokens carry role=participant, the voter as the subject, and the
run_id and clan_id the voter was registered with.

Parse rejects tokens with the wrong algorithm, issuer, or signature, and
tokens that are expired or have no expiry. All failures are returned as
apperrors with code UNAUTHORIZED.

# IDs

GenerateID returns random hex identifiers; tokens use one as their jti:

	id, err := auth.GenerateID(16)
*/
package auth
