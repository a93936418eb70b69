// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package apperrors defines the error taxonomy shared by the store, the session
manager, and the HTTP layer.

# Codes

Every business-rule failure carries a machine-readable Code:

	SESSION_NOT_ACCEPTING_VOTES  voting not open (missing, unstarted, or closed session)
	VOTER_INELIGIBLE             voter outside the session scope
	MALFORMED_BALLOT             payload does not match the session format
	DUPLICATE_VOTE               voter already has a ballot in this session
	SESSION_NOT_FOUND            unknown session id
	RESULT_NOT_YET_COMPUTED      announce before tally
	INVALID_TRANSITION           lifecycle would move backward or skip
	MISCONFIGURED_SESSION        session config breaks an invariant
	INVALID_ARGUMENT             request validation
	UNAUTHORIZED                 missing or invalid bearer token
	STORAGE_UNAVAILABLE          persistence failure (retryable)

# Matching

Errors compare by code, so callers test with errors.Is:

	if errors.Is(err, apperrors.ErrDuplicateVote) {
		// already voted
	}

Only STORAGE_UNAVAILABLE is retryable; see Code.Retryable.
*/
package apperrors
