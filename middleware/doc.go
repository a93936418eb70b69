// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging

Wrap handlers with request logging:

	mux.HandleFunc("GET /health", middleware.WithLogging(handler))

Logs request start (method, path, remote) and completion (status, duration_ms).

# Authentication

RequireRole verifies the bearer token and puts the claims on the context:

	mux.HandleFunc("POST /sessions", middleware.WithLogging(
		middleware.RequireRole(issuer, h.CreateSession, auth.RoleOperator)))

	claims, _ := middleware.ClaimsFromContext(r.Context())

Tokens come from "Authorization: Bearer <token>", or the access_token query
parameter for websocket clients.

# CORS Middleware

Enable cross-origin requests for frontend access:

	server := http.Server{
		Handler: middleware.CORS(mux),
	}

# JSON Helpers

Write JSON responses:

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.AppError(w, err)

AppError maps apperrors codes to HTTP status (404 not found, 403 ineligible,
409 state conflicts, 400 bad input, 503 storage). Anything else is a 500.

Parse JSON request bodies (errors are INVALID_ARGUMENT):

	var req models.CastVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.AppError(w, err)
		return
	}

# Client IP Extraction

	ip := middleware.GetClientIP(r)
*/
package middleware
