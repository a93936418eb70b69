// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/danielhkuo/tallyhall/apperrors"
	"github.com/danielhkuo/tallyhall/models"
)

const tokenIssuer = "tallyhall"

// Role is the kind of caller a token authenticates.
type Role string

const (
	RoleOperator    Role = "operator"
	RoleParticipant Role = "participant"
)

// Claims are the validated contents of a bearer token.
type Claims struct {
	Role      Role
	Subject   string
	RunID     string
	ClanID    string
	ExpiresAt time.Time
}

// tokenClaims is the wire form used for signing and parsing.
type tokenClaims struct {
	jwt.RegisteredClaims
	Role   Role   `json:"role"`
	RunID  string `json:"run_id,omitempty"`
	ClanID string `json:"clan_id,omitempty"`
}

// Issuer signs and verifies HS256 bearer tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock replaces the time source. Used by tests.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	cp := *i
	cp.now = now
	return &cp
}

// GenerateID creates a random hex ID of the specified byte length
func GenerateID(byteLen int) (string, error) {
	b := make([]byte, byteLen)
	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("failed to generate random ID: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// IssueOperatorToken signs a token that authorizes operator actions for actorID.
func (i *Issuer) IssueOperatorToken(actorID string) (string, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return "", errors.New("operator id is required")
	}
	return i.sign(tokenClaims{Role: RoleOperator}, actorID)
}

// IssueParticipantToken signs a token bound to one voter in one run.
// The clan is carried in the token so eligibility can be checked without
// another lookup, but the registry stays authoritative.
func (i *Issuer) IssueParticipantToken(p models.Participant) (string, error) {
	if p.VoterID == "" || p.RunID == "" {
		return "", errors.New("participant run and voter id are required")
	}
	return i.sign(tokenClaims{Role: RoleParticipant, RunID: p.RunID, ClanID: p.ClanID}, p.VoterID)
}

func (i *Issuer) sign(claims tokenClaims, subject string) (string, error) {
	if len(i.secret) == 0 {
		return "", errors.New("token secret is not configured")
	}
	now := i.now()
	jti, err := GenerateID(12)
	if err != nil {
		return "", err
	}
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   subject,
		ID:        jti,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies a bearer token and returns its claims. Every failure maps
// to an UNAUTHORIZED error.
func (i *Issuer) Parse(token string) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, apperrors.New(apperrors.CodeUnauthorized, "bearer token is required")
	}

	var parsed tokenClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return Claims{}, mapJWTError(err)
	}

	if parsed.Subject == "" {
		return Claims{}, apperrors.New(apperrors.CodeUnauthorized, "token subject is required")
	}
	switch parsed.Role {
	case RoleOperator:
	case RoleParticipant:
		if parsed.RunID == "" {
			return Claims{}, apperrors.New(apperrors.CodeUnauthorized, "participant token is missing run id")
		}
	default:
		return Claims{}, apperrors.WithMetadata(apperrors.CodeUnauthorized, "unknown token role",
			map[string]string{"role": string(parsed.Role)})
	}

	return Claims{
		Role:      parsed.Role,
		Subject:   parsed.Subject,
		RunID:     parsed.RunID,
		ClanID:    parsed.ClanID,
		ExpiresAt: parsed.ExpiresAt.Time,
	}, nil
}

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return apperrors.Wrap(apperrors.CodeUnauthorized, "token expired", err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return apperrors.Wrap(apperrors.CodeUnauthorized, "token signature invalid", err)
	default:
		return apperrors.Wrap(apperrors.CodeUnauthorized, "token invalid", err)
	}
}
