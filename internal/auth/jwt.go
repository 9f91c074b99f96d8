// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

// Package auth implements bearer-session decoding and the per-request
// user-scoping guard. Sessions are stateless HMAC-signed JWTs.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/clipsight/clipsight/internal/apperr"
	"github.com/clipsight/clipsight/internal/config"
)

// SessionTokenType is the required value of the token's type claim.
const SessionTokenType = "spc_session"

// SessionClaims are the claims carried by a session token.
type SessionClaims struct {
	Email     string `json:"email,omitempty"`
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// Session is a validated caller identity.
type Session struct {
	UserID string
	Email  string
}

// SessionManager creates and validates session tokens.
type SessionManager struct {
	secret     []byte
	method     jwt.SigningMethod
	expiration time.Duration
}

// NewSessionManager builds a manager from the security configuration.
// The secret is stored as []byte to prevent string interning attacks.
func NewSessionManager(cfg *config.SecurityConfig) (*SessionManager, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required but was empty")
	}

	var method jwt.SigningMethod
	switch cfg.JWTAlgorithm {
	case "HS256", "":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("unsupported JWT algorithm %q", cfg.JWTAlgorithm)
	}

	return &SessionManager{
		secret:     []byte(cfg.JWTSecret),
		method:     method,
		expiration: time.Duration(cfg.JWTExpirationHours) * time.Hour,
	}, nil
}

// GenerateToken creates a signed session token for a user.
func (m *SessionManager) GenerateToken(userID, email string) (string, error) {
	now := time.Now()
	claims := &SessionClaims{
		Email:     email,
		TokenType: SessionTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(m.method, claims)
	signedToken, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signedToken, nil
}

// ValidateToken verifies a session token and extracts the caller identity.
// Type mismatch, missing subject, and invalid signatures all surface as
// Unauthenticated.
func (m *SessionManager) ValidateToken(tokenString string) (*Session, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != m.method.Alg() {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnauthenticated, "invalid session token", err)
	}
	if !token.Valid {
		return nil, apperr.Unauthenticated("invalid session token")
	}
	if claims.TokenType != SessionTokenType {
		return nil, apperr.Unauthenticated("invalid session token type")
	}
	if claims.Subject == "" {
		return nil, apperr.Unauthenticated("session token missing subject")
	}

	return &Session{UserID: claims.Subject, Email: claims.Email}, nil
}
