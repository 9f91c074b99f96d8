// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/clipsight/clipsight/internal/apperr"
)

type contextKey string

const sessionContextKey contextKey = "clipsight_session"

// ContextWithSession attaches a validated session to a context.
func ContextWithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, s)
}

// SessionFromContext extracts the validated session from a request context.
func SessionFromContext(ctx context.Context) (*Session, error) {
	s, ok := ctx.Value(sessionContextKey).(*Session)
	if !ok || s == nil {
		return nil, apperr.Unauthenticated("missing session")
	}
	return s, nil
}

// BearerToken extracts the bearer token from an Authorization header.
func BearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", apperr.Unauthenticated("missing authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", apperr.Unauthenticated("malformed authorization header")
	}
	return parts[1], nil
}

// CheckScope enforces the user_id scoping guard: a client-supplied user_id,
// when present, must equal the session subject. The server never trusts a
// client-supplied user_id on its own.
func CheckScope(s *Session, claimedUserID string) error {
	if claimedUserID != "" && claimedUserID != s.UserID {
		return apperr.Forbidden("user_id does not match session")
	}
	return nil
}

// Middleware returns an HTTP middleware that authenticates every request
// with a bearer session token and stores the session on the context.
func (m *SessionManager) Middleware(unauthorized func(w http.ResponseWriter, r *http.Request, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := BearerToken(r)
			if err != nil {
				unauthorized(w, r, err)
				return
			}
			session, err := m.ValidateToken(token)
			if err != nil {
				unauthorized(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), session)))
		})
	}
}
