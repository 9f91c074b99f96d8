// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package api

import (
	"net/http"

	"github.com/clipsight/clipsight/internal/logging"
	"github.com/clipsight/clipsight/internal/models"
)

type authSyncRequest struct {
	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty" validate:"omitempty,email"`

	// OAuth tokens from the platform handshake. Token custody lives with
	// the identity provider; the payload is accepted for forward
	// compatibility and not persisted here.
	Tokens models.JSONMap `json:"tokens,omitempty"`
}

// authSyncYouTube hydrates the local identity row for the session subject
// and returns a fresh session token.
func (router *Router) authSyncYouTube(w http.ResponseWriter, r *http.Request) {
	var req authSyncRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	session, err := router.session(r, req.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	email := session.Email
	if req.Email != "" {
		email = req.Email
	}
	user, err := router.deps.Users.EnsureUser(r.Context(), session.UserID, email)
	if err != nil {
		respondError(w, r, err)
		return
	}

	token, err := router.sessions.GenerateToken(user.ID, user.Email)
	if err != nil {
		respondError(w, r, err)
		return
	}
	logging.Info().Str("user_id", user.ID).Msg("Identity synced")
	respondData(w, r, http.StatusOK, map[string]any{
		"user":          user,
		"session_token": token,
	})
}

func (router *Router) authMe(w http.ResponseWriter, r *http.Request) {
	session, err := router.session(r, "")
	if err != nil {
		respondError(w, r, err)
		return
	}
	user, err := router.deps.Users.GetUser(r.Context(), session.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, user)
}

// authLogout acknowledges the logout. Session tokens are stateless, so
// the client discards its copy; nothing is revoked server side.
func (router *Router) authLogout(w http.ResponseWriter, r *http.Request) {
	session, err := router.session(r, "")
	if err != nil {
		respondError(w, r, err)
		return
	}
	logging.Debug().Str("user_id", session.UserID).Msg("Session logout")
	respondData(w, r, http.StatusOK, map[string]any{"logged_out": true})
}
