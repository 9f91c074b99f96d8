// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (router *Router) reportLatest(w http.ResponseWriter, r *http.Request) {
	session, err := router.session(r, "")
	if err != nil {
		respondError(w, r, err)
		return
	}
	report, err := router.deps.Reports.BuildLatest(r.Context(), session.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, report)
}

func (router *Router) reportByAudit(w http.ResponseWriter, r *http.Request) {
	session, err := router.session(r, "")
	if err != nil {
		respondError(w, r, err)
		return
	}
	report, err := router.deps.Reports.Build(r.Context(), session.UserID, chi.URLParam(r, "audit_id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, report)
}

func (router *Router) reportCreateShare(w http.ResponseWriter, r *http.Request) {
	session, err := router.session(r, "")
	if err != nil {
		respondError(w, r, err)
		return
	}
	link, err := router.deps.Audits.CreateShareLink(r.Context(), session.UserID, chi.URLParam(r, "audit_id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, http.StatusCreated, map[string]any{
		"share_link": link,
		"share_url":  fmt.Sprintf("/report/shared/%s", link.ShareToken),
	})
}

// reportShared resolves a public share token and renders the report for
// the audit it points at. No session is required.
func (router *Router) reportShared(w http.ResponseWriter, r *http.Request) {
	audit, err := router.deps.Audits.ResolveShareLink(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	report, err := router.deps.Reports.BuildShared(r.Context(), audit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, report)
}
