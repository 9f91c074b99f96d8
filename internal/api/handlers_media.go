// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clipsight/clipsight/internal/apperr"
	"github.com/clipsight/clipsight/internal/models"
)

type mediaDownloadRequest struct {
	UserID    string          `json:"user_id,omitempty"`
	Platform  models.Platform `json:"platform" validate:"required,platform"`
	SourceURL string          `json:"source_url" validate:"required,url"`
}

func (router *Router) mediaDownload(w http.ResponseWriter, r *http.Request) {
	if err := requireFeature(router.cfg.Features.ExternalMediaDownload, "external media download"); err != nil {
		respondError(w, r, err)
		return
	}
	var req mediaDownloadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	session, err := router.session(r, req.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	job, err := router.deps.Media.EnqueueDownload(r.Context(), session.UserID, req.Platform, req.SourceURL)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, http.StatusAccepted, job)
}

func (router *Router) mediaDownloadStatus(w http.ResponseWriter, r *http.Request) {
	session, err := router.session(r, "")
	if err != nil {
		respondError(w, r, err)
		return
	}
	jobs, err := router.deps.Media.DownloadStatus(r.Context(), session.UserID, []string{chi.URLParam(r, "id")})
	if err != nil {
		respondError(w, r, err)
		return
	}
	if len(jobs) == 0 {
		respondError(w, r, apperr.NotFound("download job not found"))
		return
	}
	respondData(w, r, http.StatusOK, jobs[0])
}
