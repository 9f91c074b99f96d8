// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package api

import (
	"net/http"

	"github.com/clipsight/clipsight/internal/apperr"
	"github.com/clipsight/clipsight/internal/models"
	"github.com/clipsight/clipsight/internal/outcome"
)

type outcomeIngestRequest struct {
	UserID string `json:"user_id,omitempty"`
	outcome.IngestRequest
}

func (router *Router) outcomesIngest(w http.ResponseWriter, r *http.Request) {
	if err := requireFeature(router.cfg.Features.OutcomeLearning, "outcome learning"); err != nil {
		respondError(w, r, err)
		return
	}
	var req outcomeIngestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	session, err := router.session(r, req.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	metric, err := router.deps.Outcomes.Ingest(r.Context(), session.UserID, &req.IngestRequest)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, http.StatusCreated, metric)
}

func (router *Router) outcomesSummary(w http.ResponseWriter, r *http.Request) {
	if err := requireFeature(router.cfg.Features.OutcomeLearning, "outcome learning"); err != nil {
		respondError(w, r, err)
		return
	}
	session, err := router.session(r, "")
	if err != nil {
		respondError(w, r, err)
		return
	}
	platform := models.Platform(r.URL.Query().Get("platform"))
	if !platform.Valid() {
		respondError(w, r, apperr.BadRequest("platform query parameter is required"))
		return
	}
	summary, err := router.deps.Outcomes.Summary(r.Context(), session.UserID, platform)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, summary)
}

type recalibrateRequest struct {
	UserID   string          `json:"user_id,omitempty"`
	Platform models.Platform `json:"platform" validate:"required,platform"`
}

func (router *Router) outcomesRecalibrate(w http.ResponseWriter, r *http.Request) {
	if err := requireFeature(router.cfg.Features.OutcomeLearning, "outcome learning"); err != nil {
		respondError(w, r, err)
		return
	}
	var req recalibrateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	session, err := router.session(r, req.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	snapshot, err := router.deps.Outcomes.Recalibrate(r.Context(), session.UserID, req.Platform)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, snapshot)
}
