// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/clipsight/clipsight/internal/apperr"
	"github.com/clipsight/clipsight/internal/models"
)

// maxUploadBytes bounds direct video uploads.
const maxUploadBytes = 500 << 20

// auditUpload stores a video file for a later audit run. Multipart form
// field: file, optional user_id.
func (router *Router) auditUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		respondError(w, r, apperr.Wrap(apperr.KindPayloadTooLarge, "upload exceeds the size limit", err))
		return
	}
	session, err := router.session(r, r.FormValue("user_id"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, apperr.BadRequest("file field is required"))
		return
	}
	defer file.Close()

	upload, err := router.deps.Audits.SaveUpload(r.Context(), session.UserID, header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, http.StatusCreated, upload)
}

type runMultimodalRequest struct {
	UserID string `json:"user_id,omitempty"`
	models.AuditInput
}

func (router *Router) auditRunMultimodal(w http.ResponseWriter, r *http.Request) {
	var req runMultimodalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	session, err := router.session(r, req.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	audit, err := router.deps.Audits.RunMultimodal(r.Context(), session.UserID, &req.AuditInput)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, http.StatusAccepted, audit)
}

func (router *Router) auditList(w http.ResponseWriter, r *http.Request) {
	session, err := router.session(r, "")
	if err != nil {
		respondError(w, r, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	audits, err := router.deps.Audits.ListAudits(r.Context(), session.UserID, limit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, audits)
}

func (router *Router) auditGet(w http.ResponseWriter, r *http.Request) {
	session, err := router.session(r, "")
	if err != nil {
		respondError(w, r, err)
		return
	}
	audit, err := router.deps.Audits.GetAudit(r.Context(), session.UserID, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, audit)
}
