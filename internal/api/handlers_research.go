// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clipsight/clipsight/internal/apperr"
	"github.com/clipsight/clipsight/internal/models"
	"github.com/clipsight/clipsight/internal/research"
)

// maxCSVBytes bounds CSV import uploads.
const maxCSVBytes = 20 << 20

type importURLRequest struct {
	UserID   string          `json:"user_id,omitempty"`
	Platform models.Platform `json:"platform,omitempty"`
	URL      string          `json:"url" validate:"required,url"`
}

func (router *Router) researchImportURL(w http.ResponseWriter, r *http.Request) {
	if err := requireFeature(router.cfg.Features.Research, "research"); err != nil {
		respondError(w, r, err)
		return
	}
	var req importURLRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	session, err := router.session(r, req.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	item, err := router.deps.Research.ImportURL(r.Context(), session.UserID, req.Platform, req.URL)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, http.StatusCreated, item)
}

type captureRequest struct {
	UserID string `json:"user_id,omitempty"`
	research.CaptureRequest
}

func (router *Router) researchCapture(w http.ResponseWriter, r *http.Request) {
	if err := requireFeature(router.cfg.Features.Research, "research"); err != nil {
		respondError(w, r, err)
		return
	}
	var req captureRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	session, err := router.session(r, req.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	item, err := router.deps.Research.Capture(r.Context(), session.UserID, &req.CaptureRequest)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, http.StatusCreated, item)
}

// researchImportCSV ingests a multipart CSV upload. Form fields: file,
// platform, collection_name, optional user_id.
func (router *Router) researchImportCSV(w http.ResponseWriter, r *http.Request) {
	if err := requireFeature(router.cfg.Features.Research, "research"); err != nil {
		respondError(w, r, err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxCSVBytes)
	if err := r.ParseMultipartForm(maxCSVBytes); err != nil {
		respondError(w, r, apperr.Wrap(apperr.KindBadRequest, "invalid multipart form", err))
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

	platform := models.Platform(r.FormValue("platform"))
	result, err := router.deps.Research.ImportCSV(r.Context(), session.UserID, platform, r.FormValue("collection_name"), header.Size, file)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, http.StatusCreated, result)
}

type searchRequest struct {
	UserID string `json:"user_id,omitempty"`
	models.ItemSearchFilters
}

func (router *Router) researchSearch(w http.ResponseWriter, r *http.Request) {
	if err := requireFeature(router.cfg.Features.Research, "research"); err != nil {
		respondError(w, r, err)
		return
	}
	var req searchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	session, err := router.session(r, req.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if _, err := router.deps.Credits.ConsumeOp(r.Context(), session.UserID, models.CreditOpResearchSearch, "research_search", req.Query); err != nil {
		respondError(w, r, err)
		return
	}
	page, err := router.deps.Research.Search(r.Context(), session.UserID, req.ItemSearchFilters)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondPage(w, r, page.Items, page.Page, page.Limit, page.Total, page.TotalPages)
}

func (router *Router) researchCollections(w http.ResponseWriter, r *http.Request) {
	session, err := router.session(r, "")
	if err != nil {
		respondError(w, r, err)
		return
	}
	collections, err := router.deps.Research.ListCollections(r.Context(), session.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, collections)
}

func (router *Router) researchGetItem(w http.ResponseWriter, r *http.Request) {
	session, err := router.session(r, "")
	if err != nil {
		respondError(w, r, err)
		return
	}
	item, err := router.deps.Research.GetItem(r.Context(), session.UserID, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, item)
}

type exportRequest struct {
	UserID       string `json:"user_id,omitempty"`
	CollectionID string `json:"collection_id,omitempty"`
	Format       string `json:"format" validate:"required,oneof=csv json"`
}

func (router *Router) researchExport(w http.ResponseWriter, r *http.Request) {
	if err := requireFeature(router.cfg.Features.Research, "research"); err != nil {
		respondError(w, r, err)
		return
	}
	var req exportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	session, err := router.session(r, req.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	export, token, err := router.deps.Research.Export(r.Context(), session.UserID, req.CollectionID, req.Format)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, http.StatusCreated, map[string]any{
		"export":       export,
		"download_url": fmt.Sprintf("/research/export/%s/download?token=%s", export.ID, token),
	})
}

// researchExportDownload streams an export file. The signed token in the
// query string is the credential; no session is required.
func (router *Router) researchExportDownload(w http.ResponseWriter, r *http.Request) {
	export, err := router.deps.Research.ResolveDownload(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("token"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName))
	http.ServeFile(w, r, export.FilePath)
}
