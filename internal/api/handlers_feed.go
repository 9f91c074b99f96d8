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
	"github.com/clipsight/clipsight/internal/feedloop"
	"github.com/clipsight/clipsight/internal/models"
)

type feedDiscoverRequest struct {
	UserID string `json:"user_id,omitempty"`
	feedloop.DiscoverRequest
}

func (router *Router) feedDiscover(w http.ResponseWriter, r *http.Request) {
	var req feedDiscoverRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	session, err := router.session(r, req.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	result, err := router.deps.Feed.Discover(r.Context(), session.UserID, &req.DiscoverRequest)
	if err != nil {
		respondError(w, r, err)
		return
	}
	totalPages := 0
	if result.Limit > 0 {
		totalPages = (result.Total + result.Limit - 1) / result.Limit
	}
	respondPage(w, r, result.Items, result.Page, result.Limit, result.Total, totalPages)
}

// feedSearch is a plain library search without discover scoring.
func (router *Router) feedSearch(w http.ResponseWriter, r *http.Request) {
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
	page, err := router.deps.Research.Search(r.Context(), session.UserID, req.ItemSearchFilters)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondPage(w, r, page.Items, page.Page, page.Limit, page.Total, page.TotalPages)
}

type favoriteToggleRequest struct {
	UserID   string `json:"user_id,omitempty"`
	ItemID   string `json:"item_id" validate:"required"`
	Favorite *bool  `json:"favorite,omitempty"`
}

func (router *Router) feedToggleFavorite(w http.ResponseWriter, r *http.Request) {
	var req favoriteToggleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	session, err := router.session(r, req.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	favorite, err := router.deps.Feed.ToggleFavorite(r.Context(), session.UserID, req.ItemID, req.Favorite)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, map[string]any{
		"item_id":  req.ItemID,
		"favorite": favorite,
	})
}

type assignCollectionRequest struct {
	UserID       string `json:"user_id,omitempty"`
	ItemID       string `json:"item_id" validate:"required"`
	CollectionID string `json:"collection_id" validate:"required"`
}

func (router *Router) feedAssignCollection(w http.ResponseWriter, r *http.Request) {
	var req assignCollectionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	session, err := router.session(r, req.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := router.deps.Feed.AssignCollection(r.Context(), session.UserID, req.ItemID, req.CollectionID); err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, map[string]any{
		"item_id":       req.ItemID,
		"collection_id": req.CollectionID,
	})
}

type bulkDownloadRequest struct {
	UserID     string          `json:"user_id,omitempty"`
	Platform   models.Platform `json:"platform" validate:"required,platform"`
	SourceURLs []string        `json:"source_urls" validate:"required,min=1,max=50,dive,url"`
}

func (router *Router) feedBulkDownload(w http.ResponseWriter, r *http.Request) {
	if err := requireFeature(router.cfg.Features.ExternalMediaDownload, "external media download"); err != nil {
		respondError(w, r, err)
		return
	}
	var req bulkDownloadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	session, err := router.session(r, req.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	results, err := router.deps.Media.EnqueueBulkDownloads(r.Context(), session.UserID, req.Platform, req.SourceURLs)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, http.StatusAccepted, results)
}

type jobStatusRequest struct {
	UserID string   `json:"user_id,omitempty"`
	JobIDs []string `json:"job_ids" validate:"required,min=1,max=100"`
}

func (router *Router) feedDownloadStatus(w http.ResponseWriter, r *http.Request) {
	var req jobStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	session, err := router.session(r, req.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	jobs, err := router.deps.Media.DownloadStatus(r.Context(), session.UserID, req.JobIDs)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, jobs)
}

type bulkTranscriptsRequest struct {
	UserID  string   `json:"user_id,omitempty"`
	ItemIDs []string `json:"item_ids" validate:"required,min=1,max=50"`
}

func (router *Router) feedBulkTranscripts(w http.ResponseWriter, r *http.Request) {
	var req bulkTranscriptsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	session, err := router.session(r, req.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	// Per-item failures surface in the result list; the batch itself never
	// aborts halfway.
	results := make([]map[string]any, 0, len(req.ItemIDs))
	for _, itemID := range req.ItemIDs {
		entry := map[string]any{"item_id": itemID}
		job, err := router.deps.Media.EnqueueTranscript(r.Context(), session.UserID, itemID)
		if err != nil {
			entry["error"] = apperr.DetailOf(err)
		} else {
			entry["job"] = job
		}
		results = append(results, entry)
	}
	respondData(w, r, http.StatusAccepted, results)
}

func (router *Router) feedTranscriptStatus(w http.ResponseWriter, r *http.Request) {
	var req jobStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	session, err := router.session(r, req.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	jobs, err := router.deps.Media.TranscriptStatus(r.Context(), session.UserID, req.JobIDs)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, jobs)
}

type feedFollowRequest struct {
	UserID string `json:"user_id,omitempty"`
	feedloop.FollowRequest
}

func (router *Router) feedUpsertFollow(w http.ResponseWriter, r *http.Request) {
	var req feedFollowRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	session, err := router.session(r, req.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	follow, created, err := router.deps.Feed.UpsertFollow(r.Context(), session.UserID, &req.FollowRequest)
	if err != nil {
		respondError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondData(w, r, status, follow)
}

func (router *Router) feedListFollows(w http.ResponseWriter, r *http.Request) {
	session, err := router.session(r, "")
	if err != nil {
		respondError(w, r, err)
		return
	}
	follows, err := router.deps.Feed.ListFollows(r.Context(), session.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, follows)
}

func (router *Router) feedDeleteFollow(w http.ResponseWriter, r *http.Request) {
	session, err := router.session(r, "")
	if err != nil {
		respondError(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	if err := router.deps.Feed.DeleteFollow(r.Context(), session.UserID, id); err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, map[string]any{"deleted": id})
}

type feedRunFollowsRequest struct {
	UserID string `json:"user_id,omitempty"`
	feedloop.RunFollowsRequest
}

func (router *Router) feedRunFollows(w http.ResponseWriter, r *http.Request) {
	var req feedRunFollowsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	session, err := router.session(r, req.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	runs, err := router.deps.Feed.RunFollows(r.Context(), session.UserID, &req.RunFollowsRequest)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, runs)
}

func (router *Router) feedListIngestRuns(w http.ResponseWriter, r *http.Request) {
	session, err := router.session(r, "")
	if err != nil {
		respondError(w, r, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := router.deps.Feed.ListIngestRuns(r.Context(), session.UserID, limit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, runs)
}

type repostPackageRequest struct {
	UserID string `json:"user_id,omitempty"`
	feedloop.PackageRequest
}

func (router *Router) feedBuildRepostPackage(w http.ResponseWriter, r *http.Request) {
	var req repostPackageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	session, err := router.session(r, req.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	pkg, err := router.deps.Feed.BuildRepostPackage(r.Context(), session.UserID, &req.PackageRequest)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, http.StatusCreated, pkg)
}

func (router *Router) feedListRepostPackages(w http.ResponseWriter, r *http.Request) {
	session, err := router.session(r, "")
	if err != nil {
		respondError(w, r, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	packages, err := router.deps.Feed.ListRepostPackages(r.Context(), session.UserID, r.URL.Query().Get("source_item_id"), limit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, packages)
}

func (router *Router) feedGetRepostPackage(w http.ResponseWriter, r *http.Request) {
	session, err := router.session(r, "")
	if err != nil {
		respondError(w, r, err)
		return
	}
	pkg, err := router.deps.Feed.GetRepostPackage(r.Context(), session.UserID, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, pkg)
}

type repostStatusRequest struct {
	UserID string              `json:"user_id,omitempty"`
	Status models.RepostStatus `json:"status" validate:"required"`
}

func (router *Router) feedUpdateRepostStatus(w http.ResponseWriter, r *http.Request) {
	var req repostStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	session, err := router.session(r, req.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	pkg, err := router.deps.Feed.UpdateRepostStatus(r.Context(), session.UserID, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, pkg)
}

type loopItemRequest struct {
	UserID       string `json:"user_id,omitempty"`
	SourceItemID string `json:"source_item_id" validate:"required"`
}

func (router *Router) feedLoopVariantGenerate(w http.ResponseWriter, r *http.Request) {
	var req loopItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	session, err := router.session(r, req.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	batch, err := router.deps.Feed.VariantGenerate(r.Context(), session.UserID, req.SourceItemID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, http.StatusCreated, batch)
}

func (router *Router) feedLoopAudit(w http.ResponseWriter, r *http.Request) {
	var req loopItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	session, err := router.session(r, req.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	audit, err := router.deps.Feed.LoopAudit(r.Context(), session.UserID, req.SourceItemID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, http.StatusAccepted, audit)
}

func (router *Router) feedLoopSummary(w http.ResponseWriter, r *http.Request) {
	session, err := router.session(r, "")
	if err != nil {
		respondError(w, r, err)
		return
	}
	itemID := r.URL.Query().Get("source_item_id")
	if itemID == "" {
		respondError(w, r, apperr.BadRequest("source_item_id query parameter is required"))
		return
	}
	summary, err := router.deps.Feed.Summary(r.Context(), session.UserID, itemID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, summary)
}

func (router *Router) feedTelemetrySummary(w http.ResponseWriter, r *http.Request) {
	session, err := router.session(r, "")
	if err != nil {
		respondError(w, r, err)
		return
	}
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	summary, err := router.deps.Feed.TelemetrySummary(r.Context(), session.UserID, days)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, summary)
}

func (router *Router) feedTelemetryEvents(w http.ResponseWriter, r *http.Request) {
	session, err := router.session(r, "")
	if err != nil {
		respondError(w, r, err)
		return
	}
	q := r.URL.Query()
	days, _ := strconv.Atoi(q.Get("days"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	events, err := router.deps.Feed.ListTelemetryEvents(r.Context(), session.UserID, days, limit)
	if err != nil {
		respondError(w, r, err)
		return
	}

	// Optional name/status filters apply after the window query.
	eventName, status := q.Get("event_name"), q.Get("status")
	if eventName != "" || status != "" {
		filtered := events[:0:0]
		for _, e := range events {
			if eventName != "" && e.EventName != eventName {
				continue
			}
			if status != "" && e.Status != status {
				continue
			}
			filtered = append(filtered, e)
		}
		events = filtered
	}
	respondData(w, r, http.StatusOK, events)
}
