// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/clipsight/clipsight/internal/logging"
	"github.com/clipsight/clipsight/internal/models"
	"github.com/clipsight/clipsight/internal/optimizer"
)

// optimizerVariantGenerate debits optimizer_variants, then generates a
// scored variant batch. A failed generation after the debit is refunded;
// the ledger stays append-only either way.
func (router *Router) optimizerVariantGenerate(w http.ResponseWriter, r *http.Request) {
	var req models.VariantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	session, err := router.session(r, req.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	req.UserID = session.UserID

	refID := req.SourceItemID
	if refID == "" {
		refID = "direct"
	}
	result, err := router.deps.Credits.ConsumeOp(r.Context(), session.UserID, models.CreditOpOptimizerVariants, "variant_request", refID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	batch, err := router.deps.Optimizer.GenerateVariants(r.Context(), &req)
	if err != nil {
		if refundErr := router.deps.Credits.Refund(r.Context(), session.UserID, result.Charged, models.CreditOpOptimizerVariants, refID); refundErr != nil {
			logging.Error().Err(refundErr).Str("user_id", session.UserID).Msg("Variant refund failed")
		}
		respondError(w, r, err)
		return
	}
	respondData(w, r, http.StatusCreated, batch)
}

func (router *Router) optimizerRescore(w http.ResponseWriter, r *http.Request) {
	var req optimizer.RescoreRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	session, err := router.session(r, req.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	req.UserID = session.UserID

	result, err := router.deps.Optimizer.Rescore(r.Context(), &req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, result)
}

func (router *Router) optimizerCreateDraftSnapshot(w http.ResponseWriter, r *http.Request) {
	var req models.DraftSnapshot
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	session, err := router.session(r, req.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	req.UserID = session.UserID

	snapshot, err := router.deps.Optimizer.CreateDraftSnapshot(r.Context(), &req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, http.StatusCreated, snapshot)
}

func (router *Router) optimizerListDraftSnapshots(w http.ResponseWriter, r *http.Request) {
	session, err := router.session(r, "")
	if err != nil {
		respondError(w, r, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	snapshots, err := router.deps.Optimizer.ListDraftSnapshots(r.Context(), session.UserID, limit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, snapshots)
}

func (router *Router) optimizerGetDraftSnapshot(w http.ResponseWriter, r *http.Request) {
	session, err := router.session(r, "")
	if err != nil {
		respondError(w, r, err)
		return
	}
	snapshot, err := router.deps.Optimizer.GetDraftSnapshot(r.Context(), session.UserID, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, snapshot)
}

func (router *Router) optimizerGetVariantBatch(w http.ResponseWriter, r *http.Request) {
	session, err := router.session(r, "")
	if err != nil {
		respondError(w, r, err)
		return
	}
	batch, err := router.deps.Optimizer.GetVariantBatch(r.Context(), session.UserID, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, batch)
}
