// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package api

import (
	"net/http"

	"github.com/clipsight/clipsight/internal/apperr"
)

func (router *Router) billingCredits(w http.ResponseWriter, r *http.Request) {
	session, err := router.session(r, "")
	if err != nil {
		respondError(w, r, err)
		return
	}
	summary, err := router.deps.Credits.Summary(r.Context(), session.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, summary)
}

// billingCheckout is a stub until a payment provider is integrated. It
// validates the configuration and echoes the checkout parameters.
func (router *Router) billingCheckout(w http.ResponseWriter, r *http.Request) {
	session, err := router.session(r, "")
	if err != nil {
		respondError(w, r, err)
		return
	}
	if !router.cfg.Billing.Enabled {
		respondError(w, r, apperr.FeatureDisabled("billing is disabled on this deployment"))
		return
	}
	respondData(w, r, http.StatusOK, map[string]any{
		"provider":    "stripe",
		"status":      "pending_integration",
		"price_id":    router.cfg.Billing.StripePriceID,
		"success_url": router.cfg.Billing.StripeSuccessURL,
		"user_id":     session.UserID,
	})
}

type topupRequest struct {
	UserID           string `json:"user_id,omitempty"`
	Credits          int    `json:"credits" validate:"required,gt=0"`
	Provider         string `json:"provider" validate:"required"`
	BillingReference string `json:"billing_reference" validate:"required"`
}

func (router *Router) billingTopup(w http.ResponseWriter, r *http.Request) {
	var req topupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	session, err := router.session(r, req.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	balance, err := router.deps.Credits.AddPurchase(r.Context(), session.UserID, req.Credits, req.Provider, req.BillingReference)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, map[string]any{
		"credits_added": req.Credits,
		"balance_after": balance,
	})
}
