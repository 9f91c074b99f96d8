// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"

	"github.com/clipsight/clipsight/internal/apperr"
	"github.com/clipsight/clipsight/internal/database"
	"github.com/clipsight/clipsight/internal/logging"
	"github.com/clipsight/clipsight/internal/models"
	"github.com/clipsight/clipsight/internal/validation"
)

// maxJSONBody bounds JSON request bodies. Uploads use their own limit.
const maxJSONBody = 1 << 20

// statusFor maps an error kind to its HTTP status.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindBadRequest:
		return http.StatusBadRequest
	case apperr.KindUnauthenticated:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindFeatureDisabled:
		return http.StatusForbidden
	case apperr.KindInsufficientCredits:
		return http.StatusPaymentRequired
	case apperr.KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case apperr.KindServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func newMeta(r *http.Request) *models.APIMetadata {
	return &models.APIMetadata{
		RequestID: chimiddleware.GetReqID(r.Context()),
		Timestamp: time.Now().UTC(),
	}
}

func writeJSON(w http.ResponseWriter, status int, body *models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error().Err(err).Msg("Failed to encode response")
	}
}

// respondData writes a success envelope.
func respondData(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeJSON(w, status, &models.APIResponse{
		Success: true,
		Data:    data,
		Meta:    newMeta(r),
	})
}

// respondPage writes a success envelope with pagination metadata.
func respondPage(w http.ResponseWriter, r *http.Request, items any, page, limit, total, totalPages int) {
	meta := newMeta(r)
	meta.Page = page
	meta.Limit = limit
	meta.Total = total
	meta.TotalPages = totalPages
	writeJSON(w, http.StatusOK, &models.APIResponse{
		Success: true,
		Data:    items,
		Meta:    meta,
	})
}

// respondError maps any error to the error envelope. Untyped errors render
// as a generic 500 so internals never leak to clients.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var reqErr *validation.RequestError
	if errors.As(err, &reqErr) {
		writeJSON(w, http.StatusBadRequest, &models.APIResponse{
			Success: false,
			Error:   &models.APIError{Code: "bad_request", Detail: reqErr.Detail()},
			Meta:    newMeta(r),
		})
		return
	}
	if errors.Is(err, database.ErrNotFound) {
		err = apperr.NotFound("resource not found")
	}

	kind := apperr.KindOf(err)
	status := statusFor(kind)
	if status >= http.StatusInternalServerError {
		logging.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
	}
	writeJSON(w, status, &models.APIResponse{
		Success: false,
		Error:   &models.APIError{Code: kind.String(), Detail: apperr.DetailOf(err)},
		Meta:    newMeta(r),
	})
}

// decodeJSON reads and validates a JSON request body into dst. Struct
// validation tags run after decode.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.BadRequest("request body is required")
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.New(apperr.KindPayloadTooLarge, "request body too large")
		}
		return apperr.Wrap(apperr.KindBadRequest, "invalid JSON body", err)
	}
	if verr := validation.ValidateStruct(dst); verr != nil {
		return verr
	}
	return nil
}
