// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/clipsight/clipsight/internal/apperr"
	"github.com/clipsight/clipsight/internal/metrics"
	"github.com/clipsight/clipsight/internal/models"
)

// metricsMiddleware records request counts, latency, and the in-flight
// gauge, labeled by the matched route pattern rather than the raw path.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics.TrackActiveRequest(true)
		defer metrics.TrackActiveRequest(false)

		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		endpoint := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			endpoint = rctx.RoutePattern()
		}
		metrics.RecordAPIRequest(r.Method, endpoint, ww.Status(), time.Since(start))
	})
}

// rateLimiter builds a per-IP limiter for a route group. The group name
// keys the quota so sensitive prefixes get independent budgets, and feeds
// the rejection counter.
func rateLimiter(group string, requests int, window time.Duration) func(http.Handler) http.Handler {
	if requests <= 0 {
		requests = 120
	}
	if window <= 0 {
		window = time.Minute
	}
	return httprate.Limit(
		requests,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP, func(*http.Request) (string, error) {
			return group, nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			metrics.APIRateLimitHits.WithLabelValues(group).Inc()
			writeJSON(w, http.StatusTooManyRequests, &models.APIResponse{
				Success: false,
				Error:   &models.APIError{Code: "rate_limited", Detail: "rate limit exceeded; retry later"},
				Meta:    newMeta(r),
			})
		}),
	)
}

// unauthorized renders an authentication failure in the standard envelope.
// Passed to the session middleware so auth errors match every other error.
func unauthorized(w http.ResponseWriter, r *http.Request, err error) {
	if apperr.KindOf(err) != apperr.KindUnauthenticated {
		err = apperr.Unauthenticated("invalid session")
	}
	respondError(w, r, err)
}
