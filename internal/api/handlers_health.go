// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package api

import (
	"context"
	"net/http"
	"time"
)

const readyProbeTimeout = 5 * time.Second

func (router *Router) health(w http.ResponseWriter, r *http.Request) {
	respondData(w, r, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

func (router *Router) healthLive(w http.ResponseWriter, r *http.Request) {
	respondData(w, r, http.StatusOK, map[string]any{"status": "alive"})
}

// healthReady reports readiness: the database must answer a ping and the
// job broker must be reachable.
func (router *Router) healthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyProbeTimeout)
	defer cancel()

	checks := map[string]string{}
	ready := true
	probe := func(name string, fn func(ctx context.Context) error) {
		if fn == nil {
			checks[name] = "skipped"
			return
		}
		if err := fn(ctx); err != nil {
			checks[name] = err.Error()
			ready = false
			return
		}
		checks[name] = "ok"
	}
	probe("database", router.deps.DBPing)
	probe("queue", router.deps.QueuePing)

	status := http.StatusOK
	state := "ready"
	if !ready {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}
	respondData(w, r, status, map[string]any{
		"status": state,
		"checks": checks,
	})
}
