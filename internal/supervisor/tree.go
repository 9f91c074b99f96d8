// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

// Package supervisor owns the process service tree. Long-running pieces
// (HTTP server, queue consumers, schedulers) run as supervised services
// with restart backoff, isolated per layer so a crashing worker cannot
// take the API down with it.
package supervisor

import (
	"context"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// Tree is the three-layer supervisor: data (retention and maintenance),
// workers (queue consumers and schedulers), and api (the HTTP server).
type Tree struct {
	root    *suture.Supervisor
	data    *suture.Supervisor
	workers *suture.Supervisor
	api     *suture.Supervisor
}

// NewTree builds the supervisor hierarchy with suture's default failure
// parameters and lifecycle events logged through the process logger.
func NewTree(shutdownTimeout time.Duration) *Tree {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	handler := &sutureslog.Handler{Logger: NewSlogLogger()}
	rootSpec := suture.Spec{
		EventHook: handler.MustHook(),
		Timeout:   shutdownTimeout,
	}
	childSpec := suture.Spec{Timeout: shutdownTimeout}

	root := suture.New("clipsight", rootSpec)
	data := suture.New("data-layer", childSpec)
	workers := suture.New("worker-layer", childSpec)
	api := suture.New("api-layer", childSpec)
	root.Add(data)
	root.Add(workers)
	root.Add(api)

	return &Tree{root: root, data: data, workers: workers, api: api}
}

// AddDataService supervises a maintenance service (retention sweeps).
func (t *Tree) AddDataService(svc suture.Service) suture.ServiceToken {
	return t.data.Add(svc)
}

// AddWorkerService supervises a queue consumer or scheduler.
func (t *Tree) AddWorkerService(svc suture.Service) suture.ServiceToken {
	return t.workers.Add(svc)
}

// AddAPIService supervises the HTTP server.
func (t *Tree) AddAPIService(svc suture.Service) suture.ServiceToken {
	return t.api.Add(svc)
}

// Serve runs the tree until the context is canceled.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground runs the tree in a goroutine; the channel yields the
// terminal error when the tree stops.
func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}
