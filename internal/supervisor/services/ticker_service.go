// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package services

import (
	"context"
	"time"

	"github.com/clipsight/clipsight/internal/logging"
)

// TickerService runs a periodic job under supervision. A failing tick is
// logged and the schedule continues; only context cancellation stops the
// loop. Used for outcome recalibration, feed auto-ingest, and the upload
// retention sweep.
type TickerService struct {
	name     string
	interval time.Duration
	tick     func(ctx context.Context) error
}

func NewTickerService(name string, interval time.Duration, tick func(ctx context.Context) error) *TickerService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &TickerService{name: name, interval: interval, tick: tick}
}

// Serve implements suture.Service.
func (s *TickerService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.tick(ctx); err != nil {
				logging.Warn().Err(err).Str("service", s.name).Msg("Scheduled tick failed")
			}
		}
	}
}

func (s *TickerService) String() string { return s.name }
