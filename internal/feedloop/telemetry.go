// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package feedloop

import (
	"context"
	"math"
	"time"

	"github.com/clipsight/clipsight/internal/logging"
	"github.com/clipsight/clipsight/internal/models"
)

// record appends one telemetry event. Failures are logged and swallowed;
// telemetry must never break the primary workflow.
func (s *Service) record(ctx context.Context, userID, eventName, status string, platform models.Platform, sourceItemID string, details models.JSONMap) {
	event := &models.FeedTelemetryEvent{
		UserID:       userID,
		EventName:    eventName,
		Status:       status,
		Platform:     platform,
		SourceItemID: sourceItemID,
		Details:      details,
	}
	if err := s.store.AppendTelemetryEvent(ctx, event); err != nil {
		logging.Warn().Err(err).
			Str("event_name", eventName).
			Str("user_id", userID).
			Msg("Telemetry append failed")
	}
}

// ListTelemetryEvents returns recent events, newest first.
func (s *Service) ListTelemetryEvents(ctx context.Context, userID string, days, limit int) ([]models.FeedTelemetryEvent, error) {
	if days <= 0 {
		days = 7
	}
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	since := time.Now().UTC().AddDate(0, 0, -days)
	return s.store.ListTelemetryEvents(ctx, userID, since, limit)
}

// funnelStages maps event names to funnel stages. Only "ok" events count.
var funnelStages = map[string]string{
	"feed_discover":        "discovered",
	"feed_repost_package":  "packaged",
	"feed_variant_loop":    "scripted",
	"feed_audit_loop":      "audited",
	"feed_report_delivery": "reported",
}

// TelemetrySummary aggregates event volume and the stage funnel over the
// last N days.
func (s *Service) TelemetrySummary(ctx context.Context, userID string, days int) (*models.TelemetrySummary, error) {
	if days <= 0 {
		days = 7
	}
	since := time.Now().UTC().AddDate(0, 0, -days)
	events, err := s.store.ListTelemetryEvents(ctx, userID, since, 5000)
	if err != nil {
		return nil, err
	}

	volume := models.TelemetryVolume{
		ByEvent:  make(map[string]int),
		ByStatus: make(map[string]int),
	}
	stageCounts := make(map[string]int)
	for _, e := range events {
		volume.Total++
		volume.ByEvent[e.EventName]++
		volume.ByStatus[e.Status]++
		if e.Status == "error" {
			volume.ErrorCount++
		}
		if stage, ok := funnelStages[e.EventName]; ok && e.Status == "ok" {
			stageCounts[stage]++
		}
	}

	funnel := models.TelemetryFunnel{
		Discovered: stageCounts["discovered"],
		Packaged:   stageCounts["packaged"],
		Scripted:   stageCounts["scripted"],
		Audited:    stageCounts["audited"],
		Reported:   stageCounts["reported"],
	}
	funnel.DiscoverToPackage = conversionPct(funnel.Packaged, funnel.Discovered)
	funnel.PackageToScript = conversionPct(funnel.Scripted, funnel.Packaged)
	funnel.ScriptToAudit = conversionPct(funnel.Audited, funnel.Scripted)
	funnel.AuditToReport = conversionPct(funnel.Reported, funnel.Audited)

	return &models.TelemetrySummary{
		Days:        days,
		EventVolume: volume,
		Funnel:      funnel,
	}, nil
}

// conversionPct is num/den as a percentage rounded to one decimal, 0 when
// the denominator is empty.
func conversionPct(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return round1(float64(num) / float64(den) * 100)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
