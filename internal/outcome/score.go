// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package outcome

import (
	"math"

	"github.com/clipsight/clipsight/internal/models"
)

// Actual-score component caps. The four components sum to at most 100.
const (
	reachCap      = 30.0
	engagementCap = 42.0
	watchCap      = 18.0
	retentionCap  = 10.0
)

// actualScore computes the observed 0..100 performance score from post
// metrics. Deterministic; the same inputs always produce the same score.
//
//	reach      = min(30, log10(views+1) * 7.5)
//	engagement = min(42, weighted_rate * 900)
//	watch      = min(18, watch_seconds / 3.5)
//	retention  = min(10, avg(retention_points) * 0.12)
func actualScore(m models.ActualMetrics, retentionPoints []float64) float64 {
	reach := math.Min(reachCap, math.Log10(float64(m.Views)+1)*7.5)

	views := float64(m.Views)
	if views < 1 {
		views = 1
	}
	weighted := float64(m.Likes) + 2*float64(m.Comments) + 3*float64(m.Shares) + 3*float64(m.Saves)
	engagement := math.Min(engagementCap, weighted/views*900)

	watchSeconds := math.Max(m.AvgWatchTimeS, m.AvgViewDurS)
	watch := math.Min(watchCap, watchSeconds/3.5)

	retention := 0.0
	if len(retentionPoints) > 0 {
		sum := 0.0
		for _, p := range retentionPoints {
			sum += p
		}
		retention = math.Min(retentionCap, sum/float64(len(retentionPoints))*0.12)
	}

	total := reach + engagement + watch + retention
	if total < 0 {
		total = 0
	}
	if total > 100 {
		total = 100
	}
	return round1(total)
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
