// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package outcome

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipsight/clipsight/internal/database"
	"github.com/clipsight/clipsight/internal/models"
)

type mockOutcomeStore struct {
	outcomes  []models.OutcomeMetric
	snapshots map[string]*models.CalibrationSnapshot
	items     map[string]*models.ResearchItem
	nextID    int
}

func newMockOutcomeStore() *mockOutcomeStore {
	return &mockOutcomeStore{
		snapshots: make(map[string]*models.CalibrationSnapshot),
		items:     make(map[string]*models.ResearchItem),
	}
}

func (m *mockOutcomeStore) AppendOutcomeMetric(_ context.Context, metric *models.OutcomeMetric) error {
	m.nextID++
	metric.ID = fmt.Sprintf("outcome-%d", m.nextID)
	metric.CreatedAt = time.Now().UTC()
	// Newest first, matching the real store's ordering.
	m.outcomes = append([]models.OutcomeMetric{*metric}, m.outcomes...)
	return nil
}

func (m *mockOutcomeStore) RecentOutcomeMetrics(_ context.Context, userID string, platform models.Platform, limit int) ([]models.OutcomeMetric, error) {
	var out []models.OutcomeMetric
	for _, o := range m.outcomes {
		if o.UserID == userID && o.Platform == platform && len(out) < limit {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockOutcomeStore) OutcomeMetricsSince(_ context.Context, userID string, platform models.Platform, since time.Time) ([]models.OutcomeMetric, error) {
	var out []models.OutcomeMetric
	for _, o := range m.outcomes {
		if o.UserID == userID && o.Platform == platform && !o.PostedAt.Before(since) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockOutcomeStore) OutcomeByReportID(_ context.Context, userID, reportID string) (*models.OutcomeMetric, error) {
	for _, o := range m.outcomes {
		if o.UserID == userID && o.ReportID == reportID {
			return &o, nil
		}
	}
	return nil, database.ErrNotFound
}

func (m *mockOutcomeStore) DistinctOutcomePairs(_ context.Context) ([][2]string, error) {
	seen := make(map[[2]string]bool)
	var pairs [][2]string
	for _, o := range m.outcomes {
		pair := [2]string{o.UserID, string(o.Platform)}
		if !seen[pair] {
			seen[pair] = true
			pairs = append(pairs, pair)
		}
	}
	return pairs, nil
}

func (m *mockOutcomeStore) UpsertCalibrationSnapshot(_ context.Context, s *models.CalibrationSnapshot) error {
	s.UpdatedAt = time.Now().UTC()
	m.snapshots[s.UserID+":"+string(s.Platform)] = s
	return nil
}

func (m *mockOutcomeStore) GetCalibrationSnapshot(_ context.Context, userID string, platform models.Platform) (*models.CalibrationSnapshot, error) {
	s, ok := m.snapshots[userID+":"+string(platform)]
	if !ok {
		return nil, database.ErrNotFound
	}
	return s, nil
}

func (m *mockOutcomeStore) GetResearchItem(_ context.Context, userID, id string) (*models.ResearchItem, error) {
	item, ok := m.items[id]
	if !ok || item.UserID != userID {
		return nil, database.ErrNotFound
	}
	return item, nil
}

func TestActualScoreComponents(t *testing.T) {
	// 99,999 views: log10(100000)=5, reach = 30 (capped at 37.5 raw).
	metrics := models.ActualMetrics{
		Views:         99_999,
		Likes:         2_000,
		Comments:      500,
		Shares:        300,
		Saves:         200,
		AvgWatchTimeS: 21,
	}
	retention := []float64{80, 60, 40}

	score := actualScore(metrics, retention)

	// reach 30, engagement min(42, 4500/100000*900)=40.5 -> weighted =
	// 2000 + 1000 + 900 + 600 = 4500; watch 21/3.5 = 6; retention
	// avg(60)*0.12 = 7.2. Total 83.7.
	assert.InDelta(t, 83.7, score, 0.05)
}

func TestActualScoreZeroViews(t *testing.T) {
	score := actualScore(models.ActualMetrics{}, nil)
	assert.Equal(t, 0.0, score)
}

func TestActualScoreClampsAt100(t *testing.T) {
	metrics := models.ActualMetrics{
		Views:         10_000_000,
		Likes:         5_000_000,
		Comments:      1_000_000,
		Shares:        1_000_000,
		Saves:         1_000_000,
		AvgWatchTimeS: 300,
	}
	score := actualScore(metrics, []float64{100, 100})
	assert.Equal(t, 100.0, score)
}

func TestIngestComputesDeltaFromExplicitPrediction(t *testing.T) {
	store := newMockOutcomeStore()
	svc := NewService(store)
	predicted := 72.0

	metric, err := svc.Ingest(context.Background(), "user-1", &IngestRequest{
		Platform:       models.PlatformYouTube,
		PredictedScore: &predicted,
		ActualMetrics:  models.ActualMetrics{Views: 9_999, Likes: 400, AvgWatchTimeS: 14},
	})
	require.NoError(t, err)
	require.NotNil(t, metric.PredictedScore)
	assert.Equal(t, 72.0, *metric.PredictedScore)
	require.NotNil(t, metric.CalibrationDelta)
	assert.InDelta(t, metric.ActualScore-72.0, *metric.CalibrationDelta, 0.01)

	// Ingest refreshes the snapshot inline.
	snap, err := store.GetCalibrationSnapshot(context.Background(), "user-1", models.PlatformYouTube)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.SampleSize)
}

func TestIngestClampsExplicitPrediction(t *testing.T) {
	store := newMockOutcomeStore()
	svc := NewService(store)
	predicted := 140.0

	metric, err := svc.Ingest(context.Background(), "user-1", &IngestRequest{
		Platform:       models.PlatformTikTok,
		PredictedScore: &predicted,
		ActualMetrics:  models.ActualMetrics{Views: 100},
	})
	require.NoError(t, err)
	require.NotNil(t, metric.PredictedScore)
	assert.Equal(t, 100.0, *metric.PredictedScore)
}

func TestIngestResolvesPredictionFromItemMeta(t *testing.T) {
	store := newMockOutcomeStore()
	svc := NewService(store)
	store.items["item-1"] = &models.ResearchItem{
		ID: "item-1", UserID: "user-1", Platform: models.PlatformTikTok,
		MediaMeta: models.JSONMap{models.MetaPredictedScore: 64.5},
	}

	metric, err := svc.Ingest(context.Background(), "user-1", &IngestRequest{
		Platform:      models.PlatformTikTok,
		ContentItemID: "item-1",
		ActualMetrics: models.ActualMetrics{Views: 5_000, Likes: 200},
	})
	require.NoError(t, err)
	require.NotNil(t, metric.PredictedScore)
	assert.Equal(t, 64.5, *metric.PredictedScore)
	require.NotNil(t, metric.CalibrationDelta)
}

func TestIngestWithoutPredictionLeavesDeltaNull(t *testing.T) {
	store := newMockOutcomeStore()
	svc := NewService(store)

	metric, err := svc.Ingest(context.Background(), "user-1", &IngestRequest{
		Platform:      models.PlatformInstagram,
		ActualMetrics: models.ActualMetrics{Views: 1_000},
	})
	require.NoError(t, err)
	assert.Nil(t, metric.PredictedScore)
	assert.Nil(t, metric.CalibrationDelta)
}

func TestBuildSnapshotConfidenceTiers(t *testing.T) {
	outcomes := func(n int, delta float64) []models.OutcomeMetric {
		out := make([]models.OutcomeMetric, n)
		for i := range out {
			d := delta
			out[i].CalibrationDelta = &d
		}
		return out
	}

	low := buildSnapshot("u", models.PlatformYouTube, outcomes(5, 3))
	assert.Equal(t, models.ConfidenceLow, low.Confidence)

	medium := buildSnapshot("u", models.PlatformYouTube, outcomes(10, 14))
	assert.Equal(t, models.ConfidenceMedium, medium.Confidence)
	assert.InDelta(t, 14.0, medium.MeanAbsError, 0.01)
	assert.Equal(t, 0.0, medium.HitRate, "14-point misses are not hits")

	high := buildSnapshot("u", models.PlatformYouTube, outcomes(25, 4))
	assert.Equal(t, models.ConfidenceHigh, high.Confidence)
	assert.Equal(t, 1.0, high.HitRate)
}

func TestBuildSnapshotTrend(t *testing.T) {
	// Newest first: recent half tight, older half loose -> improving.
	var outcomes []models.OutcomeMetric
	for i := 0; i < 6; i++ {
		d := 2.0
		outcomes = append(outcomes, models.OutcomeMetric{CalibrationDelta: &d})
	}
	for i := 0; i < 6; i++ {
		d := 12.0
		outcomes = append(outcomes, models.OutcomeMetric{CalibrationDelta: &d})
	}
	snap := buildSnapshot("u", models.PlatformYouTube, outcomes)
	assert.Equal(t, models.TrendImproving, snap.Trend)

	// Reverse order -> drifting.
	reversed := make([]models.OutcomeMetric, len(outcomes))
	for i := range outcomes {
		reversed[i] = outcomes[len(outcomes)-1-i]
	}
	snap = buildSnapshot("u", models.PlatformYouTube, reversed)
	assert.Equal(t, models.TrendDrifting, snap.Trend)
}

func TestDriftWindowBias(t *testing.T) {
	under := make([]models.OutcomeMetric, 3)
	for i := range under {
		d := 5.0
		under[i].CalibrationDelta = &d
	}
	w := buildWindow(under)
	assert.Equal(t, models.BiasUnderpredicting, w.Bias)
	assert.InDelta(t, 5.0, w.MeanDelta, 0.01)

	over := make([]models.OutcomeMetric, 3)
	for i := range over {
		d := -4.0
		over[i].CalibrationDelta = &d
	}
	assert.Equal(t, models.BiasOverpredicting, buildWindow(over).Bias)

	mixed := []models.OutcomeMetric{under[0], over[0]}
	assert.Equal(t, models.BiasNeutral, buildWindow(mixed).Bias)
}

func TestSummaryAssemblesDriftWindows(t *testing.T) {
	store := newMockOutcomeStore()
	svc := NewService(store)
	predicted := 50.0

	// One recent outcome, one outside the 7-day window.
	recent := time.Now().UTC().AddDate(0, 0, -2)
	older := time.Now().UTC().AddDate(0, 0, -20)
	for _, postedAt := range []time.Time{recent, older} {
		ts := postedAt
		_, err := svc.Ingest(context.Background(), "user-1", &IngestRequest{
			Platform:       models.PlatformYouTube,
			PostedAt:       &ts,
			PredictedScore: &predicted,
			ActualMetrics:  models.ActualMetrics{Views: 50_000, Likes: 3_000, AvgWatchTimeS: 20},
		})
		require.NoError(t, err)
	}

	summary, err := svc.Summary(context.Background(), "user-1", models.PlatformYouTube)
	require.NoError(t, err)
	require.NotNil(t, summary.Snapshot)
	assert.Equal(t, 2, summary.Snapshot.SampleSize)
	assert.Equal(t, 1, summary.DriftWindows.D7.Count)
	assert.Equal(t, 2, summary.DriftWindows.D30.Count)
	assert.Len(t, summary.RecentOutcomes, 2)
	assert.NotEmpty(t, summary.NextActions)
}

func TestRecalibrateAllSweepsPairs(t *testing.T) {
	store := newMockOutcomeStore()
	svc := NewService(store)
	predicted := 60.0

	for _, platform := range []models.Platform{models.PlatformYouTube, models.PlatformTikTok} {
		_, err := svc.Ingest(context.Background(), "user-1", &IngestRequest{
			Platform:       platform,
			PredictedScore: &predicted,
			ActualMetrics:  models.ActualMetrics{Views: 10_000, Likes: 500},
		})
		require.NoError(t, err)
	}

	result, err := svc.RecalibrateAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Refreshed)
	assert.Zero(t, result.Skipped)
	assert.Len(t, store.snapshots, 2)
}
