// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package report

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipsight/clipsight/internal/apperr"
	"github.com/clipsight/clipsight/internal/database"
	"github.com/clipsight/clipsight/internal/models"
)

type mockReportStore struct {
	audits    map[string]*models.Audit
	latest    *models.Audit
	snapshots map[string]*models.DraftSnapshot
	outcomes  map[string]*models.OutcomeMetric // by report id
	recent    []models.OutcomeMetric
	calib     *models.CalibrationSnapshot
}

func (m *mockReportStore) GetAudit(_ context.Context, userID, id string) (*models.Audit, error) {
	audit, ok := m.audits[id]
	if !ok || audit.UserID != userID {
		return nil, database.ErrNotFound
	}
	return audit, nil
}

func (m *mockReportStore) LatestCompletedAudit(_ context.Context, _ string) (*models.Audit, error) {
	if m.latest == nil {
		return nil, database.ErrNotFound
	}
	return m.latest, nil
}

func (m *mockReportStore) LatestDraftSnapshot(_ context.Context, _, sourceItemID string) (*models.DraftSnapshot, error) {
	snap, ok := m.snapshots[sourceItemID]
	if !ok {
		return nil, database.ErrNotFound
	}
	return snap, nil
}

func (m *mockReportStore) OutcomeByReportID(_ context.Context, _, reportID string) (*models.OutcomeMetric, error) {
	outcome, ok := m.outcomes[reportID]
	if !ok {
		return nil, database.ErrNotFound
	}
	return outcome, nil
}

func (m *mockReportStore) RecentOutcomeMetrics(_ context.Context, _ string, _ models.Platform, limit int) ([]models.OutcomeMetric, error) {
	if len(m.recent) > limit {
		return m.recent[:limit], nil
	}
	return m.recent, nil
}

func (m *mockReportStore) GetCalibrationSnapshot(_ context.Context, _ string, _ models.Platform) (*models.CalibrationSnapshot, error) {
	if m.calib == nil {
		return nil, database.ErrNotFound
	}
	return m.calib, nil
}

type stubBlueprints struct {
	payload *models.BlueprintPayload
	fail    bool
}

func (b *stubBlueprints) GetOrRefresh(_ context.Context, _ string, platform models.Platform) (*models.BlueprintPayload, error) {
	if b.fail {
		return nil, apperr.New(apperr.KindFatal, "blueprint unavailable")
	}
	if b.payload == nil {
		b.payload = &models.BlueprintPayload{Platform: platform}
	}
	return b.payload, nil
}

type stubOutcomes struct{}

func (stubOutcomes) Summary(_ context.Context, _ string, _ models.Platform) (*models.OutcomeSummary, error) {
	return &models.OutcomeSummary{
		DriftWindows: models.DriftWindows{
			D7: models.DriftWindow{Count: 2, MeanDelta: 3.5, Bias: models.BiasUnderpredicting},
		},
	}, nil
}

func completedAudit(id string, prediction *models.ScoreBreakdown) *models.Audit {
	return &models.Audit{
		ID:     id,
		UserID: "user-1",
		Status: models.AuditCompleted,
		Input: &models.AuditInput{
			SourceMode:   models.AuditSourceUpload,
			Platform:     models.PlatformTikTok,
			Title:        "How I edit #shorts in 20 minutes",
			SourceItemID: "item-1",
		},
		Output: &models.AuditOutput{
			Diagnosis: &models.Diagnosis{
				PrimaryBottleneck: "hook",
				StatsScore:        60,
				Recommendations:   []string{"Front-load the payoff", "Cut the intro"},
			},
			VideoAnalysis: &models.VideoAnalysis{
				VideoID:      id,
				OverallScore: 7.0,
				TimestampFeedback: []models.TimestampFeedback{
					{Timestamp: "00:02", Suggestion: "Show the result before explaining it"},
				},
			},
			PerformancePrediction: prediction,
		},
	}
}

func TestOverallScoreWeights(t *testing.T) {
	audit := completedAudit("audit-1", &models.ScoreBreakdown{Combined: 65})
	// 0.3*60 + 0.4*65 + 0.3*80 = 18 + 26 + 24 = 68
	assert.Equal(t, 68, overallScore(audit.Output))

	// Without a prediction the video score comes from the analysis (7.0*10).
	audit.Output.PerformancePrediction = nil
	// 18 + 28 + 24 = 70
	assert.Equal(t, 70, overallScore(audit.Output))

	// Without a diagnosis stats defaults to 70.
	audit.Output.Diagnosis = nil
	// 21 + 28 + 24 = 73
	assert.Equal(t, 73, overallScore(audit.Output))
}

func TestBuildRejectsIncompleteAudit(t *testing.T) {
	store := &mockReportStore{audits: map[string]*models.Audit{
		"audit-1": {ID: "audit-1", UserID: "user-1", Status: models.AuditAnalyzing},
	}}
	svc := NewService(store, nil, nil)

	_, err := svc.Build(context.Background(), "user-1", "audit-1")
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
}

func TestBuildComposesAllSections(t *testing.T) {
	audit := completedAudit("audit-1", &models.ScoreBreakdown{
		Combined: 65,
		NextActions: []models.NextAction{
			{Title: "Open with the outcome"},
			{Title: "Add a pattern interrupt at 12s"},
			{Title: "Tighten the CTA"},
			{Title: "A fourth action that must not appear"},
		},
	})
	store := &mockReportStore{
		audits: map[string]*models.Audit{"audit-1": audit},
		snapshots: map[string]*models.DraftSnapshot{
			"item-1": {
				ID: "snap-1", UserID: "user-1", SourceItemID: "item-1",
				NextActions: []models.NextAction{
					{Title: "A snapshot action that must not appear"},
				},
			},
		},
		outcomes: map[string]*models.OutcomeMetric{
			"audit-1": {ID: "outcome-1", ReportID: "audit-1", ActualScore: 71},
		},
		calib: &models.CalibrationSnapshot{SampleSize: 12, Confidence: models.ConfidenceMedium},
	}
	blueprint := &stubBlueprints{payload: &models.BlueprintPayload{
		Platform:        models.PlatformTikTok,
		VelocityActions: []string{"Post 3x this week", "Test a series opener", "A third that must not appear"},
	}}
	svc := NewService(store, blueprint, stubOutcomes{})

	report, err := svc.Build(context.Background(), "user-1", "audit-1")
	require.NoError(t, err)

	assert.Equal(t, models.PlatformTikTok, report.Platform)
	assert.Equal(t, 68, report.OverallScore)
	require.NotNil(t, report.Blueprint)
	require.NotNil(t, report.BestEditedVariant)
	require.NotNil(t, report.PredictionVsActual)
	assert.Equal(t, "outcome-1", report.PredictionVsActual.ID)
	require.NotNil(t, report.CalibrationSnapshot)
	require.NotNil(t, report.OutcomeDrift)
	assert.Equal(t, models.BiasUnderpredicting, report.OutcomeDrift.DriftWindows.D7.Bias)

	// Recommendations: 3 prediction actions, 2 diagnosis recs, 1 video
	// suggestion, 2 blueprint actions fills the cap of 8; the score
	// sentence is squeezed out.
	require.Len(t, report.Recommendations, 8)
	assert.Equal(t, "Open with the outcome", report.Recommendations[0])
	assert.Equal(t, "Front-load the payoff", report.Recommendations[3])
	assert.Equal(t, "Show the result before explaining it", report.Recommendations[5])
	assert.Equal(t, "Post 3x this week", report.Recommendations[6])
	assert.NotContains(t, report.Recommendations, "A fourth action that must not appear")
	assert.NotContains(t, report.Recommendations, "A third that must not appear")
	assert.NotContains(t, report.Recommendations, "A snapshot action that must not appear")

	require.Len(t, report.QuickActions, 1)
	action := report.QuickActions[0]
	assert.Equal(t, "generate_improved_variants", action.Key)
	assert.Equal(t, "item-1", action.Params["source_item_id"])
	assert.Equal(t, "How I edit #shorts in 20 minutes", action.Params["topic"])
	assert.Equal(t, "tiktok", action.Params["platform"])
}

func TestResolvePlatformPrefersPrediction(t *testing.T) {
	audit := completedAudit("audit-1", &models.ScoreBreakdown{
		Combined: 65,
		Platform: models.PlatformInstagram,
	})
	assert.Equal(t, models.PlatformInstagram, resolvePlatform(audit))

	audit.Output.PerformancePrediction.Platform = ""
	assert.Equal(t, models.PlatformTikTok, resolvePlatform(audit))

	audit.Input = nil
	assert.Equal(t, models.PlatformYouTube, resolvePlatform(audit))
}

func TestBuildDegradesWithoutJoins(t *testing.T) {
	audit := completedAudit("audit-1", nil)
	store := &mockReportStore{audits: map[string]*models.Audit{"audit-1": audit}}
	svc := NewService(store, &stubBlueprints{fail: true}, nil)

	report, err := svc.Build(context.Background(), "user-1", "audit-1")
	require.NoError(t, err)
	assert.Nil(t, report.Blueprint)
	assert.Nil(t, report.BestEditedVariant)
	assert.Nil(t, report.PredictionVsActual)
	assert.Nil(t, report.OutcomeDrift)
	assert.NotEmpty(t, report.Recommendations)
	// The score sentence survives when sources are thin.
	assert.Contains(t, report.Recommendations[len(report.Recommendations)-1], "combined score")
}

func TestBuildLatestFallsBackToRecentOutcome(t *testing.T) {
	audit := completedAudit("audit-9", &models.ScoreBreakdown{Combined: 80})
	store := &mockReportStore{
		audits: map[string]*models.Audit{"audit-9": audit},
		latest: audit,
		recent: []models.OutcomeMetric{{ID: "outcome-7", ActualScore: 55}},
	}
	svc := NewService(store, nil, nil)

	report, err := svc.BuildLatest(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotNil(t, report.PredictionVsActual)
	assert.Equal(t, "outcome-7", report.PredictionVsActual.ID)
}

func TestBuildLatestWithoutAudits(t *testing.T) {
	svc := NewService(&mockReportStore{}, nil, nil)
	_, err := svc.BuildLatest(context.Background(), "user-1")
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}
