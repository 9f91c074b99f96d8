// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package optimizer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clipsight/clipsight/internal/apperr"
	"github.com/clipsight/clipsight/internal/models"
)

// mockOptimizerStore is an in-memory Store.
type mockOptimizerStore struct {
	mu        sync.Mutex
	batches   map[string]*models.VariantBatch
	snapshots []*models.DraftSnapshot
	videos    []models.CompetitorVideo
	outcomes  []models.OutcomeMetric
}

func newMockOptimizerStore() *mockOptimizerStore {
	return &mockOptimizerStore{batches: make(map[string]*models.VariantBatch)}
}

func (m *mockOptimizerStore) CreateVariantBatch(_ context.Context, batch *models.VariantBatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	batch.ID = uuid.New().String()
	batch.CreatedAt = time.Now().UTC()
	for i := range batch.Variants {
		batch.Variants[i].ID = uuid.New().String()
	}
	batch.SelectedVariantID = batch.Variants[0].ID
	m.batches[batch.ID] = batch
	return nil
}

func (m *mockOptimizerStore) GetVariantBatch(_ context.Context, userID, id string) (*models.VariantBatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.batches[id]
	if !ok || b.UserID != userID {
		return nil, apperr.NotFound("variant batch not found")
	}
	return b, nil
}

func (m *mockOptimizerStore) CreateDraftSnapshot(_ context.Context, d *models.DraftSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d.ID = uuid.New().String()
	d.CreatedAt = time.Now().UTC()
	m.snapshots = append(m.snapshots, d)
	return nil
}

func (m *mockOptimizerStore) GetDraftSnapshot(_ context.Context, userID, id string) (*models.DraftSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.snapshots {
		if d.ID == id && d.UserID == userID {
			return d, nil
		}
	}
	return nil, apperr.NotFound("draft snapshot not found")
}

func (m *mockOptimizerStore) ListDraftSnapshots(_ context.Context, userID string, limit int) ([]models.DraftSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.DraftSnapshot
	for i := len(m.snapshots) - 1; i >= 0 && len(out) < limit; i-- {
		if m.snapshots[i].UserID == userID {
			out = append(out, *m.snapshots[i])
		}
	}
	return out, nil
}

func (m *mockOptimizerStore) LatestDraftSnapshot(_ context.Context, userID, sourceItemID string) (*models.DraftSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.snapshots) - 1; i >= 0; i-- {
		d := m.snapshots[i]
		if d.UserID != userID {
			continue
		}
		if sourceItemID != "" && d.SourceItemID != sourceItemID {
			continue
		}
		return d, nil
	}
	return nil, apperr.NotFound("draft snapshot not found")
}

func (m *mockOptimizerStore) ListCompetitorVideos(_ context.Context, userID string, platform models.Platform, _ int) ([]models.CompetitorVideo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.CompetitorVideo
	for _, v := range m.videos {
		if v.UserID == userID && v.Platform == platform {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *mockOptimizerStore) RecentOutcomeMetrics(_ context.Context, userID string, platform models.Platform, _ int) ([]models.OutcomeMetric, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.OutcomeMetric
	for _, o := range m.outcomes {
		if o.UserID == userID && o.Platform == platform {
			out = append(out, o)
		}
	}
	return out, nil
}

// failingGenerator always errors, forcing the fallback path.
type failingGenerator struct{}

func (failingGenerator) GenerateScriptVariants(context.Context, *models.VariantRequest, float64) ([]GeneratedVariant, error) {
	return nil, errors.New("provider unavailable")
}

// partialGenerator returns only variant_a, leaving the rest to fallbacks.
type partialGenerator struct{}

func (partialGenerator) GenerateScriptVariants(_ context.Context, req *models.VariantRequest, _ float64) ([]GeneratedVariant, error) {
	return []GeneratedVariant{{
		StyleKey: models.StyleVariantA,
		Structure: models.VariantStructure{
			Hook:  "I grew a channel from zero with " + req.Topic + ".",
			Setup: "Here is exactly what worked.",
			Value: "Three moves. Post daily, hook in 2 seconds, answer one question.",
			CTA:   "Comment GROWTH for the template.",
		},
	}}, nil
}

func variantRequest() *models.VariantRequest {
	return &models.VariantRequest{
		UserID:    "user-1",
		Platform:  models.PlatformYouTube,
		Topic:     "AI news hooks",
		Audience:  "tech creators",
		Objective: "grow subscribers",
		DurationS: 40,
	}
}

func TestGenerateVariantsReturnsThreeRanked(t *testing.T) {
	svc := NewService(newMockOptimizerStore(), failingGenerator{})

	batch, err := svc.GenerateVariants(context.Background(), variantRequest())
	if err != nil {
		t.Fatalf("GenerateVariants failed: %v", err)
	}
	if len(batch.Variants) != 3 {
		t.Fatalf("expected exactly 3 variants, got %d", len(batch.Variants))
	}

	seen := map[string]bool{}
	for i, v := range batch.Variants {
		if v.Rank != i+1 {
			t.Errorf("variant %d has rank %d", i, v.Rank)
		}
		if v.ScoreBreakdown.Combined < 0 || v.ScoreBreakdown.Combined > 100 {
			t.Errorf("combined score out of range: %f", v.ScoreBreakdown.Combined)
		}
		if i > 0 && v.ScoreBreakdown.Combined > batch.Variants[i-1].ScoreBreakdown.Combined {
			t.Errorf("variants not sorted descending at index %d", i)
		}
		if v.StyleKey != models.StyleVariantA && v.StyleKey != models.StyleVariantB && v.StyleKey != models.StyleVariantC {
			t.Errorf("unexpected style key %q", v.StyleKey)
		}
		seen[v.StyleKey] = true
		if !v.UsedFallback {
			t.Errorf("variant %s should be marked as fallback", v.StyleKey)
		}
	}
	if len(seen) != 3 {
		t.Errorf("expected 3 distinct style keys, got %d", len(seen))
	}
	if batch.SelectedVariantID != batch.Variants[0].ID {
		t.Error("selected variant must be the top-ranked one")
	}
	// The middle variant is the median, so its lift is zero.
	if batch.Variants[1].ExpectedLiftPoints != 0 {
		t.Errorf("median variant lift = %f, want 0", batch.Variants[1].ExpectedLiftPoints)
	}
}

func TestGenerateVariantsSubstitutesMissingStyles(t *testing.T) {
	svc := NewService(newMockOptimizerStore(), partialGenerator{})

	batch, err := svc.GenerateVariants(context.Background(), variantRequest())
	if err != nil {
		t.Fatalf("GenerateVariants failed: %v", err)
	}

	byStyle := map[string]models.ScriptVariant{}
	for _, v := range batch.Variants {
		byStyle[v.StyleKey] = v
	}
	if byStyle[models.StyleVariantA].UsedFallback {
		t.Error("variant_a came from the provider and must not be a fallback")
	}
	for _, style := range []string{models.StyleVariantB, models.StyleVariantC} {
		v := byStyle[style]
		if !v.UsedFallback {
			t.Errorf("%s should be a fallback", style)
		}
		if v.FallbackReason != "missing_"+style {
			t.Errorf("%s fallback reason = %q", style, v.FallbackReason)
		}
	}
}

func TestRescoreRejectsShortScript(t *testing.T) {
	svc := NewService(newMockOptimizerStore(), nil)

	_, err := svc.Rescore(context.Background(), &RescoreRequest{
		UserID:   "user-1",
		Script:   "too short",
		Platform: models.PlatformTikTok,
	})
	if !apperr.IsKind(err, apperr.KindBadRequest) {
		t.Errorf("expected BadRequest, got %v", err)
	}
}

func TestRescoreProducesEditsAndDiff(t *testing.T) {
	svc := NewService(newMockOptimizerStore(), nil)
	baseline := 60.0

	result, err := svc.Rescore(context.Background(), &RescoreRequest{
		UserID:        "user-1",
		Platform:      models.PlatformYouTube,
		DurationS:     40,
		Script:        "How I grew 10k subscribers in 30 days.\nMost people get this wrong.\nHere are the three steps I tested.\nComment GROWTH and I'll send the template.",
		BaselineScore: &baseline,
	})
	if err != nil {
		t.Fatalf("Rescore failed: %v", err)
	}

	if len(result.LineLevelEdits) == 0 {
		t.Error("expected non-empty line_level_edits")
	}
	for _, e := range result.LineLevelEdits {
		if e.LineNumber < 1 || e.LineNumber > 4 {
			t.Errorf("line number %d out of range", e.LineNumber)
		}
		if e.SuggestedLine == "" || e.Reason == "" {
			t.Errorf("edit for %s is missing suggestion or reason", e.DetectorKey)
		}
	}

	if result.ImprovementDiff == nil || result.ImprovementDiff.Combined.Delta == nil {
		t.Fatal("expected improvement diff with combined delta")
	}
	want := result.ScoreBreakdown.Combined - baseline
	if got := *result.ImprovementDiff.Combined.Delta; got != round2(want) {
		t.Errorf("combined delta = %f, want %f", got, round2(want))
	}

	if len(result.DetectorRankings) != 5 {
		t.Fatalf("expected 5 detector rankings, got %d", len(result.DetectorRankings))
	}
	for i, r := range result.DetectorRankings {
		if r.Rank != i+1 {
			t.Errorf("ranking %d has rank %d", i, r.Rank)
		}
		if i > 0 && r.Gap > result.DetectorRankings[i-1].Gap {
			t.Errorf("rankings not sorted by gap at index %d", i)
		}
	}
	if len(result.NextActions) != 3 {
		t.Errorf("expected 3 next actions, got %d", len(result.NextActions))
	}
}

func TestRescoreIsDeterministic(t *testing.T) {
	svc := NewService(newMockOptimizerStore(), nil)
	req := &RescoreRequest{
		UserID:    "user-1",
		Platform:  models.PlatformInstagram,
		DurationS: 35,
		Script:    "Why your reels stall at 200 views.\nStick around, because by the end you'll know the fix.\nSave this for your next post.",
	}

	a, err := svc.Rescore(context.Background(), req)
	if err != nil {
		t.Fatalf("first rescore failed: %v", err)
	}
	b, err := svc.Rescore(context.Background(), req)
	if err != nil {
		t.Fatalf("second rescore failed: %v", err)
	}
	if a.ScoreBreakdown.Combined != b.ScoreBreakdown.Combined {
		t.Errorf("rescore not deterministic: %f vs %f", a.ScoreBreakdown.Combined, b.ScoreBreakdown.Combined)
	}
}

func TestCompetitorFallbackWithoutData(t *testing.T) {
	svc := NewService(newMockOptimizerStore(), nil)

	result, err := svc.Rescore(context.Background(), &RescoreRequest{
		UserID:    "user-1",
		Platform:  models.PlatformYouTube,
		DurationS: 40,
		Script:    "How I tested a brand new posting schedule for a month.",
	})
	if err != nil {
		t.Fatalf("Rescore failed: %v", err)
	}

	cm := result.ScoreBreakdown.CompetitorMetrics
	if cm.HasData || cm.SampleSize != 0 || cm.Score != 55 {
		t.Errorf("expected synthesized benchmark score=55 has_data=false, got score=%f has_data=%v sample=%d",
			cm.Score, cm.HasData, cm.SampleSize)
	}

	weights := result.ScoreBreakdown.CombinedMetrics.Weights
	if weights["competitor"] != 0.55 || weights["platform"] != 0.45 || weights["historical"] != 0 {
		t.Errorf("expected no-history weights, got %v", weights)
	}
	if result.ScoreBreakdown.CombinedMetrics.Confidence == models.ConfidenceHigh {
		t.Error("confidence must be demoted below high without history")
	}
}

func TestCombinedWeightsShiftWithHistory(t *testing.T) {
	store := newMockOptimizerStore()
	for i := 0; i < 6; i++ {
		store.outcomes = append(store.outcomes, models.OutcomeMetric{
			ID:          uuid.New().String(),
			UserID:      "user-1",
			Platform:    models.PlatformYouTube,
			ActualScore: 62,
		})
	}
	svc := NewService(store, nil)

	result, err := svc.Rescore(context.Background(), &RescoreRequest{
		UserID:    "user-1",
		Platform:  models.PlatformYouTube,
		DurationS: 40,
		Script:    "How I tested a brand new posting schedule for a month.",
	})
	if err != nil {
		t.Fatalf("Rescore failed: %v", err)
	}

	hm := result.ScoreBreakdown.HistoricalMetrics
	if hm.InsufficientData {
		t.Error("6 outcomes should be sufficient history")
	}
	if hm.Score != 62 {
		t.Errorf("historical score = %f, want 62", hm.Score)
	}
	weights := result.ScoreBreakdown.CombinedMetrics.Weights
	if weights["competitor"] != 0.45 || weights["platform"] != 0.35 || weights["historical"] != 0.20 {
		t.Errorf("expected history-ready weights, got %v", weights)
	}
}

func TestDraftSnapshotDelta(t *testing.T) {
	svc := NewService(newMockOptimizerStore(), nil)
	baseline := 58.5

	snap, err := svc.CreateDraftSnapshot(context.Background(), &models.DraftSnapshot{
		UserID:        "user-1",
		Platform:      models.PlatformTikTok,
		ScriptText:    "Stop doing this one thing in your hooks.",
		BaselineScore: &baseline,
		RescoredScore: 64.25,
	})
	if err != nil {
		t.Fatalf("CreateDraftSnapshot failed: %v", err)
	}
	if snap.DeltaScore == nil || *snap.DeltaScore != 5.75 {
		t.Errorf("expected delta 5.75, got %v", snap.DeltaScore)
	}

	got, err := svc.GetDraftSnapshot(context.Background(), "user-1", snap.ID)
	if err != nil {
		t.Fatalf("GetDraftSnapshot failed: %v", err)
	}
	if got.ID != snap.ID {
		t.Errorf("fetched wrong snapshot %s", got.ID)
	}
}
