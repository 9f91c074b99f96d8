// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package blueprint

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/clipsight/clipsight/internal/config"
	"github.com/clipsight/clipsight/internal/database"
	"github.com/clipsight/clipsight/internal/models"
)

type mockBlueprintStore struct {
	mu          sync.Mutex
	competitors []models.Competitor
	videos      []models.CompetitorVideo
	snapshot    *models.BlueprintSnapshot
	lastError   string
	upserts     int
}

func (m *mockBlueprintStore) ListCompetitors(_ context.Context, _ string, platform models.Platform) ([]models.Competitor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Competitor
	for _, c := range m.competitors {
		if c.Platform == platform {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockBlueprintStore) ListCompetitorVideos(_ context.Context, _ string, platform models.Platform, _ int) ([]models.CompetitorVideo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.CompetitorVideo
	for _, v := range m.videos {
		if v.Platform == platform {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *mockBlueprintStore) UpsertCompetitorVideo(_ context.Context, v *models.CompetitorVideo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.videos = append(m.videos, *v)
	return nil
}

func (m *mockBlueprintStore) GetBlueprintSnapshot(_ context.Context, _ string) (*models.BlueprintSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snapshot == nil {
		return nil, database.ErrNotFound
	}
	cp := *m.snapshot
	return &cp, nil
}

func (m *mockBlueprintStore) UpsertBlueprintSnapshot(_ context.Context, s *models.BlueprintSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot = s
	m.upserts++
	return nil
}

func (m *mockBlueprintStore) SetBlueprintError(_ context.Context, _ string, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastError = lastError
	return nil
}

func (m *mockBlueprintStore) SearchResearchItems(_ context.Context, _ string, _ models.ItemSearchFilters) (*models.ItemPage, error) {
	return &models.ItemPage{}, nil
}

type failingGenerator struct{}

func (failingGenerator) Configured() bool { return true }
func (failingGenerator) ChatJSON(context.Context, string, string) (string, error) {
	return "", errors.New("provider down")
}

type jsonGenerator struct{ calls int }

func (g *jsonGenerator) Configured() bool { return true }
func (g *jsonGenerator) ChatJSON(context.Context, string, string) (string, error) {
	g.calls++
	return `{"gap_analysis":["cover shorts"],"content_pillars":["editing"],"video_ideas":[{"title_seed":"x"}]}`, nil
}

func testVideos() []models.CompetitorVideo {
	return []models.CompetitorVideo{
		{Platform: models.PlatformYouTube, ExternalID: "v1", Title: "Editing workflow deep dive", DurationS: 300, Metrics: models.ItemMetrics{Views: 90000, Likes: 4000}},
		{Platform: models.PlatformYouTube, ExternalID: "v2", Title: "Editing shortcuts for creators", DurationS: 45, Metrics: models.ItemMetrics{Views: 250000, Likes: 12000}},
	}
}

func TestCompetitorSignatureStable(t *testing.T) {
	a := []models.Competitor{{ExternalID: "chan-b"}, {ExternalID: "chan-a"}}
	b := []models.Competitor{{ExternalID: "chan-a"}, {ExternalID: "chan-b"}}

	sigA := competitorSignature(models.PlatformYouTube, a, nil)
	sigB := competitorSignature(models.PlatformYouTube, b, nil)
	if sigA != sigB {
		t.Error("signature must be order-independent")
	}
	if len(sigA) != 40 {
		t.Errorf("signature length = %d, want 40 hex chars", len(sigA))
	}

	if competitorSignature(models.PlatformTikTok, b, []string{"i1"}) ==
		competitorSignature(models.PlatformTikTok, b, []string{"i2"}) {
		t.Error("tiktok signatures must include research item ids")
	}
}

func TestGetOrRefreshServesFreshSnapshot(t *testing.T) {
	store := &mockBlueprintStore{
		competitors: []models.Competitor{{Platform: models.PlatformYouTube, ExternalID: "chan-a"}},
	}
	sig := competitorSignature(models.PlatformYouTube, store.competitors, nil)
	store.snapshot = &models.BlueprintSnapshot{
		UserID:              "user-1",
		Payload:             normalizePayload(&models.BlueprintPayload{Platform: models.PlatformYouTube, GapAnalysis: []string{"cached"}}, models.PlatformYouTube),
		CompetitorSignature: sig,
		GeneratedAt:         time.Now().UTC(),
	}

	gen := &jsonGenerator{}
	svc := NewService(store, nil, nil, gen, &config.BlueprintConfig{CacheTTLMinutes: 60})

	payload, err := svc.GetOrRefresh(context.Background(), "user-1", models.PlatformYouTube)
	if err != nil {
		t.Fatalf("GetOrRefresh failed: %v", err)
	}
	if len(payload.GapAnalysis) != 1 || payload.GapAnalysis[0] != "cached" {
		t.Error("expected the cached payload")
	}
	if gen.calls != 0 {
		t.Error("fresh snapshot must not trigger generation")
	}
}

func TestRefreshFallsBackWithoutProvider(t *testing.T) {
	store := &mockBlueprintStore{videos: testVideos()}
	svc := NewService(store, nil, nil, nil, &config.BlueprintConfig{CacheTTLMinutes: 60})

	payload, err := svc.GetOrRefresh(context.Background(), "user-1", models.PlatformYouTube)
	if err != nil {
		t.Fatalf("GetOrRefresh failed: %v", err)
	}

	if payload.Platform != models.PlatformYouTube {
		t.Errorf("platform = %s", payload.Platform)
	}
	if payload.GapAnalysis == nil || payload.ContentPillars == nil || payload.VideoIdeas == nil ||
		payload.HookIntelligence == nil || payload.WinnerPatternSignals == nil ||
		payload.FrameworkPlaybook == nil || payload.RepurposePlan == nil {
		t.Error("normalized payload must have no nil required fields")
	}
	if store.lastError == "" {
		t.Error("provider absence must persist last_error")
	}
	if store.upserts != 1 {
		t.Errorf("snapshot upserts = %d, want 1", store.upserts)
	}

	// Dominant format comes from the corpus: one short, one long.
	signals := payload.WinnerPatternSignals
	if signals["short_form_count"] != 1 || signals["long_form_count"] != 1 {
		t.Errorf("winner signals = %v", signals)
	}
}

func TestRefreshServesStalePayloadOnProviderFailure(t *testing.T) {
	store := &mockBlueprintStore{
		competitors: []models.Competitor{{Platform: models.PlatformYouTube, ExternalID: "chan-a"}},
		snapshot: &models.BlueprintSnapshot{
			UserID:              "user-1",
			Payload:             normalizePayload(&models.BlueprintPayload{Platform: models.PlatformYouTube, GapAnalysis: []string{"stale"}}, models.PlatformYouTube),
			CompetitorSignature: "outdated-signature",
			GeneratedAt:         time.Now().UTC().Add(-24 * time.Hour),
		},
	}
	svc := NewService(store, nil, nil, failingGenerator{}, &config.BlueprintConfig{CacheTTLMinutes: 60})

	payload, err := svc.GetOrRefresh(context.Background(), "user-1", models.PlatformYouTube)
	if err != nil {
		t.Fatalf("GetOrRefresh failed: %v", err)
	}
	if payload.GapAnalysis[0] != "stale" {
		t.Error("provider failure with a cached payload must serve the stale payload")
	}
	if store.lastError == "" {
		t.Error("provider failure must persist last_error")
	}
}

func TestGeneratedPayloadIsNormalized(t *testing.T) {
	store := &mockBlueprintStore{videos: testVideos()}
	gen := &jsonGenerator{}
	svc := NewService(store, nil, nil, gen, &config.BlueprintConfig{CacheTTLMinutes: 60})

	payload, err := svc.GetOrRefresh(context.Background(), "user-1", models.PlatformYouTube)
	if err != nil {
		t.Fatalf("GetOrRefresh failed: %v", err)
	}
	if gen.calls != 1 {
		t.Errorf("generator calls = %d, want 1", gen.calls)
	}
	if payload.GapAnalysis[0] != "cover shorts" {
		t.Error("expected the generated gap analysis")
	}
	if payload.HookIntelligence == nil || payload.RepurposePlan == nil {
		t.Error("generated payloads must be normalized too")
	}
	if payload.DatasetSummary["video_count"] != 2 {
		t.Errorf("dataset summary = %v", payload.DatasetSummary)
	}
}
