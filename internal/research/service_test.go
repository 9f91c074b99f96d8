// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package research

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clipsight/clipsight/internal/apperr"
	"github.com/clipsight/clipsight/internal/clients"
	"github.com/clipsight/clipsight/internal/config"
	"github.com/clipsight/clipsight/internal/database"
	"github.com/clipsight/clipsight/internal/models"
)

type mockResearchStore struct {
	mu          sync.Mutex
	items       []*models.ResearchItem
	collections map[string]*models.ResearchCollection
	exports     map[string]*models.ResearchExport
}

func newMockResearchStore() *mockResearchStore {
	return &mockResearchStore{
		collections: make(map[string]*models.ResearchCollection),
		exports:     make(map[string]*models.ResearchExport),
	}
}

func (m *mockResearchStore) CreateResearchItem(_ context.Context, item *models.ResearchItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item.ID = uuid.New().String()
	item.CreatedAt = time.Now().UTC()
	m.items = append(m.items, item)
	return nil
}

func (m *mockResearchStore) GetResearchItem(_ context.Context, userID, id string) (*models.ResearchItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range m.items {
		if item.ID == id && item.UserID == userID {
			return item, nil
		}
	}
	return nil, database.ErrNotFound
}

func (m *mockResearchStore) SearchResearchItems(_ context.Context, userID string, f models.ItemSearchFilters) (*models.ItemPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []models.ResearchItem
	for _, item := range m.items {
		if item.UserID != userID {
			continue
		}
		if f.CollectionID != "" && item.CollectionID != f.CollectionID {
			continue
		}
		if f.Platform != "" && item.Platform != f.Platform {
			continue
		}
		matched = append(matched, *item)
	}
	return &models.ItemPage{Items: matched, Total: len(matched), Page: 1, Limit: 100, TotalPages: 1}, nil
}

func (m *mockResearchStore) CreateCollection(_ context.Context, c *models.ResearchCollection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = uuid.New().String()
	c.CreatedAt = time.Now().UTC()
	m.collections[c.ID] = c
	return nil
}

func (m *mockResearchStore) EnsureDefaultCollection(_ context.Context, userID string, platform models.Platform) (*models.ResearchCollection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.collections {
		if c.UserID == userID && c.Platform == platform && c.IsSystem {
			return c, nil
		}
	}
	c := &models.ResearchCollection{
		ID:       uuid.New().String(),
		UserID:   userID,
		Name:     "Default Collection",
		Platform: platform,
		IsSystem: true,
	}
	m.collections[c.ID] = c
	return c, nil
}

func (m *mockResearchStore) GetCollection(_ context.Context, userID, id string) (*models.ResearchCollection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[id]
	if !ok || c.UserID != userID {
		return nil, database.ErrNotFound
	}
	return c, nil
}

func (m *mockResearchStore) ListCollections(_ context.Context, userID string) ([]models.ResearchCollection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ResearchCollection
	for _, c := range m.collections {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *mockResearchStore) CreateExport(_ context.Context, e *models.ResearchExport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = uuid.New().String()
	e.CreatedAt = time.Now().UTC()
	m.exports[e.ID] = e
	return nil
}

func (m *mockResearchStore) GetExport(_ context.Context, userID, id string) (*models.ResearchExport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.exports[id]
	if !ok || e.UserID != userID {
		return nil, database.ErrNotFound
	}
	return e, nil
}

type allowAllLedger struct{ calls int }

func (l *allowAllLedger) ConsumeOp(context.Context, string, string, string, string) (*models.ConsumeResult, error) {
	l.calls++
	return &models.ConsumeResult{Charged: 1, BalanceAfter: 9}, nil
}

type denyLedger struct{}

func (denyLedger) ConsumeOp(context.Context, string, string, string, string) (*models.ConsumeResult, error) {
	return nil, apperr.InsufficientCredits("not enough credits")
}

type fakePlatformClient struct{ videos []clients.YouTubeVideo }

func (f *fakePlatformClient) Configured() bool { return true }
func (f *fakePlatformClient) SearchVideos(context.Context, string, int, *time.Time) ([]clients.YouTubeVideo, error) {
	return f.videos, nil
}
func (f *fakePlatformClient) ChannelVideos(context.Context, string, int) ([]clients.YouTubeVideo, error) {
	return f.videos, nil
}
func (f *fakePlatformClient) VideoDetails(context.Context, []string) ([]clients.YouTubeVideo, error) {
	return f.videos, nil
}

func newTestService(t *testing.T, store Store, platformData clients.PlatformDataClient, ledger CreditLedger) *Service {
	t.Helper()
	return NewService(store, platformData, ledger,
		&config.SecurityConfig{JWTSecret: "test-secret-test-secret-test-secret!"},
		&config.UploadsConfig{Dir: t.TempDir()})
}

func TestInferPlatform(t *testing.T) {
	cases := map[string]models.Platform{
		"https://www.youtube.com/watch?v=abc123": models.PlatformYouTube,
		"https://youtu.be/abc123":                models.PlatformYouTube,
		"https://www.instagram.com/reel/xyz/":    models.PlatformInstagram,
		"https://www.tiktok.com/@user/video/9":   models.PlatformTikTok,
	}
	for rawURL, want := range cases {
		got, err := inferPlatform(rawURL)
		if err != nil || got != want {
			t.Errorf("inferPlatform(%s) = %s, %v; want %s", rawURL, got, err, want)
		}
	}

	if _, err := inferPlatform("https://example.com/video"); !apperr.IsKind(err, apperr.KindBadRequest) {
		t.Errorf("unknown host should be BadRequest, got %v", err)
	}
}

func TestYouTubeVideoID(t *testing.T) {
	cases := map[string]string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ": "dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ":                "dQw4w9WgXcQ",
		"https://www.youtube.com/shorts/abc_123":      "abc_123",
		"https://www.youtube.com/embed/xyz/extra":     "xyz",
	}
	for rawURL, want := range cases {
		if got := youtubeVideoID(rawURL); got != want {
			t.Errorf("youtubeVideoID(%s) = %s, want %s", rawURL, got, want)
		}
	}
}

func TestImportURLEnrichesYouTube(t *testing.T) {
	published := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	client := &fakePlatformClient{videos: []clients.YouTubeVideo{{
		ExternalID:   "dQw4w9WgXcQ",
		Title:        "Enriched title",
		ChannelID:    "chan-1",
		ChannelTitle: "Some Channel",
		DurationS:    212,
		Metrics:      models.ItemMetrics{Views: 1000, Likes: 50},
		PublishedAt:  &published,
		ThumbnailURL: "https://img.example/t.jpg",
	}}}

	store := newMockResearchStore()
	svc := newTestService(t, store, client, &allowAllLedger{})

	item, err := svc.ImportURL(context.Background(), "user-1", "", "https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("ImportURL failed: %v", err)
	}
	if item.Platform != models.PlatformYouTube {
		t.Errorf("platform = %s", item.Platform)
	}
	if item.SourceType != models.SourceManualURL {
		t.Errorf("source_type = %s", item.SourceType)
	}
	if item.Title != "Enriched title" || item.Metrics.Views != 1000 {
		t.Error("expected enriched metadata")
	}
	if item.CollectionID == "" {
		t.Error("expected assignment to the default collection")
	}
}

func TestImportCSVCreatesCollectionAndCoercesMetrics(t *testing.T) {
	csvData := strings.Join([]string{
		"url,title,views,likes,comments",
		"https://tiktok.com/v/1,First,\"12,500\",300,12",
		"https://tiktok.com/v/2,Second,990.7,not-a-number,5",
		",,,,",
	}, "\n")

	store := newMockResearchStore()
	svc := newTestService(t, store, nil, &allowAllLedger{})

	result, err := svc.ImportCSV(context.Background(), "user-1", models.PlatformTikTok,
		"Imported Batch", int64(len(csvData)), strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("ImportCSV failed: %v", err)
	}
	if result.Imported != 2 || result.Skipped != 1 {
		t.Errorf("imported=%d skipped=%d, want 2/1", result.Imported, result.Skipped)
	}
	if result.Collection.IsSystem {
		t.Error("csv imports must land in a new non-system collection")
	}

	first := store.items[0]
	if first.Metrics.Views != 12500 {
		t.Errorf("views = %d, want 12500 after separator coercion", first.Metrics.Views)
	}
	second := store.items[1]
	if second.Metrics.Views != 990 || second.Metrics.Likes != 0 {
		t.Errorf("coercion: views=%d likes=%d", second.Metrics.Views, second.Metrics.Likes)
	}
}

func TestImportCSVRejectsOversizeFile(t *testing.T) {
	svc := newTestService(t, newMockResearchStore(), nil, &allowAllLedger{})
	_, err := svc.ImportCSV(context.Background(), "user-1", models.PlatformYouTube,
		"big", csvImportMaxBytes+1, strings.NewReader("url\n"))
	if !apperr.IsKind(err, apperr.KindPayloadTooLarge) {
		t.Fatalf("expected PayloadTooLarge, got %v", err)
	}
}

func TestSearchDebitsCredits(t *testing.T) {
	store := newMockResearchStore()
	ledger := &allowAllLedger{}
	svc := newTestService(t, store, nil, ledger)

	if _, err := svc.Search(context.Background(), "user-1", models.ItemSearchFilters{}); err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if ledger.calls != 1 {
		t.Errorf("ledger calls = %d, want 1", ledger.calls)
	}

	denied := newTestService(t, store, nil, denyLedger{})
	if _, err := denied.Search(context.Background(), "user-1", models.ItemSearchFilters{}); !apperr.IsKind(err, apperr.KindInsufficientCredits) {
		t.Errorf("expected InsufficientCredits, got %v", err)
	}
}

func TestExportSignedDownloadRoundTrip(t *testing.T) {
	store := newMockResearchStore()
	svc := newTestService(t, store, nil, &allowAllLedger{})

	if _, err := svc.Capture(context.Background(), "user-1", &CaptureRequest{
		Platform: models.PlatformYouTube,
		URL:      "https://youtube.com/watch?v=a",
		Title:    "Captured",
		Metrics:  models.ItemMetrics{Views: 42},
	}); err != nil {
		t.Fatal(err)
	}

	export, token, err := svc.Export(context.Background(), "user-1", "", "csv")
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if export.ItemCount != 1 {
		t.Errorf("item count = %d, want 1", export.ItemCount)
	}
	data, err := os.ReadFile(export.FilePath)
	if err != nil {
		t.Fatalf("export file unreadable: %v", err)
	}
	if !strings.Contains(string(data), "Captured") {
		t.Error("export file missing item row")
	}

	resolved, err := svc.ResolveDownload(context.Background(), export.ID, token)
	if err != nil {
		t.Fatalf("ResolveDownload failed: %v", err)
	}
	if resolved.ID != export.ID {
		t.Errorf("resolved export %s, want %s", resolved.ID, export.ID)
	}

	// A token for one export must not unlock another.
	if _, err := svc.ResolveDownload(context.Background(), "other-export", token); !apperr.IsKind(err, apperr.KindForbidden) {
		t.Errorf("expected Forbidden for export mismatch, got %v", err)
	}
	if _, err := svc.ResolveDownload(context.Background(), export.ID, token+"tampered"); !apperr.IsKind(err, apperr.KindUnauthenticated) {
		t.Errorf("expected Unauthenticated for tampered token, got %v", err)
	}
}
