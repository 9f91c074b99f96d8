// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package feedloop

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipsight/clipsight/internal/apperr"
	"github.com/clipsight/clipsight/internal/config"
	"github.com/clipsight/clipsight/internal/database"
	"github.com/clipsight/clipsight/internal/models"
)

type mockLoopStore struct {
	items       map[string]*models.ResearchItem
	collections map[string]*models.ResearchCollection
	follows     map[string]*models.FeedSourceFollow
	mediaJobs   map[string]*models.MediaDownloadJob
	audits      map[string]*models.Audit
	snapshots   map[string]*models.DraftSnapshot

	ingestRuns []models.FeedAutoIngestRun
	packages   []models.FeedRepostPackage
	events     []models.FeedTelemetryEvent
	runStamps  []string

	runningFollowID string
	nextID          int
}

func newMockLoopStore() *mockLoopStore {
	return &mockLoopStore{
		items:       make(map[string]*models.ResearchItem),
		collections: make(map[string]*models.ResearchCollection),
		follows:     make(map[string]*models.FeedSourceFollow),
		mediaJobs:   make(map[string]*models.MediaDownloadJob),
		audits:      make(map[string]*models.Audit),
		snapshots:   make(map[string]*models.DraftSnapshot),
	}
}

func (m *mockLoopStore) id(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s-%d", prefix, m.nextID)
}

func (m *mockLoopStore) SearchResearchItems(_ context.Context, userID string, f models.ItemSearchFilters) (*models.ItemPage, error) {
	var items []models.ResearchItem
	for _, item := range m.items {
		if item.UserID == userID && (f.Platform == "" || item.Platform == f.Platform) {
			items = append(items, *item)
		}
	}
	return &models.ItemPage{Items: items, Total: len(items), Page: 1, Limit: f.Limit, TotalPages: 1}, nil
}

func (m *mockLoopStore) GetResearchItem(_ context.Context, userID, id string) (*models.ResearchItem, error) {
	item, ok := m.items[id]
	if !ok || item.UserID != userID {
		return nil, database.ErrNotFound
	}
	copied := *item
	return &copied, nil
}

func (m *mockLoopStore) MergeResearchItemMeta(_ context.Context, userID, id string, patch models.JSONMap) (*models.ResearchItem, error) {
	item, ok := m.items[id]
	if !ok || item.UserID != userID {
		return nil, database.ErrNotFound
	}
	if item.MediaMeta == nil {
		item.MediaMeta = models.JSONMap{}
	}
	item.MediaMeta = item.MediaMeta.Merge(patch)
	copied := *item
	return &copied, nil
}

func (m *mockLoopStore) AssignCollection(_ context.Context, userID, itemID, collectionID string) error {
	item, ok := m.items[itemID]
	if !ok {
		return database.ErrNotFound
	}
	item.CollectionID = collectionID
	return nil
}

func (m *mockLoopStore) GetCollection(_ context.Context, _, id string) (*models.ResearchCollection, error) {
	c, ok := m.collections[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return c, nil
}

func (m *mockLoopStore) UpsertFollow(_ context.Context, f *models.FeedSourceFollow) (*models.FeedSourceFollow, bool, error) {
	for _, existing := range m.follows {
		if existing.UserID == f.UserID && existing.Platform == f.Platform &&
			existing.Mode == f.Mode && existing.Query == f.Query {
			f.ID = existing.ID
			m.follows[f.ID] = f
			return f, false, nil
		}
	}
	f.ID = m.id("follow")
	m.follows[f.ID] = f
	return f, true, nil
}

func (m *mockLoopStore) GetFollow(_ context.Context, userID, id string) (*models.FeedSourceFollow, error) {
	f, ok := m.follows[id]
	if !ok || f.UserID != userID {
		return nil, database.ErrNotFound
	}
	return f, nil
}

func (m *mockLoopStore) ListFollows(_ context.Context, userID string) ([]models.FeedSourceFollow, error) {
	var out []models.FeedSourceFollow
	for _, f := range m.follows {
		if f.UserID == userID {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (m *mockLoopStore) ListDueFollows(_ context.Context, now time.Time) ([]models.FeedSourceFollow, error) {
	var out []models.FeedSourceFollow
	for _, f := range m.follows {
		if f.IsActive && f.NextRunAt != nil && !f.NextRunAt.After(now) {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (m *mockLoopStore) DeleteFollow(_ context.Context, _, id string) error {
	delete(m.follows, id)
	return nil
}

func (m *mockLoopStore) MarkFollowRun(_ context.Context, _, id string, lastRunAt, nextRunAt time.Time, lastError string) error {
	f, ok := m.follows[id]
	if !ok {
		return database.ErrNotFound
	}
	f.LastRunAt = &lastRunAt
	f.NextRunAt = &nextRunAt
	f.LastError = lastError
	m.runStamps = append(m.runStamps, id)
	return nil
}

func (m *mockLoopStore) CreateIngestRun(_ context.Context, run *models.FeedAutoIngestRun) error {
	run.ID = m.id("run")
	m.ingestRuns = append(m.ingestRuns, *run)
	return nil
}

func (m *mockLoopStore) FinishIngestRun(_ context.Context, run *models.FeedAutoIngestRun) error {
	for i := range m.ingestRuns {
		if m.ingestRuns[i].ID == run.ID {
			m.ingestRuns[i] = *run
			return nil
		}
	}
	return database.ErrNotFound
}

func (m *mockLoopStore) HasRunningIngestRun(_ context.Context, followID string) (bool, error) {
	return m.runningFollowID == followID, nil
}

func (m *mockLoopStore) ListIngestRuns(_ context.Context, userID string, limit int) ([]models.FeedAutoIngestRun, error) {
	var out []models.FeedAutoIngestRun
	for _, run := range m.ingestRuns {
		if run.UserID == userID && len(out) < limit {
			out = append(out, run)
		}
	}
	return out, nil
}

func (m *mockLoopStore) CreateRepostPackage(_ context.Context, p *models.FeedRepostPackage) error {
	p.ID = m.id("pkg")
	p.CreatedAt = time.Now().UTC()
	m.packages = append(m.packages, *p)
	return nil
}

func (m *mockLoopStore) GetRepostPackage(_ context.Context, userID, id string) (*models.FeedRepostPackage, error) {
	for i := range m.packages {
		if m.packages[i].ID == id && m.packages[i].UserID == userID {
			return &m.packages[i], nil
		}
	}
	return nil, database.ErrNotFound
}

func (m *mockLoopStore) ListRepostPackages(_ context.Context, userID, sourceItemID string, limit int) ([]models.FeedRepostPackage, error) {
	var out []models.FeedRepostPackage
	for _, p := range m.packages {
		if p.UserID != userID {
			continue
		}
		if sourceItemID != "" && p.SourceItemID != sourceItemID {
			continue
		}
		if len(out) < limit {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockLoopStore) UpdateRepostPackageStatus(_ context.Context, userID, id string, status models.RepostStatus) error {
	for i := range m.packages {
		if m.packages[i].ID == id && m.packages[i].UserID == userID {
			m.packages[i].Status = status
			return nil
		}
	}
	return database.ErrNotFound
}

func (m *mockLoopStore) AppendTelemetryEvent(_ context.Context, e *models.FeedTelemetryEvent) error {
	e.ID = m.id("evt")
	e.CreatedAt = time.Now().UTC()
	m.events = append(m.events, *e)
	return nil
}

func (m *mockLoopStore) ListTelemetryEvents(_ context.Context, userID string, since time.Time, limit int) ([]models.FeedTelemetryEvent, error) {
	var out []models.FeedTelemetryEvent
	for _, e := range m.events {
		if e.UserID == userID && !e.CreatedAt.Before(since) && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockLoopStore) GetMediaJob(_ context.Context, userID, id string) (*models.MediaDownloadJob, error) {
	job, ok := m.mediaJobs[id]
	if !ok || job.UserID != userID {
		return nil, database.ErrNotFound
	}
	return job, nil
}

func (m *mockLoopStore) LatestMediaJobForURL(_ context.Context, userID, sourceURL string) (*models.MediaDownloadJob, error) {
	for _, job := range m.mediaJobs {
		if job.UserID == userID && job.SourceURL == sourceURL {
			return job, nil
		}
	}
	return nil, database.ErrNotFound
}

func (m *mockLoopStore) GetAudit(_ context.Context, userID, id string) (*models.Audit, error) {
	audit, ok := m.audits[id]
	if !ok || audit.UserID != userID {
		return nil, database.ErrNotFound
	}
	return audit, nil
}

func (m *mockLoopStore) LatestDraftSnapshot(_ context.Context, userID, sourceItemID string) (*models.DraftSnapshot, error) {
	snap, ok := m.snapshots[sourceItemID]
	if !ok || snap.UserID != userID {
		return nil, database.ErrNotFound
	}
	return snap, nil
}

type stubVariantEngine struct {
	calls int
	fail  bool
}

func (e *stubVariantEngine) GenerateVariants(_ context.Context, req *models.VariantRequest) (*models.VariantBatch, error) {
	e.calls++
	if e.fail {
		return nil, apperr.New(apperr.KindFatal, "variant generation failed")
	}
	return &models.VariantBatch{
		ID:       "batch-1",
		Platform: req.Platform,
		Topic:    req.Topic,
		Variants: make([]models.ScriptVariant, 3),
	}, nil
}

type stubAuditor struct {
	calls     int
	lastInput *models.AuditInput
}

func (a *stubAuditor) RunMultimodal(_ context.Context, userID string, input *models.AuditInput) (*models.Audit, error) {
	a.calls++
	a.lastInput = input
	return &models.Audit{ID: "audit-1", UserID: userID, Status: models.AuditPending, Input: input}, nil
}

type stubLedger struct {
	consumed []string
	refunded []string
	deny     bool
}

func (l *stubLedger) ConsumeOp(_ context.Context, _, op, _, _ string) (*models.ConsumeResult, error) {
	if l.deny {
		return nil, apperr.InsufficientCredits("not enough credits")
	}
	l.consumed = append(l.consumed, op)
	return &models.ConsumeResult{Charged: 2, BalanceAfter: 10}, nil
}

func (l *stubLedger) Refund(_ context.Context, _ string, credits int, op, _ string) error {
	if credits > 0 {
		l.refunded = append(l.refunded, op)
	}
	return nil
}

func newTestService(store *mockLoopStore) (*Service, *stubVariantEngine, *stubAuditor, *stubLedger) {
	variants := &stubVariantEngine{}
	auditor := &stubAuditor{}
	ledger := &stubLedger{}
	svc := NewService(store, variants, auditor, ledger, &config.FeedConfig{AutoIngestIntervalMinutes: 15})
	return svc, variants, auditor, ledger
}

func seedItem(store *mockLoopStore, id string, views, likes, shares, saves int64, ageHours float64) *models.ResearchItem {
	published := time.Now().UTC().Add(-time.Duration(ageHours * float64(time.Hour)))
	item := &models.ResearchItem{
		ID:                 id,
		UserID:             "user-1",
		Platform:           models.PlatformTikTok,
		Title:              "How I edit #shorts in 20 minutes",
		Caption:            "full workflow #editing",
		CreatorHandle:      "@editlab",
		CreatorDisplayName: "Edit Lab",
		URL:                "https://tiktok.com/@editlab/video/" + id,
		Metrics:            models.ItemMetrics{Views: views, Likes: likes, Shares: shares, Saves: saves},
		MediaMeta:          models.JSONMap{},
		PublishedAt:        &published,
		CreatedAt:          published,
	}
	store.items[id] = item
	return item
}

func TestDiscoverScoresTrendingComponents(t *testing.T) {
	store := newMockLoopStore()
	svc, _, _, _ := newTestService(store)

	// 10 hours old, 100k views: vph=10000 saturates the velocity term.
	seedItem(store, "item-hot", 100_000, 8_000, 1_500, 1_000, 10)
	// Old and quiet.
	seedItem(store, "item-cold", 900, 10, 1, 0, 2000)

	result, err := svc.Discover(context.Background(), "user-1", &DiscoverRequest{
		Platform: models.PlatformTikTok,
	})
	require.NoError(t, err)
	require.Len(t, result.Items, 2)

	hot := result.Items[0]
	assert.Equal(t, "item-hot", hot.ID)
	assert.InDelta(t, 0.105, hot.EngagementRate, 0.001)
	assert.InDelta(t, 10000, hot.ViewsPerHour, 1)
	// velocity 0.35 + engagement 0.25 (0.42 clipped to sat? 0.105*4=0.42)
	// + share 0.20 (0.025*8=0.2) + recency 0.20*exp(-10/120)
	expected := 100 * (0.35*1 + 0.25*0.42 + 0.20*0.20 + 0.20*0.92004)
	assert.InDelta(t, expected, hot.TrendingScore, 0.5)

	cold := result.Items[1]
	assert.Less(t, cold.TrendingScore, hot.TrendingScore)
}

func TestDiscoverModeMatching(t *testing.T) {
	store := newMockLoopStore()
	svc, _, _, _ := newTestService(store)
	item := seedItem(store, "item-1", 1000, 100, 10, 5, 5)
	item.MediaMeta["audio_title"] = "Retro Synthwave Loop"

	cases := []struct {
		name    string
		mode    models.FollowMode
		query   string
		matches bool
	}{
		{"profile handle", models.FollowProfile, "editlab", true},
		{"profile miss", models.FollowProfile, "cooklab", false},
		{"hashtag normalized", models.FollowHashtag, "#editing", true},
		{"hashtag bare", models.FollowHashtag, "shorts", true},
		{"hashtag miss", models.FollowHashtag, "cooking", false},
		{"audio title", models.FollowAudio, "synthwave", true},
		{"audio miss", models.FollowAudio, "acoustic", false},
		{"keyword anywhere", models.FollowKeyword, "workflow", true},
		{"keyword miss", models.FollowKeyword, "gardening", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := svc.Discover(context.Background(), "user-1", &DiscoverRequest{
				Platform: models.PlatformTikTok,
				Mode:     tc.mode,
				Query:    tc.query,
			})
			require.NoError(t, err)
			if tc.matches {
				assert.Len(t, result.Items, 1)
			} else {
				assert.Empty(t, result.Items)
			}
		})
	}
}

func TestDiscoverSortIsStable(t *testing.T) {
	store := newMockLoopStore()
	svc, _, _, _ := newTestService(store)
	// Identical metrics: order must fall back to item ID.
	seedItem(store, "item-b", 5000, 100, 10, 10, 24)
	seedItem(store, "item-a", 5000, 100, 10, 10, 24)
	seedItem(store, "item-c", 5000, 100, 10, 10, 24)

	result, err := svc.Discover(context.Background(), "user-1", &DiscoverRequest{
		Platform: models.PlatformTikTok,
		SortBy:   "trending_score",
	})
	require.NoError(t, err)
	require.Len(t, result.Items, 3)
	assert.Equal(t, "item-a", result.Items[0].ID)
	assert.Equal(t, "item-b", result.Items[1].ID)
	assert.Equal(t, "item-c", result.Items[2].ID)
}

func TestBuildRepostPackageConstants(t *testing.T) {
	store := newMockLoopStore()
	svc, _, _, _ := newTestService(store)
	seedItem(store, "item-1", 1_200_000, 90_000, 4_000, 2_000, 48)

	pkg, err := svc.BuildRepostPackage(context.Background(), "user-1", &PackageRequest{
		SourceItemID: "item-1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RepostDraft, pkg.Status)
	require.Len(t, pkg.Package.Hooks, 3)
	assert.Equal(t, "outcome_proof", pkg.Package.Hooks[0].StyleKey)
	assert.Contains(t, pkg.Package.Hooks[0].Text, "1.2M views")
	assert.Equal(t, "curiosity_gap", pkg.Package.Hooks[1].StyleKey)
	assert.Equal(t, "contrarian_take", pkg.Package.Hooks[2].StyleKey)

	yt := pkg.Package.Targets[models.PlatformYouTube]
	assert.Equal(t, 34, yt.DurationTargetS)
	assert.Equal(t, 3, yt.HookDeadlineS)
	ig := pkg.Package.Targets[models.PlatformInstagram]
	assert.Equal(t, 28, ig.DurationTargetS)
	assert.Equal(t, 2, ig.HookDeadlineS)
	tk := pkg.Package.Targets[models.PlatformTikTok]
	assert.Equal(t, 24, tk.DurationTargetS)
	assert.Equal(t, 2, tk.HookDeadlineS)
	assert.Contains(t, tk.Hashtags, "shorts")
}

func TestUpdateRepostStatusRejectsUnknown(t *testing.T) {
	store := newMockLoopStore()
	svc, _, _, _ := newTestService(store)
	seedItem(store, "item-1", 100, 10, 1, 1, 5)
	pkg, err := svc.BuildRepostPackage(context.Background(), "user-1", &PackageRequest{SourceItemID: "item-1"})
	require.NoError(t, err)

	_, err = svc.UpdateRepostStatus(context.Background(), "user-1", pkg.ID, "deleted")
	assert.True(t, apperr.IsKind(err, apperr.KindBadRequest))

	updated, err := svc.UpdateRepostStatus(context.Background(), "user-1", pkg.ID, models.RepostPublished)
	require.NoError(t, err)
	assert.Equal(t, models.RepostPublished, updated.Status)
}

func TestVariantGenerateDebitsAndStampsMeta(t *testing.T) {
	store := newMockLoopStore()
	svc, variants, _, ledger := newTestService(store)
	seedItem(store, "item-1", 1000, 100, 10, 5, 5)

	batch, err := svc.VariantGenerate(context.Background(), "user-1", "item-1")
	require.NoError(t, err)
	assert.Equal(t, 1, variants.calls)
	assert.Equal(t, []string{models.CreditOpOptimizerVariants}, ledger.consumed)
	assert.Len(t, batch.Variants, 3)

	item := store.items["item-1"]
	assert.Equal(t, 3, item.MediaMeta[models.MetaLoopLastVariantN])
	assert.NotEmpty(t, item.MediaMeta[models.MetaLoopLastVariantAt])
}

func TestVariantGenerateRefundsOnFailure(t *testing.T) {
	store := newMockLoopStore()
	svc, variants, _, ledger := newTestService(store)
	variants.fail = true
	seedItem(store, "item-1", 1000, 100, 10, 5, 5)

	_, err := svc.VariantGenerate(context.Background(), "user-1", "item-1")
	require.Error(t, err)
	assert.Equal(t, []string{models.CreditOpOptimizerVariants}, ledger.consumed)
	assert.Equal(t, []string{models.CreditOpOptimizerVariants}, ledger.refunded)
}

func TestVariantGenerateDeniedWithoutCredits(t *testing.T) {
	store := newMockLoopStore()
	svc, variants, _, ledger := newTestService(store)
	ledger.deny = true
	seedItem(store, "item-1", 1000, 100, 10, 5, 5)

	_, err := svc.VariantGenerate(context.Background(), "user-1", "item-1")
	assert.True(t, apperr.IsKind(err, apperr.KindInsufficientCredits))
	assert.Zero(t, variants.calls)
}

func TestLoopAuditConflictWithoutDownload(t *testing.T) {
	store := newMockLoopStore()
	svc, _, auditor, _ := newTestService(store)
	seedItem(store, "item-1", 1000, 100, 10, 5, 5)

	_, err := svc.LoopAudit(context.Background(), "user-1", "item-1")
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
	assert.Zero(t, auditor.calls)
}

func TestLoopAuditConflictWhileDownloadRunning(t *testing.T) {
	store := newMockLoopStore()
	svc, _, auditor, _ := newTestService(store)
	item := seedItem(store, "item-1", 1000, 100, 10, 5, 5)
	store.mediaJobs["job-1"] = &models.MediaDownloadJob{
		ID: "job-1", UserID: "user-1", SourceURL: item.URL,
		Status: models.MediaJobDownloading,
	}

	_, err := svc.LoopAudit(context.Background(), "user-1", "item-1")
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
	assert.Zero(t, auditor.calls)
}

func TestLoopAuditUsesMetaJobAndStampsItem(t *testing.T) {
	store := newMockLoopStore()
	svc, _, auditor, _ := newTestService(store)
	item := seedItem(store, "item-1", 50_000, 4_000, 300, 200, 12)
	item.MediaMeta[models.MetaFeedDownloadJobID] = "job-7"
	store.mediaJobs["job-7"] = &models.MediaDownloadJob{
		ID: "job-7", UserID: "user-1", SourceURL: item.URL,
		Status: models.MediaJobCompleted, UploadID: "upload-7",
	}

	audit, err := svc.LoopAudit(context.Background(), "user-1", "item-1")
	require.NoError(t, err)
	assert.Equal(t, 1, auditor.calls)
	require.NotNil(t, auditor.lastInput)
	assert.Equal(t, models.AuditSourceUpload, auditor.lastInput.SourceMode)
	assert.Equal(t, "upload-7", auditor.lastInput.UploadID)
	assert.Equal(t, "item-1", auditor.lastInput.SourceItemID)
	assert.EqualValues(t, int64(50_000), auditor.lastInput.PlatformMetrics["views"])

	stamped := store.items["item-1"]
	assert.Equal(t, audit.ID, stamped.MediaMeta[models.MetaLoopLastAuditID])
	assert.NotEmpty(t, stamped.MediaMeta[models.MetaLoopLastAuditAt])
}

func TestRunFollowSkipsOverlap(t *testing.T) {
	store := newMockLoopStore()
	svc, _, _, _ := newTestService(store)
	seedItem(store, "item-1", 1000, 100, 10, 5, 5)

	follow, created, err := svc.UpsertFollow(context.Background(), "user-1", &FollowRequest{
		Platform: models.PlatformTikTok,
		Mode:     models.FollowKeyword,
		Query:    "editing",
	})
	require.NoError(t, err)
	assert.True(t, created)

	store.runningFollowID = follow.ID
	runs, err := svc.RunFollows(context.Background(), "user-1", nil)
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.Empty(t, store.runStamps, "overlapping run must not touch the schedule")

	store.runningFollowID = ""
	runs, err = svc.RunFollows(context.Background(), "user-1", nil)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.IngestCompleted, runs[0].Status)
	assert.Equal(t, []string{"item-1"}, runs[0].ItemIDs)
	assert.Equal(t, []string{follow.ID}, store.runStamps)
}

func TestRunDueFollowsStampsSchedule(t *testing.T) {
	store := newMockLoopStore()
	svc, _, _, _ := newTestService(store)
	seedItem(store, "item-1", 1000, 100, 10, 5, 5)

	follow, _, err := svc.UpsertFollow(context.Background(), "user-1", &FollowRequest{
		Platform:       models.PlatformTikTok,
		Mode:           models.FollowKeyword,
		Query:          "editing",
		CadenceMinutes: 5, // clamps to 15
	})
	require.NoError(t, err)
	assert.Equal(t, 15, follow.CadenceMinutes)
	require.NotNil(t, follow.NextRunAt)

	// Force the follow due and sweep.
	past := time.Now().UTC().Add(-time.Minute)
	store.follows[follow.ID].NextRunAt = &past
	require.NoError(t, svc.RunDueFollows(context.Background(), time.Now().UTC()))

	updated := store.follows[follow.ID]
	require.NotNil(t, updated.LastRunAt)
	require.NotNil(t, updated.NextRunAt)
	assert.Equal(t, updated.LastRunAt.Add(15*time.Minute), *updated.NextRunAt)
	assert.Empty(t, updated.LastError)
}

func TestUpsertFollowClampsCadenceHigh(t *testing.T) {
	store := newMockLoopStore()
	svc, _, _, _ := newTestService(store)

	follow, _, err := svc.UpsertFollow(context.Background(), "user-1", &FollowRequest{
		Platform:       models.PlatformYouTube,
		Mode:           models.FollowProfile,
		Query:          "editlab",
		CadenceMinutes: 10_000,
	})
	require.NoError(t, err)
	assert.Equal(t, 1440, follow.CadenceMinutes)
}

func TestSummaryTracksStageCompletion(t *testing.T) {
	store := newMockLoopStore()
	svc, _, _, _ := newTestService(store)
	item := seedItem(store, "item-1", 1000, 100, 10, 5, 5)

	summary, err := svc.Summary(context.Background(), "user-1", "item-1")
	require.NoError(t, err)
	assert.True(t, summary.StageCompletion.Discovered)
	assert.False(t, summary.StageCompletion.Packaged)
	assert.Equal(t, "Build a repost package for this item", summary.NextStep)

	_, err = svc.BuildRepostPackage(context.Background(), "user-1", &PackageRequest{SourceItemID: "item-1"})
	require.NoError(t, err)
	store.snapshots["item-1"] = &models.DraftSnapshot{ID: "snap-1", UserID: "user-1", SourceItemID: "item-1"}
	item.MediaMeta[models.MetaLoopLastAuditID] = "audit-9"
	store.audits["audit-9"] = &models.Audit{ID: "audit-9", UserID: "user-1", Status: models.AuditAnalyzing}

	summary, err = svc.Summary(context.Background(), "user-1", "item-1")
	require.NoError(t, err)
	assert.True(t, summary.StageCompletion.Packaged)
	assert.True(t, summary.StageCompletion.Scripted)
	assert.True(t, summary.StageCompletion.Audited)
	assert.False(t, summary.StageCompletion.Reported, "reported requires a completed audit")
	assert.Contains(t, summary.NextStep, "Wait for the audit")

	store.audits["audit-9"].Status = models.AuditCompleted
	summary, err = svc.Summary(context.Background(), "user-1", "item-1")
	require.NoError(t, err)
	assert.True(t, summary.StageCompletion.Reported)
	assert.Contains(t, summary.NextStep, "Loop complete")
}

func TestSummaryRecordsReportDeliveryOnce(t *testing.T) {
	store := newMockLoopStore()
	svc, _, _, _ := newTestService(store)
	item := seedItem(store, "item-1", 1000, 100, 10, 5, 5)
	item.MediaMeta[models.MetaLoopLastAuditID] = "audit-9"
	store.audits["audit-9"] = &models.Audit{ID: "audit-9", UserID: "user-1", Status: models.AuditCompleted}

	for i := 0; i < 3; i++ {
		summary, err := svc.Summary(context.Background(), "user-1", "item-1")
		require.NoError(t, err)
		assert.True(t, summary.StageCompletion.Reported)
	}

	delivered := 0
	for _, e := range store.events {
		if e.EventName == "feed_report_delivery" && e.Status == "ok" {
			delivered++
		}
	}
	assert.Equal(t, 1, delivered, "repeat summaries must not inflate the funnel")
	assert.Equal(t, "audit-9", store.items["item-1"].MediaMeta[models.MetaLoopReportedAuditID])

	// A fresh completed audit reports again.
	item.MediaMeta[models.MetaLoopLastAuditID] = "audit-10"
	store.audits["audit-10"] = &models.Audit{ID: "audit-10", UserID: "user-1", Status: models.AuditCompleted}
	_, err := svc.Summary(context.Background(), "user-1", "item-1")
	require.NoError(t, err)

	summary, err := svc.TelemetrySummary(context.Background(), "user-1", 7)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Funnel.Reported)
}

func TestTelemetrySummaryBuildsFunnel(t *testing.T) {
	store := newMockLoopStore()
	svc, _, _, _ := newTestService(store)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		svc.record(ctx, "user-1", "feed_discover", "ok", models.PlatformTikTok, "", nil)
	}
	for i := 0; i < 5; i++ {
		svc.record(ctx, "user-1", "feed_repost_package", "ok", models.PlatformTikTok, "", nil)
	}
	for i := 0; i < 4; i++ {
		svc.record(ctx, "user-1", "feed_variant_loop", "ok", models.PlatformTikTok, "", nil)
	}
	svc.record(ctx, "user-1", "feed_audit_loop", "ok", models.PlatformTikTok, "", nil)
	svc.record(ctx, "user-1", "feed_audit_loop", "ok", models.PlatformTikTok, "", nil)
	svc.record(ctx, "user-1", "feed_audit_loop", "error", models.PlatformTikTok, "", nil)
	svc.record(ctx, "user-1", "feed_report_delivery", "ok", models.PlatformTikTok, "", nil)

	summary, err := svc.TelemetrySummary(ctx, "user-1", 7)
	require.NoError(t, err)
	assert.Equal(t, 23, summary.EventVolume.Total)
	assert.Equal(t, 1, summary.EventVolume.ErrorCount)
	assert.Equal(t, 3, summary.EventVolume.ByEvent["feed_audit_loop"])

	funnel := summary.Funnel
	assert.Equal(t, 10, funnel.Discovered)
	assert.Equal(t, 5, funnel.Packaged)
	assert.Equal(t, 4, funnel.Scripted)
	assert.Equal(t, 2, funnel.Audited)
	assert.Equal(t, 1, funnel.Reported)
	assert.InDelta(t, 50.0, funnel.DiscoverToPackage, 0.01)
	assert.InDelta(t, 80.0, funnel.PackageToScript, 0.01)
	assert.InDelta(t, 50.0, funnel.ScriptToAudit, 0.01)
	assert.InDelta(t, 50.0, funnel.AuditToReport, 0.01)
}

func TestToggleFavorite(t *testing.T) {
	store := newMockLoopStore()
	svc, _, _, _ := newTestService(store)
	seedItem(store, "item-1", 1000, 100, 10, 5, 5)

	// Nil desired value flips.
	on, err := svc.ToggleFavorite(context.Background(), "user-1", "item-1", nil)
	require.NoError(t, err)
	assert.True(t, on)
	off, err := svc.ToggleFavorite(context.Background(), "user-1", "item-1", nil)
	require.NoError(t, err)
	assert.False(t, off)

	// Explicit value sets; repeating it is a no-op.
	want := true
	on, err = svc.ToggleFavorite(context.Background(), "user-1", "item-1", &want)
	require.NoError(t, err)
	assert.True(t, on)
	on, err = svc.ToggleFavorite(context.Background(), "user-1", "item-1", &want)
	require.NoError(t, err)
	assert.True(t, on)
}
