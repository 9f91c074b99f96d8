// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package media

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	json "github.com/goccy/go-json"

	"github.com/clipsight/clipsight/internal/apperr"
	"github.com/clipsight/clipsight/internal/clients"
	"github.com/clipsight/clipsight/internal/config"
	"github.com/clipsight/clipsight/internal/database"
	"github.com/clipsight/clipsight/internal/models"
	"github.com/clipsight/clipsight/internal/queue"
)

// mockMediaStore is an in-memory Store.
type mockMediaStore struct {
	mu             sync.Mutex
	mediaJobs      map[string]*models.MediaDownloadJob
	transcriptJobs map[string]*models.FeedTranscriptJob
	items          map[string]*models.ResearchItem
	assets         []*models.MediaAsset
	uploads        []*models.Upload
	metaPatches    []models.JSONMap
}

func newMockMediaStore() *mockMediaStore {
	return &mockMediaStore{
		mediaJobs:      make(map[string]*models.MediaDownloadJob),
		transcriptJobs: make(map[string]*models.FeedTranscriptJob),
		items:          make(map[string]*models.ResearchItem),
	}
}

func (m *mockMediaStore) CreateMediaJob(_ context.Context, job *models.MediaDownloadJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job.ID = uuid.New().String()
	job.Status = models.MediaJobQueued
	job.MaxAttempts = 3
	job.CreatedAt = time.Now().UTC()
	m.mediaJobs[job.ID] = job
	return nil
}

func (m *mockMediaStore) GetMediaJob(_ context.Context, userID, id string) (*models.MediaDownloadJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.mediaJobs[id]
	if !ok || job.UserID != userID {
		return nil, database.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (m *mockMediaStore) GetMediaJobAny(_ context.Context, id string) (*models.MediaDownloadJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.mediaJobs[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (m *mockMediaStore) LatestMediaJobForURL(_ context.Context, userID, sourceURL string) (*models.MediaDownloadJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, job := range m.mediaJobs {
		if job.UserID == userID && job.SourceURL == sourceURL {
			cp := *job
			return &cp, nil
		}
	}
	return nil, database.ErrNotFound
}

func (m *mockMediaStore) UpdateMediaJobProgress(_ context.Context, id string, status models.MediaJobStatus, progress int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.mediaJobs[id]; ok {
		job.Status = status
		job.Progress = progress
	}
	return nil
}

func (m *mockMediaStore) IncrementMediaJobAttempts(_ context.Context, id string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.mediaJobs[id]
	if !ok {
		return 0, database.ErrNotFound
	}
	job.Attempts++
	return job.Attempts, nil
}

func (m *mockMediaStore) CompleteMediaJob(_ context.Context, id, assetID, uploadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.mediaJobs[id]; ok {
		now := time.Now().UTC()
		job.Status = models.MediaJobCompleted
		job.Progress = 100
		job.MediaAssetID = assetID
		job.UploadID = uploadID
		job.CompletedAt = &now
	}
	return nil
}

func (m *mockMediaStore) FailMediaJob(_ context.Context, id, errorCode, errorMessage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.mediaJobs[id]; ok {
		now := time.Now().UTC()
		job.Status = models.MediaJobFailed
		job.Progress = 100
		job.ErrorCode = errorCode
		job.ErrorMessage = errorMessage
		job.CompletedAt = &now
	}
	return nil
}

func (m *mockMediaStore) SetMediaJobQueueID(_ context.Context, id, queueJobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.mediaJobs[id]; ok {
		job.QueueJobID = queueJobID
	}
	return nil
}

func (m *mockMediaStore) CreateAssetAndUpload(_ context.Context, asset *models.MediaAsset, upload *models.Upload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	asset.ID = uuid.New().String()
	upload.ID = uuid.New().String()
	asset.UploadID = upload.ID
	m.assets = append(m.assets, asset)
	m.uploads = append(m.uploads, upload)
	return nil
}

func (m *mockMediaStore) LatestAssetForURL(_ context.Context, userID, sourceURL string) (*models.MediaAsset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.assets) - 1; i >= 0; i-- {
		if m.assets[i].UserID == userID && m.assets[i].SourceURL == sourceURL {
			return m.assets[i], nil
		}
	}
	return nil, database.ErrNotFound
}

func (m *mockMediaStore) CreateTranscriptJob(_ context.Context, job *models.FeedTranscriptJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job.ID = uuid.New().String()
	job.Status = models.MediaJobQueued
	job.CreatedAt = time.Now().UTC()
	m.transcriptJobs[job.ID] = job
	return nil
}

func (m *mockMediaStore) GetTranscriptJob(_ context.Context, userID, id string) (*models.FeedTranscriptJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.transcriptJobs[id]
	if !ok || job.UserID != userID {
		return nil, database.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (m *mockMediaStore) GetTranscriptJobAny(_ context.Context, id string) (*models.FeedTranscriptJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.transcriptJobs[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (m *mockMediaStore) UpdateTranscriptJobProgress(_ context.Context, id string, status models.MediaJobStatus, progress int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.transcriptJobs[id]; ok {
		job.Status = status
		job.Progress = progress
	}
	return nil
}

func (m *mockMediaStore) CompleteTranscriptJob(_ context.Context, id string, source models.TranscriptSource, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.transcriptJobs[id]; ok {
		now := time.Now().UTC()
		job.Status = models.MediaJobCompleted
		job.Progress = 100
		job.TranscriptSource = source
		job.TranscriptText = text
		job.CompletedAt = &now
	}
	return nil
}

func (m *mockMediaStore) FailTranscriptJob(_ context.Context, id, errorCode, errorMessage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.transcriptJobs[id]; ok {
		now := time.Now().UTC()
		job.Status = models.MediaJobFailed
		job.ErrorCode = errorCode
		job.ErrorMessage = errorMessage
		job.CompletedAt = &now
	}
	return nil
}

func (m *mockMediaStore) GetResearchItem(_ context.Context, userID, id string) (*models.ResearchItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok || item.UserID != userID {
		return nil, database.ErrNotFound
	}
	cp := *item
	return &cp, nil
}

func (m *mockMediaStore) MergeResearchItemMeta(_ context.Context, userID, id string, patch models.JSONMap) (*models.ResearchItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok || item.UserID != userID {
		return nil, database.ErrNotFound
	}
	m.metaPatches = append(m.metaPatches, patch)
	item.MediaMeta = item.MediaMeta.Merge(patch)
	cp := *item
	return &cp, nil
}

// failingPublisher simulates a broker outage.
type failingPublisher struct{}

func (failingPublisher) PublishAuditJob(context.Context, *queue.AuditJob) error {
	return errors.New("broker down")
}
func (failingPublisher) PublishMediaJob(context.Context, *queue.MediaJob) error {
	return errors.New("broker down")
}
func (failingPublisher) Close() error { return nil }

// recordingPublisher captures enqueued jobs.
type recordingPublisher struct {
	mu        sync.Mutex
	mediaJobs []*queue.MediaJob
}

func (r *recordingPublisher) PublishAuditJob(context.Context, *queue.AuditJob) error { return nil }
func (r *recordingPublisher) PublishMediaJob(_ context.Context, job *queue.MediaJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mediaJobs = append(r.mediaJobs, job)
	return nil
}
func (r *recordingPublisher) Close() error { return nil }

func TestEnqueueDownloadQueueFailureMarksJobFailed(t *testing.T) {
	store := newMockMediaStore()
	svc := NewService(store, failingPublisher{})

	_, err := svc.EnqueueDownload(context.Background(), "user-1", models.PlatformYouTube, "https://youtube.com/watch?v=x")
	if !apperr.IsKind(err, apperr.KindServiceUnavailable) {
		t.Fatalf("expected ServiceUnavailable, got %v", err)
	}

	var job *models.MediaDownloadJob
	for _, j := range store.mediaJobs {
		job = j
	}
	if job == nil {
		t.Fatal("expected a persisted job row")
	}
	if job.Status != models.MediaJobFailed || job.ErrorCode != models.ErrCodeQueueUnavailable {
		t.Errorf("job status=%s error_code=%s, want failed/queue_unavailable", job.Status, job.ErrorCode)
	}
}

func TestEnqueueDownloadReusesCompletedJob(t *testing.T) {
	store := newMockMediaStore()
	pub := &recordingPublisher{}
	svc := NewService(store, pub)

	first, err := svc.EnqueueDownload(context.Background(), "user-1", models.PlatformYouTube, "https://youtube.com/watch?v=x")
	if err != nil {
		t.Fatalf("first enqueue failed: %v", err)
	}
	if err := store.CompleteMediaJob(context.Background(), first.ID, "asset-1", "upload-1"); err != nil {
		t.Fatal(err)
	}

	second, err := svc.EnqueueDownload(context.Background(), "user-1", models.PlatformYouTube, "https://youtube.com/watch?v=x")
	if err != nil {
		t.Fatalf("second enqueue failed: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("expected completed job reuse, got new job %s", second.ID)
	}
	if len(pub.mediaJobs) != 1 {
		t.Errorf("expected 1 published job, got %d", len(pub.mediaJobs))
	}
}

func transcriptMessage(t *testing.T, jobID string) *message.Message {
	t.Helper()
	payload, err := json.Marshal(&queue.MediaJob{JobID: jobID, Kind: queue.MediaKindTranscript})
	if err != nil {
		t.Fatal(err)
	}
	return message.NewMessage(uuid.New().String(), payload)
}

func TestTranscriptFallsBackToCaption(t *testing.T) {
	store := newMockMediaStore()
	store.items["item-1"] = &models.ResearchItem{
		ID:      "item-1",
		UserID:  "user-1",
		Title:   "A title",
		Caption: "The caption text",
	}
	job := &models.FeedTranscriptJob{UserID: "user-1", ResearchItemID: "item-1"}
	if err := store.CreateTranscriptJob(context.Background(), job); err != nil {
		t.Fatal(err)
	}

	features := &config.FeatureFlags{WhisperTranscription: false}
	w := NewTranscriptWorker(store, clients.NewFFmpeg(), nil, features)

	if err := w.Handle(context.Background(), transcriptMessage(t, job.ID)); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	got := store.transcriptJobs[job.ID]
	if got.Status != models.MediaJobCompleted {
		t.Fatalf("job status = %s, want completed", got.Status)
	}
	if got.TranscriptSource != models.TranscriptCaption {
		t.Errorf("source = %s, want caption_fallback", got.TranscriptSource)
	}
	if got.TranscriptText != "The caption text" {
		t.Errorf("text = %q", got.TranscriptText)
	}

	if len(store.metaPatches) != 1 {
		t.Fatalf("expected 1 meta patch, got %d", len(store.metaPatches))
	}
	patch := store.metaPatches[0]
	if patch[models.MetaTranscriptSource] != string(models.TranscriptCaption) {
		t.Errorf("meta transcript_source = %v", patch[models.MetaTranscriptSource])
	}
}

func TestTranscriptFailsWithoutAnySource(t *testing.T) {
	store := newMockMediaStore()
	store.items["item-1"] = &models.ResearchItem{ID: "item-1", UserID: "user-1"}
	job := &models.FeedTranscriptJob{UserID: "user-1", ResearchItemID: "item-1"}
	if err := store.CreateTranscriptJob(context.Background(), job); err != nil {
		t.Fatal(err)
	}

	w := NewTranscriptWorker(store, clients.NewFFmpeg(), nil, &config.FeatureFlags{})
	if err := w.Handle(context.Background(), transcriptMessage(t, job.ID)); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	got := store.transcriptJobs[job.ID]
	if got.Status != models.MediaJobFailed {
		t.Errorf("job status = %s, want failed", got.Status)
	}
}

func TestTranscriptTitleFallbackTruncates(t *testing.T) {
	longTitle := make([]byte, transcriptMaxChars+500)
	for i := range longTitle {
		longTitle[i] = 'a'
	}

	store := newMockMediaStore()
	store.items["item-1"] = &models.ResearchItem{ID: "item-1", UserID: "user-1", Title: string(longTitle)}
	job := &models.FeedTranscriptJob{UserID: "user-1", ResearchItemID: "item-1"}
	if err := store.CreateTranscriptJob(context.Background(), job); err != nil {
		t.Fatal(err)
	}

	w := NewTranscriptWorker(store, clients.NewFFmpeg(), nil, &config.FeatureFlags{})
	if err := w.Handle(context.Background(), transcriptMessage(t, job.ID)); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	got := store.transcriptJobs[job.ID]
	if got.TranscriptSource != models.TranscriptTitle {
		t.Errorf("source = %s, want title_fallback", got.TranscriptSource)
	}
	if len(got.TranscriptText) != transcriptMaxChars {
		t.Errorf("stored text length = %d, want %d", len(got.TranscriptText), transcriptMaxChars)
	}
	mirror := store.metaPatches[0][models.MetaTranscriptText].(string)
	if len(mirror) != metaMirrorMaxChars {
		t.Errorf("meta mirror length = %d, want %d", len(mirror), metaMirrorMaxChars)
	}
}
