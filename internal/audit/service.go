// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

// Package audit runs multimodal video audits: download or upload, frame
// and audio extraction, LLM analysis, and a performance prediction from
// the scoring engine. Runs are durable queue jobs; the request side only
// creates pending rows and enqueues.
package audit

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clipsight/clipsight/internal/apperr"
	"github.com/clipsight/clipsight/internal/clients"
	"github.com/clipsight/clipsight/internal/config"
	"github.com/clipsight/clipsight/internal/logging"
	"github.com/clipsight/clipsight/internal/models"
	"github.com/clipsight/clipsight/internal/queue"
)

// shareLinkTTL bounds how long an audit report stays shareable.
const shareLinkTTL = 7 * 24 * time.Hour

// Store is the persistence surface the audit service and runner need.
type Store interface {
	CreateAudit(ctx context.Context, audit *models.Audit) error
	GetAudit(ctx context.Context, userID, id string) (*models.Audit, error)
	GetAuditAny(ctx context.Context, id string) (*models.Audit, error)
	ListAudits(ctx context.Context, userID string, limit int) ([]models.Audit, error)
	UpdateAuditProgress(ctx context.Context, id string, status models.AuditStatus) error
	CompleteAudit(ctx context.Context, id string, output *models.AuditOutput) error
	FailAudit(ctx context.Context, id, errorMessage string) error
	CreateUpload(ctx context.Context, upload *models.Upload) error
	GetUpload(ctx context.Context, userID, id string) (*models.Upload, error)
	CreateShareLink(ctx context.Context, link *models.ReportShareLink) error
	GetShareLinkByToken(ctx context.Context, token string) (*models.ReportShareLink, error)
}

// CreditLedger is the slice of the credits service audits consume.
type CreditLedger interface {
	ConsumeOp(ctx context.Context, userID, op, referenceType, referenceID string) (*models.ConsumeResult, error)
	CostFor(op string) int
	Refund(ctx context.Context, userID string, credits int, op, refID string) error
}

// Service handles uploads, run requests, and share links.
type Service struct {
	store      Store
	publisher  queue.JobPublisher
	credits    CreditLedger
	uploadsDir string
}

// NewService builds the audit service.
func NewService(store Store, publisher queue.JobPublisher, credits CreditLedger, cfg *config.UploadsConfig) *Service {
	return &Service{
		store:      store,
		publisher:  publisher,
		credits:    credits,
		uploadsDir: cfg.Dir,
	}
}

// SaveUpload persists an uploaded video under the user's upload dir and
// records the Upload row.
func (s *Service) SaveUpload(ctx context.Context, userID, fileName, mime string, src io.Reader) (*models.Upload, error) {
	if strings.TrimSpace(fileName) == "" {
		return nil, apperr.BadRequest("file name is required")
	}

	userDir := filepath.Join(s.uploadsDir, clients.SafeFilename(userID))
	if err := os.MkdirAll(userDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}

	safeName := clients.SafeFilename(uuid.New().String() + "_" + fileName)
	finalPath := filepath.Join(userDir, safeName)
	out, err := os.OpenFile(finalPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload file: %w", err)
	}
	size, err := io.Copy(out, src)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(finalPath)
		return nil, fmt.Errorf("failed to write upload file: %w", err)
	}

	if mime == "" {
		mime = "video/mp4"
	}
	upload := &models.Upload{
		UserID:   userID,
		FileURL:  finalPath,
		FileType: "video",
		Size:     size,
		Mime:     mime,
	}
	if err := s.store.CreateUpload(ctx, upload); err != nil {
		_ = os.Remove(finalPath)
		return nil, err
	}

	logging.Info().
		Str("upload_id", upload.ID).
		Int64("size", size).
		Msg("Audit upload stored")
	return upload, nil
}

// RunMultimodal debits credits, creates a pending audit, and enqueues the
// run. An enqueue failure refunds the debit and marks the audit failed.
func (s *Service) RunMultimodal(ctx context.Context, userID string, input *models.AuditInput) (*models.Audit, error) {
	if input == nil {
		return nil, apperr.BadRequest("audit input is required")
	}
	switch input.SourceMode {
	case models.AuditSourceURL:
		if strings.TrimSpace(input.VideoURL) == "" {
			return nil, apperr.BadRequest("video_url is required for url mode")
		}
	case models.AuditSourceUpload:
		if input.UploadID != "" && input.UploadPath == "" {
			upload, err := s.store.GetUpload(ctx, userID, input.UploadID)
			if err != nil {
				return nil, err
			}
			input.UploadPath = upload.FileURL
		}
		if strings.TrimSpace(input.UploadPath) == "" {
			return nil, apperr.BadRequest("upload_id or upload_path is required for upload mode")
		}
	default:
		return nil, apperr.BadRequest("source_mode must be url or upload")
	}

	if _, err := s.credits.ConsumeOp(ctx, userID, models.CreditOpAuditRun, "audit", ""); err != nil {
		return nil, err
	}

	audit := &models.Audit{
		UserID: userID,
		Input:  input,
	}
	if err := s.store.CreateAudit(ctx, audit); err != nil {
		return nil, err
	}

	job := &queue.AuditJob{AuditID: audit.ID, UserID: userID, EnqueuedAt: time.Now().UTC()}
	if err := s.publisher.PublishAuditJob(ctx, job); err != nil {
		if refundErr := s.credits.Refund(ctx, userID, s.credits.CostFor(models.CreditOpAuditRun),
			models.CreditOpAuditRun, audit.ID); refundErr != nil {
			logging.Error().Err(refundErr).Str("audit_id", audit.ID).Msg("Failed to refund audit debit")
		}
		if failErr := s.store.FailAudit(ctx, audit.ID, "job queue unavailable"); failErr != nil {
			logging.Error().Err(failErr).Str("audit_id", audit.ID).Msg("Failed to mark orphaned audit")
		}
		return nil, apperr.Wrap(apperr.KindServiceUnavailable, "audit queue unavailable", err)
	}

	logging.Info().
		Str("audit_id", audit.ID).
		Str("source_mode", input.SourceMode).
		Msg("Multimodal audit enqueued")
	return audit, nil
}

// GetAudit returns one audit scoped to its owner.
func (s *Service) GetAudit(ctx context.Context, userID, id string) (*models.Audit, error) {
	return s.store.GetAudit(ctx, userID, id)
}

// ListAudits returns the user's audits, newest first.
func (s *Service) ListAudits(ctx context.Context, userID string, limit int) ([]models.Audit, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.store.ListAudits(ctx, userID, limit)
}

// CreateShareLink mints a share token for a completed audit.
func (s *Service) CreateShareLink(ctx context.Context, userID, auditID string) (*models.ReportShareLink, error) {
	audit, err := s.store.GetAudit(ctx, userID, auditID)
	if err != nil {
		return nil, err
	}
	if audit.Status != models.AuditCompleted {
		return nil, apperr.Conflict("audit is not completed")
	}

	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to generate share token: %w", err)
	}
	link := &models.ReportShareLink{
		UserID:     userID,
		AuditID:    auditID,
		ShareToken: hex.EncodeToString(buf),
		ExpiresAt:  time.Now().UTC().Add(shareLinkTTL),
	}
	if err := s.store.CreateShareLink(ctx, link); err != nil {
		return nil, err
	}
	return link, nil
}

// ResolveShareLink returns the shared audit for a valid, unexpired token.
func (s *Service) ResolveShareLink(ctx context.Context, token string) (*models.Audit, error) {
	link, err := s.store.GetShareLinkByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if time.Now().UTC().After(link.ExpiresAt) {
		return nil, apperr.NotFound("share link expired")
	}
	return s.store.GetAuditAny(ctx, link.AuditID)
}
