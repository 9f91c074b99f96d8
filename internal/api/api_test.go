// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipsight/clipsight/internal/apperr"
	"github.com/clipsight/clipsight/internal/auth"
	"github.com/clipsight/clipsight/internal/config"
	"github.com/clipsight/clipsight/internal/database"
	"github.com/clipsight/clipsight/internal/models"
	"github.com/clipsight/clipsight/internal/optimizer"
	"github.com/clipsight/clipsight/internal/research"
)

type stubUsers struct {
	users map[string]*models.User
}

func (s *stubUsers) EnsureUser(_ context.Context, id, email string) (*models.User, error) {
	u := &models.User{ID: id, Email: email, CreatedAt: time.Now().UTC()}
	s.users[id] = u
	return u, nil
}

func (s *stubUsers) GetUser(_ context.Context, id string) (*models.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return u, nil
}

type stubCredits struct {
	balance  int
	consumed []string
	refunded []string
}

func (s *stubCredits) CostFor(string) int { return 1 }

func (s *stubCredits) Summary(_ context.Context, _ string) (*models.CreditSummary, error) {
	return &models.CreditSummary{Balance: s.balance}, nil
}

func (s *stubCredits) ConsumeOp(_ context.Context, _, op, _, _ string) (*models.ConsumeResult, error) {
	if s.balance < 1 {
		return nil, apperr.InsufficientCredits("not enough credits")
	}
	s.balance--
	s.consumed = append(s.consumed, op)
	return &models.ConsumeResult{Charged: 1, BalanceAfter: s.balance}, nil
}

func (s *stubCredits) Refund(_ context.Context, _ string, credits int, op, _ string) error {
	s.balance += credits
	s.refunded = append(s.refunded, op)
	return nil
}

func (s *stubCredits) AddPurchase(_ context.Context, _ string, credits int, _, _ string) (int, error) {
	s.balance += credits
	return s.balance, nil
}

type stubResearch struct {
	items map[string]*models.ResearchItem
}

func (s *stubResearch) ImportURL(_ context.Context, userID string, platform models.Platform, rawURL string) (*models.ResearchItem, error) {
	return &models.ResearchItem{ID: "item-new", UserID: userID, Platform: platform, URL: rawURL}, nil
}

func (s *stubResearch) Capture(_ context.Context, userID string, req *research.CaptureRequest) (*models.ResearchItem, error) {
	return &models.ResearchItem{ID: "item-cap", UserID: userID, Platform: req.Platform, URL: req.URL}, nil
}

func (s *stubResearch) ImportCSV(_ context.Context, _ string, _ models.Platform, _ string, _ int64, _ io.Reader) (*research.CSVImportResult, error) {
	return &research.CSVImportResult{}, nil
}

func (s *stubResearch) Search(_ context.Context, _ string, f models.ItemSearchFilters) (*models.ItemPage, error) {
	return &models.ItemPage{Items: []models.ResearchItem{}, Page: 1, Limit: 20}, nil
}

func (s *stubResearch) GetItem(_ context.Context, userID, id string) (*models.ResearchItem, error) {
	item, ok := s.items[id]
	if !ok || item.UserID != userID {
		return nil, database.ErrNotFound
	}
	return item, nil
}

func (s *stubResearch) ListCollections(_ context.Context, _ string) ([]models.ResearchCollection, error) {
	return nil, nil
}

func (s *stubResearch) Export(_ context.Context, userID, collectionID, format string) (*models.ResearchExport, string, error) {
	return &models.ResearchExport{ID: "export-1", UserID: userID, Format: format}, "token-1", nil
}

func (s *stubResearch) ResolveDownload(_ context.Context, _, _ string) (*models.ResearchExport, error) {
	return nil, apperr.Forbidden("invalid download token")
}

type stubOptimizer struct {
	fail bool
}

func (s *stubOptimizer) GenerateVariants(_ context.Context, req *models.VariantRequest) (*models.VariantBatch, error) {
	if s.fail {
		return nil, apperr.New(apperr.KindFatal, "generation failed")
	}
	return &models.VariantBatch{ID: "batch-1", UserID: req.UserID, Platform: req.Platform}, nil
}

func (s *stubOptimizer) GetVariantBatch(_ context.Context, _, _ string) (*models.VariantBatch, error) {
	return nil, database.ErrNotFound
}

func (s *stubOptimizer) Rescore(_ context.Context, req *optimizer.RescoreRequest) (*models.RescoreResult, error) {
	return &models.RescoreResult{}, nil
}

func (s *stubOptimizer) CreateDraftSnapshot(_ context.Context, d *models.DraftSnapshot) (*models.DraftSnapshot, error) {
	return d, nil
}

func (s *stubOptimizer) GetDraftSnapshot(_ context.Context, _, _ string) (*models.DraftSnapshot, error) {
	return nil, database.ErrNotFound
}

func (s *stubOptimizer) ListDraftSnapshots(_ context.Context, _ string, _ int) ([]models.DraftSnapshot, error) {
	return nil, nil
}

type stubAudits struct {
	shared map[string]*models.Audit
}

func (s *stubAudits) SaveUpload(_ context.Context, userID, fileName, mime string, _ io.Reader) (*models.Upload, error) {
	return &models.Upload{ID: "upload-1", UserID: userID, Mime: mime}, nil
}

func (s *stubAudits) RunMultimodal(_ context.Context, userID string, _ *models.AuditInput) (*models.Audit, error) {
	return &models.Audit{ID: "audit-1", UserID: userID, Status: models.AuditPending}, nil
}

func (s *stubAudits) GetAudit(_ context.Context, _, _ string) (*models.Audit, error) {
	return nil, database.ErrNotFound
}

func (s *stubAudits) ListAudits(_ context.Context, _ string, _ int) ([]models.Audit, error) {
	return nil, nil
}

func (s *stubAudits) CreateShareLink(_ context.Context, userID, auditID string) (*models.ReportShareLink, error) {
	return &models.ReportShareLink{ID: "share-1", UserID: userID, AuditID: auditID, ShareToken: "tok"}, nil
}

func (s *stubAudits) ResolveShareLink(_ context.Context, token string) (*models.Audit, error) {
	audit, ok := s.shared[token]
	if !ok {
		return nil, apperr.NotFound("share link not found or expired")
	}
	return audit, nil
}

type stubReports struct{}

func (stubReports) Build(_ context.Context, userID, auditID string) (*models.ConsolidatedReport, error) {
	return &models.ConsolidatedReport{AuditID: auditID}, nil
}

func (stubReports) BuildLatest(_ context.Context, _ string) (*models.ConsolidatedReport, error) {
	return nil, apperr.NotFound("no completed audits yet; run an audit first")
}

func (stubReports) BuildShared(_ context.Context, audit *models.Audit) (*models.ConsolidatedReport, error) {
	return &models.ConsolidatedReport{AuditID: audit.ID}, nil
}

type envelope struct {
	Success bool             `json:"success"`
	Data    json.RawMessage  `json:"data"`
	Error   *models.APIError `json:"error"`
}

type fixture struct {
	handler   http.Handler
	token     string
	credits   *stubCredits
	optimizer *stubOptimizer
	users     *stubUsers
}

func newFixture(t *testing.T, mutate func(cfg *config.Config, deps *Deps)) *fixture {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   1000,
			RateLimitWindow: time.Minute,
		},
		Features: config.FeatureFlags{
			Research:              true,
			ExternalMediaDownload: true,
			OutcomeLearning:       true,
		},
	}
	sessions, err := auth.NewSessionManager(&config.SecurityConfig{
		JWTSecret:          "test-secret-test-secret-test-secret",
		JWTAlgorithm:       "HS256",
		JWTExpirationHours: 1,
	})
	require.NoError(t, err)

	credits := &stubCredits{balance: 10}
	opt := &stubOptimizer{}
	users := &stubUsers{users: map[string]*models.User{
		"user-1": {ID: "user-1", Email: "creator@example.com"},
	}}
	deps := Deps{
		Users:   users,
		Credits: credits,
		Research: &stubResearch{items: map[string]*models.ResearchItem{
			"item-1": {ID: "item-1", UserID: "user-1", Platform: models.PlatformYouTube},
		}},
		Optimizer: opt,
		Audits: &stubAudits{shared: map[string]*models.Audit{
			"tok-9": {ID: "audit-9", UserID: "user-1", Status: models.AuditCompleted},
		}},
		Reports: stubReports{},
	}
	if mutate != nil {
		mutate(cfg, &deps)
	}

	token, err := sessions.GenerateToken("user-1", "creator@example.com")
	require.NoError(t, err)

	return &fixture{
		handler:   NewRouter(cfg, sessions, deps).Setup(),
		token:     token,
		credits:   credits,
		optimizer: opt,
		users:     users,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any, authed bool) (*httptest.ResponseRecorder, *envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	env := &envelope{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), env))
	return rec, env
}

func TestAuthRequired(t *testing.T) {
	f := newFixture(t, nil)

	rec, env := f.do(t, http.MethodGet, "/auth/me", nil, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, "unauthenticated", env.Error.Code)
}

func TestAuthMe(t *testing.T) {
	f := newFixture(t, nil)

	rec, env := f.do(t, http.MethodGet, "/auth/me", nil, true)
	assert.Equal(t, http.StatusOK, rec.Code)
	var user models.User
	require.NoError(t, json.Unmarshal(env.Data, &user))
	assert.Equal(t, "user-1", user.ID)
}

func TestUserScopeGuard(t *testing.T) {
	f := newFixture(t, nil)

	rec, env := f.do(t, http.MethodPost, "/billing/topup", map[string]any{
		"user_id":           "someone-else",
		"credits":           5,
		"provider":          "stripe",
		"billing_reference": "ch_123",
	}, true)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "forbidden", env.Error.Code)
}

func TestGetItemNotFoundMapsTo404(t *testing.T) {
	f := newFixture(t, nil)

	rec, _ := f.do(t, http.MethodGet, "/research/items/item-1", nil, true)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env := f.do(t, http.MethodGet, "/research/items/missing", nil, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "not_found", env.Error.Code)
}

func TestVariantGenerateDebitsCredits(t *testing.T) {
	f := newFixture(t, nil)

	rec, _ := f.do(t, http.MethodPost, "/optimizer/variant_generate", map[string]any{
		"platform": "youtube",
		"topic":    "hooks that retain",
	}, true)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, []string{models.CreditOpOptimizerVariants}, f.credits.consumed)
	assert.Equal(t, 9, f.credits.balance)
}

func TestVariantGenerateInsufficientCredits(t *testing.T) {
	f := newFixture(t, func(_ *config.Config, deps *Deps) {})
	f.credits.balance = 0

	rec, env := f.do(t, http.MethodPost, "/optimizer/variant_generate", map[string]any{
		"platform": "youtube",
		"topic":    "hooks that retain",
	}, true)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "insufficient_credits", env.Error.Code)
}

func TestVariantGenerateRefundsOnFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.optimizer.fail = true

	rec, _ := f.do(t, http.MethodPost, "/optimizer/variant_generate", map[string]any{
		"platform": "youtube",
		"topic":    "hooks that retain",
	}, true)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, []string{models.CreditOpOptimizerVariants}, f.credits.refunded)
	assert.Equal(t, 10, f.credits.balance)
}

func TestValidationFailureIs400(t *testing.T) {
	f := newFixture(t, nil)

	rec, env := f.do(t, http.MethodPost, "/optimizer/variant_generate", map[string]any{
		"platform": "myspace",
		"topic":    "hooks",
	}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "bad_request", env.Error.Code)
}

func TestFeatureDisabled(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config, _ *Deps) {
		cfg.Features.ExternalMediaDownload = false
	})

	rec, env := f.do(t, http.MethodPost, "/media/download", map[string]any{
		"platform":   "youtube",
		"source_url": "https://youtube.com/watch?v=abc",
	}, true)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "feature_disabled", env.Error.Code)
}

func TestHealthReadyDegraded(t *testing.T) {
	f := newFixture(t, func(_ *config.Config, deps *Deps) {
		deps.DBPing = func(context.Context) error { return nil }
		deps.QueuePing = func(context.Context) error { return errors.New("broker unreachable") }
	})

	rec, env := f.do(t, http.MethodGet, "/health/ready", nil, false)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var data struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "degraded", data.Status)
	assert.Equal(t, "ok", data.Checks["database"])
}

func TestSharedReportIsPublic(t *testing.T) {
	f := newFixture(t, nil)

	rec, env := f.do(t, http.MethodGet, "/report/shared/tok-9", nil, false)
	assert.Equal(t, http.StatusOK, rec.Code)
	var report models.ConsolidatedReport
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, "audit-9", report.AuditID)

	rec, env = f.do(t, http.MethodGet, "/report/shared/unknown", nil, false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResearchSearchDebitsCredits(t *testing.T) {
	f := newFixture(t, nil)

	rec, _ := f.do(t, http.MethodPost, "/research/search", map[string]any{
		"query": "hooks",
	}, true)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{models.CreditOpResearchSearch}, f.credits.consumed)
}
