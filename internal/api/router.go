// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

// Package api is the HTTP surface: Chi routing, the JSON response
// envelope, and per-group rate limits. Handlers stay thin; domain rules
// live in the services they call.
package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clipsight/clipsight/internal/apperr"
	"github.com/clipsight/clipsight/internal/auth"
	"github.com/clipsight/clipsight/internal/config"
	"github.com/clipsight/clipsight/internal/feedloop"
	"github.com/clipsight/clipsight/internal/models"
	"github.com/clipsight/clipsight/internal/optimizer"
	"github.com/clipsight/clipsight/internal/outcome"
	"github.com/clipsight/clipsight/internal/research"
)

// UserDirectory is the identity persistence surface.
type UserDirectory interface {
	EnsureUser(ctx context.Context, id, email string) (*models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// CreditLedger is the billing surface the edge consumes.
type CreditLedger interface {
	CostFor(op string) int
	Summary(ctx context.Context, userID string) (*models.CreditSummary, error)
	ConsumeOp(ctx context.Context, userID, op, referenceType, referenceID string) (*models.ConsumeResult, error)
	Refund(ctx context.Context, userID string, credits int, op, refID string) error
	AddPurchase(ctx context.Context, userID string, credits int, provider, billingRef string) (int, error)
}

// ResearchService covers library import, search, and export.
type ResearchService interface {
	ImportURL(ctx context.Context, userID string, platform models.Platform, rawURL string) (*models.ResearchItem, error)
	Capture(ctx context.Context, userID string, req *research.CaptureRequest) (*models.ResearchItem, error)
	ImportCSV(ctx context.Context, userID string, platform models.Platform, collectionName string, size int64, file io.Reader) (*research.CSVImportResult, error)
	Search(ctx context.Context, userID string, f models.ItemSearchFilters) (*models.ItemPage, error)
	GetItem(ctx context.Context, userID, id string) (*models.ResearchItem, error)
	ListCollections(ctx context.Context, userID string) ([]models.ResearchCollection, error)
	Export(ctx context.Context, userID, collectionID, format string) (*models.ResearchExport, string, error)
	ResolveDownload(ctx context.Context, exportID, token string) (*models.ResearchExport, error)
}

// OptimizerService covers variant generation, rescoring, and snapshots.
type OptimizerService interface {
	GenerateVariants(ctx context.Context, req *models.VariantRequest) (*models.VariantBatch, error)
	GetVariantBatch(ctx context.Context, userID, id string) (*models.VariantBatch, error)
	Rescore(ctx context.Context, req *optimizer.RescoreRequest) (*models.RescoreResult, error)
	CreateDraftSnapshot(ctx context.Context, d *models.DraftSnapshot) (*models.DraftSnapshot, error)
	GetDraftSnapshot(ctx context.Context, userID, id string) (*models.DraftSnapshot, error)
	ListDraftSnapshots(ctx context.Context, userID string, limit int) ([]models.DraftSnapshot, error)
}

// OutcomeService covers outcome ingest and calibration views.
type OutcomeService interface {
	Ingest(ctx context.Context, userID string, req *outcome.IngestRequest) (*models.OutcomeMetric, error)
	Summary(ctx context.Context, userID string, platform models.Platform) (*models.OutcomeSummary, error)
	Recalibrate(ctx context.Context, userID string, platform models.Platform) (*models.CalibrationSnapshot, error)
}

// AuditService covers uploads, audit runs, and share links.
type AuditService interface {
	SaveUpload(ctx context.Context, userID, fileName, mime string, src io.Reader) (*models.Upload, error)
	RunMultimodal(ctx context.Context, userID string, input *models.AuditInput) (*models.Audit, error)
	GetAudit(ctx context.Context, userID, id string) (*models.Audit, error)
	ListAudits(ctx context.Context, userID string, limit int) ([]models.Audit, error)
	CreateShareLink(ctx context.Context, userID, auditID string) (*models.ReportShareLink, error)
	ResolveShareLink(ctx context.Context, token string) (*models.Audit, error)
}

// MediaService covers download and transcript jobs.
type MediaService interface {
	EnqueueDownload(ctx context.Context, userID string, platform models.Platform, sourceURL string) (*models.MediaDownloadJob, error)
	EnqueueBulkDownloads(ctx context.Context, userID string, platform models.Platform, sourceURLs []string) ([]models.BulkJobResult, error)
	DownloadStatus(ctx context.Context, userID string, jobIDs []string) ([]models.MediaDownloadJob, error)
	EnqueueTranscript(ctx context.Context, userID, researchItemID string) (*models.FeedTranscriptJob, error)
	TranscriptStatus(ctx context.Context, userID string, jobIDs []string) ([]models.FeedTranscriptJob, error)
}

// FeedService is the feed-loop orchestrator surface.
type FeedService interface {
	Discover(ctx context.Context, userID string, req *feedloop.DiscoverRequest) (*feedloop.DiscoverResult, error)
	ToggleFavorite(ctx context.Context, userID, itemID string, desired *bool) (bool, error)
	AssignCollection(ctx context.Context, userID, itemID, collectionID string) error
	UpsertFollow(ctx context.Context, userID string, req *feedloop.FollowRequest) (*models.FeedSourceFollow, bool, error)
	ListFollows(ctx context.Context, userID string) ([]models.FeedSourceFollow, error)
	DeleteFollow(ctx context.Context, userID, id string) error
	RunFollows(ctx context.Context, userID string, req *feedloop.RunFollowsRequest) ([]models.FeedAutoIngestRun, error)
	ListIngestRuns(ctx context.Context, userID string, limit int) ([]models.FeedAutoIngestRun, error)
	BuildRepostPackage(ctx context.Context, userID string, req *feedloop.PackageRequest) (*models.FeedRepostPackage, error)
	GetRepostPackage(ctx context.Context, userID, id string) (*models.FeedRepostPackage, error)
	ListRepostPackages(ctx context.Context, userID, sourceItemID string, limit int) ([]models.FeedRepostPackage, error)
	UpdateRepostStatus(ctx context.Context, userID, id string, status models.RepostStatus) (*models.FeedRepostPackage, error)
	VariantGenerate(ctx context.Context, userID, itemID string) (*models.VariantBatch, error)
	LoopAudit(ctx context.Context, userID, itemID string) (*models.Audit, error)
	Summary(ctx context.Context, userID, itemID string) (*models.LoopSummary, error)
	TelemetrySummary(ctx context.Context, userID string, days int) (*models.TelemetrySummary, error)
	ListTelemetryEvents(ctx context.Context, userID string, days, limit int) ([]models.FeedTelemetryEvent, error)
}

// ReportService composes consolidated reports.
type ReportService interface {
	Build(ctx context.Context, userID, auditID string) (*models.ConsolidatedReport, error)
	BuildLatest(ctx context.Context, userID string) (*models.ConsolidatedReport, error)
	BuildShared(ctx context.Context, audit *models.Audit) (*models.ConsolidatedReport, error)
}

// Deps bundles everything the router serves.
type Deps struct {
	Users     UserDirectory
	Credits   CreditLedger
	Research  ResearchService
	Optimizer OptimizerService
	Outcomes  OutcomeService
	Audits    AuditService
	Media     MediaService
	Feed      FeedService
	Reports   ReportService

	// Readiness probes. Nil probes report ready.
	DBPing    func(ctx context.Context) error
	QueuePing func(ctx context.Context) error
}

// Router wires handlers to routes.
type Router struct {
	cfg      *config.Config
	sessions *auth.SessionManager
	deps     Deps
}

// NewRouter builds the HTTP router.
func NewRouter(cfg *config.Config, sessions *auth.SessionManager, deps Deps) *Router {
	return &Router{cfg: cfg, sessions: sessions, deps: deps}
}

// Setup registers every route and returns the root handler.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to every route in order.
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(metricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   router.cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authed := router.sessions.Middleware(unauthorized)
	baseReqs := router.cfg.Server.RateLimitReqs
	if baseReqs <= 0 {
		baseReqs = 120
	}
	baseWindow := router.cfg.Server.RateLimitWindow

	r.Route("/health", func(r chi.Router) {
		r.Use(rateLimiter("health", 1000, time.Minute))
		r.Get("/", router.health)
		r.Get("/live", router.healthLive)
		r.Get("/ready", router.healthReady)
	})

	r.Route("/auth", func(r chi.Router) {
		r.Use(rateLimiter("auth", baseReqs/2+1, baseWindow))
		r.Use(authed)
		r.Post("/sync/youtube", router.authSyncYouTube)
		r.Get("/me", router.authMe)
		r.Post("/logout", router.authLogout)
	})

	r.Route("/billing", func(r chi.Router) {
		r.Use(rateLimiter("billing", baseReqs, baseWindow))
		r.Use(authed)
		r.Get("/credits", router.billingCredits)
		r.Post("/checkout", router.billingCheckout)
		r.Post("/topup", router.billingTopup)
	})

	r.Route("/research", func(r chi.Router) {
		r.Use(rateLimiter("research", baseReqs, baseWindow))

		// Export downloads authenticate with the signed token in the query
		// string, not a session.
		r.Get("/export/{id}/download", router.researchExportDownload)

		r.Group(func(r chi.Router) {
			r.Use(authed)
			r.Post("/import_url", router.researchImportURL)
			r.Post("/capture", router.researchCapture)
			r.Post("/import_csv", router.researchImportCSV)
			r.Post("/search", router.researchSearch)
			r.Get("/collections", router.researchCollections)
			r.Get("/items/{id}", router.researchGetItem)
			r.Post("/export", router.researchExport)
		})
	})

	r.Route("/optimizer", func(r chi.Router) {
		r.Use(rateLimiter("optimizer", baseReqs/2+1, baseWindow))
		r.Use(authed)
		r.Post("/variant_generate", router.optimizerVariantGenerate)
		r.Post("/rescore", router.optimizerRescore)
		r.Post("/draft_snapshot", router.optimizerCreateDraftSnapshot)
		r.Get("/draft_snapshot", router.optimizerListDraftSnapshots)
		r.Get("/draft_snapshot/{id}", router.optimizerGetDraftSnapshot)
		r.Get("/variants/{id}", router.optimizerGetVariantBatch)
	})

	r.Route("/outcomes", func(r chi.Router) {
		r.Use(rateLimiter("outcomes", baseReqs, baseWindow))
		r.Use(authed)
		r.Post("/ingest", router.outcomesIngest)
		r.Get("/summary", router.outcomesSummary)
		r.Post("/recalibrate", router.outcomesRecalibrate)
	})

	r.Route("/audit", func(r chi.Router) {
		r.Use(rateLimiter("audit", baseReqs/2+1, baseWindow))
		r.Use(authed)
		r.Post("/upload", router.auditUpload)
		r.Post("/run_multimodal", router.auditRunMultimodal)
		r.Get("/", router.auditList)
		r.Get("/{id}", router.auditGet)
	})

	r.Route("/media", func(r chi.Router) {
		r.Use(rateLimiter("media", baseReqs, baseWindow))
		r.Use(authed)
		r.Post("/download", router.mediaDownload)
		r.Get("/download/{id}", router.mediaDownloadStatus)
	})

	r.Route("/report", func(r chi.Router) {
		r.Use(rateLimiter("report", baseReqs, baseWindow))

		// Shared reports are public; the share token is the credential.
		r.Get("/shared/{token}", router.reportShared)

		r.Group(func(r chi.Router) {
			r.Use(authed)
			r.Get("/latest", router.reportLatest)
			r.Get("/{audit_id}", router.reportByAudit)
			r.Post("/{audit_id}/share", router.reportCreateShare)
		})
	})

	r.Route("/feed", func(r chi.Router) {
		r.Use(rateLimiter("feed", baseReqs, baseWindow))

		r.Get("/export/{id}/download", router.researchExportDownload)

		r.Group(func(r chi.Router) {
			r.Use(authed)
			r.Post("/discover", router.feedDiscover)
			r.Post("/search", router.feedSearch)
			r.Post("/favorites/toggle", router.feedToggleFavorite)
			r.Post("/collections/assign", router.feedAssignCollection)
			r.Post("/export", router.researchExport)
			r.Post("/download/bulk", router.feedBulkDownload)
			r.Post("/download/status", router.feedDownloadStatus)
			r.Post("/transcripts/bulk", router.feedBulkTranscripts)
			r.Post("/transcripts/status", router.feedTranscriptStatus)

			r.Post("/follows/upsert", router.feedUpsertFollow)
			r.Get("/follows", router.feedListFollows)
			r.Delete("/follows/{id}", router.feedDeleteFollow)
			r.Post("/follows/ingest", router.feedRunFollows)
			r.Get("/follows/runs", router.feedListIngestRuns)

			r.Post("/repost/package", router.feedBuildRepostPackage)
			r.Get("/repost/packages", router.feedListRepostPackages)
			r.Get("/repost/packages/{id}", router.feedGetRepostPackage)
			r.Post("/repost/packages/{id}/status", router.feedUpdateRepostStatus)

			r.Post("/loop/variant_generate", router.feedLoopVariantGenerate)
			r.Post("/loop/audit", router.feedLoopAudit)
			r.Get("/loop/summary", router.feedLoopSummary)

			r.Get("/telemetry/summary", router.feedTelemetrySummary)
			r.Get("/telemetry/events", router.feedTelemetryEvents)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

// session pulls the validated session and enforces the user_id scope
// guard for a client-claimed user id.
func (router *Router) session(r *http.Request, claimedUserID string) (*auth.Session, error) {
	s, err := auth.SessionFromContext(r.Context())
	if err != nil {
		return nil, err
	}
	if err := auth.CheckScope(s, claimedUserID); err != nil {
		return nil, err
	}
	return s, nil
}

// requireFeature gates an endpoint on a feature flag.
func requireFeature(enabled bool, name string) error {
	if !enabled {
		return apperr.Newf(apperr.KindFeatureDisabled, "%s is disabled on this deployment", name)
	}
	return nil
}
