// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

// Package credits implements the append-only credit ledger with monthly
// grants and atomic debit/refund semantics. Concurrent debits for the same
// user serialize on a sharded per-user lock so balance_after never goes
// negative.
package credits

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/clipsight/clipsight/internal/apperr"
	"github.com/clipsight/clipsight/internal/config"
	"github.com/clipsight/clipsight/internal/logging"
	"github.com/clipsight/clipsight/internal/models"
)

// lockShards is the size of the per-user lock table. Power of two.
const lockShards = 64

// Store is the ledger persistence surface the service needs.
type Store interface {
	AppendLedgerEntry(ctx context.Context, entry *models.CreditLedgerEntry) (*models.CreditLedgerEntry, error)
	LedgerBalance(ctx context.Context, userID string) (int, error)
	HasGrantForPeriod(ctx context.Context, userID, periodKey string) (bool, error)
	HasLedgerReference(ctx context.Context, userID, billingReference string) (bool, error)
	RecentLedgerEntries(ctx context.Context, userID string, limit int) ([]models.CreditLedgerEntry, error)
}

// Service is the credit ledger service.
type Service struct {
	store Store
	cfg   *config.CreditsConfig
	locks [lockShards]sync.Mutex
	now   func() time.Time
}

// NewService builds the ledger service.
func NewService(store Store, cfg *config.CreditsConfig) *Service {
	return &Service{
		store: store,
		cfg:   cfg,
		now:   time.Now,
	}
}

// lockFor returns the shard lock serializing one user's ledger writes.
func (s *Service) lockFor(userID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return &s.locks[h.Sum32()%lockShards]
}

// periodKey formats the current UTC month as YYYY-MM.
func (s *Service) periodKey() string {
	return s.now().UTC().Format("2006-01")
}

// CostFor returns the configured cost of a credit-guarded operation.
func (s *Service) CostFor(op string) int {
	switch op {
	case models.CreditOpResearchSearch:
		return s.cfg.CostResearchSearch
	case models.CreditOpOptimizerVariants:
		return s.cfg.CostOptimizerVariants
	case models.CreditOpAuditRun:
		return s.cfg.CostAuditRun
	default:
		return 0
	}
}

// Balance returns the user's current balance after ensuring the monthly grant.
func (s *Service) Balance(ctx context.Context, userID string) (int, error) {
	mu := s.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()

	if _, err := s.ensureMonthlyGrantLocked(ctx, userID); err != nil {
		return 0, err
	}
	return s.store.LedgerBalance(ctx, userID)
}

// EnsureMonthlyGrant writes the current period's grant if absent and
// returns the resulting balance.
func (s *Service) EnsureMonthlyGrant(ctx context.Context, userID string) (int, error) {
	mu := s.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()

	return s.ensureMonthlyGrantLocked(ctx, userID)
}

func (s *Service) ensureMonthlyGrantLocked(ctx context.Context, userID string) (int, error) {
	period := s.periodKey()
	granted, err := s.store.HasGrantForPeriod(ctx, userID, period)
	if err != nil {
		return 0, err
	}
	if granted || s.cfg.FreeMonthly <= 0 {
		return s.store.LedgerBalance(ctx, userID)
	}

	entry, err := s.store.AppendLedgerEntry(ctx, &models.CreditLedgerEntry{
		UserID:       userID,
		EntryType:    models.LedgerMonthlyGrant,
		DeltaCredits: s.cfg.FreeMonthly,
		Reason:       "monthly free credits",
		PeriodKey:    period,
	})
	if err != nil {
		return 0, err
	}
	logging.Info().
		Str("user_id", userID).
		Str("period_key", period).
		Int("credits", s.cfg.FreeMonthly).
		Msg("Monthly credit grant applied")
	return entry.BalanceAfter, nil
}

// Consume debits cost credits for an operation. The grant check, balance
// read, comparison, and debit append run under the user's lock. Zero or
// negative costs are a no-op.
func (s *Service) Consume(ctx context.Context, userID string, cost int, reason, referenceType, referenceID string) (*models.ConsumeResult, error) {
	if cost <= 0 {
		balance, err := s.store.LedgerBalance(ctx, userID)
		if err != nil {
			return nil, err
		}
		return &models.ConsumeResult{Charged: 0, BalanceAfter: balance}, nil
	}

	mu := s.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()

	balance, err := s.ensureMonthlyGrantLocked(ctx, userID)
	if err != nil {
		return nil, err
	}
	if balance < cost {
		return nil, apperr.Newf(apperr.KindInsufficientCredits,
			"insufficient credits: need %d, have %d", cost, balance)
	}

	entry, err := s.store.AppendLedgerEntry(ctx, &models.CreditLedgerEntry{
		UserID:        userID,
		EntryType:     models.LedgerDebit,
		DeltaCredits:  -cost,
		Reason:        reason,
		ReferenceType: referenceType,
		ReferenceID:   referenceID,
	})
	if err != nil {
		return nil, err
	}
	return &models.ConsumeResult{Charged: cost, BalanceAfter: entry.BalanceAfter}, nil
}

// ConsumeOp debits the configured cost for a named operation.
func (s *Service) ConsumeOp(ctx context.Context, userID, op, referenceType, referenceID string) (*models.ConsumeResult, error) {
	return s.Consume(ctx, userID, s.CostFor(op), op, referenceType, referenceID)
}

// Refund credits back a failed charged operation as a purchase entry with
// provider system_refund. The refund is keyed by "<op>_refund:<ref_id>" and
// is skipped when that reference was already refunded, so retries cannot
// double-refund.
func (s *Service) Refund(ctx context.Context, userID string, credits int, op, refID string) error {
	if credits <= 0 {
		return nil
	}

	mu := s.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()

	billingReference := fmt.Sprintf("%s_refund:%s", op, refID)
	refunded, err := s.store.HasLedgerReference(ctx, userID, billingReference)
	if err != nil {
		return err
	}
	if refunded {
		logging.Warn().
			Str("user_id", userID).
			Str("billing_reference", billingReference).
			Msg("Skipping duplicate refund")
		return nil
	}

	_, err = s.store.AppendLedgerEntry(ctx, &models.CreditLedgerEntry{
		UserID:           userID,
		EntryType:        models.LedgerPurchase,
		DeltaCredits:     credits,
		Reason:           fmt.Sprintf("refund for failed %s", op),
		ReferenceType:    op,
		ReferenceID:      refID,
		BillingProvider:  models.BillingProviderSystemRefund,
		BillingReference: billingReference,
	})
	return err
}

// AddPurchase appends purchased credits and returns the new balance.
func (s *Service) AddPurchase(ctx context.Context, userID string, credits int, provider, billingRef string) (int, error) {
	if credits <= 0 {
		return 0, apperr.BadRequest("purchase credits must be positive")
	}

	mu := s.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()

	entry, err := s.store.AppendLedgerEntry(ctx, &models.CreditLedgerEntry{
		UserID:           userID,
		EntryType:        models.LedgerPurchase,
		DeltaCredits:     credits,
		Reason:           "credit purchase",
		BillingProvider:  provider,
		BillingReference: billingRef,
	})
	if err != nil {
		return 0, err
	}
	return entry.BalanceAfter, nil
}

// Summary returns the balance view with configured costs and recent entries.
func (s *Service) Summary(ctx context.Context, userID string) (*models.CreditSummary, error) {
	balance, err := s.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}
	entries, err := s.store.RecentLedgerEntries(ctx, userID, 20)
	if err != nil {
		return nil, err
	}
	return &models.CreditSummary{
		Balance:   balance,
		PeriodKey: s.periodKey(),
		Costs: map[string]int{
			models.CreditOpResearchSearch:    s.cfg.CostResearchSearch,
			models.CreditOpOptimizerVariants: s.cfg.CostOptimizerVariants,
			models.CreditOpAuditRun:          s.cfg.CostAuditRun,
		},
		RecentEntries: entries,
	}, nil
}
