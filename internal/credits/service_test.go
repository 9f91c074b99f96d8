// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package credits

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clipsight/clipsight/internal/apperr"
	"github.com/clipsight/clipsight/internal/config"
	"github.com/clipsight/clipsight/internal/models"
)

// mockLedgerStore is an in-memory append-only ledger.
type mockLedgerStore struct {
	mu      sync.Mutex
	entries []models.CreditLedgerEntry
}

func (m *mockLedgerStore) AppendLedgerEntry(_ context.Context, entry *models.CreditLedgerEntry) (*models.CreditLedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	balance := 0
	for _, e := range m.entries {
		if e.UserID == entry.UserID {
			balance += e.DeltaCredits
		}
	}
	entry.ID = uuid.New().String()
	entry.BalanceAfter = balance + entry.DeltaCredits
	entry.CreatedAt = time.Now().UTC()
	m.entries = append(m.entries, *entry)
	return entry, nil
}

func (m *mockLedgerStore) LedgerBalance(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	balance := 0
	for _, e := range m.entries {
		if e.UserID == userID {
			balance += e.DeltaCredits
		}
	}
	return balance, nil
}

func (m *mockLedgerStore) HasGrantForPeriod(_ context.Context, userID, periodKey string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.entries {
		if e.UserID == userID && e.EntryType == models.LedgerMonthlyGrant && e.PeriodKey == periodKey {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockLedgerStore) HasLedgerReference(_ context.Context, userID, billingReference string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.entries {
		if e.UserID == userID && e.BillingReference == billingReference {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockLedgerStore) RecentLedgerEntries(_ context.Context, userID string, limit int) ([]models.CreditLedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.CreditLedgerEntry
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if m.entries[i].UserID == userID {
			out = append(out, m.entries[i])
		}
	}
	return out, nil
}

func (m *mockLedgerStore) entriesFor(userID string) []models.CreditLedgerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.CreditLedgerEntry
	for _, e := range m.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out
}

func newTestService(freeMonthly int) (*Service, *mockLedgerStore) {
	store := &mockLedgerStore{}
	cfg := &config.CreditsConfig{
		FreeMonthly:           freeMonthly,
		CostResearchSearch:    1,
		CostOptimizerVariants: 2,
		CostAuditRun:          5,
	}
	return NewService(store, cfg), store
}

func TestMonthlyGrantAppliedOncePerPeriod(t *testing.T) {
	svc, store := newTestService(50)
	ctx := context.Background()

	balance, err := svc.EnsureMonthlyGrant(ctx, "user-1")
	if err != nil {
		t.Fatalf("EnsureMonthlyGrant failed: %v", err)
	}
	if balance != 50 {
		t.Errorf("expected balance 50 after first grant, got %d", balance)
	}

	balance, err = svc.EnsureMonthlyGrant(ctx, "user-1")
	if err != nil {
		t.Fatalf("second EnsureMonthlyGrant failed: %v", err)
	}
	if balance != 50 {
		t.Errorf("expected balance 50 after repeated grant, got %d", balance)
	}

	entries := store.entriesFor("user-1")
	if len(entries) != 1 {
		t.Errorf("expected exactly 1 ledger entry, got %d", len(entries))
	}
}

func TestConsumeDebitsAndRejectsInsufficient(t *testing.T) {
	svc, _ := newTestService(1)
	ctx := context.Background()

	result, err := svc.ConsumeOp(ctx, "user-1", models.CreditOpResearchSearch, "search", "ref-1")
	if err != nil {
		t.Fatalf("first consume failed: %v", err)
	}
	if result.Charged != 1 || result.BalanceAfter != 0 {
		t.Errorf("expected charged=1 balance=0, got charged=%d balance=%d", result.Charged, result.BalanceAfter)
	}

	_, err = svc.ConsumeOp(ctx, "user-1", models.CreditOpResearchSearch, "search", "ref-2")
	if !apperr.IsKind(err, apperr.KindInsufficientCredits) {
		t.Errorf("expected InsufficientCredits, got %v", err)
	}
}

func TestConsumeZeroCostIsNoOp(t *testing.T) {
	svc, store := newTestService(10)
	ctx := context.Background()

	result, err := svc.Consume(ctx, "user-1", 0, "free op", "", "")
	if err != nil {
		t.Fatalf("zero-cost consume failed: %v", err)
	}
	if result.Charged != 0 {
		t.Errorf("expected charged=0, got %d", result.Charged)
	}
	if len(store.entriesFor("user-1")) != 0 {
		t.Error("zero-cost consume must not write ledger entries")
	}
}

func TestConcurrentConsumeNeverNegative(t *testing.T) {
	svc, store := newTestService(10)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Consume(ctx, "user-1", 1, "contended op", "", "")
		}()
	}
	wg.Wait()

	balance, err := svc.store.LedgerBalance(ctx, "user-1")
	if err != nil {
		t.Fatalf("balance read failed: %v", err)
	}
	if balance < 0 {
		t.Errorf("balance went negative: %d", balance)
	}

	// balance_after must equal the running sum at every entry.
	running := 0
	for _, e := range store.entriesFor("user-1") {
		running += e.DeltaCredits
		if e.BalanceAfter != running {
			t.Errorf("entry %s balance_after=%d, running sum=%d", e.ID, e.BalanceAfter, running)
		}
		if e.BalanceAfter < 0 {
			t.Errorf("entry %s has negative balance_after %d", e.ID, e.BalanceAfter)
		}
	}
}

func TestRefundIsDeduplicated(t *testing.T) {
	svc, store := newTestService(10)
	ctx := context.Background()

	if _, err := svc.ConsumeOp(ctx, "user-1", models.CreditOpAuditRun, "audit", "audit-1"); err != nil {
		t.Fatalf("consume failed: %v", err)
	}

	if err := svc.Refund(ctx, "user-1", 5, models.CreditOpAuditRun, "audit-1"); err != nil {
		t.Fatalf("refund failed: %v", err)
	}
	if err := svc.Refund(ctx, "user-1", 5, models.CreditOpAuditRun, "audit-1"); err != nil {
		t.Fatalf("duplicate refund errored: %v", err)
	}

	balance, _ := svc.store.LedgerBalance(ctx, "user-1")
	if balance != 10 {
		t.Errorf("expected balance 10 after single refund, got %d", balance)
	}

	refunds := 0
	for _, e := range store.entriesFor("user-1") {
		if e.BillingProvider == models.BillingProviderSystemRefund {
			refunds++
			if e.BillingReference != "audit_run_refund:audit-1" {
				t.Errorf("unexpected billing reference %q", e.BillingReference)
			}
		}
	}
	if refunds != 1 {
		t.Errorf("expected exactly 1 refund entry, got %d", refunds)
	}
}

func TestSummaryIncludesCostsAndEntries(t *testing.T) {
	svc, _ := newTestService(50)
	ctx := context.Background()

	if _, err := svc.ConsumeOp(ctx, "user-1", models.CreditOpOptimizerVariants, "variants", "batch-1"); err != nil {
		t.Fatalf("consume failed: %v", err)
	}

	summary, err := svc.Summary(ctx, "user-1")
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if summary.Balance != 48 {
		t.Errorf("expected balance 48, got %d", summary.Balance)
	}
	if summary.Costs[models.CreditOpAuditRun] != 5 {
		t.Errorf("expected audit_run cost 5, got %d", summary.Costs[models.CreditOpAuditRun])
	}
	if len(summary.RecentEntries) != 2 {
		t.Errorf("expected 2 recent entries, got %d", len(summary.RecentEntries))
	}
}
