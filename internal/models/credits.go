// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

package models

import "time"

// LedgerEntryType is the kind of one credit ledger entry.
type LedgerEntryType string

const (
	LedgerMonthlyGrant LedgerEntryType = "monthly_grant"
	LedgerDebit        LedgerEntryType = "debit"
	LedgerPurchase     LedgerEntryType = "purchase"
)

// Credit-guarded operation names. Costs for each come from configuration.
const (
	CreditOpResearchSearch    = "research_search"
	CreditOpOptimizerVariants = "optimizer_variants"
	CreditOpAuditRun          = "audit_run"
)

// BillingProviderSystemRefund marks refund entries appended after a failed
// enqueue of a charged operation.
const BillingProviderSystemRefund = "system_refund"

// CreditLedgerEntry is one append-only accounting row. BalanceAfter equals
// the sum of DeltaCredits up to and including this entry for the user and is
// never recomputed retroactively.
type CreditLedgerEntry struct {
	ID               string          `json:"id"`
	UserID           string          `json:"user_id"`
	EntryType        LedgerEntryType `json:"entry_type"`
	DeltaCredits     int             `json:"delta_credits"` // signed
	BalanceAfter     int             `json:"balance_after"`
	Reason           string          `json:"reason"`
	ReferenceType    string          `json:"reference_type,omitempty"`
	ReferenceID      string          `json:"reference_id,omitempty"`
	BillingProvider  string          `json:"billing_provider,omitempty"`
	BillingReference string          `json:"billing_reference,omitempty"`
	PeriodKey        string          `json:"period_key,omitempty"` // YYYY-MM for grants
	CreatedAt        time.Time       `json:"created_at"`
}

// ConsumeResult is the outcome of a successful debit.
type ConsumeResult struct {
	Charged      int `json:"charged"`
	BalanceAfter int `json:"balance_after"`
}

// CreditSummary is the balance view returned by the billing endpoints.
type CreditSummary struct {
	Balance       int                 `json:"balance"`
	PeriodKey     string              `json:"period_key"`
	Costs         map[string]int      `json:"costs"`
	RecentEntries []CreditLedgerEntry `json:"recent_entries"`
}
