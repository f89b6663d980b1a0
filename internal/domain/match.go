package domain

import (
	"sort"
	"strings"
	"time"
)

// MatchStatus is the lifecycle state of a reconciliation match.
type MatchStatus string

const (
	// MatchStatusPendingReview awaits a human decision.
	MatchStatusPendingReview MatchStatus = "pending_review"
	// MatchStatusAutoAccepted was accepted by the router without review.
	MatchStatusAutoAccepted MatchStatus = "auto_accepted"
	// MatchStatusAccepted was confirmed by a reviewer.
	MatchStatusAccepted MatchStatus = "accepted"
	// MatchStatusRejected was refused by a reviewer. A rejected pairing is
	// never recreated for the same transaction and entry set.
	MatchStatusRejected MatchStatus = "rejected"
	// MatchStatusSuperseded was replaced by a strictly better candidate on a
	// later matcher run.
	MatchStatusSuperseded MatchStatus = "superseded"
)

// Terminal reports whether no further transitions are allowed from s.
func (s MatchStatus) Terminal() bool {
	switch s {
	case MatchStatusAutoAccepted, MatchStatusAccepted, MatchStatusRejected, MatchStatusSuperseded:
		return true
	}
	return false
}

// Settled reports whether the match counts as a confirmed pairing.
func (s MatchStatus) Settled() bool {
	return s == MatchStatusAutoAccepted || s == MatchStatusAccepted
}

// ScoreBreakdown keeps the unrounded per-dimension scores behind a
// composite. Anomaly marks a history-pattern deviation; it is a signal for
// the consistency layer, never a blocker by itself.
type ScoreBreakdown struct {
	Amount      float64 `json:"amount"`
	Date        float64 `json:"date"`
	Description float64 `json:"description"`
	BusinessFit float64 `json:"business_fit"`
	History     float64 `json:"history"`
	Anomaly     bool    `json:"anomaly,omitempty"`
}

// ReconciliationMatch links a bank transaction to one or more journal
// entries with a confidence score. Matches are append-only: a superseding
// candidate creates a new record and links back, it never rewrites the old
// one.
type ReconciliationMatch struct {
	ID           string
	BankTxnID    string
	EntryIDs     []string
	Score        int
	Breakdown    ScoreBreakdown
	Status       MatchStatus
	Version      int64
	RunID        string
	SupersededBy *string
	Reason       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ResolvedAt   *time.Time
}

// EntrySetKey returns a canonical key for the set of matched entries,
// independent of order. Two matches pair the same ledger rows exactly when
// their keys are equal.
func (m *ReconciliationMatch) EntrySetKey() string {
	return EntrySetKey(m.EntryIDs)
}

// EntrySetKey canonicalizes a set of entry IDs.
func EntrySetKey(entryIDs []string) string {
	ids := make([]string, len(entryIDs))
	copy(ids, entryIDs)
	sort.Strings(ids)
	return strings.Join(ids, ",")
}
