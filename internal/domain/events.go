package domain

import "time"

// Event types
const (
	EventTypeEntryPosted       = "entry.posted"
	EventTypeEntryVoided       = "entry.voided"
	EventTypeMatchAutoAccepted = "match.auto_accepted"
	EventTypeMatchAccepted     = "match.accepted"
	EventTypeMatchRejected     = "match.rejected"
	EventTypeCheckOpened       = "check.opened"
)

// Aggregate types
const (
	AggregateTypeEntry = "journal_entry"
	AggregateTypeMatch = "reconciliation_match"
	AggregateTypeCheck = "consistency_check"
)

// OutboxEvent represents an event to be published
type OutboxEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}

// EntryPostedEvent payload
type EntryPostedEvent struct {
	EntryID    string `json:"entry_id"`
	SourceType string `json:"source_type"`
	EntryDate  string `json:"entry_date"`
	LineCount  int    `json:"line_count"`
}

// EntryVoidedEvent payload
type EntryVoidedEvent struct {
	EntryID         string `json:"entry_id"`
	ReversalEntryID string `json:"reversal_entry_id,omitempty"`
	Reason          string `json:"reason"`
}

// MatchRoutedEvent payload, shared by the auto-accepted, accepted and
// rejected match events.
type MatchRoutedEvent struct {
	MatchID   string   `json:"match_id"`
	BankTxnID string   `json:"bank_txn_id"`
	EntryIDs  []string `json:"entry_ids"`
	Score     int      `json:"score"`
	Status    string   `json:"status"`
	Reason    string   `json:"reason,omitempty"`
}

// CheckOpenedEvent payload
type CheckOpenedEvent struct {
	CheckID   string `json:"check_id"`
	CheckType string `json:"check_type"`
	Severity  string `json:"severity"`
	Detail    string `json:"detail"`
}
