package domain

import (
	"sort"
	"strings"
	"time"
)

// CheckType identifies a consistency detection.
type CheckType string

const (
	// CheckTypeDuplicateMatch fires when a bank transaction or journal entry
	// is claimed by more than one settled match.
	CheckTypeDuplicateMatch CheckType = "duplicate_match"
	// CheckTypeUnpairedTransfer fires when a clearing-account leg has no
	// opposite leg of equal amount within the pairing window.
	CheckTypeUnpairedTransfer CheckType = "unpaired_transfer"
	// CheckTypeStaleReview fires when a pending_review match has been open
	// longer than the stale-review age.
	CheckTypeStaleReview CheckType = "stale_review"
)

// Valid reports whether t is a known check type.
func (t CheckType) Valid() bool {
	switch t {
	case CheckTypeDuplicateMatch, CheckTypeUnpairedTransfer, CheckTypeStaleReview:
		return true
	}
	return false
}

// Severity grades a consistency check.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	_, ok := severityRank[s]
	return ok
}

// AtLeast reports whether s is as severe as other.
func (s Severity) AtLeast(other Severity) bool {
	return severityRank[s] >= severityRank[other]
}

// CheckStatus is the lifecycle state of a consistency check.
type CheckStatus string

const (
	CheckStatusOpen     CheckStatus = "open"
	CheckStatusResolved CheckStatus = "resolved"
)

// ResolutionAction records how an operator closed a check.
type ResolutionAction string

const (
	// ResolutionDismissed means the finding was a false positive.
	ResolutionDismissed ResolutionAction = "dismissed"
	// ResolutionCorrected means the underlying data was fixed.
	ResolutionCorrected ResolutionAction = "corrected"
	// ResolutionConfirmed means the finding was real and is acknowledged.
	ResolutionConfirmed ResolutionAction = "confirmed"
)

// Valid reports whether a is a known resolution action.
func (a ResolutionAction) Valid() bool {
	switch a {
	case ResolutionDismissed, ResolutionCorrected, ResolutionConfirmed:
		return true
	}
	return false
}

// ConsistencyCheck is one finding raised by the consistency checker.
// Detection is idempotent: while a check with the same fingerprint is open,
// re-detection does not create another.
type ConsistencyCheck struct {
	ID               string
	CheckType        CheckType
	Severity         Severity
	Status           CheckStatus
	Fingerprint      string
	BankTxnIDs       []string
	MatchIDs         []string
	AccountID        *string
	Detail           string
	ResolutionAction ResolutionAction
	ResolutionNote   string
	CreatedAt        time.Time
	ResolvedAt       *time.Time
}

// CheckFingerprint builds the idempotence key for a detection: the check
// type plus the sorted identifiers it implicates.
func CheckFingerprint(t CheckType, ids ...string) string {
	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Strings(sorted)
	return string(t) + ":" + strings.Join(sorted, ",")
}
