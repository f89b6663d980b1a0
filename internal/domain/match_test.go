package domain

import "testing"

func TestEntrySetKey_OrderIndependent(t *testing.T) {
	a := &ReconciliationMatch{EntryIDs: []string{"e2", "e1", "e3"}}
	b := &ReconciliationMatch{EntryIDs: []string{"e3", "e1", "e2"}}

	if a.EntrySetKey() != b.EntrySetKey() {
		t.Errorf("expected identical keys, got %q and %q", a.EntrySetKey(), b.EntrySetKey())
	}

	c := &ReconciliationMatch{EntryIDs: []string{"e1", "e4"}}
	if a.EntrySetKey() == c.EntrySetKey() {
		t.Error("different entry sets must not collide")
	}
}

func TestMatchStatus_Terminal(t *testing.T) {
	tests := []struct {
		status MatchStatus
		want   bool
	}{
		{MatchStatusPendingReview, false},
		{MatchStatusAutoAccepted, true},
		{MatchStatusAccepted, true},
		{MatchStatusRejected, true},
		{MatchStatusSuperseded, true},
	}

	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.want {
			t.Errorf("%s: expected terminal=%v, got %v", tt.status, tt.want, got)
		}
	}
}

func TestMatchStatus_Settled(t *testing.T) {
	if !MatchStatusAutoAccepted.Settled() || !MatchStatusAccepted.Settled() {
		t.Error("auto_accepted and accepted are settled")
	}
	if MatchStatusPendingReview.Settled() || MatchStatusRejected.Settled() || MatchStatusSuperseded.Settled() {
		t.Error("pending, rejected and superseded are not settled")
	}
}
