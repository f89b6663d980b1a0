package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewRegistersMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()

	// Replace global default registry to allow test inspection.
	prometheus.DefaultRegisterer = registry
	prometheus.DefaultGatherer = registry

	m := New()

	if m.EntriesCreated == nil || m.HTTPRequests == nil || m.DBQueries == nil {
		t.Fatalf("expected key metrics to be initialized: %+v", m)
	}

	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	if len(metricFamilies) == 0 {
		t.Fatalf("expected registered metrics, got none")
	}
}

func TestRecordHelpersNilReceiver(t *testing.T) {
	var m *Metrics

	// Must not panic.
	m.RecordEntryPosted(time.Millisecond)
	m.RecordEntryVoided()
	m.RecordMatcherRun("completed", time.Second)
	m.RecordMatchOutcome("auto_accepted")
	m.RecordMatchScore(92)
	m.RecordSuperseded()
	m.RecordReviewDecision("accept")
	m.RecordReviewBlocked()
	m.RecordCheckOpened("duplicate_match", "high")
	m.RecordCheckResolved("dismissed")
	m.RecordOutboxPublished()
	m.RecordOutboxError()
}
