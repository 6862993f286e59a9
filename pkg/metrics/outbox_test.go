package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestOutboxMetricsCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)
	m.IncPublished("stock_movement_recorded")
	m.IncPublished("stock_movement_recorded")
	m.IncFailed("low_stock_reached")
	m.IncDeadLettered("max_attempts")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "outbox_published_total", "event_type", "stock_movement_recorded"); err != nil || got != 2 {
		t.Fatalf("expected published=2, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "outbox_publish_failures_total", "event_type", "low_stock_reached"); err != nil || got != 1 {
		t.Fatalf("expected failures=1, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "outbox_dead_lettered_total", "reason", "max_attempts"); err != nil || got != 1 {
		t.Fatalf("expected dead_lettered=1, got %f (%v)", got, err)
	}
}

func TestOutboxMetricsNilSafe(t *testing.T) {
	var m *OutboxMetrics
	m.IncPublished("x")
	NewOutboxMetrics(nil).IncDeadLettered("y")
}
