package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestHealthStartsUnknown(t *testing.T) {
	h := NewLinkHealth()
	if got := h.Status(); got != HealthStatusUnknown {
		t.Fatalf("fresh tracker status = %s, want UNKNOWN", got)
	}
}

func TestHealthTransitions(t *testing.T) {
	h := NewLinkHealth()
	failure := errors.New("connection refused")

	h.Record("/control/status", 10*time.Millisecond, nil)
	if got := h.Status(); got != HealthStatusHealthy {
		t.Fatalf("after success: %s, want HEALTHY", got)
	}

	h.Record("/control/status", 5*time.Second, failure)
	if got := h.Status(); got != HealthStatusDegraded {
		t.Fatalf("after 1 failure: %s, want DEGRADED", got)
	}

	h.Record("/control/status", 5*time.Second, failure)
	h.Record("/control/pnl", 5*time.Second, failure)
	if got := h.Status(); got != HealthStatusUnhealthy {
		t.Fatalf("after 3 consecutive failures: %s, want UNHEALTHY", got)
	}

	// One success resets the streak.
	h.Record("/control/status", 12*time.Millisecond, nil)
	if got := h.Status(); got != HealthStatusHealthy {
		t.Fatalf("after recovery: %s, want HEALTHY", got)
	}
}

func TestHealthPerEndpointStats(t *testing.T) {
	h := NewLinkHealth()
	h.Record("/control/status", 10*time.Millisecond, nil)
	h.Record("/control/status", 15*time.Millisecond, errors.New("timeout"))
	h.Record("/config", 20*time.Millisecond, nil)

	snap := h.Snapshot()
	status := snap.Endpoints["/control/status"]
	if status.Calls != 2 || status.Failures != 1 {
		t.Fatalf("status endpoint stats: %+v", status)
	}
	cfg := snap.Endpoints["/config"]
	if cfg.Calls != 1 || cfg.Failures != 0 {
		t.Fatalf("config endpoint stats: %+v", cfg)
	}
	if snap.LastError != "timeout" {
		t.Fatalf("last error = %q", snap.LastError)
	}
}

func TestHealthSnapshotIsCopy(t *testing.T) {
	h := NewLinkHealth()
	h.Record("/control/status", time.Millisecond, nil)

	snap := h.Snapshot()
	stats := snap.Endpoints["/control/status"]
	stats.Calls = 999
	snap.Endpoints["/control/status"] = stats

	if h.Snapshot().Endpoints["/control/status"].Calls != 1 {
		t.Fatal("snapshot aliases internal state")
	}
}
