// Package resilience tracks the health of the panel's link to the trading
// engine. Failures never stop the panel; the tracker only classifies them so
// the operator can tell a flaky link from a dead one.
package resilience

import (
	"sync"
	"time"
)

// HealthStatus classifies the engine link.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "HEALTHY"
	HealthStatusDegraded  HealthStatus = "DEGRADED"
	HealthStatusUnhealthy HealthStatus = "UNHEALTHY"
	HealthStatusUnknown   HealthStatus = "UNKNOWN"
)

// Consecutive-failure thresholds for the overall status.
const (
	degradedThreshold  = 1
	unhealthyThreshold = 3
)

// EndpointStats holds per-endpoint counters.
type EndpointStats struct {
	Calls       int64
	Failures    int64
	LastLatency time.Duration
	LastError   string
	LastCall    time.Time
}

// Snapshot is a point-in-time view of link health.
type Snapshot struct {
	Status              HealthStatus
	ConsecutiveFailures int
	LastSuccess         time.Time
	LastError           string
	Endpoints           map[string]EndpointStats
}

// LinkHealth records the outcome of every engine call.
type LinkHealth struct {
	mu                  sync.RWMutex
	endpoints           map[string]*EndpointStats
	consecutiveFailures int
	everSucceeded       bool
	lastSuccess         time.Time
	lastError           string
}

// NewLinkHealth creates an empty tracker.
func NewLinkHealth() *LinkHealth {
	return &LinkHealth{endpoints: make(map[string]*EndpointStats)}
}

// Record notes the outcome of one engine call.
func (h *LinkHealth) Record(endpoint string, latency time.Duration, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	st, ok := h.endpoints[endpoint]
	if !ok {
		st = &EndpointStats{}
		h.endpoints[endpoint] = st
	}

	st.Calls++
	st.LastLatency = latency
	st.LastCall = time.Now()

	if err != nil {
		st.Failures++
		st.LastError = err.Error()
		h.consecutiveFailures++
		h.lastError = err.Error()
		return
	}

	st.LastError = ""
	h.consecutiveFailures = 0
	h.everSucceeded = true
	h.lastSuccess = time.Now()
}

// Status returns the overall link classification.
func (h *LinkHealth) Status() HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.statusLocked()
}

func (h *LinkHealth) statusLocked() HealthStatus {
	switch {
	case !h.everSucceeded && h.consecutiveFailures == 0:
		return HealthStatusUnknown
	case h.consecutiveFailures >= unhealthyThreshold:
		return HealthStatusUnhealthy
	case h.consecutiveFailures >= degradedThreshold:
		return HealthStatusDegraded
	default:
		return HealthStatusHealthy
	}
}

// Snapshot returns a copy of the current state.
func (h *LinkHealth) Snapshot() Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()

	eps := make(map[string]EndpointStats, len(h.endpoints))
	for name, st := range h.endpoints {
		eps[name] = *st
	}

	return Snapshot{
		Status:              h.statusLocked(),
		ConsecutiveFailures: h.consecutiveFailures,
		LastSuccess:         h.lastSuccess,
		LastError:           h.lastError,
		Endpoints:           eps,
	}
}
