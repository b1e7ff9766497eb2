// Package backend tracks the pool of upstream LLM backends the dispatcher
// calls: their static configuration, live health status, and connection
// accounting, plus the selection policies used to pick one per request.
package backend

import (
	"sync"
	"time"

	"github.com/Lingualink-VRChat/Lingualink-Server/internal/config"
)

// Status is a backend's current health state, as tracked by the prober.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDisabled  Status = "disabled"
)

// Strategy names one of the selection policies a Selector can run.
type Strategy string

const (
	RoundRobin         Strategy = "round_robin"
	WeightedRoundRobin Strategy = "weighted_round_robin"
	LeastConnections   Strategy = "least_connections"
	Random             Strategy = "random"
	ConsistentHash     Strategy = "consistent_hash"
	ResponseTime       Strategy = "response_time"
)

// responseTimeWindow bounds the response-time ring buffer to the most
// recent samples, so the rolling mean tracks recent behavior instead of
// being swamped by a backend's entire lifetime of traffic.
const responseTimeWindow = 50

// Metrics is the live, mutable state of one backend. It is guarded by its own
// mutex rather than the registry's, so updating one backend's counters never
// blocks a selection pass or a structural change to another backend.
type Metrics struct {
	mu sync.Mutex

	Status              Status
	TotalRequests       int64
	SuccessfulRequests  int64
	FailedRequests      int64
	responseTimes       [responseTimeWindow]time.Duration
	responseTimeCount   int
	responseTimeNext    int
	CurrentConnections  int
	ConsecutiveFailures int
	LastHealthCheck     time.Time
}

func newMetrics() *Metrics {
	return &Metrics{Status: StatusHealthy}
}

// Snapshot is a point-in-time, lock-free copy of a backend's config and
// metrics, safe to hand to callers (the operator API, logging) outside the
// registry's locking.
type Snapshot struct {
	Config               config.BackendConfig
	Status               Status
	TotalRequests        int64
	SuccessfulRequests   int64
	FailedRequests       int64
	AverageResponseTime  time.Duration
	CurrentConnections   int
	ConsecutiveFailures  int
	LastHealthCheck      time.Time
}

func (m *Metrics) snapshot(cfg config.BackendConfig) Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	avg := m.averageResponseTimeLocked()
	return Snapshot{
		Config:              cfg,
		Status:              m.Status,
		TotalRequests:       m.TotalRequests,
		SuccessfulRequests:  m.SuccessfulRequests,
		FailedRequests:      m.FailedRequests,
		AverageResponseTime: avg,
		CurrentConnections:  m.CurrentConnections,
		ConsecutiveFailures: m.ConsecutiveFailures,
		LastHealthCheck:     m.LastHealthCheck,
	}
}

func (m *Metrics) recordResult(success bool, responseTime time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TotalRequests++
	if success {
		m.SuccessfulRequests++
		m.pushResponseTimeLocked(responseTime)
	} else {
		m.FailedRequests++
	}
}

// recordProbeLatency feeds a health probe's round-trip time into the same
// ring buffer the response-time selector reads, without touching the
// request/success/failure counters — a probe is not a dispatched request.
func (m *Metrics) recordProbeLatency(d time.Duration) {
	m.mu.Lock()
	m.pushResponseTimeLocked(d)
	m.mu.Unlock()
}

func (m *Metrics) pushResponseTimeLocked(d time.Duration) {
	m.responseTimes[m.responseTimeNext] = d
	m.responseTimeNext = (m.responseTimeNext + 1) % responseTimeWindow
	if m.responseTimeCount < responseTimeWindow {
		m.responseTimeCount++
	}
}

func (m *Metrics) averageResponseTimeLocked() time.Duration {
	if m.responseTimeCount == 0 {
		return 0
	}
	var total time.Duration
	for i := 0; i < m.responseTimeCount; i++ {
		total += m.responseTimes[i]
	}
	return total / time.Duration(m.responseTimeCount)
}

// acquireConnection increments the connection count unless it would exceed
// maxConnections (a non-positive maxConnections means unlimited), returning
// whether the slot was granted.
func (m *Metrics) acquireConnection(maxConnections int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if maxConnections > 0 && m.CurrentConnections >= maxConnections {
		return false
	}
	m.CurrentConnections++
	return true
}

func (m *Metrics) releaseConnection() {
	m.mu.Lock()
	if m.CurrentConnections > 0 {
		m.CurrentConnections--
	}
	m.mu.Unlock()
}

func (m *Metrics) connections() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CurrentConnections
}

func (m *Metrics) averageResponseTime() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.averageResponseTimeLocked()
}

func (m *Metrics) status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Status
}

func (m *Metrics) setStatus(s Status) {
	m.mu.Lock()
	m.Status = s
	m.mu.Unlock()
}

// recordHealthCheck folds one probe result into the consecutive-failure
// counter and flips status once failureThreshold consecutive probes fail,
// or immediately back to healthy on the first success.
func (m *Metrics) recordHealthCheck(healthy bool, failureThreshold int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastHealthCheck = time.Now()
	if m.Status == StatusDisabled {
		return
	}
	if healthy {
		m.ConsecutiveFailures = 0
		m.Status = StatusHealthy
		return
	}
	m.ConsecutiveFailures++
	if m.ConsecutiveFailures >= failureThreshold {
		m.Status = StatusUnhealthy
	}
}
