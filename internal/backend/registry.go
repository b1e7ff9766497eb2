package backend

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Lingualink-VRChat/Lingualink-Server/internal/apierr"
	"github.com/Lingualink-VRChat/Lingualink-Server/internal/config"
)

// entry pairs a backend's static config with its live metrics. The registry
// only ever swaps whole entries in and out of its map under its own lock;
// field-level mutation goes through Metrics' own lock, so reading metrics for
// one backend never contends with adding or removing another.
type entry struct {
	cfg     config.BackendConfig
	metrics *Metrics
}

// Registry holds the set of known backends. Structural changes (add, remove)
// take the write lock; everything else — enable, disable, selection,
// accounting, snapshotting — takes the read lock and then works through each
// entry's own metrics lock.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]*entry
	ring    *hashRing
}

func NewRegistry(backends []config.BackendConfig) *Registry {
	r := &Registry{entries: make(map[string]*entry, len(backends))}
	for _, b := range backends {
		r.entries[b.Name] = &entry{cfg: b, metrics: newMetrics()}
		r.order = append(r.order, b.Name)
	}
	r.rebuildRing()
	return r
}

func (r *Registry) rebuildRing() {
	backends := make([]config.BackendConfig, 0, len(r.order))
	for _, name := range r.order {
		backends = append(backends, r.entries[name].cfg)
	}
	r.ring = newHashRing(backends)
}

func (r *Registry) Add(cfg config.BackendConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[cfg.Name]; exists {
		return apierr.New(apierr.Internal, fmt.Sprintf("backend %q already exists", cfg.Name))
	}
	r.entries[cfg.Name] = &entry{cfg: cfg, metrics: newMetrics()}
	r.order = append(r.order, cfg.Name)
	r.rebuildRing()
	return nil
}

func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[name]; !exists {
		return apierr.New(apierr.Internal, fmt.Sprintf("backend %q not found", name))
	}
	delete(r.entries, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.rebuildRing()
	return nil
}

func (r *Registry) Enable(name string) error {
	return r.withEntry(name, func(e *entry) { e.metrics.setStatus(StatusHealthy) })
}

func (r *Registry) Disable(name string) error {
	return r.withEntry(name, func(e *entry) { e.metrics.setStatus(StatusDisabled) })
}

func (r *Registry) withEntry(name string, fn func(*entry)) error {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return apierr.New(apierr.Internal, fmt.Sprintf("backend %q not found", name))
	}
	fn(e)
	return nil
}

func (r *Registry) Get(name string) (config.BackendConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return config.BackendConfig{}, false
	}
	return e.cfg, true
}

// Healthy returns the backends currently eligible for selection: not
// disabled and not failed, sorted by name so every selection policy ties
// and rotates in a deterministic order regardless of registration order.
func (r *Registry) Healthy() []config.BackendConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]config.BackendConfig, 0, len(r.order))
	for _, name := range r.order {
		e := r.entries[name]
		if e.metrics.status() != StatusUnhealthy && e.metrics.status() != StatusDisabled {
			out = append(out, e.cfg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// All returns every configured backend regardless of status, in stable order.
func (r *Registry) All() []config.BackendConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]config.BackendConfig, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name].cfg)
	}
	return out
}

func (r *Registry) Ring() *hashRing {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ring
}

// AcquireConnection reserves a connection slot for name, enforcing its
// configured max_connections (0 means unlimited). It reports whether the
// slot was granted; callers must call ReleaseConnection only when it was.
func (r *Registry) AcquireConnection(name string) bool {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	return e.metrics.acquireConnection(e.cfg.MaxConnections)
}

func (r *Registry) ReleaseConnection(name string) {
	_ = r.withEntry(name, func(e *entry) { e.metrics.releaseConnection() })
}

func (r *Registry) Connections(name string) int {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return 0
	}
	return e.metrics.connections()
}

func (r *Registry) AverageResponseTime(name string) (avg time.Duration, ok bool) {
	r.mu.RLock()
	e, exists := r.entries[name]
	r.mu.RUnlock()
	if !exists {
		return 0, false
	}
	return e.metrics.averageResponseTime(), true
}

func (r *Registry) RecordResult(name string, success bool, responseTime time.Duration) {
	_ = r.withEntry(name, func(e *entry) {
		e.metrics.recordResult(success, responseTime)
	})
}

// RecordProbeLatency feeds one health probe's round-trip time into the
// backend's response-time window, the same buffer the response-time
// selection policy reads.
func (r *Registry) RecordProbeLatency(name string, d time.Duration) {
	_ = r.withEntry(name, func(e *entry) {
		e.metrics.recordProbeLatency(d)
	})
}

func (r *Registry) RecordHealthCheck(name string, healthy bool, failureThreshold int) {
	_ = r.withEntry(name, func(e *entry) {
		e.metrics.recordHealthCheck(healthy, failureThreshold)
	})
}

func (r *Registry) Status(name string) (Status, bool) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return "", false
	}
	return e.metrics.status(), true
}

// Snapshot returns a consistent, sorted-by-name view of every backend's
// config and metrics for the operator API.
func (r *Registry) Snapshot() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Snapshot, 0, len(names))
	for _, name := range names {
		e := r.entries[name]
		out = append(out, e.metrics.snapshot(e.cfg))
	}
	return out
}
