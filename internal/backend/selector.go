package backend

import (
	"context"
	"math/rand"
	"sync/atomic"

	"github.com/Lingualink-VRChat/Lingualink-Server/internal/apierr"
	"github.com/Lingualink-VRChat/Lingualink-Server/internal/config"
)

// Selector picks one healthy backend per request according to its current
// strategy. The strategy itself is stored behind atomic.Value so the
// operator API can change it at runtime without a lock on the hot selection
// path.
type Selector struct {
	registry *Registry
	strategy atomic.Value // Strategy
	rrIndex  uint64
}

func NewSelector(registry *Registry, initial Strategy) *Selector {
	s := &Selector{registry: registry}
	if initial == "" {
		initial = RoundRobin
	}
	s.strategy.Store(initial)
	return s
}

func (s *Selector) Strategy() Strategy {
	return s.strategy.Load().(Strategy)
}

func (s *Selector) SetStrategy(strategy Strategy) error {
	switch strategy {
	case RoundRobin, WeightedRoundRobin, LeastConnections, Random, ConsistentHash, ResponseTime:
		s.strategy.Store(strategy)
		return nil
	default:
		return apierr.New(apierr.Internal, "unknown selection strategy: "+string(strategy))
	}
}

// Select picks a backend for one dispatch attempt and reserves it a
// connection slot in the same step. hashKey is only consulted by the
// consistent-hash strategy; every other strategy ignores it. If the policy's
// first choice is already at its configured max_connections, Select retries
// the policy over the remaining candidates; if every healthy backend is at
// capacity it fails with NoBackend rather than returning a backend the
// dispatcher can't use.
func (s *Selector) Select(ctx context.Context, hashKey string) (config.BackendConfig, error) {
	candidates := s.registry.Healthy()
	if len(candidates) == 0 {
		return config.BackendConfig{}, apierr.New(apierr.NoBackend, "no healthy backend available")
	}

	for len(candidates) > 0 {
		chosen := s.pick(candidates, hashKey)
		if s.registry.AcquireConnection(chosen.Name) {
			return chosen, nil
		}
		candidates = withoutBackend(candidates, chosen.Name)
	}
	return config.BackendConfig{}, apierr.New(apierr.NoBackend, "every healthy backend is at its connection limit")
}

func (s *Selector) pick(candidates []config.BackendConfig, hashKey string) config.BackendConfig {
	switch s.Strategy() {
	case WeightedRoundRobin:
		return s.selectWeightedRoundRobin(candidates)
	case LeastConnections:
		return s.selectLeastConnections(candidates)
	case Random:
		return candidates[rand.Intn(len(candidates))]
	case ConsistentHash:
		return s.selectConsistentHash(candidates, hashKey)
	case ResponseTime:
		return s.selectResponseTime(candidates)
	default:
		return s.selectRoundRobin(candidates)
	}
}

func withoutBackend(candidates []config.BackendConfig, name string) []config.BackendConfig {
	out := make([]config.BackendConfig, 0, len(candidates)-1)
	for _, b := range candidates {
		if b.Name != name {
			out = append(out, b)
		}
	}
	return out
}

func (s *Selector) selectRoundRobin(candidates []config.BackendConfig) config.BackendConfig {
	i := atomic.AddUint64(&s.rrIndex, 1) - 1
	return candidates[i%uint64(len(candidates))]
}

// selectWeightedRoundRobin expands the candidate set into a weighted
// sequence and walks it with the same rotating index round robin uses, so a
// backend with weight 3 is picked three times as often as one with weight 1.
func (s *Selector) selectWeightedRoundRobin(candidates []config.BackendConfig) config.BackendConfig {
	var weighted []config.BackendConfig
	for _, b := range candidates {
		weight := b.Weight
		if weight <= 0 {
			weight = 1
		}
		for i := 0; i < weight; i++ {
			weighted = append(weighted, b)
		}
	}
	if len(weighted) == 0 {
		return candidates[0]
	}
	i := atomic.AddUint64(&s.rrIndex, 1) - 1
	return weighted[i%uint64(len(weighted))]
}

func (s *Selector) selectLeastConnections(candidates []config.BackendConfig) config.BackendConfig {
	best := candidates[0]
	bestConn := s.registry.Connections(best.Name)
	for _, b := range candidates[1:] {
		if c := s.registry.Connections(b.Name); c < bestConn {
			best, bestConn = b, c
		}
	}
	return best
}

// selectConsistentHash walks the ring clockwise from hashKey's hash to the
// first virtual node whose backend is among candidates, wrapping around at
// most once. Only an empty hashKey or a ring with no healthy node at all
// falls back to round robin; a single unhealthy backend never does, since
// the ring walk itself already skips it.
func (s *Selector) selectConsistentHash(candidates []config.BackendConfig, hashKey string) config.BackendConfig {
	if hashKey == "" {
		return s.selectRoundRobin(candidates)
	}
	eligible := make(map[string]bool, len(candidates))
	for _, b := range candidates {
		eligible[b.Name] = true
	}

	ring := s.registry.Ring()
	name, ok := ring.Lookup(hashKey, func(n string) bool { return eligible[n] })
	if !ok {
		return s.selectRoundRobin(candidates)
	}
	for _, b := range candidates {
		if b.Name == name {
			return b
		}
	}
	return s.selectRoundRobin(candidates)
}

func (s *Selector) selectResponseTime(candidates []config.BackendConfig) config.BackendConfig {
	best := candidates[0]
	bestAvg, _ := s.registry.AverageResponseTime(best.Name)
	for _, b := range candidates[1:] {
		avg, _ := s.registry.AverageResponseTime(b.Name)
		if avg > 0 && (bestAvg == 0 || avg < bestAvg) {
			best, bestAvg = b, avg
		}
	}
	return best
}
