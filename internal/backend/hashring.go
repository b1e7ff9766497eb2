package backend

import (
	"bytes"
	"crypto/md5"
	"fmt"
	"sort"

	"github.com/Lingualink-VRChat/Lingualink-Server/internal/config"
)

// virtualNodesPerWeight sets weight*10 virtual nodes per backend, so a
// backend configured with twice the weight of another claims twice the
// share of the ring.
const virtualNodesPerWeight = 10

type ringNode struct {
	hash [md5.Size]byte
	name string
}

// hashRing is an MD5-keyed consistent hash ring over the registry's
// backends, built fresh whenever the backend set changes. Each virtual node
// is keyed as "name#i" and placed by its full 128-bit MD5 digest, so ring
// placement for a given backend set is reproducible bit-for-bit regardless
// of implementation language.
type hashRing struct {
	nodes []ringNode
}

func newHashRing(backends []config.BackendConfig) *hashRing {
	ring := &hashRing{}
	for _, b := range backends {
		weight := b.Weight
		if weight <= 0 {
			weight = 1
		}
		count := weight * virtualNodesPerWeight
		for i := 0; i < count; i++ {
			key := fmt.Sprintf("%s#%d", b.Name, i)
			ring.nodes = append(ring.nodes, ringNode{hash: md5.Sum([]byte(key)), name: b.Name})
		}
	}
	sort.Slice(ring.nodes, func(i, j int) bool {
		return bytes.Compare(ring.nodes[i].hash[:], ring.nodes[j].hash[:]) < 0
	})
	return ring
}

// Lookup walks clockwise from key's hash and returns the first backend name
// for which healthy reports true, wrapping around the ring at most once. A
// nil healthy always accepts the first node encountered. It returns false
// only when the ring is empty or no node satisfies healthy after a full
// pass around it.
func (h *hashRing) Lookup(key string, healthy func(name string) bool) (string, bool) {
	if len(h.nodes) == 0 {
		return "", false
	}
	hash := md5.Sum([]byte(key))
	start := sort.Search(len(h.nodes), func(i int) bool {
		return bytes.Compare(h.nodes[i].hash[:], hash[:]) >= 0
	})
	for i := 0; i < len(h.nodes); i++ {
		node := h.nodes[(start+i)%len(h.nodes)]
		if healthy == nil || healthy(node.name) {
			return node.name, true
		}
	}
	return "", false
}
