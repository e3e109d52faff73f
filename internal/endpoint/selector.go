// Package endpoint hands out configured compute endpoints in round-robin
// order.
package endpoint

import (
	"sort"
	"sync"

	"github.com/dusk-indust/moa/internal/core"
)

// Fallback is returned by Next when no endpoints are configured.
var Fallback = core.Endpoint{URI: "http://localhost:11434", Name: "localhost"}

// Selector is the single owner of the round-robin cursor. It is safe for
// concurrent use; every call to Next advances the cursor exactly once.
type Selector struct {
	mu        sync.Mutex
	endpoints []core.Endpoint
	next      int
}

// New creates a Selector over endpoints ordered by descending Priority
// (stable for equal priorities). When maxActive is positive only the first
// maxActive endpoints after ordering are used.
func New(endpoints []core.Endpoint, maxActive int) *Selector {
	ordered := make([]core.Endpoint, len(endpoints))
	copy(ordered, endpoints)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})
	if maxActive > 0 && len(ordered) > maxActive {
		ordered = ordered[:maxActive]
	}
	return &Selector{endpoints: ordered}
}

// Next returns the endpoint at the cursor and advances it modulo the
// endpoint count.
func (s *Selector) Next() core.Endpoint {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.endpoints) == 0 {
		return Fallback
	}
	ep := s.endpoints[s.next]
	s.next = (s.next + 1) % len(s.endpoints)
	return ep
}

// Len returns the number of active endpoints.
func (s *Selector) Len() int {
	return len(s.endpoints)
}

// Endpoints returns a copy of the active endpoints in selection order.
func (s *Selector) Endpoints() []core.Endpoint {
	out := make([]core.Endpoint, len(s.endpoints))
	copy(out, s.endpoints)
	return out
}
