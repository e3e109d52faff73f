package endpoint

import (
	"sync"
	"testing"

	"github.com/dusk-indust/moa/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func endpoints(uris ...string) []core.Endpoint {
	out := make([]core.Endpoint, len(uris))
	for i, u := range uris {
		out[i] = core.Endpoint{URI: u}
	}
	return out
}

func TestSelector_RoundRobinWraps(t *testing.T) {
	s := New(endpoints("http://a", "http://b", "http://c"), 0)

	var got []string
	for i := 0; i < 4; i++ {
		got = append(got, s.Next().URI)
	}
	assert.Equal(t, []string{"http://a", "http://b", "http://c", "http://a"}, got)
}

func TestSelector_EmptyReturnsFallback(t *testing.T) {
	s := New(nil, 0)
	assert.Equal(t, Fallback, s.Next())
	assert.Equal(t, Fallback, s.Next())
	assert.Equal(t, 0, s.Len())
}

func TestSelector_PriorityAndMaxActive(t *testing.T) {
	eps := []core.Endpoint{
		{URI: "http://low", Priority: 1},
		{URI: "http://high", Priority: 10},
		{URI: "http://mid-1", Priority: 5},
		{URI: "http://mid-2", Priority: 5},
	}
	s := New(eps, 3)

	require.Equal(t, 3, s.Len())
	uris := make([]string, 0, 3)
	for _, ep := range s.Endpoints() {
		uris = append(uris, ep.URI)
	}
	assert.Equal(t, []string{"http://high", "http://mid-1", "http://mid-2"}, uris)

	// Input slice must not be reordered.
	assert.Equal(t, "http://low", eps[0].URI)
}

func TestSelector_ConcurrentCallsAreFair(t *testing.T) {
	const k, perEndpoint = 4, 250
	s := New(endpoints("http://0", "http://1", "http://2", "http://3"), 0)

	var mu sync.Mutex
	counts := make(map[string]int)

	var wg sync.WaitGroup
	for i := 0; i < k*perEndpoint; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			uri := s.Next().URI
			mu.Lock()
			counts[uri]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, counts, k)
	for uri, n := range counts {
		assert.Equal(t, perEndpoint, n, "endpoint %s", uri)
	}
}
