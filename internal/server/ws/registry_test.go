package ws

import (
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/b3stream/internal/metrics"
)

func ids(subs []Subscriber) []string {
	out := make([]string, len(subs))
	for i, s := range subs {
		out[i] = s.ID()
	}
	return out
}

func TestRegistry_AddIsIdempotent(t *testing.T) {
	r := NewRegistry(nil, slog.Default())
	a := newFakeSub("a")

	assert.True(t, r.Add(a))
	assert.False(t, r.Add(a))
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_SnapshotKeepsInsertionOrder(t *testing.T) {
	r := NewRegistry(nil, slog.Default())
	for _, id := range []string{"c", "a", "b"} {
		r.Add(newFakeSub(id))
	}

	snap := r.Snapshot()
	assert.Equal(t, []string{"c", "a", "b"}, ids(snap))

	snap[0] = newFakeSub("z")
	assert.Equal(t, []string{"c", "a", "b"}, ids(r.Snapshot()))
}

func TestRegistry_RemoveClosesOnce(t *testing.T) {
	r := NewRegistry(nil, slog.Default())
	a, b := newFakeSub("a"), newFakeSub("b")
	r.Add(a)
	r.Add(b)

	assert.True(t, r.Remove(a))
	assert.False(t, r.Remove(a))
	assert.False(t, r.Remove(newFakeSub("never-added")))

	assert.Equal(t, int32(1), a.closes.Load())
	assert.True(t, a.closed.Load())
	assert.Zero(t, b.closes.Load())
	assert.Equal(t, []string{"b"}, ids(r.Snapshot()))
}

func TestRegistry_ConcurrentAddRemove(t *testing.T) {
	r := NewRegistry(nil, slog.Default())

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := newFakeSub(fmt.Sprintf("s%d", i))
			r.Add(s)
			_ = r.Snapshot()
			if i%2 == 0 {
				r.Remove(s)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 25, r.Len())
	seen := map[string]bool{}
	for _, s := range r.Snapshot() {
		require.False(t, seen[s.ID()], "duplicate handle %s", s.ID())
		seen[s.ID()] = true
	}
}

func TestRegistry_CloseAll(t *testing.T) {
	m := metrics.NewFanoutMetrics(prometheus.NewRegistry())
	r := NewRegistry(m, slog.Default())
	subs := []*fakeSub{newFakeSub("a"), newFakeSub("b")}
	for _, s := range subs {
		r.Add(s)
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ActiveSubscribers))

	assert.Equal(t, 2, r.CloseAll())
	assert.Zero(t, r.Len())
	assert.Zero(t, testutil.ToFloat64(m.ActiveSubscribers))
	for _, s := range subs {
		assert.True(t, s.closed.Load())
	}
}
