package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/b3stream/internal/domain"
	"github.com/alanyoungcy/b3stream/internal/metrics"
)

func testEnvelope() domain.Envelope {
	return domain.NewEnvelope(domain.EnvelopeMarketData, domain.Tick{Symbol: "PETR4", Price: 32.5})
}

func newTestBroadcaster(t *testing.T, cfg BroadcasterConfig) (*Broadcaster, *Registry, *metrics.FanoutMetrics) {
	t.Helper()
	m := metrics.NewFanoutMetrics(prometheus.NewRegistry())
	r := NewRegistry(m, slog.Default())
	return NewBroadcaster(r, cfg, m, slog.Default()), r, m
}

func TestBroadcast_NoSubscribers(t *testing.T) {
	b, _, _ := newTestBroadcaster(t, BroadcasterConfig{})
	assert.Equal(t, Report{}, b.Broadcast(context.Background(), testEnvelope()))
}

func TestBroadcast_DeliversSameBytesToAll(t *testing.T) {
	b, r, _ := newTestBroadcaster(t, BroadcasterConfig{})
	subs := make([]*fakeSub, 5)
	for i := range subs {
		subs[i] = newFakeSub(fmt.Sprintf("s%d", i))
		r.Add(subs[i])
	}

	report := b.Broadcast(context.Background(), testEnvelope())
	assert.Equal(t, Report{Attempted: 5, Delivered: 5}, report)

	want, err := testEnvelope().Encode()
	require.NoError(t, err)
	for _, s := range subs {
		require.Equal(t, 1, s.count())
		assert.Equal(t, want, s.received[0])
	}

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(subs[0].received[0], &decoded))
	assert.Equal(t, "market_data", decoded["type"])
}

func TestBroadcast_EvictsFailedHandlesAfterPass(t *testing.T) {
	b, r, m := newTestBroadcaster(t, BroadcasterConfig{MaxParallel: 2})

	var healthy, broken []*fakeSub
	for i := range 6 {
		s := newFakeSub(fmt.Sprintf("s%d", i))
		if i%3 == 0 {
			s.fail = errBroken
			broken = append(broken, s)
		} else {
			healthy = append(healthy, s)
		}
		r.Add(s)
	}

	report := b.Broadcast(context.Background(), testEnvelope())
	assert.Equal(t, Report{Attempted: 6, Delivered: 4, Evicted: 2}, report)
	assert.Equal(t, 4, r.Len())
	for _, s := range broken {
		assert.Equal(t, int32(1), s.closes.Load())
	}
	for _, s := range healthy {
		assert.Equal(t, 1, s.count())
	}

	report = b.Broadcast(context.Background(), testEnvelope())
	assert.Equal(t, Report{Attempted: 4, Delivered: 4}, report)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Evictions))
	assert.Equal(t, 8.0, testutil.ToFloat64(m.Deliveries.WithLabelValues("ok")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.ActiveSubscribers))
}

func TestBroadcast_SlowHandleIsBoundedAndEvicted(t *testing.T) {
	b, r, _ := newTestBroadcaster(t, BroadcasterConfig{SendTimeout: 50 * time.Millisecond})

	slow := newFakeSub("slow")
	slow.block = make(chan struct{}) // never released
	fast := newFakeSub("fast")
	r.Add(slow)
	r.Add(fast)

	start := time.Now()
	report := b.Broadcast(context.Background(), testEnvelope())

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, Report{Attempted: 2, Delivered: 1, Evicted: 1}, report)
	assert.Equal(t, 1, fast.count())
	assert.Equal(t, []string{"fast"}, ids(r.Snapshot()))
}

func TestBroadcast_HandleAddedMidPassMissesMessage(t *testing.T) {
	b, r, _ := newTestBroadcaster(t, BroadcasterConfig{SendTimeout: 5 * time.Second})

	gate := newFakeSub("gate")
	gate.block = make(chan struct{})
	gate.entered = make(chan struct{}, 1)
	r.Add(gate)

	done := make(chan Report, 1)
	go func() { done <- b.Broadcast(context.Background(), testEnvelope()) }()

	<-gate.entered
	late := newFakeSub("late")
	r.Add(late)
	close(gate.block)

	report := <-done
	assert.Equal(t, Report{Attempted: 1, Delivered: 1}, report)
	assert.Zero(t, late.count())

	b.Broadcast(context.Background(), testEnvelope())
	assert.Equal(t, 1, late.count())
	assert.Equal(t, 2, gate.count())
}

func TestBroadcast_EncodeFailure(t *testing.T) {
	b, r, _ := newTestBroadcaster(t, BroadcasterConfig{})
	s := newFakeSub("a")
	r.Add(s)

	report := b.Broadcast(context.Background(), domain.NewEnvelope(domain.EnvelopeMarketData, make(chan int)))
	assert.Equal(t, Report{}, report)
	assert.Zero(t, s.count())
	assert.Equal(t, 1, r.Len())
}

func TestBroadcast_CancelledPassDoesNotEvict(t *testing.T) {
	b, r, _ := newTestBroadcaster(t, BroadcasterConfig{})
	s := newFakeSub("a")
	s.block = make(chan struct{})
	r.Add(s)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := b.Broadcast(ctx, testEnvelope())
	assert.Equal(t, Report{Attempted: 1}, report)
	assert.Equal(t, 1, r.Len())
}
