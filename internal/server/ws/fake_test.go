package ws

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/alanyoungcy/b3stream/internal/domain"
)

// fakeSub is an in-memory Subscriber.
type fakeSub struct {
	id      string
	fail    error
	block   chan struct{} // when non-nil, Send waits for it or ctx
	entered chan struct{}

	mu       sync.Mutex
	received [][]byte
	closes   atomic.Int32
	closed   atomic.Bool
}

func newFakeSub(id string) *fakeSub {
	return &fakeSub{id: id}
}

func (f *fakeSub) ID() string { return f.id }

func (f *fakeSub) Send(ctx context.Context, msg []byte) error {
	if f.closed.Load() {
		return domain.ErrSubscriberClosed
	}
	if f.entered != nil {
		select {
		case f.entered <- struct{}{}:
		default:
		}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", domain.ErrDeliveryFailed, ctx.Err())
		}
	}
	if f.fail != nil {
		return f.fail
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received = append(f.received, msg)
	return nil
}

func (f *fakeSub) Close() error {
	f.closed.Store(true)
	f.closes.Add(1)
	return nil
}

func (f *fakeSub) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.received)
}

var errBroken = errors.New("broken pipe")
