package ws

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/alanyoungcy/b3stream/internal/metrics"
)

// Registry is the set of live subscriber handles, kept in insertion order.
type Registry struct {
	mu      sync.Mutex
	subs    []Subscriber
	ids     map[string]struct{}
	metrics *metrics.FanoutMetrics
	logger  *slog.Logger
}

// NewRegistry creates an empty registry. m may be nil.
func NewRegistry(m *metrics.FanoutMetrics, logger *slog.Logger) *Registry {
	return &Registry{
		ids:     make(map[string]struct{}),
		metrics: m,
		logger:  logger.With(slog.String("component", "registry")),
	}
}

// Add registers sub. It reports false when a handle with the same ID is
// already present.
func (r *Registry) Add(sub Subscriber) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.ids[sub.ID()]; ok {
		return false
	}
	r.ids[sub.ID()] = struct{}{}
	r.subs = append(r.subs, sub)
	r.observe()
	return true
}

// Remove closes and drops sub. The handle is closed while the lock is held so
// that no caller can obtain it from a later Snapshot in an open state.
// Removing an absent handle is a no-op that reports false.
func (r *Registry) Remove(sub Subscriber) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.ids[sub.ID()]; !ok {
		return false
	}
	if err := sub.Close(); err != nil {
		r.logger.Debug("close subscriber",
			slog.String("subscriber", sub.ID()),
			slog.String("error", err.Error()),
		)
	}
	delete(r.ids, sub.ID())
	r.subs = slices.DeleteFunc(r.subs, func(s Subscriber) bool { return s.ID() == sub.ID() })
	r.observe()
	return true
}

// Snapshot returns a copy of the current handles in insertion order.
func (r *Registry) Snapshot() []Subscriber {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.subs)
}

// Len returns the number of registered handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// CloseAll closes and drops every handle.
func (r *Registry) CloseAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.subs)
	for _, s := range r.subs {
		_ = s.Close()
	}
	r.subs = nil
	clear(r.ids)
	r.observe()
	return n
}

// observe must be called with mu held.
func (r *Registry) observe() {
	if r.metrics != nil {
		r.metrics.ActiveSubscribers.Set(float64(len(r.subs)))
	}
}
