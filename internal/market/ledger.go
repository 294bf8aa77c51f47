package market

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/alanyoungcy/b3stream/internal/domain"
)

type entry struct {
	base      float64
	price     float64
	change    float64
	updatedAt time.Time
}

// Ledger is the in-memory map of symbol to last price. The symbol set is fixed
// at construction; reads may come from any goroutine.
type Ledger struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string
	clock   clockwork.Clock
}

// NewLedger builds a ledger seeded with every symbol at its base price.
func NewLedger(symbols []Symbol, clock clockwork.Clock) (*Ledger, error) {
	if err := validateSymbols(symbols); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	now := clock.Now()
	l := &Ledger{
		entries: make(map[string]*entry, len(symbols)),
		order:   make([]string, 0, len(symbols)),
		clock:   clock,
	}
	for _, s := range symbols {
		name := NormalizeSymbol(s.Name)
		l.entries[name] = &entry{
			base:      s.BasePrice,
			price:     round(s.BasePrice, 2),
			updatedAt: now,
		}
		l.order = append(l.order, name)
	}
	return l, nil
}

// Symbols returns the tracked symbols in configuration order.
func (l *Ledger) Symbols() []string {
	out := make([]string, len(l.order))
	copy(out, l.order)
	return out
}

// Get returns the current price of symbol.
func (l *Ledger) Get(symbol string) (float64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	e, ok := l.entries[NormalizeSymbol(symbol)]
	if !ok {
		return 0, fmt.Errorf("ledger: get %q: %w", symbol, domain.ErrUnknownSymbol)
	}
	return e.price, nil
}

// Base returns the seed price of symbol.
func (l *Ledger) Base(symbol string) (float64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	e, ok := l.entries[NormalizeSymbol(symbol)]
	if !ok {
		return 0, fmt.Errorf("ledger: base %q: %w", symbol, domain.ErrUnknownSymbol)
	}
	return e.base, nil
}

// Set stores a new current price for symbol.
func (l *Ledger) Set(symbol string, price float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[NormalizeSymbol(symbol)]
	if !ok {
		return fmt.Errorf("ledger: set %q: %w", symbol, domain.ErrUnknownSymbol)
	}
	e.change = price - e.price
	e.price = price
	e.updatedAt = l.clock.Now()
	return nil
}

// Quote returns the read view of one entry.
func (l *Ledger) Quote(symbol string) (domain.Quote, error) {
	name := NormalizeSymbol(symbol)

	l.mu.RLock()
	defer l.mu.RUnlock()

	e, ok := l.entries[name]
	if !ok {
		return domain.Quote{}, fmt.Errorf("ledger: quote %q: %w", symbol, domain.ErrUnknownSymbol)
	}
	return domain.Quote{
		Symbol:    name,
		Price:     e.price,
		BasePrice: e.base,
		Change:    round(e.change, 2),
		UpdatedAt: e.updatedAt,
	}, nil
}

// Snapshot copies every current price.
func (l *Ledger) Snapshot() map[string]float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]float64, len(l.entries))
	for name, e := range l.entries {
		out[name] = e.price
	}
	return out
}

// Restore overwrites current prices from a snapshot. Symbols that are not
// tracked and non-positive prices are skipped; the number applied is returned.
func (l *Ledger) Restore(prices map[string]float64) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	applied := 0
	for name, price := range prices {
		e, ok := l.entries[NormalizeSymbol(name)]
		if !ok || !(price > 0) {
			continue
		}
		e.price = round(price, 2)
		e.change = 0
		e.updatedAt = now
		applied++
	}
	return applied
}
