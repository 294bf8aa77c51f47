package market

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/b3stream/internal/domain"
)

// Rand is the source of random draws. Tests inject a fixed sequence.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// GeneratorConfig bounds the random walk.
type GeneratorConfig struct {
	MaxDelta  float64 // delta is drawn from [-MaxDelta, +MaxDelta]
	Spread    float64 // half-spread applied to bid/ask
	VolumeMin int
	VolumeMax int
}

// DefaultGeneratorConfig matches the upstream generator feed.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		MaxDelta:  0.5,
		Spread:    0.1,
		VolumeMin: 1000,
		VolumeMax: 10000,
	}
}

// Generator derives the next tick for a symbol from the ledger's current price.
// It never writes the ledger; the publication loop applies the tick.
type Generator struct {
	ledger *Ledger
	cfg    GeneratorConfig
	rnd    Rand
	clock  clockwork.Clock
}

// NewGenerator creates a Generator. A nil rnd uses a time-seeded PCG source.
func NewGenerator(ledger *Ledger, cfg GeneratorConfig, rnd Rand, clock clockwork.Clock) *Generator {
	if rnd == nil {
		seed := uint64(time.Now().UnixNano())
		rnd = &lockedRand{r: rand.New(rand.NewPCG(seed, seed>>1))}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cfg.VolumeMax < cfg.VolumeMin {
		cfg.VolumeMax = cfg.VolumeMin
	}
	return &Generator{ledger: ledger, cfg: cfg, rnd: rnd, clock: clock}
}

// Next computes the next tick for symbol.
//
// The delta is rounded to cents before anything is derived from it, so
// price - prior == change exactly and change_percent is computed from the
// same rounded delta.
func (g *Generator) Next(symbol string) (domain.Tick, error) {
	name := NormalizeSymbol(symbol)

	prior, err := g.ledger.Get(name)
	if err != nil {
		return domain.Tick{}, fmt.Errorf("generator: %w", err)
	}
	base, err := g.ledger.Base(name)
	if err != nil {
		return domain.Tick{}, fmt.Errorf("generator: %w", err)
	}

	delta := decimal.NewFromFloat((g.rnd.Float64()*2 - 1) * g.cfg.MaxDelta).Round(2)
	price := decimal.NewFromFloat(prior).Add(delta).Round(2)
	spread := decimal.NewFromFloat(g.cfg.Spread)
	pct := delta.Div(decimal.NewFromFloat(base)).Mul(decimal.NewFromInt(100)).Round(3)

	return domain.Tick{
		Symbol:        name,
		Price:         price.InexactFloat64(),
		Change:        delta.InexactFloat64(),
		ChangePercent: pct.InexactFloat64(),
		Volume:        g.cfg.VolumeMin + g.rnd.IntN(g.cfg.VolumeMax-g.cfg.VolumeMin+1),
		Bid:           price.Sub(spread).Round(2).InexactFloat64(),
		Ask:           price.Add(spread).Round(2).InexactFloat64(),
		Timestamp:     g.clock.Now(),
	}, nil
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}
