package market

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/b3stream/internal/domain"
)

func testSymbols() []Symbol {
	return []Symbol{
		{Name: "WINFUT", BasePrice: 118500},
		{Name: "WDOFUT", BasePrice: 5.45},
		{Name: "PETR4", BasePrice: 32.50},
		{Name: "VALE3", BasePrice: 65.80},
		{Name: "ITUB4", BasePrice: 28.90},
	}
}

func newTestLedger(t *testing.T, clock clockwork.Clock) *Ledger {
	t.Helper()
	l, err := NewLedger(testSymbols(), clock)
	require.NoError(t, err)
	return l
}

func TestNewLedger_SeedsBasePrices(t *testing.T) {
	l := newTestLedger(t, clockwork.NewFakeClock())

	assert.Equal(t, []string{"WINFUT", "WDOFUT", "PETR4", "VALE3", "ITUB4"}, l.Symbols())
	for _, s := range testSymbols() {
		price, err := l.Get(s.Name)
		require.NoError(t, err)
		assert.Equal(t, s.BasePrice, price, s.Name)
	}
}

func TestNewLedger_RejectsBadTables(t *testing.T) {
	tests := []struct {
		name    string
		symbols []Symbol
	}{
		{"empty table", nil},
		{"empty name", []Symbol{{Name: "  ", BasePrice: 1}}},
		{"duplicate", []Symbol{{Name: "PETR4", BasePrice: 1}, {Name: "petr4", BasePrice: 2}}},
		{"zero base", []Symbol{{Name: "PETR4", BasePrice: 0}}},
		{"negative base", []Symbol{{Name: "PETR4", BasePrice: -3}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLedger(tt.symbols, nil)
			assert.ErrorIs(t, err, domain.ErrInvalidSymbolTable)
		})
	}
}

func TestLedger_UnknownSymbol(t *testing.T) {
	l := newTestLedger(t, nil)

	_, err := l.Get("FOO")
	assert.ErrorIs(t, err, domain.ErrUnknownSymbol)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, l.Set("FOO", 1), domain.ErrUnknownSymbol)

	_, err = l.Quote("FOO")
	assert.ErrorIs(t, err, domain.ErrUnknownSymbol)
}

func TestLedger_SetAndQuote(t *testing.T) {
	clock := clockwork.NewFakeClock()
	l := newTestLedger(t, clock)

	clock.Advance(time.Second)
	require.NoError(t, l.Set("petr4", 32.75))

	q, err := l.Quote(" PETR4 ")
	require.NoError(t, err)
	assert.Equal(t, "PETR4", q.Symbol)
	assert.Equal(t, 32.75, q.Price)
	assert.Equal(t, 32.50, q.BasePrice)
	assert.Equal(t, 0.25, q.Change)
	assert.Equal(t, clock.Now(), q.UpdatedAt)
}

func TestLedger_SnapshotIsACopy(t *testing.T) {
	l := newTestLedger(t, nil)

	snap := l.Snapshot()
	snap["WINFUT"] = 1

	price, err := l.Get("WINFUT")
	require.NoError(t, err)
	assert.Equal(t, 118500.0, price)
}

func TestLedger_Restore(t *testing.T) {
	l := newTestLedger(t, nil)

	n := l.Restore(map[string]float64{
		"WINFUT": 119000.123,
		"vale3":  66.10,
		"FOO":    10,
		"ITUB4":  0,
	})
	assert.Equal(t, 2, n)

	price, _ := l.Get("WINFUT")
	assert.Equal(t, 119000.12, price)
	price, _ = l.Get("VALE3")
	assert.Equal(t, 66.10, price)
	price, _ = l.Get("ITUB4")
	assert.Equal(t, 28.90, price)
}

func TestLedger_ConcurrentAccess(t *testing.T) {
	l := newTestLedger(t, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_ = l.Set("PETR4", float64(30+j%5))
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_, _ = l.Get("PETR4")
				_ = l.Snapshot()
			}
		}()
	}
	wg.Wait()

	price, err := l.Get("PETR4")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, price, 30.0)
	assert.LessOrEqual(t, price, 34.0)
}
