package trading

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/b3stream/internal/domain"
	"github.com/alanyoungcy/b3stream/internal/market"
	"github.com/alanyoungcy/b3stream/internal/server/ws"
)

type recordingFanout struct {
	mu      sync.Mutex
	envs    []domain.Envelope
	ctxErrs []error
}

func (f *recordingFanout) Broadcast(ctx context.Context, env domain.Envelope) ws.Report {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.envs = append(f.envs, env)
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	return ws.Report{}
}

type recordingBus struct {
	channels []string
	err      error
}

func (b *recordingBus) Publish(_ context.Context, channel string, _ []byte) error {
	b.channels = append(b.channels, channel)
	return b.err
}

func (b *recordingBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, errors.New("unsupported")
}

type recordingNotifier struct {
	fills []domain.ExecutionResult
}

func (n *recordingNotifier) NotifyFill(res domain.ExecutionResult) {
	n.fills = append(n.fills, res)
}

type fixture struct {
	svc      *Service
	ledger   *market.Ledger
	fanout   *recordingFanout
	bus      *recordingBus
	notifier *recordingNotifier
	clock    *clockwork.FakeClock
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	clock := clockwork.NewFakeClock()
	ledger, err := market.NewLedger([]market.Symbol{
		{Name: "WINFUT", BasePrice: 118500},
		{Name: "PETR4", BasePrice: 32.50},
	}, clock)
	require.NoError(t, err)

	f := fixture{
		ledger:   ledger,
		fanout:   &recordingFanout{},
		bus:      &recordingBus{},
		notifier: &recordingNotifier{},
		clock:    clock,
	}
	f.svc = NewService(ledger, f.fanout, f.bus, f.notifier, Config{DefaultSymbol: "WINFUT"}, clock, nil, slog.Default())
	return f
}

func intPtr(v int) *int { return &v }

func TestSubmit_BuyFillsAtLedgerPrice(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ledger.Set("WINFUT", 118512.35))

	out, err := f.svc.Submit(context.Background(), domain.Signal{Action: "BUY", Symbol: "WINFUT", Volume: intPtr(3)})
	require.NoError(t, err)
	require.True(t, out.Filled())

	res := *out.Execution
	assert.Equal(t, domain.TradeStatusFilled, res.Status)
	assert.Equal(t, 3, res.Quantity)
	assert.Equal(t, 118512.35, res.Price)
	assert.Equal(t, domain.SideBuy, res.Side)
	assert.Equal(t, f.clock.Now(), res.Timestamp)
	assert.NotEmpty(t, res.TradeID)

	require.Len(t, f.fanout.envs, 1)
	assert.Equal(t, domain.EnvelopeTradeExecuted, f.fanout.envs[0].Type)
	assert.Equal(t, res, f.fanout.envs[0].Data)

	assert.Equal(t, []string{TradesChannel}, f.bus.channels)
	assert.Len(t, f.notifier.fills, 1)
}

func TestSubmit_NonTradingActionsAreAcknowledged(t *testing.T) {
	for _, sig := range []domain.Signal{
		{Action: "HOLD"},
		{Action: ""},
		{Action: "close", Symbol: "PETR4"},
		{Action: "BUY", Volume: intPtr(0)},
		{Action: "SELL", Volume: intPtr(2), Malformed: true},
	} {
		t.Run(sig.Action, func(t *testing.T) {
			f := newFixture(t)

			out, err := f.svc.Submit(context.Background(), sig)
			require.NoError(t, err)
			assert.False(t, out.Filled())
			require.NotNil(t, out.Ack)
			assert.Equal(t, "signal_received", out.Ack.Status)
			assert.Empty(t, f.fanout.envs)
			assert.Empty(t, f.bus.channels)
		})
	}
}

func TestSignal_LenientDecode(t *testing.T) {
	tests := []struct {
		body      string
		want      domain.Signal
		malformed bool
	}{
		{`{"action":"BUY","volume":3}`, domain.Signal{Action: "BUY", Volume: intPtr(3)}, false},
		{`{"action":"BUY","volume":1.0}`, domain.Signal{Action: "BUY", Volume: intPtr(1)}, false},
		{`{"action":"SELL","volume":null}`, domain.Signal{Action: "SELL"}, false},
		{`{"action":"BUY","volume":1.5}`, domain.Signal{Action: "BUY"}, true},
		{`{"action":"BUY","volume":"3"}`, domain.Signal{Action: "BUY"}, true},
		{`{"action":["BUY"]}`, domain.Signal{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			var sig domain.Signal
			require.NoError(t, json.Unmarshal([]byte(tt.body), &sig))
			assert.Equal(t, tt.malformed, sig.Malformed)
			sig.Malformed = false
			assert.Equal(t, tt.want, sig)
		})
	}
}

func TestSubmit_ActionIsCaseInsensitive(t *testing.T) {
	f := newFixture(t)

	out, err := f.svc.Submit(context.Background(), domain.Signal{Action: " sell "})
	require.NoError(t, err)
	require.True(t, out.Filled())
	assert.Equal(t, domain.SideSell, out.Execution.Side)
	assert.Equal(t, "WINFUT", out.Execution.Symbol)
	assert.Equal(t, 1, out.Execution.Quantity)
}

func TestExecute_UnknownSymbol(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Execute(context.Background(), domain.TradeRequest{Symbol: "FOO", Side: "BUY"})
	assert.ErrorIs(t, err, domain.ErrUnknownSymbol)
	assert.Empty(t, f.fanout.envs)
	assert.Empty(t, f.notifier.fills)
}

func TestExecute_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Execute(context.Background(), domain.TradeRequest{Side: "SHORT"})
	assert.ErrorIs(t, err, domain.ErrMalformedSignal)

	_, err = f.svc.Execute(context.Background(), domain.TradeRequest{Side: "BUY", Quantity: intPtr(-2)})
	assert.ErrorIs(t, err, domain.ErrMalformedSignal)

	assert.Empty(t, f.fanout.envs)
}

func TestExecute_DefaultsAndNormalisation(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Execute(context.Background(), domain.TradeRequest{Symbol: "petr4"})
	require.NoError(t, err)
	assert.Equal(t, "PETR4", res.Symbol)
	assert.Equal(t, domain.SideBuy, res.Side)
	assert.Equal(t, 1, res.Quantity)
	assert.Equal(t, 32.50, res.Price)
}

func TestExecute_BusFailureIsBestEffort(t *testing.T) {
	f := newFixture(t)
	f.bus.err = errors.New("redis down")

	_, err := f.svc.Execute(context.Background(), domain.TradeRequest{Side: "BUY"})
	require.NoError(t, err)
	assert.Len(t, f.fanout.envs, 1)
}

func TestExecute_BroadcastSurvivesCancelledCaller(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := f.svc.Execute(ctx, domain.TradeRequest{Symbol: "PETR4", Side: "SELL"})
	require.NoError(t, err)
	assert.Equal(t, domain.SideSell, res.Side)

	require.Len(t, f.fanout.envs, 1)
	assert.Equal(t, domain.EnvelopeTradeExecuted, f.fanout.envs[0].Type)
	assert.NoError(t, f.fanout.ctxErrs[0])
	assert.Equal(t, []string{TradesChannel}, f.bus.channels)
}

func TestOutcome_JSON(t *testing.T) {
	f := newFixture(t)

	out, err := f.svc.Submit(context.Background(), domain.Signal{Action: "HOLD"})
	require.NoError(t, err)
	b, err := json.Marshal(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"signal_received","message":"Signal processed"}`, string(b))

	out, err = f.svc.Submit(context.Background(), domain.Signal{Action: "BUY", Volume: intPtr(2)})
	require.NoError(t, err)
	b, err = json.Marshal(out)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, "FILLED", decoded["status"])
	assert.Equal(t, 2.0, decoded["quantity"])
	assert.Equal(t, "BUY", decoded["side"])
}
