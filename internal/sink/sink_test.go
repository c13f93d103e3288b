package sink

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"arbview/internal/bus"
	"arbview/internal/obs"
	"arbview/internal/schema"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordSink struct {
	name string
	err  error

	mu   sync.Mutex
	got  []schema.ArbMarket
	ctxs []bool
}

func (s *recordSink) Name() string { return s.name }

func (s *recordSink) Write(ctx context.Context, m schema.ArbMarket) error {
	_, hasDeadline := ctx.Deadline()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, m)
	s.ctxs = append(s.ctxs, hasDeadline)
	return s.err
}

func (s *recordSink) pairs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.got))
	for _, m := range s.got {
		out = append(out, m.HePair)
	}
	return out
}

func sample() schema.ArbMarket {
	return schema.ArbMarket{
		HePair: "BTC-USD",
		Spread: 1.25,
		Low:    &schema.ActiveMarket{Exchange: "A", HePair: "BTC-USD", ExPair: "BTCUSD", Price: "100.0"},
		High:   &schema.ActiveMarket{Exchange: "B", HePair: "BTC-USD", ExPair: "XBT/USD", Price: "101.25"},
	}
}

func TestDispatcherWritesEverySink(t *testing.T) {
	metrics := obs.NewMetrics()
	ok := &recordSink{name: "ok"}
	bad := &recordSink{name: "bad", err: errors.New("down")}
	d := NewDispatcher(metrics, 0, bad, ok)
	assert.Equal(t, 2, d.Len())

	d.Dispatch(context.Background(), sample())

	assert.Equal(t, []string{"BTC-USD"}, ok.pairs())
	assert.Equal(t, []string{"BTC-USD"}, bad.pairs())
	assert.Equal(t, []bool{true}, ok.ctxs)
	assert.Equal(t, uint64(1), metrics.Snapshot().SinkErrors)
}

func TestDispatcherRunDrainsQueue(t *testing.T) {
	q := bus.NewQueue[schema.ArbMarket](8)
	s := &recordSink{name: "rec"}
	d := NewDispatcher(nil, time.Second, s)

	for _, pair := range []string{"A", "B", "C"} {
		require.NoError(t, q.TryPublish(schema.ArbMarket{HePair: pair}))
	}
	q.Close()

	done := make(chan struct{})
	go func() {
		d.Run(context.Background(), q)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("dispatcher did not stop")
	}
	assert.Equal(t, []string{"A", "B", "C"}, s.pairs())
}

func TestMarketFields(t *testing.T) {
	assert.Equal(t, map[string]any{
		"he_pair":       "BTC-USD",
		"spread":        "1.25",
		"low_exchange":  "A",
		"low_he_pair":   "BTC-USD",
		"low_ex_pair":   "BTCUSD",
		"low_price":     "100.0",
		"high_exchange": "B",
		"high_he_pair":  "BTC-USD",
		"high_ex_pair":  "XBT/USD",
		"high_price":    "101.25",
	}, marketFields(sample()))

	m := schema.ArbMarket{HePair: "ETH-USD", Spread: math.Copysign(0, -1)}
	assert.Equal(t, map[string]any{
		"he_pair": "ETH-USD",
		"spread":  "-0",
	}, marketFields(m))
}

func TestRedisKeys(t *testing.T) {
	r := NewRedis(nil, "")
	assert.Equal(t, "redis", r.Name())
	assert.Equal(t, "arb:market:BTC-USD", r.marketKey("BTC-USD"))
	assert.Equal(t, "arb:spreads", r.spreadsKey())

	r = NewRedis(nil, "test")
	assert.Equal(t, "test:market:", r.marketKey(""))
}

func TestRedisWriteUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	err := NewRedis(client, "").Write(context.Background(), sample())
	assert.Error(t, err)
}

func TestNewArbUpdate(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	row := newArbUpdate("run-1", sample(), at)
	assert.Equal(t, ArbUpdate{
		RunID:        "run-1",
		HePair:       "BTC-USD",
		Spread:       1.25,
		HasLow:       true,
		LowExchange:  "A",
		LowExPair:    "BTCUSD",
		LowPrice:     "100.0",
		HasHigh:      true,
		HighExchange: "B",
		HighExPair:   "XBT/USD",
		HighPrice:    "101.25",
		ReceivedAt:   at,
	}, row)

	row = newArbUpdate("run-1", schema.ArbMarket{HePair: "X"}, at)
	assert.False(t, row.HasLow)
	assert.False(t, row.HasHigh)
	assert.Empty(t, row.LowExchange)
	assert.Equal(t, "arb_updates", row.TableName())
}
