package pipeline

import (
	"errors"
	"testing"

	"arbview/internal/codec"
	"arbview/internal/obs"
	"arbview/internal/schema"
	"arbview/internal/state"
	"arbview/internal/view"
	"arbview/pkg/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encode(m schema.ArbMarket) []byte {
	return codec.EncodeArbMarket(nil, m)
}

func TestPipelineReplacesByPair(t *testing.T) {
	p := New(Option{})

	require.NoError(t, p.OnBuffer(encode(schema.ArbMarket{
		HePair: "BTC-USD",
		Spread: 1.5,
		Low:    &schema.ActiveMarket{Exchange: "A", Price: "100.0"},
		High:   &schema.ActiveMarket{Exchange: "B", Price: "101.5"},
	})))
	require.NoError(t, p.OnBuffer(encode(schema.ArbMarket{
		HePair: "BTC-USD",
		Spread: 0.8,
		Low:    &schema.ActiveMarket{Exchange: "C", Price: "100.2"},
		High:   &schema.ActiveMarket{Exchange: "B", Price: "101.0"},
	})))

	snap := p.Snapshot()
	require.Equal(t, 1, snap.Len())
	got, ok := snap.Get("BTC-USD")
	require.True(t, ok)
	assert.Equal(t, 0.8, got.Spread)
	assert.Equal(t, "C", got.Low.Exchange)
}

func TestPipelineViewOrder(t *testing.T) {
	p := New(Option{})
	require.NoError(t, p.OnBuffer(encode(schema.ArbMarket{HePair: "ETH-USD", Spread: 2.0})))
	require.NoError(t, p.OnBuffer(encode(schema.ArbMarket{HePair: "BTC-USD", Spread: 5.0})))

	rows := p.CurrentView()
	require.Len(t, rows, 2)
	assert.Equal(t, "BTC-USD", rows[0].HePair)
	assert.Equal(t, 5.0, rows[0].Spread)
	assert.Equal(t, "ETH-USD", rows[1].HePair)
	assert.Equal(t, 2, p.Len())
}

func TestPipelineEmptyView(t *testing.T) {
	p := New(Option{})
	assert.Empty(t, p.CurrentView())
	assert.Empty(t, p.Markets())
	assert.Equal(t, 0, p.Snapshot().Len())
}

func TestPipelineDropsMalformedBuffer(t *testing.T) {
	metrics := obs.NewMetrics()
	var applied []schema.ArbMarket
	p := New(Option{
		Metrics:   metrics,
		OnApplied: func(m schema.ArbMarket) { applied = append(applied, m) },
	})
	require.NoError(t, p.OnBuffer(encode(schema.ArbMarket{HePair: "BTC-USD", Spread: 1.5})))

	before := p.Snapshot()
	beforeView := p.Markets()

	full := encode(schema.ArbMarket{
		HePair: "BTC-USD",
		Spread: 9,
		Low:    &schema.ActiveMarket{Exchange: "A", Price: "1"},
	})
	err := p.OnBuffer(full[:len(full)-2])
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrDecodeLengthOverrun), "got %v", err)
	var de *codec.DecodeError
	assert.True(t, errors.As(err, &de))

	require.NoError(t, state.CompareSnapshots(before, p.Snapshot()))
	assert.Equal(t, beforeView, p.Markets())
	assert.Len(t, applied, 1)

	snap := metrics.Snapshot()
	assert.Equal(t, uint64(2), snap.Buffers)
	assert.Equal(t, uint64(1), snap.Applied)
	assert.Equal(t, uint64(1), snap.Dropped())
	assert.Equal(t, uint64(1), snap.DecodeErrors[obs.DecodeErrorLengthOverrun])
}

func TestPipelineKeepsProcessingAfterDrop(t *testing.T) {
	p := New(Option{})
	require.Error(t, p.OnBuffer([]byte{0x0e}))
	require.NoError(t, p.OnBuffer(encode(schema.ArbMarket{HePair: "ETH-USD", Spread: 1})))
	assert.Equal(t, 1, p.Len())
}

func TestPipelineOnApplied(t *testing.T) {
	var applied []string
	p := New(Option{OnApplied: func(m schema.ArbMarket) {
		applied = append(applied, m.HePair)
	}})
	for _, pair := range []string{"A", "B", "A"} {
		require.NoError(t, p.OnBuffer(encode(schema.ArbMarket{HePair: pair, Spread: 1})))
	}
	assert.Equal(t, []string{"A", "B", "A"}, applied)
}

func TestPipelineBufferNotRetained(t *testing.T) {
	p := New(Option{})
	buf := encode(schema.ArbMarket{HePair: "BTC-USD", Low: &schema.ActiveMarket{Exchange: "A"}})
	require.NoError(t, p.OnBuffer(buf))
	for i := range buf {
		buf[i] = 0
	}

	got := p.Markets()
	require.Len(t, got, 1)
	assert.Equal(t, "BTC-USD", got[0].HePair)
	assert.Equal(t, "A", got[0].Low.Exchange)
}

func TestPipelineMarketsAreCopies(t *testing.T) {
	p := New(Option{})
	require.NoError(t, p.OnBuffer(encode(schema.ArbMarket{HePair: "BTC-USD", Low: &schema.ActiveMarket{Price: "1"}})))

	got := p.Markets()
	got[0].Low.Price = "mutated"
	assert.Equal(t, "1", p.Markets()[0].Low.Price)
}

func TestPipelineViewMatchesRecompute(t *testing.T) {
	p := New(Option{})
	for i, pair := range []string{"A", "B", "C", "D", "B", "E", "A"} {
		require.NoError(t, p.OnBuffer(encode(schema.ArbMarket{HePair: pair, Spread: float64(i % 3)})))
		assert.Equal(t, view.Recompute(p.Snapshot()), p.Markets())
	}
}
