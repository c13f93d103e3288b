package main

import (
	"bytes"
	"context"
	"testing"

	"arbview/internal/chaos"
	"arbview/internal/codec"
	"arbview/internal/journal"
	"arbview/internal/obs"
	"arbview/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func journalOf(t *testing.T, frames ...[]byte) *journal.Playback {
	t.Helper()
	dir := t.TempDir()
	w, err := journal.NewWriter(journal.DefaultConfig(dir))
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	for _, f := range frames {
		require.NoError(t, w.TryAppend(f))
	}
	require.NoError(t, w.Close())

	pb, err := journal.NewPlayback(journal.PlaybackConfig{Dir: dir})
	require.NoError(t, err)
	return pb
}

func TestReplay(t *testing.T) {
	low := &schema.ActiveMarket{Exchange: "binance", HePair: "BTC/USD", ExPair: "BTCUSD", Price: "100"}
	high := &schema.ActiveMarket{Exchange: "kraken", HePair: "BTC/USD", ExPair: "XBTUSD", Price: "101"}

	pb := journalOf(t,
		codec.EncodeArbMarket(nil, schema.ArbMarket{HePair: "ETH/USD", Spread: 0.5}),
		codec.EncodeArbMarket(nil, schema.ArbMarket{HePair: "BTC/USD", Spread: 0.2, Low: low, High: high}),
		[]byte{0x08},
		codec.EncodeArbMarket(nil, schema.ArbMarket{HePair: "BTC/USD", Spread: 1, Low: low, High: high}),
	)

	var trace bytes.Buffer
	res, err := replay(context.Background(), pb, nil, &trace)
	require.NoError(t, err)

	assert.Equal(t, uint64(4), res.frames)
	assert.Equal(t, uint64(3), res.snap.Applied)
	assert.Equal(t, uint64(1), res.snap.Dropped())
	require.Len(t, res.rows, 2)
	assert.Equal(t, "BTC/USD", res.rows[0].HePair)
	assert.Equal(t, "ETH/USD", res.rows[1].HePair)

	lines := bytes.Split(bytes.TrimSpace(trace.Bytes()), []byte("\n"))
	assert.Len(t, lines, 4)
	assert.Contains(t, string(lines[0]), "seq=1")
	assert.NotContains(t, string(lines[2]), " ok")
}

func TestReplayEmpty(t *testing.T) {
	res, err := replay(context.Background(), journalOf(t), nil, nil)
	require.NoError(t, err)
	assert.Zero(t, res.frames)
	assert.Empty(t, res.rows)
}

func TestReplayWithFaults(t *testing.T) {
	frames := make([][]byte, 0, 10)
	for i := range 10 {
		frames = append(frames, codec.EncodeArbMarket(nil, schema.ArbMarket{HePair: "BTC/USD", Spread: float64(i)}))
	}

	engine, err := chaos.NewEngine(chaos.Config{Seed: 7, CorruptRate: 1})
	require.NoError(t, err)
	res, err := replay(context.Background(), journalOf(t, frames...), engine, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), res.frames)
	assert.Zero(t, res.snap.Applied)
	assert.Equal(t, uint64(10), res.snap.Dropped())
	assert.Empty(t, res.rows)

	engine, err = chaos.NewEngine(chaos.Config{Seed: 7, DuplicateRate: 1, ReorderWindow: 4})
	require.NoError(t, err)
	res, err = replay(context.Background(), journalOf(t, frames...), engine, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(20), res.frames)
	assert.Equal(t, uint64(20), res.snap.Applied)
	require.Len(t, res.rows, 1)
}

func TestPrintSummary(t *testing.T) {
	var out bytes.Buffer
	printSummary(&out, result{
		frames: 3,
		snap: obs.Snapshot{
			Applied:      2,
			DecodeErrors: map[obs.DecodeErrorKind]uint64{obs.DecodeErrorTruncated: 1},
		},
	})
	assert.Contains(t, out.String(), "frames=3 applied=2 dropped=1 pairs=0")
	assert.Contains(t, out.String(), "decode_error kind=truncated count=1")
	assert.NotContains(t, out.String(), "apply_latency")
}
