// Package pipeline is the entry point fed by the ingress adapter.
//
// Every buffer runs decode, upsert and recompute to completion before
// OnBuffer returns. OnBuffer and Snapshot must be called from one goroutine;
// CurrentView and Markets read an atomically published view and may be
// called from anywhere.
package pipeline

import (
	"sync/atomic"
	"time"

	"arbview/internal/codec"
	"arbview/internal/obs"
	"arbview/internal/schema"
	"arbview/internal/state"
	"arbview/internal/view"

	"github.com/yanun0323/logs"
)

// Option configures a Pipeline.
type Option struct {
	// Metrics is optional.
	Metrics *obs.Metrics
	// OnApplied is called with each record after it has been stored and the
	// view republished. It runs on the OnBuffer goroutine and must not block.
	OnApplied func(schema.ArbMarket)
}

// Pipeline owns the store and the last computed view.
type Pipeline struct {
	store     *state.Store
	view      atomic.Pointer[[]schema.ArbMarket]
	metrics   *obs.Metrics
	onApplied func(schema.ArbMarket)
}

// New creates a pipeline with an empty store.
func New(opt Option) *Pipeline {
	p := &Pipeline{
		store:     state.NewStore(),
		metrics:   opt.Metrics,
		onApplied: opt.OnApplied,
	}
	empty := []schema.ArbMarket{}
	p.view.Store(&empty)
	return p
}

// OnBuffer decodes one serialized ArbMarket and folds it into the table.
// A buffer that fails to decode is dropped: the store and view are left as
// they were and the *codec.DecodeError is returned after being logged.
// buf is not retained.
func (p *Pipeline) OnBuffer(buf []byte) error {
	start := time.Now()
	p.metrics.IncBuffer()

	m, err := codec.DecodeArbMarket(buf)
	if err != nil {
		p.metrics.IncDecodeError(err)
		logs.Errorf("drop buffer, len: %d, err: %+v", len(buf), err)
		return err
	}

	p.store.Upsert(m)
	markets := view.Recompute(p.store.Snapshot())
	p.view.Store(&markets)
	p.metrics.ObserveApplied(time.Since(start))

	if p.onApplied != nil {
		p.onApplied(m)
	}
	return nil
}

// Snapshot returns an isolated copy of the store.
func (p *Pipeline) Snapshot() state.Snapshot {
	return p.store.Snapshot()
}

// Markets returns the current view as full records, largest spread first.
func (p *Pipeline) Markets() []schema.ArbMarket {
	published := *p.view.Load()
	out := make([]schema.ArbMarket, len(published))
	for i, m := range published {
		out[i] = m.Clone()
	}
	return out
}

// CurrentView returns the current view projected to presentation rows.
func (p *Pipeline) CurrentView() []view.Row {
	return view.Rows(*p.view.Load())
}

// Len returns the number of rows in the current view.
func (p *Pipeline) Len() int {
	return len(*p.view.Load())
}
