// Package sink mirrors applied records to external stores.
//
// Sinks are write-only: nothing they hold is ever read back into the
// pipeline. They are drained off a queue by a Dispatcher so slow I/O never
// runs on the OnBuffer goroutine.
package sink

import (
	"context"
	"time"

	"arbview/internal/bus"
	"arbview/internal/obs"
	"arbview/internal/schema"

	"github.com/yanun0323/logs"
)

const defaultWriteTimeout = 3 * time.Second

// Sink receives applied records.
type Sink interface {
	Name() string
	Write(ctx context.Context, m schema.ArbMarket) error
}

// Dispatcher fans records out to sinks.
type Dispatcher struct {
	sinks   []Sink
	metrics *obs.Metrics
	timeout time.Duration
}

// NewDispatcher builds a dispatcher. A non-positive timeout uses the default.
func NewDispatcher(metrics *obs.Metrics, timeout time.Duration, sinks ...Sink) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultWriteTimeout
	}
	return &Dispatcher{
		sinks:   sinks,
		metrics: metrics,
		timeout: timeout,
	}
}

// Len returns the number of sinks.
func (d *Dispatcher) Len() int {
	return len(d.sinks)
}

// Dispatch writes m to every sink. Failures are logged and counted only.
func (d *Dispatcher) Dispatch(ctx context.Context, m schema.ArbMarket) {
	for _, s := range d.sinks {
		wctx, cancel := context.WithTimeout(ctx, d.timeout)
		err := s.Write(wctx, m)
		cancel()
		if err != nil {
			d.metrics.IncSinkError()
			logs.Errorf("sink %s write %q, err: %+v", s.Name(), m.HePair, err)
		}
	}
}

// Run drains q until ctx is done or q is closed.
func (d *Dispatcher) Run(ctx context.Context, q *bus.Queue[schema.ArbMarket]) {
	q.Run(ctx, func(m schema.ArbMarket) {
		d.Dispatch(ctx, m)
	})
}
