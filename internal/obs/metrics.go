package obs

import (
	"errors"
	"sync/atomic"
	"time"

	"arbview/pkg/exception"
)

// DecodeErrorKind groups decode failures for counting.
type DecodeErrorKind uint8

const (
	DecodeErrorOther DecodeErrorKind = iota
	DecodeErrorTruncated
	DecodeErrorLengthOverrun
	DecodeErrorUnknownWireType
	DecodeErrorMalformedVarint
	decodeErrorKindCount
)

func (k DecodeErrorKind) String() string {
	switch k {
	case DecodeErrorTruncated:
		return "truncated"
	case DecodeErrorLengthOverrun:
		return "length_overrun"
	case DecodeErrorUnknownWireType:
		return "unknown_wire_type"
	case DecodeErrorMalformedVarint:
		return "malformed_varint"
	default:
		return "other"
	}
}

// ClassifyDecodeError maps a decode error to its counter.
func ClassifyDecodeError(err error) DecodeErrorKind {
	switch {
	case errors.Is(err, exception.ErrDecodeTruncated):
		return DecodeErrorTruncated
	case errors.Is(err, exception.ErrDecodeLengthOverrun):
		return DecodeErrorLengthOverrun
	case errors.Is(err, exception.ErrDecodeUnknownWireType):
		return DecodeErrorUnknownWireType
	case errors.Is(err, exception.ErrDecodeMalformedVarint):
		return DecodeErrorMalformedVarint
	default:
		return DecodeErrorOther
	}
}

// Metrics collects lightweight counters and latency stats.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	buffers      uint64
	applied      uint64
	decodeErrors [decodeErrorKindCount]uint64
	queueDrops   uint64
	queueClosed  uint64
	sinkErrors   uint64
	journalDrops uint64

	applyLatency LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	Buffers      uint64
	Applied      uint64
	DecodeErrors map[DecodeErrorKind]uint64
	QueueDrops   uint64
	QueueClosed  uint64
	SinkErrors   uint64
	JournalDrops uint64
	ApplyLatency LatencySnapshot
}

// Dropped returns the number of buffers rejected by the decoder.
func (s Snapshot) Dropped() uint64 {
	var n uint64
	for _, v := range s.DecodeErrors {
		n += v
	}
	return n
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// IncBuffer records an inbound buffer.
func (m *Metrics) IncBuffer() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.buffers, 1)
}

// ObserveApplied records an applied update and how long it took.
func (m *Metrics) ObserveApplied(d time.Duration) {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.applied, 1)
	m.applyLatency.Observe(d)
}

// IncDecodeError records a dropped buffer.
func (m *Metrics) IncDecodeError(err error) {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.decodeErrors[ClassifyDecodeError(err)], 1)
}

// IncQueueDrop records a publish rejected by a full queue.
func (m *Metrics) IncQueueDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueDrops, 1)
}

// IncQueueClosed records a closed-queue publish attempt.
func (m *Metrics) IncQueueClosed() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueClosed, 1)
}

// IncSinkError records a failed sink write.
func (m *Metrics) IncSinkError() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.sinkErrors, 1)
}

// IncJournalDrop records a frame the journal could not accept.
func (m *Metrics) IncJournalDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.journalDrops, 1)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	decodeErrors := make(map[DecodeErrorKind]uint64)
	for i := range m.decodeErrors {
		if v := atomic.LoadUint64(&m.decodeErrors[i]); v > 0 {
			decodeErrors[DecodeErrorKind(i)] = v
		}
	}
	return Snapshot{
		Buffers:      atomic.LoadUint64(&m.buffers),
		Applied:      atomic.LoadUint64(&m.applied),
		DecodeErrors: decodeErrors,
		QueueDrops:   atomic.LoadUint64(&m.queueDrops),
		QueueClosed:  atomic.LoadUint64(&m.queueClosed),
		SinkErrors:   atomic.LoadUint64(&m.sinkErrors),
		JournalDrops: atomic.LoadUint64(&m.journalDrops),
		ApplyLatency: m.applyLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
