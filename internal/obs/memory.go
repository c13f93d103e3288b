package obs

import (
	"context"
	"runtime"
	"strconv"
	"time"

	"github.com/yanun0323/logs"
)

// MemoryReporter samples runtime memory stats and logs the delta between
// consecutive samples.
type MemoryReporter struct {
	buf        [1024]byte
	prev, curr runtime.MemStats
	prevAt     time.Time
	currAt     time.Time
}

// Run samples every interval until ctx is done.
func (m *MemoryReporter) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	m.Sample()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sample()
			logs.Info(string(m.AppendReport(m.buf[:0])))
		}
	}
}

// Sample reads the current stats, keeping the previous sample for deltas.
func (m *MemoryReporter) Sample() {
	m.prev, m.curr = m.curr, m.prev
	m.prevAt = m.currAt
	m.currAt = time.Now()

	runtime.ReadMemStats(&m.curr)

	if m.prevAt.IsZero() {
		m.prev = m.curr
		m.prevAt = m.currAt
	}
}

// AppendReport appends a one-line summary of the last two samples to dst.
func (m *MemoryReporter) AppendReport(dst []byte) []byte {
	dt := m.currAt.Sub(m.prevAt).Seconds()
	if dt <= 0 {
		dt = 1
	}

	dst = append(dst, "[HEAP] alloc_grow="...)
	dst = appendBytes(dst, m.curr.TotalAlloc-m.prev.TotalAlloc)
	dst = append(dst, " alloc="...)
	dst = appendBytes(dst, m.curr.HeapAlloc)
	dst = append(dst, " inuse="...)
	dst = appendBytes(dst, m.curr.HeapInuse)
	dst = append(dst, " objects="...)
	dst = strconv.AppendUint(dst, m.curr.HeapObjects, 10)
	dst = append(dst, " alloc_rate="...)
	rate, unit := carryFloat(float64(m.curr.TotalAlloc-m.prev.TotalAlloc) / dt)
	dst = strconv.AppendFloat(dst, rate, 'f', 2, 64)
	dst = append(dst, unit...)
	dst = append(dst, "/s"...)

	dst = append(dst, " [GC] times="...)
	dst = strconv.AppendUint(dst, uint64(m.curr.NumGC-m.prev.NumGC), 10)
	dst = append(dst, " stw="...)
	dst = strconv.AppendFloat(dst, float64(m.curr.PauseTotalNs-m.prev.PauseTotalNs)/1e6, 'f', 4, 64)
	dst = append(dst, "ms next_gc="...)
	dst = appendBytes(dst, m.curr.NextGC)
	dst = append(dst, " gc_cpu="...)
	dst = strconv.AppendFloat(dst, m.curr.GCCPUFraction, 'f', 6, 64)
	dst = append(dst, " live="...)
	dst = strconv.AppendInt(dst, int64(m.curr.Mallocs)-int64(m.curr.Frees), 10)
	return dst
}

const carryThreshold = 1 << 15

func appendBytes(dst []byte, value uint64) []byte {
	v, unit := carry(value)
	dst = strconv.AppendUint(dst, v, 10)
	return append(dst, unit...)
}

func carry(value uint64) (uint64, string) {
	if value < carryThreshold {
		return value, "B"
	}
	value >>= 10
	if value < carryThreshold {
		return value, "KB"
	}
	value >>= 10
	if value < carryThreshold {
		return value, "MB"
	}
	return value >> 10, "GB"
}

func carryFloat(value float64) (float64, string) {
	if value < carryThreshold {
		return value, "B"
	}
	value /= 1024
	if value < carryThreshold {
		return value, "KB"
	}
	value /= 1024
	if value < carryThreshold {
		return value, "MB"
	}
	return value / 1024, "GB"
}
