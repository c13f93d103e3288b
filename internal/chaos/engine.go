// Package chaos injects transport faults into a stream of frames: loss,
// duplication, reordering and corruption.
package chaos

import (
	"fmt"
	"math/rand"
	"time"
)

// corruptTag is field 1 with wire type 7, which no decoder accepts.
const corruptTag = 1<<3 | 7

// Config controls fault injection.
type Config struct {
	Seed          int64
	DropRate      float64
	DuplicateRate float64
	CorruptRate   float64
	ReorderWindow int
}

// Enabled reports whether any fault is configured.
func (c Config) Enabled() bool {
	return c.DropRate > 0 || c.DuplicateRate > 0 || c.CorruptRate > 0 || c.ReorderWindow > 1
}

// Validate ensures the config is within supported ranges.
func (c Config) Validate() error {
	for name, rate := range map[string]float64{
		"dropRate":      c.DropRate,
		"duplicateRate": c.DuplicateRate,
		"corruptRate":   c.CorruptRate,
	} {
		if rate < 0 || rate > 1 {
			return fmt.Errorf("%s must be between 0 and 1", name)
		}
	}
	if c.ReorderWindow < 0 {
		return fmt.Errorf("reorderWindow must be >= 0")
	}
	return nil
}

// Engine applies fault rules to frames. It is not safe for concurrent use.
type Engine struct {
	cfg     Config
	rng     *rand.Rand
	pending [][]byte
}

// NewEngine creates an engine. A zero seed uses the current time.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ReorderWindow == 0 {
		cfg.ReorderWindow = 1
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UTC().UnixNano()
	}
	return &Engine{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// Process applies faults to one frame and returns the frames to send now.
// Returned frames may alias frame.
func (e *Engine) Process(frame []byte) [][]byte {
	if e == nil {
		return [][]byte{frame}
	}
	if e.cfg.DropRate > 0 && e.rng.Float64() < e.cfg.DropRate {
		return nil
	}
	frame = e.applyCorrupt(frame)
	if e.cfg.ReorderWindow <= 1 {
		return e.applyDuplicate(frame)
	}
	e.pending = append(e.pending, frame)
	if len(e.pending) < e.cfg.ReorderWindow {
		return nil
	}
	return e.applyDuplicate(e.popRandom())
}

// Flush returns frames still held for reordering.
func (e *Engine) Flush() [][]byte {
	if e == nil || len(e.pending) == 0 {
		return nil
	}
	out := make([][]byte, 0, len(e.pending))
	for len(e.pending) > 0 {
		out = append(out, e.applyDuplicate(e.popRandom())...)
	}
	return out
}

func (e *Engine) popRandom() []byte {
	idx := e.rng.Intn(len(e.pending))
	frame := e.pending[idx]
	e.pending = append(e.pending[:idx], e.pending[idx+1:]...)
	return frame
}

func (e *Engine) applyDuplicate(frame []byte) [][]byte {
	out := [][]byte{frame}
	if e.cfg.DuplicateRate > 0 && e.rng.Float64() < e.cfg.DuplicateRate {
		out = append(out, frame)
	}
	return out
}

// applyCorrupt appends a tag with an unknown wire type so the frame is
// guaranteed to fail decoding rather than decode into a partial record.
func (e *Engine) applyCorrupt(frame []byte) []byte {
	if e.cfg.CorruptRate <= 0 || e.rng.Float64() >= e.cfg.CorruptRate {
		return frame
	}
	out := make([]byte, len(frame), len(frame)+1)
	copy(out, frame)
	return append(out, corruptTag)
}
