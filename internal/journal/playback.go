package journal

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"arbview/pkg/exception"
)

// PlaybackConfig controls playback behavior.
type PlaybackConfig struct {
	Dir        string
	FilePrefix string
	// Speed paces frames by their receive times: 1 is real time, 0 disables pacing.
	Speed           float64
	DisableChecksum bool
	MaxPayloadSize  int
}

// Clock allows deterministic playback control.
type Clock interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Playback replays segments in file name order.
type Playback struct {
	cfg   PlaybackConfig
	clock Clock
}

// NewPlayback validates the config and creates a playback engine.
func NewPlayback(cfg PlaybackConfig) (*Playback, error) {
	if cfg.FilePrefix == "" {
		cfg.FilePrefix = defaultFilePrefix
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Playback{cfg: cfg, clock: realClock{}}, nil
}

// Validate checks if the config is usable.
func (c PlaybackConfig) Validate() error {
	switch {
	case c.Dir == "":
		return fmt.Errorf("%w: dir is empty", exception.ErrJournalInvalidConfig)
	case c.Speed < 0:
		return fmt.Errorf("%w: speed must be >= 0", exception.ErrJournalInvalidConfig)
	case c.MaxPayloadSize < 0:
		return fmt.Errorf("%w: max payload size must be >= 0", exception.ErrJournalInvalidConfig)
	}
	return nil
}

// WithClock swaps the clock implementation.
func (p *Playback) WithClock(clock Clock) *Playback {
	if clock != nil {
		p.clock = clock
	}
	return p
}

// Run calls handler for every frame. The payload is only valid during the
// call. A handler error stops playback and is returned.
func (p *Playback) Run(ctx context.Context, handler func(Frame, []byte) error) error {
	if handler == nil {
		return exception.ErrJournalNilHandler
	}
	files, err := p.Files()
	if err != nil {
		return err
	}

	var prev int64
	for _, path := range files {
		if err := p.playFile(ctx, path, handler, &prev); err != nil {
			return err
		}
	}
	return nil
}

// Files lists the segments Run would read, in order.
func (p *Playback) Files() ([]string, error) {
	entries, err := os.ReadDir(p.cfg.Dir)
	if err != nil {
		return nil, err
	}
	prefix := p.cfg.FilePrefix + "-"
	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, segmentSuffix) {
			continue
		}
		files = append(files, filepath.Join(p.cfg.Dir, name))
	}
	sort.Strings(files)
	return files, nil
}

func (p *Playback) playFile(ctx context.Context, path string, handler func(Frame, []byte) error, prev *int64) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	reader := NewReader(file, ReaderOptions{
		DisableChecksum: p.cfg.DisableChecksum,
		MaxPayloadSize:  p.cfg.MaxPayloadSize,
	})

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		frame, payload, err := reader.Next()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("read %s: %w", path, err)
		}

		if err := p.pace(ctx, frame, prev); err != nil {
			return err
		}
		if err := handler(frame, payload); err != nil {
			return err
		}
	}
}

func (p *Playback) pace(ctx context.Context, frame Frame, prev *int64) error {
	if p.cfg.Speed <= 0 || frame.RecvAt <= 0 {
		return nil
	}
	if *prev > 0 {
		if delta := frame.RecvAt - *prev; delta > 0 {
			if err := p.clock.Sleep(ctx, time.Duration(float64(delta)/p.cfg.Speed)); err != nil {
				return err
			}
		}
	}
	*prev = frame.RecvAt
	return nil
}
