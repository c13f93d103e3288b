// Package journal appends raw ingress frames to rotating segment files and
// plays them back in order.
//
// The journal is never read by the running service; it exists so a session
// can be replayed offline through a fresh pipeline.
package journal

import (
	"fmt"
	"time"

	"arbview/pkg/exception"
)

const (
	defaultSegmentMaxBytes int64 = 256 << 20
	defaultQueueSize             = 4096
	defaultBufferSize            = 64 * 1024
	defaultFilePrefix            = "frames"
	segmentSuffix                = ".arbj"
)

var defaultSegmentMaxDuration = 15 * time.Minute

// Config controls writer behavior.
type Config struct {
	Dir                string
	SegmentMaxBytes    int64
	SegmentMaxDuration time.Duration
	QueueSize          int
	BufferSize         int
	FilePrefix         string
	FlushInterval      time.Duration
	SyncInterval       time.Duration
	// CopyPayload copies frames on append. Leave it off when callers never
	// mutate a frame after handing it over.
	CopyPayload bool
}

// DefaultConfig returns a baseline configuration writing under dir.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:                dir,
		SegmentMaxBytes:    defaultSegmentMaxBytes,
		SegmentMaxDuration: defaultSegmentMaxDuration,
		QueueSize:          defaultQueueSize,
		BufferSize:         defaultBufferSize,
		FilePrefix:         defaultFilePrefix,
		FlushInterval:      time.Second,
	}
}

func (c Config) withDefaults() Config {
	if c.SegmentMaxBytes == 0 {
		c.SegmentMaxBytes = defaultSegmentMaxBytes
	}
	if c.QueueSize == 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.BufferSize == 0 {
		c.BufferSize = defaultBufferSize
	}
	if c.FilePrefix == "" {
		c.FilePrefix = defaultFilePrefix
	}
	return c
}

// Validate checks if the configuration is usable.
func (c Config) Validate() error {
	switch {
	case c.Dir == "":
		return fmt.Errorf("%w: dir is empty", exception.ErrJournalInvalidConfig)
	case c.SegmentMaxBytes <= 0:
		return fmt.Errorf("%w: segment max bytes must be > 0", exception.ErrJournalInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue size must be > 0", exception.ErrJournalInvalidConfig)
	case c.BufferSize <= 0:
		return fmt.Errorf("%w: buffer size must be > 0", exception.ErrJournalInvalidConfig)
	case c.FilePrefix == "":
		return fmt.Errorf("%w: file prefix is empty", exception.ErrJournalInvalidConfig)
	case c.FlushInterval < 0 || c.SyncInterval < 0:
		return fmt.Errorf("%w: intervals must be >= 0", exception.ErrJournalInvalidConfig)
	}
	return nil
}
