package journal

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"arbview/pkg/exception"
)

// Writer appends frames to segment files from a buffered queue.
// TryAppend is meant for a single producer; Seq follows append order.
type Writer struct {
	cfg Config
	ch  chan appendRequest
	wg  sync.WaitGroup
	err atomic.Pointer[error]
	seq atomic.Uint64
	now func() time.Time

	started atomic.Bool
	closed  atomic.Bool
}

// NewWriter creates a writer and ensures the target directory exists.
func NewWriter(cfg Config) (*Writer, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}
	return &Writer{
		cfg: cfg,
		ch:  make(chan appendRequest, cfg.QueueSize),
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

// Start runs the writer loop in a new goroutine.
func (w *Writer) Start(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return exception.ErrJournalAlreadyStarted
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()
	return nil
}

// Close stops accepting frames, writes what is queued and syncs.
func (w *Writer) Close() error {
	if w.closed.CompareAndSwap(false, true) {
		close(w.ch)
	}
	w.wg.Wait()
	return w.Err()
}

// Err returns the first error observed by the writer, if any.
func (w *Writer) Err() error {
	if p := w.err.Load(); p != nil {
		return *p
	}
	return nil
}

// Appended returns how many frames have been accepted.
func (w *Writer) Appended() uint64 {
	return w.seq.Load()
}

// TryAppend enqueues a frame without blocking.
func (w *Writer) TryAppend(payload []byte) (err error) {
	if w.closed.Load() {
		return exception.ErrJournalClosed
	}
	if !w.started.Load() {
		return exception.ErrJournalNotStarted
	}
	if err := w.Err(); err != nil {
		return err
	}
	if uint64(len(payload)) > maxPayloadLen {
		return exception.ErrJournalPayloadTooLarge
	}
	if w.cfg.CopyPayload && len(payload) > 0 {
		payload = append([]byte(nil), payload...)
	}

	defer func() {
		// send on a channel closed after the check above
		if recover() != nil {
			err = exception.ErrJournalClosed
		}
	}()

	req := appendRequest{recvAt: w.now().UnixNano(), payload: payload}
	select {
	case w.ch <- req:
		w.seq.Add(1)
		return nil
	default:
		return exception.ErrJournalQueueFull
	}
}

func (w *Writer) run(ctx context.Context) {
	var (
		seg         *segmentWriter
		segID       uint64
		seq         uint64
		headerBuf   = make([]byte, recordHeaderSize)
		flushC      <-chan time.Time
		syncC       <-chan time.Time
		flushTicker *time.Ticker
		syncTicker  *time.Ticker
	)

	if w.cfg.FlushInterval > 0 {
		flushTicker = time.NewTicker(w.cfg.FlushInterval)
		flushC = flushTicker.C
		defer flushTicker.Stop()
	}
	if w.cfg.SyncInterval > 0 {
		syncTicker = time.NewTicker(w.cfg.SyncInterval)
		syncC = syncTicker.C
		defer syncTicker.Stop()
	}

	defer func() {
		if err := closeSegment(seg); err != nil {
			w.setErr(err)
		}
	}()

	write := func(req appendRequest) bool {
		seq++
		if err := w.writeRecord(&seg, &segID, headerBuf, Frame{Seq: seq, RecvAt: req.recvAt}, req.payload); err != nil {
			w.setErr(err)
			return false
		}
		return true
	}

	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case req, ok := <-w.ch:
					if !ok || !write(req) {
						return
					}
				default:
					return
				}
			}
		case req, ok := <-w.ch:
			if !ok || !write(req) {
				return
			}
		case <-flushC:
			if seg != nil {
				if err := seg.buf.Flush(); err != nil {
					w.setErr(err)
					return
				}
			}
		case <-syncC:
			if seg != nil {
				if err := seg.sync(); err != nil {
					w.setErr(err)
					return
				}
			}
		}
	}
}

func (w *Writer) writeRecord(seg **segmentWriter, segID *uint64, headerBuf []byte, frame Frame, payload []byte) error {
	now := w.now()
	size := int64(recordHeaderSize + len(payload) + recordChecksumSize)
	if w.shouldRotate(*seg, now, size) {
		if err := closeSegment(*seg); err != nil {
			return err
		}
		*seg = nil
		opened, err := w.openSegment(segID, now)
		if err != nil {
			return err
		}
		*seg = opened
	}

	encodeHeader(headerBuf, frame, len(payload))
	var sumBuf [recordChecksumSize]byte
	binary.LittleEndian.PutUint32(sumBuf[:], checksum(headerBuf, payload))

	s := *seg
	if _, err := s.buf.Write(headerBuf); err != nil {
		return err
	}
	if _, err := s.buf.Write(payload); err != nil {
		return err
	}
	if _, err := s.buf.Write(sumBuf[:]); err != nil {
		return err
	}
	s.size += size
	return nil
}

func (w *Writer) shouldRotate(seg *segmentWriter, now time.Time, nextSize int64) bool {
	if seg == nil {
		return true
	}
	// a record larger than a whole segment still gets a segment of its own
	if seg.size > 0 && seg.size+nextSize > w.cfg.SegmentMaxBytes {
		return true
	}
	return w.cfg.SegmentMaxDuration > 0 && now.Sub(seg.openedAt) >= w.cfg.SegmentMaxDuration
}

func (w *Writer) openSegment(segID *uint64, now time.Time) (*segmentWriter, error) {
	ts := now.Format("20060102-150405")
	for {
		*segID++
		name := fmt.Sprintf("%s-%s-%06d%s", w.cfg.FilePrefix, ts, *segID, segmentSuffix)
		file, err := os.OpenFile(filepath.Join(w.cfg.Dir, name), os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
		if err != nil {
			if errors.Is(err, os.ErrExist) {
				continue
			}
			return nil, err
		}
		return &segmentWriter{
			file:     file,
			buf:      bufio.NewWriterSize(file, w.cfg.BufferSize),
			openedAt: now,
		}, nil
	}
}

func (w *Writer) setErr(err error) {
	if err == nil {
		return
	}
	w.err.CompareAndSwap(nil, &err)
}

type appendRequest struct {
	recvAt  int64
	payload []byte
}

type segmentWriter struct {
	file     *os.File
	buf      *bufio.Writer
	size     int64
	openedAt time.Time
}

func (s *segmentWriter) sync() error {
	if err := s.buf.Flush(); err != nil {
		return err
	}
	return s.file.Sync()
}

func closeSegment(seg *segmentWriter) error {
	if seg == nil {
		return nil
	}
	if err := seg.sync(); err != nil {
		_ = seg.file.Close()
		return err
	}
	return seg.file.Close()
}
