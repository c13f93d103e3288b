package journal

import (
	"bufio"
	"encoding/binary"
	"io"

	"arbview/pkg/exception"
)

// ReaderOptions controls record decoding.
type ReaderOptions struct {
	DisableChecksum bool
	MaxPayloadSize  int
}

// Reader decodes records sequentially.
type Reader struct {
	r         *bufio.Reader
	opts      ReaderOptions
	headerBuf []byte
	payload   []byte
}

// NewReader wraps r with record decoding.
func NewReader(r io.Reader, opts ReaderOptions) *Reader {
	return &Reader{
		r:         bufio.NewReader(r),
		opts:      opts,
		headerBuf: make([]byte, recordHeaderSize),
	}
}

// Next returns the next frame and its payload, or io.EOF at a clean end.
// The payload is only valid until the next call to Next.
func (r *Reader) Next() (Frame, []byte, error) {
	n, err := io.ReadFull(r.r, r.headerBuf)
	if err != nil {
		if err == io.EOF && n == 0 {
			return Frame{}, nil, io.EOF
		}
		return Frame{}, nil, err
	}

	frame, payloadLen, err := decodeHeader(r.headerBuf)
	if err != nil {
		return frame, nil, err
	}
	if r.opts.MaxPayloadSize > 0 && payloadLen > uint32(r.opts.MaxPayloadSize) {
		return frame, nil, exception.ErrJournalPayloadTooLarge
	}

	if cap(r.payload) < int(payloadLen) {
		r.payload = make([]byte, payloadLen)
	}
	r.payload = r.payload[:payloadLen]
	if _, err := io.ReadFull(r.r, r.payload); err != nil {
		return frame, nil, err
	}

	var sumBuf [recordChecksumSize]byte
	if _, err := io.ReadFull(r.r, sumBuf[:]); err != nil {
		return frame, nil, err
	}
	if !r.opts.DisableChecksum {
		if checksum(r.headerBuf, r.payload) != binary.LittleEndian.Uint32(sumBuf[:]) {
			return frame, nil, exception.ErrJournalChecksumMismatch
		}
	}

	return frame, r.payload, nil
}
