package journal

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"

	"arbview/pkg/exception"
)

// Record layout, little endian:
//
//	0  magic "ARBJ"
//	4  version      uint16
//	6  header size  uint16
//	8  payload len  uint32
//	12 reserved     uint32
//	16 seq          uint64
//	24 recv unix ns int64
//	32 payload
//	.. crc32c(header+payload) uint32
const (
	recordVersion      uint16 = 1
	recordHeaderSize          = 32
	recordChecksumSize        = 4
	maxPayloadLen             = uint64(^uint32(0))
)

var (
	recordMagic = [4]byte{'A', 'R', 'B', 'J'}
	crcTable    = crc32.MakeTable(crc32.Castagnoli)
)

// Frame describes one journaled buffer.
type Frame struct {
	// Seq counts frames from 1 within one writer.
	Seq uint64
	// RecvAt is the receive time in unix nanoseconds.
	RecvAt int64
}

func encodeHeader(dst []byte, frame Frame, payloadLen int) {
	_ = dst[recordHeaderSize-1]
	copy(dst[0:4], recordMagic[:])
	binary.LittleEndian.PutUint16(dst[4:6], recordVersion)
	binary.LittleEndian.PutUint16(dst[6:8], uint16(recordHeaderSize))
	binary.LittleEndian.PutUint32(dst[8:12], uint32(payloadLen))
	binary.LittleEndian.PutUint32(dst[12:16], 0)
	binary.LittleEndian.PutUint64(dst[16:24], frame.Seq)
	binary.LittleEndian.PutUint64(dst[24:32], uint64(frame.RecvAt))
}

func checksum(header []byte, payload []byte) uint32 {
	crc := crc32.Update(0, crcTable, header)
	return crc32.Update(crc, crcTable, payload)
}

func decodeHeader(src []byte) (Frame, uint32, error) {
	if len(src) < recordHeaderSize {
		return Frame{}, 0, exception.ErrJournalInvalidHeaderSize
	}
	if !bytes.Equal(src[0:4], recordMagic[:]) {
		return Frame{}, 0, exception.ErrJournalInvalidMagic
	}
	if ver := binary.LittleEndian.Uint16(src[4:6]); ver != recordVersion {
		return Frame{}, 0, exception.ErrJournalUnsupportedVer
	}
	if size := binary.LittleEndian.Uint16(src[6:8]); size != recordHeaderSize {
		return Frame{}, 0, exception.ErrJournalInvalidHeaderSize
	}
	frame := Frame{
		Seq:    binary.LittleEndian.Uint64(src[16:24]),
		RecvAt: int64(binary.LittleEndian.Uint64(src[24:32])),
	}
	return frame, binary.LittleEndian.Uint32(src[8:12]), nil
}
