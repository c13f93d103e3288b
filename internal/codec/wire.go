package codec

import (
	"encoding/binary"

	"arbview/internal/schema"
	"arbview/pkg/exception"
)

const maxVarintLen = 10

func appendVarint(dst []byte, v uint64) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

func varintSize(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

func appendTag(dst []byte, field schema.FieldNumber, wt schema.WireType) []byte {
	return appendVarint(dst, uint64(field)<<3|uint64(wt))
}

func tagSize(field schema.FieldNumber) int {
	return varintSize(uint64(field) << 3)
}

func appendString(dst []byte, field schema.FieldNumber, s string) []byte {
	if s == "" {
		return dst
	}
	dst = appendTag(dst, field, schema.WireBytes)
	dst = appendVarint(dst, uint64(len(s)))
	return append(dst, s...)
}

func stringSize(field schema.FieldNumber, s string) int {
	if s == "" {
		return 0
	}
	return tagSize(field) + varintSize(uint64(len(s))) + len(s)
}

// consumeVarint reads a varint starting at off, bounded by end.
func consumeVarint(src []byte, off, end int) (uint64, int, error) {
	var v uint64
	for i := 0; i < maxVarintLen; i++ {
		if off+i >= end {
			return 0, off, newDecodeError(exception.ErrDecodeTruncated, off, 0)
		}
		b := src[off+i]
		if i == maxVarintLen-1 && b > 1 {
			return 0, off, newDecodeError(exception.ErrDecodeMalformedVarint, off, 0)
		}
		v |= uint64(b&0x7f) << (7 * i)
		if b < 0x80 {
			return v, off + i + 1, nil
		}
	}
	return 0, off, newDecodeError(exception.ErrDecodeMalformedVarint, off, 0)
}

func consumeTag(src []byte, off, end int) (schema.FieldNumber, schema.WireType, int, error) {
	v, next, err := consumeVarint(src, off, end)
	if err != nil {
		return 0, 0, off, err
	}
	return schema.FieldNumber(v >> 3), schema.WireType(v & 0x7), next, nil
}

// consumeBytes returns the [start, stop) bounds of a length-delimited value.
func consumeBytes(src []byte, off, end int, field schema.FieldNumber) (int, int, error) {
	n, next, err := consumeVarint(src, off, end)
	if err != nil {
		return 0, 0, withField(err, field)
	}
	if n > uint64(end-next) {
		return 0, 0, newDecodeError(exception.ErrDecodeLengthOverrun, off, field)
	}
	return next, next + int(n), nil
}

func consumeFixed64(src []byte, off, end int, field schema.FieldNumber) (uint64, int, error) {
	if end-off < 8 {
		return 0, off, newDecodeError(exception.ErrDecodeTruncated, off, field)
	}
	return binary.LittleEndian.Uint64(src[off : off+8]), off + 8, nil
}

// skipField steps over a value of an unrecognised field by its wire type's rule.
func skipField(src []byte, off, end int, field schema.FieldNumber, wt schema.WireType, tagOff int) (int, error) {
	switch wt {
	case schema.WireVarint:
		_, next, err := consumeVarint(src, off, end)
		if err != nil {
			return off, withField(err, field)
		}
		return next, nil
	case schema.WireFixed64:
		_, next, err := consumeFixed64(src, off, end, field)
		return next, err
	case schema.WireFixed32:
		if end-off < 4 {
			return off, newDecodeError(exception.ErrDecodeTruncated, off, field)
		}
		return off + 4, nil
	case schema.WireBytes:
		_, stop, err := consumeBytes(src, off, end, field)
		if err != nil {
			return off, err
		}
		return stop, nil
	case schema.WireStartGroup:
		return skipGroup(src, off, end, field)
	default:
		// a lone end-group tag is as invalid as 6 and 7
		return off, newDecodeError(exception.ErrDecodeUnknownWireType, tagOff, field)
	}
}

// skipGroup steps over a group body and its end tag. End tags are matched
// by depth only, not by field number.
func skipGroup(src []byte, off, end int, field schema.FieldNumber) (int, error) {
	for depth := 1; ; {
		tagOff := off
		f, wt, next, err := consumeTag(src, off, end)
		if err != nil {
			return off, withField(err, field)
		}
		switch wt {
		case schema.WireStartGroup:
			depth++
			off = next
		case schema.WireEndGroup:
			depth--
			off = next
			if depth == 0 {
				return off, nil
			}
		default:
			if off, err = skipField(src, next, end, f, wt, tagOff); err != nil {
				return off, err
			}
		}
	}
}
