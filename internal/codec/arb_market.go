package codec

import (
	"encoding/binary"
	"math"

	"arbview/internal/schema"
)

// SizeArbMarket returns the encoded length of m.
func SizeArbMarket(m schema.ArbMarket) int {
	n := stringSize(schema.FieldArbMarketHePair, m.HePair)
	if math.Float64bits(m.Spread) != 0 {
		n += tagSize(schema.FieldArbMarketSpread) + 8
	}
	if m.Low != nil {
		size := sizeActiveMarket(*m.Low)
		n += tagSize(schema.FieldArbMarketLow) + varintSize(uint64(size)) + size
	}
	if m.High != nil {
		size := sizeActiveMarket(*m.High)
		n += tagSize(schema.FieldArbMarketHigh) + varintSize(uint64(size)) + size
	}
	return n
}

// EncodeArbMarket serializes m, reusing dst's capacity when it is large enough.
// Fields are written in ascending field order and zero values are omitted.
func EncodeArbMarket(dst []byte, m schema.ArbMarket) []byte {
	size := SizeArbMarket(m)
	if cap(dst) < size {
		dst = make([]byte, 0, size)
	} else {
		dst = dst[:0]
	}

	dst = appendString(dst, schema.FieldArbMarketHePair, m.HePair)
	if bits := math.Float64bits(m.Spread); bits != 0 {
		dst = appendTag(dst, schema.FieldArbMarketSpread, schema.WireFixed64)
		dst = binary.LittleEndian.AppendUint64(dst, bits)
	}
	dst = appendNested(dst, schema.FieldArbMarketLow, m.Low)
	dst = appendNested(dst, schema.FieldArbMarketHigh, m.High)

	return dst
}

// DecodeArbMarket parses one encoded ArbMarket.
// Unknown fields are skipped; a repeated field keeps its last value.
func DecodeArbMarket(src []byte) (schema.ArbMarket, error) {
	var m schema.ArbMarket
	end := len(src)
	off := 0
	for off < end {
		tagOff := off
		field, wt, next, err := consumeTag(src, off, end)
		if err != nil {
			return schema.ArbMarket{}, err
		}

		switch {
		case field == schema.FieldArbMarketHePair && wt == schema.WireBytes:
			start, stop, err := consumeBytes(src, next, end, field)
			if err != nil {
				return schema.ArbMarket{}, err
			}
			m.HePair = string(src[start:stop])
			off = stop
		case field == schema.FieldArbMarketSpread && wt == schema.WireFixed64:
			bits, stop, err := consumeFixed64(src, next, end, field)
			if err != nil {
				return schema.ArbMarket{}, err
			}
			m.Spread = math.Float64frombits(bits)
			off = stop
		case (field == schema.FieldArbMarketLow || field == schema.FieldArbMarketHigh) && wt == schema.WireBytes:
			start, stop, err := consumeBytes(src, next, end, field)
			if err != nil {
				return schema.ArbMarket{}, err
			}
			active, err := decodeActiveMarket(src, start, stop)
			if err != nil {
				return schema.ArbMarket{}, withField(err, field)
			}
			if field == schema.FieldArbMarketLow {
				m.Low = &active
			} else {
				m.High = &active
			}
			off = stop
		default:
			off, err = skipField(src, next, end, field, wt, tagOff)
			if err != nil {
				return schema.ArbMarket{}, err
			}
		}
	}
	return m, nil
}

func sizeActiveMarket(a schema.ActiveMarket) int {
	return stringSize(schema.FieldActiveMarketExchange, a.Exchange) +
		stringSize(schema.FieldActiveMarketHePair, a.HePair) +
		stringSize(schema.FieldActiveMarketExPair, a.ExPair) +
		stringSize(schema.FieldActiveMarketPrice, a.Price)
}

func appendNested(dst []byte, field schema.FieldNumber, a *schema.ActiveMarket) []byte {
	if a == nil {
		return dst
	}
	dst = appendTag(dst, field, schema.WireBytes)
	dst = appendVarint(dst, uint64(sizeActiveMarket(*a)))
	dst = appendString(dst, schema.FieldActiveMarketExchange, a.Exchange)
	dst = appendString(dst, schema.FieldActiveMarketHePair, a.HePair)
	dst = appendString(dst, schema.FieldActiveMarketExPair, a.ExPair)
	dst = appendString(dst, schema.FieldActiveMarketPrice, a.Price)
	return dst
}

// decodeActiveMarket parses src[off:end]; offsets in errors stay absolute.
func decodeActiveMarket(src []byte, off, end int) (schema.ActiveMarket, error) {
	var a schema.ActiveMarket
	for off < end {
		tagOff := off
		field, wt, next, err := consumeTag(src, off, end)
		if err != nil {
			return schema.ActiveMarket{}, err
		}
		if wt != schema.WireBytes || field < schema.FieldActiveMarketExchange || field > schema.FieldActiveMarketPrice {
			off, err = skipField(src, next, end, field, wt, tagOff)
			if err != nil {
				return schema.ActiveMarket{}, err
			}
			continue
		}

		start, stop, err := consumeBytes(src, next, end, field)
		if err != nil {
			return schema.ActiveMarket{}, err
		}
		value := string(src[start:stop])
		switch field {
		case schema.FieldActiveMarketExchange:
			a.Exchange = value
		case schema.FieldActiveMarketHePair:
			a.HePair = value
		case schema.FieldActiveMarketExPair:
			a.ExPair = value
		case schema.FieldActiveMarketPrice:
			a.Price = value
		}
		off = stop
	}
	return a, nil
}
