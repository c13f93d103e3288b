package codec

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"arbview/internal/schema"
	"arbview/pkg/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleMarket() schema.ArbMarket {
	return schema.ArbMarket{
		HePair: "BTC-USD",
		Spread: 1.5,
		Low:    &schema.ActiveMarket{Exchange: "A", HePair: "BTC-USD", ExPair: "XBT/USD", Price: "100.0"},
		High:   &schema.ActiveMarket{Exchange: "B", HePair: "BTC-USD", ExPair: "BTCUSD", Price: "101.5"},
	}
}

func TestArbMarketRoundTrip(t *testing.T) {
	cases := map[string]schema.ArbMarket{
		"full":          sampleMarket(),
		"empty":         {},
		"pair only":     {HePair: "ETH-BTC"},
		"spread only":   {Spread: 0.25},
		"negative zero": {HePair: "X", Spread: math.Copysign(0, -1)},
		"negative":      {HePair: "X", Spread: -3.75},
		"infinite":      {HePair: "X", Spread: math.Inf(1)},
		"empty nested":  {HePair: "X", Low: &schema.ActiveMarket{}},
		"high only":     {HePair: "X", High: &schema.ActiveMarket{Exchange: "kraken", Price: "0.00000001"}},
		"unicode":       {HePair: "ÉTH-€", Low: &schema.ActiveMarket{Exchange: "取引所"}},
		"long strings":  {HePair: strings.Repeat("p", 300), Low: &schema.ActiveMarket{ExPair: strings.Repeat("q", 20000)}},
	}

	for name, orig := range cases {
		t.Run(name, func(t *testing.T) {
			encoded := EncodeArbMarket(nil, orig)
			require.Len(t, encoded, SizeArbMarket(orig))

			decoded, err := DecodeArbMarket(encoded)
			require.NoError(t, err)
			if !decoded.Equal(orig) {
				t.Fatalf("round-trip mismatch: got %+v want %+v", decoded, orig)
			}
			assert.Equal(t, math.Signbit(orig.Spread), math.Signbit(decoded.Spread))
		})
	}
}

func TestArbMarketRoundTripNaN(t *testing.T) {
	decoded, err := DecodeArbMarket(EncodeArbMarket(nil, schema.ArbMarket{HePair: "X", Spread: math.NaN()}))
	require.NoError(t, err)
	assert.True(t, math.IsNaN(decoded.Spread))
}

func TestEncodeArbMarketLayout(t *testing.T) {
	m := schema.ArbMarket{
		HePair: "AB",
		Spread: 1.5,
		Low:    &schema.ActiveMarket{Exchange: "A", Price: "1"},
	}
	want := []byte{
		0x0a, 0x02, 'A', 'B',
		0x11, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xf8, 0x3f,
		0x1a, 0x06, 0x0a, 0x01, 'A', 0x22, 0x01, '1',
	}
	assert.Equal(t, want, EncodeArbMarket(nil, m))
}

func TestEncodeArbMarketOmitsZeroValues(t *testing.T) {
	assert.Empty(t, EncodeArbMarket(nil, schema.ArbMarket{}))

	// a present but empty side still carries its tag and a zero length
	assert.Equal(t, []byte{0x22, 0x00}, EncodeArbMarket(nil, schema.ArbMarket{High: &schema.ActiveMarket{}}))
}

func TestEncodeArbMarketDeterministic(t *testing.T) {
	m := sampleMarket()
	assert.Equal(t, EncodeArbMarket(nil, m), EncodeArbMarket(nil, m))
}

func TestEncodeArbMarketReusesBuffer(t *testing.T) {
	buf := make([]byte, 3, 256)
	out := EncodeArbMarket(buf, sampleMarket())
	require.NotEmpty(t, out)
	assert.Same(t, &buf[0], &out[0])

	small := make([]byte, 0, 1)
	out = EncodeArbMarket(small, sampleMarket())
	assert.Len(t, out, SizeArbMarket(sampleMarket()))
}

func TestDecodeArbMarketEmptyBuffer(t *testing.T) {
	m, err := DecodeArbMarket(nil)
	require.NoError(t, err)
	assert.Equal(t, "", m.HePair)
	assert.Zero(t, m.Spread)
	assert.Nil(t, m.Low)
	assert.Nil(t, m.High)
}

func TestDecodeArbMarketSkipsUnknownFields(t *testing.T) {
	orig := sampleMarket()
	buf := EncodeArbMarket(nil, orig)

	buf = appendTag(buf, 9, schema.WireVarint)
	buf = appendVarint(buf, 300)
	buf = appendTag(buf, 10, schema.WireFixed64)
	buf = append(buf, 1, 2, 3, 4, 5, 6, 7, 8)
	buf = appendTag(buf, 11, schema.WireBytes)
	buf = appendVarint(buf, 3)
	buf = append(buf, "xyz"...)
	buf = appendTag(buf, 12, schema.WireFixed32)
	buf = append(buf, 1, 2, 3, 4)
	buf = appendTag(buf, 0, schema.WireVarint)
	buf = appendVarint(buf, 1)

	decoded, err := DecodeArbMarket(buf)
	require.NoError(t, err)
	assert.True(t, decoded.Equal(orig), "got %+v", decoded)
}

func TestDecodeArbMarketSkipsUnknownNestedFields(t *testing.T) {
	var nested []byte
	nested = appendString(nested, schema.FieldActiveMarketExchange, "A")
	nested = appendTag(nested, 7, schema.WireVarint)
	nested = appendVarint(nested, 42)
	nested = appendString(nested, schema.FieldActiveMarketPrice, "9.5")

	var buf []byte
	buf = appendTag(buf, schema.FieldArbMarketLow, schema.WireBytes)
	buf = appendVarint(buf, uint64(len(nested)))
	buf = append(buf, nested...)

	decoded, err := DecodeArbMarket(buf)
	require.NoError(t, err)
	require.NotNil(t, decoded.Low)
	assert.Equal(t, schema.ActiveMarket{Exchange: "A", Price: "9.5"}, *decoded.Low)
}

func TestDecodeArbMarketSkipsKnownFieldWithOtherWireType(t *testing.T) {
	var buf []byte
	buf = appendTag(buf, schema.FieldArbMarketHePair, schema.WireVarint)
	buf = appendVarint(buf, 7)
	buf = appendTag(buf, schema.FieldArbMarketSpread, schema.WireFixed32)
	buf = append(buf, 0, 0, 0, 0)
	buf = appendString(buf, schema.FieldArbMarketHePair, "ETH-USD")

	decoded, err := DecodeArbMarket(buf)
	require.NoError(t, err)
	assert.Equal(t, "ETH-USD", decoded.HePair)
	assert.Zero(t, decoded.Spread)
}

func TestDecodeArbMarketSkipsGroups(t *testing.T) {
	orig := sampleMarket()

	var group []byte
	group = appendTag(group, 9, schema.WireStartGroup)
	group = appendTag(group, 1, schema.WireVarint)
	group = appendVarint(group, 150)
	group = appendTag(group, 2, schema.WireBytes)
	group = appendVarint(group, 2)
	group = append(group, 0x0c, 0x0c) // bytes that look like end tags are payload
	group = appendTag(group, 3, schema.WireStartGroup)
	group = appendTag(group, 4, schema.WireFixed32)
	group = append(group, 1, 2, 3, 4)
	group = appendTag(group, 3, schema.WireEndGroup)
	group = appendTag(group, 9, schema.WireEndGroup)

	buf := append(group, EncodeArbMarket(nil, orig)...)
	decoded, err := DecodeArbMarket(buf)
	require.NoError(t, err)
	assert.True(t, decoded.Equal(orig), "got %+v", decoded)

	// a known field number framed as a group is skipped like any unknown field
	buf = EncodeArbMarket(nil, orig)
	buf = appendTag(buf, schema.FieldArbMarketHePair, schema.WireStartGroup)
	buf = appendTag(buf, schema.FieldArbMarketHePair, schema.WireEndGroup)
	decoded, err = DecodeArbMarket(buf)
	require.NoError(t, err)
	assert.Equal(t, orig.HePair, decoded.HePair)

	// inside a nested message too
	var nested []byte
	nested = appendTag(nested, 8, schema.WireStartGroup)
	nested = appendTag(nested, 8, schema.WireEndGroup)
	nested = appendString(nested, schema.FieldActiveMarketExchange, "A")
	buf = appendTag(nil, schema.FieldArbMarketHigh, schema.WireBytes)
	buf = appendVarint(buf, uint64(len(nested)))
	buf = append(buf, nested...)
	decoded, err = DecodeArbMarket(buf)
	require.NoError(t, err)
	require.NotNil(t, decoded.High)
	assert.Equal(t, "A", decoded.High.Exchange)
}

func TestDecodeArbMarketDeeplyNestedGroup(t *testing.T) {
	const depth = 100_000
	buf := bytes.Repeat(appendTag(nil, 9, schema.WireStartGroup), depth)
	buf = append(buf, bytes.Repeat(appendTag(nil, 9, schema.WireEndGroup), depth)...)
	buf = appendString(buf, schema.FieldArbMarketHePair, "BTC-USD")

	decoded, err := DecodeArbMarket(buf)
	require.NoError(t, err)
	assert.Equal(t, "BTC-USD", decoded.HePair)
}

func TestDecodeArbMarketLastFieldWins(t *testing.T) {
	first := sampleMarket()
	second := schema.ArbMarket{
		HePair: "BTC-USD",
		Spread: 0.8,
		Low:    &schema.ActiveMarket{Exchange: "C"},
	}
	buf := EncodeArbMarket(nil, first)
	buf = append(buf, EncodeArbMarket(nil, second)...)

	decoded, err := DecodeArbMarket(buf)
	require.NoError(t, err)
	assert.Equal(t, 0.8, decoded.Spread)
	require.NotNil(t, decoded.Low)
	// nested messages are replaced, never merged
	assert.Equal(t, schema.ActiveMarket{Exchange: "C"}, *decoded.Low)
	require.NotNil(t, decoded.High)
	assert.Equal(t, "B", decoded.High.Exchange)
}

func TestDecodeArbMarketErrors(t *testing.T) {
	cases := []struct {
		name   string
		buf    []byte
		kind   error
		offset int
		field  schema.FieldNumber
	}{
		{"unterminated group", []byte{0x0a, 0x01, 'A', 0x2b}, exception.ErrDecodeTruncated, 4, 5},
		{"unterminated nested group", []byte{0x4b, 0x53, 0x54}, exception.ErrDecodeTruncated, 3, 9},
		{"lone end group", []byte{0x2c}, exception.ErrDecodeUnknownWireType, 0, 5},
		{"wire type 6 inside group", []byte{0x4b, 0x0e}, exception.ErrDecodeUnknownWireType, 1, 1},
		{"truncated varint inside group", []byte{0x4b, 0x08, 0x80}, exception.ErrDecodeTruncated, 2, 1},
		{"wire type 6", []byte{0x0e}, exception.ErrDecodeUnknownWireType, 0, 1},
		{"wire type 7 nested", []byte{0x1a, 0x01, 0x0f}, exception.ErrDecodeUnknownWireType, 2, 1},
		{"length overrun", []byte{0x0a, 0x05, 'A'}, exception.ErrDecodeLengthOverrun, 1, 1},
		{"nested length overrun", []byte{0x1a, 0x03, 0x0a, 0x05, 'A'}, exception.ErrDecodeLengthOverrun, 3, 1},
		{"huge length", []byte{0x0a, 0xff, 0xff, 0xff, 0xff, 0x0f}, exception.ErrDecodeLengthOverrun, 1, 1},
		{"truncated tag", []byte{0x80}, exception.ErrDecodeTruncated, 0, 0},
		{"truncated length", []byte{0x0a}, exception.ErrDecodeTruncated, 1, 1},
		{"truncated fixed64", []byte{0x11, 0x00, 0x00}, exception.ErrDecodeTruncated, 1, 2},
		{"truncated unknown fixed32", []byte{0x65, 0x00}, exception.ErrDecodeTruncated, 1, 12},
		{"truncated unknown varint", []byte{0x48, 0x80}, exception.ErrDecodeTruncated, 1, 9},
		{"malformed varint", []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01}, exception.ErrDecodeMalformedVarint, 0, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m, err := DecodeArbMarket(tc.buf)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.kind), "got %v", err)
			assert.Equal(t, schema.ArbMarket{}, m)

			var de *DecodeError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, tc.offset, de.Offset)
			assert.Equal(t, tc.field, de.Field)
		})
	}
}

func TestDecodeArbMarketTruncatedPrefixes(t *testing.T) {
	full := sampleMarket()
	boundaries := map[int]bool{0: true}
	boundaries[SizeArbMarket(schema.ArbMarket{HePair: full.HePair})] = true
	boundaries[SizeArbMarket(schema.ArbMarket{HePair: full.HePair, Spread: full.Spread})] = true
	boundaries[SizeArbMarket(schema.ArbMarket{HePair: full.HePair, Spread: full.Spread, Low: full.Low})] = true
	encoded := EncodeArbMarket(nil, full)

	for i := 1; i < len(encoded); i++ {
		_, err := DecodeArbMarket(encoded[:i])
		if boundaries[i] {
			require.NoError(t, err, "prefix %d ends on a field boundary", i)
			continue
		}
		require.Error(t, err, "prefix %d", i)
		var de *DecodeError
		require.True(t, errors.As(err, &de))
	}
}

func TestDecodeErrorMessage(t *testing.T) {
	err := newDecodeError(exception.ErrDecodeTruncated, 12, 3)
	assert.Equal(t, "codec: truncated buffer at offset 12 (field 3)", err.Error())
	assert.Equal(t, "codec: truncated buffer at offset 0", newDecodeError(exception.ErrDecodeTruncated, 0, 0).Error())
}

func BenchmarkArbMarket(b *testing.B) {
	m := sampleMarket()
	buf := EncodeArbMarket(nil, m)

	b.Run("encode", func(b *testing.B) {
		dst := make([]byte, 0, 128)
		for b.Loop() {
			dst = EncodeArbMarket(dst, m)
		}
	})

	b.Run("decode", func(b *testing.B) {
		for b.Loop() {
			_, _ = DecodeArbMarket(buf)
		}
	})
}
