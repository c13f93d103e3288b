package schema

// FieldNumber identifies a field inside an encoded message.
type FieldNumber uint32

// WireType describes how the value following a tag is framed.
type WireType uint8

const (
	WireVarint     WireType = 0
	WireFixed64    WireType = 1
	WireBytes      WireType = 2
	WireStartGroup WireType = 3
	WireEndGroup   WireType = 4
	WireFixed32    WireType = 5
)

// ArbMarket field numbers.
const (
	FieldArbMarketHePair FieldNumber = 1
	FieldArbMarketSpread FieldNumber = 2
	FieldArbMarketLow    FieldNumber = 3
	FieldArbMarketHigh   FieldNumber = 4
)

// ActiveMarket field numbers.
const (
	FieldActiveMarketExchange FieldNumber = 1
	FieldActiveMarketHePair   FieldNumber = 2
	FieldActiveMarketExPair   FieldNumber = 3
	FieldActiveMarketPrice    FieldNumber = 4
)

// ActiveMarket is one exchange's quote for a pair.
type ActiveMarket struct {
	Exchange string
	HePair   string
	ExPair   string
	// Price is a decimal kept as text to avoid float rounding.
	Price string
}

// ArbMarket is a comparison snapshot for one canonical pair.
// A nil Low or High means the producer omitted that side.
type ArbMarket struct {
	HePair string
	Spread float64
	Low    *ActiveMarket
	High   *ActiveMarket
}

// Clone returns a deep copy that shares no pointers with m.
func (m ArbMarket) Clone() ArbMarket {
	out := m
	if m.Low != nil {
		low := *m.Low
		out.Low = &low
	}
	if m.High != nil {
		high := *m.High
		out.High = &high
	}
	return out
}

// Equal reports whether both records carry the same values.
// Spread is compared with ==, so NaN never equals NaN.
func (m ArbMarket) Equal(other ArbMarket) bool {
	return m.HePair == other.HePair &&
		m.Spread == other.Spread &&
		equalActive(m.Low, other.Low) &&
		equalActive(m.High, other.High)
}

func equalActive(a, b *ActiveMarket) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
