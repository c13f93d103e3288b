package view

import (
	"math"
	"strconv"

	"arbview/internal/schema"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
)

// Quote is the part of an ActiveMarket a row displays. Price is kept as
// the producer sent it.
type Quote struct {
	Exchange string
	Price    string
}

// Row is one line of the presented table.
type Row struct {
	HePair string
	Spread float64
	Low    *Quote
	High   *Quote
}

// exactDigits is enough fraction digits to write any float64 exactly.
const exactDigits = 1074

// SpreadText renders the spread with two decimals and a percent sign.
//
// Rounding works on the exact binary value, so 1.005 (stored just below
// 1.005) gives "1.00%". Magnitudes of 1e21 and up keep exponent form.
func (r Row) SpreadText() string {
	v := r.Spread
	switch {
	case math.IsNaN(v):
		return "NaN%"
	case math.IsInf(v, 1):
		return "Infinity%"
	case math.IsInf(v, -1):
		return "-Infinity%"
	case math.Abs(v) >= 1e21:
		return strconv.FormatFloat(v, 'g', -1, 64) + "%"
	}

	exact := decimal.RequireFromString(strconv.FormatFloat(math.Abs(v), 'f', exactDigits, 64))
	text := exact.StringFixed(2)
	if v < 0 {
		text = "-" + text
	}
	return text + "%"
}

// Rows projects ordered markets to rows, keeping their order.
func Rows(markets []schema.ArbMarket) []Row {
	rows := make([]Row, len(markets))
	for i, m := range markets {
		rows[i] = Row{
			HePair: m.HePair,
			Spread: m.Spread,
			Low:    quoteOf(m.Low),
			High:   quoteOf(m.High),
		}
	}
	return rows
}

func quoteOf(a *schema.ActiveMarket) *Quote {
	if a == nil {
		return nil
	}
	return &Quote{Exchange: a.Exchange, Price: a.Price}
}

type quotePayload struct {
	Exchange string `json:"exchange"`
	Price    string `json:"price"`
}

type rowPayload struct {
	HePair     string        `json:"hePair"`
	Spread     *float64      `json:"spread,omitempty"`
	SpreadText string        `json:"spreadText"`
	Low        *quotePayload `json:"low,omitempty"`
	High       *quotePayload `json:"high,omitempty"`
}

// MarshalRows encodes rows as a JSON array.
// Non-finite spreads have no "spread" member; "spreadText" always carries one.
func MarshalRows(rows []Row) ([]byte, error) {
	payload := make([]rowPayload, len(rows))
	for i, r := range rows {
		p := rowPayload{
			HePair:     r.HePair,
			SpreadText: r.SpreadText(),
			Low:        quotePayloadOf(r.Low),
			High:       quotePayloadOf(r.High),
		}
		if !math.IsNaN(r.Spread) && !math.IsInf(r.Spread, 0) {
			spread := r.Spread
			p.Spread = &spread
		}
		payload[i] = p
	}
	return sonic.Marshal(payload)
}

func quotePayloadOf(q *Quote) *quotePayload {
	if q == nil {
		return nil
	}
	return &quotePayload{Exchange: q.Exchange, Price: q.Price}
}
