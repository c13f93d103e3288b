package main

import (
	"math/rand"
	"strings"

	"arbview/internal/schema"

	"github.com/shopspring/decimal"
)

const (
	startPrice = 100.0
	maxStep    = 0.002
	priceScale = 4
)

// simulator random-walks one price per (pair, exchange) and emits the
// cheapest and dearest quote of each pair on every step.
type simulator struct {
	rng       *rand.Rand
	pairs     []string
	exchanges []string
	prices    map[string][]float64
}

func newSimulator(seed int64, pairs, exchanges []string) *simulator {
	s := &simulator{
		rng:       rand.New(rand.NewSource(seed)),
		pairs:     pairs,
		exchanges: exchanges,
		prices:    make(map[string][]float64, len(pairs)),
	}
	for _, pair := range pairs {
		p := make([]float64, len(exchanges))
		for i := range p {
			p[i] = startPrice * (1 + (s.rng.Float64()-0.5)*0.01)
		}
		s.prices[pair] = p
	}
	return s
}

func (s *simulator) step() []schema.ArbMarket {
	out := make([]schema.ArbMarket, 0, len(s.pairs))
	for _, pair := range s.pairs {
		prices := s.prices[pair]
		lo, hi := 0, 0
		for i := range prices {
			prices[i] *= 1 + (s.rng.Float64()*2-1)*maxStep
			if prices[i] < prices[lo] {
				lo = i
			}
			if prices[i] > prices[hi] {
				hi = i
			}
		}
		out = append(out, schema.ArbMarket{
			HePair: pair,
			Spread: (prices[hi] - prices[lo]) / prices[lo] * 100,
			Low:    s.quote(pair, lo),
			High:   s.quote(pair, hi),
		})
	}
	return out
}

func (s *simulator) quote(pair string, idx int) *schema.ActiveMarket {
	return &schema.ActiveMarket{
		Exchange: s.exchanges[idx],
		HePair:   pair,
		ExPair:   exchangePair(idx, pair),
		Price:    decimal.NewFromFloat(s.prices[pair][idx]).StringFixed(priceScale),
	}
}

// exchangePair spells pair the way different venues do: BTCUSD, BTC/USD, btc_usd.
func exchangePair(idx int, pair string) string {
	switch idx % 3 {
	case 0:
		return strings.ReplaceAll(pair, "-", "")
	case 1:
		return strings.ReplaceAll(pair, "-", "/")
	default:
		return strings.ToLower(strings.ReplaceAll(pair, "-", "_"))
	}
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
