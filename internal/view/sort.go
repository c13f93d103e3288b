// Package view derives the ordered table handed to the presentation layer.
//
// Order is descending by spread. Equal spreads fall back to the pair
// identifier in ascending order, so the output is a total order and the same
// snapshot always yields the same sequence. NaN spreads sort after every
// number.
package view

import (
	"math"
	"sort"

	"arbview/internal/schema"
	"arbview/internal/state"
)

// Recompute returns every record of snap in view order.
// Nothing is cached between calls.
func Recompute(snap state.Snapshot) []schema.ArbMarket {
	markets := snap.Markets()
	Sort(markets)
	return markets
}

// Sort orders markets in place.
func Sort(markets []schema.ArbMarket) {
	sort.Slice(markets, func(i, j int) bool {
		return Less(markets[i], markets[j])
	})
}

// Less reports whether a is shown before b.
func Less(a, b schema.ArbMarket) bool {
	aNaN, bNaN := math.IsNaN(a.Spread), math.IsNaN(b.Spread)
	if aNaN != bNaN {
		return bNaN
	}
	if !aNaN && a.Spread != b.Spread {
		return a.Spread > b.Spread
	}
	return a.HePair < b.HePair
}
