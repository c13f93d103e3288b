package state

import (
	"fmt"
	"sort"

	"arbview/internal/schema"
)

// Snapshot is a point-in-time copy of the store.
// Later upserts never show through it.
type Snapshot struct {
	markets map[string]schema.ArbMarket
}

// Snapshot copies the current table.
func (s *Store) Snapshot() Snapshot {
	markets := make(map[string]schema.ArbMarket, len(s.markets))
	for key, m := range s.markets {
		markets[key] = m.Clone()
	}
	return Snapshot{markets: markets}
}

// Len returns the number of pairs in the snapshot.
func (snap Snapshot) Len() int {
	return len(snap.markets)
}

// Get returns a copy of the record for hePair.
func (snap Snapshot) Get(hePair string) (schema.ArbMarket, bool) {
	m, ok := snap.markets[hePair]
	if !ok {
		return schema.ArbMarket{}, false
	}
	return m.Clone(), true
}

// Keys returns the pair identifiers in ascending order.
func (snap Snapshot) Keys() []string {
	keys := make([]string, 0, len(snap.markets))
	for key := range snap.markets {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Markets returns copies of every record, in no particular order.
func (snap Snapshot) Markets() []schema.ArbMarket {
	out := make([]schema.ArbMarket, 0, len(snap.markets))
	for _, m := range snap.markets {
		out = append(out, m.Clone())
	}
	return out
}

// Equal reports whether both snapshots hold the same records.
func (snap Snapshot) Equal(other Snapshot) bool {
	return CompareSnapshots(snap, other) == nil
}

// CompareSnapshots checks if two snapshots match.
func CompareSnapshots(expected, actual Snapshot) error {
	if len(expected.markets) != len(actual.markets) {
		return fmt.Errorf("snapshot length mismatch: expected=%d actual=%d", len(expected.markets), len(actual.markets))
	}
	for _, key := range expected.Keys() {
		want := expected.markets[key]
		got, ok := actual.markets[key]
		if !ok {
			return fmt.Errorf("snapshot missing pair: %q", key)
		}
		if !want.Equal(got) {
			return fmt.Errorf("snapshot record mismatch: pair=%q expected=%+v actual=%+v", key, want, got)
		}
	}
	return nil
}
