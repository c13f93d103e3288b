package state

import "arbview/internal/schema"

// Store is the authoritative table of the latest ArbMarket per pair.
// It is single-writer: callers serialize Upsert themselves.
type Store struct {
	markets map[string]schema.ArbMarket
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{markets: make(map[string]schema.ArbMarket)}
}

// Upsert replaces the record stored under m.HePair with a copy of m.
// No field of the previous record survives.
func (s *Store) Upsert(m schema.ArbMarket) {
	if s.markets == nil {
		s.markets = make(map[string]schema.ArbMarket)
	}
	s.markets[m.HePair] = m.Clone()
}

// Get returns a copy of the record for hePair.
func (s *Store) Get(hePair string) (schema.ArbMarket, bool) {
	m, ok := s.markets[hePair]
	if !ok {
		return schema.ArbMarket{}, false
	}
	return m.Clone(), true
}

// Len returns the number of tracked pairs.
func (s *Store) Len() int {
	return len(s.markets)
}
