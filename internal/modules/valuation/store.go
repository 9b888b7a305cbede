package valuation

import (
	"sync"
	"time"

	"github.com/aristath/bondwatch/internal/domain"
)

// Result is the outcome of one valuation cycle. Universe holds every
// bond that survived entry validation, annotated; Screened holds the
// eligible subset already ranked by descending score.
type Result struct {
	RunID    string
	AsOf     time.Time
	Universe []*domain.Bond
	Screened []*domain.Bond
	Summary  Summary
}

// Store holds the latest valuation result for the API between refresh
// cycles. Readers get the result pointer; a cycle publishes a fully
// built Result and never mutates it afterwards.
type Store struct {
	mu      sync.RWMutex
	current *Result
}

// NewStore creates an empty result store
func NewStore() *Store {
	return &Store{}
}

// Set publishes a new result
func (s *Store) Set(r *Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = r
}

// Current returns the latest result, or nil before the first cycle
func (s *Store) Current() *Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Lookup finds a bond in the latest universe by SECID
func (s *Store) Lookup(secid string) *domain.Bond {
	res := s.Current()
	if res == nil {
		return nil
	}
	for _, b := range res.Universe {
		if b.SecID == secid {
			return b
		}
	}
	return nil
}
