package memory

import (
	"context"
	"sync"

	"gastos/internal/core"
	"gastos/internal/ledger"
)

// Store keeps month partitions in process memory.
type Store struct {
	mu     sync.Mutex
	months map[core.Month]core.Table
}

var (
	_ ledger.Ledger          = (*Store)(nil)
	_ ledger.PartitionLister = (*Store)(nil)
)

func New() *Store {
	return &Store{months: map[core.Month]core.Table{}}
}

// Load returns a copy of the month's table, creating the partition if needed.
func (s *Store) Load(_ context.Context, month core.Month) (core.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.months[month]
	if !ok {
		t = core.Table{}
		s.months[month] = t
	}
	return t.Clone(), nil
}

// Save replaces the month's table with a copy of t.
func (s *Store) Save(_ context.Context, month core.Month, t core.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.months[month] = t.Clone()
	return nil
}

// Partitions returns the months seen so far.
func (s *Store) Partitions(_ context.Context) ([]core.Month, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.months))
	for m := range s.months {
		names = append(names, m.String())
	}
	return ledger.ParsePartitionNames(names), nil
}
