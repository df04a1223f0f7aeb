package memory

import (
	"context"
	"sync"

	"expensetracker/internal/core"
	"expensetracker/internal/storage"
)

// Store keeps the expense list in process memory. Useful for tests and for
// running the server without touching disk.
type Store struct {
	mu    sync.Mutex
	items []core.Expense
	saves int
	err   error
}

var _ storage.Store = (*Store)(nil)

func New(seed ...core.Expense) *Store {
	return &Store{items: append([]core.Expense(nil), seed...)}
}

// Load returns a copy of the stored list.
func (s *Store) Load(_ context.Context) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make([]core.Expense, len(s.items))
	copy(out, s.items)
	return out, nil
}

// Save replaces the stored list with a copy of expenses.
func (s *Store) Save(_ context.Context, expenses []core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.items = append([]core.Expense(nil), expenses...)
	s.saves++
	return nil
}

// Saves reports how many times Save succeeded.
func (s *Store) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// FailWith makes every subsequent Load and Save return err. Pass nil to
// recover.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}
