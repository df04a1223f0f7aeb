// Package storage defines the persistence port for the expense list.
//
// Every backend persists the whole ordered sequence: Load returns the list
// as it was last saved, Save replaces it. Implementations live in the
// sub-packages (jsonfile, memory, sqlite, postgres, sheets).
package storage

import (
	"context"
	"errors"

	"expensetracker/internal/core"
)

// Store loads and replaces the persisted expense list.
type Store interface {
	// Load returns the stored expenses in insertion order. A store that
	// was never written returns an empty list and no error.
	Load(ctx context.Context) ([]core.Expense, error)
	// Save replaces the stored list with expenses.
	Save(ctx context.Context, expenses []core.Expense) error
}

// Pinger is implemented by stores that can report readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ErrClosed is returned by stores used after Close.
var ErrClosed = errors.New("store closed")
