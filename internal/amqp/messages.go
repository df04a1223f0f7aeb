package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"expensetracker/internal/core"
)

type EventType string

const (
	EventExpenseCreated EventType = "expense.created"
	EventExpenseDeleted EventType = "expense.deleted"
)

var ErrInvalidEvent = errors.New("invalid expense event")

// ExpenseEvent describes one ledger mutation. Created events carry the full
// record; deleted events carry the id and the records that were removed.
type ExpenseEvent struct {
	EventID   string         `json:"event_id"`
	Type      EventType      `json:"type"`
	ExpenseID int64          `json:"expense_id"`
	Expense   *core.Expense  `json:"expense,omitempty"`
	Removed   []core.Expense `json:"removed,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

func NewExpenseCreated(e core.Expense) *ExpenseEvent {
	return &ExpenseEvent{
		EventID:   uuid.NewString(),
		Type:      EventExpenseCreated,
		ExpenseID: e.ID,
		Expense:   &e,
		Timestamp: time.Now().UTC(),
	}
}

func NewExpenseDeleted(id int64, removed ...core.Expense) *ExpenseEvent {
	return &ExpenseEvent{
		EventID:   uuid.NewString(),
		Type:      EventExpenseDeleted,
		ExpenseID: id,
		Removed:   removed,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the event to JSON bytes
func (m *ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// Validate checks the event is one the worker knows how to apply.
func (m *ExpenseEvent) Validate() error {
	switch m.Type {
	case EventExpenseCreated:
		if m.Expense == nil {
			return fmt.Errorf("%w: %s without expense", ErrInvalidEvent, m.Type)
		}
		if m.Expense.ID != m.ExpenseID {
			return fmt.Errorf("%w: expense id %d does not match %d", ErrInvalidEvent, m.Expense.ID, m.ExpenseID)
		}
	case EventExpenseDeleted:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, m.Type)
	}
	return nil
}

// ExpenseEventFromJSON decodes and validates an event.
func ExpenseEventFromJSON(data []byte) (*ExpenseEvent, error) {
	var msg ExpenseEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
