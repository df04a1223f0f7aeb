package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"expensetracker/internal/core"
	applog "expensetracker/internal/log"
	"expensetracker/internal/metrics"
	"expensetracker/internal/storage"
)

// Publisher announces ledger mutations to other processes.
type Publisher interface {
	PublishCreated(ctx context.Context, e core.Expense) error
	PublishDeleted(ctx context.Context, id int64, removed []core.Expense) error
}

// ExpenseService is the ledger: it validates input, assigns ids and applies
// mutations to the store. Mutations are serialized so two concurrent adds
// never read the same list and assign the same id.
type ExpenseService struct {
	store     storage.Store
	publisher Publisher
	metrics   *metrics.Metrics
	logger    *applog.Logger

	mu sync.Mutex
}

type Option func(*ExpenseService)

// WithPublisher enables expense events. A nil publisher disables them.
func WithPublisher(p Publisher) Option {
	return func(s *ExpenseService) { s.publisher = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *ExpenseService) { s.metrics = m }
}

func WithLogger(l *applog.Logger) Option {
	return func(s *ExpenseService) {
		if l != nil {
			s.logger = l.WithComponent(applog.ComponentExpense)
		}
	}
}

func NewExpenseService(store storage.Store, opts ...Option) *ExpenseService {
	s := &ExpenseService{
		store:  store,
		logger: applog.Wrap(nil, applog.ComponentExpense),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns every stored expense in insertion order.
func (s *ExpenseService) List(ctx context.Context) ([]core.Expense, error) {
	expenses, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load expenses: %w", err)
	}
	s.metrics.SetStored(len(expenses))
	return expenses, nil
}

// Add validates the raw form values and, when they pass, appends a new
// expense with the next id. Validation failures are returned as messages
// with a nil error and nothing is persisted.
func (s *ExpenseService) Add(ctx context.Context, description, amount, date string) (core.Expense, []string, error) {
	msgs, exp := core.Validate(description, amount, date)
	if len(msgs) > 0 {
		s.metrics.ValidationFailed(msgs)
		s.logger.InfoContext(ctx, "Rejected expense",
			applog.FieldOperation, applog.OpValidate,
			"errors", msgs)
		return core.Expense{}, msgs, nil
	}

	s.mu.Lock()
	expenses, err := s.store.Load(ctx)
	if err != nil {
		s.mu.Unlock()
		return core.Expense{}, nil, fmt.Errorf("load expenses: %w", err)
	}
	exp.ID = core.NextID(expenses)
	expenses = append(expenses, exp)
	if err := s.store.Save(ctx, expenses); err != nil {
		s.mu.Unlock()
		return core.Expense{}, nil, fmt.Errorf("save expenses: %w", err)
	}
	s.mu.Unlock()

	s.metrics.ExpenseAdded()
	s.metrics.SetStored(len(expenses))
	applog.NewStructuredLogger(s.logger).LogExpenseCreated(ctx, exp.ID, exp.Description, exp.Amount, exp.Date)

	if s.publisher != nil {
		err := s.publisher.PublishCreated(ctx, exp)
		s.metrics.EventPublished("expense.created", err)
		if err != nil {
			// the expense is saved; the event is best effort
			s.logger.ErrorContext(ctx, "Failed to publish expense event",
				applog.FieldExpenseID, exp.ID,
				applog.FieldError, err)
		}
	}
	return exp, nil, nil
}

// Delete removes every expense whose id renders as id and reports how many
// were removed. Unknown or empty ids remove nothing and are not an error.
func (s *ExpenseService) Delete(ctx context.Context, id string) (int, error) {
	if id == "" {
		return 0, nil
	}

	s.mu.Lock()
	expenses, err := s.store.Load(ctx)
	if err != nil {
		s.mu.Unlock()
		return 0, fmt.Errorf("load expenses: %w", err)
	}
	kept, removed := core.RemoveByID(expenses, id)
	if len(removed) == 0 {
		s.mu.Unlock()
		applog.NewStructuredLogger(s.logger).LogExpenseDeleted(ctx, id, 0)
		return 0, nil
	}
	if err := s.store.Save(ctx, kept); err != nil {
		s.mu.Unlock()
		return 0, fmt.Errorf("save expenses: %w", err)
	}
	s.mu.Unlock()

	s.metrics.ExpensesDeleted(len(removed))
	s.metrics.SetStored(len(kept))
	applog.NewStructuredLogger(s.logger).LogExpenseDeleted(ctx, id, len(removed))

	if s.publisher != nil {
		err := s.publisher.PublishDeleted(ctx, removed[0].ID, removed)
		s.metrics.EventPublished("expense.deleted", err)
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to publish expense event",
				applog.FieldExpenseID, removed[0].ID,
				applog.FieldError, err)
		}
	}
	return len(removed), nil
}

// Ping reports whether the store is usable.
func (s *ExpenseService) Ping(ctx context.Context) error {
	if p, ok := s.store.(storage.Pinger); ok {
		return p.Ping(ctx)
	}
	_, err := s.store.Load(ctx)
	return err
}

// Close closes the store and publisher when they hold resources.
func (s *ExpenseService) Close() error {
	var errs []error

	if c, ok := s.store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close expense service: %w", errors.Join(errs...))
	}
	return nil
}
