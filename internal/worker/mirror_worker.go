// Package worker applies expense events to a mirror store.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"

	"expensetracker/internal/amqp"
	"expensetracker/internal/core"
	"expensetracker/internal/storage"
)

// MirrorWorker keeps a secondary store in step with the primary one by
// replaying expense.created and expense.deleted events.
type MirrorWorker struct {
	mirror storage.Store
	source storage.Store
	logger *slog.Logger

	mu sync.Mutex
}

// NewMirrorWorker creates a worker writing to mirror. source is optional;
// when set, StartupSync copies it over the mirror to recover events missed
// while the worker was down.
func NewMirrorWorker(mirror, source storage.Store, logger *slog.Logger) *MirrorWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &MirrorWorker{mirror: mirror, source: source, logger: logger}
}

// HandleEvent applies one event. Replays are harmless: a created event
// whose record is already mirrored and a deleted event for an absent record
// are both no-ops.
//
// Ids are reused once the highest expense is deleted, so matching compares
// whole records. A requeued delete of an old record then cannot drop a newer
// record that took the same id. Deleted events without removed records
// fall back to matching by id.
func (w *MirrorWorker) HandleEvent(ctx context.Context, event *amqp.ExpenseEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	expenses, err := w.mirror.Load(ctx)
	if err != nil {
		return fmt.Errorf("load mirror: %w", err)
	}

	switch event.Type {
	case amqp.EventExpenseCreated:
		if event.Expense == nil {
			return fmt.Errorf("created event %s has no expense", event.EventID)
		}
		if slices.Contains(expenses, *event.Expense) {
			w.logger.InfoContext(ctx, "Expense already mirrored, skipping",
				"expense_id", event.Expense.ID,
				"event_id", event.EventID)
			return nil
		}
		expenses = append(expenses, *event.Expense)

	case amqp.EventExpenseDeleted:
		var kept []core.Expense
		if len(event.Removed) > 0 {
			kept = slices.DeleteFunc(slices.Clone(expenses), func(e core.Expense) bool {
				return slices.Contains(event.Removed, e)
			})
		} else {
			kept, _ = core.RemoveByID(expenses, strconv.FormatInt(event.ExpenseID, 10))
		}
		if len(kept) == len(expenses) {
			return nil
		}
		expenses = kept

	default:
		return fmt.Errorf("unsupported event type %q", event.Type)
	}

	if err := w.mirror.Save(ctx, expenses); err != nil {
		return fmt.Errorf("save mirror: %w", err)
	}

	w.logger.InfoContext(ctx, "Mirror updated",
		"event_type", event.Type,
		"expense_id", event.ExpenseID,
		"mirrored", len(expenses))
	return nil
}

// StartupSync overwrites the mirror with the source list. It does nothing
// when no source is configured.
func (w *MirrorWorker) StartupSync(ctx context.Context) error {
	if w.source == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	expenses, err := w.source.Load(ctx)
	if err != nil {
		return fmt.Errorf("load source: %w", err)
	}
	if err := w.mirror.Save(ctx, expenses); err != nil {
		return fmt.Errorf("save mirror: %w", err)
	}
	w.logger.InfoContext(ctx, "Startup sync complete", "mirrored", len(expenses))
	return nil
}
