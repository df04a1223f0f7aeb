package worker

import (
	"context"
	"errors"
	"testing"

	"expensetracker/internal/amqp"
	"expensetracker/internal/core"
	"expensetracker/internal/storage/memory"
)

func TestMirrorWorker_Created(t *testing.T) {
	ctx := context.Background()
	mirror := memory.New()
	w := NewMirrorWorker(mirror, nil, nil)

	e := core.Expense{ID: 1, Description: "Coffee", Amount: 3.5, Date: "2025-11-10"}
	if err := w.HandleEvent(ctx, amqp.NewExpenseCreated(e)); err != nil {
		t.Fatal(err)
	}
	// redelivery must not duplicate
	if err := w.HandleEvent(ctx, amqp.NewExpenseCreated(e)); err != nil {
		t.Fatal(err)
	}

	got, _ := mirror.Load(ctx)
	if len(got) != 1 || got[0] != e {
		t.Fatalf("unexpected mirror: %+v", got)
	}
}

func TestMirrorWorker_Deleted(t *testing.T) {
	ctx := context.Background()
	mirror := memory.New(core.Expense{ID: 1}, core.Expense{ID: 2})
	w := NewMirrorWorker(mirror, nil, nil)

	if err := w.HandleEvent(ctx, amqp.NewExpenseDeleted(1)); err != nil {
		t.Fatal(err)
	}
	got, _ := mirror.Load(ctx)
	if len(got) != 1 || got[0].ID != 2 {
		t.Fatalf("unexpected mirror: %+v", got)
	}

	saves := mirror.Saves()
	if err := w.HandleEvent(ctx, amqp.NewExpenseDeleted(1)); err != nil {
		t.Fatal(err)
	}
	if mirror.Saves() != saves {
		t.Fatal("deleting an absent id must not write")
	}
}

func TestMirrorWorker_RequeuedDeleteKeepsReusedID(t *testing.T) {
	ctx := context.Background()
	old := core.Expense{ID: 2, Description: "Coffee", Amount: 3.5, Date: "2025-11-10"}
	reused := core.Expense{ID: 2, Description: "Lunch", Amount: 12, Date: "2025-11-11"}
	mirror := memory.New(core.Expense{ID: 1, Description: "a", Amount: 1, Date: "2025-01-01"}, old)
	w := NewMirrorWorker(mirror, nil, nil)

	// the delete of old is requeued behind the create that reuses its id
	if err := w.HandleEvent(ctx, amqp.NewExpenseCreated(reused)); err != nil {
		t.Fatal(err)
	}
	if err := w.HandleEvent(ctx, amqp.NewExpenseDeleted(old.ID, old)); err != nil {
		t.Fatal(err)
	}

	got, _ := mirror.Load(ctx)
	if len(got) != 2 || got[1] != reused {
		t.Fatalf("unexpected mirror: %+v", got)
	}
}

func TestMirrorWorker_StoreErrorIsReturned(t *testing.T) {
	mirror := memory.New()
	mirror.FailWith(errors.New("locked"))
	w := NewMirrorWorker(mirror, nil, nil)

	if err := w.HandleEvent(context.Background(), amqp.NewExpenseDeleted(1)); err == nil {
		t.Fatal("expected error so the message is requeued")
	}
}

func TestMirrorWorker_UnknownType(t *testing.T) {
	w := NewMirrorWorker(memory.New(), nil, nil)
	err := w.HandleEvent(context.Background(), &amqp.ExpenseEvent{Type: "expense.renamed"})
	if err == nil {
		t.Fatal("expected error for unknown event type")
	}
}

func TestMirrorWorker_StartupSync(t *testing.T) {
	ctx := context.Background()
	source := memory.New(core.Expense{ID: 5}, core.Expense{ID: 6})
	mirror := memory.New(core.Expense{ID: 1})

	if err := NewMirrorWorker(mirror, nil, nil).StartupSync(ctx); err != nil {
		t.Fatalf("no source should be a no-op: %v", err)
	}
	if mirror.Saves() != 0 {
		t.Fatal("no source must not write")
	}

	if err := NewMirrorWorker(mirror, source, nil).StartupSync(ctx); err != nil {
		t.Fatal(err)
	}
	got, _ := mirror.Load(ctx)
	if len(got) != 2 || got[0].ID != 5 {
		t.Fatalf("mirror not replaced by source: %+v", got)
	}
}
