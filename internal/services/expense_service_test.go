package services

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"sync"
	"testing"

	"expensetracker/internal/core"
	"expensetracker/internal/metrics"
	"expensetracker/internal/storage/memory"
)

type fakePublisher struct {
	mu      sync.Mutex
	created []core.Expense
	deleted []int64
	err     error
	closed  bool
}

func (f *fakePublisher) PublishCreated(_ context.Context, e core.Expense) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, e)
	return f.err
}

func (f *fakePublisher) PublishDeleted(_ context.Context, id int64, _ []core.Expense) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return f.err
}

func (f *fakePublisher) Close() error {
	f.closed = true
	return nil
}

func TestExpenseService_Add(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	pub := &fakePublisher{}
	svc := NewExpenseService(store, WithPublisher(pub), WithMetrics(metrics.New()))

	exp, msgs, err := svc.Add(ctx, "Coffee", "3.50", "2025-11-10")
	if err != nil || len(msgs) != 0 {
		t.Fatalf("unexpected result: msgs=%v err=%v", msgs, err)
	}
	if exp.ID != 1 || exp.Description != "Coffee" || exp.Amount != 3.5 {
		t.Fatalf("unexpected expense: %+v", exp)
	}

	exp2, _, _ := svc.Add(ctx, "Lunch", "12", "2025-11-11")
	if exp2.ID != 2 {
		t.Fatalf("second id = %d, want 2", exp2.ID)
	}

	list, _ := svc.List(ctx)
	if len(list) != 2 || list[0].ID != 1 || list[1].ID != 2 {
		t.Fatalf("unexpected list order: %+v", list)
	}
	if len(pub.created) != 2 {
		t.Fatalf("expected 2 created events, got %d", len(pub.created))
	}
}

func TestExpenseService_AddInvalidPersistsNothing(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	pub := &fakePublisher{}
	svc := NewExpenseService(store, WithPublisher(pub))

	_, msgs, err := svc.Add(ctx, "Coffee", "-5", "2025-11-10")
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(msgs, []string{core.MsgAmountNotPositive}) {
		t.Fatalf("msgs = %v", msgs)
	}
	if store.Saves() != 0 {
		t.Fatal("invalid input must not be saved")
	}
	if len(pub.created) != 0 {
		t.Fatal("invalid input must not publish")
	}
}

func TestExpenseService_AddUsesMaxPlusOne(t *testing.T) {
	store := memory.New(core.Expense{ID: 1}, core.Expense{ID: 3})
	svc := NewExpenseService(store)
	exp, _, err := svc.Add(context.Background(), "x", "1", "2025-01-01")
	if err != nil {
		t.Fatal(err)
	}
	if exp.ID != 4 {
		t.Fatalf("id = %d, want 4", exp.ID)
	}
}

func TestExpenseService_PublishFailureDoesNotFail(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := NewExpenseService(memory.New(), WithPublisher(pub))

	if _, _, err := svc.Add(context.Background(), "x", "1", "2025-01-01"); err != nil {
		t.Fatalf("publish failures must not fail add: %v", err)
	}
	if _, err := svc.Delete(context.Background(), "1"); err != nil {
		t.Fatalf("publish failures must not fail delete: %v", err)
	}
}

func TestExpenseService_Delete(t *testing.T) {
	ctx := context.Background()
	store := memory.New(
		core.Expense{ID: 1, Description: "a"},
		core.Expense{ID: 2, Description: "b"},
	)
	pub := &fakePublisher{}
	svc := NewExpenseService(store, WithPublisher(pub))

	n, err := svc.Delete(ctx, "1")
	if err != nil || n != 1 {
		t.Fatalf("delete: n=%d err=%v", n, err)
	}
	list, _ := svc.List(ctx)
	if len(list) != 1 || list[0].ID != 2 {
		t.Fatalf("unexpected list: %+v", list)
	}
	if !slices.Equal(pub.deleted, []int64{1}) {
		t.Fatalf("deleted events = %v", pub.deleted)
	}

	// idempotent: a second delete removes nothing and writes nothing
	saves := store.Saves()
	n, err = svc.Delete(ctx, "1")
	if err != nil || n != 0 {
		t.Fatalf("second delete: n=%d err=%v", n, err)
	}
	if store.Saves() != saves {
		t.Fatal("no-op delete must not save")
	}

	for _, id := range []string{"", "abc", "99"} {
		if n, err := svc.Delete(ctx, id); err != nil || n != 0 {
			t.Fatalf("Delete(%q): n=%d err=%v", id, n, err)
		}
	}
	if len(pub.deleted) != 1 {
		t.Fatalf("no-op deletes must not publish, got %v", pub.deleted)
	}
}

func TestExpenseService_StoreErrors(t *testing.T) {
	ctx := context.Background()
	store := memory.New(core.Expense{ID: 1})
	svc := NewExpenseService(store)
	boom := errors.New("io failure")
	store.FailWith(boom)

	if _, err := svc.List(ctx); !errors.Is(err, boom) {
		t.Fatalf("List: expected wrapped store error, got %v", err)
	}
	if _, _, err := svc.Add(ctx, "x", "1", "2025-01-01"); !errors.Is(err, boom) {
		t.Fatalf("Add: expected wrapped store error, got %v", err)
	}
	if _, err := svc.Delete(ctx, "1"); !errors.Is(err, boom) {
		t.Fatalf("Delete: expected wrapped store error, got %v", err)
	}
	if err := svc.Ping(ctx); !errors.Is(err, boom) {
		t.Fatalf("Ping: expected store error, got %v", err)
	}
}

func TestExpenseService_ConcurrentAddsGetUniqueIDs(t *testing.T) {
	ctx := context.Background()
	svc := NewExpenseService(memory.New())

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, _, err := svc.Add(ctx, "item "+strconv.Itoa(i), "1", "2025-01-01"); err != nil {
				t.Errorf("add: %v", err)
			}
		}(i)
	}
	wg.Wait()

	list, err := svc.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != n {
		t.Fatalf("got %d expenses, want %d", len(list), n)
	}
	seen := map[int64]bool{}
	for _, e := range list {
		if seen[e.ID] {
			t.Fatalf("duplicate id %d", e.ID)
		}
		seen[e.ID] = true
	}
}

func TestExpenseService_Close(t *testing.T) {
	t.Run("nil components", func(t *testing.T) {
		if err := NewExpenseService(memory.New()).Close(); err != nil {
			t.Fatalf("Close should not return error: %v", err)
		}
	})

	t.Run("closes publisher", func(t *testing.T) {
		pub := &fakePublisher{}
		if err := NewExpenseService(memory.New(), WithPublisher(pub)).Close(); err != nil {
			t.Fatal(err)
		}
		if !pub.closed {
			t.Fatal("publisher was not closed")
		}
	})
}
