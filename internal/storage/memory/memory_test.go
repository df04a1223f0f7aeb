package memory

import (
	"context"
	"errors"
	"testing"

	"expensetracker/internal/core"
)

func TestMemoryStoreSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	s := New(core.Expense{ID: 1, Description: "seed", Amount: 1, Date: "2025-01-01"})

	got, err := s.Load(ctx)
	if err != nil || len(got) != 1 {
		t.Fatalf("unexpected load: %v err=%v", got, err)
	}

	// mutating the loaded slice must not leak into the store
	got[0].Description = "changed"
	again, _ := s.Load(ctx)
	if again[0].Description != "seed" {
		t.Fatalf("store was mutated through a loaded slice")
	}

	if err := s.Save(ctx, append(again, core.Expense{ID: 2})); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, _ = s.Load(ctx)
	if len(got) != 2 || got[1].ID != 2 {
		t.Fatalf("unexpected list after save: %v", got)
	}
	if s.Saves() != 1 {
		t.Fatalf("saves = %d, want 1", s.Saves())
	}
}

func TestMemoryStoreEmpty(t *testing.T) {
	got, err := New().Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", got)
	}
}

func TestMemoryStoreFailWith(t *testing.T) {
	s := New()
	boom := errors.New("disk on fire")
	s.FailWith(boom)
	if _, err := s.Load(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	if err := s.Save(context.Background(), nil); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	s.FailWith(nil)
	if _, err := s.Load(context.Background()); err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
}
