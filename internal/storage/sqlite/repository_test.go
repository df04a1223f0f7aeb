package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"expensetracker/internal/core"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(filepath.Join(t.TempDir(), "db", "expenses.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestRepositoryEmpty(t *testing.T) {
	repo := newTestRepo(t)
	got, err := repo.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty list, got %#v", got)
	}
}

func TestRepositorySaveReplacesAndKeepsOrder(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	first := []core.Expense{
		{ID: 3, Description: "c", Amount: 3, Date: "2025-01-03"},
		{ID: 1, Description: "a", Amount: 1.25, Date: "2025-01-01"},
		{ID: 1, Description: "dup", Amount: 9, Date: "2025-01-09"},
	}
	if err := repo.Save(ctx, first); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := repo.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d rows", len(got))
	}
	for i := range first {
		if got[i] != first[i] {
			t.Fatalf("row %d: got %+v, want %+v", i, got[i], first[i])
		}
	}

	if err := repo.Save(ctx, first[:1]); err != nil {
		t.Fatal(err)
	}
	got, _ = repo.Load(ctx)
	if len(got) != 1 || got[0].ID != 3 {
		t.Fatalf("save did not replace rows: %v", got)
	}
}

func TestRepositoryReopenRunsMigrationsIdempotently(t *testing.T) {
	path := filepath.Join(t.TempDir(), "expenses.db")
	repo, err := NewRepository(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.Save(context.Background(), []core.Expense{{ID: 1, Description: "x", Amount: 1, Date: "2025-01-01"}}); err != nil {
		t.Fatal(err)
	}
	repo.Close()

	repo, err = NewRepository(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer repo.Close()
	got, err := repo.Load(context.Background())
	if err != nil || len(got) != 1 {
		t.Fatalf("unexpected after reopen: %v err=%v", got, err)
	}
}

func TestRepositoryClosed(t *testing.T) {
	repo := newTestRepo(t)
	repo.Close()
	if _, err := repo.Load(context.Background()); err == nil {
		t.Fatal("expected error after close")
	}
	if err := repo.Ping(context.Background()); err == nil {
		t.Fatal("expected ping error after close")
	}
}
