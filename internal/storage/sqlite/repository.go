// Package sqlite persists the expense list in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"expensetracker/internal/core"
	"expensetracker/internal/storage"

	_ "modernc.org/sqlite"
)

type Repository struct {
	db *sql.DB
}

var (
	_ storage.Store  = (*Repository)(nil)
	_ storage.Pinger = (*Repository)(nil)
)

// NewRepository opens (creating if needed) the database at dbPath and
// brings its schema up to date.
func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		err := r.db.Close()
		r.db = nil
		return err
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	if r.db == nil {
		return storage.ErrClosed
	}
	return r.db.PingContext(ctx)
}

// Load returns every row ordered by insertion position.
func (r *Repository) Load(ctx context.Context) ([]core.Expense, error) {
	if r.db == nil {
		return nil, storage.ErrClosed
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, description, amount, date FROM expenses ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	expenses := []core.Expense{}
	for rows.Next() {
		var e core.Expense
		if err := rows.Scan(&e.ID, &e.Description, &e.Amount, &e.Date); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return expenses, nil
}

// Save replaces every row inside one transaction.
func (r *Repository) Save(ctx context.Context, expenses []core.Expense) error {
	if r.db == nil {
		return storage.ErrClosed
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM expenses`); err != nil {
		return fmt.Errorf("clear expenses: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO expenses (position, id, description, amount, date) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range expenses {
		if _, err := stmt.ExecContext(ctx, i, e.ID, e.Description, e.Amount, e.Date); err != nil {
			return fmt.Errorf("insert expense %d: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
