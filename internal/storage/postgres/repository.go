// Package postgres persists the expense list in PostgreSQL through lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"expensetracker/internal/core"
	"expensetracker/internal/storage"
)

type Repository struct {
	db *sql.DB
}

var (
	_ storage.Store  = (*Repository)(nil)
	_ storage.Pinger = (*Repository)(nil)
)

// NewRepository connects to databaseURL, verifies the connection and
// applies pending migrations.
func NewRepository(ctx context.Context, databaseURL string) (*Repository, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(databaseURL); err != nil {
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

// Save truncates the table and bulk-loads the list with COPY, all in one
// transaction.
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
		pq.CopyIn("expenses", "position", "id", "description", "amount", "date"))
	if err != nil {
		return fmt.Errorf("prepare copy: %w", err)
	}
	for i, e := range expenses {
		if _, err := stmt.ExecContext(ctx, i, e.ID, e.Description, e.Amount, e.Date); err != nil {
			stmt.Close()
			return fmt.Errorf("copy expense %d: %w", e.ID, err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("flush copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("close copy: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
