// Package jsonfile stores the expense list as a pretty-printed JSON array
// in a single file.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"expensetracker/internal/core"
	"expensetracker/internal/storage"
)

type Store struct {
	path   string
	logger *slog.Logger
}

var _ storage.Store = (*Store)(nil)

// New returns a store backed by the file at path. The file does not need
// to exist yet.
func New(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{path: path, logger: logger}
}

// Load reads the file. A missing file, unparsable content or a JSON null
// all load as an empty list; other read errors are returned.
func (s *Store) Load(ctx context.Context) ([]core.Expense, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []core.Expense{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	var expenses []core.Expense
	if err := json.Unmarshal(data, &expenses); err != nil {
		s.logger.WarnContext(ctx, "Data file is not a valid expense list, treating as empty",
			"path", s.path,
			"error", err)
		return []core.Expense{}, nil
	}
	if expenses == nil {
		expenses = []core.Expense{}
	}
	return expenses, nil
}

// Save writes the list to a temporary file in the same directory and renames
// it over the target, so readers never observe a partial file.
func (s *Store) Save(_ context.Context, expenses []core.Expense) error {
	if expenses == nil {
		expenses = []core.Expense{}
	}
	data, err := json.MarshalIndent(expenses, "", "  ")
	if err != nil {
		return fmt.Errorf("encode expenses: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}
