// Package sheets persists the expense list in a Google Sheets tab.
//
// The tab holds a header row followed by one row per expense:
//
//	id | description | amount | date
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"expensetracker/internal/core"
	"expensetracker/internal/storage"
)

var header = []any{"id", "description", "amount", "date"}

type Config struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string
}

type Store struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *slog.Logger
}

var (
	_ storage.Store  = (*Store)(nil)
	_ storage.Pinger = (*Store)(nil)
)

// New creates a Sheets-backed store authenticated with a service account.
// Credentials come from cfg, falling back to GOOGLE_APPLICATION_CREDENTIALS.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if cfg.SheetName == "" {
		cfg.SheetName = "Expenses"
	}

	svc, err := newSheetsService(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Store{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     cfg.SheetName,
		logger:        logger,
	}, nil
}

func newSheetsService(ctx context.Context, cfg Config, logger *slog.Logger) (*gsheet.Service, error) {
	jsonCreds := strings.TrimSpace(cfg.ServiceAccountJSON)
	file := strings.TrimSpace(cfg.ServiceAccountFile)
	if jsonCreds == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case jsonCreds != "":
		logger.InfoContext(ctx, "Using inline service account credentials")
		credentialsJSON = []byte(jsonCreds)
	case file != "":
		logger.InfoContext(ctx, "Reading service account credentials", "path", file)
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = data
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

func (s *Store) rangeOf(cells string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(s.sheetName, "'", "''"), cells)
}

// Load reads every data row below the header. Rows that cannot be parsed
// are skipped with a warning.
func (s *Store) Load(ctx context.Context) ([]core.Expense, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, s.rangeOf("A2:D")).
		ValueRenderOption("UNFORMATTED_VALUE").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.sheetName, err)
	}

	expenses, skipped := parseRows(resp.Values)
	for _, row := range skipped {
		s.logger.WarnContext(ctx, "Skipping unparsable sheet row",
			"sheet", s.sheetName,
			"row", row)
	}
	return expenses, nil
}

// Save clears the tab and writes the header plus one row per expense.
func (s *Store) Save(ctx context.Context, expenses []core.Expense) error {
	_, err := s.svc.Spreadsheets.Values.Clear(s.spreadsheetID, s.rangeOf("A:D"),
		&gsheet.ClearValuesRequest{}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear %s: %w", s.sheetName, err)
	}

	vr := &gsheet.ValueRange{Values: toRows(expenses)}
	_, err = s.svc.Spreadsheets.Values.Update(s.spreadsheetID, s.rangeOf("A1"), vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write %s: %w", s.sheetName, err)
	}
	return nil
}

// Ping checks that the spreadsheet is reachable.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.svc.Spreadsheets.Get(s.spreadsheetID).Fields("spreadsheetId").Context(ctx).Do()
	return err
}
