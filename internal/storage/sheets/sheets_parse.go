package sheets

import (
	"fmt"
	"strconv"
	"strings"

	"expensetracker/internal/core"
)

// parseRows converts the A2:D value matrix into expenses. It returns the
// 1-based sheet row numbers it could not parse. Fully empty rows are ignored.
func parseRows(values [][]any) ([]core.Expense, []int) {
	expenses := make([]core.Expense, 0, len(values))
	var skipped []int
	for i, raw := range values {
		row := toStrings(raw)
		if isBlank(row) {
			continue
		}
		e, ok := parseRow(row)
		if !ok {
			skipped = append(skipped, i+2)
			continue
		}
		expenses = append(expenses, e)
	}
	return expenses, skipped
}

func parseRow(row []string) (core.Expense, bool) {
	id, err := strconv.ParseFloat(safeGet(row, 0), 64)
	if err != nil || id != float64(int64(id)) {
		return core.Expense{}, false
	}
	amount, err := strconv.ParseFloat(strings.ReplaceAll(safeGet(row, 2), ",", "."), 64)
	if err != nil {
		return core.Expense{}, false
	}
	return core.Expense{
		ID:          int64(id),
		Description: safeGet(row, 1),
		Amount:      amount,
		Date:        safeGet(row, 3),
	}, true
}

// toRows renders the header plus one row per expense.
func toRows(expenses []core.Expense) [][]any {
	rows := make([][]any, 0, len(expenses)+1)
	rows = append(rows, header)
	for _, e := range expenses {
		rows = append(rows, []any{e.ID, e.Description, e.Amount, e.Date})
	}
	return rows
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		switch n := v.(type) {
		case float64:
			out[i] = strconv.FormatFloat(n, 'f', -1, 64)
		default:
			out[i] = strings.TrimSpace(fmt.Sprint(v))
		}
	}
	return out
}

func isBlank(row []string) bool {
	for _, c := range row {
		if c != "" {
			return false
		}
	}
	return true
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
