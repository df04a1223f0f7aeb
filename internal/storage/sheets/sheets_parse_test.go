package sheets

import (
	"slices"
	"testing"

	"expensetracker/internal/core"
)

func TestParseRows(t *testing.T) {
	values := [][]any{
		{1.0, "Coffee", 3.5, "2025-11-10"},
		{},
		{"2", " Lunch ", "12,40", "2025-11-11"},
		{"x", "bad id", 1.0, "2025-11-12"},
		{4.5, "fractional id", 1.0, "2025-11-12"},
		{5.0, "bad amount", "abc", "2025-11-12"},
		{6.0, "no date", 7.0},
	}

	got, skipped := parseRows(values)
	want := []core.Expense{
		{ID: 1, Description: "Coffee", Amount: 3.5, Date: "2025-11-10"},
		{ID: 2, Description: "Lunch", Amount: 12.4, Date: "2025-11-11"},
		{ID: 6, Description: "no date", Amount: 7, Date: ""},
	}
	if !slices.Equal(got, want) {
		t.Fatalf("got %+v\nwant %+v", got, want)
	}
	if !slices.Equal(skipped, []int{5, 6, 7}) {
		t.Fatalf("skipped rows = %v", skipped)
	}
}

func TestToRowsWritesHeader(t *testing.T) {
	rows := toRows([]core.Expense{{ID: 7, Description: "d", Amount: 1.5, Date: "2025-01-01"}})
	if len(rows) != 2 {
		t.Fatalf("got %d rows", len(rows))
	}
	if rows[0][0] != "id" || rows[0][3] != "date" {
		t.Fatalf("unexpected header %v", rows[0])
	}
	if rows[1][0] != int64(7) || rows[1][2] != 1.5 {
		t.Fatalf("unexpected data row %v", rows[1])
	}

	if len(toRows(nil)) != 1 {
		t.Fatalf("empty list must still write the header")
	}
}
