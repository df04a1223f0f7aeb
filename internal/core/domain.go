package core

import (
	"errors"
	"strconv"
)

// DateLayout is the only accepted calendar date format.
const DateLayout = "2006-01-02"

type (
	Expense struct {
		ID          int64   `json:"id"`
		Description string  `json:"description"`
		Amount      float64 `json:"amount"`
		Date        string  `json:"date"`
	}

	// Summary aggregates a listing for display.
	Summary struct {
		Count int
		Total float64
	}
)

var ErrInvalidID = errors.New("invalid expense id")

// IDString returns the id in the form used by delete links and lookups.
func (e Expense) IDString() string {
	return strconv.FormatInt(e.ID, 10)
}

// ParseID parses a positive decimal expense id.
func ParseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 1 {
		return 0, ErrInvalidID
	}
	return id, nil
}

// NextID returns max(existing ids) + 1, or 1 for an empty list.
func NextID(expenses []Expense) int64 {
	var maxID int64
	for _, e := range expenses {
		if e.ID > maxID {
			maxID = e.ID
		}
	}
	return maxID + 1
}

// RemoveByID drops every expense whose stringified id equals id.
// The input slice is not modified.
func RemoveByID(expenses []Expense, id string) (kept []Expense, removed []Expense) {
	kept = make([]Expense, 0, len(expenses))
	for _, e := range expenses {
		if e.IDString() == id {
			removed = append(removed, e)
			continue
		}
		kept = append(kept, e)
	}
	return kept, removed
}

// Summarize counts the expenses and sums their amounts.
func Summarize(expenses []Expense) Summary {
	s := Summary{Count: len(expenses)}
	total := AmountDecimal(0)
	for _, e := range expenses {
		total = total.Add(AmountDecimal(e.Amount))
	}
	s.Total, _ = total.Float64()
	return s
}
