package http

import (
	"net/http"
)

// maxFormBytes caps the add-expense body.
const maxFormBytes = 64 << 10

// ExpenseForm holds the raw add-expense fields. Values are passed to the
// validator untouched.
type ExpenseForm struct {
	Description string
	Amount      string
	Date        string
}

// ParseExpenseForm reads the url-encoded body of an add request. A body that
// cannot be parsed yields empty fields and the parse error; the caller still
// validates, so the submission is rejected the same way as any other bad
// input.
func ParseExpenseForm(w http.ResponseWriter, r *http.Request) (ExpenseForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		return ExpenseForm{}, err
	}
	return ExpenseForm{
		Description: r.PostForm.Get("description"),
		Amount:      r.PostForm.Get("amount"),
		Date:        r.PostForm.Get("date"),
	}, nil
}
