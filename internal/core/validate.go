package core

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// User-facing validation messages, in evaluation order.
const (
	MsgDescriptionRequired = "Description is required."
	MsgAmountNotNumber     = "Amount must be a number."
	MsgAmountNotPositive   = "Amount must be positive."
	MsgDateFormat          = "Date must be in YYYY-MM-DD format."
)

// expenseForm mirrors the raw add-expense input. Field order decides the
// order of the returned messages; the validator stops at the first failing
// tag of each field, so a non-numeric amount never also reports "positive".
type expenseForm struct {
	Description string `validate:"notblank"`
	Amount      string `validate:"decimalnum,positiveamount"`
	Date        string `validate:"isodate"`

	// Parsed once by Validate; the amount rules read these.
	amount   float64
	amountOK bool
}

var tagMessages = map[string]string{
	"notblank":       MsgDescriptionRequired,
	"decimalnum":     MsgAmountNotNumber,
	"positiveamount": MsgAmountNotPositive,
	"isodate":        MsgDateFormat,
}

var formValidator = newFormValidator()

func newFormValidator() *validator.Validate {
	v := validator.New()

	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("decimalnum", func(fl validator.FieldLevel) bool {
		return fl.Parent().FieldByName("amountOK").Bool()
	})
	_ = v.RegisterValidation("positiveamount", func(fl validator.FieldLevel) bool {
		parent := fl.Parent()
		return parent.FieldByName("amountOK").Bool() && parent.FieldByName("amount").Float() > 0
	})
	_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		return IsValidDate(fl.Field().String())
	})

	return v
}

// IsValidDate reports whether s is exactly YYYY-MM-DD and names a real day.
func IsValidDate(s string) bool {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return false
	}
	return t.Year() >= 1
}

// Validate checks raw add-expense input. Every rule runs; the messages are
// returned in rule order. The record always carries the trimmed description,
// the parsed amount (0 when unparsable) and the date exactly as given, so the
// caller decides whether to persist it. The record's ID is left zero.
func Validate(description, amountText, dateText string) ([]string, Expense) {
	form := expenseForm{
		Description: description,
		Amount:      amountText,
		Date:        dateText,
	}
	if f, err := ParseAmount(amountText); err == nil {
		form.amount, form.amountOK = f, true
	}

	exp := Expense{
		Description: strings.TrimSpace(description),
		Amount:      form.amount,
		Date:        dateText,
	}

	err := formValidator.Struct(form)
	if err == nil {
		return nil, exp
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		// Only reachable on a programming error (non-struct input).
		return []string{err.Error()}, exp
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if msg, ok := tagMessages[fe.Tag()]; ok {
			msgs = append(msgs, msg)
		}
	}
	return msgs, exp
}
