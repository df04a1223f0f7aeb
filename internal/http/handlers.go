package http

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"expensetracker/internal/core"
	applog "expensetracker/internal/log"
)

type indexPage struct {
	Expenses []core.Expense
	Count    int
	Total    float64
	Errors   []string
	Today    string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)

	expenses, err := s.ledger.List(ctx)
	if err != nil {
		s.structured.LogError(ctx, "Failed to load expenses", err, applog.ComponentStorage, applog.OpList, nil)
		InternalServerError("Could not load expenses.").Write(w)
		return
	}

	summary := core.Summarize(expenses)
	data := indexPage{
		Expenses: expenses,
		Count:    summary.Count,
		Total:    summary.Total,
		Today:    time.Now().Format(core.DateLayout),
	}
	if s.showValidationErrors {
		data.Errors = popFlash(w, r)
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "index.html", data); err != nil {
		logger.WithComponent(applog.ComponentTemplate).ErrorContext(ctx, "Index template execution failed",
			applog.FieldOperation, applog.OpRender,
			applog.FieldError, err)
		InternalServerError("Could not render the page.").Write(w)
		return
	}

	NewResponse().BodyHTML(buf.Bytes()).Write(w)
}

// handleAddExpense always redirects home. Rejected input is dropped unless
// ShowValidationErrors is set, in which case the messages ride along in a
// flash cookie.
func (s *Server) handleAddExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	form, err := ParseExpenseForm(w, r)
	if err != nil {
		applog.FromContext(ctx).WarnContext(ctx, "Unreadable add-expense body",
			applog.FieldError, err)
	}

	_, msgs, err := s.ledger.Add(ctx, form.Description, form.Amount, form.Date)
	if err != nil {
		s.structured.LogError(ctx, "Failed to add expense", err, applog.ComponentStorage, applog.OpCreate, nil)
		InternalServerError("Could not save the expense.").Write(w)
		return
	}
	if len(msgs) > 0 && s.showValidationErrors {
		setFlash(w, msgs)
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

// handleDeleteExpense removes every expense with the given id. A missing
// or unknown id is a no-op that still redirects.
func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if _, err := s.ledger.Delete(ctx, r.URL.Query().Get("id")); err != nil {
		s.structured.LogError(ctx, "Failed to delete expense", err, applog.ComponentStorage, applog.OpDelete, nil)
		InternalServerError("Could not delete the expense.").Write(w)
		return
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	probeResponse().BodyJSON(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var err error
	if p, ok := s.ledger.(pinger); ok {
		err = p.Ping(ctx)
	} else {
		_, err = s.ledger.List(ctx)
	}
	if err != nil {
		applog.FromContext(ctx).WarnContext(ctx, "Readiness check failed", applog.FieldError, err)
		probeResponse().
			Status(http.StatusServiceUnavailable).
			BodyJSON(map[string]string{"status": "unavailable"}).
			Write(w)
		return
	}
	probeResponse().BodyJSON(map[string]string{"status": "ready"}).Write(w)
}

// probeResponse starts a health or readiness answer; proxies must not cache it.
func probeResponse() *ResponseBuilder {
	return NewResponse().Header("Cache-Control", "no-store")
}
