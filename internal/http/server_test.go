package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"testing/fstest"

	"expensetracker/internal/core"
	"expensetracker/internal/metrics"
	"expensetracker/internal/services"
	"expensetracker/internal/storage/memory"
)

func newTestServer(t *testing.T, store *memory.Store, mutate func(*Options)) *Server {
	t.Helper()
	opts := Options{
		Ledger: services.NewExpenseService(store),
		StaticFS: fstest.MapFS{
			"style.css":     {Data: []byte("body{}")},
			"app.js":        {Data: []byte("console.log(1)")},
			"logo.png":      {Data: []byte{0x89, 'P', 'N', 'G'}},
			"sub/extra.css": {Data: []byte("p{}")},
		},
	}
	if mutate != nil {
		mutate(&opts)
	}
	srv, err := NewServer(opts)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func get(srv *Server, target string) *httptest.ResponseRecorder {
	return do(srv, httptest.NewRequest(http.MethodGet, target, nil))
}

func postForm(srv *Server, target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return do(srv, req)
}

func TestNewServerRequiresLedger(t *testing.T) {
	if _, err := NewServer(Options{}); err == nil {
		t.Fatal("expected error without a ledger")
	}
}

func TestIndexRendersExpenses(t *testing.T) {
	store := memory.New(
		core.Expense{ID: 1, Description: "Coffee", Amount: 3.5, Date: "2025-11-10"},
		core.Expense{ID: 2, Description: "Lunch", Amount: 12, Date: "2025-11-11"},
	)
	srv := newTestServer(t, store, nil)

	for _, path := range []string{"/", "/index", "/index.html"} {
		rr := get(srv, path)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: status %d", path, rr.Code)
		}
		if ct := rr.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
			t.Fatalf("%s: content type %q", path, ct)
		}
		if rr.Header().Get("X-Content-Type-Options") != "nosniff" || rr.Header().Get("X-Frame-Options") != "DENY" {
			t.Fatalf("%s: missing security headers: %v", path, rr.Header())
		}
		body := rr.Body.String()
		for _, want := range []string{
			"2025-11-10", "Coffee", "3.50",
			"Lunch", "12.00",
			`href="/delete-expense?id=1"`, `href="/delete-expense?id=2"`,
			"15.50",
		} {
			if !strings.Contains(body, want) {
				t.Errorf("%s: body missing %q", path, want)
			}
		}
	}
}

func TestIndexEscapesDescriptions(t *testing.T) {
	store := memory.New(core.Expense{ID: 1, Description: "<script>alert(1)</script>", Amount: 1, Date: "2025-01-01"})
	srv := newTestServer(t, store, nil)

	body := get(srv, "/").Body.String()
	if strings.Contains(body, "<script>alert(1)") {
		t.Fatal("description rendered as markup")
	}
	if !strings.Contains(body, "&lt;script&gt;alert(1)&lt;/script&gt;") {
		t.Fatalf("escaped description not found in body")
	}
}

func TestAddExpense(t *testing.T) {
	store := memory.New(core.Expense{ID: 1, Description: "a", Amount: 1, Date: "2025-01-01"},
		core.Expense{ID: 3, Description: "b", Amount: 1, Date: "2025-01-01"})
	srv := newTestServer(t, store, nil)

	rr := postForm(srv, "/add-expense", url.Values{
		"description": {"  Coffee  "},
		"amount":      {"3.50"},
		"date":        {"2025-11-10"},
	})
	if rr.Code != http.StatusFound || rr.Header().Get("Location") != "/" {
		t.Fatalf("got %d Location=%q", rr.Code, rr.Header().Get("Location"))
	}

	got, _ := store.Load(t.Context())
	if len(got) != 3 {
		t.Fatalf("expected 3 expenses, got %d", len(got))
	}
	want := core.Expense{ID: 4, Description: "Coffee", Amount: 3.5, Date: "2025-11-10"}
	if got[2] != want {
		t.Fatalf("got %+v, want %+v", got[2], want)
	}
}

// Rejected submissions redirect like accepted ones and leave the store
// untouched. Messages are not shown unless ShowValidationErrors is set.
func TestAddExpenseValidationErrorsAreSwallowed(t *testing.T) {
	store := memory.New()
	srv := newTestServer(t, store, nil)

	rr := postForm(srv, "/add-expense", url.Values{
		"description": {" "},
		"amount":      {"abc"},
		"date":        {"10-11-2025"},
	})
	if rr.Code != http.StatusFound || rr.Header().Get("Location") != "/" {
		t.Fatalf("got %d Location=%q", rr.Code, rr.Header().Get("Location"))
	}
	if store.Saves() != 0 {
		t.Fatal("invalid submission must not be saved")
	}
	for _, c := range rr.Result().Cookies() {
		if c.Name == flashCookieName {
			t.Fatal("flash cookie set while ShowValidationErrors is off")
		}
	}
}

func TestAddExpenseValidationErrorsFlash(t *testing.T) {
	store := memory.New()
	srv := newTestServer(t, store, func(o *Options) { o.ShowValidationErrors = true })

	rr := postForm(srv, "/add-expense", url.Values{
		"description": {"Coffee"},
		"amount":      {"-5"},
		"date":        {"2025-11-10"},
	})
	if rr.Code != http.StatusFound || rr.Header().Get("Location") != "/" {
		t.Fatalf("got %d Location=%q", rr.Code, rr.Header().Get("Location"))
	}
	var flash *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == flashCookieName {
			flash = c
		}
	}
	if flash == nil {
		t.Fatal("expected flash cookie")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(flash)
	page := do(srv, req)
	if !strings.Contains(page.Body.String(), core.MsgAmountNotPositive) {
		t.Fatalf("flash message not rendered")
	}
	cleared := false
	for _, c := range page.Result().Cookies() {
		if c.Name == flashCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatal("flash cookie not cleared after render")
	}

	// a tampered cookie renders nothing
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: flashCookieName, Value: "!!!"})
	if page := do(srv, req); page.Code != http.StatusOK || strings.Contains(page.Body.String(), `class="errors"`) {
		t.Fatalf("tampered flash: status %d", page.Code)
	}
}

func TestDeleteExpense(t *testing.T) {
	cases := []struct {
		name      string
		target    string
		wantIDs   []int64
		wantSaves int
	}{
		{"existing", "/delete-expense?id=2", []int64{1, 3}, 1},
		{"nonexistent", "/delete-expense?id=99", []int64{1, 2, 3}, 0},
		{"missing id", "/delete-expense", []int64{1, 2, 3}, 0},
		{"non numeric", "/delete-expense?id=abc", []int64{1, 2, 3}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := memory.New(
				core.Expense{ID: 1, Description: "a", Amount: 1, Date: "2025-01-01"},
				core.Expense{ID: 2, Description: "b", Amount: 2, Date: "2025-01-02"},
				core.Expense{ID: 3, Description: "c", Amount: 3, Date: "2025-01-03"},
			)
			srv := newTestServer(t, store, nil)

			rr := get(srv, tc.target)
			if rr.Code != http.StatusFound || rr.Header().Get("Location") != "/" {
				t.Fatalf("got %d Location=%q", rr.Code, rr.Header().Get("Location"))
			}
			got, _ := store.Load(t.Context())
			if len(got) != len(tc.wantIDs) {
				t.Fatalf("got %v", got)
			}
			for i, id := range tc.wantIDs {
				if got[i].ID != id {
					t.Fatalf("position %d: id %d, want %d", i, got[i].ID, id)
				}
			}
			if store.Saves() != tc.wantSaves {
				t.Fatalf("saves = %d, want %d", store.Saves(), tc.wantSaves)
			}
		})
	}
}

func TestUnknownRoutesAndMethods(t *testing.T) {
	srv := newTestServer(t, memory.New(), nil)

	cases := []struct {
		method string
		target string
	}{
		{http.MethodGet, "/nope"},
		{http.MethodGet, "/add-expense"},
		{http.MethodPost, "/"},
		{http.MethodPost, "/delete-expense?id=1"},
		{http.MethodPut, "/add-expense"},
		{http.MethodDelete, "/static/style.css"},
		{http.MethodGet, "/delete-expense/1"},
	}
	for _, tc := range cases {
		rr := do(srv, httptest.NewRequest(tc.method, tc.target, nil))
		if rr.Code != http.StatusNotFound {
			t.Errorf("%s %s: status %d, want 404", tc.method, tc.target, rr.Code)
		}
		if rr.Header().Get("X-Frame-Options") != "DENY" {
			t.Errorf("%s %s: missing security headers", tc.method, tc.target)
		}
	}
}

func TestStaticFiles(t *testing.T) {
	srv := newTestServer(t, memory.New(), nil)

	cases := []struct {
		target      string
		status      int
		contentType string
	}{
		{"/static/style.css", http.StatusOK, "text/css"},
		{"/static/app.js", http.StatusOK, "application/javascript"},
		{"/static/logo.png", http.StatusOK, "application/octet-stream"},
		{"/static/sub/extra.css", http.StatusOK, "text/css"},
		{"/static/sub/../style.css", http.StatusOK, "text/css"},
		{"/static/missing.css", http.StatusNotFound, ""},
		{"/static/", http.StatusNotFound, ""},
		{"/static/sub", http.StatusNotFound, ""},
		{"/static/../go.mod", http.StatusForbidden, ""},
		{"/static/sub/../../go.mod", http.StatusForbidden, ""},
		{"/static/%2e%2e/go.mod", http.StatusForbidden, ""},
		{"/static//etc/passwd", http.StatusForbidden, ""},
	}
	for _, tc := range cases {
		rr := get(srv, tc.target)
		if rr.Code != tc.status {
			t.Errorf("%s: status %d, want %d", tc.target, rr.Code, tc.status)
			continue
		}
		if tc.contentType != "" && rr.Header().Get("Content-Type") != tc.contentType {
			t.Errorf("%s: content type %q, want %q", tc.target, rr.Header().Get("Content-Type"), tc.contentType)
		}
	}
}

func TestEmbeddedAssets(t *testing.T) {
	srv, err := NewServer(Options{Ledger: services.NewExpenseService(memory.New())})
	if err != nil {
		t.Fatal(err)
	}
	for _, path := range []string{"/static/style.css", "/static/app.js"} {
		if rr := get(srv, path); rr.Code != http.StatusOK {
			t.Errorf("%s: status %d", path, rr.Code)
		}
	}
}

func TestStorageFailureIs500(t *testing.T) {
	store := memory.New()
	store.FailWith(errors.New("disk on fire"))
	srv := newTestServer(t, store, nil)

	if rr := get(srv, "/"); rr.Code != http.StatusInternalServerError {
		t.Errorf("index: status %d", rr.Code)
	}
	rr := postForm(srv, "/add-expense", url.Values{"description": {"x"}, "amount": {"1"}, "date": {"2025-01-01"}})
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("add: status %d", rr.Code)
	}
	if rr := get(srv, "/delete-expense?id=1"); rr.Code != http.StatusInternalServerError {
		t.Errorf("delete: status %d", rr.Code)
	}
	if strings.Contains(get(srv, "/").Body.String(), "disk on fire") {
		t.Error("internal error leaked to the client")
	}

	// the server keeps serving once the store recovers
	store.FailWith(nil)
	if rr := get(srv, "/"); rr.Code != http.StatusOK {
		t.Errorf("after recovery: status %d", rr.Code)
	}
}

func TestRateLimitOnMutatingRoutes(t *testing.T) {
	srv := newTestServer(t, memory.New(), func(o *Options) { o.RateLimitPerMinute = 2 })

	for i := 0; i < 2; i++ {
		if rr := get(srv, "/delete-expense?id=1"); rr.Code != http.StatusFound {
			t.Fatalf("request %d: status %d", i, rr.Code)
		}
	}
	rr := get(srv, "/delete-expense?id=1")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status %d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After")
	}

	// reads are never limited
	for i := 0; i < 5; i++ {
		if rr := get(srv, "/"); rr.Code != http.StatusOK {
			t.Fatalf("index status %d", rr.Code)
		}
	}
}

func TestOperationalEndpoints(t *testing.T) {
	m := metrics.New()
	store := memory.New()
	srv := newTestServer(t, store, func(o *Options) { o.Metrics = m })

	if rr := get(srv, "/healthz"); rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"ok"`) {
		t.Fatalf("healthz: %d %s", rr.Code, rr.Body.String())
	} else if cc := rr.Header().Get("Cache-Control"); cc != "no-store" {
		t.Fatalf("healthz Cache-Control = %q", cc)
	}
	if rr := get(srv, "/readyz"); rr.Code != http.StatusOK {
		t.Fatalf("readyz: %d", rr.Code)
	}

	get(srv, "/")
	rr := get(srv, "/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics: %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `expensetracker_http_requests_total{code="200",route="index"}`) {
		t.Fatalf("request counter missing from exposition")
	}

	store.FailWith(errors.New("down"))
	if rr := get(srv, "/readyz"); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz on failing store: %d", rr.Code)
	} else if cc := rr.Header().Get("Cache-Control"); cc != "no-store" {
		t.Fatalf("readyz Cache-Control = %q", cc)
	}
}

func TestMetricsDisabledIs404(t *testing.T) {
	srv := newTestServer(t, memory.New(), nil)
	if rr := get(srv, "/metrics"); rr.Code != http.StatusNotFound {
		t.Fatalf("status %d", rr.Code)
	}
}

func TestRequestIDHeader(t *testing.T) {
	srv := newTestServer(t, memory.New(), nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	if got := do(srv, req).Header().Get("X-Request-ID"); got != "abc-123" {
		t.Fatalf("X-Request-ID = %q", got)
	}
}
