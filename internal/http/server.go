// Package http serves the expense tracker web interface.
package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"expensetracker/internal/core"
	applog "expensetracker/internal/log"
	"expensetracker/internal/metrics"
	"expensetracker/internal/middleware/ratelimit"
	"expensetracker/internal/middleware/security"
	"expensetracker/internal/middleware/trace"
	appweb "expensetracker/web"
)

// Ledger is the expense service as seen by the handlers.
type Ledger interface {
	List(ctx context.Context) ([]core.Expense, error)
	Add(ctx context.Context, description, amount, date string) (core.Expense, []string, error)
	Delete(ctx context.Context, id string) (int, error)
}

// pinger is implemented by ledgers that can report readiness cheaply.
type pinger interface {
	Ping(ctx context.Context) error
}

// Options configures NewServer. Ledger is required.
type Options struct {
	Addr    string
	Ledger  Ledger
	Metrics *metrics.Metrics
	Logger  *applog.Logger

	// StaticFS and TemplatesFS default to the embedded web assets.
	StaticFS    fs.FS
	TemplatesFS fs.FS

	// ShowValidationErrors surfaces rejected add submissions on the next
	// page render. Off by default: rejected submissions are dropped
	// silently.
	ShowValidationErrors bool

	// RateLimitPerMinute limits mutating requests per client. Zero or
	// negative disables the limiter.
	RateLimitPerMinute int
	TrustedProxies     []string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type Server struct {
	http.Server

	ledger     Ledger
	templates  *template.Template
	static     http.Handler
	metrics    *metrics.Metrics
	logger     *applog.Logger
	structured *applog.StructuredLogger
	detector   *security.Detector

	limiter *ratelimit.Limiter
	limit   func(http.Handler) http.Handler

	showValidationErrors bool
	shutdownOnce         sync.Once
}

// NewServer parses the templates and wires the middleware chain, returning
// a ready-to-run server.
func NewServer(opts Options) (*Server, error) {
	if opts.Ledger == nil {
		return nil, fmt.Errorf("http server: ledger is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = applog.Wrap(nil, applog.ComponentHTTP)
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	templatesFS := opts.TemplatesFS
	if templatesFS == nil {
		templatesFS = appweb.TemplatesFS
	}
	t, err := parseTemplates(templatesFS)
	if err != nil {
		return nil, err
	}

	staticFS := opts.StaticFS
	if staticFS == nil {
		sub, err := fs.Sub(appweb.StaticFS, "static")
		if err != nil {
			return nil, fmt.Errorf("mount embedded static assets: %w", err)
		}
		staticFS = sub
	}

	detector := security.NewDetector()
	for _, cidr := range opts.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			return nil, fmt.Errorf("trusted proxies: %w", err)
		}
	}

	s := &Server{
		ledger:               opts.Ledger,
		templates:            t,
		metrics:              opts.Metrics,
		logger:               logger,
		structured:           applog.NewStructuredLogger(logger),
		detector:             detector,
		showValidationErrors: opts.ShowValidationErrors,
	}
	s.static = security.StaticAssetMiddleware(3600)(staticHandler{root: staticFS, s: s})

	if opts.RateLimitPerMinute > 0 {
		s.limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute})
		s.limit = s.limiter.Middleware(detector.ExtractClientIP, s.onRateLimited)
	}

	s.Server = http.Server{
		Addr:         opts.Addr,
		Handler:      s.handler(),
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		IdleTimeout:  opts.IdleTimeout,
	}
	return s, nil
}

// handler builds the middleware chain around the router. Outermost first:
// tracing, request-scoped logger, security headers, probe detection.
func (s *Server) handler() http.Handler {
	var h http.Handler = http.HandlerFunc(s.route)
	h = s.detectSuspicious(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = applog.RequestIDMiddleware(trace.FromRequest)(h)
	h = applog.Middleware(s.logger)(h)
	h = trace.NewMiddleware(s.detector.ExtractClientIP, s.structured, s.observe).Middleware(h)
	return h
}

func (s *Server) observe(r *http.Request, statusCode int, d time.Duration) {
	s.metrics.ObserveRequest(classifyRoute(r.URL.Path), statusCode, d)
}

func (s *Server) detectSuspicious(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.DetectSuspiciousRequest(r) {
			s.metrics.SuspiciousRequest()
			applog.FromContext(r.Context()).WithComponent(applog.ComponentSecurity).WarnContext(r.Context(),
				"Suspicious request",
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path,
				applog.FieldClientIP, s.detector.ExtractClientIP(r),
				applog.FieldUserAgent, r.Header.Get("User-Agent"))
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) onRateLimited(r *http.Request) {
	s.metrics.RateLimited()
	applog.FromContext(r.Context()).WithComponent(applog.ComponentRateLimit).WarnContext(r.Context(),
		"Rate limit exceeded",
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
}

// Shutdown gracefully shuts down the server and the limiter cleanup.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

func parseTemplates(fsys fs.FS) (*template.Template, error) {
	t, err := template.New("").Funcs(template.FuncMap{
		"amount": core.FormatAmount,
	}).ParseFS(fsys, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	if t.Lookup("index.html") == nil {
		return nil, fmt.Errorf("parse templates: index.html not found")
	}
	return t, nil
}
