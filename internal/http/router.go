package http

import (
	"net/http"
	"strings"
)

// Route labels. They double as the metrics "route" label, so the set is
// closed.
const (
	routeIndex    = "index"
	routeStatic   = "static"
	routeAdd      = "add_expense"
	routeDelete   = "delete_expense"
	routeHealth   = "healthz"
	routeReady    = "readyz"
	routeMetrics  = "metrics"
	routeNotFound = "not_found"
)

// classifyRoute maps a URL path to its route label. Matching is on the
// raw path only; the query string and method are checked by ServeHTTP.
// http.ServeMux is not used because it cleans paths and would redirect
// traversal attempts instead of letting the static handler refuse them.
func classifyRoute(path string) string {
	switch {
	case path == "/" || strings.HasPrefix(path, "/index"):
		return routeIndex
	case strings.HasPrefix(path, "/static/"):
		return routeStatic
	case path == "/add-expense":
		return routeAdd
	case path == "/delete-expense":
		return routeDelete
	case path == "/healthz":
		return routeHealth
	case path == "/readyz":
		return routeReady
	case path == "/metrics":
		return routeMetrics
	default:
		return routeNotFound
	}
}

// route dispatches on method and path. Anything that does not match a
// route exactly is a 404, including a known path with the wrong method.
func (s *Server) route(w http.ResponseWriter, r *http.Request) {
	route := classifyRoute(r.URL.Path)

	switch {
	case route == routeAdd && r.Method == http.MethodPost:
		s.mutating(s.handleAddExpense).ServeHTTP(w, r)
	case r.Method != http.MethodGet:
		NotFoundError().Write(w)
	case route == routeIndex:
		s.handleIndex(w, r)
	case route == routeStatic:
		s.static.ServeHTTP(w, r)
	case route == routeDelete:
		s.mutating(s.handleDeleteExpense).ServeHTTP(w, r)
	case route == routeHealth:
		s.handleHealth(w, r)
	case route == routeReady:
		s.handleReady(w, r)
	case route == routeMetrics && s.metrics != nil:
		s.metrics.Handler().ServeHTTP(w, r)
	default:
		NotFoundError().Write(w)
	}
}

// mutating applies the rate limiter, when configured, to a handler that
// changes the ledger.
func (s *Server) mutating(h http.HandlerFunc) http.Handler {
	if s.limit == nil {
		return h
	}
	return s.limit(h)
}
