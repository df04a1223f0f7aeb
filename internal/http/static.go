package http

import (
	"bytes"
	"errors"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

// staticHandler serves files strictly below root.
type staticHandler struct {
	root fs.FS
	s    *Server
}

func (h staticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name, status := resolveStaticPath(strings.TrimPrefix(r.URL.Path, "/static/"))
	switch status {
	case http.StatusForbidden:
		h.s.logger.WarnContext(r.Context(), "Static path escapes asset root",
			"path", r.URL.Path)
		ForbiddenError().Write(w)
		return
	case http.StatusNotFound:
		NotFoundError().Write(w)
		return
	}

	info, err := fs.Stat(h.root, name)
	if err != nil || info.IsDir() {
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			h.s.logger.WarnContext(r.Context(), "Static asset stat failed", "path", name, "error", err)
		}
		NotFoundError().Write(w)
		return
	}
	data, err := fs.ReadFile(h.root, name)
	if err != nil {
		h.s.logger.ErrorContext(r.Context(), "Static asset read failed", "path", name, "error", err)
		NotFoundError().Write(w)
		return
	}

	w.Header().Set("Content-Type", contentTypeFor(name))
	http.ServeContent(w, r, name, info.ModTime(), bytes.NewReader(data))
}

// resolveStaticPath cleans a path taken from below /static/ and decides
// whether it may be served. A path that resolves outside the root is
// forbidden; an empty path (the root itself) is not found.
func resolveStaticPath(p string) (string, int) {
	if strings.ContainsAny(p, "\\\x00") {
		return "", http.StatusForbidden
	}
	if strings.HasPrefix(p, "/") {
		return "", http.StatusForbidden
	}
	clean := path.Clean(p)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", http.StatusForbidden
	}
	if clean == "." || !fs.ValidPath(clean) {
		return "", http.StatusNotFound
	}
	return clean, http.StatusOK
}

func contentTypeFor(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".css":
		return "text/css"
	case ".js":
		return "application/javascript"
	default:
		return "application/octet-stream"
	}
}
