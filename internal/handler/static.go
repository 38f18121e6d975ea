package handler

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// SiteHandler serves the built single-page site. Unknown paths fall back to
// index.html so client-side routes survive a reload; API paths never do.
type SiteHandler struct {
	root      string
	indexFile string
}

func NewSiteHandler(root string) *SiteHandler {
	return &SiteHandler{
		root:      root,
		indexFile: "index.html",
	}
}

func (h *SiteHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clean := path.Clean("/" + r.URL.Path)
	if strings.HasPrefix(clean, "/api/") || strings.HasPrefix(clean, "/admin/api/") {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not Found"})
		return
	}

	filePath := filepath.Join(h.root, filepath.FromSlash(clean))
	if info, err := os.Stat(filePath); err == nil && !info.IsDir() {
		// Bundles under /static/ carry a content hash in their name.
		if strings.HasPrefix(clean, "/static/") {
			w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		}
		http.ServeFile(w, r, filePath)
		return
	}

	indexPath := filepath.Join(h.root, h.indexFile)
	if _, err := os.Stat(indexPath); err != nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, indexPath)
}
