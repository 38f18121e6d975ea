package handler

import (
	"net/http"
	"strconv"
	"time"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200

	// DefaultRecentLimit is the size of the admin "recent activity" panel.
	DefaultRecentLimit = 20
)

type PaginationParams struct {
	Limit  int
	Offset int
}

func ParsePagination(r *http.Request) PaginationParams {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	if limit <= 0 || limit > MaxLimit {
		limit = DefaultLimit
	}

	if offset < 0 {
		offset = 0
	}

	return PaginationParams{
		Limit:  limit,
		Offset: offset,
	}
}

// parseSince reads an optional RFC 3339 "since" query parameter. A malformed value
// is reported instead of silently widening the window.
func parseSince(r *http.Request) (*time.Time, bool) {
	raw := r.URL.Query().Get("since")
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, false
	}
	return &t, true
}
