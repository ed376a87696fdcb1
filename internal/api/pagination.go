package api

import (
	"net/http"
	"strconv"
)

const (
	defaultPage    = 1
	defaultPerPage = 50
	maxPerPage     = 200
)

// PaginationParams holds the parsed page/per_page query parameters used
// by incident, review, and audit listings.
type PaginationParams struct {
	Page    int
	PerPage int
}

// ParsePagination extracts pagination from the request query. Defaults
// are page=1, per_page=50; per_page is capped at 200. Invalid values
// fall back to the defaults instead of erroring: a bad page number
// should never block a safety listing.
func ParsePagination(r *http.Request) PaginationParams {
	return PaginationParams{
		Page:    positiveQueryInt(r, "page", defaultPage, 0),
		PerPage: positiveQueryInt(r, "per_page", defaultPerPage, maxPerPage),
	}
}

// positiveQueryInt parses a positive integer query parameter, applying
// fallback on absence or garbage and max as a cap when nonzero.
func positiveQueryInt(r *http.Request, key string, fallback, max int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	if max > 0 && n > max {
		return max
	}
	return n
}

// Offset returns the database offset for the current page.
func (p PaginationParams) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// TotalPages calculates the number of pages covering total records.
func (p PaginationParams) TotalPages(total int64) int {
	if p.PerPage <= 0 {
		return 0
	}
	pages := int(total) / p.PerPage
	if int(total)%p.PerPage > 0 {
		pages++
	}
	return pages
}
