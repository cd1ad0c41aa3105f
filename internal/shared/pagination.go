package shared

import (
	"math"
	"net/url"
	"strconv"
)

// DefaultPerPage applies when per_page is absent or invalid.
const DefaultPerPage = 20

// MaxPerPage caps a single page.
const MaxPerPage = 200

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes pagination metadata.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	if page <= 0 {
		page = 1
	}
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// PageFromQuery reads page and per_page. ok is false when neither is present.
func PageFromQuery(q url.Values) (page, perPage int, ok bool) {
	rawPage, rawPer := q.Get("page"), q.Get("per_page")
	if rawPage == "" && rawPer == "" {
		return 0, 0, false
	}
	page, _ = strconv.Atoi(rawPage)
	perPage, _ = strconv.Atoi(rawPer)
	return page, perPage, true
}

// Paginate slices items for the requested page.
func Paginate[T any](items []T, page, perPage int) ([]T, Pagination) {
	p := NewPagination(page, perPage, len(items))
	start := (p.Page - 1) * p.PerPage
	if start >= len(items) {
		return []T{}, p
	}
	end := min(start+p.PerPage, len(items))
	return items[start:end], p
}
