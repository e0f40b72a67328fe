package domain

import (
	"time"
)

// Pagination defines page-number based paging inputs for list operations.
type Pagination struct {
	Page    int
	PerPage int
}

const (
	// DefaultPerPage is applied when callers omit a page size.
	DefaultPerPage = 20
	// MaxPerPage caps page sizes requested by callers.
	MaxPerPage = 200
)

// Normalize clamps the pagination to sane bounds.
func (p Pagination) Normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage <= 0 {
		p.PerPage = DefaultPerPage
	}
	if p.PerPage > MaxPerPage {
		p.PerPage = MaxPerPage
	}
	return p
}

// Offset returns the number of records preceding the page.
func (p Pagination) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.PerPage
}

// Page is a single page of results plus the overall total.
type Page[T any] struct {
	Items   []T
	Page    int
	PerPage int
	Total   int
}

// Pages returns the number of pages needed to show Total items.
func (p Page[T]) Pages() int {
	if p.PerPage <= 0 || p.Total == 0 {
		return 0
	}
	return (p.Total + p.PerPage - 1) / p.PerPage
}

// HasNext reports whether a following page exists.
func (p Page[T]) HasNext() bool {
	return p.Page < p.Pages()
}

// Paginate slices an in-memory result set. Used by backends that filter
// client-side.
func Paginate[T any](items []T, pager Pagination) Page[T] {
	pager = pager.Normalize()
	total := len(items)
	start := pager.Offset()
	if start > total {
		start = total
	}
	end := start + pager.PerPage
	if end > total {
		end = total
	}
	out := make([]T, end-start)
	copy(out, items[start:end])
	return Page[T]{Items: out, Page: pager.Page, PerPage: pager.PerPage, Total: total}
}

const (
	HealthStatusOK       = "ok"
	HealthStatusDegraded = "degraded"
	HealthStatusError    = "error"
)

// SystemHealthCheck describes the outcome of an individual dependency probe.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency status for readiness endpoints.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}
