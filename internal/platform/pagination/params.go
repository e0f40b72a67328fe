package pagination

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	domain "github.com/byceps/byceps-sub001/internal/domain"
)

const maxSearchTermLength = 200

// Options control how Parse behaves for a given handler.
type Options struct {
	DefaultPerPage int
	MaxPerPage     int
}

// Params bundles the paging window and search term extracted from a request.
type Params struct {
	Pagination domain.Pagination
	SearchTerm string
}

var (
	ErrInvalidPage       = errors.New("pagination: invalid page")
	ErrInvalidPerPage    = errors.New("pagination: invalid per_page")
	ErrInvalidSearchTerm = errors.New("pagination: invalid q")
)

// FromRequest parses page, per_page and q from the request's query string.
func FromRequest(r *http.Request, opts Options) (Params, error) {
	if r == nil {
		return Params{}, errors.New("pagination: nil request")
	}
	return Parse(r.URL.Query(), opts)
}

// Parse consumes the provided query values. Missing values fall back to the
// first page with the default size; oversized pages are clamped.
func Parse(values url.Values, opts Options) (Params, error) {
	if values == nil {
		values = url.Values{}
	}

	page, err := parsePositive(values.Get("page"), 1, ErrInvalidPage)
	if err != nil {
		return Params{}, err
	}

	maxPerPage := opts.MaxPerPage
	if maxPerPage <= 0 {
		maxPerPage = domain.MaxPerPage
	}
	defaultPerPage := opts.DefaultPerPage
	if defaultPerPage <= 0 {
		defaultPerPage = domain.DefaultPerPage
	}
	if defaultPerPage > maxPerPage {
		defaultPerPage = maxPerPage
	}
	perPage, err := parsePositive(values.Get("per_page"), defaultPerPage, ErrInvalidPerPage)
	if err != nil {
		return Params{}, err
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	term := strings.TrimSpace(values.Get("q"))
	if len(term) > maxSearchTermLength {
		return Params{}, fmt.Errorf("%w: exceeds %d characters", ErrInvalidSearchTerm, maxSearchTermLength)
	}

	return Params{
		Pagination: domain.Pagination{Page: page, PerPage: perPage},
		SearchTerm: term,
	}, nil
}

func parsePositive(raw string, fallback int, sentinel error) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: must be an integer", sentinel)
	}
	if value <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", sentinel)
	}
	return value, nil
}

// PageHeaders exposes paging metadata the way list endpoints report it.
func PageHeaders[T any](w http.ResponseWriter, page domain.Page[T]) {
	h := w.Header()
	h.Set("X-Total-Count", strconv.Itoa(page.Total))
	h.Set("X-Page", strconv.Itoa(page.Page))
	h.Set("X-Per-Page", strconv.Itoa(page.PerPage))
}
