// Package catalog turns a filter specification into a bounded, ordered
// page of the movie catalog.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/cinemaguru/cinema-guru/internal/store"
)

// ErrDataSource wraps any failure of the underlying source. Callers treat
// the page as empty and surface a retryable error state.
var ErrDataSource = errors.New("catalog: data source error")

const DefaultPageSize = 6

// Source is the slice of the persistence gateway the engine needs. The
// returned total is the exact match count; a source that cannot count
// reports total < 0 and the engine falls back to the page-fullness
// heuristic for HasNext.
type Source interface {
	ListTitles(ctx context.Context, query store.TitleQuery) ([]store.Title, int, error)
}

// FilterSpec is one catalog query as the UI constructs it. Nil year bounds
// mean unbounded; an empty Genres set matches everything.
type FilterSpec struct {
	Query   string
	MinYear *int
	MaxYear *int
	Genres  []string
	Page    int
}

type Page struct {
	Items      []store.Title
	Page       int
	PageSize   int
	Total      int
	TotalPages int
	HasNext    bool
}

type Engine struct {
	source   Source
	pageSize int
}

func New(source Source, pageSize int) *Engine {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Engine{source: source, pageSize: pageSize}
}

func (e *Engine) PageSize() int { return e.pageSize }

// Query resolves one page of the catalog. Deterministic for a fixed filter
// and catalog: ordering is delegated to the source's stable sort.
func (e *Engine) Query(ctx context.Context, spec FilterSpec) (Page, error) {
	page := spec.Page
	if page < 1 {
		page = 1
	}

	// An inverted year range matches nothing rather than failing.
	if spec.MinYear != nil && spec.MaxYear != nil && *spec.MinYear > *spec.MaxYear {
		return Page{Items: []store.Title{}, Page: page, PageSize: e.pageSize}, nil
	}

	items, total, err := e.source.ListTitles(ctx, store.TitleQuery{
		Query:   spec.Query,
		MinYear: spec.MinYear,
		MaxYear: spec.MaxYear,
		Genres:  spec.Genres,
		Limit:   e.pageSize,
		Offset:  (page - 1) * e.pageSize,
	})
	if err != nil {
		return Page{}, fmt.Errorf("%w: %w", ErrDataSource, err)
	}

	out := Page{
		Items:    items,
		Page:     page,
		PageSize: e.pageSize,
		Total:    total,
	}
	if total >= 0 {
		out.TotalPages = (total + e.pageSize - 1) / e.pageSize
		out.HasNext = page*e.pageSize < total
	} else {
		// Heuristic: a full page implies more may exist.
		out.TotalPages = page
		out.HasNext = len(items) == e.pageSize
	}
	return out, nil
}
