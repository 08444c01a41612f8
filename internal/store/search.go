package store

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/recora/recora/internal/query"
	"github.com/recora/recora/internal/resource"
)

// Result is one page of a search: the matched resources in sort order,
// the total match count across all pages, and the canonical query
// string for this page's self link.
type Result struct {
	Resources []*resource.Resource
	Total     int
	Canonical string
}

// Search executes a compiled search: the count-only statement for the
// total, then the paged statement.
func (s *Store) Search(ctx context.Context, compiled *query.Compiled) (*Result, error) {
	return s.search(ctx, s.db, compiled)
}

// queryer is the subset of sqlx shared by *sqlx.DB and *sqlx.Tx.
type queryer interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

var (
	_ queryer = (*sqlx.DB)(nil)
	_ queryer = (*sqlx.Tx)(nil)
)

func (s *Store) search(ctx context.Context, q queryer, compiled *query.Compiled) (*Result, error) {
	var total int
	if err := q.GetContext(ctx, &total, compiled.CountSQL, compiled.CountArgs...); err != nil {
		return nil, &UnavailableError{Op: "count search", Err: err}
	}

	var rows []resourceRow
	if err := q.SelectContext(ctx, &rows, compiled.SQL, compiled.Args...); err != nil {
		return nil, &UnavailableError{Op: "execute search", Err: err}
	}

	resources := make([]*resource.Resource, 0, len(rows))
	for _, row := range rows {
		res, err := row.toResource()
		if err != nil {
			return nil, &UnavailableError{Op: "execute search", Err: err}
		}
		resources = append(resources, res)
	}

	s.log.Debug().
		Str("resource_type", compiled.ResourceType).
		Int("page", compiled.Page).
		Int("matches", len(resources)).
		Int("total", total).
		Msg("executed search")

	return &Result{Resources: resources, Total: total, Canonical: compiled.Canonical}, nil
}
