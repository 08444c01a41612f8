package store

import (
	"context"
	"strconv"
	"strings"

	"github.com/recora/recora/internal/access"
	"github.com/recora/recora/internal/query"
	"github.com/recora/recora/internal/resource"
	"github.com/recora/recora/internal/search"
)

// ResolveIncludes fetches the resources referenced by the compiled
// search's include and reverse-include directives, relative to one
// result page. Attached resources are deduplicated against the page
// and each other; deleted or unresolvable targets are silently
// omitted. The identity's visibility rule applies to attachments the
// same as to the page itself.
func (s *Store) ResolveIncludes(ctx context.Context, identity access.Identity, compiled *query.Compiled, result *Result) ([]*resource.Resource, error) {
	seen := make(map[string]bool, len(result.Resources))
	for _, res := range result.Resources {
		seen[res.Type+"/"+res.ID] = true
	}

	var attached []*resource.Resource
	appendUnseen := func(resources []*resource.Resource) {
		for _, res := range resources {
			key := res.Type + "/" + res.ID
			if seen[key] {
				continue
			}
			seen[key] = true
			attached = append(attached, res)
		}
	}

	for _, directive := range compiled.Includes {
		resolved, err := s.resolveForward(ctx, identity, directive, result.Resources)
		if err != nil {
			return nil, err
		}
		appendUnseen(resolved)
	}
	for _, directive := range compiled.RevIncludes {
		resolved, err := s.resolveReverse(ctx, identity, directive, result.Resources)
		if err != nil {
			return nil, err
		}
		appendUnseen(resolved)
	}
	return attached, nil
}

// pinnedRef is a reference literal pinned to one stored version.
type pinnedRef struct {
	id      string
	version int64
}

// resolveForward follows a reference parameter from the page's
// resources to their targets. Literals resolve by id, or by
// (id, version) when pinned with a "/_history/<version>" suffix.
func (s *Store) resolveForward(ctx context.Context, identity access.Identity, directive query.IncludeDirective, page []*resource.Resource) ([]*resource.Resource, error) {
	ref, ok := s.referenceParameter(directive)
	if !ok {
		return nil, nil
	}

	path := strings.TrimPrefix(ref.Path(), "$.")
	var ids []string
	var pinned []pinnedRef
	uniqueID := map[string]bool{}
	uniquePinned := map[pinnedRef]bool{}
	for _, res := range page {
		if res.Type != directive.SourceType {
			continue
		}
		for _, literal := range res.ReferencesAt(path) {
			if strings.Contains(literal, "://") {
				continue
			}
			typ, id, version, ok := splitIncludeLiteral(literal, ref.Target())
			if !ok || typ != directive.TargetType {
				continue
			}
			if version > 0 {
				p := pinnedRef{id: id, version: version}
				if !uniquePinned[p] {
					uniquePinned[p] = true
					pinned = append(pinned, p)
				}
			} else if !uniqueID[id] {
				uniqueID[id] = true
				ids = append(ids, id)
			}
		}
	}

	current, err := s.fetchCurrentTargets(ctx, identity, directive.TargetType, ids)
	if err != nil {
		return nil, err
	}
	versioned, err := s.fetchPinnedTargets(ctx, identity, directive.TargetType, pinned)
	if err != nil {
		return nil, err
	}
	return append(current, versioned...), nil
}

// splitIncludeLiteral parses a local reference literal: "id", "Type/id"
// or "Type/id/_history/version". version is 0 when the reference is not
// pinned.
func splitIncludeLiteral(literal, defaultType string) (typ, id string, version int64, ok bool) {
	parts := strings.Split(literal, "/")
	switch len(parts) {
	case 1:
		return defaultType, parts[0], 0, parts[0] != ""
	case 2:
		return parts[0], parts[1], 0, parts[0] != "" && parts[1] != ""
	case 4:
		if parts[0] == "" || parts[1] == "" || parts[2] != "_history" {
			return "", "", 0, false
		}
		v, err := strconv.ParseInt(parts[3], 10, 64)
		if err != nil || v < 1 {
			return "", "", 0, false
		}
		return parts[0], parts[1], v, true
	}
	return "", "", 0, false
}

func (s *Store) fetchCurrentTargets(ctx context.Context, identity access.Identity, targetType string, ids []string) ([]*resource.Resource, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat(", ?", len(ids))[2:]
	frag := s.compiler.Filter().ForQuery(identity)
	args := make([]any, 0, len(ids)+len(frag.Args)+1)
	args = append(args, targetType)
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, frag.Args...)

	return s.fetchIncluded(ctx,
		"SELECT "+selectColumns+" FROM resources r"+
			" WHERE r.current = 1 AND r.deleted = 0 AND r.resource_type = ?"+
			" AND r.id IN ("+placeholders+") AND ("+frag.SQL+")"+
			" ORDER BY r.id ASC",
		args)
}

// fetchPinnedTargets resolves version-pinned references against the
// exact (id, version) rows, historical versions included. Tombstone
// versions and versions the identity may not see are omitted.
func (s *Store) fetchPinnedTargets(ctx context.Context, identity access.Identity, targetType string, pinned []pinnedRef) ([]*resource.Resource, error) {
	if len(pinned) == 0 {
		return nil, nil
	}

	frag := s.compiler.Filter().ForQuery(identity)
	clauses := make([]string, 0, len(pinned))
	args := make([]any, 0, 2*len(pinned)+len(frag.Args)+1)
	args = append(args, targetType)
	for _, p := range pinned {
		clauses = append(clauses, "(r.id = ? AND r.version_id = ?)")
		args = append(args, p.id, p.version)
	}
	args = append(args, frag.Args...)

	return s.fetchIncluded(ctx,
		"SELECT "+selectColumns+" FROM resources r"+
			" WHERE r.deleted = 0 AND r.resource_type = ?"+
			" AND ("+strings.Join(clauses, " OR ")+") AND ("+frag.SQL+")"+
			" ORDER BY r.id ASC, r.version_id ASC",
		args)
}

// resolveReverse finds resources of the directive's source type whose
// reference parameter points at a resource on the page. The reference
// parameter's own filter compiles the pointing predicate.
func (s *Store) resolveReverse(ctx context.Context, identity access.Identity, directive query.IncludeDirective, page []*resource.Resource) ([]*resource.Resource, error) {
	ref, ok := s.referenceParameter(directive)
	if !ok {
		return nil, nil
	}

	var targets []string
	for _, res := range page {
		if res.Type == directive.TargetType {
			targets = append(targets, res.Type+"/"+res.ID)
		}
	}
	if len(targets) == 0 {
		return nil, nil
	}
	if errs := ref.Configure(targets); len(errs) > 0 {
		return nil, search.ErrorList(errs)
	}

	pointing := ref.Filter()
	frag := s.compiler.Filter().ForQuery(identity)
	args := make([]any, 0, len(pointing.Args)+len(frag.Args)+1)
	args = append(args, directive.SourceType)
	args = append(args, pointing.Args...)
	args = append(args, frag.Args...)

	return s.fetchIncluded(ctx,
		"SELECT "+selectColumns+" FROM resources r"+
			" WHERE r.current = 1 AND r.deleted = 0 AND r.resource_type = ?"+
			" AND ("+pointing.SQL+") AND ("+frag.SQL+")"+
			" ORDER BY r.id ASC",
		args)
}

// referenceParameter resolves a directive to its declared reference
// parameter. Directives come pre-validated by the compiler; an edge
// that no longer resolves is skipped, not an error.
func (s *Store) referenceParameter(directive query.IncludeDirective) (*search.ReferenceParameter, bool) {
	config, _, ok := s.reg.IncludeEdge(directive.SourceType, directive.Parameter, directive.TargetType)
	if !ok {
		return nil, false
	}
	factory, ok := config.Parameter(directive.Parameter)
	if !ok {
		return nil, false
	}
	ref, ok := factory().(*search.ReferenceParameter)
	return ref, ok
}

func (s *Store) fetchIncluded(ctx context.Context, querySQL string, args []any) ([]*resource.Resource, error) {
	var rows []resourceRow
	if err := s.db.SelectContext(ctx, &rows, querySQL, args...); err != nil {
		return nil, &UnavailableError{Op: "resolve includes", Err: err}
	}
	resources := make([]*resource.Resource, 0, len(rows))
	for _, row := range rows {
		res, err := row.toResource()
		if err != nil {
			return nil, &UnavailableError{Op: "resolve includes", Err: err}
		}
		resources = append(resources, res)
	}
	return resources, nil
}
