package store

import (
	"context"

	"github.com/recora/recora/internal/access"
	"github.com/recora/recora/internal/query"
	"github.com/recora/recora/internal/registry"
	"github.com/recora/recora/internal/resource"
)

// ConditionalCreate stores res unless a current resource already
// matches the type's uniqueness criterion, in which case the existing
// resource is returned unchanged. Idempotent under retries: repeating
// the same create returns the same resource and stores exactly one
// version. The reported bool is true when a new resource was created.
func (s *Store) ConditionalCreate(ctx context.Context, identity access.Identity, res *resource.Resource) (*resource.Resource, bool, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	out, created, err := s.conditionalCreateTx(ctx, tx, identity, res)
	if err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, &UnavailableError{Op: "commit conditional create", Err: err}
	}
	return out, created, nil
}

// conditionalCriteria renders the type's uniqueness criterion as raw
// search parameters for res. ok is false when res carries nothing to
// be unique on, which makes the create unconditional.
func conditionalCriteria(config *registry.TypeConfig, res *resource.Resource) (map[string][]string, bool) {
	switch config.ConditionalKey {
	case registry.KeyByURLVersion:
		url, ok := res.StringAt("url")
		if !ok {
			return nil, false
		}
		criteria := map[string][]string{"url": {url}}
		if version, ok := res.StringAt("version"); ok {
			criteria["version"] = []string{version}
		}
		return criteria, true
	case registry.KeyByName:
		name, ok := res.StringAt("name")
		if !ok {
			return nil, false
		}
		return map[string][]string{"name": {name}}, true
	default:
		if res.ID == "" {
			return nil, false
		}
		return map[string][]string{"_id": {res.ID}}, true
	}
}

// ConditionalUpdate selects the update target by a search criterion.
// The criterion must match exactly one current resource visible to the
// identity: zero matches is a not-found, more than one is a
// precondition failure and mutates nothing.
func (s *Store) ConditionalUpdate(ctx context.Context, identity access.Identity, res *resource.Resource, criteria map[string][]string) (*resource.Resource, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	out, err := s.conditionalUpdateTx(ctx, tx, identity, res, criteria)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, &UnavailableError{Op: "commit conditional update", Err: err}
	}
	return out, nil
}

// ConditionalDelete tombstones the single current resource matching the
// criterion, with the same exactly-one rule as ConditionalUpdate.
func (s *Store) ConditionalDelete(ctx context.Context, identity access.Identity, resourceType string, criteria map[string][]string) error {
	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.conditionalDeleteTx(ctx, tx, identity, resourceType, criteria); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return &UnavailableError{Op: "commit conditional delete", Err: err}
	}
	return nil
}

// selectOne runs a compiled criterion and requires exactly one match.
func (s *Store) selectOne(ctx context.Context, q queryer, compiled *query.Compiled) (*resource.Resource, error) {
	result, err := s.search(ctx, q, compiled)
	if err != nil {
		return nil, err
	}
	switch result.Total {
	case 0:
		return nil, &NotFoundError{ResourceType: compiled.ResourceType}
	case 1:
		return result.Resources[0], nil
	default:
		return nil, &PreconditionError{
			ResourceType: compiled.ResourceType,
			Criteria:     compiled.Canonical,
			Matches:      result.Total,
		}
	}
}
