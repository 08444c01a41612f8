// Package match evaluates stored subscription criteria against freshly
// written resources, without a round trip to storage. Criteria parse
// into the same configured search parameters the query compiler uses,
// so a subscription matches exactly the resources its criteria would
// return from a search.
package match

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/recora/recora/internal/access"
	"github.com/recora/recora/internal/registry"
	"github.com/recora/recora/internal/resource"
	"github.com/recora/recora/internal/search"
)

// Criteria is a parsed subscription criterion: a resource type plus
// configured search parameters. Immutable after parsing.
type Criteria struct {
	ResourceType string
	parameters   []search.Parameter
}

// Matcher parses criteria strings and evaluates them. The access
// filter is mandatory: a match is only reported to identities whose
// grants admit the resource.
type Matcher struct {
	reg    *registry.Registry
	filter *access.Filter
}

func New(reg *registry.Registry, filter *access.Filter) *Matcher {
	return &Matcher{reg: reg, filter: filter}
}

// Parse validates a criteria string of the form
// "Type?param=value&param=value". An unknown type, an unknown
// parameter, or an unparsable value fails here, at subscription-store
// time, never at event time.
func (m *Matcher) Parse(criteria string) (*Criteria, error) {
	resourceType, rawQuery, _ := strings.Cut(criteria, "?")
	config, ok := m.reg.Type(resourceType)
	if !ok {
		return nil, fmt.Errorf("criteria %q: unknown resource type %q", criteria, resourceType)
	}

	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return nil, fmt.Errorf("criteria %q: %w", criteria, err)
	}

	parsed := &Criteria{ResourceType: resourceType}
	var errs search.ErrorList
	for key, raw := range values {
		factory, ok := config.Parameter(key)
		if !ok {
			errs = append(errs, search.ParamError{Parameter: key, Message: "unknown search parameter"})
			continue
		}
		param := factory()
		errs = append(errs, param.Configure(raw)...)
		if param.Defined() {
			parsed.parameters = append(parsed.parameters, param)
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("criteria %q: %w", criteria, errs)
	}
	return parsed, nil
}

// Matches reports whether res satisfies the criteria and is visible to
// the subscriber. Semantically identical to running the criteria as a
// compiled search against a store containing only res.
func (m *Matcher) Matches(c *Criteria, identity access.Identity, res *resource.Resource) bool {
	if res == nil || res.Deleted || res.Type != c.ResourceType {
		return false
	}
	for _, param := range c.parameters {
		if !param.Matches(res) {
			return false
		}
	}
	return m.filter.ForMatch(identity)(res)
}
