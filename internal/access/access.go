// Package access enforces per-organization and per-role read
// visibility. The filter has two forms, a compiled fragment for store
// queries and a predicate for in-memory matching, built from the same
// grant evaluation so neither path can drift. Every query and every
// match goes through it; a resource without grants is visible to
// nobody.
package access

import (
	"sort"
	"strings"

	"github.com/recora/recora/internal/resource"
	"github.com/recora/recora/internal/search"
)

// Identity is the authenticated requester, supplied by the caller.
// The core never persists it.
type Identity interface {
	IsLocal() bool
	OrganizationIdentifier() string
	Roles() []resource.Coding
}

// AffiliationResolver answers which parent organizations an
// organization is an active member of. Role grants are scoped to a
// parent organization; the lookup is external because affiliation data
// lives with the collaborator that manages organizations.
type AffiliationResolver interface {
	ParentsOf(organizationIdentifier string) []string
}

// Filter produces the mandatory visibility restriction for an
// identity. Affiliations are resolved once per filter construction so
// the query fragment and the match predicate see the same state.
type Filter struct {
	affiliations AffiliationResolver
}

// NewFilter creates a read-access filter. The resolver may be nil, in
// which case role grants never match.
func NewFilter(affiliations AffiliationResolver) *Filter {
	return &Filter{affiliations: affiliations}
}

// scope holds the per-identity facts both filter forms evaluate
// against.
type scope struct {
	local   bool
	org     string
	roles   []resource.Coding
	parents []string
}

func (f *Filter) scopeFor(identity Identity) scope {
	s := scope{
		local: identity.IsLocal(),
		org:   identity.OrganizationIdentifier(),
	}
	s.roles = append(s.roles, identity.Roles()...)
	sort.Slice(s.roles, func(i, j int) bool {
		if s.roles[i].System != s.roles[j].System {
			return s.roles[i].System < s.roles[j].System
		}
		return s.roles[i].Code < s.roles[j].Code
	})
	if f.affiliations != nil && s.org != "" && len(s.roles) > 0 {
		s.parents = append(s.parents, f.affiliations.ParentsOf(s.org)...)
		sort.Strings(s.parents)
	}
	return s
}

// ForQuery returns the filter fragment restricting rows to those the
// identity may read. It is composed with AND into every compiled
// statement; there is no compile path without it.
func (f *Filter) ForQuery(identity Identity) search.Fragment {
	if identity == nil {
		return search.None()
	}
	s := f.scopeFor(identity)

	clauses := []search.Fragment{
		{SQL: "json_extract(g.value, '$.scope') = 'all'"},
	}
	if s.local {
		clauses = append(clauses, search.Fragment{SQL: "json_extract(g.value, '$.scope') = 'local'"})
	}
	if s.org != "" {
		clauses = append(clauses, search.Fragment{
			SQL:  "json_extract(g.value, '$.scope') = 'organization' AND json_extract(g.value, '$.organization') = ?",
			Args: []any{s.org},
		})
	}
	if len(s.parents) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(s.parents)), ", ")
		for _, role := range s.roles {
			args := []any{role.System, role.Code}
			for _, parent := range s.parents {
				args = append(args, parent)
			}
			clauses = append(clauses, search.Fragment{
				SQL: "json_extract(g.value, '$.scope') = 'role'" +
					" AND json_extract(g.value, '$.system') = ? AND json_extract(g.value, '$.code') = ?" +
					" AND json_extract(g.value, '$.organization') IN (" + placeholders + ")",
				Args: args,
			})
		}
	}

	inner := search.Or(clauses...)
	return search.Fragment{
		SQL:  "EXISTS (SELECT 1 FROM json_each(r.grants) AS g WHERE " + inner.SQL + ")",
		Args: inner.Args,
	}
}

// ForMatch returns the in-memory predicate equivalent of ForQuery.
func (f *Filter) ForMatch(identity Identity) func(*resource.Resource) bool {
	if identity == nil {
		return func(*resource.Resource) bool { return false }
	}
	s := f.scopeFor(identity)

	return func(r *resource.Resource) bool {
		for _, grant := range r.Grants {
			if grantAdmits(grant, s) {
				return true
			}
		}
		return false
	}
}

func grantAdmits(grant resource.Grant, s scope) bool {
	switch grant.Scope {
	case resource.GrantAll:
		return true
	case resource.GrantLocal:
		return s.local
	case resource.GrantOrganization:
		return s.org != "" && grant.Organization == s.org
	case resource.GrantRole:
		for _, role := range s.roles {
			if role.System != grant.System || role.Code != grant.Code {
				continue
			}
			for _, parent := range s.parents {
				if parent == grant.Organization {
					return true
				}
			}
		}
	}
	return false
}
