package search

import (
	"github.com/recora/recora/internal/resource"
)

// Parameter is one configured search parameter: it owns one query
// parameter name and one value grammar, and it supports both execution
// models. The compiled Filter and the in-memory Matches must agree for
// every value the grammar accepts; that equivalence is what lets event
// matching reuse stored search criteria without a store round trip.
type Parameter interface {
	// Name is the query parameter name this instance owns.
	Name() string

	// Configure parses the raw query-string values (repeated values OR
	// together). Returned errors identify the offending value; a
	// parameter with errors stays undefined.
	Configure(raw []string) []ParamError

	// Defined reports whether Configure accepted at least one value.
	Defined() bool

	// Filter returns the compiled predicate for the configured values.
	// Placeholder count always equals len(Args).
	Filter() Fragment

	// SortExpr returns the expression this parameter sorts on. It is
	// distinct from the filter expression: period-typed values sort on
	// their start.
	SortExpr() string

	// Matches evaluates the configured values against a resource
	// in memory, with semantics identical to Filter.
	Matches(r *resource.Resource) bool

	// CanonicalValues returns the round-tripped values for the bundle
	// self-link query string, one per configured value, in input order.
	CanonicalValues() []string
}
