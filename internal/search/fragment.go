package search

import (
	"strings"
)

// Fragment is a composable filter piece: a predicate template with `?`
// placeholders plus the bind values for them, in placeholder order.
// The placeholder count and the bind count must always agree; the
// compiler checks this before assembling a statement.
type Fragment struct {
	SQL  string
	Args []any
}

// Placeholders returns the number of `?` markers in the template.
func (f Fragment) Placeholders() int {
	return strings.Count(f.SQL, "?")
}

// Empty reports whether the fragment contributes no predicate.
func (f Fragment) Empty() bool {
	return f.SQL == ""
}

// None is a fragment that matches no row. Used where a filter must be
// present but nothing can satisfy it (fail closed).
func None() Fragment {
	return Fragment{SQL: "0 = 1"}
}

// And joins fragments with AND, skipping empty ones. Bind values keep
// fragment order.
func And(frags ...Fragment) Fragment {
	return join(" AND ", frags)
}

// Or joins fragments with OR, skipping empty ones. Repeated values of
// one parameter combine this way.
func Or(frags ...Fragment) Fragment {
	return join(" OR ", frags)
}

func join(sep string, frags []Fragment) Fragment {
	var parts []string
	var args []any
	for _, f := range frags {
		if f.Empty() {
			continue
		}
		parts = append(parts, "("+f.SQL+")")
		args = append(args, f.Args...)
	}
	if len(parts) == 0 {
		return Fragment{}
	}
	return Fragment{SQL: strings.Join(parts, sep), Args: args}
}
