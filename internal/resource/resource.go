// Package resource defines the versioned document model stored by the
// repository: a typed body plus the version, tombstone and read-access
// metadata the store and search layers operate on.
package resource

import (
	"time"
)

// TimestampLayout is the storage format for last-updated timestamps.
// Fixed width, UTC, millisecond precision: lexicographic order on the
// stored string equals chronological order, which the compiled filter
// fragments rely on.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Resource is one version of a stored document.
//
// (Type, ID, VersionID) is globally unique. Exactly one row per
// (Type, ID) is current: the highest version, which is a tombstone
// when Deleted is set.
type Resource struct {
	Type        string
	ID          string
	VersionID   int64
	LastUpdated time.Time
	Deleted     bool

	// Body is the structured document content. The core treats it as
	// opaque except for the paths named by configured search parameters.
	Body map[string]any

	// Grants are the read-access tags attached at write time.
	// A resource with no grants is visible to nobody.
	Grants []Grant
}

// FormatTimestamp renders t in the storage format (UTC, millisecond
// precision).
func FormatTimestamp(t time.Time) string {
	return t.UTC().Truncate(time.Millisecond).Format(TimestampLayout)
}

// ParseTimestamp parses a stored timestamp.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(TimestampLayout, s)
}

// Coding is a (system, code) pair, used for roles and role-based grants.
type Coding struct {
	System string
	Code   string
}

// Identifier is an identifier entry from a resource body.
// System is nil when the identifier carries no system property at all;
// this is distinct from an empty-string system and matching treats the
// two differently.
type Identifier struct {
	System *string
	Value  string
}

// GrantScope enumerates who a read-access grant admits.
type GrantScope string

const (
	// GrantAll admits every authenticated identity.
	GrantAll GrantScope = "all"
	// GrantLocal admits local identities only.
	GrantLocal GrantScope = "local"
	// GrantOrganization admits identities of one organization.
	GrantOrganization GrantScope = "organization"
	// GrantRole admits identities holding a role, scoped to members of a
	// parent organization.
	GrantRole GrantScope = "role"
)

// Grant is one read-access tag. Organization carries the admitted
// organization identifier for GrantOrganization, and the parent
// organization identifier for GrantRole. System and Code are set for
// GrantRole only.
type Grant struct {
	Scope        GrantScope `json:"scope"`
	Organization string     `json:"organization,omitempty"`
	System       string     `json:"system,omitempty"`
	Code         string     `json:"code,omitempty"`
}
