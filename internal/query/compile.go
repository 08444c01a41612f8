// Package query assembles complete search statements: configured
// search parameters, the mandatory read-access filter, include
// directives, sort and paging, plus the canonical query string used
// for bundle self links.
package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/recora/recora/internal/access"
	"github.com/recora/recora/internal/registry"
	"github.com/recora/recora/internal/search"
)

// Control parameter names understood by the compiler.
const (
	paramSort       = "_sort"
	paramPage       = "_page"
	paramCount      = "_count"
	paramInclude    = "_include"
	paramRevInclude = "_revinclude"

	identifierModifier = ":identifier"
)

// SortKey is one requested sort ordering. Keys apply left to right.
type SortKey struct {
	Name       string
	Descending bool
}

// IncludeDirective is a validated include or reverse-include edge.
type IncludeDirective struct {
	SourceType string
	Parameter  string
	TargetType string
}

func (d IncludeDirective) String() string {
	return d.SourceType + ":" + d.Parameter + ":" + d.TargetType
}

// Compiled is a ready-to-execute search: the paged statement, the
// count-only statement over the same filter, the configured parameters
// and directives, and the canonical query string.
type Compiled struct {
	ResourceType string

	SQL  string
	Args []any

	CountSQL  string
	CountArgs []any

	Parameters  []search.Parameter
	Includes    []IncludeDirective
	RevIncludes []IncludeDirective
	Sort        []SortKey

	Page     int
	PageSize int

	Canonical string
}

// Compiler builds Compiled searches against a registry. The access
// filter is a constructor dependency, not a per-call argument: there
// is no way to compile a query without it.
type Compiler struct {
	reg             *registry.Registry
	filter          *access.Filter
	defaultPageSize int
	maxPageSize     int
	log             zerolog.Logger
}

// NewCompiler creates a compiler. Page sizes come from configuration;
// requests above maxPageSize are clamped, not rejected.
func NewCompiler(reg *registry.Registry, filter *access.Filter, defaultPageSize, maxPageSize int, log zerolog.Logger) *Compiler {
	return &Compiler{
		reg:             reg,
		filter:          filter,
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
		log:             log,
	}
}

// Filter returns the compiler's mandatory access filter, for callers
// that gate non-search reads with the same visibility rule.
func (c *Compiler) Filter() *access.Filter { return c.filter }

const selectColumns = "r.resource_type, r.id, r.version_id, r.last_updated, r.deleted, r.body, r.grants"

// Compile builds the search for one resource type from raw query
// parameters. Parameter-level errors are collected across the whole
// request and returned together as a search.ErrorList; nothing is
// silently dropped.
func (c *Compiler) Compile(resourceType string, identity access.Identity, raw map[string][]string) (*Compiled, error) {
	config, ok := c.reg.Type(resourceType)
	if !ok {
		return nil, fmt.Errorf("unknown resource type %q", resourceType)
	}

	var errs search.ErrorList
	compiled := &Compiled{ResourceType: resourceType, Page: 1, PageSize: c.defaultPageSize}

	// Control parameters first; everything else must be a declared
	// search parameter.
	consumed := map[string]bool{}
	if values, ok := raw[paramPage]; ok {
		consumed[paramPage] = true
		if page, err := parsePositiveInt(paramPage, values); err != nil {
			errs = append(errs, *err)
		} else {
			compiled.Page = page
		}
	}
	if values, ok := raw[paramCount]; ok {
		consumed[paramCount] = true
		if count, err := parsePositiveInt(paramCount, values); err != nil {
			errs = append(errs, *err)
		} else {
			compiled.PageSize = min(count, c.maxPageSize)
		}
	}
	if values, ok := raw[paramSort]; ok {
		consumed[paramSort] = true
		sort, sortErrs := parseSort(config, values)
		errs = append(errs, sortErrs...)
		compiled.Sort = sort
	}
	if values, ok := raw[paramInclude]; ok {
		consumed[paramInclude] = true
		includes, incErrs := c.parseIncludes(resourceType, values)
		errs = append(errs, incErrs...)
		compiled.Includes = includes
	}
	if values, ok := raw[paramRevInclude]; ok {
		consumed[paramRevInclude] = true
		revIncludes, revErrs := c.parseRevIncludes(resourceType, values)
		errs = append(errs, revErrs...)
		compiled.RevIncludes = revIncludes
	}

	// Declared parameters in declaration order; placeholder indices
	// follow this order, then the access filter.
	for _, def := range config.Parameters {
		if values, ok := raw[def.Name]; ok {
			consumed[def.Name] = true
			param := def.Factory()
			errs = append(errs, param.Configure(values)...)
			if param.Defined() {
				compiled.Parameters = append(compiled.Parameters, param)
			}
		}
		if values, ok := raw[def.Name+identifierModifier]; ok {
			consumed[def.Name+identifierModifier] = true
			ref, isRef := def.Factory().(*search.ReferenceParameter)
			if !isRef {
				errs = append(errs, search.ParamError{
					Parameter: def.Name + identifierModifier,
					Message:   "identifier modifier on a non-reference parameter",
				})
				continue
			}
			param := ref.WithIdentifierModifier()
			errs = append(errs, param.Configure(values)...)
			if param.Defined() {
				compiled.Parameters = append(compiled.Parameters, param)
			}
		}
	}

	for key := range raw {
		if !consumed[key] {
			errs = append(errs, search.ParamError{Parameter: key, Message: "unknown search parameter"})
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	c.assemble(compiled, config, identity)
	compiled.Canonical = canonicalQuery(compiled)

	c.log.Debug().
		Str("resource_type", resourceType).
		Int("parameters", len(compiled.Parameters)).
		Str("canonical", compiled.Canonical).
		Msg("compiled search")

	return compiled, nil
}

// assemble builds the paged and count statements. Bind order: type,
// parameters in declaration order, access filter, then limit/offset.
func (c *Compiler) assemble(compiled *Compiled, config *registry.TypeConfig, identity access.Identity) {
	frags := make([]search.Fragment, 0, len(compiled.Parameters)+1)
	for _, param := range compiled.Parameters {
		f := param.Filter()
		if f.Placeholders() != len(f.Args) {
			// A variant whose template and binds disagree would shift
			// every later placeholder; refuse to run it.
			panic(fmt.Sprintf("parameter %q: %d placeholders, %d binds", param.Name(), f.Placeholders(), len(f.Args)))
		}
		frags = append(frags, f)
	}
	frags = append(frags, c.filter.ForQuery(identity))

	where := search.And(append([]search.Fragment{{SQL: "r.resource_type = ?", Args: []any{compiled.ResourceType}}}, frags...)...)

	orderBy := c.orderBy(config, compiled.Sort)

	compiled.CountSQL = "SELECT COUNT(*) FROM resources r WHERE r.current = 1 AND r.deleted = 0 AND " + where.SQL
	compiled.CountArgs = where.Args

	compiled.SQL = "SELECT " + selectColumns +
		" FROM resources r WHERE r.current = 1 AND r.deleted = 0 AND " + where.SQL +
		" ORDER BY " + orderBy +
		" LIMIT ? OFFSET ?"
	compiled.Args = append(append([]any{}, where.Args...),
		compiled.PageSize, (compiled.Page-1)*compiled.PageSize)
}

// orderBy renders the requested sort keys, always with the id
// tiebreaker so paging is deterministic.
func (c *Compiler) orderBy(config *registry.TypeConfig, sort []SortKey) string {
	var parts []string
	for _, key := range sort {
		factory, _ := config.Parameter(key.Name)
		expr := factory().SortExpr()
		if key.Descending {
			expr += " DESC"
		}
		parts = append(parts, expr)
	}
	parts = append(parts, "r.id ASC")
	return strings.Join(parts, ", ")
}

func parsePositiveInt(name string, values []string) (int, *search.ParamError) {
	if len(values) != 1 {
		e := search.ParamError{Parameter: name, Message: "parameter given more than once"}
		return 0, &e
	}
	n, err := strconv.Atoi(values[0])
	if err != nil || n < 1 {
		e := search.ParamError{Parameter: name, Value: values[0], Message: "expected a positive integer"}
		return 0, &e
	}
	return n, nil
}

// parseSort validates requested sort keys against the type's declared
// parameters. An unknown key is a client error, never silently
// dropped.
func parseSort(config *registry.TypeConfig, values []string) ([]SortKey, search.ErrorList) {
	var keys []SortKey
	var errs search.ErrorList
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			key := SortKey{Name: part}
			if strings.HasPrefix(part, "-") {
				key = SortKey{Name: part[1:], Descending: true}
			}
			if _, ok := config.Parameter(key.Name); !ok {
				errs = append(errs, search.ParamError{
					Parameter: paramSort, Value: part, Message: "unknown sort key",
				})
				continue
			}
			keys = append(keys, key)
		}
	}
	return keys, errs
}

func (c *Compiler) parseIncludes(resourceType string, values []string) ([]IncludeDirective, search.ErrorList) {
	var directives []IncludeDirective
	var errs search.ErrorList
	for _, value := range values {
		d, err := splitDirective(paramInclude, value)
		if err != nil {
			errs = append(errs, *err)
			continue
		}
		if d.SourceType != resourceType {
			errs = append(errs, search.ParamError{
				Parameter: paramInclude, Value: value, Message: "include source must be the searched type",
			})
			continue
		}
		_, inc, ok := c.reg.IncludeEdge(d.SourceType, d.Parameter, d.TargetType)
		if !ok {
			errs = append(errs, search.ParamError{
				Parameter: paramInclude, Value: value, Message: "no such include edge",
			})
			continue
		}
		d.TargetType = inc.TargetType
		directives = append(directives, d)
	}
	return directives, errs
}

func (c *Compiler) parseRevIncludes(resourceType string, values []string) ([]IncludeDirective, search.ErrorList) {
	var directives []IncludeDirective
	var errs search.ErrorList
	for _, value := range values {
		d, err := splitDirective(paramRevInclude, value)
		if err != nil {
			errs = append(errs, *err)
			continue
		}
		if d.TargetType != "" && d.TargetType != resourceType {
			errs = append(errs, search.ParamError{
				Parameter: paramRevInclude, Value: value, Message: "reverse include target must be the searched type",
			})
			continue
		}
		_, inc, ok := c.reg.IncludeEdge(d.SourceType, d.Parameter, resourceType)
		if !ok {
			errs = append(errs, search.ParamError{
				Parameter: paramRevInclude, Value: value, Message: "no such include edge",
			})
			continue
		}
		d.TargetType = inc.TargetType
		directives = append(directives, d)
	}
	return directives, errs
}

func splitDirective(name, value string) (IncludeDirective, *search.ParamError) {
	parts := strings.Split(value, ":")
	switch len(parts) {
	case 2:
		return IncludeDirective{SourceType: parts[0], Parameter: parts[1]}, nil
	case 3:
		return IncludeDirective{SourceType: parts[0], Parameter: parts[1], TargetType: parts[2]}, nil
	default:
		e := search.ParamError{Parameter: name, Value: value, Message: "expected Type:parameter or Type:parameter:Target"}
		return IncludeDirective{}, &e
	}
}
