// Package registry holds the static per-resource-type configuration:
// which search parameters a type supports, which include edges exist,
// and which uniqueness key conditional create uses. The table is plain
// Go built once at startup and validated there; nothing is registered
// at runtime.
package registry

import (
	"fmt"

	"github.com/recora/recora/internal/search"
)

// ParameterFactory builds a fresh, unconfigured parameter instance.
// Factories rather than shared instances because configuration is
// per-request.
type ParameterFactory func() search.Parameter

// ParameterDef binds a query parameter name to its factory.
// Declaration order matters: the compiler assigns placeholder indices
// in this order.
type ParameterDef struct {
	Name    string
	Factory ParameterFactory
}

// IncludeDef declares a traversable reference edge from this type.
// Parameter must name a declared reference parameter.
type IncludeDef struct {
	Parameter  string
	TargetType string
}

// ConditionalKey selects the uniqueness criterion for conditional
// create.
type ConditionalKey int

const (
	// KeyByID matches an existing current resource by id.
	KeyByID ConditionalKey = iota
	// KeyByURLVersion matches by the url and version body fields.
	KeyByURLVersion
	// KeyByName matches by the name body field.
	KeyByName
)

// TypeConfig is the declarative configuration for one resource type.
type TypeConfig struct {
	Name           string
	Parameters     []ParameterDef
	Includes       []IncludeDef
	ConditionalKey ConditionalKey
}

// Parameter returns the factory for a declared parameter name.
func (c *TypeConfig) Parameter(name string) (ParameterFactory, bool) {
	for _, def := range c.Parameters {
		if def.Name == name {
			return def.Factory, true
		}
	}
	return nil, false
}

// Registry is the validated set of type configurations.
type Registry struct {
	types map[string]*TypeConfig
	order []string

	capability capabilityCache
}

// New validates the configurations and builds the registry. The
// standard parameters (_id, _lastUpdated, _profile) are added to every
// type. Validation fails fast: an include edge naming an undeclared or
// non-reference parameter is a construction error, not a query-time
// surprise.
func New(configs ...TypeConfig) (*Registry, error) {
	r := &Registry{types: make(map[string]*TypeConfig, len(configs))}

	for i := range configs {
		c := configs[i]
		if c.Name == "" {
			return nil, fmt.Errorf("registry: type config without a name")
		}
		if _, dup := r.types[c.Name]; dup {
			return nil, fmt.Errorf("registry: duplicate type %q", c.Name)
		}
		c.Parameters = append(standardParameters(), c.Parameters...)
		r.types[c.Name] = &c
		r.order = append(r.order, c.Name)
	}

	for _, name := range r.order {
		c := r.types[name]
		seen := make(map[string]bool, len(c.Parameters))
		for _, def := range c.Parameters {
			if def.Factory == nil {
				return nil, fmt.Errorf("registry: %s.%s has no factory", name, def.Name)
			}
			if seen[def.Name] {
				return nil, fmt.Errorf("registry: %s declares %q twice", name, def.Name)
			}
			seen[def.Name] = true
		}
		for _, inc := range c.Includes {
			factory, ok := c.Parameter(inc.Parameter)
			if !ok {
				return nil, fmt.Errorf("registry: include %s:%s names an undeclared parameter", name, inc.Parameter)
			}
			if _, ok := factory().(*search.ReferenceParameter); !ok {
				return nil, fmt.Errorf("registry: include %s:%s is not a reference parameter", name, inc.Parameter)
			}
			if _, ok := r.types[inc.TargetType]; inc.TargetType != "" && !ok {
				return nil, fmt.Errorf("registry: include %s:%s targets unknown type %q", name, inc.Parameter, inc.TargetType)
			}
		}
	}

	return r, nil
}

func standardParameters() []ParameterDef {
	return []ParameterDef{
		{Name: "_id", Factory: func() search.Parameter { return search.NewIDParameter("_id") }},
		{Name: "_lastUpdated", Factory: func() search.Parameter {
			return search.NewDateTimeParameter("_lastUpdated", "r.last_updated")
		}},
		{Name: "_profile", Factory: func() search.Parameter {
			return search.NewExactStringParameter("_profile", "$.meta.profile[0]")
		}},
	}
}

// Type returns the configuration for a resource type.
func (r *Registry) Type(name string) (*TypeConfig, bool) {
	c, ok := r.types[name]
	return c, ok
}

// TypeNames returns the configured type names in declaration order.
func (r *Registry) TypeNames() []string {
	return append([]string(nil), r.order...)
}

// IncludeEdge looks up a declared include edge sourceType:parameter,
// optionally constrained to a target type. Forward includes and
// reverse includes both resolve through it.
func (r *Registry) IncludeEdge(sourceType, parameter, targetType string) (*TypeConfig, *IncludeDef, bool) {
	c, ok := r.types[sourceType]
	if !ok {
		return nil, nil, false
	}
	for i := range c.Includes {
		inc := &c.Includes[i]
		if inc.Parameter == parameter && (targetType == "" || inc.TargetType == targetType) {
			return c, inc, true
		}
	}
	return nil, nil, false
}
