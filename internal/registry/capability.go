package registry

import (
	"sync/atomic"
)

// Capability describes what the repository supports, derived from the
// type table. Collaborators render it into their wire format.
type Capability struct {
	Types []CapabilityType
}

// CapabilityType lists one resource type's searchable parameters and
// include edges.
type CapabilityType struct {
	Name       string
	Parameters []string
	Includes   []string
}

type capabilityCache struct {
	doc atomic.Pointer[Capability]
}

// Capability returns the capability document. Built on first use and
// cached; concurrent first calls may both build it, last write wins,
// which is harmless because the table is immutable.
func (r *Registry) Capability() *Capability {
	if doc := r.capability.doc.Load(); doc != nil {
		return doc
	}

	doc := &Capability{}
	for _, name := range r.order {
		c := r.types[name]
		ct := CapabilityType{Name: name}
		for _, def := range c.Parameters {
			ct.Parameters = append(ct.Parameters, def.Name)
		}
		for _, inc := range c.Includes {
			ct.Includes = append(ct.Includes, name+":"+inc.Parameter+":"+inc.TargetType)
		}
		doc.Types = append(doc.Types, ct)
	}

	r.capability.doc.Store(doc)
	return doc
}
