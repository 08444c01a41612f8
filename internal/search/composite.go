package search

import (
	"fmt"
	"strings"

	"github.com/recora/recora/internal/resource"
)

// CompositeParameter pairs component parameters whose values arrive
// joined with `$` in a single query value. Each raw value configures a
// fresh set of components; within one value the components AND
// together, repeated values OR as usual.
type CompositeParameter struct {
	name       string
	factories  []func() Parameter
	components [][]Parameter // one slice per configured value
}

// NewCompositeParameter creates a composite from component parameter
// factories. Factories rather than instances because every configured
// value needs its own component set.
func NewCompositeParameter(name string, factories ...func() Parameter) *CompositeParameter {
	return &CompositeParameter{name: name, factories: factories}
}

func (p *CompositeParameter) Name() string { return p.name }

func (p *CompositeParameter) Configure(raw []string) []ParamError {
	var errs []ParamError
	for _, value := range raw {
		parts := strings.Split(value, "$")
		if len(parts) != len(p.factories) {
			errs = append(errs, unparsable(p.name, value,
				fmt.Sprintf("expected %d $-separated components", len(p.factories))))
			continue
		}

		set := make([]Parameter, len(p.factories))
		ok := true
		for i, factory := range p.factories {
			set[i] = factory()
			if subErrs := set[i].Configure([]string{parts[i]}); len(subErrs) > 0 {
				for _, e := range subErrs {
					e.Parameter = p.name
					e.Value = value
					errs = append(errs, e)
				}
				ok = false
			}
		}
		if ok {
			p.components = append(p.components, set)
		}
	}
	return errs
}

func (p *CompositeParameter) Defined() bool { return len(p.components) > 0 }

func (p *CompositeParameter) Filter() Fragment {
	frags := make([]Fragment, 0, len(p.components))
	for _, set := range p.components {
		parts := make([]Fragment, len(set))
		for i, component := range set {
			parts[i] = component.Filter()
		}
		frags = append(frags, And(parts...))
	}
	return Or(frags...)
}

// SortExpr sorts on the first component.
func (p *CompositeParameter) SortExpr() string {
	if len(p.factories) == 0 {
		return ""
	}
	return p.factories[0]().SortExpr()
}

func (p *CompositeParameter) Matches(r *resource.Resource) bool {
	for _, set := range p.components {
		all := true
		for _, component := range set {
			if !component.Matches(r) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

func (p *CompositeParameter) CanonicalValues() []string {
	out := make([]string, 0, len(p.components))
	for _, set := range p.components {
		parts := make([]string, len(set))
		for i, component := range set {
			values := component.CanonicalValues()
			if len(values) > 0 {
				parts[i] = values[0]
			}
		}
		out = append(out, strings.Join(parts, "$"))
	}
	return out
}
