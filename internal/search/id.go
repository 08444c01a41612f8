package search

import (
	"github.com/recora/recora/internal/resource"
)

// IDParameter searches the resource id column. Exact match only;
// repeated values OR.
type IDParameter struct {
	name   string
	values []string
}

// NewIDParameter creates the `_id` parameter.
func NewIDParameter(name string) *IDParameter {
	return &IDParameter{name: name}
}

func (p *IDParameter) Name() string { return p.name }

func (p *IDParameter) Configure(raw []string) []ParamError {
	var errs []ParamError
	for _, value := range raw {
		if value == "" {
			errs = append(errs, unparsable(p.name, value, "empty id"))
			continue
		}
		p.values = append(p.values, value)
	}
	return errs
}

func (p *IDParameter) Defined() bool { return len(p.values) > 0 }

func (p *IDParameter) Filter() Fragment {
	frags := make([]Fragment, 0, len(p.values))
	for _, v := range p.values {
		frags = append(frags, Fragment{SQL: "r.id = ?", Args: []any{v}})
	}
	return Or(frags...)
}

func (p *IDParameter) SortExpr() string { return "r.id" }

func (p *IDParameter) Matches(r *resource.Resource) bool {
	for _, v := range p.values {
		if r.ID == v {
			return true
		}
	}
	return false
}

func (p *IDParameter) CanonicalValues() []string {
	return append([]string(nil), p.values...)
}
