package search

import (
	"github.com/cockroachdb/apd/v3"

	"github.com/recora/recora/internal/resource"
)

type numberValue struct {
	op    Operator
	value *apd.Decimal

	// cmp is value rounded to float64 at configure time. The compiled
	// filter casts the stored JSON number to REAL, so the in-memory
	// path must compare at the same precision or the two disagree on
	// values beyond float64 resolution.
	cmp float64
}

// NumberParameter searches a numeric field with an optional comparison
// prefix. Values are parsed as arbitrary-precision decimals for
// canonical round-tripping; comparison happens at float64 precision on
// both execution paths.
type NumberParameter struct {
	name string
	path string

	values []numberValue
}

// NewNumberParameter creates a number parameter over a scalar body
// path such as "$.priority".
func NewNumberParameter(name, path string) *NumberParameter {
	return &NumberParameter{name: name, path: path}
}

func (p *NumberParameter) Name() string { return p.name }

func (p *NumberParameter) Configure(raw []string) []ParamError {
	var errs []ParamError
	for _, value := range raw {
		op, rest := splitOperator(value)
		dec, _, err := apd.NewFromString(rest)
		if err != nil {
			errs = append(errs, unparsable(p.name, value, "not a number"))
			continue
		}
		f, err := dec.Float64()
		if err != nil {
			errs = append(errs, unparsable(p.name, value, "not a representable number"))
			continue
		}
		p.values = append(p.values, numberValue{op: op, value: dec, cmp: f})
	}
	return errs
}

func (p *NumberParameter) Defined() bool { return len(p.values) > 0 }

func (p *NumberParameter) Filter() Fragment {
	expr := "CAST(json_extract(r.body, '" + p.path + "') AS REAL)"
	frags := make([]Fragment, 0, len(p.values))
	for _, v := range p.values {
		frags = append(frags, Fragment{
			SQL:  expr + " " + v.op.SQL() + " ?",
			Args: []any{v.cmp},
		})
	}
	return Or(frags...)
}

func (p *NumberParameter) SortExpr() string {
	return "CAST(json_extract(r.body, '" + p.path + "') AS REAL)"
}

func (p *NumberParameter) Matches(r *resource.Resource) bool {
	field, ok := r.NumberAt(jsonPathToDotted(p.path))
	if !ok {
		return false
	}
	for _, v := range p.values {
		if v.op.holds(compareFloats(field, v.cmp)) {
			return true
		}
	}
	return false
}

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (p *NumberParameter) CanonicalValues() []string {
	out := make([]string, 0, len(p.values))
	for _, v := range p.values {
		out = append(out, string(v.op)+v.value.String())
	}
	return out
}
