package search

import (
	"strings"

	"github.com/recora/recora/internal/resource"
)

// tokenState distinguishes the three system cases of the token grammar.
// An explicit empty system (`|code`) means the identifier must carry no
// system property at all; this is a different predicate from leaving
// the system unconstrained and the two are never collapsed.
type tokenState int

const (
	tokenCodeOnly tokenState = iota
	tokenCodeNoSystem
	tokenSystemAndCode
	tokenSystemOnly
)

type tokenValue struct {
	state  tokenState
	system string
	code   string
}

func parseToken(name, raw string) (tokenValue, *ParamError) {
	idx := strings.Index(raw, "|")
	switch {
	case idx < 0:
		if raw == "" {
			e := unparsable(name, raw, "empty token value")
			return tokenValue{}, &e
		}
		return tokenValue{state: tokenCodeOnly, code: raw}, nil
	case idx == 0:
		if len(raw) == 1 {
			e := unparsable(name, raw, "token value with neither system nor code")
			return tokenValue{}, &e
		}
		return tokenValue{state: tokenCodeNoSystem, code: raw[1:]}, nil
	case idx == len(raw)-1:
		return tokenValue{state: tokenSystemOnly, system: raw[:idx]}, nil
	default:
		return tokenValue{state: tokenSystemAndCode, system: raw[:idx], code: raw[idx+1:]}, nil
	}
}

func (v tokenValue) canonical() string {
	switch v.state {
	case tokenCodeOnly:
		return v.code
	case tokenCodeNoSystem:
		return "|" + v.code
	case tokenSystemOnly:
		return v.system + "|"
	default:
		return v.system + "|" + v.code
	}
}

// matchesIdentifier evaluates the token against one identifier entry.
func (v tokenValue) matchesIdentifier(ident resource.Identifier) bool {
	switch v.state {
	case tokenCodeOnly:
		return ident.Value == v.code
	case tokenCodeNoSystem:
		return ident.Value == v.code && ident.System == nil
	case tokenSystemOnly:
		return ident.System != nil && *ident.System == v.system
	default:
		return ident.System != nil && *ident.System == v.system && ident.Value == v.code
	}
}

// IdentifierParameter searches a token value: either a list of
// identifier entries ({system?, value}) or a plain code scalar,
// depending on how it is constructed.
type IdentifierParameter struct {
	name string
	path string
	code bool // plain code scalar instead of identifier list

	values []tokenValue
}

// NewIdentifierParameter creates a token parameter over an identifier
// list at a JSON body path such as "$.identifier".
func NewIdentifierParameter(name, path string) *IdentifierParameter {
	return &IdentifierParameter{name: name, path: path}
}

// NewCodeParameter creates a token parameter over a plain code scalar
// at a JSON body path such as "$.status". System-qualified values never
// match a plain code.
func NewCodeParameter(name, path string) *IdentifierParameter {
	return &IdentifierParameter{name: name, path: path, code: true}
}

func (p *IdentifierParameter) Name() string { return p.name }

func (p *IdentifierParameter) Configure(raw []string) []ParamError {
	var errs []ParamError
	for _, value := range raw {
		parsed, err := parseToken(p.name, value)
		if err != nil {
			errs = append(errs, *err)
			continue
		}
		p.values = append(p.values, parsed)
	}
	return errs
}

func (p *IdentifierParameter) Defined() bool { return len(p.values) > 0 }

func (p *IdentifierParameter) Filter() Fragment {
	frags := make([]Fragment, 0, len(p.values))
	for _, v := range p.values {
		if p.code {
			frags = append(frags, p.codeFilter(v))
		} else {
			frags = append(frags, p.identifierFilter(v))
		}
	}
	return Or(frags...)
}

func (p *IdentifierParameter) identifierFilter(v tokenValue) Fragment {
	exists := func(cond string, args ...any) Fragment {
		return Fragment{
			SQL:  "EXISTS (SELECT 1 FROM json_each(r.body, '" + p.path + "') AS ident WHERE " + cond + ")",
			Args: args,
		}
	}
	switch v.state {
	case tokenCodeOnly:
		return exists("json_extract(ident.value, '$.value') = ?", v.code)
	case tokenCodeNoSystem:
		return exists("json_extract(ident.value, '$.value') = ? AND json_type(ident.value, '$.system') IS NULL", v.code)
	case tokenSystemOnly:
		return exists("json_extract(ident.value, '$.system') = ?", v.system)
	default:
		return exists("json_extract(ident.value, '$.system') = ? AND json_extract(ident.value, '$.value') = ?",
			v.system, v.code)
	}
}

func (p *IdentifierParameter) codeFilter(v tokenValue) Fragment {
	switch v.state {
	case tokenCodeOnly, tokenCodeNoSystem:
		return Fragment{
			SQL:  "json_extract(r.body, '" + p.path + "') = ?",
			Args: []any{v.code},
		}
	default:
		return None()
	}
}

func (p *IdentifierParameter) SortExpr() string {
	if p.code {
		return "json_extract(r.body, '" + p.path + "')"
	}
	return "json_extract(r.body, '" + p.path + "[0].value')"
}

func (p *IdentifierParameter) Matches(r *resource.Resource) bool {
	for _, v := range p.values {
		if p.code {
			if v.state != tokenCodeOnly && v.state != tokenCodeNoSystem {
				continue
			}
			if code, ok := r.StringAt(jsonPathToDotted(p.path)); ok && code == v.code {
				return true
			}
			continue
		}
		for _, ident := range r.IdentifiersAt(jsonPathToDotted(p.path)) {
			if v.matchesIdentifier(ident) {
				return true
			}
		}
	}
	return false
}

func (p *IdentifierParameter) CanonicalValues() []string {
	out := make([]string, 0, len(p.values))
	for _, v := range p.values {
		out = append(out, v.canonical())
	}
	return out
}

// jsonPathToDotted converts a "$.a.b" JSON path into the dotted form
// the resource body accessors use.
func jsonPathToDotted(path string) string {
	return strings.TrimPrefix(path, "$.")
}
