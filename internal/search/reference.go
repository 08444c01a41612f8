package search

import (
	"strings"

	"github.com/recora/recora/internal/resource"
)

type refKind int

const (
	refID refKind = iota
	refTypeAndID
	refURL
	refIdentifier
)

type refValue struct {
	kind       refKind
	id         string
	typ        string
	url        string
	identifier tokenValue
}

// TargetResolver reads the current version of a referenced resource,
// or nil when it is absent or deleted. In-memory identifier matching
// needs it; literal matching does not.
type TargetResolver func(resourceType, id string) *resource.Resource

// ReferenceParameter searches a reference field: bare id, Type/id, an
// absolute URL, or identifier-based resolution against the referenced
// resource's identifiers. Each sub-case compiles and matches as its own
// predicate.
type ReferenceParameter struct {
	name       string
	path       string
	targetType string
	many       bool // path holds a list of references
	identifier bool // configured values use the token grammar
	resolver   TargetResolver

	values []refValue
}

// NewReferenceParameter creates a reference parameter over a body path
// such as "$.requester" with a declared target resource type.
func NewReferenceParameter(name, path, targetType string) *ReferenceParameter {
	return &ReferenceParameter{name: name, path: path, targetType: targetType}
}

// NewReferenceListParameter is NewReferenceParameter for a path that
// holds a list of references, such as "$.endpoint".
func NewReferenceListParameter(name, path, targetType string) *ReferenceParameter {
	return &ReferenceParameter{name: name, path: path, targetType: targetType, many: true}
}

// WithIdentifierModifier switches the parameter to identifier-based
// resolution: values use the token grammar and match against the
// referenced resource's identifiers. The parameter name gains the
// ":identifier" suffix so errors and the canonical query string name
// the modified form.
func (p *ReferenceParameter) WithIdentifierModifier() *ReferenceParameter {
	p.identifier = true
	p.name += ":identifier"
	return p
}

// WithResolver supplies the target lookup used by in-memory identifier
// matching. An unresolvable target is a non-match, not an error.
func (p *ReferenceParameter) WithResolver(resolver TargetResolver) *ReferenceParameter {
	p.resolver = resolver
	return p
}

func (p *ReferenceParameter) Name() string { return p.name }

// Path returns the reference element's body path, "$.requester" style.
func (p *ReferenceParameter) Path() string { return p.path }

// Target returns the declared target resource type.
func (p *ReferenceParameter) Target() string { return p.targetType }

func (p *ReferenceParameter) Configure(raw []string) []ParamError {
	var errs []ParamError
	for _, value := range raw {
		parsed, err := p.parseValue(value)
		if err != nil {
			errs = append(errs, *err)
			continue
		}
		p.values = append(p.values, parsed)
	}
	return errs
}

func (p *ReferenceParameter) parseValue(raw string) (refValue, *ParamError) {
	if p.identifier {
		token, err := parseToken(p.name, raw)
		if err != nil {
			return refValue{}, err
		}
		return refValue{kind: refIdentifier, identifier: token}, nil
	}

	if strings.Contains(raw, "://") {
		return refValue{kind: refURL, url: raw}, nil
	}
	parts := strings.Split(raw, "/")
	switch {
	case len(parts) == 1 && parts[0] != "":
		return refValue{kind: refID, id: parts[0]}, nil
	case len(parts) == 2 && parts[0] != "" && parts[1] != "":
		return refValue{kind: refTypeAndID, typ: parts[0], id: parts[1]}, nil
	default:
		e := unparsable(p.name, raw, "expected id, Type/id or absolute url")
		return refValue{}, &e
	}
}

// literal returns the reference literal a non-identifier value must
// equal.
func (v refValue) literal(targetType string) string {
	switch v.kind {
	case refID:
		return targetType + "/" + v.id
	case refTypeAndID:
		return v.typ + "/" + v.id
	default:
		return v.url
	}
}

func (p *ReferenceParameter) Defined() bool { return len(p.values) > 0 }

// refExpr is the SQL expression producing the reference literal(s).
func (p *ReferenceParameter) literalFilter(v refValue) Fragment {
	if p.many {
		return Fragment{
			SQL:  "EXISTS (SELECT 1 FROM json_each(r.body, '" + p.path + "') AS ref WHERE json_extract(ref.value, '$.reference') = ?)",
			Args: []any{v.literal(p.targetType)},
		}
	}
	return Fragment{
		SQL:  "json_extract(r.body, '" + p.path + ".reference') = ?",
		Args: []any{v.literal(p.targetType)},
	}
}

// identifierFilter joins to the current version of the referenced
// resource and applies the token predicate to its identifiers.
func (p *ReferenceParameter) identifierFilter(v refValue) Fragment {
	var refMatch string
	if p.many {
		refMatch = "t.resource_type || '/' || t.id IN (SELECT json_extract(ref.value, '$.reference') FROM json_each(r.body, '" + p.path + "') AS ref)"
	} else {
		refMatch = "t.resource_type || '/' || t.id = json_extract(r.body, '" + p.path + ".reference')"
	}

	var identCond string
	args := []any{p.targetType}
	switch v.identifier.state {
	case tokenCodeOnly:
		identCond = "json_extract(ident.value, '$.value') = ?"
		args = append(args, v.identifier.code)
	case tokenCodeNoSystem:
		identCond = "json_extract(ident.value, '$.value') = ? AND json_type(ident.value, '$.system') IS NULL"
		args = append(args, v.identifier.code)
	case tokenSystemOnly:
		identCond = "json_extract(ident.value, '$.system') = ?"
		args = append(args, v.identifier.system)
	default:
		identCond = "json_extract(ident.value, '$.system') = ? AND json_extract(ident.value, '$.value') = ?"
		args = append(args, v.identifier.system, v.identifier.code)
	}

	return Fragment{
		SQL: "EXISTS (SELECT 1 FROM resources t WHERE t.current = 1 AND t.deleted = 0 AND t.resource_type = ?" +
			" AND " + refMatch +
			" AND EXISTS (SELECT 1 FROM json_each(t.body, '$.identifier') AS ident WHERE " + identCond + "))",
		Args: args,
	}
}

func (p *ReferenceParameter) Filter() Fragment {
	frags := make([]Fragment, 0, len(p.values))
	for _, v := range p.values {
		if v.kind == refIdentifier {
			frags = append(frags, p.identifierFilter(v))
		} else {
			frags = append(frags, p.literalFilter(v))
		}
	}
	return Or(frags...)
}

func (p *ReferenceParameter) SortExpr() string {
	if p.many {
		return "json_extract(r.body, '" + p.path + "[0].reference')"
	}
	return "json_extract(r.body, '" + p.path + ".reference')"
}

func (p *ReferenceParameter) Matches(r *resource.Resource) bool {
	refs := r.ReferencesAt(jsonPathToDotted(p.path))

	for _, v := range p.values {
		if v.kind != refIdentifier {
			want := v.literal(p.targetType)
			for _, ref := range refs {
				if ref == want {
					return true
				}
			}
			continue
		}

		if p.resolver == nil {
			continue
		}
		for _, ref := range refs {
			typ, id, ok := strings.Cut(ref, "/")
			if !ok || typ != p.targetType {
				continue
			}
			target := p.resolver(typ, id)
			if target == nil {
				continue
			}
			for _, ident := range target.IdentifiersAt("identifier") {
				if v.identifier.matchesIdentifier(ident) {
					return true
				}
			}
		}
	}
	return false
}

func (p *ReferenceParameter) CanonicalValues() []string {
	out := make([]string, 0, len(p.values))
	for _, v := range p.values {
		if v.kind == refIdentifier {
			out = append(out, v.identifier.canonical())
		} else {
			out = append(out, v.literal(p.targetType))
		}
	}
	return out
}
