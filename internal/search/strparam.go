package search

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/recora/recora/internal/resource"
)

// StringParameter searches a string field. The default mode is a
// case-insensitive starts-with match; exact mode compares the whole
// value. Query values are NFC-normalized before use; stored bodies are
// normalized the same way at write time, so both execution models see
// one normal form.
type StringParameter struct {
	name  string
	path  string
	exact bool

	values []string
}

// NewStringParameter creates a starts-with string parameter over a
// scalar body path such as "$.name".
func NewStringParameter(name, path string) *StringParameter {
	return &StringParameter{name: name, path: path}
}

// NewExactStringParameter creates a whole-value string parameter, used
// for url-like fields where prefix semantics would be wrong.
func NewExactStringParameter(name, path string) *StringParameter {
	return &StringParameter{name: name, path: path, exact: true}
}

func (p *StringParameter) Name() string { return p.name }

func (p *StringParameter) Configure(raw []string) []ParamError {
	var errs []ParamError
	for _, value := range raw {
		if value == "" {
			errs = append(errs, unparsable(p.name, value, "empty string value"))
			continue
		}
		p.values = append(p.values, norm.NFC.String(value))
	}
	return errs
}

func (p *StringParameter) Defined() bool { return len(p.values) > 0 }

func (p *StringParameter) Filter() Fragment {
	expr := "json_extract(r.body, '" + p.path + "')"
	frags := make([]Fragment, 0, len(p.values))
	for _, v := range p.values {
		if p.exact {
			frags = append(frags, Fragment{SQL: expr + " = ?", Args: []any{v}})
		} else {
			frags = append(frags, Fragment{
				SQL:  expr + ` LIKE ? ESCAPE '\'`,
				Args: []any{escapeLike(v) + "%"},
			})
		}
	}
	return Or(frags...)
}

// escapeLike quotes the LIKE wildcards in a literal prefix.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}

func (p *StringParameter) SortExpr() string {
	return "json_extract(r.body, '" + p.path + "')"
}

func (p *StringParameter) Matches(r *resource.Resource) bool {
	field, ok := r.StringAt(jsonPathToDotted(p.path))
	if !ok {
		return false
	}
	for _, v := range p.values {
		if p.exact {
			if field == v {
				return true
			}
			continue
		}
		if hasPrefixFold(field, v) {
			return true
		}
	}
	return false
}

// hasPrefixFold mirrors SQLite LIKE: case insensitivity for ASCII
// letters only, byte equality for everything else.
func hasPrefixFold(s, prefix string) bool {
	if len(s) < len(prefix) {
		return false
	}
	for i := 0; i < len(prefix); i++ {
		a, b := s[i], prefix[i]
		if 'A' <= a && a <= 'Z' {
			a += 'a' - 'A'
		}
		if 'A' <= b && b <= 'Z' {
			b += 'a' - 'A'
		}
		if a != b {
			return false
		}
	}
	return true
}

func (p *StringParameter) CanonicalValues() []string {
	return append([]string(nil), p.values...)
}
