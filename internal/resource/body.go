package resource

import (
	"strconv"
	"strings"
)

// at walks a dotted path into the body and returns the value at the
// leaf, or nil if any step is missing or has the wrong shape. A step
// may carry a trailing index, as in "profile[0]".
func (r *Resource) at(path string) any {
	var cur any = r.Body
	for _, step := range strings.Split(path, ".") {
		step, index, indexed := splitIndex(step)

		if step != "" {
			obj, ok := cur.(map[string]any)
			if !ok {
				return nil
			}
			cur, ok = obj[step]
			if !ok {
				return nil
			}
		}
		if indexed {
			list, ok := cur.([]any)
			if !ok || index < 0 || index >= len(list) {
				return nil
			}
			cur = list[index]
		}
	}
	return cur
}

func splitIndex(step string) (name string, index int, ok bool) {
	open := strings.IndexByte(step, '[')
	if open < 0 || !strings.HasSuffix(step, "]") {
		return step, 0, false
	}
	n, err := strconv.Atoi(step[open+1 : len(step)-1])
	if err != nil {
		return step, 0, false
	}
	return step[:open], n, true
}

// StringAt returns the string value at a dotted body path.
func (r *Resource) StringAt(path string) (string, bool) {
	s, ok := r.at(path).(string)
	return s, ok
}

// NumberAt returns the numeric value at a dotted body path. Bodies
// decoded from JSON carry numbers as float64; integers written by Go
// callers are accepted too.
func (r *Resource) NumberAt(path string) (float64, bool) {
	switch n := r.at(path).(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// IdentifiersAt returns the identifier entries at a dotted body path.
// The path must hold a list of objects with a "value" string and an
// optional "system" string. Entries without a value are skipped; an
// absent system property is preserved as a nil System.
func (r *Resource) IdentifiersAt(path string) []Identifier {
	list, ok := r.at(path).([]any)
	if !ok {
		return nil
	}

	var out []Identifier
	for _, entry := range list {
		obj, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		value, ok := obj["value"].(string)
		if !ok {
			continue
		}
		ident := Identifier{Value: value}
		if system, ok := obj["system"].(string); ok {
			ident.System = &system
		}
		out = append(out, ident)
	}
	return out
}

// ReferencesAt returns the literal reference strings at a dotted body
// path. The path may hold a single reference object or a list of them;
// each object carries the literal under "reference".
func (r *Resource) ReferencesAt(path string) []string {
	collect := func(v any) (string, bool) {
		obj, ok := v.(map[string]any)
		if !ok {
			return "", false
		}
		ref, ok := obj["reference"].(string)
		return ref, ok
	}

	switch v := r.at(path).(type) {
	case map[string]any:
		if ref, ok := collect(v); ok {
			return []string{ref}
		}
	case []any:
		var out []string
		for _, entry := range v {
			if ref, ok := collect(entry); ok {
				out = append(out, ref)
			}
		}
		return out
	}
	return nil
}
