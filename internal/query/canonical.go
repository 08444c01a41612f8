package query

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// canonicalQuery renders a compiled search as a byte-stable query
// string. Two requests that mean the same search render identically:
// parameter values are re-emitted from their parsed forms, value
// lists are sorted, and url.Values.Encode fixes the key order. Paging
// is always explicit so a canonical string names one exact page.
func canonicalQuery(c *Compiled) string {
	values := url.Values{}

	for _, param := range c.Parameters {
		canon := append([]string(nil), param.CanonicalValues()...)
		sort.Strings(canon)
		values[param.Name()] = canon
	}

	if len(c.Sort) > 0 {
		keys := make([]string, len(c.Sort))
		for i, key := range c.Sort {
			keys[i] = key.Name
			if key.Descending {
				keys[i] = "-" + key.Name
			}
		}
		values.Set(paramSort, strings.Join(keys, ","))
	}

	for _, d := range c.Includes {
		values.Add(paramInclude, d.String())
	}
	for _, d := range c.RevIncludes {
		values.Add(paramRevInclude, d.String())
	}
	sort.Strings(values[paramInclude])
	sort.Strings(values[paramRevInclude])

	values.Set(paramPage, strconv.Itoa(c.Page))
	values.Set(paramCount, strconv.Itoa(c.PageSize))

	return values.Encode()
}
