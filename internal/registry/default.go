package registry

import (
	"github.com/recora/recora/internal/search"
)

// Default builds the repository's resource-type table. Panics on an
// invalid table; that is a programming error caught at startup.
func Default() *Registry {
	r, err := New(
		TypeConfig{
			Name: "Organization",
			Parameters: []ParameterDef{
				{Name: "identifier", Factory: func() search.Parameter {
					return search.NewIdentifierParameter("identifier", "$.identifier")
				}},
				{Name: "name", Factory: func() search.Parameter {
					return search.NewStringParameter("name", "$.name")
				}},
				{Name: "type", Factory: func() search.Parameter {
					return search.NewCodeParameter("type", "$.type")
				}},
				{Name: "endpoint", Factory: func() search.Parameter {
					return search.NewReferenceListParameter("endpoint", "$.endpoint", "Endpoint")
				}},
			},
			Includes: []IncludeDef{
				{Parameter: "endpoint", TargetType: "Endpoint"},
			},
		},
		TypeConfig{
			Name: "Endpoint",
			Parameters: []ParameterDef{
				{Name: "identifier", Factory: func() search.Parameter {
					return search.NewIdentifierParameter("identifier", "$.identifier")
				}},
				{Name: "status", Factory: func() search.Parameter {
					return search.NewCodeParameter("status", "$.status")
				}},
				{Name: "address", Factory: func() search.Parameter {
					return search.NewExactStringParameter("address", "$.address")
				}},
			},
		},
		TypeConfig{
			Name: "Task",
			Parameters: []ParameterDef{
				{Name: "identifier", Factory: func() search.Parameter {
					return search.NewIdentifierParameter("identifier", "$.identifier")
				}},
				{Name: "status", Factory: func() search.Parameter {
					return search.NewCodeParameter("status", "$.status")
				}},
				{Name: "requester", Factory: func() search.Parameter {
					return search.NewReferenceParameter("requester", "$.requester", "Organization")
				}},
				{Name: "modified", Factory: func() search.Parameter {
					return search.NewDateTimeParameter("modified", "r.last_updated")
				}},
				{Name: "priority", Factory: func() search.Parameter {
					return search.NewNumberParameter("priority", "$.priority")
				}},
			},
			Includes: []IncludeDef{
				{Parameter: "requester", TargetType: "Organization"},
			},
		},
		TypeConfig{
			Name: "Questionnaire",
			Parameters: []ParameterDef{
				{Name: "identifier", Factory: func() search.Parameter {
					return search.NewIdentifierParameter("identifier", "$.identifier")
				}},
				{Name: "url", Factory: func() search.Parameter {
					return search.NewExactStringParameter("url", "$.url")
				}},
				{Name: "version", Factory: func() search.Parameter {
					return search.NewCodeParameter("version", "$.version")
				}},
				{Name: "date", Factory: func() search.Parameter {
					return search.NewDateTimeParameter("date", "r.last_updated")
				}},
				{Name: "url-version", Factory: func() search.Parameter {
					return search.NewCompositeParameter("url-version",
						func() search.Parameter { return search.NewExactStringParameter("url", "$.url") },
						func() search.Parameter { return search.NewCodeParameter("version", "$.version") },
					)
				}},
			},
			ConditionalKey: KeyByURLVersion,
		},
		TypeConfig{
			Name: "NamingSystem",
			Parameters: []ParameterDef{
				{Name: "name", Factory: func() search.Parameter {
					return search.NewExactStringParameter("name", "$.name")
				}},
				{Name: "status", Factory: func() search.Parameter {
					return search.NewCodeParameter("status", "$.status")
				}},
			},
			ConditionalKey: KeyByName,
		},
		TypeConfig{
			Name: "Subscription",
			Parameters: []ParameterDef{
				{Name: "status", Factory: func() search.Parameter {
					return search.NewCodeParameter("status", "$.status")
				}},
				{Name: "criteria", Factory: func() search.Parameter {
					return search.NewExactStringParameter("criteria", "$.criteria")
				}},
			},
		},
	)
	if err != nil {
		panic(err)
	}
	return r
}
