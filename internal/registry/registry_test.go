package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recora/recora/internal/search"
)

func statusParam() ParameterDef {
	return ParameterDef{Name: "status", Factory: func() search.Parameter {
		return search.NewCodeParameter("status", "$.status")
	}}
}

func TestNew_Valid(t *testing.T) {
	r, err := New(TypeConfig{Name: "Task", Parameters: []ParameterDef{statusParam()}})
	require.NoError(t, err)

	config, ok := r.Type("Task")
	require.True(t, ok)
	assert.Equal(t, []string{"Task"}, r.TypeNames())

	_, ok = config.Parameter("status")
	assert.True(t, ok)
}

func TestNew_StandardParametersOnEveryType(t *testing.T) {
	r, err := New(TypeConfig{Name: "Task"})
	require.NoError(t, err)

	config, _ := r.Type("Task")
	for _, name := range []string{"_id", "_lastUpdated", "_profile"} {
		_, ok := config.Parameter(name)
		assert.True(t, ok, "missing standard parameter %s", name)
	}
}

func TestNew_ValidationFailures(t *testing.T) {
	endpointRef := ParameterDef{Name: "endpoint", Factory: func() search.Parameter {
		return search.NewReferenceListParameter("endpoint", "$.endpoint", "Endpoint")
	}}

	tests := []struct {
		name    string
		configs []TypeConfig
	}{
		{"unnamed type", []TypeConfig{{}}},
		{"duplicate type", []TypeConfig{{Name: "Task"}, {Name: "Task"}}},
		{"nil factory", []TypeConfig{{Name: "Task", Parameters: []ParameterDef{{Name: "status"}}}}},
		{"duplicate parameter", []TypeConfig{{Name: "Task", Parameters: []ParameterDef{statusParam(), statusParam()}}}},
		{"include names undeclared parameter", []TypeConfig{{
			Name:     "Organization",
			Includes: []IncludeDef{{Parameter: "endpoint", TargetType: "Endpoint"}},
		}}},
		{"include on non-reference parameter", []TypeConfig{{
			Name:       "Task",
			Parameters: []ParameterDef{statusParam()},
			Includes:   []IncludeDef{{Parameter: "status", TargetType: "Task"}},
		}}},
		{"include targets unknown type", []TypeConfig{{
			Name:       "Organization",
			Parameters: []ParameterDef{endpointRef},
			Includes:   []IncludeDef{{Parameter: "endpoint", TargetType: "Endpoint"}},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.configs...)
			assert.Error(t, err)
		})
	}
}

func TestDefault_Valid(t *testing.T) {
	r := Default()
	for _, name := range []string{"Organization", "Endpoint", "Task", "Questionnaire", "NamingSystem", "Subscription"} {
		_, ok := r.Type(name)
		assert.True(t, ok, "missing type %s", name)
	}

	config, _ := r.Type("Questionnaire")
	assert.Equal(t, KeyByURLVersion, config.ConditionalKey)
	config, _ = r.Type("NamingSystem")
	assert.Equal(t, KeyByName, config.ConditionalKey)
}

func TestIncludeEdge(t *testing.T) {
	r := Default()

	t.Run("resolves with explicit target", func(t *testing.T) {
		_, inc, ok := r.IncludeEdge("Organization", "endpoint", "Endpoint")
		require.True(t, ok)
		assert.Equal(t, "Endpoint", inc.TargetType)
	})

	t.Run("resolves without target", func(t *testing.T) {
		_, inc, ok := r.IncludeEdge("Task", "requester", "")
		require.True(t, ok)
		assert.Equal(t, "Organization", inc.TargetType)
	})

	t.Run("unknown edge", func(t *testing.T) {
		_, _, ok := r.IncludeEdge("Organization", "name", "")
		assert.False(t, ok)
	})
}

func TestCapability_CachedAndComplete(t *testing.T) {
	r := Default()

	doc := r.Capability()
	require.NotNil(t, doc)
	assert.Same(t, doc, r.Capability(), "second call returns the cached document")

	byName := map[string]CapabilityType{}
	for _, ct := range doc.Types {
		byName[ct.Name] = ct
	}
	task := byName["Task"]
	assert.Contains(t, task.Parameters, "status")
	assert.Contains(t, task.Parameters, "_id")
	assert.Contains(t, task.Includes, "Task:requester:Organization")
}
