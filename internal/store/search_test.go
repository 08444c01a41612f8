package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recora/recora/internal/access"
	"github.com/recora/recora/internal/query"
	"github.com/recora/recora/internal/resource"
)

// seedTasks stores a fixed population of tasks with controlled
// timestamps and returns the stored forms.
func seedTasks(t *testing.T, s *Store) []*resource.Resource {
	t.Helper()

	type seed struct {
		id     string
		stamp  string
		body   map[string]any
		grants []resource.Grant
	}
	seeds := []seed{
		{
			id:    "t-requested-early",
			stamp: "2021-02-01T08:00:00Z",
			body: map[string]any{
				"status":   "requested",
				"priority": float64(1),
				"identifier": []any{
					map[string]any{"system": "http://example.org/sid", "value": "alpha"},
				},
				"requester": map[string]any{"reference": "Organization/org-1"},
			},
			grants: grantAll(),
		},
		{
			id:    "t-requested-late",
			stamp: "2021-09-15T08:00:00Z",
			body: map[string]any{
				"status":    "requested",
				"priority":  float64(7),
				"requester": map[string]any{"reference": "Organization/org-2"},
			},
			grants: grantAll(),
		},
		{
			id:    "t-completed",
			stamp: "2021-06-01T12:30:00Z",
			body: map[string]any{
				"status":   "completed",
				"priority": float64(3),
				"identifier": []any{
					map[string]any{"system": "http://example.org/sid", "value": "beta"},
				},
				"requester": map[string]any{"reference": "Organization/org-1"},
			},
			grants: grantAll(),
		},
		{
			id:    "t-next-year",
			stamp: "2022-01-10T00:00:00Z",
			body: map[string]any{
				"status":   "requested",
				"priority": float64(5),
			},
			grants: grantAll(),
		},
		{
			id:    "t-foreign",
			stamp: "2021-07-01T00:00:00Z",
			body: map[string]any{
				"status":   "requested",
				"priority": float64(9),
			},
			grants: []resource.Grant{
				{Scope: resource.GrantOrganization, Organization: "someone-else"},
			},
		},
	}

	stored := make([]*resource.Resource, 0, len(seeds))
	for _, sd := range seeds {
		setClock(s, sd.stamp)
		stored = append(stored, mustCreate(t, s, &resource.Resource{
			Type:   "Task",
			ID:     sd.id,
			Body:   sd.body,
			Grants: sd.grants,
		}))
	}
	return stored
}

func compileSearch(t *testing.T, s *Store, resourceType string, raw map[string][]string) *query.Compiled {
	t.Helper()
	compiled, err := s.compiler.Compile(resourceType, localIdentity(), raw)
	require.NoError(t, err)
	return compiled
}

// matchInMemory evaluates a compiled query against a resource slice
// without touching SQL: type check, every configured parameter, and the
// identity's visibility.
func matchInMemory(s *Store, compiled *query.Compiled, identity access.Identity, population []*resource.Resource) []string {
	admits := s.compiler.Filter().ForMatch(identity)
	var ids []string
	for _, res := range population {
		if res.Type != compiled.ResourceType || res.Deleted {
			continue
		}
		if !admits(res) {
			continue
		}
		ok := true
		for _, param := range compiled.Parameters {
			if !param.Matches(res) {
				ok = false
				break
			}
		}
		if ok {
			ids = append(ids, res.ID)
		}
	}
	return ids
}

func TestSearch_MatchesInMemoryEvaluation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	population := seedTasks(t, s)

	queries := []struct {
		name string
		raw  map[string][]string
	}{
		{"status code", map[string][]string{"status": {"requested"}}},
		{"status OR values", map[string][]string{"status": {"requested,completed"}}},
		{"number gt", map[string][]string{"priority": {"gt3"}}},
		{"number exact", map[string][]string{"priority": {"7"}}},
		{"year period", map[string][]string{"modified": {"2021"}}},
		{"month period", map[string][]string{"modified": {"2021-06"}}},
		{"date ge", map[string][]string{"modified": {"ge2021-06-15T00:00:00Z"}}},
		{"date ne", map[string][]string{"modified": {"ne2021-06-01T12:30:00Z"}}},
		{"reference", map[string][]string{"requester": {"Organization/org-1"}}},
		{"reference bare id", map[string][]string{"requester": {"org-2"}}},
		{"token system and code", map[string][]string{"identifier": {"http://example.org/sid|alpha"}}},
		{"token code only", map[string][]string{"identifier": {"alpha"}}},
		{"id", map[string][]string{"_id": {"t-completed"}}},
		{"combined", map[string][]string{
			"status":   {"requested"},
			"modified": {"2021"},
			"priority": {"le7"},
		}},
		{"no matches", map[string][]string{"status": {"cancelled"}}},
	}

	for _, q := range queries {
		t.Run(q.name, func(t *testing.T) {
			compiled := compileSearch(t, s, "Task", q.raw)

			result, err := s.Search(ctx, compiled)
			require.NoError(t, err)

			want := matchInMemory(s, compiled, localIdentity(), population)
			assert.ElementsMatch(t, want, resourceIDs(result.Resources),
				"SQL and in-memory evaluation must agree")
			assert.Equal(t, len(want), result.Total)
		})
	}
}

func TestSearch_AccessFilterExcludesForeignGrants(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedTasks(t, s)

	compiled := compileSearch(t, s, "Task", map[string][]string{"status": {"requested"}})
	result, err := s.Search(ctx, compiled)
	require.NoError(t, err)

	assert.NotContains(t, resourceIDs(result.Resources), "t-foreign")
}

func TestSearch_NilIdentitySeesNothing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedTasks(t, s)

	compiled, err := s.compiler.Compile("Task", nil, map[string][]string{})
	require.NoError(t, err)

	result, err := s.Search(ctx, compiled)
	require.NoError(t, err)
	assert.Empty(t, result.Resources)
	assert.Zero(t, result.Total)
}

func TestSearch_SortByModifiedDescending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedTasks(t, s)

	compiled := compileSearch(t, s, "Task", map[string][]string{"_sort": {"-modified"}})
	result, err := s.Search(ctx, compiled)
	require.NoError(t, err)

	var ids []string
	for _, res := range result.Resources {
		ids = append(ids, res.ID)
	}
	assert.Equal(t, []string{
		"t-next-year",
		"t-requested-late",
		"t-completed",
		"t-requested-early",
	}, ids)
}

func TestSearch_Paging(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedTasks(t, s)

	page1 := compileSearch(t, s, "Task", map[string][]string{
		"_sort": {"-modified"}, "_count": {"2"}, "_page": {"1"},
	})
	page2 := compileSearch(t, s, "Task", map[string][]string{
		"_sort": {"-modified"}, "_count": {"2"}, "_page": {"2"},
	})

	first, err := s.Search(ctx, page1)
	require.NoError(t, err)
	second, err := s.Search(ctx, page2)
	require.NoError(t, err)

	// Total counts all visible matches regardless of the page window.
	assert.Equal(t, 4, first.Total)
	assert.Equal(t, 4, second.Total)
	require.Len(t, first.Resources, 2)
	require.Len(t, second.Resources, 2)

	seen := map[string]bool{}
	for _, res := range append(first.Resources, second.Resources...) {
		assert.False(t, seen[res.ID], "pages must not overlap")
		seen[res.ID] = true
	}
}

func TestSearch_TombstonesNeverMatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedTasks(t, s)
	require.NoError(t, s.Delete(ctx, "Task", "t-completed"))

	compiled := compileSearch(t, s, "Task", map[string][]string{"status": {"completed"}})
	result, err := s.Search(ctx, compiled)
	require.NoError(t, err)
	assert.Empty(t, result.Resources)
}

func TestSearch_ResultCarriesCanonical(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	compiled := compileSearch(t, s, "Task", map[string][]string{"status": {"requested"}})
	result, err := s.Search(ctx, compiled)
	require.NoError(t, err)
	assert.Equal(t, compiled.Canonical, result.Canonical)
	assert.Contains(t, result.Canonical, "status=requested")
}
