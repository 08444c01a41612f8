package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recora/recora/internal/resource"
)

func seedIncludeGraph(t *testing.T, s *Store) {
	t.Helper()

	mustCreate(t, s, &resource.Resource{
		Type: "Endpoint", ID: "ep-1",
		Body:   map[string]any{"status": "active", "address": "https://a.example.org"},
		Grants: grantAll(),
	})
	mustCreate(t, s, &resource.Resource{
		Type: "Endpoint", ID: "ep-2",
		Body:   map[string]any{"status": "active", "address": "https://b.example.org"},
		Grants: grantAll(),
	})
	mustCreate(t, s, &resource.Resource{
		Type: "Endpoint", ID: "ep-hidden",
		Body: map[string]any{"status": "active", "address": "https://c.example.org"},
		Grants: []resource.Grant{
			{Scope: resource.GrantOrganization, Organization: "someone-else"},
		},
	})
	mustCreate(t, s, &resource.Resource{
		Type: "Organization", ID: "org-1",
		Body: map[string]any{
			"name": "Shared Endpoint Clinic A",
			"endpoint": []any{
				map[string]any{"reference": "Endpoint/ep-1"},
				map[string]any{"reference": "Endpoint/ep-hidden"},
			},
		},
		Grants: grantAll(),
	})
	mustCreate(t, s, &resource.Resource{
		Type: "Organization", ID: "org-2",
		Body: map[string]any{
			"name": "Shared Endpoint Clinic B",
			"endpoint": []any{
				map[string]any{"reference": "Endpoint/ep-1"},
				map[string]any{"reference": "Endpoint/ep-2"},
			},
		},
		Grants: grantAll(),
	})
	mustCreate(t, s, &resource.Resource{
		Type: "Task", ID: "task-1",
		Body: map[string]any{
			"status":    "requested",
			"requester": map[string]any{"reference": "Organization/org-1"},
		},
		Grants: grantAll(),
	})
	mustCreate(t, s, &resource.Resource{
		Type: "Task", ID: "task-2",
		Body: map[string]any{
			"status":    "completed",
			"requester": map[string]any{"reference": "Organization/org-2"},
		},
		Grants: grantAll(),
	})
}

func TestResolveIncludes_Forward(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedIncludeGraph(t, s)

	compiled := compileSearch(t, s, "Organization", map[string][]string{
		"_include": {"Organization:endpoint:Endpoint"},
	})
	result, err := s.Search(ctx, compiled)
	require.NoError(t, err)
	require.Len(t, result.Resources, 2)

	attached, err := s.ResolveIncludes(ctx, localIdentity(), compiled, result)
	require.NoError(t, err)

	// ep-1 referenced by both organizations appears once; ep-hidden is
	// invisible to the identity and omitted.
	assert.Equal(t, []string{"ep-1", "ep-2"}, resourceIDs(attached))
}

func TestResolveIncludes_ForwardSkipsDeletedTargets(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedIncludeGraph(t, s)
	require.NoError(t, s.Delete(ctx, "Endpoint", "ep-2"))

	compiled := compileSearch(t, s, "Organization", map[string][]string{
		"_include": {"Organization:endpoint:Endpoint"},
	})
	result, err := s.Search(ctx, compiled)
	require.NoError(t, err)

	attached, err := s.ResolveIncludes(ctx, localIdentity(), compiled, result)
	require.NoError(t, err)
	assert.Equal(t, []string{"ep-1"}, resourceIDs(attached))
}

func TestResolveIncludes_Reverse(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedIncludeGraph(t, s)

	compiled := compileSearch(t, s, "Organization", map[string][]string{
		"name":        {"Shared Endpoint Clinic A"},
		"_revinclude": {"Task:requester:Organization"},
	})
	result, err := s.Search(ctx, compiled)
	require.NoError(t, err)
	require.Len(t, result.Resources, 1)

	attached, err := s.ResolveIncludes(ctx, localIdentity(), compiled, result)
	require.NoError(t, err)

	// Only the task pointing at the page's organization comes back.
	assert.Equal(t, []string{"task-1"}, resourceIDs(attached))
}

func TestResolveIncludes_DedupesAgainstPage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedIncludeGraph(t, s)

	// The page already contains every organization, so a revinclude of
	// tasks followed by a forward include never re-attaches page rows.
	compiled := compileSearch(t, s, "Task", map[string][]string{
		"_include": {"Task:requester:Organization"},
	})
	result, err := s.Search(ctx, compiled)
	require.NoError(t, err)

	attached, err := s.ResolveIncludes(ctx, localIdentity(), compiled, result)
	require.NoError(t, err)
	assert.Equal(t, []string{"org-1", "org-2"}, resourceIDs(attached))

	for _, res := range attached {
		for _, page := range result.Resources {
			assert.False(t, res.Type == page.Type && res.ID == page.ID,
				"attachments never duplicate page rows")
		}
	}
}

func TestResolveIncludes_VersionPinnedReference(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreate(t, s, &resource.Resource{
		Type: "Endpoint", ID: "ep-pin",
		Body:   map[string]any{"status": "active", "address": "https://old.example.org"},
		Grants: grantAll(),
	})
	_, err := s.Update(ctx, &resource.Resource{
		Type: "Endpoint", ID: "ep-pin",
		Body:   map[string]any{"status": "active", "address": "https://new.example.org"},
		Grants: grantAll(),
	}, 1)
	require.NoError(t, err)

	mustCreate(t, s, &resource.Resource{
		Type: "Organization", ID: "org-pin",
		Body: map[string]any{
			"name": "Pinned Endpoint Clinic",
			"endpoint": []any{
				map[string]any{"reference": "Endpoint/ep-pin/_history/1"},
			},
		},
		Grants: grantAll(),
	})

	compiled := compileSearch(t, s, "Organization", map[string][]string{
		"name":     {"Pinned Endpoint Clinic"},
		"_include": {"Organization:endpoint:Endpoint"},
	})
	result, err := s.Search(ctx, compiled)
	require.NoError(t, err)
	require.Len(t, result.Resources, 1)

	attached, err := s.ResolveIncludes(ctx, localIdentity(), compiled, result)
	require.NoError(t, err)

	// The pinned reference resolves the exact historical version, not
	// the current one.
	require.Len(t, attached, 1)
	assert.Equal(t, "ep-pin", attached[0].ID)
	assert.Equal(t, int64(1), attached[0].VersionID)
	assert.Equal(t, "https://old.example.org", attached[0].Body["address"])
}

func TestResolveIncludes_PinnedMissingVersionOmitted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreate(t, s, &resource.Resource{
		Type: "Endpoint", ID: "ep-one",
		Body:   map[string]any{"status": "active", "address": "https://one.example.org"},
		Grants: grantAll(),
	})
	mustCreate(t, s, &resource.Resource{
		Type: "Organization", ID: "org-miss",
		Body: map[string]any{
			"name": "Missing Version Clinic",
			"endpoint": []any{
				map[string]any{"reference": "Endpoint/ep-one/_history/9"},
			},
		},
		Grants: grantAll(),
	})

	compiled := compileSearch(t, s, "Organization", map[string][]string{
		"name":     {"Missing Version Clinic"},
		"_include": {"Organization:endpoint:Endpoint"},
	})
	result, err := s.Search(ctx, compiled)
	require.NoError(t, err)

	attached, err := s.ResolveIncludes(ctx, localIdentity(), compiled, result)
	require.NoError(t, err)
	assert.Empty(t, attached, "a version that was never stored attaches nothing")
}

func TestSplitIncludeLiteral(t *testing.T) {
	cases := []struct {
		literal string
		typ     string
		id      string
		version int64
		ok      bool
	}{
		{"ep-1", "Endpoint", "ep-1", 0, true},
		{"Endpoint/ep-1", "Endpoint", "ep-1", 0, true},
		{"Endpoint/ep-1/_history/3", "Endpoint", "ep-1", 3, true},
		{"Endpoint/ep-1/_history/0", "", "", 0, false},
		{"Endpoint/ep-1/_history/x", "", "", 0, false},
		{"Endpoint/ep-1/extra/3", "", "", 0, false},
		{"Endpoint/", "", "", 0, false},
		{"/ep-1", "", "", 0, false},
		{"", "", "", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.literal, func(t *testing.T) {
			typ, id, version, ok := splitIncludeLiteral(tc.literal, "Endpoint")
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.typ, typ)
				assert.Equal(t, tc.id, id)
				assert.Equal(t, tc.version, version)
			}
		})
	}
}

func TestResolveIncludes_NoDirectivesNoWork(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedIncludeGraph(t, s)

	compiled := compileSearch(t, s, "Task", map[string][]string{})
	result, err := s.Search(ctx, compiled)
	require.NoError(t, err)

	attached, err := s.ResolveIncludes(ctx, localIdentity(), compiled, result)
	require.NoError(t, err)
	assert.Empty(t, attached)
}
