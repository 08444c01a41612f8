package store

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/recora/recora/internal/access"
	"github.com/recora/recora/internal/query"
	"github.com/recora/recora/internal/registry"
	"github.com/recora/recora/internal/resource"
)

// newTestStore creates an in-memory store over the default registry.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	reg := registry.Default()
	filter := access.NewFilter(access.StaticAffiliations{
		"member-org": {"parent-org"},
	})
	compiler := query.NewCompiler(reg, filter, 20, 100, zerolog.Nop())

	s, err := Open(":memory:", reg, compiler, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// setClock pins the store clock to a fixed instant.
func setClock(s *Store, stamp string) {
	at, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		panic(err)
	}
	s.now = func() time.Time { return at }
}

func grantAll() []resource.Grant {
	return []resource.Grant{{Scope: resource.GrantAll}}
}

func localIdentity() access.Identity {
	return access.StaticIdentity{Local: true, Organization: "local-org"}
}

// mustCreate stores a resource and fails the test on error.
func mustCreate(t *testing.T, s *Store, res *resource.Resource) *resource.Resource {
	t.Helper()
	stored, err := s.Create(context.Background(), res)
	require.NoError(t, err)
	return stored
}

func resourceIDs(resources []*resource.Resource) []string {
	ids := make([]string, len(resources))
	for i, res := range resources {
		ids[i] = res.ID
	}
	sort.Strings(ids)
	return ids
}
