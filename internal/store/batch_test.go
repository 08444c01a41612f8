package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recora/recora/internal/resource"
)

func TestBatch_CommitsAtomically(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	result, err := s.Batch(ctx, localIdentity(), []Command{
		{Op: OpCreate, Resource: &resource.Resource{
			Type: "Organization", ID: "org-1",
			Body:   map[string]any{"name": "General Hospital"},
			Grants: grantAll(),
		}},
		{Op: OpCreate, Resource: &resource.Resource{
			Type: "Task", ID: "task-1",
			Body:   map[string]any{"status": "requested", "requester": map[string]any{"reference": "Organization/org-1"}},
			Grants: grantAll(),
		}},
	})
	require.NoError(t, err)
	assert.True(t, result.Committed)
	require.Len(t, result.Outcomes, 2)
	for _, outcome := range result.Outcomes {
		assert.NoError(t, outcome.Err)
		assert.NotNil(t, outcome.Resource)
	}

	_, err = s.Read(ctx, localIdentity(), "Organization", "org-1")
	assert.NoError(t, err)
	_, err = s.Read(ctx, localIdentity(), "Task", "task-1")
	assert.NoError(t, err)
}

func TestBatch_LateFailureRollsBackEverything(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	stored := mustCreate(t, s, &resource.Resource{
		Type: "Task", Body: map[string]any{"status": "requested"}, Grants: grantAll(),
	})

	result, err := s.Batch(ctx, localIdentity(), []Command{
		{Op: OpCreate, Resource: &resource.Resource{
			Type: "Organization", ID: "org-batch",
			Body:   map[string]any{"name": "Rolled Back"},
			Grants: grantAll(),
		}},
		{Op: OpUpdate, Resource: &resource.Resource{
			Type: "Task", ID: stored.ID,
			Body:   map[string]any{"status": "completed"},
			Grants: grantAll(),
		}, ExpectedVersion: stored.VersionID + 5},
	})
	require.NoError(t, err)

	assert.False(t, result.Committed)
	require.Len(t, result.Outcomes, 2)
	assert.NoError(t, result.Outcomes[0].Err, "the first command itself succeeded")
	assert.True(t, IsConflict(result.Outcomes[1].Err))

	// The sibling's create was rolled back with the failure.
	_, err = s.Read(ctx, localIdentity(), "Organization", "org-batch")
	assert.True(t, IsNotFound(err))

	read, err := s.Read(ctx, localIdentity(), "Task", stored.ID)
	require.NoError(t, err)
	assert.Equal(t, "requested", read.Body["status"])
}

func TestBatch_MixedOps(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	existing := mustCreate(t, s, &resource.Resource{
		Type: "Task", ID: "to-delete",
		Body:   map[string]any{"status": "completed"},
		Grants: grantAll(),
	})

	result, err := s.Batch(ctx, localIdentity(), []Command{
		{Op: OpConditionalCreate, Resource: &resource.Resource{
			Type:   "Questionnaire",
			Body:   map[string]any{"url": "http://example.org/q/intake", "version": "1.0"},
			Grants: grantAll(),
		}},
		{Op: OpDelete, ResourceType: "Task", ID: existing.ID},
	})
	require.NoError(t, err)
	assert.True(t, result.Committed)

	_, err = s.Read(ctx, localIdentity(), "Task", existing.ID)
	assert.True(t, IsGone(err))
}

func TestBatch_ConditionalCreateRetryInBatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	q := func() *resource.Resource {
		return &resource.Resource{
			Type:   "Questionnaire",
			Body:   map[string]any{"url": "http://example.org/q/intake", "version": "1.0"},
			Grants: grantAll(),
		}
	}

	first, err := s.Batch(ctx, localIdentity(), []Command{{Op: OpConditionalCreate, Resource: q()}})
	require.NoError(t, err)
	require.True(t, first.Committed)

	second, err := s.Batch(ctx, localIdentity(), []Command{{Op: OpConditionalCreate, Resource: q()}})
	require.NoError(t, err)
	require.True(t, second.Committed)
	assert.Equal(t, first.Outcomes[0].Resource.ID, second.Outcomes[0].Resource.ID)
}

func TestBatch_UnknownOp(t *testing.T) {
	s := newTestStore(t)

	result, err := s.Batch(context.Background(), localIdentity(), []Command{
		{Op: CommandOp("upsert")},
	})
	require.NoError(t, err)
	assert.False(t, result.Committed)
	require.Len(t, result.Outcomes, 1)
	assert.ErrorContains(t, result.Outcomes[0].Err, "unknown batch command")
}

func TestBatch_Empty(t *testing.T) {
	s := newTestStore(t)

	result, err := s.Batch(context.Background(), localIdentity(), nil)
	require.NoError(t, err)
	assert.True(t, result.Committed)
	assert.Empty(t, result.Outcomes)
}
