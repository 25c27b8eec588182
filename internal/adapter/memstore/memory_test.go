package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vecbind/internal/adapter/record"
	"vecbind/internal/binding"
	"vecbind/internal/domain"
	"vecbind/internal/dynamic"
)

func TestMemoryIndex_ThroughFacade(t *testing.T) {
	host := NewMemoryIndex(record.IndexInfo{Name: "VECTORIZE", Dimensions: 2})

	v, err := binding.Resolve(host)
	require.NoError(t, err)
	assert.Equal(t, binding.KindGenuine, v.Kind())

	ctx := context.Background()

	mutation, err := v.Insert(ctx, []domain.Vector{
		{ID: "a", Values: []float64{1, 0}},
		{ID: "b", Values: []float64{0, 1}, Metadata: map[string]any{"k": "v"}},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, mutation.MutationID)

	details, err := v.Describe(ctx)
	require.NoError(t, err)
	assert.Equal(t, "VECTORIZE", *details.Name)
	assert.Equal(t, uint32(2), details.DimensionsOrZero())
	assert.Equal(t, "cosine", details.MetricOrDefault())
	assert.Equal(t, uint32(2), *details.VectorCount)
	assert.Equal(t, mutation.MutationID, *details.ProcessedUpToMutation)

	stored, ok := host.Get("b")
	require.True(t, ok)
	assert.Equal(t, dynamic.Object{"k": "v"}, stored.Metadata)
}

func TestMemoryIndex_InsertKeepsUpsertReplaces(t *testing.T) {
	host := NewMemoryIndex(record.IndexInfo{Dimensions: 1})
	v, err := binding.Resolve(host)
	require.NoError(t, err)

	ctx := context.Background()

	_, err = v.Insert(ctx, []domain.Vector{{ID: "a", Values: []float64{1}}})
	require.NoError(t, err)

	_, err = v.Insert(ctx, []domain.Vector{{ID: "a", Values: []float64{2}}})
	require.NoError(t, err)
	stored, _ := host.Get("a")
	assert.Equal(t, []float64{1}, stored.Values)

	_, err = v.Upsert(ctx, []domain.Vector{{ID: "a", Values: []float64{3}}})
	require.NoError(t, err)
	stored, _ = host.Get("a")
	assert.Equal(t, []float64{3}, stored.Values)
}

func TestMemoryIndex_DimensionMismatchRejects(t *testing.T) {
	v, err := binding.Resolve(NewMemoryIndex(record.IndexInfo{Dimensions: 3}))
	require.NoError(t, err)

	_, err = v.Insert(context.Background(), []domain.Vector{{ID: "a", Values: []float64{1}}})
	require.Error(t, err)
	assert.ErrorIs(t, err, binding.ErrUnreachable)
	assert.Contains(t, err.Error(), "dimension mismatch")
}
