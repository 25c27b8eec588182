package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vecbind/internal/adapter/record"
	"vecbind/internal/binding"
	"vecbind/internal/domain"
)

func openIndex(t *testing.T, path string, info record.IndexInfo) *BoltIndex {
	t.Helper()

	st, err := NewBoltIndex(path, info)
	require.NoError(t, err)

	_, err = st.Prepare()
	require.NoError(t, err)

	return st
}

func TestBoltIndex_InsertAndDescribe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	st := openIndex(t, path, record.IndexInfo{Name: "docs", Dimensions: 2, Metric: "euclidean"})
	defer st.Close()

	v, err := binding.Resolve(st)
	require.NoError(t, err)

	ctx := context.Background()
	ns := "tenant-a"

	mutation, err := v.Insert(ctx, []domain.Vector{
		{ID: "a", Values: []float64{0.5, 0.5}, Namespace: &ns},
		{ID: "b", Values: []float64{1, 0}},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, mutation.MutationID)

	details, err := v.Describe(ctx)
	require.NoError(t, err)
	assert.Equal(t, "docs", *details.Name)
	assert.Equal(t, "euclidean", details.MetricOrDefault())
	assert.Equal(t, uint32(2), *details.VectorCount)
	assert.Equal(t, uint32(2), *details.StoredVectorsCount)
	assert.Equal(t, mutation.MutationID, *details.ProcessedUpToMutation)
	assert.NotNil(t, details.ProcessedUpToTime)

	vec, err := st.GetVector("a")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.5}, vec.Values)
	require.NotNil(t, vec.Namespace)
	assert.Equal(t, "tenant-a", *vec.Namespace)
}

func TestBoltIndex_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	info := record.IndexInfo{Name: "docs", Dimensions: 1}

	st := openIndex(t, path, info)
	_, err := st.Insert(context.Background(), []any{map[string]any{"id": "a", "values": []any{1.0}}})
	require.NoError(t, err)
	require.NoError(t, st.Close())

	st = openIndex(t, path, info)
	defer st.Close()

	mutations, err := st.ListMutations()
	require.NoError(t, err)
	require.Len(t, mutations, 1)
	assert.Equal(t, "insert", mutations[0].Op)
	assert.Equal(t, 1, mutations[0].Count)

	_, err = st.GetVector("a")
	assert.NoError(t, err)
}

func TestBoltIndex_InsertKeepsUpsertReplaces(t *testing.T) {
	st := openIndex(t, filepath.Join(t.TempDir(), "index.db"), record.IndexInfo{Dimensions: 1})
	defer st.Close()

	ctx := context.Background()

	_, err := st.Insert(ctx, []any{map[string]any{"id": "a", "values": []any{1.0}}})
	require.NoError(t, err)
	_, err = st.Insert(ctx, []any{map[string]any{"id": "a", "values": []any{2.0}}})
	require.NoError(t, err)

	vec, err := st.GetVector("a")
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, vec.Values)

	_, err = st.Upsert(ctx, []any{map[string]any{"id": "a", "values": []any{3.0}}})
	require.NoError(t, err)

	vec, err = st.GetVector("a")
	require.NoError(t, err)
	assert.Equal(t, []float64{3}, vec.Values)

	mutations, err := st.ListMutations()
	require.NoError(t, err)
	assert.Len(t, mutations, 3)
}

func TestBoltIndex_RejectsBadRecords(t *testing.T) {
	st := openIndex(t, filepath.Join(t.TempDir(), "index.db"), record.IndexInfo{Dimensions: 2})
	defer st.Close()

	ctx := context.Background()

	_, err := st.Insert(ctx, []any{map[string]any{"id": "a", "values": []any{1.0}}})
	assert.ErrorContains(t, err, "dimension mismatch")

	_, err = st.Insert(ctx, []any{map[string]any{"values": []any{1.0, 2.0}}})
	assert.ErrorContains(t, err, "missing id")

	mutations, err := st.ListMutations()
	require.NoError(t, err)
	assert.Empty(t, mutations)
}

func TestBoltIndex_Migration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")

	st, err := NewBoltIndex(path, record.IndexInfo{Dimensions: 2})
	require.NoError(t, err)

	result, err := st.CheckMigration()
	require.NoError(t, err)
	assert.True(t, result.NeedsMigration)
	assert.Equal(t, 0, result.OldVersion)

	require.NoError(t, st.Migrate())

	info, err := st.GetSchemaInfo()
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, info.Version)

	_, err = st.Insert(context.Background(), []any{map[string]any{"id": "a", "values": []any{1.0, 2.0}}})
	require.NoError(t, err)
	require.NoError(t, st.Close())

	// changing dimensions invalidates stored vectors
	st, err = NewBoltIndex(path, record.IndexInfo{Dimensions: 3})
	require.NoError(t, err)
	defer st.Close()

	result, err = st.Prepare()
	require.NoError(t, err)
	assert.True(t, result.NeedsRebuild)

	_, err = st.GetVector("a")
	assert.Error(t, err)
}

func TestBoltIndex_ReadsBeforePrepare(t *testing.T) {
	st, err := NewBoltIndex(filepath.Join(t.TempDir(), "index.db"), record.IndexInfo{Dimensions: 2})
	require.NoError(t, err)
	defer st.Close()

	_, err = st.GetVector("a")
	assert.ErrorContains(t, err, "vector not found: a")

	mutations, err := st.ListMutations()
	require.NoError(t, err)
	assert.Empty(t, mutations)
}
