package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vecbind/internal/adapter/fs"
	"vecbind/internal/adapter/memstore"
	"vecbind/internal/adapter/record"
	"vecbind/internal/binding"
	"vecbind/internal/domain"
)

func vectors(n int) []domain.Vector {
	out := make([]domain.Vector, n)
	for i := range out {
		out[i] = domain.Vector{ID: fmt.Sprintf("v%d", i), Values: []float64{float64(i)}}
	}
	return out
}

func TestBatch(t *testing.T) {
	batches := Batch(vectors(5), 2)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 2)
	assert.Len(t, batches[2], 1)
	assert.Equal(t, "v4", batches[2][0].ID)

	assert.Empty(t, Batch(nil, 2))
	assert.Len(t, Batch(vectors(3), 0), 1)
}

func TestIngest_Files(t *testing.T) {
	root := t.TempDir()

	var lines []string
	for i := 0; i < 5; i++ {
		lines = append(lines, fmt.Sprintf(`{"id":"l%d","values":[%d]}`, i, i))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.jsonl"), []byte(strings.Join(lines, "\n")), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.json"), []byte(`[{"id":"j0","values":[9]}]`), 0644))

	host := memstore.NewMemoryIndex(record.IndexInfo{Name: "idx", Dimensions: 1})
	v, err := binding.Resolve(host)
	require.NoError(t, err)

	var (
		mu       sync.Mutex
		progress []int
	)

	uc := NewIngestUseCase(v, fs.NewWalker(nil, nil), 2, 2, nil)
	result, err := uc.Ingest(context.Background(), []string{root}, IngestOptions{
		Progress: func(done, total int) {
			mu.Lock()
			defer mu.Unlock()
			assert.Equal(t, 6, total)
			progress = append(progress, done)
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Files)
	assert.Equal(t, 6, result.Vectors)
	assert.Equal(t, 3, result.Batches)
	require.Len(t, result.Mutations, 3)
	for _, m := range result.Mutations {
		assert.NotEmpty(t, m.MutationID)
	}
	assert.Len(t, progress, 3)
	assert.Contains(t, progress, 6)

	_, ok := host.Get("j0")
	assert.True(t, ok)

	details, err := v.Describe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint32(6), *details.VectorCount)
}

type recordingWriter struct {
	mu      sync.Mutex
	ops     []string
	failOn  int
	calls   int
	batches [][]domain.Vector

	// delay holds every write for this long unless its context ends first.
	delay time.Duration
}

func (w *recordingWriter) wait(ctx context.Context) error {
	if w.delay <= 0 {
		return nil
	}
	select {
	case <-time.After(w.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *recordingWriter) record(op string, vectors []domain.Vector) (domain.Mutation, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.calls++
	if w.failOn > 0 && w.calls == w.failOn {
		return domain.Mutation{}, errors.New("rejected")
	}
	w.ops = append(w.ops, op)
	w.batches = append(w.batches, vectors)
	return domain.Mutation{MutationID: fmt.Sprintf("%s-%s", op, vectors[0].ID)}, nil
}

func (w *recordingWriter) Insert(ctx context.Context, vectors []domain.Vector) (domain.Mutation, error) {
	if err := w.wait(ctx); err != nil {
		return domain.Mutation{}, err
	}
	return w.record("insert", vectors)
}

func (w *recordingWriter) Upsert(ctx context.Context, vectors []domain.Vector) (domain.Mutation, error) {
	if err := w.wait(ctx); err != nil {
		return domain.Mutation{}, err
	}
	return w.record("upsert", vectors)
}

func TestSubmit_MutationsInBatchOrder(t *testing.T) {
	w := &recordingWriter{}
	uc := NewIngestUseCase(w, fs.NewWalker(nil, nil), 3, 4, nil)

	result, err := uc.Submit(context.Background(), vectors(10), IngestOptions{Upsert: true})
	require.NoError(t, err)

	assert.Equal(t, []domain.Mutation{
		{MutationID: "upsert-v0"},
		{MutationID: "upsert-v3"},
		{MutationID: "upsert-v6"},
		{MutationID: "upsert-v9"},
	}, result.Mutations)
	assert.Equal(t, []string{"upsert", "upsert", "upsert", "upsert"}, w.ops)
}

func TestSubmit_StopsOnFirstError(t *testing.T) {
	w := &recordingWriter{failOn: 2}
	uc := NewIngestUseCase(w, fs.NewWalker(nil, nil), 1, 1, nil)

	result, err := uc.Submit(context.Background(), vectors(5), IngestOptions{})
	assert.Nil(t, result)
	assert.ErrorContains(t, err, "batch 1: rejected")
	assert.Equal(t, 2, w.calls)
}

func TestSubmit_CallTimeoutAppliesPerBatch(t *testing.T) {
	w := &recordingWriter{delay: 40 * time.Millisecond}
	uc := NewIngestUseCase(w, fs.NewWalker(nil, nil), 1, 1, nil).
		WithCallContext(func(ctx context.Context) (context.Context, context.CancelFunc) {
			return context.WithTimeout(ctx, 200*time.Millisecond)
		})

	// eight sequential batches take about 320ms in total, beyond one timeout
	start := time.Now()
	result, err := uc.Submit(context.Background(), vectors(8), IngestOptions{})
	require.NoError(t, err)

	assert.Greater(t, time.Since(start), 200*time.Millisecond)
	assert.Len(t, result.Mutations, 8)
	assert.Equal(t, 8, w.calls)
}

func TestSubmit_CallTimeoutFailsSlowBatch(t *testing.T) {
	w := &recordingWriter{delay: time.Second}
	uc := NewIngestUseCase(w, fs.NewWalker(nil, nil), 1, 1, nil).
		WithCallContext(func(ctx context.Context) (context.Context, context.CancelFunc) {
			return context.WithTimeout(ctx, 20*time.Millisecond)
		})

	_, err := uc.Submit(context.Background(), vectors(3), IngestOptions{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorContains(t, err, "batch 0")
	assert.Zero(t, w.calls)
}

func TestSubmit_FacadeErrorsSurface(t *testing.T) {
	host := memstore.NewMemoryIndex(record.IndexInfo{Dimensions: 2})
	v, err := binding.Resolve(host)
	require.NoError(t, err)

	uc := NewIngestUseCase(v, fs.NewWalker(nil, nil), 10, 1, nil)

	_, err = uc.Submit(context.Background(), vectors(1), IngestOptions{})
	assert.ErrorIs(t, err, binding.ErrUnreachable)
}

func TestCollect_Glob(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.json"), []byte(`[{"id":"a","values":[1]}]`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.txt"), []byte(`ignored`), 0644))

	uc := NewIngestUseCase(&recordingWriter{}, fs.NewWalker(nil, nil), 10, 1, nil)

	loaded, files, err := uc.Collect([]string{
		filepath.Join(root, "*"),
		filepath.Join(root, "a.json"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, files)
	require.Len(t, loaded, 1)
	assert.Equal(t, "a", loaded[0].ID)
}
