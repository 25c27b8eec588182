package env

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vecbind/config"
	"vecbind/internal/adapter/store"
	"vecbind/internal/binding"
	"vecbind/internal/domain"
	"vecbind/internal/dynamic"
)

func newEnv(t *testing.T, bindings ...config.BindingConfig) *Env {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Bindings = bindings
	require.NoError(t, cfg.Validate())

	e, err := New(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })

	return e
}

func TestEnv_GetUndeclared(t *testing.T) {
	e := newEnv(t)

	assert.True(t, dynamic.IsUndefined(e.Get("VECTORIZE")))

	_, err := e.Vectorize("VECTORIZE")
	assert.ErrorIs(t, err, ErrUnknownBinding)
	assert.NotErrorIs(t, err, binding.ErrTypeMismatch)

	_, err = binding.Resolve(e.Get("VECTORIZE"))
	assert.ErrorIs(t, err, binding.ErrTypeMismatch)
	assert.ErrorContains(t, err, "from undefined")
}

func TestEnv_FixtureGetsShim(t *testing.T) {
	e := newEnv(t, config.BindingConfig{
		Name: "VECTORIZE",
		Kind: config.KindFixture,
		Fields: map[string]any{
			"name":       "VECTORIZE",
			"dimensions": 2,
		},
	})

	v, err := e.Vectorize("VECTORIZE")
	require.NoError(t, err)
	assert.Equal(t, binding.KindPlainObject, v.Kind())

	details, err := v.Describe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "VECTORIZE", *details.Name)
	assert.Equal(t, uint32(2), details.DimensionsOrZero())
	assert.Equal(t, "cosine", details.MetricOrDefault())

	// the declared value itself is untouched
	_, hasDescribe := e.Get("VECTORIZE").(dynamic.Object)["describe"]
	assert.False(t, hasDescribe)
}

func TestEnv_FixtureResponses(t *testing.T) {
	e := newEnv(t, config.BindingConfig{
		Name: "VECTORIZE",
		Kind: config.KindFixture,
		Responses: map[string]any{
			"describe": map[string]any{"dimensions": 5},
			"insert":   map[string]any{"$reject": "quota exceeded"},
		},
	})

	v, err := e.Vectorize("VECTORIZE")
	require.NoError(t, err)
	assert.Equal(t, binding.KindCapable, v.Kind())

	details, err := v.Describe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint32(5), details.DimensionsOrZero())
	assert.Nil(t, details.Name)

	_, err = v.Insert(context.Background(), []domain.Vector{{ID: "a", Values: []float64{1}}})
	assert.ErrorIs(t, err, binding.ErrUnreachable)
	assert.ErrorContains(t, err, "quota exceeded")
}

func TestEnv_LegacySchema(t *testing.T) {
	e := newEnv(t, config.BindingConfig{
		Name:      "OLD",
		Kind:      config.KindFixture,
		Schema:    "legacy",
		Responses: map[string]any{"describe": map[string]any{"name": "old"}},
	})

	v, err := e.Vectorize("OLD")
	require.NoError(t, err)
	assert.Equal(t, binding.SchemaLegacy, v.Schema())

	_, err = v.Describe(context.Background())
	assert.ErrorIs(t, err, binding.ErrMalformedResponse)
}

func TestEnv_MemoryAndEmulator(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "docs.db")

	e := newEnv(t,
		config.BindingConfig{Name: "MEM", Kind: config.KindMemory, Dimensions: 2},
		config.BindingConfig{Name: "DOCS", Kind: config.KindEmulator, Path: path, IndexName: "docs", Dimensions: 2},
	)

	assert.Equal(t, []string{"DOCS", "MEM"}, e.Names())

	_, ok := e.Get("DOCS").(*store.BoltIndex)
	assert.True(t, ok)

	for _, name := range e.Names() {
		v, err := e.Vectorize(name)
		require.NoError(t, err)
		assert.Equal(t, binding.KindGenuine, v.Kind())

		_, err = v.Insert(context.Background(), []domain.Vector{{ID: "a", Values: []float64{1, 2}}})
		require.NoError(t, err)

		details, err := v.Describe(context.Background())
		require.NoError(t, err)
		assert.Equal(t, uint32(1), *details.VectorCount)
	}

	details, err := mustVectorize(t, e, "MEM").Describe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "MEM", *details.Name)
}

func mustVectorize(t *testing.T, e *Env, name string) *binding.Vectorize {
	t.Helper()
	v, err := e.Vectorize(name)
	require.NoError(t, err)
	return v
}

func TestEnv_Set(t *testing.T) {
	e := newEnv(t)

	e.Set("NUM", 42)
	_, err := e.Vectorize("NUM")

	var mismatch *binding.TypeMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, "binding cannot be cast to the type Vectorize from number", err.Error())
}

func TestEnv_CallContext(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.CallTimeout = time.Millisecond

	e, err := New(cfg, nil)
	require.NoError(t, err)
	defer e.Close()

	ctx, cancel := e.CallContext(context.Background())
	defer cancel()

	_, hasDeadline := ctx.Deadline()
	assert.True(t, hasDeadline)

	<-ctx.Done()
	assert.ErrorIs(t, ctx.Err(), context.DeadlineExceeded)
}

func TestEnv_BadSchema(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Bindings = []config.BindingConfig{{Name: "X", Kind: config.KindMemory, Schema: "v9"}}

	_, err := New(cfg, nil)
	assert.ErrorContains(t, err, "unknown schema")
}
