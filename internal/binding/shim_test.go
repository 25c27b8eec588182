package binding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vecbind/internal/dynamic"
)

func callDescribe(t *testing.T, obj dynamic.Object) any {
	t.Helper()

	fn, ok := obj["describe"].(dynamic.Func)
	require.True(t, ok, "describe must be a dynamic.Func")

	raw, err := fn(context.Background())
	require.NoError(t, err)

	return raw
}

func TestInstallDescribeShim_Defaults(t *testing.T) {
	shimmed := InstallDescribeShim(dynamic.Object{})

	assert.Equal(t, dynamic.Object{
		"name":                  nil,
		"dimensions":            0.0,
		"metric":                "cosine",
		"processedVectorsCount": 0.0,
		"storedVectorsCount":    0.0,
	}, callDescribe(t, shimmed))
}

func TestInstallDescribeShim_ReadsFields(t *testing.T) {
	shimmed := InstallDescribeShim(dynamic.Object{
		"name":                  "VECTORIZE",
		"dimensions":            2,
		"metric":                "euclidean",
		"processedVectorsCount": uint32(10),
		"storedVectorsCount":    12.0,
		"extra":                 true,
	})

	assert.Equal(t, true, shimmed["extra"])
	assert.Equal(t, dynamic.Object{
		"name":                  "VECTORIZE",
		"dimensions":            2.0,
		"metric":                "euclidean",
		"processedVectorsCount": 10.0,
		"storedVectorsCount":    12.0,
	}, callDescribe(t, shimmed))
}

func TestInstallDescribeShim_WrongTypesFallBack(t *testing.T) {
	shimmed := InstallDescribeShim(dynamic.Object{
		"name":       42,
		"dimensions": "768",
		"metric":     nil,
	})

	raw := callDescribe(t, shimmed).(dynamic.Object)
	assert.Nil(t, raw["name"])
	assert.Equal(t, 0.0, raw["dimensions"])
	assert.Equal(t, "cosine", raw["metric"])
}

func TestInstallDescribeShim_SnapshotIsImmutable(t *testing.T) {
	obj := dynamic.Object{"name": "before", "dimensions": 3}
	shimmed := InstallDescribeShim(obj)

	obj["name"] = "after"
	obj["dimensions"] = 99
	shimmed["dimensions"] = 100

	raw := callDescribe(t, shimmed).(dynamic.Object)
	assert.Equal(t, "before", raw["name"])
	assert.Equal(t, 3.0, raw["dimensions"])

	// each call hands out a fresh object
	raw["name"] = "mutated"
	again := callDescribe(t, shimmed).(dynamic.Object)
	assert.Equal(t, "before", again["name"])
}

func TestInstallDescribeShim_Struct(t *testing.T) {
	fixture := struct {
		Name       string
		Dimensions uint32
	}{Name: "idx", Dimensions: 4}

	raw := callDescribe(t, InstallDescribeShim(fixture)).(dynamic.Object)
	assert.Equal(t, "idx", raw["name"])
	assert.Equal(t, 4.0, raw["dimensions"])
}

func TestDescribeShim_CancelledContext(t *testing.T) {
	shim := NewDescribeShim(dynamic.Object{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := shim.Describe(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
