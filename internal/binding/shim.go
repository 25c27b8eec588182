package binding

import (
	"context"

	"vecbind/internal/domain"
	"vecbind/internal/dynamic"
)

// DescribeShim is the describe operation synthesized for plain objects.
// It holds a snapshot of the object taken at installation time.
type DescribeShim struct {
	Name                  *string
	Dimensions            float64
	Metric                string
	ProcessedVectorsCount float64
	StoredVectorsCount    float64
}

// NewDescribeShim snapshots the descriptor fields of obj. Each field falls
// back to its default on its own when missing or of the wrong type.
func NewDescribeShim(obj any) DescribeShim {
	shim := DescribeShim{
		Metric: domain.DefaultMetric,
	}

	if v, ok := dynamic.Get(obj, "name"); ok {
		if name, ok := dynamic.AsString(v); ok {
			shim.Name = &name
		}
	}

	if v, ok := dynamic.Get(obj, "metric"); ok {
		if metric, ok := dynamic.AsString(v); ok {
			shim.Metric = metric
		}
	}

	shim.Dimensions = numberOr(obj, "dimensions", 0)
	shim.ProcessedVectorsCount = numberOr(obj, "processedVectorsCount", 0)
	shim.StoredVectorsCount = numberOr(obj, "storedVectorsCount", 0)

	return shim
}

// Describe resolves with a fresh descriptor object built from the snapshot.
func (s DescribeShim) Describe(ctx context.Context) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var name any
	if s.Name != nil {
		name = *s.Name
	}

	return dynamic.Object{
		"name":                  name,
		"dimensions":            s.Dimensions,
		"metric":                s.Metric,
		"processedVectorsCount": s.ProcessedVectorsCount,
		"storedVectorsCount":    s.StoredVectorsCount,
	}, nil
}

// InstallDescribeShim returns a shallow copy of obj with a describe member
// backed by a snapshot of obj. Later changes to obj are not visible through
// the shim.
func InstallDescribeShim(obj any) dynamic.Object {
	base := dynamic.Assign(obj)
	shim := NewDescribeShim(base)

	base["describe"] = dynamic.Func(func(ctx context.Context, _ ...any) (any, error) {
		return shim.Describe(ctx)
	})

	return base
}

func numberOr(obj any, key string, fallback float64) float64 {
	v, ok := dynamic.Get(obj, key)
	if !ok {
		return fallback
	}

	n, ok := dynamic.AsNumber(v)
	if !ok {
		return fallback
	}

	return n
}
