package binding

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/sirupsen/logrus"

	"vecbind/internal/domain"
	"vecbind/internal/dynamic"
)

// Vectorize is the typed facade over a vector index binding.
//
// It keeps no state besides the wrapped value and is safe for concurrent
// use. Concurrent inserts are not ordered with respect to each other.
type Vectorize struct {
	binding any
	kind    Kind
	schema  Schema
	logger  logrus.FieldLogger
}

func newVectorize(binding any, kind Kind, o *options) *Vectorize {
	return &Vectorize{
		binding: binding,
		kind:    kind,
		schema:  o.schema,
		logger:  o.logger,
	}
}

// Binding returns the wrapped dynamic value.
func (v *Vectorize) Binding() any {
	return v.binding
}

// Kind returns how the binding was resolved.
func (v *Vectorize) Kind() Kind {
	return v.kind
}

// Schema returns the describe response revision in use.
func (v *Vectorize) Schema() Schema {
	return v.schema
}

// Describe reports the state of the index.
func (v *Vectorize) Describe(ctx context.Context) (domain.IndexDetails, error) {
	raw, err := v.call(ctx, "describe")
	if err != nil {
		return domain.IndexDetails{}, err
	}

	details, err := NormalizeDetails(raw, v.schema)
	if err != nil {
		return domain.IndexDetails{}, callError("describe", ErrMalformedResponse, fmt.Errorf("describe payload invalid: %w", err))
	}

	return details, nil
}

// Insert submits the vectors as one batch. Vectors whose ids already exist
// are left untouched by the index.
func (v *Vectorize) Insert(ctx context.Context, vectors []domain.Vector) (domain.Mutation, error) {
	return v.write(ctx, "insert", vectors)
}

// Upsert submits the vectors as one batch, replacing existing ids.
func (v *Vectorize) Upsert(ctx context.Context, vectors []domain.Vector) (domain.Mutation, error) {
	return v.write(ctx, "upsert", vectors)
}

func (v *Vectorize) write(ctx context.Context, op string, vectors []domain.Vector) (domain.Mutation, error) {
	records, err := SerializeVectors(vectors)
	if err != nil {
		return domain.Mutation{}, callError(op, ErrSerializationFailed, err)
	}

	raw, err := v.call(ctx, op, records)
	if err != nil {
		return domain.Mutation{}, err
	}

	mutation, err := NormalizeMutation(raw)
	if err != nil {
		return domain.Mutation{}, callError(op, ErrMalformedResponse, fmt.Errorf("%s payload invalid: %w", op, err))
	}

	return mutation, nil
}

func (v *Vectorize) call(ctx context.Context, op string, args ...any) (any, error) {
	fn, err := member(v.binding, op)
	if err != nil {
		return nil, callError(op, ErrNotCallable, err)
	}

	logger := v.logger.WithFields(logrus.Fields{
		"op":   op,
		"kind": v.kind.String(),
	})

	if len(args) > 0 {
		if records, ok := args[0].([]any); ok {
			logger = logger.WithField("vectors", len(records))
		}
	}

	logger.Debug("calling binding")

	raw, err := fn(ctx, args...)
	if err != nil {
		logger.WithError(err).Debug("binding call rejected")
		return nil, callError(op, ErrUnreachable, err)
	}

	return raw, nil
}

type describer interface {
	Describe(ctx context.Context) (any, error)
}

type inserter interface {
	Insert(ctx context.Context, vectors []any) (any, error)
}

type upserter interface {
	Upsert(ctx context.Context, vectors []any) (any, error)
}

// member looks up op on binding, first as a Go method and then as a
// callable property.
func member(binding any, op string) (dynamic.Func, error) {
	switch op {
	case "describe":
		if d, ok := binding.(describer); ok {
			return func(ctx context.Context, _ ...any) (any, error) {
				return d.Describe(ctx)
			}, nil
		}
	case "insert":
		if i, ok := binding.(inserter); ok {
			return func(ctx context.Context, args ...any) (any, error) {
				return i.Insert(ctx, vectorsArg(args))
			}, nil
		}
	case "upsert":
		if u, ok := binding.(upserter); ok {
			return func(ctx context.Context, args ...any) (any, error) {
				return u.Upsert(ctx, vectorsArg(args))
			}, nil
		}
	}

	val, ok := dynamic.Get(binding, op)
	if !ok {
		return nil, fmt.Errorf("%s is not a function (got undefined)", op)
	}

	switch fn := val.(type) {
	case dynamic.Func:
		if fn != nil {
			return fn, nil
		}
	case func(context.Context, ...any) (any, error):
		if fn != nil {
			return fn, nil
		}
	case func(context.Context) (any, error):
		if fn != nil {
			return func(ctx context.Context, _ ...any) (any, error) {
				return fn(ctx)
			}, nil
		}
	case func(context.Context, []any) (any, error):
		if fn != nil {
			return func(ctx context.Context, args ...any) (any, error) {
				return fn(ctx, vectorsArg(args))
			}, nil
		}
	}

	return nil, fmt.Errorf("%s is not a function (got %s)", op, dynamic.TypeOf(val))
}

func vectorsArg(args []any) []any {
	if len(args) == 0 {
		return nil
	}
	records, _ := args[0].([]any)
	return records
}

func methodName(op string) string {
	return strings.ToUpper(op[:1]) + op[1:]
}

// SerializeVectors converts vectors into the dynamic records passed to the
// index: objects with id, values and, when set, metadata and namespace.
func SerializeVectors(vectors []domain.Vector) ([]any, error) {
	records := make([]any, 0, len(vectors))

	for _, vec := range vectors {
		values := make([]any, len(vec.Values))
		for i, f := range vec.Values {
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return nil, fmt.Errorf("vector %q: value %d is not finite", vec.ID, i)
			}
			values[i] = f
		}

		record := dynamic.Object{
			"id":     vec.ID,
			"values": values,
		}

		if vec.Metadata != nil {
			metadata, err := dynamic.Plain(vec.Metadata)
			if err != nil {
				return nil, fmt.Errorf("vector %q: metadata: %w", vec.ID, err)
			}
			record["metadata"] = metadata
		}

		if vec.Namespace != nil {
			record["namespace"] = *vec.Namespace
		}

		records = append(records, record)
	}

	return records, nil
}
