package port

import (
	"context"

	"vecbind/internal/domain"
)

// VectorizeIndex is the genuine host binding for a vector index.
// Requests and responses are dynamic values; the typed view lives in
// the binding package.
type VectorizeIndex interface {
	// Describe reports the current state of the index.
	Describe(ctx context.Context) (any, error)

	// Insert submits vectors, leaving existing ids untouched.
	// Returns an object carrying a mutationId.
	Insert(ctx context.Context, vectors []any) (any, error)

	// Upsert submits vectors, replacing existing ids.
	Upsert(ctx context.Context, vectors []any) (any, error)
}

// Host is a VectorizeIndex that holds resources.
type Host interface {
	VectorizeIndex

	Close() error
}

// VectorWriter is the typed write side of a binding.
type VectorWriter interface {
	Insert(ctx context.Context, vectors []domain.Vector) (domain.Mutation, error)
	Upsert(ctx context.Context, vectors []domain.Vector) (domain.Mutation, error)
}
