package memstore

import (
	"context"
	"sync"
	"time"

	"vecbind/internal/adapter/record"
	"vecbind/internal/domain"
)

// MemoryIndex is an in-memory index host. Writes are applied immediately.
type MemoryIndex struct {
	mu      sync.RWMutex
	info    record.IndexInfo
	vectors map[string]domain.Vector
	last    *record.Mutation
	now     func() time.Time
}

func NewMemoryIndex(info record.IndexInfo) *MemoryIndex {
	return &MemoryIndex{
		info:    info,
		vectors: make(map[string]domain.Vector),
		now:     time.Now,
	}
}

func (s *MemoryIndex) Describe(ctx context.Context) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return record.Describe(s.info, len(s.vectors), s.last), nil
}

func (s *MemoryIndex) Insert(ctx context.Context, vectors []any) (any, error) {
	return s.write(ctx, "insert", vectors, false)
}

func (s *MemoryIndex) Upsert(ctx context.Context, vectors []any) (any, error) {
	return s.write(ctx, "upsert", vectors, true)
}

func (s *MemoryIndex) write(ctx context.Context, op string, records []any, replace bool) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vectors, err := record.DecodeVectors(records, s.info.Dimensions)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, vec := range vectors {
		if _, exists := s.vectors[vec.ID]; exists && !replace {
			continue
		}
		s.vectors[vec.ID] = vec
	}

	mutation := record.NewMutation(op, len(vectors), s.now())
	s.last = &mutation

	return mutation.Response(), nil
}

// Get returns a stored vector.
func (s *MemoryIndex) Get(id string) (domain.Vector, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vec, ok := s.vectors[id]
	return vec, ok
}

func (s *MemoryIndex) Close() error {
	return nil
}
