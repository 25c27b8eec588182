package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"vecbind/internal/adapter/record"
	"vecbind/internal/domain"
)

var (
	bucketMeta      = []byte("meta")
	bucketVectors   = []byte("vectors")
	bucketMutations = []byte("mutations")
)

// BoltIndex is an index host persisted in a bbolt file. It stores vectors
// and the log of accepted writes; it does not search.
type BoltIndex struct {
	db   *bbolt.DB
	info record.IndexInfo
	now  func() time.Time
}

func NewBoltIndex(path string, info record.IndexInfo) (*BoltIndex, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketMeta, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltIndex{db: db, info: info, now: time.Now}, nil
}

// Info returns the configured index description.
func (s *BoltIndex) Info() record.IndexInfo {
	return s.info
}

type storedVector struct {
	Values    []float64 `json:"v"`
	Metadata  any       `json:"m,omitempty"`
	Namespace *string   `json:"ns,omitempty"`
}

func (s *BoltIndex) Describe(ctx context.Context) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		count int
		last  *record.Mutation
	)

	err := s.db.View(func(tx *bbolt.Tx) error {
		vectors := tx.Bucket(bucketVectors)
		if vectors == nil {
			return fmt.Errorf("vectors bucket not found")
		}
		count = vectors.Stats().KeyN

		mutations := tx.Bucket(bucketMutations)
		if mutations == nil {
			return fmt.Errorf("mutations bucket not found")
		}

		_, data := mutations.Cursor().Last()
		if data == nil {
			return nil
		}

		var m record.Mutation
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		last = &m

		return nil
	})
	if err != nil {
		return nil, err
	}

	return record.Describe(s.info, count, last), nil
}

func (s *BoltIndex) Insert(ctx context.Context, vectors []any) (any, error) {
	return s.write(ctx, "insert", vectors, false)
}

func (s *BoltIndex) Upsert(ctx context.Context, vectors []any) (any, error) {
	return s.write(ctx, "upsert", vectors, true)
}

func (s *BoltIndex) write(ctx context.Context, op string, records []any, replace bool) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vectors, err := record.DecodeVectors(records, s.info.Dimensions)
	if err != nil {
		return nil, err
	}

	mutation := record.NewMutation(op, len(vectors), s.now())

	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		if b == nil {
			return fmt.Errorf("vectors bucket not found")
		}

		for _, vec := range vectors {
			if !replace && b.Get([]byte(vec.ID)) != nil {
				continue
			}

			data, err := json.Marshal(storedVector{
				Values:    vec.Values,
				Metadata:  vec.Metadata,
				Namespace: vec.Namespace,
			})
			if err != nil {
				return err
			}

			if err := b.Put([]byte(vec.ID), data); err != nil {
				return err
			}
		}

		return appendMutation(tx, mutation)
	})
	if err != nil {
		return nil, err
	}

	return mutation.Response(), nil
}

func appendMutation(tx *bbolt.Tx, m record.Mutation) error {
	b := tx.Bucket(bucketMutations)
	if b == nil {
		return fmt.Errorf("mutations bucket not found")
	}

	seq, err := b.NextSequence()
	if err != nil {
		return err
	}

	data, err := json.Marshal(m)
	if err != nil {
		return err
	}

	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)

	return b.Put(key, data)
}

// GetVector returns a stored vector.
func (s *BoltIndex) GetVector(id string) (domain.Vector, error) {
	var vec domain.Vector
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		if b == nil {
			return fmt.Errorf("vector not found: %s", id)
		}
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("vector not found: %s", id)
		}
		var stored storedVector
		if err := json.Unmarshal(data, &stored); err != nil {
			return err
		}
		vec = domain.Vector{
			ID:        id,
			Values:    stored.Values,
			Metadata:  stored.Metadata,
			Namespace: stored.Namespace,
		}
		return nil
	})
	return vec, err
}

// ListMutations returns the accepted writes, oldest first.
func (s *BoltIndex) ListMutations() ([]record.Mutation, error) {
	var mutations []record.Mutation
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMutations)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var m record.Mutation
			if err := json.Unmarshal(v, &m); err != nil {
				return err
			}
			mutations = append(mutations, m)
			return nil
		})
	})
	return mutations, err
}

func (s *BoltIndex) Close() error {
	return s.db.Close()
}
