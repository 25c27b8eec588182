package usecase

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"vecbind/internal/adapter/fs"
	"vecbind/internal/domain"
	"vecbind/internal/port"
)

// IngestUseCase submits vector files to a binding in batches.
type IngestUseCase struct {
	writer      port.VectorWriter
	walker      port.FileWalker
	batchSize   int
	concurrency int
	callContext func(context.Context) (context.Context, context.CancelFunc)
	logger      logrus.FieldLogger
}

// NewIngestUseCase creates a new ingest use case.
func NewIngestUseCase(
	writer port.VectorWriter,
	walker port.FileWalker,
	batchSize int,
	concurrency int,
	logger logrus.FieldLogger,
) *IngestUseCase {
	if batchSize <= 0 {
		batchSize = 1000
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &IngestUseCase{
		writer:      writer,
		walker:      walker,
		batchSize:   batchSize,
		concurrency: concurrency,
		callContext: context.WithCancel,
		logger:      logger,
	}
}

// WithCallContext sets the context derivation applied to every single batch
// write, typically a per-call timeout. The run as a whole is bounded only by
// the context passed to Submit.
func (u *IngestUseCase) WithCallContext(fn func(context.Context) (context.Context, context.CancelFunc)) *IngestUseCase {
	if fn != nil {
		u.callContext = fn
	}
	return u
}

// IngestOptions tunes a single ingest run.
type IngestOptions struct {
	// Upsert replaces existing ids instead of keeping them.
	Upsert bool

	// Progress is called after each accepted batch with the number of
	// vectors submitted so far and the total. It may be called concurrently.
	Progress func(done, total int)
}

// IngestResult contains the results of an ingest run.
type IngestResult struct {
	Files     int
	Vectors   int
	Batches   int
	Mutations []domain.Mutation // in batch order
}

// Collect expands paths (files, directories or doublestar globs) into vector
// files and loads their vectors in order.
func (u *IngestUseCase) Collect(paths []string) ([]domain.Vector, int, error) {
	var (
		vectors []domain.Vector
		count   int
	)

	seen := make(map[string]bool)

	for _, p := range paths {
		var (
			files []port.FileInfo
			err   error
		)
		if isPattern(p) {
			files, err = u.walker.Glob(p)
		} else {
			files, err = u.walker.Walk(p)
		}
		if err != nil {
			return nil, 0, fmt.Errorf("failed to walk %s: %w", p, err)
		}

		for _, file := range files {
			if seen[file.Path] {
				continue
			}
			seen[file.Path] = true

			loaded, err := fs.ReadVectors(file.Path)
			if err != nil {
				return nil, 0, fmt.Errorf("failed to read vectors: %w", err)
			}

			u.logger.WithFields(logrus.Fields{
				"file":    file.Path,
				"vectors": len(loaded),
			}).Debug("vector file loaded")

			vectors = append(vectors, loaded...)
			count++
		}
	}

	return vectors, count, nil
}

// Ingest loads the vector files under paths and submits them.
func (u *IngestUseCase) Ingest(ctx context.Context, paths []string, opts IngestOptions) (*IngestResult, error) {
	vectors, files, err := u.Collect(paths)
	if err != nil {
		return nil, err
	}

	result, err := u.Submit(ctx, vectors, opts)
	if result != nil {
		result.Files = files
	}
	return result, err
}

// Submit splits vectors into batches and sends each batch as one write, with
// at most concurrency writes in flight. The first failure cancels the batches
// not yet sent.
func (u *IngestUseCase) Submit(ctx context.Context, vectors []domain.Vector, opts IngestOptions) (*IngestResult, error) {
	batches := Batch(vectors, u.batchSize)

	result := &IngestResult{
		Vectors:   len(vectors),
		Batches:   len(batches),
		Mutations: make([]domain.Mutation, len(batches)),
	}

	write := u.writer.Insert
	if opts.Upsert {
		write = u.writer.Upsert
	}

	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.concurrency)

	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			cctx, cancel := u.callContext(gctx)
			mutation, err := write(cctx, batch)
			cancel()
			if err != nil {
				return fmt.Errorf("batch %d: %w", i, err)
			}
			result.Mutations[i] = mutation

			n := done.Add(int64(len(batch)))
			u.logger.WithFields(logrus.Fields{
				"batch":      i,
				"vectors":    len(batch),
				"mutationId": mutation.MutationID,
			}).Debug("batch accepted")

			if opts.Progress != nil {
				opts.Progress(int(n), len(vectors))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return result, nil
}

// Batch splits vectors into consecutive slices of at most size elements.
func Batch(vectors []domain.Vector, size int) [][]domain.Vector {
	if size <= 0 {
		size = len(vectors)
	}

	var batches [][]domain.Vector
	for start := 0; start < len(vectors); start += size {
		end := min(start+size, len(vectors))
		batches = append(batches, vectors[start:end])
	}
	return batches
}

func isPattern(p string) bool {
	for _, r := range p {
		switch r {
		case '*', '?', '[', '{':
			return true
		}
	}
	return false
}
