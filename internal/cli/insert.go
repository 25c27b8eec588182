package cli

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"vecbind/internal/adapter/fs"
	"vecbind/internal/usecase"
)

var (
	insertUpsert      bool
	insertBatchSize   int
	insertConcurrency int
	insertQuiet       bool
)

var insertCmd = &cobra.Command{
	Use:   "insert <binding> <path>...",
	Short: "Insert vector files into a bound index",
	Long: `Load vectors from .json (array), .jsonl or .ndjson files and submit them to
the named binding in batches. Paths may be files, directories or doublestar
globs. Every accepted batch prints its mutation id.

Examples:
  vecbind insert VECTORIZE vectors.jsonl
  vecbind insert VECTORIZE ./data --batch-size 500
  vecbind insert VECTORIZE 'exports/**/*.ndjson' --upsert`,
	Args: cobra.MinimumNArgs(2),
	RunE: runInsert,
}

func init() {
	insertCmd.Flags().BoolVar(&insertUpsert, "upsert", false, "replace vectors whose ids already exist")
	insertCmd.Flags().IntVar(&insertBatchSize, "batch-size", 0, "vectors per write (default from config)")
	insertCmd.Flags().IntVar(&insertConcurrency, "concurrency", 0, "writes in flight (default from config)")
	insertCmd.Flags().BoolVarP(&insertQuiet, "quiet", "q", false, "do not show progress")
	rootCmd.AddCommand(insertCmd)
}

func runInsert(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	v, err := e.Vectorize(args[0])
	if err != nil {
		return err
	}

	batchSize := cfg.Insert.BatchSize
	if insertBatchSize > 0 {
		batchSize = insertBatchSize
	}
	concurrency := cfg.Insert.Concurrency
	if insertConcurrency > 0 {
		concurrency = insertConcurrency
	}

	paths := make([]string, 0, len(args)-1)
	for _, p := range args[1:] {
		if !filepath.IsAbs(p) {
			p = filepath.Join(GetRootDir(), p)
		}
		paths = append(paths, p)
	}

	walker := fs.NewWalker(cfg.Insert.Includes, cfg.Insert.Excludes)
	ingestUC := usecase.NewIngestUseCase(v, walker, batchSize, concurrency, logger.WithField("binding", args[0]))

	vectors, files, err := ingestUC.Collect(paths)
	if err != nil {
		return err
	}
	if len(vectors) == 0 {
		fmt.Println("No vectors found.")
		return nil
	}

	fmt.Printf("Loaded %d vectors from %d files\n", len(vectors), files)

	var bar *progressbar.ProgressBar
	var barMu sync.Mutex

	if !insertQuiet {
		bar = progressbar.NewOptions(len(vectors),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowBytes(false),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetDescription("[cyan]Inserting[reset]"),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]=[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
			progressbar.OptionOnCompletion(func() {
				fmt.Println()
			}),
		)
	}

	ingestUC.WithCallContext(e.CallContext)

	start := time.Now()
	result, err := ingestUC.Submit(cmd.Context(), vectors, usecase.IngestOptions{
		Upsert: insertUpsert,
		Progress: func(done, total int) {
			if bar == nil {
				return
			}
			barMu.Lock()
			defer barMu.Unlock()
			bar.Set(done)
		},
	})
	if err != nil {
		return fmt.Errorf("insert failed: %w", err)
	}

	op := "insert"
	if insertUpsert {
		op = "upsert"
	}

	fmt.Printf("\nSubmitted %d vectors in %d batches (%s, %s):\n", result.Vectors, result.Batches, op, formatDuration(time.Since(start)))
	for i, m := range result.Mutations {
		fmt.Printf("  batch %d: mutation %s\n", i, m.MutationID)
	}
	return nil
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}
