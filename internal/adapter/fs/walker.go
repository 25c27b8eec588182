package fs

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"vecbind/internal/domain"
	"vecbind/internal/port"
)

type Walker struct {
	includes []string
	excludes []string
}

func NewWalker(includes, excludes []string) *Walker {
	if len(includes) == 0 {
		includes = []string{"**/*.json", "**/*.jsonl", "**/*.ndjson"}
	}
	return &Walker{
		includes: includes,
		excludes: excludes,
	}
}

// Walk returns the vector files under root, sorted by path. A root naming a
// single file is returned as is.
func (w *Walker) Walk(root string) ([]port.FileInfo, error) {
	var files []port.FileInfo

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !stat.IsDir() {
		return []port.FileInfo{{Path: root, ModTime: stat.ModTime().Unix(), Size: stat.Size()}}, nil
	}

	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)

		if info.IsDir() {
			if relPath != "." && w.shouldExclude(relPath+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if IsVectorFile(path) && w.shouldInclude(relPath) && !w.shouldExclude(relPath) {
			files = append(files, port.FileInfo{
				Path:    path,
				ModTime: info.ModTime().Unix(),
				Size:    info.Size(),
			})
		}

		return nil
	})

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	return files, err
}

// Glob expands a doublestar pattern relative to the working directory.
func (w *Walker) Glob(pattern string) ([]port.FileInfo, error) {
	matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, err
	}

	files := make([]port.FileInfo, 0, len(matches))
	for _, path := range matches {
		if !IsVectorFile(path) || w.shouldExclude(filepath.ToSlash(path)) {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		files = append(files, port.FileInfo{Path: path, ModTime: info.ModTime().Unix(), Size: info.Size()})
	}

	return files, nil
}

func (w *Walker) shouldInclude(path string) bool {
	for _, pattern := range w.includes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}

func (w *Walker) shouldExclude(path string) bool {
	for _, pattern := range w.excludes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}

// IsVectorFile reports whether path has a supported vector file extension.
func IsVectorFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonl", ".ndjson":
		return true
	}
	return false
}

// ReadVectors loads the vectors of one file. .json files hold an array of
// vectors; .jsonl and .ndjson files hold one vector per line.
func ReadVectors(path string) ([]domain.Vector, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if strings.ToLower(filepath.Ext(path)) == ".json" {
		var vectors []domain.Vector
		if err := json.Unmarshal(data, &vectors); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return vectors, nil
	}

	var vectors []domain.Vector

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 64*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}

		var vec domain.Vector
		if err := json.Unmarshal(text, &vec); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		vectors = append(vectors, vec)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return vectors, nil
}
