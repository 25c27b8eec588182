package port

// FileWalker finds vector files.
type FileWalker interface {
	// Walk returns the files under root, or root itself when it is a file.
	Walk(root string) ([]FileInfo, error)

	// Glob returns the files matching a doublestar pattern.
	Glob(pattern string) ([]FileInfo, error)
}

type FileInfo struct {
	Path    string
	ModTime int64
	Size    int64
}
