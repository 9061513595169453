package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FileOperations provides file system utilities
type FileOperations struct{}

// NewFileOperations creates a new FileOperations instance
func NewFileOperations() *FileOperations {
	return &FileOperations{}
}

// EnsureDir creates the parent directory of path if it doesn't exist
func (f *FileOperations) EnsureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0755)
}

// FileExists checks if a file exists
func (f *FileOperations) FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// AtomicRename performs an atomic file rename operation
func (f *FileOperations) AtomicRename(oldPath, newPath string) error {
	return os.Rename(oldPath, newPath)
}

// SavePayload streams r into path through a "<path>.part" file that is renamed
// once the copy succeeds. An existing path is an error unless overwrite is set.
func (f *FileOperations) SavePayload(path string, r io.Reader, overwrite bool) (written int64, err error) {
	if !overwrite && f.FileExists(path) {
		return 0, fmt.Errorf("file already exists: %s", path)
	}

	if err := f.EnsureDir(path); err != nil {
		return 0, fmt.Errorf("failed to create output directory: %w", err)
	}

	partPath := path + ".part"
	file, err := os.OpenFile(partPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return 0, fmt.Errorf("failed to create partial file: %w", err)
	}
	defer func() {
		if err != nil {
			os.Remove(partPath)
		}
	}()

	written, err = io.Copy(file, r)
	if cerr := file.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		return written, fmt.Errorf("failed to write payload: %w", err)
	}

	if err = f.AtomicRename(partPath, path); err != nil {
		return written, fmt.Errorf("failed to finalize file: %w", err)
	}
	return written, nil
}

// UniquePath returns dir/name, or dir/"name (n).ext" for the first n that is free
func (f *FileOperations) UniquePath(dir, name string) string {
	name = SanitizeFilename(name)
	candidate := filepath.Join(dir, name)
	if !f.FileExists(candidate) {
		return candidate
	}

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for n := 1; ; n++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s (%d)%s", base, n, ext))
		if !f.FileExists(candidate) {
			return candidate
		}
	}
}

// SanitizeFilename strips path separators and control characters from a
// backend-supplied filename
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))

	var b strings.Builder
	for _, r := range name {
		switch {
		case r < 0x20 || r == 0x7f:
			continue
		case strings.ContainsRune(`<>:"|?*`, r):
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}

	cleaned := strings.TrimSpace(b.String())
	if cleaned == "" || cleaned == "." || cleaned == ".." || cleaned == "/" {
		return "download"
	}
	return cleaned
}
