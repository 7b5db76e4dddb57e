package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"
)

// Store defines the interface for file content backends. The store is
// dumb bytes: expiration and ownership decisions belong to the share
// registry and sweeper.
type Store interface {
	Save(name string, data io.Reader) (ref string, written int64, err error)
	Open(ref string) (io.ReadSeekCloser, error)
	Path(ref string) (string, error)
	Delete(ref string) error
	EnsureDir() error
}

// FileSystemStore keeps uploaded content as flat files under one
// directory. Refs are bare filenames, never paths.
type FileSystemStore struct {
	basePath string
	seq      atomic.Uint64
}

// NewFileSystemStore creates a new filesystem content backend.
func NewFileSystemStore(basePath string) *FileSystemStore {
	return &FileSystemStore{basePath: basePath}
}

// EnsureDir creates the storage directory if it doesn't exist.
func (fs *FileSystemStore) EnsureDir() error {
	if err := os.MkdirAll(fs.basePath, 0755); err != nil {
		return fmt.Errorf("failed to create storage directory %s: %w", fs.basePath, err)
	}
	return nil
}

// Save streams data to a new file named
// {unix-millis}-{seq}-{sanitized name} and returns its ref and byte
// count. A partially written file is removed on copy failure.
func (fs *FileSystemStore) Save(name string, data io.Reader) (string, int64, error) {
	ref := fmt.Sprintf("%d-%d-%s", time.Now().UnixMilli(), fs.seq.Add(1), SanitizeName(name))
	filePath := filepath.Join(fs.basePath, ref)

	file, err := os.Create(filePath)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create file %s: %w", filePath, err)
	}

	n, err := io.Copy(file, data)
	if err != nil {
		file.Close()
		os.Remove(filePath)
		return "", 0, fmt.Errorf("failed to write file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(filePath)
		return "", 0, fmt.Errorf("failed to close file: %w", err)
	}

	return ref, n, nil
}

// Open returns a reader over a stored file, positioned at the start.
func (fs *FileSystemStore) Open(ref string) (io.ReadSeekCloser, error) {
	path, err := fs.Path(ref)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open content %s: %w", ref, err)
	}
	return f, nil
}

// Path resolves a ref to its absolute location, rejecting anything
// that would escape the base directory.
func (fs *FileSystemStore) Path(ref string) (string, error) {
	if ref == "" || ref != filepath.Base(ref) || strings.ContainsAny(ref, `/\`) {
		return "", fmt.Errorf("invalid content ref %q", ref)
	}
	return filepath.Join(fs.basePath, ref), nil
}

// Delete removes the stored content. Deleting an absent ref is not an
// error.
func (fs *FileSystemStore) Delete(ref string) error {
	path, err := fs.Path(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file %s: %w", path, err)
	}
	return nil
}

// SanitizeName strips directory components from a client-supplied
// filename and bounds its length. It is the single sanitizer for both
// disk refs and client-visible names, so the two can never drift.
func SanitizeName(name string) string {
	const maxLen = 200

	// Normalize Windows-style backslashes before filepath.Base, which
	// is platform-specific.
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)

	if len(name) > maxLen {
		ext := filepath.Ext(name)
		if len(ext) >= maxLen {
			// The extension alone blows the cap; keep the head of the
			// name rather than slicing with a negative bound.
			name = name[:maxLen]
		} else {
			name = name[:maxLen-len(ext)] + ext
		}
	}

	if name == "" || name == "." || name == "/" {
		name = "upload"
	}

	return name
}
