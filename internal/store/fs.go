// Package store implements the content-addressed blob tree the persister
// writes into and the streaming cache pipeline reads from.
package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/re-cinq/registry-cache/internal/registryref"
)

// FS is the content-addressed on-disk blob tree rooted at Root. Layout:
//
//	ROOT/<algo>/<hex>      committed blob
//	ROOT/<algo>/<hex>_tmp  in-flight write, never served
//
// FS holds no locks: two concurrent persisters writing the same digest each
// open their own "_tmp" path and the last rename wins, which is safe
// because matching digests imply matching bytes.
type FS struct {
	Root string
}

func NewFS(root string) *FS {
	return &FS{Root: root}
}

// Init ensures the root directory exists.
func (f *FS) Init() error {
	return os.MkdirAll(f.Root, 0o755)
}

// BlobPath returns the final, content-addressed path for repo. repo.Digest
// must be present — this is a precondition, not a recoverable error,
// because callers always resolve a digest before addressing storage.
func (f *FS) BlobPath(repo registryref.Repository) string {
	if repo.Digest == nil {
		panic("store: BlobPath called without a digest reference")
	}
	return filepath.Join(f.Root, string(repo.Digest.Algorithm), repo.Digest.Hash)
}

// BlobPathTmp returns the in-flight write path for repo.
func (f *FS) BlobPathTmp(repo registryref.Repository) string {
	return f.BlobPath(repo) + "_tmp"
}

// Read opens the committed blob for reading. Returns an *fs.PathError
// wrapped with a NotFound-flavored message when absent; each caller decides
// what absence means in its context (a cache miss for blob GET, a missing
// fallback for manifests, a skipped upload for the mirror).
func (f *FS) Read(repo registryref.Repository) (*os.File, error) {
	file, err := os.Open(f.BlobPath(repo))
	if err != nil {
		return nil, fmt.Errorf("store: blob not found: %w", err)
	}
	return file, nil
}

// Stat reports the committed blob's size without opening it for reading.
func (f *FS) Stat(repo registryref.Repository) (int64, error) {
	info, err := os.Stat(f.BlobPath(repo))
	if err != nil {
		return 0, fmt.Errorf("store: blob not found: %w", err)
	}
	return info.Size(), nil
}

// Persist opens the temp path for write, truncating any previous in-flight
// write, and ensures the algorithm subdirectory exists.
func (f *FS) Persist(repo registryref.Repository) (*os.File, error) {
	tmp := f.BlobPathTmp(repo)
	if err := os.MkdirAll(filepath.Dir(tmp), 0o755); err != nil {
		return nil, fmt.Errorf("store: creating algorithm directory: %w", err)
	}
	file, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("store: opening temp file: %w", err)
	}
	return file, nil
}

// Commit atomically renames the temp path onto the final path.
func (f *FS) Commit(repo registryref.Repository) error {
	return os.Rename(f.BlobPathTmp(repo), f.BlobPath(repo))
}

// Discard removes the temp path, best-effort. Called after a digest
// mismatch or a write failure; absence of the temp file is not an error.
func (f *FS) Discard(repo registryref.Repository) {
	_ = os.Remove(f.BlobPathTmp(repo))
}
