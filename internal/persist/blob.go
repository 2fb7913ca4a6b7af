// Package persist implements the content-addressed persister handlers
// subscribed to the command bus: blob persistence with digest
// verification, manifest persistence plus tag→digest indexing, and the
// optional blob mirror to secondary object storage.
package persist

import (
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"log/slog"

	"github.com/re-cinq/registry-cache/internal/bus"
	"github.com/re-cinq/registry-cache/internal/registryref"
	"github.com/re-cinq/registry-cache/internal/store"
)

// Blob subscribes to bus.TopicPersistBlob. It is the sole correctness gate
// against upstream corruption: bytes are written to a temp file, hashed,
// and only promoted to the content-addressed store when the computed
// digest matches the one the request named.
type Blob struct {
	Store *store.FS
	Bus   *bus.Bus // optional; when set, a successful persist republishes bus.MirrorBlob
	Log   *slog.Logger
}

// SupportsConcurrency is true: the worker may run one goroutine per
// command. Correctness is preserved because commands for the same digest
// already land on the same shard (same worker), and the filesystem rename
// that commits a blob is atomic, so concurrent writers of identical bytes
// race harmlessly.
func (b *Blob) SupportsConcurrency() bool { return true }

func (b *Blob) Run(ctx context.Context, cmd bus.Command) error {
	pb, ok := cmd.(bus.PersistBlob)
	if !ok {
		return fmt.Errorf("persist: blob handler received unexpected command type %T", cmd)
	}
	return b.persist(pb.Repo, pb.Chunks)
}

// persist implements the algorithm shared by blob persistence and (via the
// manifest handler) manifest-body persistence: both store their payload
// under a content-addressed path the same way.
func (b *Blob) persist(repo registryref.Repository, chunks <-chan bus.Chunk) error {
	if repo.Digest == nil {
		b.Log.Warn("dropping persist command for repository without a digest", "name", repo.Name)
		return nil
	}

	f, err := b.Store.Persist(repo)
	if err != nil {
		return fmt.Errorf("persist: opening temp file: %w", err)
	}

	for chunk := range chunks {
		if _, err := f.Write(chunk); err != nil {
			b.Log.Warn("blob write failed, aborting persist", "name", repo.Name, "error", err)
			f.Close()
			b.Store.Discard(repo)
			return fmt.Errorf("persist: write: %w", err)
		}
	}

	if err := f.Sync(); err != nil {
		f.Close()
		b.Store.Discard(repo)
		return fmt.Errorf("persist: fsync: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		b.Store.Discard(repo)
		return fmt.Errorf("persist: rewind: %w", err)
	}

	h := newHasher(repo.Digest.Algorithm)
	if _, err := io.Copy(h, f); err != nil {
		f.Close()
		b.Store.Discard(repo)
		return fmt.Errorf("persist: hashing: %w", err)
	}
	f.Close()

	computed := hex.EncodeToString(h.Sum(nil))
	if computed != repo.Digest.Hash {
		b.Log.Warn("digest mismatch, discarding blob", "name", repo.Name, "expected", repo.Digest.Hash, "computed", computed)
		b.Store.Discard(repo)
		return nil
	}

	if err := b.Store.Commit(repo); err != nil {
		return fmt.Errorf("persist: commit: %w", err)
	}
	b.Log.Info("blob persisted", "name", repo.Name, "digest", repo.Digest.String())

	if b.Bus != nil {
		b.Bus.Publish(bus.MirrorBlob{Repo: repo})
	}
	return nil
}

func newHasher(algo registryref.Algorithm) hash.Hash {
	if algo == registryref.SHA512 {
		return sha512.New()
	}
	return sha256.New()
}
