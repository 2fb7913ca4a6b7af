package persist

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/re-cinq/registry-cache/internal/bus"
	"github.com/re-cinq/registry-cache/internal/manifestindex"
	"github.com/re-cinq/registry-cache/internal/registryref"
	"github.com/re-cinq/registry-cache/internal/store"
)

func newTestManifestPersister(t *testing.T) (*Manifest, *manifestindex.Index) {
	t.Helper()
	root := t.TempDir()
	fsStore := store.NewFS(root)
	if err := fsStore.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	idx, err := manifestindex.Open("file:"+filepath.Join(t.TempDir(), "m.db"), 4)
	if err != nil {
		t.Fatalf("Open index: %v", err)
	}
	t.Cleanup(func() { idx.Close() })

	blob := &Blob{Store: fsStore, Log: discardLogger()}
	return &Manifest{Blob: blob, Store: fsStore, Index: idx, Log: discardLogger()}, idx
}

func TestManifestPersistStoresBlobAndIndexes(t *testing.T) {
	m, idx := newTestManifestPersister(t)

	body := []byte(`{"schemaVersion":2}`)
	d := digestOf(body)
	repo, _ := registryref.NewWithReference("library/alpine", "3.19")

	cmd := bus.PersistManifest{
		Repo:   repo,
		Digest: &d,
		Size:   int64(len(body)),
		Mime:   "application/vnd.oci.image.manifest.v1+json",
		Chunks: chunksOf(body),
	}
	if err := m.Run(context.Background(), cmd); err != nil {
		t.Fatalf("Run: %v", err)
	}

	rec, err := idx.Get(context.Background(), "library/alpine", "3.19")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Reference != d.String() {
		t.Errorf("reference = %q, want %q", rec.Reference, d.String())
	}
	if rec.Size != int64(len(body)) {
		t.Errorf("size = %d, want %d", rec.Size, len(body))
	}

	synthetic := repo.WithDigest(d)
	f, err := m.Store.Read(synthetic)
	if err != nil {
		t.Fatalf("expected manifest body stored content-addressed: %v", err)
	}
	f.Close()
}

func TestManifestPersistSkipsIndexWithoutDigest(t *testing.T) {
	m, idx := newTestManifestPersister(t)
	repo, _ := registryref.NewWithReference("library/alpine", "latest")

	cmd := bus.PersistManifest{Repo: repo, Chunks: chunksOf([]byte("ignored"))}
	if err := m.Run(context.Background(), cmd); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, err := idx.Get(context.Background(), "library/alpine", "latest"); err != manifestindex.ErrNotFound {
		t.Fatalf("expected no index entry, got %v", err)
	}
}

func TestManifestPersistSkipsIndexOnDigestMismatch(t *testing.T) {
	m, idx := newTestManifestPersister(t)
	repo, _ := registryref.NewWithReference("library/alpine", "3.19")
	wrong := digestOf([]byte("not the real body"))

	cmd := bus.PersistManifest{
		Repo:   repo,
		Digest: &wrong,
		Size:   5,
		Mime:   "application/json",
		Chunks: chunksOf([]byte("actual body bytes")),
	}
	if err := m.Run(context.Background(), cmd); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, err := idx.Get(context.Background(), "library/alpine", "3.19"); err != manifestindex.ErrNotFound {
		t.Fatalf("expected no index entry on digest mismatch, got %v", err)
	}
}
