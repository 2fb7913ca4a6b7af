package store

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/re-cinq/registry-cache/internal/registryref"
)

func testRepo(t *testing.T) registryref.Repository {
	t.Helper()
	d := registryref.Digest{Algorithm: registryref.SHA256, Hash: "0123456789012345678901234567890123456789012345678901234567890a"}
	repo, err := registryref.New("library/nginx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return repo.WithDigest(d)
}

func TestPersistThenCommit(t *testing.T) {
	root := t.TempDir()
	fsStore := NewFS(root)
	if err := fsStore.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	repo := testRepo(t)

	tmp, err := fsStore.Persist(repo)
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if _, err := tmp.WriteString("hello"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := tmp.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if _, err := os.Stat(fsStore.BlobPathTmp(repo)); err != nil {
		t.Fatalf("expected tmp file to exist before commit: %v", err)
	}

	if err := fsStore.Commit(repo); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if _, err := os.Stat(fsStore.BlobPathTmp(repo)); !os.IsNotExist(err) {
		t.Fatalf("expected tmp file to be gone after commit, stat err = %v", err)
	}

	f, err := fsStore.Read(repo)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("got %q, want %q", data, "hello")
	}

	wantPath := filepath.Join(root, "sha256", repo.Digest.Hash)
	if fsStore.BlobPath(repo) != wantPath {
		t.Errorf("BlobPath = %q, want %q", fsStore.BlobPath(repo), wantPath)
	}
}

func TestDiscardRemovesTmpOnly(t *testing.T) {
	root := t.TempDir()
	fsStore := NewFS(root)
	_ = fsStore.Init()
	repo := testRepo(t)

	tmp, err := fsStore.Persist(repo)
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}
	tmp.Close()

	fsStore.Discard(repo)

	if _, err := os.Stat(fsStore.BlobPathTmp(repo)); !os.IsNotExist(err) {
		t.Fatalf("expected tmp file removed, stat err = %v", err)
	}
	if _, err := os.Stat(fsStore.BlobPath(repo)); !os.IsNotExist(err) {
		t.Fatalf("expected final path to never have been created")
	}
}

func TestReadMissingBlobIsError(t *testing.T) {
	root := t.TempDir()
	fsStore := NewFS(root)
	_ = fsStore.Init()
	repo := testRepo(t)

	if _, err := fsStore.Read(repo); err == nil {
		t.Fatal("expected error reading a blob that was never persisted")
	}
}
