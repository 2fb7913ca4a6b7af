package manifestindex

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/re-cinq/registry-cache/internal/registryref"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "manifests.db")
	idx, err := Open(dsn, 4)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func testDigest() registryref.Digest {
	return registryref.Digest{Algorithm: registryref.SHA256, Hash: "0123456789012345678901234567890123456789012345678901234567890abc"}
}

func TestUpsertThenGet(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()
	d := testDigest()

	if err := idx.Upsert(ctx, "library/alpine", "3.19", d, 1234, "application/vnd.oci.image.manifest.v1+json"); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	rec, err := idx.Get(ctx, "library/alpine", "3.19")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Reference != d.String() {
		t.Errorf("reference = %q, want %q", rec.Reference, d.String())
	}
	if rec.Size != 1234 {
		t.Errorf("size = %d, want 1234", rec.Size)
	}
	got, ok := rec.Digest()
	if !ok || !got.Equal(d) {
		t.Errorf("Digest() = %v, %v, want %v, true", got, ok, d)
	}
}

func TestUpsertRefreshesAllColumns(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()
	d1 := testDigest()
	d2 := registryref.Digest{Algorithm: registryref.SHA256, Hash: strings.Repeat("1", 64)}

	if err := idx.Upsert(ctx, "library/alpine", "latest", d1, 100, "application/vnd.oci.image.manifest.v1+json"); err != nil {
		t.Fatalf("Upsert 1: %v", err)
	}
	if err := idx.Upsert(ctx, "library/alpine", "latest", d2, 200, "application/vnd.docker.distribution.manifest.v2+json"); err != nil {
		t.Fatalf("Upsert 2: %v", err)
	}

	rec, err := idx.Get(ctx, "library/alpine", "latest")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Reference != d2.String() {
		t.Errorf("reference not refreshed: got %q, want %q", rec.Reference, d2.String())
	}
	if rec.Size != 200 {
		t.Errorf("size not refreshed: got %d, want 200", rec.Size)
	}
	if rec.Mime != "application/vnd.docker.distribution.manifest.v2+json" {
		t.Errorf("mime not refreshed: got %q", rec.Mime)
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	idx := openTestIndex(t)
	if _, err := idx.Get(context.Background(), "no/such", "tag"); err != ErrNotFound {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}
