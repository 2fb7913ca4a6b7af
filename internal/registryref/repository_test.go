package registryref

import (
	"errors"
	"testing"
)

func TestNewValidNames(t *testing.T) {
	names := []string{
		"library/nginx",
		"org/team/image",
		"simple",
		"has.dots_and-dashes/ok",
	}
	for _, name := range names {
		repo, err := New(name)
		if err != nil {
			t.Fatalf("New(%q) unexpected error: %v", name, err)
		}
		joined := ""
		for i, c := range repo.Components {
			if i > 0 {
				joined += "/"
			}
			joined += c
		}
		if joined != name {
			t.Errorf("components join mismatch: got %q, want %q", joined, name)
		}
	}
}

func TestNewRejectsOverlongName(t *testing.T) {
	long := make([]byte, 256)
	for i := range long {
		long[i] = 'a'
	}
	_, err := New(string(long))
	if err == nil {
		t.Fatal("expected RegistryNameInvalid for name exceeding 255 characters")
	}
	if !errors.Is(err, ErrNameInvalid) {
		t.Fatalf("got %v, want an error wrapping ErrNameInvalid", err)
	}
}

func TestNewRejectsMalformedComponent(t *testing.T) {
	_, err := New(" leadingspace")
	if !errors.Is(err, ErrNameInvalid) {
		t.Fatalf("got %v, want an error wrapping ErrNameInvalid", err)
	}
}

func TestNewWithReferenceMalformedTagWrapsDigestInvalid(t *testing.T) {
	// A malformed tag (not a recognized digest, and failing the component
	// grammar) surfaces as ErrDigestInvalid, not a separate tag-invalid
	// sentinel — matching the original implementation's RegistryDigestInvalid
	// for this case.
	_, err := NewWithReference("library/nginx", " not-a-valid-tag")
	if !errors.Is(err, ErrDigestInvalid) {
		t.Fatalf("got %v, want an error wrapping ErrDigestInvalid", err)
	}
	if errors.Is(err, ErrNameInvalid) {
		t.Fatalf("got %v, should not wrap ErrNameInvalid", err)
	}
}

// TestComponentPrefixMatch documents the unanchored-prefix matching
// semantics inherited from the original implementation: a component is
// accepted if the grammar matches a leading run of characters, even when
// trailing characters (here, an embedded space) don't themselves match.
func TestComponentPrefixMatch(t *testing.T) {
	if !validComponent("test rust") {
		t.Fatal("expected a component with a valid leading prefix to be accepted")
	}
	if validComponent(" leadingspace") {
		t.Fatal("a component that fails to match from position 0 must be rejected")
	}
}

func TestNewWithReferenceDigest(t *testing.T) {
	hex := "0123456789012345678901234567890123456789012345678901234567890abc"
	repo, err := NewWithReference("library/nginx", "sha256:"+hex)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.Digest == nil {
		t.Fatal("expected digest to be parsed")
	}
	if repo.Digest.Hash != hex {
		t.Errorf("got hash %q, want %q", repo.Digest.Hash, hex)
	}
}

func TestNewWithReferenceTag(t *testing.T) {
	repo, err := NewWithReference("library/nginx", "1.25-alpine")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.Digest != nil {
		t.Fatal("expected a plain tag to not be parsed as a digest")
	}
	if repo.Reference != "1.25-alpine" {
		t.Errorf("got reference %q", repo.Reference)
	}
}

func TestNewWithReferenceMalformedDigest(t *testing.T) {
	_, err := NewWithReference("library/nginx", "sha256:notactuallyhex")
	if !errors.Is(err, ErrDigestInvalid) {
		t.Fatalf("got %v, want an error wrapping ErrDigestInvalid", err)
	}
}

func TestWithDigestSynthesizesRepository(t *testing.T) {
	repo, err := New("library/alpine")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d := Digest{Algorithm: SHA256, Hash: "0123456789012345678901234567890123456789012345678901234567890a"}
	synth := repo.WithDigest(d)
	if synth.Reference != d.String() {
		t.Errorf("got reference %q, want %q", synth.Reference, d.String())
	}
	if !synth.IsDigestReference() {
		t.Fatal("expected synthesized repository to carry a digest reference")
	}
}
