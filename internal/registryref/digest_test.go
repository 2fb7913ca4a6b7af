package registryref

import (
	"strings"
	"testing"
)

func TestParseDigestRoundTrip(t *testing.T) {
	cases := []Digest{
		{Algorithm: SHA256, Hash: strings.Repeat("a", 64)},
		{Algorithm: SHA512, Hash: strings.Repeat("b", 128)},
	}
	for _, d := range cases {
		got, err := ParseDigest(d.String())
		if err != nil {
			t.Fatalf("ParseDigest(%q) error: %v", d.String(), err)
		}
		if !got.Equal(d) {
			t.Fatalf("round-trip mismatch: got %+v, want %+v", got, d)
		}
	}
}

func TestParseDigestInvalid(t *testing.T) {
	cases := []string{
		"",
		"sha256",
		"sha256:",
		":abc",
		"sha256:nothex$$",
		"sha256:abc", // too short for sha256
		"md5:" + string(make([]byte, 32)),
		"sha256:ABCZ1234567890123456789012345678901234567890123456789012345678",
	}
	for _, s := range cases {
		if _, err := ParseDigest(s); err == nil {
			t.Errorf("ParseDigest(%q) expected error, got none", s)
		}
	}
}

func TestParseDigestCaseInsensitiveAlgorithm(t *testing.T) {
	hex := strings.Repeat("a", 64)
	d, err := ParseDigest("SHA256:" + hex)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Algorithm != SHA256 {
		t.Fatalf("expected algorithm to normalize to sha256, got %s", d.Algorithm)
	}
}

func TestDigestLess(t *testing.T) {
	a := Digest{Algorithm: SHA256, Hash: strings.Repeat("0", 64)}
	b := Digest{Algorithm: SHA256, Hash: strings.Repeat("f", 64)}
	if !a.Less(b) {
		t.Fatalf("expected %s < %s", a, b)
	}
}
