package registryref

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// maxNameLength is the longest repository name this implementation accepts.
const maxNameLength = 255

// ErrNameInvalid is wrapped by every error New/NewWithReference returns for
// a malformed repository name (too long, or a component that fails the
// grammar) — distinct from ErrDigestInvalid, which covers a malformed
// reference (tag or digest). Callers branch on these with errors.Is to
// pick the matching apierror.Kind, mirroring the original implementation's
// separate RegistryNameInvalid/RegistryDigestInvalid error kinds.
var ErrNameInvalid = errors.New("registry name invalid")

// componentRe matches a single repository path component. Matching is a
// PREFIX match, not a full-string match: a component is valid if the regex
// matches starting at offset 0, even if trailing characters remain
// unmatched. This mirrors the original Rust implementation, which used
// Regex::is_match (a substring search) rather than a fully-anchored match,
// and is confirmed by that implementation's own test suite accepting a
// component with embedded whitespace after a valid leading segment.
var componentRe = regexp.MustCompile(`^[a-z0-9]+(?:[._-][a-z0-9]+)*`)

// validComponent reports whether s has a valid component as a prefix.
func validComponent(s string) bool {
	loc := componentRe.FindStringIndex(s)
	return loc != nil && loc[0] == 0
}

// Repository is a parsed repository reference.
type Repository struct {
	Name       string
	Components []string
	Reference  string
	Digest     *Digest
}

// New parses a bare repository name with no reference.
func New(name string) (Repository, error) {
	return NewWithReference(name, "")
}

// NewWithReference parses a repository name together with a tag or digest
// reference. If reference contains ':' and begins with a recognized
// algorithm name it is parsed as a digest; otherwise it is validated as a
// tag against the same component grammar used for name components.
func NewWithReference(name, reference string) (Repository, error) {
	if len(name) > maxNameLength {
		return Repository{}, fmt.Errorf("%w: %q exceeds %d characters", ErrNameInvalid, name, maxNameLength)
	}
	components := strings.Split(name, "/")
	for _, c := range components {
		if !validComponent(c) {
			return Repository{}, fmt.Errorf("%w: component %q does not match the repository grammar", ErrNameInvalid, c)
		}
	}

	repo := Repository{
		Name:       name,
		Components: components,
		Reference:  reference,
	}

	if reference == "" {
		return repo, nil
	}

	if looksLikeDigest(reference) {
		d, err := ParseDigest(reference)
		if err != nil {
			return Repository{}, fmt.Errorf("registry reference invalid: %w", err)
		}
		repo.Digest = &d
		return repo, nil
	}

	if !validComponent(reference) {
		// A non-digest reference that fails the tag grammar still surfaces
		// as ErrDigestInvalid, not a separate tag-invalid sentinel: this
		// mirrors the original implementation, which reports
		// RegistryDigestInvalid for a malformed tag rather than
		// RegistryTagInvalid.
		return Repository{}, fmt.Errorf("%w: tag %q does not match the repository grammar", ErrDigestInvalid, reference)
	}
	return repo, nil
}

// WithDigest returns a synthetic copy of repo addressed at digest: Name and
// Components are kept, Reference becomes the digest's string form, and
// Digest is set. Used to persist manifest bytes under the same
// content-addressed path as a blob.
func (r Repository) WithDigest(d Digest) Repository {
	return Repository{
		Name:       r.Name,
		Components: r.Components,
		Reference:  d.String(),
		Digest:     &d,
	}
}

// IsDigestReference reports whether the repository's reference was parsed
// as a digest (as opposed to a tag, or no reference at all).
func (r Repository) IsDigestReference() bool {
	return r.Digest != nil
}
