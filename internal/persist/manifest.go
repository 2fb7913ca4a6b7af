package persist

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/re-cinq/registry-cache/internal/bus"
	"github.com/re-cinq/registry-cache/internal/manifestindex"
	"github.com/re-cinq/registry-cache/internal/store"
)

// Manifest subscribes to bus.TopicPersistManifest. A manifest's body is
// content-addressed and stored exactly like a blob; on top of that it
// keeps a tag→digest index entry so a later upstream outage can still
// serve the manifest by looking up its last-known digest.
type Manifest struct {
	Blob  *Blob
	Store *store.FS
	Index *manifestindex.Index
	Log   *slog.Logger
}

func (m *Manifest) SupportsConcurrency() bool { return true }

func (m *Manifest) Run(ctx context.Context, cmd bus.Command) error {
	pm, ok := cmd.(bus.PersistManifest)
	if !ok {
		return fmt.Errorf("persist: manifest handler received unexpected command type %T", cmd)
	}
	return m.persist(ctx, pm)
}

func (m *Manifest) persist(ctx context.Context, cmd bus.PersistManifest) error {
	if cmd.Digest == nil {
		m.Log.Warn("dropping manifest persist: upstream supplied no digest", "name", cmd.Repo.Name)
		return nil
	}

	synthetic := cmd.Repo.WithDigest(*cmd.Digest)
	if err := m.Blob.persist(synthetic, cmd.Chunks); err != nil {
		return err
	}

	// persist() swallows a digest mismatch as a logged no-op (no commit);
	// check the final path landed before indexing it.
	if _, err := m.Store.Stat(synthetic); err != nil {
		return nil
	}

	if err := m.Index.Upsert(ctx, cmd.Repo.Name, cmd.Repo.Reference, *cmd.Digest, cmd.Size, cmd.Mime); err != nil {
		m.Log.Warn("manifest index upsert failed; blob is kept, index repairs on next fetch", "name", cmd.Repo.Name, "error", err)
		return nil
	}
	return nil
}
