package persist

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/re-cinq/registry-cache/internal/bus"
	"github.com/re-cinq/registry-cache/internal/store"
)

// Mirror subscribes to bus.TopicMirrorBlob. It is best-effort: a failure
// here never affects the primary cache's correctness or availability.
type Mirror struct {
	Store  *store.FS
	Mirror *store.Mirror
	Log    *slog.Logger
}

func (m *Mirror) SupportsConcurrency() bool { return true }

func (m *Mirror) Run(ctx context.Context, cmd bus.Command) error {
	mb, ok := cmd.(bus.MirrorBlob)
	if !ok {
		return fmt.Errorf("persist: mirror handler received unexpected command type %T", cmd)
	}

	f, err := m.Store.Read(mb.Repo)
	if err != nil {
		m.Log.Warn("mirror: committed blob missing, skipping", "name", mb.Repo.Name, "error", err)
		return nil
	}
	defer f.Close()

	size, err := m.Store.Stat(mb.Repo)
	if err != nil {
		m.Log.Warn("mirror: could not stat committed blob, skipping", "name", mb.Repo.Name, "error", err)
		return nil
	}

	if err := m.Mirror.Upload(ctx, mb.Repo, f, size); err != nil {
		m.Log.Warn("mirror upload failed", "name", mb.Repo.Name, "error", err)
	}
	return nil
}
