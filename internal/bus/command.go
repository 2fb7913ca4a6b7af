// Package bus implements the topic-keyed, shard-partitioned command bus
// and worker pool that decouples HTTP request handling from slow
// persistence I/O.
package bus

import (
	"hash/fnv"

	"github.com/re-cinq/registry-cache/internal/registryref"
)

// Command is the unit of work the bus dispatches. Topic selects which
// worker pool handles it; QueueID selects the shard (worker) within that
// pool, so that commands sharing an identity always land on the same
// worker and are therefore processed in order relative to one another.
type Command interface {
	Topic() string
	QueueID() uint64
}

// ShardKey hashes identity with FNV-1a, the standard low-overhead
// non-cryptographic hash used throughout the Go ecosystem for exactly this
// kind of shard-selection purpose — a stable hash of a command's identity
// string, with no cryptographic requirement.
func ShardKey(identity string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(identity))
	return h.Sum64()
}

// shutdownCommand is enqueued directly on every worker's inbox during
// Bus.Shutdown. It never flows through the front queue or topic demux.
type shutdownCommand struct{}

func (shutdownCommand) Topic() string   { return "" }
func (shutdownCommand) QueueID() uint64 { return 0 }

// Chunk is one buffer of a lazy, finite, non-restartable byte stream
// delivered to a persister over a channel.
type Chunk []byte

const (
	TopicPersistBlob     = "persist_blob"
	TopicPersistManifest = "persist_manifest"
	TopicMirrorBlob      = "mirror_blob"
)

// PersistBlob asks the blob persister to consume Chunks, verify them
// against Repo's digest, and commit them to the content-addressed store.
type PersistBlob struct {
	Repo   registryref.Repository
	Chunks <-chan Chunk
}

func (c PersistBlob) Topic() string   { return TopicPersistBlob }
func (c PersistBlob) QueueID() uint64 { return ShardKey(c.Repo.Reference) }

// PersistManifest asks the manifest persister to content-address the
// manifest body under Digest (when present) and, on success, upsert the
// tag→digest index with (Repo.Name, Repo.Reference, Digest, Size, Mime).
type PersistManifest struct {
	Repo   registryref.Repository
	Digest *registryref.Digest
	Size   int64
	Mime   string
	Chunks <-chan Chunk
}

func (c PersistManifest) Topic() string   { return TopicPersistManifest }
func (c PersistManifest) QueueID() uint64 { return ShardKey(c.Repo.Reference) }

// MirrorBlob asks the (optional) mirror handler to replicate an
// already-committed blob to secondary object storage. Published after a
// BlobPersisted event, never as part of the correctness-critical path.
type MirrorBlob struct {
	Repo registryref.Repository
}

func (c MirrorBlob) Topic() string   { return TopicMirrorBlob }
func (c MirrorBlob) QueueID() uint64 { return ShardKey(c.Repo.Digest.String()) }
