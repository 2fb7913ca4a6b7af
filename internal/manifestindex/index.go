// Package manifestindex maintains the tag→digest mapping used to serve
// manifests from cache when the upstream registry is unavailable.
package manifestindex

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/re-cinq/registry-cache/internal/registryref"
)

const schema = `
CREATE TABLE IF NOT EXISTS manifests (
	name      TEXT NOT NULL,
	tag       TEXT NOT NULL,
	reference TEXT,
	size      INTEGER NOT NULL DEFAULT 0,
	mime      TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (name, tag)
);
CREATE INDEX IF NOT EXISTS idx_manifests_name      ON manifests(name);
CREATE INDEX IF NOT EXISTS idx_manifests_tag       ON manifests(tag);
CREATE INDEX IF NOT EXISTS idx_manifests_reference ON manifests(reference);
`

// Record is a row of the tag→digest index.
type Record struct {
	Name      string
	Tag       string
	Reference string // digest string, may be empty
	Size      int64
	Mime      string
}

// Digest parses Reference back into a Digest, returning ok=false when the
// record has no reference recorded.
func (r Record) Digest() (d registryref.Digest, ok bool) {
	if r.Reference == "" {
		return registryref.Digest{}, false
	}
	d, err := registryref.ParseDigest(r.Reference)
	if err != nil {
		return registryref.Digest{}, false
	}
	return d, true
}

// Index is the manifest tag→digest store, backed by a pure-Go SQLite
// driver (modernc.org/sqlite) accessed through sqlx for simple scans — the
// same driver/accessor pairing used for the registry database in the
// closest example proxy in the reference corpus, chosen so the manifest
// index never depends on cgo.
type Index struct {
	db *sqlx.DB
}

// Open opens (and migrates) the manifest index at uri, a sqlite DSN such as
// "file:/var/lib/registry-cache/manifests.db?_pragma=busy_timeout(5000)".
func Open(uri string, maxConnections int) (*Index, error) {
	db, err := sqlx.Open("sqlite", uri)
	if err != nil {
		return nil, fmt.Errorf("manifestindex: opening database: %w", err)
	}
	if maxConnections > 0 {
		db.SetMaxOpenConns(maxConnections)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("manifestindex: migrating schema: %w", err)
	}
	return &Index{db: db}, nil
}

func (idx *Index) Close() error {
	return idx.db.Close()
}

// Ping verifies the database connection is alive, for the health endpoint.
func (idx *Index) Ping(ctx context.Context) error {
	return idx.db.PingContext(ctx)
}

// Upsert inserts or replaces the (name, tag) row. This implementation
// refreshes reference, size, and mime on conflict — see DESIGN.md for why
// this departs from the original upsert, which refreshed only reference.
func (idx *Index) Upsert(ctx context.Context, name, tag string, digest registryref.Digest, size int64, mime string) error {
	const q = `
INSERT INTO manifests (name, tag, reference, size, mime)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(name, tag) DO UPDATE SET
	reference = excluded.reference,
	size      = excluded.size,
	mime      = excluded.mime
`
	_, err := idx.db.ExecContext(ctx, q, name, tag, digest.String(), size, mime)
	if err != nil {
		return fmt.Errorf("manifestindex: upsert %s:%s: %w", name, tag, err)
	}
	return nil
}

// ErrNotFound is returned by Get when no row matches (name, tag).
var ErrNotFound = errors.New("manifestindex: record not found")

// Get looks up a single manifest record by (name, tag).
func (idx *Index) Get(ctx context.Context, name, tag string) (Record, error) {
	var rec Record
	const q = `SELECT name, tag, reference, size, mime FROM manifests WHERE name = ? AND tag = ?`
	err := idx.db.GetContext(ctx, &rec, q, name, tag)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("manifestindex: get %s:%s: %w", name, tag, err)
	}
	return rec, nil
}
