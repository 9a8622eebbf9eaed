package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/starford/folio/internal/apperr"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS posts (
	position      INTEGER NOT NULL,
	id            TEXT PRIMARY KEY,
	source        TEXT NOT NULL DEFAULT '',
	title         TEXT NOT NULL DEFAULT '',
	subtitle      TEXT NOT NULL DEFAULT '',
	author        TEXT NOT NULL DEFAULT '',
	description   TEXT NOT NULL DEFAULT '',
	publish_date  TEXT NOT NULL,
	last_modified TEXT NOT NULL,
	checksum      TEXT NOT NULL DEFAULT '',
	tags          TEXT NOT NULL DEFAULT '[]',
	archived      INTEGER NOT NULL DEFAULT 0,
	output_path   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS tags (
	id    TEXT PRIMARY KEY,
	name  TEXT NOT NULL,
	color TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_posts_position ON posts(position);
`

const versionKey = "schema_version"

// SQLiteStore keeps the snapshot in a SQLite database. Each Save replaces
// every row inside one transaction, so a failed save leaves the previous
// snapshot in place.
type SQLiteStore struct {
	conn *sql.DB

	mu sync.Mutex
	// discarded is set when the file on disk was not a usable database and
	// was moved aside. The next Load reports it as an index load error.
	discarded error
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
// A file that is not a SQLite database, or a corrupt one, is renamed to
// path+".corrupt" and replaced by an empty database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("index: create db dir: %w", err)
	}
	conn, err := openSQLite(path)
	if err == nil {
		return &SQLiteStore{conn: conn}, nil
	}
	if !unusableDB(err) {
		return nil, err
	}

	if err := discardDB(path); err != nil {
		return nil, err
	}
	conn, err2 := openSQLite(path)
	if err2 != nil {
		return nil, err2
	}
	return &SQLiteStore{conn: conn, discarded: err}, nil
}

func openSQLite(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	return conn, nil
}

func unusableDB(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && (se.Code == sqlite3.ErrNotADB || se.Code == sqlite3.ErrCorrupt)
}

// discardDB moves path aside and removes its WAL sidecars.
func discardDB(path string) error {
	if err := os.Rename(path, path+".corrupt"); err != nil {
		return fmt.Errorf("index: move unusable db: %w", err)
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(path + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("index: remove %s: %w", suffix, err)
		}
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

// Load reads the snapshot. An empty database yields an empty index.
func (s *SQLiteStore) Load(ctx context.Context) (*Index, error) {
	s.mu.Lock()
	discarded := s.discarded
	s.discarded = nil
	s.mu.Unlock()
	if discarded != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrIndexLoad, discarded)
	}
	var version int
	err := s.conn.QueryRowContext(ctx, `SELECT CAST(value AS INTEGER) FROM meta WHERE key = ?`, versionKey).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read version: %w", apperr.ErrIndexLoad, err)
	}
	if version != SchemaVersion {
		return nil, fmt.Errorf("%w: %w: version %d, want %d", apperr.ErrIndexLoad, ErrSchema, version, SchemaVersion)
	}

	idx := New()
	if err := s.loadPosts(ctx, idx); err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrIndexLoad, err)
	}
	if err := s.loadTags(ctx, idx); err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrIndexLoad, err)
	}
	return idx, nil
}

func (s *SQLiteStore) loadPosts(ctx context.Context, idx *Index) error {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, source, title, subtitle, author, description,
		       publish_date, last_modified, checksum, tags, archived, output_path
		FROM posts
		ORDER BY position
	`)
	if err != nil {
		return fmt.Errorf("index: query posts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p        snapshotPost
			tagsJSON string
		)
		if err := rows.Scan(&p.ID, &p.Source, &p.Title, &p.Subtitle, &p.Author, &p.Description,
			&p.PublishDate, &p.LastModified, &p.Checksum, &tagsJSON, &p.Archived, &p.OutputPath); err != nil {
			return fmt.Errorf("index: scan post: %w", err)
		}
		if err := json.Unmarshal([]byte(tagsJSON), &p.Tags); err != nil {
			return fmt.Errorf("%w: post %q tags: %v", ErrSchema, p.ID, err)
		}
		doc, err := decodePost(p)
		if err != nil {
			return fmt.Errorf("%w: post %q: %v", ErrSchema, p.ID, err)
		}
		idx.Put(doc)
	}
	return rows.Err()
}

func (s *SQLiteStore) loadTags(ctx context.Context, idx *Index) error {
	rows, err := s.conn.QueryContext(ctx, `SELECT id, name, color FROM tags`)
	if err != nil {
		return fmt.Errorf("index: query tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var st snapshotTag
		if err := rows.Scan(&st.ID, &st.Name, &st.Color); err != nil {
			return fmt.Errorf("index: scan tag: %w", err)
		}
		t, err := decodeTag(st)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSchema, err)
		}
		idx.tags.Put(t)
	}
	return rows.Err()
}

// Save replaces the stored snapshot with idx in a single transaction.
func (s *SQLiteStore) Save(ctx context.Context, idx *Index) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, stmt := range []string{`DELETE FROM posts`, `DELETE FROM tags`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("index: clear snapshot: %w", err)
		}
	}

	postStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO posts (position, id, source, title, subtitle, author, description,
		                   publish_date, last_modified, checksum, tags, archived, output_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("index: prepare post insert: %w", err)
	}
	defer postStmt.Close()

	for i, d := range idx.docs {
		tagsJSON, err := json.Marshal(encodeTags(d.Tags))
		if err != nil {
			return fmt.Errorf("index: encode tags: %w", err)
		}
		if _, err := postStmt.ExecContext(ctx, i, d.ID, d.Source, d.Title, d.Subtitle, d.Author, d.Description,
			d.PublishDate.String(), d.LastModified.String(), d.Checksum, string(tagsJSON), d.Archived, d.OutputPath); err != nil {
			return fmt.Errorf("index: insert post %q: %w", d.ID, err)
		}
	}

	tagStmt, err := tx.PrepareContext(ctx, `INSERT INTO tags (id, name, color) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare tag insert: %w", err)
	}
	defer tagStmt.Close()

	for _, t := range idx.tags.Ordered() {
		if _, err := tagStmt.ExecContext(ctx, t.ID, t.Name, string(t.Color)); err != nil {
			return fmt.Errorf("index: insert tag %q: %w", t.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, versionKey, fmt.Sprint(SchemaVersion)); err != nil {
		return fmt.Errorf("index: write version: %w", err)
	}

	return tx.Commit()
}

// Backend names accepted by Open.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Open returns the store for backend at path.
func Open(backend, path string) (Store, error) {
	switch backend {
	case "", BackendJSON:
		return NewJSONStore(path)
	case BackendSQLite:
		return OpenSQLite(path)
	}
	return nil, fmt.Errorf("index: unknown backend %q", backend)
}
