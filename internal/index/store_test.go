package index

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/folio/internal/apperr"
)

func TestJSONStore_MissingSnapshotIsEmpty(t *testing.T) {
	s, err := NewJSONStore(filepath.Join(t.TempDir(), "state", "index.json"))
	require.NoError(t, err)

	idx, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, idx.Len())
}

func TestJSONStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	s, err := NewJSONStore(path)
	require.NoError(t, err)

	want := sampleIndex()
	require.NoError(t, s.Save(context.Background(), want))

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assertIndexesEqual(t, want, got)

	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(path), ".folio-tmp-*"))
	assert.Empty(t, matches)
}

func TestJSONStore_CorruptSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version": 1, "posts": [`), 0o644))

	s, err := NewJSONStore(path)
	require.NoError(t, err)
	_, err = s.Load(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrIndexLoad))
	assert.True(t, errors.Is(err, ErrSchema))
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	empty, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())

	want := sampleIndex()
	require.NoError(t, s.Save(ctx, want))
	got, err := s.Load(ctx)
	require.NoError(t, err)
	assertIndexesEqual(t, want, got)

	// A second save replaces rather than appends.
	_, _ = want.Retract("a")
	require.NoError(t, s.Save(ctx, want))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	assertIndexesEqual(t, want, got)
}

func TestSQLiteStore_VersionMismatch(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = s.conn.Exec(`INSERT INTO meta (key, value) VALUES (?, '7')`, versionKey)
	require.NoError(t, err)

	_, err = s.Load(context.Background())
	assert.True(t, errors.Is(err, apperr.ErrIndexLoad))
}

func TestSQLiteStore_UnusableFileIsDiscarded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	junk := []byte(strings.Repeat("this is not a sqlite database\n", 200))
	require.NoError(t, os.WriteFile(path, junk, 0o644))

	store, err := Open(BackendSQLite, path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	_, err = store.Load(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrIndexLoad))

	moved, err := os.ReadFile(path + ".corrupt")
	require.NoError(t, err)
	assert.Equal(t, junk, moved)

	// The replacement database starts empty and accepts a full snapshot.
	idx, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, idx.Len())

	want := sampleIndex()
	require.NoError(t, store.Save(ctx, want))
	got, err := store.Load(ctx)
	require.NoError(t, err)
	assertIndexesEqual(t, want, got)
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open("etcd", filepath.Join(t.TempDir(), "x"))
	assert.Error(t, err)
}
