package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore_RecordAndGetRun(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	started := time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

	id, err := store.RecordRun(ctx, &Run{
		StartedAt:   started,
		Source:      "prog.c",
		Optimized:   "prog-opt.ll",
		AttrIndex:   2,
		AttrProfile: "x86-64-generic/1",
		Status:      "ok",
		Functions: []RunFunction{
			{Name: "main", SymbolID: "c:function:main:0123456789abcdef", Line: 30, OldRef: "#0", NewRef: "#2"},
			{Name: "foo", Line: 9, OldRef: "#0", NewRef: "#2"},
		},
	})
	require.NoError(t, err)

	run, err := store.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "prog.c", run.Source)
	assert.Equal(t, 2, run.AttrIndex)
	assert.True(t, started.Equal(run.StartedAt))
	require.Len(t, run.Functions, 2)
	assert.Equal(t, "foo", run.Functions[0].Name, "functions are ordered by line")
	assert.Equal(t, "#2", run.Functions[1].NewRef)
	assert.Equal(t, "c:function:main:0123456789abcdef", run.Functions[1].SymbolID)
	assert.Empty(t, run.Functions[0].SymbolID)
}

func TestSQLiteStore_UpgradesOldLedger(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "old.db")
	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE run_functions (run_id INTEGER, name TEXT, line INTEGER, old_ref TEXT, new_ref TEXT, PRIMARY KEY (run_id, line));`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO run_functions VALUES (99, 'legacy', 3, '#0', '#1')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	id, err := store.RecordRun(ctx, &Run{Source: "a.c", Status: "ok",
		Functions: []RunFunction{{Name: "foo", SymbolID: "c:function:foo:00", Line: 1, OldRef: "#0", NewRef: "#1"}}})
	require.NoError(t, err)

	run, err := store.GetRun(ctx, id)
	require.NoError(t, err)
	require.Len(t, run.Functions, 1)
	assert.Equal(t, "c:function:foo:00", run.Functions[0].SymbolID)

	// Reopening an upgraded ledger is a no-op.
	again, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, again.Close())
}

func TestSQLiteStore_RecentRuns(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	for _, src := range []string{"a.c", "b.c", "c.c"} {
		_, err := store.RecordRun(ctx, &Run{Source: src, AttrIndex: -1, Status: "failed", Stage: "compile"})
		require.NoError(t, err)
	}

	runs, err := store.RecentRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c.c", runs[0].Source)
	assert.Equal(t, "b.c", runs[1].Source)
	assert.Equal(t, "compile", runs[0].Stage)
	assert.False(t, runs[0].StartedAt.IsZero())
}

func TestSQLiteStore_GetRunNotFound(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer store.Close()

	_, err = store.GetRun(context.Background(), 42)
	assert.True(t, errors.Is(err, ErrRunNotFound))
}
