package events

import (
	"context"
	"database/sql"
	"testing"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE events (
  event_uid   TEXT PRIMARY KEY,
  project_uid TEXT NOT NULL,
  title       TEXT NOT NULL DEFAULT '',
  audio_name  TEXT NOT NULL DEFAULT '',
  synced      INTEGER NOT NULL DEFAULT 0,
  created_at  INTEGER NOT NULL DEFAULT 0
);
`)
	require.NoError(t, err)

	return db
}

func seed(t *testing.T, r *SQLiteRepository, uid, project string, synced bool, createdAt int64) {
	t.Helper()
	err := r.CreateOrUpdate(context.Background(), &models.Event{
		EventUID:   uid,
		ProjectUID: project,
		Title:      "inspection " + uid,
		AudioName:  uid + ".m4a",
		Synced:     synced,
		CreatedAt:  createdAt,
	})
	require.NoError(t, err)
}

func TestCreateOrUpdate_InsertAndUpdate(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	seed(t, r, "e1", "p1", false, 100)

	got, err := r.GetByUID(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "p1", got.ProjectUID)
	assert.Equal(t, "e1.m4a", got.AudioName)
	assert.False(t, got.Synced)

	got.Title = "updated"
	got.Synced = true
	require.NoError(t, r.CreateOrUpdate(ctx, got))

	got, err = r.GetByUID(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "updated", got.Title)
	assert.True(t, got.Synced)
	assert.Equal(t, int64(100), got.CreatedAt)
}

func TestGetByUID_NotFound(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)

	_, err := r.GetByUID(context.Background(), "missing")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestListUnsynced_OldestFirst(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	seed(t, r, "e2", "p1", false, 200)
	seed(t, r, "e1", "p1", false, 100)
	seed(t, r, "e3", "p1", true, 50)
	seed(t, r, "e4", "p2", false, 10)

	got, err := r.ListUnsynced(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "e1", got[0].EventUID)
	assert.Equal(t, "e2", got[1].EventUID)
}

func TestMarkSynced_SuccessAndMissing(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	seed(t, r, "e1", "p1", false, 100)

	require.NoError(t, r.MarkSynced(ctx, "e1"))

	got, err := r.GetByUID(ctx, "e1")
	require.NoError(t, err)
	assert.True(t, got.Synced)

	err = r.MarkSynced(ctx, "nope")
	require.Error(t, err)
}

func TestSetAudioName(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	seed(t, r, "e1", "p1", false, 100)

	require.NoError(t, r.SetAudioName(ctx, "e1", "recording.m4a"))

	got, err := r.GetByUID(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "recording.m4a", got.AudioName)
}

func TestCountByProject(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	seed(t, r, "e1", "p1", false, 1)
	seed(t, r, "e2", "p1", true, 2)
	seed(t, r, "e3", "p2", false, 3)

	n, err := r.CountByProject(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = r.CountByProject(ctx, "empty")
	require.NoError(t, err)
	assert.Zero(t, n)
}
