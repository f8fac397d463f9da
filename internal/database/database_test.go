package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunearr/tunearr/internal/config"
	"github.com/tunearr/tunearr/internal/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db")
	db, err := New(config.DatabaseConfig{DSN: dsn, LogLevel: "silent"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func TestNewAndPing(t *testing.T) {
	db := openTestDB(t)
	assert.NoError(t, db.Ping(context.Background()))
}

func TestMigrate(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Migrate())

	// Running migrations twice must be safe.
	require.NoError(t, db.Migrate())

	assert.True(t, db.Migrator().HasTable(&models.Playlist{}))
	assert.True(t, db.Migrator().HasTable(&models.TrackedVideo{}))
}

func TestUniquePlaylistURL(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Migrate())

	p1 := &models.Playlist{URL: "https://music.youtube.com/playlist?list=PL1"}
	require.NoError(t, db.Create(p1).Error)

	p2 := &models.Playlist{URL: "https://music.youtube.com/playlist?list=PL1"}
	assert.Error(t, db.Create(p2).Error)
}

func TestUniquePlaylistVideoPair(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Migrate())

	p := &models.Playlist{URL: "https://music.youtube.com/playlist?list=PL1"}
	require.NoError(t, db.Create(p).Error)

	v1 := &models.TrackedVideo{PlaylistID: p.ID, VideoID: "vid1"}
	require.NoError(t, db.Create(v1).Error)

	// Same video in the same playlist violates the unique index.
	v2 := &models.TrackedVideo{PlaylistID: p.ID, VideoID: "vid1"}
	assert.Error(t, db.Create(v2).Error)

	// Same video in another playlist is a separate row.
	p2 := &models.Playlist{URL: "https://music.youtube.com/playlist?list=PL2"}
	require.NoError(t, db.Create(p2).Error)

	v3 := &models.TrackedVideo{PlaylistID: p2.ID, VideoID: "vid1"}
	assert.NoError(t, db.Create(v3).Error)
}
