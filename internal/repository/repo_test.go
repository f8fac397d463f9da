package repository

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tunearr/tunearr/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&models.Playlist{}, &models.TrackedVideo{}))
	return db
}

func createPlaylist(t *testing.T, db *gorm.DB, listID string) *models.Playlist {
	t.Helper()

	repo := NewPlaylistRepository(db)
	p := &models.Playlist{
		URL:  "https://music.youtube.com/playlist?list=" + listID,
		Name: "Playlist " + listID,
	}
	require.NoError(t, repo.Create(context.Background(), p))
	return p
}

func TestPlaylistRepo_Create(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPlaylistRepository(db)
	ctx := context.Background()

	p := &models.Playlist{URL: "https://music.youtube.com/playlist?list=PL1", Name: "Mix"}
	require.NoError(t, repo.Create(ctx, p))
	assert.False(t, p.ID.IsZero())

	t.Run("duplicate URL", func(t *testing.T) {
		dup := &models.Playlist{URL: "https://music.youtube.com/playlist?list=PL1"}
		err := repo.Create(ctx, dup)
		assert.ErrorIs(t, err, models.ErrDuplicatePlaylist)
	})

	t.Run("invalid URL rejected by model hook", func(t *testing.T) {
		bad := &models.Playlist{URL: "https://example.com/nolist"}
		err := repo.Create(ctx, bad)
		require.Error(t, err)
	})
}

func TestPlaylistRepo_GetByID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPlaylistRepository(db)
	ctx := context.Background()

	p := createPlaylist(t, db, "PL1")

	found, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.URL, found.URL)

	_, err = repo.GetByID(ctx, models.NewULID())
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestPlaylistRepo_GetByURL(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPlaylistRepository(db)
	ctx := context.Background()

	p := createPlaylist(t, db, "PL1")

	found, err := repo.GetByURL(ctx, p.URL)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, p.ID, found.ID)

	missing, err := repo.GetByURL(ctx, "https://music.youtube.com/playlist?list=PLother")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestPlaylistRepo_GetActive(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPlaylistRepository(db)
	ctx := context.Background()

	active := createPlaylist(t, db, "PL1")

	inactive := createPlaylist(t, db, "PL2")
	inactive.Active = models.BoolPtr(false)
	require.NoError(t, repo.Update(ctx, inactive))

	playlists, err := repo.GetActive(ctx)
	require.NoError(t, err)
	require.Len(t, playlists, 1)
	assert.Equal(t, active.ID, playlists[0].ID)
}

func TestPlaylistRepo_Delete_Cascades(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPlaylistRepository(db)
	videoRepo := NewVideoRepository(db)
	ctx := context.Background()

	p := createPlaylist(t, db, "PL1")
	_, err := videoRepo.Upsert(ctx, &models.TrackedVideo{PlaylistID: p.ID, VideoID: "v1"})
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, p.ID))

	_, err = repo.GetByID(ctx, p.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	videos, err := videoRepo.GetByPlaylist(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, videos)

	t.Run("deleting again reports not found", func(t *testing.T) {
		assert.ErrorIs(t, repo.Delete(ctx, p.ID), models.ErrNotFound)
	})
}

func TestVideoRepo_Upsert(t *testing.T) {
	db := setupTestDB(t)
	repo := NewVideoRepository(db)
	ctx := context.Background()

	p := createPlaylist(t, db, "PL1")

	v := &models.TrackedVideo{PlaylistID: p.ID, VideoID: "v1", Title: "Song"}
	created, err := repo.Upsert(ctx, v)
	require.NoError(t, err)
	assert.True(t, created)

	t.Run("second upsert is a metadata refresh, not a new row", func(t *testing.T) {
		again := &models.TrackedVideo{PlaylistID: p.ID, VideoID: "v1", Title: "Song (Remastered)"}
		created, err := repo.Upsert(ctx, again)
		require.NoError(t, err)
		assert.False(t, created)

		videos, err := repo.GetByPlaylist(ctx, p.ID)
		require.NoError(t, err)
		require.Len(t, videos, 1)
		assert.Equal(t, "Song (Remastered)", videos[0].Title)
	})

	t.Run("upsert does not clobber download state", func(t *testing.T) {
		require.NoError(t, repo.MarkDownloaded(ctx, v.ID, "hash1", "/music/song.mp3", 123, nil))

		again := &models.TrackedVideo{PlaylistID: p.ID, VideoID: "v1", Title: "Song"}
		_, err := repo.Upsert(ctx, again)
		require.NoError(t, err)

		got, err := repo.GetByID(ctx, v.ID)
		require.NoError(t, err)
		assert.Equal(t, models.VideoStatusDownloaded, got.Status)
		require.NotNil(t, got.FilePath)
		assert.Equal(t, "/music/song.mp3", *got.FilePath)
	})
}

func TestVideoRepo_StatusTransitions(t *testing.T) {
	db := setupTestDB(t)
	repo := NewVideoRepository(db)
	ctx := context.Background()

	p := createPlaylist(t, db, "PL1")
	v := &models.TrackedVideo{PlaylistID: p.ID, VideoID: "v1"}
	_, err := repo.Upsert(ctx, v)
	require.NoError(t, err)

	t.Run("mark failed", func(t *testing.T) {
		require.NoError(t, repo.MarkFailed(ctx, v.ID, "network timeout"))
		got, err := repo.GetByID(ctx, v.ID)
		require.NoError(t, err)
		assert.Equal(t, models.VideoStatusFailed, got.Status)
		assert.Equal(t, "network timeout", got.LastError)
	})

	t.Run("failed videos are retry-eligible", func(t *testing.T) {
		pending, err := repo.GetPending(ctx, p.ID)
		require.NoError(t, err)
		assert.Len(t, pending, 1)
	})

	t.Run("mark downloaded clears error", func(t *testing.T) {
		require.NoError(t, repo.MarkDownloaded(ctx, v.ID, "hash1", "/music/v1.mp3", 1024, nil))
		got, err := repo.GetByID(ctx, v.ID)
		require.NoError(t, err)
		assert.Equal(t, models.VideoStatusDownloaded, got.Status)
		require.NotNil(t, got.ContentHash)
		assert.Equal(t, "hash1", *got.ContentHash)
		assert.Empty(t, got.LastError)
		assert.NotNil(t, got.DownloadedAt)
	})

	t.Run("reset to pending clears download state", func(t *testing.T) {
		require.NoError(t, repo.ResetToPending(ctx, v.ID))
		got, err := repo.GetByID(ctx, v.ID)
		require.NoError(t, err)
		assert.Equal(t, models.VideoStatusPending, got.Status)
		assert.Nil(t, got.ContentHash)
		assert.Nil(t, got.FilePath)
		assert.Nil(t, got.DownloadedAt)
	})

	t.Run("mark skipped excludes from pending", func(t *testing.T) {
		require.NoError(t, repo.MarkSkipped(ctx, v.ID, "requires authentication"))
		pending, err := repo.GetPending(ctx, p.ID)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})

	t.Run("unknown id", func(t *testing.T) {
		assert.ErrorIs(t, repo.MarkFailed(ctx, models.NewULID(), "x"), models.ErrNotFound)
	})
}

func TestVideoRepo_Stats(t *testing.T) {
	db := setupTestDB(t)
	repo := NewVideoRepository(db)
	ctx := context.Background()

	p := createPlaylist(t, db, "PL1")

	ids := make([]models.ULID, 0, 5)
	for _, vid := range []string{"v1", "v2", "v3", "v4", "v5"} {
		v := &models.TrackedVideo{PlaylistID: p.ID, VideoID: vid}
		_, err := repo.Upsert(ctx, v)
		require.NoError(t, err)
		ids = append(ids, v.ID)
	}

	require.NoError(t, repo.MarkDownloaded(ctx, ids[0], "h1", "/m/1.mp3", 1, nil))
	require.NoError(t, repo.MarkDownloaded(ctx, ids[1], "h2", "/m/2.mp3", 1, nil))
	require.NoError(t, repo.MarkFailed(ctx, ids[2], "boom"))
	require.NoError(t, repo.MarkSkipped(ctx, ids[3], "auth"))

	stats, err := repo.Stats(ctx, p.ID)
	require.NoError(t, err)

	assert.Equal(t, int64(2), stats.Downloaded)
	assert.Equal(t, int64(1), stats.Pending)
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, int64(1), stats.Skipped)
	assert.Equal(t, int64(5), stats.Total)

	// Counting invariant: statuses partition the playlist.
	sum := stats.Downloaded + stats.Pending + stats.Failed + stats.Skipped
	assert.Equal(t, stats.Total, sum)
}

func TestVideoRepo_FindByContentHash(t *testing.T) {
	db := setupTestDB(t)
	repo := NewVideoRepository(db)
	ctx := context.Background()

	p := createPlaylist(t, db, "PL1")

	owner := &models.TrackedVideo{PlaylistID: p.ID, VideoID: "v1"}
	_, err := repo.Upsert(ctx, owner)
	require.NoError(t, err)
	require.NoError(t, repo.MarkDownloaded(ctx, owner.ID, "samehash", "/m/owner.mp3", 10, nil))

	sharer := &models.TrackedVideo{PlaylistID: p.ID, VideoID: "v2"}
	_, err = repo.Upsert(ctx, sharer)
	require.NoError(t, err)
	require.NoError(t, repo.MarkDownloaded(ctx, sharer.ID, "samehash", "/m/owner.mp3", 10, &owner.ID))

	found, err := repo.FindByContentHash(ctx, "samehash")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, owner.ID, found.ID, "lookup resolves to the owning row, not the sharer")

	missing, err := repo.FindByContentHash(ctx, "nosuchhash")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestVideoRepo_RecentDownloads(t *testing.T) {
	db := setupTestDB(t)
	repo := NewVideoRepository(db)
	ctx := context.Background()

	p := createPlaylist(t, db, "PL1")

	for i, vid := range []string{"v1", "v2", "v3"} {
		v := &models.TrackedVideo{PlaylistID: p.ID, VideoID: vid, Title: "Track " + vid}
		_, err := repo.Upsert(ctx, v)
		require.NoError(t, err)
		require.NoError(t, repo.MarkDownloaded(ctx, v.ID, "h"+vid, "/m/"+vid+".mp3", int64(i), nil))
	}

	records, err := repo.RecentDownloads(ctx, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Playlist PL1", records[0].PlaylistName)

	count, err := repo.CountDownloaded(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}
