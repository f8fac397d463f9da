package monitor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tunearr/tunearr/internal/config"
	"github.com/tunearr/tunearr/internal/dedup"
	"github.com/tunearr/tunearr/internal/downloader"
	"github.com/tunearr/tunearr/internal/extractor"
	"github.com/tunearr/tunearr/internal/models"
	"github.com/tunearr/tunearr/internal/repository"
)

// fakeLister serves canned playlist listings keyed by URL.
type fakeLister struct {
	infos map[string]*extractor.PlaylistInfo
	errs  map[string]error
	calls int
}

func (f *fakeLister) ListPlaylist(_ context.Context, url string) (*extractor.PlaylistInfo, error) {
	f.calls++
	if err := f.errs[url]; err != nil {
		return nil, err
	}
	info, ok := f.infos[url]
	if !ok {
		return nil, errors.New("unknown playlist")
	}
	return info, nil
}

// fakeAudio writes a file whose content is derived from the video URL, so
// distinct videos produce distinct audio.
type fakeAudio struct {
	dir   string
	calls int
}

func (f *fakeAudio) Extract(_ context.Context, videoURL, destDir string) (*extractor.ExtractResult, error) {
	f.calls++
	name := filepath.Base(videoURL) + ".mp3"
	path := filepath.Join(destDir, name)
	if err := os.WriteFile(path, []byte("audio for "+videoURL), 0o644); err != nil {
		return nil, err
	}
	return &extractor.ExtractResult{FilePath: path}, nil
}

type monitorFixture struct {
	playlists repository.PlaylistRepository
	videos    repository.VideoRepository
	lister    *fakeLister
	audio     *fakeAudio
	rec       *Reconciler
	dir       string
}

func newMonitorFixture(t *testing.T) *monitorFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Playlist{}, &models.TrackedVideo{}))

	playlists := repository.NewPlaylistRepository(db)
	videos := repository.NewVideoRepository(db)

	dir := t.TempDir()
	lister := &fakeLister{infos: map[string]*extractor.PlaylistInfo{}, errs: map[string]error{}}
	audio := &fakeAudio{dir: dir}

	exec := downloader.NewExecutor(audio, nil, dedup.NewIndex(videos, nil), videos,
		dir, config.MonitorConfig{}, nil)

	return &monitorFixture{
		playlists: playlists,
		videos:    videos,
		lister:    lister,
		audio:     audio,
		rec:       NewReconciler(playlists, videos, lister, exec, nil),
		dir:       dir,
	}
}

func (fx *monitorFixture) addPlaylist(t *testing.T, listID string, entries ...extractor.VideoEntry) *models.Playlist {
	t.Helper()

	url := "https://music.youtube.com/playlist?list=" + listID
	p := &models.Playlist{URL: url}
	require.NoError(t, fx.playlists.Create(context.Background(), p))

	fx.lister.infos[url] = &extractor.PlaylistInfo{
		ID:      listID,
		Title:   "Source " + listID,
		Entries: entries,
	}
	return p
}

func TestScanPlaylist(t *testing.T) {
	fx := newMonitorFixture(t)
	ctx := context.Background()

	p := fx.addPlaylist(t, "PL1",
		extractor.VideoEntry{ID: "v1", Title: "Song One", Artist: "Artist", Album: "Album", Year: 2019},
		extractor.VideoEntry{ID: "v2", Title: "Song Two", Artist: "Artist"},
		extractor.VideoEntry{ID: "v3", Title: "Members Only", Restricted: true},
	)

	report, err := fx.rec.ScanPlaylist(ctx, p)
	require.NoError(t, err)

	assert.Equal(t, 3, report.NewVideos)
	assert.Equal(t, 2, report.Downloaded)
	assert.Equal(t, 1, report.Skipped)
	assert.Zero(t, report.Failed)

	t.Run("listing metadata lands on the row", func(t *testing.T) {
		v, err := fx.videos.GetByPlaylistAndVideoID(ctx, p.ID, "v1")
		require.NoError(t, err)
		require.NotNil(t, v)
		assert.Equal(t, "Album", v.Album)
		assert.Equal(t, 2019, v.Year)
	})

	t.Run("playlist adopts source title", func(t *testing.T) {
		got, err := fx.playlists.GetByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "Source PL1", got.Name)
		assert.NotNil(t, got.LastCheckedAt)
	})

	t.Run("restricted entry is skipped, never downloaded", func(t *testing.T) {
		v, err := fx.videos.GetByPlaylistAndVideoID(ctx, p.ID, "v3")
		require.NoError(t, err)
		require.NotNil(t, v)
		assert.Equal(t, models.VideoStatusSkipped, v.Status)
		assert.Equal(t, 2, fx.audio.calls)
	})

	t.Run("rescan is idempotent", func(t *testing.T) {
		report, err := fx.rec.ScanPlaylist(ctx, p)
		require.NoError(t, err)

		assert.Zero(t, report.NewVideos)
		assert.Equal(t, 3, report.AlreadyTracked)
		assert.Zero(t, report.Downloaded)
		assert.Equal(t, 2, fx.audio.calls, "downloaded tracks are not re-fetched")
	})
}

func TestScanPlaylist_RemovedFromSource(t *testing.T) {
	fx := newMonitorFixture(t)
	ctx := context.Background()

	p := fx.addPlaylist(t, "PL1",
		extractor.VideoEntry{ID: "v1", Title: "Keeper"},
		extractor.VideoEntry{ID: "v2", Title: "Goner"},
	)

	_, err := fx.rec.ScanPlaylist(ctx, p)
	require.NoError(t, err)

	// v2 disappears upstream.
	url := p.URL
	fx.lister.infos[url].Entries = fx.lister.infos[url].Entries[:1]

	report, err := fx.rec.ScanPlaylist(ctx, p)
	require.NoError(t, err)

	assert.Equal(t, 1, report.RemovedFromSource)

	// The local record and its file survive.
	v, err := fx.videos.GetByPlaylistAndVideoID(ctx, p.ID, "v2")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, models.VideoStatusDownloaded, v.Status)
	require.NotNil(t, v.FilePath)
	assert.FileExists(t, *v.FilePath)
}

func TestScanAll_ContinuesPastFailingPlaylist(t *testing.T) {
	fx := newMonitorFixture(t)
	ctx := context.Background()

	bad := fx.addPlaylist(t, "PLbad")
	fx.lister.errs[bad.URL] = errors.New("listing blew up")

	fx.addPlaylist(t, "PLgood", extractor.VideoEntry{ID: "v1", Title: "Fine"})

	reports, err := fx.rec.ScanAll(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, 1, reports[0].Downloaded)
}

func TestScanAll_SkipsInactivePlaylists(t *testing.T) {
	fx := newMonitorFixture(t)
	ctx := context.Background()

	p := fx.addPlaylist(t, "PL1", extractor.VideoEntry{ID: "v1"})
	p.Active = models.BoolPtr(false)
	require.NoError(t, fx.playlists.Update(ctx, p))

	reports, err := fx.rec.ScanAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, reports)
	assert.Zero(t, fx.lister.calls)
}

func TestValidateDownloads(t *testing.T) {
	fx := newMonitorFixture(t)
	ctx := context.Background()

	p := fx.addPlaylist(t, "PL1",
		extractor.VideoEntry{ID: "v1", Title: "Stays"},
		extractor.VideoEntry{ID: "v2", Title: "Vanishes"},
	)
	_, err := fx.rec.ScanPlaylist(ctx, p)
	require.NoError(t, err)

	// Lose one file behind the service's back.
	gone, err := fx.videos.GetByPlaylistAndVideoID(ctx, p.ID, "v2")
	require.NoError(t, err)
	require.NotNil(t, gone.FilePath)
	require.NoError(t, os.Remove(*gone.FilePath))

	report, err := fx.rec.ValidateDownloads(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.ValidCount)
	assert.Equal(t, 1, report.FixedCount)

	t.Run("record reset for re-download", func(t *testing.T) {
		v, err := fx.videos.GetByPlaylistAndVideoID(ctx, p.ID, "v2")
		require.NoError(t, err)
		assert.Equal(t, models.VideoStatusPending, v.Status)
		assert.Nil(t, v.FilePath)
		assert.Nil(t, v.ContentHash)
	})

	t.Run("second pass fixes nothing", func(t *testing.T) {
		report, err := fx.rec.ValidateDownloads(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.ValidCount)
		assert.Zero(t, report.FixedCount)
	})
}
