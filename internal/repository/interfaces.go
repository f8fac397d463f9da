// Package repository defines data access interfaces for tunearr entities.
// All database access goes through these interfaces, enabling easy testing.
package repository

import (
	"context"
	"time"

	"github.com/tunearr/tunearr/internal/models"
)

// DownloadRecord is a completed download joined with its playlist name,
// as surfaced by the downloads API.
type DownloadRecord struct {
	VideoID      string       `json:"video_id"`
	Title        string       `json:"title"`
	Uploader     string       `json:"uploader"`
	PlaylistName string       `json:"playlist_name"`
	FilePath     string       `json:"file_path"`
	FileSize     int64        `json:"file_size"`
	DownloadedAt *models.Time `json:"downloaded_at"`
}

// PlaylistRepository defines operations for playlist persistence.
type PlaylistRepository interface {
	// Create creates a new playlist. Returns models.ErrDuplicatePlaylist
	// when a playlist with the same URL already exists.
	Create(ctx context.Context, playlist *models.Playlist) error
	// GetByID retrieves a playlist by ID. Returns models.ErrNotFound when missing.
	GetByID(ctx context.Context, id models.ULID) (*models.Playlist, error)
	// GetByURL retrieves a playlist by URL, or nil when not tracked.
	GetByURL(ctx context.Context, url string) (*models.Playlist, error)
	// GetAll retrieves all playlists, oldest first.
	GetAll(ctx context.Context) ([]*models.Playlist, error)
	// GetActive retrieves all playlists included in scheduled scans.
	GetActive(ctx context.Context) ([]*models.Playlist, error)
	// Update updates an existing playlist.
	Update(ctx context.Context, playlist *models.Playlist) error
	// UpdateLastChecked stamps the playlist's last scan time.
	UpdateLastChecked(ctx context.Context, id models.ULID, at time.Time) error
	// Delete removes a playlist and all its tracked videos.
	// Returns models.ErrNotFound when the playlist does not exist.
	Delete(ctx context.Context, id models.ULID) error
	// Count returns the number of playlists.
	Count(ctx context.Context) (int64, error)
}

// VideoRepository defines operations for tracked video persistence.
type VideoRepository interface {
	// Upsert inserts the video if (playlist_id, video_id) is unseen and
	// refreshes listing metadata otherwise. Reports whether a row was created.
	Upsert(ctx context.Context, video *models.TrackedVideo) (created bool, err error)
	// GetByID retrieves a video by ID. Returns models.ErrNotFound when missing.
	GetByID(ctx context.Context, id models.ULID) (*models.TrackedVideo, error)
	// GetByPlaylist retrieves all videos for a playlist.
	GetByPlaylist(ctx context.Context, playlistID models.ULID) ([]*models.TrackedVideo, error)
	// GetByPlaylistAndVideoID retrieves a video by its tracking pair,
	// or nil when the pair is unseen.
	GetByPlaylistAndVideoID(ctx context.Context, playlistID models.ULID, videoID string) (*models.TrackedVideo, error)
	// GetPending retrieves pending and retry-eligible failed videos for a playlist.
	GetPending(ctx context.Context, playlistID models.ULID) ([]*models.TrackedVideo, error)
	// GetDownloaded retrieves all downloaded videos across playlists.
	GetDownloaded(ctx context.Context) ([]*models.TrackedVideo, error)
	// MarkDownloaded records a completed download. duplicateOf is non-nil
	// when the row shares another row's file via content-hash dedup.
	MarkDownloaded(ctx context.Context, id models.ULID, contentHash, filePath string, fileSize int64, duplicateOf *models.ULID) error
	// MarkFailed records a transient failure; the video is retried next scan.
	MarkFailed(ctx context.Context, id models.ULID, reason string) error
	// MarkSkipped permanently excludes the video from download attempts.
	MarkSkipped(ctx context.Context, id models.ULID, reason string) error
	// ResetToPending clears download state so the video is retried.
	ResetToPending(ctx context.Context, id models.ULID) error
	// Stats returns per-status counts for a playlist.
	Stats(ctx context.Context, playlistID models.ULID) (*models.PlaylistStats, error)
	// RecentDownloads returns the most recent downloads, newest first.
	RecentDownloads(ctx context.Context, limit int) ([]DownloadRecord, error)
	// FindByContentHash returns the downloaded row owning the file with the
	// given content hash, or nil when no such download exists.
	FindByContentHash(ctx context.Context, hash string) (*models.TrackedVideo, error)
	// CountDownloaded returns the number of downloaded videos.
	CountDownloaded(ctx context.Context) (int64, error)
}
