package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/tunearr/tunearr/internal/models"
)

// videoRepo implements VideoRepository using GORM.
type videoRepo struct {
	db *gorm.DB
}

// NewVideoRepository creates a new VideoRepository.
func NewVideoRepository(db *gorm.DB) *videoRepo {
	return &videoRepo{db: db}
}

// Upsert inserts the video if (playlist_id, video_id) is unseen and
// refreshes listing metadata otherwise. Download state is never touched on
// the update path, so re-scans cannot clobber a completed download.
func (r *videoRepo) Upsert(ctx context.Context, video *models.TrackedVideo) (bool, error) {
	var existing models.TrackedVideo
	err := r.db.WithContext(ctx).
		Where("playlist_id = ? AND video_id = ?", video.PlaylistID, video.VideoID).
		First(&existing).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		if createErr := r.db.WithContext(ctx).Create(video).Error; createErr != nil {
			return false, fmt.Errorf("creating tracked video: %w", createErr)
		}
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("looking up tracked video: %w", err)
	}

	updates := map[string]any{
		"title":         video.Title,
		"uploader":      video.Uploader,
		"duration":      video.Duration,
		"album":         video.Album,
		"year":          video.Year,
		"thumbnail_url": video.ThumbnailURL,
	}
	if err := r.db.WithContext(ctx).
		Model(&models.TrackedVideo{}).
		Where("id = ?", existing.ID).
		Updates(updates).Error; err != nil {
		return false, fmt.Errorf("refreshing tracked video metadata: %w", err)
	}

	*video = existing
	return false, nil
}

// GetByID retrieves a video by ID.
func (r *videoRepo) GetByID(ctx context.Context, id models.ULID) (*models.TrackedVideo, error) {
	var video models.TrackedVideo
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&video).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("getting tracked video by ID: %w", err)
	}
	return &video, nil
}

// GetByPlaylist retrieves all videos for a playlist.
func (r *videoRepo) GetByPlaylist(ctx context.Context, playlistID models.ULID) ([]*models.TrackedVideo, error) {
	var videos []*models.TrackedVideo
	if err := r.db.WithContext(ctx).
		Where("playlist_id = ?", playlistID).
		Order("created_at ASC").
		Find(&videos).Error; err != nil {
		return nil, fmt.Errorf("getting playlist videos: %w", err)
	}
	return videos, nil
}

// GetByPlaylistAndVideoID retrieves a video by its tracking pair, or nil
// when the pair is unseen.
func (r *videoRepo) GetByPlaylistAndVideoID(ctx context.Context, playlistID models.ULID, videoID string) (*models.TrackedVideo, error) {
	var video models.TrackedVideo
	err := r.db.WithContext(ctx).
		Where("playlist_id = ? AND video_id = ?", playlistID, videoID).
		First(&video).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting video by tracking pair: %w", err)
	}
	return &video, nil
}

// GetPending retrieves pending and retry-eligible failed videos for a
// playlist. Skipped videos are permanently excluded.
func (r *videoRepo) GetPending(ctx context.Context, playlistID models.ULID) ([]*models.TrackedVideo, error) {
	var videos []*models.TrackedVideo
	if err := r.db.WithContext(ctx).
		Where("playlist_id = ? AND status IN ?", playlistID,
			[]models.VideoStatus{models.VideoStatusPending, models.VideoStatusFailed}).
		Order("created_at ASC").
		Find(&videos).Error; err != nil {
		return nil, fmt.Errorf("getting pending videos: %w", err)
	}
	return videos, nil
}

// GetDownloaded retrieves all downloaded videos across playlists.
func (r *videoRepo) GetDownloaded(ctx context.Context) ([]*models.TrackedVideo, error) {
	var videos []*models.TrackedVideo
	if err := r.db.WithContext(ctx).
		Where("status = ?", models.VideoStatusDownloaded).
		Order("downloaded_at ASC").
		Find(&videos).Error; err != nil {
		return nil, fmt.Errorf("getting downloaded videos: %w", err)
	}
	return videos, nil
}

// MarkDownloaded records a completed download.
func (r *videoRepo) MarkDownloaded(ctx context.Context, id models.ULID, contentHash, filePath string, fileSize int64, duplicateOf *models.ULID) error {
	now := models.Now()
	updates := map[string]any{
		"status":        models.VideoStatusDownloaded,
		"content_hash":  contentHash,
		"file_path":     filePath,
		"file_size":     fileSize,
		"downloaded_at": now,
		"duplicate_of":  duplicateOf,
		"last_error":    "",
	}
	return r.updateByID(ctx, id, updates, "marking downloaded")
}

// MarkFailed records a transient failure.
func (r *videoRepo) MarkFailed(ctx context.Context, id models.ULID, reason string) error {
	updates := map[string]any{
		"status":     models.VideoStatusFailed,
		"last_error": reason,
	}
	return r.updateByID(ctx, id, updates, "marking failed")
}

// MarkSkipped permanently excludes the video from download attempts.
func (r *videoRepo) MarkSkipped(ctx context.Context, id models.ULID, reason string) error {
	updates := map[string]any{
		"status":     models.VideoStatusSkipped,
		"last_error": reason,
	}
	return r.updateByID(ctx, id, updates, "marking skipped")
}

// ResetToPending clears download state so the video is retried next scan.
func (r *videoRepo) ResetToPending(ctx context.Context, id models.ULID) error {
	updates := map[string]any{
		"status":        models.VideoStatusPending,
		"content_hash":  nil,
		"file_path":     nil,
		"file_size":     0,
		"downloaded_at": nil,
		"duplicate_of":  nil,
		"last_error":    "",
	}
	return r.updateByID(ctx, id, updates, "resetting to pending")
}

func (r *videoRepo) updateByID(ctx context.Context, id models.ULID, updates map[string]any, op string) error {
	res := r.db.WithContext(ctx).
		Model(&models.TrackedVideo{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("%s: %w", op, res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Stats returns per-status counts for a playlist in a single grouped query.
func (r *videoRepo) Stats(ctx context.Context, playlistID models.ULID) (*models.PlaylistStats, error) {
	type statusCount struct {
		Status models.VideoStatus
		Count  int64
	}

	var rows []statusCount
	if err := r.db.WithContext(ctx).
		Model(&models.TrackedVideo{}).
		Select("status, COUNT(*) as count").
		Where("playlist_id = ?", playlistID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("counting video statuses: %w", err)
	}

	stats := &models.PlaylistStats{}
	for _, row := range rows {
		switch row.Status {
		case models.VideoStatusDownloaded:
			stats.Downloaded = row.Count
		case models.VideoStatusPending:
			stats.Pending = row.Count
		case models.VideoStatusFailed:
			stats.Failed = row.Count
		case models.VideoStatusSkipped:
			stats.Skipped = row.Count
		}
		stats.Total += row.Count
	}
	return stats, nil
}

// RecentDownloads returns the most recent downloads, newest first.
func (r *videoRepo) RecentDownloads(ctx context.Context, limit int) ([]DownloadRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	var records []DownloadRecord
	if err := r.db.WithContext(ctx).
		Model(&models.TrackedVideo{}).
		Select("tracked_videos.video_id, tracked_videos.title, tracked_videos.uploader, "+
			"playlists.name AS playlist_name, tracked_videos.file_path, "+
			"tracked_videos.file_size, tracked_videos.downloaded_at").
		Joins("JOIN playlists ON playlists.id = tracked_videos.playlist_id").
		Where("tracked_videos.status = ?", models.VideoStatusDownloaded).
		Order("tracked_videos.downloaded_at DESC").
		Limit(limit).
		Scan(&records).Error; err != nil {
		return nil, fmt.Errorf("getting recent downloads: %w", err)
	}
	return records, nil
}

// FindByContentHash returns the downloaded row owning the file with the
// given content hash. Rows that merely reference a shared file are excluded
// so the lookup always resolves to the physical copy.
func (r *videoRepo) FindByContentHash(ctx context.Context, hash string) (*models.TrackedVideo, error) {
	var video models.TrackedVideo
	err := r.db.WithContext(ctx).
		Where("content_hash = ? AND status = ? AND duplicate_of IS NULL",
			hash, models.VideoStatusDownloaded).
		First(&video).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding video by content hash: %w", err)
	}
	return &video, nil
}

// CountDownloaded returns the number of downloaded videos.
func (r *videoRepo) CountDownloaded(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.TrackedVideo{}).
		Where("status = ?", models.VideoStatusDownloaded).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting downloads: %w", err)
	}
	return count, nil
}

// Ensure videoRepo implements VideoRepository at compile time.
var _ VideoRepository = (*videoRepo)(nil)
