package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tunearr/tunearr/internal/models"
)

// playlistRepo implements PlaylistRepository using GORM.
type playlistRepo struct {
	db *gorm.DB
}

// NewPlaylistRepository creates a new PlaylistRepository.
func NewPlaylistRepository(db *gorm.DB) *playlistRepo {
	return &playlistRepo{db: db}
}

// Create creates a new playlist.
func (r *playlistRepo) Create(ctx context.Context, playlist *models.Playlist) error {
	if err := r.db.WithContext(ctx).Create(playlist).Error; err != nil {
		if isUniqueViolation(err) {
			return models.ErrDuplicatePlaylist
		}
		return fmt.Errorf("creating playlist: %w", err)
	}
	return nil
}

// GetByID retrieves a playlist by ID.
func (r *playlistRepo) GetByID(ctx context.Context, id models.ULID) (*models.Playlist, error) {
	var playlist models.Playlist
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&playlist).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("getting playlist by ID: %w", err)
	}
	return &playlist, nil
}

// GetByURL retrieves a playlist by URL, or nil when not tracked.
func (r *playlistRepo) GetByURL(ctx context.Context, url string) (*models.Playlist, error) {
	var playlist models.Playlist
	if err := r.db.WithContext(ctx).Where("url = ?", url).First(&playlist).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting playlist by URL: %w", err)
	}
	return &playlist, nil
}

// GetAll retrieves all playlists, oldest first.
func (r *playlistRepo) GetAll(ctx context.Context) ([]*models.Playlist, error) {
	var playlists []*models.Playlist
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&playlists).Error; err != nil {
		return nil, fmt.Errorf("getting all playlists: %w", err)
	}
	return playlists, nil
}

// GetActive retrieves all playlists included in scheduled scans.
func (r *playlistRepo) GetActive(ctx context.Context) ([]*models.Playlist, error) {
	var playlists []*models.Playlist
	if err := r.db.WithContext(ctx).
		Where("active = ? OR active IS NULL", true).
		Order("created_at ASC").
		Find(&playlists).Error; err != nil {
		return nil, fmt.Errorf("getting active playlists: %w", err)
	}
	return playlists, nil
}

// Update updates an existing playlist.
func (r *playlistRepo) Update(ctx context.Context, playlist *models.Playlist) error {
	if err := r.db.WithContext(ctx).Save(playlist).Error; err != nil {
		return fmt.Errorf("updating playlist: %w", err)
	}
	return nil
}

// UpdateLastChecked stamps the playlist's last scan time.
func (r *playlistRepo) UpdateLastChecked(ctx context.Context, id models.ULID, at time.Time) error {
	if err := r.db.WithContext(ctx).
		Model(&models.Playlist{}).
		Where("id = ?", id).
		Update("last_checked_at", at).Error; err != nil {
		return fmt.Errorf("updating last checked: %w", err)
	}
	return nil
}

// Delete removes a playlist and all its tracked videos in one transaction.
func (r *playlistRepo) Delete(ctx context.Context, id models.ULID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("playlist_id = ?", id).Delete(&models.TrackedVideo{}).Error; err != nil {
			return fmt.Errorf("deleting playlist videos: %w", err)
		}

		res := tx.Where("id = ?", id).Delete(&models.Playlist{})
		if res.Error != nil {
			return fmt.Errorf("deleting playlist: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return models.ErrNotFound
		}
		return nil
	})
}

// Count returns the number of playlists.
func (r *playlistRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Playlist{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting playlists: %w", err)
	}
	return count, nil
}

// isUniqueViolation reports whether err is a unique constraint failure.
// The pure-Go sqlite driver surfaces these as string errors.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed")
}

// Ensure playlistRepo implements PlaylistRepository at compile time.
var _ PlaylistRepository = (*playlistRepo)(nil)
