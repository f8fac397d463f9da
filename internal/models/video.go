package models

import (
	"gorm.io/gorm"
)

// VideoStatus represents the download lifecycle state of a tracked video.
type VideoStatus string

const (
	// VideoStatusPending indicates the video is queued for download.
	VideoStatusPending VideoStatus = "pending"
	// VideoStatusDownloaded indicates the audio was downloaded successfully.
	VideoStatusDownloaded VideoStatus = "downloaded"
	// VideoStatusFailed indicates the last download attempt failed and will
	// be retried on the next scan.
	VideoStatusFailed VideoStatus = "failed"
	// VideoStatusSkipped indicates the video is permanently excluded, for
	// example because it requires authentication.
	VideoStatusSkipped VideoStatus = "skipped"
)

// ValidVideoStatus reports whether s is a known status value.
func ValidVideoStatus(s VideoStatus) bool {
	switch s {
	case VideoStatusPending, VideoStatusDownloaded, VideoStatusFailed, VideoStatusSkipped:
		return true
	}
	return false
}

// TrackedVideo represents a single video known to the system, scoped to one
// playlist. The same video appearing in two playlists is two rows; content
// hash dedup prevents storing the audio twice.
type TrackedVideo struct {
	BaseModel

	// PlaylistID is the owning playlist.
	PlaylistID ULID `gorm:"not null;index;uniqueIndex:idx_playlist_video;type:varchar(26)" json:"playlist_id"`

	// VideoID is the external video identifier.
	VideoID string `gorm:"not null;size:64;uniqueIndex:idx_playlist_video" json:"video_id"`

	// Title of the track as reported by the listing tool.
	Title string `gorm:"size:512" json:"title"`

	// Uploader is the artist/channel name.
	Uploader string `gorm:"size:255" json:"uploader"`

	// Duration in seconds.
	Duration int `gorm:"default:0" json:"duration"`

	// Album and Year are optional tag metadata captured at listing time.
	Album string `gorm:"size:255" json:"album,omitempty"`
	Year  int    `gorm:"default:0" json:"year,omitempty"`

	// ThumbnailURL is used for cover-art embedding.
	ThumbnailURL string `gorm:"size:2048" json:"thumbnail_url,omitempty"`

	// Status drives the download lifecycle.
	Status VideoStatus `gorm:"not null;default:'pending';size:20;index" json:"status"`

	// ContentHash fingerprints the decoded audio content. Nil until downloaded.
	ContentHash *string `gorm:"size:64;index" json:"content_hash,omitempty"`

	// FilePath is where the audio lives on disk. Nil until downloaded.
	FilePath *string `gorm:"size:4096" json:"file_path,omitempty"`

	// FileSize in bytes of the downloaded file.
	FileSize int64 `gorm:"default:0" json:"file_size"`

	// DownloadedAt is when the download completed.
	DownloadedAt *Time `json:"downloaded_at,omitempty"`

	// DuplicateOf holds the content hash owner's video row ID when this row
	// shares a previously downloaded file instead of owning its own copy.
	DuplicateOf *ULID `gorm:"type:varchar(26)" json:"duplicate_of,omitempty"`

	// LastError records why the most recent download attempt failed.
	LastError string `gorm:"size:4096" json:"last_error,omitempty"`
}

// TableName returns the table name for TrackedVideo.
func (TrackedVideo) TableName() string {
	return "tracked_videos"
}

// IsDownloaded reports whether the video has a completed download.
func (v *TrackedVideo) IsDownloaded() bool {
	return v.Status == VideoStatusDownloaded
}

// OwnsFile reports whether this row owns its on-disk file, as opposed to
// referencing another row's file via content-hash dedup.
func (v *TrackedVideo) OwnsFile() bool {
	return v.Status == VideoStatusDownloaded && v.DuplicateOf == nil
}

// WatchURL returns the canonical watch URL for the video.
func (v *TrackedVideo) WatchURL() string {
	return "https://www.youtube.com/watch?v=" + v.VideoID
}

// Validate performs basic validation on the tracked video.
func (v *TrackedVideo) Validate() error {
	if v.PlaylistID.IsZero() {
		return ErrPlaylistIDRequired
	}
	if v.VideoID == "" {
		return ErrVideoIDRequired
	}
	if v.Status == "" {
		v.Status = VideoStatusPending
	}
	if !ValidVideoStatus(v.Status) {
		return ErrInvalidVideoStatus
	}
	return nil
}

// BeforeCreate is a GORM hook that validates the video and generates a ULID.
func (v *TrackedVideo) BeforeCreate(tx *gorm.DB) error {
	if err := v.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return v.Validate()
}

// PlaylistStats summarizes the lifecycle states of a playlist's videos.
// The counts always sum to Total.
type PlaylistStats struct {
	Downloaded int64 `json:"downloaded"`
	Pending    int64 `json:"pending"`
	Failed     int64 `json:"failed"`
	Skipped    int64 `json:"skipped"`
	Total      int64 `json:"total"`
}
