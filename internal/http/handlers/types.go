// Package handlers provides the HTTP API handlers for tunearr.
package handlers

import (
	"time"

	"github.com/tunearr/tunearr/internal/models"
	"github.com/tunearr/tunearr/internal/monitor"
	"github.com/tunearr/tunearr/internal/repository"
)

// ScanScheduler is the scheduler surface the handlers need.
type ScanScheduler interface {
	// TriggerScan starts a full scan; models.ErrScanInProgress when busy.
	TriggerScan() error
	// ScanPlaylistAsync scans one playlist in the background.
	ScanPlaylistAsync(playlist *models.Playlist) error
	// Status returns the current scheduler snapshot.
	Status() monitor.Status
}

// PlaylistResponse is a playlist with its per-status counts folded in.
type PlaylistResponse struct {
	ID            string     `json:"id"`
	URL           string     `json:"url"`
	Name          string     `json:"name"`
	Active        bool       `json:"active"`
	LastCheckedAt *time.Time `json:"last_checked_at"`
	Downloaded    int64      `json:"downloaded"`
	Pending       int64      `json:"pending"`
	Failed        int64      `json:"failed"`
	Skipped       int64      `json:"skipped"`
	Total         int64      `json:"total"`
}

// StatusResponse is the service-wide status snapshot.
type StatusResponse struct {
	Monitoring      bool                        `json:"monitoring"`
	Scanning        bool                        `json:"scanning"`
	TotalPlaylists  int64                       `json:"total_playlists"`
	TotalDownloads  int64                       `json:"total_downloads"`
	CurrentActivity string                      `json:"current_activity"`
	LastCheck       *time.Time                  `json:"last_check"`
	CheckInterval   string                      `json:"check_interval"`
	DownloadDir     string                      `json:"download_dir"`
	RecentDownloads []repository.DownloadRecord `json:"recent_downloads"`
}

// MessageResponse carries a human-readable outcome.
type MessageResponse struct {
	Message string `json:"message"`
}

// TriggerResponse reports whether an asynchronous action started.
type TriggerResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// HealthResponse is the liveness probe payload.
type HealthResponse struct {
	Status     string `json:"status"`
	Monitoring bool   `json:"monitoring"`
	Timestamp  string `json:"timestamp"`
}

func playlistResponse(p *models.Playlist, stats *models.PlaylistStats) PlaylistResponse {
	resp := PlaylistResponse{
		ID:     p.ID.String(),
		URL:    p.URL,
		Name:   p.DisplayName(),
		Active: p.IsActive(),
	}
	if p.LastCheckedAt != nil {
		t := time.Time(*p.LastCheckedAt)
		resp.LastCheckedAt = &t
	}
	if stats != nil {
		resp.Downloaded = stats.Downloaded
		resp.Pending = stats.Pending
		resp.Failed = stats.Failed
		resp.Skipped = stats.Skipped
		resp.Total = stats.Total
	}
	return resp
}
