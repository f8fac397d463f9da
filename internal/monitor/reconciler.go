// Package monitor keeps tracked playlists in sync with their remote
// source: it discovers new tracks, drains pending downloads, and heals
// records whose files disappeared from disk.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/tunearr/tunearr/internal/downloader"
	"github.com/tunearr/tunearr/internal/extractor"
	"github.com/tunearr/tunearr/internal/models"
	"github.com/tunearr/tunearr/internal/observability"
	"github.com/tunearr/tunearr/internal/repository"
)

// ScanReport summarizes one playlist scan.
type ScanReport struct {
	PlaylistName      string `json:"playlist_name"`
	NewVideos         int    `json:"new_videos"`
	AlreadyTracked    int    `json:"already_tracked"`
	Downloaded        int    `json:"downloaded"`
	Failed            int    `json:"failed"`
	Skipped           int    `json:"skipped"`
	RemovedFromSource int    `json:"removed_from_source"`
}

// ValidationReport summarizes a download validation pass.
type ValidationReport struct {
	ValidCount int `json:"valid_count"`
	FixedCount int `json:"fixed_count"`
}

// ActivityFunc receives human-readable progress updates during a scan.
type ActivityFunc func(activity string)

// Reconciler drives the scan cycle for playlists.
type Reconciler struct {
	playlists repository.PlaylistRepository
	videos    repository.VideoRepository
	lister    extractor.PlaylistLister
	executor  *downloader.Executor
	logger    *slog.Logger
	activity  ActivityFunc
}

// NewReconciler creates a Reconciler.
func NewReconciler(
	playlists repository.PlaylistRepository,
	videos repository.VideoRepository,
	lister extractor.PlaylistLister,
	executor *downloader.Executor,
	logger *slog.Logger,
) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		playlists: playlists,
		videos:    videos,
		lister:    lister,
		executor:  executor,
		logger:    observability.WithComponent(logger, "monitor"),
		activity:  func(string) {},
	}
}

// SetActivityFunc registers a progress callback. Must be called before the
// reconciler is used concurrently.
func (r *Reconciler) SetActivityFunc(fn ActivityFunc) {
	if fn != nil {
		r.activity = fn
	}
}

// ScanPlaylist lists the playlist's current contents, tracks unseen
// entries, and drains the pending queue through the download executor.
// Tracks that vanished from the source are counted but left untouched.
func (r *Reconciler) ScanPlaylist(ctx context.Context, playlist *models.Playlist) (*ScanReport, error) {
	log := r.logger.With(
		slog.String("playlist_id", playlist.ID.String()),
		slog.String("playlist", playlist.DisplayName()),
	)
	r.activity(fmt.Sprintf("Processing playlist %s", playlist.DisplayName()))

	info, err := r.lister.ListPlaylist(ctx, playlist.URL)
	if err != nil {
		return nil, fmt.Errorf("listing playlist %s: %w", playlist.DisplayName(), err)
	}

	report := &ScanReport{PlaylistName: playlist.DisplayName()}

	// Adopt the source title on first contact.
	if playlist.Name == "" && info.Title != "" {
		playlist.Name = info.Title
		report.PlaylistName = info.Title
		if err := r.playlists.Update(ctx, playlist); err != nil {
			log.Warn("updating playlist name failed", slog.String("error", err.Error()))
		}
	}

	listed := make(map[string]bool, len(info.Entries))
	for _, entry := range info.Entries {
		listed[entry.ID] = true

		video := &models.TrackedVideo{
			PlaylistID:   playlist.ID,
			VideoID:      entry.ID,
			Title:        entry.Title,
			Uploader:     entry.Artist,
			Duration:     entry.Duration,
			Album:        entry.Album,
			Year:         entry.Year,
			ThumbnailURL: entry.ThumbnailURL,
		}

		created, err := r.videos.Upsert(ctx, video)
		if err != nil {
			observability.WithError(log, err).Error("tracking video failed",
				slog.String("video_id", entry.ID),
			)
			continue
		}

		if created {
			report.NewVideos++
			if entry.Restricted {
				// Known unreachable, never queue it.
				if err := r.videos.MarkSkipped(ctx, video.ID, "requires authentication"); err != nil {
					log.Warn("marking restricted video skipped failed",
						slog.String("video_id", entry.ID),
						slog.String("error", err.Error()),
					)
				}
				report.Skipped++
			}
		} else {
			report.AlreadyTracked++
		}
	}

	// Tracks removed upstream stay downloaded locally.
	tracked, err := r.videos.GetByPlaylist(ctx, playlist.ID)
	if err != nil {
		log.Warn("listing tracked videos failed", slog.String("error", err.Error()))
	} else {
		for _, v := range tracked {
			if !listed[v.VideoID] {
				report.RemovedFromSource++
			}
		}
	}

	if err := r.drainPending(ctx, playlist, report, log); err != nil {
		return report, err
	}

	if err := r.playlists.UpdateLastChecked(ctx, playlist.ID, time.Now().UTC()); err != nil {
		log.Warn("updating last checked failed", slog.String("error", err.Error()))
	}

	log.Info("playlist scan complete",
		slog.Int("new", report.NewVideos),
		slog.Int("downloaded", report.Downloaded),
		slog.Int("failed", report.Failed),
		slog.Int("skipped", report.Skipped),
		slog.Int("removed_from_source", report.RemovedFromSource),
	)
	return report, nil
}

// drainPending downloads every queued video sequentially, pausing between
// successful downloads.
func (r *Reconciler) drainPending(ctx context.Context, playlist *models.Playlist, report *ScanReport, log *slog.Logger) error {
	pending, err := r.videos.GetPending(ctx, playlist.ID)
	if err != nil {
		return fmt.Errorf("listing pending videos: %w", err)
	}

	for i, video := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}

		r.activity(fmt.Sprintf("Downloading %s (%d/%d)", video.Title, i+1, len(pending)))

		res := r.executor.Download(ctx, video)
		switch res.Status {
		case models.VideoStatusDownloaded:
			report.Downloaded++
		case models.VideoStatusSkipped:
			report.Skipped++
		default:
			report.Failed++
		}

		// Politeness delay only after a real fetch succeeded.
		if res.Status == models.VideoStatusDownloaded && i < len(pending)-1 {
			if err := r.executor.Delay(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// ScanAll scans every active playlist. A failing playlist is logged and
// the cycle moves on; only context cancellation aborts the whole run.
func (r *Reconciler) ScanAll(ctx context.Context) ([]*ScanReport, error) {
	playlists, err := r.playlists.GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing active playlists: %w", err)
	}

	reports := make([]*ScanReport, 0, len(playlists))
	for _, playlist := range playlists {
		if err := ctx.Err(); err != nil {
			return reports, err
		}

		report, err := r.ScanPlaylist(ctx, playlist)
		if err != nil {
			if ctx.Err() != nil {
				return reports, ctx.Err()
			}
			observability.WithError(r.logger, err).Error("playlist scan failed",
				slog.String("playlist", playlist.DisplayName()),
			)
			continue
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// ValidateDownloads checks every downloaded record against the filesystem
// and resets records whose file has gone missing so the next scan re-fetches
// them. Safe to run repeatedly.
func (r *Reconciler) ValidateDownloads(ctx context.Context) (*ValidationReport, error) {
	r.activity("Validating downloads")
	defer r.activity("Idle")

	downloaded, err := r.videos.GetDownloaded(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing downloaded videos: %w", err)
	}

	report := &ValidationReport{}
	for _, video := range downloaded {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if video.FilePath != nil && *video.FilePath != "" {
			if _, statErr := os.Stat(*video.FilePath); statErr == nil {
				report.ValidCount++
				continue
			}
		}

		r.logger.Warn("downloaded file missing, resetting record",
			slog.String("video_id", video.VideoID),
			slog.String("title", video.Title),
		)
		if err := r.videos.ResetToPending(ctx, video.ID); err != nil {
			observability.WithError(r.logger, err).Error("resetting video failed",
				slog.String("video_id", video.VideoID),
			)
			continue
		}
		report.FixedCount++
	}

	r.logger.Info("download validation complete",
		slog.Int("valid", report.ValidCount),
		slog.Int("fixed", report.FixedCount),
	)
	return report, nil
}
