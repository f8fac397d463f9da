// Package downloader turns a tracked video into an MP3 on disk, handling
// content dedup, tagging, and status bookkeeping for each attempt.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/tunearr/tunearr/internal/config"
	"github.com/tunearr/tunearr/internal/dedup"
	"github.com/tunearr/tunearr/internal/extractor"
	"github.com/tunearr/tunearr/internal/models"
	"github.com/tunearr/tunearr/internal/observability"
	"github.com/tunearr/tunearr/internal/repository"
)

// Tagger writes metadata onto an extracted file.
type Tagger interface {
	Tag(ctx context.Context, path string, meta extractor.TrackMetadata) error
}

// Hasher fingerprints a file's audio content.
type Hasher func(path string) (string, error)

// Result describes the outcome of one download attempt.
type Result struct {
	Status    models.VideoStatus
	FilePath  string
	Duplicate bool
	Err       error
}

// Executor downloads one video at a time: extract, fingerprint, dedup,
// tag, record. All status transitions are persisted here so callers only
// consume the Result.
type Executor struct {
	extractor extractor.AudioExtractor
	tagger    Tagger
	index     *dedup.Index
	videos    repository.VideoRepository
	hash      Hasher

	downloadDir string
	monitorCfg  config.MonitorConfig
	logger      *slog.Logger
	rng         *rand.Rand
}

// NewExecutor creates an Executor. tagger may be nil to skip tagging.
func NewExecutor(
	ext extractor.AudioExtractor,
	tagger Tagger,
	index *dedup.Index,
	videos repository.VideoRepository,
	downloadDir string,
	monitorCfg config.MonitorConfig,
	logger *slog.Logger,
) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		extractor:   ext,
		tagger:      tagger,
		index:       index,
		videos:      videos,
		hash:        dedup.Hash,
		downloadDir: downloadDir,
		monitorCfg:  monitorCfg,
		logger:      observability.WithComponent(logger, "downloader"),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WithHasher overrides the content hasher. Used by tests.
func (e *Executor) WithHasher(h Hasher) *Executor {
	e.hash = h
	return e
}

// Download extracts the video's audio and records the outcome on its row.
func (e *Executor) Download(ctx context.Context, video *models.TrackedVideo) Result {
	log := e.logger.With(
		slog.String("video_id", video.VideoID),
		slog.String("title", video.Title),
	)

	res, err := e.extractor.Extract(ctx, video.WatchURL(), e.downloadDir)
	if err != nil {
		return e.recordFailure(ctx, video, err, log)
	}

	hash, err := e.hash(res.FilePath)
	if err != nil {
		// An unverifiable file would be invisible to dedup forever; drop
		// it and let the next scan retry.
		if rmErr := os.Remove(res.FilePath); rmErr != nil {
			log.Warn("removing unverifiable file failed",
				slog.String("file", res.FilePath),
				slog.String("error", rmErr.Error()),
			)
		}
		return e.recordFailure(ctx, video, fmt.Errorf("fingerprinting audio: %w", err), log)
	}

	match, err := e.index.Lookup(ctx, hash)
	if err != nil {
		log.Warn("dedup lookup failed", slog.String("error", err.Error()))
	}
	if match != nil && match.Video.ID != video.ID {
		// Identical audio already on disk: drop the fresh copy and point
		// this row at the existing file.
		if rmErr := os.Remove(res.FilePath); rmErr != nil {
			log.Warn("removing duplicate file failed",
				slog.String("file", res.FilePath),
				slog.String("error", rmErr.Error()),
			)
		}
		log.Info("duplicate content, reusing existing file",
			slog.String("existing_file", match.FilePath),
			slog.String("owner_video", match.Video.VideoID),
		)
		return e.recordDuplicate(ctx, video, hash, match, log)
	}

	if e.tagger != nil {
		meta := extractor.TrackMetadata{
			Title:        video.Title,
			Artist:       video.Uploader,
			Album:        video.Album,
			Year:         video.Year,
			ThumbnailURL: video.ThumbnailURL,
		}
		if meta.Title == "" {
			meta.Title = res.Title
		}
		if meta.Artist == "" {
			meta.Artist = res.Uploader
		}
		if tagErr := e.tagger.Tag(ctx, res.FilePath, meta); tagErr != nil {
			// Tagging is cosmetic; the download stands.
			log.Warn("tagging failed", slog.String("error", tagErr.Error()))
		}
	}

	return e.recordDownload(ctx, video, hash, res.FilePath, nil, log)
}

func (e *Executor) recordFailure(ctx context.Context, video *models.TrackedVideo, err error, log *slog.Logger) Result {
	var restricted *extractor.RestrictedError
	if errors.As(err, &restricted) {
		log.Info("video requires authentication, skipping permanently",
			slog.String("availability", restricted.Availability),
		)
		if dbErr := e.videos.MarkSkipped(ctx, video.ID, restricted.Error()); dbErr != nil {
			log.Error("marking skipped failed", slog.String("error", dbErr.Error()))
		}
		return Result{Status: models.VideoStatusSkipped, Err: err}
	}

	log.Warn("download failed", slog.String("error", err.Error()))
	if dbErr := e.videos.MarkFailed(ctx, video.ID, err.Error()); dbErr != nil {
		log.Error("marking failed failed", slog.String("error", dbErr.Error()))
	}
	return Result{Status: models.VideoStatusFailed, Err: err}
}

func (e *Executor) recordDuplicate(ctx context.Context, video *models.TrackedVideo, hash string, match *dedup.Match, log *slog.Logger) Result {
	size := match.Video.FileSize
	if info, err := os.Stat(match.FilePath); err == nil {
		size = info.Size()
	}

	if err := e.videos.MarkDownloaded(ctx, video.ID, hash, match.FilePath, size, &match.Video.ID); err != nil {
		log.Error("recording duplicate download failed", slog.String("error", err.Error()))
		return Result{Status: models.VideoStatusFailed, Err: err}
	}
	return Result{
		Status:    models.VideoStatusDownloaded,
		FilePath:  match.FilePath,
		Duplicate: true,
	}
}

func (e *Executor) recordDownload(ctx context.Context, video *models.TrackedVideo, hash, path string, duplicateOf *models.ULID, log *slog.Logger) Result {
	var size int64
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}

	if err := e.videos.MarkDownloaded(ctx, video.ID, hash, path, size, duplicateOf); err != nil {
		log.Error("recording download failed", slog.String("error", err.Error()))
		return Result{Status: models.VideoStatusFailed, Err: err}
	}

	log.Info("download complete",
		slog.String("file", path),
		slog.Int64("size", size),
	)
	return Result{Status: models.VideoStatusDownloaded, FilePath: path}
}

// Delay sleeps for a uniformly random duration between the configured
// bounds. It returns early with ctx.Err() when the context is cancelled,
// so shutdown never waits out a politeness delay.
func (e *Executor) Delay(ctx context.Context) error {
	if !e.monitorCfg.DelayEnabled {
		return nil
	}

	min, max := e.monitorCfg.DelayMin, e.monitorCfg.DelayMax
	if max < min {
		max = min
	}

	d := min
	if span := max - min; span > 0 {
		d += time.Duration(e.rng.Int63n(int64(span) + 1))
	}
	if d <= 0 {
		return nil
	}

	e.logger.Debug("inter-download delay", slog.Duration("duration", d))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
