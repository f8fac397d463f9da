package dedup

import (
	"context"
	"log/slog"
	"os"

	"github.com/tunearr/tunearr/internal/models"
	"github.com/tunearr/tunearr/internal/observability"
	"github.com/tunearr/tunearr/internal/repository"
)

// Match describes an existing download with identical audio content.
type Match struct {
	// Video is the row that owns the physical file.
	Video *models.TrackedVideo
	// FilePath is the owning file's location.
	FilePath string
}

// Index answers "has this audio been downloaded before?" by content hash.
// Registration is implicit: MarkDownloaded stores the hash, so the index
// is always a view over the video table.
type Index struct {
	videos repository.VideoRepository
	logger *slog.Logger
}

// NewIndex creates a content-hash index over the video repository.
func NewIndex(videos repository.VideoRepository, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{
		videos: videos,
		logger: observability.WithComponent(logger, "dedup"),
	}
}

// Lookup returns the existing download matching hash, or nil when the
// content is unseen. Rows whose file path was lost are ignored.
func (i *Index) Lookup(ctx context.Context, hash string) (*Match, error) {
	if hash == "" {
		return nil, nil
	}
	video, err := i.videos.FindByContentHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if video == nil || video.FilePath == nil || *video.FilePath == "" {
		return nil, nil
	}
	// A stale row whose file vanished must not claim the fresh copy; the
	// validation pass resets it separately.
	if _, err := os.Stat(*video.FilePath); err != nil {
		i.logger.Debug("ignoring duplicate candidate, file missing",
			slog.String("hash", hash),
			slog.String("file", *video.FilePath),
		)
		return nil, nil
	}

	i.logger.Debug("duplicate content found",
		slog.String("hash", hash),
		slog.String("owner_video", video.VideoID),
		slog.String("file", *video.FilePath),
	)
	return &Match{Video: video, FilePath: *video.FilePath}, nil
}
