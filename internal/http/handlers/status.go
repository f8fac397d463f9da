package handlers

import (
	"context"
	"errors"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"

	"github.com/tunearr/tunearr/internal/models"
	"github.com/tunearr/tunearr/internal/repository"
)

// StatusHandler handles the service status and manual scan endpoints.
type StatusHandler struct {
	scheduler     ScanScheduler
	playlists     repository.PlaylistRepository
	videos        repository.VideoRepository
	checkInterval string
	downloadDir   string
	logger        *slog.Logger
}

// NewStatusHandler creates a status handler. checkInterval is the
// human-readable scan cadence shown to clients.
func NewStatusHandler(
	scheduler ScanScheduler,
	playlists repository.PlaylistRepository,
	videos repository.VideoRepository,
	checkInterval string,
	downloadDir string,
	logger *slog.Logger,
) *StatusHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusHandler{
		scheduler:     scheduler,
		playlists:     playlists,
		videos:        videos,
		checkInterval: checkInterval,
		downloadDir:   downloadDir,
		logger:        logger,
	}
}

// Register registers the status routes with the API.
func (h *StatusHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getStatus",
		Method:      "GET",
		Path:        "/api/status",
		Summary:     "Service status",
		Description: "Returns monitoring state, library totals, and recent downloads",
		Tags:        []string{"System"},
	}, h.GetStatus)

	huma.Register(api, huma.Operation{
		OperationID: "checkNow",
		Method:      "POST",
		Path:        "/api/check-now",
		Summary:     "Trigger scan",
		Description: "Starts a scan of all active playlists unless one is already running",
		Tags:        []string{"System"},
	}, h.CheckNow)
}

// GetStatusInput is the input for the status endpoint.
type GetStatusInput struct{}

// GetStatusOutput is the output for the status endpoint.
type GetStatusOutput struct {
	Body StatusResponse
}

// GetStatus returns the service-wide status snapshot.
func (h *StatusHandler) GetStatus(ctx context.Context, _ *GetStatusInput) (*GetStatusOutput, error) {
	status := h.scheduler.Status()

	totalPlaylists, err := h.playlists.Count(ctx)
	if err != nil {
		h.logger.Warn("counting playlists failed", slog.String("error", err.Error()))
	}
	totalDownloads, err := h.videos.CountDownloaded(ctx)
	if err != nil {
		h.logger.Warn("counting downloads failed", slog.String("error", err.Error()))
	}
	recent, err := h.videos.RecentDownloads(ctx, 10)
	if err != nil {
		h.logger.Warn("listing recent downloads failed", slog.String("error", err.Error()))
		recent = []repository.DownloadRecord{}
	}

	return &GetStatusOutput{
		Body: StatusResponse{
			Monitoring:      status.Monitoring,
			Scanning:        status.Scanning,
			TotalPlaylists:  totalPlaylists,
			TotalDownloads:  totalDownloads,
			CurrentActivity: status.CurrentActivity,
			LastCheck:       status.LastCheckAt,
			CheckInterval:   h.checkInterval,
			DownloadDir:     h.downloadDir,
			RecentDownloads: recent,
		},
	}, nil
}

// CheckNowInput is the input for triggering a scan.
type CheckNowInput struct{}

// CheckNowOutput is the output for triggering a scan.
type CheckNowOutput struct {
	Body TriggerResponse
}

// CheckNow starts a full scan. An already running scan is reported as a
// non-fatal rejection, not an error.
func (h *StatusHandler) CheckNow(_ context.Context, _ *CheckNowInput) (*CheckNowOutput, error) {
	if err := h.scheduler.TriggerScan(); err != nil {
		if errors.Is(err, models.ErrScanInProgress) {
			return &CheckNowOutput{
				Body: TriggerResponse{Success: false, Message: "Check already in progress"},
			}, nil
		}
		return nil, huma.Error500InternalServerError("triggering scan", err)
	}

	return &CheckNowOutput{
		Body: TriggerResponse{Success: true, Message: "Playlist check started"},
	}, nil
}
