package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"

	"github.com/tunearr/tunearr/internal/extractor"
	"github.com/tunearr/tunearr/internal/models"
	"github.com/tunearr/tunearr/internal/repository"
)

// PlaylistHandler handles playlist management endpoints.
type PlaylistHandler struct {
	playlists repository.PlaylistRepository
	videos    repository.VideoRepository
	lister    extractor.PlaylistLister
	scheduler ScanScheduler
	logger    *slog.Logger
}

// NewPlaylistHandler creates a playlist handler.
func NewPlaylistHandler(
	playlists repository.PlaylistRepository,
	videos repository.VideoRepository,
	lister extractor.PlaylistLister,
	scheduler ScanScheduler,
	logger *slog.Logger,
) *PlaylistHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlaylistHandler{
		playlists: playlists,
		videos:    videos,
		lister:    lister,
		scheduler: scheduler,
		logger:    logger,
	}
}

// Register registers the playlist routes with the API.
func (h *PlaylistHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listPlaylists",
		Method:      "GET",
		Path:        "/api/playlists",
		Summary:     "List playlists",
		Description: "Returns all monitored playlists with their download counts",
		Tags:        []string{"Playlists"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "addPlaylist",
		Method:      "POST",
		Path:        "/api/playlists",
		Summary:     "Add playlist",
		Description: "Starts monitoring a playlist and kicks off its initial scan",
		Tags:        []string{"Playlists"},
	}, h.Add)

	huma.Register(api, huma.Operation{
		OperationID: "deletePlaylist",
		Method:      "DELETE",
		Path:        "/api/playlists/{id}",
		Summary:     "Delete playlist",
		Description: "Stops monitoring a playlist and removes its tracked videos",
		Tags:        []string{"Playlists"},
	}, h.Delete)

	huma.Register(api, huma.Operation{
		OperationID: "getPlaylistStats",
		Method:      "GET",
		Path:        "/api/playlists/{id}/stats",
		Summary:     "Playlist statistics",
		Description: "Returns per-status video counts for a playlist",
		Tags:        []string{"Playlists"},
	}, h.Stats)
}

// ListPlaylistsInput is the input for listing playlists.
type ListPlaylistsInput struct{}

// ListPlaylistsOutput is the output for listing playlists.
type ListPlaylistsOutput struct {
	Body []PlaylistResponse
}

// List returns all playlists with stats folded in.
func (h *PlaylistHandler) List(ctx context.Context, _ *ListPlaylistsInput) (*ListPlaylistsOutput, error) {
	playlists, err := h.playlists.GetAll(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("listing playlists", err)
	}

	out := &ListPlaylistsOutput{Body: make([]PlaylistResponse, 0, len(playlists))}
	for _, p := range playlists {
		stats, err := h.videos.Stats(ctx, p.ID)
		if err != nil {
			h.logger.Warn("playlist stats failed",
				slog.String("playlist_id", p.ID.String()),
				slog.String("error", err.Error()),
			)
			stats = &models.PlaylistStats{}
		}
		out.Body = append(out.Body, playlistResponse(p, stats))
	}
	return out, nil
}

// AddPlaylistInput is the input for adding a playlist.
type AddPlaylistInput struct {
	Body struct {
		URL  string `json:"url" doc:"Playlist URL containing a list marker"`
		Name string `json:"name,omitempty" doc:"Optional display name; defaults to the source title"`
	}
}

// AddPlaylistOutput is the output for adding a playlist.
type AddPlaylistOutput struct {
	Body struct {
		ID           string `json:"id"`
		PlaylistName string `json:"playlist_name"`
		TotalVideos  int    `json:"total_videos"`
		Message      string `json:"message"`
	}
}

// Add validates the URL, lists the playlist once, stores it, and schedules
// the initial scan in the background.
func (h *PlaylistHandler) Add(ctx context.Context, input *AddPlaylistInput) (*AddPlaylistOutput, error) {
	playlist := &models.Playlist{
		URL:  input.Body.URL,
		Name: input.Body.Name,
	}
	playlist.Sanitize()

	if err := playlist.Validate(); err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}

	info, err := h.lister.ListPlaylist(ctx, playlist.URL)
	if err != nil {
		return nil, huma.Error400BadRequest("could not extract playlist information", err)
	}
	if len(info.Entries) == 0 {
		return nil, huma.Error400BadRequest("playlist is empty")
	}

	if playlist.Name == "" {
		playlist.Name = info.Title
	}

	if err := h.playlists.Create(ctx, playlist); err != nil {
		if errors.Is(err, models.ErrDuplicatePlaylist) {
			return nil, huma.Error409Conflict("playlist is already monitored")
		}
		return nil, huma.Error500InternalServerError("creating playlist", err)
	}

	// The initial fetch can take minutes; run it behind the response.
	if err := h.scheduler.ScanPlaylistAsync(playlist); err != nil {
		h.logger.Info("initial scan deferred to next cycle",
			slog.String("playlist", playlist.DisplayName()),
			slog.String("reason", err.Error()),
		)
	}

	out := &AddPlaylistOutput{}
	out.Body.ID = playlist.ID.String()
	out.Body.PlaylistName = playlist.Name
	out.Body.TotalVideos = len(info.Entries)
	out.Body.Message = fmt.Sprintf("Added playlist: %s (%d videos)", playlist.Name, len(info.Entries))
	return out, nil
}

// DeletePlaylistInput is the input for deleting a playlist.
type DeletePlaylistInput struct {
	ID string `path:"id" doc:"Playlist ID"`
}

// DeletePlaylistOutput is the output for deleting a playlist.
type DeletePlaylistOutput struct {
	Body MessageResponse
}

// Delete removes a playlist and its tracked videos.
func (h *PlaylistHandler) Delete(ctx context.Context, input *DeletePlaylistInput) (*DeletePlaylistOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error404NotFound("playlist not found")
	}

	if err := h.playlists.Delete(ctx, id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, huma.Error404NotFound("playlist not found")
		}
		return nil, huma.Error500InternalServerError("deleting playlist", err)
	}

	return &DeletePlaylistOutput{
		Body: MessageResponse{Message: "Playlist removed from monitoring"},
	}, nil
}

// PlaylistStatsInput is the input for playlist statistics.
type PlaylistStatsInput struct {
	ID string `path:"id" doc:"Playlist ID"`
}

// PlaylistStatsOutput is the output for playlist statistics.
type PlaylistStatsOutput struct {
	Body models.PlaylistStats
}

// Stats returns per-status counts for one playlist.
func (h *PlaylistHandler) Stats(ctx context.Context, input *PlaylistStatsInput) (*PlaylistStatsOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error404NotFound("playlist not found")
	}

	if _, err := h.playlists.GetByID(ctx, id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, huma.Error404NotFound("playlist not found")
		}
		return nil, huma.Error500InternalServerError("getting playlist", err)
	}

	stats, err := h.videos.Stats(ctx, id)
	if err != nil {
		return nil, huma.Error500InternalServerError("computing stats", err)
	}
	return &PlaylistStatsOutput{Body: *stats}, nil
}
