package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"

	"github.com/tunearr/tunearr/internal/monitor"
	"github.com/tunearr/tunearr/internal/repository"
)

// DownloadValidator re-checks downloaded records against the filesystem.
type DownloadValidator interface {
	ValidateDownloads(ctx context.Context) (*monitor.ValidationReport, error)
}

// DownloadsHandler handles download history and validation endpoints.
type DownloadsHandler struct {
	videos    repository.VideoRepository
	validator DownloadValidator
	logger    *slog.Logger
}

// NewDownloadsHandler creates a downloads handler.
func NewDownloadsHandler(videos repository.VideoRepository, validator DownloadValidator, logger *slog.Logger) *DownloadsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DownloadsHandler{
		videos:    videos,
		validator: validator,
		logger:    logger,
	}
}

// Register registers the download routes with the API.
func (h *DownloadsHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listDownloads",
		Method:      "GET",
		Path:        "/api/downloads",
		Summary:     "Recent downloads",
		Description: "Returns the most recent downloads, newest first",
		Tags:        []string{"Downloads"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "validateDownloads",
		Method:      "POST",
		Path:        "/api/validate-downloads",
		Summary:     "Validate downloads",
		Description: "Checks downloaded files on disk and queues missing ones for re-download",
		Tags:        []string{"Downloads"},
	}, h.Validate)
}

// ListDownloadsInput is the input for listing downloads.
type ListDownloadsInput struct {
	Limit int `query:"limit" default:"50" minimum:"1" maximum:"500" doc:"Maximum records returned"`
}

// ListDownloadsOutput is the output for listing downloads.
type ListDownloadsOutput struct {
	Body []repository.DownloadRecord
}

// List returns recent download records.
func (h *DownloadsHandler) List(ctx context.Context, input *ListDownloadsInput) (*ListDownloadsOutput, error) {
	records, err := h.videos.RecentDownloads(ctx, input.Limit)
	if err != nil {
		return nil, huma.Error500InternalServerError("listing downloads", err)
	}
	if records == nil {
		records = []repository.DownloadRecord{}
	}
	return &ListDownloadsOutput{Body: records}, nil
}

// ValidateDownloadsInput is the input for download validation.
type ValidateDownloadsInput struct{}

// ValidateDownloadsOutput is the output for download validation.
type ValidateDownloadsOutput struct {
	Body struct {
		Success    bool   `json:"success"`
		ValidCount int    `json:"valid_count"`
		FixedCount int    `json:"fixed_count"`
		Message    string `json:"message"`
	}
}

// Validate runs a validation pass and reports what it fixed.
func (h *DownloadsHandler) Validate(ctx context.Context, _ *ValidateDownloadsInput) (*ValidateDownloadsOutput, error) {
	report, err := h.validator.ValidateDownloads(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("validating downloads", err)
	}

	out := &ValidateDownloadsOutput{}
	out.Body.Success = true
	out.Body.ValidCount = report.ValidCount
	out.Body.FixedCount = report.FixedCount
	out.Body.Message = fmt.Sprintf("Validation complete: %d valid, %d queued for re-download",
		report.ValidCount, report.FixedCount)
	return out, nil
}
