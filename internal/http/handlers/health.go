package handlers

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

// HealthHandler handles the liveness probe.
type HealthHandler struct {
	scheduler ScanScheduler
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(scheduler ScanScheduler) *HealthHandler {
	return &HealthHandler{scheduler: scheduler}
}

// HealthInput is the input for the health check endpoint.
type HealthInput struct{}

// HealthOutput is the output for the health check endpoint.
type HealthOutput struct {
	Body HealthResponse
}

// Register registers the health route with the API.
func (h *HealthHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getHealth",
		Method:      "GET",
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns service liveness and monitoring state",
		Tags:        []string{"System"},
	}, h.GetHealth)
}

// GetHealth reports liveness.
func (h *HealthHandler) GetHealth(_ context.Context, _ *HealthInput) (*HealthOutput, error) {
	return &HealthOutput{
		Body: HealthResponse{
			Status:     "healthy",
			Monitoring: h.scheduler.Status().Monitoring,
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
		},
	}, nil
}
