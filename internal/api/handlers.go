package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/reelboard/backend/internal/models"
	"github.com/reelboard/backend/internal/pipeline"
	"github.com/reelboard/backend/internal/storage"
)

// HistoryReader reads persisted generations.
type HistoryReader interface {
	List(ctx context.Context, limit, offset int) ([]models.SlideshowGeneration, error)
	Get(ctx context.Context, id uuid.UUID) (*models.SlideshowGeneration, error)
	Count(ctx context.Context) (int64, error)
}

// Handler handles API requests.
type Handler struct {
	store         storage.Store
	planner       pipeline.Planner
	captioner     pipeline.Captioner
	orchestrator  *pipeline.Orchestrator
	history       HistoryReader
	defaultFrames int
}

// NewHandler creates a new API handler. history may be nil when
// persistence is disabled.
func NewHandler(store storage.Store, p pipeline.Planner, cap pipeline.Captioner, orch *pipeline.Orchestrator, history HistoryReader, defaultFrames int) *Handler {
	if defaultFrames < 1 {
		defaultFrames = 4
	}
	return &Handler{
		store:         store,
		planner:       p,
		captioner:     cap,
		orchestrator:  orch,
		history:       history,
		defaultFrames: defaultFrames,
	}
}

// HandleHealth returns server health status.
func (h *Handler) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}
