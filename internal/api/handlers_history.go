// handlers_history.go - Persisted generation browsing handlers
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"
	"gorm.io/gorm"
)

type historyListResponse struct {
	Generations interface{} `json:"generations"`
	Limit       int         `json:"limit"`
	Offset      int         `json:"offset"`
	Total       int64       `json:"total"`
}

// HandleHistoryList returns persisted generations, newest first.
func (h *Handler) HandleHistoryList(c echo.Context) error {
	if h.history == nil {
		return NewInternalError("history store not configured", nil)
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if offset < 0 {
		offset = 0
	}

	ctx := c.Request().Context()
	rows, err := h.history.List(ctx, limit, offset)
	if err != nil {
		return NewInternalError("failed to list generations", err)
	}
	total, err := h.history.Count(ctx)
	if err != nil {
		return NewInternalError("failed to count generations", err)
	}

	return c.JSON(http.StatusOK, historyListResponse{
		Generations: rows,
		Limit:       limit,
		Offset:      offset,
		Total:       total,
	})
}

// HandleHistoryDetail returns one persisted generation.
func (h *Handler) HandleHistoryDetail(c echo.Context) error {
	gen, err := h.loadGeneration(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, gen)
}

// HandleHistoryDetailMsgpack returns one generation in MessagePack format
// for clients fetching large batches.
func (h *Handler) HandleHistoryDetailMsgpack(c echo.Context) error {
	gen, err := h.loadGeneration(c)
	if err != nil {
		return err
	}

	data, err := msgpack.Marshal(gen)
	if err != nil {
		return NewInternalError("failed to encode generation", err)
	}
	return c.Blob(http.StatusOK, "application/x-msgpack", data)
}

func (h *Handler) loadGeneration(c echo.Context) (interface{}, error) {
	if h.history == nil {
		return nil, NewInternalError("history store not configured", nil)
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, NewValidationError("id")
	}

	gen, err := h.history.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFoundError("generation", id.String())
		}
		return nil, NewInternalError("failed to load generation", err)
	}
	return gen, nil
}
