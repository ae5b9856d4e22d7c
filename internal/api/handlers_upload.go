// handlers_upload.go - Image upload operation handlers
package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/reelboard/backend/internal/models"
)

// HandleUploadFiles accepts one or more images as multipart/form-data
// under the "files" field, tagged with a "category" form value.
func (h *Handler) HandleUploadFiles(c echo.Context) error {
	category := models.Category(c.FormValue("category"))
	if !models.ValidCategory(category) {
		return NewValidationError("category")
	}

	form, err := c.MultipartForm()
	if err != nil {
		return NewBadRequestError("invalid multipart form", err)
	}

	files := form.File["files"]
	if len(files) == 0 {
		return NewValidationError("files")
	}

	uploaded := make([]*models.UploadedFile, 0, len(files))
	for _, fh := range files {
		src, err := fh.Open()
		if err != nil {
			return NewInternalError("failed to open uploaded file", err)
		}

		info, err := h.store.Save(c.Request().Context(), fh.Filename, category, src)
		src.Close()
		if err != nil {
			return NewInternalError("failed to save file", err)
		}
		uploaded = append(uploaded, info)
	}

	return c.JSON(http.StatusCreated, uploaded)
}

// HandleRecentFiles returns the most recently uploaded images.
func (h *Handler) HandleRecentFiles(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 || limit > 200 {
		limit = 50
	}

	files, err := h.store.List(limit)
	if err != nil {
		return NewInternalError("failed to list files", err)
	}

	return c.JSON(http.StatusOK, files)
}

// HandleGetFile returns metadata for a specific file.
func (h *Handler) HandleGetFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	info, err := h.store.Get(id)
	if err != nil {
		return NewNotFoundError("file", id)
	}

	return c.JSON(http.StatusOK, info)
}

// HandleDeleteFile removes an uploaded image.
func (h *Handler) HandleDeleteFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	if err := h.store.Delete(c.Request().Context(), id); err != nil {
		return NewNotFoundError("file", id)
	}

	return c.NoContent(http.StatusNoContent)
}
