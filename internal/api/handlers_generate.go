// handlers_generate.go - Slideshow ordering, captioning and batch handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/reelboard/backend/internal/models"
	"github.com/reelboard/backend/internal/pipeline"
	"github.com/reelboard/backend/internal/planner"
)

// HandleOrder runs the ordering call alone and returns the plan.
func (h *Handler) HandleOrder(c echo.Context) error {
	var req orderRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}

	files, err := h.resolveFiles(req.FileIDs)
	if err != nil {
		return err
	}

	plan, err := h.planner.BuildPlan(c.Request().Context(), planner.Request{
		Files:              files,
		Themes:             req.Themes,
		SlideshowsPerTheme: req.SlideshowsPerTheme,
		FramesPerSlideshow: req.frames(h.defaultFrames),
		Prompt:             req.Prompt,
	})
	if err != nil {
		return NewBadRequestError("invalid ordering request", err)
	}

	return c.JSON(http.StatusOK, plan)
}

// HandleCaption captions one slideshow and returns the copy.
func (h *Handler) HandleCaption(c echo.Context) error {
	var req captionRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}

	captions, fallback := h.captioner.Caption(c.Request().Context(), req.Theme, req.Images, req.Prompt)

	return c.JSON(http.StatusOK, map[string]interface{}{
		"theme":    req.Theme,
		"captions": captions,
		"fallback": fallback,
	})
}

// HandleGenerate orchestrates the full batch and streams progress as SSE.
// Input validation failures are plain 400 responses; once the stream is
// open, failures surface as an SSE error event.
func (h *Handler) HandleGenerate(c echo.Context) error {
	var req generateRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}

	files, err := h.resolveFiles(req.FileIDs)
	if err != nil {
		return err
	}

	settings := models.GenerationSettings{
		Themes:             req.Themes,
		SlideshowsPerTheme: req.SlideshowsPerTheme,
		FramesPerSlideshow: req.frames(h.defaultFrames),
		OrderingPrompt:     req.OrderingPrompt,
		CaptionPrompt:      req.CaptionPrompt,
		FileIDs:            fileIDs(files),
	}

	prepareSSE(c)

	events := h.orchestrator.Run(c.Request().Context(), files, settings)
	for ev := range events {
		if err := sendSSE(c, string(ev.Type), ev); err != nil {
			// Client went away; the run context is canceled with the request.
			return nil
		}
		if ev.Type == pipeline.EventComplete || ev.Type == pipeline.EventError {
			return nil
		}
	}
	return nil
}

// resolveFiles maps ids to stored files. Empty ids means every uploaded
// file; no uploads at all is a 400.
func (h *Handler) resolveFiles(ids []string) ([]*models.UploadedFile, error) {
	if len(ids) == 0 {
		files, err := h.store.List(200)
		if err != nil {
			return nil, NewInternalError("failed to list files", err)
		}
		if len(files) == 0 {
			return nil, NewBadRequestError("no uploaded files available", nil)
		}
		return files, nil
	}

	files := make([]*models.UploadedFile, 0, len(ids))
	for _, id := range ids {
		info, err := h.store.Get(id)
		if err != nil {
			return nil, NewNotFoundError("file", id)
		}
		files = append(files, info)
	}
	return files, nil
}

func fileIDs(files []*models.UploadedFile) []string {
	ids := make([]string, len(files))
	for i, f := range files {
		ids[i] = f.ID
	}
	return ids
}

// Request types

type orderRequest struct {
	FileIDs            []string `json:"fileIds"`
	Themes             []string `json:"themes"`
	SlideshowsPerTheme int      `json:"slideshowsPerTheme"`
	FramesPerSlideshow int      `json:"framesPerSlideshow"`
	Prompt             string   `json:"prompt"`
}

func (r *orderRequest) validate() error {
	if len(r.Themes) == 0 {
		return NewValidationError("themes")
	}
	if r.SlideshowsPerTheme < 1 {
		return NewValidationError("slideshowsPerTheme")
	}
	if r.FramesPerSlideshow < 0 {
		return NewValidationError("framesPerSlideshow")
	}
	return nil
}

func (r *orderRequest) frames(def int) int {
	if r.FramesPerSlideshow > 0 {
		return r.FramesPerSlideshow
	}
	return def
}

type captionRequest struct {
	Theme  string   `json:"theme"`
	Images []string `json:"images"`
	Prompt string   `json:"prompt"`
}

func (r *captionRequest) validate() error {
	if r.Theme == "" {
		return NewValidationError("theme")
	}
	if len(r.Images) == 0 {
		return NewValidationError("images")
	}
	return nil
}

type generateRequest struct {
	FileIDs            []string `json:"fileIds"`
	Themes             []string `json:"themes"`
	SlideshowsPerTheme int      `json:"slideshowsPerTheme"`
	FramesPerSlideshow int      `json:"framesPerSlideshow"`
	OrderingPrompt     string   `json:"orderingPrompt"`
	CaptionPrompt      string   `json:"captionPrompt"`
}

func (r *generateRequest) validate() error {
	if len(r.Themes) == 0 {
		return NewValidationError("themes")
	}
	if r.SlideshowsPerTheme < 1 {
		return NewValidationError("slideshowsPerTheme")
	}
	if r.FramesPerSlideshow < 0 {
		return NewValidationError("framesPerSlideshow")
	}
	return nil
}

func (r *generateRequest) frames(def int) int {
	if r.FramesPerSlideshow > 0 {
		return r.FramesPerSlideshow
	}
	return def
}
