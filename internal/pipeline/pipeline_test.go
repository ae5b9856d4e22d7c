// pipeline_test.go - Tests for the generation orchestrator
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelboard/backend/internal/models"
	"github.com/reelboard/backend/internal/planner"
)

// stubPlanner returns a plan derived from the request, or an error.
type stubPlanner struct {
	err      error
	fallback bool
}

func (s *stubPlanner) BuildPlan(ctx context.Context, req planner.Request) (*planner.Plan, error) {
	if s.err != nil {
		return nil, s.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.fallback {
		return planner.FallbackPlan(req), nil
	}

	var slideshows []models.Slideshow
	for _, theme := range req.Themes {
		for i := 0; i < req.SlideshowsPerTheme; i++ {
			images := make([]string, req.FramesPerSlideshow)
			for f := range images {
				images[f] = req.Files[(i+f)%len(req.Files)].URL
			}
			slideshows = append(slideshows, models.Slideshow{Theme: theme, Images: images})
		}
	}
	return &planner.Plan{Slideshows: slideshows}, nil
}

// stubCaptioner captions deterministically from the theme.
type stubCaptioner struct {
	mu       sync.Mutex
	active   int
	maxSeen  int
	fallback bool
}

func (s *stubCaptioner) Caption(ctx context.Context, theme string, images []string, prompt string) ([]string, bool) {
	s.mu.Lock()
	s.active++
	if s.active > s.maxSeen {
		s.maxSeen = s.active
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.active--
		s.mu.Unlock()
	}()

	captions := make([]string, len(images))
	for i := range captions {
		captions[i] = fmt.Sprintf("%s caption %d", theme, i+1)
	}
	return captions, s.fallback
}

// stubHistory records saves or fails on demand.
type stubHistory struct {
	mu    sync.Mutex
	saved []*models.SlideshowGeneration
	err   error
}

func (s *stubHistory) Save(ctx context.Context, gen *models.SlideshowGeneration) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, gen)
	return nil
}

func testFiles(n int) []*models.UploadedFile {
	files := make([]*models.UploadedFile, n)
	for i := range files {
		files[i] = &models.UploadedFile{
			ID:  fmt.Sprintf("f%d", i),
			URL: fmt.Sprintf("http://cdn.test/%d.jpg", i),
		}
	}
	return files
}

func collect(t *testing.T, ch <-chan Event) []Event {
	t.Helper()
	var events []Event
	for ev := range ch {
		events = append(events, ev)
	}
	require.NotEmpty(t, events)
	return events
}

func TestRun_CompleteBatch(t *testing.T) {
	hist := &stubHistory{}
	orch := New(&stubPlanner{}, &stubCaptioner{}, hist, Config{Concurrency: 3})

	settings := models.GenerationSettings{
		Themes:             []string{"a", "b", "c"},
		SlideshowsPerTheme: 10,
		FramesPerSlideshow: 4,
	}

	events := collect(t, orch.Run(context.Background(), testFiles(6), settings))

	last := events[len(events)-1]
	require.Equal(t, EventComplete, last.Type)
	assert.Equal(t, 100, last.Progress)
	require.NotNil(t, last.Result)

	// 3 themes x 10 slideshows x 4 frames.
	slideshows := last.Result.Slideshows
	require.Len(t, slideshows, 30)
	refs, captions := 0, 0
	for _, s := range slideshows {
		assert.Len(t, s.Captions, len(s.Images))
		refs += len(s.Images)
		captions += len(s.Captions)
	}
	assert.Equal(t, 120, refs)
	assert.Equal(t, 120, captions)

	// Captions are positional: entry i kept its planned theme.
	assert.Equal(t, "a", slideshows[0].Theme)
	assert.Equal(t, "a caption 1", slideshows[0].Captions[0])
	assert.Equal(t, "c", slideshows[29].Theme)

	assert.True(t, last.Result.Persisted)
	assert.NotEmpty(t, last.Result.GenerationID)
	require.Len(t, hist.saved, 1)
}

func TestRun_ProgressMonotonic(t *testing.T) {
	orch := New(&stubPlanner{}, &stubCaptioner{}, nil, Config{Concurrency: 4})

	settings := models.GenerationSettings{
		Themes:             []string{"a", "b"},
		SlideshowsPerTheme: 5,
		FramesPerSlideshow: 4,
	}

	events := collect(t, orch.Run(context.Background(), testFiles(4), settings))

	last := 0
	completes, errs := 0, 0
	for _, ev := range events {
		assert.GreaterOrEqual(t, ev.Progress, last, "progress must not decrease")
		last = ev.Progress
		switch ev.Type {
		case EventComplete:
			completes++
		case EventError:
			errs++
		}
	}
	assert.Equal(t, 1, completes)
	assert.Equal(t, 0, errs)
	assert.Equal(t, 100, last)
}

func TestRun_ConcurrencyBounded(t *testing.T) {
	capt := &stubCaptioner{}
	orch := New(&stubPlanner{}, capt, nil, Config{Concurrency: 2})

	settings := models.GenerationSettings{
		Themes:             []string{"a"},
		SlideshowsPerTheme: 8,
		FramesPerSlideshow: 2,
	}

	collect(t, orch.Run(context.Background(), testFiles(4), settings))
	assert.LessOrEqual(t, capt.maxSeen, 2)
}

func TestRun_PlannerFallbackSurfaced(t *testing.T) {
	orch := New(&stubPlanner{fallback: true}, &stubCaptioner{}, nil, Config{Concurrency: 2})

	settings := models.GenerationSettings{
		Themes:             []string{"a"},
		SlideshowsPerTheme: 2,
		FramesPerSlideshow: 4,
	}

	events := collect(t, orch.Run(context.Background(), testFiles(3), settings))

	sawDegraded := false
	for _, ev := range events {
		if ev.Type == EventStatus && ev.Message == "ordering model unavailable, continuing with fallback plan" {
			sawDegraded = true
		}
	}
	assert.True(t, sawDegraded, "fallback must be announced in the stream")

	last := events[len(events)-1]
	require.Equal(t, EventComplete, last.Type)
	assert.True(t, last.Result.Fallback)
	for _, s := range last.Result.Slideshows {
		assert.True(t, s.Fallback)
	}
}

func TestRun_PlannerErrorEndsStream(t *testing.T) {
	orch := New(&stubPlanner{err: errors.New("no images provided")}, &stubCaptioner{}, nil, Config{Concurrency: 2})

	events := collect(t, orch.Run(context.Background(), nil, models.GenerationSettings{
		Themes:             []string{"a"},
		SlideshowsPerTheme: 1,
		FramesPerSlideshow: 4,
	}))

	last := events[len(events)-1]
	assert.Equal(t, EventError, last.Type)
	assert.Contains(t, last.Message, "no images provided")

	for _, ev := range events {
		assert.NotEqual(t, EventComplete, ev.Type, "error and complete are mutually exclusive")
	}
}

func TestRun_PersistFailureSwallowed(t *testing.T) {
	hist := &stubHistory{err: errors.New("connection refused")}
	orch := New(&stubPlanner{}, &stubCaptioner{}, hist, Config{Concurrency: 2})

	events := collect(t, orch.Run(context.Background(), testFiles(2), models.GenerationSettings{
		Themes:             []string{"a"},
		SlideshowsPerTheme: 2,
		FramesPerSlideshow: 2,
	}))

	last := events[len(events)-1]
	require.Equal(t, EventComplete, last.Type)
	assert.False(t, last.Result.Persisted)
	assert.Empty(t, last.Result.GenerationID)
	require.Len(t, last.Result.Slideshows, 2)
}

func TestRun_CanceledContext(t *testing.T) {
	orch := New(&stubPlanner{}, &stubCaptioner{}, nil, Config{Concurrency: 2})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	events := collect(t, orch.Run(ctx, testFiles(2), models.GenerationSettings{
		Themes:             []string{"a"},
		SlideshowsPerTheme: 1,
		FramesPerSlideshow: 2,
	}))

	last := events[len(events)-1]
	assert.Equal(t, EventError, last.Type)
}
