// Package pipeline orchestrates one slideshow generation run: ordering
// call, bounded caption fan-out, progress events, persistence.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/reelboard/backend/internal/models"
	"github.com/reelboard/backend/internal/planner"
)

// EventType names the SSE event a pipeline event maps to.
type EventType string

const (
	EventStatus   EventType = "status"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// Event is one progress update of a run. Result is set on complete only.
type Event struct {
	Type     EventType `json:"-"`
	Progress int       `json:"progress"`
	Message  string    `json:"message,omitempty"`
	Result   *Result   `json:"result,omitempty"`
}

// Result is the terminal payload of a successful run.
type Result struct {
	GenerationID string                    `json:"generationId,omitempty"`
	Settings     models.GenerationSettings `json:"settings"`
	Slideshows   []models.Slideshow        `json:"slideshows"`
	Fallback     bool                      `json:"fallback"`
	Persisted    bool                      `json:"persisted"`
}

// Planner is the ordering stage.
type Planner interface {
	BuildPlan(ctx context.Context, req planner.Request) (*planner.Plan, error)
}

// Captioner is the caption stage. fallback is true when placeholders were
// substituted.
type Captioner interface {
	Caption(ctx context.Context, theme string, images []string, prompt string) (captions []string, fallback bool)
}

// HistoryStore persists completed runs.
type HistoryStore interface {
	Save(ctx context.Context, gen *models.SlideshowGeneration) error
}

// Config tunes one Orchestrator.
type Config struct {
	Concurrency  int
	SubmitDelay  time.Duration
	InlineImages bool
}

// Orchestrator runs the two-stage generation pipeline.
type Orchestrator struct {
	planner   Planner
	captioner Captioner
	history   HistoryStore
	cfg       Config
	log       *logrus.Entry
}

// New creates an Orchestrator. history may be nil, in which case runs are
// not persisted.
func New(p Planner, c Captioner, h HistoryStore, cfg Config) *Orchestrator {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Orchestrator{
		planner:   p,
		captioner: c,
		history:   h,
		cfg:       cfg,
		log:       logrus.WithField("component", "pipeline"),
	}
}

// Run executes one generation and returns its event stream. The channel
// carries monotonically non-decreasing progress and is closed after
// exactly one terminal event: complete (progress 100) or error. The run
// observes ctx, so a disconnected client cancels in-flight model calls.
func (o *Orchestrator) Run(ctx context.Context, files []*models.UploadedFile, settings models.GenerationSettings) <-chan Event {
	events := make(chan Event, 16)
	go o.run(ctx, files, settings, newEmitter(events))
	return events
}

func (o *Orchestrator) run(ctx context.Context, files []*models.UploadedFile, settings models.GenerationSettings, emit *emitter) {
	defer emit.close()

	log := o.log.WithFields(logrus.Fields{
		"themes":     len(settings.Themes),
		"perTheme":   settings.SlideshowsPerTheme,
		"frames":     settings.FramesPerSlideshow,
		"imageCount": len(files),
	})
	log.Info("generation run started")

	emit.status(5, "planning slideshows")

	plan, err := o.planner.BuildPlan(ctx, planner.Request{
		Files:              files,
		Themes:             settings.Themes,
		SlideshowsPerTheme: settings.SlideshowsPerTheme,
		FramesPerSlideshow: settings.FramesPerSlideshow,
		Prompt:             settings.OrderingPrompt,
		InlineImages:       o.cfg.InlineImages,
	})
	if err != nil {
		log.WithError(err).Error("ordering stage failed")
		emit.fail(err.Error())
		return
	}

	if plan.Fallback {
		emit.status(25, "ordering model unavailable, continuing with fallback plan")
	} else {
		emit.status(25, "plan ready, writing captions")
	}

	slideshows, err := o.captionAll(ctx, plan.Slideshows, settings.CaptionPrompt, emit)
	if err != nil {
		log.WithError(err).Error("caption stage canceled")
		emit.fail(err.Error())
		return
	}

	result := &Result{
		Settings:   settings,
		Slideshows: slideshows,
		Fallback:   plan.Fallback,
	}

	emit.status(95, "saving generation")
	o.persist(ctx, result, log)

	log.WithField("slideshows", len(slideshows)).Info("generation run complete")
	emit.complete(result)
}

// captionAll fans out one captioning call per slideshow with bounded
// concurrency. Results land at fixed indices so output order matches the
// plan. Only context cancellation can fail the stage.
func (o *Orchestrator) captionAll(ctx context.Context, plan []models.Slideshow, prompt string, emit *emitter) ([]models.Slideshow, error) {
	results := make([]models.Slideshow, len(plan))

	var mu sync.Mutex
	done := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Concurrency)

	for i, s := range plan {
		if gctx.Err() != nil {
			break
		}
		i, s := i, s
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}

			captions, fallback := o.captioner.Caption(gctx, s.Theme, s.Images, prompt)
			s.Captions = captions
			s.Fallback = s.Fallback || fallback
			results[i] = s

			mu.Lock()
			done++
			progress := 25 + (65*done)/len(plan)
			mu.Unlock()
			emit.status(progress, "writing captions")

			return nil
		})

		// Stagger submissions to stay under per-account rate limits.
		if o.cfg.SubmitDelay > 0 && i < len(plan)-1 {
			select {
			case <-gctx.Done():
			case <-time.After(o.cfg.SubmitDelay):
			}
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// persist writes the completed run. Failures are logged and swallowed so
// the client still receives the in-memory result.
func (o *Orchestrator) persist(ctx context.Context, result *Result, log *logrus.Entry) {
	if o.history == nil {
		return
	}

	gen, err := models.NewSlideshowGeneration(result.Settings, result.Slideshows)
	if err != nil {
		log.WithError(err).Error("failed to encode generation for persistence")
		return
	}

	if err := o.history.Save(ctx, gen); err != nil {
		log.WithError(err).Error("failed to persist generation")
		return
	}

	result.GenerationID = gen.ID.String()
	result.Persisted = true
}

// emitter serializes events and clamps progress so it never decreases.
type emitter struct {
	ch   chan Event
	mu   sync.Mutex
	last int
}

func newEmitter(ch chan Event) *emitter {
	return &emitter{ch: ch}
}

func (e *emitter) status(progress int, message string) {
	e.mu.Lock()
	if progress < e.last {
		progress = e.last
	}
	e.last = progress
	e.mu.Unlock()

	e.ch <- Event{Type: EventStatus, Progress: progress, Message: message}
}

func (e *emitter) complete(result *Result) {
	e.mu.Lock()
	e.last = 100
	e.mu.Unlock()

	e.ch <- Event{Type: EventComplete, Progress: 100, Result: result}
}

func (e *emitter) fail(message string) {
	e.mu.Lock()
	progress := e.last
	e.mu.Unlock()

	e.ch <- Event{Type: EventError, Progress: progress, Message: message}
}

func (e *emitter) close() {
	close(e.ch)
}
