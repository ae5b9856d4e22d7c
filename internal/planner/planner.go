// Package planner asks the ordering model to arrange uploaded images into
// themed slideshows via a structured tool call.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/sirupsen/logrus"

	"github.com/reelboard/backend/internal/models"
)

const planToolName = "create_slideshow_plan"

const orderingInstruction = `You are a short-form video editor. Arrange the numbered images into themed slideshows. Every slideshow mixes hook-worthy face or faceless shots with product shots and tells one visual story. Use each image id at most once per slideshow. Call ` + planToolName + ` with your plan.`

// Request carries the inputs of one ordering call.
type Request struct {
	Files              []*models.UploadedFile
	Themes             []string
	SlideshowsPerTheme int
	FramesPerSlideshow int
	Prompt             string
	InlineImages       bool
}

// Plan is the ordering stage output: slideshows with images but no
// captions yet. Fallback is set when the model output was unusable and a
// deterministic plan was substituted instead.
type Plan struct {
	Slideshows []models.Slideshow `json:"slideshows"`
	Fallback   bool               `json:"fallback"`
}

// chatModel is the subset of the eino chat model the planner calls.
type chatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// Planner builds slideshow plans with a tool-bound ordering model.
type Planner struct {
	cm  chatModel
	log *logrus.Entry
}

// New binds the plan tool to the given model.
func New(cm model.ToolCallingChatModel) (*Planner, error) {
	bound, err := cm.WithTools([]*schema.ToolInfo{planToolInfo()})
	if err != nil {
		return nil, fmt.Errorf("binding plan tool: %w", err)
	}
	return &Planner{
		cm:  bound,
		log: logrus.WithField("component", "planner"),
	}, nil
}

func planToolInfo() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: planToolName,
		Desc: "Record the slideshow plan: one entry per slideshow with its theme and ordered image ids.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"slideshows": {
				Type:     schema.Array,
				Required: true,
				Desc:     "All planned slideshows in output order.",
				ElemInfo: &schema.ParameterInfo{
					Type: schema.Object,
					SubParams: map[string]*schema.ParameterInfo{
						"theme": {
							Type:     schema.String,
							Required: true,
							Desc:     "Theme this slideshow belongs to.",
						},
						"image_ids": {
							Type:     schema.Array,
							Required: true,
							Desc:     "Ordered 1-based ids from the image inventory.",
							ElemInfo: &schema.ParameterInfo{Type: schema.Integer},
						},
					},
				},
			},
		}),
	}
}

type planArgs struct {
	Slideshows []struct {
		Theme    string `json:"theme"`
		ImageIDs []int  `json:"image_ids"`
	} `json:"slideshows"`
}

// BuildPlan runs one ordering call. Upstream failures (API error, missing
// or unparsable tool call) do not fail the request: the deterministic
// fallback plan is returned with Fallback set so callers can surface the
// degradation. Invalid input is the only error path.
func (p *Planner) BuildPlan(ctx context.Context, req Request) (*Plan, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	resp, err := p.cm.Generate(ctx, p.buildMessages(req))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.log.WithError(err).Warn("ordering call failed, using fallback plan")
		return FallbackPlan(req), nil
	}

	args, err := extractPlanArgs(resp)
	if err != nil {
		p.log.WithError(err).Warn("ordering response unusable, using fallback plan")
		return FallbackPlan(req), nil
	}

	plan := p.remap(req, args)
	if plan == nil {
		p.log.Warn("ordering plan empty after remap, using fallback plan")
		return FallbackPlan(req), nil
	}
	return plan, nil
}

func validate(req Request) error {
	if len(req.Files) == 0 {
		return fmt.Errorf("no images provided")
	}
	if len(req.Themes) == 0 {
		return fmt.Errorf("no themes provided")
	}
	if req.SlideshowsPerTheme < 1 {
		return fmt.Errorf("slideshowsPerTheme must be at least 1")
	}
	if req.FramesPerSlideshow < 1 {
		return fmt.Errorf("framesPerSlideshow must be at least 1")
	}
	return nil
}

func (p *Planner) buildMessages(req Request) []*schema.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Create %d slideshows per theme, %d frames each.\nThemes: %s\n",
		req.SlideshowsPerTheme, req.FramesPerSlideshow, strings.Join(req.Themes, ", "))
	if req.Prompt != "" {
		fmt.Fprintf(&b, "Direction: %s\n", req.Prompt)
	}
	b.WriteString("Image inventory:\n")
	for i, f := range req.Files {
		fmt.Fprintf(&b, "[%d] %s %s\n", i+1, f.Category, f.Name)
	}

	user := &schema.Message{Role: schema.User, Content: b.String()}
	if req.InlineImages {
		parts := []schema.ChatMessagePart{
			{Type: schema.ChatMessagePartTypeText, Text: b.String()},
		}
		for _, f := range req.Files {
			parts = append(parts, schema.ChatMessagePart{
				Type:     schema.ChatMessagePartTypeImageURL,
				ImageURL: &schema.ChatMessageImageURL{URL: f.URL},
			})
		}
		user = &schema.Message{Role: schema.User, MultiContent: parts}
	}

	return []*schema.Message{
		{Role: schema.System, Content: orderingInstruction},
		user,
	}
}

func extractPlanArgs(resp *schema.Message) (*planArgs, error) {
	var raw string
	for _, tc := range resp.ToolCalls {
		if tc.Function.Name == planToolName {
			raw = tc.Function.Arguments
			break
		}
	}
	if raw == "" {
		// Some models answer in plain content instead of calling the tool.
		raw = stripCodeFence(resp.Content)
	}
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("empty ordering response")
	}

	var args planArgs
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("unmarshaling plan arguments: %w", err)
	}
	if len(args.Slideshows) == 0 {
		return nil, fmt.Errorf("plan contains no slideshows")
	}
	return &args, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}

// remap converts model-returned image ids back to local URLs and repairs
// the plan to the exact configured shape: themes*perTheme slideshows of
// framesPerSlideshow images each. Unknown and duplicate ids are replaced
// from a rotating pool over the full inventory.
func (p *Planner) remap(req Request, args *planArgs) *Plan {
	want := len(req.Themes) * req.SlideshowsPerTheme
	pool := newImagePool(req.Files)

	out := make([]models.Slideshow, 0, want)
	for i := 0; i < want; i++ {
		theme := req.Themes[i/req.SlideshowsPerTheme]
		images := make([]string, 0, req.FramesPerSlideshow)
		seen := make(map[int]bool)

		if i < len(args.Slideshows) {
			entry := args.Slideshows[i]
			if entry.Theme != "" {
				theme = entry.Theme
			}
			for _, id := range entry.ImageIDs {
				if len(images) == req.FramesPerSlideshow {
					break
				}
				idx := id - 1
				if idx < 0 || idx >= len(req.Files) || seen[idx] {
					continue
				}
				seen[idx] = true
				images = append(images, req.Files[idx].URL)
			}
		}

		// Top up short slideshows from the pool.
		for len(images) < req.FramesPerSlideshow {
			images = append(images, pool.next())
		}

		out = append(out, models.Slideshow{Theme: theme, Images: images})
	}

	if len(out) == 0 {
		return nil
	}
	return &Plan{Slideshows: out}
}

// FallbackPlan builds the deterministic round-robin plan used when the
// ordering model fails. Same inputs always produce the same plan.
func FallbackPlan(req Request) *Plan {
	pool := newImagePool(req.Files)

	slideshows := make([]models.Slideshow, 0, len(req.Themes)*req.SlideshowsPerTheme)
	for _, theme := range req.Themes {
		for i := 0; i < req.SlideshowsPerTheme; i++ {
			images := make([]string, 0, req.FramesPerSlideshow)
			for f := 0; f < req.FramesPerSlideshow; f++ {
				images = append(images, pool.next())
			}
			slideshows = append(slideshows, models.Slideshow{
				Theme:    theme,
				Images:   images,
				Fallback: true,
			})
		}
	}

	return &Plan{Slideshows: slideshows, Fallback: true}
}

type imagePool struct {
	urls []string
	pos  int
}

func newImagePool(files []*models.UploadedFile) *imagePool {
	urls := make([]string, len(files))
	for i, f := range files {
		urls[i] = f.URL
	}
	return &imagePool{urls: urls}
}

func (p *imagePool) next() string {
	u := p.urls[p.pos%len(p.urls)]
	p.pos++
	return u
}
