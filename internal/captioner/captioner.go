// Package captioner writes per-frame slideshow copy with a vision model.
package captioner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/sirupsen/logrus"
)

const captionInstruction = `You write punchy per-frame captions for short-form slideshows. Given the frames of one slideshow and the research notes, respond with a JSON array of strings, one caption per frame, in frame order. No other text.`

// ChatModel is the subset of the eino chat model the captioner calls.
type ChatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// Captioner issues one captioning call per slideshow, retrying rate
// limits with exponential backoff.
type Captioner struct {
	cm         ChatModel
	maxRetries uint64
	log        *logrus.Entry

	// initialInterval is shortened in tests.
	initialInterval time.Duration
}

// New creates a Captioner. maxRetries bounds retries after the first
// attempt when the provider rate-limits.
func New(cm ChatModel, maxRetries int) *Captioner {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Captioner{
		cm:              cm,
		maxRetries:      uint64(maxRetries),
		log:             logrus.WithField("component", "captioner"),
		initialInterval: 500 * time.Millisecond,
	}
}

// Caption requests one caption per image. It never fails the batch: on
// exhausted retries or unparsable output it returns deterministic
// placeholder captions and fallback=true.
func (c *Captioner) Caption(ctx context.Context, theme string, images []string, prompt string) ([]string, bool) {
	captions, err := c.tryCaption(ctx, theme, images, prompt)
	if err != nil {
		c.log.WithError(err).WithField("theme", theme).Warn("captioning failed, using placeholders")
		return PlaceholderCaptions(theme, len(images)), true
	}
	return captions, false
}

func (c *Captioner) tryCaption(ctx context.Context, theme string, images []string, prompt string) ([]string, error) {
	messages := c.buildMessages(theme, images, prompt)

	var captions []string
	op := func() error {
		resp, err := c.cm.Generate(ctx, messages)
		if err != nil {
			if isRateLimited(err) {
				return err
			}
			return backoff.Permanent(err)
		}

		parsed, err := parseCaptions(resp.Content, len(images))
		if err != nil {
			return backoff.Permanent(err)
		}
		captions = parsed
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.initialInterval
	bo.MaxElapsedTime = 0

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, c.maxRetries), ctx))
	if err != nil {
		return nil, err
	}
	return captions, nil
}

func (c *Captioner) buildMessages(theme string, images []string, prompt string) []*schema.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Theme: %s\nFrames: %d\n", theme, len(images))
	if prompt != "" {
		fmt.Fprintf(&b, "Research notes:\n%s\n", prompt)
	}

	parts := []schema.ChatMessagePart{
		{Type: schema.ChatMessagePartTypeText, Text: b.String()},
	}
	for _, url := range images {
		parts = append(parts, schema.ChatMessagePart{
			Type:     schema.ChatMessagePartTypeImageURL,
			ImageURL: &schema.ChatMessageImageURL{URL: url},
		})
	}

	return []*schema.Message{
		{Role: schema.System, Content: captionInstruction},
		{Role: schema.User, MultiContent: parts},
	}
}

// parseCaptions accepts either a bare JSON array or {"captions": [...]},
// with or without a code fence, and requires exactly want entries.
func parseCaptions(content string, want int) ([]string, error) {
	raw := strings.TrimSpace(content)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSuffix(raw, "```")
		raw = strings.TrimSpace(raw)
	}

	var captions []string
	if err := json.Unmarshal([]byte(raw), &captions); err != nil {
		var wrapped struct {
			Captions []string `json:"captions"`
		}
		if err2 := json.Unmarshal([]byte(raw), &wrapped); err2 != nil {
			return nil, fmt.Errorf("unmarshaling captions: %w", err)
		}
		captions = wrapped.Captions
	}

	if len(captions) != want {
		return nil, fmt.Errorf("expected %d captions, got %d", want, len(captions))
	}
	return captions, nil
}

// PlaceholderCaptions returns the deterministic captions substituted when
// the caption model is unavailable.
func PlaceholderCaptions(theme string, n int) []string {
	captions := make([]string, n)
	for i := range captions {
		captions[i] = fmt.Sprintf("%s, part %d of %d", theme, i+1, n)
	}
	return captions
}

func isRateLimited(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "rate_limit") ||
		strings.Contains(msg, "too many requests")
}
