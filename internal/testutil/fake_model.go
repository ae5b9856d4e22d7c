// fake_model.go - Scriptable eino chat model for testing
package testutil

import (
	"context"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// FakeChatModel implements model.ToolCallingChatModel with scripted
// responses. Responses are consumed in order; the last one repeats.
// Errors are returned before responses are consulted.
type FakeChatModel struct {
	mu        sync.Mutex
	Responses []*schema.Message
	Errs      []error
	Calls     [][]*schema.Message

	generateCount int
}

// Generate returns the next scripted error or response.
func (f *FakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.Calls = append(f.Calls, input)
	n := f.generateCount
	f.generateCount++

	if n < len(f.Errs) && f.Errs[n] != nil {
		return nil, f.Errs[n]
	}
	if len(f.Responses) == 0 {
		return &schema.Message{Role: schema.Assistant}, nil
	}
	if n >= len(f.Responses) {
		n = len(f.Responses) - 1
	}
	return f.Responses[n], nil
}

// Stream wraps the Generate result in a single-element stream.
func (f *FakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := f.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// WithTools records nothing and returns the fake itself.
func (f *FakeChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return f, nil
}

// GenerateCalls returns how many Generate calls were made.
func (f *FakeChatModel) GenerateCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.generateCount
}

// TextResponse builds an assistant message with plain content.
func TextResponse(content string) *schema.Message {
	return &schema.Message{Role: schema.Assistant, Content: content}
}

// ToolCallResponse builds an assistant message carrying one tool call.
func ToolCallResponse(name, arguments string) *schema.Message {
	return &schema.Message{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{
			{ID: "call-1", Function: schema.FunctionCall{Name: name, Arguments: arguments}},
		},
	}
}
