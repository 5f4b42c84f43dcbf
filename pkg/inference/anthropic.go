package inference

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go/v3"
)

type AnthropicInferencer struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicInferencer creates an inferencer backed by the Claude Messages API.
func NewAnthropicInferencer(apiKey string, model string, opts ...option.RequestOption) *AnthropicInferencer {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	client := anthropic.NewClient(opts...)
	return &AnthropicInferencer{
		client: &client,
		model:  cmp.Or(model, "claude-sonnet-4-20250514"),
	}
}

func (o *AnthropicInferencer) Infer(ctx context.Context, params *openai.ChatCompletionNewParams, system, user string) (string, error) {
	if params == nil {
		params = new(openai.ChatCompletionNewParams)
	}
	req := anthropic.MessageNewParams{
		Model:     anthropic.Model(cmp.Or(params.Model, o.model)),
		MaxTokens: cmp.Or(params.MaxCompletionTokens.Value, defaultMaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
		Temperature: anthropic.Float(min(cmp.Or(params.Temperature.Value, defaultTemperature), 1.0)),
	}
	if system != "" {
		req.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := o.client.Messages.New(ctx, req)
	if err != nil {
		return "", fmt.Errorf("anthropic inference error: %w", err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", errors.New("empty completion content")
	}
	return b.String(), nil
}
