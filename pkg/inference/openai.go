package inference

import (
	"cmp"
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
)

// OpenAI-compatible endpoints.
const (
	GrokBaseURL     = "https://api.x.ai/v1"
	KimiBaseURL     = "https://api.kimi.com/coding/v1"
	MoonshotBaseURL = "https://api.moonshot.ai/v1"
	LocalBaseURL    = "http://localhost:1234/v1"
)

// OpenAIInferencer implements Inferencer for any OpenAI chat-completions compatible API.
type OpenAIInferencer struct {
	client *openai.Client
	apiKey string
	model  string
	name   string
}

// NewOpenAIInferencer creates a new inferencer instance using OpenAI client.
func NewOpenAIInferencer(apiKey string, model string) *OpenAIInferencer {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIInferencer{
		client: &client,
		apiKey: apiKey,
		model:  cmp.Or(model, "gpt-4o-mini"),
		name:   "openai",
	}
}

// NewGrokInferencer targets xAI's OpenAI-compatible API.
func NewGrokInferencer(apiKey string, model string) *OpenAIInferencer {
	o := NewOpenAIInferencer(apiKey, cmp.Or(model, "grok-4-fast-reasoning"))
	o.ChangeBaseURL(GrokBaseURL)
	o.name = "grok"
	return o
}

// NewKimiInferencer targets the Kimi OpenAI-compatible API.
func NewKimiInferencer(apiKey string, model string) *OpenAIInferencer {
	o := NewOpenAIInferencer(apiKey, cmp.Or(model, "kimi-for-coding"))
	o.ChangeBaseURL(KimiBaseURL)
	o.name = "kimi"
	return o
}

// NewMoonshotInferencer targets the Moonshot AI OpenAI-compatible API.
func NewMoonshotInferencer(apiKey string, model string) *OpenAIInferencer {
	o := NewOpenAIInferencer(apiKey, cmp.Or(model, "kimi-k2-5"))
	o.ChangeBaseURL(MoonshotBaseURL)
	o.name = "moonshot"
	return o
}

func (o *OpenAIInferencer) ChangeBaseURL(baseURL string) {
	client := openai.NewClient(
		option.WithAPIKey(o.apiKey),
		option.WithBaseURL(baseURL),
	)
	o.client = &client
}

func (o *OpenAIInferencer) SetModel(model string) {
	o.model = model
}

// Infer sends text to the chat completion endpoint and returns the output.
func (o *OpenAIInferencer) Infer(ctx context.Context, params *openai.ChatCompletionNewParams, system, user string) (string, error) {
	if params == nil {
		params = new(openai.ChatCompletionNewParams)
	} else {
		p := *params
		params = &p
	}
	params.Model = cmp.Or(params.Model, o.model)

	var messages []openai.ChatCompletionMessageParamUnion
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessageParamUnion{
			OfSystem: &openai.ChatCompletionSystemMessageParam{
				Role: "system",
				Content: openai.ChatCompletionSystemMessageParamContentUnion{
					OfString: param.Opt[string]{Value: system},
				},
			}})
	}
	messages = append(messages, openai.ChatCompletionMessageParamUnion{
		OfUser: &openai.ChatCompletionUserMessageParam{
			Role: "user",
			Content: openai.ChatCompletionUserMessageParamContentUnion{
				OfString: param.Opt[string]{Value: user},
			},
		},
	})
	params.Messages = messages

	params.MaxCompletionTokens = openai.Int(cmp.Or(params.MaxCompletionTokens.Value, defaultMaxTokens))
	params.Temperature = openai.Float(cmp.Or(params.Temperature.Value, defaultTemperature))
	params.TopP = openai.Float(cmp.Or(params.TopP.Value, 1.0))

	resp, err := o.client.Chat.Completions.New(ctx, *params)
	if err != nil {
		return "", fmt.Errorf("%s inference error: %w", o.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices returned")
	}
	if resp.Choices[0].Message.Content == "" {
		return "", errors.New("empty completion content")
	}

	return resp.Choices[0].Message.Content, nil
}
