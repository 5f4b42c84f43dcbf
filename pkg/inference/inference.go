package inference

import (
	"context"

	"github.com/openai/openai-go/v3"
)

// Inferencer runs a single text completion against a model backend.
// params carries per-call overrides (model, temperature, token limit,
// response format); nil means backend defaults.
type Inferencer interface {
	Infer(ctx context.Context, params *openai.ChatCompletionNewParams, system, user string) (string, error)
}

const (
	defaultMaxTokens   = 4096
	defaultTemperature = 0.3
)
