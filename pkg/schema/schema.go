package schema

import (
	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go/v3"
)

func generateSchema[T any]() any {
	r := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return r.Reflect(v)
}

var ChapterResponseSchema = generateSchema[ChapterResponse]()

// ChapterResponseFormat asks OpenAI-compatible backends for a strict chapter record.
func ChapterResponseFormat() openai.ChatCompletionNewParamsResponseFormatUnion {
	p := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        "story_chapter",
		Description: openai.String("Next chapter of an interactive story with branching choices and an illustration prompt"),
		Schema:      ChapterResponseSchema,
		Strict:      openai.Bool(true),
	}
	return openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{JSONSchema: p},
	}
}

// WantsJSON reports whether params request a structured JSON reply.
func WantsJSON(params *openai.ChatCompletionNewParams) bool {
	if params == nil {
		return false
	}
	return params.ResponseFormat.OfJSONSchema != nil || params.ResponseFormat.OfJSONObject != nil
}
