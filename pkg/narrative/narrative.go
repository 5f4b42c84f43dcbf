package narrative

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/openai/openai-go/v3"

	"storyteller/pkg/errs"
	"storyteller/pkg/inference"
	"storyteller/pkg/prompts"
	"storyteller/pkg/schema"
	"storyteller/pkg/utils"
)

// Temperature used for every narrative call.
const Temperature = 0.9

// MinChoices is the fewest continuation options a chapter may offer.
const MinChoices = 2

// Generator turns prompts into world bibles and chapters through an Inferencer.
type Generator struct {
	inf inference.Inferencer
}

func New(inf inference.Inferencer) *Generator {
	return &Generator{inf: inf}
}

// WorldBible asks the model for the hidden world document. The text is returned as-is.
func (g *Generator) WorldBible(ctx context.Context, theme, archetype, contradiction string) (string, error) {
	if g == nil || g.inf == nil {
		return "", errs.NotConfigured("narrative backend")
	}
	params := &openai.ChatCompletionNewParams{
		Temperature: openai.Float(Temperature),
	}
	out, err := g.inf.Infer(ctx, params, "", prompts.WorldBible(theme, archetype, contradiction))
	if err != nil {
		return "", errs.Rejected(0, "", err)
	}
	if strings.TrimSpace(out) == "" {
		return "", errs.Malformed(out, errors.New("empty world bible"))
	}
	return out, nil
}

// Chapter requests the next chapter for a fully built prompt and decodes the reply.
func (g *Generator) Chapter(ctx context.Context, prompt string) (schema.ChapterResponse, error) {
	if g == nil || g.inf == nil {
		return schema.ChapterResponse{}, errs.NotConfigured("narrative backend")
	}
	params := &openai.ChatCompletionNewParams{
		Temperature:    openai.Float(Temperature),
		ResponseFormat: schema.ChapterResponseFormat(),
	}
	raw, err := g.inf.Infer(ctx, params, prompts.ChapterSystem(), prompt)
	if err != nil {
		return schema.ChapterResponse{}, errs.Rejected(0, "", err)
	}
	return DecodeChapter(raw)
}

// DecodeChapter parses a model reply into a chapter record. Markdown fences and
// stray prose around the object are tolerated; anything else is MalformedResponse
// carrying the untouched reply.
func DecodeChapter(raw string) (schema.ChapterResponse, error) {
	var resp schema.ChapterResponse

	cleaned := utils.CleanJSON(raw)
	if obj, ok := utils.JSONObject(cleaned); ok {
		cleaned = obj
	}

	dec := json.NewDecoder(strings.NewReader(cleaned))
	if err := dec.Decode(&resp); err != nil {
		log.Warn("chapter reply is not JSON", "err", err, "raw", utils.LimitStr(raw, 200))
		return schema.ChapterResponse{}, errs.Malformed(raw, err)
	}

	resp.NarrativeChapter = strings.TrimSpace(resp.NarrativeChapter)
	resp.ImagePrompt = strings.TrimSpace(resp.ImagePrompt)
	choices := resp.NextChoices[:0]
	for _, c := range resp.NextChoices {
		if c = strings.TrimSpace(c); c != "" {
			choices = append(choices, c)
		}
	}
	resp.NextChoices = choices

	switch {
	case resp.NarrativeChapter == "":
		return schema.ChapterResponse{}, errs.Malformed(raw, errors.New("narrative_chapter is empty"))
	case len(resp.NextChoices) < MinChoices:
		return schema.ChapterResponse{}, errs.Malformed(raw, errors.New("next_choices needs at least two options"))
	}
	return resp, nil
}
