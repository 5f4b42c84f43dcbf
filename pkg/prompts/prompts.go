package prompts

import (
	"fmt"
	"strings"
)

const worldBibleSystemPrompt = `You are a world-building AI. Create a 'World Bible' for a new story. This document should be a rich, one-page summary establishing the world's history, main conflicts, character motivations, and tone. It must be consistent and creative.`

const chapterSystemPrompt = `You are a multi-persona Storytelling Engine. Follow the user's steps precisely and answer with a single raw JSON object. Do not add commentary or markdown formatting.`

// StyleKeywords prefix every image directive sent to an illustration backend.
const StyleKeywords = "cinematic, epic, high detail, masterpiece"

// ChapterSystem is the system instruction paired with Chapter.
func ChapterSystem() string { return chapterSystemPrompt }

// WorldBible builds the one-off world bible request from the forge parameters.
func WorldBible(theme, archetype, contradiction string) string {
	var b strings.Builder
	b.WriteString(worldBibleSystemPrompt)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Core Theme: %s\n", strings.TrimSpace(theme))
	fmt.Fprintf(&b, "Protagonist Archetype: %s\n", strings.TrimSpace(archetype))
	fmt.Fprintf(&b, "The World's Core Contradiction: %s\n\n", strings.TrimSpace(contradiction))
	b.WriteString("Generate the World Bible based on these inputs.")
	return b.String()
}

// Chapter builds the next-chapter request. The reply must be one JSON object
// with exactly the keys narrative_chapter, next_choices and image_prompt.
func Chapter(storyContext, worldBible, userChoice string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The user's choice for the last chapter was: %q.\n", strings.TrimSpace(userChoice))
	fmt.Fprintf(&b, "The full story context so far is: %q.\n", storyContext)
	fmt.Fprintf(&b, "The secret World Bible for this universe is: %q.\n\n", worldBible)
	b.WriteString(`Step 1: Act as a Literary Artist. Write a rich, descriptive paragraph expanding on the user's choice.
Step 2: Act as a Plot Theorist. Based on the new paragraph, generate three distinct, single-sentence plot choices for the user. One must be a 'Wildcard'.
Step 3: Act as an Art Director. Based on the paragraph from Step 1, write a concise, descriptive prompt for an AI image generator (comma-separated keywords).
Step 4: Format your entire response as a single, raw JSON object with NO markdown formatting, using these exact keys: "narrative_chapter", "next_choices", and "image_prompt".`)
	return b.String()
}

// ImageDirective prepends the fixed style keywords to a scene directive.
func ImageDirective(directive string) string {
	directive = strings.TrimSpace(directive)
	if directive == "" {
		return StyleKeywords
	}
	return StyleKeywords + ", " + directive
}
