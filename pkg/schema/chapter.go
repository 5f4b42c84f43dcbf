package schema

type ChapterResponse struct {
	NarrativeChapter string   `json:"narrative_chapter" jsonschema_description:"One rich, descriptive paragraph continuing the story from the reader's choice"`
	NextChoices      []string `json:"next_choices" jsonschema_description:"Three distinct single-sentence plot choices; one must be a Wildcard"`
	ImagePrompt      string   `json:"image_prompt" jsonschema_description:"Concise comma-separated keywords describing the scene for an image generator"`
}
