package schema

// StabilityRequest is the text-to-image payload for the Stability v1 generation API.
type StabilityRequest struct {
	TextPrompts []TextPrompt `json:"text_prompts"`
	CFGScale    float64      `json:"cfg_scale"`
	Height      int          `json:"height"`
	Width       int          `json:"width"`
	Samples     int          `json:"samples"`
	Steps       int          `json:"steps"`
}

type TextPrompt struct {
	Text   string  `json:"text"`
	Weight float64 `json:"weight,omitempty"`
}

type StabilityResponse struct {
	Artifacts []Artifact `json:"artifacts"`
}

type Artifact struct {
	Base64       string `json:"base64"`
	Seed         int64  `json:"seed,omitempty"`
	FinishReason string `json:"finishReason,omitempty"`
}

func DefaultStabilityRequest(prompt string) *StabilityRequest {
	return &StabilityRequest{
		TextPrompts: []TextPrompt{{Text: prompt}},
		CFGScale:    7,
		Height:      768,
		Width:       1024,
		Samples:     1,
		Steps:       30,
	}
}

// SDWebUIRequest is the payload for a self-hosted Stable Diffusion WebUI txt2img call.
type SDWebUIRequest struct {
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negative_prompt,omitempty"`
	Steps          int     `json:"steps"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	CFGScale       float64 `json:"cfg_scale,omitempty"`
	BatchSize      int     `json:"batch_size,omitempty"`
}

type SDWebUIResponse struct {
	Images []string `json:"images"`
	Info   string   `json:"info"`
	Error  string   `json:"error,omitempty"`
}

func DefaultSDWebUIRequest(prompt string) *SDWebUIRequest {
	return &SDWebUIRequest{
		Prompt:    prompt,
		Steps:     30,
		Width:     1024,
		Height:    768,
		CFGScale:  7,
		BatchSize: 1,
	}
}
