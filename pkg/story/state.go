package story

import (
	"slices"
	"strings"

	"storyteller/pkg/illustration"
)

// Stage is the session's position in the flow.
type Stage string

const (
	WorldForge Stage = "world_forge"
	StoryStart Stage = "story_start"
	StoryCycle Stage = "story_cycle"
)

func (s Stage) String() string { return string(s) }

// Chapter is one unit of narrative text plus an optional illustration.
type Chapter struct {
	ID           string              `json:"id"`
	Text         string              `json:"text"`
	Illustration *illustration.Image `json:"illustration,omitempty"`
}

// State is the evolving story owned by a single session.
// Chapters are append-only and PendingChoices is replaced wholesale after every chapter.
type State struct {
	Stage          Stage     `json:"stage"`
	WorldBible     string    `json:"-"`
	Chapters       []Chapter `json:"chapters"`
	PendingChoices []string  `json:"pending_choices"`
}

func NewState() *State {
	return &State{
		Stage:          WorldForge,
		Chapters:       []Chapter{},
		PendingChoices: []string{},
	}
}

// HasChoice reports whether choice is one of the pending options.
func (s *State) HasChoice(choice string) bool {
	return slices.Contains(s.PendingChoices, choice)
}

// Text is every chapter in narrative order joined by single spaces.
func (s *State) Text() string {
	texts := make([]string, len(s.Chapters))
	for i, ch := range s.Chapters {
		texts[i] = ch.Text
	}
	return strings.Join(texts, " ")
}

// HasWorldBible is exposed for views; the bible itself stays hidden from the reader.
func (s *State) HasWorldBible() bool { return s.WorldBible != "" }

// Clone copies s so a submission can run without touching the live state.
func (s *State) Clone() *State {
	c := *s
	c.Chapters = slices.Clone(s.Chapters)
	c.PendingChoices = slices.Clone(s.PendingChoices)
	if c.Chapters == nil {
		c.Chapters = []Chapter{}
	}
	if c.PendingChoices == nil {
		c.PendingChoices = []string{}
	}
	return &c
}
