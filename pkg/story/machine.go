package story

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/segmentio/ksuid"

	"storyteller/pkg/errs"
	"storyteller/pkg/illustration"
	"storyteller/pkg/prompts"
	"storyteller/pkg/schema"
	"storyteller/pkg/utils"
)

var (
	ErrWrongStage    = errors.New("action not available at this stage")
	ErrInvalidInput  = errors.New("missing input")
	ErrUnknownChoice = errors.New("choice is not one of the offered options")
)

// Progress messages shown while a remote call is running.
const (
	MsgForging   = "Generating the core of your universe..."
	MsgWeaving   = "The Storyteller is weaving the next chapter..."
	MsgPainting  = "The artist is painting the scene..."
	MsgUnpainted = "The artist could not paint this scene."
)

// OmittedMarker replaces chapters dropped from the prompt context.
const OmittedMarker = "[Earlier chapters omitted]"

// Narrator produces world bibles and chapters.
type Narrator interface {
	WorldBible(ctx context.Context, theme, archetype, contradiction string) (string, error)
	Chapter(ctx context.Context, prompt string) (schema.ChapterResponse, error)
}

// Illustrator renders an image directive.
type Illustrator interface {
	Illustrate(ctx context.Context, directive string) (*illustration.Image, error)
}

// WorldParams are the three forge inputs.
type WorldParams struct {
	Theme         string `json:"theme" form:"theme"`
	Archetype     string `json:"archetype" form:"archetype"`
	Contradiction string `json:"contradiction" form:"contradiction"`
}

func (p WorldParams) valid() bool {
	return strings.TrimSpace(p.Theme) != "" &&
		strings.TrimSpace(p.Archetype) != "" &&
		strings.TrimSpace(p.Contradiction) != ""
}

// Result describes a successful Start or Choose.
// IllustrationErr is set when the new chapters were appended without an image
// because the illustrator failed; an unconfigured illustrator is not reported.
type Result struct {
	Added           []Chapter
	IllustrationErr error
}

// Machine sequences the story stages. It holds no per-session data and is safe
// to share; callers serialise access to each State.
type Machine struct {
	Narrator    Narrator
	Illustrator Illustrator

	// CountTokens measures context size; MaxContextTokens <= 0 disables trimming.
	CountTokens      func(string) int
	MaxContextTokens int

	NarrativeTimeout    time.Duration
	IllustrationTimeout time.Duration

	progress func(string)
}

func New(narrator Narrator, illustrator Illustrator) *Machine {
	return &Machine{
		Narrator:            narrator,
		Illustrator:         illustrator,
		CountTokens:         utils.NumTokens,
		MaxContextTokens:    24000,
		NarrativeTimeout:    90 * time.Second,
		IllustrationTimeout: 120 * time.Second,
	}
}

// WithProgress returns a copy of m that reports status lines to fn.
func (m *Machine) WithProgress(fn func(string)) *Machine {
	c := *m
	c.progress = fn
	return &c
}

func (m *Machine) report(msg string) {
	if m.progress != nil {
		m.progress(msg)
	}
}

func bounded(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func wrongStage(st *State, want Stage) error {
	return fmt.Errorf("%w: in %s, need %s", ErrWrongStage, st.Stage, want)
}

// ForgeWorld generates the world bible once and moves to StoryStart.
func (m *Machine) ForgeWorld(ctx context.Context, st *State, p WorldParams) error {
	if st.Stage != WorldForge {
		return wrongStage(st, WorldForge)
	}
	if !p.valid() {
		return fmt.Errorf("%w: theme, archetype and contradiction are required", ErrInvalidInput)
	}

	m.report(MsgForging)
	ctx, cancel := bounded(ctx, m.NarrativeTimeout)
	defer cancel()

	bible, err := m.Narrator.WorldBible(ctx, p.Theme, p.Archetype, p.Contradiction)
	if err != nil {
		return err
	}

	st.WorldBible = bible
	st.Stage = StoryStart
	log.Info("World forged", "theme", p.Theme, "archetype", p.Archetype)
	return nil
}

// Start turns the opening sentence into the first two chapters. The returned
// illustration belongs to the opening chapter.
func (m *Machine) Start(ctx context.Context, st *State, opening string) (Result, error) {
	if st.Stage != StoryStart {
		return Result{}, wrongStage(st, StoryStart)
	}
	opening = strings.TrimSpace(opening)
	if opening == "" {
		return Result{}, fmt.Errorf("%w: opening sentence is required", ErrInvalidInput)
	}

	resp, err := m.chapter(ctx, "", st.WorldBible, opening)
	if err != nil {
		return Result{}, err
	}
	img, illErr := m.illustrate(ctx, resp.ImagePrompt)

	added := []Chapter{
		{ID: ksuid.New().String(), Text: opening, Illustration: img},
		{ID: ksuid.New().String(), Text: resp.NarrativeChapter},
	}
	st.Chapters = append(st.Chapters, added...)
	st.PendingChoices = slices.Clone(resp.NextChoices)
	st.Stage = StoryCycle
	return Result{Added: added, IllustrationErr: illErr}, nil
}

// Choose continues the story along one of the pending choices.
func (m *Machine) Choose(ctx context.Context, st *State, choice string) (Result, error) {
	if st.Stage != StoryCycle {
		return Result{}, wrongStage(st, StoryCycle)
	}
	choice = strings.TrimSpace(choice)
	if choice == "" {
		return Result{}, fmt.Errorf("%w: choice is required", ErrInvalidInput)
	}
	if !st.HasChoice(choice) {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownChoice, choice)
	}

	resp, err := m.chapter(ctx, m.Context(st.Chapters), st.WorldBible, choice)
	if err != nil {
		return Result{}, err
	}
	img, illErr := m.illustrate(ctx, resp.ImagePrompt)

	added := []Chapter{{ID: ksuid.New().String(), Text: resp.NarrativeChapter, Illustration: img}}
	st.Chapters = append(st.Chapters, added...)
	st.PendingChoices = slices.Clone(resp.NextChoices)
	return Result{Added: added, IllustrationErr: illErr}, nil
}

// Restart discards the story. It is legal from any stage.
func (m *Machine) Restart(st *State) {
	*st = *NewState()
}

func (m *Machine) chapter(ctx context.Context, storyContext, bible, choice string) (schema.ChapterResponse, error) {
	m.report(MsgWeaving)
	ctx, cancel := bounded(ctx, m.NarrativeTimeout)
	defer cancel()

	return m.Narrator.Chapter(ctx, prompts.Chapter(storyContext, bible, choice))
}

// illustrate never fails the submission; the error is only returned for display.
func (m *Machine) illustrate(ctx context.Context, directive string) (*illustration.Image, error) {
	if m.Illustrator == nil || strings.TrimSpace(directive) == "" {
		return nil, nil
	}

	m.report(MsgPainting)
	ctx, cancel := bounded(ctx, m.IllustrationTimeout)
	defer cancel()

	img, err := m.Illustrator.Illustrate(ctx, directive)
	if err == nil {
		return img, nil
	}
	if errors.Is(err, &errs.GenerationError{Kind: errs.Unconfigured}) {
		return nil, nil
	}
	log.Warn("Illustration skipped", "err", err)
	m.report(MsgUnpainted)
	return nil, err
}

// Context joins chapter texts in order for the next prompt. When the token
// budget is exceeded the oldest chapters are replaced by OmittedMarker; the
// newest chapter is always kept.
func (m *Machine) Context(chapters []Chapter) string {
	texts := make([]string, len(chapters))
	for i, ch := range chapters {
		texts[i] = ch.Text
	}
	full := strings.Join(texts, " ")
	// a token is never shorter than one byte
	if m.MaxContextTokens <= 0 || len(texts) < 2 || len(full) <= m.MaxContextTokens {
		return full
	}

	count := m.CountTokens
	if count == nil {
		count = utils.EstimateTokens
	}
	if count(full) <= m.MaxContextTokens {
		return full
	}

	sizes := make([]int, len(texts))
	total := count(OmittedMarker)
	for i, t := range texts {
		sizes[i] = count(t) + 1
		total += sizes[i]
	}

	first := 1
	total -= sizes[0]
	for first < len(texts)-1 && total > m.MaxContextTokens {
		total -= sizes[first]
		first++
	}
	return OmittedMarker + " " + strings.Join(texts[first:], " ")
}
