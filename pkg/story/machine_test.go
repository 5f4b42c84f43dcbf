package story

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyteller/pkg/errs"
	"storyteller/pkg/illustration"
	"storyteller/pkg/narrative"
	"storyteller/pkg/schema"
)

type fakeNarrator struct {
	mu          sync.Mutex
	bible       string
	bibleErr    error
	bibleCalls  int
	chapters    []schema.ChapterResponse
	chapterErr  error
	prompts     []string
	hadDeadline bool
	ctxErr      error
}

func (f *fakeNarrator) WorldBible(ctx context.Context, theme, archetype, contradiction string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bibleCalls++
	_, f.hadDeadline = ctx.Deadline()
	f.ctxErr = ctx.Err()
	return f.bible, f.bibleErr
}

func (f *fakeNarrator) Chapter(ctx context.Context, prompt string) (schema.ChapterResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	_, f.hadDeadline = ctx.Deadline()
	if f.chapterErr != nil {
		return schema.ChapterResponse{}, f.chapterErr
	}
	if len(f.chapters) == 0 {
		return schema.ChapterResponse{NarrativeChapter: "More happens.", NextChoices: []string{"A", "B", "C"}, ImagePrompt: "scene"}, nil
	}
	resp := f.chapters[0]
	f.chapters = f.chapters[1:]
	return resp, nil
}

type fakeIllustrator struct {
	err        error
	directives []string
}

func (f *fakeIllustrator) Illustrate(_ context.Context, directive string) (*illustration.Image, error) {
	f.directives = append(f.directives, directive)
	if f.err != nil {
		return nil, f.err
	}
	return &illustration.Image{ID: "img-" + directive, Directive: directive}, nil
}

func startedState(t *testing.T, m *Machine) *State {
	t.Helper()
	st := NewState()
	require.NoError(t, m.ForgeWorld(context.Background(), st, WorldParams{"Revenge", "The Outcast", "Bored magic"}))
	_, err := m.Start(context.Background(), st, "The last starship captain woke from cryo-sleep")
	require.NoError(t, err)
	return st
}

func TestForgeWorld(t *testing.T) {
	n := &fakeNarrator{bible: "BIBLE"}
	m := New(n, nil)
	st := NewState()

	err := m.ForgeWorld(context.Background(), st, WorldParams{
		Theme:         "Revenge",
		Archetype:     "The Outcast",
		Contradiction: "A city of high magic where everyone is profoundly bored",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, n.bibleCalls)
	assert.Equal(t, StoryStart, st.Stage)
	assert.Equal(t, "BIBLE", st.WorldBible)
	assert.True(t, n.hadDeadline)

	err = m.ForgeWorld(context.Background(), st, WorldParams{"a", "b", "c"})
	assert.ErrorIs(t, err, ErrWrongStage)
	assert.Equal(t, 1, n.bibleCalls, "world bible is never regenerated")
	assert.Equal(t, "BIBLE", st.WorldBible)
}

func TestForgeWorldValidation(t *testing.T) {
	n := &fakeNarrator{bible: "BIBLE"}
	st := NewState()

	err := New(n, nil).ForgeWorld(context.Background(), st, WorldParams{Theme: "Revenge", Archetype: " ", Contradiction: "x"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Zero(t, n.bibleCalls)
	assert.Equal(t, WorldForge, st.Stage)
}

func TestForgeWorldFailure(t *testing.T) {
	n := &fakeNarrator{bibleErr: errs.Rejected(503, "overloaded", errors.New("unavailable"))}
	st := NewState()

	err := New(n, nil).ForgeWorld(context.Background(), st, WorldParams{"a", "b", "c"})
	assert.ErrorIs(t, err, &errs.GenerationError{Kind: errs.UpstreamRejected})
	assert.Equal(t, WorldForge, st.Stage)
	assert.Empty(t, st.WorldBible)
}

func TestStart(t *testing.T) {
	n := &fakeNarrator{bible: "BIBLE", chapters: []schema.ChapterResponse{{
		NarrativeChapter: "Frost cracked along the hull.",
		NextChoices:      []string{"A", "B", "C"},
		ImagePrompt:      "frozen bridge, stars",
	}}}
	ill := &fakeIllustrator{}
	m := New(n, ill)

	var progress []string
	m = m.WithProgress(func(s string) { progress = append(progress, s) })

	st := NewState()
	require.NoError(t, m.ForgeWorld(context.Background(), st, WorldParams{"Revenge", "The Outcast", "Bored magic"}))
	res, err := m.Start(context.Background(), st, "The last starship captain woke from cryo-sleep")
	require.NoError(t, err)

	require.Len(t, st.Chapters, 2)
	assert.Equal(t, "The last starship captain woke from cryo-sleep", st.Chapters[0].Text)
	require.NotNil(t, st.Chapters[0].Illustration)
	assert.Equal(t, "frozen bridge, stars", st.Chapters[0].Illustration.Directive)
	assert.Equal(t, "Frost cracked along the hull.", st.Chapters[1].Text)
	assert.Nil(t, st.Chapters[1].Illustration)
	assert.Equal(t, []string{"A", "B", "C"}, st.PendingChoices)
	assert.Equal(t, StoryCycle, st.Stage)
	assert.Len(t, res.Added, 2)
	assert.NoError(t, res.IllustrationErr)

	require.Len(t, n.prompts, 1)
	assert.Contains(t, n.prompts[0], `The full story context so far is: "".`)
	assert.Contains(t, n.prompts[0], `"The last starship captain woke from cryo-sleep"`)
	assert.Contains(t, n.prompts[0], `"BIBLE"`)
	assert.Equal(t, []string{MsgForging, MsgWeaving, MsgPainting}, progress)
}

func TestStartInvalid(t *testing.T) {
	n := &fakeNarrator{bible: "BIBLE"}
	m := New(n, nil)

	st := NewState()
	_, err := m.Start(context.Background(), st, "hello")
	assert.ErrorIs(t, err, ErrWrongStage)

	require.NoError(t, m.ForgeWorld(context.Background(), st, WorldParams{"a", "b", "c"}))
	_, err = m.Start(context.Background(), st, "   ")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Empty(t, st.Chapters)
	assert.Empty(t, n.prompts)
}

func TestStartGarbledReply(t *testing.T) {
	raw := "I'm sorry, I can't write JSON today."
	_, decodeErr := narrative.DecodeChapter(raw)
	n := &fakeNarrator{bible: "BIBLE", chapterErr: decodeErr}
	m := New(n, &fakeIllustrator{})

	st := NewState()
	require.NoError(t, m.ForgeWorld(context.Background(), st, WorldParams{"a", "b", "c"}))
	_, err := m.Start(context.Background(), st, "Once upon a time")

	ge, ok := errs.AsGeneration(err)
	require.True(t, ok)
	assert.Equal(t, errs.MalformedResponse, ge.Kind)
	assert.Equal(t, raw, ge.Raw)
	assert.Empty(t, st.Chapters, "opening line is not appended on failure")
	assert.Empty(t, st.PendingChoices)
	assert.Equal(t, StoryStart, st.Stage)
}

func TestChooseGrowsByOne(t *testing.T) {
	n := &fakeNarrator{bible: "BIBLE"}
	m := New(n, &fakeIllustrator{})
	st := startedState(t, m)

	for i := range 3 {
		before := len(st.Chapters)
		res, err := m.Choose(context.Background(), st, st.PendingChoices[i%len(st.PendingChoices)])
		require.NoError(t, err)
		assert.Len(t, st.Chapters, before+1)
		require.Len(t, res.Added, 1)
		assert.NotNil(t, st.Chapters[len(st.Chapters)-1].Illustration)
	}
	assert.Equal(t, StoryCycle, st.Stage)
}

func TestChooseUsesContextAndReplacesChoices(t *testing.T) {
	n := &fakeNarrator{bible: "BIBLE", chapters: []schema.ChapterResponse{
		{NarrativeChapter: "Two.", NextChoices: []string{"Left", "Right", "Wildcard"}, ImagePrompt: "p"},
		{NarrativeChapter: "Three.", NextChoices: []string{"Up", "Down"}, ImagePrompt: "q"},
	}}
	m := New(n, nil)
	st := NewState()
	require.NoError(t, m.ForgeWorld(context.Background(), st, WorldParams{"a", "b", "c"}))
	_, err := m.Start(context.Background(), st, "One.")
	require.NoError(t, err)

	_, err = m.Choose(context.Background(), st, "Right")
	require.NoError(t, err)

	assert.Contains(t, n.prompts[1], `The full story context so far is: "One. Two.".`)
	assert.Contains(t, n.prompts[1], `was: "Right".`)
	assert.Equal(t, []string{"Up", "Down"}, st.PendingChoices, "choices are replaced, not merged")
	assert.Equal(t, "One. Two. Three.", st.Text())
}

func TestChooseUnknownChoice(t *testing.T) {
	n := &fakeNarrator{bible: "BIBLE"}
	m := New(n, nil)
	st := startedState(t, m)

	chapters := len(st.Chapters)
	choices := append([]string(nil), st.PendingChoices...)
	calls := len(n.prompts)

	_, err := m.Choose(context.Background(), st, "Burn it all down")
	assert.ErrorIs(t, err, ErrUnknownChoice)
	assert.Len(t, st.Chapters, chapters)
	assert.Equal(t, choices, st.PendingChoices)
	assert.Len(t, n.prompts, calls)
}

func TestChooseWrongStage(t *testing.T) {
	st := NewState()
	st.PendingChoices = []string{"A"}
	_, err := New(&fakeNarrator{}, nil).Choose(context.Background(), st, "A")
	assert.ErrorIs(t, err, ErrWrongStage)
}

func TestIllustrationFailureStillAppends(t *testing.T) {
	failures := []error{
		errs.Rejected(500, `{"message":"boom"}`, errors.New("unexpected status code: 500")),
		errs.Malformed("{}", errors.New("no artifacts in response")),
		errors.New("queue is full"),
	}
	for _, failure := range failures {
		n := &fakeNarrator{bible: "BIBLE"}
		m := New(n, &fakeIllustrator{err: failure})
		st := NewState()
		require.NoError(t, m.ForgeWorld(context.Background(), st, WorldParams{"a", "b", "c"}))

		res, err := m.Start(context.Background(), st, "Opening.")
		require.NoError(t, err)
		require.Len(t, st.Chapters, 2)
		assert.Nil(t, st.Chapters[0].Illustration)
		assert.ErrorIs(t, res.IllustrationErr, failure)

		res, err = m.Choose(context.Background(), st, "A")
		require.NoError(t, err)
		require.Len(t, st.Chapters, 3)
		assert.Nil(t, st.Chapters[2].Illustration)
		assert.Error(t, res.IllustrationErr)
	}
}

func TestIllustrationUnconfiguredIsQuiet(t *testing.T) {
	m := New(&fakeNarrator{bible: "BIBLE"}, &fakeIllustrator{err: errs.NotConfigured("illustration")})
	st := NewState()
	require.NoError(t, m.ForgeWorld(context.Background(), st, WorldParams{"a", "b", "c"}))

	res, err := m.Start(context.Background(), st, "Opening.")
	require.NoError(t, err)
	assert.NoError(t, res.IllustrationErr)
	assert.Nil(t, st.Chapters[0].Illustration)
}

func TestNarrativeFailureDoesNotMutate(t *testing.T) {
	n := &fakeNarrator{bible: "BIBLE"}
	ill := &fakeIllustrator{}
	m := New(n, ill)
	st := startedState(t, m)

	chapters := append([]Chapter(nil), st.Chapters...)
	choices := append([]string(nil), st.PendingChoices...)
	illustrated := len(ill.directives)

	n.chapterErr = errs.Rejected(0, "", context.DeadlineExceeded)
	_, err := m.Choose(context.Background(), st, "B")
	require.Error(t, err)

	assert.Equal(t, chapters, st.Chapters)
	assert.Equal(t, choices, st.PendingChoices)
	assert.Equal(t, StoryCycle, st.Stage)
	assert.Len(t, ill.directives, illustrated, "no illustration without a chapter")
}

func TestRestartFromAnyStage(t *testing.T) {
	m := New(&fakeNarrator{bible: "BIBLE"}, &fakeIllustrator{})

	fresh := NewState()
	m.Restart(fresh)
	assert.Equal(t, NewState(), fresh)

	forged := NewState()
	require.NoError(t, m.ForgeWorld(context.Background(), forged, WorldParams{"a", "b", "c"}))
	m.Restart(forged)
	assert.Equal(t, NewState(), forged)

	cycling := startedState(t, m)
	m.Restart(cycling)
	assert.Equal(t, WorldForge, cycling.Stage)
	assert.Empty(t, cycling.WorldBible)
	assert.Empty(t, cycling.Chapters)
	assert.Empty(t, cycling.PendingChoices)
}

func TestSubmissionSurvivesCallerCancel(t *testing.T) {
	n := &fakeNarrator{bible: "BIBLE"}
	m := New(n, nil)
	m.NarrativeTimeout = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	st := NewState()
	require.NoError(t, m.ForgeWorld(ctx, st, WorldParams{"a", "b", "c"}))
	assert.True(t, n.hadDeadline)
	assert.NoError(t, n.ctxErr, "request cancellation does not reach the backend call")
}

func TestContextBudget(t *testing.T) {
	m := New(nil, nil)
	m.CountTokens = func(s string) int { return len(strings.Fields(s)) }
	chapters := []Chapter{
		{Text: "one one one one one one one one"},
		{Text: "two two two two"},
		{Text: "three three three three"},
	}
	full := "one one one one one one one one two two two two three three three three"

	m.MaxContextTokens = 0
	assert.Equal(t, full, m.Context(chapters))

	m.MaxContextTokens = 100
	assert.Equal(t, full, m.Context(chapters))

	m.MaxContextTokens = 13
	assert.Equal(t, OmittedMarker+" two two two two three three three three", m.Context(chapters))

	m.MaxContextTokens = 1
	assert.Equal(t, OmittedMarker+" three three three three", m.Context(chapters), "newest chapter is always kept")

	assert.Equal(t, "solo", m.Context([]Chapter{{Text: "solo"}}))
	assert.Empty(t, m.Context(nil))
}

func TestStateClone(t *testing.T) {
	m := New(&fakeNarrator{bible: "BIBLE"}, nil)
	st := startedState(t, m)

	c := st.Clone()
	_, err := m.Choose(context.Background(), c, "A")
	require.NoError(t, err)

	assert.Len(t, st.Chapters, 2)
	assert.Len(t, c.Chapters, 3)
	assert.Equal(t, st.WorldBible, c.WorldBible)
}
