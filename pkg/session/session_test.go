package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyteller/pkg/narration"
	"storyteller/pkg/story"
)

func TestStore(t *testing.T) {
	st := NewStore(time.Hour)
	s := st.New()

	got, ok := st.Get(s.ID)
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Equal(t, 1, st.Count())

	_, ok = st.Get("missing")
	assert.False(t, ok)

	st.Delete(s.ID)
	_, ok = st.Get(s.ID)
	assert.False(t, ok)
}

func TestStoreDeleteClosesStreams(t *testing.T) {
	st := NewStore(time.Hour)
	s := st.New()
	ch, cancel := s.Subscribe()
	defer cancel()

	st.Delete(s.ID)
	_, open := <-ch
	assert.False(t, open)
}

func TestLogin(t *testing.T) {
	s := newSession()
	_, ok := s.User()
	assert.False(t, ok)

	s.Login("ada")
	user, ok := s.User()
	assert.True(t, ok)
	assert.Equal(t, "ada", user)

	s.Commit(&story.State{Stage: story.StoryStart, WorldBible: "B"})
	s.Logout()
	_, ok = s.User()
	assert.False(t, ok)
	assert.Equal(t, story.WorldForge, s.Snapshot().Stage)
}

func TestSnapshotIsolation(t *testing.T) {
	s := newSession()
	snap := s.Snapshot()
	snap.Chapters = append(snap.Chapters, story.Chapter{Text: "draft"})

	assert.Empty(t, s.Snapshot().Chapters)
	s.Commit(snap)
	assert.Len(t, s.Snapshot().Chapters, 1)
}

func TestTryBegin(t *testing.T) {
	s := newSession()
	require.True(t, s.TryBegin())
	assert.False(t, s.TryBegin(), "one submission at a time")
	s.End()
	assert.True(t, s.TryBegin())
	s.End()
}

func TestFlash(t *testing.T) {
	s := newSession()
	assert.Nil(t, s.TakeFlash())
	s.SetFlash(Flash{Level: "error", Message: "boom", Detail: "raw"})
	f := s.TakeFlash()
	require.NotNil(t, f)
	assert.Equal(t, "boom", f.Message)
	assert.Nil(t, s.TakeFlash())
}

func TestPublishNeverBlocks(t *testing.T) {
	s := newSession()
	assert.False(t, s.Publish("status", "nobody listening"))

	ch, cancel := s.Subscribe()
	for range cap(ch) + 5 {
		s.Publish("status", "x")
	}
	assert.Len(t, ch, cap(ch))
	cancel()
	cancel()
}

func TestProgressAndNarration(t *testing.T) {
	s := newSession()
	ch, cancel := s.Subscribe()
	defer cancel()

	s.Progress(story.MsgWeaving)
	assert.Equal(t, story.MsgWeaving, s.Status())
	ev := <-ch
	assert.Equal(t, "status", ev.Name)

	s.Speaker.Speak("Once upon a time")
	ev = <-ch
	assert.Equal(t, narration.EventName, ev.Name)
	cmd, ok := ev.Data.(narration.Command)
	require.True(t, ok)
	assert.Equal(t, narration.ActionSpeak, cmd.Action)

	require.True(t, s.TryBegin())
	s.End()
	assert.Empty(t, s.Status())
}
