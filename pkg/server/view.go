package server

import (
	"storyteller/pkg/session"
	"storyteller/pkg/story"
)

type chapterView struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	ImageURL string `json:"image_url,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

type storyView struct {
	Stage         story.Stage   `json:"stage"`
	HasWorldBible bool          `json:"has_world_bible"`
	Chapters      []chapterView `json:"chapters"`
	Choices       []string      `json:"choices"`
	Status        string        `json:"status,omitempty"`
}

func newStoryView(sess *session.Session) storyView {
	st := sess.Snapshot()
	v := storyView{
		Stage:         st.Stage,
		HasWorldBible: st.HasWorldBible(),
		Chapters:      make([]chapterView, 0, len(st.Chapters)),
		Choices:       st.PendingChoices,
		Status:        sess.Status(),
	}
	for _, ch := range st.Chapters {
		cv := chapterView{ID: ch.ID, Text: ch.Text}
		if ch.Illustration != nil {
			cv.ImageURL = ch.Illustration.URL()
			cv.Caption = ch.Illustration.Directive
		}
		v.Chapters = append(v.Chapters, cv)
	}
	return v
}

type pageView struct {
	storyView
	User                string
	Authenticated       bool
	Flash               *session.Flash
	IllustrationEnabled bool
}

func (s *Server) page(sess *session.Session) pageView {
	user, ok := sess.User()
	return pageView{
		storyView:           newStoryView(sess),
		User:                user,
		Authenticated:       ok,
		Flash:               sess.TakeFlash(),
		IllustrationEnabled: s.IllustrationEnabled,
	}
}

func (v pageView) InForge() bool { return v.Stage == story.WorldForge }
func (v pageView) InStart() bool { return v.Stage == story.StoryStart }
func (v pageView) InCycle() bool { return v.Stage == story.StoryCycle }
