package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Narration never takes the submission lock; it only queues a command for the page.

// POST /narration/speak
func (s *Server) handlePostSpeak(c echo.Context) error {
	sess := sessionFrom(c)
	sess.Speaker.Speak(sess.Snapshot().Text())
	return narrated(c)
}

// POST /narration/pause
func (s *Server) handlePostPause(c echo.Context) error {
	sessionFrom(c).Speaker.Pause()
	return narrated(c)
}

// POST /narration/stop
func (s *Server) handlePostStop(c echo.Context) error {
	sessionFrom(c).Speaker.Stop()
	return narrated(c)
}

func narrated(c echo.Context) error {
	if wantsJSON(c) {
		return c.NoContent(http.StatusAccepted)
	}
	return c.Redirect(http.StatusSeeOther, "/")
}
