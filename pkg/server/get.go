package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"storyteller/pkg/illustration"
)

func (s *Server) handleGetHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"service":      "Storyteller",
		"status":       "ok",
		"sessions":     s.Sessions.Count(),
		"illustration": s.IllustrationEnabled,
	})
}

// GET /
func (s *Server) handleGetRoot(c echo.Context) error {
	sess := sessionFrom(c)
	return c.Render(http.StatusOK, "index.html", s.page(sess))
}

// GET /api/story
func (s *Server) handleGetStory(c echo.Context) error {
	return c.JSON(http.StatusOK, newStoryView(sessionFrom(c)))
}

// GET /images/:id
func (s *Server) handleGetImage(c echo.Context) error {
	if s.Images == nil {
		return echo.NewHTTPError(http.StatusNotFound, "illustrations are disabled")
	}
	data, err := s.Images.Load(c.Param("id"))
	if errors.Is(err, illustration.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "image not found")
	}
	if err != nil {
		return err
	}
	c.Response().Header().Set("Cache-Control", "private, max-age=86400, immutable")
	return c.Blob(http.StatusOK, "image/webp", data)
}
