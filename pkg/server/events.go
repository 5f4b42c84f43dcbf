package server

import (
	"time"

	"github.com/labstack/echo/v4"

	"storyteller/pkg/utils"
)

const keepAlive = 25 * time.Second

// GET /events streams progress and narration commands for the caller's session.
func (s *Server) handleGetEvents(c echo.Context) error {
	sess := sessionFrom(c)
	sse, err := utils.NewSSEWriter(c)
	if err != nil {
		return err
	}
	events, cancel := sess.Subscribe()
	defer cancel()

	if err := sse.Event("status", map[string]string{"message": sess.Status()}); err != nil {
		return nil
	}

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.Ctx.Done():
			sse.Close()
			return nil
		case <-ticker.C:
			if err := sse.Comment("ping"); err != nil {
				return nil
			}
		case ev, ok := <-events:
			if !ok {
				sse.Close()
				return nil
			}
			if err := sse.Event(ev.Name, ev.Data); err != nil {
				return nil
			}
		}
	}
}
