package server

import (
	"context"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"

	"storyteller/pkg/errs"
	"storyteller/pkg/session"
	"storyteller/pkg/story"
)

type startReq struct {
	Opening string `json:"opening" form:"opening"`
}

type chooseReq struct {
	Choice string `json:"choice" form:"choice"`
}

type transition func(ctx context.Context, m *story.Machine, st *story.State) (story.Result, error)

// submit runs one transition against a private copy of the session's story and
// commits it only on success.
func (s *Server) submit(c echo.Context, run transition) error {
	sess := sessionFrom(c)
	if !sess.TryBegin() {
		return fail(c, sess, ErrBusy)
	}
	defer sess.End()

	st := sess.Snapshot()
	res, err := run(c.Request().Context(), s.Machine.WithProgress(sess.Progress), st)
	if err != nil {
		log.Warn("submission failed", "session", sess.ID, "stage", st.Stage, "err", err)
		return fail(c, sess, err)
	}
	sess.Commit(st)

	var flash *session.Flash
	if res.IllustrationErr != nil {
		flash = &session.Flash{
			Level:   "warning",
			Message: "The chapter was added without an illustration.",
			Detail:  res.IllustrationErr.Error(),
		}
		if ge, ok := errs.AsGeneration(res.IllustrationErr); ok && ge.Raw != "" {
			flash.Detail = ge.Raw
		}
	}
	return done(c, sess, http.StatusOK, flash)
}

// POST /world
func (s *Server) handlePostWorld(c echo.Context) error {
	var req story.WorldParams
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
	}
	return s.submit(c, func(ctx context.Context, m *story.Machine, st *story.State) (story.Result, error) {
		return story.Result{}, m.ForgeWorld(ctx, st, req)
	})
}

// POST /story/start
func (s *Server) handlePostStart(c echo.Context) error {
	var req startReq
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
	}
	return s.submit(c, func(ctx context.Context, m *story.Machine, st *story.State) (story.Result, error) {
		return m.Start(ctx, st, req.Opening)
	})
}

// POST /story/choose
func (s *Server) handlePostChoose(c echo.Context) error {
	var req chooseReq
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
	}
	return s.submit(c, func(ctx context.Context, m *story.Machine, st *story.State) (story.Result, error) {
		return m.Choose(ctx, st, req.Choice)
	})
}

// POST /story/restart
func (s *Server) handlePostRestart(c echo.Context) error {
	sess := sessionFrom(c)
	sess.Speaker.Stop()
	return s.submit(c, func(_ context.Context, m *story.Machine, st *story.State) (story.Result, error) {
		m.Restart(st)
		return story.Result{}, nil
	})
}
