package server

import (
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"

	"storyteller/pkg/errs"
	"storyteller/pkg/session"
)

type loginReq struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// POST /login
func (s *Server) handlePostLogin(c echo.Context) error {
	sess := sessionFrom(c)

	var req loginReq
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
	}
	req.Username = strings.TrimSpace(req.Username)

	if !s.Auth.CheckLogin(req.Username, req.Password) {
		log.Warn("login rejected", "user", req.Username, "ip", c.RealIP())
		if wantsJSON(c) {
			_, body := errorResponse(errs.ErrAuthentication)
			return c.JSON(http.StatusUnauthorized, body)
		}
		sess.SetFlash(session.Flash{Level: "error", Message: "Invalid username or password."})
		return c.Redirect(http.StatusSeeOther, "/")
	}

	// fresh ID on privilege change
	s.Sessions.Delete(sess.ID)
	sess = s.Sessions.New()
	sess.Login(req.Username)
	s.setCookie(c, sess)
	c.Set(sessionKey, sess)

	log.Info("login", "user", req.Username)
	return done(c, sess, http.StatusOK, &session.Flash{Level: "info", Message: "Welcome, " + req.Username + "!"})
}

// POST /logout
func (s *Server) handlePostLogout(c echo.Context) error {
	sess := sessionFrom(c)
	sess.Speaker.Stop()
	sess.Logout()
	s.Sessions.Delete(sess.ID)

	sess = s.Sessions.New()
	s.setCookie(c, sess)
	c.Set(sessionKey, sess)
	return done(c, sess, http.StatusOK, nil)
}
