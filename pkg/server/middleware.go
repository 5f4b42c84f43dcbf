package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"storyteller/pkg/session"
)

const (
	cookieName = "storyteller_session"
	sessionKey = "session"
)

func (s *Server) setCookie(c echo.Context, sess *session.Session) {
	c.SetCookie(&http.Cookie{
		Name:     cookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   c.Scheme() == "https",
		MaxAge:   int(s.Sessions.TTL().Seconds()),
	})
}

// withSession attaches the caller's session, creating one when the cookie is missing or stale.
func (s *Server) withSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		var sess *session.Session
		if cookie, err := c.Cookie(cookieName); err == nil {
			sess, _ = s.Sessions.Get(cookie.Value)
		}
		if sess == nil {
			sess = s.Sessions.New()
			s.setCookie(c, sess)
		}
		c.Set(sessionKey, sess)
		return next(c)
	}
}

func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess := sessionFrom(c)
		if _, ok := sess.User(); ok {
			return next(c)
		}
		if wantsJSON(c) || c.Request().Method == http.MethodGet {
			return echo.NewHTTPError(http.StatusUnauthorized, "login required")
		}
		sess.SetFlash(session.Flash{Level: "error", Message: "Please log in to continue."})
		return c.Redirect(http.StatusSeeOther, "/")
	}
}

func sessionFrom(c echo.Context) *session.Session {
	sess, _ := c.Get(sessionKey).(*session.Session)
	return sess
}

func wantsJSON(c echo.Context) bool {
	accept := c.Request().Header.Get(echo.HeaderAccept)
	return strings.Contains(accept, echo.MIMEApplicationJSON) ||
		strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON)
}
