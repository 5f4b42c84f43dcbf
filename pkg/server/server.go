package server

import (
	"context"
	"embed"
	"html/template"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/httprate"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"storyteller/pkg/auth"
	"storyteller/pkg/session"
	"storyteller/pkg/story"
)

//go:embed templates/*.html
var templateFS embed.FS

// ImageSource serves stored illustrations by ID.
type ImageSource interface {
	Load(id string) ([]byte, error)
}

type Server struct {
	Echo     *echo.Echo
	Ctx      context.Context
	Machine  *story.Machine
	Sessions *session.Store
	Auth     *auth.Table
	Images   ImageSource

	// IllustrationEnabled is shown on the page and in health output.
	IllustrationEnabled bool
	// LoginRateLimit is login attempts per IP per minute; <= 0 disables the limit.
	LoginRateLimit int
}

type Options struct {
	Machine             *story.Machine
	Sessions            *session.Store
	Auth                *auth.Table
	Images              ImageSource
	IllustrationEnabled bool
	LoginRateLimit      int
}

type templateRenderer struct {
	t *template.Template
}

func (r *templateRenderer) Render(w io.Writer, name string, data any, _ echo.Context) error {
	return r.t.ExecuteTemplate(w, name, data)
}

func NewServer(ctx context.Context, opts Options) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = &templateRenderer{t: template.Must(template.ParseFS(templateFS, "templates/*.html"))}

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	if opts.Sessions == nil {
		opts.Sessions = session.NewStore(0)
	}

	s := &Server{
		Echo:                e,
		Ctx:                 ctx,
		Machine:             opts.Machine,
		Sessions:            opts.Sessions,
		Auth:                opts.Auth,
		Images:              opts.Images,
		IllustrationEnabled: opts.IllustrationEnabled,
		LoginRateLimit:      opts.LoginRateLimit,
	}

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.Echo.GET("/healthz", s.handleGetHealth)

	app := s.Echo.Group("", s.withSession)
	app.GET("/", s.handleGetRoot)

	var limits []echo.MiddlewareFunc
	if s.LoginRateLimit > 0 {
		limits = append(limits, echo.WrapMiddleware(httprate.LimitByIP(s.LoginRateLimit, time.Minute)))
	}
	app.POST("/login", s.handlePostLogin, limits...)
	app.POST("/logout", s.handlePostLogout)

	private := app.Group("", s.requireAuth)
	private.POST("/world", s.handlePostWorld)
	private.POST("/story/start", s.handlePostStart)
	private.POST("/story/choose", s.handlePostChoose)
	private.POST("/story/restart", s.handlePostRestart)

	private.POST("/narration/speak", s.handlePostSpeak)
	private.POST("/narration/pause", s.handlePostPause)
	private.POST("/narration/stop", s.handlePostStop)

	private.GET("/events", s.handleGetEvents)
	private.GET("/api/story", s.handleGetStory)
	private.GET("/images/:id", s.handleGetImage)
}

func (s *Server) Start(addr string) error {
	log.Info("Server listening", "addr", addr)
	return s.Echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Info("Shutting down server...")
	return s.Echo.Shutdown(ctx)
}
