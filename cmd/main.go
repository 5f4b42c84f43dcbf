package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	charm "github.com/charmbracelet/log"
	_ "github.com/joho/godotenv/autoload"
	"github.com/labstack/gommon/log"

	"storyteller/pkg/auth"
	"storyteller/pkg/config"
	"storyteller/pkg/errs"
	"storyteller/pkg/illustration"
	"storyteller/pkg/inference"
	"storyteller/pkg/narrative"
	"storyteller/pkg/server"
	"storyteller/pkg/session"
	"storyteller/pkg/story"
)

func main() {
	ctx, done := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	cfg, err := config.Load()
	if err != nil {
		var cfgErr *errs.ConfigurationError
		if errors.As(err, &cfgErr) {
			log.Fatalf("Fatal configuration error: %v", cfgErr)
		}
		log.Fatal(err)
	}

	level, err := charm.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = charm.InfoLevel
	}
	charm.SetLevel(level)

	inf, err := newInferencer(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}

	store, err := illustration.NewStore(cfg.ImageDir)
	if err != nil {
		log.Fatal(err)
	}
	illustrator := illustration.NewService(newIllustrationBackend(cfg), store)
	defer illustrator.Stop()
	if !illustrator.Enabled() {
		log.Warn("No image credential configured, chapters will not be illustrated")
	}

	machine := story.New(narrative.New(inf), illustrator)
	machine.MaxContextTokens = cfg.MaxContextTokens
	machine.NarrativeTimeout = cfg.NarrativeTimeout
	machine.IllustrationTimeout = cfg.IllustrationTimeout

	table := auth.NewTable(cfg.Credentials.Usernames, cfg.Credentials.Passwords)
	if table.Len() == 0 {
		log.Warn("Login table is empty, every login will be rejected")
	}

	srv := server.NewServer(ctx, server.Options{
		Machine:             machine,
		Sessions:            session.NewStore(cfg.SessionTTL),
		Auth:                table,
		Images:              illustrator,
		IllustrationEnabled: illustrator.Enabled(),
		LoginRateLimit:      cfg.LoginRateLimit,
	})
	if level <= charm.DebugLevel {
		srv.Echo.Logger.SetLevel(log.DEBUG)
	} else {
		srv.Echo.Logger.SetLevel(log.INFO)
	}

	log.Infof("Text backend %s, illustration backend %s (enabled: %t)", cfg.TextBackend, cfg.IllustrationBackend, illustrator.Enabled())

	finishedShutDown := make(chan struct{})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error(err)
		}
		done()
		close(finishedShutDown)
	}()

	if err := srv.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error(err)
		done()
	}
	<-finishedShutDown
}

func newInferencer(ctx context.Context, cfg *config.Config) (inference.Inferencer, error) {
	key, _ := cfg.TextAPIKey()
	switch cfg.TextBackend {
	case config.BackendOpenAI:
		openAI := inference.NewOpenAIInferencer(key, cfg.TextModel)
		switch {
		case cfg.OpenAIBaseURL != "":
			openAI.ChangeBaseURL(cfg.OpenAIBaseURL)
		case key == "":
			openAI.ChangeBaseURL(inference.LocalBaseURL)
			openAI.SetModel(cfg.TextModel)
		}
		return openAI, nil
	case config.BackendGrok:
		return inference.NewGrokInferencer(key, cfg.TextModel), nil
	case config.BackendKimi:
		return inference.NewKimiInferencer(key, cfg.TextModel), nil
	case config.BackendMoonshot:
		return inference.NewMoonshotInferencer(key, cfg.TextModel), nil
	case config.BackendAnthropic:
		return inference.NewAnthropicInferencer(key, cfg.TextModel), nil
	default:
		return inference.NewGeminiInferencer(ctx, key, cfg.TextModel)
	}
}

func newIllustrationBackend(cfg *config.Config) illustration.Backend {
	if !cfg.IllustrationConfigured() {
		return illustration.Disabled{}
	}
	switch cfg.IllustrationBackend {
	case config.IllustrationSDWebUI:
		return illustration.NewSDWebUI(cfg.SDWebUIURL)
	default:
		return illustration.NewStability(cfg.StabilityURL, cfg.Credentials.StabilityAPIKey)
	}
}
