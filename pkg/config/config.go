package config

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	toml "github.com/pelletier/go-toml/v2"

	"storyteller/pkg/errs"
)

// Text backends selectable through TEXT_BACKEND.
const (
	BackendGemini    = "gemini"
	BackendOpenAI    = "openai"
	BackendGrok      = "grok"
	BackendKimi      = "kimi"
	BackendMoonshot  = "moonshot"
	BackendAnthropic = "anthropic"
)

// Illustration backends selectable through ILLUSTRATION_BACKEND.
const (
	IllustrationStability = "stability"
	IllustrationSDWebUI   = "sdwebui"
)

// Config is read once at startup.
type Config struct {
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	SecretsFile string `env:"SECRETS_FILE" envDefault:"secrets.toml"`

	TextBackend   string `env:"TEXT_BACKEND" envDefault:"gemini"`
	TextModel     string `env:"TEXT_MODEL"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`

	IllustrationBackend string `env:"ILLUSTRATION_BACKEND" envDefault:"stability"`
	StabilityURL        string `env:"STABILITY_URL" envDefault:"https://api.stability.ai/v1/generation/stable-diffusion-v1-6/text-to-image"`
	SDWebUIURL          string `env:"SD_WEBUI_URL"`
	ImageDir            string `env:"IMAGE_DIR" envDefault:"images/chapters"`

	NarrativeTimeout    time.Duration `env:"NARRATIVE_TIMEOUT" envDefault:"90s"`
	IllustrationTimeout time.Duration `env:"ILLUSTRATION_TIMEOUT" envDefault:"120s"`
	MaxContextTokens    int           `env:"MAX_CONTEXT_TOKENS" envDefault:"24000"`
	SessionTTL          time.Duration `env:"SESSION_TTL" envDefault:"6h"`
	LoginRateLimit      int           `env:"LOGIN_RATE_LIMIT" envDefault:"10"`

	Credentials Credentials `env:"-"`
}

// Credentials hold every secret the service consumes.
type Credentials struct {
	GoogleAPIKey    string
	StabilityAPIKey string
	OpenAIAPIKey    string
	GrokAPIKey      string
	KimiAPIKey      string
	MoonshotAPIKey  string
	AnthropicAPIKey string

	Usernames []string
	Passwords []string
}

// secretsFile mirrors the TOML secrets store layout.
type secretsFile struct {
	GoogleAPIKey    string `toml:"GOOGLE_API_KEY"`
	StabilityAPIKey string `toml:"STABILITY_API_KEY"`
	OpenAIAPIKey    string `toml:"OPENAI_API_KEY"`
	GrokAPIKey      string `toml:"GROK_API_KEY"`
	KimiAPIKey      string `toml:"KIMI_API_KEY"`
	MoonshotAPIKey  string `toml:"MOONSHOT_API_KEY"`
	AnthropicAPIKey string `toml:"ANTHROPIC_API_KEY"`
	Auth            struct {
		Usernames []string `toml:"usernames"`
		Passwords []string `toml:"passwords"`
	} `toml:"auth"`
}

type envCredentials struct {
	GoogleAPIKey    string   `env:"GOOGLE_API_KEY"`
	StabilityAPIKey string   `env:"STABILITY_API_KEY"`
	OpenAIAPIKey    string   `env:"OPENAI_API_KEY"`
	GrokAPIKey      string   `env:"GROK_API_KEY"`
	KimiAPIKey      string   `env:"KIMI_API_KEY"`
	MoonshotAPIKey  string   `env:"MOONSHOT_API_KEY"`
	AnthropicAPIKey string   `env:"ANTHROPIC_API_KEY"`
	Usernames       jsonList `env:"APP_USERNAMES"`
	Passwords       jsonList `env:"APP_PASSWORDS"`
}

// jsonList decodes an environment value holding a JSON array of strings.
type jsonList []string

func (l *jsonList) UnmarshalText(text []byte) error {
	var out []string
	if err := json.Unmarshal(text, &out); err != nil {
		return fmt.Errorf("expected JSON array of strings: %w", err)
	}
	*l = out
	return nil
}

// Load parses settings from the environment and resolves credentials, secrets
// file first and environment second. A missing key for the selected text
// backend is returned as *errs.ConfigurationError.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.TextBackend = strings.ToLower(strings.TrimSpace(cfg.TextBackend))
	cfg.IllustrationBackend = strings.ToLower(strings.TrimSpace(cfg.IllustrationBackend))

	creds, err := loadCredentials(cfg.SecretsFile)
	if err != nil {
		return nil, err
	}
	cfg.Credentials = creds

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadCredentials(path string) (Credentials, error) {
	var fromEnv envCredentials
	if err := env.Parse(&fromEnv); err != nil {
		return Credentials{}, fmt.Errorf("parse credentials env: %w", err)
	}

	fromFile, err := readSecrets(path)
	if err != nil {
		return Credentials{}, err
	}

	creds := Credentials{
		GoogleAPIKey:    cmp.Or(fromFile.GoogleAPIKey, fromEnv.GoogleAPIKey),
		StabilityAPIKey: cmp.Or(fromFile.StabilityAPIKey, fromEnv.StabilityAPIKey),
		OpenAIAPIKey:    cmp.Or(fromFile.OpenAIAPIKey, fromEnv.OpenAIAPIKey),
		GrokAPIKey:      cmp.Or(fromFile.GrokAPIKey, fromEnv.GrokAPIKey),
		KimiAPIKey:      cmp.Or(fromFile.KimiAPIKey, fromEnv.KimiAPIKey),
		MoonshotAPIKey:  cmp.Or(fromFile.MoonshotAPIKey, fromEnv.MoonshotAPIKey),
		AnthropicAPIKey: cmp.Or(fromFile.AnthropicAPIKey, fromEnv.AnthropicAPIKey),
	}

	// The login table is taken as a whole from one source.
	if len(fromFile.Auth.Usernames) > 0 {
		creds.Usernames = fromFile.Auth.Usernames
		creds.Passwords = fromFile.Auth.Passwords
	} else {
		log.Info("no login table in secrets file, falling back to environment")
		creds.Usernames = fromEnv.Usernames
		creds.Passwords = fromEnv.Passwords
	}
	if len(creds.Usernames) != len(creds.Passwords) {
		return Credentials{}, &errs.ConfigurationError{
			Key:    "auth",
			Reason: fmt.Sprintf("%d usernames but %d passwords", len(creds.Usernames), len(creds.Passwords)),
		}
	}
	return creds, nil
}

func readSecrets(path string) (secretsFile, error) {
	var s secretsFile
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("read secrets %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("decode secrets %s: %w", path, err)
	}
	return s, nil
}

func (c *Config) validate() error {
	key, name := c.TextAPIKey()
	switch c.TextBackend {
	case BackendGemini, BackendAnthropic, BackendGrok, BackendKimi, BackendMoonshot:
		if key == "" {
			return &errs.ConfigurationError{Key: name}
		}
	case BackendOpenAI:
		// no key means a local OpenAI-compatible server
	default:
		return &errs.ConfigurationError{Key: "TEXT_BACKEND", Reason: fmt.Sprintf("unsupported backend %q", c.TextBackend)}
	}

	switch c.IllustrationBackend {
	case IllustrationStability, IllustrationSDWebUI:
	default:
		return &errs.ConfigurationError{Key: "ILLUSTRATION_BACKEND", Reason: fmt.Sprintf("unsupported backend %q", c.IllustrationBackend)}
	}

	if c.NarrativeTimeout <= 0 || c.IllustrationTimeout <= 0 {
		return &errs.ConfigurationError{Key: "timeouts", Reason: "must be positive"}
	}
	if c.MaxContextTokens < 0 {
		return &errs.ConfigurationError{Key: "MAX_CONTEXT_TOKENS", Reason: "must not be negative"}
	}
	return nil
}

// TextAPIKey returns the credential and its variable name for the selected text backend.
func (c *Config) TextAPIKey() (string, string) {
	switch c.TextBackend {
	case BackendOpenAI:
		return c.Credentials.OpenAIAPIKey, "OPENAI_API_KEY"
	case BackendGrok:
		return c.Credentials.GrokAPIKey, "GROK_API_KEY"
	case BackendKimi:
		return c.Credentials.KimiAPIKey, "KIMI_API_KEY"
	case BackendMoonshot:
		return c.Credentials.MoonshotAPIKey, "MOONSHOT_API_KEY"
	case BackendAnthropic:
		return c.Credentials.AnthropicAPIKey, "ANTHROPIC_API_KEY"
	default:
		return c.Credentials.GoogleAPIKey, "GOOGLE_API_KEY"
	}
}

// IllustrationConfigured reports whether the selected image backend has what it needs.
func (c *Config) IllustrationConfigured() bool {
	switch c.IllustrationBackend {
	case IllustrationSDWebUI:
		return c.SDWebUIURL != ""
	default:
		return c.Credentials.StabilityAPIKey != ""
	}
}
