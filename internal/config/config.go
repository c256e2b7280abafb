package config

import (
	"errors"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	OpenAIAPIKey  string        `env:"OPENAI_API_KEY"`
	OpenAIModel   string        `env:"OPENAI_MODEL"    envDefault:"gpt-4o"`
	PromptPreset  string        `env:"PROMPT_PRESET"   envDefault:"default"`
	SamplesDir    string        `env:"SAMPLES_DIR"     envDefault:"STU1/female"`
	UploadDir     string        `env:"UPLOAD_DIR"      envDefault:"Uploads"`
	HTTPAddr      string        `env:"HTTP_ADDR"       envDefault:":5000"`
	DBPath        string        `env:"DB_PATH"         envDefault:"db.sqlite"`
	RunRetention  time.Duration `env:"RUN_RETENTION"   envDefault:"720h"`
	TrialsFeedURL string        `env:"TRIALS_FEED_URL"`
	Token         string        `env:"TOKEN"`
	AllowedUsers  []int64       `env:"ALLOWED_USERS"`
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, err
	}

	return cfg, cfg.Validate()
}

// LoadFrom reads the configuration from the given environment map.
func LoadFrom(environ map[string]string) (Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](env.Options{Environment: environ})
	if err != nil {
		return Config{}, err
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error

	if c.RunRetention <= 0 {
		errs = append(errs, errors.New("RUN_RETENTION must be positive"))
	}

	if strings.TrimSpace(c.SamplesDir) == "" {
		errs = append(errs, errors.New("SAMPLES_DIR must not be empty"))
	}

	if strings.TrimSpace(c.UploadDir) == "" {
		errs = append(errs, errors.New("UPLOAD_DIR must not be empty"))
	}

	return errors.Join(errs...)
}

// NarrationEnabled reports whether a completion credential is configured.
func (c Config) NarrationEnabled() bool {
	return strings.TrimSpace(c.OpenAIAPIKey) != ""
}

// BotEnabled reports whether a Telegram token is configured.
func (c Config) BotEnabled() bool {
	return strings.TrimSpace(c.Token) != ""
}
