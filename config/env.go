package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Env holds settings read from the process environment.
type Env struct {
	APIKey       string        `env:"CATALOGKIT_API_KEY"`
	Provider     string        `env:"CATALOGKIT_PROVIDER"`
	BaseURL      string        `env:"CATALOGKIT_BASE_URL"`
	Model        string        `env:"CATALOGKIT_MODEL"`
	Proxy        string        `env:"CATALOGKIT_PROXY"`
	Timeout      time.Duration `env:"CATALOGKIT_TIMEOUT"`
	Rate         float64       `env:"CATALOGKIT_RATE"`
	SourceLocale string        `env:"CATALOGKIT_SOURCE_LOCALE"`
	Locales      []string      `env:"CATALOGKIT_LOCALES" envSeparator:","`
	LogFormat    string        `env:"CATALOGKIT_LOG_FORMAT" envDefault:"console"`
	Verbose      bool          `env:"CATALOGKIT_VERBOSE"`
}

// LoadEnv loads the optional dotenv files (existing variables win) and
// parses the CATALOGKIT_* variables.
func LoadEnv(dotenv ...string) (Env, error) {
	for _, path := range dotenv {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Env{}, fmt.Errorf("loading %s: %w", path, err)
		}
	}
	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("parse env: %w", err)
	}
	return e, nil
}

// ApplyEnv overrides project settings with the non-empty environment values
// and revalidates.
func (p *Project) ApplyEnv(e Env) error {
	t := &p.Translation
	t.APIKey = e.APIKey
	if e.Provider != "" {
		t.Provider = e.Provider
	}
	if e.BaseURL != "" {
		t.BaseURL = e.BaseURL
	}
	if e.Model != "" {
		t.Model = e.Model
	}
	if e.Proxy != "" {
		t.Proxy = e.Proxy
	}
	if e.Timeout > 0 {
		t.Timeout = e.Timeout
	}
	if e.Rate > 0 {
		t.Rate = e.Rate
	}
	if e.SourceLocale != "" {
		p.SourceLocale = e.SourceLocale
	}
	if len(e.Locales) > 0 {
		p.Locales = e.Locales
	}
	return p.Validate()
}
