// Package translate provides the translation services used to backfill
// missing catalog entries: a deterministic placeholder and HTTP providers
// for OpenAI-compatible and Gemini APIs.
package translate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bloomdesk/catalogkit/config"
)

// ---------------------------------------------------------------------------
// Provider IDs
// ---------------------------------------------------------------------------

const (
	ProviderPlaceholder = "placeholder"
	ProviderOpenAI      = "openai"
	ProviderGroq        = "groq"
	ProviderOllama      = "ollama"
	ProviderGoogle      = "google"
)

// Service translates one text into a target locale.
type Service interface {
	Translate(ctx context.Context, text, locale string) (string, error)
}

// ---------------------------------------------------------------------------
// Placeholder
// ---------------------------------------------------------------------------

// Placeholder marks text as awaiting translation: "[EN] Opslaan". It never
// fails and is the default when no provider is configured.
type Placeholder struct{}

// Translate implements Service.
func (Placeholder) Translate(_ context.Context, text, locale string) (string, error) {
	return "[" + strings.ToUpper(locale) + "] " + text, nil
}

// ---------------------------------------------------------------------------
// Provider configuration
// ---------------------------------------------------------------------------

// Provider holds the connection settings of an HTTP translation service.
type Provider struct {
	// ID is the provider identifier (openai, groq, ollama, google).
	ID string
	// Name is the display name.
	Name string
	// BaseURL is the API base URL.
	BaseURL string
	// APIKey is the authentication key (empty for local services).
	APIKey string
	// Model is the model identifier.
	Model string
	// Proxy is an optional HTTP/HTTPS proxy URL.
	Proxy string
	// Timeout is the request timeout.
	Timeout time.Duration
}

// DefaultProviders returns the pre-configured provider definitions.
func DefaultProviders() map[string]Provider {
	return map[string]Provider{
		ProviderOpenAI: {
			ID:      ProviderOpenAI,
			Name:    "OpenAI",
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
			Timeout: 60 * time.Second,
		},
		ProviderGroq: {
			ID:      ProviderGroq,
			Name:    "Groq",
			BaseURL: "https://api.groq.com/openai/v1",
			Model:   "llama-3.3-70b-versatile",
			Timeout: 60 * time.Second,
		},
		ProviderOllama: {
			ID:      ProviderOllama,
			Name:    "Ollama",
			BaseURL: "http://localhost:11434/v1",
			Model:   "llama3.1",
			Timeout: 120 * time.Second,
		},
		ProviderGoogle: {
			ID:      ProviderGoogle,
			Name:    "Google AI (Gemini)",
			BaseURL: "https://generativelanguage.googleapis.com",
			Model:   "gemini-2.0-flash",
			Timeout: 120 * time.Second,
		},
	}
}

// Resolve fills the empty fields of p from the default definition of its ID.
func Resolve(p Provider) (Provider, error) {
	def, ok := DefaultProviders()[p.ID]
	if !ok {
		if p.BaseURL == "" {
			return p, fmt.Errorf("unknown provider %q (known: placeholder, openai, groq, ollama, google)", p.ID)
		}
		def = Provider{ID: p.ID, Name: p.ID, Timeout: 60 * time.Second}
	}
	if p.Name == "" {
		p.Name = def.Name
	}
	if p.BaseURL == "" {
		p.BaseURL = def.BaseURL
	}
	if p.Model == "" {
		p.Model = def.Model
	}
	if p.Timeout <= 0 {
		p.Timeout = def.Timeout
	}
	return p, nil
}

// Options tunes New.
type Options struct {
	MaxRetries int
	// Backoff is the base delay for exponential retry on transport errors
	// and 5xx responses (default 1s).
	Backoff time.Duration
	// SystemPrompt overrides DefaultSystemPrompt.
	SystemPrompt string
	Logger       zerolog.Logger
}

// New returns the service for a provider ID. An empty ID or "placeholder"
// selects Placeholder.
func New(p Provider, opts Options) (Service, error) {
	if p.ID == "" || p.ID == ProviderPlaceholder {
		return Placeholder{}, nil
	}
	resolved, err := Resolve(p)
	if err != nil {
		return nil, err
	}
	if resolved.APIKey == "" && resolved.ID != ProviderOllama {
		return nil, fmt.Errorf("provider %s needs an API key (set CATALOGKIT_API_KEY)", resolved.Name)
	}
	return NewHTTPProvider(resolved, opts), nil
}

// NewFromConfig returns the service described by the project's translation
// settings.
func NewFromConfig(cfg config.Translation, log zerolog.Logger) (Service, error) {
	return New(Provider{
		ID:      cfg.Provider,
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		Proxy:   cfg.Proxy,
		Timeout: cfg.Timeout,
	}, Options{
		MaxRetries:   cfg.MaxRetries,
		SystemPrompt: cfg.Prompt,
		Logger:       log,
	})
}
