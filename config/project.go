// Package config loads the .catalogkit.yaml project file and environment settings.
//
// The project file is optional. Every field has a default, so a bare
// repository with a locales/ directory next to src/ works without one.
// Environment variables override the file; command-line flags override
// both and are applied by the caller.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/bloomdesk/catalogkit/catalog"
	"github.com/bloomdesk/catalogkit/langmeta"
)

// FileName is the project file name.
const FileName = ".catalogkit.yaml"

// ---------------------------------------------------------------------------
// YAML schema
// ---------------------------------------------------------------------------

// Project is the top-level .catalogkit.yaml structure.
type Project struct {
	// SourceLocale is the source-of-truth locale (default "nl").
	SourceLocale string `yaml:"source_locale,omitempty"`
	// Locales are the target locales. Empty means every catalog found in
	// CatalogDir other than the source.
	Locales []string `yaml:"locales,omitempty"`

	// CatalogDir holds <locale>.<ext> files, relative to the project root
	// (default "locales").
	CatalogDir string `yaml:"catalog_dir,omitempty"`
	// CatalogFormat is used for new catalog files: json, yaml or toml.
	CatalogFormat string `yaml:"catalog_format,omitempty"`

	// SourceRoot is the directory scanned for literals (default "src").
	SourceRoot string   `yaml:"source_root,omitempty"`
	Include    []string `yaml:"include,omitempty"`
	Exclude    []string `yaml:"exclude,omitempty"`

	// Dictionary extends the built-in Dutch domain vocabulary.
	Dictionary []string `yaml:"dictionary,omitempty"`
	// MinLength is the shortest literal considered (default 3).
	MinLength int `yaml:"min_length,omitempty"`
	// MaxKeyLength bounds the slug part of synthesized keys (default 50).
	MaxKeyLength int `yaml:"max_key_length,omitempty"`
	// MaxSuffix is the highest collision suffix tried (default 99).
	MaxSuffix int `yaml:"max_suffix,omitempty"`
	// ScanConcurrency bounds parallel file scans (default 8).
	ScanConcurrency int `yaml:"scan_concurrency,omitempty"`

	Translation Translation `yaml:"translation,omitempty"`

	// Root is the directory the project file was loaded from.
	Root string `yaml:"-"`
}

// Translation configures the backfill translation service.
type Translation struct {
	// Provider: placeholder (default), openai, groq, ollama or google.
	Provider string        `yaml:"provider,omitempty"`
	BaseURL  string        `yaml:"base_url,omitempty"`
	Model    string        `yaml:"model,omitempty"`
	Proxy    string        `yaml:"proxy,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
	// MaxConcurrent bounds translate calls in flight (default 4).
	MaxConcurrent int `yaml:"max_concurrent,omitempty"`
	// Rate limits translate calls per second across workers (0 = unlimited).
	Rate       float64 `yaml:"rate,omitempty"`
	MaxRetries int     `yaml:"max_retries,omitempty"`
	// Prompt overrides the system prompt; {{targetLang}} is substituted.
	Prompt string `yaml:"prompt,omitempty"`

	// APIKey is read from the environment only.
	APIKey string `yaml:"-"`
}

// Defaults
const (
	DefaultSourceLocale    = "nl"
	DefaultCatalogDir      = "locales"
	DefaultSourceRoot      = "src"
	DefaultMinLength       = 3
	DefaultMaxKeyLength    = 50
	DefaultMaxSuffix       = 99
	DefaultScanConcurrency = 8
	DefaultMaxConcurrent   = 4
	DefaultMaxRetries      = 3
)

// Default returns the configuration used when no project file exists.
func Default(root string) *Project {
	p := &Project{Root: root}
	p.applyDefaults()
	return p
}

func (p *Project) applyDefaults() {
	if p.SourceLocale == "" {
		p.SourceLocale = DefaultSourceLocale
	}
	if p.CatalogDir == "" {
		p.CatalogDir = DefaultCatalogDir
	}
	if p.CatalogFormat == "" {
		p.CatalogFormat = string(catalog.JSON)
	}
	if p.SourceRoot == "" {
		p.SourceRoot = DefaultSourceRoot
	}
	if p.MinLength <= 0 {
		p.MinLength = DefaultMinLength
	}
	if p.MaxKeyLength <= 0 {
		p.MaxKeyLength = DefaultMaxKeyLength
	}
	if p.MaxSuffix <= 0 {
		p.MaxSuffix = DefaultMaxSuffix
	}
	if p.ScanConcurrency <= 0 {
		p.ScanConcurrency = DefaultScanConcurrency
	}
	if p.Translation.MaxConcurrent <= 0 {
		p.Translation.MaxConcurrent = DefaultMaxConcurrent
	}
	if p.Translation.MaxRetries <= 0 {
		p.Translation.MaxRetries = DefaultMaxRetries
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads and validates .catalogkit.yaml from dir. A missing file yields
// the defaults. Unknown keys are rejected.
func Load(fsys afero.Fs, dir string) (*Project, error) {
	path := filepath.Join(dir, FileName)
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		if os.IsNotExist(err) {
			p := Default(dir)
			return p, p.Validate()
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	p := &Project{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(p); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	p.Root = dir
	p.applyDefaults()
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Validate checks the settings and canonicalizes locale codes in place.
func (p *Project) Validate() error {
	src, err := langmeta.Canonicalize(p.SourceLocale)
	if err != nil {
		return fmt.Errorf("source_locale: %w", err)
	}
	p.SourceLocale = src

	seen := map[string]bool{}
	locales := make([]string, 0, len(p.Locales))
	for _, l := range p.Locales {
		c, err := langmeta.Canonicalize(l)
		if err != nil {
			return fmt.Errorf("locales: %w", err)
		}
		if c == p.SourceLocale {
			return fmt.Errorf("locales: %q is the source locale", l)
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		locales = append(locales, c)
	}
	p.Locales = locales

	if _, err := catalog.ParseFormat(p.CatalogFormat); err != nil {
		return fmt.Errorf("catalog_format: %w", err)
	}
	for _, pat := range append(append([]string{}, p.Include...), p.Exclude...) {
		if !doublestar.ValidatePattern(pat) {
			return fmt.Errorf("invalid glob pattern %q", pat)
		}
	}
	if p.Translation.Rate < 0 {
		return fmt.Errorf("translation.rate must not be negative")
	}
	if filepath.IsAbs(p.CatalogDir) || filepath.IsAbs(p.SourceRoot) {
		return fmt.Errorf("catalog_dir and source_root must be relative to the project root")
	}
	return nil
}

// CatalogPath returns the catalog directory.
func (p *Project) CatalogPath() string {
	return filepath.Join(p.Root, p.CatalogDir)
}

// SourcePath returns the directory scanned for literals.
func (p *Project) SourcePath() string {
	return filepath.Join(p.Root, p.SourceRoot)
}

// Format returns the parsed catalog format.
func (p *Project) Format() catalog.Format {
	f, err := catalog.ParseFormat(p.CatalogFormat)
	if err != nil {
		return catalog.JSON
	}
	return f
}

// ScanExclude returns Exclude plus a pattern for the catalog directory when
// it lies inside the source root.
func (p *Project) ScanExclude() []string {
	out := append([]string{}, p.Exclude...)
	rel, err := filepath.Rel(p.SourcePath(), p.CatalogPath())
	if err != nil || rel == ".." || filepath.IsAbs(rel) || len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator) {
		return out
	}
	if rel == "." {
		return out
	}
	return append(out, filepath.ToSlash(rel)+"/**")
}

// Marshal renders the project file.
func (p *Project) Marshal() ([]byte, error) {
	return yaml.Marshal(p)
}
