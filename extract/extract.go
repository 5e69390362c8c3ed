// Package extract finds natural-language literals in a source corpus.
//
// Web sources (TypeScript, JavaScript, Vue, HTML) are scanned line by line
// with three independent matchers: quoted strings, backtick templates and
// markup text between tags. Go sources are parsed with go/parser. Every
// extracted span is passed through a classify.Classifier and only the
// translatable ones are reported.
package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/bloomdesk/catalogkit/catalogerr"
	"github.com/bloomdesk/catalogkit/classify"
)

// Kind is the lexical category of an extracted literal.
type Kind string

const (
	KindString   Kind = "string"
	KindMarkup   Kind = "markup-text"
	KindTemplate Kind = "template"
)

// Occurrence is one place in the corpus where a translatable literal was found.
type Occurrence struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Text    string `json:"text"`
	Kind    Kind   `json:"kind"`
	Context string `json:"context"`
}

// DefaultInclude matches the web and Go sources of the dashboard.
var DefaultInclude = []string{"**/*.{ts,tsx,js,jsx,vue,html,go}"}

// DefaultExclude drops tests, type declarations and generated bundles.
var DefaultExclude = []string{
	"**/*.test.*",
	"**/*.spec.*",
	"**/*_test.go",
	"**/*.d.ts",
	"**/*.min.js",
	"**/__tests__/**",
}

// skipDirs contains directory names never descended into.
var skipDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	".next":        true,
	".nuxt":        true,
	"coverage":     true,
	".cache":       true,
}

// FindSources walks root and returns the files matching include and not
// matching exclude. Patterns are doublestar globs evaluated against the
// slash-separated path relative to root. The result is sorted.
func FindSources(fsys afero.Fs, root string, include, exclude []string) ([]string, error) {
	if len(include) == 0 {
		include = DefaultInclude
	}
	for _, p := range append(append([]string(nil), include...), exclude...) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid glob pattern %q", p)
		}
	}

	var files []string
	err := afero.Walk(fsys, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if info.IsDir() {
			if path != root && skipDirs[info.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if matchAny(include, rel) && !matchAny(exclude, rel) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}

	sort.Strings(files)
	return files, nil
}

func matchAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// ScanFile extracts the translatable literals of a single file. A file that
// cannot be read or is not valid UTF-8 fails with a ScanIO error.
func ScanFile(fsys afero.Fs, path string, c *classify.Classifier) ([]Occurrence, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, catalogerr.Wrap(catalogerr.ScanIO, path, err)
	}
	if !utf8.Valid(data) {
		return nil, catalogerr.New(catalogerr.ScanIO, path, "not valid UTF-8")
	}
	if strings.EqualFold(filepath.Ext(path), ".go") {
		return scanGo(path, data, c)
	}
	return scanLines(path, string(data), c), nil
}

// Options tunes Scan.
type Options struct {
	// Concurrency bounds the number of files scanned at once (default 8).
	Concurrency int
	Logger      zerolog.Logger
}

// Result is the outcome of a corpus scan.
type Result struct {
	// Files is the number of files that were read successfully.
	Files int
	// Occurrences are ordered by file, then by position within the file.
	Occurrences []Occurrence
	// Errors holds one ScanIO error per skipped file.
	Errors []error
}

// Scan extracts literals from files in parallel. Files that cannot be read
// are logged, recorded in Result.Errors and skipped. The only error returned
// is a cancelled context.
func Scan(ctx context.Context, fsys afero.Fs, files []string, c *classify.Classifier, opts Options) (*Result, error) {
	limit := opts.Concurrency
	if limit <= 0 {
		limit = 8
	}

	perFile := make([][]Occurrence, len(files))
	perErr := make([]error, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			occs, err := ScanFile(fsys, path, c)
			if err != nil {
				perErr[i] = err
				return nil
			}
			perFile[i] = occs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{}
	for i, path := range files {
		if err := perErr[i]; err != nil {
			opts.Logger.Warn().Err(err).Str("file", path).Msg("skipping unreadable source")
			res.Errors = append(res.Errors, err)
			continue
		}
		res.Files++
		res.Occurrences = append(res.Occurrences, perFile[i]...)
		opts.Logger.Debug().Str("file", path).Int("found", len(perFile[i])).Msg("scanned")
	}
	return res, nil
}
