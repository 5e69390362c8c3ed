// Package pipeline runs the catalog workflows over a project: scan,
// validate, backfill, prune and status. Every run loads the catalogs at the
// start, works on them in memory and writes them back at the end; runs that
// are not asked to write leave the files untouched.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"golang.org/x/time/rate"

	"github.com/bloomdesk/catalogkit/backfill"
	"github.com/bloomdesk/catalogkit/catalog"
	"github.com/bloomdesk/catalogkit/catalogerr"
	"github.com/bloomdesk/catalogkit/classify"
	"github.com/bloomdesk/catalogkit/config"
	"github.com/bloomdesk/catalogkit/diff"
	"github.com/bloomdesk/catalogkit/extract"
	"github.com/bloomdesk/catalogkit/keygen"
	"github.com/bloomdesk/catalogkit/keytree"
	"github.com/bloomdesk/catalogkit/langmeta"
	"github.com/bloomdesk/catalogkit/lookup"
	"github.com/bloomdesk/catalogkit/memo"
	"github.com/bloomdesk/catalogkit/report"
)

// Pipeline binds a project to its filesystem.
type Pipeline struct {
	Fs      afero.Fs
	Project *config.Project
	Store   *catalog.Store
	Log     zerolog.Logger
	// Now stamps reports (default time.Now).
	Now func() time.Time
}

// New returns a pipeline for project.
func New(fsys afero.Fs, project *config.Project, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		Fs:      fsys,
		Project: project,
		Store:   catalog.NewStore(fsys, project.CatalogPath(), project.Format()),
		Log:     log,
		Now:     time.Now,
	}
}

func (p *Pipeline) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

// Classifier builds the text classifier from the project settings.
func (p *Pipeline) Classifier() *classify.Classifier {
	c := classify.New(
		classify.WithDictionary(p.Project.Dictionary...),
		classify.WithMinLength(p.Project.MinLength),
	)
	if e := p.Log.Debug(); e.Enabled() {
		var names []string
		for _, r := range c.Rules() {
			names = append(names, r.Name)
		}
		e.Strs("rules", names).Int("extra_words", len(p.Project.Dictionary)).Msg("classifier ready")
	}
	return c
}

// Targets returns the target locales: the configured list, or every catalog
// on disk except the source.
func (p *Pipeline) Targets() ([]string, error) {
	if len(p.Project.Locales) > 0 {
		return p.Project.Locales, nil
	}
	onDisk, err := p.Store.Locales()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, l := range onDisk {
		if l != p.Project.SourceLocale {
			out = append(out, l)
		}
	}
	return out, nil
}

// loadSource reads the source-of-truth catalog. A missing file is an empty
// catalog; a malformed one aborts the run.
func (p *Pipeline) loadSource() (*keytree.Tree, error) {
	return p.Store.LoadOrNew(p.Project.SourceLocale)
}

func (p *Pipeline) loadTargets(locales []string) (map[string]*keytree.Tree, error) {
	out := make(map[string]*keytree.Tree, len(locales))
	for _, l := range locales {
		t, err := p.Store.LoadOrNew(l)
		if err != nil {
			return nil, err
		}
		out[l] = t
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Scan
// ---------------------------------------------------------------------------

// ScanOptions tunes Scan.
type ScanOptions struct {
	// Write merges new candidates into the source-of-truth catalog.
	Write bool
}

// Scan extracts candidate keys from the source tree. Unreadable files and
// unresolved collisions are reported, not fatal; only a malformed source
// catalog or a cancelled context aborts.
func (p *Pipeline) Scan(ctx context.Context, opts ScanOptions) (*report.Scan, error) {
	source, err := p.loadSource()
	if err != nil {
		return nil, err
	}

	root := p.Project.SourcePath()
	exclude := append(append([]string{}, extract.DefaultExclude...), p.Project.ScanExclude()...)
	files, err := extract.FindSources(p.Fs, root, p.Project.Include, exclude)
	if err != nil {
		return nil, err
	}
	p.Log.Info().Str("root", root).Int("files", len(files)).Msg("scanning sources")

	res, err := extract.Scan(ctx, p.Fs, files, p.Classifier(), extract.Options{
		Concurrency: p.Project.ScanConcurrency,
		Logger:      p.Log,
	})
	if err != nil {
		return nil, err
	}

	reg := keygen.NewRegistry()
	reg.MaxLen = p.Project.MaxKeyLength
	reg.MaxSuffix = p.Project.MaxSuffix
	reg.Seed(source)

	errs := append([]error{}, res.Errors...)
	for _, occ := range res.Occurrences {
		occ.File = p.relative(occ.File)
		if _, err := reg.Add(occ); err != nil {
			p.Log.Warn().Err(err).Str("file", occ.File).Int("line", occ.Line).Msg("no key for literal")
			errs = append(errs, err)
		}
	}
	for _, err := range reg.Conflicts() {
		p.Log.Warn().Err(err).Msg("candidate cannot be written")
		errs = append(errs, err)
	}

	if opts.Write {
		pending := reg.Pending()
		applied, err := source.Merge(pending)
		if err != nil {
			p.Log.Warn().Err(err).Msg("some candidates conflict with existing keys")
			errs = append(errs, err)
		}
		if len(applied) > 0 {
			if err := p.Store.Save(p.Project.SourceLocale, source); err != nil {
				return nil, err
			}
		}
		p.Log.Info().Int("added", len(applied)).Str("locale", p.Project.SourceLocale).Msg("source catalog updated")
	}

	return report.NewScan(p.now(), res.Files, reg.Candidates(), flattenErrors(errs)), nil
}

func (p *Pipeline) relative(path string) string {
	rel, err := filepath.Rel(p.Project.Root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// flattenErrors expands errors.Join results so each conflict is listed.
func flattenErrors(errs []error) []error {
	var out []error
	for _, err := range errs {
		if j, ok := err.(interface{ Unwrap() []error }); ok {
			out = append(out, j.Unwrap()...)
			continue
		}
		out = append(out, err)
	}
	return out
}

// ---------------------------------------------------------------------------
// Validate
// ---------------------------------------------------------------------------

// Validate diffs every target locale against the source.
func (p *Pipeline) Validate() (*report.Validation, error) {
	source, err := p.loadSource()
	if err != nil {
		return nil, err
	}
	locales, err := p.Targets()
	if err != nil {
		return nil, err
	}
	targets, err := p.loadTargets(locales)
	if err != nil {
		return nil, err
	}
	summary := diff.Summarize(p.Project.SourceLocale, source, targets)
	p.Log.Debug().Bool("valid", summary.IsValid).Int("locales", len(targets)).Msg("validated")
	return report.NewValidation(p.now(), summary), nil
}

// ---------------------------------------------------------------------------
// Backfill
// ---------------------------------------------------------------------------

// BackfillOptions tunes Backfill.
type BackfillOptions struct {
	// Locales restricts the run; empty means every target.
	Locales    []string
	Apply      bool
	Translator backfill.Translator
	// Concurrency and Rate default to the project settings.
	Concurrency int
	Rate        float64
	// Memo defaults to catalogkit.memo in the project root.
	Memo       *memo.Memo
	OnProgress func(locale string, done, total int)
}

// Backfill fills missing keys in each target locale. With Apply the
// catalogs and the memo are written, including the partial results of a
// cancelled run; otherwise nothing is written.
func (p *Pipeline) Backfill(ctx context.Context, opts BackfillOptions) (*report.Backfill, error) {
	source, err := p.loadSource()
	if err != nil {
		return nil, err
	}
	locales := opts.Locales
	if len(locales) == 0 {
		if locales, err = p.Targets(); err != nil {
			return nil, err
		}
	}

	m := opts.Memo
	if m == nil {
		if m, err = memo.Load(p.Fs, p.Project.Root); err != nil {
			return nil, err
		}
	}

	agent := &backfill.Agent{
		Translator:  opts.Translator,
		Concurrency: firstPositive(opts.Concurrency, p.Project.Translation.MaxConcurrent),
		Memo:        m,
		OnProgress:  opts.OnProgress,
		Logger:      p.Log,
	}
	if r := firstPositiveFloat(opts.Rate, p.Project.Translation.Rate); r > 0 {
		agent.Limiter = rate.NewLimiter(rate.Limit(r), 1)
	}

	doc := report.NewBackfill(p.now(), opts.Apply)
	for _, locale := range locales {
		if locale == p.Project.SourceLocale {
			continue
		}
		target, err := p.Store.LoadOrNew(locale)
		if err != nil {
			return doc, err
		}
		missing := diff.Keys(keytree.Flatten(source), keytree.Flatten(target))

		res, runErr := agent.Run(ctx, locale, source, target, missing)
		if res != nil {
			doc.Locales[locale] = res
		}
		if opts.Apply && res != nil && len(res.Filled) > 0 {
			if err := p.Store.Save(locale, target); err != nil {
				return doc, err
			}
		}
		if runErr != nil {
			p.saveMemo(m, opts.Apply)
			return doc, runErr
		}
	}
	p.saveMemo(m, opts.Apply)
	return doc, nil
}

func (p *Pipeline) saveMemo(m *memo.Memo, apply bool) {
	if !apply || m.Path() == "" {
		return
	}
	if err := m.Save(); err != nil {
		p.Log.Warn().Err(err).Msg("could not save translation memory")
	}
}

func firstPositive(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}

func firstPositiveFloat(vals ...float64) float64 {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}

// ---------------------------------------------------------------------------
// Prune
// ---------------------------------------------------------------------------

// Prune removes from locale the keys the source no longer has. It returns
// the stale keys; they are deleted on disk only with apply, which also drops
// memo entries for source texts that are gone.
func (p *Pipeline) Prune(locale string, apply bool) ([]string, error) {
	if locale == p.Project.SourceLocale {
		return nil, fmt.Errorf("refusing to prune the source locale %s", locale)
	}
	source, err := p.loadSource()
	if err != nil {
		return nil, err
	}
	target, err := p.Store.Load(locale)
	if err != nil {
		return nil, err
	}
	stale := diff.Keys(keytree.Flatten(source), keytree.Flatten(target)).Extra
	if !apply || len(stale) == 0 {
		return stale, nil
	}
	for _, key := range stale {
		target.Delete(key)
	}
	if err := p.Store.Save(locale, target); err != nil {
		return nil, err
	}
	p.Log.Info().Str("locale", locale).Int("removed", len(stale)).Msg("pruned stale keys")

	if err := p.cleanMemo(locale, source); err != nil {
		p.Log.Warn().Err(err).Msg("could not clean translation memory")
	}
	return stale, nil
}

// cleanMemo drops the remembered translations of locale whose source text
// no longer appears in the source catalog.
func (p *Pipeline) cleanMemo(locale string, source *keytree.Tree) error {
	m, err := memo.Load(p.Fs, p.Project.Root)
	if err != nil {
		return err
	}
	var texts []string
	source.Walk(func(_, value string) { texts = append(texts, value) })
	removed := m.Clean(locale, texts)
	if removed == 0 {
		return nil
	}
	p.Log.Info().Str("locale", locale).Int("removed", removed).Msg("cleaned translation memory")
	return m.Save()
}

// MemoSummary describes the translation memory of the project.
func (p *Pipeline) MemoSummary() (string, error) {
	m, err := memo.Load(p.Fs, p.Project.Root)
	if err != nil {
		return "", err
	}
	return m.Summary(), nil
}

// ---------------------------------------------------------------------------
// Status
// ---------------------------------------------------------------------------

// LocaleStatus summarizes one locale.
type LocaleStatus struct {
	Locale       string  `json:"locale"`
	Label        string  `json:"label"`
	Source       bool    `json:"source,omitempty"`
	Keys         int     `json:"keys"`
	Missing      int     `json:"missing"`
	Extra        int     `json:"extra"`
	Completeness float64 `json:"completeness"`
}

// Status reports key counts and completeness, source locale first.
func (p *Pipeline) Status() ([]LocaleStatus, error) {
	source, err := p.loadSource()
	if err != nil {
		return nil, err
	}
	locales, err := p.Targets()
	if err != nil {
		return nil, err
	}
	targets, err := p.loadTargets(locales)
	if err != nil {
		return nil, err
	}

	srcCount := keytree.Count(source)
	out := []LocaleStatus{{
		Locale:       p.Project.SourceLocale,
		Label:        langmeta.Label(p.Project.SourceLocale),
		Source:       true,
		Keys:         srcCount,
		Completeness: 1,
	}}
	reports := diff.Diff(source, targets)
	sort.Strings(locales)
	for _, l := range locales {
		r := reports[l]
		out = append(out, LocaleStatus{
			Locale:       l,
			Label:        langmeta.Label(l),
			Keys:         keytree.Count(targets[l]),
			Missing:      len(r.Missing),
			Extra:        len(r.Extra),
			Completeness: diff.Completeness(srcCount, r),
		})
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Lookup
// ---------------------------------------------------------------------------

// Catalogs loads every catalog into a lookup bundle.
func (p *Pipeline) Catalogs() (*lookup.Catalogs, error) {
	trees, err := p.Store.LoadAll()
	if err != nil {
		return nil, err
	}
	return lookup.New(p.Project.SourceLocale, trees, p.Log), nil
}

// IsFatal reports whether err must abort a run rather than be reported.
func IsFatal(err error) bool {
	return errors.Is(err, catalogerr.ErrMalformedCatalog) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
