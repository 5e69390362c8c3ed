// catalogkit: translation catalog toolkit. It finds untranslated Dutch literals
// in the dashboard sources, keeps the locale catalogs in sync with the
// source-of-truth locale and backfills the gaps.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/bloomdesk/catalogkit/config"
	"github.com/bloomdesk/catalogkit/i18n"
	"github.com/bloomdesk/catalogkit/langmeta"
	"github.com/bloomdesk/catalogkit/logging"
	"github.com/bloomdesk/catalogkit/pipeline"
	"github.com/bloomdesk/catalogkit/report"
	"github.com/bloomdesk/catalogkit/translate"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ANSI colors
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
)

// errInvalid makes validate exit 1 without further output.
var errInvalid = errors.New("catalogs are not in sync")

// ---------------------------------------------------------------------------
// Global flags
// ---------------------------------------------------------------------------

var (
	rootDir   string
	verbose   bool
	quiet     bool
	logFormat string

	environ config.Env
	logger  = zerolog.Nop()
)

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "catalogkit",
		Short: "Translation catalog toolkit for the dashboard",
		Long: `catalogkit — translation catalog toolkit.

Scans the dashboard sources for untranslated natural-language literals,
synthesizes catalog keys for them, diffs every locale against the
source-of-truth locale and backfills missing entries through a translation
service.

Commands:
  init        Write a .catalogkit.yaml with the defaults
  scan        Find literals and synthesize keys (--write adds them)
  validate    Diff locales against the source (exit 1 when out of sync)
  backfill    Fill missing keys (dry run unless --apply)
  prune       Remove keys the source no longer has (needs --yes)
  lookup      Resolve a key the way the dashboard does
  status      Show key counts and completeness per locale

Translation providers:
  placeholder  "[EN] text" markers (default, no network)
  openai       OpenAI — API key
  groq         Groq — API key
  google       Google AI (Gemini) — API key
  ollama       Ollama local server`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd)
		},
	}

	// Global persistent flags, inherited by all subcommands
	root.PersistentFlags().StringVar(&rootDir, "root", ".", "Project root directory")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only log warnings and errors")
	root.PersistentFlags().StringVar(&logFormat, "log-format", logging.FormatConsole, "Log format: console or json")

	root.AddCommand(
		newInitCmd(),
		newScanCmd(),
		newValidateCmd(),
		newBackfillCmd(),
		newPruneCmd(),
		newLookupCmd(),
		newStatusCmd(),
		newVersionCmd(),
	)

	return root
}

// setup reads the environment (and the project's optional .env) and builds
// the logger. Flags win over the environment.
func setup(cmd *cobra.Command) error {
	e, err := config.LoadEnv(filepath.Join(rootDir, ".env"))
	if err != nil {
		return err
	}
	environ = e

	format := logFormat
	if !cmd.Flags().Changed("log-format") && e.LogFormat != "" {
		format = e.LogFormat
	}
	if format != logging.FormatConsole && format != logging.FormatJSON {
		return fmt.Errorf("unknown log format %q (console or json)", format)
	}
	logger = logging.New(os.Stderr, logging.Options{
		Format:  format,
		Verbose: verbose || e.Verbose,
		Quiet:   quiet,
	})
	return nil
}

func main() {
	i18n.Init("")

	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errInvalid) {
			fmt.Fprintf(os.Stderr, "catalogkit: %v\n", err)
		}
		os.Exit(1)
	}
}

// loadPipeline loads the project at --root with the environment applied.
func loadPipeline() (*pipeline.Pipeline, error) {
	abs, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, err
	}
	fsys := afero.NewOsFs()
	project, err := config.Load(fsys, abs)
	if err != nil {
		return nil, err
	}
	if err := project.ApplyEnv(environ); err != nil {
		return nil, err
	}
	logger.Debug().Str("root", abs).Str("source", project.SourceLocale).
		Strs("locales", project.Locales).Str("catalogs", project.CatalogPath()).Msg("project loaded")
	return pipeline.New(fsys, project, logger), nil
}

// emit writes a report document to out, or to w when out is empty.
func emit(p *pipeline.Pipeline, w io.Writer, out string, doc any) error {
	if out == "" {
		return report.Write(w, doc)
	}
	if err := report.WriteFile(p.Fs, out, doc); err != nil {
		return err
	}
	logger.Info().Str("path", out).Msg(i18n.T("Report written"))
	return nil
}

// runContext is cancelled on the first interrupt.
func runContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

// ---------------------------------------------------------------------------
// version (display version information)
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display version, commit hash, and build date.`,
		Run: func(cmd *cobra.Command, args []string) {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "catalogkit version %s\n", version)
			fmt.Fprintf(w, "  commit:    %s\n", commit)
			fmt.Fprintf(w, "  built:     %s\n", date)
		},
	}

	return cmd
}

// ---------------------------------------------------------------------------
// init (write the default project file)
// ---------------------------------------------------------------------------

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a .catalogkit.yaml with the defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			abs, err := filepath.Abs(rootDir)
			if err != nil {
				return err
			}
			fsys := afero.NewOsFs()
			path := filepath.Join(abs, config.FileName)
			if ok, _ := afero.Exists(fsys, path); ok && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			data, err := config.Default(abs).Marshal()
			if err != nil {
				return err
			}
			if err := afero.WriteFile(fsys, path, data, 0o644); err != nil {
				return err
			}
			logger.Info().Str("path", path).Msg(i18n.T("Project file written"))
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing project file")
	return cmd
}

// ---------------------------------------------------------------------------
// scan
// ---------------------------------------------------------------------------

func newScanCmd() *cobra.Command {
	var (
		out   string
		write bool
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Find untranslated literals and synthesize keys",
		Long: `Walk the source tree, classify every string literal and markup text,
and synthesize a catalog key for each translatable text.

The JSON report goes to stdout (or --out). With --write the new keys are
added to the source-of-truth catalog; existing keys are never changed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadPipeline()
			if err != nil {
				return err
			}
			ctx, stop := runContext()
			defer stop()

			doc, err := p.Scan(ctx, pipeline.ScanOptions{Write: write})
			if err != nil {
				return err
			}
			if err := emit(p, cmd.OutOrStdout(), out, doc); err != nil {
				return err
			}

			n := len(doc.New())
			logger.Info().Msg(i18n.Nf("%d new text found in %d files", "%d new texts found in %d files", n, doc.FilesScanned))
			if len(doc.Errors) > 0 {
				logger.Warn().Msg(i18n.Nf("%d problem reported, see the report", "%d problems reported, see the report", len(doc.Errors)))
			}
			if n > 0 && !write {
				logger.Info().Msg(i18n.T("Run with --write to add them to the source catalog"))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the report to this file instead of stdout")
	cmd.Flags().BoolVar(&write, "write", false, "Add new keys to the source-of-truth catalog")
	return cmd
}

// ---------------------------------------------------------------------------
// validate
// ---------------------------------------------------------------------------

func newValidateCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Diff every locale against the source (CI gate)",
		Long: `Compare every target catalog with the source-of-truth catalog and list
missing and extra keys. Exits 1 when any locale is out of sync.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadPipeline()
			if err != nil {
				return err
			}
			doc, err := p.Validate()
			if err != nil {
				return err
			}
			if err := emit(p, cmd.OutOrStdout(), out, doc); err != nil {
				return err
			}
			if doc.IsValid {
				logger.Info().Msg(i18n.T("All catalogs are in sync"))
				return nil
			}
			for _, l := range sortedKeys(doc.Missing, doc.Extra) {
				logger.Warn().Str("locale", l).
					Msg(i18n.Tf("%d missing, %d extra", len(doc.Missing[l]), len(doc.Extra[l])))
			}
			return errInvalid
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the report to this file instead of stdout")
	return cmd
}

// ---------------------------------------------------------------------------
// backfill
// ---------------------------------------------------------------------------

type backfillArgs struct {
	langs         string
	apply         bool
	provider      string
	model         string
	maxConcurrent int
	rate          float64
	out           string
}

func newBackfillCmd() *cobra.Command {
	var a backfillArgs

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Fill missing keys in the target locales",
		Long: `Translate every key a target locale is missing from the source text of the
source-of-truth locale.

By default nothing is written and the suggestions are printed. With --apply
the catalogs and the translation memory (catalogkit.memo) are updated.
Interrupting an --apply run keeps what was translated so far.

Each key is settled on its own: a failed translation leaves that key
missing and the rest of the locale continues.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("max-concurrent") && a.maxConcurrent < 1 {
				return fmt.Errorf("--max-concurrent must be at least 1")
			}
			if a.rate < 0 {
				return fmt.Errorf("--rate must not be negative")
			}
			return runBackfill(cmd.OutOrStdout(), a)
		},
	}

	cmd.Flags().StringVar(&a.langs, "lang", "", "Locales to backfill (comma-separated, default: all targets)")
	cmd.Flags().BoolVar(&a.apply, "apply", false, "Write the translations to the catalogs")
	cmd.Flags().StringVar(&a.provider, "provider", "", "Translation provider: placeholder, openai, groq, google, ollama")
	cmd.Flags().StringVar(&a.model, "model", "", "Model name (default: provider default)")
	cmd.Flags().IntVar(&a.maxConcurrent, "max-concurrent", 0, "Maximum translations in flight (default: project setting)")
	cmd.Flags().Float64Var(&a.rate, "rate", 0, "Maximum translations per second (0 = project setting)")
	cmd.Flags().StringVarP(&a.out, "out", "o", "", "Also write the JSON report to this file")
	return cmd
}

func runBackfill(w io.Writer, a backfillArgs) error {
	p, err := loadPipeline()
	if err != nil {
		return err
	}
	if a.provider != "" {
		p.Project.Translation.Provider = a.provider
	}
	if a.model != "" {
		p.Project.Translation.Model = a.model
	}
	locales, err := splitLocales(a.langs)
	if err != nil {
		return err
	}

	svc, err := translate.NewFromConfig(p.Project.Translation, logger)
	if err != nil {
		return err
	}

	ctx, stop := runContext()
	defer stop()

	opts := pipeline.BackfillOptions{
		Locales:     locales,
		Apply:       a.apply,
		Translator:  svc,
		Concurrency: a.maxConcurrent,
		Rate:        a.rate,
	}
	var bars *progress
	if !quiet && logging.IsTerminal(os.Stderr) {
		bars = &progress{}
		opts.OnProgress = bars.update
	}

	doc, runErr := p.Backfill(ctx, opts)
	bars.finish()
	if doc == nil {
		return runErr
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}

	printBackfill(w, doc)
	if a.out != "" {
		if err := emit(p, w, a.out, doc); err != nil {
			return err
		}
	}

	switch {
	case runErr != nil && a.apply:
		logger.Warn().Msg(i18n.T("Interrupted, partial progress saved"))
	case runErr != nil:
		logger.Warn().Msg(i18n.T("Interrupted"))
	case !a.apply:
		logger.Info().Msg(i18n.T("Dry run: nothing written. Run with --apply to save the translations"))
	default:
		logger.Info().Msg(i18n.T("Backfill complete"))
	}
	return nil
}

// printBackfill lists the suggestions and the keys still missing per locale.
func printBackfill(w io.Writer, doc *report.Backfill) {
	for _, l := range doc.Sorted() {
		res := doc.Locales[l]
		fmt.Fprintf(w, "\n%s\n", langmeta.Label(l))
		fmt.Fprintln(w, strings.Repeat("─", 60))

		keys := make([]string, 0, len(res.Filled))
		for k := range res.Filled {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "  + %s = %q\n", k, res.Filled[k])
		}
		for _, f := range res.Failures {
			fmt.Fprintf(w, "  ! %s: %v\n", f.Key, f.Err)
		}
		for _, c := range res.Conflicts {
			fmt.Fprintf(w, "  ! %s\n", c)
		}

		fmt.Fprintln(w, "  "+i18n.Tf("%d filled (%d from memory), %d still missing",
			len(res.Filled), res.FromMemo, len(res.StillMissing)))
	}
}

// progress shows one bar per locale while backfill runs.
type progress struct {
	locale string
	bar    *progressbar.ProgressBar
}

func (p *progress) update(locale string, done, total int) {
	if p.bar == nil || p.locale != locale {
		p.finish()
		p.locale = locale
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetDescription(fmt.Sprintf("[cyan]%s[reset]", locale)),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]=[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}))
	}
	_ = p.bar.Set(done)
}

func (p *progress) finish() {
	if p == nil || p.bar == nil {
		return
	}
	_ = p.bar.Finish()
	fmt.Fprintln(os.Stderr)
	p.bar = nil
}

// ---------------------------------------------------------------------------
// prune
// ---------------------------------------------------------------------------

func newPruneCmd() *cobra.Command {
	var (
		lang string
		yes  bool
	)

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove keys the source catalog no longer has",
		Long: `List the keys of a target locale that are absent from the source-of-truth
catalog. They are removed only with --yes; the source locale is never
pruned.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			locale, err := langmeta.Canonicalize(lang)
			if err != nil {
				return err
			}
			p, err := loadPipeline()
			if err != nil {
				return err
			}
			stale, err := p.Prune(locale, yes)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for _, k := range stale {
				fmt.Fprintf(w, "  - %s\n", k)
			}
			switch {
			case len(stale) == 0:
				logger.Info().Str("locale", locale).Msg(i18n.T("Nothing to prune"))
			case yes:
				logger.Info().Str("locale", locale).Msg(i18n.Nf("%d key removed", "%d keys removed", len(stale)))
			default:
				logger.Info().Str("locale", locale).Msg(i18n.Nf("%d stale key, run again with --yes to remove it",
					"%d stale keys, run again with --yes to remove them", len(stale)))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&lang, "lang", "", "Target locale to prune (required)")
	cmd.Flags().BoolVar(&yes, "yes", false, "Remove the stale keys")
	_ = cmd.MarkFlagRequired("lang")
	return cmd
}

// ---------------------------------------------------------------------------
// lookup
// ---------------------------------------------------------------------------

func newLookupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lookup LOCALE KEY [name=value...]",
		Short: "Resolve a key the way the dashboard does",
		Long: `Print the translation of KEY in LOCALE, falling back to the source locale
and then to the key itself. Placeholders such as {name} are filled from the
name=value arguments.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			placeholders, err := parsePlaceholders(args[2:])
			if err != nil {
				return err
			}
			p, err := loadPipeline()
			if err != nil {
				return err
			}
			c, err := p.Catalogs()
			if err != nil {
				return err
			}
			if !c.Has(args[0], args[1]) {
				logger.Warn().Str("locale", args[0]).Str("key", args[1]).
					Msg(i18n.T("No translation in this locale, using the fallback"))
			}
			fmt.Fprintln(cmd.OutOrStdout(), c.GetTranslation(args[0], args[1], placeholders))
			return nil
		},
	}

	return cmd
}

// parsePlaceholders turns name=value arguments into a map.
func parsePlaceholders(args []string) (map[string]string, error) {
	if len(args) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("placeholder %q: want name=value", arg)
		}
		out[name] = value
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// status (read-only: key counts and completeness)
// ---------------------------------------------------------------------------

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show key counts and completeness per locale",
		Long: `Show the project settings and, for every locale, the number of keys, the
missing and extra keys relative to the source, and the completeness.
Does not modify any files.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadPipeline()
			if err != nil {
				return err
			}
			st, err := p.Status()
			if err != nil {
				return err
			}
			mem, err := p.MemoSummary()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			printStatus(w, p.Project, st, mem, logging.IsTerminal(w))
			return nil
		},
	}

	return cmd
}

func printStatus(w io.Writer, proj *config.Project, st []pipeline.LocaleStatus, memory string, color bool) {
	fmt.Fprintf(w, "\n%s\n", i18n.T("Project"))
	fmt.Fprintln(w, strings.Repeat("─", 60))
	fmt.Fprintf(w, "  %-12s %s\n", i18n.T("Root:"), proj.Root)
	fmt.Fprintf(w, "  %-12s %s (%s)\n", i18n.T("Catalogs:"), proj.CatalogPath(), proj.Format())
	fmt.Fprintf(w, "  %-12s %s\n", i18n.T("Sources:"), proj.SourcePath())
	fmt.Fprintf(w, "  %-12s %s\n", i18n.T("Provider:"), providerName(proj.Translation.Provider))
	fmt.Fprintf(w, "  %-12s %s\n", i18n.T("Memory:"), memory)
	fmt.Fprintln(w)

	width := 0
	for _, s := range st {
		width = max(width, len(s.Locale))
	}
	width = max(width, len("Locale"))

	fmt.Fprintf(w, "%-*s  %-8s %-8s %-8s %s\n", width, "Locale", "Keys", "Missing", "Extra", "Complete")
	fmt.Fprintln(w, strings.Repeat("─", width+50))
	for _, s := range st {
		name := s.Locale
		if s.Source {
			name += "*"
		}
		fmt.Fprintf(w, "%-*s  %-8d %-8d %-8d %s  %s\n", width, name, s.Keys, s.Missing, s.Extra,
			progressBar(int(s.Completeness*100), 20, color), s.Label)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, i18n.T("* source-of-truth locale"))
}

func providerName(id string) string {
	if id == "" {
		return translate.ProviderPlaceholder
	}
	return id
}

// progressBar renders percent as a bar of width cells followed by the
// number.
func progressBar(percent, width int, color bool) string {
	percent = min(max(percent, 0), 100)
	filled := percent * width / 100
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	if color {
		c := colorRed
		switch {
		case percent >= 100:
			c = colorGreen
		case percent >= 50:
			c = colorYellow
		}
		bar = c + bar + colorReset
	}
	return fmt.Sprintf("%s %3d%%", bar, percent)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// splitLocales parses a comma-separated --lang value into canonical codes.
func splitLocales(s string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		l, err := langmeta.Canonicalize(part)
		if err != nil {
			return nil, err
		}
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	return out, nil
}

// sortedKeys returns the union of the map keys, sorted.
func sortedKeys(maps ...map[string][]string) []string {
	seen := make(map[string]bool)
	for _, m := range maps {
		for k, v := range m {
			if len(v) > 0 {
				seen[k] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
