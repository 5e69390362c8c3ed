// Package backfill fills the keys a target locale is missing by sending the
// source-locale text through a translation service.
//
// The agent only ever adds keys. Keys the target has beyond the source are
// left alone; removing them is the job of an explicit prune.
package backfill

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/bloomdesk/catalogkit/catalogerr"
	"github.com/bloomdesk/catalogkit/diff"
	"github.com/bloomdesk/catalogkit/keytree"
	"github.com/bloomdesk/catalogkit/memo"
)

// DefaultConcurrency is the number of translate calls in flight when
// Agent.Concurrency is unset.
const DefaultConcurrency = 4

// Translator translates one text into a target locale.
type Translator interface {
	Translate(ctx context.Context, text, locale string) (string, error)
}

// TranslatorFunc adapts a function to Translator.
type TranslatorFunc func(ctx context.Context, text, locale string) (string, error)

// Translate implements Translator.
func (f TranslatorFunc) Translate(ctx context.Context, text, locale string) (string, error) {
	return f(ctx, text, locale)
}

// Agent backfills one locale at a time.
type Agent struct {
	Translator  Translator
	Concurrency int
	// Limiter, when set, paces translate calls across all workers.
	Limiter *rate.Limiter
	// Memo is consulted before calling Translator and updated after each
	// successful call.
	Memo *memo.Memo
	// OnProgress is called from a single goroutine after each key settles.
	OnProgress func(locale string, done, total int)
	Logger     zerolog.Logger
}

// KeyFailure is one key the service could not translate.
type KeyFailure struct {
	Key string
	Err error
}

// MarshalJSON renders the failure as {"key", "error"} for reports.
func (f KeyFailure) MarshalJSON() ([]byte, error) {
	msg := ""
	if f.Err != nil {
		msg = f.Err.Error()
	}
	return json.Marshal(struct {
		Key   string `json:"key"`
		Error string `json:"error"`
	}{f.Key, msg})
}

// Result is the outcome of one Run.
type Result struct {
	Locale string `json:"-"`
	// Filled maps each newly written key to its translation.
	Filled map[string]string `json:"filled"`
	// StillMissing lists keys that remain untranslated, sorted.
	StillMissing []string     `json:"stillMissing"`
	Failures     []KeyFailure `json:"failures"`
	// Conflicts lists keys that could not be written because of a
	// leaf/prefix clash in the target tree.
	Conflicts []string `json:"conflicts,omitempty"`
	// FromMemo counts keys filled from the translation memory.
	FromMemo int `json:"fromMemo,omitempty"`
}

type task struct {
	key  string
	text string
}

type outcome struct {
	task
	translation string
	err         error
	memo        bool
	// cancelled is set when the run context ended before the call settled.
	cancelled bool
}

// Run translates every key in report.Missing and merges the results into
// target. When ctx is cancelled no new calls start; results that already
// arrived are merged and Run returns them together with ctx.Err().
func (a *Agent) Run(ctx context.Context, locale string, source, target *keytree.Tree, report diff.Report) (*Result, error) {
	if a.Translator == nil {
		return nil, errors.New("backfill: no translator configured")
	}
	res := &Result{Locale: locale, Filled: make(map[string]string)}
	if len(report.Missing) == 0 {
		res.StillMissing = []string{}
		return res, nil
	}

	var (
		tasks    []task
		memoHits []outcome
	)
	for _, key := range report.Missing {
		text, ok := source.Lookup(key)
		if !ok {
			continue
		}
		if a.Memo != nil {
			if tr, ok := a.Memo.Lookup(locale, text); ok {
				memoHits = append(memoHits, outcome{task: task{key, text}, translation: tr, memo: true})
				continue
			}
		}
		tasks = append(tasks, task{key, text})
	}
	// keys without a source value never settle
	total := len(memoHits) + len(tasks)

	results := make(chan outcome)
	writerDone := make(chan struct{})
	done := 0

	// single writer: the only goroutine touching target and res
	go func() {
		defer close(writerDone)
		for o := range results {
			a.apply(res, target, locale, o)
			done++
			if a.OnProgress != nil {
				a.OnProgress(locale, done, total)
			}
		}
	}()

	for _, o := range memoHits {
		results <- o
	}
	a.dispatch(ctx, locale, tasks, results)
	close(results)
	<-writerDone

	res.StillMissing = []string{}
	for _, key := range report.Missing {
		if _, filled := res.Filled[key]; !filled {
			res.StillMissing = append(res.StillMissing, key)
		}
	}
	sort.Strings(res.StillMissing)
	sort.Slice(res.Failures, func(i, j int) bool { return res.Failures[i].Key < res.Failures[j].Key })
	sort.Strings(res.Conflicts)

	a.Logger.Info().
		Str("locale", locale).
		Int("filled", len(res.Filled)).
		Int("memo", res.FromMemo).
		Int("failed", len(res.Failures)).
		Int("still_missing", len(res.StillMissing)).
		Msg("backfill finished")

	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

// dispatch runs translate calls with at most Concurrency in flight.
func (a *Agent) dispatch(ctx context.Context, locale string, tasks []task, results chan<- outcome) {
	n := a.Concurrency
	if n <= 0 {
		n = DefaultConcurrency
	}
	sem := make(chan struct{}, n)
	var wg sync.WaitGroup

launch:
	for _, t := range tasks {
		select {
		case <-ctx.Done():
			break launch
		case sem <- struct{}{}:
		}
		if ctx.Err() != nil {
			<-sem
			break launch
		}
		wg.Add(1)
		go func(t task) {
			defer func() {
				<-sem
				wg.Done()
			}()
			if a.Limiter != nil {
				if err := a.Limiter.Wait(ctx); err != nil {
					results <- outcome{task: t, err: err, cancelled: ctx.Err() != nil}
					return
				}
			}
			tr, err := a.Translator.Translate(ctx, t.text, locale)
			if err == nil && tr == "" {
				err = errors.New("empty translation")
			}
			results <- outcome{task: t, translation: tr, err: err, cancelled: err != nil && ctx.Err() != nil}
		}(t)
	}
	wg.Wait()
}

func (a *Agent) apply(res *Result, target *keytree.Tree, locale string, o outcome) {
	log := a.Logger.With().Str("locale", locale).Str("key", o.key).Logger()

	if o.err != nil {
		if o.cancelled {
			log.Debug().Msg("cancelled before translation")
			return
		}
		failure := &catalogerr.Error{
			Kind:    catalogerr.TranslationService,
			Path:    o.key,
			Locale:  locale,
			Message: fmt.Sprintf("translating %q", o.text),
			Cause:   o.err,
		}
		res.Failures = append(res.Failures, KeyFailure{Key: o.key, Err: failure})
		log.Warn().Err(o.err).Msg("translation failed")
		return
	}

	if _, err := target.Merge(map[string]string{o.key: o.translation}); err != nil {
		if errors.Is(err, catalogerr.ErrPathConflict) {
			res.Conflicts = append(res.Conflicts, o.key)
			log.Warn().Err(err).Msg("skipping conflicting key")
			return
		}
		res.Failures = append(res.Failures, KeyFailure{Key: o.key, Err: catalogerr.WithLocale(err, locale)})
		log.Warn().Err(err).Msg("skipping invalid key")
		return
	}
	res.Filled[o.key] = o.translation
	if o.memo {
		res.FromMemo++
	} else if a.Memo != nil {
		a.Memo.Store(locale, o.text, o.translation)
	}
	log.Debug().Str("translation", o.translation).Bool("memo", o.memo).Msg("filled")
}
