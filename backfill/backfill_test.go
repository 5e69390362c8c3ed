package backfill

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/bloomdesk/catalogkit/catalogerr"
	"github.com/bloomdesk/catalogkit/diff"
	"github.com/bloomdesk/catalogkit/keytree"
	"github.com/bloomdesk/catalogkit/memo"
	"github.com/bloomdesk/catalogkit/translate"
)

func tree(t *testing.T, flat map[string]string) *keytree.Tree {
	t.Helper()
	tr, err := keytree.Unflatten(flat)
	require.NoError(t, err)
	return tr
}

func run(t *testing.T, a *Agent, source, target *keytree.Tree) *Result {
	t.Helper()
	report := diff.Keys(keytree.Flatten(source), keytree.Flatten(target))
	res, err := a.Run(context.Background(), "en", source, target, report)
	require.NoError(t, err)
	return res
}

func TestRunPlaceholder(t *testing.T) {
	source := tree(t, map[string]string{"common.save": "Opslaan"})
	target := keytree.New()

	res := run(t, &Agent{Translator: translate.Placeholder{}, Logger: zerolog.Nop()}, source, target)

	v, ok := target.Lookup("common.save")
	require.True(t, ok)
	assert.Equal(t, "[EN] Opslaan", v)
	assert.Equal(t, map[string]string{"common.save": "[EN] Opslaan"}, res.Filled)
	assert.Empty(t, res.StillMissing)
	assert.Empty(t, res.Failures)

	after := diff.Keys(keytree.Flatten(source), keytree.Flatten(target))
	assert.True(t, after.Clean())
}

func TestRunPartialFailure(t *testing.T) {
	source := tree(t, map[string]string{
		"common.save":   "Opslaan",
		"common.cancel": "Annuleren",
		"common.delete": "Verwijderen",
	})
	target := keytree.New()
	tr := TranslatorFunc(func(_ context.Context, text, locale string) (string, error) {
		if text == "Annuleren" {
			return "", errors.New("upstream 500")
		}
		return strings.ToUpper(text), nil
	})

	res := run(t, &Agent{Translator: tr, Logger: zerolog.Nop()}, source, target)

	assert.Equal(t, []string{"common.cancel"}, res.StillMissing)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "common.cancel", res.Failures[0].Key)
	assert.True(t, errors.Is(res.Failures[0].Err, catalogerr.ErrTranslationService))
	assert.Len(t, res.Filled, 2)
	_, ok := target.Lookup("common.cancel")
	assert.False(t, ok)

	data, err := json.Marshal(res.Failures[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"key":"common.cancel"`)
	assert.Contains(t, string(data), "upstream 500")
}

func TestRunEmptyTranslationIsFailure(t *testing.T) {
	source := tree(t, map[string]string{"a": "Opslaan"})
	tr := TranslatorFunc(func(context.Context, string, string) (string, error) { return "", nil })
	res := run(t, &Agent{Translator: tr, Logger: zerolog.Nop()}, source, keytree.New())
	assert.Equal(t, []string{"a"}, res.StillMissing)
	assert.Len(t, res.Failures, 1)
}

func TestRunNeverRemovesExtraKeys(t *testing.T) {
	source := tree(t, map[string]string{"common.save": "Opslaan"})
	target := tree(t, map[string]string{"legacy.banner": "Old banner"})

	run(t, &Agent{Translator: translate.Placeholder{}, Logger: zerolog.Nop()}, source, target)

	v, ok := target.Lookup("legacy.banner")
	require.True(t, ok)
	assert.Equal(t, "Old banner", v)
	_, ok = target.Lookup("common.save")
	assert.True(t, ok)
}

func TestRunConflictIsReportedAndSkipped(t *testing.T) {
	source := tree(t, map[string]string{"common.save": "Opslaan", "other": "Ander"})
	target := tree(t, map[string]string{"common": "flat leaf"})

	res := run(t, &Agent{Translator: translate.Placeholder{}, Logger: zerolog.Nop()}, source, target)

	assert.Equal(t, []string{"common.save"}, res.Conflicts)
	assert.Equal(t, []string{"common.save"}, res.StillMissing)
	assert.Equal(t, "[EN] Ander", res.Filled["other"])
	v, _ := target.Lookup("common")
	assert.Equal(t, "flat leaf", v)
}

func TestRunRespectsConcurrency(t *testing.T) {
	flat := make(map[string]string)
	for i := 0; i < 20; i++ {
		flat[fmt.Sprintf("k%02d", i)] = fmt.Sprintf("tekst %d", i)
	}
	source := tree(t, flat)

	var inFlight, peak int32
	tr := TranslatorFunc(func(_ context.Context, text, _ string) (string, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return text, nil
	})

	var mu sync.Mutex
	var progress []int
	a := &Agent{
		Translator:  tr,
		Concurrency: 3,
		Limiter:     rate.NewLimiter(rate.Inf, 1),
		Logger:      zerolog.Nop(),
		OnProgress: func(_ string, done, total int) {
			mu.Lock()
			defer mu.Unlock()
			assert.Equal(t, 20, total)
			progress = append(progress, done)
		},
	}
	res := run(t, a, source, keytree.New())

	assert.Len(t, res.Filled, 20)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
	require.Len(t, progress, 20)
	assert.Equal(t, 20, progress[19])
}

func TestRunCancellationFlushesPartialResults(t *testing.T) {
	source := tree(t, map[string]string{"a": "een", "b": "twee", "c": "drie", "d": "vier", "e": "vijf"})
	target := keytree.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var calls int32
	tr := TranslatorFunc(func(ctx context.Context, text, _ string) (string, error) {
		if atomic.AddInt32(&calls, 1) == 3 {
			cancel()
			return "", ctx.Err()
		}
		return "[EN] " + text, nil
	})

	a := &Agent{Translator: tr, Concurrency: 1, Logger: zerolog.Nop()}
	report := diff.Keys(keytree.Flatten(source), keytree.Flatten(target))
	res, err := a.Run(ctx, "en", source, target, report)

	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Equal(t, map[string]string{"a": "[EN] een", "b": "[EN] twee"}, res.Filled)
	assert.Equal(t, []string{"c", "d", "e"}, res.StillMissing)
	assert.Empty(t, res.Failures, "cancellation is not a service failure")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))

	_, ok := target.Lookup("b")
	assert.True(t, ok, "completed results are merged")
}

func TestRunUsesMemo(t *testing.T) {
	source := tree(t, map[string]string{"common.save": "Opslaan", "common.cancel": "Annuleren"})
	m := memo.New()
	m.Store("en", "Opslaan", "Save")

	var called []string
	var mu sync.Mutex
	tr := TranslatorFunc(func(_ context.Context, text, _ string) (string, error) {
		mu.Lock()
		called = append(called, text)
		mu.Unlock()
		return "Cancel", nil
	})

	res := run(t, &Agent{Translator: tr, Memo: m, Logger: zerolog.Nop()}, source, keytree.New())

	assert.Equal(t, []string{"Annuleren"}, called)
	assert.Equal(t, 1, res.FromMemo)
	assert.Equal(t, "Save", res.Filled["common.save"])
	got, ok := m.Lookup("en", "Annuleren")
	assert.True(t, ok)
	assert.Equal(t, "Cancel", got)
}

func TestRunNothingMissing(t *testing.T) {
	source := tree(t, map[string]string{"a": "b"})
	res := run(t, &Agent{Translator: translate.Placeholder{}}, source, source.Clone())
	assert.Empty(t, res.Filled)
	assert.NotNil(t, res.StillMissing)
}

func TestRunWithoutTranslator(t *testing.T) {
	_, err := (&Agent{}).Run(context.Background(), "en", keytree.New(), keytree.New(), diff.Report{})
	assert.Error(t, err)
}

func TestRunPerCallTimeoutIsFailure(t *testing.T) {
	source := tree(t, map[string]string{"common.save": "Opslaan", "common.open": "Open"})
	target := keytree.New()
	tr := TranslatorFunc(func(ctx context.Context, text, locale string) (string, error) {
		if text == "Open" {
			c, cancel := context.WithTimeout(ctx, 5*time.Millisecond)
			defer cancel()
			<-c.Done()
			return "", c.Err()
		}
		return "[EN] " + text, nil
	})

	report := diff.Keys(keytree.Flatten(source), keytree.Flatten(target))
	res, err := (&Agent{Translator: tr, Logger: zerolog.Nop()}).Run(context.Background(), "en", source, target, report)

	require.NoError(t, err)
	assert.Equal(t, []string{"common.open"}, res.StillMissing)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "common.open", res.Failures[0].Key)
	assert.True(t, errors.Is(res.Failures[0].Err, catalogerr.ErrTranslationService))
	assert.True(t, errors.Is(res.Failures[0].Err, context.DeadlineExceeded))
}

func TestRunProgressSkipsKeysWithoutSource(t *testing.T) {
	source := tree(t, map[string]string{"a": "een", "b": "twee"})
	var last, total int
	a := &Agent{
		Translator: translate.Placeholder{},
		Logger:     zerolog.Nop(),
		OnProgress: func(_ string, done, n int) { last, total = done, n },
	}
	report := diff.Report{Missing: []string{"a", "b", "gone"}}
	res, err := a.Run(context.Background(), "en", source, keytree.New(), report)

	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, total, last, "progress reaches its total")
	assert.Equal(t, []string{"gone"}, res.StillMissing)
}
