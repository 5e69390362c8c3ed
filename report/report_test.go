package report

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/bloomdesk/catalogkit/backfill"
	"github.com/bloomdesk/catalogkit/diff"
	"github.com/bloomdesk/catalogkit/extract"
	"github.com/bloomdesk/catalogkit/keygen"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestScanDocument(t *testing.T) {
	cands := []keygen.Candidate{{
		Key:        "footer.bekijk.alle",
		SourceText: "Bekijk alle",
		FoundIn: []extract.Occurrence{
			{File: "src/footer.ts", Line: 4, Text: "Bekijk alle", Kind: extract.KindString, Context: `label: "Bekijk alle",`},
		},
	}, {
		Key: "common.save", SourceText: "Opslaan", Existing: true,
		FoundIn: []extract.Occurrence{{File: "src/common.ts", Line: 1, Kind: extract.KindMarkup}},
	}}
	s := NewScan(now, 2, cands, []error{errors.New("scan_io \"x.ts\": boom")})

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, s))
	doc := buf.Bytes()

	assert.Equal(t, "2026-03-01T12:00:00Z", gjson.GetBytes(doc, "scanDate").String())
	assert.Equal(t, int64(2), gjson.GetBytes(doc, "totalFound").Int())
	assert.Equal(t, "footer.bekijk.alle", gjson.GetBytes(doc, "translations.0.key").String())
	assert.Equal(t, "src/footer.ts", gjson.GetBytes(doc, "translations.0.foundIn.0.file").String())
	assert.Equal(t, int64(4), gjson.GetBytes(doc, "translations.0.foundIn.0.line").Int())
	assert.Equal(t, "string", gjson.GetBytes(doc, "translations.0.foundIn.0.kind").String())
	assert.False(t, gjson.GetBytes(doc, "translations.0.existing").Exists())
	assert.True(t, gjson.GetBytes(doc, "translations.1.existing").Bool())
	assert.Equal(t, int64(1), gjson.GetBytes(doc, "errors.#").Int())

	require.Len(t, s.New(), 1)
	assert.Equal(t, "footer.bekijk.alle", s.New()[0].Key)
}

func TestValidationDocument(t *testing.T) {
	v := NewValidation(now, diff.Summary{
		Statistics: map[string]int{"nl": 2, "en": 1},
		Missing:    map[string][]string{"en": {"common.cancel"}},
		Extra:      map[string][]string{"en": {}},
		IsValid:    false,
	})
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, v))
	doc := buf.Bytes()

	assert.True(t, gjson.GetBytes(doc, "scanDate").Exists())
	assert.Equal(t, int64(2), gjson.GetBytes(doc, "statistics.nl").Int())
	assert.Equal(t, "common.cancel", gjson.GetBytes(doc, "missing.en.0").String())
	assert.True(t, gjson.GetBytes(doc, "extra.en").IsArray())
	assert.False(t, gjson.GetBytes(doc, "isValid").Bool())
}

func TestBackfillDocument(t *testing.T) {
	b := NewBackfill(now, false)
	b.Locales["tr"] = &backfill.Result{Filled: map[string]string{"a": "b"}, StillMissing: []string{}}
	b.Locales["en"] = &backfill.Result{
		Filled:       map[string]string{},
		StillMissing: []string{"c"},
		Failures:     []backfill.KeyFailure{{Key: "c", Err: errors.New("timeout")}},
	}
	assert.Equal(t, []string{"en", "tr"}, b.Sorted())

	fsys := afero.NewMemMapFs()
	require.NoError(t, WriteFile(fsys, "/out/backfill.json", b))
	doc, err := afero.ReadFile(fsys, "/out/backfill.json")
	require.NoError(t, err)

	assert.Equal(t, "timeout", gjson.GetBytes(doc, "locales.en.failures.0.error").String())
	assert.Equal(t, "b", gjson.GetBytes(doc, "locales.tr.filled.a").String())
	assert.False(t, gjson.GetBytes(doc, "applied").Bool())
}
