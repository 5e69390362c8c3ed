package diff

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bloomdesk/catalogkit/keytree"
)

func tree(t *testing.T, flat map[string]string) *keytree.Tree {
	t.Helper()
	tr, err := keytree.Unflatten(flat)
	require.NoError(t, err)
	return tr
}

func TestDiffMissingFromEmptyTarget(t *testing.T) {
	nl := tree(t, map[string]string{"common.save": "Opslaan"})
	reports := Diff(nl, map[string]*keytree.Tree{"en": keytree.New()})

	assert.Equal(t, []string{"common.save"}, reports["en"].Missing)
	assert.Empty(t, reports["en"].Extra)
	assert.False(t, reports["en"].Clean())
}

func TestDiffIgnoresValues(t *testing.T) {
	nl := tree(t, map[string]string{"common.save": "Opslaan"})
	en := tree(t, map[string]string{"common.save": "Save"})
	r := Diff(nl, map[string]*keytree.Tree{"en": en})["en"]
	assert.True(t, r.Clean())
}

func TestDiffCompleteness(t *testing.T) {
	tests := []struct {
		name   string
		source map[string]string
		target map[string]string
	}{
		{"disjoint", map[string]string{"a": "1", "b.c": "2"}, map[string]string{"d": "3"}},
		{"subset", map[string]string{"a": "1", "b.c": "2", "b.d": "3"}, map[string]string{"b.c": "x"}},
		{"superset", map[string]string{"a": "1"}, map[string]string{"a": "x", "old.key": "y"}},
		{"equal", map[string]string{"a": "1"}, map[string]string{"a": "2"}},
		{"both empty", map[string]string{}, map[string]string{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := Keys(tc.source, tc.target)

			common := map[string]bool{}
			for k := range tc.source {
				if _, ok := tc.target[k]; ok {
					common[k] = true
				}
			}
			union := func(extra []string) map[string]bool {
				out := map[string]bool{}
				for k := range common {
					out[k] = true
				}
				for _, k := range extra {
					out[k] = true
				}
				return out
			}
			keySet := func(m map[string]string) map[string]bool {
				out := map[string]bool{}
				for k := range m {
					out[k] = true
				}
				return out
			}

			assert.Equal(t, keySet(tc.source), union(r.Missing), "(D ∩ S) ∪ missing == S")
			assert.Equal(t, keySet(tc.target), union(r.Extra), "(D ∩ S) ∪ extra == D")
			assert.True(t, sort.StringsAreSorted(r.Missing))
			assert.True(t, sort.StringsAreSorted(r.Extra))
		})
	}
}

func TestReportsAreSorted(t *testing.T) {
	r := Keys(
		map[string]string{"z": "", "a": "", "m.b": "", "m.a": ""},
		map[string]string{"y": "", "b": ""},
	)
	assert.Equal(t, []string{"a", "m.a", "m.b", "z"}, r.Missing)
	assert.Equal(t, []string{"b", "y"}, r.Extra)
}

func TestSummarize(t *testing.T) {
	nl := tree(t, map[string]string{"common.save": "Opslaan", "common.cancel": "Annuleren"})
	en := tree(t, map[string]string{"common.save": "Save", "legacy.title": "Old"})
	tr := tree(t, map[string]string{"common.save": "Kaydet", "common.cancel": "İptal"})

	s := Summarize("nl", nl, map[string]*keytree.Tree{"en": en, "tr": tr})
	assert.False(t, s.IsValid)
	assert.Equal(t, map[string]int{"nl": 2, "en": 2, "tr": 2}, s.Statistics)
	assert.Equal(t, []string{"common.cancel"}, s.Missing["en"])
	assert.Equal(t, []string{"legacy.title"}, s.Extra["en"])
	assert.Empty(t, s.Missing["tr"])

	s = Summarize("nl", nl, map[string]*keytree.Tree{"tr": tr})
	assert.True(t, s.IsValid)
}

func TestCompleteness(t *testing.T) {
	assert.Equal(t, 1.0, Completeness(0, Report{}))
	assert.Equal(t, 0.5, Completeness(2, Report{Missing: []string{"a"}}))
}
