// Package diff compares target locales against the source-of-truth locale.
//
// Only key presence is judged. Values are expected to differ between locales
// and are never compared.
package diff

import (
	"sort"

	"github.com/bloomdesk/catalogkit/keytree"
)

// Report is the key-set difference of one target locale.
type Report struct {
	// Missing keys exist in the source locale but not in the target.
	Missing []string `json:"missing"`
	// Extra keys exist in the target but not in the source locale.
	Extra []string `json:"extra"`
}

// Clean reports whether the target has exactly the source's key set.
func (r Report) Clean() bool {
	return len(r.Missing) == 0 && len(r.Extra) == 0
}

// Keys computes the report for two flat key sets. Both slices in the result
// are sorted and never nil.
func Keys(source, target map[string]string) Report {
	r := Report{Missing: []string{}, Extra: []string{}}
	for k := range source {
		if _, ok := target[k]; !ok {
			r.Missing = append(r.Missing, k)
		}
	}
	for k := range target {
		if _, ok := source[k]; !ok {
			r.Extra = append(r.Extra, k)
		}
	}
	sort.Strings(r.Missing)
	sort.Strings(r.Extra)
	return r
}

// Diff computes one report per target locale.
func Diff(source *keytree.Tree, targets map[string]*keytree.Tree) map[string]Report {
	src := keytree.Flatten(source)
	out := make(map[string]Report, len(targets))
	for locale, tree := range targets {
		out[locale] = Keys(src, keytree.Flatten(tree))
	}
	return out
}

// Summary aggregates a validation run over every locale.
type Summary struct {
	// Statistics holds the leaf count of every locale, source included.
	Statistics map[string]int      `json:"statistics"`
	Missing    map[string][]string `json:"missing"`
	Extra      map[string][]string `json:"extra"`
	IsValid    bool                `json:"isValid"`
}

// Summarize diffs every target against the source locale.
func Summarize(sourceLocale string, source *keytree.Tree, targets map[string]*keytree.Tree) Summary {
	s := Summary{
		Statistics: map[string]int{sourceLocale: keytree.Count(source)},
		Missing:    make(map[string][]string, len(targets)),
		Extra:      make(map[string][]string, len(targets)),
		IsValid:    true,
	}
	for locale, r := range Diff(source, targets) {
		s.Statistics[locale] = keytree.Count(targets[locale])
		s.Missing[locale] = r.Missing
		s.Extra[locale] = r.Extra
		if !r.Clean() {
			s.IsValid = false
		}
	}
	return s
}

// Completeness returns the share of source keys present in the target, from
// 0 to 1. An empty source locale counts as complete.
func Completeness(sourceCount int, r Report) float64 {
	if sourceCount == 0 {
		return 1
	}
	return float64(sourceCount-len(r.Missing)) / float64(sourceCount)
}
