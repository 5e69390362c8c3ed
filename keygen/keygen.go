// Package keygen derives stable catalog keys from extracted literals.
//
// A key is the origin file's base name followed by a slug of the text:
//
//	footer.ts, "Bekijk alle"  →  footer.bekijk.alle
//
// The same (file, text) pair always yields the same key. When two different
// texts produce the same key the later one gets a numeric suffix (".2",
// ".3", …) instead of replacing or merging with the first.
//
// Keys live in a nested tree, so a key cannot also be the parent of another
// key. The registry marks a candidate whose key would be both a leaf and a
// prefix ("orders.opslaan" next to "orders.opslaan.en.sluiten") with the key
// it clashes with; such candidates are reported but never become pending.
package keygen

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/bloomdesk/catalogkit/catalogerr"
	"github.com/bloomdesk/catalogkit/extract"
	"github.com/bloomdesk/catalogkit/keytree"
)

const (
	// DefaultMaxLen bounds the slug part of a key.
	DefaultMaxLen = 50
	// DefaultMaxSuffix is the highest collision suffix tried.
	DefaultMaxSuffix = 99
)

// foldDiacritics decomposes and drops combining marks: "één" → "een".
func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Slug lowercases text, folds diacritics, drops everything that is not a
// letter, digit or whitespace, and joins the remaining words with dots. The
// result is cut to at most maxLen bytes on a word boundary when possible.
func Slug(text string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}
	folded := foldDiacritics(strings.ToLower(text))

	var b strings.Builder
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r), r == '-', r == '_', r == '/':
			b.WriteRune(' ')
		}
	}
	slug := strings.Join(strings.Fields(b.String()), keytree.Separator)
	if len(slug) <= maxLen {
		return slug
	}

	cut := slug[:maxLen]
	for len(cut) > 0 && !utf8Boundary(slug, len(cut)) {
		cut = cut[:len(cut)-1]
	}
	if i := strings.LastIndex(cut, keytree.Separator); i > 0 && slug[len(cut)] != '.' {
		cut = cut[:i]
	}
	return strings.Trim(cut, keytree.Separator)
}

func utf8Boundary(s string, i int) bool {
	return i == len(s) || s[i]&0xC0 != 0x80
}

// Prefix returns the key namespace for a source file: its base name
// without extension, slugged ("OrderList.tsx" → "orderlist").
func Prefix(file string) string {
	base := filepath.Base(file)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.ReplaceAll(Slug(base, DefaultMaxLen), keytree.Separator, "")
}

// Synthesize returns the base key of an occurrence.
func Synthesize(occ extract.Occurrence, maxLen int) string {
	prefix := Prefix(occ.File)
	slug := Slug(occ.Text, maxLen)
	switch {
	case prefix == "":
		return slug
	case slug == "":
		return prefix
	}
	return prefix + keytree.Separator + slug
}

// Candidate is one catalog key with the text it stands for and every place
// that text was found.
type Candidate struct {
	Key        string               `json:"key"`
	SourceText string               `json:"sourceText"`
	FoundIn    []extract.Occurrence `json:"foundIn"`
	// Existing is true when the key was already in the catalog.
	Existing bool `json:"existing,omitempty"`
	// Conflict names an earlier key that is a prefix of Key, or that Key is
	// a prefix of. The candidate cannot be written while it is set.
	Conflict string `json:"conflict,omitempty"`
}

// Registry aggregates occurrences into collision-free candidates. It is not
// safe for concurrent use; scans feed it one occurrence at a time after the
// parallel extraction has finished.
type Registry struct {
	MaxLen    int
	MaxSuffix int

	byKey  map[string]*Candidate
	byText map[string]string // prefix + "\x00" + text → key
	inner  map[string]string // proper prefix of a key → first key below it
}

// NewRegistry returns an empty registry with default limits.
func NewRegistry() *Registry {
	return &Registry{
		MaxLen:    DefaultMaxLen,
		MaxSuffix: DefaultMaxSuffix,
		byKey:     make(map[string]*Candidate),
		byText:    make(map[string]string),
		inner:     make(map[string]string),
	}
}

// Seed loads the keys already present in a catalog tree. A later occurrence
// whose text equals the stored value reuses that key, so re-scanning an
// unchanged corpus produces no new keys. Seeded keys are never reassigned.
func (r *Registry) Seed(tree *keytree.Tree) {
	tree.Walk(func(path, value string) {
		if _, ok := r.byKey[path]; ok {
			return
		}
		r.byKey[path] = &Candidate{Key: path, SourceText: value, Existing: true}
		r.markInner(path)
		prefix, _, _ := strings.Cut(path, keytree.Separator)
		tk := textKey(prefix, value)
		if _, ok := r.byText[tk]; !ok {
			r.byText[tk] = path
		}
	})
}

func textKey(prefix, text string) string {
	return prefix + "\x00" + text
}

// Add records one occurrence and returns the key it was filed under. When
// every suffix up to MaxSuffix is taken by other texts, Add fails with
// CollisionUnresolved and the occurrence is not recorded.
func (r *Registry) Add(occ extract.Occurrence) (string, error) {
	base := Synthesize(occ, r.MaxLen)
	if base == "" {
		return "", catalogerr.New(catalogerr.InvalidKey, occ.Text, "text produces an empty key")
	}
	prefix := Prefix(occ.File)
	tk := textKey(prefix, occ.Text)
	if key, ok := r.byText[tk]; ok {
		c := r.byKey[key]
		c.FoundIn = append(c.FoundIn, occ)
		return key, nil
	}

	maxSuffix := r.MaxSuffix
	if maxSuffix <= 0 {
		maxSuffix = DefaultMaxSuffix
	}
	key := base
	for n := 2; ; n++ {
		if !r.taken(key) {
			break
		}
		if n > maxSuffix {
			return "", &catalogerr.Error{
				Kind:    catalogerr.CollisionUnresolved,
				Path:    base,
				Message: fmt.Sprintf("suffixes .2 to .%d are taken; text %q at %s:%d", maxSuffix, occ.Text, occ.File, occ.Line),
			}
		}
		key = base + keytree.Separator + strconv.Itoa(n)
	}

	c := &Candidate{Key: key, SourceText: occ.Text, FoundIn: []extract.Occurrence{occ}}
	c.Conflict = r.clash(key)
	r.byKey[key] = c
	r.byText[tk] = key
	r.markInner(key)
	return key, nil
}

func (r *Registry) taken(key string) bool {
	_, ok := r.byKey[key]
	return ok
}

// clash returns a registered key that key cannot coexist with in a tree.
func (r *Registry) clash(key string) string {
	for i := strings.Index(key, keytree.Separator); i >= 0; {
		if _, ok := r.byKey[key[:i]]; ok {
			return key[:i]
		}
		next := strings.Index(key[i+1:], keytree.Separator)
		if next < 0 {
			break
		}
		i += next + 1
	}
	return r.inner[key]
}

func (r *Registry) markInner(key string) {
	for i := strings.Index(key, keytree.Separator); i >= 0; {
		if _, ok := r.inner[key[:i]]; !ok {
			r.inner[key[:i]] = key
		}
		next := strings.Index(key[i+1:], keytree.Separator)
		if next < 0 {
			break
		}
		i += next + 1
	}
}

// Candidates returns every candidate created from occurrences, sorted by key.
// Seeded keys that were not seen again are omitted; seeded keys that were
// seen are included with Existing set.
func (r *Registry) Candidates() []Candidate {
	out := make([]Candidate, 0, len(r.byKey))
	for _, c := range r.byKey {
		if len(c.FoundIn) == 0 {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Pending returns the candidates that are not yet in the catalog as flat
// key/value updates. Conflicting candidates are left out.
func (r *Registry) Pending() map[string]string {
	out := make(map[string]string)
	for _, c := range r.Candidates() {
		if !c.Existing && c.Conflict == "" {
			out[c.Key] = c.SourceText
		}
	}
	return out
}

// Conflicts returns a PathConflict error for every conflicting candidate,
// sorted by key.
func (r *Registry) Conflicts() []error {
	var out []error
	for _, c := range r.Candidates() {
		if c.Conflict == "" {
			continue
		}
		occ := c.FoundIn[0]
		out = append(out, &catalogerr.Error{
			Kind:    catalogerr.PathConflict,
			Path:    c.Key,
			Message: fmt.Sprintf("clashes with key %q; text %q at %s:%d", c.Conflict, c.SourceText, occ.File, occ.Line),
		})
	}
	return out
}
