// Package memo implements catalogkit.memo, a translation memory that maps
// the MD5 of a source text to its accepted translation per locale. Backfill
// consults it before calling the translation service, so a text translated
// once is never sent again.
//
// The memo is stored alongside .catalogkit.yaml as catalogkit.memo.
package memo

import (
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/bloomdesk/catalogkit/catalog"
)

// FileName is the default memo file name.
const FileName = "catalogkit.memo"

// Version is the memo format version.
const Version = 1

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// Memo is the catalogkit.memo file structure.
type Memo struct {
	Version int                          `yaml:"version"`
	Entries map[string]map[string]string `yaml:"entries"` // locale -> md5(source) -> translation

	mu   sync.Mutex
	fs   afero.Fs
	path string
}

// New returns an empty in-memory memo. Save fails until it is loaded from
// or bound to a file.
func New() *Memo {
	return &Memo{Version: Version, Entries: make(map[string]map[string]string)}
}

// ---------------------------------------------------------------------------
// Loading and saving
// ---------------------------------------------------------------------------

// Load reads the memo from dir. A missing file yields an empty memo bound
// to that path.
func Load(fsys afero.Fs, dir string) (*Memo, error) {
	path := filepath.Join(dir, FileName)
	m := New()
	m.fs = fsys
	m.path = path

	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if m.Version > Version {
		return nil, fmt.Errorf("%s: unsupported memo version %d", path, m.Version)
	}
	if m.Entries == nil {
		m.Entries = make(map[string]map[string]string)
	}
	return m, nil
}

// Save writes the memo atomically.
func (m *Memo) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.path == "" || m.fs == nil {
		return fmt.Errorf("memo path not set")
	}
	m.Version = Version
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshaling memo: %w", err)
	}
	if err := catalog.WriteFileAtomic(m.fs, m.path, data); err != nil {
		return fmt.Errorf("writing %s: %w", m.path, err)
	}
	return nil
}

// Path returns the memo file path.
func (m *Memo) Path() string {
	return m.path
}

// ---------------------------------------------------------------------------
// Entries
// ---------------------------------------------------------------------------

// Hash computes the MD5 hex digest of a string.
func Hash(s string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(s)))
}

// Lookup returns the remembered translation of source into locale.
func (m *Memo) Lookup(locale, source string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tr, ok := m.Entries[locale][Hash(source)]
	return tr, ok && tr != ""
}

// Store remembers a translation. Empty translations are ignored.
func (m *Memo) Store(locale, source, translation string) {
	if translation == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Entries[locale] == nil {
		m.Entries[locale] = make(map[string]string)
	}
	m.Entries[locale][Hash(source)] = translation
}

// Clean drops the entries of locale whose source text is not in sources.
// It returns the number of entries removed.
func (m *Memo) Clean(locale string, sources []string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing := m.Entries[locale]
	if existing == nil {
		return 0
	}
	live := make(map[string]bool, len(sources))
	for _, s := range sources {
		live[Hash(s)] = true
	}
	removed := 0
	for h := range existing {
		if !live[h] {
			delete(existing, h)
			removed++
		}
	}
	if len(existing) == 0 {
		delete(m.Entries, locale)
	}
	return removed
}

// ---------------------------------------------------------------------------
// Stats
// ---------------------------------------------------------------------------

// Stats returns the number of locales and total entries.
func (m *Memo) Stats() (locales, entries int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	locales = len(m.Entries)
	for _, e := range m.Entries {
		entries += len(e)
	}
	return
}

// Locales returns the sorted locales that have entries.
func (m *Memo) Locales() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return sortedLocales(m.Entries)
}

// Summary returns a human-readable summary string.
func (m *Memo) Summary() string {
	locales, entries := m.Stats()
	if locales == 0 {
		return "empty"
	}
	names := m.Locales()
	parts := make([]string, 0, len(names))
	m.mu.Lock()
	for _, l := range names {
		parts = append(parts, fmt.Sprintf("%s: %d", l, len(m.Entries[l])))
	}
	m.mu.Unlock()
	return fmt.Sprintf("%d locales, %d entries (%s)", locales, entries, strings.Join(parts, ", "))
}

func sortedLocales(m map[string]map[string]string) []string {
	out := make([]string, 0, len(m))
	for l := range m {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}
