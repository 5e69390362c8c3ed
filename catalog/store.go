package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/bloomdesk/catalogkit/keytree"
)

// Store is a directory of <locale>.<ext> catalog files.
type Store struct {
	Fs  afero.Fs
	Dir string
	// Format is used for new files. Existing files keep their own format.
	Format Format
}

// NewStore returns a store rooted at dir.
func NewStore(fsys afero.Fs, dir string, format Format) *Store {
	if format == "" {
		format = JSON
	}
	return &Store{Fs: fsys, Dir: dir, Format: format}
}

// Locales returns the sorted locales that have a catalog file. Files with
// an unsupported extension are ignored.
func (s *Store) Locales() ([]string, error) {
	entries, err := afero.ReadDir(s.Fs, s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading catalog directory %s: %w", s.Dir, err)
	}

	seen := make(map[string]string)
	var locales []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if _, ok := FormatOf(name); !ok {
			continue
		}
		locale := strings.TrimSuffix(name, filepath.Ext(name))
		if prev, dup := seen[locale]; dup {
			return nil, fmt.Errorf("locale %s has two catalog files: %s and %s", locale, prev, name)
		}
		seen[locale] = name
		locales = append(locales, locale)
	}
	sort.Strings(locales)
	return locales, nil
}

// Path returns the file that holds locale: the existing one when present,
// otherwise <dir>/<locale>.<Format>.
func (s *Store) Path(locale string) string {
	if p, _, ok := s.find(locale); ok {
		return p
	}
	return filepath.Join(s.Dir, locale+s.Format.Ext())
}

func (s *Store) find(locale string) (string, Format, bool) {
	candidates := []string{s.Format.Ext()}
	for _, f := range Formats() {
		candidates = append(candidates, f.Ext())
	}
	candidates = append(candidates, ".yml")
	for _, ext := range candidates {
		p := filepath.Join(s.Dir, locale+ext)
		if ok, _ := afero.Exists(s.Fs, p); ok {
			f, _ := FormatOf(p)
			return p, f, true
		}
	}
	return "", "", false
}

// Load reads the catalog of locale. A missing file fails with an error
// matching fs.ErrNotExist; a file that violates the tree shape fails with
// MalformedCatalog.
func (s *Store) Load(locale string) (*keytree.Tree, error) {
	path, format, ok := s.find(locale)
	if !ok {
		return nil, fmt.Errorf("catalog for %s: %w", locale, fs.ErrNotExist)
	}
	data, err := afero.ReadFile(s.Fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	tree, err := Decode(format, locale, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tree, nil
}

// LoadOrNew is Load, returning an empty tree when the file does not exist.
func (s *Store) LoadOrNew(locale string) (*keytree.Tree, error) {
	t, err := s.Load(locale)
	if errors.Is(err, fs.ErrNotExist) {
		return keytree.New(), nil
	}
	return t, err
}

// LoadAll reads every catalog in the directory. The first malformed file
// aborts the load.
func (s *Store) LoadAll() (map[string]*keytree.Tree, error) {
	locales, err := s.Locales()
	if err != nil {
		return nil, err
	}
	out := make(map[string]*keytree.Tree, len(locales))
	for _, l := range locales {
		t, err := s.Load(l)
		if err != nil {
			return nil, err
		}
		out[l] = t
	}
	return out, nil
}

// Save writes the catalog of locale atomically.
func (s *Store) Save(locale string, tree *keytree.Tree) error {
	path := s.Path(locale)
	format, _ := FormatOf(path)
	data, err := Encode(format, locale, tree)
	if err != nil {
		return err
	}
	if err := WriteFileAtomic(s.Fs, path, data); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// WriteFileAtomic writes data to a temporary file in the target directory
// and renames it over path, so readers never see a partial file.
func WriteFileAtomic(fsys afero.Fs, path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	tmp, err := afero.TempFile(fsys, dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		fsys.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		fsys.Remove(name)
		return err
	}
	if err := fsys.Chmod(name, 0o644); err != nil {
		fsys.Remove(name)
		return err
	}
	if err := fsys.Rename(name, path); err != nil {
		fsys.Remove(name)
		return err
	}
	return nil
}
