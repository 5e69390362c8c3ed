// Package report builds the JSON documents emitted by scan, validate and
// backfill runs.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/afero"

	"github.com/bloomdesk/catalogkit/backfill"
	"github.com/bloomdesk/catalogkit/catalog"
	"github.com/bloomdesk/catalogkit/diff"
	"github.com/bloomdesk/catalogkit/extract"
	"github.com/bloomdesk/catalogkit/keygen"
)

// Location is one place a text was found.
type Location struct {
	File    string       `json:"file"`
	Line    int          `json:"line"`
	Kind    extract.Kind `json:"kind"`
	Context string       `json:"context,omitempty"`
}

// Translation is one candidate key in a scan report.
type Translation struct {
	Key        string     `json:"key"`
	SourceText string     `json:"sourceText"`
	FoundIn    []Location `json:"foundIn"`
	Existing   bool       `json:"existing,omitempty"`
	Conflict   string     `json:"conflict,omitempty"`
}

// Scan is the scan report.
type Scan struct {
	ScanDate     time.Time     `json:"scanDate"`
	FilesScanned int           `json:"filesScanned"`
	TotalFound   int           `json:"totalFound"`
	Translations []Translation `json:"translations"`
	// Errors lists skipped files, unresolved collisions and path conflicts.
	Errors []string `json:"errors,omitempty"`
}

// NewScan builds a scan report from registry candidates.
func NewScan(now time.Time, files int, cands []keygen.Candidate, errs []error) *Scan {
	s := &Scan{
		ScanDate:     now.UTC(),
		FilesScanned: files,
		TotalFound:   len(cands),
		Translations: make([]Translation, 0, len(cands)),
	}
	for _, c := range cands {
		tr := Translation{Key: c.Key, SourceText: c.SourceText, Existing: c.Existing, Conflict: c.Conflict}
		for _, o := range c.FoundIn {
			tr.FoundIn = append(tr.FoundIn, Location{File: o.File, Line: o.Line, Kind: o.Kind, Context: o.Context})
		}
		s.Translations = append(s.Translations, tr)
	}
	for _, err := range errs {
		s.Errors = append(s.Errors, err.Error())
	}
	return s
}

// New returns the candidates not yet in the catalog.
func (s *Scan) New() []Translation {
	var out []Translation
	for _, t := range s.Translations {
		if !t.Existing {
			out = append(out, t)
		}
	}
	return out
}

// Validation is the validation report.
type Validation struct {
	ScanDate time.Time `json:"scanDate"`
	diff.Summary
}

// NewValidation wraps a diff summary.
func NewValidation(now time.Time, s diff.Summary) *Validation {
	return &Validation{ScanDate: now.UTC(), Summary: s}
}

// Backfill is the backfill report.
type Backfill struct {
	ScanDate time.Time                   `json:"scanDate"`
	Applied  bool                        `json:"applied"`
	Locales  map[string]*backfill.Result `json:"locales"`
}

// NewBackfill returns an empty backfill report.
func NewBackfill(now time.Time, applied bool) *Backfill {
	return &Backfill{ScanDate: now.UTC(), Applied: applied, Locales: make(map[string]*backfill.Result)}
}

// Sorted returns the locales of the report in order.
func (b *Backfill) Sorted() []string {
	out := make([]string, 0, len(b.Locales))
	for l := range b.Locales {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Write encodes doc as indented JSON.
func Write(w io.Writer, doc any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(doc)
}

// WriteFile encodes doc to path atomically.
func WriteFile(fsys afero.Fs, path string, doc any) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	data = append(data, '\n')
	if err := catalog.WriteFileAtomic(fsys, path, data); err != nil {
		return fmt.Errorf("writing report %s: %w", path, err)
	}
	return nil
}
