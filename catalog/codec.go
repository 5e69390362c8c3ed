// Package catalog reads and writes the per-locale catalog files.
//
// Every file holds a single top-level key equal to its locale code whose
// value is the nested tree:
//
//	{
//	  "nl": {
//	    "common": { "save": "Opslaan" }
//	  }
//	}
//
// JSON and YAML keep the key order of the file on round-trip; TOML output is
// sorted. Arrays and non-string leaves are rejected with MalformedCatalog.
package catalog

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bloomdesk/catalogkit/catalogerr"
	"github.com/bloomdesk/catalogkit/keytree"
)

// Format identifies an on-disk catalog encoding.
type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
	TOML Format = "toml"
)

// Formats lists the supported formats.
func Formats() []Format {
	return []Format{JSON, YAML, TOML}
}

// Ext returns the file extension of f, including the dot.
func (f Format) Ext() string {
	return "." + string(f)
}

// ParseFormat parses a format name ("json", "yaml", "yml", "toml").
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "json":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	case "toml":
		return TOML, nil
	}
	return "", fmt.Errorf("unknown catalog format %q (supported: json, yaml, toml)", s)
}

// FormatOf returns the format implied by a file name's extension.
func FormatOf(path string) (Format, bool) {
	f, err := ParseFormat(filepath.Ext(path))
	return f, err == nil && filepath.Ext(path) != ""
}

// Decode parses a catalog document for locale.
func Decode(format Format, locale string, data []byte) (*keytree.Tree, error) {
	var (
		t   *keytree.Tree
		err error
	)
	switch format {
	case JSON:
		t, err = decodeJSON(locale, data)
	case YAML:
		t, err = decodeYAML(locale, data)
	case TOML:
		t, err = decodeTOML(locale, data)
	default:
		return nil, fmt.Errorf("unknown catalog format %q", format)
	}
	if err != nil {
		return nil, catalogerr.WithLocale(err, locale)
	}
	// empty objects carry no keys
	t.Compact()
	return t, nil
}

// Encode serialises tree as the catalog document of locale.
func Encode(format Format, locale string, tree *keytree.Tree) ([]byte, error) {
	if tree == nil {
		tree = keytree.New()
	}
	switch format {
	case JSON:
		return encodeJSON(locale, tree)
	case YAML:
		return encodeYAML(locale, tree)
	case TOML:
		return encodeTOML(locale, tree)
	}
	return nil, fmt.Errorf("unknown catalog format %q", format)
}

func childPath(prefix, label string) string {
	if prefix == "" {
		return label
	}
	return prefix + keytree.Separator + label
}

func checkLabel(path, label string) error {
	if label == "" || strings.Contains(label, keytree.Separator) {
		return catalogerr.Malformed(path, "label must be non-empty and contain no %q", keytree.Separator)
	}
	return nil
}

func wrongRoot(locale string, got []string) error {
	if len(got) == 0 {
		return catalogerr.Malformed("", "document has no top-level %q key", locale)
	}
	return catalogerr.Malformed("", "document must have the single top-level key %q, found %s", locale, strings.Join(got, ", "))
}
