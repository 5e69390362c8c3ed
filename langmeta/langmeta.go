// Package langmeta normalizes locale codes and provides display metadata
// (native name, English name, emoji flag) for reports and CLI output.
package langmeta

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Meta describes locale display metadata.
type Meta struct {
	Code    string
	Name    string // in the language itself
	English string
	Flag    string
}

// Canonicalize returns the BCP 47 form of a locale code ("pt_br" → "pt-BR").
func Canonicalize(locale string) (string, error) {
	trimmed := strings.TrimSpace(locale)
	if trimmed == "" {
		return "", fmt.Errorf("empty locale code")
	}
	tag, err := language.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("invalid locale %q: %w", locale, err)
	}
	return tag.String(), nil
}

// Resolve returns best-effort metadata. Codes that do not parse are passed
// through as their own name.
func Resolve(locale string) Meta {
	tag, err := language.Parse(strings.TrimSpace(locale))
	if err != nil {
		return Meta{Code: locale, Name: locale, English: locale}
	}
	m := Meta{
		Code:    tag.String(),
		Name:    display.Self.Name(tag),
		English: display.English.Tags().Name(tag),
		Flag:    flag(tag),
	}
	if m.Name == "" {
		m.Name = m.Code
	}
	if m.English == "" {
		m.English = m.Code
	}
	return m
}

// flag builds the regional-indicator pair for the tag's (possibly inferred)
// region.
func flag(tag language.Tag) string {
	region, conf := tag.Region()
	if conf == language.No {
		return ""
	}
	code := region.String()
	if len(code) != 2 || code[0] < 'A' || code[0] > 'Z' || code[1] < 'A' || code[1] > 'Z' {
		return ""
	}
	return string([]rune{0x1F1E6 + rune(code[0]-'A'), 0x1F1E6 + rune(code[1]-'A')})
}

// Label formats a locale for human output: "🇳🇱 Nederlands (nl)".
func Label(locale string) string {
	m := Resolve(locale)
	if m.Flag == "" {
		return fmt.Sprintf("%s (%s)", m.Name, m.Code)
	}
	return fmt.Sprintf("%s %s (%s)", m.Flag, m.Name, m.Code)
}
