// Package lookup resolves catalog keys for the admin UI. Every flat key of
// every locale becomes a go-i18n message; {name} placeholders are rendered
// from caller data.
package lookup

import (
	"regexp"
	"strings"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/rs/zerolog"
	"golang.org/x/text/language"

	"github.com/bloomdesk/catalogkit/keytree"
)

var placeholderRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Catalogs is a read-only bundle of loaded locales.
type Catalogs struct {
	bundle       *i18n.Bundle
	sourceLocale string
	tags         map[string]language.Tag
	raw          map[string]map[string]string
	log          zerolog.Logger
}

// New builds the bundle from loaded trees. Locales whose code does not parse
// as a BCP 47 tag are skipped and logged.
func New(sourceLocale string, trees map[string]*keytree.Tree, log zerolog.Logger) *Catalogs {
	srcTag, err := language.Parse(sourceLocale)
	if err != nil {
		srcTag = language.Dutch
	}
	c := &Catalogs{
		bundle:       i18n.NewBundle(srcTag),
		sourceLocale: sourceLocale,
		tags:         make(map[string]language.Tag, len(trees)),
		raw:          make(map[string]map[string]string, len(trees)),
		log:          log,
	}

	for locale, tree := range trees {
		tag, err := language.Parse(locale)
		if err != nil {
			log.Warn().Str("locale", locale).Err(err).Msg("skipping catalog with invalid locale code")
			continue
		}
		flat := keytree.Flatten(tree)
		msgs := make([]*i18n.Message, 0, len(flat))
		for key, value := range flat {
			if value == "" || strings.Contains(value, "{{") || strings.Contains(value, "}}") {
				continue
			}
			msgs = append(msgs, &i18n.Message{ID: key, Other: toTemplate(value)})
		}
		if err := c.bundle.AddMessages(tag, msgs...); err != nil {
			log.Warn().Str("locale", locale).Err(err).Msg("adding messages")
			continue
		}
		c.tags[locale] = tag
		c.raw[locale] = flat
	}
	return c
}

// toTemplate rewrites {name} placeholders as {{.name}}.
func toTemplate(s string) string {
	return placeholderRe.ReplaceAllString(s, "{{.$1}}")
}

// GetTranslation renders key for locale, falling back to the source locale
// and then to the key itself. It never fails. Placeholders without a value
// are left as written.
func (c *Catalogs) GetTranslation(locale, key string, placeholders map[string]string) string {
	if key == "" {
		return ""
	}
	for _, l := range []string{locale, c.sourceLocale} {
		if text, ok := c.render(l, key, placeholders); ok {
			return text
		}
	}
	c.log.Debug().Str("locale", locale).Str("key", key).Msg("missing translation")
	return key
}

func (c *Catalogs) render(locale, key string, placeholders map[string]string) (string, bool) {
	raw, ok := c.raw[locale][key]
	if !ok || raw == "" {
		return "", false
	}

	data := make(map[string]any)
	for _, m := range placeholderRe.FindAllStringSubmatch(raw, -1) {
		data[m[1]] = m[0]
	}
	for k, v := range placeholders {
		data[k] = v
	}

	localizer := i18n.NewLocalizer(c.bundle, c.tags[locale].String())
	msg, tag, err := localizer.LocalizeWithTag(&i18n.LocalizeConfig{
		MessageID:    key,
		TemplateData: data,
	})
	if err != nil || tag != c.tags[locale] {
		// text with literal braces is kept out of the bundle
		return substitute(raw, placeholders), true
	}
	return msg, true
}

func substitute(s string, placeholders map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(s, func(m string) string {
		if v, ok := placeholders[m[1:len(m)-1]]; ok {
			return v
		}
		return m
	})
}

// Has reports whether locale has a non-empty entry for key.
func (c *Catalogs) Has(locale, key string) bool {
	v, ok := c.raw[locale][key]
	return ok && v != ""
}
