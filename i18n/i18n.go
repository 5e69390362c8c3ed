// Package i18n translates catalogkit's own CLI messages. The dashboard
// catalogs are handled by package catalog; this package only covers what
// the tool prints.
//
// Translations are gettext catalogs embedded under
// locales/{lang}/LC_MESSAGES/catalogkit.po:
//
//	i18n.Init("")  // LANGUAGE, LC_ALL, LC_MESSAGES, LANG
//	fmt.Println(i18n.T("Catalog is valid"))
//	fmt.Println(i18n.N("%d key missing", "%d keys missing", n))
package i18n

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"github.com/leonelquinteros/gotext"
)

// locales/{lang}/LC_MESSAGES/catalogkit.po
//
//go:embed all:locales
var locales embed.FS

const domain = "catalogkit"

var (
	po   *gotext.Locale
	lang = "en"
)

// Init initializes the i18n system. If code is empty, it auto-detects
// from the environment variables LANGUAGE, LC_ALL, LC_MESSAGES, LANG
// (in that order, matching GNU gettext behavior).
//
// Init should be called once at program startup, before any T() or N() calls.
func Init(code string) {
	if code == "" {
		code = detectLanguage()
	}
	lang = code

	po = gotext.NewLocaleFSWithPath(code, locales, "locales")
	po.AddDomain(domain)
	po.SetDomain(domain)
}

// Lang returns the language selected by Init.
func Lang() string {
	return lang
}

// T translates a string. If no translation is available, returns the
// original string unchanged (standard gettext passthrough behavior).
func T(msgid string) string {
	if po == nil {
		return msgid
	}
	return po.Get(msgid)
}

// Tf translates format and applies args to it.
func Tf(format string, args ...any) string {
	return fmt.Sprintf(T(format), args...)
}

// N translates a string with plural forms. The singular form is used
// when n == 1, the plural form otherwise (exact rules depend on the
// target language's plural formula).
func N(singular, plural string, n int) string {
	if po == nil {
		if n == 1 {
			return singular
		}
		return plural
	}
	return po.GetN(singular, plural, n)
}

// Nf is N followed by fmt.Sprintf with n as the first argument.
func Nf(singular, plural string, n int, args ...any) string {
	return fmt.Sprintf(N(singular, plural, n), append([]any{n}, args...)...)
}

// detectLanguage reads environment variables to determine the user's
// preferred language, following GNU gettext conventions.
func detectLanguage() string {
	// GNU gettext priority: LANGUAGE > LC_ALL > LC_MESSAGES > LANG
	for _, env := range []string{"LANGUAGE", "LC_ALL", "LC_MESSAGES", "LANG"} {
		if val := os.Getenv(env); val != "" {
			// LANGUAGE can be a colon-separated list; take the first
			if env == "LANGUAGE" {
				parts := strings.SplitN(val, ":", 2)
				val = parts[0]
			}
			// Strip encoding suffix (e.g. "ru_RU.UTF-8" -> "ru_RU")
			if idx := strings.IndexByte(val, '.'); idx >= 0 {
				val = val[:idx]
			}
			// "C" and "POSIX" mean no translation
			if val == "C" || val == "POSIX" || val == "" {
				continue
			}
			return val
		}
	}
	return "en"
}
