package extract

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/bloomdesk/catalogkit/classify"
)

// commentPrefixes mark lines that are skipped entirely.
var commentPrefixes = []string{"//", "/*", "*", "<!--", "{/*", "-->"}

// declarationLine matches module import/export declarations and requires.
var declarationLine = regexp.MustCompile(`^(import\b|export\s+(\*|\{[^}]*\}\s*from\b|type\s+\{)|\}\s*from\s|(const|let|var)\s+[\w{}\s,]+=\s*require\()`)

// span is one literal found by a matcher.
type span struct {
	text string
	kind Kind
}

func skipLine(trimmed string) bool {
	if trimmed == "" {
		return true
	}
	for _, p := range commentPrefixes {
		if strings.HasPrefix(trimmed, p) {
			return true
		}
	}
	return declarationLine.MatchString(trimmed)
}

// scanLines runs the three matchers over every line of a web source.
func scanLines(path, content string, c *classify.Classifier) []Occurrence {
	var out []Occurrence
	for i, raw := range strings.Split(content, "\n") {
		line := strings.TrimRight(raw, "\r")
		trimmed := strings.TrimSpace(line)
		if skipLine(trimmed) {
			continue
		}

		seen := make(map[span]bool)
		spans := append(lexQuoted(line), lexMarkup(line)...)
		for _, s := range spans {
			s.text = strings.TrimSpace(s.text)
			if s.text == "" || seen[s] {
				continue
			}
			seen[s] = true
			if !c.IsTranslatable(s.text) {
				continue
			}
			out = append(out, Occurrence{
				File:    path,
				Line:    i + 1,
				Text:    s.text,
				Kind:    s.kind,
				Context: trimmed,
			})
		}
	}
	return out
}

// lexQuoted returns the quoted-string and backtick-template literals of one
// line. Escapes are honored. A quote with no closing partner on the line,
// such as the apostrophe in "Foto's", is skipped and scanning resumes after
// it.
func lexQuoted(line string) []span {
	var out []span
	r := []rune(line)
	for i := 0; i < len(r); i++ {
		switch r[i] {
		case '"', '\'':
			text, end, ok := readQuoted(r, i+1, r[i])
			if !ok {
				continue
			}
			out = append(out, span{text: text, kind: KindString})
			i = end
		case '`':
			parts, end, ok := readTemplate(r, i+1)
			if !ok {
				continue
			}
			for _, p := range parts {
				out = append(out, span{text: p, kind: KindTemplate})
			}
			i = end
		}
	}
	return out
}

func readQuoted(r []rune, start int, quote rune) (string, int, bool) {
	var b strings.Builder
	for j := start; j < len(r); j++ {
		switch r[j] {
		case '\\':
			if j+1 < len(r) {
				j++
				b.WriteRune(unescape(r[j]))
			}
		case quote:
			return b.String(), j, true
		default:
			b.WriteRune(r[j])
		}
	}
	return "", len(r), false
}

// readTemplate returns the static text parts of a template literal; the
// text between ${...} expressions becomes separate parts.
func readTemplate(r []rune, start int) ([]string, int, bool) {
	var parts []string
	var b strings.Builder
	flush := func() {
		if s := strings.TrimSpace(b.String()); s != "" {
			parts = append(parts, s)
		}
		b.Reset()
	}
	for j := start; j < len(r); j++ {
		switch {
		case r[j] == '\\':
			if j+1 < len(r) {
				j++
				b.WriteRune(unescape(r[j]))
			}
		case r[j] == '`':
			flush()
			return parts, j, true
		case r[j] == '$' && j+1 < len(r) && r[j+1] == '{':
			flush()
			depth := 0
			for j++; j < len(r); j++ {
				if r[j] == '{' {
					depth++
				} else if r[j] == '}' {
					depth--
					if depth == 0 {
						break
					}
				}
			}
		default:
			b.WriteRune(r[j])
		}
	}
	return nil, len(r), false
}

func unescape(r rune) rune {
	switch r {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	}
	return r
}

// lexMarkup returns text tokens bounded by tags on both sides. Text inside
// script and style elements and text holding template expressions is
// ignored.
func lexMarkup(line string) []span {
	if !strings.Contains(line, "<") {
		return nil
	}
	var out []span
	z := html.NewTokenizer(strings.NewReader(line))
	var (
		afterTag bool
		pending  string
		rawText  bool
	)
	for {
		switch z.Next() {
		case html.ErrorToken:
			return out
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			tt := z.Token()
			if pending != "" {
				out = append(out, span{text: pending, kind: KindMarkup})
			}
			rawText = tt.Type == html.StartTagToken && (tt.Data == "script" || tt.Data == "style")
			pending = ""
			afterTag = true
		case html.TextToken:
			text := strings.TrimSpace(string(z.Text()))
			pending = ""
			if afterTag && !rawText && text != "" && !strings.ContainsAny(text, "{}<>;=") {
				pending = text
			}
			afterTag = false
		default:
			pending = ""
			afterTag = false
		}
	}
}
