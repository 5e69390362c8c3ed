// Package classify decides whether a literal found in source code is
// natural-language text that belongs in the translation catalog.
//
// Classification is an ordered rule pipeline:
//
//	reject-trivial → reject-technical → accept-dictionary → accept-grammar → reject
//
// The first rule that returns a verdict wins. Technical rejection runs before
// any acceptance rule, so a CSS class list or identifier that happens to
// contain a dictionary word is still rejected; some real text is missed in
// exchange for a catalog free of code-shaped noise.
package classify

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Verdict is the outcome of one rule.
type Verdict int

const (
	// Continue passes the literal to the next rule.
	Continue Verdict = iota
	// Accept marks the literal translatable.
	Accept
	// Reject marks the literal not translatable.
	Reject
)

// Rule is one named step of the pipeline.
type Rule struct {
	Name  string
	Apply func(text string) Verdict
}

// Decision is the classification of one literal and the rule that made it.
type Decision struct {
	Translatable bool
	Rule         string
}

// Rule names.
const (
	RuleTrivial    = "reject-trivial"
	RuleTechnical  = "reject-technical"
	RuleDictionary = "accept-dictionary"
	RuleGrammar    = "accept-grammar"
	RuleFallback   = "reject"
)

// Classifier runs the rule pipeline.
type Classifier struct {
	rules []Rule
}

// Option customizes a Classifier built by New.
type Option func(*settings)

type settings struct {
	minLength  int
	dictionary []string
	grammar    []*regexp.Regexp
}

// WithDictionary adds domain words to the built-in dictionary.
func WithDictionary(words ...string) Option {
	return func(s *settings) {
		for _, w := range words {
			if w = strings.TrimSpace(w); w != "" {
				s.dictionary = append(s.dictionary, w)
			}
		}
	}
}

// WithGrammar adds grammatical patterns to the built-in set.
func WithGrammar(patterns ...*regexp.Regexp) Option {
	return func(s *settings) {
		s.grammar = append(s.grammar, patterns...)
	}
}

// WithMinLength overrides the trivial-length threshold (default 3 runes).
func WithMinLength(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.minLength = n
		}
	}
}

// New builds the default pipeline. Options extend the word lists; they never
// reorder the rules.
func New(opts ...Option) *Classifier {
	s := &settings{
		minLength:  3,
		dictionary: append([]string(nil), DefaultDictionary...),
		grammar:    append([]*regexp.Regexp(nil), DefaultGrammar...),
	}
	for _, opt := range opts {
		opt(s)
	}
	return &Classifier{rules: []Rule{
		RejectTrivial(s.minLength),
		RejectTechnical(),
		AcceptDictionary(s.dictionary),
		AcceptGrammar(s.grammar),
		{Name: RuleFallback, Apply: func(string) Verdict { return Reject }},
	}}
}

// Rules returns the pipeline in evaluation order.
func (c *Classifier) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// Classify runs the pipeline on literal.
func (c *Classifier) Classify(literal string) Decision {
	text := strings.TrimSpace(literal)
	for _, r := range c.rules {
		switch r.Apply(text) {
		case Accept:
			return Decision{Translatable: true, Rule: r.Name}
		case Reject:
			return Decision{Translatable: false, Rule: r.Name}
		}
	}
	return Decision{Translatable: false, Rule: RuleFallback}
}

// IsTranslatable reports whether literal is natural-language text.
func (c *Classifier) IsTranslatable(literal string) bool {
	return c.Classify(literal).Translatable
}

// ---------------------------------------------------------------------------
// Rules
// ---------------------------------------------------------------------------

// RejectTrivial rejects literals shorter than minLength runes and literals
// made only of digits, whitespace, punctuation and symbols.
func RejectTrivial(minLength int) Rule {
	return Rule{Name: RuleTrivial, Apply: func(text string) Verdict {
		if utf8.RuneCountInString(text) < minLength {
			return Reject
		}
		for _, r := range text {
			if !unicode.IsDigit(r) && !unicode.IsSpace(r) && !unicode.IsPunct(r) && !unicode.IsSymbol(r) {
				return Continue
			}
		}
		return Reject
	}}
}

var (
	urlPattern        = regexp.MustCompile(`(?i)^([a-z][a-z0-9+.\-]*://|www\.|(mailto|tel|data|javascript|blob):)\S*$`)
	absPathPattern    = regexp.MustCompile(`^(\.{1,2}/|/|~/|@/)\S*$`)
	relPathPattern    = regexp.MustCompile(`^[\w.\-@]+(/[\w.\-\[\]:]+)+/?$`)
	allCapsPattern    = regexp.MustCompile(`^[A-Z][A-Z0-9]*(_[A-Z0-9]+)*$`)
	camelCasePattern  = regexp.MustCompile(`^[a-z][a-z0-9]*([A-Z][a-z0-9]*)+$`)
	pascalCompound    = regexp.MustCompile(`^[A-Z][a-z0-9]+([A-Z][a-z0-9]+)+$`)
	hexColorPattern   = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)
	identifierPattern = regexp.MustCompile(`^[a-z0-9]+([_\-][a-z0-9]+)+$`)
	dottedKeyPattern  = regexp.MustCompile(`^[A-Za-z_][\w]*(\.[\w\-]+)+$`)
	fileNamePattern   = regexp.MustCompile(`(?i)^[\w\-.]+\.(tsx?|jsx?|mjs|vue|css|scss|json|png|jpe?g|svg|webp|gif|ico|html?|md|go|ya?ml|toml|pdf|csv)$`)
	placeholderOnly   = regexp.MustCompile(`^(\{\{?\s*[\w.]+\s*\}?\}|\$\{[^}]*\}|%[sdvf])$`)
	utilityToken      = regexp.MustCompile(`^!?-?[a-z0-9]+([\-:/.][a-z0-9\[\]%#.]+)*$`)
	unitValuePattern  = regexp.MustCompile(`^-?\d+(\.\d+)?(px|rem|em|vh|vw|ms|s|%)$`)
)

// TechnicalPatterns reports which technical shape, if any, text has.
// The names are stable and used in debug logs.
func TechnicalPatterns(text string) string {
	switch {
	case urlPattern.MatchString(text):
		return "url"
	case hexColorPattern.MatchString(text):
		return "hex-color"
	case absPathPattern.MatchString(text), relPathPattern.MatchString(text):
		return "path"
	case fileNamePattern.MatchString(text):
		return "file-name"
	case allCapsPattern.MatchString(text):
		return "all-caps"
	case camelCasePattern.MatchString(text), pascalCompound.MatchString(text):
		return "camel-case"
	case identifierPattern.MatchString(text):
		return "identifier"
	case dottedKeyPattern.MatchString(text):
		return "dotted-key"
	case placeholderOnly.MatchString(text), unitValuePattern.MatchString(text):
		return "placeholder"
	case isUtilityClassList(text):
		return "utility-classes"
	}
	return ""
}

// isUtilityClassList matches whitespace-separated lowercase tokens where at
// least half carry a dash, colon or digit ("flex items-center gap-2").
func isUtilityClassList(text string) bool {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return false
	}
	marked := 0
	for _, f := range fields {
		if !utilityToken.MatchString(f) {
			return false
		}
		if strings.ContainsAny(f, "-:/[") || strings.ContainsAny(f, "0123456789") {
			marked++
		}
	}
	return marked > 0 && marked*2 >= len(fields)
}

// RejectTechnical rejects URLs, paths, identifiers, hex colors and other
// code-shaped literals.
func RejectTechnical() Rule {
	return Rule{Name: RuleTechnical, Apply: func(text string) Verdict {
		if TechnicalPatterns(text) != "" {
			return Reject
		}
		return Continue
	}}
}

// AcceptDictionary accepts literals containing any dictionary word
// (case-insensitive substring match).
func AcceptDictionary(words []string) Rule {
	lowered := make([]string, 0, len(words))
	for _, w := range words {
		lowered = append(lowered, strings.ToLower(w))
	}
	return Rule{Name: RuleDictionary, Apply: func(text string) Verdict {
		lt := strings.ToLower(text)
		for _, w := range lowered {
			if strings.Contains(lt, w) {
				return Accept
			}
		}
		return Continue
	}}
}

// AcceptGrammar accepts literals matching any grammatical pattern.
func AcceptGrammar(patterns []*regexp.Regexp) Rule {
	return Rule{Name: RuleGrammar, Apply: func(text string) Verdict {
		for _, p := range patterns {
			if p.MatchString(text) {
				return Accept
			}
		}
		return Continue
	}}
}
