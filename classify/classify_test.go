package classify

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTranslatable(t *testing.T) {
	c := New()
	tests := []struct {
		text string
		want bool
	}{
		{"Bekijk alle", true},
		{"Open", true},
		{"Open bestellingen", true},
		{"Opslaan", true},
		{"Weet je het zeker?", true},
		{"Dit veld is verplicht", true},
		{"Nieuwe klant toevoegen", true},

		{"flex items-center gap-2", false},
		{"", false},
		{"ok", false},
		{"123", false},
		{"--- ...", false},
		{"Hello world", false},
	}
	for _, tc := range tests {
		if got := c.IsTranslatable(tc.text); got != tc.want {
			t.Errorf("IsTranslatable(%q) = %v, want %v (rule %s)", tc.text, got, tc.want, c.Classify(tc.text).Rule)
		}
	}
}

func TestTechnicalLiteralsWithDictionaryWordsAreRejected(t *testing.T) {
	c := New()
	for _, text := range []string{
		"https://bloem.nl/bestellingen",
		"mailto:klant@bloem.nl",
		"#ffffff",
		"#abc",
		"BESTEL_STATUS",
		"bestelOverzicht",
		"KlantOverzicht",
		"/api/bestellingen",
		"./klant/adres",
		"bestellingen/open.tsx",
		"bloem-card",
		"klant_naam",
		"orders.open.status",
		"text-sm font-medium opslaan-btn",
		"{klantNaam}",
	} {
		d := c.Classify(text)
		if d.Translatable {
			t.Errorf("Classify(%q) accepted by %s, want rejected", text, d.Rule)
			continue
		}
		if d.Rule != RuleTechnical {
			t.Errorf("Classify(%q) rejected by %s, want %s", text, d.Rule, RuleTechnical)
		}
	}
}

func TestClassifyReportsDecidingRule(t *testing.T) {
	c := New()
	tests := []struct {
		text string
		want Decision
	}{
		{"ab", Decision{false, RuleTrivial}},
		{"  42  ", Decision{false, RuleTrivial}},
		{"flex items-center gap-2", Decision{false, RuleTechnical}},
		{"Bekijk alle", Decision{true, RuleDictionary}},
		{"Zet het hier neer.", Decision{true, RuleGrammar}},
		{"Lorem ipsum", Decision{false, RuleFallback}},
	}
	for _, tc := range tests {
		t.Run(tc.text, func(t *testing.T) {
			assert.Equal(t, tc.want, c.Classify(tc.text))
		})
	}
}

func TestRuleOrder(t *testing.T) {
	var names []string
	for _, r := range New().Rules() {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{RuleTrivial, RuleTechnical, RuleDictionary, RuleGrammar, RuleFallback}, names)
}

func TestRejectTrivial(t *testing.T) {
	r := RejectTrivial(3)
	assert.Equal(t, Reject, r.Apply("ab"))
	assert.Equal(t, Reject, r.Apply("12:30"))
	assert.Equal(t, Reject, r.Apply("€ 10,-"))
	assert.Equal(t, Continue, r.Apply("abc"))
	assert.Equal(t, Continue, r.Apply("é è"))
}

func TestRejectTechnical(t *testing.T) {
	r := RejectTechnical()
	tests := map[string]string{
		"https://example.com":       "url",
		"data:image/png;base64,xyz": "url",
		"#1a2b3c":                   "hex-color",
		"../shared/util":            "path",
		"logo.svg":                  "file-name",
		"MAX_ITEMS":                 "all-caps",
		"onSubmit":                  "camel-case",
		"grid-cols-3":               "identifier",
		"common.save":               "dotted-key",
		"16px":                      "placeholder",
		"p-4 md:p-6 rounded":        "utility-classes",
	}
	for text, kind := range tests {
		if got := TechnicalPatterns(text); got != kind {
			t.Errorf("TechnicalPatterns(%q) = %q, want %q", text, got, kind)
		}
		if r.Apply(text) != Reject {
			t.Errorf("RejectTechnical(%q) did not reject", text)
		}
	}
	for _, text := range []string{"Bekijk alle", "Open", "Weet je het zeker?"} {
		if kind := TechnicalPatterns(text); kind != "" {
			t.Errorf("TechnicalPatterns(%q) = %q, want none", text, kind)
		}
	}
}

func TestAcceptDictionary(t *testing.T) {
	r := AcceptDictionary([]string{"Bloem"})
	assert.Equal(t, Accept, r.Apply("Verse BLOEMEN"))
	assert.Equal(t, Continue, r.Apply("Verse tulpen"))
}

func TestAcceptGrammar(t *testing.T) {
	r := AcceptGrammar(DefaultGrammar)
	assert.Equal(t, Accept, r.Apply("Weet je het zeker"))
	assert.Equal(t, Accept, r.Apply("Dit kan niet"))
	assert.Equal(t, Accept, r.Apply("Kies een kleur."))
	assert.Equal(t, Continue, r.Apply("lorem"))
}

func TestOptionsExtendWithoutReordering(t *testing.T) {
	c := New(
		WithDictionary("pioen", " "),
		WithGrammar(regexp.MustCompile(`(?i)^graag\b`)),
		WithMinLength(4),
	)
	assert.True(t, c.IsTranslatable("Pioenen"))
	assert.True(t, c.IsTranslatable("Graag zo"))
	assert.Equal(t, RuleTrivial, c.Classify("abc").Rule)
	assert.Equal(t, RuleTechnical, c.Classify("pioenCard").Rule)
	assert.Len(t, c.Rules(), 5)
}
