package classify

import "regexp"

// DefaultDictionary holds Dutch shop vocabulary. Matching is a
// case-insensitive substring test, so stems ("bestel") cover inflections.
var DefaultDictionary = []string{
	// catalogue
	"bloem", "boeket", "plant", "vaas", "rozen", "tulp", "krans", "seizoen",
	"product", "artikel", "voorraad", "categorie", "prijs", "korting", "aanbieding",
	// orders and customers
	"bestel", "klant", "levering", "bezorg", "verzend", "betaling", "betaal",
	"factuur", "totaal", "subtotaal", "btw", "winkelwagen", "afrekenen", "retour",
	"adres", "straat", "postcode", "plaats", "telefoon", "voornaam", "achternaam",
	"naam", "datum", "tijdstip", "bericht", "opmerking", "kaartje",
	// actions
	"opslaan", "annuleren", "verwijder", "bewerk", "toevoeg", "zoek", "bekijk",
	"wijzig", "bevestig", "sluiten", "terug", "volgende", "vorige", "doorgaan",
	"inloggen", "uitloggen", "wachtwoord", "registreer", "verstuur", "download",
	// states and feedback
	"geen", "open", "gesloten", "actief", "inactief", "gelukt", "mislukt",
	"fout", "laden", "bezig", "welkom", "overzicht", "instelling", "resultaten",
	"verplicht", "ongeldig", "beschikbaar", "uitverkocht", "nieuw",
	// calendar
	"maandag", "dinsdag", "woensdag", "donderdag", "vrijdag", "zaterdag", "zondag",
	"vandaag", "morgen", "gisteren", "week", "maand",
}

// DefaultGrammar holds patterns characteristic of Dutch UI text.
var DefaultGrammar = []*regexp.Regexp{
	// function words inside a multi-word literal
	regexp.MustCompile(`(?i)\S\s+.*\b(de|het|een|en|van|voor|met|naar|bij|op|aan|uit|niet|geen|ook|nog|al|alle|dit|deze|dat|die|er)\b`),
	regexp.MustCompile(`(?i)\b(de|het|een|van|voor|met|naar|bij|op|aan|uit|niet|geen|dit|deze|dat|die|er)\s+\S`),
	// pronouns and auxiliaries
	regexp.MustCompile(`(?i)\b(je|jij|jouw|jullie|u|uw|wij|we|ons|onze|ik|mijn)\b\s*\S+`),
	regexp.MustCompile(`(?i)\b(is|zijn|wordt|worden|werd|kan|kunt|kunnen|moet|moeten|wil|wilt|heeft|hebt|hebben|zal|zult)\b`),
	// capitalized sentence ending in punctuation
	regexp.MustCompile(`^\p{Lu}\p{Ll}+(\s+\S+)+[.!?…]$`),
}
