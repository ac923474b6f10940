// Package catalog filters study material cards by category and search term.
package catalog

import (
	"strings"
	"unicode"

	"technobug/pkg/models"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const All = "Todos"

// categoryAliases maps a category button label to the card categories it shows.
var categoryAliases = map[string][]string{
	"I.A":                        {"I.A"},
	"Modelagem a Banco de Dados": {"Banco de Dados"},
	"Programação Android":        {"Android"},
	"Projeto Multidisciplinar":   {"Multidisciplinar"},
	"Versionamento":              {"Versionamento"},
}

// termCategories maps a normalized search term to the category text it
// should match.
var termCategories = map[string]string{
	"versionamento":              "versionamento",
	"ia":                         "i.a",
	"i.a":                        "i.a",
	"banco de dados":             "banco de dados",
	"modelagem a banco de dados": "banco de dados",
	"logica":                     "logica",
	"processos":                  "processos",
	"frontend":                   "front-end",
	"front-end":                  "front-end",
	"backend":                    "back-end",
	"back-end":                   "back-end",
	"android":                    "android",
	"programacao android":        "android",
	"multidisciplinar":           "multidisciplinar",
	"projeto multidisciplinar":   "multidisciplinar",
	"carreiras":                  "carreiras",
	"redes":                      "redes",
}

type Card struct {
	Title       string
	Description string
	Author      string
	Category    string
	Tags        []string
}

func CardFromMaterial(m models.Material) Card {
	return Card{Title: m.Title, Description: m.Description, Author: m.Author, Category: m.Category, Tags: m.Tags}
}

type Filter struct {
	Category string
	Term     string
}

// Normalize lower-cases s, strips accents and collapses runs of whitespace.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// Visible reports whether card matches both the category and the term.
func (f Filter) Visible(card Card) bool {
	return f.matchesCategory(card) && f.matchesTerm(card)
}

func (f Filter) matchesCategory(card Card) bool {
	active := strings.TrimSpace(f.Category)
	if active == "" || active == All {
		return true
	}
	allowed, ok := categoryAliases[active]
	if !ok {
		allowed = []string{active}
	}
	got := Normalize(card.Category)
	for _, c := range allowed {
		if Normalize(c) == got {
			return true
		}
	}
	return false
}

func (f Filter) matchesTerm(card Card) bool {
	term := Normalize(f.Term)
	if term == "" {
		return true
	}
	category := term
	if mapped, ok := termCategories[term]; ok {
		category = mapped
	}
	if strings.Contains(Normalize(card.Title), term) ||
		strings.Contains(Normalize(card.Description), term) ||
		strings.Contains(Normalize(card.Author), term) ||
		strings.Contains(Normalize(card.Category), category) {
		return true
	}
	for _, tag := range card.Tags {
		if strings.Contains(Normalize(tag), term) {
			return true
		}
	}
	return false
}

// Apply returns the visible cards in their original order.
func (f Filter) Apply(cards []Card) []Card {
	out := make([]Card, 0, len(cards))
	for _, c := range cards {
		if f.Visible(c) {
			out = append(out, c)
		}
	}
	return out
}
