package catalog

import (
	"testing"

	"technobug/pkg/models"

	"github.com/stretchr/testify/assert"
)

var cards = []Card{
	{Title: "Introdução ao Git", Description: "Commits e branches", Author: "Prof. Lima", Category: "Versionamento", Tags: []string{"git"}},
	{Title: "Normalização", Description: "Formas normais", Author: "Profa. Souza", Category: "Banco de Dados", Tags: []string{"SQL"}},
	{Title: "Redes Neurais", Description: "Perceptron", Author: "Prof. Lima", Category: "I.A", Tags: []string{"python"}},
	{Title: "Activities", Description: "Ciclo de vida", Author: "Prof. Reis", Category: "Android", Tags: []string{"kotlin"}},
	{Title: "Algoritmos", Description: "Estruturas de decisão", Author: "Prof. Reis", Category: "Lógica", Tags: nil},
}

func titles(cs []Card) []string {
	out := []string{}
	for _, c := range cs {
		out = append(out, c.Title)
	}
	return out
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "programacao android", Normalize("  Programação   Android "))
	assert.Equal(t, "logica", Normalize("LÓGICA"))
}

func TestCategoryAliases(t *testing.T) {
	assert.Equal(t, []string{"Normalização"}, titles(Filter{Category: "Modelagem a Banco de Dados"}.Apply(cards)))
	assert.Equal(t, []string{"Activities"}, titles(Filter{Category: "Programação Android"}.Apply(cards)))
	assert.Len(t, Filter{Category: All}.Apply(cards), len(cards))
	assert.Empty(t, Filter{Category: "Carreiras"}.Apply(cards))
}

func TestTermMatchesFields(t *testing.T) {
	assert.Equal(t, []string{"Introdução ao Git", "Redes Neurais"}, titles(Filter{Term: "lima"}.Apply(cards)))
	assert.Equal(t, []string{"Normalização"}, titles(Filter{Term: "sql"}.Apply(cards)))
	assert.Equal(t, []string{"Redes Neurais"}, titles(Filter{Term: "ia"}.Apply(cards)))
	assert.Equal(t, []string{"Algoritmos"}, titles(Filter{Term: "logica"}.Apply(cards)))
}

func TestCategoryAndTermCombine(t *testing.T) {
	f := Filter{Category: "Versionamento", Term: "lima"}
	assert.Equal(t, []string{"Introdução ao Git"}, titles(f.Apply(cards)))

	f = Filter{Category: "I.A", Term: "git"}
	assert.Empty(t, f.Apply(cards))
}

func TestCardFromMaterial(t *testing.T) {
	c := CardFromMaterial(models.Material{Title: "Slides", Category: "Redes", Tags: []string{"tcp"}})
	assert.True(t, Filter{Category: "Redes", Term: "tcp"}.Visible(c))
}
