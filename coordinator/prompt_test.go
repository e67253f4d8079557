package coordinator

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aichef/kitchen"
)

func TestExtractionPromptEmbedsSchema(t *testing.T) {
	p := extractionPrompt()
	assert.Contains(t, p, `"ingredients"`)
	assert.Contains(t, p, `"preferences"`)
	assert.Contains(t, p, `"people"`)

	data, err := json.Marshal(extractionSchema())
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "object", decoded["type"])
}

func TestProducerPrompt(t *testing.T) {
	t.Run("empty session", func(t *testing.T) {
		p := producerPrompt(kitchen.NewSession(), false, "Italian")
		assert.Contains(t, p, "The pantry is empty.")
		assert.Contains(t, p, "DIETARY CONSTRAINTS: none")
		assert.Contains(t, p, "PARTY SIZE: unspecified")
		assert.Contains(t, p, "ENOUGH INFORMATION FOR RECIPES: NO")
		assert.Contains(t, p, "Reply in Italian.")
	})

	t.Run("populated session", func(t *testing.T) {
		s := kitchen.NewSession()
		s.Merge(kitchen.Extraction{
			Items:       []kitchen.ItemUpdate{{Name: "uova", Quantity: "6", Expiry: "domani"}, {Name: "farina"}},
			Constraints: []string{"vegetariano", "no lattosio"},
			People:      "2",
		})

		p := producerPrompt(s, true, "English")
		assert.Contains(t, p, "- uova (quantity: 6, expiry: domani)")
		assert.Contains(t, p, "- farina (quantity: unknown, expiry: unknown)")
		assert.Contains(t, p, "DIETARY CONSTRAINTS: vegetariano, no lattosio")
		assert.Contains(t, p, "PARTY SIZE: 2")
		assert.Contains(t, p, "ENOUGH INFORMATION FOR RECIPES: YES")
		assert.Contains(t, p, "exactly 3 complete recipes")
		assert.Contains(t, p, "Reply in English.")
	})
}

func TestCriticPrompt(t *testing.T) {
	s := kitchen.NewSession()
	s.Merge(kitchen.Extraction{Constraints: []string{"diabetico"}, People: "4"})

	p := criticPrompt(s, "Italian")
	assert.Contains(t, p, "Score: N/10")
	assert.Contains(t, p, "PARTY SIZE: 4")
	assert.Contains(t, p, "DIETARY CONSTRAINTS: diabetico")
}

func TestParseScore(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"Score: 7/10\nBuone porzioni.", 7},
		{"**Score:** 10 / 10", 10},
		{"score=3/10", 3},
		{"Voto complessivo. Score 9/10", 9},
		{"Score: 11/10", 0},
		{"Score: 0/10", 0},
		{"Nessun punteggio", 0},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseScore(tt.text))
		})
	}
}

func TestCritic_Critique(t *testing.T) {
	llm := &fakeLLM{critic: reply("Score: 6/10\nTroppa pasta.", 33)}
	s := kitchen.NewSession()

	crit, usage, err := NewCritic("Italian").Critique(context.Background(), llm, s, "1. A\n2. B\n3. C")
	require.NoError(t, err)
	assert.Equal(t, kitchen.Critique{Score: 6, Text: "Score: 6/10\nTroppa pasta."}, crit)
	assert.Equal(t, 33, usage.Total)
	assert.Empty(t, llm.calls[0].History)
}
