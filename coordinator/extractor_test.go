package coordinator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aichef"
	"aichef/kitchen"
)

func TestParsePayload(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		want        kitchen.Extraction
		expectError bool
	}{
		{
			name: "contract shape",
			text: `{"ingredients":[{"item":"uova","qty":"2","expiry":"domani"}],"preferences":["vegetariano"],"people":"3"}`,
			want: kitchen.Extraction{
				Items:       []kitchen.ItemUpdate{{Name: "uova", Quantity: "2", Expiry: "domani"}},
				Constraints: []string{"vegetariano"},
				People:      "3",
			},
		},
		{
			name: "fenced with prose",
			text: "Here you go:\n```json\n{\"ingredients\":[],\"preferences\":[],\"people\":null}\n```\nEnjoy!",
			want: kitchen.Extraction{},
		},
		{
			name: "numbers coerced to strings",
			text: `{"ingredients":[{"item":"farina","qty":500,"expiry":null}],"preferences":[],"people":4}`,
			want: kitchen.Extraction{
				Items:  []kitchen.ItemUpdate{{Name: "farina", Quantity: "500"}},
				People: "4",
			},
		},
		{
			name: "placeholders dropped",
			text: `{"ingredients":[{"item":"latte","qty":"unknown","expiry":"N/A"},{"item":"null"}],"preferences":["none",""],"people":"null"}`,
			want: kitchen.Extraction{
				Items: []kitchen.ItemUpdate{{Name: "latte"}},
			},
		},
		{
			name: "bare strings and alias keys",
			text: `{"ingredients":["riso",{"name":"burro","quantity":"100g"}]}`,
			want: kitchen.Extraction{
				Items: []kitchen.ItemUpdate{{Name: "riso"}, {Name: "burro", Quantity: "100g"}},
			},
		},
		{
			name:        "empty output",
			text:        "   ",
			expectError: true,
		},
		{
			name:        "no json at all",
			text:        "I could not find any ingredients.",
			expectError: true,
		},
		{
			name:        "wrong top level type",
			text:        `["uova"]`,
			expectError: true,
		},
		{
			name:        "truncated object",
			text:        `{"ingredients":[{"item":"uova"`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePayload(tt.text)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractor_Extract(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		llm := &fakeLLM{extractor: reply(`{"ingredients":[{"item":"uova"}],"preferences":[],"people":"2"}`, 42)}
		res := NewExtractor().Extract(context.Background(), llm, "ho le uova, siamo in 2")

		assert.Equal(t, ExtractionOK, res.Status)
		assert.NoError(t, res.Err)
		assert.Equal(t, "2", res.Record.People)
		assert.Equal(t, 42, res.Usage.Total)
		require.Len(t, llm.calls, 1)
		assert.Equal(t, "ho le uova, siamo in 2", llm.calls[0].User)
		assert.Empty(t, llm.calls[0].History)
	})

	t.Run("parse error keeps usage", func(t *testing.T) {
		llm := &fakeLLM{extractor: reply("no idea", 12)}
		res := NewExtractor().Extract(context.Background(), llm, "ciao")

		assert.Equal(t, ExtractionParseError, res.Status)
		assert.Error(t, res.Err)
		assert.True(t, res.Record.IsEmpty())
		assert.Equal(t, 12, res.Usage.Total)
	})

	t.Run("service error", func(t *testing.T) {
		llm := &fakeLLM{extractor: scripted{err: errors.New("429 Too Many Requests")}}
		res := NewExtractor().Extract(context.Background(), llm, "ciao")

		assert.Equal(t, ExtractionServiceError, res.Status)
		assert.True(t, aichef.IsRateLimit(res.Err))
		assert.Zero(t, res.Usage.Total)
	})
}

func TestExtractionStatusString(t *testing.T) {
	assert.Equal(t, "ok", ExtractionOK.String())
	assert.Equal(t, "parse_error", ExtractionParseError.String())
	assert.Equal(t, "service_error", ExtractionServiceError.String())
}
