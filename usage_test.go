package aichef

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenCounter(t *testing.T) {
	tc := NewTokenCounter()

	assert.Equal(t, 0, tc.Count(""))
	assert.Positive(t, tc.Count("Ho sei uova e un litro di latte"))

	var nilCounter *TokenCounter
	assert.Equal(t, 3, nilCounter.Count("twelve chars"))
}

func TestTokenCounter_Estimate(t *testing.T) {
	tc := NewTokenCounter()
	req := CompletionRequest{
		System: "You are an expert cooking assistant.",
		History: []Turn{
			{Role: RoleUser, Text: "I have eggs"},
			{Role: RoleAssistant, Text: "How many people?"},
		},
		User: "four",
	}

	u := tc.Estimate(req, "Three recipes follow.")
	assert.Positive(t, u.Input)
	assert.Positive(t, u.Output)
	assert.Equal(t, u.Input+u.Output, u.Total)

	bare := tc.Estimate(CompletionRequest{System: req.System, User: req.User}, "Three recipes follow.")
	assert.Greater(t, u.Input, bare.Input)
	assert.Equal(t, bare.Output, u.Output)
}
