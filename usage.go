package aichef

import (
	"github.com/tiktoken-go/tokenizer"
)

// TokenCounter estimates usage for backends that do not report it.
type TokenCounter struct {
	codec tokenizer.Codec
}

// NewTokenCounter returns a counter using the cl100k encoding. Counts are an approximation for non-OpenAI models.
func NewTokenCounter() *TokenCounter {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return &TokenCounter{}
	}
	return &TokenCounter{codec: codec}
}

// Count returns the number of tokens in text, falling back to 4 characters per token.
func (tc *TokenCounter) Count(text string) int {
	if tc == nil || tc.codec == nil {
		return len(text) / 4
	}
	n, err := tc.codec.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return n
}

// Estimate approximates the usage of a completion call from its request and generated text.
func (tc *TokenCounter) Estimate(req CompletionRequest, output string) Usage {
	in := tc.Count(req.System) + tc.Count(req.User)
	for _, t := range req.History {
		in += tc.Count(t.Text)
	}
	return NewUsage(in, tc.Count(output))
}
