package aichef

import (
	"context"
	"net/http"
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type SlackClient interface {
	PostMessage(ctx context.Context, channel string, message string) error
}

// CompletionClient is the single capability the assistant needs from a hosted language model.
type CompletionClient interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}

// Role tags a transcript turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry of the conversation transcript.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// CompletionRequest is a system instruction, the prior conversation in order and the final user text.
type CompletionRequest struct {
	System  string `json:"system"`
	History []Turn `json:"history,omitempty"`
	User    string `json:"user"`
}

// Usage is the resource consumption reported by the completion service for one call.
type Usage struct {
	Input  int `json:"input,omitempty"`
	Output int `json:"output,omitempty"`
	Total  int `json:"total"`
}

// CompletionResponse represents the generated text and what it cost.
type CompletionResponse struct {
	Text  string `json:"text"`
	Usage Usage  `json:"usage"`
}

// NewUsage builds a Usage from an input/output breakdown.
func NewUsage(input, output int) Usage {
	return Usage{Input: input, Output: output, Total: input + output}
}
