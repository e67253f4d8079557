// Package groq talks to Groq's OpenAI-compatible chat completions endpoint.
package groq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"aichef"
)

const (
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	DefaultModelID = "llama-3.3-70b-versatile"

	defaultMaxTokens   = 2048
	defaultTemperature = 0.2
	defaultTopP        = 0.9
)

type ClientOpts struct {
	APIKey      string
	BaseURL     string
	ModelID     string
	MaxTokens   int64
	Temperature float64
	TopP        float64
	// RequestOptions are appended after the defaults, e.g. option.WithHTTPClient in tests.
	RequestOptions []option.RequestOption
}

type Client struct {
	client      openai.Client
	model       string
	maxTokens   int64
	temperature float64
	topP        float64
}

// NewClient returns a client bound to opts.APIKey. Retries are disabled so a rate limit reaches the user at once.
func NewClient(opts ClientOpts) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, aichef.ErrMissingCredential
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.ModelID == "" {
		opts.ModelID = DefaultModelID
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	if opts.Temperature == 0 {
		opts.Temperature = defaultTemperature
	}
	if opts.TopP == 0 {
		opts.TopP = defaultTopP
	}

	reqOpts := append([]option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithBaseURL(strings.TrimRight(opts.BaseURL, "/") + "/"),
		option.WithMaxRetries(0),
	}, opts.RequestOptions...)

	return &Client{
		client:      openai.NewClient(reqOpts...),
		model:       opts.ModelID,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
		topP:        opts.TopP,
	}, nil
}

func (c *Client) Complete(ctx context.Context, req aichef.CompletionRequest) (aichef.CompletionResponse, error) {
	slog.Info("LLM_CLIENT: Invoked", "history_len", len(req.History), "model", c.model)

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    buildMessages(req),
		MaxTokens:   openai.Int(c.maxTokens),
		Temperature: openai.Float(c.temperature),
		TopP:        openai.Float(c.topP),
	})
	if err != nil {
		slog.Error("LLM_CLIENT: Groq completion failed", "error", err, "model", c.model)
		return aichef.CompletionResponse{}, classify(err)
	}
	if len(resp.Choices) == 0 {
		return aichef.CompletionResponse{}, &aichef.ServiceError{Kind: aichef.ErrorKindTransient, Message: "empty response from Groq"}
	}

	choice := resp.Choices[0]
	if choice.FinishReason == "length" {
		slog.Warn("LLM_CLIENT: Model hit max_tokens; reply is truncated", "max_tokens", c.maxTokens)
	}

	usage := aichef.NewUsage(int(resp.Usage.PromptTokens), int(resp.Usage.CompletionTokens))
	if total := int(resp.Usage.TotalTokens); total > 0 {
		usage.Total = total
	}

	slog.Info("LLM_CLIENT: Groq completion succeeded",
		"finish_reason", choice.FinishReason,
		"input_tokens", usage.Input,
		"output_tokens", usage.Output,
	)
	return aichef.CompletionResponse{Text: choice.Message.Content, Usage: usage}, nil
}

func buildMessages(req aichef.CompletionRequest) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.History)+2)
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	for _, t := range req.History {
		if t.Role == aichef.RoleAssistant {
			msgs = append(msgs, openai.AssistantMessage(t.Text))
			continue
		}
		msgs = append(msgs, openai.UserMessage(t.Text))
	}
	return append(msgs, openai.UserMessage(req.User))
}

func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return aichef.NewServiceError(apiErr.StatusCode, "groq", err)
	}
	return fmt.Errorf("groq: %w", aichef.ClassifyError(err))
}
