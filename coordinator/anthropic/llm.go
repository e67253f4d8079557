// Package anthropic completes requests with the Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"aichef"
)

const (
	DefaultModelID = "claude-3-7-sonnet-latest"

	defaultMaxTokens   = 2048
	defaultTemperature = 0.2
)

type ClientOpts struct {
	APIKey         string
	BaseURL        string
	ModelID        string
	MaxTokens      int64
	Temperature    float64
	RequestOptions []option.RequestOption
}

type Client struct {
	client      anthropic.Client
	model       anthropic.Model
	maxTokens   int64
	temperature float64
}

func NewClient(opts ClientOpts) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, aichef.ErrMissingCredential
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

	reqOpts := []option.RequestOption{option.WithAPIKey(opts.APIKey), option.WithMaxRetries(0)}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(strings.TrimRight(opts.BaseURL, "/")+"/"))
	}
	reqOpts = append(reqOpts, opts.RequestOptions...)

	return &Client{
		client:      anthropic.NewClient(reqOpts...),
		model:       anthropic.Model(opts.ModelID),
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
	}, nil
}

func (c *Client) Complete(ctx context.Context, req aichef.CompletionRequest) (aichef.CompletionResponse, error) {
	slog.Info("LLM_CLIENT: Invoked", "history_len", len(req.History), "model", c.model)

	params := anthropic.MessageNewParams{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Messages:    buildMessages(req),
		Temperature: anthropic.Float(c.temperature),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		slog.Error("LLM_CLIENT: Anthropic message failed", "error", err, "model", c.model)
		return aichef.CompletionResponse{}, classify(err)
	}

	var b strings.Builder
	for i := range resp.Content {
		if block := &resp.Content[i]; block.Type == "text" {
			b.WriteString(block.AsText().Text)
		}
	}
	if resp.StopReason == anthropic.StopReasonMaxTokens {
		slog.Warn("LLM_CLIENT: Model hit max_tokens; reply is truncated", "max_tokens", c.maxTokens)
	}

	usage := aichef.NewUsage(int(resp.Usage.InputTokens), int(resp.Usage.OutputTokens))
	slog.Info("LLM_CLIENT: Anthropic message succeeded",
		"stop_reason", resp.StopReason,
		"input_tokens", usage.Input,
		"output_tokens", usage.Output,
	)
	return aichef.CompletionResponse{Text: b.String(), Usage: usage}, nil
}

func buildMessages(req aichef.CompletionRequest) []anthropic.MessageParam {
	msgs := make([]anthropic.MessageParam, 0, len(req.History)+1)
	for _, t := range req.History {
		block := anthropic.NewTextBlock(t.Text)
		if t.Role == aichef.RoleAssistant {
			msgs = append(msgs, anthropic.NewAssistantMessage(block))
			continue
		}
		msgs = append(msgs, anthropic.NewUserMessage(block))
	}
	return append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(req.User)))
}

func classify(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return aichef.NewServiceError(apiErr.StatusCode, "anthropic", err)
	}
	return fmt.Errorf("anthropic: %w", aichef.ClassifyError(err))
}
