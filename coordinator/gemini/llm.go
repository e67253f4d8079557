// Package gemini completes requests with the Gemini API through google.golang.org/genai.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"aichef"
)

const (
	DefaultModelID = "gemini-2.0-flash"

	defaultMaxTokens   = 2048
	defaultTemperature = 0.2
	defaultTopP        = 0.9
)

type ClientOpts struct {
	APIKey      string
	BaseURL     string
	ModelID     string
	MaxTokens   int32
	Temperature float32
	TopP        float32
	HTTPClient  *http.Client
}

type Client struct {
	client *genai.Client
	model  string
	config genai.GenerateContentConfig
}

func NewClient(ctx context.Context, opts ClientOpts) (*Client, error) {
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
	if opts.TopP == 0 {
		opts.TopP = defaultTopP
	}

	cc := &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
	}
	if opts.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &Client{
		client: client,
		model:  opts.ModelID,
		config: genai.GenerateContentConfig{
			Temperature:     genai.Ptr(opts.Temperature),
			TopP:            genai.Ptr(opts.TopP),
			MaxOutputTokens: opts.MaxTokens,
		},
	}, nil
}

func (c *Client) Complete(ctx context.Context, req aichef.CompletionRequest) (aichef.CompletionResponse, error) {
	slog.Info("LLM_CLIENT: Invoked", "history_len", len(req.History), "model", c.model)

	config := c.config
	if req.System != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}

	result, err := c.client.Models.GenerateContent(ctx, c.model, buildContents(req), &config)
	if err != nil {
		slog.Error("LLM_CLIENT: Gemini generate failed", "error", err, "model", c.model)
		return aichef.CompletionResponse{}, classify(err)
	}
	if result == nil {
		return aichef.CompletionResponse{}, &aichef.ServiceError{Kind: aichef.ErrorKindTransient, Message: "empty response from Gemini"}
	}

	var usage aichef.Usage
	if md := result.UsageMetadata; md != nil {
		usage = aichef.NewUsage(int(md.PromptTokenCount), int(md.CandidatesTokenCount))
		if md.TotalTokenCount > 0 {
			usage.Total = int(md.TotalTokenCount)
		}
	}

	slog.Info("LLM_CLIENT: Gemini generate succeeded", "input_tokens", usage.Input, "output_tokens", usage.Output)
	return aichef.CompletionResponse{Text: result.Text(), Usage: usage}, nil
}

func buildContents(req aichef.CompletionRequest) []*genai.Content {
	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, t := range req.History {
		role := string(genai.RoleUser)
		if t.Role == aichef.RoleAssistant {
			role = string(genai.RoleModel)
		}
		contents = append(contents, &genai.Content{Role: role, Parts: []*genai.Part{{Text: t.Text}}})
	}
	return append(contents, &genai.Content{Role: string(genai.RoleUser), Parts: []*genai.Part{{Text: req.User}}})
}

func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return aichef.NewServiceError(apiErr.Code, apiErr.Message, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return aichef.NewServiceError(apiErrPtr.Code, apiErrPtr.Message, err)
	}
	return fmt.Errorf("gemini: %w", aichef.ClassifyError(err))
}
