package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"aichef"
)

const defaultBaseEndpoint = "http://localhost:11434"

type Client struct {
	endpoint   string
	model      string
	httpClient aichef.HTTPClient
	options    options
	counter    *aichef.TokenCounter
}

type ClientOpts struct {
	BaseEndpoint string
	ModelID      string
	MaxTokens    int
	Temperature  float64
	TopP         float64
	HTTPClient   aichef.HTTPClient
}

func NewClient(opts ClientOpts) (*Client, error) {
	if strings.TrimSpace(opts.ModelID) == "" {
		return nil, fmt.Errorf("ollama: model ID is required")
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	base := strings.TrimRight(opts.BaseEndpoint, "/")
	if base == "" {
		base = defaultBaseEndpoint
	}

	o := options{
		Temperature:   0.2,
		TopP:          0.9,
		RepeatPenalty: 1.05,
		NumCtx:        16384, // raise if the machine can handle it
		NumPredict:    opts.MaxTokens,
	}
	if opts.Temperature > 0 {
		o.Temperature = opts.Temperature
	}
	if opts.TopP > 0 {
		o.TopP = opts.TopP
	}

	return &Client{
		model:      opts.ModelID,
		httpClient: opts.HTTPClient,
		endpoint:   base + "/api/chat",
		options:    o,
		counter:    aichef.NewTokenCounter(),
	}, nil
}

// Complete sends the request to the Ollama chat API without streaming.
func (c *Client) Complete(ctx context.Context, cr aichef.CompletionRequest) (aichef.CompletionResponse, error) {
	slog.Info("LLM_CLIENT: Invoked", "history_len", len(cr.History), "model", c.model)

	reqBytes, err := json.Marshal(wireRequest{
		Model:    c.model,
		Messages: buildMessages(cr),
		Stream:   false,
		Options:  c.options,
	})
	if err != nil {
		return aichef.CompletionResponse{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(reqBytes))
	if err != nil {
		return aichef.CompletionResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return aichef.CompletionResponse{}, fmt.Errorf("ollama: %w", aichef.ClassifyError(err))
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(body))
		var we wireError
		if json.Unmarshal(body, &we) == nil && we.Error != "" {
			msg = we.Error
		}
		return aichef.CompletionResponse{}, aichef.NewServiceError(resp.StatusCode, msg, nil)
	}

	var wr wireResponse
	if err := json.Unmarshal(body, &wr); err != nil {
		return aichef.CompletionResponse{}, fmt.Errorf("ollama: decode response: %w", err)
	}
	if wr.DoneReason == "length" {
		slog.Warn("LLM_CLIENT: Model hit num_predict limit; reply is truncated", "num_predict", c.options.NumPredict)
	}

	usage := aichef.NewUsage(wr.PromptEvalCount, wr.EvalCount)
	if usage.Total == 0 {
		usage = c.counter.Estimate(cr, wr.Message.Content)
	}

	slog.Info("LLM_CLIENT: Ollama chat succeeded", "input_tokens", usage.Input, "output_tokens", usage.Output)
	return aichef.CompletionResponse{Text: wr.Message.Content, Usage: usage}, nil
}

// buildMessages lays out the system prompt, the prior turns and the new user message.
func buildMessages(cr aichef.CompletionRequest) []Message {
	messages := make([]Message, 0, len(cr.History)+2)

	if sp := strings.TrimSpace(cr.System); sp != "" {
		messages = append(messages, Message{Role: "system", Content: sp})
	}
	for _, t := range cr.History {
		messages = append(messages, Message{Role: string(t.Role), Content: t.Text})
	}
	return append(messages, Message{Role: "user", Content: cr.User})
}
