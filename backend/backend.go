// Package backend builds the completion client factory selected by CHEF_BACKEND.
package backend

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"aichef"
	"aichef/coordinator"
	"aichef/coordinator/anthropic"
	"aichef/coordinator/bedrock"
	"aichef/coordinator/gemini"
	"aichef/coordinator/groq"
	"aichef/coordinator/mock"
	"aichef/coordinator/ollama"
)

const defaultOllamaModel = "llama3.2"

// NewFactory returns the client factory for mc.Backend. Backends keyed by a user credential build their
// client on demand; the others build one client up front and ignore the credential.
func NewFactory(ctx context.Context, mc aichef.ModelConfig, ac aichef.AgentConfig) (coordinator.ClientFactory, error) {
	slog.Info("SETUP: Selecting completion backend", "backend", mc.Backend, "model", mc.ModelID)

	switch mc.Backend {
	case aichef.BackendGroq:
		return keyed(func(key string) (aichef.CompletionClient, error) {
			return groq.NewClient(groq.ClientOpts{
				APIKey:      key,
				BaseURL:     ac.GroqBaseURL,
				ModelID:     mc.ModelID,
				MaxTokens:   int64(mc.MaxTokens),
				Temperature: float64(mc.Temperature),
				TopP:        float64(mc.TopP),
			})
		}), nil

	case aichef.BackendAnthropic:
		return keyed(func(key string) (aichef.CompletionClient, error) {
			return anthropic.NewClient(anthropic.ClientOpts{
				APIKey:      key,
				ModelID:     mc.ModelID,
				MaxTokens:   int64(mc.MaxTokens),
				Temperature: float64(mc.Temperature),
			})
		}), nil

	case aichef.BackendGemini:
		return keyed(func(key string) (aichef.CompletionClient, error) {
			return gemini.NewClient(ctx, gemini.ClientOpts{
				APIKey:      key,
				ModelID:     mc.ModelID,
				MaxTokens:   mc.MaxTokens,
				Temperature: mc.Temperature,
				TopP:        mc.TopP,
			})
		}), nil

	case aichef.BackendBedrock:
		brc, err := newBedrockRuntimeClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create bedrock client: %w", err)
		}
		return static(bedrock.NewLLMClient(brc, bedrock.LLMOptions{
			ModelID:     mc.ModelID,
			MaxTokens:   mc.MaxTokens,
			Temperature: mc.Temperature,
			TopP:        mc.TopP,
		})), nil

	case aichef.BackendOllama:
		model := mc.ModelID
		if model == "" {
			model = defaultOllamaModel
		}
		client, err := ollama.NewClient(ollama.ClientOpts{
			BaseEndpoint: ac.BaseOllamaEndpoint,
			ModelID:      model,
			MaxTokens:    int(mc.MaxTokens),
			Temperature:  float64(mc.Temperature),
			TopP:         float64(mc.TopP),
			HTTPClient:   http.DefaultClient,
		})
		if err != nil {
			return nil, err
		}
		return static(client), nil

	case aichef.BackendMock:
		return static(mock.NewLLMClient()), nil

	default:
		return nil, fmt.Errorf("unknown backend %q", mc.Backend)
	}
}

// Only one attempt per call: rate limits are reported to the user rather than retried.
func newBedrockRuntimeClient(ctx context.Context) (*bedrockruntime.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRetryMaxAttempts(1))
	if err != nil {
		return nil, err
	}
	return bedrockruntime.NewFromConfig(awsCfg), nil
}

func static(c aichef.CompletionClient) coordinator.ClientFactory {
	return func(string) (aichef.CompletionClient, error) { return c, nil }
}

// keyed reuses the last client while the credential does not change.
func keyed(build func(key string) (aichef.CompletionClient, error)) coordinator.ClientFactory {
	var (
		mu      sync.Mutex
		lastKey string
		last    aichef.CompletionClient
	)
	return func(key string) (aichef.CompletionClient, error) {
		mu.Lock()
		defer mu.Unlock()

		if last != nil && key == lastKey {
			return last, nil
		}
		c, err := build(key)
		if err != nil {
			return nil, err
		}
		lastKey, last = key, c
		return c, nil
	}
}
