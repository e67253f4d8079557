package bedrock

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aichef"
)

// mockBedrockClient implements bedrockRuntimeClient for testing
type mockBedrockClient struct {
	response *bedrockruntime.ConverseOutput
	err      error
	input    *bedrockruntime.ConverseInput
}

func (m *mockBedrockClient) Converse(ctx context.Context, input *bedrockruntime.ConverseInput, opts ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	m.input = input
	return m.response, m.err
}

func textOutput(stop types.StopReason, in, out int32, blocks ...string) *bedrockruntime.ConverseOutput {
	content := make([]types.ContentBlock, 0, len(blocks))
	for _, b := range blocks {
		content = append(content, &types.ContentBlockMemberText{Value: b})
	}
	return &bedrockruntime.ConverseOutput{
		StopReason: stop,
		Output: &types.ConverseOutputMemberMessage{
			Value: types.Message{Role: types.ConversationRoleAssistant, Content: content},
		},
		Usage: &types.TokenUsage{
			InputTokens:  aws.Int32(in),
			OutputTokens: aws.Int32(out),
			TotalTokens:  aws.Int32(in + out),
		},
	}
}

func TestNewLLMClient(t *testing.T) {
	tests := []struct {
		name     string
		input    LLMOptions
		expected LLMOptions
	}{
		{
			name:  "empty options uses defaults",
			input: LLMOptions{},
			expected: LLMOptions{
				ModelID:     defaultModelID,
				MaxTokens:   defaultMaxTokens,
				Temperature: defaultTemperature,
				TopP:        defaultTopP,
			},
		},
		{
			name: "custom options preserved",
			input: LLMOptions{
				ModelID:     "custom-model",
				MaxTokens:   4096,
				Temperature: 0.5,
				TopP:        0.8,
			},
			expected: LLMOptions{
				ModelID:     "custom-model",
				MaxTokens:   4096,
				Temperature: 0.5,
				TopP:        0.8,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockClient := &mockBedrockClient{}
			client := NewLLMClient(mockClient, tt.input)

			assert.Equal(t, tt.expected, client.opts)
			assert.Equal(t, mockClient, client.brc)
		})
	}
}

func TestLLMClient_Complete(t *testing.T) {
	mock := &mockBedrockClient{response: textOutput("end_turn", 120, 80, "Ecco tre ricette")}
	client := NewLLMClient(mock, LLMOptions{})

	resp, err := client.Complete(context.Background(), aichef.CompletionRequest{
		System: "be a chef",
		History: []aichef.Turn{
			{Role: aichef.RoleUser, Text: "ho le uova"},
			{Role: aichef.RoleAssistant, Text: "quante persone?"},
		},
		User: "quattro",
	})
	require.NoError(t, err)
	assert.Equal(t, "Ecco tre ricette", resp.Text)
	assert.Equal(t, aichef.Usage{Input: 120, Output: 80, Total: 200}, resp.Usage)

	require.NotNil(t, mock.input)
	require.Len(t, mock.input.System, 1)
	assert.Equal(t, "be a chef", mock.input.System[0].(*types.SystemContentBlockMemberText).Value)
	require.Len(t, mock.input.Messages, 3)
	assert.Equal(t, types.ConversationRoleUser, mock.input.Messages[0].Role)
	assert.Equal(t, types.ConversationRoleAssistant, mock.input.Messages[1].Role)
	assert.Equal(t, types.ConversationRoleUser, mock.input.Messages[2].Role)
	assert.Equal(t, "quattro", mock.input.Messages[2].Content[0].(*types.ContentBlockMemberText).Value)
	assert.Nil(t, mock.input.ToolConfig)
}

func TestLLMClient_CompleteStopReasons(t *testing.T) {
	t.Run("max tokens returns truncated text", func(t *testing.T) {
		client := NewLLMClient(&mockBedrockClient{response: textOutput("max_tokens", 10, 2048, "1. Frittata")}, LLMOptions{})
		resp, err := client.Complete(context.Background(), aichef.CompletionRequest{User: "ricette"})
		require.NoError(t, err)
		assert.Equal(t, "1. Frittata", resp.Text)
	})

	t.Run("guardrail is a bad request", func(t *testing.T) {
		client := NewLLMClient(&mockBedrockClient{response: textOutput("guardrail_intervened", 10, 0)}, LLMOptions{})
		_, err := client.Complete(context.Background(), aichef.CompletionRequest{User: "ricette"})
		require.Error(t, err)
		assert.Equal(t, aichef.ErrorKindBadRequest, aichef.KindOf(err))
	})
}

func TestLLMClient_CompleteErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind aichef.ErrorKind
	}{
		{"throttled", &types.ThrottlingException{Message: aws.String("slow down")}, aichef.ErrorKindRateLimit},
		{"access denied", &types.AccessDeniedException{Message: aws.String("no")}, aichef.ErrorKindAuth},
		{"validation", &types.ValidationException{Message: aws.String("bad model")}, aichef.ErrorKindBadRequest},
		{"model not ready", &smithy.GenericAPIError{Code: "ModelNotReadyException", Message: "warming up"}, aichef.ErrorKindTransient},
		{"network", errors.New("dial tcp: connection refused"), aichef.ErrorKindTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewLLMClient(&mockBedrockClient{err: tt.err}, LLMOptions{})
			_, err := client.Complete(context.Background(), aichef.CompletionRequest{User: "ciao"})
			require.Error(t, err)
			assert.Equal(t, tt.kind, aichef.KindOf(err))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestTextFromOutput(t *testing.T) {
	tests := []struct {
		name     string
		output   *bedrockruntime.ConverseOutput
		expected string
	}{
		{
			name:     "nil output",
			output:   nil,
			expected: "",
		},
		{
			name:     "single text block",
			output:   textOutput("end_turn", 1, 1, "Hello world"),
			expected: "Hello world",
		},
		{
			name:     "multiple text blocks",
			output:   textOutput("end_turn", 1, 1, "Hello", "", "world"),
			expected: "Hello\nworld",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, textFromOutput(tt.output))
		})
	}
}

func TestUsageFromOutput(t *testing.T) {
	assert.Equal(t, aichef.Usage{}, usageFromOutput(&bedrockruntime.ConverseOutput{}))

	out := &bedrockruntime.ConverseOutput{Usage: &types.TokenUsage{InputTokens: aws.Int32(5), OutputTokens: aws.Int32(7)}}
	assert.Equal(t, aichef.Usage{Input: 5, Output: 7, Total: 12}, usageFromOutput(out))
}
