package bedrock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"

	"aichef"
)

const (
	// defaultModelID is an inference profile ID, not the foundation model's ID.
	// See https://docs.aws.amazon.com/bedrock/latest/userguide/inference-profiles.html.
	defaultModelID = "us.anthropic.claude-3-7-sonnet-20250219-v1:0"

	// Three recipes with quantities and steps need more room than a single JSON answer.
	defaultMaxTokens = 2048

	defaultTemperature = 0.2
	defaultTopP        = 0.9
)

type bedrockRuntimeClient interface {
	Converse(context.Context, *bedrockruntime.ConverseInput, ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

type LLMOptions struct {
	ModelID     string
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

// LLMClient completes chat requests through the Bedrock Converse API.
type LLMClient struct {
	brc  bedrockRuntimeClient
	opts LLMOptions
}

func NewLLMClient(brc bedrockRuntimeClient, opts LLMOptions) *LLMClient {
	if opts.ModelID == "" {
		opts.ModelID = defaultModelID
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
	return &LLMClient{
		brc:  brc,
		opts: opts,
	}
}

func (c *LLMClient) Complete(ctx context.Context, req aichef.CompletionRequest) (aichef.CompletionResponse, error) {
	slog.Info("LLM_CLIENT: Invoked", "history_len", len(req.History), "system_len", len(req.System))

	var sys []types.SystemContentBlock
	if req.System != "" {
		sys = append(sys, &types.SystemContentBlockMemberText{Value: req.System})
	}

	msgs := make([]types.Message, 0, len(req.History)+1)
	for _, t := range req.History {
		msgs = append(msgs, textMessage(conversationRole(t.Role), t.Text))
	}
	msgs = append(msgs, textMessage(types.ConversationRoleUser, req.User))

	in := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(c.opts.ModelID),
		System:   sys,
		Messages: msgs,
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(c.opts.MaxTokens),
			Temperature: aws.Float32(c.opts.Temperature),
			TopP:        aws.Float32(c.opts.TopP),
		},
	}
	out, err := c.brc.Converse(ctx, in)
	if err != nil {
		slog.Error("LLM_CLIENT: Bedrock converse failed", "error", err, "model", c.opts.ModelID)
		return aichef.CompletionResponse{}, classify(err)
	}

	usage := usageFromOutput(out)
	slog.Info("LLM_CLIENT: Bedrock converse succeeded",
		"stop_reason", out.StopReason,
		"input_tokens", usage.Input,
		"output_tokens", usage.Output,
	)

	switch out.StopReason {
	case "max_tokens":
		slog.Warn("LLM_CLIENT: Model hit MaxTokens limit; reply is truncated", "max_tokens", c.opts.MaxTokens)
	case "guardrail_intervened", "content_filtered":
		return aichef.CompletionResponse{}, &aichef.ServiceError{
			Kind:    aichef.ErrorKindBadRequest,
			Message: "model response blocked by Bedrock safety filters",
		}
	}

	return aichef.CompletionResponse{Text: textFromOutput(out), Usage: usage}, nil
}

func conversationRole(r aichef.Role) types.ConversationRole {
	if r == aichef.RoleAssistant {
		return types.ConversationRoleAssistant
	}
	return types.ConversationRoleUser
}

func textMessage(role types.ConversationRole, text string) types.Message {
	return types.Message{
		Role:    role,
		Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: text}},
	}
}

func usageFromOutput(out *bedrockruntime.ConverseOutput) aichef.Usage {
	if out == nil || out.Usage == nil {
		return aichef.Usage{}
	}
	u := aichef.NewUsage(int(aws.ToInt32(out.Usage.InputTokens)), int(aws.ToInt32(out.Usage.OutputTokens)))
	if total := int(aws.ToInt32(out.Usage.TotalTokens)); total > 0 {
		u.Total = total
	}
	return u
}

// textFromOutput joins the assistant text blocks with '\n'.
func textFromOutput(out *bedrockruntime.ConverseOutput) string {
	if out == nil || out.Output == nil {
		return ""
	}

	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok || msg == nil {
		return ""
	}

	texts := make([]string, 0, len(msg.Value.Content))
	for _, cb := range msg.Value.Content {
		if t, ok := cb.(*types.ContentBlockMemberText); ok && t != nil && t.Value != "" {
			texts = append(texts, t.Value)
		}
	}
	return strings.Join(texts, "\n")
}

// classify maps Bedrock exceptions onto service error kinds.
func classify(err error) error {
	var throttled *types.ThrottlingException
	if errors.As(err, &throttled) {
		return &aichef.ServiceError{Kind: aichef.ErrorKindRateLimit, StatusCode: 429, Message: throttled.ErrorMessage(), Err: err}
	}
	var denied *types.AccessDeniedException
	if errors.As(err, &denied) {
		return &aichef.ServiceError{Kind: aichef.ErrorKindAuth, StatusCode: 403, Message: denied.ErrorMessage(), Err: err}
	}
	var invalid *types.ValidationException
	if errors.As(err, &invalid) {
		return &aichef.ServiceError{Kind: aichef.ErrorKindBadRequest, StatusCode: 400, Message: invalid.ErrorMessage(), Err: err}
	}
	var api smithy.APIError
	if errors.As(err, &api) {
		switch api.ErrorCode() {
		case "ServiceUnavailableException", "ModelNotReadyException", "ModelTimeoutException", "InternalServerException":
			return &aichef.ServiceError{Kind: aichef.ErrorKindTransient, StatusCode: 503, Message: api.ErrorMessage(), Err: err}
		}
	}
	return fmt.Errorf("bedrock: %w", aichef.ClassifyError(err))
}
