package coordinator

import (
	"context"
	"fmt"
	"log/slog"

	"aichef"
	"aichef/kitchen"
)

// Producer writes the reply the user sees: recipes when the gate is open, targeted questions otherwise.
type Producer struct {
	language string
}

func NewProducer(language string) *Producer {
	return &Producer{language: language}
}

// Produce sends the prior transcript and the new message. The message itself is not yet in the transcript.
func (p *Producer) Produce(ctx context.Context, llm aichef.CompletionClient, s *kitchen.Session, text string, sufficient bool) (aichef.CompletionResponse, error) {
	req := aichef.CompletionRequest{
		System:  producerPrompt(s, sufficient, p.language),
		History: s.Transcript(),
		User:    text,
	}

	slog.Info("PRODUCER: Requesting reply",
		"sufficient", sufficient,
		"history_len", len(req.History),
		"pantry_items", len(s.Pantry()),
	)

	resp, err := llm.Complete(ctx, req)
	if err != nil {
		return aichef.CompletionResponse{}, fmt.Errorf("producer: %w", aichef.ClassifyError(err))
	}
	return resp, nil
}
