package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"

	"aichef"
	"aichef/kitchen"
)

var scorePattern = regexp.MustCompile(`(?i)score\s*[:=]?\s*\**\s*(\d{1,2})\s*/\s*10`)

// Critic reviews the producer output against the session state. It only runs when the gate is open.
type Critic struct {
	language string
}

func NewCritic(language string) *Critic {
	return &Critic{language: language}
}

// Critique returns the review and the usage its call consumed.
func (c *Critic) Critique(ctx context.Context, llm aichef.CompletionClient, s *kitchen.Session, proposals string) (kitchen.Critique, aichef.Usage, error) {
	req := aichef.CompletionRequest{
		System: criticPrompt(s, c.language),
		User:   proposals,
	}

	resp, err := llm.Complete(ctx, req)
	if err != nil {
		return kitchen.Critique{}, aichef.Usage{}, fmt.Errorf("critic: %w", aichef.ClassifyError(err))
	}

	crit := kitchen.Critique{Score: ParseScore(resp.Text), Text: resp.Text}
	slog.Info("CRITIC: Review received", "score", crit.Score, "length", len(crit.Text))
	return crit, resp.Usage, nil
}

// ParseScore reads the first "Score: N/10" in text. It returns 0 when absent or out of range.
func ParseScore(text string) int {
	m := scorePattern.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 || n > 10 {
		return 0
	}
	return n
}
