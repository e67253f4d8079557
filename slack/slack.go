package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"aichef/kitchen"
)

// maxReplyLen keeps shared proposals well inside the webhook message limit.
const maxReplyLen = 3500

type doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client posts messages to an incoming webhook.
type Client struct {
	webhookURL string
	httpClient doer
}

func NewClient(webhookURL string, httpClient doer) *Client {
	return &Client{
		webhookURL: webhookURL,
		httpClient: httpClient,
	}
}

func (c *Client) PostMessage(ctx context.Context, channel string, message string) error {
	payload, err := json.Marshal(map[string]any{
		"channel":  channel,
		"text":     message,
		"mrkdwn":   true,
		"username": "AI Chef",
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to post message: %s", resp.Status)
	}

	return nil
}

// FormatProposals renders a sufficient turn for sharing: the proposals followed by the critique, if any.
func FormatProposals(sessionID, reply string, crit *kitchen.Critique) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Recipe proposals* (session `%s`)\n\n", sessionID)

	reply = strings.TrimSpace(reply)
	if r := []rune(reply); len(r) > maxReplyLen {
		reply = string(r[:maxReplyLen]) + "…"
	}
	b.WriteString(reply)

	if crit != nil {
		b.WriteString("\n\n*Head chef review*")
		if crit.Score > 0 {
			fmt.Fprintf(&b, " (%d/10)", crit.Score)
		}
		b.WriteString("\n>")
		b.WriteString(strings.ReplaceAll(strings.TrimSpace(crit.Text), "\n", "\n>"))
	}
	return b.String()
}
