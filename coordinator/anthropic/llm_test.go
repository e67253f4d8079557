package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aichef"
)

type messagesRequest struct {
	Model     string `json:"model"`
	MaxTokens int    `json:"max_tokens"`
	System    []struct {
		Text string `json:"text"`
	} `json:"system"`
	Messages []struct {
		Role string `json:"role"`
	} `json:"messages"`
}

func newTestServer(t *testing.T, status int, body string, seen *messagesRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant-test", r.Header.Get("X-Api-Key"))
		if seen != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient(ClientOpts{})
	assert.ErrorIs(t, err, aichef.ErrMissingCredential)
}

func TestClient_Complete(t *testing.T) {
	var seen messagesRequest
	srv := newTestServer(t, http.StatusOK, `{
		"id": "msg_1",
		"type": "message",
		"role": "assistant",
		"model": "claude-3-7-sonnet-latest",
		"content": [{"type": "text", "text": "Score: 7/10"}, {"type": "text", "text": "\nPorzioni giuste."}],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 300, "output_tokens": 40}
	}`, &seen)

	client, err := NewClient(ClientOpts{APIKey: "sk-ant-test", BaseURL: srv.URL})
	require.NoError(t, err)

	resp, err := client.Complete(context.Background(), aichef.CompletionRequest{
		System:  "be a head chef",
		History: []aichef.Turn{{Role: aichef.RoleUser, Text: "ciao"}, {Role: aichef.RoleAssistant, Text: "ciao!"}},
		User:    "1. Frittata",
	})
	require.NoError(t, err)
	assert.Equal(t, "Score: 7/10\nPorzioni giuste.", resp.Text)
	assert.Equal(t, aichef.Usage{Input: 300, Output: 40, Total: 340}, resp.Usage)

	assert.Equal(t, DefaultModelID, seen.Model)
	assert.Equal(t, defaultMaxTokens, seen.MaxTokens)
	require.Len(t, seen.System, 1)
	assert.Equal(t, "be a head chef", seen.System[0].Text)
	require.Len(t, seen.Messages, 3)
	assert.Equal(t, "assistant", seen.Messages[1].Role)
}

func TestClient_CompleteErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		kind   aichef.ErrorKind
	}{
		{"rate limited", http.StatusTooManyRequests, aichef.ErrorKindRateLimit},
		{"bad key", http.StatusUnauthorized, aichef.ErrorKindAuth},
		{"overloaded", 529, aichef.ErrorKindTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.status, `{"type":"error","error":{"type":"rate_limit_error","message":"nope"}}`, nil)
			client, err := NewClient(ClientOpts{APIKey: "sk-ant-test", BaseURL: srv.URL})
			require.NoError(t, err)

			_, err = client.Complete(context.Background(), aichef.CompletionRequest{User: "ciao"})
			require.Error(t, err)
			assert.Equal(t, tt.kind, aichef.KindOf(err))
		})
	}
}
