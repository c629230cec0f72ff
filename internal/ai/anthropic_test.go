package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func anthropicReply(text string) string {
	b, _ := json.Marshal(map[string]any{
		"id":            "msg_1",
		"type":          "message",
		"role":          "assistant",
		"model":         "claude-test",
		"stop_reason":   "end_turn",
		"stop_sequence": nil,
		"content":       []map[string]any{{"type": "text", "text": text}},
		"usage":         map[string]any{"input_tokens": 10, "output_tokens": 20},
	})
	return string(b)
}

func newAnthropicServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Api-Key"); got != "ak-test" {
			t.Errorf("X-Api-Key = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAnthropicProvider_Success(t *testing.T) {
	srv := newAnthropicServer(t, http.StatusOK, anthropicReply(`{"subgoals": ["Outline", "Draft", "Edit"]}`))

	res, err := NewAnthropic("ak-test", "claude-test", srv.URL, 5*time.Second).Decompose(context.Background(), "Write a book")
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}
	if len(res.Subgoals) != 3 || res.Subgoals[0] != "Outline" {
		t.Errorf("Subgoals = %q", res.Subgoals)
	}
	if res.Meta.Source != AnthropicName || res.Meta.Model != "claude-test" {
		t.Errorf("Meta = %+v", res.Meta)
	}
}

func TestAnthropicProvider_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"overloaded", 529, `{"type": "error", "error": {"type": "overloaded_error", "message": "busy"}}`},
		{"bad request", http.StatusBadRequest, `{"type": "error", "error": {"type": "invalid_request_error", "message": "bad"}}`},
		{"empty list", http.StatusOK, anthropicReply(`{"subgoals": []}`)},
		{"prose", http.StatusOK, anthropicReply("I'd suggest starting small.")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newAnthropicServer(t, tt.status, tt.body)
			_, err := NewAnthropic("ak-test", "claude-test", srv.URL, 5*time.Second).Decompose(context.Background(), "goal")
			var pe *ProviderError
			if !errors.As(err, &pe) || pe.Provider != AnthropicName {
				t.Fatalf("err = %v, want anthropic *ProviderError", err)
			}
		})
	}
}

func TestAnthropicProvider_MissingKey(t *testing.T) {
	_, err := NewAnthropic("", "claude-test", "", time.Second).Decompose(context.Background(), "goal")
	if !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("err = %v, want ErrNoAPIKey", err)
	}
}
