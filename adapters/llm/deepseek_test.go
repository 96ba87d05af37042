package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestNewDeepSeekLLM_RequiresAPIKey(t *testing.T) {
	if _, err := NewDeepSeekLLM("", "", "", zaptest.NewLogger(t)); err == nil {
		t.Error("Expected error when API key is empty")
	}
}

func TestDeepSeekLLM_Reply(t *testing.T) {
	var gotRequest chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization header = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotRequest); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": "  CALL:儿子\n"}},
			},
		})
	}))
	defer server.Close()

	client, err := NewDeepSeekLLM("test-key", server.URL, "deepseek-chat", zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewDeepSeekLLM failed: %v", err)
	}

	reply, err := client.Reply(context.Background(), "system prompt", "帮我打电话给儿子")
	if err != nil {
		t.Fatalf("Reply failed: %v", err)
	}
	if reply != "CALL:儿子" {
		t.Errorf("Reply = %q, want trimmed CALL:儿子", reply)
	}

	if len(gotRequest.Messages) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(gotRequest.Messages))
	}
	if gotRequest.Messages[0].Role != "system" || gotRequest.Messages[1].Role != "user" {
		t.Errorf("Expected system+user exchange, got %+v", gotRequest.Messages)
	}
	if gotRequest.Model != "deepseek-chat" {
		t.Errorf("Model = %q", gotRequest.Model)
	}
}

func TestDeepSeekLLM_Reply_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"insufficient balance"}}`, http.StatusPaymentRequired)
	}))
	defer server.Close()

	client, err := NewDeepSeekLLM("test-key", server.URL, "", zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewDeepSeekLLM failed: %v", err)
	}

	if _, err := client.Reply(context.Background(), "s", "u"); err == nil {
		t.Error("Expected error for non-200 response")
	}
}

func TestDeepSeekLLM_Reply_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client, err := NewDeepSeekLLM("test-key", server.URL, "", zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewDeepSeekLLM failed: %v", err)
	}

	if _, err := client.Reply(context.Background(), "s", "u"); err == nil {
		t.Error("Expected error for empty choices")
	}
}
