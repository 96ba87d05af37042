package tts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestNewElevenLabsTTS_RequiresAPIKey(t *testing.T) {
	if _, err := NewElevenLabsTTS(ElevenLabsConfig{}, zaptest.NewLogger(t)); err == nil {
		t.Error("Expected error when API key is not set")
	}
}

func TestNewElevenLabsTTS_Defaults(t *testing.T) {
	tts, err := NewElevenLabsTTS(ElevenLabsConfig{APIKey: "test-api-key"}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}
	if tts.voiceID != defaultVoiceID {
		t.Errorf("Expected default voice ID %q, got %q", defaultVoiceID, tts.voiceID)
	}
	if tts.MIMEType() != "audio/mpeg" {
		t.Errorf("MIMEType = %q", tts.MIMEType())
	}
}

func TestElevenLabsTTS_Synthesize_EmptyText(t *testing.T) {
	tts, err := NewElevenLabsTTS(ElevenLabsConfig{APIKey: "test-api-key"}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}

	ctx := context.Background()
	if _, err := tts.Synthesize(ctx, ""); err == nil {
		t.Error("Expected error for empty text")
	}
	if _, err := tts.Synthesize(ctx, "   "); err == nil {
		t.Error("Expected error for whitespace-only text")
	}
}

func TestElevenLabsTTS_Synthesize(t *testing.T) {
	mp3 := []byte("ID3fake-mp3-bytes")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/text-to-speech/voice-1") {
			t.Errorf("Unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("xi-api-key"); got != "test-api-key" {
			t.Errorf("xi-api-key header = %q", got)
		}

		var req elevenLabsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		if req.Text != "正在呼叫儿子..." {
			t.Errorf("Request text = %q", req.Text)
		}

		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write(mp3)
	}))
	defer server.Close()

	tts, err := NewElevenLabsTTS(ElevenLabsConfig{
		APIKey:     "test-api-key",
		APIBaseURL: server.URL,
		VoiceID:    "voice-1",
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}

	audio, err := tts.Synthesize(context.Background(), "正在呼叫儿子...")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if string(audio) != string(mp3) {
		t.Error("Synthesize did not return the response payload")
	}
}

func TestElevenLabsTTS_Synthesize_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"quota exceeded"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	tts, err := NewElevenLabsTTS(ElevenLabsConfig{
		APIKey:     "test-api-key",
		APIBaseURL: server.URL,
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}

	if _, err := tts.Synthesize(context.Background(), "你好"); err == nil {
		t.Error("Expected error for non-200 response")
	}
}
