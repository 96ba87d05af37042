package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kangban/companion/domain/repositories"
)

const (
	defaultAPIBaseURL   = "https://api.elevenlabs.io/v1"
	defaultVoiceID      = "21m00Tcm4TlvDq8ikWAM"
	defaultModelID      = "eleven_multilingual_v2" // handles Mandarin replies
	defaultOutputFormat = "mp3_44100_128"          // embeddable in the elder UI as-is
	defaultStability    = 0.5
	defaultClarity      = 0.75
)

// ElevenLabsConfig holds configuration for the ElevenLabsTTS adapter.
// Only APIKey is required; the voice is fixed per deployment.
type ElevenLabsConfig struct {
	APIKey     string
	APIBaseURL string
	VoiceID    string
}

// ElevenLabsTTS implements TextToSpeech using the Eleven Labs API. One
// fixed voice, one output format; the reply pipeline treats synthesis
// failure as "text-only reply", so this adapter never retries.
type ElevenLabsTTS struct {
	apiKey     string
	apiBaseURL string
	voiceID    string
	client     *http.Client
	logger     *zap.Logger
}

var _ repositories.TextToSpeech = (*ElevenLabsTTS)(nil)

type elevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type elevenLabsRequest struct {
	Text          string                  `json:"text"`
	ModelID       string                  `json:"model_id"`
	VoiceSettings elevenLabsVoiceSettings `json:"voice_settings"`
}

// NewElevenLabsTTS creates a new Eleven Labs TTS instance
func NewElevenLabsTTS(config ElevenLabsConfig, logger *zap.Logger) (*ElevenLabsTTS, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("eleven labs API key is required")
	}

	apiBaseURL := config.APIBaseURL
	if apiBaseURL == "" {
		apiBaseURL = defaultAPIBaseURL
	}
	voiceID := config.VoiceID
	if voiceID == "" {
		voiceID = defaultVoiceID
		logger.Info("Using default voice ID", zap.String("voiceID", voiceID))
	}

	return &ElevenLabsTTS{
		apiKey:     config.APIKey,
		apiBaseURL: strings.TrimRight(apiBaseURL, "/"),
		voiceID:    voiceID,
		client:     &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
	}, nil
}

// Synthesize converts the reply text into one MP3 payload.
func (e *ElevenLabsTTS) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	requestBody, err := json.Marshal(elevenLabsRequest{
		Text:    text,
		ModelID: defaultModelID,
		VoiceSettings: elevenLabsVoiceSettings{
			Stability:       defaultStability,
			SimilarityBoost: defaultClarity,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s?output_format=%s",
		e.apiBaseURL, e.voiceID, defaultOutputFormat)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Accept", "audio/mpeg")
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("xi-api-key", e.apiKey)

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("synthesis request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(resp.Body)
		e.logger.Error("Eleven Labs API returned error",
			zap.Int("statusCode", resp.StatusCode),
			zap.String("response", string(errorBody)))
		return nil, fmt.Errorf("synthesis endpoint returned %d", resp.StatusCode)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio payload: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("synthesis returned empty payload")
	}

	e.logger.Info("Synthesis completed",
		zap.String("voiceID", e.voiceID),
		zap.Int("bytes", len(audio)))
	return audio, nil
}

// MIMEType reports the payload format.
func (e *ElevenLabsTTS) MIMEType() string {
	return "audio/mpeg"
}
