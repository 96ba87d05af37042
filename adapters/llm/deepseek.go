package llm

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
	defaultBaseURL = "https://api.deepseek.com"
	defaultModel   = "deepseek-chat"
)

// DeepSeekLLM implements LargeLanguageModel against any OpenAI-compatible
// chat-completions endpoint.
type DeepSeekLLM struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
	logger  *zap.Logger
}

var _ repositories.LargeLanguageModel = (*DeepSeekLLM)(nil)

// NewDeepSeekLLM creates a client for the configured endpoint. Empty
// baseURL and model fall back to the DeepSeek defaults.
func NewDeepSeekLLM(apiKey, baseURL, model string, logger *zap.Logger) (*DeepSeekLLM, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("LLM API key is required")
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if model == "" {
		model = defaultModel
	}

	return &DeepSeekLLM{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Reply sends one system + one user message and returns the first choice's
// content, trimmed.
func (d *DeepSeekLLM) Reply(ctx context.Context, system, user string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: d.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	url := d.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+d.apiKey)

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(resp.Body)
		d.logger.Error("Chat endpoint returned error",
			zap.Int("statusCode", resp.StatusCode),
			zap.String("response", string(errorBody)))
		return "", fmt.Errorf("chat endpoint returned %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode chat response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("chat endpoint error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat response contained no choices")
	}

	reply := strings.TrimSpace(parsed.Choices[0].Message.Content)
	d.logger.Info("Chat reply generated", zap.String("model", d.model), zap.Int("length", len(reply)))
	return reply, nil
}
