package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/kangban/companion/domain/repositories"
)

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiLLM implements LargeLanguageModel using Google's Gemini API. It is
// the alternate provider for deployments without an OpenAI-compatible key.
type GeminiLLM struct {
	client *genai.Client
	logger *zap.Logger
	model  string
}

var _ repositories.LargeLanguageModel = (*GeminiLLM)(nil)

// NewGeminiLLM creates a new Gemini LLM instance
func NewGeminiLLM(logger *zap.Logger) (*GeminiLLM, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiLLM{
		client: client,
		logger: logger,
		model:  defaultGeminiModel,
	}, nil
}

// Reply sends the instruction prompt and the transcript as one exchange
// and returns the generated text, trimmed.
func (g *GeminiLLM) Reply(ctx context.Context, system, user string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	contents := []*genai.Content{
		genai.NewContentFromText(user, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
	}

	response, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	if len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return "", fmt.Errorf("no content generated")
	}

	var sb strings.Builder
	for _, part := range response.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	reply := strings.TrimSpace(sb.String())
	if reply == "" {
		return "", fmt.Errorf("empty response")
	}

	g.logger.Info("Gemini reply generated", zap.Int("length", len(reply)))
	return reply, nil
}
