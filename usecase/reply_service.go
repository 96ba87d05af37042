package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kangban/companion/adapters/llm"
	"github.com/kangban/companion/domain/entities"
	"github.com/kangban/companion/domain/repositories"
	"github.com/kangban/companion/internal/observability"
)

// systemPromptTemplate interpolates the serialized contact directory. The
// model answers with exactly one line: a CALL or ALERT directive, or a
// plain short companion reply.
const systemPromptTemplate = "你是一个老人助手。通讯录：%s。简短回答。如需打电话回复 CALL:名字。如察觉健康异常回复 ALERT:描述。"

// ReplyService turns a transcript into one assistant reply line. Every
// failure mode degrades to user-visible text; it never returns an error.
type ReplyService struct {
	provider string
	baseURL  string
	model    string
	gemini   repositories.LargeLanguageModel
	logger   *zap.Logger

	// newOpenAICompat is swappable in tests.
	newOpenAICompat func(apiKey string) (repositories.LargeLanguageModel, error)
}

// NewReplyService creates a reply service for the configured provider.
// The OpenAI-compatible client is rebuilt per request because its key
// lives in the caregiver-editable settings document; the Gemini client is
// constructed once from the environment and may be nil.
func NewReplyService(provider, baseURL, model string, gemini repositories.LargeLanguageModel, logger *zap.Logger) *ReplyService {
	s := &ReplyService{
		provider: provider,
		baseURL:  baseURL,
		model:    model,
		gemini:   gemini,
		logger:   logger,
	}
	s.newOpenAICompat = func(apiKey string) (repositories.LargeLanguageModel, error) {
		return llm.NewDeepSeekLLM(apiKey, s.baseURL, s.model, s.logger)
	}
	return s
}

// BuildSystemPrompt interpolates the contact directory into the fixed
// instruction set. json.Marshal keeps map keys sorted, so the prompt is
// deterministic for a given directory.
func BuildSystemPrompt(contacts map[string]string) string {
	serialized, err := json.Marshal(contacts)
	if err != nil {
		serialized = []byte("{}")
	}
	return fmt.Sprintf(systemPromptTemplate, serialized)
}

// Generate produces the assistant reply line for a transcript.
func (s *ReplyService) Generate(ctx context.Context, transcript string, settings entities.Settings) string {
	model, err := s.resolveModel(settings)
	if err != nil {
		s.logger.Warn("No reply model available", zap.Error(err))
		return fmt.Sprintf("听到: %s (未配置大模型)", transcript)
	}

	start := time.Now()
	reply, err := model.Reply(ctx, BuildSystemPrompt(settings.Contacts), transcript)
	if err != nil {
		observability.RecordReplyGeneration("error", start)
		s.logger.Error("Reply generation failed", zap.Error(err))
		return fmt.Sprintf("AI Error: %v", err)
	}

	observability.RecordReplyGeneration("success", start)
	return reply
}

func (s *ReplyService) resolveModel(settings entities.Settings) (repositories.LargeLanguageModel, error) {
	if s.provider == "gemini" {
		if s.gemini == nil {
			return nil, fmt.Errorf("gemini provider selected but not configured")
		}
		return s.gemini, nil
	}
	if settings.LLMAPIKey == "" {
		return nil, fmt.Errorf("no LLM API key in settings")
	}
	return s.newOpenAICompat(settings.LLMAPIKey)
}
