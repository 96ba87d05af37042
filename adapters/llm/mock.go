package llm

import (
	"context"
	"strings"

	"github.com/kangban/companion/domain/repositories"
)

// MockLLM implements LargeLanguageModel for development and tests.
type MockLLM struct {
	Response string
	Err      error
}

var _ repositories.LargeLanguageModel = (*MockLLM)(nil)

func NewMockLLM() *MockLLM {
	return &MockLLM{Response: "好的，我在听。"}
}

func (m *MockLLM) Reply(ctx context.Context, system, user string) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	return strings.TrimSpace(m.Response), nil
}
