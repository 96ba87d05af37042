package repositories

import "context"

// LargeLanguageModel abstracts any chat/LLM provider.
type LargeLanguageModel interface {
	// Reply sends one system + one user message and returns the first
	// response's text, trimmed.
	Reply(ctx context.Context, system, user string) (string, error)
}
