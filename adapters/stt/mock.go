package stt

import (
	"context"

	"go.uber.org/zap"

	"github.com/kangban/companion/domain/repositories"
)

// MockRecognizer implements SpeechToText for development and tests.
type MockRecognizer struct {
	logger     *zap.Logger
	Transcript string
	Err        error
}

var _ repositories.SpeechToText = (*MockRecognizer)(nil)

func NewMockRecognizer(logger *zap.Logger) *MockRecognizer {
	return &MockRecognizer{logger: logger, Transcript: "你好"}
}

func (m *MockRecognizer) Transcribe(ctx context.Context, pcm []byte) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	m.logger.Debug("Mock transcription", zap.Int("bytes", len(pcm)))
	return m.Transcript, nil
}
