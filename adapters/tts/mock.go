package tts

import (
	"context"

	"github.com/kangban/companion/domain/repositories"
)

// MockTTS implements TextToSpeech for development and tests.
type MockTTS struct {
	Audio []byte
	Err   error
}

var _ repositories.TextToSpeech = (*MockTTS)(nil)

func NewMockTTS() *MockTTS {
	return &MockTTS{Audio: []byte("mock-audio")}
}

func (m *MockTTS) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Audio, nil
}

func (m *MockTTS) MIMEType() string {
	return "audio/mpeg"
}
