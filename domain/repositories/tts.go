package repositories

import "context"

// TextToSpeech converts a reply line into one playable audio artifact.
type TextToSpeech interface {
	// Synthesize returns the full audio payload for the given text.
	Synthesize(ctx context.Context, text string) ([]byte, error)
	// MIMEType describes the payload format, e.g. "audio/mpeg".
	MIMEType() string
}
