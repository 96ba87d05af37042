package repositories

import (
	"context"
	"errors"
)

// ErrAuthRejected is returned when the speech vendor refuses the caller's
// credentials, either at the WebSocket handshake or via an auth error code
// on the session. Callers that want to distinguish it from "no speech"
// check with errors.Is; the pipeline degrades both to user-visible text.
var ErrAuthRejected = errors.New("speech vendor rejected credentials")

// SpeechToText abstracts speech recognition services.
//
// Transcribe consumes a complete mono 16 kHz 16-bit little-endian PCM
// buffer and returns the recognized text. An empty transcript with a nil
// error means no speech was recognized; transport failures are returned
// as errors so that callers can tell the two apart.
type SpeechToText interface {
	Transcribe(ctx context.Context, pcm []byte) (string, error)
}
